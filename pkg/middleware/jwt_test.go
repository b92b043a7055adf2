package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testSecret はテスト用のJWTシークレット。
const testSecret = "test-secret-key-for-unit-tests"

// signClaims は任意のクレームと署名方式でトークンを生成する。
func signClaims(t *testing.T, method jwt.SigningMethod, claims JWTClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("トークンの署名に失敗: %v", err)
	}
	return signed
}

// TestGenerateJWT はGenerateJWT関数を検証する。
func TestGenerateJWT(t *testing.T) {
	t.Parallel()

	t.Run("生成したトークンをParseJWTで検証できること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := GenerateJWT(testSecret, "user-123", time.Hour)
		if err != nil {
			t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
		}

		claims, err := ParseJWT(testSecret, tokenStr)
		if err != nil {
			t.Fatalf("ParseJWT()でエラーが発生: %v", err)
		}
		if claims.UserID != "user-123" || claims.Subject != "user-123" {
			t.Errorf("UserID = %q, Subject = %q, want %q", claims.UserID, claims.Subject, "user-123")
		}
		if claims.Issuer != Issuer {
			t.Errorf("Issuer = %q, want %q", claims.Issuer, Issuer)
		}

		ttl := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
		if ttl != time.Hour {
			t.Errorf("有効期間 = %v, want %v", ttl, time.Hour)
		}
	})

	t.Run("ttlが0の場合は既定の有効期間になること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := GenerateJWT(testSecret, "user-ttl", 0)
		if err != nil {
			t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
		}
		claims, err := ParseJWT(testSecret, tokenStr)
		if err != nil {
			t.Fatalf("ParseJWT()でエラーが発生: %v", err)
		}
		if ttl := claims.ExpiresAt.Sub(claims.IssuedAt.Time); ttl != DefaultTokenTTL {
			t.Errorf("有効期間 = %v, want %v", ttl, DefaultTokenTTL)
		}
	})

	t.Run("ユーザーIDが空の場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		if _, err := GenerateJWT(testSecret, "", time.Hour); !errors.Is(err, ErrMissingSubject) {
			t.Errorf("err = %v, want ErrMissingSubject", err)
		}
	})
}

// TestParseJWT は不正なトークンが拒否されることを検証する。
func TestParseJWT(t *testing.T) {
	t.Parallel()

	now := time.Now()
	valid := jwt.RegisteredClaims{
		Issuer:    Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}

	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{
			name: "期限切れ",
			token: func(t *testing.T) string {
				rc := valid
				rc.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute))
				return signClaims(t, jwt.SigningMethodHS256, JWTClaims{RegisteredClaims: rc, UserID: "u"})
			},
		},
		{
			name: "有効期限なし",
			token: func(t *testing.T) string {
				rc := valid
				rc.ExpiresAt = nil
				return signClaims(t, jwt.SigningMethodHS256, JWTClaims{RegisteredClaims: rc, UserID: "u"})
			},
		},
		{
			name: "発行者が異なる",
			token: func(t *testing.T) string {
				rc := valid
				rc.Issuer = "someone-else"
				return signClaims(t, jwt.SigningMethodHS256, JWTClaims{RegisteredClaims: rc, UserID: "u"})
			},
		},
		{
			name: "HS256以外の署名方式",
			token: func(t *testing.T) string {
				return signClaims(t, jwt.SigningMethodHS512, JWTClaims{RegisteredClaims: valid, UserID: "u"})
			},
		},
		{
			name: "ユーザーIDなし",
			token: func(t *testing.T) string {
				return signClaims(t, jwt.SigningMethodHS256, JWTClaims{RegisteredClaims: valid})
			},
		},
		{
			name: "異なるシークレット",
			token: func(t *testing.T) string {
				tokenStr, err := GenerateJWT("another-secret", "u", time.Hour)
				if err != nil {
					t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
				}
				return tokenStr
			},
		},
		{
			name:  "形式不正",
			token: func(_ *testing.T) string { return "not.a.jwt" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name+"のトークンは拒否されること", func(t *testing.T) {
			t.Parallel()
			if _, err := ParseJWT(testSecret, tt.token(t)); err == nil {
				t.Error("エラーが返されるべき")
			}
		})
	}

	t.Run("user_idがなくsubがあればsubをユーザーIDとして扱うこと", func(t *testing.T) {
		t.Parallel()

		rc := valid
		rc.Subject = "user-sub"
		claims, err := ParseJWT(testSecret, signClaims(t, jwt.SigningMethodHS256, JWTClaims{RegisteredClaims: rc}))
		if err != nil {
			t.Fatalf("ParseJWT()でエラーが発生: %v", err)
		}
		if claims.UserID != "user-sub" {
			t.Errorf("UserID = %q, want %q", claims.UserID, "user-sub")
		}
	})
}

// TestJWTAuth はJWTAuthミドルウェアを検証する。
func TestJWTAuth(t *testing.T) {
	t.Parallel()

	newRouter := func(captured *string) *gin.Engine {
		router := gin.New()
		router.Use(JWTAuth(testSecret))
		router.GET("/api/notifications", func(c *gin.Context) {
			*captured = GetUserID(c)
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
		return router
	}

	t.Run("有効なトークンでユーザーIDがコンテキストに設定されること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := GenerateJWT(testSecret, "user-ok", time.Hour)
		if err != nil {
			t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
		}

		var captured string
		req := httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
		req.Header.Set("Authorization", "Bearer "+tokenStr)
		w := httptest.NewRecorder()
		newRouter(&captured).ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		if captured != "user-ok" {
			t.Errorf("user_id = %q, want %q", captured, "user-ok")
		}
	})

	tests := []struct {
		name   string
		header string
	}{
		{name: "Authorizationヘッダーなし", header: ""},
		{name: "Bearer以外の形式", header: "Basic dXNlcjpwYXNz"},
		{name: "無効なトークン", header: "Bearer invalid-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name+"の場合は401が返りハンドラが呼ばれないこと", func(t *testing.T) {
			t.Parallel()

			captured := "untouched"
			req := httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			newRouter(&captured).ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
			}
			if captured != "untouched" {
				t.Error("認証に失敗したのにハンドラが呼ばれた")
			}
		})
	}
}

// TestGetUserID はコンテキストにユーザーIDがない場合を検証する。
func TestGetUserID(t *testing.T) {
	t.Parallel()

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if got := GetUserID(c); got != "" {
		t.Errorf("GetUserID() = %q, want empty", got)
	}

	c.Set(contextKeyUserID, 42)
	if got := GetUserID(c); got != "" {
		t.Errorf("文字列以外の値でGetUserID() = %q, want empty", got)
	}
}
