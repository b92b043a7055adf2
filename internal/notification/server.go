package notification

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/notifyhub/internal/config"
	"github.com/nao1215/notifyhub/pkg/middleware"
	"github.com/nao1215/notifyhub/pkg/notice"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// headerKeyInternalToken は内部APIの呼び出し元を認証するHTTPヘッダーキー。
const headerKeyInternalToken = "X-Internal-Token"

// Server は通知サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// db はSQLiteデータベース接続。
	db *sql.DB
	// ledger は通知台帳。
	ledger *Ledger
	// prefs は通知設定ストア。
	prefs *PreferenceStore
	// consumer はRabbitMQからの通知作成要求の受信処理。AMQP未設定の場合はnil。
	consumer *Consumer
	// jwtSecret はJWT署名検証用の秘密鍵。
	jwtSecret string
	// internalToken は内部APIの共有トークン。
	internalToken string
}

// NewServer は新しい通知サーバーを生成する。
// SQLiteデータベースの初期化とマイグレーションを行い、AMQPが設定されていれば受信処理を準備する。
func NewServer(cfg *config.Config) (*Server, error) {
	sqlDB, err := openDB(context.Background(), cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	prefs := NewPreferenceStore(sqlDB, cfg.NotificationTypes, cfg.PreferencesCacheTTL)
	ledger := NewLedger(sqlDB, prefs, WithMaxLimit(cfg.PageLimitMax))

	var consumer *Consumer
	if cfg.AMQP.Enabled() {
		consumer, err = NewConsumer(cfg.AMQP, ledger)
		if err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("AMQPコンシューマーの初期化に失敗: %w", err)
		}
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(metricsMiddleware())
	router.Use(middleware.CORS([]string{cfg.FrontendURL}))

	s := &Server{
		router:        router,
		port:          cfg.Port,
		db:            sqlDB,
		ledger:        ledger,
		prefs:         prefs,
		consumer:      consumer,
		jwtSecret:     cfg.JWTSecret,
		internalToken: cfg.InternalToken,
	}
	s.setupRoutes()

	return s, nil
}

// Run はAMQPの受信処理とHTTPサーバーを起動する。
func (s *Server) Run() error {
	if s.consumer != nil {
		if err := s.consumer.Start(); err != nil {
			return fmt.Errorf("AMQPコンシューマーの起動に失敗: %w", err)
		}
	}
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// Close は受信処理とデータベース接続を閉じる。
func (s *Server) Close() error {
	var errs []error
	if s.consumer != nil {
		errs = append(errs, s.consumer.Close())
	}
	errs = append(errs, s.db.Close())
	return errors.Join(errs...)
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	api.Use(middleware.JWTAuth(s.jwtSecret))
	s.registerUserRoutes(api)

	internal := s.router.Group("/api/internal")
	internal.Use(requireInternalToken(s.internalToken))
	s.registerInternalRoutes(internal)

	// ヘルスチェック
	s.router.GET("/health", s.handleHealth())
	// Prometheusメトリクス
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// registerUserRoutes は認証済みユーザー向けのルートを登録する。
func (s *Server) registerUserRoutes(api *gin.RouterGroup) {
	notifications := api.Group("/notifications")
	{
		// 通知一覧取得（カーソルページング）
		notifications.GET("", s.handleList())
		// 未読件数取得
		notifications.GET("/unread-count", s.handleUnreadCount())
		// 通知詳細取得
		notifications.GET("/:id", s.handleGet())
		// 全通知を既読にする
		notifications.POST("/mark-all-read", s.handleMarkAllRead())
		// 通知を既読にする
		notifications.PATCH("/:id/read", s.handleMarkRead())
		// 既読通知をすべて削除する
		notifications.DELETE("/read", s.handleDeleteAllRead())
	}

	preferences := api.Group("/notification-preferences")
	{
		preferences.GET("", s.handleGetPreferences())
		preferences.PATCH("", s.handleUpdatePreferences())
	}
}

// registerInternalRoutes は他サービスから呼び出される内部APIのルートを登録する。
func (s *Server) registerInternalRoutes(internal *gin.RouterGroup) {
	// 通知作成（イベント・グループ機能などのプロデューサーから呼び出される）
	internal.POST("/notifications", s.handleCreate())
}

// requireInternalToken は内部API用の共有トークンを検証するGinミドルウェアを返す。
func requireInternalToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(headerKeyInternalToken)
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "内部トークンが無効です"})
			return
		}
		c.Next()
	}
}

// handleHealth はデータベースへの疎通を含むヘルスチェックのハンドラ。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.db.PingContext(c.Request.Context()); err != nil {
			log.Printf("ヘルスチェックエラー: %v", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "service": "notification"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "notification"})
	}
}

// writeError はエラー分類に応じたステータスコードでエラーレスポンスを返す。
// ストレージ障害などの内部原因はログにのみ出力する。
func writeError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": ErrNotFound.Error()})
	case errors.Is(err, ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": ErrUnauthorized.Error()})
	case errors.Is(err, ErrTransientStorage):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": message})
		log.Printf("%s: %v", message, err)
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": message})
		log.Printf("%s: %v", message, err)
	}
}

// requireUserID は認証済みユーザーIDを取得する。取得できない場合は401を返してfalseを返す。
func requireUserID(c *gin.Context) (string, bool) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": ErrUnauthorized.Error()})
		return "", false
	}
	return userID, true
}

// parseLimit はlimitクエリパラメータを解釈する。省略時は最大件数を使う。
func parseLimit(raw string, defaultLimit int) (int, error) {
	if raw == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: limitは整数である必要があります", ErrValidation)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: limitは正の整数である必要があります", ErrValidation)
	}
	return n, nil
}

// handleList は認証済みユーザーの通知をカーソルページングで返すハンドラ。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUserID(c)
		if !ok {
			return
		}

		limit, err := parseLimit(c.Query("limit"), s.ledger.MaxLimit())
		if err != nil {
			writeError(c, err, "")
			return
		}
		before, err := ParseCursor(c.Query("before"))
		if err != nil {
			writeError(c, err, "")
			return
		}

		page, err := s.ledger.List(c.Request.Context(), userID, limit, before)
		if err != nil {
			writeError(c, err, "通知一覧の取得に失敗しました")
			return
		}

		resp := notice.Page{
			Notifications: page.Records,
			HasMore:       page.HasMore,
		}
		if page.Next != nil {
			resp.NextCursor = page.Next.Encode()
		}
		c.JSON(http.StatusOK, resp)
	}
}

// handleUnreadCount は認証済みユーザーの未読件数を返すハンドラ。
func (s *Server) handleUnreadCount() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUserID(c)
		if !ok {
			return
		}

		n, err := s.ledger.UnreadCount(c.Request.Context(), userID)
		if err != nil {
			writeError(c, err, "未読件数の取得に失敗しました")
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": n})
	}
}

// handleGet は指定された通知を返すハンドラ。既読状態は変更しない。
func (s *Server) handleGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUserID(c)
		if !ok {
			return
		}

		rec, err := s.ledger.Get(c.Request.Context(), userID, c.Param("id"))
		if err != nil {
			writeError(c, err, "通知の取得に失敗しました")
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

// handleMarkRead は指定された通知を既読にし、更新後の通知を返すハンドラ。
func (s *Server) handleMarkRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUserID(c)
		if !ok {
			return
		}

		rec, err := s.ledger.MarkRead(c.Request.Context(), userID, c.Param("id"))
		if err != nil {
			writeError(c, err, "通知の既読処理に失敗しました")
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

// handleMarkAllRead は認証済みユーザーの全通知を既読にするハンドラ。
func (s *Server) handleMarkAllRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUserID(c)
		if !ok {
			return
		}

		n, err := s.ledger.MarkAllRead(c.Request.Context(), userID)
		if err != nil {
			writeError(c, err, "全通知の既読処理に失敗しました")
			return
		}
		c.JSON(http.StatusOK, gin.H{"updated": n})
	}
}

// handleDeleteAllRead は認証済みユーザーの既読通知をすべて削除するハンドラ。
func (s *Server) handleDeleteAllRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUserID(c)
		if !ok {
			return
		}

		n, err := s.ledger.DeleteAllRead(c.Request.Context(), userID)
		if err != nil {
			writeError(c, err, "既読通知の削除に失敗しました")
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": n})
	}
}

// handleGetPreferences は認証済みユーザーの通知設定を返すハンドラ。
func (s *Server) handleGetPreferences() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUserID(c)
		if !ok {
			return
		}

		prefs, err := s.prefs.Get(c.Request.Context(), userID)
		if err != nil {
			writeError(c, err, "通知設定の取得に失敗しました")
			return
		}
		c.JSON(http.StatusOK, prefs)
	}
}

// handleUpdatePreferences は部分的な通知設定をマージして保存するハンドラ。
// ボディは {"settings": {...}} と設定マップそのものの両方を受け付ける。
func (s *Server) handleUpdatePreferences() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUserID(c)
		if !ok {
			return
		}

		var raw map[string]json.RawMessage
		if err := c.ShouldBindJSON(&raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}
		partial, err := decodeSettings(raw)
		if err != nil {
			writeError(c, err, "")
			return
		}

		prefs, err := s.prefs.Update(c.Request.Context(), userID, partial)
		if err != nil {
			writeError(c, err, "通知設定の更新に失敗しました")
			return
		}
		c.JSON(http.StatusOK, prefs)
	}
}

// decodeSettings は設定更新リクエストのボディを種別ごとの真偽値に変換する。
func decodeSettings(raw map[string]json.RawMessage) (map[string]bool, error) {
	if inner, ok := raw["settings"]; ok && len(raw) == 1 {
		var settings map[string]json.RawMessage
		if err := json.Unmarshal(inner, &settings); err != nil {
			return nil, fmt.Errorf("%w: settingsはオブジェクトである必要があります", ErrValidation)
		}
		raw = settings
	}

	partial := make(map[string]bool, len(raw))
	for k, v := range raw {
		var enabled bool
		if err := json.Unmarshal(v, &enabled); err != nil {
			return nil, fmt.Errorf("%w: %sの値は真偽値である必要があります", ErrValidation, k)
		}
		partial[k] = enabled
	}
	return partial, nil
}

// createRequest は通知作成リクエストのJSON構造。
type createRequest struct {
	// RecipientID は通知先のユーザーID。
	RecipientID string `json:"recipient_id" binding:"required"`
	// Type は通知の種別。
	Type string `json:"type" binding:"required"`
	// Data は通知のペイロード（文字列またはオブジェクト）。
	Data notice.Payload `json:"data"`
	// Link はクライアントの遷移先。
	Link string `json:"link"`
}

// handleCreate は通知を作成するハンドラ。内部API。
// 受信者が種別を無効化している場合は何も作成せず created=false を返す。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		rec, err := s.ledger.Create(c.Request.Context(), req.RecipientID, req.Type, req.Data, req.Link)
		if err != nil {
			writeError(c, err, "通知の作成に失敗しました")
			return
		}
		if rec == nil {
			c.JSON(http.StatusAccepted, gin.H{"created": false})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"created": true, "notification": rec})
	}
}
