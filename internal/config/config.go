// Package config は通知サービスの設定を環境変数から読み込む。
//
// カレントディレクトリに .env があれば先に読み込み、既に設定済みの環境変数は上書きしない。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/nao1215/notifyhub/pkg/notice"
)

// Config は通知サービスの設定。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string
	// DatabasePath はSQLiteデータベースのパスまたはDSN。
	DatabasePath string
	// JWTSecret はJWT署名検証用の秘密鍵。
	JWTSecret string
	// InternalToken は内部API（通知作成）の呼び出しに必要な共有トークン。
	InternalToken string
	// NotificationTypes はデプロイメントで有効な通知種別の語彙。
	NotificationTypes []string
	// PageLimitMax は一覧取得1回あたりの最大件数。
	PageLimitMax int
	// PreferencesCacheTTL は通知設定キャッシュの有効期間。0でキャッシュしない。
	PreferencesCacheTTL time.Duration
	// FrontendURL はCORSで許可するフロントエンドのオリジン。
	FrontendURL string
	// AMQP は通知作成イベントの受信設定。
	AMQP AMQPConfig
}

// AMQPConfig はRabbitMQから通知作成イベントを受信するための設定。
type AMQPConfig struct {
	// URL は接続先。空の場合はコンシューマーを起動しない。
	URL string
	// Exchange はtopic型のエクスチェンジ名。
	Exchange string
	// Queue は永続キュー名。
	Queue string
	// RoutingKey はキューをバインドするルーティングキー。
	RoutingKey string
	// Workers はメッセージを処理するワーカー数。
	Workers int
}

// Enabled はAMQPコンシューマーを起動するかどうかを返す。
func (c AMQPConfig) Enabled() bool {
	return c.URL != ""
}

// Load は .env と環境変数から設定を読み込む。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf(".envの読み込みに失敗: %w", err)
	}
	return FromEnv()
}

// FromEnv は環境変数のみから設定を組み立てる。
func FromEnv() (*Config, error) {
	limit, err := getIntOr("PAGE_LIMIT_MAX", 25)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("PAGE_LIMIT_MAX は正の整数である必要があります: %d", limit)
	}

	ttl, err := time.ParseDuration(getEnvOr("PREFERENCES_CACHE_TTL", "30s"))
	if err != nil {
		return nil, fmt.Errorf("PREFERENCES_CACHE_TTL の解析に失敗: %w", err)
	}

	workers, err := getIntOr("AMQP_WORKERS", 4)
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:                getEnvOr("PORT", "8086"),
		DatabasePath:        getEnvOr("DATABASE_PATH", "/data/notification.db"),
		JWTSecret:           getEnvOr("JWT_SECRET", "dev-secret-key"),
		InternalToken:       getEnvOr("INTERNAL_TOKEN", "dev-internal-token"),
		NotificationTypes:   splitList(getEnvOr("NOTIFICATION_TYPES", strings.Join(notice.DefaultTypes(), ","))),
		PageLimitMax:        limit,
		PreferencesCacheTTL: ttl,
		FrontendURL:         getEnvOr("FRONTEND_URL", "http://localhost:3000"),
		AMQP: AMQPConfig{
			URL:        os.Getenv("AMQP_URL"),
			Exchange:   getEnvOr("AMQP_EXCHANGE", "notifications"),
			Queue:      getEnvOr("AMQP_QUEUE", "notification.requests"),
			RoutingKey: getEnvOr("AMQP_ROUTING_KEY", "notification.requested"),
			Workers:    max(workers, 1),
		},
	}, nil
}

// getEnvOr は環境変数の値を返す。未設定または空の場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getIntOr(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s の解析に失敗: %w", key, err)
	}
	return n, nil
}

// splitList はカンマ区切りの文字列を空要素と重複を除いて分割する。
func splitList(s string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, ok := seen[part]; ok {
			continue
		}
		seen[part] = struct{}{}
		out = append(out, part)
	}
	return out
}
