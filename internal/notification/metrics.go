package notification

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifyhub_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notifyhub_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "path"},
	)

	// Ledger metrics
	notificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifyhub_notifications_created_total",
			Help: "Notifications written to the ledger",
		},
		[]string{"type"},
	)

	notificationsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifyhub_notifications_suppressed_total",
			Help: "Notifications dropped by the preferences gate",
		},
		[]string{"type", "reason"},
	)

	notificationsMarkedRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifyhub_notifications_marked_read_total",
			Help: "Notifications transitioned to read by bulk mark-read",
		},
	)

	notificationsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifyhub_notifications_deleted_total",
			Help: "Read notifications removed by delete-all-read",
		},
	)

	// Consumer metrics
	consumerMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifyhub_consumer_messages_total",
			Help: "NotificationRequested messages handled by the AMQP consumer",
		},
		[]string{"result"},
	)
)

// metricsMiddleware はリクエスト数と処理時間を記録するGinミドルウェアを返す。
// パスはルート定義（例: /api/notifications/:id/read）で集計する。
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
