// Package metrics 提供 Prometheus 监控指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 网关请求指标
var (
	APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "miniapp_api_requests_total",
		Help: "Total signed API requests by path and outcome",
	}, []string{"path", "outcome"}) // outcome: ok, transport_error, http_error

	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "miniapp_api_request_duration_seconds",
		Help:    "Signed API request duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"path"})

	PaymentRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "miniapp_payment_requests_total",
		Help: "Total payment side-channel requests",
	})
)

// 登录指标
var (
	LoginAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "miniapp_login_attempts_total",
		Help: "Total login sequences started",
	})

	LoginResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "miniapp_login_results_total",
		Help: "Login sequence results",
	}, []string{"result"}) // resolved, failed, cached, shared

	LoginWaiters = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "miniapp_login_waiters",
		Help: "Callers currently waiting on an in-flight login",
	})
)

// 实时消息指标
var (
	ChatMessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "miniapp_chat_messages_sent_total",
		Help: "Outbound chat messages by result",
	}, []string{"result"}) // ok, rejected, not_joined

	ChatMessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "miniapp_chat_messages_received_total",
		Help: "Inbound chat messages by element type",
	}, []string{"type"}) // text, group_tip, unknown

	ChatConnectionEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "miniapp_chat_connection_events_total",
		Help: "Connection status notifications by event",
	}, []string{"event"}) // connect, disconnect, unknown

	ChatRoomJoins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "miniapp_chat_room_joins_total",
		Help: "Room join attempts by result",
	}, []string{"result"}) // ok, rejected, already_joined
)
