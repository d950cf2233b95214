package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// AccessMetrics 订单与发码服务指标
type AccessMetrics struct {
	// 下单相关指标
	OrderCreateTotal    *prometheus.CounterVec // 下单总数（按结果）
	OrderCreateDuration prometheus.Histogram   // 下单耗时

	// webhook 相关指标
	WebhookEventTotal *prometheus.CounterVec // webhook 事件总数（按处理结果）
	WebhookDuration   prometheus.Histogram   // webhook 处理耗时

	// 通知相关指标
	NotificationTotal *prometheus.CounterVec // 私信投递总数（按结果）
	EventPublishTotal *prometheus.CounterVec // 发码事件发布总数（按结果）

	// 支付网关相关指标
	GatewayRequestTotal    *prometheus.CounterVec   // 网关调用总数（按操作、结果）
	GatewayRequestDuration *prometheus.HistogramVec // 网关调用耗时

	// 巡检相关指标
	StaleOrders prometheus.Gauge // 长时间未付款的订单数

	// 分布式锁相关指标
	LockAcquireTotal *prometheus.CounterVec // 锁获取总数（按结果）
}

// NewAccessMetrics 创建服务指标
func NewAccessMetrics() *AccessMetrics {
	return &AccessMetrics{
		OrderCreateTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "access_order_create_total",
				Help: "Total number of order creation attempts",
			},
			[]string{"result"}, // result: created/invalid/gateway_unavailable/store_failed
		),
		OrderCreateDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "access_order_create_duration_seconds",
				Help:    "Duration of order creation",
				Buckets: prometheus.DefBuckets,
			},
		),

		WebhookEventTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "access_webhook_event_total",
				Help: "Total number of payment webhook events by outcome",
			},
			[]string{"outcome"},
		),
		WebhookDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "access_webhook_duration_seconds",
				Help:    "Duration of payment webhook handling",
				Buckets: prometheus.DefBuckets,
			},
		),

		NotificationTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "access_notification_total",
				Help: "Total number of delivery notifications",
			},
			[]string{"result"}, // result: success/failed
		),
		EventPublishTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "access_event_publish_total",
				Help: "Total number of order delivered events published",
			},
			[]string{"result"}, // result: success/failed/skipped
		),

		GatewayRequestTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "access_gateway_request_total",
				Help: "Total number of payment gateway requests",
			},
			[]string{"operation", "result"},
		),
		GatewayRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "access_gateway_request_duration_seconds",
				Help:    "Duration of payment gateway requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		StaleOrders: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "access_stale_orders",
				Help: "Number of orders still awaiting payment past the stale threshold",
			},
		),

		LockAcquireTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "access_lock_acquire_total",
				Help: "Total number of lock acquisition attempts",
			},
			[]string{"result"}, // result: success/failed
		),
	}
}

var (
	defaultMetrics *AccessMetrics
	once           sync.Once
)

// GetMetrics 获取全局指标实例（promauto 注册到默认 registry，只能创建一次）
func GetMetrics() *AccessMetrics {
	once.Do(func() {
		defaultMetrics = NewAccessMetrics()
	})
	return defaultMetrics
}
