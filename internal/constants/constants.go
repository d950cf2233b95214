package constants

// 时间格式常量
const (
	// TimeFormatDate 到期日展示格式 (YYYY-MM-DD)
	TimeFormatDate = "2006-01-02"
)

// Redis Key 前缀常量
const (
	// RedisKeyPayPalToken PayPal access token 缓存 key 前缀
	RedisKeyPayPalToken = "paypal:access_token:"
	// RedisKeyOrderSweepLock 过期订单巡检锁
	RedisKeyOrderSweepLock = "order:sweep:lock"
)

// 订单状态常量
const (
	// OrderStatusCreated 已创建，等待付款
	OrderStatusCreated = "CREATED"
	// OrderStatusDelivered 已付款并已发放兑换码
	OrderStatusDelivered = "DELIVERED"
)

// ID 前缀常量
const (
	// OrderIDPrefix 本地订单号前缀
	OrderIDPrefix = "ORD-"
	// RedemptionCodePrefix 兑换码前缀
	RedemptionCodePrefix = "ABO-"
	// RedemptionCodeLength 兑换码随机部分长度
	RedemptionCodeLength = 16
)

// PayPal 相关常量
const (
	// PayPalEventCaptureCompleted 付款捕获完成事件
	PayPalEventCaptureCompleted = "PAYMENT.CAPTURE.COMPLETED"
	// PayPalVerificationSuccess 签名校验成功状态
	PayPalVerificationSuccess = "SUCCESS"
	// PayPalIntentCapture 订单意图
	PayPalIntentCapture = "CAPTURE"
	// PayPalUserActionPayNow 付款页按钮行为
	PayPalUserActionPayNow = "PAY_NOW"
)

// PayPal webhook 签名头
const (
	HeaderPayPalAuthAlgo         = "PAYPAL-AUTH-ALGO"
	HeaderPayPalCertURL          = "PAYPAL-CERT-URL"
	HeaderPayPalTransmissionID   = "PAYPAL-TRANSMISSION-ID"
	HeaderPayPalTransmissionSig  = "PAYPAL-TRANSMISSION-SIG"
	HeaderPayPalTransmissionTime = "PAYPAL-TRANSMISSION-TIME"
)

// 网关操作名（用于指标）
const (
	GatewayOpToken         = "token"
	GatewayOpCreateOrder   = "create_order"
	GatewayOpGetOrder      = "get_order"
	GatewayOpVerifyWebhook = "verify_webhook"
)

// 通用结果标签（用于指标）
const (
	ResultSuccess = "success"
	ResultFailed  = "failed"
	ResultSkipped = "skipped"
)

// 下单结果标签（用于指标）
const (
	CreateResultCreated            = "created"
	CreateResultInvalid            = "invalid"
	CreateResultGatewayUnavailable = "gateway_unavailable"
	CreateResultStoreFailed        = "store_failed"
)

// 默认值
const (
	// DefaultCurrency 默认币种
	DefaultCurrency = "EUR"
	// DefaultPlanDurationDays 套餐配置缺失时的兜底天数
	DefaultPlanDurationDays = 30
	// BotCommandLast 查询最近兑换码的机器人指令
	BotCommandLast = "!last"
)
