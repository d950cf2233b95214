package biz

import (
	"strings"
	"time"

	"access-service/internal/conf"
	"access-service/internal/constants"

	"github.com/shopspring/decimal"
)

// Plan 套餐
type Plan struct {
	Code         string
	Price        decimal.Decimal
	DurationDays int
}

// ShopConfig 售卖配置
type ShopConfig struct {
	Plans          map[string]Plan
	Currency       string
	BrandName      string
	PublicBaseURL  string
	WebhookID      string        // PayPal webhook id，用于签名校验
	GatewayTimeout time.Duration // 单次支付网关调用超时
	NotifyTimeout  time.Duration // 单次私信投递超时
	StaleAfter     time.Duration // 超过该时长仍未付款的订单视为滞留
	SweepLimit     int
}

// DefaultPlans 默认套餐价目表
func DefaultPlans() map[string]Plan {
	return map[string]Plan{
		"1mois":  {Code: "1mois", Price: decimal.RequireFromString("10.00"), DurationDays: 30},
		"3mois":  {Code: "3mois", Price: decimal.RequireFromString("25.00"), DurationDays: 90},
		"6mois":  {Code: "6mois", Price: decimal.RequireFromString("45.00"), DurationDays: 180},
		"12mois": {Code: "12mois", Price: decimal.RequireFromString("70.00"), DurationDays: 365},
	}
}

// NewShopConfig 从配置创建 ShopConfig
func NewShopConfig(c *conf.Bootstrap) *ShopConfig {
	config := &ShopConfig{
		Plans:          DefaultPlans(),
		Currency:       constants.DefaultCurrency,
		BrandName:      "Abonnement",
		GatewayTimeout: 15 * time.Second,
		NotifyTimeout:  10 * time.Second,
		StaleAfter:     24 * time.Hour,
		SweepLimit:     500,
	}
	if c == nil {
		return config
	}
	if c.Shop != nil {
		if len(c.Shop.Plans) > 0 {
			// 配置了价目表则整体替换默认值
			config.Plans = make(map[string]Plan, len(c.Shop.Plans))
			for _, p := range c.Shop.Plans {
				price, err := decimal.NewFromString(p.Price)
				if err != nil || p.DurationDays <= 0 {
					continue
				}
				config.Plans[p.Code] = Plan{Code: p.Code, Price: price.Round(2), DurationDays: p.DurationDays}
			}
		}
		if c.Shop.Currency != "" {
			config.Currency = strings.ToUpper(c.Shop.Currency)
		}
		if c.Shop.BrandName != "" {
			config.BrandName = c.Shop.BrandName
		}
		config.PublicBaseURL = strings.TrimRight(c.Shop.PublicBaseURL, "/")
		config.GatewayTimeout = conf.ParseDuration(c.Shop.GatewayTimeout, config.GatewayTimeout)
		config.NotifyTimeout = conf.ParseDuration(c.Shop.NotifyTimeout, config.NotifyTimeout)
	}
	if c.PayPal != nil {
		config.WebhookID = c.PayPal.WebhookID
	}
	if c.Cron != nil {
		config.StaleAfter = conf.ParseDuration(c.Cron.StaleAfter, config.StaleAfter)
		if c.Cron.SweepLimit > 0 {
			config.SweepLimit = c.Cron.SweepLimit
		}
	}
	return config
}

// Plan 按套餐代码查找
func (c *ShopConfig) Plan(code string) (Plan, bool) {
	p, ok := c.Plans[code]
	return p, ok
}

// ReturnURL 买家付款完成后的回跳地址
func (c *ShopConfig) ReturnURL() string {
	return c.PublicBaseURL + "/paypal/return"
}

// CancelURL 买家取消付款后的回跳地址
func (c *ShopConfig) CancelURL() string {
	return c.PublicBaseURL + "/paypal/cancel"
}
