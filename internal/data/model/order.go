package model

import (
	"time"

	"access-service/internal/constants"

	"github.com/shopspring/decimal"
)

// 订单状态常量（引用 constants 包中的常量，保持一致性）
const (
	OrderStatusCreated   = constants.OrderStatusCreated   // 待付款
	OrderStatusDelivered = constants.OrderStatusDelivered // 已发码
)

// Order 订单表
type Order struct {
	OrderID       string          `gorm:"primaryKey;type:varchar(64)"`
	PaypalOrderID string          `gorm:"type:varchar(64);not null;uniqueIndex"`
	RecipientID   string          `gorm:"type:varchar(32);not null;index:idx_recipient_status,priority:1"`
	Plan          string          `gorm:"type:varchar(32);not null"`
	Amount        decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Currency      string          `gorm:"type:varchar(3);not null"`
	Status        string          `gorm:"type:varchar(16);not null;default:'CREATED';index:idx_recipient_status,priority:2;index:idx_status_created,priority:1"`
	// 兑换码、到期时间与发码时间在发码前均为 NULL
	Code          *string         `gorm:"type:varchar(32)"`
	ExpiresAt     *time.Time
	DeliveredAt   *time.Time      `gorm:"index:idx_recipient_status,priority:3"`
	CreatedAt     time.Time       `gorm:"autoCreateTime;index:idx_status_created,priority:2"`
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}
