package biz

import (
	"context"
	"time"

	"access-service/internal/constants"
	accessErrors "access-service/internal/errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrOrderNotFound 本地订单不存在
	ErrOrderNotFound = accessErrors.OrderNotFound("order not found")
	// ErrDuplicateOrderID 订单号已存在
	ErrDuplicateOrderID = accessErrors.DuplicateOrderID("order id already exists")
)

// Order 订单领域对象
type Order struct {
	OrderID        string          // 本地订单号（同时作为 PayPal 侧的关联标识）
	RemoteOrderID  string          // PayPal 订单号
	RecipientID    string          // 买家 Discord 用户 ID
	Plan           string          // 套餐代码
	Amount         decimal.Decimal // 金额，下单时按价目表确定
	Currency       string
	Status         string     // CREATED / DELIVERED
	RedemptionCode string     // DELIVERED 前为空
	ExpiresAt      *time.Time // DELIVERED 前为 nil
	DeliveredAt    *time.Time // 发码时间，DELIVERED 前为 nil
	CreatedAt      time.Time
}

// Delivered 是否已发码
func (o *Order) Delivered() bool {
	return o.Status == constants.OrderStatusDelivered
}

// OrderRepo 订单数据层接口（定义在 biz 层）
type OrderRepo interface {
	// Insert 写入新订单，订单号已存在时返回 ErrDuplicateOrderID
	Insert(ctx context.Context, order *Order) error
	// GetByLocalID 按本地订单号查询，不存在时返回 ErrOrderNotFound
	GetByLocalID(ctx context.Context, orderID string) (*Order, error)
	// CompareAndSetDelivered 仅当当前状态等于 expectedStatus 时写入兑换码和到期时间，
	// 返回是否由本次调用完成状态迁移
	CompareAndSetDelivered(ctx context.Context, orderID, expectedStatus, code string, expiresAt time.Time) (bool, error)
	// LatestDelivered 查询某个买家最近一笔已发码订单，不存在时返回 ErrOrderNotFound
	LatestDelivered(ctx context.Context, recipientID string) (*Order, error)
	// ListStale 查询指定状态且创建时间早于 before 的订单
	ListStale(ctx context.Context, status string, before time.Time, limit int) ([]*Order, error)
}
