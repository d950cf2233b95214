package biz

import (
	"context"
	"fmt"
	"time"

	"access-service/internal/constants"
)

// Notifier 买家通知渠道（Discord 私信）
type Notifier interface {
	Deliver(ctx context.Context, recipientID, content string) error
}

// OrderEventPublisher 发码事件发布接口（RocketMQ）
type OrderEventPublisher interface {
	PublishOrderDelivered(ctx context.Context, event *OrderDeliveredEvent) error
}

// OrderDeliveredEvent is the message published to RocketMQ once an order is fulfilled.
// It never carries the redemption code.
type OrderDeliveredEvent struct {
	OrderID          string    `json:"order_id"`
	RemoteOrderID    string    `json:"paypal_order_id"`
	RecipientID      string    `json:"recipient_id"`
	Plan             string    `json:"plan"`
	Amount           string    `json:"amount"`
	Currency         string    `json:"currency"`
	ExpiresAt        time.Time `json:"expires_at"`
	NotificationSent bool      `json:"notification_sent"`
	DeliveredAt      time.Time `json:"delivered_at"`
}

// DeliveryMessage 发码私信内容
func DeliveryMessage(plan, code string, expiresAt time.Time) string {
	return fmt.Sprintf(
		"✅ Paiement confirmé\n📦 Formule : %s\n🔐 Code : `%s`\n📅 Expire le : %s\n\nSi tu as besoin d’aide, réponds ici.",
		plan, code, expiresAt.Format(constants.TimeFormatDate),
	)
}

// LastCodeMessage !last 指令回复内容
func LastCodeMessage(code string, expiresAt time.Time) string {
	return fmt.Sprintf("🔐 Ta dernière clé : `%s`\n📅 Expire le : %s", code, expiresAt.Format(constants.TimeFormatDate))
}

// NoCodeMessage 买家没有任何已发码订单
const NoCodeMessage = "❌ Aucune clé trouvée."
