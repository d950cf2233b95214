package service

import (
	"bytes"
	"context"
	"encoding/json"
	stdhttp "net/http"
	"strings"

	"access-service/internal/biz"
	"access-service/internal/constants"

	pkgUtils "github.com/gaoyong06/go-pkg/utils"
	"github.com/go-kratos/kratos/v2/log"
)

// 落地页文案
const (
	HomeText   = "API OK ✅"
	ReturnText = "Paiement validé ✅ Tu peux retourner sur Discord."
	CancelText = "Paiement annulé ❌ Tu peux retourner sur Discord."
)

// RecipientID 接受字符串或数字形式的 Discord 用户 ID
type RecipientID string

// UnmarshalJSON 兼容 "123..." 与 123... 两种写法，数字按原文保留避免精度丢失
func (r *RecipientID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*r = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = RecipientID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*r = RecipientID(n.String())
	return nil
}

// CreateOrderRequest 下单请求，discord_user_id 为旧字段名
type CreateOrderRequest struct {
	Plan          string      `json:"plan"`
	RecipientID   RecipientID `json:"recipient_id"`
	DiscordUserID RecipientID `json:"discord_user_id"`
}

// Recipient 优先使用 recipient_id
func (r *CreateOrderRequest) Recipient() string {
	if id := strings.TrimSpace(string(r.RecipientID)); id != "" {
		return id
	}
	return strings.TrimSpace(string(r.DiscordUserID))
}

// CreateOrderReply 下单响应
type CreateOrderReply struct {
	OrderID       string `json:"order_id"`
	PaypalOrderID string `json:"paypal_order_id"`
	ApprovalURL   string `json:"approval_url"`
}

// OrderService 面向 Discord 机器人与 PayPal 的订单服务
type OrderService struct {
	uc  *biz.OrderUseCase
	log *log.Helper
}

// NewOrderService 创建 OrderService
func NewOrderService(uc *biz.OrderUseCase, logger log.Logger) *OrderService {
	return &OrderService{
		uc:  uc,
		log: log.NewHelper(logger),
	}
}

// CreateOrder 创建订单并返回 PayPal 付款链接
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderReply, error) {
	result, err := s.uc.CreateOrder(ctx, req.Plan, req.Recipient())
	if err != nil {
		s.log.Errorf("CreateOrder failed: plan=%s, error=%v", req.Plan, err)
		return nil, err
	}
	return &CreateOrderReply{
		OrderID:       result.OrderID,
		PaypalOrderID: result.RemoteOrderID,
		ApprovalURL:   result.ApprovalURL,
	}, nil
}

// HandleWebhook 处理 PayPal webhook，只有签名校验失败时返回错误
func (s *OrderService) HandleWebhook(ctx context.Context, body []byte, header stdhttp.Header) error {
	outcome, err := s.uc.HandlePaymentEvent(ctx, body, header)
	if err != nil {
		// 签名失败需要运维排查，记录来源 IP
		s.log.Warnf("paypal webhook rejected: outcome=%s, transmission_id=%s, client_ip=%s",
			outcome, header.Get(constants.HeaderPayPalTransmissionID), pkgUtils.GetClientIP(ctx))
		return err
	}
	s.log.Debugf("paypal webhook handled: outcome=%s", outcome)
	return nil
}
