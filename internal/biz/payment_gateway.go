package biz

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// PaymentGateway 支付网关客户端接口（PayPal）
type PaymentGateway interface {
	CreateOrder(ctx context.Context, req *CreateRemoteOrderRequest) (*RemoteOrder, error)
	GetOrder(ctx context.Context, remoteOrderID string) (*RemoteOrder, error)
	VerifyWebhookSignature(ctx context.Context, req *WebhookSignatureRequest) (bool, error)
}

// CreateRemoteOrderRequest 创建网关订单请求
type CreateRemoteOrderRequest struct {
	CorrelationID string // 本地订单号，原样回传于订单详情
	Amount        decimal.Decimal
	Currency      string
	Description   string
	BrandName     string
	ReturnURL     string
	CancelURL     string
}

// RemoteOrder 网关订单
type RemoteOrder struct {
	ID            string
	Status        string
	ApproveURL    string // 仅创建时返回
	CorrelationID string // 仅查询详情时返回
}

// WebhookSignatureRequest webhook 签名校验请求
type WebhookSignatureRequest struct {
	AuthAlgo         string
	CertURL          string
	TransmissionID   string
	TransmissionSig  string
	TransmissionTime string
	WebhookID        string
	Event            json.RawMessage
}
