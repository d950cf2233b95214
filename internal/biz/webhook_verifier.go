package biz

import (
	"context"
	"encoding/json"
	"net/http"

	"access-service/internal/constants"

	"github.com/go-kratos/kratos/v2/log"
)

// WebhookVerifier 通过 PayPal verify-webhook-signature 接口校验事件来源。
// 任何缺失或异常都视为校验失败。
type WebhookVerifier struct {
	gateway PaymentGateway
	conf    *ShopConfig
	log     *log.Helper
}

// NewWebhookVerifier 创建 webhook 校验器
func NewWebhookVerifier(gateway PaymentGateway, conf *ShopConfig, logger log.Logger) *WebhookVerifier {
	return &WebhookVerifier{
		gateway: gateway,
		conf:    conf,
		log:     log.NewHelper(logger),
	}
}

// Verify 校验 webhook 签名，只返回真假
func (v *WebhookVerifier) Verify(ctx context.Context, rawEvent []byte, headers http.Header) bool {
	if v.conf.WebhookID == "" {
		v.log.Warn("webhook id not configured, rejecting event")
		return false
	}
	req := &WebhookSignatureRequest{
		AuthAlgo:         headers.Get(constants.HeaderPayPalAuthAlgo),
		CertURL:          headers.Get(constants.HeaderPayPalCertURL),
		TransmissionID:   headers.Get(constants.HeaderPayPalTransmissionID),
		TransmissionSig:  headers.Get(constants.HeaderPayPalTransmissionSig),
		TransmissionTime: headers.Get(constants.HeaderPayPalTransmissionTime),
		WebhookID:        v.conf.WebhookID,
	}
	if req.AuthAlgo == "" || req.CertURL == "" || req.TransmissionID == "" || req.TransmissionSig == "" || req.TransmissionTime == "" {
		v.log.Warnf("webhook signature headers missing: transmission_id=%q", req.TransmissionID)
		return false
	}
	if !json.Valid(rawEvent) {
		v.log.Warnf("webhook payload is not valid json: transmission_id=%s", req.TransmissionID)
		return false
	}
	req.Event = json.RawMessage(rawEvent)

	verifyCtx, cancel := context.WithTimeout(ctx, v.conf.GatewayTimeout)
	defer cancel()
	ok, err := v.gateway.VerifyWebhookSignature(verifyCtx, req)
	if err != nil {
		v.log.Errorf("VerifyWebhookSignature failed: transmission_id=%s, error=%v", req.TransmissionID, err)
		return false
	}
	return ok
}
