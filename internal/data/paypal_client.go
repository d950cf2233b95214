package data

import (
	"context"
	"encoding/json"
	"fmt"
	stdhttp "net/http"
	"net/url"
	"strings"
	"time"

	"access-service/internal/biz"
	"access-service/internal/conf"
	"access-service/internal/constants"
	accessErrors "access-service/internal/errors"
	"access-service/internal/metrics"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// token 提前过期的余量
const tokenExpiryMargin = 60 * time.Second

// PayPal REST 报文
type paypalAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalPurchaseUnit struct {
	ReferenceID string        `json:"reference_id,omitempty"`
	InvoiceID   string        `json:"invoice_id,omitempty"`
	CustomID    string        `json:"custom_id,omitempty"`
	Description string        `json:"description,omitempty"`
	Amount      *paypalAmount `json:"amount,omitempty"`
}

type paypalApplicationContext struct {
	BrandName  string `json:"brand_name,omitempty"`
	UserAction string `json:"user_action,omitempty"`
	ReturnURL  string `json:"return_url,omitempty"`
	CancelURL  string `json:"cancel_url,omitempty"`
}

type paypalCreateOrderRequest struct {
	Intent             string                    `json:"intent"`
	PurchaseUnits      []paypalPurchaseUnit      `json:"purchase_units"`
	ApplicationContext *paypalApplicationContext `json:"application_context,omitempty"`
}

type paypalLink struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

type paypalOrder struct {
	ID            string               `json:"id"`
	Status        string               `json:"status"`
	PurchaseUnits []paypalPurchaseUnit `json:"purchase_units"`
	Links         []paypalLink         `json:"links"`
}

type paypalTokenReply struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type paypalVerifyRequest struct {
	AuthAlgo         string          `json:"auth_algo"`
	CertURL          string          `json:"cert_url"`
	TransmissionID   string          `json:"transmission_id"`
	TransmissionSig  string          `json:"transmission_sig"`
	TransmissionTime string          `json:"transmission_time"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

type paypalVerifyReply struct {
	VerificationStatus string `json:"verification_status"`
}

// paypalClient PayPal REST 客户端（实现 biz.PaymentGateway）
type paypalClient struct {
	conf    *conf.PayPal
	baseURL string
	client  *http.Client
	data    *Data
	log     *log.Helper
	metrics *metrics.AccessMetrics
}

// NewPayPalClient 创建 PayPal 客户端
func NewPayPalClient(c *conf.Bootstrap, data *Data, logger log.Logger) (biz.PaymentGateway, func(), error) {
	if c.PayPal == nil || c.PayPal.BaseURL == "" {
		return nil, nil, pkgErrors.NewBizErrorWithLang(context.Background(), accessErrors.ErrCodePayPalConfigNil)
	}

	p := &paypalClient{
		conf:    c.PayPal,
		baseURL: strings.TrimRight(c.PayPal.BaseURL, "/"),
		data:    data,
		log:     log.NewHelper(logger),
		metrics: metrics.GetMetrics(),
	}

	client, err := http.NewClient(
		context.Background(),
		http.WithEndpoint(p.baseURL),
		http.WithTimeout(conf.ParseDuration(c.PayPal.Timeout, 15*time.Second)),
		http.WithMiddleware(
			recovery.Recovery(),
			p.bearerAuth(),
		),
	)
	if err != nil {
		return nil, nil, err
	}
	p.client = client

	cleanup := func() {
		if err := client.Close(); err != nil {
			p.log.Warnf("failed to close paypal client: %v", err)
		}
	}
	return p, cleanup, nil
}

// CreateOrder 创建 PayPal 订单，本地订单号写入 reference_id / invoice_id / custom_id
func (p *paypalClient) CreateOrder(ctx context.Context, req *biz.CreateRemoteOrderRequest) (*biz.RemoteOrder, error) {
	startTime := time.Now()
	body := &paypalCreateOrderRequest{
		Intent: constants.PayPalIntentCapture,
		PurchaseUnits: []paypalPurchaseUnit{{
			ReferenceID: req.CorrelationID,
			InvoiceID:   req.CorrelationID,
			CustomID:    req.CorrelationID,
			Description: req.Description,
			Amount: &paypalAmount{
				CurrencyCode: req.Currency,
				Value:        req.Amount.StringFixed(2),
			},
		}},
		ApplicationContext: &paypalApplicationContext{
			BrandName:  req.BrandName,
			UserAction: constants.PayPalUserActionPayNow,
			ReturnURL:  req.ReturnURL,
			CancelURL:  req.CancelURL,
		},
	}

	var reply paypalOrder
	err := p.client.Invoke(ctx, stdhttp.MethodPost, "/v2/checkout/orders", body, &reply, http.Operation(constants.GatewayOpCreateOrder))
	p.observe(constants.GatewayOpCreateOrder, startTime, err)
	if err != nil {
		p.onRequestError(ctx, err)
		return nil, pkgErrors.WrapErrorWithLang(ctx, err, accessErrors.ErrCodePayPalRequestFailed)
	}

	return &biz.RemoteOrder{
		ID:         reply.ID,
		Status:     reply.Status,
		ApproveURL: approveLink(reply.Links),
	}, nil
}

// GetOrder 查询 PayPal 订单详情，取回创建时写入的本地订单号
func (p *paypalClient) GetOrder(ctx context.Context, remoteOrderID string) (*biz.RemoteOrder, error) {
	startTime := time.Now()
	var reply paypalOrder
	path := "/v2/checkout/orders/" + url.PathEscape(remoteOrderID)
	err := p.client.Invoke(ctx, stdhttp.MethodGet, path, nil, &reply, http.Operation(constants.GatewayOpGetOrder))
	p.observe(constants.GatewayOpGetOrder, startTime, err)
	if err != nil {
		p.onRequestError(ctx, err)
		return nil, pkgErrors.WrapErrorWithLang(ctx, err, accessErrors.ErrCodePayPalRequestFailed)
	}

	remote := &biz.RemoteOrder{ID: reply.ID, Status: reply.Status}
	if len(reply.PurchaseUnits) > 0 {
		pu := reply.PurchaseUnits[0]
		switch {
		case pu.InvoiceID != "":
			remote.CorrelationID = pu.InvoiceID
		case pu.CustomID != "":
			remote.CorrelationID = pu.CustomID
		default:
			remote.CorrelationID = pu.ReferenceID
		}
	}
	return remote, nil
}

// VerifyWebhookSignature 调用 PayPal 校验 webhook 签名
func (p *paypalClient) VerifyWebhookSignature(ctx context.Context, req *biz.WebhookSignatureRequest) (bool, error) {
	startTime := time.Now()
	body := &paypalVerifyRequest{
		AuthAlgo:         req.AuthAlgo,
		CertURL:          req.CertURL,
		TransmissionID:   req.TransmissionID,
		TransmissionSig:  req.TransmissionSig,
		TransmissionTime: req.TransmissionTime,
		WebhookID:        req.WebhookID,
		WebhookEvent:     req.Event,
	}
	var reply paypalVerifyReply
	err := p.client.Invoke(ctx, stdhttp.MethodPost, "/v1/notifications/verify-webhook-signature", body, &reply, http.Operation(constants.GatewayOpVerifyWebhook))
	p.observe(constants.GatewayOpVerifyWebhook, startTime, err)
	if err != nil {
		p.onRequestError(ctx, err)
		return false, pkgErrors.WrapErrorWithLang(ctx, err, accessErrors.ErrCodePayPalRequestFailed)
	}
	return reply.VerificationStatus == constants.PayPalVerificationSuccess, nil
}

// bearerAuth 客户端中间件：为每个请求附加 OAuth2 access token
func (p *paypalClient) bearerAuth() middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			tr, ok := transport.FromClientContext(ctx)
			if !ok {
				return handler(ctx, req)
			}
			token, err := p.accessToken(ctx)
			if err != nil {
				return nil, err
			}
			tr.RequestHeader().Set("Authorization", "Bearer "+token)
			tr.RequestHeader().Set("Accept", "application/json")
			return handler(ctx, req)
		}
	}
}

// accessToken 获取 access token，优先读取 Redis 缓存（多副本共享）
func (p *paypalClient) accessToken(ctx context.Context) (string, error) {
	key := p.tokenCacheKey()
	if p.data != nil && p.data.rdb != nil {
		if token, err := p.data.rdb.Get(ctx, key).Result(); err == nil && token != "" {
			return token, nil
		}
	}

	if p.conf.ClientID == "" || p.conf.Secret == "" {
		return "", pkgErrors.NewBizErrorWithLang(ctx, accessErrors.ErrCodePayPalConfigNil)
	}

	startTime := time.Now()
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := stdhttp.NewRequestWithContext(ctx, stdhttp.MethodPost, p.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(p.conf.ClientID, p.conf.Secret)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	p.observe(constants.GatewayOpToken, startTime, err)
	if err != nil {
		p.log.Errorf("paypal token request failed: %v", err)
		return "", pkgErrors.WrapErrorWithLang(ctx, err, accessErrors.ErrCodePayPalTokenFailed)
	}
	defer resp.Body.Close()

	var reply paypalTokenReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", pkgErrors.WrapErrorWithLang(ctx, err, accessErrors.ErrCodePayPalTokenFailed)
	}
	if reply.AccessToken == "" {
		return "", pkgErrors.WrapErrorWithLang(ctx, fmt.Errorf("empty access token"), accessErrors.ErrCodePayPalTokenFailed)
	}

	// 更新缓存（设置超时避免阻塞）
	ttl := time.Duration(reply.ExpiresIn)*time.Second - tokenExpiryMargin
	if ttl > 0 && p.data != nil && p.data.rdb != nil {
		cacheCtx, cacheCancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cacheCancel()
		if err := p.data.rdb.Set(cacheCtx, key, reply.AccessToken, ttl).Err(); err != nil {
			// 缓存更新失败不影响主流程，只记录日志
			p.log.Warnf("failed to cache paypal access token: %v", err)
		}
	}
	return reply.AccessToken, nil
}

func (p *paypalClient) tokenCacheKey() string {
	return constants.RedisKeyPayPalToken + p.conf.ClientID
}

// onRequestError token 被拒绝时清除缓存，下次请求重新获取
func (p *paypalClient) onRequestError(ctx context.Context, err error) {
	if kerrors.Code(err) != stdhttp.StatusUnauthorized || p.data == nil || p.data.rdb == nil {
		return
	}
	if delErr := p.data.rdb.Del(context.WithoutCancel(ctx), p.tokenCacheKey()).Err(); delErr != nil {
		p.log.Warnf("failed to drop cached paypal token: %v", delErr)
	}
}

func (p *paypalClient) observe(op string, startTime time.Time, err error) {
	if p.metrics == nil {
		return
	}
	result := constants.ResultSuccess
	if err != nil {
		result = constants.ResultFailed
	}
	p.metrics.GatewayRequestTotal.WithLabelValues(op, result).Inc()
	p.metrics.GatewayRequestDuration.WithLabelValues(op).Observe(time.Since(startTime).Seconds())
}

// approveLink 买家付款链接
func approveLink(links []paypalLink) string {
	for _, l := range links {
		switch l.Rel {
		case "approve", "payer-action", "payer", "checkout":
			return l.Href
		}
	}
	return ""
}
