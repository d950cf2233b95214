package biz

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"access-service/internal/constants"
	accessErrors "access-service/internal/errors"
	"access-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
)

// WebhookOutcome webhook 事件处理结果，除 OutcomeRejected 外都应答 200
type WebhookOutcome string

const (
	OutcomeRejected         WebhookOutcome = "rejected"
	OutcomeMalformed        WebhookOutcome = "malformed"
	OutcomeIgnored          WebhookOutcome = "ignored"
	OutcomeMissingReference WebhookOutcome = "missing_reference"
	OutcomeUnresolved       WebhookOutcome = "unresolved"
	OutcomeUncorrelated     WebhookOutcome = "uncorrelated"
	OutcomeUnknownOrder     WebhookOutcome = "unknown_order"
	OutcomeMismatch         WebhookOutcome = "mismatch"
	OutcomeStoreError       WebhookOutcome = "store_error"
	OutcomeAlreadyDelivered WebhookOutcome = "already_delivered"
	OutcomeLostRace         WebhookOutcome = "lost_race"
	OutcomeDelivered        WebhookOutcome = "delivered"
)

// CreateOrderResult 下单结果
type CreateOrderResult struct {
	OrderID       string
	RemoteOrderID string
	ApprovalURL   string
}

// OrderUseCase 订单生命周期：下单、付款事件处理、发码
type OrderUseCase struct {
	repo      OrderRepo
	gateway   PaymentGateway
	verifier  *WebhookVerifier
	notifier  Notifier
	publisher OrderEventPublisher
	codes     CodeGenerator
	conf      *ShopConfig
	now       func() time.Time
	log       *log.Helper
	metrics   *metrics.AccessMetrics
}

// NewOrderUseCase 创建订单 UseCase
func NewOrderUseCase(
	repo OrderRepo,
	gateway PaymentGateway,
	verifier *WebhookVerifier,
	notifier Notifier,
	publisher OrderEventPublisher,
	codes CodeGenerator,
	conf *ShopConfig,
	logger log.Logger,
) *OrderUseCase {
	return &OrderUseCase{
		repo:      repo,
		gateway:   gateway,
		verifier:  verifier,
		notifier:  notifier,
		publisher: publisher,
		codes:     codes,
		conf:      conf,
		now:       time.Now,
		log:       log.NewHelper(logger),
		metrics:   metrics.GetMetrics(),
	}
}

// CreateOrder 创建订单：先在 PayPal 创建订单，成功后再落库
func (uc *OrderUseCase) CreateOrder(ctx context.Context, planCode, recipientID string) (*CreateOrderResult, error) {
	startTime := time.Now()
	defer func() {
		if uc.metrics != nil {
			uc.metrics.OrderCreateDuration.Observe(time.Since(startTime).Seconds())
		}
	}()

	// 参数校验必须在任何外部调用之前完成
	plan, ok := uc.conf.Plan(strings.TrimSpace(planCode))
	if !ok {
		uc.countCreate(constants.CreateResultInvalid)
		return nil, accessErrors.InvalidRequest("unknown plan %q", planCode)
	}
	recipientID = strings.TrimSpace(recipientID)
	if !ValidRecipientID(recipientID) {
		uc.countCreate(constants.CreateResultInvalid)
		return nil, accessErrors.InvalidRequest("invalid recipient id %q", recipientID)
	}

	orderID := uc.codes.NewOrderID()

	gwCtx, cancel := context.WithTimeout(ctx, uc.conf.GatewayTimeout)
	remote, err := uc.gateway.CreateOrder(gwCtx, &CreateRemoteOrderRequest{
		CorrelationID: orderID,
		Amount:        plan.Price,
		Currency:      uc.conf.Currency,
		Description:   fmt.Sprintf("Abonnement %s", plan.Code),
		BrandName:     uc.conf.BrandName,
		ReturnURL:     uc.conf.ReturnURL(),
		CancelURL:     uc.conf.CancelURL(),
	})
	cancel()
	if err != nil {
		uc.log.Errorf("gateway CreateOrder failed: order_id=%s, error=%v", orderID, err)
		uc.countCreate(constants.CreateResultGatewayUnavailable)
		return nil, accessErrors.GatewayUnavailable("payment gateway unavailable").WithCause(err)
	}
	if remote == nil || remote.ID == "" || remote.ApproveURL == "" {
		uc.log.Errorf("gateway CreateOrder returned no approval link: order_id=%s", orderID)
		uc.countCreate(constants.CreateResultGatewayUnavailable)
		return nil, accessErrors.GatewayUnavailable("payment gateway returned no approval link")
	}

	order := &Order{
		OrderID:       orderID,
		RemoteOrderID: remote.ID,
		RecipientID:   recipientID,
		Plan:          plan.Code,
		Amount:        plan.Price,
		Currency:      uc.conf.Currency,
		Status:        constants.OrderStatusCreated,
		CreatedAt:     uc.now().UTC(),
	}
	if err := uc.repo.Insert(ctx, order); err != nil {
		// 网关侧订单未被付款前无副作用，直接返回错误
		uc.log.Errorf("Insert order failed: order_id=%s, paypal_order_id=%s, error=%v", orderID, remote.ID, err)
		uc.countCreate(constants.CreateResultStoreFailed)
		return nil, err
	}

	uc.countCreate(constants.CreateResultCreated)
	uc.log.Infof("Order created: order_id=%s, paypal_order_id=%s, plan=%s, recipient_id=%s", orderID, remote.ID, plan.Code, recipientID)
	return &CreateOrderResult{
		OrderID:       orderID,
		RemoteOrderID: remote.ID,
		ApprovalURL:   remote.ApproveURL,
	}, nil
}

// HandlePaymentEvent 处理 PayPal webhook。
// 仅在签名校验失败时返回错误；其余情况均应答成功，由 outcome 描述处理结果。
func (uc *OrderUseCase) HandlePaymentEvent(ctx context.Context, rawEvent []byte, headers http.Header) (WebhookOutcome, error) {
	startTime := time.Now()

	if !uc.verifier.Verify(ctx, rawEvent, headers) {
		uc.observeWebhook(OutcomeRejected, startTime)
		return OutcomeRejected, accessErrors.VerificationFailed("invalid webhook signature")
	}

	outcome := uc.processVerifiedEvent(ctx, rawEvent)
	uc.observeWebhook(outcome, startTime)
	return outcome, nil
}

func (uc *OrderUseCase) processVerifiedEvent(ctx context.Context, rawEvent []byte) WebhookOutcome {
	event, err := ParsePaymentEvent(rawEvent)
	if err != nil {
		uc.log.Warnf("webhook event decode failed: %v", err)
		return OutcomeMalformed
	}
	if event.EventType != constants.PayPalEventCaptureCompleted {
		uc.log.Infof("webhook event ignored: event_id=%s, event_type=%s", event.ID, event.EventType)
		return OutcomeIgnored
	}
	remoteOrderID := event.RemoteOrderID()
	if remoteOrderID == "" {
		uc.log.Warnf("webhook event without related order id: event_id=%s", event.ID)
		return OutcomeMissingReference
	}

	// 通过订单详情里回传的关联字段找回本地订单号
	gwCtx, cancel := context.WithTimeout(ctx, uc.conf.GatewayTimeout)
	remote, err := uc.gateway.GetOrder(gwCtx, remoteOrderID)
	cancel()
	if err != nil {
		uc.log.Errorf("gateway GetOrder failed: paypal_order_id=%s, error=%v", remoteOrderID, err)
		return OutcomeUnresolved
	}
	if remote == nil || remote.CorrelationID == "" {
		uc.log.Warnf("remote order carries no correlation id: paypal_order_id=%s", remoteOrderID)
		return OutcomeUncorrelated
	}

	order, err := uc.repo.GetByLocalID(ctx, remote.CorrelationID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			uc.log.Warnf("webhook for unknown order: order_id=%s, paypal_order_id=%s", remote.CorrelationID, remoteOrderID)
			return OutcomeUnknownOrder
		}
		uc.log.Errorf("GetByLocalID failed: order_id=%s, error=%v", remote.CorrelationID, err)
		return OutcomeStoreError
	}
	if order.RemoteOrderID != remoteOrderID {
		uc.log.Warnf("paypal order id mismatch: order_id=%s, stored=%s, event=%s", order.OrderID, order.RemoteOrderID, remoteOrderID)
		return OutcomeMismatch
	}
	if order.Delivered() {
		uc.log.Infof("Order already delivered: order_id=%s", order.OrderID)
		return OutcomeAlreadyDelivered
	}

	return uc.fulfill(ctx, order)
}

// fulfill 条件更新 CREATED -> DELIVERED，只有赢得更新的调用才发送通知
func (uc *OrderUseCase) fulfill(ctx context.Context, order *Order) WebhookOutcome {
	deliveredAt := uc.now().UTC()
	expiresAt := uc.expiryFor(order.Plan, deliveredAt)
	code := uc.codes.NewRedemptionCode()

	won, err := uc.repo.CompareAndSetDelivered(ctx, order.OrderID, constants.OrderStatusCreated, code, expiresAt)
	if err != nil {
		uc.log.Errorf("CompareAndSetDelivered failed: order_id=%s, error=%v", order.OrderID, err)
		return OutcomeStoreError
	}
	if !won {
		uc.log.Infof("Order delivered by a concurrent event: order_id=%s", order.OrderID)
		return OutcomeLostRace
	}
	uc.log.Infof("Order delivered: order_id=%s, plan=%s, expires_at=%s", order.OrderID, order.Plan, expiresAt.Format(constants.TimeFormatDate))

	// 状态已提交，后续副作用不受入站请求取消影响
	sideCtx := context.WithoutCancel(ctx)
	sent := uc.notify(sideCtx, order, code, expiresAt)
	uc.publish(sideCtx, order, expiresAt, deliveredAt, sent)
	return OutcomeDelivered
}

func (uc *OrderUseCase) notify(ctx context.Context, order *Order, code string, expiresAt time.Time) bool {
	notifyCtx, cancel := context.WithTimeout(ctx, uc.conf.NotifyTimeout)
	defer cancel()
	if err := uc.notifier.Deliver(notifyCtx, order.RecipientID, DeliveryMessage(order.Plan, code, expiresAt)); err != nil {
		nerr := accessErrors.NotificationFailed("notify recipient %s for order %s", order.RecipientID, order.OrderID).WithCause(err)
		uc.log.Errorf("%v", nerr)
		if uc.metrics != nil {
			uc.metrics.NotificationTotal.WithLabelValues(constants.ResultFailed).Inc()
		}
		return false
	}
	if uc.metrics != nil {
		uc.metrics.NotificationTotal.WithLabelValues(constants.ResultSuccess).Inc()
	}
	return true
}

func (uc *OrderUseCase) publish(ctx context.Context, order *Order, expiresAt, deliveredAt time.Time, sent bool) {
	if uc.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, uc.conf.NotifyTimeout)
	defer cancel()
	err := uc.publisher.PublishOrderDelivered(pubCtx, &OrderDeliveredEvent{
		OrderID:          order.OrderID,
		RemoteOrderID:    order.RemoteOrderID,
		RecipientID:      order.RecipientID,
		Plan:             order.Plan,
		Amount:           order.Amount.StringFixed(2),
		Currency:         order.Currency,
		ExpiresAt:        expiresAt,
		NotificationSent: sent,
		DeliveredAt:      deliveredAt,
	})
	if err != nil {
		uc.log.Warnf("PublishOrderDelivered failed: order_id=%s, error=%v", order.OrderID, err)
	}
}

// expiryFor 到期日 = 发码当日（UTC 零点）+ 套餐天数
func (uc *OrderUseCase) expiryFor(planCode string, deliveredAt time.Time) time.Time {
	days := constants.DefaultPlanDurationDays
	if plan, ok := uc.conf.Plan(planCode); ok {
		days = plan.DurationDays
	}
	y, m, d := deliveredAt.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, days)
}

// LastCodeReply 机器人 !last 指令：返回买家最近一次发放的兑换码
func (uc *OrderUseCase) LastCodeReply(ctx context.Context, recipientID string) (string, error) {
	order, err := uc.repo.LatestDelivered(ctx, recipientID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return NoCodeMessage, nil
		}
		return "", err
	}
	if order.ExpiresAt == nil {
		return NoCodeMessage, nil
	}
	return LastCodeMessage(order.RedemptionCode, *order.ExpiresAt), nil
}

func (uc *OrderUseCase) countCreate(result string) {
	if uc.metrics != nil {
		uc.metrics.OrderCreateTotal.WithLabelValues(result).Inc()
	}
}

func (uc *OrderUseCase) observeWebhook(outcome WebhookOutcome, startTime time.Time) {
	if uc.metrics != nil {
		uc.metrics.WebhookEventTotal.WithLabelValues(string(outcome)).Inc()
		uc.metrics.WebhookDuration.Observe(time.Since(startTime).Seconds())
	}
}
