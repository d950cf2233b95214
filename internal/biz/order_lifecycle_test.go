package biz

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"access-service/internal/constants"
	accessErrors "access-service/internal/errors"

	"github.com/shopspring/decimal"
)

const testRecipient = "123456789012345678"

var (
	orderIDPattern = regexp.MustCompile(`^ORD-[0-9A-F]{32}$`)
	codePattern    = regexp.MustCompile(`^ABO-[A-Z0-9]{16}$`)
)

type lifecycleFixture struct {
	uc        *OrderUseCase
	repo      *MockOrderRepo
	gateway   *MockPaymentGateway
	notifier  *MockNotifier
	publisher *MockPublisher
	conf      *ShopConfig
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()
	conf := NewShopConfig(nil)
	conf.WebhookID = "WH-TEST"
	conf.PublicBaseURL = "https://shop.example.com"
	conf.GatewayTimeout = time.Second
	conf.NotifyTimeout = time.Second

	f := &lifecycleFixture{
		repo:      NewMockOrderRepo(),
		gateway:   NewMockPaymentGateway(),
		notifier:  &MockNotifier{},
		publisher: &MockPublisher{},
		conf:      conf,
	}
	verifier := NewWebhookVerifier(f.gateway, conf, testLogger())
	f.uc = NewOrderUseCase(f.repo, f.gateway, verifier, f.notifier, f.publisher, NewCodeGenerator(), conf, testLogger())
	return f
}

func signedHeaders() http.Header {
	h := http.Header{}
	h.Set(constants.HeaderPayPalAuthAlgo, "SHA256withRSA")
	h.Set(constants.HeaderPayPalCertURL, "https://api.sandbox.paypal.com/v1/notifications/certs/CERT-360caa42")
	h.Set(constants.HeaderPayPalTransmissionID, "69cd13f0-d67a-11e5-baa3-778b53f4ae55")
	h.Set(constants.HeaderPayPalTransmissionSig, "lmI95Jx3Y9nhR5SJWlHVIWpg4AgFk7n9bCHSRxbrd8A9zrhdu2rMyFrmz+Zjh3s3boXB07VXCXUZy/UFzUlnGJn0wDugt7FlSvdKeIJenLRemUxYCPVoEZzg9VFNqOa48gMkvF+XTpxBeUx/kWy6B5cp7GkT2+pOowfRK7OaynuxUoKW3JcMWw272VKjLTtTAShncla7tGF+55rxyt2KNZIIqxNMJ48RDZheGU5w1npu9dZHnPgTXB9iomeVRoD8O/jhRpnKsGrDschyNdkeh81BJJMH4Ctc6lnCCquoP/GzCzz33MMsNdid7vL/NIWaCsekQpW26FpWPi/tfj8nLA==")
	h.Set(constants.HeaderPayPalTransmissionTime, "2016-02-18T20:01:35Z")
	return h
}

func capturedEvent(remoteOrderID string) []byte {
	return []byte(fmt.Sprintf(`{"id":"WH-2WR32451HC0233532-67976317FL4543714","event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"id":"42311647XV020574X","status":"COMPLETED","supplementary_data":{"related_ids":{"order_id":%q}}}}`, remoteOrderID))
}

func (f *lifecycleFixture) createOrder(t *testing.T) *CreateOrderResult {
	t.Helper()
	res, err := f.uc.CreateOrder(context.Background(), "1mois", testRecipient)
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	return res
}

func TestCreateOrder_PersistsCreatedOrder(t *testing.T) {
	f := newLifecycleFixture(t)

	res := f.createOrder(t)
	if !orderIDPattern.MatchString(res.OrderID) {
		t.Fatalf("unexpected order id format: %s", res.OrderID)
	}
	if res.RemoteOrderID == "" || !strings.Contains(res.ApprovalURL, res.RemoteOrderID) {
		t.Fatalf("unexpected gateway result: %+v", res)
	}

	order, ok := f.repo.Get(res.OrderID)
	if !ok {
		t.Fatalf("order %s not persisted", res.OrderID)
	}
	if order.Status != constants.OrderStatusCreated {
		t.Fatalf("expected CREATED, got %s", order.Status)
	}
	if !order.Amount.Equal(decimal.RequireFromString("10.00")) || order.Currency != "EUR" {
		t.Fatalf("unexpected amount: %s %s", order.Amount, order.Currency)
	}
	if order.Plan != "1mois" || order.RecipientID != testRecipient || order.RemoteOrderID != res.RemoteOrderID {
		t.Fatalf("unexpected order: %+v", order)
	}
	if order.RedemptionCode != "" || order.ExpiresAt != nil {
		t.Fatalf("code and expiry must be empty before delivery: %+v", order)
	}

	req := f.gateway.LastCreate
	if req.CorrelationID != res.OrderID {
		t.Fatalf("correlation id %s, want %s", req.CorrelationID, res.OrderID)
	}
	if !req.Amount.Equal(decimal.RequireFromString("10")) || req.Currency != "EUR" {
		t.Fatalf("unexpected gateway amount: %s %s", req.Amount, req.Currency)
	}
	if req.ReturnURL != "https://shop.example.com/paypal/return" || req.CancelURL != "https://shop.example.com/paypal/cancel" {
		t.Fatalf("unexpected redirect urls: %s %s", req.ReturnURL, req.CancelURL)
	}
	if req.Description != "Abonnement 1mois" {
		t.Fatalf("unexpected description: %s", req.Description)
	}
}

func TestCreateOrder_RejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name      string
		plan      string
		recipient string
	}{
		{name: "unknown plan", plan: "2mois", recipient: testRecipient},
		{name: "empty plan", plan: "", recipient: testRecipient},
		{name: "empty recipient", plan: "1mois", recipient: ""},
		{name: "letters", plan: "1mois", recipient: "12345678901234abcd"},
		{name: "too short", plan: "1mois", recipient: "12345"},
		{name: "too long", plan: "1mois", recipient: "123456789012345678901"},
		{name: "overflow", plan: "1mois", recipient: "99999999999999999999"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newLifecycleFixture(t)
			_, err := f.uc.CreateOrder(context.Background(), tc.plan, tc.recipient)
			if !accessErrors.IsInvalidRequest(err) {
				t.Fatalf("expected InvalidRequest, got %v", err)
			}
			if create, _, _ := f.gateway.Calls(); create != 0 {
				t.Fatalf("gateway must not be called, got %d calls", create)
			}
			if f.repo.Len() != 0 {
				t.Fatalf("nothing must be persisted")
			}
		})
	}
}

func TestCreateOrder_GatewayFailureLeavesNoOrder(t *testing.T) {
	cases := map[string]func(ctx context.Context, req *CreateRemoteOrderRequest) (*RemoteOrder, error){
		"transport error": func(ctx context.Context, req *CreateRemoteOrderRequest) (*RemoteOrder, error) {
			return nil, errors.New("connection refused")
		},
		"no approval link": func(ctx context.Context, req *CreateRemoteOrderRequest) (*RemoteOrder, error) {
			return &RemoteOrder{ID: "5O190127TN364715T", Status: "CREATED"}, nil
		},
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			f := newLifecycleFixture(t)
			f.gateway.CreateOrderFunc = fn
			_, err := f.uc.CreateOrder(context.Background(), "3mois", testRecipient)
			if !accessErrors.IsGatewayUnavailable(err) {
				t.Fatalf("expected GatewayUnavailable, got %v", err)
			}
			if f.repo.Len() != 0 {
				t.Fatalf("nothing must be persisted after gateway failure")
			}
		})
	}
}

func TestHandlePaymentEvent_DeliversExactlyOnce(t *testing.T) {
	f := newLifecycleFixture(t)
	fixed := time.Date(2024, time.March, 10, 18, 45, 0, 0, time.UTC)
	f.uc.now = func() time.Time { return fixed }

	res := f.createOrder(t)
	outcome, err := f.uc.HandlePaymentEvent(context.Background(), capturedEvent(res.RemoteOrderID), signedHeaders())
	if err != nil || outcome != OutcomeDelivered {
		t.Fatalf("expected delivered, got %s, %v", outcome, err)
	}

	order, _ := f.repo.Get(res.OrderID)
	if order.Status != constants.OrderStatusDelivered {
		t.Fatalf("expected DELIVERED, got %s", order.Status)
	}
	if !codePattern.MatchString(order.RedemptionCode) {
		t.Fatalf("unexpected code format: %s", order.RedemptionCode)
	}
	wantExpiry := time.Date(2024, time.April, 9, 0, 0, 0, 0, time.UTC)
	if order.ExpiresAt == nil || !order.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("expires_at = %v, want %v", order.ExpiresAt, wantExpiry)
	}

	sent := f.notifier.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(sent))
	}
	if sent[0].RecipientID != testRecipient {
		t.Fatalf("notified %s, want %s", sent[0].RecipientID, testRecipient)
	}
	for _, want := range []string{"1mois", order.RedemptionCode, "2024-04-09"} {
		if !strings.Contains(sent[0].Content, want) {
			t.Fatalf("notification %q does not contain %q", sent[0].Content, want)
		}
	}

	events := f.publisher.Published()
	if len(events) != 1 || !events[0].NotificationSent || events[0].OrderID != res.OrderID || events[0].Amount != "10.00" {
		t.Fatalf("unexpected published events: %+v", events)
	}

	// 重复投递
	outcome, err = f.uc.HandlePaymentEvent(context.Background(), capturedEvent(res.RemoteOrderID), signedHeaders())
	if err != nil || outcome != OutcomeAlreadyDelivered {
		t.Fatalf("expected already_delivered, got %s, %v", outcome, err)
	}
	again, _ := f.repo.Get(res.OrderID)
	if again.RedemptionCode != order.RedemptionCode || !again.ExpiresAt.Equal(*order.ExpiresAt) {
		t.Fatalf("code or expiry changed on redelivery")
	}
	if len(f.notifier.Sent()) != 1 || len(f.publisher.Published()) != 1 {
		t.Fatalf("redelivery must not notify again")
	}
}

func TestHandlePaymentEvent_ConcurrentDeliveries(t *testing.T) {
	f := newLifecycleFixture(t)
	res := f.createOrder(t)

	const workers = 32
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes = make(map[WebhookOutcome]int)
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			outcome, err := f.uc.HandlePaymentEvent(context.Background(), capturedEvent(res.RemoteOrderID), signedHeaders())
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			mu.Lock()
			outcomes[outcome]++
			mu.Unlock()
		}()
	}
	close(start)
	wg.Wait()

	if outcomes[OutcomeDelivered] != 1 {
		t.Fatalf("expected exactly one delivered outcome, got %v", outcomes)
	}
	if outcomes[OutcomeDelivered]+outcomes[OutcomeAlreadyDelivered]+outcomes[OutcomeLostRace] != workers {
		t.Fatalf("unexpected outcomes: %v", outcomes)
	}
	if f.repo.CASWins != 1 {
		t.Fatalf("expected one successful transition, got %d", f.repo.CASWins)
	}
	if n := len(f.notifier.Sent()); n != 1 {
		t.Fatalf("expected 1 notification, got %d", n)
	}
}

func TestHandlePaymentEvent_RejectsUnverifiedEvents(t *testing.T) {
	cases := []struct {
		name    string
		prepare func(f *lifecycleFixture, h http.Header)
		calls   int
	}{
		{
			name: "signature invalid",
			prepare: func(f *lifecycleFixture, h http.Header) {
				f.gateway.VerifyFunc = func(ctx context.Context, req *WebhookSignatureRequest) (bool, error) { return false, nil }
			},
			calls: 1,
		},
		{
			name: "verification transport error",
			prepare: func(f *lifecycleFixture, h http.Header) {
				f.gateway.VerifyFunc = func(ctx context.Context, req *WebhookSignatureRequest) (bool, error) {
					return false, errors.New("i/o timeout")
				}
			},
			calls: 1,
		},
		{
			name:    "webhook id not configured",
			prepare: func(f *lifecycleFixture, h http.Header) { f.conf.WebhookID = "" },
		},
		{
			name:    "missing transmission signature",
			prepare: func(f *lifecycleFixture, h http.Header) { h.Del(constants.HeaderPayPalTransmissionSig) },
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newLifecycleFixture(t)
			res := f.createOrder(t)
			headers := signedHeaders()
			tc.prepare(f, headers)

			outcome, err := f.uc.HandlePaymentEvent(context.Background(), capturedEvent(res.RemoteOrderID), headers)
			if !accessErrors.IsVerificationFailed(err) || outcome != OutcomeRejected {
				t.Fatalf("expected verification failure, got %s, %v", outcome, err)
			}
			if _, get, verify := f.gateway.Calls(); get != 0 || verify != tc.calls {
				t.Fatalf("unexpected gateway calls: get=%d verify=%d", get, verify)
			}
			order, _ := f.repo.Get(res.OrderID)
			if order.Status != constants.OrderStatusCreated || len(f.notifier.Sent()) != 0 {
				t.Fatalf("rejected event must not change state")
			}
		})
	}
}

func TestHandlePaymentEvent_AcknowledgesIrrelevantEvents(t *testing.T) {
	f := newLifecycleFixture(t)
	res := f.createOrder(t)

	cases := []struct {
		name    string
		payload []byte
		prepare func()
		want    WebhookOutcome
	}{
		{
			name:    "other event type",
			payload: []byte(`{"id":"WH-1","event_type":"CHECKOUT.ORDER.APPROVED","resource":{"id":"` + res.RemoteOrderID + `"}}`),
			want:    OutcomeIgnored,
		},
		{
			name:    "missing related order id",
			payload: []byte(`{"id":"WH-2","event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"id":"CAP-2"}}`),
			want:    OutcomeMissingReference,
		},
		{
			name:    "not an object",
			payload: []byte(`[1,2,3]`),
			want:    OutcomeMalformed,
		},
		{
			name:    "unknown remote order",
			payload: capturedEvent("9XX00000000000000"),
			want:    OutcomeUncorrelated,
		},
		{
			name:    "correlation points to unknown local order",
			payload: capturedEvent(res.RemoteOrderID),
			prepare: func() {
				f.gateway.GetOrderFunc = func(ctx context.Context, id string) (*RemoteOrder, error) {
					return &RemoteOrder{ID: id, CorrelationID: "ORD-DOESNOTEXIST"}, nil
				}
			},
			want: OutcomeUnknownOrder,
		},
		{
			name:    "remote id does not match stored order",
			payload: capturedEvent("8AB12345CD6789012"),
			prepare: func() {
				f.gateway.GetOrderFunc = func(ctx context.Context, id string) (*RemoteOrder, error) {
					return &RemoteOrder{ID: id, CorrelationID: res.OrderID}, nil
				}
			},
			want: OutcomeMismatch,
		},
		{
			name:    "store unavailable",
			payload: capturedEvent(res.RemoteOrderID),
			prepare: func() {
				f.gateway.GetOrderFunc = nil
				f.repo.GetErr = errors.New("database is locked")
			},
			want: OutcomeStoreError,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f.gateway.GetOrderFunc = nil
			f.repo.GetErr = nil
			if tc.prepare != nil {
				tc.prepare()
			}
			outcome, err := f.uc.HandlePaymentEvent(context.Background(), tc.payload, signedHeaders())
			if err != nil {
				t.Fatalf("verified events must be acknowledged, got %v", err)
			}
			if outcome != tc.want {
				t.Fatalf("outcome = %s, want %s", outcome, tc.want)
			}
		})
	}

	f.repo.GetErr = nil
	order, _ := f.repo.Get(res.OrderID)
	if order.Status != constants.OrderStatusCreated || len(f.notifier.Sent()) != 0 {
		t.Fatalf("irrelevant events must not change state")
	}
}

func TestHandlePaymentEvent_RetryAfterUnresolvedDetailFetch(t *testing.T) {
	f := newLifecycleFixture(t)
	res := f.createOrder(t)

	f.gateway.GetOrderFunc = func(ctx context.Context, id string) (*RemoteOrder, error) {
		return nil, errors.New("503 Service Unavailable")
	}
	outcome, err := f.uc.HandlePaymentEvent(context.Background(), capturedEvent(res.RemoteOrderID), signedHeaders())
	if err != nil || outcome != OutcomeUnresolved {
		t.Fatalf("expected unresolved, got %s, %v", outcome, err)
	}
	if order, _ := f.repo.Get(res.OrderID); order.Status != constants.OrderStatusCreated {
		t.Fatalf("unresolved event must not change state")
	}

	// 网关恢复后重投成功
	f.gateway.GetOrderFunc = nil
	outcome, err = f.uc.HandlePaymentEvent(context.Background(), capturedEvent(res.RemoteOrderID), signedHeaders())
	if err != nil || outcome != OutcomeDelivered {
		t.Fatalf("expected delivered on retry, got %s, %v", outcome, err)
	}
	if n := len(f.notifier.Sent()); n != 1 {
		t.Fatalf("expected 1 notification, got %d", n)
	}
}

func TestHandlePaymentEvent_NotifierFailureKeepsDelivery(t *testing.T) {
	f := newLifecycleFixture(t)
	f.notifier.DeliverFunc = func(ctx context.Context, recipientID, content string) error {
		return errors.New("HTTP 403 Forbidden, Cannot send messages to this user")
	}
	res := f.createOrder(t)

	outcome, err := f.uc.HandlePaymentEvent(context.Background(), capturedEvent(res.RemoteOrderID), signedHeaders())
	if err != nil || outcome != OutcomeDelivered {
		t.Fatalf("expected delivered, got %s, %v", outcome, err)
	}
	order, _ := f.repo.Get(res.OrderID)
	if order.Status != constants.OrderStatusDelivered || order.RedemptionCode == "" {
		t.Fatalf("order must stay DELIVERED after notification failure: %+v", order)
	}
	events := f.publisher.Published()
	if len(events) != 1 || events[0].NotificationSent {
		t.Fatalf("expected one event flagged as not notified, got %+v", events)
	}

	// 重投不会再次尝试通知
	outcome, _ = f.uc.HandlePaymentEvent(context.Background(), capturedEvent(res.RemoteOrderID), signedHeaders())
	if outcome != OutcomeAlreadyDelivered || len(f.notifier.Sent()) != 1 {
		t.Fatalf("redelivery must be a no-op, got %s", outcome)
	}
}

func TestHandlePaymentEvent_NotifiesAfterRequestCancellation(t *testing.T) {
	f := newLifecycleFixture(t)
	res := f.createOrder(t)

	ctx, cancel := context.WithCancel(context.Background())
	f.gateway.GetOrderFunc = func(_ context.Context, id string) (*RemoteOrder, error) {
		// 调用方在状态迁移前断开
		cancel()
		return f.gateway.defaultGetOrder(id)
	}
	f.notifier.DeliverFunc = func(ctx context.Context, recipientID, content string) error {
		return ctx.Err()
	}

	outcome, err := f.uc.HandlePaymentEvent(ctx, capturedEvent(res.RemoteOrderID), signedHeaders())
	if err != nil || outcome != OutcomeDelivered {
		t.Fatalf("expected delivered, got %s, %v", outcome, err)
	}
	if events := f.publisher.Published(); len(events) != 1 || !events[0].NotificationSent {
		t.Fatalf("notification must not inherit request cancellation: %+v", events)
	}
}

func TestExpiryFor(t *testing.T) {
	f := newLifecycleFixture(t)
	cases := []struct {
		plan string
		at   time.Time
		want time.Time
	}{
		{plan: "1mois", at: time.Date(2024, 1, 31, 23, 59, 0, 0, time.UTC), want: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{plan: "3mois", at: time.Date(2025, 6, 1, 0, 0, 1, 0, time.UTC), want: time.Date(2025, 8, 30, 0, 0, 0, 0, time.UTC)},
		{plan: "12mois", at: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC), want: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		{plan: "retired", at: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC), want: time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		if got := f.uc.expiryFor(tc.plan, tc.at); !got.Equal(tc.want) {
			t.Fatalf("expiryFor(%s, %v) = %v, want %v", tc.plan, tc.at, got, tc.want)
		}
	}
}

func TestLastCodeReply(t *testing.T) {
	f := newLifecycleFixture(t)

	reply, err := f.uc.LastCodeReply(context.Background(), testRecipient)
	if err != nil || reply != NoCodeMessage {
		t.Fatalf("expected no-code reply, got %q, %v", reply, err)
	}

	res := f.createOrder(t)
	if _, err := f.uc.HandlePaymentEvent(context.Background(), capturedEvent(res.RemoteOrderID), signedHeaders()); err != nil {
		t.Fatalf("HandlePaymentEvent failed: %v", err)
	}
	order, _ := f.repo.Get(res.OrderID)

	reply, err = f.uc.LastCodeReply(context.Background(), testRecipient)
	if err != nil {
		t.Fatalf("LastCodeReply failed: %v", err)
	}
	if !strings.Contains(reply, order.RedemptionCode) || !strings.Contains(reply, order.ExpiresAt.Format(constants.TimeFormatDate)) {
		t.Fatalf("unexpected reply %q", reply)
	}
}
