package biz

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"access-service/internal/constants"

	"github.com/go-kratos/kratos/v2/log"
)

func testLogger() log.Logger {
	return log.NewStdLogger(io.Discard)
}

// MockOrderRepo 内存订单仓储，条件更新在锁内完成
type MockOrderRepo struct {
	mu     sync.Mutex
	orders map[string]Order

	GetErr    error
	CASCalls  int
	CASWins   int
	InsertErr error
}

func NewMockOrderRepo() *MockOrderRepo {
	return &MockOrderRepo{orders: make(map[string]Order)}
}

func (m *MockOrderRepo) Insert(ctx context.Context, order *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertErr != nil {
		return m.InsertErr
	}
	if _, ok := m.orders[order.OrderID]; ok {
		return ErrDuplicateOrderID
	}
	m.orders[order.OrderID] = *order
	return nil
}

func (m *MockOrderRepo) GetByLocalID(ctx context.Context, orderID string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	o, ok := m.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return &o, nil
}

func (m *MockOrderRepo) CompareAndSetDelivered(ctx context.Context, orderID, expectedStatus, code string, expiresAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CASCalls++
	o, ok := m.orders[orderID]
	if !ok || o.Status != expectedStatus {
		return false, nil
	}
	o.Status = constants.OrderStatusDelivered
	o.RedemptionCode = code
	exp := expiresAt
	o.ExpiresAt = &exp
	at := time.Now().UTC()
	o.DeliveredAt = &at
	m.orders[orderID] = o
	m.CASWins++
	return true, nil
}

func (m *MockOrderRepo) LatestDelivered(ctx context.Context, recipientID string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *Order
	for _, o := range m.orders {
		if o.RecipientID != recipientID || o.Status != constants.OrderStatusDelivered {
			continue
		}
		if latest == nil || deliveredAt(&o).After(deliveredAt(latest)) ||
			(deliveredAt(&o).Equal(deliveredAt(latest)) && o.CreatedAt.After(latest.CreatedAt)) {
			c := o
			latest = &c
		}
	}
	if latest == nil {
		return nil, ErrOrderNotFound
	}
	return latest, nil
}

func deliveredAt(o *Order) time.Time {
	if o.DeliveredAt == nil {
		return time.Time{}
	}
	return *o.DeliveredAt
}

func (m *MockOrderRepo) ListStale(ctx context.Context, status string, before time.Time, limit int) ([]*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Order
	for _, o := range m.orders {
		if o.Status == status && o.CreatedAt.Before(before) {
			c := o
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockOrderRepo) Get(orderID string) (Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	return o, ok
}

func (m *MockOrderRepo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

// MockPaymentGateway 模拟 PayPal：创建订单时记住关联关系，查询详情时回传
type MockPaymentGateway struct {
	mu           sync.Mutex
	correlations map[string]string
	seq          int

	CreateOrderFunc func(ctx context.Context, req *CreateRemoteOrderRequest) (*RemoteOrder, error)
	GetOrderFunc    func(ctx context.Context, remoteOrderID string) (*RemoteOrder, error)
	VerifyFunc      func(ctx context.Context, req *WebhookSignatureRequest) (bool, error)

	CreateCalls int
	GetCalls    int
	VerifyCalls int
	LastCreate  *CreateRemoteOrderRequest
	LastVerify  *WebhookSignatureRequest
}

func NewMockPaymentGateway() *MockPaymentGateway {
	return &MockPaymentGateway{correlations: make(map[string]string)}
}

func (m *MockPaymentGateway) CreateOrder(ctx context.Context, req *CreateRemoteOrderRequest) (*RemoteOrder, error) {
	m.mu.Lock()
	m.CreateCalls++
	m.LastCreate = req
	fn := m.CreateOrderFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, req)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	id := fmt.Sprintf("5O190127TN%06d", m.seq)
	m.correlations[id] = req.CorrelationID
	return &RemoteOrder{ID: id, Status: "CREATED", ApproveURL: "https://www.sandbox.paypal.com/checkoutnow?token=" + id}, nil
}

func (m *MockPaymentGateway) GetOrder(ctx context.Context, remoteOrderID string) (*RemoteOrder, error) {
	m.mu.Lock()
	m.GetCalls++
	fn := m.GetOrderFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, remoteOrderID)
	}
	return m.defaultGetOrder(remoteOrderID)
}

func (m *MockPaymentGateway) defaultGetOrder(remoteOrderID string) (*RemoteOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &RemoteOrder{ID: remoteOrderID, Status: "COMPLETED", CorrelationID: m.correlations[remoteOrderID]}, nil
}

func (m *MockPaymentGateway) VerifyWebhookSignature(ctx context.Context, req *WebhookSignatureRequest) (bool, error) {
	m.mu.Lock()
	m.VerifyCalls++
	m.LastVerify = req
	fn := m.VerifyFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, req)
	}
	return true, nil
}

func (m *MockPaymentGateway) Calls() (create, get, verify int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CreateCalls, m.GetCalls, m.VerifyCalls
}

type deliveredMessage struct {
	RecipientID string
	Content     string
}

// MockNotifier 记录所有私信
type MockNotifier struct {
	mu          sync.Mutex
	DeliverFunc func(ctx context.Context, recipientID, content string) error
	Messages    []deliveredMessage
}

func (m *MockNotifier) Deliver(ctx context.Context, recipientID, content string) error {
	m.mu.Lock()
	m.Messages = append(m.Messages, deliveredMessage{RecipientID: recipientID, Content: content})
	fn := m.DeliverFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, recipientID, content)
	}
	return nil
}

func (m *MockNotifier) Sent() []deliveredMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]deliveredMessage(nil), m.Messages...)
}

// MockPublisher 记录所有发码事件
type MockPublisher struct {
	mu     sync.Mutex
	Events []*OrderDeliveredEvent
}

func (m *MockPublisher) PublishOrderDelivered(ctx context.Context, event *OrderDeliveredEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
	return nil
}

func (m *MockPublisher) Published() []*OrderDeliveredEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*OrderDeliveredEvent(nil), m.Events...)
}
