// File: internal/usecase/mocks_test.go
package usecase_test

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ecotrail-payments/internal/domain"
	"ecotrail-payments/internal/domain/model"
	"ecotrail-payments/internal/domain/ports/adapter"
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// memBookingRepo is a small in-memory implementation used by unit tests.
type memBookingRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Booking
}

func newMemBookingRepo() *memBookingRepo {
	return &memBookingRepo{store: make(map[string]*model.Booking)}
}

func (m *memBookingRepo) put(b *model.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	m.store[b.ID] = &cp
}

func (m *memBookingRepo) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

// memPaymentRepo mirrors the Postgres repo's semantics closely enough for the
// use-case tests: compare-and-set status updates and the unique-active-row
// backstop per booking.
type memPaymentRepo struct {
	mu        sync.RWMutex
	store     map[string]*model.Payment
	createErr error // simulate insert failures
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{store: make(map[string]*model.Payment)}
}

func (m *memPaymentRepo) Create(ctx context.Context, p *model.Payment) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.store {
		if e.BookingID == p.BookingID && !e.Status.Terminal() {
			return domain.ErrActivePaymentExists
		}
	}
	cp := clonePayment(p)
	m.store[p.ID] = cp
	return nil
}

func (m *memPaymentRepo) FindByID(ctx context.Context, id string) (*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clonePayment(p), nil
}

func (m *memPaymentRepo) FindByGatewayRef(ctx context.Context, gateway, ref string) (*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.store {
		if p.Gateway != gateway {
			continue
		}
		if (p.GatewayPaymentID != nil && *p.GatewayPaymentID == ref) ||
			(p.GatewayOrderID != nil && *p.GatewayOrderID == ref) {
			return clonePayment(p), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPaymentRepo) ListByBooking(ctx context.Context, bookingID string) ([]*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Payment
	for _, p := range m.store {
		if p.BookingID == bookingID {
			out = append(out, clonePayment(p))
		}
	}
	return out, nil
}

func (m *memPaymentRepo) SetGatewayRefs(ctx context.Context, id string, orderID, paymentID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	if orderID != nil {
		p.GatewayOrderID = orderID
	}
	if paymentID != nil {
		p.GatewayPaymentID = paymentID
	}
	p.UpdatedAt = time.Now()
	return nil
}

func (m *memPaymentRepo) UpdateStatus(ctx context.Context, id string, from, to model.PaymentStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	p.UpdatedAt = time.Now()
	return true, nil
}

func (m *memPaymentRepo) MergeMeta(ctx context.Context, id string, kv map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	if p.Meta == nil {
		p.Meta = make(map[string]interface{})
	}
	for k, v := range kv {
		p.Meta[k] = v
	}
	return nil
}

func (m *memPaymentRepo) ExpirePendingOlderThan(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.store {
		if n >= limit {
			break
		}
		if p.Status == model.PaymentStatusPending && p.CreatedAt.Before(cutoff) {
			p.Status = model.PaymentStatusFailed
			p.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

func (m *memPaymentRepo) SumSucceededByPeriod(ctx context.Context, period string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var sum int64
	for _, p := range m.store {
		if p.Status == model.PaymentStatusSucceeded || p.Status == model.PaymentStatusRefunded {
			sum += p.AmountPaise
		}
	}
	return sum, nil
}

func clonePayment(p *model.Payment) *model.Payment {
	cp := *p
	if p.Meta != nil {
		cp.Meta = make(map[string]interface{}, len(p.Meta))
		for k, v := range p.Meta {
			cp.Meta[k] = v
		}
	}
	return &cp
}

// mockGateway lets tests script order creation, webhooks and refunds.
type mockGateway struct {
	name          string
	createErr     error
	refundErr     error
	orderCalls    int
	refundCalls   int
	lastRefundFor string
}

func (g *mockGateway) Name() string {
	if g.name == "" {
		return "mockpay"
	}
	return g.name
}

func (g *mockGateway) CreateOrder(ctx context.Context, p *model.Payment) (*adapter.OrderDetails, error) {
	g.orderCalls++
	if g.createErr != nil {
		return nil, g.createErr
	}
	return &adapter.OrderDetails{
		Gateway:     g.Name(),
		OrderID:     "order_" + p.ID,
		ClientToken: "tok",
		AmountPaise: p.AmountPaise,
		Currency:    p.Currency,
	}, nil
}

func (g *mockGateway) ParseWebhook(body []byte, sig string) (*model.GatewayEvent, error) {
	return nil, domain.ErrEventIgnored
}

func (g *mockGateway) Refund(ctx context.Context, p *model.Payment, reason string) (adapter.RefundResult, error) {
	g.refundCalls++
	g.lastRefundFor = p.ID
	if g.refundErr != nil {
		return adapter.RefundResult{}, g.refundErr
	}
	return adapter.RefundResult{RefundID: "rfnd_" + p.ID, Status: "processed"}, nil
}

// staticQuote satisfies the pricing port with a fixed answer.
type staticQuote struct {
	amount int64
	err    error
}

func (s *staticQuote) Quote(ctx context.Context, b *model.Booking) (*model.Quote, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &model.Quote{
		AmountPaise: s.amount,
		Currency:    "INR",
		Breakdown:   []model.PriceLine{{Label: "stay", AmountPaise: s.amount}},
	}, nil
}

// capturePublisher records published status changes.
type capturePublisher struct {
	mu      sync.Mutex
	changes []model.StatusChange
}

func (c *capturePublisher) Publish(change model.StatusChange) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.changes = append(c.changes, change)
}

func (c *capturePublisher) all() []model.StatusChange {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.StatusChange, len(c.changes))
	copy(out, c.changes)
	return out
}
