package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ecotrail-payments/internal/domain"
	"ecotrail-payments/internal/domain/model"
	"ecotrail-payments/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopGateway)(nil)

// NoopGateway is a dev/demo gateway: orders always succeed locally and
// webhooks are plain JSON canonical events with no signature. Never wire it
// in production config.
type NoopGateway struct{}

func NewNoopGateway() *NoopGateway { return &NoopGateway{} }

func (g *NoopGateway) Name() string { return "noop" }

func (g *NoopGateway) CreateOrder(_ context.Context, p *model.Payment) (*adapter.OrderDetails, error) {
	return &adapter.OrderDetails{
		Gateway:     g.Name(),
		OrderID:     fmt.Sprintf("npo_%s", p.ID),
		ClientToken: "noop",
		AmountPaise: p.AmountPaise,
		Currency:    p.Currency,
	}, nil
}

func (g *NoopGateway) ParseWebhook(body []byte, _ string) (*model.GatewayEvent, error) {
	var ev struct {
		Kind    string `json:"kind"`
		OrderID string `json:"order_id"`
	}
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, domain.ErrEventIgnored
	}
	return &model.GatewayEvent{
		Kind:           model.EventKind(ev.Kind),
		Gateway:        g.Name(),
		GatewayOrderID: ev.OrderID,
		ReceivedAt:     time.Now(),
	}, nil
}

func (g *NoopGateway) Refund(_ context.Context, p *model.Payment, _ string) (adapter.RefundResult, error) {
	return adapter.RefundResult{RefundID: "nprf_" + p.ID, Status: "processed"}, nil
}
