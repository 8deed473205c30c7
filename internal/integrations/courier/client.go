package courier

import (
	"context"
	"time"

	"github.com/BearBump/CourierSync/internal/models"
)

// Идентификаторы провайдеров.
const (
	CodePathao    = "pathao"
	CodeSteadfast = "steadfast"
	CodeFake      = "fake"
)

// TrackingReport is what a provider says about a consignment right now.
type TrackingReport struct {
	RawStatus     string
	RawStatusText string
	Location      *string
	UpdatedAt     *time.Time
}

type CreateOrderRequest struct {
	MerchantOrderID string
	Recipient       models.Recipient
}

type Consignment struct {
	ConsignmentID string
	TrackingID    string
	RawStatus     string
}

type Client interface {
	Code() string
	TrackOrder(ctx context.Context, trackingID string) (TrackingReport, error)
	CreateOrder(ctx context.Context, req CreateOrderRequest) (Consignment, error)
}

// Registry selects a client by the courier code stored on the order.
type Registry struct {
	clients map[string]Client
}

func NewRegistry(clients ...Client) *Registry {
	r := &Registry{clients: make(map[string]Client, len(clients))}
	for _, c := range clients {
		if c != nil {
			r.clients[c.Code()] = c
		}
	}
	return r
}

func (r *Registry) Get(code string) (Client, bool) {
	if r == nil {
		return nil, false
	}
	c, ok := r.clients[code]
	return c, ok
}

func (r *Registry) Codes() []string {
	out := make([]string, 0, len(r.clients))
	for code := range r.clients {
		out = append(out, code)
	}
	return out
}
