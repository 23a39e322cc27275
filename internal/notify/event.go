package notify

import (
	"context"
	"time"
)

const (
	EventInquiryCreated   = "inquiry.created"
	EventPaymentConfirmed = "payment.confirmed"
	EventOrderCompleted   = "order.completed"
)

type Event struct {
	Type       string            `json:"type"`
	OccurredAt time.Time         `json:"occurred_at"`
	ListingID  string            `json:"car_id,omitempty"`
	OrderID    string            `json:"order_id,omitempty"`
	InquiryID  string            `json:"inquiry_id,omitempty"`
	ActorID    string            `json:"actor_id,omitempty"`
	Recipient  string            `json:"recipient,omitempty"`
	Summary    string            `json:"summary"`
	Data       map[string]string `json:"data,omitempty"`
}

type Sink interface {
	Name() string
	Send(ctx context.Context, e Event) error
}
