package notify

import (
	"context"
	"log"
)

type LogSink struct{}

func (LogSink) Name() string { return "log" }

func (LogSink) Send(_ context.Context, e Event) error {
	log.Printf("notify type=%s car_id=%s order_id=%s inquiry_id=%s actor=%s summary=%q",
		e.Type, e.ListingID, e.OrderID, e.InquiryID, e.ActorID, e.Summary)
	return nil
}
