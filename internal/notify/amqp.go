package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

type AMQPSink struct {
	url      string
	exchange string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
	dial func(url string) (*amqp.Connection, error)
}

func NewAMQPSink(url, exchange string) *AMQPSink {
	if exchange == "" {
		exchange = "carmarket.events"
	}
	return &AMQPSink{url: url, exchange: exchange, dial: amqp.Dial}
}

func (s *AMQPSink) Name() string { return "amqp" }

func (s *AMQPSink) Send(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureChannel(); err != nil {
		return err
	}
	err = s.ch.PublishWithContext(ctx, s.exchange, e.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    e.OccurredAt,
		Type:         e.Type,
		Body:         body,
	})
	if err != nil {
		// Force a redial on the next attempt.
		s.closeLocked()
		return fmt.Errorf("amqp publish: %w", err)
	}
	return nil
}

func (s *AMQPSink) ensureChannel() error {
	if s.conn != nil && !s.conn.IsClosed() && s.ch != nil && !s.ch.IsClosed() {
		return nil
	}
	s.closeLocked()
	conn, err := s.dial(s.url)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(s.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("amqp exchange declare: %w", err)
	}
	s.conn, s.ch = conn, ch
	log.Printf("notify amqp connected exchange=%s", s.exchange)
	return nil
}

func (s *AMQPSink) closeLocked() {
	if s.ch != nil {
		_ = s.ch.Close()
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.conn, s.ch = nil, nil
}

func (s *AMQPSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	return nil
}
