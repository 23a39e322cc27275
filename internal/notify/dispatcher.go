package notify

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"carmarket/internal/config"
)

const sendTimeout = 10 * time.Second

type Dispatcher struct {
	sinks       []Sink
	maxAttempts int
	backoff     time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
	stop   chan struct{}
}

func NewDispatcher(maxAttempts int, initialBackoff time.Duration, sinks ...Sink) *Dispatcher {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &Dispatcher{
		sinks:       sinks,
		maxAttempts: maxAttempts,
		backoff:     initialBackoff,
		stop:        make(chan struct{}),
	}
}

func New(cfg config.Config) (*Dispatcher, error) {
	sinks := make([]Sink, 0, len(cfg.NotifySinks))
	for _, name := range cfg.NotifySinks {
		switch name {
		case "log":
			sinks = append(sinks, LogSink{})
		case "telegram":
			sinks = append(sinks, NewTelegramSink(cfg.TelegramAPIBase, cfg.TelegramBotToken, cfg.TelegramChatID))
		case "amqp":
			sinks = append(sinks, NewAMQPSink(cfg.AMQPURL, cfg.AMQPExchange))
		case "smtp":
			sinks = append(sinks, NewSMTPSink(SMTPConfig{
				Host:     cfg.SMTPHost,
				Port:     cfg.SMTPPort,
				Username: cfg.SMTPUsername,
				Password: cfg.SMTPPassword,
				From:     cfg.SMTPFrom,
			}))
		default:
			return nil, fmt.Errorf("unsupported notify sink: %s", name)
		}
	}
	return NewDispatcher(cfg.NotifyMaxAttempts, cfg.NotifyInitialBackoff(), sinks...), nil
}

// Publish hands e to every sink in the background and returns immediately.
// Events published after Close are dropped.
func (d *Dispatcher) Publish(e Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		log.Printf("notify dropped type=%s reason=closed", e.Type)
		return
	}
	for _, s := range d.sinks {
		d.wg.Add(1)
		go d.deliver(s, e)
	}
}

func (d *Dispatcher) deliver(s Sink, e Event) {
	defer d.wg.Done()
	wait := d.backoff
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		err := s.Send(ctx, e)
		cancel()
		if err == nil {
			return
		}
		if attempt == d.maxAttempts {
			log.Printf("notify failed sink=%s type=%s attempts=%d err=%v", s.Name(), e.Type, attempt, err)
			return
		}
		select {
		case <-time.After(wait):
		case <-d.stop:
			log.Printf("notify abandoned sink=%s type=%s attempts=%d err=%v", s.Name(), e.Type, attempt, err)
			return
		}
		wait *= 2
	}
}

func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	var err error
	select {
	case <-done:
	case <-ctx.Done():
		close(d.stop)
		err = ctx.Err()
	}
	for _, s := range d.sinks {
		if c, ok := s.(interface{ Close() error }); ok {
			if cerr := c.Close(); cerr != nil {
				log.Printf("notify sink close sink=%s err=%v", s.Name(), cerr)
			}
		}
	}
	return err
}
