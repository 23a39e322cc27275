package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SMTPSink struct {
	cfg         SMTPConfig
	dialTimeout time.Duration
}

func NewSMTPSink(cfg SMTPConfig) *SMTPSink {
	return &SMTPSink{cfg: cfg, dialTimeout: 10 * time.Second}
}

func (s *SMTPSink) Name() string { return "smtp" }

func (s *SMTPSink) Send(ctx context.Context, e Event) error {
	if strings.TrimSpace(e.Recipient) == "" {
		return nil
	}
	raw, err := buildMessage(s.cfg.From, e)
	if err != nil {
		return err
	}
	return s.deliver(ctx, e.Recipient, raw)
}

func (s *SMTPSink) deliver(ctx context.Context, rcpt string, raw []byte) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	dialer := &net.Dialer{Timeout: s.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return err
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
			return err
		}
	}
	if s.cfg.Username != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
				return err
			}
		}
	}
	if err := client.Mail(s.cfg.From); err != nil {
		return err
	}
	if err := client.Rcpt(strings.TrimSpace(rcpt)); err != nil {
		return err
	}
	wc, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := wc.Write(raw); err != nil {
		return err
	}
	if err := wc.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func buildMessage(from string, e Event) ([]byte, error) {
	fromAddr, err := mail.ParseAddress(from)
	if err != nil {
		return nil, fmt.Errorf("smtp from: %w", err)
	}
	toAddr, err := mail.ParseAddress(e.Recipient)
	if err != nil {
		return nil, fmt.Errorf("smtp recipient: %w", err)
	}
	var h mail.Header
	h.SetDate(e.OccurredAt)
	h.SetAddressList("From", []*mail.Address{fromAddr})
	h.SetAddressList("To", []*mail.Address{toAddr})
	h.SetSubject(subjectFor(e))
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	if err := h.GenerateMessageID(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write([]byte(plainBody(e))); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func subjectFor(e Event) string {
	switch e.Type {
	case EventInquiryCreated:
		return "New inquiry on your listing"
	case EventPaymentConfirmed:
		return "Payment confirmed"
	case EventOrderCompleted:
		return "Order completed"
	}
	return e.Type
}

func plainBody(e Event) string {
	var b strings.Builder
	b.WriteString(e.Summary)
	b.WriteString("\r\n\r\n")
	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\r\n", k, e.Data[k])
	}
	return b.String()
}
