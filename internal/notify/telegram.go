package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

const maxSummaryRunes = 500

type TelegramSink struct {
	apiBase string
	token   string
	chatID  string
	client  *http.Client
}

func NewTelegramSink(apiBase, token, chatID string) *TelegramSink {
	if strings.TrimSpace(apiBase) == "" {
		apiBase = "https://api.telegram.org"
	}
	return &TelegramSink{
		apiBase: strings.TrimRight(apiBase, "/"),
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: 8 * time.Second},
	}
}

func (t *TelegramSink) Name() string { return "telegram" }

func (t *TelegramSink) Send(ctx context.Context, e Event) error {
	payload, err := json.Marshal(map[string]any{
		"chat_id":                  t.chatID,
		"text":                     formatTelegram(e),
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	})
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	var out struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	_ = json.Unmarshal(body, &out)
	if resp.StatusCode/100 != 2 || !out.OK {
		return fmt.Errorf("telegram status=%d description=%q", resp.StatusCode, out.Description)
	}
	return nil
}

func formatTelegram(e Event) string {
	var b strings.Builder
	switch e.Type {
	case EventInquiryCreated:
		b.WriteString("📨 <b>New Inquiry Received</b>\n\n")
	case EventPaymentConfirmed:
		b.WriteString("💳 <b>Payment Confirmed</b>\n\n")
	case EventOrderCompleted:
		b.WriteString("✅ <b>Order Completed</b>\n\n")
	default:
		fmt.Fprintf(&b, "<b>%s</b>\n\n", html.EscapeString(e.Type))
	}
	if e.Summary != "" {
		b.WriteString(html.EscapeString(truncateRunes(e.Summary, maxSummaryRunes)))
		b.WriteString("\n")
	}
	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "<b>%s:</b> %s\n", html.EscapeString(k), html.EscapeString(e.Data[k]))
	}
	fmt.Fprintf(&b, "\n<i>%s</i>", e.OccurredAt.UTC().Format(time.RFC3339))
	return b.String()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
