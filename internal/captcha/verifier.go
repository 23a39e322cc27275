package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"carmarket/internal/config"
)

var (
	ErrMissing     = errors.New("captcha token is required")
	ErrRejected    = errors.New("captcha rejected")
	ErrUnavailable = errors.New("captcha verification unavailable")
)

type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

type Disabled struct{}

func (Disabled) Verify(context.Context, string, string) error { return nil }

type SiteVerifier struct {
	provider  string
	verifyURL string
	secret    string
	client    *http.Client
}

func New(cfg config.Config) Verifier {
	if !cfg.CaptchaEnabled {
		return Disabled{}
	}
	return NewSiteVerifier(cfg.CaptchaProvider, cfg.CaptchaVerifyURL, cfg.CaptchaSecret, &http.Client{Timeout: 8 * time.Second})
}

func NewSiteVerifier(provider, verifyURL, secret string, client *http.Client) *SiteVerifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &SiteVerifier{
		provider:  strings.ToLower(strings.TrimSpace(provider)),
		verifyURL: strings.TrimSpace(verifyURL),
		secret:    strings.TrimSpace(secret),
		client:    client,
	}
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

func (v *SiteVerifier) Verify(ctx context.Context, token, remoteIP string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrMissing
	}
	switch v.provider {
	case "", "turnstile", "hcaptcha":
	default:
		return fmt.Errorf("%w: unsupported provider %q", ErrUnavailable, v.provider)
	}
	form := url.Values{"secret": {v.secret}, "response": {token}}
	if ip := strings.TrimSpace(remoteIP); ip != "" {
		form.Set("remoteip", ip)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: HTTP %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 300:
		return fmt.Errorf("%w: HTTP %d", ErrRejected, resp.StatusCode)
	}
	var out siteverifyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&out); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !out.Success {
		if len(out.ErrorCodes) > 0 {
			return fmt.Errorf("%w: %s", ErrRejected, strings.Join(out.ErrorCodes, ","))
		}
		return ErrRejected
	}
	return nil
}
