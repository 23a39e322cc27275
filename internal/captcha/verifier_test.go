package captcha

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"carmarket/internal/config"
)

func TestSiteVerifierSendsForm(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("secret") != "s3cret" || r.PostForm.Get("response") != "tok" || r.PostForm.Get("remoteip") != "198.51.100.7" {
			t.Errorf("unexpected form %v", r.PostForm)
		}
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer ts.Close()

	v := NewSiteVerifier("hcaptcha", ts.URL, "s3cret", ts.Client())
	if err := v.Verify(context.Background(), "tok", "198.51.100.7"); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestSiteVerifierOutcomes(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"rejected with codes", 200, `{"success":false,"error-codes":["invalid-input-response"]}`, ErrRejected},
		{"rejected bare", 200, `{"success":false}`, ErrRejected},
		{"bad request", 400, `{}`, ErrRejected},
		{"provider down", 503, ``, ErrUnavailable},
		{"garbage", 200, `not json`, ErrUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer ts.Close()
			err := NewSiteVerifier("turnstile", ts.URL, "s", ts.Client()).Verify(context.Background(), "tok", "")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestSiteVerifierRequiresToken(t *testing.T) {
	err := NewSiteVerifier("turnstile", "http://127.0.0.1:1", "s", nil).Verify(context.Background(), "  ", "")
	if !errors.Is(err, ErrMissing) {
		t.Fatalf("expected ErrMissing, got %v", err)
	}
}

func TestSiteVerifierUnknownProvider(t *testing.T) {
	err := NewSiteVerifier("recaptcha", "http://127.0.0.1:1", "s", nil).Verify(context.Background(), "tok", "")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestNewDisabled(t *testing.T) {
	v := New(config.Config{})
	if _, ok := v.(Disabled); !ok {
		t.Fatalf("expected Disabled verifier, got %T", v)
	}
	if err := v.Verify(context.Background(), "", ""); err != nil {
		t.Fatalf("disabled verifier should accept, got %v", err)
	}
}
