package util

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"carmarket/internal/apperr"
)

func TestWriteAppError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{apperr.Validation("rating must be between 1 and 5"), http.StatusBadRequest, "rating must be between 1 and 5"},
		{apperr.Unauthorized("invalid credentials"), http.StatusUnauthorized, "invalid credentials"},
		{apperr.Forbidden("not allowed"), http.StatusForbidden, "not allowed"},
		{apperr.NotFound("car not found"), http.StatusNotFound, "car not found"},
		{fmt.Errorf("wrapped: %w", apperr.Conflict("listing already sold")), http.StatusConflict, "listing already sold"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "internal error"},
	}
	for _, c := range cases {
		w := httptest.NewRecorder()
		WriteAppError(w, c.err, "rid-1")
		if w.Code != c.status {
			t.Fatalf("%v: expected %d, got %d", c.err, c.status, w.Code)
		}
		var body APIError
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Message != c.msg || body.RequestID != "rid-1" {
			t.Fatalf("%v: unexpected body %+v", c.err, body)
		}
	}
}
