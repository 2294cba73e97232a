package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/agentstation/boardstream/pkg/errors"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, http.StatusOK, Success(map[string]string{"test": "data"}))

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type=application/json, got %s", ct)
	}

	var decoded Response
	if err := json.NewDecoder(w.Body).Decode(&decoded); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if decoded.Data == nil || decoded.Error != nil {
		t.Errorf("unexpected envelope: %+v", decoded)
	}
}

func TestRaw(t *testing.T) {
	w := httptest.NewRecorder()
	Raw(w, http.StatusOK, map[string]int{"totalConnections": 3})

	if got := w.Body.String(); got != "{\"totalConnections\":3}\n" {
		t.Errorf("unexpected body %q", got)
	}
}

func TestFail(t *testing.T) {
	resp := Fail("TEST_ERROR", "Test error message", "Additional details")
	if resp.Data != nil {
		t.Error("expected Data to be nil")
	}
	if resp.Error == nil || resp.Error.Code != "TEST_ERROR" || resp.Error.Details != "Additional details" {
		t.Errorf("unexpected error: %+v", resp.Error)
	}
}

func TestAuthFailed(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"malformed", pkgerrors.NewAuthenticationError(pkgerrors.ErrMalformedToken, "expected 3 segments"), http.StatusUnauthorized, "MALFORMED_TOKEN"},
		{"expired", pkgerrors.NewAuthenticationError(pkgerrors.ErrExpired, ""), http.StatusUnauthorized, "EXPIRED"},
		{"signature", pkgerrors.NewAuthenticationError(pkgerrors.ErrInvalidSignature, ""), http.StatusUnauthorized, "INVALID_SIGNATURE"},
		{"misconfigured", pkgerrors.NewAuthenticationError(pkgerrors.ErrMisconfiguredServer, ""), http.StatusServiceUnavailable, "MISCONFIGURED_SERVER"},
		{"untyped", errors.New("boom"), http.StatusUnauthorized, "UNAUTHORIZED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			AuthFailed(w, tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			var decoded Response
			if err := json.NewDecoder(w.Body).Decode(&decoded); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			if decoded.Error == nil || decoded.Error.Code != tt.wantCode {
				t.Errorf("expected code %s, got %+v", tt.wantCode, decoded.Error)
			}
		})
	}
}

func TestErrorFromType(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not found", pkgerrors.NewNotFoundError("task", "t-1"), http.StatusNotFound},
		{"validation", pkgerrors.NewValidationError("title", "", "required"), http.StatusBadRequest},
		{"wrapped validation", errors.Join(errors.New("ctx"), pkgerrors.NewValidationError("x", nil, "bad")), http.StatusBadRequest},
		{"auth", pkgerrors.NewAuthenticationError(pkgerrors.ErrExpired, ""), http.StatusUnauthorized},
		{"broadcast", pkgerrors.ErrBroadcastUnauthorized, http.StatusForbidden},
		{"timeout", pkgerrors.NewTimeoutError("write", "5s", "slow"), http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			ErrorFromType(w, tt.err)
			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}

func TestHelpers(t *testing.T) {
	tests := []struct {
		name       string
		write      func(http.ResponseWriter)
		wantStatus int
	}{
		{"ok", func(w http.ResponseWriter) { OK(w, "x") }, http.StatusOK},
		{"created", func(w http.ResponseWriter) { Created(w, "x") }, http.StatusCreated},
		{"bad request", func(w http.ResponseWriter) { BadRequest(w, "m", "d") }, http.StatusBadRequest},
		{"forbidden", func(w http.ResponseWriter) { Forbidden(w, "m", "d") }, http.StatusForbidden},
		{"method", func(w http.ResponseWriter) { MethodNotAllowed(w, http.MethodPut) }, http.StatusMethodNotAllowed},
		{"rate", func(w http.ResponseWriter) { RateLimited(w, "slow down") }, http.StatusTooManyRequests},
		{"unavailable", func(w http.ResponseWriter) { ServiceUnavailable(w, "down") }, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)
			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}
