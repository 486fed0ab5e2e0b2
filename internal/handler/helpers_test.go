package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/consultease/adminguard/internal/config"
	"github.com/consultease/adminguard/internal/credential"
	"github.com/consultease/adminguard/internal/lockout"
	"github.com/consultease/adminguard/internal/service"
)

func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, http.StatusTeapot, "short and stout", map[string]interface{}{"spout": true})

	if rr.Code != http.StatusTeapot {
		t.Errorf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	detail := decodeError(t, rr)
	if detail.Code != http.StatusTeapot || detail.Message != "short and stout" || detail.Context["spout"] != true {
		t.Errorf("detail = %+v", detail)
	}
}

func TestWriteLockedRoundsUp(t *testing.T) {
	rr := httptest.NewRecorder()
	writeLocked(rr, 1500*time.Millisecond)

	if rr.Code != http.StatusLocked {
		t.Errorf("status = %d", rr.Code)
	}
	if got := rr.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After = %q, want 2", got)
	}
	if detail := decodeError(t, rr); detail.Context["remaining_seconds"] != float64(2) {
		t.Errorf("remaining_seconds = %v", detail.Context["remaining_seconds"])
	}
}

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"weak password", &credential.WeakPasswordError{Code: credential.CodeMinLength, Reason: "too short"}, http.StatusBadRequest},
		{"locked", &service.LockedError{Remaining: time.Minute}, http.StatusLocked},
		{"invalid credentials", service.ErrInvalidCredentials, http.StatusUnauthorized},
		{"invalid username", service.ErrInvalidUsername, http.StatusBadRequest},
		{"duplicate", fmt.Errorf("change username: %w", config.ErrDuplicate), http.StatusConflict},
		{"recording failed", fmt.Errorf("%w: %w", lockout.ErrRecordingFailed, errors.New("database is closed")), http.StatusServiceUnavailable},
		{"conflict", config.ErrConflict, http.StatusServiceUnavailable},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeServiceError(rr, tt.err)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
			if strings.Contains(rr.Body.String(), "database is closed") || strings.Contains(rr.Body.String(), "boom") {
				t.Errorf("internal error text leaked: %s", rr.Body.String())
			}
		})
	}
}

func TestReadJSONRejectsOversizedBody(t *testing.T) {
	body := `{"password":"` + strings.Repeat("a", maxBodySize) + `"}`
	req := httptest.NewRequest("POST", "/", strings.NewReader(body))
	rr := httptest.NewRecorder()

	var v passwordCheckRequest
	if err := readJSON(rr, req, &v); err == nil {
		t.Error("expected an error for an oversized body")
	}
}
