package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/consultease/adminguard/internal/config"
	"github.com/consultease/adminguard/internal/credential"
	"github.com/consultease/adminguard/internal/lockout"
	"github.com/consultease/adminguard/internal/model"
	"github.com/consultease/adminguard/internal/service"
)

// maxBodySize caps JSON request bodies. Credential payloads are tiny.
const maxBodySize = 64 << 10

// writeJSON serializes v as JSON and writes it to the response with the given
// HTTP status code. The Content-Type header is set to application/json.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a structured error response using the standard error
// envelope. The optional ctx map provides additional context fields.
func writeError(w http.ResponseWriter, code int, message string, ctx ...map[string]interface{}) {
	var ctxMap map[string]interface{}
	if len(ctx) > 0 {
		ctxMap = ctx[0]
	}
	writeJSON(w, code, model.ErrorResponse{
		Error: model.ErrorDetail{
			Code:    code,
			Message: message,
			Context: ctxMap,
		},
	})
}

// readJSON decodes the request body as JSON into v. The body is closed after
// decoding regardless of success or failure.
func readJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeLocked answers 423 with the remaining lock time in whole seconds,
// rounded up, both as Retry-After and in the error context.
func writeLocked(w http.ResponseWriter, remaining time.Duration) {
	secs := lockout.Seconds(remaining)
	w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	writeError(w, http.StatusLocked,
		fmt.Sprintf("Account is locked. Try again in %d seconds", secs),
		map[string]interface{}{"remaining_seconds": secs})
}

// writeInvalidCredentials answers 401. remaining is non-zero when the failure
// being reported is the one that locked the account.
func writeInvalidCredentials(w http.ResponseWriter, remaining time.Duration) {
	if remaining <= 0 {
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	secs := lockout.Seconds(remaining)
	w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	writeError(w, http.StatusUnauthorized,
		fmt.Sprintf("Invalid username or password. Account is now locked. Try again in %d seconds", secs),
		map[string]interface{}{"remaining_seconds": secs})
}

// writeServiceError maps errors returned by the auth service to HTTP
// responses. Store failures never leak their text to the client.
func writeServiceError(w http.ResponseWriter, err error) {
	var weak *credential.WeakPasswordError
	var locked *service.LockedError

	switch {
	case errors.As(err, &weak):
		writeError(w, http.StatusBadRequest, weak.Reason, map[string]interface{}{"code": weak.Code})
	case errors.As(err, &locked):
		writeLocked(w, locked.Remaining)
	case errors.Is(err, service.ErrInvalidCredentials):
		writeInvalidCredentials(w, 0)
	case errors.Is(err, service.ErrInvalidUsername):
		writeError(w, http.StatusBadRequest, "Username must not be empty")
	case errors.Is(err, config.ErrDuplicate):
		writeError(w, http.StatusConflict, "Username already exists")
	case errors.Is(err, lockout.ErrRecordingFailed), errors.Is(err, config.ErrConflict):
		writeError(w, http.StatusServiceUnavailable, "Authentication is temporarily unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "Internal error")
	}
}
