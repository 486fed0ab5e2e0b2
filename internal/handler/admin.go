package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/consultease/adminguard/internal/lockout"
	"github.com/consultease/adminguard/internal/service"
)

// AdminHandler serves the administrator credential endpoints.
type AdminHandler struct {
	authSvc *service.AuthService
	now     func() time.Time
	logger  *slog.Logger
}

// NewAdminHandler creates an AdminHandler. clock may be nil, in which case
// time.Now is used.
func NewAdminHandler(authSvc *service.AuthService, clock func() time.Time, logger *slog.Logger) *AdminHandler {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &AdminHandler{authSvc: authSvc, now: clock, logger: logger}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Authenticated bool   `json:"authenticated"`
	AdminID       int64  `json:"admin_id"`
	Username      string `json:"username"`
}

// Login verifies administrator credentials and records the attempt. It does
// not issue a session; callers act on the verdict.
// POST /api/v1/system/admin/session
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	result, err := h.authSvc.AttemptLogin(r.Context(), req.Username, req.Password, h.now())
	if err != nil {
		h.logger.Error("login attempt could not be recorded", "username", req.Username, "error", err)
		writeServiceError(w, err)
		return
	}

	switch result.Outcome {
	case service.OutcomeAccepted:
		writeJSON(w, http.StatusOK, loginResponse{
			Authenticated: true,
			AdminID:       result.Admin.ID,
			Username:      result.Admin.Username,
		})
	case service.OutcomeLocked:
		writeLocked(w, result.Remaining)
	default:
		writeInvalidCredentials(w, result.Remaining)
	}
}

type changePasswordRequest struct {
	Username        string `json:"username"`
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword replaces a password after verifying the current one.
// PUT /api/v1/system/admin/password
func (h *AdminHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Username == "" || req.CurrentPassword == "" {
		writeError(w, http.StatusBadRequest, "Username and current password are required")
		return
	}

	if err := h.authSvc.ChangePassword(r.Context(), req.Username, req.CurrentPassword, req.NewPassword, h.now()); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Password changed",
	})
}

type lockStatusResponse struct {
	Username         string `json:"username"`
	Locked           bool   `json:"locked"`
	RemainingSeconds int64  `json:"remaining_seconds"`
}

// LockStatus reports whether an administrator is currently locked out. An
// unknown username reports unlocked.
// GET /api/v1/system/admin/{username}/lock
func (h *AdminHandler) LockStatus(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	locked, remaining, err := h.authSvc.IsLocked(r.Context(), username, h.now())
	if err != nil {
		h.logger.Error("lock status lookup failed", "username", username, "error", err)
		writeError(w, http.StatusServiceUnavailable, "Lock status is temporarily unavailable")
		return
	}

	writeJSON(w, http.StatusOK, lockStatusResponse{
		Username:         username,
		Locked:           locked,
		RemainingSeconds: lockout.Seconds(remaining),
	})
}
