package handler

import (
	"errors"
	"net/http"

	"github.com/consultease/adminguard/internal/credential"
)

// SystemHandler serves endpoints that need no stored state.
type SystemHandler struct {
	validator *credential.Validator
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(validator *credential.Validator) *SystemHandler {
	return &SystemHandler{validator: validator}
}

type passwordCheckRequest struct {
	Password string `json:"password"`
}

type passwordCheckResponse struct {
	Valid     bool   `json:"valid"`
	Message   string `json:"message"`
	Code      string `json:"code,omitempty"`
	MinLength int    `json:"min_length"`
}

// CheckPassword evaluates a candidate password against the policy. Nothing is
// hashed or stored. An empty password is a policy verdict, not a bad request.
// POST /api/v1/system/password/check
func (h *SystemHandler) CheckPassword(w http.ResponseWriter, r *http.Request) {
	var req passwordCheckRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	policy := h.validator.Policy()
	resp := passwordCheckResponse{
		Valid:     true,
		Message:   "Password meets strength requirements",
		MinLength: policy.MinLength(),
	}
	if err := policy.Check(req.Password); err != nil {
		resp.Valid = false
		resp.Message = err.Error()
		var weak *credential.WeakPasswordError
		if errors.As(err, &weak) {
			resp.Code = weak.Code
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
