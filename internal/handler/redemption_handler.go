package handler

import (
	"net/http"
	"strings"

	"discount-rules/internal/model"
	"discount-rules/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// ResetResponse acknowledges an administrative reset.
type ResetResponse struct {
	CustomerID string `json:"customer_id"`
	RuleID     string `json:"rule_id"`
	Status     string `json:"status"`
}

// RedemptionHandler handles redemption and usage HTTP requests.
type RedemptionHandler struct {
	service service.RedemptionService
	logger  zerolog.Logger
}

// NewRedemptionHandler creates a new redemption handler.
func NewRedemptionHandler(service service.RedemptionService, logger zerolog.Logger) *RedemptionHandler {
	return &RedemptionHandler{
		service: service,
		logger:  logger.With().Str("handler", "redemption").Logger(),
	}
}

// Redeem handles POST /api/redemptions requests.
// A denial is a normal outcome and is returned with 200 and eligible=false.
func (h *RedemptionHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	attempt, ok := h.decodeAttempt(w, r)
	if !ok {
		return
	}

	result, err := h.service.Redeem(r.Context(), attempt)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Preview handles POST /api/redemptions/preview requests.
func (h *RedemptionHandler) Preview(w http.ResponseWriter, r *http.Request) {
	attempt, ok := h.decodeAttempt(w, r)
	if !ok {
		return
	}

	result, err := h.service.Preview(r.Context(), attempt)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Usage handles GET /api/usage/{customerID}/{ruleID} requests.
func (h *RedemptionHandler) Usage(w http.ResponseWriter, r *http.Request) {
	ruleID, ok := ruleIDParam(w, r, "ruleID", h.logger)
	if !ok {
		return
	}

	usage, err := h.service.Usage(r.Context(), chi.URLParam(r, "customerID"), ruleID)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	if usage == nil {
		writeServiceError(w, r, model.ErrUsageNotFound, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, usage)
}

// Reset handles POST /api/usage/reset requests.
func (h *RedemptionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req model.ResetRequest
	if !decodeJSON(w, r, &req, false, h.logger) {
		return
	}
	if !validateRequest(w, r, &req, h.logger) {
		return
	}

	if err := h.service.Reset(r.Context(), req); err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, ResetResponse{
		CustomerID: strings.TrimSpace(req.CustomerID),
		RuleID:     strings.TrimSpace(req.RuleID),
		Status:     "reset",
	})
}

func (h *RedemptionHandler) decodeAttempt(w http.ResponseWriter, r *http.Request) (model.RedemptionAttempt, bool) {
	var attempt model.RedemptionAttempt
	if !decodeJSON(w, r, &attempt, false, h.logger) {
		return attempt, false
	}
	if !validateRequest(w, r, &attempt, h.logger) {
		return attempt, false
	}
	return attempt, true
}
