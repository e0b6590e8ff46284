package handler

import (
	"net/http"
	"strconv"

	"discount-rules/internal/model"
	"discount-rules/internal/service"

	"github.com/rs/zerolog"
)

// CopyRuleRequest is the optional body of POST /api/rules/{id}/copy.
type CopyRuleRequest struct {
	Code *string `json:"code,omitempty"`
}

// BulkDeleteRequest is the body of POST /api/rules/bulk-delete.
type BulkDeleteRequest struct {
	IDs []string `json:"ids" validate:"required,min=1"`
}

// RuleHandler handles discount rule HTTP requests.
type RuleHandler struct {
	service service.RuleService
	logger  zerolog.Logger
}

// NewRuleHandler creates a new rule handler.
func NewRuleHandler(service service.RuleService, logger zerolog.Logger) *RuleHandler {
	return &RuleHandler{
		service: service,
		logger:  logger.With().Str("handler", "rule").Logger(),
	}
}

// Create handles POST /api/rules requests.
func (h *RuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in model.RuleInput
	if !decodeJSON(w, r, &in, false, h.logger) {
		return
	}

	rule, err := h.service.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, rule)
}

// List handles GET /api/rules requests with pagination.
func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := 10 // default
	if s := query.Get("limit"); s != "" {
		var err error
		limit, err = strconv.Atoi(s)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidRequest, "invalid limit parameter", nil, h.logger)
			return
		}
	}

	offset := 0 // default
	if s := query.Get("offset"); s != "" {
		var err error
		offset, err = strconv.Atoi(s)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidRequest, "invalid offset parameter", nil, h.logger)
			return
		}
	}

	activeOnly := false
	if s := query.Get("active"); s != "" {
		var err error
		activeOnly, err = strconv.ParseBool(s)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidRequest, "invalid active parameter", nil, h.logger)
			return
		}
	}

	rules, err := h.service.List(r.Context(), limit, offset, activeOnly)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, rules)
}

// Get handles GET /api/rules/{id} requests.
func (h *RuleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ruleIDParam(w, r, "id", h.logger)
	if !ok {
		return
	}

	rule, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

// Update handles PUT /api/rules/{id} requests. The body replaces the whole rule.
func (h *RuleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ruleIDParam(w, r, "id", h.logger)
	if !ok {
		return
	}

	var in model.RuleInput
	if !decodeJSON(w, r, &in, false, h.logger) {
		return
	}

	rule, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

// Delete handles DELETE /api/rules/{id} requests.
func (h *RuleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ruleIDParam(w, r, "id", h.logger)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Deactivate handles POST /api/rules/{id}/deactivate requests.
func (h *RuleHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := ruleIDParam(w, r, "id", h.logger)
	if !ok {
		return
	}

	rule, err := h.service.Deactivate(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

// Copy handles POST /api/rules/{id}/copy requests.
func (h *RuleHandler) Copy(w http.ResponseWriter, r *http.Request) {
	id, ok := ruleIDParam(w, r, "id", h.logger)
	if !ok {
		return
	}

	var req CopyRuleRequest
	if !decodeJSON(w, r, &req, true, h.logger) {
		return
	}

	rule, err := h.service.Copy(r.Context(), id, req.Code)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, rule)
}

// BulkDelete handles POST /api/rules/bulk-delete requests.
// The response is 200 even when some IDs fail; the report carries each outcome.
func (h *RuleHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req BulkDeleteRequest
	if !decodeJSON(w, r, &req, false, h.logger) {
		return
	}
	if !validateRequest(w, r, &req, h.logger) {
		return
	}

	writeJSON(w, http.StatusOK, h.service.BulkDelete(r.Context(), req.IDs))
}
