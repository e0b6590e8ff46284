package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"discount-rules/internal/model"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

var requestValidator = newRequestValidator()

func newRequestValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but don't expose it to the client
		return
	}
}

// writeError writes an error response with the given status code, code and message.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details []model.FieldError, logger zerolog.Logger) {
	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Str("error", message).Str("code", code).Int("status", status).Msg("handler error")

	writeJSON(w, status, model.ErrorResponse{
		Error:         code,
		Message:       message,
		CorrelationID: chimw.GetReqID(r.Context()),
		Details:       details,
	})
}

// writeServiceError maps a service error onto a status code and error body.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, logger zerolog.Logger) {
	var (
		validationErr *model.ValidationError
		domainErr     *model.DomainError
	)

	switch {
	case errors.As(err, &validationErr):
		writeError(w, r, http.StatusUnprocessableEntity, model.ErrCodeValidationFailed,
			"rule validation failed", validationErr.Errors, logger)
	case errors.As(err, &domainErr):
		writeError(w, r, domainStatus(domainErr.Code), domainErr.Code, domainErr.Message, nil, logger)
	case model.IsInfrastructure(err):
		logger.Error().Err(err).Msg("infrastructure failure")
		writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeUnavailable,
			"storage is temporarily unavailable, retry later", nil, logger)
	default:
		logger.Error().Err(err).Msg("unexpected failure")
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError,
			"internal server error", nil, logger)
	}
}

func domainStatus(code string) int {
	switch code {
	case model.ErrCodeRuleNotFound, model.ErrCodeUsageNotFound:
		return http.StatusNotFound
	case model.ErrCodeDuplicateRuleCode:
		return http.StatusConflict
	case model.ErrCodeInvalidRuleID, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusUnprocessableEntity
	}
}

// decodeJSON reads the request body into v. An empty body is allowed when optional is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}, optional bool, logger zerolog.Logger) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body: "+err.Error(), nil, logger)
		return false
	}
	return true
}

// validateRequest runs the struct tags of a request DTO.
func validateRequest(w http.ResponseWriter, r *http.Request, v interface{}, logger zerolog.Logger) bool {
	err := requestValidator.Struct(v)
	if err == nil {
		return true
	}

	var details []model.FieldError
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			detail := model.FieldError{Field: fe.Field(), Message: fe.Error()}
			if fe.Tag() == "required" {
				detail.Kind = model.KindMissingRequiredField
				detail.Message = fe.Field() + " is required"
			}
			details = append(details, detail)
		}
	}

	writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidRequest, "invalid request", details, logger)
	return false
}

// ruleIDParam parses a UUID path parameter.
func ruleIDParam(w http.ResponseWriter, r *http.Request, name string, logger zerolog.Logger) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeServiceError(w, r, model.ErrInvalidRuleID, logger)
		return uuid.Nil, false
	}
	return id, true
}
