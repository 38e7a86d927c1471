package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/AngelCh415/dmlab/internal/export"
	"github.com/AngelCh415/dmlab/internal/ingest"
	"github.com/AngelCh415/dmlab/internal/metrics"
	"github.com/AngelCh415/dmlab/internal/store"
)

// APIError is an RFC 7807 problem body.
type APIError struct {
	Type   string            `json:"type"`
	Title  string            `json:"title"`
	Status int               `json:"status"`
	Detail string            `json:"detail,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}

const (
	ErrorTypeValidation  = "validation_error"
	ErrorTypeNotFound    = "not_found"
	ErrorTypeBadRequest  = "bad_request"
	ErrorTypeConflict    = "conflict"
	ErrorTypeTooLarge    = "payload_too_large"
	ErrorTypeRateLimited = "rate_limited"
	ErrorTypeUpstream    = "upstream_error"
	ErrorTypeUnavailable = "unavailable"
	ErrorTypeInternal    = "internal_error"
)

var errBadBody = errors.New("invalid request body")

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func respondProblem(w http.ResponseWriter, status int, typ, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIError{
		Type:   typ,
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	})
}

// respondError maps domain errors to problem responses. Unknown errors are
// logged and reported as 500 without detail.
func respondError(w http.ResponseWriter, log *zap.Logger, err error) {
	var (
		ve       validator.ValidationErrors
		tooLarge *http.MaxBytesError
		upstream *ingest.StatusError
	)
	switch {
	case errors.As(err, &ve):
		respondValidationError(w, ve)
	case errors.As(err, &tooLarge):
		respondProblem(w, http.StatusRequestEntityTooLarge, ErrorTypeTooLarge,
			fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
	case errors.Is(err, store.ErrNotFound):
		respondProblem(w, http.StatusNotFound, ErrorTypeNotFound, err.Error())
	case errors.Is(err, store.ErrDuplicateID),
		errors.Is(err, store.ErrLastVariant),
		errors.Is(err, store.ErrLastAccount),
		errors.Is(err, store.ErrAccountInUse):
		respondProblem(w, http.StatusConflict, ErrorTypeConflict, err.Error())
	case errors.Is(err, store.ErrInvalidInput),
		errors.Is(err, metrics.ErrBadQuery),
		errors.Is(err, export.ErrNoHeader),
		errors.Is(err, errBadBody):
		respondProblem(w, http.StatusBadRequest, ErrorTypeBadRequest, err.Error())
	case errors.Is(err, ingest.ErrSyncNotConfigured):
		respondProblem(w, http.StatusServiceUnavailable, ErrorTypeUnavailable, err.Error())
	case errors.As(err, &upstream):
		respondProblem(w, http.StatusBadGateway, ErrorTypeUpstream, err.Error())
	default:
		log.Error("request failed", zap.Error(err))
		respondProblem(w, http.StatusInternalServerError, ErrorTypeInternal, "")
	}
}

func respondValidationError(w http.ResponseWriter, ve validator.ValidationErrors) {
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[toJSONFieldName(fe.Field())] = formatValidationError(fe)
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(APIError{
		Type:   ErrorTypeValidation,
		Title:  "Validation Error",
		Status: http.StatusBadRequest,
		Detail: "One or more fields failed validation",
		Errors: fields,
	})
}

func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", toJSONFieldName(fe.Field()))
	case "max":
		return fmt.Sprintf("Must be at most %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("Must be greater than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", fe.Param())
	case "url":
		return "Must be a valid URL"
	case "datetime":
		return "Must be a date in YYYY-MM-DD format"
	default:
		return fmt.Sprintf("Failed %s validation", fe.Tag())
	}
}

func toJSONFieldName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}
