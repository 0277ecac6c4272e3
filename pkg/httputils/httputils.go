package httputils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/IgorGrieder/minimizurl/internal/constants"
	"github.com/IgorGrieder/minimizurl/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	CorrelationIDHeader = "X-Correlation-Id"

	maxBodyBytes = 64 << 10
)

// APIResponse wraps all API responses with metadata
type APIResponse struct {
	ResponseTime  time.Time `json:"responseTime" example:"2024-01-15T10:30:00Z"`
	CorrelationId string    `json:"correlationId" example:"550e8400-e29b-41d4-a716-446655440000"`
	Code          string    `json:"code,omitempty" example:"LINK_CREATED"`
	Data          any       `json:"data,omitempty"`
	Error         string    `json:"error,omitempty" example:"INVALID_REQUEST"`
	Message       string    `json:"message,omitempty" example:"Request processed successfully"`
}

type SuccessResponse struct {
	Data any `json:"data"`
}

// GetCorrelationID extracts the correlation ID from the request header.
// If not present, generates a new UUID v4.
func GetCorrelationID(r *http.Request) string {
	correlationID := r.Header.Get(CorrelationIDHeader)
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	return correlationID
}

// WriteAPIError writes an error response with metadata using a predefined APIError
func WriteAPIError(w http.ResponseWriter, r *http.Request, apiErr constants.APIError) {
	correlationID := GetCorrelationID(r)

	w.Header().Set(CorrelationIDHeader, correlationID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)

	response := APIResponse{
		ResponseTime:  time.Now().UTC(),
		CorrelationId: correlationID,
		Error:         apiErr.Code,
		Message:       apiErr.Message,
	}

	encode(w, response)
}

// WriteAPISuccess writes a success response with metadata using a predefined
// APISuccess. A 204 status writes headers only.
func WriteAPISuccess(w http.ResponseWriter, r *http.Request, apiSuccess constants.APISuccess, data any) {
	correlationID := GetCorrelationID(r)
	w.Header().Set(CorrelationIDHeader, correlationID)

	if apiSuccess.Status == http.StatusNoContent {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiSuccess.Status)

	response := APIResponse{
		ResponseTime:  time.Now().UTC(),
		CorrelationId: correlationID,
		Code:          apiSuccess.Code,
		Data:          data,
	}

	encode(w, response)
}

func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encode(w, SuccessResponse{Data: data})
}

// DecodeJSON reads a single JSON object from the request body into dst.
// Unknown fields and trailing data are rejected.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("decode body: unexpected data after JSON object")
	}
	return nil
}

func encode(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode json response", zap.Error(err))
	}
}
