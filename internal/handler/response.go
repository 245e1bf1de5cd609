package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"detectserver/internal/logger"
	"detectserver/internal/service"
	"detectserver/internal/service/ai"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidRequest   = "invalid_request"
	CodePayloadTooLarge  = "payload_too_large"
	CodeUnknownModel     = "unknown_model"
	CodeInvalidImage     = "invalid_image"
	CodeInvalidThreshold = "invalid_threshold"
	CodeModelLoad        = "model_load_error"
	CodeDetection        = "detection_error"
	CodeTimeout          = "timeout"
	CodeNotFound         = "not_found"
	CodeUnauthorized     = "unauthorized"
	CodeInternal         = "internal_error"
)

// ErrorResponse is the JSON body of every failed API call.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}, logger *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

// WriteError sends an ErrorResponse with the given status.
func WriteError(w http.ResponseWriter, status int, code, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Code: code, Message: message, Details: details})
}

// classifyError maps service errors onto an HTTP status and error code.
func classifyError(err error) (int, string, string) {
	var loadErr *ai.ModelLoadError
	var detErr *ai.DetectionError

	switch {
	case errors.Is(err, service.ErrUnknownModel):
		return http.StatusBadRequest, CodeUnknownModel, "Model is not available"
	case errors.As(err, &loadErr):
		return http.StatusInternalServerError, CodeModelLoad, "Error loading model"
	case errors.Is(err, ai.ErrInferenceTimeout):
		return http.StatusGatewayTimeout, CodeTimeout, "Detection timed out"
	case errors.Is(err, ai.ErrMalformedImage):
		return http.StatusBadRequest, CodeInvalidImage, "Image could not be decoded"
	case errors.Is(err, ai.ErrInvalidThreshold):
		return http.StatusBadRequest, CodeInvalidThreshold, "Confidence must be between 0 and 1"
	case errors.As(err, &detErr):
		return http.StatusInternalServerError, CodeDetection, "Error during detection"
	default:
		return http.StatusInternalServerError, CodeInternal, "Internal Server Error"
	}
}

func writeServiceError(w http.ResponseWriter, err error, logger *logger.Logger) {
	status, code, message := classifyError(err)
	if status >= http.StatusInternalServerError {
		logger.Error("%s: %v", message, err)
	} else {
		logger.Warning("%s: %v", message, err)
	}
	WriteError(w, status, code, message, err.Error())
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}
