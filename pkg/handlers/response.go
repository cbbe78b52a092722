package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/sellercentry/account-health/pkg/apperrors"
	"github.com/sellercentry/account-health/pkg/logging"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// StatusForKind maps an error kind to its HTTP status. Transport failures
// are upstream failures, hence 502.
func StatusForKind(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindUnauthorized:
		return http.StatusUnauthorized
	case apperrors.KindForbidden:
		return http.StatusForbidden
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindRateLimited:
		return http.StatusTooManyRequests
	case apperrors.KindInvalid:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

// writeAppError renders err as {"error": kind, "message": ...}. Transport
// failures are logged here since the caller only sees a generic message.
func writeAppError(w http.ResponseWriter, err error, logger *zap.Logger) {
	kind := apperrors.KindOf(err)
	message := apperrors.MessageOf(err)
	if kind == apperrors.KindTransport {
		logger.Error("Backend request failed", logging.Error(err))
		message = "upstream request failed"
	}
	if err := ErrorResponse(w, StatusForKind(kind), string(kind), message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}

// writeBadRequest is writeAppError for request decoding failures.
func writeBadRequest(w http.ResponseWriter, message string, logger *zap.Logger) {
	if err := ErrorResponse(w, http.StatusBadRequest, string(apperrors.KindInvalid), message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}

func writeResponse(w http.ResponseWriter, statusCode int, data any, logger *zap.Logger) {
	if err := WriteJSON(w, statusCode, data); err != nil {
		logger.Error("Failed to write response", zap.Error(err))
	}
}

// decodeJSON decodes a bounded JSON request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
