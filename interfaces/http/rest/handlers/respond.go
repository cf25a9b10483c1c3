package handlers

import (
	"encoding/json"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	apperrors "taskdeps/pkg/errors"
)

// respondJSON writes a JSON response with the given status
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// respondError maps domain and application errors onto HTTP responses.
// Unknown errors become opaque 500s so internals never leak.
func respondError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	requestID := chimiddleware.GetReqID(r.Context())

	if domErr := apperrors.GetDomainError(err); domErr != nil {
		if domErr.StatusCode >= 500 {
			logger.Error("Request failed",
				zap.Error(err),
				zap.String("path", r.URL.Path),
				zap.String("requestID", requestID),
			)
		}
		respondJSON(w, domErr.StatusCode, apperrors.NewDomainErrorResponse(domErr, requestID))
		return
	}

	if appErr := apperrors.GetAppError(err); appErr != nil {
		respondJSON(w, appErr.HTTPStatus, map[string]interface{}{
			"error":      true,
			"type":       appErr.Type,
			"message":    appErr.Message,
			"request_id": requestID,
		})
		return
	}

	logger.Error("Unhandled error",
		zap.Error(err),
		zap.String("path", r.URL.Path),
		zap.String("requestID", requestID),
	)
	respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
		"error":      true,
		"message":    "Internal server error",
		"request_id": requestID,
	})
}
