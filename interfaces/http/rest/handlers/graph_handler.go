package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"taskdeps/application/services"
	"taskdeps/domain/core/valueobjects"
	apperrors "taskdeps/pkg/errors"
)

// GraphHandler serves the project-level graph views
type GraphHandler struct {
	service *services.DependencyService
	logger  *zap.Logger
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(service *services.DependencyService, logger *zap.Logger) *GraphHandler {
	return &GraphHandler{
		service: service,
		logger:  logger,
	}
}

// GetGraph handles GET /projects/{projectID}/dependency-graph
func (h *GraphHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	projectID, err := valueobjects.NewProjectIDFromString(chi.URLParam(r, "projectID"))
	if err != nil {
		respondError(w, r, h.logger, apperrors.NewValidationError("invalid project ID"))
		return
	}

	view, err := h.service.GetProjectGraph(r.Context(), projectID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

// GetCriticalPath handles GET /projects/{projectID}/critical-path
func (h *GraphHandler) GetCriticalPath(w http.ResponseWriter, r *http.Request) {
	projectID, err := valueobjects.NewProjectIDFromString(chi.URLParam(r, "projectID"))
	if err != nil {
		respondError(w, r, h.logger, apperrors.NewValidationError("invalid project ID"))
		return
	}

	view, err := h.service.GetCriticalPath(r.Context(), projectID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}
