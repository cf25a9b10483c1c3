package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"taskdeps/application/services"
	"taskdeps/domain/core/valueobjects"
	apperrors "taskdeps/pkg/errors"
	"taskdeps/pkg/utils"
)

// DependencyHandler handles dependency-related HTTP requests
type DependencyHandler struct {
	service *services.DependencyService
	logger  *zap.Logger
}

// NewDependencyHandler creates a new dependency handler
func NewDependencyHandler(service *services.DependencyService, logger *zap.Logger) *DependencyHandler {
	return &DependencyHandler{
		service: service,
		logger:  logger,
	}
}

// AddDependencyRequest represents the request body for adding a dependency
type AddDependencyRequest struct {
	DependsOnTaskID string `json:"depends_on_task_id" validate:"required,uuid"`
}

// AddDependency handles POST /tasks/{taskID}/dependencies
func (h *DependencyHandler) AddDependency(w http.ResponseWriter, r *http.Request) {
	taskID, err := valueobjects.NewTaskIDFromString(chi.URLParam(r, "taskID"))
	if err != nil {
		respondError(w, r, h.logger, apperrors.NewValidationError("invalid task ID"))
		return
	}

	var req AddDependencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, h.logger, apperrors.NewValidationError("invalid request body: "+err.Error()))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		respondError(w, r, h.logger, apperrors.NewValidationError(err.Error()))
		return
	}

	dependsOnTaskID, err := valueobjects.NewTaskIDFromString(req.DependsOnTaskID)
	if err != nil {
		respondError(w, r, h.logger, apperrors.NewValidationError("invalid depends_on_task_id"))
		return
	}

	edge, err := h.service.AddDependency(r.Context(), taskID, dependsOnTaskID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"edge_id":            edge.ID.String(),
		"task_id":            edge.TaskID.String(),
		"depends_on_task_id": edge.DependsOnTaskID.String(),
		"created_at":         utils.FormatRFC3339(edge.CreatedAt),
	})
}

// RemoveDependency handles DELETE /tasks/{taskID}/dependencies/{edgeID}
func (h *DependencyHandler) RemoveDependency(w http.ResponseWriter, r *http.Request) {
	edgeID, err := valueobjects.NewEdgeIDFromString(chi.URLParam(r, "edgeID"))
	if err != nil {
		respondError(w, r, h.logger, apperrors.NewValidationError("invalid edge ID"))
		return
	}

	if err := h.service.RemoveDependency(r.Context(), edgeID); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusNoContent, nil)
}

// GetDependencies handles GET /tasks/{taskID}/dependencies
func (h *DependencyHandler) GetDependencies(w http.ResponseWriter, r *http.Request) {
	taskID, err := valueobjects.NewTaskIDFromString(chi.URLParam(r, "taskID"))
	if err != nil {
		respondError(w, r, h.logger, apperrors.NewValidationError("invalid task ID"))
		return
	}

	view, err := h.service.GetTaskDependencies(r.Context(), taskID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

// CheckDependency handles GET /tasks/{taskID}/dependencies/check
func (h *DependencyHandler) CheckDependency(w http.ResponseWriter, r *http.Request) {
	taskID, err := valueobjects.NewTaskIDFromString(chi.URLParam(r, "taskID"))
	if err != nil {
		respondError(w, r, h.logger, apperrors.NewValidationError("invalid task ID"))
		return
	}

	dependsOnTaskID, err := valueobjects.NewTaskIDFromString(r.URL.Query().Get("dependsOnTaskId"))
	if err != nil {
		respondError(w, r, h.logger, apperrors.NewValidationError("invalid dependsOnTaskId"))
		return
	}

	view, err := h.service.CheckDependency(r.Context(), taskID, dependsOnTaskID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

// CascadeRemove handles DELETE /internal/v1/tasks/{taskID}/edges, the
// hook the task CRUD service calls after deleting a task.
func (h *DependencyHandler) CascadeRemove(w http.ResponseWriter, r *http.Request) {
	taskID, err := valueobjects.NewTaskIDFromString(chi.URLParam(r, "taskID"))
	if err != nil {
		respondError(w, r, h.logger, apperrors.NewValidationError("invalid task ID"))
		return
	}

	removed, err := h.service.CascadeRemoveForTask(r.Context(), taskID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"task_id": taskID.String(),
		"removed": removed,
	})
}
