package memory

import (
	"context"
	"sync"

	"taskdeps/domain/core/entities"
	"taskdeps/domain/core/valueobjects"
	apperrors "taskdeps/pkg/errors"
)

// TaskStore is the in-memory TaskReader. The task tracker's CRUD side
// owns task records; this store is the local stand-in for its read API.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[valueobjects.TaskID]*entities.Task
}

func NewTaskStore() *TaskStore {
	return &TaskStore{tasks: make(map[valueobjects.TaskID]*entities.Task)}
}

// Put upserts a task record. Used by tests and the seeding path.
func (s *TaskStore) Put(task *entities.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *task
	s.tasks[task.ID] = &copied
}

// Remove deletes a task record.
func (s *TaskStore) Remove(id valueobjects.TaskID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
}

func (s *TaskStore) GetByID(ctx context.Context, id valueobjects.TaskID) (*entities.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, apperrors.ErrTaskNotFound.WithDetail("taskId", id.String())
	}
	copied := *task
	return &copied, nil
}

func (s *TaskStore) GetBatch(ctx context.Context, ids []valueobjects.TaskID) (map[valueobjects.TaskID]*entities.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make(map[valueobjects.TaskID]*entities.Task, len(ids))
	for _, id := range ids {
		if task, ok := s.tasks[id]; ok {
			copied := *task
			found[id] = &copied
		}
	}
	return found, nil
}
