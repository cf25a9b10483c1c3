package ports

import (
	"context"

	"taskdeps/domain/core/aggregates"
	"taskdeps/domain/core/entities"
	"taskdeps/domain/core/valueobjects"
	"taskdeps/domain/events"
)

// EdgeRepository is the persistence port for dependency edges. It stores
// committed edges only; admissibility is decided before Insert while the
// project's mutation lock is held.
type EdgeRepository interface {
	// Insert persists a new edge
	Insert(ctx context.Context, edge *aggregates.DependencyEdge) error

	// GetByID retrieves an edge by its ID
	GetByID(ctx context.Context, id valueobjects.EdgeID) (*aggregates.DependencyEdge, error)

	// Delete removes an edge. Deleting an absent edge is an error so
	// callers can detect double-deletes.
	Delete(ctx context.Context, projectID valueobjects.ProjectID, id valueobjects.EdgeID) error

	// DeleteForTask removes every edge touching the task and returns the
	// count removed
	DeleteForTask(ctx context.Context, projectID valueobjects.ProjectID, taskID valueobjects.TaskID) (int, error)

	// ForProject retrieves the full edge set of a project
	ForProject(ctx context.Context, projectID valueobjects.ProjectID) ([]*aggregates.DependencyEdge, error)

	// ForTask retrieves both adjacency directions for a single task
	ForTask(ctx context.Context, taskID valueobjects.TaskID) (dependsOn, blocks []*aggregates.DependencyEdge, err error)
}

// TaskReader is the read-only port onto the task CRUD collaborator's
// data. The dependency service never writes through it.
type TaskReader interface {
	// GetByID retrieves one task, or ErrTaskNotFound
	GetByID(ctx context.Context, id valueobjects.TaskID) (*entities.Task, error)

	// GetBatch retrieves the tasks that exist among ids, keyed by ID.
	// Missing tasks are simply absent from the result.
	GetBatch(ctx context.Context, ids []valueobjects.TaskID) (map[valueobjects.TaskID]*entities.Task, error)
}

// UnlockFunc releases a held project lock.
type UnlockFunc func()

// ProjectLocker serializes mutations per project. The lock must be held
// across the whole read-check-write window; reads never take it.
type ProjectLocker interface {
	// Lock acquires the project's mutation lock, or ErrProjectLockHeld
	// if it cannot be acquired promptly
	Lock(ctx context.Context, projectID valueobjects.ProjectID) (UnlockFunc, error)
}

// EventBus publishes domain events to change subscribers. Delivery is
// at-least-once and best-effort ordered within a project; consumers treat
// notifications as invalidation hints, never as a diff stream.
type EventBus interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}
