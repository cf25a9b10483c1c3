package events

import (
	"time"

	"taskdeps/domain/core/valueobjects"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

// SourceService identifies this service on the event bus.
const SourceService = "taskdeps"

// GraphChangedType is the invalidation hint's event type. Real-time
// subscribers receive only events of this type.
const GraphChangedType = "dependency-graph-changed"

// DependencyAdded is raised when a dependency edge is committed.
type DependencyAdded struct {
	BaseEvent
	ProjectID       valueobjects.ProjectID `json:"project_id"`
	EdgeID          valueobjects.EdgeID    `json:"edge_id"`
	TaskID          valueobjects.TaskID    `json:"task_id"`
	DependsOnTaskID valueobjects.TaskID    `json:"depends_on_task_id"`
}

// NewDependencyAdded creates a DependencyAdded event
func NewDependencyAdded(projectID valueobjects.ProjectID, edgeID valueobjects.EdgeID, taskID, dependsOnTaskID valueobjects.TaskID, timestamp time.Time) DependencyAdded {
	return DependencyAdded{
		BaseEvent: BaseEvent{
			AggregateID: projectID.String(),
			EventType:   "dependency.added",
			Timestamp:   timestamp,
			Version:     1,
		},
		ProjectID:       projectID,
		EdgeID:          edgeID,
		TaskID:          taskID,
		DependsOnTaskID: dependsOnTaskID,
	}
}

// DependencyRemoved is raised when a dependency edge is deleted.
type DependencyRemoved struct {
	BaseEvent
	ProjectID valueobjects.ProjectID `json:"project_id"`
	EdgeID    valueobjects.EdgeID    `json:"edge_id"`
}

// NewDependencyRemoved creates a DependencyRemoved event
func NewDependencyRemoved(projectID valueobjects.ProjectID, edgeID valueobjects.EdgeID, timestamp time.Time) DependencyRemoved {
	return DependencyRemoved{
		BaseEvent: BaseEvent{
			AggregateID: projectID.String(),
			EventType:   "dependency.removed",
			Timestamp:   timestamp,
			Version:     1,
		},
		ProjectID: projectID,
		EdgeID:    edgeID,
	}
}

// DependenciesCascadeRemoved is raised when task deletion cascades through
// the edge set. Carries the count so operators can audit large cascades.
type DependenciesCascadeRemoved struct {
	BaseEvent
	ProjectID valueobjects.ProjectID `json:"project_id"`
	TaskID    valueobjects.TaskID    `json:"task_id"`
	Removed   int                    `json:"removed"`
}

// NewDependenciesCascadeRemoved creates a DependenciesCascadeRemoved event
func NewDependenciesCascadeRemoved(projectID valueobjects.ProjectID, taskID valueobjects.TaskID, removed int, timestamp time.Time) DependenciesCascadeRemoved {
	return DependenciesCascadeRemoved{
		BaseEvent: BaseEvent{
			AggregateID: projectID.String(),
			EventType:   "dependency.cascade_removed",
			Timestamp:   timestamp,
			Version:     1,
		},
		ProjectID: projectID,
		TaskID:    taskID,
		Removed:   removed,
	}
}

// GraphChanged is the external invalidation hint: project ID only, no
// payload diff. Subscribers re-fetch the views they care about.
type GraphChanged struct {
	BaseEvent
	ProjectID valueobjects.ProjectID `json:"project_id"`
}

// NewGraphChanged creates a GraphChanged event
func NewGraphChanged(projectID valueobjects.ProjectID, timestamp time.Time) GraphChanged {
	return GraphChanged{
		BaseEvent: BaseEvent{
			AggregateID: projectID.String(),
			EventType:   GraphChangedType,
			Timestamp:   timestamp,
			Version:     1,
		},
		ProjectID: projectID,
	}
}
