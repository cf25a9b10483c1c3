package valueobjects

import (
	"errors"

	"github.com/google/uuid"
)

// TaskID identifies a task. Tasks are owned by the task-tracking
// collaborator; this service only references them.
type TaskID string

// NewTaskIDFromString validates and wraps a task identifier.
func NewTaskIDFromString(s string) (TaskID, error) {
	if s == "" {
		return "", errors.New("task ID cannot be empty")
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", errors.New("task ID must be a valid UUID")
	}
	return TaskID(s), nil
}

// String returns the string representation
func (id TaskID) String() string {
	return string(id)
}

// Equals compares two task IDs
func (id TaskID) Equals(other TaskID) bool {
	return id == other
}

// IsZero reports whether the ID is unset
func (id TaskID) IsZero() bool {
	return id == ""
}

// ProjectID identifies a project, the partition unit for dependency graphs.
type ProjectID string

// NewProjectIDFromString validates and wraps a project identifier.
func NewProjectIDFromString(s string) (ProjectID, error) {
	if s == "" {
		return "", errors.New("project ID cannot be empty")
	}
	return ProjectID(s), nil
}

// String returns the string representation
func (id ProjectID) String() string {
	return string(id)
}

// Equals compares two project IDs
func (id ProjectID) Equals(other ProjectID) bool {
	return id == other
}

// IsZero reports whether the ID is unset
func (id ProjectID) IsZero() bool {
	return id == ""
}

// EdgeID identifies a single dependency edge.
type EdgeID string

// NewEdgeID creates a new random EdgeID
func NewEdgeID() EdgeID {
	return EdgeID(uuid.New().String())
}

// NewEdgeIDFromString validates and wraps an edge identifier.
func NewEdgeIDFromString(s string) (EdgeID, error) {
	if s == "" {
		return "", errors.New("edge ID cannot be empty")
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", errors.New("edge ID must be a valid UUID")
	}
	return EdgeID(s), nil
}

// String returns the string representation
func (id EdgeID) String() string {
	return string(id)
}

// IsZero reports whether the ID is unset
func (id EdgeID) IsZero() bool {
	return id == ""
}
