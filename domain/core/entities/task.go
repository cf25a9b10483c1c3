package entities

import (
	"time"

	"taskdeps/domain/core/valueobjects"
)

// TaskStatus represents the workflow state of a task.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "TODO"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusInReview   TaskStatus = "IN_REVIEW"
	StatusDone       TaskStatus = "DONE"
)

// IsValid reports whether the status is one of the known workflow states.
func (s TaskStatus) IsValid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusInReview, StatusDone:
		return true
	}
	return false
}

// TaskPriority orders tasks by urgency. Lower value means more urgent.
type TaskPriority int

const (
	PriorityUrgent TaskPriority = iota
	PriorityHigh
	PriorityMedium
	PriorityLow
)

// Task is read-only reference data owned by the task CRUD collaborator.
// The dependency service never creates, updates, or deletes tasks; it only
// attaches edges to them and reads status/priority/due date for the
// graph views and critical-path tie-breaking.
type Task struct {
	ID        valueobjects.TaskID
	ProjectID valueobjects.ProjectID
	Title     string
	Status    TaskStatus
	Priority  TaskPriority
	DueDate   *time.Time
}

// HasDueDate reports whether a due date is set.
func (t *Task) HasDueDate() bool {
	return t.DueDate != nil && !t.DueDate.IsZero()
}
