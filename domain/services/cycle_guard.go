package services

import (
	"taskdeps/domain/core/aggregates"
	"taskdeps/domain/core/entities"
	"taskdeps/domain/core/valueobjects"
	apperrors "taskdeps/pkg/errors"
)

// CycleGuard decides whether a candidate dependency edge is admissible
// against the project's current edge set. It has no side effects and is
// used identically pre-commit and by the advisory check endpoint.
type CycleGuard struct{}

// NewCycleGuard creates a cycle guard.
func NewCycleGuard() *CycleGuard {
	return &CycleGuard{}
}

// Check validates the candidate edge "task depends on dependsOn" against
// the existing edges. Rules are applied in order: self-dependency,
// duplicate pair, cross-project endpoints, cycle. A nil return means the
// edge is admissible.
func (g *CycleGuard) Check(task, dependsOn *entities.Task, existing []*aggregates.DependencyEdge) error {
	if task.ID.Equals(dependsOn.ID) {
		return apperrors.ErrSelfDependency
	}

	for _, e := range existing {
		if e.TaskID.Equals(task.ID) && e.DependsOnTaskID.Equals(dependsOn.ID) {
			return apperrors.ErrDuplicateEdge
		}
	}

	if task.ProjectID != dependsOn.ProjectID {
		return apperrors.ErrCrossProjectEdge
	}

	if g.reachable(dependsOn.ID, task.ID, existing) {
		return apperrors.ErrCycleDetected
	}

	return nil
}

// reachable runs a BFS from start along the "depends on" direction. If
// target is discovered, a path start -> ... -> target already exists and
// the candidate edge target -> start would close a cycle.
func (g *CycleGuard) reachable(start, target valueobjects.TaskID, edges []*aggregates.DependencyEdge) bool {
	adjacency := make(map[valueobjects.TaskID][]valueobjects.TaskID, len(edges))
	for _, e := range edges {
		adjacency[e.TaskID] = append(adjacency[e.TaskID], e.DependsOnTaskID)
	}

	visited := map[valueobjects.TaskID]bool{start: true}
	queue := []valueobjects.TaskID{start}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current.Equals(target) {
			return true
		}
		for _, next := range adjacency[current] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}
