package services

import (
	"sort"

	"taskdeps/domain/core/aggregates"
	"taskdeps/domain/core/entities"
	"taskdeps/domain/core/valueobjects"
	apperrors "taskdeps/pkg/errors"
)

// CriticalPathAnalyzer computes the longest blocking chain in a project's
// dependency graph. Chain weight is the number of blocking hops, not
// estimated duration; tasks carry no estimate field.
type CriticalPathAnalyzer struct{}

// NewCriticalPathAnalyzer creates an analyzer.
func NewCriticalPathAnalyzer() *CriticalPathAnalyzer {
	return &CriticalPathAnalyzer{}
}

// ComputeCriticalPath returns the longest dependency chain ordered from
// the earliest prerequisite to the final blocked task. Only tasks that
// participate in at least one edge are considered. An empty edge set
// yields an empty path. If the edge set cannot be topologically ordered
// the store holds a cycle that CycleGuard should have made impossible,
// and the analyzer fails with ErrGraphCorrupted rather than guessing.
func (a *CriticalPathAnalyzer) ComputeCriticalPath(
	edges []*aggregates.DependencyEdge,
	tasks map[valueobjects.TaskID]*entities.Task,
) ([]*entities.Task, error) {
	if len(edges) == 0 {
		return []*entities.Task{}, nil
	}

	// Adjacency in the "depends on" direction, plus the reverse count
	// Kahn's algorithm peels: a task is ready once all its dependencies
	// are ordered.
	dependsOn := make(map[valueobjects.TaskID][]valueobjects.TaskID)
	pending := make(map[valueobjects.TaskID]int)
	participants := make(map[valueobjects.TaskID]bool)
	dependents := make(map[valueobjects.TaskID][]valueobjects.TaskID)

	for _, e := range edges {
		dependsOn[e.TaskID] = append(dependsOn[e.TaskID], e.DependsOnTaskID)
		dependents[e.DependsOnTaskID] = append(dependents[e.DependsOnTaskID], e.TaskID)
		pending[e.TaskID]++
		participants[e.TaskID] = true
		participants[e.DependsOnTaskID] = true
	}

	// Seed with tasks that depend on nothing, sorted for determinism.
	var ready []valueobjects.TaskID
	for id := range participants {
		if pending[id] == 0 {
			ready = append(ready, id)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i].String() < ready[j].String() })

	longest := make(map[valueobjects.TaskID]int, len(participants))
	predecessor := make(map[valueobjects.TaskID]valueobjects.TaskID, len(participants))
	ordered := 0

	for len(ready) > 0 {
		current := ready[0]
		ready = ready[1:]
		ordered++

		longest[current] = 1
		for _, dep := range dependsOn[current] {
			chain := longest[dep] + 1
			if chain > longest[current] || (chain == longest[current] && a.prefer(dep, predecessor[current], tasks)) {
				longest[current] = chain
				predecessor[current] = dep
			}
		}

		for _, dependent := range dependents[current] {
			pending[dependent]--
			if pending[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if ordered != len(participants) {
		return nil, apperrors.ErrGraphCorrupted.
			WithDetail("participating", len(participants)).
			WithDetail("ordered", ordered)
	}

	// Pick the task ending the globally longest chain, tie broken by
	// earliest due date (nulls last) then ascending task ID.
	var end valueobjects.TaskID
	best := 0
	for id := range participants {
		if longest[id] > best || (longest[id] == best && a.prefer(id, end, tasks)) {
			best = longest[id]
			end = id
		}
	}

	// Reconstruct backward, then reverse into prerequisite-first order.
	chain := make([]*entities.Task, 0, best)
	for id := end; ; {
		chain = append(chain, a.lookup(id, tasks))
		next, ok := predecessor[id]
		if !ok {
			break
		}
		id = next
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// prefer reports whether candidate wins the deterministic tie-break over
// incumbent: earlier due date first, tasks without a due date last, then
// ascending task ID. A zero incumbent always loses.
func (a *CriticalPathAnalyzer) prefer(candidate, incumbent valueobjects.TaskID, tasks map[valueobjects.TaskID]*entities.Task) bool {
	if incumbent.IsZero() {
		return true
	}
	c, i := tasks[candidate], tasks[incumbent]
	cDue := c != nil && c.HasDueDate()
	iDue := i != nil && i.HasDueDate()
	switch {
	case cDue && iDue:
		if !c.DueDate.Equal(*i.DueDate) {
			return c.DueDate.Before(*i.DueDate)
		}
	case cDue:
		return true
	case iDue:
		return false
	}
	return candidate.String() < incumbent.String()
}

// lookup resolves a participant to its task record. Reads run without a
// lock and can race a cascade delete, so a missing record degrades to a
// bare reference instead of failing the whole computation.
func (a *CriticalPathAnalyzer) lookup(id valueobjects.TaskID, tasks map[valueobjects.TaskID]*entities.Task) *entities.Task {
	if t, ok := tasks[id]; ok {
		return t
	}
	return &entities.Task{ID: id}
}
