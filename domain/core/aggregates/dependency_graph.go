package aggregates

import (
	"errors"
	"time"

	"taskdeps/domain/core/valueobjects"
	"taskdeps/domain/events"
)

// DependencyEdge is a single "blocked by" relationship: TaskID cannot
// proceed until DependsOnTaskID is done. Edges are immutable; they are
// only created and deleted, never updated in place.
type DependencyEdge struct {
	ID              valueobjects.EdgeID
	ProjectID       valueobjects.ProjectID
	TaskID          valueobjects.TaskID
	DependsOnTaskID valueobjects.TaskID
	CreatedAt       time.Time
}

// NewDependencyEdge constructs an edge with a fresh ID. Structural
// invariants (no self-loop, same project) are validated here so an
// invalid edge can never exist as a value.
func NewDependencyEdge(projectID valueobjects.ProjectID, taskID, dependsOnTaskID valueobjects.TaskID) (*DependencyEdge, error) {
	if projectID.IsZero() {
		return nil, errors.New("project ID required")
	}
	if taskID.IsZero() || dependsOnTaskID.IsZero() {
		return nil, errors.New("both endpoint task IDs required")
	}
	if taskID.Equals(dependsOnTaskID) {
		return nil, errors.New("task cannot depend on itself")
	}
	return &DependencyEdge{
		ID:              valueobjects.NewEdgeID(),
		ProjectID:       projectID,
		TaskID:          taskID,
		DependsOnTaskID: dependsOnTaskID,
		CreatedAt:       time.Now(),
	}, nil
}

// ReconstructDependencyEdge recreates an edge from stored data.
func ReconstructDependencyEdge(id valueobjects.EdgeID, projectID valueobjects.ProjectID, taskID, dependsOnTaskID valueobjects.TaskID, createdAt time.Time) *DependencyEdge {
	return &DependencyEdge{
		ID:              id,
		ProjectID:       projectID,
		TaskID:          taskID,
		DependsOnTaskID: dependsOnTaskID,
		CreatedAt:       createdAt,
	}
}

// PairKey returns the ordered-pair identity used for duplicate detection.
func (e *DependencyEdge) PairKey() string {
	return e.TaskID.String() + "->" + e.DependsOnTaskID.String()
}

// Touches reports whether the task is either endpoint of the edge.
func (e *DependencyEdge) Touches(taskID valueobjects.TaskID) bool {
	return e.TaskID.Equals(taskID) || e.DependsOnTaskID.Equals(taskID)
}

// DependencyGraph is the aggregate root for one project's dependency
// edges. It is the consistency boundary: all edge mutations for a project
// go through a single instance while the project's mutation lock is held.
type DependencyGraph struct {
	projectID valueobjects.ProjectID
	edges     map[valueobjects.EdgeID]*DependencyEdge
	byPair    map[string]valueobjects.EdgeID
	updatedAt time.Time
	version   int
	events    []events.DomainEvent
}

// NewDependencyGraph creates an empty graph for a project.
func NewDependencyGraph(projectID valueobjects.ProjectID) (*DependencyGraph, error) {
	if projectID.IsZero() {
		return nil, errors.New("project ID required")
	}
	return &DependencyGraph{
		projectID: projectID,
		edges:     make(map[valueobjects.EdgeID]*DependencyEdge),
		byPair:    make(map[string]valueobjects.EdgeID),
		version:   1,
		events:    []events.DomainEvent{},
	}, nil
}

// ReconstructDependencyGraph rebuilds the aggregate from stored edges.
// Edges whose project does not match are rejected: an edge set crossing
// projects indicates corrupted storage.
func ReconstructDependencyGraph(projectID valueobjects.ProjectID, stored []*DependencyEdge) (*DependencyGraph, error) {
	g, err := NewDependencyGraph(projectID)
	if err != nil {
		return nil, err
	}
	for _, e := range stored {
		if e.ProjectID != projectID {
			return nil, errors.New("stored edge belongs to a different project")
		}
		g.edges[e.ID] = e
		g.byPair[e.PairKey()] = e.ID
	}
	return g, nil
}

// ProjectID returns the owning project.
func (g *DependencyGraph) ProjectID() valueobjects.ProjectID {
	return g.projectID
}

// EdgeCount returns the number of edges in the graph.
func (g *DependencyGraph) EdgeCount() int {
	return len(g.edges)
}

// Edges returns all edges in the graph.
func (g *DependencyGraph) Edges() []*DependencyEdge {
	edges := make([]*DependencyEdge, 0, len(g.edges))
	for _, e := range g.edges {
		edges = append(edges, e)
	}
	return edges
}

// GetEdge retrieves an edge by ID.
func (g *DependencyGraph) GetEdge(id valueobjects.EdgeID) (*DependencyEdge, bool) {
	e, ok := g.edges[id]
	return e, ok
}

// HasPair reports whether the exact ordered pair already exists.
func (g *DependencyGraph) HasPair(taskID, dependsOnTaskID valueobjects.TaskID) bool {
	_, ok := g.byPair[taskID.String()+"->"+dependsOnTaskID.String()]
	return ok
}

// EdgesForTask returns the edges where the task is the blocked side
// (dependsOn) and where it is the blocking side (blocks).
func (g *DependencyGraph) EdgesForTask(taskID valueobjects.TaskID) (dependsOn, blocks []*DependencyEdge) {
	for _, e := range g.edges {
		switch {
		case e.TaskID.Equals(taskID):
			dependsOn = append(dependsOn, e)
		case e.DependsOnTaskID.Equals(taskID):
			blocks = append(blocks, e)
		}
	}
	return dependsOn, blocks
}

// AddEdge inserts a pre-validated edge. Admissibility (cycle check, task
// existence, cross-project) is decided by the caller before commit; the
// aggregate still refuses duplicates and foreign edges so it can never
// hold an inconsistent set.
func (g *DependencyGraph) AddEdge(edge *DependencyEdge) error {
	if edge == nil {
		return errors.New("edge cannot be nil")
	}
	if edge.ProjectID != g.projectID {
		return errors.New("edge belongs to a different project")
	}
	if _, exists := g.byPair[edge.PairKey()]; exists {
		return errors.New("edge already exists")
	}

	g.edges[edge.ID] = edge
	g.byPair[edge.PairKey()] = edge.ID
	g.updatedAt = time.Now()
	g.version++

	g.addEvent(events.NewDependencyAdded(g.projectID, edge.ID, edge.TaskID, edge.DependsOnTaskID, g.updatedAt))
	return nil
}

// RemoveEdge deletes an edge by ID. Removal is intentionally not
// idempotent: a second call for the same ID reports the edge missing so
// callers can detect double-deletes.
func (g *DependencyGraph) RemoveEdge(id valueobjects.EdgeID) error {
	edge, ok := g.edges[id]
	if !ok {
		return errors.New("edge not found")
	}

	delete(g.edges, id)
	delete(g.byPair, edge.PairKey())
	g.updatedAt = time.Now()
	g.version++

	g.addEvent(events.NewDependencyRemoved(g.projectID, id, g.updatedAt))
	return nil
}

// RemoveEdgesForTask deletes every edge touching the task and returns the
// count removed. Used by the cascade path when a task is deleted.
func (g *DependencyGraph) RemoveEdgesForTask(taskID valueobjects.TaskID) int {
	var toRemove []*DependencyEdge
	for _, e := range g.edges {
		if e.Touches(taskID) {
			toRemove = append(toRemove, e)
		}
	}
	for _, e := range toRemove {
		delete(g.edges, e.ID)
		delete(g.byPair, e.PairKey())
	}
	if len(toRemove) > 0 {
		g.updatedAt = time.Now()
		g.version++
		g.addEvent(events.NewDependenciesCascadeRemoved(g.projectID, taskID, len(toRemove), g.updatedAt))
	}
	return len(toRemove)
}

// Validate ensures graph invariants hold for the loaded edge set.
func (g *DependencyGraph) Validate() error {
	if len(g.edges) != len(g.byPair) {
		return errors.New("edge index mismatch")
	}
	for _, e := range g.edges {
		if e.ProjectID != g.projectID {
			return errors.New("edge references a different project")
		}
		if e.TaskID.Equals(e.DependsOnTaskID) {
			return errors.New("self-referential edge in graph")
		}
	}
	return nil
}

// GetUncommittedEvents returns all uncommitted domain events
func (g *DependencyGraph) GetUncommittedEvents() []events.DomainEvent {
	out := make([]events.DomainEvent, len(g.events))
	copy(out, g.events)
	return out
}

// MarkEventsAsCommitted clears all uncommitted events
func (g *DependencyGraph) MarkEventsAsCommitted() {
	g.events = []events.DomainEvent{}
}

func (g *DependencyGraph) addEvent(event events.DomainEvent) {
	g.events = append(g.events, event)
}
