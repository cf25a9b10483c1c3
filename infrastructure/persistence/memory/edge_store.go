// Package memory provides the in-process storage backend used in
// development and tests. Semantics mirror the DynamoDB backend.
package memory

import (
	"context"
	"sort"
	"sync"

	"taskdeps/domain/core/aggregates"
	"taskdeps/domain/core/valueobjects"
	apperrors "taskdeps/pkg/errors"
)

// EdgeStore keeps edges in two maps: by edge ID for point lookups and by
// project for graph scans. Both are guarded by one RWMutex; per-project
// write serialization is the ProjectLocker's job, not the store's.
type EdgeStore struct {
	mu        sync.RWMutex
	byID      map[valueobjects.EdgeID]*aggregates.DependencyEdge
	byProject map[valueobjects.ProjectID]map[valueobjects.EdgeID]*aggregates.DependencyEdge
}

func NewEdgeStore() *EdgeStore {
	return &EdgeStore{
		byID:      make(map[valueobjects.EdgeID]*aggregates.DependencyEdge),
		byProject: make(map[valueobjects.ProjectID]map[valueobjects.EdgeID]*aggregates.DependencyEdge),
	}
}

func (s *EdgeStore) Insert(ctx context.Context, edge *aggregates.DependencyEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[edge.ID]; exists {
		return apperrors.ErrDuplicateEdge.WithDetail("edgeId", edge.ID.String())
	}

	copied := *edge
	s.byID[edge.ID] = &copied
	project := s.byProject[edge.ProjectID]
	if project == nil {
		project = make(map[valueobjects.EdgeID]*aggregates.DependencyEdge)
		s.byProject[edge.ProjectID] = project
	}
	project[edge.ID] = &copied
	return nil
}

func (s *EdgeStore) GetByID(ctx context.Context, id valueobjects.EdgeID) (*aggregates.DependencyEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	edge, ok := s.byID[id]
	if !ok {
		return nil, apperrors.ErrEdgeNotFound.WithDetail("edgeId", id.String())
	}
	copied := *edge
	return &copied, nil
}

func (s *EdgeStore) Delete(ctx context.Context, projectID valueobjects.ProjectID, id valueobjects.EdgeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	edge, ok := s.byID[id]
	if !ok || !edge.ProjectID.Equals(projectID) {
		return apperrors.ErrEdgeNotFound.WithDetail("edgeId", id.String())
	}

	delete(s.byID, id)
	if project := s.byProject[projectID]; project != nil {
		delete(project, id)
		if len(project) == 0 {
			delete(s.byProject, projectID)
		}
	}
	return nil
}

func (s *EdgeStore) DeleteForTask(ctx context.Context, projectID valueobjects.ProjectID, taskID valueobjects.TaskID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	project := s.byProject[projectID]
	removed := 0
	for id, edge := range project {
		if edge.Touches(taskID) {
			delete(project, id)
			delete(s.byID, id)
			removed++
		}
	}
	if len(project) == 0 {
		delete(s.byProject, projectID)
	}
	return removed, nil
}

func (s *EdgeStore) ForProject(ctx context.Context, projectID valueobjects.ProjectID) ([]*aggregates.DependencyEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	project := s.byProject[projectID]
	edges := make([]*aggregates.DependencyEdge, 0, len(project))
	for _, edge := range project {
		copied := *edge
		edges = append(edges, &copied)
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
	return edges, nil
}

func (s *EdgeStore) ForTask(ctx context.Context, taskID valueobjects.TaskID) (dependsOn, blocks []*aggregates.DependencyEdge, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, edge := range s.byID {
		switch taskID {
		case edge.TaskID:
			copied := *edge
			dependsOn = append(dependsOn, &copied)
		case edge.DependsOnTaskID:
			copied := *edge
			blocks = append(blocks, &copied)
		}
	}
	sort.Slice(dependsOn, func(i, j int) bool { return dependsOn[i].ID < dependsOn[j].ID })
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].ID < blocks[j].ID })
	return dependsOn, blocks, nil
}
