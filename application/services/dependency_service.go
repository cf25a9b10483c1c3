package services

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"taskdeps/application/ports"
	"taskdeps/application/queries"
	"taskdeps/domain/core/aggregates"
	"taskdeps/domain/core/entities"
	"taskdeps/domain/core/valueobjects"
	"taskdeps/domain/events"
	domainservices "taskdeps/domain/services"
	apperrors "taskdeps/pkg/errors"
	"taskdeps/pkg/observability"
)

// DependencyService is the only surface consumers see: it composes the
// edge store, the cycle guard, and the critical-path analyzer into the
// read views and write operations of the dependency graph.
//
// Writes serialize per project: the project lock is held across the whole
// read-check-insert window, which is what keeps two individually-acyclic
// concurrent additions from jointly committing a cycle. Reads never lock
// and may observe a slightly stale graph; the published change events are
// the consumers' cue to re-fetch.
type DependencyService struct {
	edges    ports.EdgeRepository
	tasks    ports.TaskReader
	locker   ports.ProjectLocker
	eventBus ports.EventBus
	guard    *domainservices.CycleGuard
	analyzer *domainservices.CriticalPathAnalyzer
	limits   ports.LimitsProvider
	metrics  *observability.Collector
	logger   *zap.Logger
}

// NewDependencyService creates the service.
func NewDependencyService(
	edges ports.EdgeRepository,
	tasks ports.TaskReader,
	locker ports.ProjectLocker,
	eventBus ports.EventBus,
	limits ports.LimitsProvider,
	metrics *observability.Collector,
	logger *zap.Logger,
) *DependencyService {
	return &DependencyService{
		edges:    edges,
		tasks:    tasks,
		locker:   locker,
		eventBus: eventBus,
		guard:    domainservices.NewCycleGuard(),
		analyzer: domainservices.NewCriticalPathAnalyzer(),
		limits:   limits,
		metrics:  metrics,
		logger:   logger,
	}
}

// AddDependency validates and commits the edge "taskID depends on
// dependsOnTaskID", returning the committed edge.
func (s *DependencyService) AddDependency(ctx context.Context, taskID, dependsOnTaskID valueobjects.TaskID) (*aggregates.DependencyEdge, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	dependsOn, err := s.tasks.GetByID(ctx, dependsOnTaskID)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, task.ProjectID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, err := s.edges.ForProject(ctx, task.ProjectID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load project edges")
	}

	// admissibility rules first: the limit is a supplement and must not
	// mask the rejection kind the caller can actually resolve
	if err := s.guard.Check(task, dependsOn, existing); err != nil {
		s.countRejection(err)
		return nil, err
	}

	if err := s.checkLimits(task.ID, dependsOn.ID, existing); err != nil {
		return nil, err
	}

	graph, err := aggregates.ReconstructDependencyGraph(task.ProjectID, existing)
	if err != nil {
		return nil, apperrors.ErrGraphCorrupted.WithDetail("reason", err.Error())
	}

	edge, err := aggregates.NewDependencyEdge(task.ProjectID, task.ID, dependsOn.ID)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	if err := graph.AddEdge(edge); err != nil {
		return nil, apperrors.Wrap(err, "failed to stage edge")
	}

	if err := s.edges.Insert(ctx, edge); err != nil {
		return nil, apperrors.Wrap(err, "failed to insert edge")
	}

	s.metrics.EdgesAdded.Inc()
	s.logger.Info("Dependency added",
		zap.String("projectID", task.ProjectID.String()),
		zap.String("edgeID", edge.ID.String()),
		zap.String("taskID", task.ID.String()),
		zap.String("dependsOnTaskID", dependsOn.ID.String()),
	)

	s.commit(ctx, graph)
	return edge, nil
}

// RemoveDependency deletes an edge by ID. A second removal of the same
// ID fails with ErrEdgeNotFound rather than succeeding silently.
func (s *DependencyService) RemoveDependency(ctx context.Context, edgeID valueobjects.EdgeID) error {
	edge, err := s.edges.GetByID(ctx, edgeID)
	if err != nil {
		return err
	}

	unlock, err := s.locker.Lock(ctx, edge.ProjectID)
	if err != nil {
		return err
	}
	defer unlock()

	existing, err := s.edges.ForProject(ctx, edge.ProjectID)
	if err != nil {
		return apperrors.Wrap(err, "failed to load project edges")
	}
	graph, err := aggregates.ReconstructDependencyGraph(edge.ProjectID, existing)
	if err != nil {
		return apperrors.ErrGraphCorrupted.WithDetail("reason", err.Error())
	}

	// the edge can vanish between the unguarded read and the lock
	if err := graph.RemoveEdge(edgeID); err != nil {
		return apperrors.ErrEdgeNotFound.WithDetail("edgeId", edgeID.String())
	}
	if err := s.edges.Delete(ctx, edge.ProjectID, edgeID); err != nil {
		return err
	}

	s.metrics.EdgesRemoved.Inc()
	s.logger.Info("Dependency removed",
		zap.String("projectID", edge.ProjectID.String()),
		zap.String("edgeID", edgeID.String()),
	)

	s.commit(ctx, graph)
	return nil
}

// CascadeRemoveForTask removes every edge touching the task and returns
// the count removed. Invoked by the task CRUD collaborator after it
// deletes a task, so the task record may already be gone; the project is
// derived from the edges themselves.
func (s *DependencyService) CascadeRemoveForTask(ctx context.Context, taskID valueobjects.TaskID) (int, error) {
	dependsOn, blocks, err := s.edges.ForTask(ctx, taskID)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to load task edges")
	}
	if len(dependsOn) == 0 && len(blocks) == 0 {
		return 0, nil
	}

	var projectID valueobjects.ProjectID
	if len(dependsOn) > 0 {
		projectID = dependsOn[0].ProjectID
	} else {
		projectID = blocks[0].ProjectID
	}

	unlock, err := s.locker.Lock(ctx, projectID)
	if err != nil {
		return 0, err
	}
	defer unlock()

	existing, err := s.edges.ForProject(ctx, projectID)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to load project edges")
	}
	graph, err := aggregates.ReconstructDependencyGraph(projectID, existing)
	if err != nil {
		return 0, apperrors.ErrGraphCorrupted.WithDetail("reason", err.Error())
	}

	if graph.RemoveEdgesForTask(taskID) == 0 {
		// raced with a concurrent removal; nothing left to cascade
		return 0, nil
	}
	removed, err := s.edges.DeleteForTask(ctx, projectID, taskID)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to cascade edges")
	}

	s.metrics.CascadeRemovals.Inc()
	s.logger.Info("Dependencies cascade-removed",
		zap.String("projectID", projectID.String()),
		zap.String("taskID", taskID.String()),
		zap.Int("removed", removed),
	)

	s.commit(ctx, graph)
	return removed, nil
}

// CheckDependency is the advisory form of the admissibility check, used
// by the UI to filter out circular choices before the user submits.
func (s *DependencyService) CheckDependency(ctx context.Context, taskID, dependsOnTaskID valueobjects.TaskID) (*queries.AdmissibilityView, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	dependsOn, err := s.tasks.GetByID(ctx, dependsOnTaskID)
	if err != nil {
		return nil, err
	}

	existing, err := s.edges.ForProject(ctx, task.ProjectID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load project edges")
	}

	if err := s.guard.Check(task, dependsOn, existing); err != nil {
		if domErr := apperrors.GetDomainError(err); domErr != nil {
			return &queries.AdmissibilityView{Admissible: false, Reason: domErr.Code}, nil
		}
		return nil, err
	}
	return &queries.AdmissibilityView{Admissible: true}, nil
}

// GetTaskDependencies returns both adjacency directions for one task.
func (s *DependencyService) GetTaskDependencies(ctx context.Context, taskID valueobjects.TaskID) (*queries.TaskDependenciesView, error) {
	if _, err := s.tasks.GetByID(ctx, taskID); err != nil {
		return nil, err
	}

	dependsOn, blocks, err := s.edges.ForTask(ctx, taskID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load task edges")
	}

	farIDs := make([]valueobjects.TaskID, 0, len(dependsOn)+len(blocks))
	for _, e := range dependsOn {
		farIDs = append(farIDs, e.DependsOnTaskID)
	}
	for _, e := range blocks {
		farIDs = append(farIDs, e.TaskID)
	}
	lookup, err := s.tasks.GetBatch(ctx, farIDs)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load related tasks")
	}

	view := &queries.TaskDependenciesView{
		TaskID:    taskID.String(),
		DependsOn: make([]queries.DependencyRef, 0, len(dependsOn)),
		Blocks:    make([]queries.DependencyRef, 0, len(blocks)),
	}
	for _, e := range dependsOn {
		view.DependsOn = append(view.DependsOn, queries.DependencyRef{
			EdgeID: e.ID.String(),
			Task:   taskRef(e.DependsOnTaskID, lookup),
		})
	}
	for _, e := range blocks {
		view.Blocks = append(view.Blocks, queries.DependencyRef{
			EdgeID: e.ID.String(),
			Task:   taskRef(e.TaskID, lookup),
		})
	}
	sortRefs(view.DependsOn)
	sortRefs(view.Blocks)
	return view, nil
}

// GetProjectGraph returns the whole-project graph view: the distinct
// tasks touched by any edge plus the edges, with critical-path members
// marked for the visualization.
func (s *DependencyService) GetProjectGraph(ctx context.Context, projectID valueobjects.ProjectID) (*queries.ProjectGraphView, error) {
	edges, err := s.edges.ForProject(ctx, projectID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load project edges")
	}

	seen := make(map[valueobjects.TaskID]bool)
	var ids []valueobjects.TaskID
	for _, e := range edges {
		for _, id := range []valueobjects.TaskID{e.TaskID, e.DependsOnTaskID} {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	lookup, err := s.tasks.GetBatch(ctx, ids)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load project tasks")
	}

	path, err := s.analyzer.ComputeCriticalPath(edges, lookup)
	if err != nil {
		s.reportCorruption(projectID, err)
		return nil, err
	}
	onPath := make(map[valueobjects.TaskID]bool, len(path))
	for _, t := range path {
		onPath[t.ID] = true
	}

	view := &queries.ProjectGraphView{
		ProjectID: projectID.String(),
		Nodes:     make([]queries.GraphNode, 0, len(ids)),
		Links:     make([]queries.GraphLink, 0, len(edges)),
		Stats: queries.GraphStats{
			NodeCount:   len(ids),
			EdgeCount:   len(edges),
			LongestPath: len(path),
		},
	}
	for _, id := range ids {
		ref := taskRef(id, lookup)
		view.Nodes = append(view.Nodes, queries.GraphNode{
			ID:       ref.ID,
			Title:    ref.Title,
			Status:   ref.Status,
			Priority: ref.Priority,
			DueDate:  ref.DueDate,
			OnPath:   onPath[id],
		})
	}
	for _, e := range edges {
		view.Links = append(view.Links, queries.GraphLink{
			EdgeID: e.ID.String(),
			Source: e.TaskID.String(),
			Target: e.DependsOnTaskID.String(),
		})
	}
	sort.Slice(view.Nodes, func(i, j int) bool { return view.Nodes[i].ID < view.Nodes[j].ID })
	sort.Slice(view.Links, func(i, j int) bool { return view.Links[i].EdgeID < view.Links[j].EdgeID })
	return view, nil
}

// GetCriticalPath returns the longest blocking chain for a project,
// ordered prerequisite-first. Empty when the project has no edges.
func (s *DependencyService) GetCriticalPath(ctx context.Context, projectID valueobjects.ProjectID) (*queries.CriticalPathView, error) {
	edges, err := s.edges.ForProject(ctx, projectID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load project edges")
	}

	ids := make([]valueobjects.TaskID, 0, len(edges)*2)
	seen := make(map[valueobjects.TaskID]bool)
	for _, e := range edges {
		for _, id := range []valueobjects.TaskID{e.TaskID, e.DependsOnTaskID} {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	lookup, err := s.tasks.GetBatch(ctx, ids)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load project tasks")
	}

	path, err := s.analyzer.ComputeCriticalPath(edges, lookup)
	if err != nil {
		s.reportCorruption(projectID, err)
		return nil, err
	}

	s.metrics.CriticalPathLength.Observe(float64(len(path)))

	view := &queries.CriticalPathView{
		ProjectID: projectID.String(),
		Path:      make([]queries.TaskRef, 0, len(path)),
		Length:    len(path),
	}
	for _, t := range path {
		view.Path = append(view.Path, taskToRef(t))
	}
	return view, nil
}

// checkLimits enforces the runtime-tunable edge limits on an edge that
// already passed the admissibility rules.
func (s *DependencyService) checkLimits(taskID, dependsOnTaskID valueobjects.TaskID, existing []*aggregates.DependencyEdge) error {
	limits := s.limits.Limits()
	if limits.MaxEdgesPerProject > 0 && len(existing) >= limits.MaxEdgesPerProject {
		return apperrors.ErrEdgeLimitExceeded.WithDetail("limit", limits.MaxEdgesPerProject)
	}
	if limits.MaxEdgesPerTask > 0 {
		// the new edge counts against both endpoints
		for _, id := range []valueobjects.TaskID{taskID, dependsOnTaskID} {
			touching := 0
			for _, e := range existing {
				if e.Touches(id) {
					touching++
				}
			}
			if touching >= limits.MaxEdgesPerTask {
				return apperrors.ErrEdgeLimitExceeded.
					WithDetail("taskId", id.String()).
					WithDetail("limit", limits.MaxEdgesPerTask)
			}
		}
	}
	return nil
}

// commit publishes the aggregate's uncommitted events plus the external
// invalidation hint. The mutation has already persisted: publish
// failures are logged and counted, never surfaced to the caller.
func (s *DependencyService) commit(ctx context.Context, graph *aggregates.DependencyGraph) {
	projectID := graph.ProjectID()
	batch := append(graph.GetUncommittedEvents(), events.NewGraphChanged(projectID, time.Now()))
	graph.MarkEventsAsCommitted()

	if err := s.eventBus.PublishBatch(ctx, batch); err != nil {
		s.metrics.EventsFailed.Inc()
		s.logger.Warn("Failed to publish graph change events",
			zap.Error(err),
			zap.String("projectID", projectID.String()),
		)
		return
	}
	s.metrics.EventsPublished.Add(float64(len(batch)))
}

func (s *DependencyService) countRejection(err error) {
	if domErr := apperrors.GetDomainError(err); domErr != nil {
		s.metrics.EdgeRejections.WithLabelValues(domErr.Code).Inc()
	}
}

// reportCorruption surfaces a GraphCorrupted invariant breach to
// operators. It is never masked: the caller still receives the error.
func (s *DependencyService) reportCorruption(projectID valueobjects.ProjectID, err error) {
	if apperrors.GetDomainError(err) == nil {
		return
	}
	s.logger.Error("Dependency graph failed topological ordering; acyclicity invariant breached outside the guarded write path",
		zap.String("projectID", projectID.String()),
		zap.Error(err),
	)
}

func taskRef(id valueobjects.TaskID, lookup map[valueobjects.TaskID]*entities.Task) queries.TaskRef {
	if t, ok := lookup[id]; ok {
		return taskToRef(t)
	}
	return queries.TaskRef{ID: id.String()}
}

func taskToRef(t *entities.Task) queries.TaskRef {
	return queries.TaskRef{
		ID:       t.ID.String(),
		Title:    t.Title,
		Status:   string(t.Status),
		Priority: int(t.Priority),
		DueDate:  t.DueDate,
	}
}

func sortRefs(refs []queries.DependencyRef) {
	sort.Slice(refs, func(i, j int) bool { return refs[i].EdgeID < refs[j].EdgeID })
}
