package services

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"taskdeps/application/ports"
	"taskdeps/domain/core/entities"
	"taskdeps/domain/core/valueobjects"
	"taskdeps/domain/events"
	"taskdeps/infrastructure/persistence/memory"
	apperrors "taskdeps/pkg/errors"
	"taskdeps/pkg/observability"
)

// recordingBus captures published events for assertions.
type recordingBus struct {
	mu     sync.Mutex
	events []events.DomainEvent
}

func (b *recordingBus) Publish(ctx context.Context, event events.DomainEvent) error {
	return b.PublishBatch(ctx, []events.DomainEvent{event})
}

func (b *recordingBus) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, batch...)
	return nil
}

func (b *recordingBus) byType(eventType string) []events.DomainEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []events.DomainEvent
	for _, e := range b.events {
		if e.GetEventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

type failingBus struct{}

func (failingBus) Publish(ctx context.Context, event events.DomainEvent) error {
	return errors.New("bus unavailable")
}

func (failingBus) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	return errors.New("bus unavailable")
}

type fixedLimits struct {
	limits ports.Limits
}

func (f fixedLimits) Limits() ports.Limits { return f.limits }

type fixture struct {
	service *DependencyService
	tasks   *memory.TaskStore
	edges   *memory.EdgeStore
	bus     *recordingBus
}

func newFixture(t *testing.T, limits ports.Limits) *fixture {
	t.Helper()
	edges := memory.NewEdgeStore()
	tasks := memory.NewTaskStore()
	bus := &recordingBus{}
	service := NewDependencyService(
		edges,
		tasks,
		memory.NewProjectLock(),
		bus,
		fixedLimits{limits},
		observability.NewCollector("taskdeps"),
		zap.NewNop(),
	)
	return &fixture{service: service, tasks: tasks, edges: edges, bus: bus}
}

func (f *fixture) seedTask(t *testing.T, projectID string) *entities.Task {
	t.Helper()
	id, err := valueobjects.NewTaskIDFromString(uuid.New().String())
	require.NoError(t, err)
	pid, err := valueobjects.NewProjectIDFromString(projectID)
	require.NoError(t, err)
	task := &entities.Task{
		ID:        id,
		ProjectID: pid,
		Title:     "task " + id.String()[:8],
		Status:    entities.StatusTodo,
	}
	f.tasks.Put(task)
	return task
}

func TestAddDependency_Success(t *testing.T) {
	f := newFixture(t, ports.Limits{})
	ctx := context.Background()
	a := f.seedTask(t, "proj-1")
	b := f.seedTask(t, "proj-1")

	edge, err := f.service.AddDependency(ctx, a.ID, b.ID)

	require.NoError(t, err)
	assert.Equal(t, a.ID, edge.TaskID)
	assert.Equal(t, b.ID, edge.DependsOnTaskID)
	assert.False(t, edge.ID.IsZero())

	require.Len(t, f.bus.byType("dependency.added"), 1)
	hints := f.bus.byType("dependency-graph-changed")
	require.Len(t, hints, 1)
	assert.Equal(t, "proj-1", hints[0].GetAggregateID())
}

func TestAddDependency_UnknownTask(t *testing.T) {
	f := newFixture(t, ports.Limits{})
	ctx := context.Background()
	a := f.seedTask(t, "proj-1")
	ghost, err := valueobjects.NewTaskIDFromString(uuid.New().String())
	require.NoError(t, err)

	_, err = f.service.AddDependency(ctx, a.ID, ghost)
	assert.ErrorIs(t, err, apperrors.ErrTaskNotFound)

	_, err = f.service.AddDependency(ctx, ghost, a.ID)
	assert.ErrorIs(t, err, apperrors.ErrTaskNotFound)
}

func TestAddDependency_RejectionsDoNotPublish(t *testing.T) {
	f := newFixture(t, ports.Limits{})
	ctx := context.Background()
	a := f.seedTask(t, "proj-1")
	b := f.seedTask(t, "proj-1")
	other := f.seedTask(t, "proj-2")

	_, err := f.service.AddDependency(ctx, a.ID, a.ID)
	assert.ErrorIs(t, err, apperrors.ErrSelfDependency)

	_, err = f.service.AddDependency(ctx, a.ID, other.ID)
	assert.ErrorIs(t, err, apperrors.ErrCrossProjectEdge)

	_, err = f.service.AddDependency(ctx, a.ID, b.ID)
	require.NoError(t, err)
	_, err = f.service.AddDependency(ctx, a.ID, b.ID)
	assert.ErrorIs(t, err, apperrors.ErrDuplicateEdge)

	_, err = f.service.AddDependency(ctx, b.ID, a.ID)
	assert.ErrorIs(t, err, apperrors.ErrCycleDetected)

	// only the single successful add published
	assert.Len(t, f.bus.byType("dependency.added"), 1)
	assert.Len(t, f.bus.byType("dependency-graph-changed"), 1)
}

func TestAddDependency_EdgeLimit(t *testing.T) {
	f := newFixture(t, ports.Limits{MaxEdgesPerTask: 1})
	ctx := context.Background()
	a := f.seedTask(t, "proj-1")
	b := f.seedTask(t, "proj-1")
	c := f.seedTask(t, "proj-1")

	_, err := f.service.AddDependency(ctx, a.ID, b.ID)
	require.NoError(t, err)

	_, err = f.service.AddDependency(ctx, a.ID, c.ID)
	assert.ErrorIs(t, err, apperrors.ErrEdgeLimitExceeded)

	// the limit counts both endpoints: b is already at capacity
	_, err = f.service.AddDependency(ctx, c.ID, b.ID)
	assert.ErrorIs(t, err, apperrors.ErrEdgeLimitExceeded)

	d := f.seedTask(t, "proj-1")
	_, err = f.service.AddDependency(ctx, c.ID, d.ID)
	assert.NoError(t, err)
}

// The limit must not mask the rejection kind the caller can resolve: a
// duplicate or self-dependency submitted at capacity still reports its
// own error.
func TestAddDependency_RejectionKindsBeatLimit(t *testing.T) {
	f := newFixture(t, ports.Limits{MaxEdgesPerTask: 1})
	ctx := context.Background()
	a := f.seedTask(t, "proj-1")
	b := f.seedTask(t, "proj-1")

	_, err := f.service.AddDependency(ctx, a.ID, b.ID)
	require.NoError(t, err)

	_, err = f.service.AddDependency(ctx, a.ID, b.ID)
	assert.ErrorIs(t, err, apperrors.ErrDuplicateEdge)

	_, err = f.service.AddDependency(ctx, a.ID, a.ID)
	assert.ErrorIs(t, err, apperrors.ErrSelfDependency)

	_, err = f.service.AddDependency(ctx, b.ID, a.ID)
	assert.ErrorIs(t, err, apperrors.ErrCycleDetected)
}

// The published mutation event is the one the aggregate raised while
// staging the edge.
func TestAddDependency_PublishesAggregateEvent(t *testing.T) {
	f := newFixture(t, ports.Limits{})
	ctx := context.Background()
	a := f.seedTask(t, "proj-1")
	b := f.seedTask(t, "proj-1")

	edge, err := f.service.AddDependency(ctx, a.ID, b.ID)
	require.NoError(t, err)

	added := f.bus.byType("dependency.added")
	require.Len(t, added, 1)
	event, ok := added[0].(events.DependencyAdded)
	require.True(t, ok)
	assert.Equal(t, edge.ID, event.EdgeID)
	assert.Equal(t, a.ID, event.TaskID)
	assert.Equal(t, b.ID, event.DependsOnTaskID)
	assert.Equal(t, "proj-1", event.GetAggregateID())
}

func TestAddDependency_PublishFailureDoesNotFailMutation(t *testing.T) {
	f := newFixture(t, ports.Limits{})
	f.service.eventBus = failingBus{}
	ctx := context.Background()
	a := f.seedTask(t, "proj-1")
	b := f.seedTask(t, "proj-1")

	edge, err := f.service.AddDependency(ctx, a.ID, b.ID)

	require.NoError(t, err)
	got, err := f.edges.GetByID(ctx, edge.ID)
	require.NoError(t, err)
	assert.Equal(t, edge.ID, got.ID)
}

func TestRemoveDependency_SecondDeleteFails(t *testing.T) {
	f := newFixture(t, ports.Limits{})
	ctx := context.Background()
	a := f.seedTask(t, "proj-1")
	b := f.seedTask(t, "proj-1")

	edge, err := f.service.AddDependency(ctx, a.ID, b.ID)
	require.NoError(t, err)

	require.NoError(t, f.service.RemoveDependency(ctx, edge.ID))
	err = f.service.RemoveDependency(ctx, edge.ID)
	assert.ErrorIs(t, err, apperrors.ErrEdgeNotFound)

	assert.Len(t, f.bus.byType("dependency.removed"), 1)
}

func TestRemoveThenReAdd(t *testing.T) {
	f := newFixture(t, ports.Limits{})
	ctx := context.Background()
	a := f.seedTask(t, "proj-1")
	b := f.seedTask(t, "proj-1")

	edge, err := f.service.AddDependency(ctx, a.ID, b.ID)
	require.NoError(t, err)
	require.NoError(t, f.service.RemoveDependency(ctx, edge.ID))

	again, err := f.service.AddDependency(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.NotEqual(t, edge.ID, again.ID)
}

func TestCascadeRemoveForTask(t *testing.T) {
	f := newFixture(t, ports.Limits{})
	ctx := context.Background()
	target := f.seedTask(t, "proj-1")
	up := f.seedTask(t, "proj-1")
	down := f.seedTask(t, "proj-1")

	_, err := f.service.AddDependency(ctx, target.ID, up.ID)
	require.NoError(t, err)
	_, err = f.service.AddDependency(ctx, down.ID, target.ID)
	require.NoError(t, err)
	_, err = f.service.AddDependency(ctx, down.ID, up.ID)
	require.NoError(t, err)

	// collaborator already deleted the task record
	f.tasks.Remove(target.ID)

	removed, err := f.service.CascadeRemoveForTask(ctx, target.ID)

	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Len(t, f.bus.byType("dependency.cascade_removed"), 1)

	// unrelated edge survives
	view, err := f.service.GetTaskDependencies(ctx, down.ID)
	require.NoError(t, err)
	require.Len(t, view.DependsOn, 1)
	assert.Equal(t, up.ID.String(), view.DependsOn[0].Task.ID)
}

func TestCascadeRemoveForTask_NoEdges(t *testing.T) {
	f := newFixture(t, ports.Limits{})
	ctx := context.Background()
	lonely := f.seedTask(t, "proj-1")

	removed, err := f.service.CascadeRemoveForTask(ctx, lonely.ID)

	require.NoError(t, err)
	assert.Zero(t, removed)
	assert.Empty(t, f.bus.byType("dependency.cascade_removed"))
}

func TestCheckDependency_Advisory(t *testing.T) {
	f := newFixture(t, ports.Limits{})
	ctx := context.Background()
	a := f.seedTask(t, "proj-1")
	b := f.seedTask(t, "proj-1")

	view, err := f.service.CheckDependency(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, view.Admissible)
	assert.Empty(t, view.Reason)

	_, err = f.service.AddDependency(ctx, a.ID, b.ID)
	require.NoError(t, err)

	view, err = f.service.CheckDependency(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.False(t, view.Admissible)
	assert.Equal(t, apperrors.ErrCycleDetected.Code, view.Reason)

	// advisory checks never persist or publish
	assert.Len(t, f.bus.byType("dependency.added"), 1)
}

func TestGetTaskDependencies_BothDirections(t *testing.T) {
	f := newFixture(t, ports.Limits{})
	ctx := context.Background()
	task := f.seedTask(t, "proj-1")
	dep := f.seedTask(t, "proj-1")
	dependent := f.seedTask(t, "proj-1")

	_, err := f.service.AddDependency(ctx, task.ID, dep.ID)
	require.NoError(t, err)
	_, err = f.service.AddDependency(ctx, dependent.ID, task.ID)
	require.NoError(t, err)

	view, err := f.service.GetTaskDependencies(ctx, task.ID)

	require.NoError(t, err)
	require.Len(t, view.DependsOn, 1)
	assert.Equal(t, dep.ID.String(), view.DependsOn[0].Task.ID)
	assert.Equal(t, dep.Title, view.DependsOn[0].Task.Title)
	require.Len(t, view.Blocks, 1)
	assert.Equal(t, dependent.ID.String(), view.Blocks[0].Task.ID)
}

func TestGetProjectGraph(t *testing.T) {
	f := newFixture(t, ports.Limits{})
	ctx := context.Background()
	a := f.seedTask(t, "proj-1")
	b := f.seedTask(t, "proj-1")
	c := f.seedTask(t, "proj-1")

	_, err := f.service.AddDependency(ctx, a.ID, b.ID)
	require.NoError(t, err)
	_, err = f.service.AddDependency(ctx, b.ID, c.ID)
	require.NoError(t, err)

	view, err := f.service.GetProjectGraph(ctx, a.ProjectID)

	require.NoError(t, err)
	assert.Equal(t, 3, view.Stats.NodeCount)
	assert.Equal(t, 2, view.Stats.EdgeCount)
	assert.Equal(t, 3, view.Stats.LongestPath)
	assert.Len(t, view.Nodes, 3)
	assert.Len(t, view.Links, 2)

	// a three-task chain puts every node on the critical path
	for _, node := range view.Nodes {
		assert.True(t, node.OnPath, node.ID)
	}
}

func TestGetCriticalPath_PrerequisiteFirst(t *testing.T) {
	f := newFixture(t, ports.Limits{})
	ctx := context.Background()
	a := f.seedTask(t, "proj-1")
	b := f.seedTask(t, "proj-1")
	c := f.seedTask(t, "proj-1")

	_, err := f.service.AddDependency(ctx, a.ID, b.ID)
	require.NoError(t, err)
	_, err = f.service.AddDependency(ctx, b.ID, c.ID)
	require.NoError(t, err)

	view, err := f.service.GetCriticalPath(ctx, a.ProjectID)

	require.NoError(t, err)
	assert.Equal(t, 3, view.Length)
	require.Len(t, view.Path, 3)
	assert.Equal(t, c.ID.String(), view.Path[0].ID)
	assert.Equal(t, b.ID.String(), view.Path[1].ID)
	assert.Equal(t, a.ID.String(), view.Path[2].ID)
}

func TestGetCriticalPath_EmptyProject(t *testing.T) {
	f := newFixture(t, ports.Limits{})
	ctx := context.Background()
	pid, err := valueobjects.NewProjectIDFromString("proj-empty")
	require.NoError(t, err)

	view, err := f.service.GetCriticalPath(ctx, pid)

	require.NoError(t, err)
	assert.Zero(t, view.Length)
	assert.Empty(t, view.Path)
}

// Two concurrent adds that are individually admissible but jointly
// cyclic must never both commit.
func TestAddDependency_ConcurrentOppositeEdges(t *testing.T) {
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		f := newFixture(t, ports.Limits{})
		a := f.seedTask(t, "proj-race")
		b := f.seedTask(t, "proj-race")

		var wg sync.WaitGroup
		errs := make([]error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, errs[0] = f.service.AddDependency(ctx, a.ID, b.ID)
		}()
		go func() {
			defer wg.Done()
			_, errs[1] = f.service.AddDependency(ctx, b.ID, a.ID)
		}()
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
			} else {
				assert.ErrorIs(t, err, apperrors.ErrCycleDetected)
			}
		}
		assert.Equal(t, 1, succeeded, "exactly one of the opposite edges must commit")
	}
}

// Random concurrent adds across a fixed task set: whatever commits, the
// resulting graph must stay acyclic, which the analyzer verifies by
// ordering it.
func TestAddDependency_RandomConcurrentAddsStayAcyclic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ports.Limits{})

	const taskCount = 8
	tasks := make([]*entities.Task, taskCount)
	for i := range tasks {
		tasks[i] = f.seedTask(t, "proj-fuzz")
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	type pair struct{ from, to int }
	attempts := make([]pair, 100)
	for i := range attempts {
		attempts[i] = pair{rng.Intn(taskCount), rng.Intn(taskCount)}
	}

	var wg sync.WaitGroup
	for _, p := range attempts {
		wg.Add(1)
		go func(p pair) {
			defer wg.Done()
			// rejections are expected; only graph integrity matters
			f.service.AddDependency(ctx, tasks[p.from].ID, tasks[p.to].ID)
		}(p)
	}
	wg.Wait()

	view, err := f.service.GetCriticalPath(ctx, tasks[0].ProjectID)
	require.NoError(t, err, "committed graph must be topologically orderable")
	assert.LessOrEqual(t, view.Length, taskCount)
}
