package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskdeps/domain/core/aggregates"
	"taskdeps/domain/core/entities"
	"taskdeps/domain/core/valueobjects"
	apperrors "taskdeps/pkg/errors"
)

func newTask(t *testing.T, projectID string) *entities.Task {
	t.Helper()
	id, err := valueobjects.NewTaskIDFromString(uuid.New().String())
	require.NoError(t, err)
	pid, err := valueobjects.NewProjectIDFromString(projectID)
	require.NoError(t, err)
	return &entities.Task{
		ID:        id,
		ProjectID: pid,
		Title:     "task " + id.String()[:8],
		Status:    entities.StatusTodo,
	}
}

func newEdge(t *testing.T, from, to *entities.Task) *aggregates.DependencyEdge {
	t.Helper()
	edge, err := aggregates.NewDependencyEdge(from.ProjectID, from.ID, to.ID)
	require.NoError(t, err)
	return edge
}

func TestCycleGuard_AdmissibleEdge(t *testing.T) {
	guard := NewCycleGuard()
	a := newTask(t, "proj-1")
	b := newTask(t, "proj-1")

	err := guard.Check(a, b, nil)

	assert.NoError(t, err)
}

func TestCycleGuard_SelfDependency(t *testing.T) {
	guard := NewCycleGuard()
	a := newTask(t, "proj-1")

	err := guard.Check(a, a, nil)

	assert.ErrorIs(t, err, apperrors.ErrSelfDependency)
}

func TestCycleGuard_DuplicateEdge(t *testing.T) {
	guard := NewCycleGuard()
	a := newTask(t, "proj-1")
	b := newTask(t, "proj-1")
	existing := []*aggregates.DependencyEdge{newEdge(t, a, b)}

	err := guard.Check(a, b, existing)

	assert.ErrorIs(t, err, apperrors.ErrDuplicateEdge)
}

func TestCycleGuard_ReverseEdgeIsNotDuplicate(t *testing.T) {
	guard := NewCycleGuard()
	a := newTask(t, "proj-1")
	b := newTask(t, "proj-1")
	existing := []*aggregates.DependencyEdge{newEdge(t, a, b)}

	// b depends on a closes a two-node cycle, so it must fail as a
	// cycle, not as a duplicate
	err := guard.Check(b, a, existing)

	assert.ErrorIs(t, err, apperrors.ErrCycleDetected)
}

func TestCycleGuard_CrossProject(t *testing.T) {
	guard := NewCycleGuard()
	a := newTask(t, "proj-1")
	b := newTask(t, "proj-2")

	err := guard.Check(a, b, nil)

	assert.ErrorIs(t, err, apperrors.ErrCrossProjectEdge)
}

func TestCycleGuard_TransitiveCycle(t *testing.T) {
	guard := NewCycleGuard()
	a := newTask(t, "proj-1")
	b := newTask(t, "proj-1")
	c := newTask(t, "proj-1")
	existing := []*aggregates.DependencyEdge{
		newEdge(t, a, b),
		newEdge(t, b, c),
	}

	// c depends on a would close a -> b -> c -> a
	err := guard.Check(c, a, existing)

	assert.ErrorIs(t, err, apperrors.ErrCycleDetected)

	// the other direction is fine: a already reaches c
	assert.NoError(t, guard.Check(a, c, existing))
}

func TestCycleGuard_DiamondIsAcyclic(t *testing.T) {
	guard := NewCycleGuard()
	a := newTask(t, "proj-1")
	b := newTask(t, "proj-1")
	c := newTask(t, "proj-1")
	d := newTask(t, "proj-1")
	existing := []*aggregates.DependencyEdge{
		newEdge(t, a, b),
		newEdge(t, a, c),
		newEdge(t, b, d),
	}

	// c depends on d keeps the diamond acyclic
	assert.NoError(t, guard.Check(c, d, existing))
}

func TestCycleGuard_RuleOrder(t *testing.T) {
	guard := NewCycleGuard()
	a := newTask(t, "proj-1")
	b := newTask(t, "proj-2")
	existing := []*aggregates.DependencyEdge{
		{ID: valueobjects.NewEdgeID(), ProjectID: a.ProjectID, TaskID: a.ID, DependsOnTaskID: b.ID},
	}

	// Duplicate wins over cross-project when both apply
	err := guard.Check(a, b, existing)

	assert.ErrorIs(t, err, apperrors.ErrDuplicateEdge)
}
