package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"taskdeps/application/ports"
	"taskdeps/application/services"
	"taskdeps/domain/core/entities"
	"taskdeps/domain/core/valueobjects"
	"taskdeps/domain/events"
	"taskdeps/infrastructure/persistence/memory"
	"taskdeps/pkg/observability"
)

type discardBus struct{}

func (discardBus) Publish(ctx context.Context, event events.DomainEvent) error { return nil }

func (discardBus) PublishBatch(ctx context.Context, batch []events.DomainEvent) error { return nil }

type staticLimits struct{}

func (staticLimits) Limits() ports.Limits { return ports.Limits{} }

type handlerFixture struct {
	router chi.Router
	tasks  *memory.TaskStore
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	tasks := memory.NewTaskStore()
	service := services.NewDependencyService(
		memory.NewEdgeStore(),
		tasks,
		memory.NewProjectLock(),
		discardBus{},
		staticLimits{},
		observability.NewCollector("taskdeps"),
		zap.NewNop(),
	)

	handler := NewDependencyHandler(service, zap.NewNop())
	graph := NewGraphHandler(service, zap.NewNop())

	router := chi.NewRouter()
	router.Route("/tasks/{taskID}/dependencies", func(r chi.Router) {
		r.Get("/", handler.GetDependencies)
		r.Post("/", handler.AddDependency)
		r.Get("/check", handler.CheckDependency)
		r.Delete("/{edgeID}", handler.RemoveDependency)
	})
	router.Delete("/tasks/{taskID}/edges", handler.CascadeRemove)
	router.Get("/projects/{projectID}/dependency-graph", graph.GetGraph)
	router.Get("/projects/{projectID}/critical-path", graph.GetCriticalPath)

	return &handlerFixture{router: router, tasks: tasks}
}

func (f *handlerFixture) seedTask(t *testing.T, projectID string) *entities.Task {
	t.Helper()
	id, err := valueobjects.NewTaskIDFromString(uuid.New().String())
	require.NoError(t, err)
	pid, err := valueobjects.NewProjectIDFromString(projectID)
	require.NoError(t, err)
	task := &entities.Task{ID: id, ProjectID: pid, Title: "t", Status: entities.StatusTodo}
	f.tasks.Put(task)
	return task
}

func (f *handlerFixture) do(t *testing.T, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestAddDependencyEndpoint(t *testing.T) {
	f := newHandlerFixture(t)
	a := f.seedTask(t, "proj-1")
	b := f.seedTask(t, "proj-1")

	rec := f.do(t, http.MethodPost, "/tasks/"+a.ID.String()+"/dependencies",
		AddDependencyRequest{DependsOnTaskID: b.ID.String()})

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, a.ID.String(), resp["task_id"])
	assert.Equal(t, b.ID.String(), resp["depends_on_task_id"])
	assert.NotEmpty(t, resp["edge_id"])
	assert.NotEmpty(t, resp["created_at"])
}

func TestAddDependencyEndpoint_Conflicts(t *testing.T) {
	f := newHandlerFixture(t)
	a := f.seedTask(t, "proj-1")
	b := f.seedTask(t, "proj-1")

	path := "/tasks/" + a.ID.String() + "/dependencies"
	require.Equal(t, http.StatusCreated,
		f.do(t, http.MethodPost, path, AddDependencyRequest{DependsOnTaskID: b.ID.String()}).Code)

	// duplicate
	rec := f.do(t, http.MethodPost, path, AddDependencyRequest{DependsOnTaskID: b.ID.String()})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// reverse edge closes a cycle
	rec = f.do(t, http.MethodPost, "/tasks/"+b.ID.String()+"/dependencies",
		AddDependencyRequest{DependsOnTaskID: a.ID.String()})
	assert.Equal(t, http.StatusConflict, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["code"])
}

func TestAddDependencyEndpoint_BadInput(t *testing.T) {
	f := newHandlerFixture(t)
	a := f.seedTask(t, "proj-1")

	rec := f.do(t, http.MethodPost, "/tasks/not-a-uuid/dependencies",
		AddDependencyRequest{DependsOnTaskID: a.ID.String()})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/tasks/"+a.ID.String()+"/dependencies",
		AddDependencyRequest{DependsOnTaskID: "not-a-uuid"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/tasks/"+a.ID.String()+"/dependencies", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddDependencyEndpoint_UnknownTask(t *testing.T) {
	f := newHandlerFixture(t)
	a := f.seedTask(t, "proj-1")

	rec := f.do(t, http.MethodPost, "/tasks/"+a.ID.String()+"/dependencies",
		AddDependencyRequest{DependsOnTaskID: uuid.New().String()})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRemoveDependencyEndpoint(t *testing.T) {
	f := newHandlerFixture(t)
	a := f.seedTask(t, "proj-1")
	b := f.seedTask(t, "proj-1")

	created := f.do(t, http.MethodPost, "/tasks/"+a.ID.String()+"/dependencies",
		AddDependencyRequest{DependsOnTaskID: b.ID.String()})
	require.Equal(t, http.StatusCreated, created.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &resp))

	path := "/tasks/" + a.ID.String() + "/dependencies/" + resp["edge_id"]
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, path, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, path, nil).Code)
}

func TestCheckDependencyEndpoint(t *testing.T) {
	f := newHandlerFixture(t)
	a := f.seedTask(t, "proj-1")
	b := f.seedTask(t, "proj-1")

	rec := f.do(t, http.MethodGet,
		"/tasks/"+a.ID.String()+"/dependencies/check?dependsOnTaskId="+b.ID.String(), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["admissible"])

	rec = f.do(t, http.MethodGet,
		"/tasks/"+a.ID.String()+"/dependencies/check?dependsOnTaskId="+a.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["admissible"])
	assert.Equal(t, "SELF_DEPENDENCY", resp["reason"])
}

func TestGetDependenciesEndpoint(t *testing.T) {
	f := newHandlerFixture(t)
	a := f.seedTask(t, "proj-1")
	b := f.seedTask(t, "proj-1")

	require.Equal(t, http.StatusCreated,
		f.do(t, http.MethodPost, "/tasks/"+a.ID.String()+"/dependencies",
			AddDependencyRequest{DependsOnTaskID: b.ID.String()}).Code)

	rec := f.do(t, http.MethodGet, "/tasks/"+a.ID.String()+"/dependencies", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		TaskID    string `json:"task_id"`
		DependsOn []struct {
			Task struct {
				ID string `json:"id"`
			} `json:"task"`
		} `json:"depends_on"`
		Blocks []interface{} `json:"blocks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, a.ID.String(), resp.TaskID)
	require.Len(t, resp.DependsOn, 1)
	assert.Equal(t, b.ID.String(), resp.DependsOn[0].Task.ID)
	assert.Empty(t, resp.Blocks)
}

func TestCascadeRemoveEndpoint(t *testing.T) {
	f := newHandlerFixture(t)
	a := f.seedTask(t, "proj-1")
	b := f.seedTask(t, "proj-1")
	c := f.seedTask(t, "proj-1")

	require.Equal(t, http.StatusCreated,
		f.do(t, http.MethodPost, "/tasks/"+a.ID.String()+"/dependencies",
			AddDependencyRequest{DependsOnTaskID: b.ID.String()}).Code)
	require.Equal(t, http.StatusCreated,
		f.do(t, http.MethodPost, "/tasks/"+c.ID.String()+"/dependencies",
			AddDependencyRequest{DependsOnTaskID: a.ID.String()}).Code)

	rec := f.do(t, http.MethodDelete, "/tasks/"+a.ID.String()+"/edges", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, float64(2), resp["removed"])
}

func TestGetGraphEndpoint(t *testing.T) {
	f := newHandlerFixture(t)
	a := f.seedTask(t, "proj-g")
	b := f.seedTask(t, "proj-g")

	require.Equal(t, http.StatusCreated,
		f.do(t, http.MethodPost, "/tasks/"+a.ID.String()+"/dependencies",
			AddDependencyRequest{DependsOnTaskID: b.ID.String()}).Code)

	rec := f.do(t, http.MethodGet, "/projects/proj-g/dependency-graph", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		ProjectID string `json:"project_id"`
		Nodes     []struct {
			ID     string `json:"id"`
			OnPath bool   `json:"on_critical_path"`
		} `json:"nodes"`
		Links []struct {
			Source string `json:"source"`
			Target string `json:"target"`
		} `json:"links"`
		Stats struct {
			NodeCount int `json:"node_count"`
			EdgeCount int `json:"edge_count"`
		} `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "proj-g", resp.ProjectID)
	assert.Equal(t, 2, resp.Stats.NodeCount)
	assert.Equal(t, 1, resp.Stats.EdgeCount)
	require.Len(t, resp.Links, 1)
	assert.Equal(t, a.ID.String(), resp.Links[0].Source)
	assert.Equal(t, b.ID.String(), resp.Links[0].Target)
}

func TestGetCriticalPathEndpoint_Empty(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodGet, "/projects/proj-empty/critical-path", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Length int `json:"length"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Zero(t, resp.Length)
}
