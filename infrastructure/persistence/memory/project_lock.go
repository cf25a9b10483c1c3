package memory

import (
	"context"
	"sync"

	"taskdeps/application/ports"
	"taskdeps/domain/core/valueobjects"
)

// ProjectLock serializes mutations per project with a keyed mutex.
// Adequate for a single process; the DynamoDB locker covers multi-node
// deployments.
type ProjectLock struct {
	mu    sync.Mutex
	locks map[valueobjects.ProjectID]*projectMutex
}

type projectMutex struct {
	sync.Mutex
	refs int
}

func NewProjectLock() *ProjectLock {
	return &ProjectLock{locks: make(map[valueobjects.ProjectID]*projectMutex)}
}

// Lock blocks until the project mutex is held or the context is done.
func (l *ProjectLock) Lock(ctx context.Context, projectID valueobjects.ProjectID) (ports.UnlockFunc, error) {
	l.mu.Lock()
	pm := l.locks[projectID]
	if pm == nil {
		pm = &projectMutex{}
		l.locks[projectID] = pm
	}
	pm.refs++
	l.mu.Unlock()

	acquired := make(chan struct{})
	go func() {
		pm.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
		return func() { l.release(projectID, pm) }, nil
	case <-ctx.Done():
		// The goroutine will still acquire; release immediately when it does.
		go func() {
			<-acquired
			l.release(projectID, pm)
		}()
		return nil, ctx.Err()
	}
}

func (l *ProjectLock) release(projectID valueobjects.ProjectID, pm *projectMutex) {
	pm.Unlock()

	l.mu.Lock()
	pm.refs--
	if pm.refs == 0 {
		delete(l.locks, projectID)
	}
	l.mu.Unlock()
}
