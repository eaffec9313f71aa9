package device

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// TaskGroup implements Host.WaitUntil: every registered task runs in its own
// goroutine and Wait blocks until all of them settle.
type TaskGroup struct {
	ctx context.Context
	g   errgroup.Group
}

func NewTaskGroup(ctx context.Context) *TaskGroup {
	return &TaskGroup{ctx: ctx}
}

func (t *TaskGroup) Go(task func(ctx context.Context) error) {
	t.g.Go(func() error {
		return task(t.ctx)
	})
}

// Wait returns the first task error, after all tasks have finished.
func (t *TaskGroup) Wait() error {
	return t.g.Wait()
}
