package device

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTaskGroup_WaitBlocksUntilAllSettle(t *testing.T) {
	tg := NewTaskGroup(context.Background())
	var done atomic.Int32

	for i := 0; i < 5; i++ {
		tg.Go(func(ctx context.Context) error {
			time.Sleep(10 * time.Millisecond)
			done.Add(1)
			return nil
		})
	}

	assert.NoError(t, tg.Wait())
	assert.Equal(t, int32(5), done.Load())
}

func TestTaskGroup_ReturnsFirstErrorAfterAllFinish(t *testing.T) {
	tg := NewTaskGroup(context.Background())
	var slowDone atomic.Bool

	tg.Go(func(ctx context.Context) error {
		return errors.New("boom")
	})
	tg.Go(func(ctx context.Context) error {
		time.Sleep(20 * time.Millisecond)
		slowDone.Store(true)
		return nil
	})

	assert.EqualError(t, tg.Wait(), "boom")
	assert.True(t, slowDone.Load())
}

func TestTaskGroup_PassesContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")
	tg := NewTaskGroup(ctx)

	var got any
	tg.Go(func(ctx context.Context) error {
		got = ctx.Value(key{})
		return nil
	})

	assert.NoError(t, tg.Wait())
	assert.Equal(t, "v", got)
}
