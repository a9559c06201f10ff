package pool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestWorkerPool_ExecutesTasks(t *testing.T) {
	p := NewWorkerPool(4, 16, zap.NewNop())
	p.Start(context.Background())

	var count int32
	for i := 0; i < 10; i++ {
		assert.True(t, p.TrySubmit(func(context.Context) { atomic.AddInt32(&count, 1) }))
	}
	p.Stop()

	assert.Equal(t, int32(10), atomic.LoadInt32(&count))
}

func TestWorkerPool_QueueFull(t *testing.T) {
	p := NewWorkerPool(1, 1, zap.NewNop())

	// 未启动时只能放入一个任务
	assert.True(t, p.TrySubmit(func(context.Context) {}))
	assert.False(t, p.TrySubmit(func(context.Context) {}))

	p.Start(context.Background())
	p.Stop()
}

func TestWorkerPool_RejectsAfterStop(t *testing.T) {
	p := NewWorkerPool(1, 1, zap.NewNop())
	p.Start(context.Background())
	p.Stop()

	assert.False(t, p.TrySubmit(func(context.Context) {}))
	assert.NotPanics(t, p.Stop)
}

func TestWorkerPool_RecoversPanic(t *testing.T) {
	p := NewWorkerPool(1, 4, zap.NewNop())
	p.Start(context.Background())

	var ran int32
	p.TrySubmit(func(context.Context) { panic("boom") })
	p.TrySubmit(func(context.Context) { atomic.StoreInt32(&ran, 1) })
	p.Stop()

	assert.Equal(t, int32(1), atomic.LoadInt32(&ran))
}

func TestWorkerPool_RunDrainsOnCancel(t *testing.T) {
	p := NewWorkerPool(2, 8, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		_ = p.Run(ctx)
		close(done)
	}()

	var count int32
	assert.Eventually(t, func() bool {
		return p.TrySubmit(func(taskCtx context.Context) {
			// 任务收到的 ctx 不随 Run 的 ctx 一起取消
			if taskCtx.Err() == nil {
				atomic.AddInt32(&count, 1)
			}
		})
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&count))
}
