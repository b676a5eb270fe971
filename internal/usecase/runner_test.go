//go:build unit

package usecase_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"bloodbank-ops/internal/pkg/logger"
	"bloodbank-ops/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner(t *testing.T) {
	var calls atomic.Int32
	ran := make(chan struct{}, 1)
	r := usecase.NewRunner("test", time.Hour, logger.Discard(), func(ctx context.Context) {
		calls.Add(1)
		select {
		case ran <- struct{}{}:
		default:
		}
	})
	assert.False(t, r.Running())

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	r.Start(ctx)
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not tick on start")
	}
	assert.True(t, r.Running())

	// cancelling the start context does not stop the worker
	cancel()
	assert.True(t, r.Running())

	r.Stop()
	r.Stop()
	assert.False(t, r.Running())
	assert.EqualValues(t, 1, calls.Load())

	r.Start(context.Background())
	require.Eventually(t, func() bool { return calls.Load() == 2 }, 2*time.Second, 10*time.Millisecond)
	r.Stop()
}

func TestRunner_StopWaitsForTick(t *testing.T) {
	entered := make(chan struct{})
	var finished atomic.Bool
	r := usecase.NewRunner("slow", time.Hour, logger.Discard(), func(ctx context.Context) {
		close(entered)
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
	})
	r.Start(context.Background())
	<-entered
	r.Stop()
	assert.True(t, finished.Load())
}
