package kinjoservice

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kafadas/kinjo/internal/config"
)

type flag struct{ ok atomic.Bool }

func (f *flag) IsHealthy() bool { return f.ok.Load() }

func TestStartupHealthTimeout(t *testing.T) {
	assert.Equal(t, time.Minute, startupHealthTimeout(5*time.Second))
	assert.Equal(t, 4*time.Minute, startupHealthTimeout(2*time.Minute))
}

func TestWaitUntilHealthy(t *testing.T) {
	cfg := config.NewForTesting()
	f := &flag{}
	go func() {
		time.Sleep(100 * time.Millisecond)
		f.ok.Store(true)
	}()
	require.NoError(t, waitUntilHealthy(context.Background(), cfg, f))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, waitUntilHealthy(ctx, cfg, &flag{}), context.Canceled)
}
