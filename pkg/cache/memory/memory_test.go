package memory

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davicafu/omegacache/pkg/cache"
	"github.com/davicafu/omegacache/pkg/cache/cachetest"
)

func newMockClock() *clock.Mock {
	clk := clock.NewMock()
	clk.Set(time.Unix(1_700_000_000, 0))
	return clk
}

func TestMemory_Contract(t *testing.T) {
	cachetest.Run(t, "memory", func(t *testing.T) cachetest.Harness {
		clk := newMockClock()
		return cachetest.Harness{
			Storage:       New(WithClock(clk), WithCleanupInterval(time.Hour)),
			Advance:       clk.Add,
			ExactBoundary: true,
		}
	})
}

func TestMemory_PurgeExpired(t *testing.T) {
	ctx := context.Background()
	clk := newMockClock()
	s := New(WithClock(clk), WithCleanupInterval(time.Hour))
	defer s.Close()

	short := cache.Def{ColumnName: "short", TTL: 1}
	long := cache.Def{ColumnName: "long", TTL: 60}
	require.NoError(t, s.TryInsert(ctx, short, []byte("k"), []byte("v")))
	require.NoError(t, s.TryInsert(ctx, long, []byte("k"), []byte("v")))

	clk.Add(2 * time.Second)
	s.purgeExpired()

	assert.Equal(t, 0, s.Len("short"))
	assert.Equal(t, 1, s.Len("long"))
}

func TestMemory_CleanupLoopRunsOnTick(t *testing.T) {
	ctx := context.Background()
	clk := newMockClock()
	s := New(WithClock(clk), WithCleanupInterval(10*time.Second))
	defer s.Close()

	c := cache.Def{ColumnName: "sessions", TTL: 1}
	require.NoError(t, s.TryInsert(ctx, c, []byte("k"), []byte("v")))
	require.Equal(t, 1, s.Len("sessions"))

	clk.Add(10 * time.Second)
	assert.Eventually(t, func() bool {
		return s.Len("sessions") == 0
	}, time.Second, 10*time.Millisecond)
}

func TestMemory_ClosedIsEngineError(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	c := cache.Def{ColumnName: "sessions", TTL: 10}

	assert.ErrorIs(t, s.TryInsert(ctx, c, []byte("k"), []byte("v")), cache.ErrEngine)
	_, _, err := s.TryGet(ctx, c, []byte("k"))
	assert.ErrorIs(t, err, cache.ErrEngine)
	assert.ErrorIs(t, s.TryDropColumn(ctx, c), cache.ErrEngine)
}
