package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davicafu/omegacache/pkg/cache"
	"github.com/davicafu/omegacache/pkg/cache/cachetest"
)

func newTestStorage(t *testing.T) (*Storage, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Unix(1_700_000_000, 0))

	s, err := Open(filepath.Join(t.TempDir(), "cache.sqlite"), 8<<20, WithClock(clk))
	require.NoError(t, err)
	return s, clk
}

func TestSQLite_Contract(t *testing.T) {
	cachetest.Run(t, "sqlite", func(t *testing.T) cachetest.Harness {
		s, clk := newTestStorage(t)
		return cachetest.Harness{
			Storage:       s,
			Advance:       clk.Add,
			ExactBoundary: true,
		}
	})
}

func TestTableName_QuotesIdentifier(t *testing.T) {
	assert.Equal(t, `"col_sessions"`, tableName(cache.Def{ColumnName: "sessions"}))
	assert.Equal(t, `"col_a""b"`, tableName(cache.Def{ColumnName: `a"b`}))
}

func TestSQLite_HostileColumnName(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)
	defer s.Close()
	c := cache.Def{ColumnName: `x"; DROP TABLE y; --`, TTL: 10}

	require.NoError(t, s.TryInsert(ctx, c, []byte("k"), []byte("v")))
	v, ok, err := s.TryGet(ctx, c, []byte("k"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)
	assert.NoError(t, s.TryDropColumn(ctx, c))
}

func TestSQLite_ExpiredRowIsDeleted(t *testing.T) {
	ctx := context.Background()
	s, clk := newTestStorage(t)
	defer s.Close()
	c := cache.Def{ColumnName: "sessions", TTL: 1}

	require.NoError(t, s.TryInsert(ctx, c, []byte("k"), []byte("v")))
	clk.Add(2 * time.Second)

	_, ok, err := s.TryGet(ctx, c, []byte("k"))
	require.NoError(t, err)
	assert.False(t, ok)

	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM `+tableName(c)).Scan(&n))
	assert.Zero(t, n)
}

func TestSQLite_ClosedIsEngineError(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	c := cache.Def{ColumnName: "sessions", TTL: 10}

	assert.ErrorIs(t, s.TryInsert(ctx, c, []byte("k"), []byte("v")), cache.ErrEngine)
	_, _, err := s.TryGet(ctx, c, []byte("k"))
	assert.ErrorIs(t, err, cache.ErrEngine)
	assert.ErrorIs(t, s.TryDropColumn(ctx, c), cache.ErrEngine)
}

func TestSQLite_InMemory(t *testing.T) {
	ctx := context.Background()
	s, err := Open(":memory:", 0)
	require.NoError(t, err)
	defer s.Close()
	c := cache.Def{ColumnName: "pages", TTL: 60}

	require.NoError(t, s.TryInsert(ctx, c, []byte("/"), []byte("<html>")))
	v, ok, err := s.TryGet(ctx, c, []byte("/"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("<html>"), v)
}

func TestDSN(t *testing.T) {
	got := dsn("/tmp/cache.sqlite", 2<<20)
	assert.Contains(t, got, "/tmp/cache.sqlite?")
	assert.Contains(t, got, "cache_size%28-2048%29")
	assert.Contains(t, got, "journal_mode%28WAL%29")
}

func TestBuild_PanicsOnBadPath(t *testing.T) {
	assert.Panics(t, func() {
		Build(filepath.Join(t.TempDir(), "missing", "dir", "cache.sqlite"), 0)
	})
}
