package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davicafu/omegacache/pkg/cache"
	"github.com/davicafu/omegacache/pkg/cache/cachetest"
)

func newTestStorage(t *testing.T) (*Storage, *miniredis.Miniredis) {
	t.Helper()
	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr:       m.Addr(),
		MaxRetries: -1,
	})
	return New(client), m
}

func TestRedis_Contract(t *testing.T) {
	cachetest.Run(t, "redis", func(t *testing.T) cachetest.Harness {
		s, m := newTestStorage(t)
		return cachetest.Harness{
			Storage: s,
			Advance: m.FastForward,
		}
	})
}

func TestEscapeGlob(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"sessions", "sessions"},
		{"a*b", `a\*b`},
		{"who?", `who\?`},
		{"[x]", `\[x\]`},
		{`back\slash`, `back\\slash`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, escapeGlob(tt.in))
		})
	}
}

func TestRedis_DropMatchesColumnLiterally(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)
	defer s.Close()

	glob := cache.Def{ColumnName: "col*", TTL: 60}
	other := cache.Def{ColumnName: "colX", TTL: 60}

	require.NoError(t, s.TryInsert(ctx, glob, []byte("k"), []byte("a")))
	require.NoError(t, s.TryInsert(ctx, other, []byte("k"), []byte("b")))

	require.NoError(t, s.TryDropColumn(ctx, glob))

	_, ok, err := s.TryGet(ctx, glob, []byte("k"))
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err := s.TryGet(ctx, other, []byte("k"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("b"), v)
}

// Las columnas "a" y "a:b" comparten prefijo físico; "ab" no.
func TestRedis_DropReachesColonPrefixedColumns(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)
	defer s.Close()

	a := cache.Def{ColumnName: "a", TTL: 60}
	nested := cache.Def{ColumnName: "a:b", TTL: 60}
	sibling := cache.Def{ColumnName: "ab", TTL: 60}

	require.NoError(t, s.TryInsert(ctx, a, []byte("k"), []byte("1")))
	require.NoError(t, s.TryInsert(ctx, nested, []byte("k"), []byte("2")))
	require.NoError(t, s.TryInsert(ctx, sibling, []byte("k"), []byte("3")))

	require.NoError(t, s.TryDropColumn(ctx, a))

	_, ok, err := s.TryGet(ctx, nested, []byte("k"))
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err := s.TryGet(ctx, sibling, []byte("k"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("3"), v)
}

func TestRedis_DropManyKeys(t *testing.T) {
	ctx := context.Background()
	s, m := newTestStorage(t)
	defer s.Close()
	c := cache.Def{ColumnName: "bulk", TTL: 60}

	for i := 0; i < 3*scanBatch+7; i++ {
		require.NoError(t, s.TryInsert(ctx, c, []byte{byte(i >> 8), byte(i)}, []byte("v")))
	}
	require.NoError(t, s.TryDropColumn(ctx, c))
	assert.Empty(t, m.Keys())
}

func TestRedis_PhysicalKeyAndTTL(t *testing.T) {
	ctx := context.Background()
	s, m := newTestStorage(t)
	defer s.Close()

	require.NoError(t, s.TryInsert(ctx, cache.Def{ColumnName: "sessions", TTL: 30}, []byte("u1"), []byte("alice")))
	got, err := m.Get("sessions:u1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got)
	assert.Equal(t, 30*time.Second, m.TTL("sessions:u1"))

	// TTL cero se envía como un segundo
	require.NoError(t, s.TryInsert(ctx, cache.Def{ColumnName: "zero", TTL: 0}, []byte("k"), []byte("v")))
	assert.Equal(t, time.Second, m.TTL("zero:k"))
}

func TestRedis_EmptyValueIsAbsent(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)
	defer s.Close()
	c := cache.Def{ColumnName: "c", TTL: 10}

	require.NoError(t, s.TryInsert(ctx, c, []byte("k"), []byte{}))
	v, ok, err := s.TryGet(ctx, c, []byte("k"))
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestRedis_ServerErrorsKeepOperationKind(t *testing.T) {
	ctx := context.Background()
	s, m := newTestStorage(t)
	defer s.Close()
	c := cache.Def{ColumnName: "c", TTL: 10}

	m.SetError("LOADING server is loading")
	defer m.SetError("")

	assert.ErrorIs(t, s.TryInsert(ctx, c, []byte("k"), []byte("v")), cache.ErrPut)
	_, _, err := s.TryGet(ctx, c, []byte("k"))
	assert.ErrorIs(t, err, cache.ErrGet)
	assert.ErrorIs(t, s.TryDropColumn(ctx, c), cache.ErrEngine)
}

func TestRedis_InfrastructureErrorsAreEngine(t *testing.T) {
	ctx := context.Background()
	c := cache.Def{ColumnName: "c", TTL: 10}

	t.Run("cliente cerrado", func(t *testing.T) {
		s, _ := newTestStorage(t)
		require.NoError(t, s.Close())

		assert.ErrorIs(t, s.TryInsert(ctx, c, []byte("k"), []byte("v")), cache.ErrEngine)
		_, _, err := s.TryGet(ctx, c, []byte("k"))
		assert.ErrorIs(t, err, cache.ErrEngine)
	})

	t.Run("servidor caído", func(t *testing.T) {
		s, m := newTestStorage(t)
		defer s.Close()
		m.Close()

		assert.ErrorIs(t, s.TryInsert(ctx, c, []byte("k"), []byte("v")), cache.ErrEngine)
	})

	t.Run("contexto cancelado", func(t *testing.T) {
		s, _ := newTestStorage(t)
		defer s.Close()
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, _, err := s.TryGet(cctx, c, []byte("k"))
		assert.ErrorIs(t, err, cache.ErrEngine)
	})
}

func TestRedis_NegativeTTLNeverReachesServer(t *testing.T) {
	s, m := newTestStorage(t)
	defer s.Close()

	err := s.TryInsert(context.Background(), cache.Def{ColumnName: "c", TTL: -5}, []byte("k"), []byte("v"))
	assert.ErrorIs(t, err, cache.ErrPut)
	assert.Empty(t, m.Keys())
}

func TestOpen(t *testing.T) {
	m := miniredis.RunT(t)

	s, err := Open(context.Background(), "redis://"+m.Addr()+"/0")
	require.NoError(t, err)
	assert.NoError(t, s.Close())

	_, err = Open(context.Background(), "not a uri")
	assert.Error(t, err)
}
