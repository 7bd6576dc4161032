package discard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/davicafu/omegacache/pkg/cache"
)

func TestDiscard(t *testing.T) {
	ctx := context.Background()
	s := Build("", 0)
	c := cache.Def{ColumnName: "sessions", TTL: 10}

	assert.NoError(t, s.TryInsert(ctx, c, []byte("u1"), []byte("alice")))

	v, ok, err := s.TryGet(ctx, c, []byte("u1"))
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, v)

	assert.NoError(t, s.TryDropColumn(ctx, c))
	assert.NoError(t, s.Close())
}

func TestDiscard_IgnoresNegativeTTL(t *testing.T) {
	s := Build("/does/not/matter", 1)
	err := s.TryInsert(context.Background(), cache.Def{ColumnName: "c", TTL: -1}, []byte("k"), []byte("v"))
	assert.NoError(t, err)
}

func TestDiscard_ThroughEngine(t *testing.T) {
	ctx := context.Background()
	engine := cache.New(Build("", 0))
	c := cache.Def{ColumnName: "sessions", TTL: 10}

	assert.NoError(t, cache.Insert(ctx, engine, c, "u1", "alice"))
	_, ok, err := cache.Get[string](ctx, engine, c, "u1")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, engine.TryDropColumn(ctx, c))
}
