package app

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davicafu/omegacache/internal/config"
	"github.com/davicafu/omegacache/pkg/cache"
)

func testConfig(t *testing.T, backend string) *config.Config {
	return &config.Config{
		Backend:  backend,
		Location: filepath.Join(t.TempDir(), "cache"),
		Capacity: 1 << 20,
		Codec:    "msgpack",
		Columns:  []cache.Def{{ColumnName: "sessions", TTL: 60}},
	}
}

func TestNew_WiresEngineAndMetrics(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t, "bolt"), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	col, err := a.Column("sessions")
	require.NoError(t, err)

	require.NoError(t, cache.Insert(ctx, a.Engine, col, "u1", map[string]string{"name": "alice"}))
	v, ok, err := cache.Get[map[string]string](ctx, a.Engine, col, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "alice", v["name"])

	var buf bytes.Buffer
	a.Metrics.WritePrometheus(&buf)
	assert.Contains(t, buf.String(), `omegacache_gets_total{column="sessions",result="hit"} 1`)
}

func TestNew_Errors(t *testing.T) {
	cfg := testConfig(t, "etcd")
	_, err := New(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "unknown cache backend")

	cfg = testConfig(t, "memory")
	cfg.Codec = "gob"
	_, err = New(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "unknown codec")
}

func TestColumn_Unknown(t *testing.T) {
	a, err := New(context.Background(), testConfig(t, "memory"), nil)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Column("pages")
	assert.ErrorContains(t, err, `unknown column "pages"`)
}
