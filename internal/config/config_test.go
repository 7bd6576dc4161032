package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davicafu/omegacache/pkg/cache"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, k := range []string{"CACHE_BACKEND", "CACHE_LOCATION", "CACHE_CAPACITY", "CACHE_COLUMNS", "CACHE_COLUMNS_FILE", "KAFKA_BROKERS", "HTTP_PORT"} {
		t.Setenv(k, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Backend)
	assert.Equal(t, uint64(0), cfg.Capacity)
	assert.Equal(t, "msgpack", cfg.Codec)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.False(t, cfg.UseKafka)
	assert.Empty(t, cfg.Columns)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "columns.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
columns:
  - name: sessions
    ttl_seconds: 3600
  - name: pages
    ttl_seconds: 60
`), 0o600))

	t.Setenv("CACHE_BACKEND", "Bolt")
	t.Setenv("CACHE_LOCATION", filepath.Join(dir, "cache.db"))
	t.Setenv("CACHE_CAPACITY", "64MiB")
	t.Setenv("CACHE_COLUMNS_FILE", file)
	t.Setenv("CACHE_COLUMNS", "pages=30,tokens=0")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "bolt", cfg.Backend)
	assert.Equal(t, uint64(64<<20), cfg.Capacity)
	assert.True(t, cfg.UseKafka)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, []cache.Def{
		{ColumnName: "sessions", TTL: 3600},
		{ColumnName: "pages", TTL: 30},
		{ColumnName: "tokens", TTL: 0},
	}, cfg.Columns)

	col, ok := cfg.Column("pages")
	assert.True(t, ok)
	assert.Equal(t, 30, col.TTLSeconds())
	_, ok = cfg.Column("missing")
	assert.False(t, ok)
}

func TestParseColumns_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"sin igual", "sessions"},
		{"ttl no numérico", "sessions=abc"},
		{"ttl negativo", "sessions=-1"},
		{"nombre vacío", "=10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseColumns(tt.input)
			assert.Error(t, err)
		})
	}
}

func TestLoadColumnsFile_Errors(t *testing.T) {
	_, err := LoadColumnsFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("columns:\n  - name: x\n    ttl_seconds: -5\n"), 0o600))
	_, err = LoadColumnsFile(bad)
	assert.Error(t, err)
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want uint64
	}{
		{"0", 0},
		{"1024", 1024},
		{"64KiB", 64 << 10},
		{"512 MiB", 512 << 20},
		{"1GiB", 1 << 30},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseSize("lots")
	assert.Error(t, err)
	_, err = ParseSize("99999999999999GiB")
	assert.Error(t, err)
}

func TestMergeColumns(t *testing.T) {
	got := MergeColumns(
		[]cache.Def{{ColumnName: "a", TTL: 1}, {ColumnName: "b", TTL: 2}},
		[]cache.Def{{ColumnName: "b", TTL: 20}, {ColumnName: "c", TTL: 3}},
	)
	assert.Equal(t, []cache.Def{
		{ColumnName: "a", TTL: 1},
		{ColumnName: "b", TTL: 20},
		{ColumnName: "c", TTL: 3},
	}, got)
}
