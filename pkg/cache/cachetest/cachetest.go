// Package cachetest contiene la batería de tests de contrato que debe pasar
// cualquier implementación de cache.Storage con TTL.
package cachetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davicafu/omegacache/pkg/cache"
)

// Harness es lo que necesita la batería para probar un backend.
type Harness struct {
	Storage cache.Storage

	// Advance hace avanzar el tiempo que ve el backend (reloj mock, FastForward de miniredis...).
	Advance func(d time.Duration)

	// ExactBoundary indica que el backend garantiza que elapsed == ttl sigue vivo.
	// Los backends con expiración nativa pueden diferir en un tick y lo ponen a false.
	ExactBoundary bool
}

// Factory crea un backend limpio para cada subtest. La batería llama a Close al terminar.
type Factory func(t *testing.T) Harness

// Run ejecuta la batería completa contra el backend que devuelve factory.
func Run(t *testing.T, name string, factory Factory) {
	t.Run(name, func(t *testing.T) {
		tests := []struct {
			name string
			fn   func(t *testing.T, h Harness)
		}{
			{"InsertAndGet", testInsertAndGet},
			{"Overwrite", testOverwrite},
			{"Absent", testAbsent},
			{"BinaryKeys", testBinaryKeys},
			{"EmptyKeyAndColumn", testEmptyKeyAndColumn},
			{"ReturnedValueIsCopy", testReturnedValueIsCopy},
			{"TTLBoundary", testTTLBoundary},
			{"Expiry", testExpiry},
			{"ReinsertAfterExpiry", testReinsertAfterExpiry},
			{"SessionsScenario", testSessionsScenario},
			{"DropColumn", testDropColumn},
			{"DropColumnIsolation", testDropColumnIsolation},
			{"DropUnknownColumn", testDropUnknownColumn},
			{"NegativeTTL", testNegativeTTL},
			{"Concurrent", testConcurrent},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				h := factory(t)
				defer func() {
					assert.NoError(t, h.Storage.Close())
				}()
				tt.fn(t, h)
			})
		}
	})
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func col(name string, ttl int) cache.Column {
	return cache.Def{ColumnName: name, TTL: ttl}
}

func mustGet(t *testing.T, s cache.Storage, c cache.Column, key string) ([]byte, bool) {
	t.Helper()
	v, ok, err := s.TryGet(context.Background(), c, []byte(key))
	require.NoError(t, err)
	return v, ok
}

func mustInsert(t *testing.T, s cache.Storage, c cache.Column, key, value string) {
	t.Helper()
	require.NoError(t, s.TryInsert(context.Background(), c, []byte(key), []byte(value)))
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func testInsertAndGet(t *testing.T, h Harness) {
	c := col("test_column", 10)
	mustInsert(t, h.Storage, c, "test_key", "test_data")

	v, ok := mustGet(t, h.Storage, c, "test_key")
	assert.True(t, ok)
	assert.Equal(t, []byte("test_data"), v)
}

func testOverwrite(t *testing.T, h Harness) {
	c := col("test_column", 10)
	mustInsert(t, h.Storage, c, "k", "v1")
	mustInsert(t, h.Storage, c, "k", "v2")

	v, ok := mustGet(t, h.Storage, c, "k")
	assert.True(t, ok)
	assert.Equal(t, []byte("v2"), v)
}

func testAbsent(t *testing.T, h Harness) {
	c := col("test_column", 10)

	// Columna que nunca se escribió
	v, ok := mustGet(t, h.Storage, c, "nope")
	assert.False(t, ok)
	assert.Nil(t, v)

	// Columna existente, clave inexistente
	mustInsert(t, h.Storage, c, "k", "v")
	v, ok = mustGet(t, h.Storage, c, "nope")
	assert.False(t, ok)
	assert.Nil(t, v)
}

func testBinaryKeys(t *testing.T, h Harness) {
	c := col("bin", 10)
	keys := [][]byte{
		{0x00, 0x01, 0xff},
		[]byte("a:b:c"),
		[]byte("*"),
	}

	for i, k := range keys {
		require.NoError(t, h.Storage.TryInsert(context.Background(), c, k, []byte(fmt.Sprintf("v%d", i))))
	}
	for i, k := range keys {
		v, ok, err := h.Storage.TryGet(context.Background(), c, k)
		require.NoError(t, err)
		assert.True(t, ok, "key %x", k)
		assert.Equal(t, []byte(fmt.Sprintf("v%d", i)), v)
	}
}

func testEmptyKeyAndColumn(t *testing.T, h Harness) {
	ctx := context.Background()
	named := col("named", 10)
	unnamed := col("", 10)

	require.NoError(t, h.Storage.TryInsert(ctx, named, []byte{}, []byte("empty key")))
	require.NoError(t, h.Storage.TryInsert(ctx, unnamed, []byte("k"), []byte("empty column")))
	require.NoError(t, h.Storage.TryInsert(ctx, unnamed, []byte{}, []byte("both")))

	v, ok, err := h.Storage.TryGet(ctx, named, []byte{})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("empty key"), v)

	v, ok = mustGet(t, h.Storage, unnamed, "k")
	assert.True(t, ok)
	assert.Equal(t, []byte("empty column"), v)

	v, ok, err = h.Storage.TryGet(ctx, unnamed, []byte{})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("both"), v)

	require.NoError(t, h.Storage.TryDropColumn(ctx, unnamed))
	_, ok = mustGet(t, h.Storage, unnamed, "k")
	assert.False(t, ok)
	_, ok, err = h.Storage.TryGet(ctx, named, []byte{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func testReturnedValueIsCopy(t *testing.T, h Harness) {
	c := col("test_column", 10)
	mustInsert(t, h.Storage, c, "k", "value")

	v, ok := mustGet(t, h.Storage, c, "k")
	require.True(t, ok)
	v[0] = 'X'

	again, ok := mustGet(t, h.Storage, c, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("value"), again)
}

func testTTLBoundary(t *testing.T, h Harness) {
	if !h.ExactBoundary {
		t.Skip("backend con expiración nativa: el límite puede variar en un tick")
	}
	c := col("boundary", 5)
	mustInsert(t, h.Storage, c, "k", "v")

	h.Advance(5 * time.Second)
	_, ok := mustGet(t, h.Storage, c, "k")
	assert.True(t, ok, "elapsed == ttl must still be alive")

	h.Advance(1 * time.Second)
	_, ok = mustGet(t, h.Storage, c, "k")
	assert.False(t, ok, "elapsed > ttl must be expired")
}

func testExpiry(t *testing.T, h Harness) {
	c := col("expiring", 3)
	mustInsert(t, h.Storage, c, "k", "v")

	_, ok := mustGet(t, h.Storage, c, "k")
	assert.True(t, ok)

	h.Advance(4 * time.Second)
	v, ok := mustGet(t, h.Storage, c, "k")
	assert.False(t, ok)
	assert.Nil(t, v)

	// Una segunda lectura tras la limpieza perezosa sigue siendo "no encontrado"
	_, ok = mustGet(t, h.Storage, c, "k")
	assert.False(t, ok)
}

func testReinsertAfterExpiry(t *testing.T, h Harness) {
	c := col("expiring", 1)
	mustInsert(t, h.Storage, c, "k", "old")
	h.Advance(2 * time.Second)

	_, ok := mustGet(t, h.Storage, c, "k")
	require.False(t, ok)

	mustInsert(t, h.Storage, c, "k", "new")
	v, ok := mustGet(t, h.Storage, c, "k")
	assert.True(t, ok)
	assert.Equal(t, []byte("new"), v)
}

func testSessionsScenario(t *testing.T, h Harness) {
	c := col("sessions", 1)
	mustInsert(t, h.Storage, c, "u1", "alice")

	v, ok := mustGet(t, h.Storage, c, "u1")
	assert.True(t, ok)
	assert.Equal(t, []byte("alice"), v)

	h.Advance(2 * time.Second)
	_, ok = mustGet(t, h.Storage, c, "u1")
	assert.False(t, ok)
}

func testDropColumn(t *testing.T, h Harness) {
	c := col("test_column", 10)
	for i := 0; i < 25; i++ {
		mustInsert(t, h.Storage, c, fmt.Sprintf("k%d", i), "v")
	}

	require.NoError(t, h.Storage.TryDropColumn(context.Background(), c))

	for i := 0; i < 25; i++ {
		_, ok := mustGet(t, h.Storage, c, fmt.Sprintf("k%d", i))
		assert.False(t, ok)
	}

	// La columna sigue abierta para nuevas escrituras
	mustInsert(t, h.Storage, c, "k0", "again")
	v, ok := mustGet(t, h.Storage, c, "k0")
	assert.True(t, ok)
	assert.Equal(t, []byte("again"), v)
}

func testDropColumnIsolation(t *testing.T, h Harness) {
	a := col("column_a", 10)
	b := col("column_b", 10)
	prefixed := col("column_a_suffix", 10)

	mustInsert(t, h.Storage, a, "k", "a")
	mustInsert(t, h.Storage, b, "k", "b")
	mustInsert(t, h.Storage, prefixed, "k", "p")

	require.NoError(t, h.Storage.TryDropColumn(context.Background(), a))

	_, ok := mustGet(t, h.Storage, a, "k")
	assert.False(t, ok)

	v, ok := mustGet(t, h.Storage, b, "k")
	assert.True(t, ok)
	assert.Equal(t, []byte("b"), v)

	v, ok = mustGet(t, h.Storage, prefixed, "k")
	assert.True(t, ok)
	assert.Equal(t, []byte("p"), v)
}

func testDropUnknownColumn(t *testing.T, h Harness) {
	assert.NoError(t, h.Storage.TryDropColumn(context.Background(), col("never_used", 10)))
}

func testNegativeTTL(t *testing.T, h Harness) {
	err := h.Storage.TryInsert(context.Background(), col("negative", -1), []byte("k"), []byte("v"))
	assert.ErrorIs(t, err, cache.ErrPut)
}

func testConcurrent(t *testing.T, h Harness) {
	c := col("concurrent", 60)
	const workers = 8
	const ops = 25

	var wg sync.WaitGroup
	errs := make(chan error, workers*ops*2)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < ops; i++ {
				key := []byte(fmt.Sprintf("w%d-k%d", w, i))
				val := []byte(fmt.Sprintf("v%d", i))
				if err := h.Storage.TryInsert(context.Background(), c, key, val); err != nil {
					errs <- err
					continue
				}
				got, ok, err := h.Storage.TryGet(context.Background(), c, key)
				if err != nil {
					errs <- err
					continue
				}
				if !ok || string(got) != string(val) {
					errs <- fmt.Errorf("key %s: got %q (found=%v), want %q", key, got, ok, val)
				}
			}
		}(w)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}
