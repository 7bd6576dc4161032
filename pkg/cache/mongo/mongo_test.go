package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/davicafu/omegacache/pkg/cache"
	"github.com/davicafu/omegacache/pkg/cache/cachetest"
)

// setupMongo abre una base de datos propia para el test y la borra al terminar.
func setupMongo(t *testing.T) (*Storage, *clock.Mock) {
	t.Helper()
	uri := os.Getenv("OMEGACACHE_MONGO_URI")
	if uri == "" {
		t.Skip("OMEGACACHE_MONGO_URI no está configurada, saltando test de integración con MongoDB")
	}

	// El reloj arranca en la hora real para que el reaper de MongoDB no borre nada antes de tiempo
	clk := clock.NewMock()
	clk.Set(time.Now())

	ctx := context.Background()
	dbName := "omegacache_test_" + uuid.NewString()[:8]
	s, err := Open(ctx, uri, dbName, WithClock(clk))
	require.NoError(t, err)

	t.Cleanup(func() {
		cleanup, err := Open(context.Background(), uri, dbName)
		if err != nil {
			return
		}
		_ = cleanup.db.Drop(context.Background())
		_ = cleanup.Close()
	})
	return s, clk
}

func TestMongo_Contract(t *testing.T) {
	cachetest.Run(t, "mongo", func(t *testing.T) cachetest.Harness {
		s, clk := setupMongo(t)
		return cachetest.Harness{
			Storage:       s,
			Advance:       clk.Add,
			ExactBoundary: true,
		}
	})
}

func TestMongo_TTLIndexAndExpireAt(t *testing.T) {
	ctx := context.Background()
	s, clk := setupMongo(t)
	defer s.Close()
	c := cache.Def{ColumnName: "sessions", TTL: 30}

	require.NoError(t, s.TryInsert(ctx, c, []byte("u1"), []byte("alice")))

	var doc entry
	require.NoError(t, s.db.Collection(collectionName(c)).FindOne(ctx, bson.M{"_id": []byte("u1")}).Decode(&doc))
	assert.Equal(t, clk.Now().Unix(), doc.InsertedAt)
	assert.Equal(t, clk.Now().Add(31*time.Second).Unix(), doc.ExpireAt.Unix())

	cursor, err := s.db.Collection(collectionName(c)).Indexes().List(ctx)
	require.NoError(t, err)
	var indexes []bson.M
	require.NoError(t, cursor.All(ctx, &indexes))

	found := false
	for _, idx := range indexes {
		if _, ok := idx["expireAfterSeconds"]; ok {
			found = true
		}
	}
	assert.True(t, found, "expected a TTL index on expireAt")
}

func TestCollectionName(t *testing.T) {
	assert.Equal(t, "col_sessions", collectionName(cache.Def{ColumnName: "sessions"}))
}
