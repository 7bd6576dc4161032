// Package mongo implementa un backend en red sobre MongoDB.
//
// Cada columna es una colección "col_<nombre>" con un índice TTL sobre expireAt.
// El reaper de MongoDB pasa cada ~60 s, así que las lecturas comprueban también el TTL
// para respetar el límite exacto.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/davicafu/omegacache/pkg/cache"
)

// DefaultDatabase se usa cuando la URI no indica base de datos.
const DefaultDatabase = "omegacache"

// entry es el documento BSON de cada clave.
type entry struct {
	Key        []byte    `bson:"_id"`
	InsertedAt int64     `bson:"insertedAt"`
	ExpireAt   time.Time `bson:"expireAt"`
	Value      []byte    `bson:"value"`
}

type Storage struct {
	client  *mongo.Client
	db      *mongo.Database
	clock   clock.Clock
	indexed sync.Map // nombre de colección -> struct{}, índice TTL ya creado
}

var _ cache.Storage = (*Storage)(nil)

type Option func(*Storage)

// WithClock inyecta el reloj usado para el TTL (tests).
func WithClock(clk clock.Clock) Option {
	return func(s *Storage) {
		if clk != nil {
			s.clock = clk
		}
	}
}

// New usa un cliente ya conectado. Close lo desconectará.
func New(ctx context.Context, client *mongo.Client, dbName string, opts ...Option) (*Storage, error) {
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("could not ping mongoDB: %w", err)
	}
	if dbName == "" {
		dbName = DefaultDatabase
	}

	s := &Storage{client: client, db: client.Database(dbName), clock: clock.New()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Open conecta a uri y usa dbName (o DefaultDatabase).
func Open(ctx context.Context, uri, dbName string, opts ...Option) (*Storage, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongoDB: %w", err)
	}
	s, err := New(ctx, client, dbName, opts...)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// Build abre el backend al arrancar. capacity no aplica.
func Build(location string, _ uint64) cache.Storage {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := Open(ctx, location, "")
	if err != nil {
		panic(err)
	}
	return s
}

var _ cache.BuildFunc = Build

func collectionName(c cache.Column) string {
	return "col_" + c.Name()
}

// collection devuelve la colección de la columna y crea su índice TTL la primera vez.
func (s *Storage) collection(ctx context.Context, c cache.Column) (*mongo.Collection, error) {
	name := collectionName(c)
	coll := s.db.Collection(name)
	if _, ok := s.indexed.Load(name); ok {
		return coll, nil
	}

	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expireAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return nil, err
	}
	s.indexed.Store(name, struct{}{})
	return coll, nil
}

func (s *Storage) TryInsert(ctx context.Context, c cache.Column, key, value []byte) error {
	key = nonNilKey(key)
	ttl, err := cache.TTL(c)
	if err != nil {
		return cache.PutError(err)
	}

	coll, err := s.collection(ctx, c)
	if err != nil {
		return mapErr(err, cache.KindEngine)
	}

	now := s.clock.Now()
	if value == nil {
		value = []byte{}
	}
	doc := entry{
		Key:        key,
		InsertedAt: now.Unix(),
		// Un segundo de margen: con elapsed == ttl la entrada aún debe poder leerse
		ExpireAt: now.Add(time.Duration(ttl+1) * time.Second),
		Value:    value,
	}

	_, err = coll.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	return mapErr(err, cache.KindPut)
}

func (s *Storage) TryGet(ctx context.Context, c cache.Column, key []byte) ([]byte, bool, error) {
	key = nonNilKey(key)
	ttl, err := cache.TTL(c)
	if err != nil {
		return nil, false, cache.GetError(err)
	}

	coll := s.db.Collection(collectionName(c))
	var doc entry
	if err := coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, nil
		}
		return nil, false, mapErr(err, cache.KindGet)
	}

	insertedAt := doc.InsertedAt
	if insertedAt < 0 {
		insertedAt = 0
	}
	if cache.Expired(uint64(insertedAt), cache.Now(s.clock), ttl) {
		_, _ = coll.DeleteOne(ctx, bson.M{"_id": key, "insertedAt": doc.InsertedAt})
		return nil, false, nil
	}
	if doc.Value == nil {
		doc.Value = []byte{}
	}
	return doc.Value, true, nil
}

// TryDropColumn elimina la colección entera. El índice se recrea en la siguiente escritura.
func (s *Storage) TryDropColumn(ctx context.Context, c cache.Column) error {
	name := collectionName(c)
	if err := s.db.Collection(name).Drop(ctx); err != nil {
		return cache.EngineError(err)
	}
	s.indexed.Delete(name)
	return nil
}

func (s *Storage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func mapErr(err error, kind cache.Kind) error {
	if err == nil {
		return nil
	}
	if mongo.IsNetworkError(err) ||
		mongo.IsTimeout(err) ||
		errors.Is(err, mongo.ErrClientDisconnected) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return cache.EngineError(err)
	}
	return cache.Errorf(kind, "%v", err)
}

// Una clave nil se enviaría como NULL; la clave vacía es un valor válido.
func nonNilKey(key []byte) []byte {
	if key == nil {
		return []byte{}
	}
	return key
}
