package cache

import (
	"context"
	"errors"
)

// Key es cualquier tipo cuya representación en bytes sirve como clave.
type Key interface {
	~string | ~[]byte
}

// Engine es la fachada tipada que usa la aplicación.
// Tiene un único Storage elegido al construirla y no guarda más estado.
type Engine struct {
	storage Storage
	codec   Codec
}

// Option configura un Engine.
type Option func(*Engine)

// WithCodec cambia el codec por defecto (Msgpack).
func WithCodec(c Codec) Option {
	return func(e *Engine) {
		if c != nil {
			e.codec = c
		}
	}
}

// New crea un Engine sobre storage.
func New(storage Storage, opts ...Option) *Engine {
	e := &Engine{storage: storage, codec: Msgpack}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Storage devuelve el backend que envuelve el Engine.
func (e *Engine) Storage() Storage {
	return e.storage
}

// TryInsert serializa value y lo guarda bajo key en la columna c.
// Si la serialización falla devuelve KindEncode sin tocar el almacén.
func (e *Engine) TryInsert(ctx context.Context, c Column, key []byte, value any) error {
	b, err := e.codec.Marshal(value)
	if err != nil {
		return EncodeError(err)
	}
	return ensureKind(e.storage.TryInsert(ctx, c, key, b), KindPut)
}

// TryGet intenta poblar dest (que debe ser un puntero) con el valor guardado bajo key.
// Devuelve (true, nil) si hay hit, (false, nil) si no existe o expiró,
// y KindDecode si los bytes no encajan en dest.
func (e *Engine) TryGet(ctx context.Context, c Column, key []byte, dest any) (bool, error) {
	b, found, err := e.storage.TryGet(ctx, c, key)
	if err != nil {
		return false, ensureKind(err, KindGet)
	}
	if !found {
		return false, nil
	}
	if err := e.codec.Unmarshal(b, dest); err != nil {
		return false, DecodeError(err)
	}
	return true, nil
}

// TryDropColumn elimina todas las entradas de c. Cualquier fallo se reporta como KindEngine.
func (e *Engine) TryDropColumn(ctx context.Context, c Column) error {
	err := e.storage.TryDropColumn(ctx, c)
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) && ce.Kind == KindEngine {
		return ce
	}
	return EngineError(err)
}

// Close cierra el backend.
func (e *Engine) Close() error {
	return e.storage.Close()
}

// ---------- Helpers genéricos ----------

// Insert es TryInsert aceptando cualquier tipo de clave.
func Insert[K Key](ctx context.Context, e *Engine, c Column, key K, value any) error {
	return e.TryInsert(ctx, c, []byte(key), value)
}

// Get devuelve el valor tipado guardado bajo key.
//
//	user, ok, err := cache.Get[User](ctx, engine, sessions, "u1")
func Get[V any, K Key](ctx context.Context, e *Engine, c Column, key K) (V, bool, error) {
	var v V
	ok, err := e.TryGet(ctx, c, []byte(key), &v)
	if err != nil || !ok {
		var zero V
		return zero, false, err
	}
	return v, true, nil
}
