package cache

import (
	"errors"
	"fmt"
)

// Kind clasifica los fallos que puede devolver cualquier operación de la caché.
type Kind uint8

const (
	KindPut    Kind = iota + 1 // fallo al escribir una entrada
	KindGet                    // fallo al leer una entrada
	KindEncode                 // el valor no se pudo serializar
	KindDecode                 // los bytes guardados no se pudieron deserializar
	KindEngine                 // fallo de infraestructura (conexión, pool, apertura de columna...)
)

func (k Kind) String() string {
	switch k {
	case KindPut:
		return "put"
	case KindGet:
		return "get"
	case KindEncode:
		return "encode"
	case KindDecode:
		return "decode"
	case KindEngine:
		return "engine"
	default:
		return "unknown"
	}
}

// Error es el único tipo de error que sale de la caché.
// Solo lleva un texto de contexto: no hay cadena de causas tipadas.
type Error struct {
	Kind    Kind
	Context string
}

// ---------- Errores centinela ----------
// Sirven para comparar por tipo con errors.Is(err, cache.ErrDecode).
var (
	ErrPut    = &Error{Kind: KindPut}
	ErrGet    = &Error{Kind: KindGet}
	ErrEncode = &Error{Kind: KindEncode}
	ErrDecode = &Error{Kind: KindDecode}
	ErrEngine = &Error{Kind: KindEngine}
)

func (e *Error) Error() string {
	switch e.Kind {
	case KindPut:
		return fmt.Sprintf("Failed to insert value into cache: %s", e.Context)
	case KindGet:
		return fmt.Sprintf("Failed to get value from cache: %s", e.Context)
	case KindEncode:
		return fmt.Sprintf("Failed to encode value for cache: %s", e.Context)
	case KindDecode:
		return fmt.Sprintf("Failed to decode value for cache: %s", e.Context)
	default:
		return fmt.Sprintf("Engine failed: %s", e.Context)
	}
}

// Is compara solo el Kind, el contexto no importa.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newError(kind Kind, err error) *Error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &Error{Kind: kind, Context: msg}
}

// ---------- Constructores ----------

func PutError(err error) error    { return newError(KindPut, err) }
func GetError(err error) error    { return newError(KindGet, err) }
func EncodeError(err error) error { return newError(KindEncode, err) }
func DecodeError(err error) error { return newError(KindDecode, err) }
func EngineError(err error) error { return newError(KindEngine, err) }

// Errorf construye un *Error con un contexto formateado.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Context: fmt.Sprintf(format, args...)}
}

// KindOf devuelve el Kind de err, o 0 si err no viene de la caché.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
}

// ensureKind deja pasar los *Error tal cual y envuelve el resto con el Kind indicado.
// Lo usa el Engine para no filtrar errores crudos de implementaciones de terceros.
func ensureKind(err error, kind Kind) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	return newError(kind, err)
}
