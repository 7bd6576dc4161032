package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec es la frontera de serialización genérica entre los valores del llamador y los bytes
// que ve el Storage. Debe ser determinista y simétrica.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Msgpack es el codec por defecto. Ordena las claves de los mapas.
// Al decodificar vuelve a codificar el resultado y exige el mismo contenido que los bytes
// guardados: un número que no cabe en el tipo pedido o un campo que falta en los datos es un error.
var Msgpack Codec = msgpackCodec{}

// JSON es una alternativa legible con las mismas reglas estrictas.
var JSON Codec = jsonCodec{}

type msgpackCodec struct{}

func (msgpackCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c msgpackCodec) Unmarshal(data []byte, v any) error {
	r := bytes.NewReader(data)
	dec := msgpack.NewDecoder(r)
	dec.DisallowUnknownFields(true)
	if err := dec.Decode(v); err != nil {
		return err
	}
	if r.Len() > 0 {
		return fmt.Errorf("msgpack: %d trailing bytes after value", r.Len())
	}
	return checkRoundTrip(c, data, v, msgpackTree)
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (c jsonCodec) Unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("json: trailing data after value")
	}
	return checkRoundTrip(c, data, v, jsonTree)
}

// checkRoundTrip vuelve a codificar v y compara con data.
// Si los bytes difieren se comparan los árboles genéricos, así que un int guardado y leído
// como uint8 con el mismo valor sigue siendo válido.
func checkRoundTrip(c Codec, data []byte, v any, tree func([]byte) (any, error)) error {
	again, err := c.Marshal(v)
	if err != nil {
		return fmt.Errorf("re-encode decoded %T: %w", v, err)
	}
	if bytes.Equal(again, data) {
		return nil
	}

	want, err := tree(data)
	if err != nil {
		return err
	}
	got, err := tree(again)
	if err != nil {
		return err
	}
	if !reflect.DeepEqual(want, got) {
		return fmt.Errorf("stored value does not fit %T", v)
	}
	return nil
}

func msgpackTree(data []byte) (out any, err error) {
	// DecodeUntypedMap hace panic con claves que no se pueden usar en un map de Go
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("msgpack: %v", r)
		}
	}()

	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetMapDecoder(func(d *msgpack.Decoder) (interface{}, error) {
		return d.DecodeUntypedMap()
	})
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return normalize(v), nil
}

func jsonTree(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return normalize(v), nil
}

// number representa un entero sin importar el ancho con el que se codificó.
type number struct {
	neg bool
	mag uint64
}

func signed(n int64) number {
	if n < 0 {
		return number{neg: true, mag: uint64(-(n + 1)) + 1}
	}
	return number{mag: uint64(n)}
}

func normalize(v any) any {
	switch x := v.(type) {
	case int8:
		return signed(int64(x))
	case int16:
		return signed(int64(x))
	case int32:
		return signed(int64(x))
	case int64:
		return signed(x)
	case int:
		return signed(int64(x))
	case uint8:
		return number{mag: uint64(x)}
	case uint16:
		return number{mag: uint64(x)}
	case uint32:
		return number{mag: uint64(x)}
	case uint64:
		return number{mag: x}
	case uint:
		return number{mag: uint64(x)}
	case float32:
		return float64(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	case map[any]any:
		out := make(map[any]any, len(x))
		for k, e := range x {
			out[normalize(k)] = normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[any]any, len(x))
		for k, e := range x {
			out[k] = normalize(e)
		}
		return out
	default:
		return v
	}
}
