package cache

import (
	"github.com/benbjohnson/clock"
	"github.com/vmihailenco/msgpack/v5"
)

// Record es lo que persisten los backends sin expiración nativa:
// el instante de inserción (segundos desde epoch) y el payload.
type Record struct {
	_msgpack struct{} `msgpack:",as_array"`

	Time uint64
	Data []byte
}

// EncodeRecord serializa el registro como array msgpack [uint64, bin].
func EncodeRecord(r Record) ([]byte, error) {
	return msgpack.Marshal(&r)
}

// DecodeRecord es la inversa de EncodeRecord.
func DecodeRecord(b []byte) (Record, error) {
	var r Record
	if err := msgpack.Unmarshal(b, &r); err != nil {
		return Record{}, err
	}
	return r, nil
}

// Expired indica si una entrada insertada en insertedAt ha superado su ttl en now.
// La expiración es estricta: con elapsed == ttl la entrada sigue viva.
// Un insertedAt en el futuro (reloj desajustado) cuenta como elapsed 0.
func Expired(insertedAt, now, ttl uint64) bool {
	if now <= insertedAt {
		return false
	}
	return now-insertedAt > ttl
}

// Now devuelve los segundos desde epoch según clk.
func Now(clk clock.Clock) uint64 {
	sec := clk.Now().Unix()
	if sec < 0 {
		return 0
	}
	return uint64(sec)
}
