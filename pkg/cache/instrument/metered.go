package instrument

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/VictoriaMetrics/metrics"

	"github.com/davicafu/omegacache/pkg/cache"
)

type metered struct {
	next cache.Storage
	set  *metrics.Set
}

var _ cache.Storage = (*metered)(nil)

// Metered cuenta operaciones y mide su duración por columna en set.
// Con set == nil se usa un Set nuevo que el llamador no podrá exponer; pásalo siempre en producción.
func Metered(next cache.Storage, set *metrics.Set) cache.Storage {
	if set == nil {
		set = metrics.NewSet()
	}
	return &metered{next: next, set: set}
}

// labelValue deja solo caracteres seguros dentro de las comillas de una etiqueta.
func labelValue(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '_', r == '-', r == '.', r == ':':
			return r
		default:
			return '_'
		}
	}, s)
}

func (m *metered) observe(op string, c cache.Column, start time.Time) {
	m.set.GetOrCreateHistogram(
		fmt.Sprintf(`omegacache_operation_duration_seconds{op=%q,column=%q}`, op, labelValue(c.Name())),
	).UpdateDuration(start)
}

func (m *metered) count(name string, c cache.Column, result string) {
	m.set.GetOrCreateCounter(
		fmt.Sprintf(`%s{column=%q,result=%q}`, name, labelValue(c.Name()), result),
	).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *metered) TryInsert(ctx context.Context, c cache.Column, key, value []byte) error {
	start := time.Now()
	err := m.next.TryInsert(ctx, c, key, value)
	m.observe("insert", c, start)
	m.count("omegacache_inserts_total", c, result(err))
	return err
}

func (m *metered) TryGet(ctx context.Context, c cache.Column, key []byte) ([]byte, bool, error) {
	start := time.Now()
	v, ok, err := m.next.TryGet(ctx, c, key)
	m.observe("get", c, start)

	res := "miss"
	switch {
	case err != nil:
		res = "error"
	case ok:
		res = "hit"
	}
	m.count("omegacache_gets_total", c, res)
	return v, ok, err
}

func (m *metered) TryDropColumn(ctx context.Context, c cache.Column) error {
	start := time.Now()
	err := m.next.TryDropColumn(ctx, c)
	m.observe("drop", c, start)
	m.count("omegacache_drops_total", c, result(err))
	return err
}

func (m *metered) Close() error {
	return m.next.Close()
}
