package cache

import "fmt"

// Column describe una partición lógica de la caché y su política de TTL.
// La implementan los tipos del llamador; la caché nunca crea columnas.
type Column interface {
	// Name se usa literalmente como espacio de nombres (bucket, tabla o prefijo de clave).
	Name() string

	// TTLSeconds es el tiempo de vida de las entradas en segundos. Debe ser >= 0.
	TTLSeconds() int
}

// Def es una columna definida por valor, útil para columnas que vienen de configuración.
type Def struct {
	ColumnName string `yaml:"name" json:"name"`
	TTL        int    `yaml:"ttl_seconds" json:"ttl_seconds"`
}

var _ Column = Def{}

func (d Def) Name() string    { return d.ColumnName }
func (d Def) TTLSeconds() int { return d.TTL }

// TTL convierte el TTL de la columna a segundos sin signo.
// Un TTL negativo es un error del llamador y nunca se convierte en un TTL infinito o cero.
func TTL(c Column) (uint64, error) {
	ttl := c.TTLSeconds()
	if ttl < 0 {
		return 0, fmt.Errorf("column %q has negative ttl %d", c.Name(), ttl)
	}
	return uint64(ttl), nil
}
