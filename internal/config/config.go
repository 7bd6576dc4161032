package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/davicafu/omegacache/pkg/cache"
)

type Config struct {
	Backend      string
	Location     string
	Capacity     uint64
	Codec        string
	Columns      []cache.Def
	UseKafka     bool
	KafkaBrokers []string
	KafkaTopic   string
	HTTPPort     string
	LogLevel     string
	LogFile      string
}

// columnsFile es el formato del YAML de CACHE_COLUMNS_FILE.
type columnsFile struct {
	Columns []cache.Def `yaml:"columns"`
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// LoadConfig lee la configuración de las variables de entorno.
// Las columnas de CACHE_COLUMNS se añaden a las del fichero y lo pisan si repiten nombre.
func LoadConfig() (*Config, error) {
	capacity, err := ParseSize(getEnv("CACHE_CAPACITY", "0"))
	if err != nil {
		return nil, fmt.Errorf("CACHE_CAPACITY: %w", err)
	}

	var columns []cache.Def
	if path := os.Getenv("CACHE_COLUMNS_FILE"); path != "" {
		columns, err = LoadColumnsFile(path)
		if err != nil {
			return nil, err
		}
	}
	envColumns, err := ParseColumns(os.Getenv("CACHE_COLUMNS"))
	if err != nil {
		return nil, fmt.Errorf("CACHE_COLUMNS: %w", err)
	}
	columns = MergeColumns(columns, envColumns)

	brokers := getEnv("KAFKA_BROKERS", "")
	var kafkaBrokers []string
	if brokers != "" {
		kafkaBrokers = strings.Split(brokers, ",")
	}

	return &Config{
		Backend:      strings.ToLower(getEnv("CACHE_BACKEND", "memory")),
		Location:     getEnv("CACHE_LOCATION", ""),
		Capacity:     capacity,
		Codec:        strings.ToLower(getEnv("CACHE_CODEC", "msgpack")),
		Columns:      columns,
		UseKafka:     len(kafkaBrokers) > 0,
		KafkaBrokers: kafkaBrokers,
		KafkaTopic:   getEnv("KAFKA_TOPIC", "omegacache-invalidation"),
		HTTPPort:     getEnv("HTTP_PORT", "8080"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFile:      getEnv("LOG_FILE", ""),
	}, nil
}

// Column busca una columna configurada por nombre.
func (c *Config) Column(name string) (cache.Def, bool) {
	for _, col := range c.Columns {
		if col.ColumnName == name {
			return col, true
		}
	}
	return cache.Def{}, false
}

// All devuelve una copia de las columnas configuradas.
func (c *Config) All() []cache.Def {
	return append([]cache.Def{}, c.Columns...)
}

// ParseColumns interpreta "sessions=3600,pages=60".
func ParseColumns(s string) ([]cache.Def, error) {
	var out []cache.Def
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, ttlStr, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("column %q: expected name=ttl_seconds", part)
		}
		ttl, err := strconv.Atoi(strings.TrimSpace(ttlStr))
		if err != nil {
			return nil, fmt.Errorf("column %q: invalid ttl: %w", part, err)
		}
		def := cache.Def{ColumnName: strings.TrimSpace(name), TTL: ttl}
		if err := validateColumn(def); err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, nil
}

// LoadColumnsFile lee las columnas de un fichero YAML.
func LoadColumnsFile(path string) ([]cache.Def, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns file %s: %w", path, err)
	}

	var f columnsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse columns file %s: %w", path, err)
	}
	for _, def := range f.Columns {
		if err := validateColumn(def); err != nil {
			return nil, fmt.Errorf("columns file %s: %w", path, err)
		}
	}
	return f.Columns, nil
}

func validateColumn(def cache.Def) error {
	if def.ColumnName == "" {
		return fmt.Errorf("column name is empty")
	}
	if def.TTL < 0 {
		return fmt.Errorf("column %q has negative ttl %d", def.ColumnName, def.TTL)
	}
	return nil
}

// MergeColumns une dos listas de columnas; las de override sustituyen a las de base con el mismo nombre.
func MergeColumns(base, override []cache.Def) []cache.Def {
	out := make([]cache.Def, 0, len(base)+len(override))
	index := make(map[string]int)
	for _, list := range [][]cache.Def{base, override} {
		for _, def := range list {
			if i, ok := index[def.ColumnName]; ok {
				out[i] = def
				continue
			}
			index[def.ColumnName] = len(out)
			out = append(out, def)
		}
	}
	return out
}

// ParseSize acepta bytes ("1048576") o sufijos binarios ("64KiB", "512MiB", "1GiB").
func ParseSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	mult := uint64(1)
	for _, u := range []struct {
		suffix string
		mult   uint64
	}{
		{"KiB", 1 << 10},
		{"MiB", 1 << 20},
		{"GiB", 1 << 30},
	} {
		if strings.HasSuffix(s, u.suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			mult = u.mult
			break
		}
	}

	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if n > 0 && n*mult/mult != n {
		return 0, fmt.Errorf("size %q overflows", s)
	}
	return n * mult, nil
}
