package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del bot.
type Config struct {
	Poller  PollerConfig  `yaml:"poller"`
	API     APIConfig     `yaml:"api"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// PollerConfig controla qué producto se observa y cada cuánto.
type PollerConfig struct {
	Product         string `yaml:"product"`
	IntervalSeconds int    `yaml:"interval_seconds"`
}

// APIConfig contiene el endpoint del feed y su hardening.
type APIConfig struct {
	BazaarURL       string  `yaml:"bazaar_url"`
	TimeoutSeconds  int     `yaml:"timeout_seconds"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"` // 0 desactiva la caché
	RatePerSec      float64 `yaml:"rate_per_sec"`
}

// LedgerConfig controla el saldo virtual.
type LedgerConfig struct {
	InitialBalance float64 `yaml:"initial_balance"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// MetricsConfig controla el listener de Prometheus. Vacío = apagado.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
// Un path vacío usa solo defaults y entorno.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// PollInterval devuelve el intervalo de polling como time.Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poller.IntervalSeconds) * time.Second
}

// FetchTimeout acota cada descarga del feed.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// CacheTTL devuelve cuánto se reutiliza un feed descargado.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.API.CacheTTLSeconds) * time.Second
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("BAZAAR_PRODUCT"); v != "" {
		cfg.Poller.Product = v
	}
	if v := os.Getenv("BAZAAR_DB"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Poller.IntervalSeconds <= 0 {
		cfg.Poller.IntervalSeconds = 5
	}
	if cfg.API.BazaarURL == "" {
		cfg.API.BazaarURL = "https://api.hypixel.net/skyblock/bazaar"
	}
	if cfg.API.TimeoutSeconds <= 0 {
		cfg.API.TimeoutSeconds = 10
	}
	if cfg.API.CacheTTLSeconds < 0 {
		cfg.API.CacheTTLSeconds = 0
	}
	if cfg.API.RatePerSec <= 0 {
		cfg.API.RatePerSec = 1
	}
	if cfg.Ledger.InitialBalance <= 0 {
		cfg.Ledger.InitialBalance = 10000
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "bazaarbot.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
