package app

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/analyticket/analyticket/internal/models"
)

// Settings represents configuration loaded from config.yaml.
// Field names match snake_case YAML keys.
type Settings struct {
	DBPath             string        `yaml:"db_path"`
	RedisURL           string        `yaml:"redis_url"`
	DatabaseURL        string        `yaml:"database_url"`
	RealtimeTransport  string        `yaml:"realtime_transport"`
	CacheTTL           time.Duration `yaml:"cache_ttl"`
	MemoryCacheEntries int           `yaml:"memory_cache_entries"`
	Retry              RetrySettings `yaml:"retry"`
}

// RetrySettings mirrors models.RetryPolicy; zero fields fall back to defaults.
type RetrySettings struct {
	MaxRetries *int           `yaml:"max_retries"`
	BaseDelay  time.Duration  `yaml:"base_delay"`
	Multiplier float64        `yaml:"multiplier"`
	Cooldown   *time.Duration `yaml:"cooldown"`
	MaxDelay   time.Duration  `yaml:"max_delay"`
}

// ClientSettings are the effective runtime values for the client core.
type ClientSettings struct {
	RedisURL           string             `json:"redis_url"`
	DatabaseURL        string             `json:"database_url"`
	RealtimeTransport  string             `json:"realtime_transport"`
	CacheTTL           time.Duration      `json:"cache_ttl"`
	MemoryCacheEntries int                `json:"memory_cache_entries"`
	Retry              models.RetryPolicy `json:"retry"`
}

// Realtime transport names.
const (
	TransportRedis    = "redis"
	TransportPostgres = "postgres"
)

const (
	defaultRedisURL           = "redis://localhost:6379/0"
	defaultMemoryCacheEntries = 256
	maxMemoryCacheEntries     = 100000
	maxCacheTTL               = 7 * 24 * time.Hour
	maxRetries                = 10
)

// EffectiveClientSettings returns validated settings with defaults applied.
// Invalid or missing values fall back to safe defaults; environment
// variables override the config file.
func EffectiveClientSettings() ClientSettings {
	cfg := ClientSettings{
		RedisURL:           defaultRedisURL,
		RealtimeTransport:  TransportRedis,
		CacheTTL:           models.DefaultCacheTTL,
		MemoryCacheEntries: defaultMemoryCacheEntries,
		Retry:              models.DefaultRetryPolicy(),
	}

	if s, err := LoadSettings(); err == nil {
		applySettings(&cfg, s)
	}

	if v := os.Getenv("ANALYTICKET_REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv("ANALYTICKET_DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("ANALYTICKET_REALTIME_TRANSPORT"); v != "" {
		cfg.RealtimeTransport = v
	}
	if cfg.RealtimeTransport != TransportPostgres {
		cfg.RealtimeTransport = TransportRedis
	}
	return cfg
}

func applySettings(cfg *ClientSettings, s Settings) {
	if s.RedisURL != "" {
		cfg.RedisURL = s.RedisURL
	}
	if s.DatabaseURL != "" {
		cfg.DatabaseURL = s.DatabaseURL
	}
	if s.RealtimeTransport != "" {
		cfg.RealtimeTransport = s.RealtimeTransport
	}
	if s.CacheTTL > 0 {
		cfg.CacheTTL = min(s.CacheTTL, maxCacheTTL)
	}
	if s.MemoryCacheEntries > 0 {
		cfg.MemoryCacheEntries = min(s.MemoryCacheEntries, maxMemoryCacheEntries)
	}

	r := cfg.Retry
	if s.Retry.MaxRetries != nil && *s.Retry.MaxRetries >= 0 {
		r.MaxRetries = min(*s.Retry.MaxRetries, maxRetries)
	}
	if s.Retry.BaseDelay > 0 {
		r.BaseDelay = s.Retry.BaseDelay
	}
	if s.Retry.Multiplier >= 1 {
		r.Multiplier = s.Retry.Multiplier
	}
	if s.Retry.Cooldown != nil && *s.Retry.Cooldown >= 0 {
		r.Cooldown = *s.Retry.Cooldown
	}
	if s.Retry.MaxDelay > 0 {
		r.MaxDelay = s.Retry.MaxDelay
	}
	if r.Validate() == nil {
		cfg.Retry = r
	}
}

// settingsOnce, settings, settingsErr implement the lazy-load singleton for
// config.yaml; dbPathOverride carries the CLI --db-path flag.
//
//nolint:gochecknoglobals // sync.Once singleton + RWMutex override are intentional process-wide state
var (
	settingsOnce sync.Once
	settings     Settings
	settingsErr  error

	dbPathOverrideMu sync.RWMutex
	dbPathOverride   string
)

// SetDBPathOverride sets a process-wide database path override.
// Intended for CLI flag support (e.g. --db-path).
func SetDBPathOverride(path string) {
	dbPathOverrideMu.Lock()
	dbPathOverride = path
	dbPathOverrideMu.Unlock()
}

func getDBPathOverride() string {
	dbPathOverrideMu.RLock()
	v := dbPathOverride
	dbPathOverrideMu.RUnlock()
	return v
}

// configPaths lists config files in lookup order (first found wins).
func configPaths() ([]string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	return []string{
		filepath.Join(dir, "config.yaml"),
		filepath.Join(string(os.PathSeparator), "etc", "analyticket", "config.yaml"),
		"config.yaml",
	}, nil
}

// LoadSettings loads configuration once using the documented lookup order:
// ~/.config/analyticket/config.yaml, /etc/analyticket/config.yaml, ./config.yaml.
func LoadSettings() (Settings, error) {
	settingsOnce.Do(func() {
		settings = Settings{}

		paths, err := configPaths()
		if err != nil {
			settingsErr = err
			return
		}
		for _, p := range paths {
			s, err := loadSettingsFile(p)
			if err == nil {
				settings = s
				return
			}
			if !errors.Is(err, os.ErrNotExist) {
				settingsErr = err
				return
			}
		}
	})

	return settings, settingsErr
}

func loadSettingsFile(path string) (Settings, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}

	var s Settings
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}
