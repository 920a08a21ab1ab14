package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/aussiebroadwan/clubauth/internal/clubauth/clubhub"
	"github.com/aussiebroadwan/clubauth/internal/clubauth/clubos"
	"github.com/aussiebroadwan/clubauth/internal/clubauth/domain"
	"github.com/aussiebroadwan/clubauth/internal/clubauth/service"
)

// EnvPrefix namespaces the environment overrides: CLUBAUTH_SESSION_MAX_AGE
// maps to session.max_age.
const EnvPrefix = "CLUBAUTH_"

// ConfigPathEnv names a YAML file to load instead of the default paths.
const ConfigPathEnv = "CLUBAUTH_CONFIG"

// DefaultConfigPaths are tried in order when CLUBAUTH_CONFIG is unset.
var DefaultConfigPaths = []string{
	"clubauth.yaml",
	"clubauth.yml",
	"/etc/clubauth/clubauth.yaml",
}

// sliceKeys arrive from the environment as comma-separated strings.
var sliceKeys = []string{
	"retry.delays",
	"secrets.placeholders",
}

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Log      LogConfig      `koanf:"log"`
	Database DatabaseConfig `koanf:"database"`
	Session  SessionConfig  `koanf:"session"`
	Retry    RetryConfig    `koanf:"retry"`
	Breaker  BreakerConfig  `koanf:"breaker"`
	ClubOS   ClubOSConfig   `koanf:"clubos"`
	ClubHub  ClubHubConfig  `koanf:"clubhub"`
	Secrets  SecretsConfig  `koanf:"secrets"`
}

type ServerConfig struct {
	Port          int           `koanf:"port"`
	ShutdownGrace time.Duration `koanf:"shutdown_grace"`
	// AdminToken guards /v1/*. A random one is generated when empty.
	AdminToken string `koanf:"admin_token"`
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json, text
	Env    string `koanf:"env"`    // dev, staging, prod
}

type DatabaseConfig struct {
	Enabled bool   `koanf:"enabled"`
	File    string `koanf:"file"`
}

type SessionConfig struct {
	MaxAge               time.Duration `koanf:"max_age"`
	MaxIdle              time.Duration `koanf:"max_idle"`
	Cooldown             time.Duration `koanf:"cooldown"`
	InflightWait         time.Duration `koanf:"inflight_wait"`
	HousekeepingInterval time.Duration `koanf:"housekeeping_interval"`
	// AttemptRetention is how long login attempts are kept; zero keeps them forever.
	AttemptRetention time.Duration `koanf:"attempt_retention"`
}

type RetryConfig struct {
	Delays []time.Duration `koanf:"delays"`
}

type BreakerConfig struct {
	// FailureThreshold of zero disables the breaker.
	FailureThreshold uint32        `koanf:"failure_threshold"`
	OpenTimeout      time.Duration `koanf:"open_timeout"`
	HalfOpenRequests uint32        `koanf:"half_open_requests"`
}

type ClubOSConfig struct {
	Enabled         bool          `koanf:"enabled"`
	BaseURL         string        `koanf:"base_url"`
	LoginTimeout    time.Duration `koanf:"login_timeout"`
	ValidateTimeout time.Duration `koanf:"validate_timeout"`
	ClubInfo        bool          `koanf:"club_info"`
	InsecureTLS     bool          `koanf:"insecure_tls"`
}

type ClubHubConfig struct {
	Enabled      bool          `koanf:"enabled"`
	BaseURL      string        `koanf:"base_url"`
	LoginTimeout time.Duration `koanf:"login_timeout"`
	InsecureTLS  bool          `koanf:"insecure_tls"`
}

type SecretsConfig struct {
	Env           bool     `koanf:"env"`
	Store         bool     `koanf:"store"`
	GCPProject    string   `koanf:"gcp_project"`
	MasterKeyPath string   `koanf:"master_key_path"`
	Placeholders  []string `koanf:"placeholders"`
}

func defaultConfig() Config {
	breaker := service.DefaultBreakerConfig()
	return Config{
		Server: ServerConfig{
			Port:          8080,
			ShutdownGrace: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Env:    "dev",
		},
		Database: DatabaseConfig{
			Enabled: true,
			File:    "clubauth.db",
		},
		Session: SessionConfig{
			MaxAge:               domain.DefaultMaxAge,
			MaxIdle:              domain.DefaultMaxIdle,
			Cooldown:             service.DefaultCooldown,
			InflightWait:         service.DefaultInflightWait,
			HousekeepingInterval: time.Minute,
			AttemptRetention:     30 * 24 * time.Hour,
		},
		Retry: RetryConfig{
			Delays: []time.Duration{0, 1500 * time.Millisecond, 3 * time.Second},
		},
		Breaker: BreakerConfig{
			FailureThreshold: breaker.FailureThreshold,
			OpenTimeout:      breaker.OpenTimeout,
			HalfOpenRequests: breaker.HalfOpenRequests,
		},
		ClubOS: ClubOSConfig{
			Enabled:         true,
			BaseURL:         clubos.DefaultBaseURL,
			LoginTimeout:    30 * time.Second,
			ValidateTimeout: 10 * time.Second,
			ClubInfo:        true,
		},
		ClubHub: ClubHubConfig{
			Enabled:      true,
			BaseURL:      clubhub.DefaultBaseURL,
			LoginTimeout: 30 * time.Second,
		},
		Secrets: SecretsConfig{
			Env:          true,
			Store:        true,
			Placeholders: append([]string(nil), service.DefaultPlaceholders...),
		},
	}
}

// LoadConfig layers struct defaults, an optional YAML file and CLUBAUTH_*
// environment variables, in that order of precedence.
func LoadConfig() (Config, error) {
	return loadConfig(findConfigFile(os.Getenv(ConfigPathEnv)), EnvPrefix)
}

func loadConfig(path, prefix string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(prefix, ".", envKey(prefix)), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := splitSlices(k); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// envKey maps CLUBAUTH_SECTION_SOME_KEY to section.some_key. Section names
// never contain underscores, so only the first one is a separator.
func envKey(prefix string) func(string) string {
	return func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, prefix))
		return strings.Replace(s, "_", ".", 1)
	}
}

func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func splitSlices(k *koanf.Koanf) error {
	for _, key := range sliceKeys {
		raw, ok := k.Get(key).(string)
		if !ok {
			continue
		}
		var parts []string
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(key, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}
	return nil
}

// Validate rejects configurations the service cannot start with.
func (c Config) Validate() error {
	var errs []error

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Database.Enabled && c.Database.File == "" {
		errs = append(errs, errors.New("database.file is required when the database is enabled"))
	}
	if c.Secrets.Store && !c.Database.Enabled {
		errs = append(errs, errors.New("secrets.store requires the database"))
	}
	if !c.ClubOS.Enabled && !c.ClubHub.Enabled {
		errs = append(errs, errors.New("at least one of clubos or clubhub must be enabled"))
	}
	if c.Session.MaxIdle > c.Session.MaxAge {
		errs = append(errs, errors.New("session.max_idle must not exceed session.max_age"))
	}
	if c.Breaker.FailureThreshold > 0 && c.Breaker.OpenTimeout <= 0 {
		errs = append(errs, errors.New("breaker.open_timeout must be positive"))
	}
	for _, d := range c.Retry.Delays {
		if d < 0 {
			errs = append(errs, errors.New("retry.delays must not be negative"))
			break
		}
	}
	if !c.Secrets.Env && !c.Secrets.Store && c.Secrets.GCPProject == "" {
		errs = append(errs, errors.New("no credential source enabled"))
	}

	return errors.Join(errs...)
}
