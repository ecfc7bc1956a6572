package appconf

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"busstatus.transit.org/internal/gtfs"
)

// Config holds all the configuration settings for the server. Values are
// layered: defaults, then the YAML file, then environment variables (a .env
// file is read if present), then command-line flags applied by the caller.
type Config struct {
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	Env             string        `yaml:"env" validate:"oneof=development test production"`
	ApiKeys         []string      `yaml:"api_keys"`
	RateLimit       int           `yaml:"rate_limit" validate:"gte=0"`
	LogLevel        string        `yaml:"log_level" validate:"oneof=debug info warn warning error"`
	LogFormat       string        `yaml:"log_format" validate:"oneof=json text"`
	AllowedOrigins  []string      `yaml:"cors_origins"`
	TrustedProxies  []string      `yaml:"trusted_proxies" validate:"dive,ip|cidr"`
	MetricsEnabled  bool          `yaml:"metrics_enabled"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
	GTFS            gtfs.Config   `yaml:"gtfs"`
}

func Default() Config {
	return Config{
		Port:            4000,
		Env:             Development.String(),
		RateLimit:       100,
		LogLevel:        "info",
		LogFormat:       "json",
		AllowedOrigins:  []string{"*"},
		MetricsEnabled:  true,
		ShutdownTimeout: 10 * time.Second,
		GTFS:            gtfs.DefaultConfig(),
	}
}

// Environment is the parsed form of Env.
func (c Config) Environment() Environment {
	return EnvFlagToEnvironment(c.Env)
}

// Load builds a Config from defaults, the optional YAML file at path and the
// process environment. It does not validate.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var errs []error

	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	setList := func(key string, dst *[]string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = splitList(v)
		}
	}
	setInt := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %q", key, v))
				return
			}
			*dst = n
		}
	}
	setUint := func(key string, dst *uint64) {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %q", key, v))
				return
			}
			*dst = n
		}
	}
	setBool := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %q", key, v))
				return
			}
			*dst = b
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %q", key, v))
				return
			}
			*dst = d
		}
	}

	setInt("PORT", &cfg.Port)
	setString("APP_ENV", &cfg.Env)
	setList("API_KEYS", &cfg.ApiKeys)
	setInt("RATE_LIMIT", &cfg.RateLimit)
	setString("LOG_LEVEL", &cfg.LogLevel)
	setString("LOG_FORMAT", &cfg.LogFormat)
	setList("CORS_ORIGINS", &cfg.AllowedOrigins)
	setList("TRUSTED_PROXIES", &cfg.TrustedProxies)
	setBool("METRICS_ENABLED", &cfg.MetricsEnabled)
	setDuration("SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)

	setString("GTFS_STATIC", &cfg.GTFS.StaticSource)
	setString("GTFS_RT_TRIP_UPDATES_URL", &cfg.GTFS.TripUpdatesURL)
	format := string(cfg.GTFS.TripUpdatesFormat)
	setString("GTFS_RT_FORMAT", &format)
	cfg.GTFS.TripUpdatesFormat = gtfs.FeedFormat(strings.ToLower(format))
	setString("GTFS_RT_AUTH_HEADER_KEY", &cfg.GTFS.RealTimeAuthHeaderKey)
	setString("GTFS_RT_AUTH_HEADER_VALUE", &cfg.GTFS.RealTimeAuthHeaderValue)
	setString("SERVICE_TIMEZONE", &cfg.GTFS.Timezone)
	setDuration("GTFS_RT_TIMEOUT", &cfg.GTFS.RealTimeTimeout)
	setDuration("GTFS_STATIC_REFRESH", &cfg.GTFS.StaticRefreshInterval)
	setUint("GTFS_STATIC_RETRIES", &cfg.GTFS.StaticDownloadRetries)

	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var validate = validator.New()

// Validate checks field constraints, including the GTFS section, and that the
// time zone, if set, can be loaded.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.GTFS.Timezone != "" {
		if _, err := time.LoadLocation(c.GTFS.Timezone); err != nil {
			return fmt.Errorf("invalid configuration: timezone %q: %w", c.GTFS.Timezone, err)
		}
	}
	return nil
}
