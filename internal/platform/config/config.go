// Package config loads service configuration from an optional YAML file
// overlaid with TRUSTLINE_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	platformstrings "trustline/pkg/platform/strings"
)

// EnvPrefix namespaces environment overrides. Nested keys are separated by
// a double underscore: TRUSTLINE_HTTP__ADDR sets http.addr.
const EnvPrefix = "TRUSTLINE_"

// DevSigningKey is only accepted outside production.
const DevSigningKey = "dev-secret-key-change-in-production"

type Config struct {
	Env          string       `koanf:"env" validate:"oneof=dev test production"`
	Log          Log          `koanf:"log"`
	HTTP         HTTP         `koanf:"http"`
	Auth         Auth         `koanf:"auth"`
	Verification Verification `koanf:"verification"`
	Redis        RedisConfig  `koanf:"redis"`
	Postgres     Postgres     `koanf:"postgres"`
	Kafka        Kafka        `koanf:"kafka"`
	Geocoder     Geocoder     `koanf:"geocoder"`
	RateLimit    RateLimit    `koanf:"rate_limit"`
}

type Log struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json text"`
}

type HTTP struct {
	Addr              string        `koanf:"addr" validate:"required"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
}

type Auth struct {
	JWTSigningKey string        `koanf:"jwt_signing_key" validate:"required,min=16"`
	Issuer        string        `koanf:"issuer" validate:"required"`
	Audience      string        `koanf:"audience" validate:"required"`
	TokenTTL      time.Duration `koanf:"token_ttl" validate:"gt=0"`
	AdminToken    string        `koanf:"admin_token"`
}

type Verification struct {
	DefaultProfile    string        `koanf:"default_profile" validate:"oneof=full basic"`
	SessionTTL        time.Duration `koanf:"session_ttl" validate:"gt=0"`
	MaxPhotoBytes     int64         `koanf:"max_photo_bytes" validate:"gt=0"`
	ValidationTimeout time.Duration `koanf:"validation_timeout" validate:"gt=0"`
	SimulateLatency   bool          `koanf:"simulate_latency"`
	Seed              uint64        `koanf:"seed"`
}

// RedisConfig enables the shared session store, score ledger and rate limit
// buckets when URL is set.
type RedisConfig struct {
	URL          string        `koanf:"url"`
	PoolSize     int           `koanf:"pool_size"`
	MinIdleConns int           `koanf:"min_idle_conns"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	SessionTTL   time.Duration `koanf:"-"`
}

// Postgres enables durable decisions and audit events when DSN is set.
type Postgres struct {
	DSN             string        `koanf:"dsn"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	Migrate         bool          `koanf:"migrate"`
}

// Kafka enables publication of trust-point grants when Brokers is set.
type Kafka struct {
	Brokers           []string `koanf:"brokers"`
	Topic             string   `koanf:"topic" validate:"required_with=Brokers"`
	Partitions        int32    `koanf:"partitions"`
	ReplicationFactor int16    `koanf:"replication_factor"`
	EnsureTopic       bool     `koanf:"ensure_topic"`
}

type Geocoder struct {
	Enabled          bool          `koanf:"enabled"`
	BaseURL          string        `koanf:"base_url" validate:"omitempty,url"`
	UserAgent        string        `koanf:"user_agent"`
	Timeout          time.Duration `koanf:"timeout"`
	FailureThreshold int           `koanf:"failure_threshold"`
	Cooldown         time.Duration `koanf:"cooldown"`
}

type RateLimit struct {
	Disabled bool                 `koanf:"disabled"`
	Limits   map[string]LimitSpec `koanf:"limits"`
}

type LimitSpec struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
}

// Default returns the development configuration.
func Default() Config {
	return Config{
		Env: "dev",
		Log: Log{Level: "info", Format: "json"},
		HTTP: HTTP{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       2 * time.Minute,
			ShutdownTimeout:   15 * time.Second,
		},
		Auth: Auth{
			JWTSigningKey: DevSigningKey,
			Issuer:        "trustline",
			Audience:      "trustline-api",
			TokenTTL:      time.Hour,
		},
		Verification: Verification{
			DefaultProfile:    "full",
			SessionTTL:        30 * time.Minute,
			MaxPhotoBytes:     10 << 20,
			ValidationTimeout: 20 * time.Second,
			SimulateLatency:   true,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Postgres: Postgres{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			Migrate:         true,
		},
		Kafka: Kafka{
			Topic:             "trustline.trust-points",
			Partitions:        3,
			ReplicationFactor: 1,
			EnsureTopic:       true,
		},
		Geocoder: Geocoder{
			Enabled:          true,
			BaseURL:          "https://nominatim.openstreetmap.org",
			UserAgent:        "KYC-Verification-App",
			Timeout:          5 * time.Second,
			FailureThreshold: 5,
			Cooldown:         30 * time.Second,
		},
	}
}

// Load reads path (when non-empty and present) and then the environment.
// A missing file is not an error so the service can run on env alone.
func Load(path string) (*Config, error) {
	return load(path, os.Environ)
}

func load(path string, environ func() []string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envKey,
		EnvironFunc:   environ,
	}), nil); err != nil {
		return nil, fmt.Errorf("load env config: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Redis.SessionTTL = cfg.Verification.SessionTTL
	cfg.Kafka.Brokers = platformstrings.DedupeAndTrim(cfg.Kafka.Brokers)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps TRUSTLINE_AUTH__JWT_SIGNING_KEY to auth.jwt_signing_key.
func envKey(k, v string) (string, any) {
	k = strings.ToLower(strings.TrimPrefix(k, EnvPrefix))
	return strings.ReplaceAll(k, "__", "."), v
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and refuses the development signing key
// in production.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Env == "production" && c.Auth.JWTSigningKey == DevSigningKey {
		return errors.New("invalid config: auth.jwt_signing_key must be set in production")
	}
	return nil
}
