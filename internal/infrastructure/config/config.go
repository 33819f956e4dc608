package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for all environment variable overrides.
const EnvPrefix = "SENTINEL_"

// Supported database drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// minJWTSecretLength is the minimum accepted length for the token signing secret.
const minJWTSecretLength = 32

// Config is the root configuration structure for Sentinel Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database  DatabaseConfig  `yaml:"database" envPrefix:"DATABASE_"`
	API       APIConfig       `yaml:"api" envPrefix:"API_"`
	WebSocket WebSocketConfig `yaml:"websocket" envPrefix:"WS_"`
	MQTT      MQTTConfig      `yaml:"mqtt" envPrefix:"MQTT_"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb" envPrefix:"INFLUXDB_"`
	Logging   LoggingConfig   `yaml:"logging" envPrefix:"LOG_"`
	Security  SecurityConfig  `yaml:"security"`
}

// DatabaseConfig contains relational store settings.
//
// The sqlite3 driver uses Path and the pragmas below; the pgx driver uses DSN.
type DatabaseConfig struct {
	Driver       string `yaml:"driver" env:"DRIVER"`
	Path         string `yaml:"path" env:"PATH"`
	DSN          string `yaml:"dsn" env:"DSN"`
	WALMode      bool   `yaml:"wal_mode" env:"WAL_MODE"`
	BusyTimeout  int    `yaml:"busy_timeout" env:"BUSY_TIMEOUT"`
	MaxOpenConns int    `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host" env:"HOST"`
	Port     int              `yaml:"port" env:"PORT"`
	TLS      TLSConfig        `yaml:"tls" envPrefix:"TLS_"`
	Timeouts APITimeoutConfig `yaml:"timeouts" envPrefix:"TIMEOUT_"`
	CORS     CORSConfig       `yaml:"cors" envPrefix:"CORS_"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled" env:"ENABLED"`
	CertFile string `yaml:"cert_file" env:"CERT_FILE"`
	KeyFile  string `yaml:"key_file" env:"KEY_FILE"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read" env:"READ"`
	Write int `yaml:"write" env:"WRITE"`
	Idle  int `yaml:"idle" env:"IDLE"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS"`
	AllowedMethods []string `yaml:"allowed_methods" env:"ALLOWED_METHODS"`
	AllowedHeaders []string `yaml:"allowed_headers" env:"ALLOWED_HEADERS"`
}

// WebSocketConfig contains settings for the live event feed.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size" env:"MAX_MESSAGE_SIZE"`
	PingInterval   int `yaml:"ping_interval" env:"PING_INTERVAL"`
	PongTimeout    int `yaml:"pong_timeout" env:"PONG_TIMEOUT"`
}

// MQTTConfig contains MQTT broker connection settings.
// When Enabled is false no events are published.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled" env:"ENABLED"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos" env:"QOS"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	TLS      bool   `yaml:"tls" env:"TLS"`
	ClientID string `yaml:"client_id" env:"CLIENT_ID"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username" env:"USERNAME"`
	Password string `yaml:"password" env:"PASSWORD"`
}

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings for access event series.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled" env:"ENABLED"`
	URL           string `yaml:"url" env:"URL"`
	Token         string `yaml:"token" env:"TOKEN"`
	Org           string `yaml:"org" env:"ORG"`
	Bucket        string `yaml:"bucket" env:"BUCKET"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
	Output string `yaml:"output" env:"OUTPUT"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT       JWTConfig       `yaml:"jwt" envPrefix:"JWT_"`
	RateLimit RateLimitConfig `yaml:"rate_limit" envPrefix:"RATE_LIMIT_"`
}

// JWTConfig contains bearer token settings.
type JWTConfig struct {
	Secret   string `yaml:"secret" env:"SECRET"`
	TokenTTL int    `yaml:"token_ttl" env:"TOKEN_TTL"` // minutes
}

// RateLimitConfig limits login attempts per client IP.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" env:"ENABLED"`
	RequestsPerMinute int  `yaml:"requests_per_minute" env:"REQUESTS_PER_MINUTE"`
	Burst             int  `yaml:"burst" env:"BURST"`
}

// Load reads configuration and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values, when path is non-empty
//  3. A .env file in the working directory, if present
//  4. Environment variables (SENTINEL_SECTION_KEY)
//
// For example: SENTINEL_DATABASE_DSN, SENTINEL_API_PORT, SENTINEL_JWT_SECRET.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadDotEnv loads ./.env into the process environment. A missing file is not an error.
// Variables already present in the environment are not overwritten.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return fmt.Errorf("loading .env file: %w", err)
		}
	}
	return nil
}

// applyEnvOverrides applies SENTINEL_* environment variables on top of cfg.
// Unset variables leave the current value untouched.
func applyEnvOverrides(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parsing environment overrides: %w", err)
	}
	return nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:       DriverSQLite,
			Path:         "./data/sentinel.db",
			WALMode:      true,
			BusyTimeout:  5,
			MaxOpenConns: 10,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "sentinel-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				TokenTTL: 60,
			},
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 10,
				Burst:             5,
			},
		},
	}
}

// Validate reports every problem in the configuration at once, joined
// with errors.Join.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	switch db := c.Database; db.Driver {
	case DriverSQLite:
		if db.Path == "" {
			fail("database.path is required for the %s driver", DriverSQLite)
		}
	case DriverPostgres:
		if db.DSN == "" {
			fail("database.dsn is required for the %s driver", DriverPostgres)
		}
	default:
		fail("database.driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, db.Driver)
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		fail("api.port %d out of range 1-65535", c.API.Port)
	}
	if c.MQTT.Enabled && (c.MQTT.QoS < 0 || c.MQTT.QoS > 2) {
		fail("mqtt.qos must be 0, 1 or 2")
	}
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		fail("influxdb.url is required when influxdb is enabled")
	}

	switch jwt := c.Security.JWT; {
	case jwt.Secret == "":
		fail("security.jwt.secret is required (set %sJWT_SECRET)", EnvPrefix)
	case len(jwt.Secret) < minJWTSecretLength:
		fail("security.jwt.secret must be at least %d characters", minJWTSecretLength)
	}
	if c.Security.JWT.TokenTTL <= 0 {
		fail("security.jwt.token_ttl must be a positive number of minutes")
	}
	if rl := c.Security.RateLimit; rl.Enabled && rl.RequestsPerMinute <= 0 {
		fail("security.rate_limit.requests_per_minute must be positive when enabled")
	}

	return errors.Join(errs...)
}

// ReadDuration, WriteDuration and IdleDuration convert the second counts
// for http.Server.
func (t APITimeoutConfig) ReadDuration() time.Duration  { return seconds(t.Read) }
func (t APITimeoutConfig) WriteDuration() time.Duration { return seconds(t.Write) }
func (t APITimeoutConfig) IdleDuration() time.Duration  { return seconds(t.Idle) }

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// GetTokenTTL returns the bearer token lifetime.
func (c *Config) GetTokenTTL() time.Duration {
	return time.Duration(c.Security.JWT.TokenTTL) * time.Minute
}
