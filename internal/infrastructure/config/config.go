package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full application configuration tree.
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Receipt   ReceiptConfig
	Telemetry TelemetryConfig
}

// AppConfig identifies the running service.
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// LogConfig selects log level (debug/info/warn/error), format
// (json/console) and output (stdout/stderr).
type LogConfig struct {
	Level  string
	Format string
	Output string
}

// DatabaseConfig carries Postgres connection and pool settings.
// Lifetimes are in minutes.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int `mapstructure:"max_open_conns"`
	MaxIdleConns    int `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime int `mapstructure:"conn_max_idle_time"`
}

// RedisConfig carries connection settings for the idempotency and
// receipt counter store.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds settings for validating tokens issued by the school's
// identity provider. This service never issues tokens itself.
type JWTConfig struct {
	Secret string
	Issuer string
}

// HTTPConfig tunes the server, rate limiting and CORS.
type HTTPConfig struct {
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	MaxHeaderBytes    int           `mapstructure:"max_header_bytes"`
	MaxBodySize       int64         `mapstructure:"max_body_size"`
	RateLimitEnabled  bool          `mapstructure:"rate_limit_enabled"`
	RateLimitRequests int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow   time.Duration `mapstructure:"rate_limit_window"`
	CORSAllowOrigins  []string      `mapstructure:"cors_allow_origins"`
	CORSAllowMethods  []string      `mapstructure:"cors_allow_methods"`
	CORSAllowHeaders  []string      `mapstructure:"cors_allow_headers"`
	TrustedProxies    []string      `mapstructure:"trusted_proxies"`
}

// ReceiptConfig tunes receipt numbering. CounterTTL is how long the
// daily counter key lives past its day.
type ReceiptConfig struct {
	CounterTTL time.Duration `mapstructure:"counter_ttl"`
}

// TelemetryConfig holds OpenTelemetry and profiling settings.
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string  `mapstructure:"collector_endpoint"`
	SamplingRatio     float64 `mapstructure:"sampling_ratio"`
	ServiceName       string  `mapstructure:"service_name"`
	// Insecure allows a non-TLS collector connection, development only.
	Insecure       bool
	DBTraceEnabled bool `mapstructure:"db_trace_enabled"`
	// DBLogFullSQL records full SQL in spans, never in production.
	DBLogFullSQL      bool          `mapstructure:"db_log_full_sql"`
	DBSlowQueryThresh time.Duration `mapstructure:"db_slow_query_threshold"`
	ProfilingEnabled  bool          `mapstructure:"profiling_enabled"`
	PyroscopeAddress  string        `mapstructure:"pyroscope_address"`
}

// Load reads configuration in priority order: environment variables with
// the SCHOOLERP_ prefix (e.g. SCHOOLERP_DATABASE_PASSWORD), then
// config.toml, then built-in defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	for _, dir := range []string{".", "./backend", "/app"} {
		v.AddConfigPath(dir)
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env vars carry it.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("SCHOOLERP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers the built-in defaults. Every key is listed, even
// when the default is the zero value: Unmarshal only sees env overrides
// for keys viper already knows about.
func setDefaults(v *viper.Viper) {
	for key, value := range map[string]any{
		"app.name": "schoolerp-backend",
		"app.env":  "development",
		"app.port": "8080",

		"database.host":               "localhost",
		"database.port":               5432,
		"database.user":               "postgres",
		"database.password":           "",
		"database.dbname":             "schoolerp",
		"database.sslmode":            "disable",
		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  60,
		"database.conn_max_idle_time": 30,

		"redis.host":     "localhost",
		"redis.port":     6379,
		"redis.password": "",
		"redis.db":       0,

		"jwt.secret": "",
		"jwt.issuer": "schoolerp-backend",

		"log.level":  "info",
		"log.format": "console",
		"log.output": "stdout",

		"http.read_timeout":     15 * time.Second,
		"http.write_timeout":    15 * time.Second,
		"http.idle_timeout":     60 * time.Second,
		"http.max_header_bytes": 1 << 20,
		// fee payloads are small
		"http.max_body_size":       int64(1 << 20),
		"http.rate_limit_enabled":  false,
		"http.rate_limit_requests": 100,
		"http.rate_limit_window":   time.Minute,
		// an empty origin list allows no cross-origin requests until
		// origins are configured explicitly
		"http.cors_allow_origins": []string{},
		"http.cors_allow_methods": []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		"http.cors_allow_headers": []string{"Content-Type", "Authorization", "X-Request-ID"},
		"http.trusted_proxies":    []string{},

		// The daily receipt counter only has to survive writes that
		// straddle midnight, but a little slack makes stuck clocks
		// harmless.
		"receipt.counter_ttl": 48 * time.Hour,

		"telemetry.enabled":                 false,
		"telemetry.collector_endpoint":      "localhost:4317",
		"telemetry.sampling_ratio":          1.0,
		"telemetry.service_name":            "schoolerp-backend",
		"telemetry.insecure":                false,
		"telemetry.db_trace_enabled":        false,
		"telemetry.db_log_full_sql":         false,
		"telemetry.db_slow_query_threshold": 200 * time.Millisecond,
		"telemetry.profiling_enabled":       false,
		"telemetry.pyroscope_address":       "http://localhost:4040",
	} {
		v.SetDefault(key, value)
	}
}

// validate rejects configurations that would be unsafe to run with.
func (c *Config) validate() error {
	db := c.Database
	switch {
	case db.MaxOpenConns <= 0:
		return fmt.Errorf("database.max_open_conns must be positive")
	case db.MaxIdleConns < 0:
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	case db.MaxIdleConns > db.MaxOpenConns:
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			db.MaxIdleConns, db.MaxOpenConns)
	case c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0:
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	if c.App.Env == "production" {
		return c.validateProduction()
	}
	return nil
}

// validateProduction enforces the settings a production deployment must
// not run without.
func (c *Config) validateProduction() error {
	switch {
	case c.JWT.Secret == "":
		return fmt.Errorf("jwt.secret is required in production")
	case len(c.JWT.Secret) < 32:
		return fmt.Errorf("jwt.secret must be at least 32 characters in production")
	case c.Database.Password == "":
		return fmt.Errorf("database.password is required in production")
	case c.Database.SSLMode == "disable":
		return fmt.Errorf("database.sslmode cannot be 'disable' in production")
	case c.Telemetry.DBLogFullSQL:
		return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
	}
	for _, origin := range c.HTTP.CORSAllowOrigins {
		if origin == "*" {
			return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
		}
	}
	return nil
}

// DSN builds the Postgres connection string with credentials URL-escaped.
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}
