package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"product-service/internal/logger"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

type Config struct {
	AppName string `env:"APP_NAME,default=product-service"`
	AppPort string `env:"APP_PORT,default=8000"`

	DatabaseURL      string        `env:"DATABASE_URL"`
	DBDriver         string        `env:"DB_DRIVER,default=postgres"`
	DBMaxConns       int           `env:"DB_MAX_CONNS,default=10"`
	DBAcquireTimeout time.Duration `env:"DB_ACQUIRE_TIMEOUT,default=0s"`
	DBQueryTimeout   time.Duration `env:"DB_QUERY_TIMEOUT,default=0s"`
	DBConnectRetries int           `env:"DB_CONNECT_RETRIES,default=3"`
	DBConnectBackoff time.Duration `env:"DB_CONNECT_BACKOFF,default=1s"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`

	RemoteLogHttpURI       string `env:"REMOTE_LOG_HTTP_URI"`
	RemoteTraceRpcURI      string `env:"REMOTE_TRACE_RPC_URI"`
	RemoteProfilingHttpURI string `env:"REMOTE_PROFILING_HTTP_URI"`
	TraceStdout            bool   `env:"TRACE_STDOUT,default=false"`

	ClientTargetURL  string `env:"CLIENT_TARGET_URL,default=http://localhost:8000"`
	ClientMaxSleepMs int64  `env:"CLIENT_MAX_SLEEP_MS,default=1000"`
}

// SafeConfig is the loggable view of Config; the DSN carries credentials and is left out.
type SafeConfig struct {
	AppName                string        `json:"app_name"`
	AppPort                string        `json:"app_port"`
	DBDriver               string        `json:"db_driver"`
	DBMaxConns             int           `json:"db_max_conns"`
	DBAcquireTimeout       time.Duration `json:"db_acquire_timeout"`
	DBQueryTimeout         time.Duration `json:"db_query_timeout"`
	DBConnectRetries       int           `json:"db_connect_retries"`
	DBConnectBackoff       time.Duration `json:"db_connect_backoff"`
	ShutdownTimeout        time.Duration `json:"shutdown_timeout"`
	RemoteLogHttpURI       string        `json:"remote_log_http_uri"`
	RemoteTraceRpcURI      string        `json:"remote_trace_rpc_uri"`
	RemoteProfilingHttpURI string        `json:"remote_profiling_http_uri"`
	TraceStdout            bool          `json:"trace_stdout"`
}

func toSnake(s string) string {
	var out strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 && s[i-1] != '_' {
				out.WriteRune('_')
			}
			out.WriteRune(unicode.ToLower(r))
		} else {
			out.WriteRune(r)
		}
	}
	return out.String()
}

var durationType = reflect.TypeOf(time.Duration(0))

// StructAttrs("data", cfg) ➜ []slog.Attr{ slog.String("data.app_port", "8000"), ... }
func StructAttrs(prefix string, s any) []slog.Attr {
	v := reflect.ValueOf(s)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	t := v.Type()

	attrs := make([]slog.Attr, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		key := prefix + "." + jsonKey(f)
		fv := v.Field(i)

		switch {
		case fv.Type() == durationType:
			attrs = append(attrs, slog.Duration(key, time.Duration(fv.Int())))
		case fv.Kind() == reflect.String:
			attrs = append(attrs, slog.String(key, fv.String()))
		case fv.Kind() == reflect.Int, fv.Kind() == reflect.Int64, fv.Kind() == reflect.Int32:
			attrs = append(attrs, slog.Int64(key, fv.Int()))
		case fv.Kind() == reflect.Bool:
			attrs = append(attrs, slog.Bool(key, fv.Bool()))
		default:
			attrs = append(attrs, slog.Any(key, fv.Interface()))
		}
	}
	return attrs
}

// jsonKey takes the `json:"..."` name when present, snake_case of the field otherwise.
func jsonKey(f reflect.StructField) string {
	if tag := f.Tag.Get("json"); tag != "" {
		return strings.Split(tag, ",")[0]
	}
	return toSnake(f.Name)
}

func (c *Config) ToSafeConfig() SafeConfig {
	return SafeConfig{
		AppName:                c.AppName,
		AppPort:                c.AppPort,
		DBDriver:               c.DBDriver,
		DBMaxConns:             c.DBMaxConns,
		DBAcquireTimeout:       c.DBAcquireTimeout,
		DBQueryTimeout:         c.DBQueryTimeout,
		DBConnectRetries:       c.DBConnectRetries,
		DBConnectBackoff:       c.DBConnectBackoff,
		ShutdownTimeout:        c.ShutdownTimeout,
		RemoteLogHttpURI:       c.RemoteLogHttpURI,
		RemoteTraceRpcURI:      c.RemoteTraceRpcURI,
		RemoteProfilingHttpURI: c.RemoteProfilingHttpURI,
		TraceStdout:            c.TraceStdout,
	}
}

// Load decodes the process environment into a Config and validates it.
// It does not read .env; Instance does that once per process.
func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var invalid []string
	if c.AppName == "" {
		invalid = append(invalid, "APP_NAME")
	}
	if port, err := strconv.Atoi(c.AppPort); err != nil || port < 0 || port > 65535 {
		invalid = append(invalid, "APP_PORT")
	}
	switch c.DBDriver {
	case "postgres", "pgx":
	default:
		invalid = append(invalid, "DB_DRIVER")
	}
	if c.DBMaxConns <= 0 {
		invalid = append(invalid, "DB_MAX_CONNS")
	}
	if c.DBConnectRetries < 0 {
		invalid = append(invalid, "DB_CONNECT_RETRIES")
	}
	if c.DBAcquireTimeout < 0 || c.DBQueryTimeout < 0 {
		invalid = append(invalid, "DB_ACQUIRE_TIMEOUT/DB_QUERY_TIMEOUT")
	}
	if c.ClientMaxSleepMs < 0 {
		invalid = append(invalid, "CLIENT_MAX_SLEEP_MS")
	}
	if len(invalid) > 0 {
		return fmt.Errorf("invalid environment variables: %s", strings.Join(invalid, ", "))
	}
	return nil
}

var log = logger.Instance()
var (
	configInstance *Config
	configOnce     sync.Once
)

func Instance() *Config {
	configOnce.Do(func() {
		if err := godotenv.Load(); err != nil {
			log.Warn("No .env file found, using system environment variables")
		}

		cfg, err := Load()
		if err != nil {
			log.Error("Failed to load configuration", slog.String("error", err.Error()))
			os.Exit(1)
		}
		configInstance = cfg

		if configInstance.DatabaseURL == "" {
			log.Warn("Missing DATABASE_URL; the product service cannot start without it")
		}
		if configInstance.RemoteLogHttpURI == "" {
			log.Warn("Missing REMOTE_LOG_HTTP_URI will skip sending log")
		}
		if configInstance.RemoteTraceRpcURI == "" {
			log.Warn("Missing REMOTE_TRACE_RPC_URI will skip sending trace")
		}
		if configInstance.RemoteProfilingHttpURI == "" {
			log.Warn("Missing REMOTE_PROFILING_HTTP_URI will skip sending profiling")
		}

		attrs := StructAttrs("data", configInstance.ToSafeConfig())
		anyAttrs := make([]any, len(attrs))
		for i, a := range attrs {
			anyAttrs[i] = a
		}
		log.Info("Configuration loaded successfully", anyAttrs...)
	})

	return configInstance
}
