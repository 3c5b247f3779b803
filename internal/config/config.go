package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the widget gateway.
type Config struct {
	App       AppConfig
	Vendor    VendorConfig
	Realtime  RealtimeConfig
	Redis     RedisConfig
	Auth      AuthConfig
	AutoStart AutoStartConfig
	Logger    LoggerConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// VendorConfig holds defaults for talking to the chat backend. Per-widget
// values (application id, secret, site URL) arrive with each bootstrap
// request; these are service-wide knobs.
type VendorConfig struct {
	SDKVersion         string
	HTTPTimeoutSeconds int
	HistoryLimit       int
}

// RealtimeConfig holds push-channel connection values.
type RealtimeConfig struct {
	Port                  int
	Path                  string
	KeepAliveSeconds      int
	ConnectTimeoutSeconds int
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis
// and the session layer falls back to in-memory storage.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthConfig defines widget session token parameters.
type AuthConfig struct {
	JWTSecret              string
	SessionTokenTTLMinutes int
}

// AutoStartConfig defines service-wide auto-start behavior. The start text
// and hidden flag are per-widget bootstrap values; the echo timeout bounds
// how long hidden-echo suppression stays armed.
type AutoStartConfig struct {
	EchoTimeoutSeconds int
	DefaultPolicy      string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "chat-widget-gateway"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Vendor: VendorConfig{
			SDKVersion:         getEnv("VENDOR_SDK_VERSION", "2.0.0"),
			HTTPTimeoutSeconds: getEnvAsInt("VENDOR_HTTP_TIMEOUT_SECONDS", 15),
			HistoryLimit:       getEnvAsInt("VENDOR_HISTORY_LIMIT", 100),
		},
		Realtime: RealtimeConfig{
			Port:                  getEnvAsInt("REALTIME_PORT", 443),
			Path:                  getEnv("REALTIME_PATH", "/mqtt"),
			KeepAliveSeconds:      getEnvAsInt("REALTIME_KEEPALIVE_SECONDS", 30),
			ConnectTimeoutSeconds: getEnvAsInt("REALTIME_CONNECT_TIMEOUT_SECONDS", 10),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret:              getEnv("AUTH_JWT_SECRET", "dev-secret"),
			SessionTokenTTLMinutes: getEnvAsInt("AUTH_SESSION_TOKEN_TTL_MINUTES", 720),
		},
		AutoStart: AutoStartConfig{
			EchoTimeoutSeconds: getEnvAsInt("AUTOSTART_ECHO_TIMEOUT_SECONDS", 15),
			DefaultPolicy:      getEnv("AUTOSTART_DEFAULT_POLICY", "first-visit"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// HTTPTimeout returns the vendor client timeout duration.
func (v VendorConfig) HTTPTimeout() time.Duration {
	if v.HTTPTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(v.HTTPTimeoutSeconds) * time.Second
}

// EchoTimeout returns how long hidden-echo suppression stays armed.
func (a AutoStartConfig) EchoTimeout() time.Duration {
	if a.EchoTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(a.EchoTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}
