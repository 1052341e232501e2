// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, the SQLite path, chatroom capacity, object-storage URL signing,
// websocket tuning, rate limiting, and observability settings.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// StorageConfig controls how avatar object keys are turned into signed URLs.
type StorageConfig struct {
	BaseURL        string        // STORAGE_BASE_URL (bucket domain)
	SigningKey     string        // STORAGE_SIGNING_KEY
	ThumbnailStyle string        // STORAGE_THUMBNAIL_STYLE
	OriginalStyle  string        // STORAGE_ORIGINAL_STYLE
	URLTTL         time.Duration // STORAGE_URL_TTL
}

// WSConfig tunes websocket connections.
type WSConfig struct {
	SendBuffer      int           // WS_SEND_BUFFER (frames)
	MaxMessageBytes int64         // WS_MAX_MESSAGE_BYTES
	PingPeriod      time.Duration // WS_PING_PERIOD
	PongWait        time.Duration // WS_PONG_WAIT (must exceed PingPeriod)
	WriteWait       time.Duration // WS_WRITE_WAIT
	EventRPS        float64       // WS_EVENT_RPS
	EventBurst      int           // WS_EVENT_BURST
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug|release|test

	// Logging / Docs
	LogLevel       string
	LogPretty      bool
	SwaggerEnabled bool
	APIBasePath    string

	// App
	DBPath           string
	ChatroomCapacity int // max members per group chatroom

	// Rate limiting (HTTP)
	RateRPS   float64
	RateBurst int

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	Storage StorageConfig
	WS      WSConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		DBPath:           getenv("DB_PATH", "groupchat.db"),
		ChatroomCapacity: getint("CHATROOM_CAPACITY", 200),

		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		Storage: StorageConfig{
			BaseURL:        strings.TrimRight(getenv("STORAGE_BASE_URL", "http://localhost:8080/static"), "/"),
			SigningKey:     getenv("STORAGE_SIGNING_KEY", ""),
			ThumbnailStyle: getenv("STORAGE_THUMBNAIL_STYLE", "thumbnail"),
			OriginalStyle:  getenv("STORAGE_ORIGINAL_STYLE", "original"),
			URLTTL:         getdur("STORAGE_URL_TTL", 24*time.Hour),
		},

		WS: WSConfig{
			SendBuffer:      getint("WS_SEND_BUFFER", 256),
			MaxMessageBytes: int64(getint("WS_MAX_MESSAGE_BYTES", 64<<10)),
			PingPeriod:      getdur("WS_PING_PERIOD", 54*time.Second),
			PongWait:        getdur("WS_PONG_WAIT", 60*time.Second),
			WriteWait:       getdur("WS_WRITE_WAIT", 10*time.Second),
			EventRPS:        getfloat("WS_EVENT_RPS", 10.0),
			EventBurst:      getint("WS_EVENT_BURST", 20),
		},

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-group-chat"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	return cfg, cfg.validate()
}

func (cfg Config) validate() error {
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return errors.New("DB_PATH must not be empty")
	}
	if cfg.ChatroomCapacity < 2 {
		return errors.New("CHATROOM_CAPACITY must be >= 2")
	}
	if cfg.RateRPS < 0 {
		return errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.Storage.URLTTL <= 0 {
		return errors.New("STORAGE_URL_TTL must be > 0")
	}
	if cfg.WS.SendBuffer < 1 {
		return errors.New("WS_SEND_BUFFER must be >= 1")
	}
	if cfg.WS.MaxMessageBytes <= 0 {
		return errors.New("WS_MAX_MESSAGE_BYTES must be > 0")
	}
	if cfg.WS.PingPeriod <= 0 || cfg.WS.WriteWait <= 0 {
		return errors.New("WS_PING_PERIOD and WS_WRITE_WAIT must be positive durations")
	}
	if cfg.WS.PongWait <= cfg.WS.PingPeriod {
		return errors.New("WS_PONG_WAIT must be greater than WS_PING_PERIOD")
	}
	if cfg.WS.EventRPS <= 0 || cfg.WS.EventBurst < 1 {
		return errors.New("WS_EVENT_RPS must be > 0 and WS_EVENT_BURST >= 1")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	return nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
