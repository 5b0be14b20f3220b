package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Solver    SolverConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Tasks     TaskConfig
	Webhook   WebhookConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser processes.
type BrowserConfig struct {
	// Headless controls whether the browsers run headless.
	Headless bool // default: true

	// Browsers is the browser pool capacity (number of Chrome processes).
	Browsers int // default: 1

	// PagesPerBrowser is each browser's page pool capacity.
	PagesPerBrowser int // default: 4

	// UserAgent overrides the browser User-Agent string.
	// Headless Chrome advertises itself in the default UA, so set this
	// whenever Headless is true.
	UserAgent string

	// Proxy is the proxy URL applied to all browsers.
	Proxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// Bin overrides the Chromium binary path.
	Bin string

	// Stealth injects anti-automation-detection JS into every new page.
	Stealth bool // default: true

	// ExtraHeaders are sent with every request the pages make.
	ExtraHeaders map[string]string
}

// SolverConfig controls the resolution protocol.
type SolverConfig struct {
	// MaxAttempts bounds the token polling loop per request.
	MaxAttempts int // default: 10

	// PollInterval is the sleep between polling attempts.
	PollInterval time.Duration // default: 500ms

	// AcquireTimeout bounds waiting for a free browser or page slot.
	AcquireTimeout time.Duration // default: 60s

	// MinIdlePages is the number of pages pre-created per browser and the
	// floor below which returned pages are never evicted.
	MinIdlePages int // default: 1

	// Debug enables verbose per-attempt logging.
	Debug bool // default: false
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// TaskConfig controls the async task result store.
type TaskConfig struct {
	// MaxEntries is the maximum number of retained task results.
	MaxEntries int // default: 1000

	// TTL is how long a completed task result is retained.
	TTL time.Duration // default: 1h
}

// WebhookConfig controls task completion notifications.
type WebhookConfig struct {
	// Secret signs webhook payloads with HMAC-SHA256 when non-empty.
	Secret string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("SOLVER_HOST", "0.0.0.0"),
			Port: envIntOr("SOLVER_PORT", 8080),
			Mode: envOr("SOLVER_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:        envBoolOr("SOLVER_HEADLESS", true),
			Browsers:        envIntOr("SOLVER_BROWSERS", 1),
			PagesPerBrowser: envIntOr("SOLVER_PAGES_PER_BROWSER", 4),
			UserAgent:       os.Getenv("SOLVER_USER_AGENT"),
			Proxy:           os.Getenv("SOLVER_PROXY"),
			NoSandbox:       envBoolOr("SOLVER_NO_SANDBOX", false),
			Bin:             os.Getenv("SOLVER_BROWSER_BIN"),
			Stealth:         envBoolOr("SOLVER_STEALTH", true),
		},
		Solver: SolverConfig{
			MaxAttempts:    envIntOr("SOLVER_MAX_ATTEMPTS", 10),
			PollInterval:   envDurationOr("SOLVER_POLL_INTERVAL", 500*time.Millisecond),
			AcquireTimeout: envDurationOr("SOLVER_ACQUIRE_TIMEOUT", 60*time.Second),
			MinIdlePages:   envIntOr("SOLVER_MIN_IDLE_PAGES", 1),
			Debug:          envBoolOr("SOLVER_DEBUG", false),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("SOLVER_AUTH_ENABLED", false),
			APIKeys: envSliceOr("SOLVER_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("SOLVER_RATE_RPS", 5.0),
			Burst:             envIntOr("SOLVER_RATE_BURST", 10),
		},
		Tasks: TaskConfig{
			MaxEntries: envIntOr("SOLVER_TASK_MAX_ENTRIES", 1000),
			TTL:        envDurationOr("SOLVER_TASK_TTL", time.Hour),
		},
		Webhook: WebhookConfig{
			Secret: os.Getenv("SOLVER_WEBHOOK_SECRET"),
		},
		Log: LogConfig{
			Level:  envOr("SOLVER_LOG_LEVEL", "info"),
			Format: envOr("SOLVER_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
