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
	Scraper   ScraperConfig
	Output    OutputConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
	Selectors Selectors
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "127.0.0.1"
	Port int    // default: 8000
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls how browser sessions are launched.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: true

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is the proxy URL for all sessions.
	Proxy string

	// Stealth injects anti-bot-detection evasions into every page.
	Stealth bool // default: false

	// BlockedResourceTypes lists resource types to block: Image, Stylesheet,
	// Font, Media, Ping or Manifest. Documents and scripts are never blocked.
	// default: none, the registry UI needs its stylesheets for layout-based clicks.
	BlockedResourceTypes []string

	// MaxSessions caps concurrently open browser sessions.
	MaxSessions int // default: 2
}

// ScraperConfig controls pipeline timing.
type ScraperConfig struct {
	// BaseURL is the registry home page.
	BaseURL string // default: "https://chem.echa.europa.eu/"

	// DefaultTimeout bounds element lookups without a stage-specific bound.
	DefaultTimeout time.Duration // default: 30s

	// ResultTimeout bounds the wait for search result rows.
	ResultTimeout time.Duration // default: 15s

	// DossierTimeout bounds the registrations link and dossier table waits.
	DossierTimeout time.Duration // default: 15s

	// ShadowTimeout bounds the wait for the dossier view host element.
	ShadowTimeout time.Duration // default: 10s

	// SettlePause is the pause between scroll-into-view and click.
	SettlePause time.Duration // default: 500ms

	// ExpandPause is the pause after expanding a section.
	ExpandPause time.Duration // default: 2s

	// IdleWindow is the quiet period that counts as network settled.
	IdleWindow time.Duration // default: 500ms

	// RunTimeout is the hard deadline for one whole pipeline run.
	RunTimeout time.Duration // default: 3m
}

// OutputConfig controls the optional files a run writes.
type OutputConfig struct {
	// ArtifactPath receives the extracted key-information HTML. Empty disables.
	ArtifactPath string // default: "key_info_description.html"

	// ScreenshotPath receives a screenshot when extraction faults. Empty disables.
	ScreenshotPath string // default: "error_toxicology.png"
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
	RequestsPerSecond float64 // default: 1

	// Burst is the maximum burst size per API key.
	Burst int // default: 2
}

// CacheConfig controls the outcome cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached outcomes.
	MaxEntries int // default: 256
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
// The selector table starts from DefaultSelectors and is overridden by the
// YAML file named in SIGILLUM_SELECTORS_FILE, if any.
func Load() (*Config, error) {
	sel := DefaultSelectors()
	if path := os.Getenv("SIGILLUM_SELECTORS_FILE"); path != "" {
		var err error
		if sel, err = LoadSelectors(path, sel); err != nil {
			return nil, err
		}
	}
	if err := sel.Validate(); err != nil {
		return nil, err
	}

	return &Config{
		Server: ServerConfig{
			Host: envOr("SIGILLUM_HOST", "127.0.0.1"),
			Port: envIntOr("SIGILLUM_PORT", 8000),
			Mode: envOr("SIGILLUM_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:             envBoolOr("SIGILLUM_HEADLESS", true),
			NoSandbox:            envBoolOr("SIGILLUM_NO_SANDBOX", true),
			BrowserBin:           os.Getenv("SIGILLUM_BROWSER_BIN"),
			Proxy:                os.Getenv("SIGILLUM_PROXY"),
			Stealth:              envBoolOr("SIGILLUM_STEALTH", false),
			BlockedResourceTypes: envSliceOr("SIGILLUM_BLOCKED_RESOURCES", nil),
			MaxSessions:          envIntOr("SIGILLUM_MAX_SESSIONS", 2),
		},
		Scraper: ScraperConfig{
			BaseURL:        envOr("SIGILLUM_BASE_URL", "https://chem.echa.europa.eu/"),
			DefaultTimeout: envDurationOr("SIGILLUM_DEFAULT_TIMEOUT", 30*time.Second),
			ResultTimeout:  envDurationOr("SIGILLUM_RESULT_TIMEOUT", 15*time.Second),
			DossierTimeout: envDurationOr("SIGILLUM_DOSSIER_TIMEOUT", 15*time.Second),
			ShadowTimeout:  envDurationOr("SIGILLUM_SHADOW_TIMEOUT", 10*time.Second),
			SettlePause:    envDurationOr("SIGILLUM_SETTLE_PAUSE", 500*time.Millisecond),
			ExpandPause:    envDurationOr("SIGILLUM_EXPAND_PAUSE", 2*time.Second),
			IdleWindow:     envDurationOr("SIGILLUM_IDLE_WINDOW", 500*time.Millisecond),
			RunTimeout:     envDurationOr("SIGILLUM_RUN_TIMEOUT", 3*time.Minute),
		},
		Output: OutputConfig{
			ArtifactPath:   envOr("SIGILLUM_ARTIFACT_PATH", "key_info_description.html"),
			ScreenshotPath: envOr("SIGILLUM_SCREENSHOT_PATH", "error_toxicology.png"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("SIGILLUM_AUTH_ENABLED", false),
			APIKeys: envSliceOr("SIGILLUM_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("SIGILLUM_RATE_RPS", 1.0),
			Burst:             envIntOr("SIGILLUM_RATE_BURST", 2),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("SIGILLUM_CACHE_MAX_ENTRIES", 256),
		},
		Log: LogConfig{
			Level:  envOr("SIGILLUM_LOG_LEVEL", "info"),
			Format: envOr("SIGILLUM_LOG_FORMAT", "json"),
		},
		Selectors: sel,
	}, nil
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
