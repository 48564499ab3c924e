package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Scraper   ScraperConfig
	Catalog   CatalogConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Webhook   WebhookConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server started by "gamedeck serve".
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"

	// Schedule is a cron expression that starts a run over the configured
	// views, e.g. "0 6 * * *". Empty disables scheduling.
	Schedule string
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Enabled launches Chrome. When false only document views can run,
	// and their markup is read statically without executing scripts.
	Enabled bool // default: true

	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// DefaultProxy is the proxy URL for the browser and document fetches.
	DefaultProxy string

	// Stealth injects anti-automation-detection evasions into every page.
	Stealth bool // default: true

	// AcceptLanguage is sent with every browser request; the storefront
	// localises prices by it.
	AcceptLanguage string // default: "es-AR,es;q=0.9"
}

// ScraperConfig controls pagination and extraction behaviour.
type ScraperConfig struct {
	// NavigationTimeout bounds page.Navigate plus the DOM settling after it.
	NavigationTimeout time.Duration // default: 5m

	// RenderTimeout bounds the wait for the first catalog card.
	RenderTimeout time.Duration // default: 5m

	// SettleTimeout bounds the wait after each load-more activation.
	SettleTimeout time.Duration // default: 60s

	// SettleDelay is the fixed pause after each activation before polling.
	SettleDelay time.Duration // default: 3s

	// PollInterval is the condition re-check period while settling.
	PollInterval time.Duration // default: 250ms

	// FetchTimeout bounds the HTTP fetch of a remote static document.
	FetchTimeout time.Duration // default: 30s

	// BlockedResourceTypes lists resource types the page never downloads.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string

	// ExtractMode selects where records are read from after settlement:
	// "snapshot" parses the captured HTML, "live" queries the page.
	ExtractMode string // default: "snapshot"
}

// View is one catalog listing to scrape. Exactly one of URL and Document
// is set.
type View struct {
	Platform string
	URL      string
	Document string // local path or http(s) URL of pre-fetched markup
}

// Source returns whichever input the view uses.
func (v View) Source() string {
	if v.URL != "" {
		return v.URL
	}
	return v.Document
}

// CatalogConfig controls what is scraped and where results go.
type CatalogConfig struct {
	Views []View

	// OutputDir receives the merged JSON file; created if absent.
	OutputDir string // default: "xbox-data"

	// SnapshotDir holds captured documents for the duration of a run.
	SnapshotDir string // default: $TMPDIR/gamedeck-snapshots
}

// AuthConfig controls API key authentication of the "gamedeck serve" API.
type AuthConfig struct {
	// APIKeys is the list of accepted keys. Empty leaves the API open.
	APIKeys []string
}

// RateLimitConfig controls per-client rate limiting of the API.
type RateLimitConfig struct {
	RequestsPerSecond float64 // default: 1
	Burst             int     // default: 5
}

// WebhookConfig controls run notifications. Empty URL disables them.
type WebhookConfig struct {
	URL    string
	Secret string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// DefaultViews are the es-AR Xbox catalog listings for PC and console.
var DefaultViews = []View{
	{
		Platform: "PC",
		URL:      "https://www.xbox.com/es-AR/games/all-games/pc?PlayWith=PC&xr=shellnav",
	},
	{
		Platform: "Console",
		URL:      "https://www.xbox.com/es-AR/games/all-games/pc?xr=shellnav&orderby=Title+Asc&PlayWith=XboxSeriesX%7CS%2CXboxOne",
	},
}

// Load reads configuration from a .env file (if present) and environment
// variables, with sane defaults. Variables already set in the environment
// take precedence over the .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	views, err := loadViews()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: ServerConfig{
			Host:     envOr("GAMEDECK_HOST", "0.0.0.0"),
			Port:     envIntOr("GAMEDECK_PORT", 8080),
			Mode:     envOr("GAMEDECK_MODE", "release"),
			Schedule: os.Getenv("GAMEDECK_SCHEDULE"),
		},
		Browser: BrowserConfig{
			Enabled:        envBoolOr("GAMEDECK_BROWSER", true),
			Headless:       envBoolOr("GAMEDECK_HEADLESS", true),
			NoSandbox:      envBoolOr("GAMEDECK_NO_SANDBOX", false),
			BrowserBin:     os.Getenv("GAMEDECK_BROWSER_BIN"),
			DefaultProxy:   os.Getenv("GAMEDECK_PROXY"),
			Stealth:        envBoolOr("GAMEDECK_STEALTH", true),
			AcceptLanguage: envOr("GAMEDECK_ACCEPT_LANGUAGE", "es-AR,es;q=0.9"),
		},
		Scraper: ScraperConfig{
			NavigationTimeout: envDurationOr("GAMEDECK_NAV_TIMEOUT", 5*time.Minute),
			RenderTimeout:     envDurationOr("GAMEDECK_RENDER_TIMEOUT", 5*time.Minute),
			SettleTimeout:     envDurationOr("GAMEDECK_SETTLE_TIMEOUT", 60*time.Second),
			SettleDelay:       envDurationOr("GAMEDECK_SETTLE_DELAY", 3*time.Second),
			PollInterval:      envDurationOr("GAMEDECK_POLL_INTERVAL", 250*time.Millisecond),
			FetchTimeout:      envDurationOr("GAMEDECK_FETCH_TIMEOUT", 30*time.Second),
			BlockedResourceTypes: envSliceOr("GAMEDECK_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
			ExtractMode: envOr("GAMEDECK_EXTRACT_MODE", "snapshot"),
		},
		Catalog: CatalogConfig{
			Views:       views,
			OutputDir:   envOr("GAMEDECK_OUTPUT_DIR", "xbox-data"),
			SnapshotDir: envOr("GAMEDECK_SNAPSHOT_DIR", filepath.Join(os.TempDir(), "gamedeck-snapshots")),
		},
		Auth: AuthConfig{
			APIKeys: envSliceOr("GAMEDECK_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("GAMEDECK_RATE_RPS", 1.0),
			Burst:             envIntOr("GAMEDECK_RATE_BURST", 5),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("GAMEDECK_WEBHOOK_URL"),
			Secret: os.Getenv("GAMEDECK_WEBHOOK_SECRET"),
		},
		Log: LogConfig{
			Level:  envOr("GAMEDECK_LOG_LEVEL", "info"),
			Format: envOr("GAMEDECK_LOG_FORMAT", "json"),
		},
	}, nil
}

// loadViews builds the view list from GAMEDECK_VIEWS and
// GAMEDECK_DOCUMENTS, falling back to DefaultViews when both are unset.
func loadViews() ([]View, error) {
	urls, err := ParseViews(os.Getenv("GAMEDECK_VIEWS"), false)
	if err != nil {
		return nil, fmt.Errorf("config: GAMEDECK_VIEWS: %w", err)
	}
	docs, err := ParseViews(os.Getenv("GAMEDECK_DOCUMENTS"), true)
	if err != nil {
		return nil, fmt.Errorf("config: GAMEDECK_DOCUMENTS: %w", err)
	}
	views := append(urls, docs...)
	if len(views) == 0 {
		views = append(views, DefaultViews...)
	}
	return views, nil
}

// ParseViews parses a comma-separated "Platform=source" list. Only the first
// '=' separates the label, so sources may carry query strings. document
// selects whether sources are static documents or live URLs.
//
// A comma starts a new view only when what follows is "Label=source" with a
// plain label (letters, digits, space, '_', '.', '-') and, for live views,
// an http(s) source. Any other comma belongs to the preceding source.
func ParseViews(raw string, document bool) ([]View, error) {
	var views []View
	for _, item := range splitViews(raw, document) {
		label, source, ok := strings.Cut(item, "=")
		label, source = strings.TrimSpace(label), strings.TrimSpace(source)
		if !ok || label == "" || source == "" {
			return nil, fmt.Errorf("invalid view %q: want Platform=source", item)
		}
		v := View{Platform: label}
		if document {
			v.Document = source
		} else {
			v.URL = source
		}
		views = append(views, v)
	}
	return views, nil
}

var viewLabel = regexp.MustCompile(`^[\pL\pN][\pL\pN _.-]*$`)

func splitViews(raw string, document bool) []string {
	var items []string
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		if len(items) > 0 && !startsView(part, document) {
			items[len(items)-1] += "," + part
			continue
		}
		items = append(items, part)
	}
	for i := range items {
		items[i] = strings.TrimSpace(items[i])
	}
	return items
}

func startsView(part string, document bool) bool {
	label, source, ok := strings.Cut(part, "=")
	if !ok || !viewLabel.MatchString(strings.TrimSpace(label)) {
		return false
	}
	if document {
		return true
	}
	source = strings.ToLower(strings.TrimSpace(source))
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// --- helper functions ---

func envSplit(v string) []string {
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

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
		return envSplit(v)
	}
	return fallback
}
