package ratelimit

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// EndpointConfig is the budget for one route tier. A Path ending in "/" matches
// every path under it.
type EndpointConfig struct {
	Path   string
	Method string
	Limit  int // requests per Window; 0 means unlimited
	Window time.Duration
	Burst  int // bucket capacity; defaults to Limit
}

// LoadConfig reads RATE_LIMIT_* environment variables over DefaultConfig.
func LoadConfig() *Config {
	cfg := DefaultConfig()
	cfg.Enabled = envParse("RATE_LIMIT_ENABLED", cfg.Enabled, strconv.ParseBool)
	if !cfg.Enabled {
		return &Config{Enabled: false}
	}

	cfg.DefaultLimit = envParse("RATE_LIMIT_DEFAULT_LIMIT", cfg.DefaultLimit, strconv.Atoi)
	cfg.DefaultWindow = envParse("RATE_LIMIT_DEFAULT_WINDOW", cfg.DefaultWindow, time.ParseDuration)
	cfg.CleanupInterval = envParse("RATE_LIMIT_CLEANUP_INTERVAL", cfg.CleanupInterval, time.ParseDuration)
	cfg.Whitelist = parseClientList(os.Getenv("RATE_LIMIT_WHITELIST"))
	cfg.Blacklist = parseClientList(os.Getenv("RATE_LIMIT_BLACKLIST"))
	return cfg
}

// DefaultEndpointConfigs returns the route tiers. Reads not listed here fall
// back to the default limit.
func DefaultEndpointConfigs() []EndpointConfig {
	write := func(path, method string) EndpointConfig {
		return EndpointConfig{Path: path, Method: method, Limit: 100, Window: time.Minute, Burst: 10}
	}

	return []EndpointConfig{
		// Uploads, exports, the gap report and OAuth code exchange do real work per call.
		{Path: "/uploads/activity/", Method: http.MethodPost, Limit: 20, Window: time.Minute, Burst: 5},
		{Path: "/activities/export.csv", Method: http.MethodGet, Limit: 10, Window: time.Minute, Burst: 2},
		{Path: "/recommendations", Method: http.MethodGet, Limit: 30, Window: time.Minute, Burst: 10},
		{Path: "/auth/callback", Method: http.MethodGet, Limit: 20, Window: time.Minute, Burst: 5},

		write("/activities", http.MethodPost),
		write("/activities/", http.MethodPut),
		write("/activities/", http.MethodDelete),
		write("/templates", http.MethodPost),
		write("/templates/", http.MethodPut),
		write("/templates/", http.MethodDelete),
		write("/tags/", http.MethodPut),
		write("/tags/", http.MethodDelete),
		write("/uploads/", http.MethodDelete),
		write("/profile/targets", http.MethodPut),
	}
}

// envParse returns the parsed value of key, or def when it is unset or invalid.
func envParse[T any](key string, def T, parse func(string) (T, error)) T {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		return def
	}
	return v
}

// parseClientList splits a comma-separated list of client IPs.
func parseClientList(list string) map[string]bool {
	out := make(map[string]bool)
	for _, item := range strings.Split(list, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out[item] = true
		}
	}
	return out
}
