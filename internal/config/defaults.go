package config

import "time"

// Default constants for application configuration
const (
	DefaultLogLevel          = "info"
	DefaultJSONLog           = false
	DefaultOutputDir         = "data/official-rates"
	DefaultCacheDir          = ".cache/official-rates"
	DefaultCacheTTL          = 12 * time.Hour
	DefaultCacheMaxSizeBytes = 50 * 1024 * 1024 // 50MB
	DefaultHTTPTimeout       = 60 * time.Second
	DefaultRateLimitRPS      = 2.0
	DefaultRateLimitBurst    = 2
)

// Environment variables read by Load.
const (
	EnvUserAgent         = "RATESCRAPE_USER_AGENT"
	EnvProxy             = "RATESCRAPE_PROXY"
	EnvOutputDir         = "OFFICIAL_RATES_OUTPUT_DIR"
	EnvCacheDir          = "OFFICIAL_RATES_CACHE_DIR"
	EnvMetricsFile       = "RATESCRAPE_METRICS_FILE"
	EnvExplicitEndpoints = "OFFICIAL_RATES_REQUIRE_EXPLICIT_ENDPOINTS"
)
