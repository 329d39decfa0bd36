package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/travelsaas/ratescrape/internal/engine"
)

// Config holds application configuration values
type Config struct {
	// Logging
	LogLevel string
	JSONLog  bool

	// HTTP
	HTTPTimeout    time.Duration
	UserAgent      string
	Proxy          string
	RateLimitRPS   float64
	RateLimitBurst int

	// Caching
	CacheDir          string
	CacheTTL          time.Duration
	CacheMaxSizeBytes int64
	NoCache           bool
	MemoryCache       bool
	Force             bool

	// Output
	OutputDir   string
	MetricsFile string

	// Sources
	ExplicitEndpoints bool
	Endpoints         map[string]string
	Params            map[string]engine.Params
}

// Load builds a Config by combining defaults, an optional config file, environment variables, and CLI flags.
// Caller should pass the root *cobra.Command so flags can be read.
func Load(cmd *cobra.Command) (*Config, error) {
	cfg := Defaults()

	if path := flagString(cmd, "config"); path != "" {
		file, err := ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := cfg.applyFile(file); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyFlags(cmd)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		LogLevel:          DefaultLogLevel,
		JSONLog:           DefaultJSONLog,
		HTTPTimeout:       DefaultHTTPTimeout,
		RateLimitRPS:      DefaultRateLimitRPS,
		RateLimitBurst:    DefaultRateLimitBurst,
		CacheDir:          DefaultCacheDir,
		CacheTTL:          DefaultCacheTTL,
		CacheMaxSizeBytes: DefaultCacheMaxSizeBytes,
		OutputDir:         DefaultOutputDir,
		Endpoints:         map[string]string{},
		Params:            map[string]engine.Params{},
	}
}

func (c *Config) applyFile(f File) error {
	if f.OutputDir != "" {
		c.OutputDir = f.OutputDir
	}
	if f.CacheDir != "" {
		c.CacheDir = f.CacheDir
	}
	if f.CacheTTL != "" {
		d, err := time.ParseDuration(f.CacheTTL)
		if err != nil {
			return fmt.Errorf("cacheTTL: %w", err)
		}
		c.CacheTTL = d
	}
	if f.Timeout != "" {
		d, err := time.ParseDuration(f.Timeout)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		c.HTTPTimeout = d
	}
	if f.UserAgent != "" {
		c.UserAgent = f.UserAgent
	}
	if f.Proxy != "" {
		c.Proxy = f.Proxy
	}
	if f.RateLimitRPS != 0 {
		c.RateLimitRPS = f.RateLimitRPS
	}
	if f.RateLimitBurst != 0 {
		c.RateLimitBurst = f.RateLimitBurst
	}
	if f.MetricsFile != "" {
		c.MetricsFile = f.MetricsFile
	}
	if f.ExplicitEndpoints {
		c.ExplicitEndpoints = true
	}
	for id, u := range f.Endpoints {
		c.Endpoints[id] = u
	}
	for id, p := range f.Params {
		c.Params[id] = engine.Params(p)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvUserAgent); v != "" {
		c.UserAgent = v
	}
	if v := os.Getenv(EnvProxy); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv(EnvOutputDir); v != "" {
		c.OutputDir = v
	}
	if v := os.Getenv(EnvCacheDir); v != "" {
		c.CacheDir = v
	}
	if v := os.Getenv(EnvMetricsFile); v != "" {
		c.MetricsFile = v
	}
	if v := os.Getenv(EnvExplicitEndpoints); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.ExplicitEndpoints = b
		} else {
			log.Warn().Str("env", EnvExplicitEndpoints).Str("value", v).Msg("Ignoring non-boolean value")
		}
	}
}

func (c *Config) applyFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}
	if s := flagString(cmd, "user-agent"); s != "" {
		c.UserAgent = s
	}
	if s := flagString(cmd, "proxy"); s != "" {
		c.Proxy = s
	}
	if changed(cmd, "timeout") {
		if d, err := time.ParseDuration(flagString(cmd, "timeout")); err == nil {
			c.HTTPTimeout = d
		}
	}
	if s := flagString(cmd, "output"); s != "" {
		c.OutputDir = s
	}
	if s := flagString(cmd, "cache-dir"); s != "" {
		c.CacheDir = s
	}
	if changed(cmd, "cache-ttl") {
		if d, err := time.ParseDuration(flagString(cmd, "cache-ttl")); err == nil {
			c.CacheTTL = d
		}
	}
	if s := flagString(cmd, "metrics-file"); s != "" {
		c.MetricsFile = s
	}
	if flagString(cmd, "json") == "true" {
		c.JSONLog = true
	}
	if flagString(cmd, "verbose") == "true" {
		c.LogLevel = "debug"
	}
	if flagString(cmd, "quiet") == "true" {
		c.LogLevel = "error"
	}
	if flagString(cmd, "no-cache") == "true" {
		c.NoCache = true
	}
	if flagString(cmd, "memory-cache") == "true" {
		c.MemoryCache = true
	}
	if flagString(cmd, "force") == "true" {
		c.Force = true
	}
	if flagString(cmd, "explicit-endpoints") == "true" {
		c.ExplicitEndpoints = true
	}
}

// Endpoint resolves a source URL: the environment variable wins over the
// config file, which wins over the built-in default. With explicit endpoints
// required the default is not used.
func (c *Config) Endpoint(id, envVar, defaultURL string) engine.Endpoint {
	ep := engine.Endpoint{EnvVar: envVar}
	switch {
	case os.Getenv(envVar) != "":
		ep.URL = os.Getenv(envVar)
	case c.Endpoints[id] != "":
		ep.URL = c.Endpoints[id]
	case !c.ExplicitEndpoints:
		ep.URL = defaultURL
	}
	return ep
}

// SourceParams merges the config file parameters of a source with the JSON
// object in envVar.
func (c *Config) SourceParams(id, envVar string) engine.Params {
	return engine.MergeParams(c.Params[id], ParseParams(envVar, os.Getenv(envVar)))
}

// ParseParams decodes a JSON object of source parameters. Anything else is
// ignored with a warning.
func ParseParams(name, raw string) engine.Params {
	if raw == "" {
		return nil
	}
	var p engine.Params
	if err := json.Unmarshal([]byte(raw), &p); err != nil || p == nil {
		log.Warn().Str("env", name).Msg("Unable to parse parameters, expected JSON object")
		return nil
	}
	return p
}

// ErrParamsNotObject is returned by ParseParamsStrict for non-object input.
var ErrParamsNotObject = errors.New("parameters must be a JSON object")

// ParseParamsStrict is ParseParams for user input that must not be ignored.
func ParseParamsStrict(raw string) (engine.Params, error) {
	var p engine.Params
	if err := json.Unmarshal([]byte(raw), &p); err != nil || p == nil {
		return nil, ErrParamsNotObject
	}
	return p, nil
}

func flagString(cmd *cobra.Command, name string) string {
	if cmd == nil {
		return ""
	}
	if f := cmd.Flags().Lookup(name); f != nil {
		return f.Value.String()
	}
	return ""
}

func changed(cmd *cobra.Command, name string) bool {
	if cmd == nil {
		return false
	}
	f := cmd.Flags().Lookup(name)
	return f != nil && f.Changed
}
