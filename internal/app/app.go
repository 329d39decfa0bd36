// Package app provides the core application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/travelsaas/ratescrape/internal/cache"
	"github.com/travelsaas/ratescrape/internal/config"
	"github.com/travelsaas/ratescrape/internal/engine/carrental"
	"github.com/travelsaas/ratescrape/internal/engine/citylimits"
	"github.com/travelsaas/ratescrape/internal/engine/domestic"
	"github.com/travelsaas/ratescrape/internal/engine/exchange"
	"github.com/travelsaas/ratescrape/internal/engine/international"
	"github.com/travelsaas/ratescrape/internal/engine/kilometric"
	"github.com/travelsaas/ratescrape/internal/fetch"
	"github.com/travelsaas/ratescrape/internal/monitoring"
	"github.com/travelsaas/ratescrape/internal/orchestrator"
	"github.com/travelsaas/ratescrape/internal/ratelimit"
)

// Application holds all application dependencies and manages their lifecycle.
//
// It is created once per command invocation. Use Close() to release the
// cache and flush metrics.
type Application struct {
	Config       *config.Config
	Logger       *zerolog.Logger
	Cache        cache.Cache
	RateLimiter  *ratelimit.HostLimiter
	Fetcher      *fetch.Fetcher
	Metrics      *monitoring.Metrics
	Orchestrator *orchestrator.Orchestrator
	startTime    time.Time
}

// New creates and initializes a new Application with all dependencies.
//
// It performs the following initialization steps:
//   - Configures logging based on the provided config
//   - Opens the page cache (disk, memory or none)
//   - Creates the per-host rate limiter
//   - Creates the fetcher with the configured timeout, proxy and user agent
//   - Wires the six source extractors into the orchestrator
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logger := ConfigureLogging(cfg)

	var pageCache cache.Cache
	switch {
	case cfg.NoCache:
		logger.Debug().Msg("Page cache disabled")
	case cfg.MemoryCache:
		pageCache = cache.NewMemoryCache(cfg.CacheMaxSizeBytes)
		logger.Debug().
			Int64("max_size_bytes", cfg.CacheMaxSizeBytes).
			Msg("Memory cache initialized")
	default:
		dc, err := cache.NewDiskCache(cfg.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("open cache: %w", err)
		}
		pageCache = dc
		logger.Debug().Str("dir", cfg.CacheDir).Msg("Disk cache initialized")
	}

	rateLimiter := ratelimit.NewHostLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	logger.Debug().
		Float64("rps", cfg.RateLimitRPS).
		Int("burst", cfg.RateLimitBurst).
		Msg("Rate limiter initialized")

	fetcher := fetch.New(fetch.Options{
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.HTTPTimeout,
		Proxy:     cfg.Proxy,
		Cache:     pageCache,
		MaxAge:    cfg.CacheTTL,
		Force:     cfg.Force,
		Limiter:   rateLimiter,
	})
	logger.Debug().
		Dur("timeout", cfg.HTTPTimeout).
		Msg("Fetcher initialized")

	metrics := monitoring.NewMetrics()

	a := &Application{
		Config:      cfg,
		Logger:      &logger,
		Cache:       pageCache,
		RateLimiter: rateLimiter,
		Fetcher:     fetcher,
		Metrics:     metrics,
		startTime:   time.Now(),
	}
	a.Orchestrator = orchestrator.New(a.Sources(), orchestrator.Options{
		OutputDir: cfg.OutputDir,
		Metrics:   metrics,
	})

	logger.Debug().Msg("Application initialized successfully")
	return a, nil
}

// ConfigureLogging sets the global zerolog level and writer. Info messages
// are hidden unless verbose logging was requested.
func ConfigureLogging(cfg *config.Config) zerolog.Logger {
	var level zerolog.Level
	switch cfg.LogLevel {
	case "debug":
		level = zerolog.DebugLevel
	case "error":
		level = zerolog.ErrorLevel
	default:
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)

	var w io.Writer
	if cfg.JSONLog {
		w = os.Stderr
	} else {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return log.Logger
}

// Sources returns the fixed, ordered source list. Car rental and exchange
// rates are optional.
func (a *Application) Sources() []orchestrator.Source {
	cfg := a.Config
	f := a.Fetcher

	km := cfg.Endpoint(kilometric.ID, kilometric.EnvURL, kilometric.DefaultURL)
	dom := cfg.Endpoint(domestic.ID, domestic.EnvURL, domestic.DefaultURL)
	intl := cfg.Endpoint(international.ID, international.EnvURL, international.DefaultURL)
	city := cfg.Endpoint(citylimits.ID, citylimits.EnvURL, citylimits.DefaultURL)
	car := cfg.Endpoint(carrental.ID, carrental.EnvURL, carrental.DefaultURL)
	xe := cfg.Endpoint(exchange.ID, exchange.EnvURL, exchange.DefaultURL)

	return []orchestrator.Source{
		{ID: kilometric.ID, Output: "kilometric-rates.json", Endpoint: km.URL, EnvVar: km.EnvVar,
			Extractor: kilometric.New(f, km)},
		{ID: domestic.ID, Output: "domestic-allowances.json", Endpoint: dom.URL, EnvVar: dom.EnvVar,
			Extractor: domestic.New(f, dom)},
		{ID: international.ID, Output: "international-allowances.json", Endpoint: intl.URL, EnvVar: intl.EnvVar,
			Extractor: international.New(f, intl)},
		{ID: citylimits.ID, Output: "city-rate-limits.json", Endpoint: city.URL, EnvVar: city.EnvVar,
			Extractor: citylimits.New(f, city)},
		{ID: carrental.ID, Output: "car-rental-rates.json", Optional: true, Endpoint: car.URL, EnvVar: car.EnvVar,
			Extractor: carrental.New(f, car, cfg.SourceParams(carrental.ID, carrental.EnvParams))},
		{ID: exchange.ID, Output: "exchange-rates.json", Optional: true, Endpoint: xe.URL, EnvVar: xe.EnvVar,
			Extractor: exchange.New(f, xe, cfg.SourceParams(exchange.ID, exchange.EnvParams))},
	}
}

// WriteMetrics dumps the run metrics when a metrics file is configured.
func (a *Application) WriteMetrics() error {
	if a.Config.MetricsFile == "" {
		return nil
	}
	if err := a.Metrics.WriteTextfile(a.Config.MetricsFile); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	a.Logger.Debug().Str("path", a.Config.MetricsFile).Msg("Metrics written")
	return nil
}

// Close releases the cache and writes pending metrics. Errors are logged.
func (a *Application) Close(ctx context.Context) error {
	if err := a.WriteMetrics(); err != nil {
		a.Logger.Warn().Err(err).Msg("Error writing metrics")
	}
	if a.Cache != nil {
		a.Cache.Close()
	}

	if mc, ok := a.Cache.(*cache.MemoryCache); ok {
		a.Logger.Debug().Fields(mc.Stats()).Msg("Memory cache statistics")
	}

	stats := a.Fetcher.Stats()
	a.Logger.Debug().
		Int64("requests", stats.Requests).
		Int64("cache_hits", stats.CacheHits).
		Int("hosts", a.RateLimiter.Hosts()).
		Dur("uptime", a.Uptime()).
		Msg("Application shutdown complete")
	return nil
}

// Uptime returns how long the application has been running.
func (a *Application) Uptime() time.Duration {
	return time.Since(a.startTime)
}
