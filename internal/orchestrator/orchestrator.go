// Package orchestrator runs the source extractors in order, persists one
// artifact per source and the manifest indexing them.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/travelsaas/ratescrape/internal/engine"
	"github.com/travelsaas/ratescrape/internal/monitoring"
	"github.com/travelsaas/ratescrape/internal/runctx"
	"github.com/travelsaas/ratescrape/internal/utils/output"
	"github.com/travelsaas/ratescrape/pkg/models"
)

// ManifestFile is the manifest name inside the output directory.
const ManifestFile = "manifest.json"

// Source is one configured scrape target.
type Source struct {
	ID       string
	Output   string
	Optional bool
	// Endpoint and EnvVar are informational; the extractor resolves its own.
	Endpoint  string
	EnvVar    string
	Extractor engine.Extractor
}

// Result reports what happened to one source.
type Result struct {
	Source  Source
	Data    *models.TableData
	Path    string
	Changed bool
	Skipped bool
	Err     error
	Elapsed time.Duration
}

// Observer is notified around every source extraction.
type Observer interface {
	SourceStarted(src Source)
	SourceFinished(res Result)
}

type Options struct {
	OutputDir string
	Observer  Observer
	Metrics   *monitoring.Metrics
	Now       func() time.Time
}

type Orchestrator struct {
	sources []Source
	opts    Options
}

func New(sources []Source, opts Options) *Orchestrator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{sources: sources, opts: opts}
}

// Sources returns the configured sources in run order.
func (o *Orchestrator) Sources() []Source {
	return append([]Source(nil), o.sources...)
}

func (o *Orchestrator) ManifestPath() string {
	return filepath.Join(o.opts.OutputDir, ManifestFile)
}

// RunAll extracts every source in order and writes the manifest. An optional
// source without configured endpoint is skipped; any other failure aborts the
// run and is returned as is.
func (o *Orchestrator) RunAll(ctx context.Context) (*models.Manifest, error) {
	if runctx.FromContext(ctx).RunID == "unknown" {
		ctx = runctx.WithRun(ctx)
	}
	logger := log.With().Str("run_id", runctx.FromContext(ctx).RunID).Logger()
	previous := o.previousManifest()

	logger.Info().
		Int("sources", len(o.sources)).
		Str("output_dir", o.opts.OutputDir).
		Msg("Starting scrape run")

	var entries []models.ManifestEntry
	for _, src := range o.sources {
		res, err := o.runSource(ctx, src, previous)
		if err != nil {
			return nil, err
		}
		if res.Skipped {
			continue
		}
		entries = append(entries, models.EntryFor(src.ID, res.Data))
	}

	manifest, err := models.NewManifest(o.opts.Now(), entries)
	if err != nil {
		return nil, engine.NewValidationError(err)
	}
	if err := output.WriteJSON(o.ManifestPath(), manifest); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	logger.Info().
		Int("written", len(entries)).
		Str("path", o.ManifestPath()).
		Msg("Manifest written")
	return manifest, nil
}

// RunSources extracts only the named sources and leaves the manifest
// untouched. Overrides are applied to extractors that accept parameters.
func (o *Orchestrator) RunSources(ctx context.Context, ids []string, overrides map[string]engine.Params) ([]Result, error) {
	selected := make([]Source, 0, len(ids))
	for _, id := range ids {
		src, ok := o.Lookup(id)
		if !ok {
			return nil, fmt.Errorf("unknown source %q", id)
		}
		selected = append(selected, src)
	}
	for id, params := range overrides {
		src, ok := o.Lookup(id)
		if !ok {
			return nil, fmt.Errorf("unknown source %q", id)
		}
		po, ok := src.Extractor.(engine.ParamsOverrider)
		if !ok {
			return nil, fmt.Errorf("source %q does not accept parameters", id)
		}
		po.OverrideParams(params)
	}

	if runctx.FromContext(ctx).RunID == "unknown" {
		ctx = runctx.WithRun(ctx)
	}
	previous := o.previousManifest()

	results := make([]Result, 0, len(selected))
	for _, src := range selected {
		res, err := o.runSource(ctx, src, previous)
		results = append(results, res)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// Lookup finds a configured source by id.
func (o *Orchestrator) Lookup(id string) (Source, bool) {
	for _, s := range o.sources {
		if s.ID == id {
			return s, true
		}
	}
	return Source{}, false
}

func (o *Orchestrator) runSource(ctx context.Context, src Source, previous *models.Manifest) (Result, error) {
	logger := log.With().
		Str("run_id", runctx.FromContext(ctx).RunID).
		Str("source", src.ID).
		Logger()

	if o.opts.Observer != nil {
		o.opts.Observer.SourceStarted(src)
	}

	start := time.Now()
	td, err := src.Extractor.Extract(ctx)
	res := Result{Source: src, Elapsed: time.Since(start)}

	if err != nil {
		res.Err = err
		if src.Optional && engine.IsMissingConfig(err) {
			res.Skipped = true
			logger.Warn().Err(err).Msg("Skipping optional source")
			if o.opts.Metrics != nil {
				o.opts.Metrics.ObserveSkipped(src.ID)
			}
			o.finished(res)
			return res, nil
		}

		ev := logger.Error().
			Err(err).
			Str("code", string(engine.CodeOf(err)))
		var ee *engine.EngineError
		if errors.As(err, &ee) && ee.GetStatusCode() > 0 {
			ev = ev.Int("status", ee.GetStatusCode())
		}
		ev.Msg("Source failed")
		if o.opts.Metrics != nil {
			o.opts.Metrics.ObserveFailure(src.ID, string(engine.CodeOf(err)), res.Elapsed)
		}
		o.finished(res)
		return res, err
	}

	res.Data = td
	res.Path = filepath.Join(o.opts.OutputDir, src.Output)
	if err := output.WriteJSON(res.Path, td); err != nil {
		res.Err = fmt.Errorf("write %s: %w", src.Output, err)
		o.finished(res)
		return res, res.Err
	}

	prev, seen := previous.Lookup(src.ID)
	res.Changed = !seen || prev.Hash != td.Hash

	logger.Info().
		Int("rows", len(td.Rows)).
		Str("hash", td.Hash).
		Bool("changed", res.Changed).
		Dur("elapsed", res.Elapsed).
		Str("path", res.Path).
		Msg("Source written")

	if o.opts.Metrics != nil {
		o.opts.Metrics.ObserveSuccess(src.ID, len(td.Rows), res.Changed, res.Elapsed, o.opts.Now())
	}
	o.finished(res)
	return res, nil
}

func (o *Orchestrator) finished(res Result) {
	if o.opts.Observer != nil {
		o.opts.Observer.SourceFinished(res)
	}
}

// previousManifest loads the manifest of the last successful run. A missing
// or unreadable manifest means every source counts as changed.
func (o *Orchestrator) previousManifest() *models.Manifest {
	m, err := ReadManifest(o.ManifestPath())
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Msg("Ignoring unreadable previous manifest")
		}
		return nil
	}
	return m
}

// ReadManifest loads and validates a manifest file.
func ReadManifest(path string) (*models.Manifest, error) {
	var m models.Manifest
	if err := output.ReadJSON(path, &m); err != nil {
		return nil, err
	}
	if err := models.ValidateManifest(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ReadArtifact loads a persisted source table and checks its hash.
func ReadArtifact(path string) (*models.TableData, error) {
	var td models.TableData
	if err := output.ReadJSON(path, &td); err != nil {
		return nil, err
	}
	if err := models.Validate(&td); err != nil {
		return nil, err
	}
	return &td, nil
}
