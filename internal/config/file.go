package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/rs/zerolog/log"
	"github.com/titanous/json5"
)

// File is the on-disk configuration. Durations are Go duration strings.
type File struct {
	OutputDir         string                    `json:"outputDir"`
	CacheDir          string                    `json:"cacheDir"`
	CacheTTL          string                    `json:"cacheTTL"`
	Timeout           string                    `json:"timeout"`
	UserAgent         string                    `json:"userAgent"`
	Proxy             string                    `json:"proxy"`
	RateLimitRPS      float64                   `json:"rateLimitRps"`
	RateLimitBurst    int                       `json:"rateLimitBurst"`
	MetricsFile       string                    `json:"metricsFile"`
	ExplicitEndpoints bool                      `json:"explicitEndpoints"`
	Endpoints         map[string]string         `json:"endpoints"`
	Params            map[string]map[string]any `json:"params"`
}

// localPath returns <dir>/<name>.local.<ext> for <dir>/<name>.<ext>.
func localPath(name string) string {
	dir := filepath.Dir(name)
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	prefix := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, fmt.Sprintf("%s.local%s", prefix, ext))
}

// ReadFile reads a json5 config file and merges <name>.local.<ext> over it
// when present. os.ErrNotExist is returned when neither file exists.
func ReadFile(name string) (File, error) {
	var out File
	found := false

	content, err := os.ReadFile(name)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(content) > 0 {
		if err := json5.Unmarshal(content, &out); err != nil {
			return out, fmt.Errorf("parse %s: %w", name, err)
		}
		found = true
	}

	local := localPath(name)
	content, err = os.ReadFile(local)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(content) > 0 {
		var override File
		if err := json5.Unmarshal(content, &override); err != nil {
			return out, fmt.Errorf("parse %s: %w", local, err)
		}
		if err := mergo.Merge(&out, override, mergo.WithOverride); err != nil {
			return out, err
		}
		log.Debug().Str("local", local).Msg("Merged config with local overrides")
		found = true
	}

	if !found {
		return out, os.ErrNotExist
	}
	return out, nil
}
