package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"

	"github.com/driftwatch/driftwatch/internal/infrastructure/governor"
)

// sourcesFile is the on-disk schema for source limits.
type sourcesFile struct {
	Sources map[string]sourceSpec `json:"sources" yaml:"sources" toml:"sources"`
}

// sourceSpec mirrors governor.Limits with durations as strings so the same
// schema parses identically from YAML, TOML, and JSON.
type sourceSpec struct {
	RequestsPerWindow int    `json:"requests_per_window" yaml:"requests_per_window" toml:"requests_per_window"`
	Window            string `json:"window" yaml:"window" toml:"window"`
	MaxConcurrent     int    `json:"max_concurrent" yaml:"max_concurrent" toml:"max_concurrent"`
	MinInterval       string `json:"min_interval" yaml:"min_interval" toml:"min_interval"`
}

func (s sourceSpec) toLimits() (governor.Limits, error) {
	window, err := parseDuration(s.Window)
	if err != nil {
		return governor.Limits{}, fmt.Errorf("invalid window: %w", err)
	}
	interval, err := parseDuration(s.MinInterval)
	if err != nil {
		return governor.Limits{}, fmt.Errorf("invalid min_interval: %w", err)
	}
	return governor.Limits{
		RequestsPerWindow: s.RequestsPerWindow,
		Window:            window,
		MaxConcurrent:     s.MaxConcurrent,
		MinInterval:       interval,
	}, nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// LoadSources reads per-source limits from a YAML, TOML, or JSON file,
// selected by extension.
func LoadSources(path string) (map[string]governor.Limits, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}

	var file sourcesFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &file)
	case ".toml":
		err = toml.Unmarshal(data, &file)
	case ".json":
		err = sonic.Unmarshal(data, &file)
	default:
		return nil, fmt.Errorf("unsupported sources format: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse sources file: %w", err)
	}
	if len(file.Sources) == 0 {
		return nil, fmt.Errorf("sources file %s defines no sources", path)
	}

	limits := make(map[string]governor.Limits, len(file.Sources))
	for name, spec := range file.Sources {
		l, err := spec.toLimits()
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", name, err)
		}
		limits[name] = l
	}
	return limits, nil
}

// DefaultSources returns the built-in limits for the market data APIs the
// watcher polls out of the box.
func DefaultSources() map[string]governor.Limits {
	return map[string]governor.Limits{
		"coingecko": {
			RequestsPerWindow: 30,
			Window:            time.Minute,
			MaxConcurrent:     4,
			MinInterval:       500 * time.Millisecond,
		},
		"coindesk": {
			RequestsPerWindow: 60,
			Window:            time.Minute,
			MaxConcurrent:     8,
			MinInterval:       100 * time.Millisecond,
		},
		"binance": {
			RequestsPerWindow: 1200,
			Window:            time.Minute,
			MaxConcurrent:     16,
		},
		"kraken": {
			RequestsPerWindow: 15,
			Window:            time.Minute,
			MaxConcurrent:     2,
			MinInterval:       time.Second,
		},
	}
}
