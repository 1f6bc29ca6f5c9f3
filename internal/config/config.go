// Package config loads the devpreview configuration: a YAML settings
// file with per-framework port policies and global toggles, plus an
// optional per-project override file.
//
// The configuration is read-only from the engine's perspective — it is
// loaded at session-start time and never written back. Missing files
// are not errors; built-in defaults always produce a usable setup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/devpreview/internal/detect"
	"github.com/shinji-kodama/devpreview/internal/model"
)

// DefaultPath returns the conventional settings file location,
// honoring XDG_CONFIG_HOME when set.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "devpreview", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".devpreview.yaml")
	}
	return filepath.Join(home, ".config", "devpreview", "config.yaml")
}

// PolicySettings is the YAML shape of one framework's port policy.
// Zero fields inherit the framework's built-in defaults.
type PolicySettings struct {
	Preferred int    `yaml:"preferred,omitempty"`
	Fallbacks []int  `yaml:"fallbacks,omitempty"`
	RangeMin  int    `yaml:"rangeMin,omitempty"`
	RangeMax  int    `yaml:"rangeMax,omitempty"`
	Reserved  []int  `yaml:"reserved,omitempty"`
	Mode      string `yaml:"mode,omitempty"`
}

// ReadinessSettings bounds the readiness detection loop.
type ReadinessSettings struct {
	// MaxWaitSeconds is the total readiness budget. Default 30.
	MaxWaitSeconds int `yaml:"maxWaitSeconds,omitempty"`

	// PollIntervalMillis is the wait between check ticks. Default 1000.
	PollIntervalMillis int `yaml:"pollIntervalMillis,omitempty"`
}

// Settings is the root of the YAML settings file.
type Settings struct {
	// DefaultMode is the conflict-resolution mode applied when a
	// framework policy does not set its own. Default cooperative.
	DefaultMode string `yaml:"defaultMode,omitempty"`

	// Verbose enables diagnostic logging by default (the CLI flag
	// still wins).
	Verbose bool `yaml:"verbose,omitempty"`

	// Readiness bounds the readiness detector.
	Readiness ReadinessSettings `yaml:"readiness,omitempty"`

	// Policies overrides port policies per framework, keyed by the
	// framework name ("next", "vite", ..., "generic").
	Policies map[string]PolicySettings `yaml:"policies,omitempty"`
}

// DefaultSettings returns the built-in configuration used when no file
// exists.
func DefaultSettings() *Settings {
	return &Settings{
		DefaultMode: string(model.ModeCooperative),
		Readiness: ReadinessSettings{
			MaxWaitSeconds:     30,
			PollIntervalMillis: 1000,
		},
	}
}

// Load reads the settings file at path. A missing file yields the
// defaults; a malformed file is an error rather than a silent
// fallback, so typos in the config do not go unnoticed.
func Load(path string) (*Settings, error) {
	if path == "" {
		path = DefaultPath()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	settings := DefaultSettings()
	if err := yaml.Unmarshal(raw, settings); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if settings.DefaultMode != "" {
		if _, err := model.ParseConflictMode(settings.DefaultMode); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}
	for name, ps := range settings.Policies {
		if _, err := model.ParseFramework(name); err != nil {
			return nil, fmt.Errorf("config %s: policies: %w", path, err)
		}
		if ps.Mode != "" {
			if _, err := model.ParseConflictMode(ps.Mode); err != nil {
				return nil, fmt.Errorf("config %s: policy %q: %w", path, name, err)
			}
		}
	}
	return settings, nil
}

// PolicyFor assembles the effective PortPolicy for a framework:
// built-in framework defaults, overlaid with the file's policy entry.
func (s *Settings) PolicyFor(f model.Framework) model.PortPolicy {
	defaults := detect.DefaultsFor(f)

	// The widening range defaults to a window just above the preferred
	// port, mirroring how dev servers auto-increment on conflict.
	policy := model.PortPolicy{
		Preferred: defaults.PreferredPort,
		Fallbacks: defaults.Fallbacks,
		RangeMin:  defaults.PreferredPort,
		RangeMax:  defaults.PreferredPort + 20,
		Mode:      model.ModeCooperative,
	}
	if s.DefaultMode != "" {
		if mode, err := model.ParseConflictMode(s.DefaultMode); err == nil {
			policy.Mode = mode
		}
	}

	ps, ok := s.Policies[string(f)]
	if !ok {
		return policy
	}

	if ps.Preferred > 0 {
		policy.Preferred = ps.Preferred
	}
	if len(ps.Fallbacks) > 0 {
		policy.Fallbacks = ps.Fallbacks
	}
	if ps.RangeMin > 0 && ps.RangeMax >= ps.RangeMin {
		policy.RangeMin = ps.RangeMin
		policy.RangeMax = ps.RangeMax
	}
	if len(ps.Reserved) > 0 {
		policy.Reserved = ps.Reserved
	}
	if ps.Mode != "" {
		if mode, err := model.ParseConflictMode(ps.Mode); err == nil {
			policy.Mode = mode
		}
	}
	return policy
}

// ReadinessOptions converts the readiness settings to durations.
func (s *Settings) ReadinessOptions() (maxWait, pollInterval time.Duration) {
	maxWait = 30 * time.Second
	pollInterval = time.Second
	if s.Readiness.MaxWaitSeconds > 0 {
		maxWait = time.Duration(s.Readiness.MaxWaitSeconds) * time.Second
	}
	if s.Readiness.PollIntervalMillis > 0 {
		pollInterval = time.Duration(s.Readiness.PollIntervalMillis) * time.Millisecond
	}
	return maxWait, pollInterval
}
