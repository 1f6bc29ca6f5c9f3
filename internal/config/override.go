// override.go loads the optional per-project override file,
// .devpreview.json. The file is JSONC — comments and trailing commas
// are fine — and lets a project pin anything detection would normally
// decide: framework, package manager, script, port, or the entire
// command line.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"

	"github.com/shinji-kodama/devpreview/internal/model"
)

// OverrideFileName is looked up in the project root.
const OverrideFileName = ".devpreview.json"

// ProjectOverride is the shape of .devpreview.json. Every field is
// optional; zero values leave the detected profile untouched.
type ProjectOverride struct {
	// Framework pins the framework ("next", "vite", ..., "generic").
	Framework string `json:"framework,omitempty"`

	// PackageManager pins the executable used to run the dev script.
	PackageManager string `json:"packageManager,omitempty"`

	// DevScript pins the package.json script name.
	DevScript string `json:"devScript,omitempty"`

	// Port pins the requested port.
	Port int `json:"port,omitempty"`

	// Command replaces the package-manager invocation entirely (argv).
	Command []string `json:"command,omitempty"`
}

// LoadOverride reads the project's override file. Returns nil (no
// error) when the file does not exist.
func LoadOverride(root string) (*ProjectOverride, error) {
	path := filepath.Join(root, OverrideFileName)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var override ProjectOverride
	if err := json.Unmarshal(jsonc.ToJSON(raw), &override); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if override.Framework != "" {
		if _, err := model.ParseFramework(override.Framework); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	if override.Port < 0 || override.Port > 65535 {
		return nil, fmt.Errorf("%s: port %d out of range (1-65535)", path, override.Port)
	}
	return &override, nil
}

// ApplyOverride overlays a project override onto a detected profile.
// A nil override returns the profile unchanged.
func ApplyOverride(profile model.ProjectProfile, override *ProjectOverride) model.ProjectProfile {
	if override == nil {
		return profile
	}

	if override.Framework != "" {
		if f, err := model.ParseFramework(override.Framework); err == nil {
			profile.Framework = f
		}
	}
	if override.PackageManager != "" {
		profile.PackageManager = override.PackageManager
	}
	if override.DevScript != "" {
		profile.DevScript = override.DevScript
	}
	if override.Port > 0 {
		profile.PreferredPort = override.Port
	}
	if len(override.Command) > 0 {
		profile.CommandOverride = override.Command
	}
	return profile
}
