package detect

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
	"github.com/tidwall/jsonc"

	"github.com/shinji-kodama/devpreview/internal/model"
)

// frameworkMarkers maps a framework to the package whose presence in
// dependencies identifies it. Checked in KnownFrameworks order, so
// meta-frameworks win over their underlying tooling (a SvelteKit
// project also depends on vite but must detect as SvelteKit).
var frameworkMarkers = map[model.Framework]string{
	model.FrameworkNext:      "next",
	model.FrameworkNuxt:      "nuxt",
	model.FrameworkSvelteKit: "@sveltejs/kit",
	model.FrameworkAstro:     "astro",
	model.FrameworkAngular:   "@angular/core",
	model.FrameworkCRA:       "react-scripts",
	model.FrameworkVite:      "vite",
	model.FrameworkVue:       "vue",
}

// lockfileManagers maps lockfile names to the package manager that
// owns them, in check order. npm is the fallback when no lockfile is
// found — a bare project is still runnable with npm.
var lockfileManagers = []struct {
	lockfile string
	manager  string
}{
	{"pnpm-lock.yaml", "pnpm"},
	{"yarn.lock", "yarn"},
	{"bun.lockb", "bun"},
	{"bun.lock", "bun"},
	{"package-lock.json", "npm"},
}

// Detect inspects the workspace root and builds a ProjectProfile.
// A missing package.json is an ExitProjectNotFound CLIError — the
// engine only supervises manifest-driven dev servers.
func Detect(root string) (model.ProjectProfile, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return model.ProjectProfile{}, fmt.Errorf("resolving project root: %w", err)
	}

	manifestPath := filepath.Join(absRoot, "package.json")
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return model.ProjectProfile{}, model.NewCLIError(model.ExitProjectNotFound,
				fmt.Sprintf("no package.json found in %s", absRoot))
		}
		return model.ProjectProfile{}, model.WrapCLIError(model.ExitProjectNotFound,
			"failed to read package.json", err)
	}

	// package.json is strict JSON in theory, but editors and tooling
	// leave comments and trailing commas in the wild — normalize first.
	manifest := jsonc.ToJSON(raw)

	framework := detectFramework(manifest)
	defaults := DefaultsFor(framework)

	profile := model.ProjectProfile{
		Framework:      framework,
		Root:           absRoot,
		PackageManager: detectPackageManager(absRoot),
		DevScript:      detectDevScript(manifest, defaults),
		PreferredPort:  defaults.PreferredPort,
	}
	return profile, nil
}

// detectFramework finds the first framework whose marker package is
// present in dependencies or devDependencies, in priority order.
func detectFramework(manifest []byte) model.Framework {
	for _, f := range model.KnownFrameworks() {
		marker, ok := frameworkMarkers[f]
		if !ok {
			continue // generic has no marker
		}
		// gjson path syntax treats dots as separators; escape the ones
		// inside scoped package names like "@sveltejs/kit".
		escaped := gjson.Escape(marker)
		if gjson.GetBytes(manifest, "dependencies."+escaped).Exists() ||
			gjson.GetBytes(manifest, "devDependencies."+escaped).Exists() {
			return f
		}
	}
	return model.FrameworkGeneric
}

// detectPackageManager picks the package manager from the lockfile
// present in the root, defaulting to npm.
func detectPackageManager(root string) string {
	for _, lm := range lockfileManagers {
		if _, err := os.Stat(filepath.Join(root, lm.lockfile)); err == nil {
			return lm.manager
		}
	}
	return "npm"
}

// detectDevScript prefers the project's own "dev" script, then
// "start", then the framework's conventional script name.
func detectDevScript(manifest []byte, defaults Defaults) string {
	if gjson.GetBytes(manifest, "scripts.dev").Exists() {
		return "dev"
	}
	if gjson.GetBytes(manifest, "scripts.start").Exists() {
		return "start"
	}
	return defaults.DevScript
}
