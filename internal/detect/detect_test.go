package detect

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/devpreview/internal/model"
)

// writeProject creates a temp workspace with the given package.json
// content and optional extra (empty) files such as lockfiles.
func writeProject(t *testing.T, manifest string, extras ...string) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "package.json"), []byte(manifest), 0o644))
	for _, name := range extras {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte{}, 0o644))
	}
	return root
}

// TestDetect_Frameworks checks the marker-package mapping for each
// known framework, including the meta-framework priority rules.
func TestDetect_Frameworks(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		expected model.Framework
	}{
		{
			name:     "next",
			manifest: `{"dependencies": {"next": "^14.0.0", "react": "^18.0.0"}}`,
			expected: model.FrameworkNext,
		},
		{
			name:     "vite via devDependencies",
			manifest: `{"devDependencies": {"vite": "^5.0.0"}}`,
			expected: model.FrameworkVite,
		},
		{
			name:     "sveltekit wins over vite",
			manifest: `{"devDependencies": {"@sveltejs/kit": "^2.0.0", "vite": "^5.0.0"}}`,
			expected: model.FrameworkSvelteKit,
		},
		{
			name:     "nuxt wins over vue",
			manifest: `{"dependencies": {"nuxt": "^3.0.0", "vue": "^3.0.0"}}`,
			expected: model.FrameworkNuxt,
		},
		{
			name:     "create react app",
			manifest: `{"dependencies": {"react-scripts": "5.0.1"}}`,
			expected: model.FrameworkCRA,
		},
		{
			name:     "angular",
			manifest: `{"dependencies": {"@angular/core": "^17.0.0"}}`,
			expected: model.FrameworkAngular,
		},
		{
			name:     "plain vue",
			manifest: `{"dependencies": {"vue": "^3.0.0"}}`,
			expected: model.FrameworkVue,
		},
		{
			name:     "unrecognized",
			manifest: `{"dependencies": {"express": "^4.0.0"}}`,
			expected: model.FrameworkGeneric,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := writeProject(t, tt.manifest)
			profile, err := Detect(root)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, profile.Framework)
			assert.Equal(t, root, profile.Root)
		})
	}
}

// TestDetect_PackageManager verifies lockfile-based package manager
// selection and the npm fallback.
func TestDetect_PackageManager(t *testing.T) {
	manifest := `{"dependencies": {"vite": "^5.0.0"}}`

	tests := []struct {
		name     string
		extras   []string
		expected string
	}{
		{"pnpm", []string{"pnpm-lock.yaml"}, "pnpm"},
		{"yarn", []string{"yarn.lock"}, "yarn"},
		{"bun", []string{"bun.lockb"}, "bun"},
		{"npm lockfile", []string{"package-lock.json"}, "npm"},
		{"no lockfile", nil, "npm"},
		{"pnpm wins over npm lockfile", []string{"pnpm-lock.yaml", "package-lock.json"}, "pnpm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := writeProject(t, manifest, tt.extras...)
			profile, err := Detect(root)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, profile.PackageManager)
		})
	}
}

// TestDetect_DevScript verifies the script preference chain:
// "dev" > "start" > framework default.
func TestDetect_DevScript(t *testing.T) {
	root := writeProject(t, `{"dependencies": {"next": "1"}, "scripts": {"dev": "next dev", "start": "next start"}}`)
	profile, err := Detect(root)
	require.NoError(t, err)
	assert.Equal(t, "dev", profile.DevScript)

	root = writeProject(t, `{"dependencies": {"react-scripts": "1"}, "scripts": {"start": "react-scripts start"}}`)
	profile, err = Detect(root)
	require.NoError(t, err)
	assert.Equal(t, "start", profile.DevScript)

	// No scripts at all: Vue CLI conventionally uses "serve".
	root = writeProject(t, `{"dependencies": {"vue": "^3.0.0"}}`)
	profile, err = Detect(root)
	require.NoError(t, err)
	assert.Equal(t, "serve", profile.DevScript)
}

// TestDetect_JSONC verifies tolerance for comments and trailing commas
// left behind by editors.
func TestDetect_JSONC(t *testing.T) {
	root := writeProject(t, `{
		// the app
		"dependencies": {
			"next": "^14.0.0",
		},
	}`)
	profile, err := Detect(root)
	require.NoError(t, err)
	assert.Equal(t, model.FrameworkNext, profile.Framework)
}

// TestDetect_MissingManifest verifies the project-not-found error and
// its exit code.
func TestDetect_MissingManifest(t *testing.T) {
	_, err := Detect(t.TempDir())
	require.Error(t, err)
	assert.Equal(t, model.ExitProjectNotFound, model.ExitCodeFor(err))
}

// TestDetect_PreferredPortFromDefaults verifies that the profile picks
// up the framework's conventional port.
func TestDetect_PreferredPortFromDefaults(t *testing.T) {
	root := writeProject(t, `{"devDependencies": {"vite": "^5.0.0"}}`)
	profile, err := Detect(root)
	require.NoError(t, err)
	assert.Equal(t, 5173, profile.PreferredPort)
}

// TestDefaultsFor_EveryFramework guards against table gaps.
func TestDefaultsFor_EveryFramework(t *testing.T) {
	for _, f := range model.KnownFrameworks() {
		d := DefaultsFor(f)
		assert.Greater(t, d.PreferredPort, 0, "framework %q needs a preferred port", f)
		assert.NotEmpty(t, d.DevScript, "framework %q needs a dev script", f)
		assert.NotEmpty(t, d.Fallbacks, "framework %q needs fallback ports", f)
	}

	// Unknown frameworks use the generic defaults.
	assert.Equal(t, DefaultsFor(model.FrameworkGeneric), DefaultsFor(model.Framework("ember")))
}
