// Package cli — cli_test.go contains unit tests for the pure helper
// functions used by the CLI commands.
//
// These tests verify profile resolution and command wiring without
// spawning any dev-server processes.
package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/devpreview/internal/config"
	"github.com/shinji-kodama/devpreview/internal/model"
)

// writeProject creates a minimal project directory with the given
// package.json content.
func writeProject(t *testing.T, manifest string) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "package.json"), []byte(manifest), 0o644))
	return root
}

// TestResolveProfile_Detection verifies that resolveProfile produces
// the detected profile when no override file or flag is present.
func TestResolveProfile_Detection(t *testing.T) {
	root := writeProject(t, `{
		"dependencies": {"vite": "^5.0.0"},
		"scripts": {"dev": "vite"}
	}`)

	profile, err := resolveProfile(root, 0)
	require.NoError(t, err)

	assert.Equal(t, model.FrameworkVite, profile.Framework)
	assert.Equal(t, 5173, profile.PreferredPort)
	assert.Equal(t, "dev", profile.DevScript)
}

// TestResolveProfile_OverrideFile verifies that the per-project
// override file is layered on top of detection.
func TestResolveProfile_OverrideFile(t *testing.T) {
	root := writeProject(t, `{
		"dependencies": {"vite": "^5.0.0"},
		"scripts": {"dev": "vite"}
	}`)
	require.NoError(t, os.WriteFile(filepath.Join(root, config.OverrideFileName),
		[]byte(`{"port": 4100}`), 0o644))

	profile, err := resolveProfile(root, 0)
	require.NoError(t, err)
	assert.Equal(t, 4100, profile.PreferredPort)
}

// TestResolveProfile_PortFlagWins verifies the precedence order: the
// --port flag beats both detection and the override file.
func TestResolveProfile_PortFlagWins(t *testing.T) {
	root := writeProject(t, `{"scripts": {"dev": "node server.js"}}`)
	require.NoError(t, os.WriteFile(filepath.Join(root, config.OverrideFileName),
		[]byte(`{"port": 4100}`), 0o644))

	profile, err := resolveProfile(root, 9999)
	require.NoError(t, err)
	assert.Equal(t, 9999, profile.PreferredPort)
}

// TestResolveProfile_MissingManifest verifies that a directory without
// package.json maps to the project-not-found exit code.
func TestResolveProfile_MissingManifest(t *testing.T) {
	_, err := resolveProfile(t.TempDir(), 0)
	require.Error(t, err)

	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitProjectNotFound, cliErr.Code)
}

// TestNewRootCommand_Wiring verifies that every subcommand is
// registered on the root command.
func TestNewRootCommand_Wiring(t *testing.T) {
	root := NewRootCommand()

	names := make(map[string]bool)
	for _, sub := range root.Commands() {
		names[sub.Name()] = true
	}

	for _, want := range []string{"start", "detect", "frameworks", "probe"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("json"))
	assert.NotNil(t, root.PersistentFlags().Lookup("verbose"))
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}
