// Package cli implements the cobra-based CLI commands for devpreview.
//
// Each subcommand (start, detect, frameworks, probe) is defined in its
// own file within this package. This file defines the root command that
// serves as the parent for all subcommands and handles global flags.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/devpreview/internal/config"
	"github.com/shinji-kodama/devpreview/internal/model"
)

// Flags bound to cobra persistent flags on the root command, shared by
// every subcommand.
var (
	// jsonOutput switches command output from human-readable text to
	// structured JSON for machine consumption.
	jsonOutput bool

	// verbose enables diagnostic stderr output. The settings file can
	// also turn it on (see loadSettings); the flag and the file are OR-ed.
	verbose bool

	// configPath points at an alternative settings file. Empty means the
	// default location under the user config directory.
	configPath string
)

// version, commit, and date are set at build time via ldflags.
// They are injected from the main package to display version information.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
// This is the entry point for the entire CLI application.
//
// The root command itself does not perform any action — it only provides
// help text and global flags. Actual functionality is provided by
// subcommands (start, detect, frameworks, probe).
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		// Use is the one-line usage pattern shown in help output.
		Use:   "devpreview",
		Short: "Dev-server preview orchestrator with automatic port management",
		Long: `devpreview detects a web project's framework, allocates a free port
according to the framework's conflict policy, launches the dev server,
and reports the preview URL once the server is ready.

Port conflicts are resolved cooperatively (fall back to another port),
aggressively (reclaim the port), or interactively, per configuration.`,

		// Error and usage output is handled by printError (text or JSON
		// per --json), so cobra's automatic printing stays off.
		SilenceUsage:  true,
		SilenceErrors: true,

		// Version is displayed when --version flag is used.
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),
	}

	// Persistent flags are inherited by every subcommand.
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the settings file")

	// Each subcommand lives in its own file and returns a *cobra.Command.
	rootCmd.AddCommand(NewStartCommand())
	rootCmd.AddCommand(NewDetectCommand())
	rootCmd.AddCommand(NewFrameworksCommand())
	rootCmd.AddCommand(NewProbeCommand())

	return rootCmd
}

// Execute runs the root command and exits the process with the code the
// error maps to. Called from main.go.
//
// A CLIError at the top level prints its message with the underlying
// cause split out; anything else (including wrapped domain errors like
// PortExhaustedError) prints as-is and maps through model.ExitCodeFor,
// so `devpreview start` failing on port exhaustion exits 4 even when
// the facade has wrapped the error.
func Execute(rootCmd *cobra.Command) {
	if err := rootCmd.Execute(); err != nil {
		if cliErr, ok := err.(*model.CLIError); ok {
			printError(cliErr.Message, cliErr.Err)
			os.Exit(int(cliErr.Code))
		}

		printError(err.Error(), nil)
		os.Exit(int(model.ExitCodeFor(err)))
	}
}

// loadSettings reads the settings file honoring the --config flag and
// folds the file's verbose default into the CLI flag.
func loadSettings() (*config.Settings, error) {
	settings, err := config.Load(configPath)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError, "failed to load settings", err)
	}
	if settings.Verbose {
		verbose = true
	}
	return settings, nil
}

// printError writes the error to stderr as text or JSON per the --json
// flag. Errors go to stderr even in JSON mode; stdout carries only
// successful command output (start's status document, probe results).
func printError(message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		if underlying != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, underlying)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %s\n", message)
		}
	}
}

// VerboseLog prints to stderr when verbose mode is on. It doubles as
// the Logf sink handed to the engine packages (manager.SetLogf), so
// --verbose surfaces allocator/supervisor/detector diagnostics too.
func VerboseLog(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[verbose] "+format+"\n", args...)
	}
}

// IsJSONOutput reports whether the --json flag is set.
func IsJSONOutput() bool {
	return jsonOutput
}
