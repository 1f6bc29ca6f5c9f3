// Package cli — start.go implements the "devpreview start" command.
//
// The start command detects the project in the given directory (or the
// current one), allocates a port under the framework's conflict policy,
// launches the dev server, waits for readiness, and then stays in the
// foreground streaming status until the server exits or the user
// interrupts with Ctrl-C. Interrupt triggers a graceful teardown of
// every managed session before the command returns.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/devpreview/internal/config"
	"github.com/shinji-kodama/devpreview/internal/model"
	"github.com/shinji-kodama/devpreview/internal/port"
	"github.com/shinji-kodama/devpreview/internal/preview"
)

// Status line styles for the foreground text output.
var (
	styleStarting = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))            // yellow
	styleRunning  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true) // green
	styleStopping = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))             // grey
	styleURL      = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Underline(true)
)

// NewStartCommand creates the "start" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewStartCommand() *cobra.Command {
	var (
		portFlag int
		modeFlag string
	)

	cmd := &cobra.Command{
		Use:   "start [path]",
		Short: "Detect the project and launch its dev server on a managed port",
		Long: `Detect the framework of the project at the given path (default: the
current directory), allocate a port under the framework's conflict
policy, launch the dev server, and print the preview URL once the
server is ready.

The command stays in the foreground until the server exits or you
press Ctrl-C, which shuts the server down gracefully.

Examples:
  devpreview start
  devpreview start ./apps/web --port 4000
  devpreview start --mode aggressive --json`,

		// At most one positional argument: the project directory.
		Args: cobra.MaximumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			return runStart(cmd.Context(), root, portFlag, modeFlag)
		},
	}

	cmd.Flags().IntVarP(&portFlag, "port", "p", 0, "Preferred port (overrides detection)")
	cmd.Flags().StringVarP(&modeFlag, "mode", "m", "", "Conflict mode: cooperative, aggressive, or ask")

	return cmd
}

// runStart is the main logic function for the start command.
func runStart(ctx context.Context, root string, portFlag int, modeFlag string) error {
	// Step 1: Build the project profile from detection plus overrides.
	profile, err := resolveProfile(root, portFlag)
	if err != nil {
		return err
	}

	VerboseLog("Detected %s project (manager: %s, script: %s)",
		profile.Framework, profile.PackageManager, profile.DevScript)

	// Step 2: Load settings; the --mode flag beats the file's default.
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if modeFlag != "" {
		if _, perr := model.ParseConflictMode(modeFlag); perr != nil {
			return model.WrapCLIError(model.ExitGeneralError, "invalid --mode", perr)
		}
		settings.DefaultMode = modeFlag
	}

	// Step 3: Wire the orchestrator. Ctrl-C cancels the context, which
	// both aborts a pending start and triggers teardown below.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := preview.NewManager(settings)
	manager.SetLogf(VerboseLog)
	manager.SetConflictResolver(promptConflict)
	if !IsJSONOutput() {
		manager.SetStatusListener(printStatusLine)
	}

	status, err := manager.StartPreview(ctx, profile)
	if err != nil {
		if ctx.Err() != nil {
			return model.NewCLIError(model.ExitUserCancelled, "start cancelled")
		}
		return err
	}

	if IsJSONOutput() {
		printStatusJSON(status)
	}

	// Step 4: Stay in the foreground until the server exits on its own
	// or the user interrupts.
	waitForShutdown(ctx, manager)

	// Teardown runs on a fresh context — the signal context is already
	// cancelled when we get here via Ctrl-C.
	teardownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := manager.StopAll(teardownCtx); err != nil {
		return model.WrapCLIError(model.ExitStopFailed, "failed to stop dev server", err)
	}

	if !IsJSONOutput() {
		fmt.Println("Stopped.")
	}
	return nil
}

// resolveProfile runs framework detection on the project root and
// layers the per-project override file and the --port flag on top.
func resolveProfile(root string, portFlag int) (model.ProjectProfile, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return model.ProjectProfile{}, model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("invalid project path %q", root), err)
	}

	profile, err := detectProject(abs)
	if err != nil {
		return model.ProjectProfile{}, err
	}

	override, err := config.LoadOverride(abs)
	if err != nil {
		return model.ProjectProfile{}, model.WrapCLIError(model.ExitGeneralError,
			"invalid project override file", err)
	}
	if override != nil {
		VerboseLog("Applying %s overrides", config.OverrideFileName)
		profile = config.ApplyOverride(profile, override)
	}

	if portFlag != 0 {
		profile.PreferredPort = portFlag
	}
	return profile, nil
}

// waitForShutdown blocks until the context is cancelled (Ctrl-C) or the
// manager drops back to Idle because the server exited by itself.
func waitForShutdown(ctx context.Context, manager *preview.Manager) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if manager.CurrentStatus().State == model.StateIdle {
				return
			}
		}
	}
}

// promptConflict is the ask-mode conflict resolver: it asks the user on
// the terminal what to do with a busy preferred port.
func promptConflict(busyPort int, profile model.ProjectProfile) (port.ConflictDecision, error) {
	fmt.Fprintf(os.Stderr, "Port %d is already in use for this %s project.\n",
		busyPort, profile.Framework)
	fmt.Fprint(os.Stderr, "  [r] reuse the running server  [f] pick another port  [a] abort\n> ")

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return port.DecisionAbort, fmt.Errorf("reading conflict answer: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "r", "reuse":
		return port.DecisionReuse, nil
	case "f", "fallback", "":
		return port.DecisionFallback, nil
	case "a", "abort":
		return port.DecisionAbort, nil
	default:
		return port.DecisionFallback, nil
	}
}

// printStatusLine renders one human-readable line per state transition.
func printStatusLine(st model.PreviewStatus) {
	switch st.State {
	case model.StateStarting:
		fmt.Printf("%s %s dev server...\n", styleStarting.Render("Starting"), st.Framework)
	case model.StateRunning:
		fmt.Printf("%s on port %d — %s\n",
			styleRunning.Render("Running"), st.Port, styleURL.Render(st.URL))
	case model.StateStopping:
		fmt.Println(styleStopping.Render("Stopping..."))
	case model.StateIdle:
		if st.Message != "" {
			fmt.Printf("Server exited: %s\n", st.Message)
		}
	}
}

// printStatusJSON emits the status as a single JSON document on stdout.
func printStatusJSON(st model.PreviewStatus) {
	data, _ := json.MarshalIndent(st, "", "  ")
	fmt.Println(string(data))
}
