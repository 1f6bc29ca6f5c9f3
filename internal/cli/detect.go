// Package cli — detect.go implements the "devpreview detect" command.
//
// The detect command runs framework detection on a project directory
// and prints the resulting profile without starting anything. It is the
// dry-run counterpart of start: the profile it prints is exactly the
// profile start would launch with, including the per-project override
// file.
package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/devpreview/internal/config"
	"github.com/shinji-kodama/devpreview/internal/detect"
	"github.com/shinji-kodama/devpreview/internal/model"
)

// NewDetectCommand creates the "detect" cobra command.
func NewDetectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "detect [path]",
		Short: "Detect the project's framework and dev-server command",
		Long: `Inspect the project at the given path (default: the current directory)
and print the detected framework, package manager, dev script, and
preferred port — without starting the server.

Examples:
  devpreview detect
  devpreview detect ./apps/web --json`,

		Args: cobra.MaximumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			return runDetect(root)
		},
	}
}

// runDetect resolves the profile and prints it.
func runDetect(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("invalid project path %q", root), err)
	}

	profile, err := detectProject(abs)
	if err != nil {
		return err
	}

	override, err := config.LoadOverride(abs)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "invalid project override file", err)
	}
	if override != nil {
		profile = config.ApplyOverride(profile, override)
	}

	printProfile(profile)
	return nil
}

// detectProject runs manifest detection on an absolute project root.
// Shared by the detect and start commands so both always agree on the
// profile.
func detectProject(absRoot string) (model.ProjectProfile, error) {
	VerboseLog("Inspecting %s", absRoot)
	profile, err := detect.Detect(absRoot)
	if err != nil {
		return model.ProjectProfile{}, err
	}
	return profile, nil
}

// printProfile outputs the detection result in text or JSON format.
func printProfile(profile model.ProjectProfile) {
	if IsJSONOutput() {
		data, _ := json.MarshalIndent(profile, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Printf("Framework:        %s\n", profile.Framework)
	fmt.Printf("Package manager:  %s\n", profile.PackageManager)
	fmt.Printf("Dev script:       %s\n", profile.DevScript)
	fmt.Printf("Preferred port:   %d\n", profile.PreferredPort)
	if len(profile.CommandOverride) > 0 {
		fmt.Printf("Command override: %v\n", profile.CommandOverride)
	}
	fmt.Printf("Command:          %v\n", profile.Command())
}
