// Package cli — frameworks.go implements the "devpreview frameworks"
// command, which prints the built-in framework policy table: the
// default preferred port, fallback ports, and dev script per supported
// framework, with any settings-file overrides applied.
package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/devpreview/internal/detect"
	"github.com/shinji-kodama/devpreview/internal/model"
)

var styleHeader = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))

// NewFrameworksCommand creates the "frameworks" cobra command.
func NewFrameworksCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "frameworks",
		Short: "List supported frameworks and their port policies",
		Long: `List every framework devpreview can detect, along with the preferred
port, fallback ports, and dev script each one uses by default.
Policies overridden in the settings file are shown as effective values.

Examples:
  devpreview frameworks
  devpreview frameworks --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runFrameworks()
		},
	}
}

// runFrameworks prints the effective policy table.
func runFrameworks() error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	type row struct {
		Framework model.Framework `json:"framework"`
		Preferred int             `json:"preferredPort"`
		Fallbacks []int           `json:"fallbackPorts"`
		DevScript string          `json:"devScript"`
		Mode      string          `json:"mode"`
	}

	rows := make([]row, 0, len(model.KnownFrameworks()))
	for _, f := range model.KnownFrameworks() {
		defaults := detect.DefaultsFor(f)
		policy := settings.PolicyFor(f)
		rows = append(rows, row{
			Framework: f,
			Preferred: policy.Preferred,
			Fallbacks: policy.Fallbacks,
			DevScript: defaults.DevScript,
			Mode:      string(policy.Mode),
		})
	}

	if IsJSONOutput() {
		data, _ := json.MarshalIndent(rows, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	fmt.Println(styleHeader.Render(fmt.Sprintf("%-12s %-10s %-22s %-10s %s",
		"FRAMEWORK", "PREFERRED", "FALLBACKS", "SCRIPT", "MODE")))
	for _, r := range rows {
		fallbacks := make([]string, 0, len(r.Fallbacks))
		for _, p := range r.Fallbacks {
			fallbacks = append(fallbacks, fmt.Sprintf("%d", p))
		}
		fmt.Printf("%-12s %-10d %-22s %-10s %s\n",
			r.Framework, r.Preferred, strings.Join(fallbacks, ", "), r.DevScript, r.Mode)
	}
	return nil
}
