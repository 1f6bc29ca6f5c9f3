// Package cli — probe.go implements the "devpreview probe" command.
//
// The probe command checks a single port the same way the allocator
// does: a real bind attempt, plus an OS socket-table lookup for the PID
// of whatever is listening when the bind fails. Useful for diagnosing
// why start keeps falling back.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/devpreview/internal/model"
	"github.com/shinji-kodama/devpreview/internal/port"
)

// NewProbeCommand creates the "probe" cobra command.
func NewProbeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "probe <port>",
		Short: "Check whether a port is free and who occupies it",
		Long: `Attempt a real bind on the given port and report the result. When the
port is busy, the listening process's PID is looked up from the OS
socket table.

Examples:
  devpreview probe 3000
  devpreview probe 5173 --json`,

		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := strconv.Atoi(args[0])
			if err != nil || p < 1 || p > 65535 {
				return model.NewCLIError(model.ExitGeneralError,
					fmt.Sprintf("invalid port %q (must be 1-65535)", args[0]))
			}
			return runProbe(cmd.Context(), p)
		},
	}
}

// runProbe checks the port and prints the result.
func runProbe(ctx context.Context, p int) error {
	prober := port.NewProber()
	free := prober.IsFree(p)

	var pid int32
	if !free {
		lookupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		occupant, err := port.FindOccupantPID(lookupCtx, p)
		if err != nil {
			VerboseLog("occupant lookup failed: %v", err)
		} else {
			pid = occupant
		}
	}

	if IsJSONOutput() {
		result := struct {
			Port int   `json:"port"`
			Free bool  `json:"free"`
			PID  int32 `json:"pid,omitempty"`
		}{Port: p, Free: free, PID: pid}
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	if free {
		fmt.Printf("Port %d is free\n", p)
		return nil
	}
	if pid > 0 {
		fmt.Printf("Port %d is in use by PID %d\n", p, pid)
	} else {
		fmt.Printf("Port %d is in use (occupant unknown)\n", p)
	}
	return nil
}
