// occupant.go resolves which OS process occupies a TCP port and
// terminates it on behalf of aggressive-mode allocation. It consults
// the OS socket table through gopsutil rather than shelling out to
// lsof/ss, which behave differently across platforms and may require
// elevated permissions.
package port

import (
	"context"
	"fmt"
	"os"
	"time"

	gopsnet "github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"
)

// occupantGrace bounds how long a forced termination waits after the
// graceful signal before escalating to kill.
const occupantGrace = 3 * time.Second

// FindOccupantPID returns the PID of the process listening on the given
// TCP port, or an error if none can be identified. Identification can
// legitimately fail without elevated privileges — callers treat that as
// "cannot reclaim, fall back".
func FindOccupantPID(ctx context.Context, port int) (int32, error) {
	conns, err := gopsnet.ConnectionsWithContext(ctx, "tcp")
	if err != nil {
		return 0, fmt.Errorf("reading socket table: %w", err)
	}

	for _, conn := range conns {
		if conn.Status == "LISTEN" && int(conn.Laddr.Port) == port && conn.Pid > 0 {
			return conn.Pid, nil
		}
	}
	return 0, fmt.Errorf("no identifiable listener on port %d", port)
}

// TerminateOccupant identifies the process listening on the port and
// terminates it: graceful termination first, then kill after a bounded
// wait. It refuses to touch the current process.
//
// This is the default Terminator wired into the Allocator for
// aggressive mode.
func TerminateOccupant(ctx context.Context, port int) error {
	pid, err := FindOccupantPID(ctx, port)
	if err != nil {
		return err
	}
	if int(pid) == os.Getpid() {
		return fmt.Errorf("port %d is held by this process", port)
	}

	proc, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return fmt.Errorf("inspecting pid %d: %w", pid, err)
	}

	if err := proc.TerminateWithContext(ctx); err != nil {
		return fmt.Errorf("terminating pid %d: %w", pid, err)
	}

	// Poll for the process to go away before escalating.
	deadline := time.Now().Add(occupantGrace)
	for time.Now().Before(deadline) {
		running, err := proc.IsRunningWithContext(ctx)
		if err != nil || !running {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}

	if err := proc.KillWithContext(ctx); err != nil {
		return fmt.Errorf("killing pid %d: %w", pid, err)
	}
	return nil
}
