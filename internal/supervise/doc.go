// Package supervise spawns and supervises dev-server processes.
//
// The Supervisor owns process lifecycle: it builds the invocation from
// a ProjectProfile, injects the resolved port and a development-mode
// flag into the environment, captures stdio (never inherited, so the
// child cannot steal the host terminal), and registers the session in
// the shared registry keyed by port.
//
// Teardown is bounded: a graceful interrupt with a poll window, then —
// when forced — an unconditional kill with a second, shorter window.
// The registry entry is removed unconditionally once Stop returns,
// whether or not termination was graceful, so stop is idempotent and
// the registry never leaks entries.
//
// Exit handling is ordered: when the process exits, the registry entry
// is removed first, the exit code is recorded, and only then are the
// session's observers notified. No caller can observe a half-updated
// session.
package supervise
