// errors.go defines the error taxonomy for the devpreview engine and the
// CLI exit-code mapping.
//
// Domain failures are typed errors so callers can branch with errors.As:
//   - PortExhaustedError: no viable port found
//   - SpawnError: the dev command could not be launched
//   - ProcessCrashError: unexpected non-zero exit while running
//   - TerminationTimeoutError: graceful stop exceeded its bound
//
// Readiness timeout is deliberately NOT an error — it is a soft outcome
// carried in ReadinessResult, because killing a slow server on a false
// negative would be worse than proceeding.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ExitCode defines the CLI exit codes. These codes allow scripts and CI
// systems to programmatically determine the outcome of a command.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitProjectNotFound indicates no supported project manifest was
	// found at the given path.
	ExitProjectNotFound ExitCode = 2

	// ExitSpawnFailed indicates the dev command could not be launched
	// (executable missing, permission denied).
	ExitSpawnFailed ExitCode = 3

	// ExitPortExhausted indicates no port could be allocated from the
	// policy's preferred, fallback, and widening candidates.
	ExitPortExhausted ExitCode = 4

	// ExitStopFailed indicates a session could not be torn down cleanly.
	ExitStopFailed ExitCode = 5

	// ExitUserCancelled indicates the user aborted an interactive
	// conflict resolution.
	ExitUserCancelled ExitCode = 7
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/errors.As chains.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a CLIError without an underlying cause.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a CLIError wrapping an underlying cause.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}

// PortExhaustedError is returned when the requested port, every fallback,
// and the widening range are all unavailable or reserved.
type PortExhaustedError struct {
	// Requested is the port originally asked for.
	Requested int

	// Tried lists every candidate that was probed, in order.
	Tried []int
}

// Error implements the error interface.
func (e *PortExhaustedError) Error() string {
	return fmt.Sprintf("no available port: requested %d, tried %d candidate(s)", e.Requested, len(e.Tried))
}

// SpawnError is returned when the dev command could not be launched.
// It carries the command line and working directory for diagnostics.
type SpawnError struct {
	// Command is the argv that failed to launch.
	Command []string

	// Dir is the working directory the spawn was attempted in.
	Dir string

	// Err is the underlying OS error.
	Err error
}

// Error implements the error interface.
func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn %q in %s: %v", strings.Join(e.Command, " "), e.Dir, e.Err)
}

// Unwrap returns the underlying OS error.
func (e *SpawnError) Unwrap() error {
	return e.Err
}

// ProcessCrashError reports an unexpected process exit while the session
// was expected to keep running.
type ProcessCrashError struct {
	// Port is the registry key of the crashed session.
	Port int

	// ExitCode is the process exit code, -1 if killed by a signal.
	ExitCode int
}

// Error implements the error interface.
func (e *ProcessCrashError) Error() string {
	return fmt.Sprintf("dev server on port %d exited unexpectedly with code %d", e.Port, e.ExitCode)
}

// TerminationTimeoutError reports that a graceful stop exceeded its bound.
// It is only fatal when the caller declined forced escalation.
type TerminationTimeoutError struct {
	// Port is the registry key of the session that would not stop.
	Port int

	// Timeout is the graceful bound that elapsed.
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TerminationTimeoutError) Error() string {
	return fmt.Sprintf("dev server on port %d did not terminate within %s", e.Port, e.Timeout)
}

// classifyRules maps substrings of raw system error text to the short,
// human-readable classes surfaced to users. Raw detail stays available
// via the wrapped error; only the class is shown by default.
var classifyRules = []struct {
	needle string
	class  string
}{
	{"address already in use", "address already in use"},
	{"bind: permission denied", "address requires elevated privileges"},
	{"executable file not found", "command not found"},
	{"no such file or directory", "command not found"},
	{"permission denied", "permission denied"},
	{"operation not permitted", "permission denied"},
	{"connection refused", "connection refused"},
}

// ClassifyError maps a raw error to a short human-readable class using
// substring pattern rules, falling back to the error's own first line.
// Returns an empty string for a nil error.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}
	text := strings.ToLower(err.Error())
	for _, rule := range classifyRules {
		if strings.Contains(text, rule.needle) {
			return rule.class
		}
	}
	// Fall back to the first line of the raw message, trimmed.
	line := err.Error()
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}

// ExitCodeFor maps an error to the CLI exit code it should produce.
// CLIError carries its own code; typed domain errors map to their
// dedicated codes; everything else is a general error.
func ExitCodeFor(err error) ExitCode {
	if err == nil {
		return ExitSuccess
	}

	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return cliErr.Code
	}

	var exhausted *PortExhaustedError
	if errors.As(err, &exhausted) {
		return ExitPortExhausted
	}

	var spawn *SpawnError
	if errors.As(err, &spawn) {
		return ExitSpawnFailed
	}

	var term *TerminationTimeoutError
	if errors.As(err, &term) {
		return ExitStopFailed
	}

	return ExitGeneralError
}
