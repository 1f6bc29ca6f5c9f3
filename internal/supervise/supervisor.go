package supervise

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/shinji-kodama/devpreview/internal/model"
	"github.com/shinji-kodama/devpreview/internal/session"
)

// StopOptions controls the teardown of one session.
type StopOptions struct {
	// Signal is the graceful signal sent first. Defaults to os.Interrupt.
	Signal os.Signal

	// Timeout bounds the wait for graceful termination. Defaults to 5s.
	Timeout time.Duration

	// Force escalates to an unconditional kill when the graceful wait
	// expires. Without Force, an expired wait is reported as a
	// TerminationTimeoutError (the registry entry is removed either way).
	Force bool
}

// DefaultStopOptions returns the standard graceful-stop parameters.
func DefaultStopOptions() StopOptions {
	return StopOptions{Signal: os.Interrupt, Timeout: 5 * time.Second, Force: false}
}

// forcedWait bounds the second poll window after a kill escalation.
const forcedWait = 2 * time.Second

// urlAnnouncement matches the local-URL lines dev servers print, e.g.
// "Local: http://localhost:3001/" or "ready on 127.0.0.1:3001". Used to
// detect frameworks that auto-incremented their port on conflict.
var urlAnnouncement = regexp.MustCompile(`(?i)(?:https?://)?(?:localhost|127\.0\.0\.1|0\.0\.0\.0):(\d{2,5})`)

// Supervisor spawns dev-server processes and exposes bounded-time
// start/stop/restart primitives over the shared session registry.
type Supervisor struct {
	registry *session.Registry
	logf     func(format string, args ...any)
}

// New creates a Supervisor over the given registry.
func New(registry *session.Registry) *Supervisor {
	return &Supervisor{registry: registry}
}

// SetLogf installs an optional diagnostic logger.
func (s *Supervisor) SetLogf(logf func(format string, args ...any)) { s.logf = logf }

func (s *Supervisor) debugf(format string, args ...any) {
	if s.logf != nil {
		s.logf(format, args...)
	}
}

// Start spawns the profile's dev command bound to the given port and
// registers the resulting session. Observers are attached before any
// output flows, so they see the complete event stream.
//
// The child process receives the resolved port and a development-mode
// flag in its environment, runs in the project root, and has its
// stdio captured. Spawn failures return a SpawnError; the registry is
// only touched after the spawn has succeeded.
func (s *Supervisor) Start(ctx context.Context, profile model.ProjectProfile, port int, observers ...session.Observer) (*session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	argv := profile.Command()
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = profile.Root
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("PORT=%d", port),
		"NODE_ENV=development",
		// Keep CRA-style servers from popping a browser on the host.
		"BROWSER=none",
		// Stable, uncolored output keeps the readiness signal matching honest.
		"FORCE_COLOR=0",
	)

	// Route both streams through writers that feed the session. exec's
	// copy goroutines finish before Wait returns, which is what makes
	// "exit is the last event" hold without extra synchronization.
	stdout := &streamWriter{supervisor: s}
	stderr := &streamWriter{supervisor: s}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, &model.SpawnError{Command: argv, Dir: profile.Root, Err: err}
	}

	sess := session.New(port, profile, cmd.Process)
	for _, o := range observers {
		sess.Subscribe(o)
	}
	stdout.attach(sess)
	stderr.attach(sess)

	if err := s.registry.Add(sess); err != nil {
		// A concurrent start won the port between allocation and spawn.
		// Tear the duplicate down rather than leaving it orphaned.
		s.debugf("duplicate session on port %d, killing pid %d: %v", port, cmd.Process.Pid, err)
		_ = cmd.Process.Kill()
		go func() { _ = cmd.Wait() }()
		return nil, fmt.Errorf("registering session: %w", err)
	}

	s.debugf("spawned %q (pid %d) on port %d in %s", argv[0], cmd.Process.Pid, port, profile.Root)
	go s.watch(cmd, sess)
	return sess, nil
}

// watch waits for process exit and performs the four-step exit
// bookkeeping: evict from registry, record the exit code, mark
// not-running, notify observers — in that order.
func (s *Supervisor) watch(cmd *exec.Cmd, sess *session.Session) {
	err := cmd.Wait()

	code := -1
	if cmd.ProcessState != nil {
		code = cmd.ProcessState.ExitCode()
	}

	// Eviction comes first: no observer callback may ever see an
	// exited-but-registered session, and that holds for OnError too.
	s.registry.Remove(sess.Port())

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		// Not a plain non-zero exit — an I/O or wait failure.
		sess.NotifyError(err)
	}

	s.debugf("process on port %d (pid %d) exited with code %d", sess.Port(), sess.Pid(), code)
	sess.Finish(code)
}

// Stop tears down the session on the given port. Stopping a port with
// no registered session is a logged no-op, not an error.
func (s *Supervisor) Stop(ctx context.Context, port int, opts StopOptions) error {
	sess, ok := s.registry.Get(port)
	if !ok {
		s.debugf("stop requested for port %d with no registered session, ignoring", port)
		return nil
	}

	if opts.Signal == nil {
		opts.Signal = os.Interrupt
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}

	// The watcher removes the entry on exit too; removing here as well
	// keeps the invariant that the port is free of registry state the
	// moment Stop returns, even if the process lingers.
	defer s.registry.Remove(port)

	s.debugf("stopping session on port %d (pid %d)", port, sess.Pid())
	if err := sess.Signal(opts.Signal); err != nil && !errors.Is(err, os.ErrProcessDone) {
		// Signal delivery unsupported (e.g. Interrupt on Windows) or
		// failed — escalate straight to kill.
		_ = sess.Kill()
	}

	select {
	case <-sess.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(opts.Timeout):
	}

	if !opts.Force {
		return &model.TerminationTimeoutError{Port: port, Timeout: opts.Timeout}
	}

	s.debugf("graceful stop of port %d timed out, killing pid %d", port, sess.Pid())
	_ = sess.Kill()

	select {
	case <-sess.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(forcedWait):
		// Best effort: the kill was issued and the registry entry is
		// gone regardless.
		s.debugf("pid %d did not confirm exit within %s after kill", sess.Pid(), forcedWait)
	}
	return nil
}

// StopAll issues forced stops for every registered session concurrently.
// Individual failures are collected and joined; they never abort the
// sibling stops.
func (s *Supervisor) StopAll(ctx context.Context) error {
	ports := s.registry.Ports()
	if len(ports) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []error

	for _, port := range ports {
		wg.Add(1)
		go func(port int) {
			defer wg.Done()
			opts := DefaultStopOptions()
			opts.Force = true
			if err := s.Stop(ctx, port, opts); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("stopping port %d: %w", port, err))
				mu.Unlock()
			}
		}(port)
	}

	wg.Wait()
	return errors.Join(errs...)
}

// IsRunning reports whether a session is registered for the port and
// its process has not signaled exit.
func (s *Supervisor) IsRunning(port int) bool {
	sess, ok := s.registry.Get(port)
	return ok && sess.Running()
}

// streamWriter feeds captured process output into the session. Output
// can arrive before the session object exists (spawn returns the
// process handle first), so early chunks are held until attach.
type streamWriter struct {
	supervisor *Supervisor

	mu      sync.Mutex
	sess    *session.Session
	pending [][]byte
}

// attach binds the writer to its session and flushes buffered chunks.
func (w *streamWriter) attach(sess *session.Session) {
	w.mu.Lock()
	w.sess = sess
	pending := w.pending
	w.pending = nil
	w.mu.Unlock()

	for _, chunk := range pending {
		w.deliver(sess, chunk)
	}
}

// Write implements io.Writer for exec's stdout/stderr plumbing.
func (w *streamWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	sess := w.sess
	if sess == nil {
		// Pre-attach: copy, since exec reuses its buffer.
		chunk := make([]byte, len(p))
		copy(chunk, p)
		w.pending = append(w.pending, chunk)
		w.mu.Unlock()
		return len(p), nil
	}
	w.mu.Unlock()

	w.deliver(sess, p)
	return len(p), nil
}

// deliver scans a chunk for a local-URL announcement, then hands it to
// the session for buffering and observer fan-out.
func (w *streamWriter) deliver(sess *session.Session, chunk []byte) {
	if m := urlAnnouncement.FindSubmatch(chunk); m != nil {
		if announced, err := strconv.Atoi(string(m[1])); err == nil && announced != sess.Port() {
			// Advisory only: frameworks that auto-increment on conflict
			// report their real port here, but the registry key stays.
			w.supervisor.debugf("port %d session announced differing port %d", sess.Port(), announced)
			sess.SetAnnouncedPort(announced)
		}
	}
	sess.Ingest(chunk)
}
