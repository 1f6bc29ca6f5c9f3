// Package preview is the orchestration facade of the devpreview engine.
//
// The Manager coordinates the port allocator, the process supervisor,
// and the readiness detector for one logical project at a time, and
// translates session state into the UI-observable PreviewStatus. Its
// entire public surface toward the host is StartPreview, StopPreview,
// RestartPreview, and CurrentStatus.
//
// State machine:
//
//	Idle → Starting → Running → Stopping → Idle
//
// Starting falls back to Idle on spawn/readiness failure; Running
// falls directly to Idle on unexpected process exit. Start requests
// while already Starting or Running are rejected as logged no-ops —
// never queued — which prevents duplicate sessions on one port.
package preview

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/shinji-kodama/devpreview/internal/config"
	"github.com/shinji-kodama/devpreview/internal/model"
	"github.com/shinji-kodama/devpreview/internal/port"
	"github.com/shinji-kodama/devpreview/internal/ready"
	"github.com/shinji-kodama/devpreview/internal/session"
	"github.com/shinji-kodama/devpreview/internal/supervise"
)

// StatusListener receives a copy of the status on every transition.
// It is called outside the manager's lock, so it may safely call back
// into CurrentStatus.
type StatusListener func(model.PreviewStatus)

// settleDelay separates the stop and start phases of a restart, giving
// the OS a moment to release the port before it is probed again.
const settleDelay = 500 * time.Millisecond

// Manager owns the current preview session and its status.
type Manager struct {
	registry   *session.Registry
	prober     *port.Prober
	allocator  *port.Allocator
	supervisor *supervise.Supervisor
	detector   *ready.Detector
	settings   *config.Settings
	settle     time.Duration

	mu          sync.Mutex
	status      model.PreviewStatus
	profile     model.ProjectProfile
	hasProfile  bool
	currentPort int // registry key of the live session, 0 while idle
	listener    StatusListener
	logf        func(format string, args ...any)

	// startingExited records an exit delivered while the state was still
	// Starting — after readiness resolved but before the running status
	// was committed. commitRunning consumes it so a dead session is never
	// published as Running (which nothing would ever correct, since the
	// registry eviction has already happened).
	startingExited   bool
	startingExitPort int
	startingExitCode int
}

// NewManager wires a fresh registry, allocator, supervisor, and
// detector under one facade. Every Manager gets its own registry, so
// tests (and multiple editor windows) stay isolated.
func NewManager(settings *config.Settings) *Manager {
	registry := session.NewRegistry()
	prober := port.NewProber()

	maxWait, pollInterval := settings.ReadinessOptions()

	return &Manager{
		registry:   registry,
		prober:     prober,
		allocator:  port.NewAllocator(prober, registry),
		supervisor: supervise.New(registry),
		detector: ready.NewDetector(prober, ready.Options{
			MaxWait:      maxWait,
			PollInterval: pollInterval,
		}),
		settings: settings,
		settle:   settleDelay,
		status:   model.PreviewStatus{State: model.StateIdle},
	}
}

// SetLogf installs a diagnostic logger on the facade and every
// component under it.
func (m *Manager) SetLogf(logf func(format string, args ...any)) {
	m.mu.Lock()
	m.logf = logf
	m.mu.Unlock()
	m.allocator.SetLogf(logf)
	m.supervisor.SetLogf(logf)
	m.detector.SetLogf(logf)
}

// SetStatusListener installs the UI status callback.
func (m *Manager) SetStatusListener(listener StatusListener) {
	m.mu.Lock()
	m.listener = listener
	m.mu.Unlock()
}

// SetConflictResolver installs the ask-mode decision callback, passed
// through to the allocator.
func (m *Manager) SetConflictResolver(r port.ConflictResolver) {
	m.allocator.SetResolver(r)
}

func (m *Manager) debugf(format string, args ...any) {
	m.mu.Lock()
	logf := m.logf
	m.mu.Unlock()
	if logf != nil {
		logf(format, args...)
	}
}

// CurrentStatus returns a copy of the current status.
func (m *Manager) CurrentStatus() model.PreviewStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Sessions returns a snapshot of every live session in the registry.
func (m *Manager) Sessions() []*session.Session {
	return m.registry.Sessions()
}

// publish updates the status under the lock and notifies the listener
// outside of it.
func (m *Manager) publish(st model.PreviewStatus) {
	m.mu.Lock()
	m.status = st
	listener := m.listener
	m.mu.Unlock()

	if listener != nil {
		listener(st)
	}
}

// StartPreview allocates a port, spawns the project's dev server,
// awaits readiness, and publishes the Running status. A start while
// already Starting or Running is a logged no-op returning the current
// status. Failures reset the status to Idle with a classified message
// and are returned to the caller.
func (m *Manager) StartPreview(ctx context.Context, profile model.ProjectProfile) (model.PreviewStatus, error) {
	if err := profile.Validate(); err != nil {
		return m.CurrentStatus(), err
	}

	m.mu.Lock()
	if m.status.State != model.StateIdle {
		st := m.status
		m.mu.Unlock()
		m.debugf("start requested while %s, ignoring", st.State)
		return st, nil
	}
	m.profile = profile
	m.hasProfile = true
	m.startingExited = false
	m.status = model.PreviewStatus{State: model.StateStarting, Framework: profile.Framework}
	listener := m.listener
	starting := m.status
	m.mu.Unlock()
	if listener != nil {
		listener(starting)
	}

	policy := m.settings.PolicyFor(profile.Framework)

	allocated, err := m.allocator.Allocate(ctx, profile.PreferredPort, profile, policy)
	if err != nil {
		m.resetToIdle(profile.Framework, err)
		return m.CurrentStatus(), fmt.Errorf("allocating port: %w", err)
	}

	// Cooperative re-attach: the allocator returned a port already
	// served by a live managed session. Publish it as running instead
	// of spawning a duplicate.
	if existing, ok := m.registry.Get(allocated); ok && existing.Running() {
		// Adopt the session: without the exit observer a re-attached
		// server dying would leave the status stuck on Running.
		existing.Subscribe(m.exitObserver(allocated))
		if !existing.Running() {
			// Died between the liveness check and the subscription — a
			// late subscriber misses OnExit, so re-check explicitly.
			code, _ := existing.ExitCode()
			crash := &model.ProcessCrashError{Port: allocated, ExitCode: code}
			m.resetToIdle(profile.Framework, crash)
			return m.CurrentStatus(), crash
		}
		resolved := allocated
		if announced := existing.AnnouncedPort(); announced != 0 {
			resolved = announced
		}
		st := model.PreviewStatus{
			State:     model.StateRunning,
			Framework: profile.Framework,
			Port:      resolved,
			URL:       model.LocalURL(resolved),
			StartedAt: existing.StartedAt(),
		}
		m.mu.Lock()
		m.currentPort = allocated
		m.mu.Unlock()
		m.debugf("re-attached to managed session on port %d", allocated)
		return m.commitRunning(allocated, st)
	}

	sess, err := m.supervisor.Start(ctx, profile, allocated, m.exitObserver(allocated))
	if err != nil && model.ClassifyError(err) == "address already in use" {
		// The probe/spawn window is not atomic: a concurrent process can
		// grab the port between "found free" and "bind". Recoverable —
		// reallocate once with the lost port treated as reserved.
		m.debugf("port %d was taken between probe and spawn, reallocating", allocated)
		retryPolicy := policy
		retryPolicy.Reserved = append(slices.Clone(policy.Reserved), allocated)

		allocated, err = m.allocator.Allocate(ctx, 0, profile, retryPolicy)
		if err == nil {
			sess, err = m.supervisor.Start(ctx, profile, allocated, m.exitObserver(allocated))
		}
	}
	if err != nil {
		m.resetToIdle(profile.Framework, err)
		return m.CurrentStatus(), fmt.Errorf("starting dev server: %w", err)
	}

	m.mu.Lock()
	m.currentPort = allocated
	m.mu.Unlock()

	result := m.detector.Await(ctx, sess, allocated, profile)
	if !result.Ready && !sess.Running() {
		// The server died before it ever became ready.
		code, _ := sess.ExitCode()
		crash := &model.ProcessCrashError{Port: allocated, ExitCode: code}
		m.resetToIdle(profile.Framework, crash)
		return m.CurrentStatus(), crash
	}

	resolved := result.Port
	if resolved == 0 {
		resolved = allocated
	}
	if !result.Ready {
		// Soft timeout: the server may simply be slow. Proceed in a
		// degraded "probably starting" state rather than killing it on
		// a false negative.
		m.debugf("readiness timed out on port %d, proceeding optimistically", allocated)
	}

	st := model.PreviewStatus{
		State:     model.StateRunning,
		Framework: profile.Framework,
		Port:      resolved,
		URL:       model.LocalURL(resolved),
		StartedAt: sess.StartedAt(),
	}
	return m.commitRunning(allocated, st)
}

// commitRunning publishes the Running status, unless the session's exit
// landed while the state was still Starting. In that case the window
// between readiness and this commit was lost to the process dying, and
// the status falls to Idle with the crash surfaced to the caller.
// The check and the status write happen under one lock acquisition, so
// an exit is handled exactly once: either here, or by the observer's
// Running-state path after the commit.
func (m *Manager) commitRunning(sessionPort int, st model.PreviewStatus) (model.PreviewStatus, error) {
	m.mu.Lock()
	if m.startingExited && m.startingExitPort == sessionPort {
		code := m.startingExitCode
		m.startingExited = false
		m.currentPort = 0
		crash := &model.ProcessCrashError{Port: sessionPort, ExitCode: code}
		idle := model.PreviewStatus{
			State:     model.StateIdle,
			Framework: st.Framework,
			Message:   model.ClassifyError(crash),
		}
		m.status = idle
		listener := m.listener
		m.mu.Unlock()

		m.debugf("%v", crash)
		if listener != nil {
			listener(idle)
		}
		return idle, crash
	}

	m.status = st
	listener := m.listener
	m.mu.Unlock()

	if listener != nil {
		listener(st)
	}
	return st, nil
}

// StopPreview tears down the current session and returns the status to
// Idle. Stopping while already Idle is a logged no-op.
func (m *Manager) StopPreview(ctx context.Context) error {
	m.mu.Lock()
	if m.status.State == model.StateIdle {
		m.mu.Unlock()
		m.debugf("stop requested while idle, ignoring")
		return nil
	}
	stopPort := m.currentPort
	framework := m.status.Framework
	stopping := m.status
	stopping.State = model.StateStopping
	m.status = stopping
	listener := m.listener
	m.mu.Unlock()
	if listener != nil {
		listener(stopping)
	}

	opts := supervise.DefaultStopOptions()
	opts.Force = true
	err := m.supervisor.Stop(ctx, stopPort, opts)

	m.mu.Lock()
	m.currentPort = 0
	m.mu.Unlock()
	m.publish(model.PreviewStatus{State: model.StateIdle, Framework: framework})

	if err != nil {
		return fmt.Errorf("stopping dev server on port %d: %w", stopPort, err)
	}
	return nil
}

// RestartPreview is stop, a short settle delay, then start. It is not
// a single atomic operation: a stop-phase failure is surfaced before
// any start is attempted.
func (m *Manager) RestartPreview(ctx context.Context) (model.PreviewStatus, error) {
	m.mu.Lock()
	profile, ok := m.profile, m.hasProfile
	m.mu.Unlock()
	if !ok {
		return m.CurrentStatus(), model.NewCLIError(model.ExitGeneralError,
			"no project has been started yet")
	}

	if err := m.StopPreview(ctx); err != nil {
		return m.CurrentStatus(), err
	}

	select {
	case <-ctx.Done():
		return m.CurrentStatus(), ctx.Err()
	case <-time.After(m.settle):
	}

	return m.StartPreview(ctx, profile)
}

// StopAll force-stops every registered session (there can be more than
// one when re-attached sessions outlive project switches) and resets
// the status.
func (m *Manager) StopAll(ctx context.Context) error {
	err := m.supervisor.StopAll(ctx)

	m.mu.Lock()
	m.currentPort = 0
	framework := m.status.Framework
	m.mu.Unlock()
	m.publish(model.PreviewStatus{State: model.StateIdle, Framework: framework})
	return err
}

// exitObserver builds the per-session observer that handles unexpected
// exits: a process dying while the status says Running drops the
// status straight to Idle (the registry entry is already gone — the
// supervisor evicts before notifying).
func (m *Manager) exitObserver(sessionPort int) session.Observer {
	return session.ObserverFuncs{
		Exit: func(code int) {
			m.mu.Lock()
			if m.status.State == model.StateStarting {
				// The start sequence is still in flight. Record the exit
				// so commitRunning refuses to publish Running for it.
				m.startingExited = true
				m.startingExitPort = sessionPort
				m.startingExitCode = code
				m.mu.Unlock()
				return
			}
			unexpected := m.status.State == model.StateRunning && m.currentPort == sessionPort
			framework := m.status.Framework
			if unexpected {
				m.currentPort = 0
			}
			m.mu.Unlock()

			if !unexpected {
				return
			}

			crash := &model.ProcessCrashError{Port: sessionPort, ExitCode: code}
			m.debugf("%v", crash)

			st := model.PreviewStatus{State: model.StateIdle, Framework: framework}
			if code != 0 {
				st.Message = model.ClassifyError(crash)
			}
			m.publish(st)
		},
	}
}

// resetToIdle publishes an Idle status carrying the classified message
// of the failure that caused the reset.
func (m *Manager) resetToIdle(framework model.Framework, cause error) {
	m.mu.Lock()
	m.currentPort = 0
	m.startingExited = false
	m.mu.Unlock()

	m.publish(model.PreviewStatus{
		State:     model.StateIdle,
		Framework: framework,
		Message:   model.ClassifyError(cause),
	})
}
