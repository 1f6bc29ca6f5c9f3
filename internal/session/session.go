package session

import (
	"errors"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/shinji-kodama/devpreview/internal/model"
)

// Observer receives the per-session event stream. Observers are attached
// at session-creation time and are never detached; OnExit is guaranteed
// to be the last call for a session.
//
// Callbacks run on the supervisor's pump/watcher goroutines, so they
// must not block for long. The chunk passed to OnOutput is only valid
// for the duration of the call — copy it if it must be retained.
type Observer interface {
	// OnOutput is called for every stdout/stderr chunk, in arrival order.
	OnOutput(chunk []byte)

	// OnExit is called exactly once when the process has exited.
	// code is -1 when the process was killed by a signal.
	OnExit(code int)

	// OnError is called for supervision errors that are not process
	// exits (e.g. an output pipe failing). It may be followed by OnExit.
	OnError(err error)
}

// ObserverFuncs adapts plain functions to the Observer interface.
// Nil fields are simply skipped, so callers can observe only the
// events they care about.
type ObserverFuncs struct {
	Output func(chunk []byte)
	Exit   func(code int)
	Error  func(err error)
}

// OnOutput implements Observer.
func (o ObserverFuncs) OnOutput(chunk []byte) {
	if o.Output != nil {
		o.Output(chunk)
	}
}

// OnExit implements Observer.
func (o ObserverFuncs) OnExit(code int) {
	if o.Exit != nil {
		o.Exit(code)
	}
}

// OnError implements Observer.
func (o ObserverFuncs) OnError(err error) {
	if o.Error != nil {
		o.Error(err)
	}
}

// Session is the live record of one spawned dev-server process bound to
// one port. It is created by the supervisor only after a successful
// spawn — a Session always has a real process handle behind it.
type Session struct {
	port      int
	profile   model.ProjectProfile
	startedAt time.Time
	proc      *os.Process
	buf       *Buffer

	mu            sync.Mutex
	running       bool
	exitCode      int
	exited        bool
	announcedPort int
	observers     []Observer

	// done is closed when the process has exited and its exit code has
	// been recorded. Stop polling waits on this channel instead of
	// re-signaling the process.
	done chan struct{}
}

// New creates a Session for a freshly spawned process. The process
// handle must be non-nil; the session starts in the running state.
func New(port int, profile model.ProjectProfile, proc *os.Process) *Session {
	return &Session{
		port:      port,
		profile:   profile,
		startedAt: time.Now(),
		proc:      proc,
		buf:       NewBuffer(DefaultBufferLimit),
		running:   true,
		exitCode:  -1,
		done:      make(chan struct{}),
	}
}

// Port returns the registry key this session is bound to.
func (s *Session) Port() int { return s.port }

// Profile returns the project profile the session was spawned from.
func (s *Session) Profile() model.ProjectProfile { return s.profile }

// StartedAt returns the spawn timestamp.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// Pid returns the OS process id.
func (s *Session) Pid() int { return s.proc.Pid }

// Subscribe attaches an observer. Intended to be called at creation
// time, before events start flowing; a late subscriber misses earlier
// events but still receives subsequent ones.
func (s *Session) Subscribe(o Observer) {
	if o == nil {
		return
	}
	s.mu.Lock()
	s.observers = append(s.observers, o)
	s.mu.Unlock()
}

// Running reports whether the process has not yet signaled exit.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// ExitCode returns the recorded exit code and whether the process has
// exited at all.
func (s *Session) ExitCode() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitCode, s.exited
}

// Done returns a channel closed once the process has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Output returns a copy of the accumulated (ring-limited) output.
func (s *Session) Output() []byte { return s.buf.Bytes() }

// OutputString returns the accumulated output as a string.
func (s *Session) OutputString() string { return s.buf.String() }

// AnnouncedPort returns the port the server itself announced in its
// output, or zero if it never disagreed with the requested port. This
// is advisory, for diagnostics — the registry key never changes.
func (s *Session) AnnouncedPort() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.announcedPort
}

// SetAnnouncedPort records a port observed in a local-URL announcement.
func (s *Session) SetAnnouncedPort(port int) {
	s.mu.Lock()
	s.announcedPort = port
	s.mu.Unlock()
}

// Ingest appends an output chunk to the buffer and forwards it to every
// observer, in arrival order.
func (s *Session) Ingest(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	s.buf.Append(chunk)

	s.mu.Lock()
	obs := make([]Observer, len(s.observers))
	copy(obs, s.observers)
	s.mu.Unlock()

	for _, o := range obs {
		o.OnOutput(chunk)
	}
}

// NotifyError forwards a non-exit supervision error to observers.
func (s *Session) NotifyError(err error) {
	s.mu.Lock()
	obs := make([]Observer, len(s.observers))
	copy(obs, s.observers)
	s.mu.Unlock()

	for _, o := range obs {
		o.OnError(err)
	}
}

// Finish marks the session exited with the given code, closes Done, and
// delivers OnExit to every observer. The caller (the supervisor's exit
// watcher) must remove the session from the registry BEFORE calling
// Finish, so observers never see an exited-but-registered session.
// Finish is idempotent; only the first call has any effect.
func (s *Session) Finish(code int) {
	s.mu.Lock()
	if s.exited {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.exited = true
	s.exitCode = code
	obs := make([]Observer, len(s.observers))
	copy(obs, s.observers)
	s.mu.Unlock()

	close(s.done)
	for _, o := range obs {
		o.OnExit(code)
	}
}

// Signal sends an OS signal to the process.
func (s *Session) Signal(sig os.Signal) error {
	return s.proc.Signal(sig)
}

// Kill sends an unconditional kill to the process.
func (s *Session) Kill() error {
	return s.proc.Kill()
}

// Alive re-checks process liveness against the OS rather than trusting
// the running flag. Used by the allocator before a cooperative
// re-attach: the exit watcher evicts dead sessions, but eviction and a
// concurrent allocate can race, and the signal-0 probe is cheap.
func (s *Session) Alive() bool {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running {
		return false
	}

	err := s.proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	if errors.Is(err, os.ErrProcessDone) {
		return false
	}
	// Signal 0 is not supported everywhere (notably Windows); fall back
	// to the running flag maintained by the exit watcher.
	return running
}
