package ready

import (
	"context"
	"time"

	"github.com/shinji-kodama/devpreview/internal/model"
	"github.com/shinji-kodama/devpreview/internal/port"
	"github.com/shinji-kodama/devpreview/internal/session"
)

// Options bounds the detection loop.
type Options struct {
	// MaxWait is the total budget before giving up with a soft timeout.
	MaxWait time.Duration

	// PollInterval is the wait between check ticks.
	PollInterval time.Duration

	// ProbeTimeout bounds each individual outbound connect attempt.
	ProbeTimeout time.Duration
}

// DefaultOptions returns the standard detection bounds.
func DefaultOptions() Options {
	return Options{
		MaxWait:      30 * time.Second,
		PollInterval: time.Second,
		ProbeTimeout: 500 * time.Millisecond,
	}
}

// Detector runs the readiness checks for freshly spawned sessions.
type Detector struct {
	prober *port.Prober
	opts   Options
	logf   func(format string, args ...any)
}

// NewDetector creates a Detector probing through the given Prober.
func NewDetector(prober *port.Prober, opts Options) *Detector {
	if opts.MaxWait <= 0 {
		opts.MaxWait = DefaultOptions().MaxWait
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultOptions().PollInterval
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = DefaultOptions().ProbeTimeout
	}
	return &Detector{prober: prober, opts: opts}
}

// SetLogf installs an optional diagnostic logger.
func (d *Detector) SetLogf(logf func(format string, args ...any)) { d.logf = logf }

func (d *Detector) debugf(format string, args ...any) {
	if d.logf != nil {
		d.logf(format, args...)
	}
}

// Await polls until the session is deemed ready, the process dies, the
// context is cancelled, or MaxWait elapses. The result is never an
// error: a timeout is a defined soft outcome.
//
// The resolved port favors the port the server itself announced (it may
// have auto-incremented on conflict); the requested port is the
// registry key and the default.
func (d *Detector) Await(ctx context.Context, sess *session.Session, requestedPort int, profile model.ProjectProfile) model.ReadinessResult {
	rule := RuleFor(profile.Framework)
	deadline := time.Now().Add(d.opts.MaxWait)

	for {
		// A dead process will never become ready — stop polling it.
		if !sess.Running() {
			d.debugf("process on port %d died while awaiting readiness", requestedPort)
			return model.ReadinessResult{Ready: false, Port: requestedPort, Method: model.DetectionTimeout}
		}

		resolved := requestedPort
		if announced := sess.AnnouncedPort(); announced != 0 {
			resolved = announced
		}

		// Check 1: framework-specific signal tokens in the output.
		if rule.Matches(sess.OutputString()) {
			d.debugf("readiness signal matched for port %d (%s)", resolved, profile.Framework)
			return model.ReadinessResult{
				Ready:  true,
				Port:   resolved,
				URL:    model.LocalURL(resolved),
				Method: model.DetectionSignal,
			}
		}

		// Check 2: the server is reachable regardless of what it printed.
		if d.prober.CanConnect(resolved, d.opts.ProbeTimeout) {
			d.debugf("port probe succeeded for port %d", resolved)
			return model.ReadinessResult{
				Ready:  true,
				Port:   resolved,
				URL:    model.LocalURL(resolved),
				Method: model.DetectionPortProbe,
			}
		}

		if time.Now().After(deadline) {
			d.debugf("readiness wait for port %d exceeded %s", requestedPort, d.opts.MaxWait)
			return model.ReadinessResult{Ready: false, Port: resolved, Method: model.DetectionTimeout}
		}

		select {
		case <-ctx.Done():
			return model.ReadinessResult{Ready: false, Port: resolved, Method: model.DetectionTimeout}
		case <-sess.Done():
			// Loop once more; the running check above reports the death.
		case <-time.After(d.opts.PollInterval):
		}
	}
}
