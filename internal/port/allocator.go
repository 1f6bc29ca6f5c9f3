package port

import (
	"context"
	"os"
	"time"

	"github.com/shinji-kodama/devpreview/internal/model"
	"github.com/shinji-kodama/devpreview/internal/session"
)

// ConflictDecision is the caller's answer to an ask-mode port conflict.
type ConflictDecision string

const (
	// DecisionReuse keeps the occupied port (the caller accepts whatever
	// is serving there, typically an already-running managed server).
	DecisionReuse ConflictDecision = "reuse"

	// DecisionFallback walks the policy's fallback list instead.
	DecisionFallback ConflictDecision = "fallback"

	// DecisionAbort cancels the allocation entirely.
	DecisionAbort ConflictDecision = "abort"
)

// ConflictResolver is the ask-mode decision point. The allocator calls
// it with the contested port; the host surfaces the choice to a human.
// Keeping this as a callback avoids hard-coding UI into the allocator.
type ConflictResolver func(port int, profile model.ProjectProfile) (ConflictDecision, error)

// Terminator removes whatever process occupies a port, used in
// aggressive mode. The default implementation resolves the listening
// PID from the OS socket table and terminates it (see occupant.go);
// tests inject a fake.
type Terminator func(ctx context.Context, port int) error

// reclaimGrace bounds how long an aggressive-mode reclaim waits for an
// owned session to exit gracefully before escalating to kill.
const reclaimGrace = 3 * time.Second

// Allocator decides which concrete port a preview session gets, probing
// candidates with the Prober and resolving conflicts per the framework's
// PortPolicy. It consults the session registry to classify occupants:
// a port owned by this engine is handled cooperatively, never killed
// blindly.
type Allocator struct {
	prober    *Prober
	registry  *session.Registry
	resolver  ConflictResolver
	terminate Terminator
	logf      func(format string, args ...any)
}

// NewAllocator creates an Allocator. The prober and registry must not
// be nil; aggressive-mode termination defaults to the OS socket-table
// implementation.
func NewAllocator(prober *Prober, registry *session.Registry) *Allocator {
	return &Allocator{
		prober:    prober,
		registry:  registry,
		terminate: TerminateOccupant,
	}
}

// SetResolver installs the ask-mode conflict resolver.
func (a *Allocator) SetResolver(r ConflictResolver) { a.resolver = r }

// SetTerminator replaces the aggressive-mode occupant terminator.
func (a *Allocator) SetTerminator(t Terminator) { a.terminate = t }

// SetLogf installs an optional diagnostic logger.
func (a *Allocator) SetLogf(logf func(format string, args ...any)) { a.logf = logf }

func (a *Allocator) debugf(format string, args ...any) {
	if a.logf != nil {
		a.logf(format, args...)
	}
}

// Allocate picks the concrete port for the given requested port and
// profile, under the supplied policy. A requested port of zero means
// "use the policy's preferred port".
//
// The common path is cheap: one transient bind probe on the requested
// port. Conflicts are resolved per the policy mode, then the fallback
// list in declared order (skipping reserved ports), then a bounded
// widening scan of [RangeMin, RangeMax]. When nothing remains, the
// caller gets a PortExhaustedError.
func (a *Allocator) Allocate(ctx context.Context, requested int, profile model.ProjectProfile, policy model.PortPolicy) (int, error) {
	if requested <= 0 {
		requested = policy.Preferred
	}

	var tried []int

	// Fast path: the requested port is simply free.
	if !policy.IsReserved(requested) {
		if a.prober.IsFree(requested) {
			return requested, nil
		}
		tried = append(tried, requested)
	} else {
		a.debugf("requested port %d is reserved, skipping", requested)
	}

	// The requested port is occupied (or reserved). Classify the occupant.
	if sess, owned := a.registry.Get(requested); owned {
		switch policy.Mode {
		case model.ModeCooperative:
			// Idempotent re-attach: the existing managed server already
			// serves this port. Re-check liveness first — the registry
			// flag can race with the exit watcher.
			if sess.Alive() {
				a.debugf("port %d already served by managed session (pid %d), reusing", requested, sess.Pid())
				return requested, nil
			}
			a.debugf("registered session on port %d is dead, evicting", requested)
			a.registry.Remove(requested)
			if a.prober.IsFree(requested) {
				return requested, nil
			}

		case model.ModeAggressive:
			// Reclaim the preferred port from our own stale session via
			// its handle rather than the OS socket table.
			if err := a.reclaimOwned(sess); err != nil {
				a.debugf("failed to reclaim owned port %d: %v", requested, err)
			} else if a.prober.IsFree(requested) {
				return requested, nil
			}
		}
		// ModeAsk falls through to the resolver below.
	}

	// Ask mode: surface the conflict and let the human choose.
	if policy.Mode == model.ModeAsk {
		if a.resolver == nil {
			a.debugf("conflict on port %d with no resolver installed, walking fallbacks", requested)
		} else {
			decision, err := a.resolver(requested, profile)
			if err != nil {
				return 0, err
			}
			switch decision {
			case DecisionReuse:
				return requested, nil
			case DecisionAbort:
				return 0, model.NewCLIError(model.ExitUserCancelled,
					"port conflict resolution aborted by user")
			}
			// DecisionFallback: continue below.
		}
	}

	// Aggressive mode against a foreign occupant: terminate it and retry
	// the same port once.
	if policy.Mode == model.ModeAggressive && !a.registry.Owns(requested) && !policy.IsReserved(requested) {
		if err := a.terminate(ctx, requested); err != nil {
			a.debugf("could not terminate occupant of port %d: %v", requested, err)
		} else if a.prober.IsFree(requested) {
			return requested, nil
		}
	}

	// Fallback list, strictly in declared order.
	for _, candidate := range policy.Fallbacks {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if candidate == requested || policy.IsReserved(candidate) {
			continue
		}
		tried = append(tried, candidate)
		if a.prober.IsFree(candidate) {
			return candidate, nil
		}
	}

	// Last resort: bounded linear widening within the declared range.
	if policy.RangeMin >= 1 && policy.RangeMax >= policy.RangeMin {
		for candidate := policy.RangeMin; candidate <= policy.RangeMax; candidate++ {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			if policy.IsReserved(candidate) || contains(tried, candidate) {
				continue
			}
			tried = append(tried, candidate)
			if a.prober.IsFree(candidate) {
				return candidate, nil
			}
		}
	}

	return 0, &model.PortExhaustedError{Requested: requested, Tried: tried}
}

// reclaimOwned tears down one of our own sessions to free its port:
// graceful interrupt, bounded wait, then kill.
func (a *Allocator) reclaimOwned(sess *session.Session) error {
	a.debugf("aggressively reclaiming port %d from managed session (pid %d)", sess.Port(), sess.Pid())

	if err := sess.Signal(os.Interrupt); err != nil {
		// Interrupt delivery is unsupported on some platforms; go
		// straight to kill.
		_ = sess.Kill()
	}

	select {
	case <-sess.Done():
	case <-time.After(reclaimGrace):
		_ = sess.Kill()
		select {
		case <-sess.Done():
		case <-time.After(time.Second):
		}
	}

	a.registry.Remove(sess.Port())
	return nil
}

func contains(ports []int, port int) bool {
	for _, p := range ports {
		if p == port {
			return true
		}
	}
	return false
}
