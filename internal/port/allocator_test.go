package port

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/devpreview/internal/model"
	"github.com/shinji-kodama/devpreview/internal/session"
)

// testProfile returns a minimal profile for allocation tests.
func testProfile() model.ProjectProfile {
	return model.ProjectProfile{
		Framework:      model.FrameworkVite,
		Root:           "/tmp/project",
		PackageManager: "npm",
		DevScript:      "dev",
	}
}

// newTestAllocator builds an allocator with a fresh registry and a
// terminator that fails, so no test accidentally kills anything.
func newTestAllocator(t *testing.T) (*Allocator, *session.Registry) {
	t.Helper()
	registry := session.NewRegistry()
	alloc := NewAllocator(NewProber(), registry)
	alloc.SetTerminator(func(ctx context.Context, port int) error {
		return errors.New("termination disabled in tests")
	})
	return alloc, registry
}

// selfSession registers a session backed by the test process itself,
// simulating a managed server that is alive on the given port.
func selfSession(t *testing.T, registry *session.Registry, port int) *session.Session {
	t.Helper()
	proc, err := os.FindProcess(os.Getpid())
	require.NoError(t, err)
	sess := session.New(port, testProfile(), proc)
	require.NoError(t, registry.Add(sess))
	return sess
}

// TestAllocate_FreeRequestedPort verifies the common cheap path: a free
// requested port is returned as-is, with no fallback consultation.
func TestAllocate_FreeRequestedPort(t *testing.T) {
	alloc, _ := newTestAllocator(t)
	port := freeTestPort(t)

	policy := model.PortPolicy{
		Preferred: port,
		Fallbacks: []int{port + 1, port + 2},
		Mode:      model.ModeCooperative,
	}

	got, err := alloc.Allocate(context.Background(), port, testProfile(), policy)
	require.NoError(t, err)
	assert.Equal(t, port, got)
}

// TestAllocate_ZeroRequestedUsesPreferred verifies that a zero request
// falls back to the policy's preferred port.
func TestAllocate_ZeroRequestedUsesPreferred(t *testing.T) {
	alloc, _ := newTestAllocator(t)
	port := freeTestPort(t)

	policy := model.PortPolicy{Preferred: port, Mode: model.ModeCooperative}

	got, err := alloc.Allocate(context.Background(), 0, testProfile(), policy)
	require.NoError(t, err)
	assert.Equal(t, port, got)
}

// TestAllocate_FallbackOrderSkipsReserved covers the common conflict:
// preferred 3000-style port occupied by an unrelated process, fallbacks
// [p+1, p+2] with p+1 reserved → the allocator must return p+2.
func TestAllocate_FallbackOrderSkipsReserved(t *testing.T) {
	alloc, _ := newTestAllocator(t)

	preferred := freeTestPort(t)
	occupyPort(t, preferred) // unrelated occupant, not in the registry

	fb1 := freeTestPort(t)
	fb2 := freeTestPort(t)

	policy := model.PortPolicy{
		Preferred: preferred,
		Fallbacks: []int{fb1, fb2},
		Reserved:  []int{fb1},
		Mode:      model.ModeCooperative,
	}

	got, err := alloc.Allocate(context.Background(), preferred, testProfile(), policy)
	require.NoError(t, err)
	assert.Equal(t, fb2, got, "reserved fallback must be skipped even if free")
}

// TestAllocate_CooperativeReattach verifies the idempotent re-attach:
// a port occupied by a live managed session is returned without
// touching anything.
func TestAllocate_CooperativeReattach(t *testing.T) {
	alloc, registry := newTestAllocator(t)

	port := freeTestPort(t)
	occupyPort(t, port)
	selfSession(t, registry, port)

	policy := model.PortPolicy{
		Preferred: port,
		Fallbacks: []int{port + 1},
		Mode:      model.ModeCooperative,
	}

	got, err := alloc.Allocate(context.Background(), port, testProfile(), policy)
	require.NoError(t, err)
	assert.Equal(t, port, got, "live managed session should be reused")
	assert.True(t, registry.Owns(port), "re-attach must not evict the session")
}

// TestAllocate_CooperativeEvictsDeadSession verifies the liveness
// re-check: a registered but finished session is evicted, and if the
// port itself is free it is allocated normally.
func TestAllocate_CooperativeEvictsDeadSession(t *testing.T) {
	alloc, registry := newTestAllocator(t)

	port := freeTestPort(t)
	sess := selfSession(t, registry, port)
	sess.Finish(0) // session is dead, port actually free

	policy := model.PortPolicy{Preferred: port, Mode: model.ModeCooperative}

	got, err := alloc.Allocate(context.Background(), port, testProfile(), policy)
	require.NoError(t, err)
	assert.Equal(t, port, got)
	assert.False(t, registry.Owns(port), "dead session must be evicted")
}

// TestAllocate_AskModeDecisions exercises all three resolver outcomes.
func TestAllocate_AskModeDecisions(t *testing.T) {
	port := freeTestPort(t)
	occupyPort(t, port)
	fallback := freeTestPort(t)

	policy := model.PortPolicy{
		Preferred: port,
		Fallbacks: []int{fallback},
		Mode:      model.ModeAsk,
	}

	t.Run("reuse", func(t *testing.T) {
		alloc, _ := newTestAllocator(t)
		alloc.SetResolver(func(p int, _ model.ProjectProfile) (ConflictDecision, error) {
			assert.Equal(t, port, p)
			return DecisionReuse, nil
		})
		got, err := alloc.Allocate(context.Background(), port, testProfile(), policy)
		require.NoError(t, err)
		assert.Equal(t, port, got)
	})

	t.Run("fallback", func(t *testing.T) {
		alloc, _ := newTestAllocator(t)
		alloc.SetResolver(func(int, model.ProjectProfile) (ConflictDecision, error) {
			return DecisionFallback, nil
		})
		got, err := alloc.Allocate(context.Background(), port, testProfile(), policy)
		require.NoError(t, err)
		assert.Equal(t, fallback, got)
	})

	t.Run("abort", func(t *testing.T) {
		alloc, _ := newTestAllocator(t)
		alloc.SetResolver(func(int, model.ProjectProfile) (ConflictDecision, error) {
			return DecisionAbort, nil
		})
		_, err := alloc.Allocate(context.Background(), port, testProfile(), policy)
		require.Error(t, err)
		assert.Equal(t, model.ExitUserCancelled, model.ExitCodeFor(err))
	})
}

// TestAllocate_AggressiveTerminatesOccupant verifies that aggressive
// mode invokes the terminator and retries the same port once. The fake
// terminator releases the listener, standing in for a killed process.
func TestAllocate_AggressiveTerminatesOccupant(t *testing.T) {
	registry := session.NewRegistry()
	alloc := NewAllocator(NewProber(), registry)

	port := freeTestPort(t)
	listener := occupyPort(t, port)

	terminated := false
	alloc.SetTerminator(func(ctx context.Context, p int) error {
		assert.Equal(t, port, p)
		terminated = true
		return listener.Close()
	})

	policy := model.PortPolicy{Preferred: port, Mode: model.ModeAggressive}

	got, err := alloc.Allocate(context.Background(), port, testProfile(), policy)
	require.NoError(t, err)
	assert.Equal(t, port, got)
	assert.True(t, terminated, "terminator should have been invoked")
}

// TestAllocate_AggressiveTerminationFails verifies that a failed
// termination degrades to the fallback walk instead of erroring out.
func TestAllocate_AggressiveTerminationFails(t *testing.T) {
	alloc, _ := newTestAllocator(t) // terminator always fails

	port := freeTestPort(t)
	occupyPort(t, port)
	fallback := freeTestPort(t)

	policy := model.PortPolicy{
		Preferred: port,
		Fallbacks: []int{fallback},
		Mode:      model.ModeAggressive,
	}

	got, err := alloc.Allocate(context.Background(), port, testProfile(), policy)
	require.NoError(t, err)
	assert.Equal(t, fallback, got)
}

// TestAllocate_RangeWidening verifies the last-resort bounded scan:
// with no usable fallbacks, the first free port inside [min,max] wins.
func TestAllocate_RangeWidening(t *testing.T) {
	alloc, _ := newTestAllocator(t)

	preferred := freeTestPort(t)
	occupyPort(t, preferred)

	rangeStart := freeTestPort(t)

	policy := model.PortPolicy{
		Preferred: preferred,
		RangeMin:  rangeStart,
		RangeMax:  rangeStart + 20,
		Mode:      model.ModeCooperative,
	}

	got, err := alloc.Allocate(context.Background(), preferred, testProfile(), policy)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, got, rangeStart)
	assert.LessOrEqual(t, got, rangeStart+20)
}

// TestAllocate_Exhausted verifies the PortExhaustedError once every
// candidate is occupied or reserved.
func TestAllocate_Exhausted(t *testing.T) {
	alloc, _ := newTestAllocator(t)

	preferred := freeTestPort(t)
	occupyPort(t, preferred)
	fb := freeTestPort(t)
	occupyPort(t, fb)

	policy := model.PortPolicy{
		Preferred: preferred,
		Fallbacks: []int{fb},
		Mode:      model.ModeCooperative,
		// No widening range configured.
	}

	_, err := alloc.Allocate(context.Background(), preferred, testProfile(), policy)
	require.Error(t, err)

	var exhausted *model.PortExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, preferred, exhausted.Requested)
	assert.Contains(t, exhausted.Tried, preferred)
	assert.Contains(t, exhausted.Tried, fb)
}

// TestAllocate_CancelledContext verifies the fallback walk respects
// context cancellation.
func TestAllocate_CancelledContext(t *testing.T) {
	alloc, _ := newTestAllocator(t)

	preferred := freeTestPort(t)
	occupyPort(t, preferred)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	policy := model.PortPolicy{
		Preferred: preferred,
		Fallbacks: []int{freeTestPort(t)},
		Mode:      model.ModeCooperative,
	}

	_, err := alloc.Allocate(ctx, preferred, testProfile(), policy)
	assert.ErrorIs(t, err, context.Canceled)
}
