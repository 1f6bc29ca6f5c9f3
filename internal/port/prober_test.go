package port

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// occupyPort binds a real TCP listener so tests can simulate an
// occupied port. The listener is released when the test ends.
func occupyPort(t *testing.T, port int) net.Listener {
	t.Helper()
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	require.NoError(t, err, "test needs port %d free to simulate occupancy", port)
	t.Cleanup(func() { _ = listener.Close() })
	return listener
}

// freeTestPort asks the OS for a currently free port, then releases it.
// There is a small race window before the test re-uses the number, but
// high ephemeral ports make collisions unlikely in practice.
func freeTestPort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())
	return port
}

// TestProber_FreePort verifies that an unbound port probes as free.
func TestProber_FreePort(t *testing.T) {
	prober := NewProber()
	assert.True(t, prober.IsFree(freeTestPort(t)))
}

// TestProber_OccupiedPort verifies that a bound port probes as occupied.
func TestProber_OccupiedPort(t *testing.T) {
	port := freeTestPort(t)
	occupyPort(t, port)

	prober := NewProber()
	assert.False(t, prober.IsFree(port))
}

// TestProber_InvalidPort verifies out-of-range values fail safe.
func TestProber_InvalidPort(t *testing.T) {
	prober := NewProber()
	assert.False(t, prober.IsFree(0))
	assert.False(t, prober.IsFree(-1))
	assert.False(t, prober.IsFree(70000))
}

// TestProber_CanConnect verifies the outbound connect probe against a
// real listener and against a closed port.
func TestProber_CanConnect(t *testing.T) {
	port := freeTestPort(t)
	prober := NewProber()

	assert.False(t, prober.CanConnect(port, 200*time.Millisecond),
		"nothing listening yet")

	occupyPort(t, port)
	assert.True(t, prober.CanConnect(port, time.Second),
		"connect should succeed once a listener is up")
}
