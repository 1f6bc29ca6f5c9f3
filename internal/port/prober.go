package port

import (
	"fmt"
	"net"
	"time"
)

// Prober checks whether specific ports are available on the host.
//
// It uses the operating system's network stack (net.Listen) to
// determine if a port is free: if the transient exclusive bind
// succeeds, the port is available — the listener is closed
// immediately, we never accept connections on it.
//
// The struct is defined as a struct (rather than bare functions) so
// the bind address stays configurable and the Prober is injectable as
// a dependency, which keeps the Allocator testable.
type Prober struct {
	// addr is the bind address prefix, ":" by default. Binding to all
	// interfaces matches how dev servers typically listen, avoiding
	// false "free" results for ports bound on 0.0.0.0.
	addr string
}

// NewProber creates a Prober that binds on all interfaces.
func NewProber() *Prober {
	return &Prober{addr: ""}
}

// IsFree checks whether a single TCP port is free on the host.
// Out-of-range values report not-free, failing safe.
func (p *Prober) IsFree(port int) bool {
	if port < 1 || port > 65535 {
		return false
	}

	listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", p.addr, port))
	if err != nil {
		return false
	}
	defer func() { _ = listener.Close() }()
	return true
}

// CanConnect attempts an outbound TCP connection to the port on the
// loopback interface, bounded by timeout. Success means something is
// accepting connections there — used by the readiness detector and by
// liveness re-checks, the inverse question of IsFree.
func (p *Prober) CanConnect(port int, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), timeout)
	if err != nil {
		return false
	}
	defer func() { _ = conn.Close() }()
	return true
}
