// Package session holds the live state of spawned dev-server processes.
//
// A Session is the stateful record of one spawned process bound to one
// port: the process handle, a ring-limited output buffer, the running
// flag, and the observers attached at creation time. The Registry keys
// sessions by port and is the only shared mutable state in the engine.
//
// Two ordering invariants are enforced here and relied on everywhere
// else:
//   - the registry is mutated BEFORE any observer callback runs, so no
//     observer can see a session that is both "exited" and registered;
//   - Exit is the final event delivered for a session, after all output
//     chunks.
//
// Nothing in this package is persisted. The registry's lifetime spans
// the host process; a fresh process starts empty.
package session
