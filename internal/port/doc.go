// Package port implements port probing and policy-driven port
// allocation for dev-server preview sessions.
//
// The Prober asks the OS directly whether a port is free by attempting
// a transient exclusive bind with net.Listen. This is more reliable
// than parsing /proc/net/* or shelling out to lsof/ss, which may
// require elevated permissions.
//
// The Allocator resolves conflicts according to the framework's
// PortPolicy:
//
//	preferred port → cooperative re-attach to an owned session →
//	aggressive occupant termination / ask-the-caller → ordered
//	fallback list → bounded range widening → PortExhaustedError
//
// Fallback ports are tried strictly in the policy's declared order;
// the full numeric range is only scanned as a last resort, bounded by
// the policy's [RangeMin, RangeMax].
package port
