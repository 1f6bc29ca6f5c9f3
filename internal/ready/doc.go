// Package ready determines when a freshly spawned dev server is
// actually serving traffic.
//
// Two independent checks run on every poll tick:
//   - signal match: framework-specific tokens tested case-insensitively
//     against the session's accumulated output;
//   - port probe: an outbound TCP connect to the resolved port.
//
// Whichever succeeds first decides the detection method. Output text
// alone is fragile (it varies by framework version); port reachability
// alone is slow for frameworks that bind the socket before the app can
// serve content. Racing both minimizes false negatives and latency.
//
// A timeout is a soft outcome, not an error: the caller may treat the
// server as "probably starting" and proceed.
package ready
