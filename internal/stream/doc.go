// Package stream implements the connection controller for the streaming API.
//
// The controller owns exactly one transport at a time and drives it through
// connect, sign, read-headers, and read-frames. Every failure mode maps to
// one of three reconnect-delay tiers:
//
//   - pre-established: the transport closed before headers arrived
//   - rate-limited: the server answered HTTP 420
//   - error: any other transient failure
//
// Each connection attempt carries a unique identity token; callbacks from a
// superseded attempt are ignored, which is the sole mechanism keeping an
// old connection's late events from driving the current one.
package stream
