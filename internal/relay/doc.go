// Package relay serves stream messages to WebSocket clients.
//
// The hub broadcasts every message to all connected clients. Each client
// has a bounded send queue; a client that cannot keep up is dropped
// rather than allowed to stall the stream.
package relay
