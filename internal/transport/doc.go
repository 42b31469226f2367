// Package transport maintains the TCP connection to a receiver.
//
// It owns the socket lifecycle: dialing, a read pump with
// pause/resume flow control, write access, and (via Manager) automatic
// reconnection with exponential backoff. The protocol layer
// (internal/avr) stays transport-agnostic: a Conn satisfies
// avr.Transport, and the Manager constructs a fresh avr.Handler for
// every established connection, since handler state is only meaningful
// for the lifetime of one connection.
package transport
