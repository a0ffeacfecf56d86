// Package transport provides the UDP sockets used to talk to LIFX devices.
//
// Two kinds of socket exist. The discovery socket is bound to the well-known
// port 56700 with SO_BROADCAST and SO_REUSEADDR so replies to a broadcast
// GetService land on it. Command sockets bind an ephemeral port and are used
// for one dispatch each.
//
// Receive always takes a timeout and a context. A timeout yields ErrTimeout,
// which callers treat as the normal end of a collection window; cancellation
// yields ctx.Err() without waiting for the deadline.
//
// Send failures are reported per destination as *SendError so a caller
// fanning out to many devices can record each failure and keep going.
package transport
