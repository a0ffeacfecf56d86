//go:build !unix

package transport

import "syscall"

// controlBroadcast is a no-op where the runtime already enables broadcast
// on UDP sockets.
func controlBroadcast(network, address string, c syscall.RawConn) error {
	return nil
}
