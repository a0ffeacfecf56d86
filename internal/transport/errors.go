package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned by Receive when no datagram arrived before the
	// deadline. It is a normal end-of-data signal, not a socket failure.
	ErrTimeout = errors.New("receive timeout")

	// ErrNoBroadcastAddress is returned by SendBroadcast on a socket
	// configured without a broadcast destination.
	ErrNoBroadcastAddress = errors.New("no broadcast address configured")
)

// SendError is a failed send to one destination
type SendError struct {
	Addr string
	Err  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send to %s: %v", e.Addr, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// IsTimeout reports whether err is a receive timeout
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
