package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncatedFrame is returned when a frame or payload is shorter than
	// the minimum size for its declared message type.
	ErrTruncatedFrame = errors.New("truncated frame")

	// ErrUnknownMessageType is returned when decoding a type tag this package
	// does not implement. Listeners should skip the datagram and continue.
	ErrUnknownMessageType = errors.New("unknown message type")

	// ErrPayloadTooLarge is returned when header + payload exceed MaxFrameSize.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrUnsupportedMessage is returned when encoding a nil or foreign Message.
	ErrUnsupportedMessage = errors.New("unsupported message")
)

// DecodeError describes a frame or payload that could not be decoded
type DecodeError struct {
	MsgType uint16 // Declared message type (0 if the header itself was unreadable)
	Length  int    // Number of bytes available
	Want    int    // Minimum number of bytes required (0 if not applicable)
	Err     error  // ErrTruncatedFrame or ErrUnknownMessageType
}

func (e *DecodeError) Error() string {
	if e.Want > 0 {
		return fmt.Sprintf("decode %s: %v: %d bytes (minimum %d)",
			MessageTypeName(e.MsgType), e.Err, e.Length, e.Want)
	}
	return fmt.Sprintf("decode %s: %v", MessageTypeName(e.MsgType), e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// BuildError describes a frame that could not be assembled
type BuildError struct {
	MsgType uint16
	Size    int // Size the frame would have had
	Err     error
}

func (e *BuildError) Error() string {
	if errors.Is(e.Err, ErrPayloadTooLarge) {
		return fmt.Sprintf("build %s: %v: %d bytes (max %d)",
			MessageTypeName(e.MsgType), e.Err, e.Size, MaxFrameSize)
	}
	return fmt.Sprintf("build %s: %v", MessageTypeName(e.MsgType), e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }
