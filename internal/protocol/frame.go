package protocol

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Header field constants
const (
	HeaderSize     = 36   // frame(8) + frame address(16) + protocol header(12)
	MaxFrameSize   = 1024 // Largest frame accepted by the receive buffer
	ProtocolNumber = 1024 // Only protocol number understood by devices

	flagAddressable = 0x1000
	flagTagged      = 0x2000
	protocolMask    = 0x0FFF
	originShift     = 14

	flagResRequired = 0x01
	flagAckRequired = 0x02
)

// Target is the 64-bit identity of a device. The first six bytes on the wire
// are the device MAC address. The zero Target addresses all devices.
type Target uint64

// String returns the target as 16 hex digits
func (t Target) String() string {
	return fmt.Sprintf("%016x", uint64(t))
}

// MAC returns the MAC address encoded in the first six wire bytes
func (t Target) MAC() net.HardwareAddr {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(t))
	return net.HardwareAddr(b[:6])
}

// MarshalText implements encoding.TextMarshaler
func (t Target) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *Target) UnmarshalText(text []byte) error {
	parsed, err := ParseTarget(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseTarget parses a target written as hex, with or without a 0x prefix
func ParseTarget(s string) (Target, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid target %q: %w", s, err)
	}
	return Target(v), nil
}

// BuildOptions are the per-send addressing parameters of a frame
type BuildOptions struct {
	Target      *Target // nil = broadcast to all devices
	Source      uint32  // Client identifier echoed back in replies
	AckRequired bool    // Ask the device for an Acknowledgement
	ResRequired bool    // Ask the device for a State reply
	Sequence    uint8   // Wrap-around counter to correlate replies
}

// Header is the decoded 36-byte frame header
type Header struct {
	Size        uint16 // Total frame size (header + payload)
	Protocol    uint16 // Always ProtocolNumber
	Addressable bool   // Set when the frame names a specific target
	Tagged      bool   // Set when the frame is addressed to all devices
	Origin      uint8
	Source      uint32
	Target      Target
	ResRequired bool
	AckRequired bool
	Sequence    uint8
	Type        uint16 // Message type
}

// Frame is a header plus its encoded payload
type Frame struct {
	Header
	Payload []byte
}

// marshalHeader writes h into the first HeaderSize bytes of buf
func marshalHeader(buf []byte, h *Header) {
	// Frame
	binary.LittleEndian.PutUint16(buf[0:2], h.Size)
	flags := h.Protocol & protocolMask
	if h.Addressable {
		flags |= flagAddressable
	}
	if h.Tagged {
		flags |= flagTagged
	}
	flags |= uint16(h.Origin&0x03) << originShift
	binary.LittleEndian.PutUint16(buf[2:4], flags)
	binary.LittleEndian.PutUint32(buf[4:8], h.Source)

	// Frame address
	binary.LittleEndian.PutUint64(buf[8:16], uint64(h.Target))
	// buf[16:22] reserved
	var addrFlags byte
	if h.ResRequired {
		addrFlags |= flagResRequired
	}
	if h.AckRequired {
		addrFlags |= flagAckRequired
	}
	buf[22] = addrFlags
	buf[23] = h.Sequence

	// Protocol header
	// buf[24:32] reserved
	binary.LittleEndian.PutUint16(buf[32:34], h.Type)
	// buf[34:36] reserved
}

// unmarshalHeader reads a Header from the first HeaderSize bytes of buf
func unmarshalHeader(buf []byte) Header {
	flags := binary.LittleEndian.Uint16(buf[2:4])
	return Header{
		Size:        binary.LittleEndian.Uint16(buf[0:2]),
		Protocol:    flags & protocolMask,
		Addressable: flags&flagAddressable != 0,
		Tagged:      flags&flagTagged != 0,
		Origin:      uint8(flags >> originShift),
		Source:      binary.LittleEndian.Uint32(buf[4:8]),
		Target:      Target(binary.LittleEndian.Uint64(buf[8:16])),
		ResRequired: buf[22]&flagResRequired != 0,
		AckRequired: buf[22]&flagAckRequired != 0,
		Sequence:    buf[23],
		Type:        binary.LittleEndian.Uint16(buf[32:34]),
	}
}

// String returns a debug representation of the header
func (h Header) String() string {
	return fmt.Sprintf("Header{size=%d, type=%s, source=0x%08x, target=%s, tagged=%v, ack=%v, res=%v, seq=%d}",
		h.Size, MessageTypeName(h.Type), h.Source, h.Target, h.Tagged, h.AckRequired, h.ResRequired, h.Sequence)
}

// String returns a debug representation of the frame
func (f *Frame) String() string {
	return fmt.Sprintf("Frame{%s, payload=%d bytes}", f.Header, len(f.Payload))
}
