// Package protocol implements the LIFX LAN binary protocol.
//
// This package encodes and decodes the messages lifxlab exchanges with LIFX
// bulbs and assembles them into frames ready for a UDP socket. All functions
// are pure except HandleDatagram, which also logs.
//
// # Frame Layout
//
// Every frame is a 36-byte header followed by a message payload. All
// integers are little-endian:
//
//	[0-1]    size           Header + payload length
//	[2-3]    flags          protocol (12 bits, 1024) | addressable | tagged | origin
//	[4-7]    source         Client identifier echoed back in replies
//	[8-15]   target         Device identity (zero = all devices)
//	[16-21]  reserved
//	[22]     flags          res_required (bit 0) | ack_required (bit 1)
//	[23]     sequence       Wrap-around request counter
//	[24-31]  reserved
//	[32-33]  type           Message type
//	[34-35]  reserved
//
// # Message Types
//
// The package supports the subset needed for discovery and light control:
//   - GetService (2): broadcast discovery request
//   - StateService (3): device reply with service type and port
//   - Acknowledgement (45): reply to frames sent with ack_required
//   - LightSetColor (102): fade to an HSBK color
//   - LightSetPower (117): power on (65535) or off (0)
//
// # Usage Example - Construction
//
//	target := protocol.Target(0x1122334455667788)
//	data, err := protocol.BuildPacked(protocol.BuildOptions{
//	    Target:      &target,
//	    Source:      protocol.DefaultSource,
//	    AckRequired: true,
//	}, &protocol.SetPower{Level: protocol.PowerLevelMax})
//
// # Usage Example - Parsing
//
//	frame, err := protocol.Unpack(datagram)
//	if err != nil {
//	    return err
//	}
//	msg, err := frame.Message()
//	switch m := msg.(type) {
//	case *protocol.StateService:
//	    fmt.Printf("%s offers service %d on port %d\n", frame.Header.Target, m.Service, m.Port)
//	}
//
// # Error Handling
//
// Decoding failures are returned as *DecodeError wrapping ErrTruncatedFrame
// or ErrUnknownMessageType; build failures as *BuildError wrapping
// ErrPayloadTooLarge. Use errors.Is to classify them. Malformed input never
// panics.
package protocol
