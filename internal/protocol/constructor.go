package protocol

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
)

// DefaultSource is the source identifier lifxlab stamps on every frame so
// replies addressed to us can be told apart from other clients on the LAN.
const DefaultSource uint32 = 0x6c786c62

// Encode serializes a message into its fixed-layout payload
//
// Payload layouts (all integers little-endian):
//
//	GetService       (2)    empty
//	StateService     (3)    [0] service  [1-4] port
//	Acknowledgement  (45)   empty
//	LightSetColor    (102)  [0] reserved  [1-2] hue  [3-4] saturation
//	                        [5-6] brightness  [7-8] kelvin  [9-12] duration
//	LightSetPower    (117)  [0-1] level  [2-5] duration
func Encode(m Message) ([]byte, error) {
	switch msg := m.(type) {
	case *GetService, *Acknowledgement:
		return []byte{}, nil

	case *StateService:
		payload := make([]byte, StateServiceSize)
		payload[0] = msg.Service
		binary.LittleEndian.PutUint32(payload[1:5], msg.Port)
		return payload, nil

	case *SetColor:
		payload := make([]byte, SetColorSize)
		payload[0] = msg.Reserved
		binary.LittleEndian.PutUint16(payload[1:3], msg.Color.Hue)
		binary.LittleEndian.PutUint16(payload[3:5], msg.Color.Saturation)
		binary.LittleEndian.PutUint16(payload[5:7], msg.Color.Brightness)
		binary.LittleEndian.PutUint16(payload[7:9], msg.Color.Kelvin)
		binary.LittleEndian.PutUint32(payload[9:13], msg.Duration)
		return payload, nil

	case *SetPower:
		payload := make([]byte, SetPowerSize)
		binary.LittleEndian.PutUint16(payload[0:2], msg.Level)
		binary.LittleEndian.PutUint32(payload[2:6], msg.Duration)
		return payload, nil

	default:
		return nil, fmt.Errorf("encode %T: %w", m, ErrUnsupportedMessage)
	}
}

// Build assembles a frame for m using the addressing in opts.
//
// A frame with opts.Target set is addressable and carries the target; a
// frame without one is tagged and its target field is left zero so every
// device on the segment handles it.
func Build(opts BuildOptions, m Message) (*Frame, error) {
	if m == nil {
		return nil, &BuildError{Err: ErrUnsupportedMessage}
	}

	payload, err := Encode(m)
	if err != nil {
		return nil, &BuildError{MsgType: m.Type(), Err: err}
	}

	size := HeaderSize + len(payload)
	if size > MaxFrameSize {
		return nil, &BuildError{MsgType: m.Type(), Size: size, Err: ErrPayloadTooLarge}
	}

	h := Header{
		Size:        uint16(size),
		Protocol:    ProtocolNumber,
		Source:      opts.Source,
		AckRequired: opts.AckRequired,
		ResRequired: opts.ResRequired,
		Sequence:    opts.Sequence,
		Type:        m.Type(),
	}
	if opts.Target != nil {
		h.Addressable = true
		h.Target = *opts.Target
	} else {
		h.Tagged = true
	}

	return &Frame{Header: h, Payload: payload}, nil
}

// Pack serializes the header followed by the payload. The size field is
// always rewritten from the actual payload length.
func (f *Frame) Pack() ([]byte, error) {
	size := HeaderSize + len(f.Payload)
	if size > MaxFrameSize {
		return nil, &BuildError{MsgType: f.Header.Type, Size: size, Err: ErrPayloadTooLarge}
	}
	f.Header.Size = uint16(size)

	buf := make([]byte, size)
	marshalHeader(buf, &f.Header)
	copy(buf[HeaderSize:], f.Payload)
	return buf, nil
}

// BuildPacked is Build followed by Pack
func BuildPacked(opts BuildOptions, m Message) ([]byte, error) {
	frame, err := Build(opts, m)
	if err != nil {
		return nil, err
	}
	return frame.Pack()
}

// Sequencer hands out wrap-around sequence numbers. Safe for concurrent use.
type Sequencer struct {
	n atomic.Uint32
}

// Next returns the next sequence number
func (s *Sequencer) Next() uint8 {
	return uint8(s.n.Add(1))
}
