package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrBadProtocol is returned by Unpack when the protocol number is not ProtocolNumber
var ErrBadProtocol = errors.New("unsupported protocol number")

// Decode parses a payload of the given message type.
// Bytes past the fixed payload size are ignored.
func Decode(msgType uint16, payload []byte) (Message, error) {
	want, ok := payloadSize(msgType)
	if !ok {
		return nil, &DecodeError{MsgType: msgType, Length: len(payload), Err: ErrUnknownMessageType}
	}
	if len(payload) < want {
		return nil, &DecodeError{MsgType: msgType, Length: len(payload), Want: want, Err: ErrTruncatedFrame}
	}

	switch msgType {
	case MsgTypeGetService:
		return &GetService{}, nil

	case MsgTypeAcknowledgement:
		return &Acknowledgement{}, nil

	case MsgTypeStateService:
		return &StateService{
			Service: payload[0],
			Port:    binary.LittleEndian.Uint32(payload[1:5]),
		}, nil

	case MsgTypeLightSetColor:
		return &SetColor{
			Reserved: payload[0],
			Color: HSBK{
				Hue:        binary.LittleEndian.Uint16(payload[1:3]),
				Saturation: binary.LittleEndian.Uint16(payload[3:5]),
				Brightness: binary.LittleEndian.Uint16(payload[5:7]),
				Kelvin:     binary.LittleEndian.Uint16(payload[7:9]),
			},
			Duration: binary.LittleEndian.Uint32(payload[9:13]),
		}, nil

	case MsgTypeLightSetPower:
		return &SetPower{
			Level:    binary.LittleEndian.Uint16(payload[0:2]),
			Duration: binary.LittleEndian.Uint32(payload[2:6]),
		}, nil
	}

	// payloadSize and the switch above must list the same types
	return nil, &DecodeError{MsgType: msgType, Length: len(payload), Err: ErrUnknownMessageType}
}

// Unpack parses a raw datagram into a Frame. The payload is not decoded;
// call Message for that.
func Unpack(data []byte) (*Frame, error) {
	if len(data) < HeaderSize {
		return nil, &DecodeError{Length: len(data), Want: HeaderSize, Err: ErrTruncatedFrame}
	}

	h := unmarshalHeader(data)

	if h.Protocol != ProtocolNumber {
		return nil, &DecodeError{MsgType: h.Type, Length: len(data),
			Err: fmt.Errorf("%w: %d", ErrBadProtocol, h.Protocol)}
	}

	size := int(h.Size)
	if size < HeaderSize || size > len(data) {
		want := size
		if want < HeaderSize {
			want = HeaderSize
		}
		return nil, &DecodeError{MsgType: h.Type, Length: len(data), Want: want, Err: ErrTruncatedFrame}
	}

	payload := make([]byte, size-HeaderSize)
	copy(payload, data[HeaderSize:size])

	return &Frame{Header: h, Payload: payload}, nil
}

// Message decodes the frame payload according to the header's message type
func (f *Frame) Message() (Message, error) {
	return Decode(f.Header.Type, f.Payload)
}

// ValidateFrame checks that a packed frame is well formed: header present,
// size field consistent with the data and a payload that decodes.
func ValidateFrame(data []byte) error {
	frame, err := Unpack(data)
	if err != nil {
		return err
	}
	if int(frame.Header.Size) != len(data) {
		return fmt.Errorf("size field %d does not match frame length %d", frame.Header.Size, len(data))
	}
	if _, err := frame.Message(); err != nil {
		return err
	}
	return nil
}
