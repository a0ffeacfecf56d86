package protocol

import (
	"fmt"
)

// Message type constants (LIFX LAN protocol)
const (
	MsgTypeGetService      uint16 = 2
	MsgTypeStateService    uint16 = 3
	MsgTypeAcknowledgement uint16 = 45
	MsgTypeLightSetColor   uint16 = 102
	MsgTypeLightSetPower   uint16 = 117
)

// Fixed payload sizes per message type
const (
	GetServiceSize      = 0
	StateServiceSize    = 5  // service(1) + port(4)
	AcknowledgementSize = 0
	SetColorSize        = 13 // reserved(1) + HSBK(8) + duration(4)
	SetPowerSize        = 6  // level(2) + duration(4)
)

// Service identifiers carried by StateService
const (
	ServiceUDP uint8 = 1
)

// Power levels accepted by SetPower. The protocol only knows "off" (0) and
// "on" (65535); intermediate values are rejected by the firmware.
const (
	PowerLevelOff uint16 = 0
	PowerLevelMax uint16 = 0xFFFF
)

// Message is a decoded protocol payload
type Message interface {
	Type() uint16
	String() string
}

// HSBK is a color in hue/saturation/brightness/kelvin form, all 16-bit
type HSBK struct {
	Hue        uint16
	Saturation uint16
	Brightness uint16
	Kelvin     uint16
}

func (c HSBK) String() string {
	return fmt.Sprintf("HSBK{h=%d, s=%d, b=%d, k=%d}", c.Hue, c.Saturation, c.Brightness, c.Kelvin)
}

// GetService (type 2) - broadcast by clients to discover devices
type GetService struct{}

func (m *GetService) Type() uint16   { return MsgTypeGetService }
func (m *GetService) String() string { return "GetService{}" }

// StateService (type 3) - device reply to GetService advertising a service port
type StateService struct {
	Service uint8  // 1 = UDP
	Port    uint32 // Port the service listens on (little-endian on the wire)
}

func (m *StateService) Type() uint16 { return MsgTypeStateService }

func (m *StateService) String() string {
	return fmt.Sprintf("StateService{service=%d, port=%d}", m.Service, m.Port)
}

// Acknowledgement (type 45) - sent by a device when ack_required was set
type Acknowledgement struct{}

func (m *Acknowledgement) Type() uint16   { return MsgTypeAcknowledgement }
func (m *Acknowledgement) String() string { return "Acknowledgement{}" }

// SetPower (type 117, Light::SetPower) - power a light on or off over Duration milliseconds
type SetPower struct {
	Level    uint16
	Duration uint32
}

func (m *SetPower) Type() uint16 { return MsgTypeLightSetPower }

func (m *SetPower) String() string {
	state := "on"
	if m.Level == PowerLevelOff {
		state = "off"
	}
	return fmt.Sprintf("SetPower{level=%d (%s), duration=%dms}", m.Level, state, m.Duration)
}

// SetColor (type 102, Light::SetColor) - fade a light to Color over Duration milliseconds
type SetColor struct {
	Reserved uint8
	Color    HSBK
	Duration uint32
}

func (m *SetColor) Type() uint16 { return MsgTypeLightSetColor }

func (m *SetColor) String() string {
	return fmt.Sprintf("SetColor{%s, duration=%dms}", m.Color, m.Duration)
}

// MessageTypeName returns a human-readable name for a message type
func MessageTypeName(msgType uint16) string {
	switch msgType {
	case MsgTypeGetService:
		return "GetService"
	case MsgTypeStateService:
		return "StateService"
	case MsgTypeAcknowledgement:
		return "Acknowledgement"
	case MsgTypeLightSetColor:
		return "LightSetColor"
	case MsgTypeLightSetPower:
		return "LightSetPower"
	default:
		return fmt.Sprintf("Unknown(%d)", msgType)
	}
}

// payloadSize returns the fixed payload size for a message type
func payloadSize(msgType uint16) (int, bool) {
	switch msgType {
	case MsgTypeGetService:
		return GetServiceSize, true
	case MsgTypeStateService:
		return StateServiceSize, true
	case MsgTypeAcknowledgement:
		return AcknowledgementSize, true
	case MsgTypeLightSetColor:
		return SetColorSize, true
	case MsgTypeLightSetPower:
		return SetPowerSize, true
	default:
		return 0, false
	}
}
