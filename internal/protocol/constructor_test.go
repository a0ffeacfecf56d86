package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name    string
		msg     Message
		want    []byte
		wantErr bool
	}{
		{
			name: "get service has empty payload",
			msg:  &GetService{},
			want: []byte{},
		},
		{
			name: "acknowledgement has empty payload",
			msg:  &Acknowledgement{},
			want: []byte{},
		},
		{
			name: "state service",
			msg:  &StateService{Service: ServiceUDP, Port: 56700},
			want: []byte{0x01, 0x7c, 0xdd, 0x00, 0x00},
		},
		{
			name: "set power full with duration",
			msg:  &SetPower{Level: PowerLevelMax, Duration: 1000},
			want: []byte{0xff, 0xff, 0xe8, 0x03, 0x00, 0x00},
		},
		{
			name: "set power off",
			msg:  &SetPower{Level: PowerLevelOff, Duration: 1},
			want: []byte{0x00, 0x00, 0x01, 0x00, 0x00, 0x00},
		},
		{
			name: "set color",
			msg: &SetColor{
				Color:    HSBK{Hue: 120, Saturation: 65535, Brightness: 65535, Kelvin: 3500},
				Duration: 0,
			},
			want: []byte{
				0x00,       // reserved
				0x78, 0x00, // hue
				0xff, 0xff, // saturation
				0xff, 0xff, // brightness
				0xac, 0x0d, // kelvin
				0x00, 0x00, 0x00, 0x00, // duration
			},
		},
		{
			name:    "nil message",
			msg:     nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.msg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Encode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedMessage) {
					t.Errorf("Encode() error = %v, want ErrUnsupportedMessage", err)
				}
				return
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Encode() = % x, want % x", got, tt.want)
			}
		})
	}
}

func TestBuild_Addressing(t *testing.T) {
	target := Target(0x1122334455667788)

	tests := []struct {
		name            string
		opts            BuildOptions
		wantAddressable bool
		wantTagged      bool
		wantTarget      Target
	}{
		{
			name:            "targeted frame",
			opts:            BuildOptions{Target: &target, Source: DefaultSource, AckRequired: true},
			wantAddressable: true,
			wantTagged:      false,
			wantTarget:      target,
		},
		{
			name:            "broadcast frame",
			opts:            BuildOptions{Source: DefaultSource, ResRequired: true},
			wantAddressable: false,
			wantTagged:      true,
			wantTarget:      0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Build(tt.opts, &SetPower{Level: PowerLevelMax})
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}

			if frame.Header.Addressable != tt.wantAddressable {
				t.Errorf("Addressable = %v, want %v", frame.Header.Addressable, tt.wantAddressable)
			}
			if frame.Header.Tagged != tt.wantTagged {
				t.Errorf("Tagged = %v, want %v", frame.Header.Tagged, tt.wantTagged)
			}

			data, err := frame.Pack()
			if err != nil {
				t.Fatalf("Pack() error = %v", err)
			}

			gotTarget := binary.LittleEndian.Uint64(data[8:16])
			if Target(gotTarget) != tt.wantTarget {
				t.Errorf("target field = %016x, want %s", gotTarget, tt.wantTarget)
			}

			flags := binary.LittleEndian.Uint16(data[2:4])
			if (flags&flagAddressable != 0) != tt.wantAddressable {
				t.Errorf("addressable bit = %v, want %v", flags&flagAddressable != 0, tt.wantAddressable)
			}
			if flags&protocolMask != ProtocolNumber {
				t.Errorf("protocol = %d, want %d", flags&protocolMask, ProtocolNumber)
			}
		})
	}
}

func TestPack_HeaderBytes(t *testing.T) {
	data, err := BuildPacked(BuildOptions{
		Source:      DefaultSource,
		ResRequired: true,
		Sequence:    7,
	}, &GetService{})
	if err != nil {
		t.Fatalf("BuildPacked() error = %v", err)
	}

	want := make([]byte, HeaderSize)
	want[0] = 0x24 // size 36
	want[2] = 0x00
	want[3] = 0x24 // protocol 1024 | tagged
	binary.LittleEndian.PutUint32(want[4:8], DefaultSource)
	want[22] = 0x01 // res_required
	want[23] = 7
	want[32] = 0x02 // GetService

	if !bytes.Equal(data, want) {
		t.Errorf("packed GetService =\n% x\nwant\n% x", data, want)
	}
}

func TestPack_SizeIntegrity(t *testing.T) {
	target := Target(0xd073d5010203)
	messages := []Message{
		&GetService{},
		&StateService{Service: ServiceUDP, Port: 56700},
		&Acknowledgement{},
		&SetPower{Level: PowerLevelMax, Duration: 250},
		&SetColor{Color: HSBK{Hue: 1, Saturation: 2, Brightness: 3, Kelvin: 4}, Duration: 5},
	}
	optionSets := []BuildOptions{
		{Source: DefaultSource},
		{Target: &target, Source: 1, AckRequired: true, Sequence: 200},
	}

	for _, opts := range optionSets {
		for _, msg := range messages {
			t.Run(MessageTypeName(msg.Type()), func(t *testing.T) {
				data, err := BuildPacked(opts, msg)
				if err != nil {
					t.Fatalf("BuildPacked() error = %v", err)
				}

				size := binary.LittleEndian.Uint16(data[0:2])
				if int(size) != len(data) {
					t.Errorf("size field = %d, len(frame) = %d", size, len(data))
				}

				wantPayload, _ := payloadSize(msg.Type())
				if len(data) != HeaderSize+wantPayload {
					t.Errorf("len(frame) = %d, want %d", len(data), HeaderSize+wantPayload)
				}

				if err := ValidateFrame(data); err != nil {
					t.Errorf("ValidateFrame() error = %v", err)
				}
			})
		}
	}
}

func TestPack_PayloadTooLarge(t *testing.T) {
	frame := &Frame{
		Header:  Header{Protocol: ProtocolNumber, Type: MsgTypeLightSetColor},
		Payload: make([]byte, MaxFrameSize-HeaderSize+1),
	}

	_, err := frame.Pack()
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("Pack() error = %v, want ErrPayloadTooLarge", err)
	}

	var buildErr *BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("Pack() error type = %T, want *BuildError", err)
	}
	if buildErr.Size != MaxFrameSize+1 {
		t.Errorf("BuildError.Size = %d, want %d", buildErr.Size, MaxFrameSize+1)
	}

	frame.Payload = make([]byte, MaxFrameSize-HeaderSize)
	if _, err := frame.Pack(); err != nil {
		t.Errorf("Pack() at exactly MaxFrameSize error = %v", err)
	}
}

func TestBuild_NilMessage(t *testing.T) {
	_, err := Build(BuildOptions{}, nil)
	if !errors.Is(err, ErrUnsupportedMessage) {
		t.Errorf("Build(nil) error = %v, want ErrUnsupportedMessage", err)
	}
}

func TestSequencer(t *testing.T) {
	var seq Sequencer

	if got := seq.Next(); got != 1 {
		t.Errorf("first Next() = %d, want 1", got)
	}

	for i := 0; i < 254; i++ {
		seq.Next()
	}
	if got := seq.Next(); got != 0 {
		t.Errorf("Next() after 256 calls = %d, want 0 (wrap around)", got)
	}
}
