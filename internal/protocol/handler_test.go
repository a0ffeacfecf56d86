package protocol

import (
	"errors"
	"testing"

	"github.com/muurk/lifxlab/internal/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestHandleDatagram(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logging.SetLogger(zap.New(core))
	t.Cleanup(func() { logging.SetLogger(nil) })

	data, err := BuildPacked(BuildOptions{Source: DefaultSource}, &StateService{Service: ServiceUDP, Port: 56700})
	if err != nil {
		t.Fatalf("BuildPacked() error = %v", err)
	}

	frame, msg, err := HandleDatagram("192.168.1.50:56700", data)
	if err != nil {
		t.Fatalf("HandleDatagram() error = %v", err)
	}
	if frame.Source != DefaultSource {
		t.Errorf("Source = 0x%08x, want 0x%08x", frame.Source, DefaultSource)
	}
	if _, ok := msg.(*StateService); !ok {
		t.Errorf("message = %T, want *StateService", msg)
	}
	if logs.FilterMessage("Decoded protocol message").Len() != 1 {
		t.Errorf("missing decode log entry, got %v", logs.All())
	}
}

func TestHandleDatagram_LogsRejectedBytes(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logging.SetLogger(zap.New(core))
	t.Cleanup(func() { logging.SetLogger(nil) })

	frame, msg, err := HandleDatagram("192.168.1.50:56700", []byte{0x24, 0x00, 0x00})
	if !errors.Is(err, ErrTruncatedFrame) {
		t.Fatalf("HandleDatagram() error = %v, want %v", err, ErrTruncatedFrame)
	}
	if frame != nil || msg != nil {
		t.Errorf("HandleDatagram() = %v, %v, want nil", frame, msg)
	}

	raw := logs.FilterMessage("Rejected datagram bytes").All()
	if len(raw) != 1 {
		t.Fatalf("got %d raw byte entries, want 1", len(raw))
	}
	fields := raw[0].ContextMap()
	if fields["hex"] != "240000" {
		t.Errorf("hex = %v, want 240000", fields["hex"])
	}
	if fields["length"] != int64(3) {
		t.Errorf("length = %v, want 3", fields["length"])
	}
}
