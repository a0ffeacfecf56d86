package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/muurk/lifxlab/internal/logging"
	"github.com/muurk/lifxlab/internal/protocol"
	"github.com/muurk/lifxlab/internal/registry"
	"github.com/muurk/lifxlab/internal/transport"
	"go.uber.org/zap"
)

var (
	// ErrNoDevices is returned when there is nothing to dispatch to and the
	// dispatcher requires at least one device
	ErrNoDevices = errors.New("no devices to dispatch to")

	// ErrOpenSocket wraps a failure to create the command socket
	ErrOpenSocket = errors.New("failed to open command socket")
)

// Conn is the socket one dispatch sends on
type Conn interface {
	SendUnicast(data []byte, addr netip.AddrPort) error
	Receive(ctx context.Context, timeout time.Duration) (transport.Datagram, error)
	Close() error
}

// Opener opens the socket for one dispatch
type Opener func() (Conn, error)

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithSource sets the source identifier placed in command frames
func WithSource(source uint32) Option {
	return func(d *Dispatcher) { d.source = source }
}

// WithAckTimeout makes Dispatch wait up to timeout for acknowledgements.
// Zero disables waiting.
func WithAckTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) { d.ackTimeout = timeout }
}

// WithRequireDevices makes Dispatch fail with ErrNoDevices on an empty
// device list instead of returning an empty report
func WithRequireDevices(require bool) Option {
	return func(d *Dispatcher) { d.requireDevices = require }
}

// WithOpener replaces the socket factory
func WithOpener(open Opener) Option {
	return func(d *Dispatcher) { d.open = open }
}

// Dispatcher sends commands to devices independently, so one unreachable
// device never prevents delivery to the others.
type Dispatcher struct {
	open           Opener
	source         uint32
	ackTimeout     time.Duration
	requireDevices bool
	seq            protocol.Sequencer
}

// New creates a dispatcher that opens a fresh command socket described by
// netCfg for each dispatch
func New(netCfg transport.Config, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		source: protocol.DefaultSource,
		open: func() (Conn, error) {
			return transport.OpenCommand(netCfg)
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch sends cmd to every device and reports each outcome.
//
// The returned error is non-nil only for ErrNoDevices, ErrOpenSocket or an
// already-cancelled context. Per-device failures are recorded in the report.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command, devices []registry.Device) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{Command: cmd, Outcomes: make([]Outcome, 0, len(devices))}

	if len(devices) == 0 {
		if d.requireDevices {
			return nil, ErrNoDevices
		}
		logging.Info("No devices to dispatch to", zap.String("command", cmd.Name))
		return report, nil
	}

	conn, err := d.open()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpenSocket, err)
	}
	defer conn.Close()

	pending := 0
	for _, dev := range devices {
		outcome := Outcome{Identity: dev.Identity, Addr: dev.Addr}

		if err := ctx.Err(); err != nil {
			outcome.Err = err
			report.Outcomes = append(report.Outcomes, outcome)
			continue
		}

		outcome.Sequence = d.seq.Next()
		outcome.Err = d.send(conn, cmd, dev, outcome.Sequence)
		if outcome.Err == nil {
			outcome.Sent = true
			pending++
		} else {
			logging.Warn("Command send failed",
				zap.String("command", cmd.Name),
				zap.String("target", dev.Identity.String()),
				zap.String("addr", dev.Addr.String()),
				zap.Error(outcome.Err),
			)
		}

		report.Outcomes = append(report.Outcomes, outcome)
	}

	if d.ackTimeout > 0 && pending > 0 {
		d.collectAcks(ctx, conn, report, pending)
	}

	logging.Info("Command dispatched",
		zap.String("command", cmd.Name),
		zap.Int("devices", len(report.Outcomes)),
		zap.Int("failed", len(report.Failed())),
	)

	return report, nil
}

func (d *Dispatcher) send(conn Conn, cmd Command, dev registry.Device, seq uint8) error {
	target := dev.Identity
	frame, err := protocol.BuildPacked(protocol.BuildOptions{
		Target:      &target,
		Source:      d.source,
		AckRequired: true,
		Sequence:    seq,
	}, cmd.Message)
	if err != nil {
		return fmt.Errorf("build %s: %w", cmd.Name, err)
	}

	return conn.SendUnicast(frame, dev.Addr)
}

// collectAcks reads replies until every sent device acknowledged or the ack
// window closes. Receive failures end collection without failing devices.
func (d *Dispatcher) collectAcks(ctx context.Context, conn Conn, report *Report, pending int) {
	byTarget := make(map[protocol.Target]int, len(report.Outcomes))
	byAddr := make(map[netip.AddrPort]int, len(report.Outcomes))
	for i, o := range report.Outcomes {
		if o.Sent {
			byTarget[o.Identity] = i
			byAddr[o.Addr] = i
		}
	}

	deadline := time.Now().Add(d.ackTimeout)
	for pending > 0 {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}

		dg, err := conn.Receive(ctx, remaining)
		if err != nil {
			if !transport.IsTimeout(err) && ctx.Err() == nil {
				logging.Warn("Stopped waiting for acknowledgements", zap.Error(err))
			}
			return
		}

		frame, msg, err := protocol.HandleDatagram(dg.Addr.String(), dg.Data)
		if err != nil {
			i, ok := -1, false
			if frame != nil {
				i, ok = byTarget[frame.Target]
			}
			if !ok {
				i, ok = byAddr[dg.Addr]
			}
			if ok && report.Outcomes[i].Err == nil {
				report.Outcomes[i].Err = fmt.Errorf("malformed reply from %s: %w", dg.Addr, err)
				pending--
			}
			continue
		}

		if _, isAck := msg.(*protocol.Acknowledgement); !isAck || frame.Source != d.source {
			continue
		}

		i, ok := byTarget[frame.Target]
		if !ok || report.Outcomes[i].Acked || report.Outcomes[i].Err != nil {
			continue
		}
		report.Outcomes[i].Acked = true
		pending--
	}
}
