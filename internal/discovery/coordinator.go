package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/muurk/lifxlab/internal/events"
	"github.com/muurk/lifxlab/internal/logging"
	"github.com/muurk/lifxlab/internal/protocol"
	"github.com/muurk/lifxlab/internal/registry"
	"github.com/muurk/lifxlab/internal/transport"
	"go.uber.org/zap"
)

// DefaultTimeout bounds the listening phase of a discovery cycle
const DefaultTimeout = 2 * time.Second

// ErrDiscoveryInProgress is returned when a cycle is requested while
// another one is running. Requests are not queued.
var ErrDiscoveryInProgress = errors.New("discovery already in progress")

// State is the coordinator's position in a discovery cycle
type State int32

const (
	StateIdle State = iota
	StateSending
	StateListening
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateListening:
		return "listening"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Conn is the socket a discovery cycle broadcasts and listens on
type Conn interface {
	SendBroadcast(data []byte) error
	Receive(ctx context.Context, timeout time.Duration) (transport.Datagram, error)
	Close() error
}

// Opener opens the socket for one cycle
type Opener func() (Conn, error)

// Option configures a Coordinator
type Option func(*Coordinator)

// WithTimeout sets the listening window. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithSource sets the source identifier placed in discovery requests
func WithSource(source uint32) Option {
	return func(c *Coordinator) { c.source = source }
}

// WithSink sets where device_discovered notifications go
func WithSink(s events.Sink) Option {
	return func(c *Coordinator) {
		if s != nil {
			c.sink = s
		}
	}
}

// WithOpener replaces the socket factory
func WithOpener(open Opener) Option {
	return func(c *Coordinator) { c.open = open }
}

// Coordinator runs discovery cycles: broadcast GetService, then collect
// StateService replies into the registry until the timeout passes.
type Coordinator struct {
	registry *registry.Registry
	open     Opener
	sink     events.Sink
	timeout  time.Duration
	source   uint32

	state atomic.Int32
	seq   protocol.Sequencer

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New creates a coordinator that binds the discovery socket described by
// netCfg for each cycle.
func New(reg *registry.Registry, netCfg transport.Config, opts ...Option) *Coordinator {
	c := &Coordinator{
		registry: reg,
		sink:     events.Nop,
		timeout:  DefaultTimeout,
		source:   protocol.DefaultSource,
		open: func() (Conn, error) {
			return transport.ListenDiscovery(netCfg)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current cycle state
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Timeout returns the listening window
func (c *Coordinator) Timeout() time.Duration {
	return c.timeout
}

// Discover runs one cycle and blocks until it ends.
//
// Zero replies is a successful cycle. If ctx is cancelled or Stop is called,
// the partial result is returned together with the context error.
func (c *Coordinator) Discover(ctx context.Context) (*Result, error) {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer c.finish(cancel)

	return c.run(ctx)
}

// Start runs one cycle in the background. The outcome is delivered on the
// returned channel, which is closed afterwards.
func (c *Coordinator) Start(ctx context.Context) (<-chan Outcome, error) {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		defer c.finish(cancel)

		res, err := c.run(ctx)
		out <- Outcome{Result: res, Err: err}
	}()

	return out, nil
}

// Stop cancels the running cycle, if any
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

// begin leaves Idle and installs the cycle's cancel func under mu, so a
// Stop can never land between the two.
func (c *Coordinator) begin(ctx context.Context) (context.Context, context.CancelFunc, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateSending)) {
		return nil, nil, ErrDiscoveryInProgress
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	return ctx, cancel, nil
}

func (c *Coordinator) setCancel(cancel context.CancelFunc) {
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
}

func (c *Coordinator) finish(cancel context.CancelFunc) {
	cancel()
	c.setCancel(nil)
	c.state.Store(int32(StateIdle))
}

func (c *Coordinator) run(ctx context.Context) (*Result, error) {
	result := &Result{Started: time.Now()}

	conn, err := c.open()
	if err != nil {
		return nil, fmt.Errorf("failed to open discovery socket: %w", err)
	}
	defer conn.Close()

	request, err := protocol.BuildPacked(protocol.BuildOptions{
		Source:      c.source,
		ResRequired: true,
		Sequence:    c.seq.Next(),
	}, &protocol.GetService{})
	if err != nil {
		return nil, fmt.Errorf("failed to build discovery request: %w", err)
	}

	if err := conn.SendBroadcast(request); err != nil {
		return nil, fmt.Errorf("failed to broadcast discovery request: %w", err)
	}

	c.state.Store(int32(StateListening))
	logging.Debug("Discovery request sent", zap.Duration("timeout", c.timeout))

	deadline := result.Started.Add(c.timeout)
	index := make(map[protocol.Target]int)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}

		dg, err := conn.Receive(ctx, remaining)
		if err != nil {
			if transport.IsTimeout(err) {
				break
			}
			result.Duration = time.Since(result.Started)
			if ctxErr := ctx.Err(); ctxErr != nil {
				logging.Info("Discovery cancelled", zap.Int("devices", len(result.Devices)))
				return result, ctxErr
			}
			return result, fmt.Errorf("discovery receive failed: %w", err)
		}

		c.handleDatagram(dg, result, index)
	}

	result.Duration = time.Since(result.Started)
	logging.Info("Discovery complete",
		zap.Int("devices", len(result.Devices)),
		zap.Int("replies", result.Replies),
		zap.Int("skipped", result.Skipped),
		zap.Duration("duration", result.Duration),
	)

	return result, nil
}

func (c *Coordinator) handleDatagram(dg transport.Datagram, result *Result, index map[protocol.Target]int) {
	frame, msg, err := protocol.HandleDatagram(dg.Addr.String(), dg.Data)
	if err != nil {
		result.Skipped++
		return
	}

	reply, ok := msg.(*protocol.StateService)
	if !ok {
		// Includes our own broadcast looping back
		logging.Debug("Ignoring non-discovery message",
			zap.String("remote_addr", dg.Addr.String()),
			zap.String("type", protocol.MessageTypeName(msg.Type())),
		)
		result.Skipped++
		return
	}

	id := frame.Target
	if id == 0 {
		logging.Debug("Ignoring StateService without target", zap.String("remote_addr", dg.Addr.String()))
		result.Skipped++
		return
	}

	addr := deviceAddr(dg.Addr, reply)
	isNew := c.registry.Upsert(id, addr)
	result.Replies++

	i, seen := index[id]
	if !seen {
		i = len(result.Devices)
		index[id] = i
		result.Devices = append(result.Devices, DiscoveredDevice{
			Identity: id,
			New:      isNew,
		})
	}

	dev := &result.Devices[i]
	dev.IP = addr.Addr().String()
	dev.Port = addr.Port()
	if !containsService(dev.ServiceTypes, reply.Service) {
		dev.ServiceTypes = append(dev.ServiceTypes, reply.Service)
	}

	if isNew {
		logging.Info("Device discovered",
			zap.String("target", id.String()),
			zap.String("addr", addr.String()),
		)
	}

	notification := *dev
	notification.New = isNew
	notification.ServiceTypes = append([]uint8(nil), dev.ServiceTypes...)
	c.sink.Emit(events.DeviceDiscovered, notification)
}

// deviceAddr pairs the reply's source IP with the advertised UDP port
func deviceAddr(src netip.AddrPort, reply *protocol.StateService) netip.AddrPort {
	if reply.Service == protocol.ServiceUDP && reply.Port > 0 && reply.Port <= 0xFFFF {
		return netip.AddrPortFrom(src.Addr(), uint16(reply.Port))
	}
	return src
}

func containsService(services []uint8, s uint8) bool {
	for _, v := range services {
		if v == s {
			return true
		}
	}
	return false
}
