package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"sync"
	"time"

	"github.com/muurk/lifxlab/internal/logging"
	"github.com/muurk/lifxlab/internal/protocol"
	"go.uber.org/zap"
)

// DefaultPort is the UDP port LIFX devices listen on
const DefaultPort = 56700

// Config holds socket addresses
type Config struct {
	// ListenAddress is where the discovery socket binds (well-known port)
	ListenAddress string
	// CommandAddress is where command sockets bind (port 0 = ephemeral)
	CommandAddress string
	// BroadcastAddress is the destination of discovery broadcasts
	BroadcastAddress string
	// ReadBufferSize bounds a single received datagram
	ReadBufferSize int
}

// DefaultConfig returns the addresses used on a typical LAN
func DefaultConfig() Config {
	return Config{
		ListenAddress:    fmt.Sprintf("0.0.0.0:%d", DefaultPort),
		CommandAddress:   "0.0.0.0:0",
		BroadcastAddress: fmt.Sprintf("255.255.255.255:%d", DefaultPort),
		ReadBufferSize:   protocol.MaxFrameSize,
	}
}

// Datagram is one received UDP packet
type Datagram struct {
	Data []byte
	Addr netip.AddrPort
}

// Socket is a UDP socket that can broadcast, unicast and receive with a
// bounded wait. Sends are serialized so concurrent callers never interleave.
type Socket struct {
	conn      *net.UDPConn
	broadcast netip.AddrPort
	bufSize   int

	sendMu sync.Mutex
	recvMu sync.Mutex
}

// ListenDiscovery binds the discovery socket on cfg.ListenAddress with
// broadcast permission and address reuse enabled.
func ListenDiscovery(cfg Config) (*Socket, error) {
	lc := net.ListenConfig{Control: controlBroadcast}
	pc, err := lc.ListenPacket(context.Background(), "udp4", cfg.ListenAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to bind discovery socket %s: %w", cfg.ListenAddress, err)
	}

	conn, ok := pc.(*net.UDPConn)
	if !ok {
		_ = pc.Close()
		return nil, fmt.Errorf("unexpected packet conn type %T", pc)
	}

	return newSocket(conn, cfg)
}

// OpenCommand binds a command socket on cfg.CommandAddress, normally an
// ephemeral port.
func OpenCommand(cfg Config) (*Socket, error) {
	laddr, err := net.ResolveUDPAddr("udp4", cfg.CommandAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid command address %s: %w", cfg.CommandAddress, err)
	}

	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind command socket %s: %w", cfg.CommandAddress, err)
	}

	return newSocket(conn, cfg)
}

func newSocket(conn *net.UDPConn, cfg Config) (*Socket, error) {
	s := &Socket{
		conn:    conn,
		bufSize: cfg.ReadBufferSize,
	}
	if s.bufSize <= 0 {
		s.bufSize = protocol.MaxFrameSize
	}

	if cfg.BroadcastAddress != "" {
		bcast, err := netip.ParseAddrPort(cfg.BroadcastAddress)
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("invalid broadcast address %s: %w", cfg.BroadcastAddress, err)
		}
		s.broadcast = bcast
	}

	logging.Debug("UDP socket bound",
		zap.String("local_addr", conn.LocalAddr().String()),
		zap.String("broadcast_addr", s.broadcast.String()),
	)

	return s, nil
}

// LocalAddr returns the address the socket is bound to
func (s *Socket) LocalAddr() netip.AddrPort {
	if addr, ok := s.conn.LocalAddr().(*net.UDPAddr); ok {
		ap := addr.AddrPort()
		return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
	}
	return netip.AddrPort{}
}

// SendBroadcast sends data to the configured broadcast address. It does not
// wait for replies.
func (s *Socket) SendBroadcast(data []byte) error {
	if !s.broadcast.IsValid() {
		return &SendError{Addr: "broadcast", Err: ErrNoBroadcastAddress}
	}
	return s.SendUnicast(data, s.broadcast)
}

// SendUnicast sends data to a single address. Failures are returned as
// *SendError and affect only this destination.
func (s *Socket) SendUnicast(data []byte, addr netip.AddrPort) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	logging.LogDatagram("sent", addr.String(), data)

	if _, err := s.conn.WriteToUDPAddrPort(data, addr); err != nil {
		return &SendError{Addr: addr.String(), Err: err}
	}
	return nil
}

// Receive waits up to timeout for one datagram.
//
// It returns ErrTimeout when the deadline passes without data, and ctx.Err()
// promptly when ctx is cancelled. Any other error is a real socket failure.
func (s *Socket) Receive(ctx context.Context, timeout time.Duration) (Datagram, error) {
	if err := ctx.Err(); err != nil {
		return Datagram{}, err
	}
	if timeout <= 0 {
		return Datagram{}, ErrTimeout
	}

	s.recvMu.Lock()
	defer s.recvMu.Unlock()

	if err := s.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return Datagram{}, fmt.Errorf("failed to set read deadline: %w", err)
	}

	// Pull the deadline forward on cancellation so the read returns now
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	buf := make([]byte, s.bufSize)
	n, addr, err := s.conn.ReadFromUDPAddrPort(buf)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Datagram{}, ctxErr
		}
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return Datagram{}, ErrTimeout
		}
		return Datagram{}, fmt.Errorf("receive on %s: %w", s.conn.LocalAddr(), err)
	}

	addr = netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port())
	logging.LogDatagram("received", addr.String(), buf[:n])

	return Datagram{Data: buf[:n], Addr: addr}, nil
}

// Close releases the socket. A blocked Receive returns an error.
func (s *Socket) Close() error {
	return s.conn.Close()
}
