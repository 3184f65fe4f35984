package ingest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/banshee-data/crowd.report/internal/monitoring"
	"github.com/banshee-data/crowd.report/internal/timeutil"
)

// maxDatagram is the largest frame message accepted over UDP.
const maxDatagram = 65535

// UDPListenerConfig contains configuration options for the UDP listener.
type UDPListenerConfig struct {
	Address     string
	RcvBuf      int
	LogInterval time.Duration
	Stats       PacketStatsInterface
	Handler     FrameHandler
	Clock       timeutil.Clock
}

// UDPListener receives one frame message per datagram and hands decoded
// frames to a FrameHandler.
type UDPListener struct {
	address     string
	rcvBuf      int
	logInterval time.Duration
	stats       PacketStatsInterface
	handler     FrameHandler
	clock       timeutil.Clock

	mu   sync.Mutex
	conn *net.UDPConn
}

// NewUDPListener creates a new UDP listener with the provided configuration.
func NewUDPListener(config UDPListenerConfig) *UDPListener {
	stats := config.Stats
	if stats == nil {
		stats = noopStats{}
	}
	logInterval := config.LogInterval
	if logInterval == 0 {
		logInterval = time.Minute
	}
	clock := config.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &UDPListener{
		address:     config.Address,
		rcvBuf:      config.RcvBuf,
		logInterval: logInterval,
		stats:       stats,
		handler:     config.Handler,
		clock:       clock,
	}
}

// Listen binds the socket. Start calls it when needed; calling it first
// lets callers learn the bound address.
func (l *UDPListener) Listen() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		return nil
	}

	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	if l.rcvBuf > 0 {
		if err := conn.SetReadBuffer(l.rcvBuf); err != nil {
			monitoring.Logf("Warning: failed to set UDP receive buffer size to %d: %v", l.rcvBuf, err)
		}
	}
	l.conn = conn
	return nil
}

// LocalAddr returns the bound address, or nil before Listen.
func (l *UDPListener) LocalAddr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Start receives datagrams until ctx is cancelled. Handler errors stop the
// listener; undecodable datagrams are counted and skipped.
func (l *UDPListener) Start(ctx context.Context) error {
	if l.handler == nil {
		return errors.New("udp listener requires a frame handler")
	}
	if err := l.Listen(); err != nil {
		return err
	}
	conn := l.conn
	defer conn.Close()

	monitoring.Logf("UDP listener started on %s", conn.LocalAddr())

	go l.startStatsLogging(ctx)

	buffer := make([]byte, maxDatagram)
	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("UDP listener stopping due to context cancellation")
			return ctx.Err()
		default:
		}

		// Short deadline so cancellation is noticed promptly.
		conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))

		n, addr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			monitoring.Logf("UDP read error: %v", err)
			continue
		}

		if err := l.handlePacket(ctx, buffer[:n]); err != nil {
			return fmt.Errorf("handling datagram from %v: %w", addr, err)
		}
	}
}

func (l *UDPListener) handlePacket(ctx context.Context, packet []byte) error {
	l.stats.AddPacket(len(packet))

	frame, err := DecodeFrame(packet)
	if err != nil {
		l.stats.AddDropped()
		monitoring.Logf("UDP listener: %v", err)
		return nil
	}
	return l.handler.HandleFrame(ctx, frame)
}

func (l *UDPListener) startStatsLogging(ctx context.Context) {
	ticker := l.clock.NewTicker(l.logInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.stats.LogStats()
			return
		case <-ticker.C():
			l.stats.LogStats()
		}
	}
}
