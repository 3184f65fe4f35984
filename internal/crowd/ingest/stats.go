package ingest

import (
	"sync/atomic"

	"github.com/banshee-data/crowd.report/internal/monitoring"
)

// PacketStatsInterface collects datagram counters for a listener.
type PacketStatsInterface interface {
	AddPacket(bytes int)
	AddDropped()
	LogStats()
}

// PacketStats is a concurrency-safe PacketStatsInterface that reports
// the counts accumulated since the previous LogStats call.
type PacketStats struct {
	packets atomic.Int64
	bytes   atomic.Int64
	dropped atomic.Int64
}

// AddPacket counts one received datagram of the given size.
func (s *PacketStats) AddPacket(bytes int) {
	s.packets.Add(1)
	s.bytes.Add(int64(bytes))
}

// AddDropped counts one datagram that could not be decoded.
func (s *PacketStats) AddDropped() {
	s.dropped.Add(1)
}

// Snapshot returns the running counters without resetting them.
func (s *PacketStats) Snapshot() (packets, bytes, dropped int64) {
	return s.packets.Load(), s.bytes.Load(), s.dropped.Load()
}

// LogStats logs and resets the counters.
func (s *PacketStats) LogStats() {
	packets := s.packets.Swap(0)
	bytes := s.bytes.Swap(0)
	dropped := s.dropped.Swap(0)
	if packets == 0 && dropped == 0 {
		return
	}
	monitoring.Logf("ingest: %d datagrams (%d bytes), %d dropped", packets, bytes, dropped)
}

// noopStats is used when no stats collector is provided.
type noopStats struct{}

func (noopStats) AddPacket(int) {}
func (noopStats) AddDropped()   {}
func (noopStats) LogStats()     {}
