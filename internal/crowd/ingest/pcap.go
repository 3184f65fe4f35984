package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/banshee-data/crowd.report/internal/monitoring"
)

// packetDataSource is satisfied by both pcapgo.Reader and pcapgo.NgReader.
type packetDataSource interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

// ReadPCAPFile replays detector datagrams captured in a pcap or pcapng
// file. Only UDP packets addressed to udpPort are decoded; a udpPort of 0
// accepts every UDP packet.
func ReadPCAPFile(ctx context.Context, pcapFile string, udpPort int, h FrameHandler, stats PacketStatsInterface) error {
	if stats == nil {
		stats = noopStats{}
	}

	f, err := os.Open(pcapFile)
	if err != nil {
		return fmt.Errorf("failed to open PCAP file %s: %w", pcapFile, err)
	}
	defer f.Close()

	src, err := openCapture(f)
	if err != nil {
		return fmt.Errorf("failed to read PCAP file %s: %w", pcapFile, err)
	}

	packetCount := 0
	frameCount := 0
	startTime := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			monitoring.Logf("PCAP reader stopping due to context cancellation (processed %d packets)", packetCount)
			return err
		}

		data, _, err := src.ReadPacketData()
		if errors.Is(err, io.EOF) {
			monitoring.Logf("PCAP file reading complete: %d packets, %d frames in %v",
				packetCount, frameCount, time.Since(startTime))
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read packet %d: %w", packetCount+1, err)
		}
		packetCount++

		packet := gopacket.NewPacket(data, src.LinkType(), gopacket.Default)
		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp, ok := udpLayer.(*layers.UDP)
		if !ok || len(udp.Payload) == 0 {
			continue
		}
		if udpPort != 0 && int(udp.DstPort) != udpPort {
			continue
		}

		stats.AddPacket(len(udp.Payload))
		frame, err := DecodeFrame(udp.Payload)
		if err != nil {
			stats.AddDropped()
			monitoring.Logf("PCAP packet %d: %v", packetCount, err)
			continue
		}
		frameCount++
		if err := h.HandleFrame(ctx, frame); err != nil {
			return fmt.Errorf("PCAP packet %d: %w", packetCount, err)
		}
	}
}

// openCapture sniffs the file magic and returns the matching reader.
func openCapture(r io.Reader) (packetDataSource, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, err
	}
	// pcapng section header block type.
	if magic[0] == 0x0a && magic[1] == 0x0d && magic[2] == 0x0d && magic[3] == 0x0a {
		return pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	}
	return pcapgo.NewReader(br)
}
