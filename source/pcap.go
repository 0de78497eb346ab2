package source

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/facebook/radclock/counter"
	"github.com/facebook/radclock/protocol/ntp"
	"github.com/facebook/radclock/stamp"
)

// ntpBPFFilter restricts capture to NTP traffic only; deep packet capture
// is out of scope (spec.md §1) — this wires gopacket/pcap exactly to that
// boundary: decode just enough of the frame to hand a half-stamp over.
const ntpBPFFilter = "udp port 123"

const snapshotLen = 256

// PcapSource is a thin live-capture StampSource for sync_in_pcap,
// grounded on the teacher's pcap.OpenLive/SetBPFFilter/PacketSource
// pattern (ziffy/node/sender.go's rackSwHostnameMonitor).
type PcapSource struct {
	handle *pcap.Handle
	oracle counter.Oracle
}

// NewPcapSource opens device in live/promiscuous mode with the NTP BPF
// filter applied.
func NewPcapSource(device string, oracle counter.Oracle) (*PcapSource, error) {
	handle, err := pcap.OpenLive(device, snapshotLen, true, pcap.BlockForever)
	if err != nil {
		return nil, fmt.Errorf("source: opening %s: %w", device, err)
	}
	if err := handle.SetBPFFilter(ntpBPFFilter); err != nil {
		handle.Close()
		return nil, fmt.Errorf("source: setting BPF filter: %w", err)
	}
	return &PcapSource{handle: handle, oracle: oracle}, nil
}

// Close releases the pcap handle.
func (p *PcapSource) Close() error {
	p.handle.Close()
	return nil
}

// Run decodes every captured UDP/123 packet's NTP payload and inserts the
// matching half into q: a request half if it's a client packet, a
// response half otherwise.
func (p *PcapSource) Run(q *stamp.Queue) error {
	src := gopacket.NewPacketSource(p.handle, p.handle.LinkType())
	for pkt := range src.Packets() {
		udpLayer := pkt.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp, _ := udpLayer.(*layers.UDP)
		payload := udp.Payload
		n, err := p.oracle.ReadCounter()
		if err != nil {
			return fmt.Errorf("source: reading counter: %w", err)
		}
		msg, err := ntp.BytesToPacket(payload)
		if err != nil {
			continue
		}
		nonce := ntp.Nonce64(msg.TxTimeSec, msg.TxTimeFrac)
		if msg.ModeField() == ntp.ModeClient {
			q.InsertRequestHalf(n, nonce)
			continue
		}
		respNonce := ntp.Nonce64(msg.OrigTimeSec, msg.OrigTimeFrac)
		q.InsertResponseHalf(
			ntp.Nonce64(msg.RxTimeSec, msg.RxTimeFrac),
			ntp.Nonce64(msg.TxTimeSec, msg.TxTimeFrac),
			n,
			"",
			msg.Stratum,
			msg.LI(),
			msg.ReferenceID,
			64,
			respNonce,
		)
	}
	return nil
}
