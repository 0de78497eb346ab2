// Package ntp implements the bit-exact NTPv4 wire packet (spec.md §6) used
// for the bidirectional request/response exchange the trigger performs.
package ntp

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // NTP MAC field is historically SHA1/MD5 keyed hashes, kept for wire compatibility
	"encoding/binary"
	"fmt"
	"net"
	"time"
	"unsafe"

	syscall "golang.org/x/sys/unix"
)

// PacketSizeBytes is the size of the fixed NTPv4 header.
const PacketSizeBytes = 48

// KeyIDSizeBytes and MACSizeBytes are the optional authentication trailer.
const (
	KeyIDSizeBytes = 4
	MACSizeBytes   = 20
)

// ControlHeaderSizeBytes is a buffer to read packet header with Kernel timestamps
const ControlHeaderSizeBytes = 32

// NTPEpochOffset is the difference between the NTP epoch (1900-01-01) and
// the Unix epoch, in seconds.
const NTPEpochOffset = 2208988800

// LeapIndicator is the 2-bit LI field.
type LeapIndicator uint8

// Leap indicator values.
const (
	LeapNoWarning    LeapIndicator = 0
	LeapAddSecond    LeapIndicator = 1
	LeapDeleteSecond LeapIndicator = 2
	LeapNotInSync    LeapIndicator = 3
)

// Mode is the 3-bit Mode field.
type Mode uint8

// Mode values relevant to a unicast client/server exchange.
const (
	ModeReserved Mode = 0
	ModeClient   Mode = 3
	ModeServer   Mode = 4
)

// Packet is an NTPv4 packet.
/*
http://seriot.ch/ntp.php
https://tools.ietf.org/html/rfc5905
   0                   1                   2                   3
   0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
0 +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |LI | VN  |Mode |    Stratum     |     Poll      |  Precision   |
4 +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                         Root Delay                            |
8 +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                         Root Dispersion                       |
12+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                          Reference ID                         |
16+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                     Reference Timestamp (64)                  |
24+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                       Origin Timestamp (64)                   |
32+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                      Receive Timestamp (64)                   |
40+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                      Transmit Timestamp (64)                  |
48+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+

Client request example, Settings = 0x1B:
00 011 011
|  |   +-- client mode (3)
|  + ----- version (3)
+ -------- leap indicator, 0 no warning
*/
type Packet struct {
	Settings       uint8  // leap indicator, version number and mode
	Stratum        uint8  // stratum
	Poll           int8   // poll, power of 2 seconds
	Precision      int8   // precision, power of 2 seconds
	RootDelay      uint32 // total delay to the reference clock, 16.16 fixed point
	RootDispersion uint32 // total dispersion to the reference clock, 16.16 fixed point
	ReferenceID    uint32 // identifier of server or reference clock
	RefTimeSec     uint32
	RefTimeFrac    uint32
	OrigTimeSec    uint32 // echoed client transmit time (org)
	OrigTimeFrac   uint32
	RxTimeSec      uint32 // server receive time (rec)
	RxTimeFrac     uint32
	TxTimeSec      uint32 // server transmit time (xmt)
	TxTimeFrac     uint32
}

// LI returns the leap indicator field.
func (p *Packet) LI() LeapIndicator { return LeapIndicator(p.Settings >> 6) }

// VN returns the version number field.
func (p *Packet) VN() uint8 { return (p.Settings >> 3) & 0x07 }

// ModeField returns the mode field.
func (p *Packet) ModeField() Mode { return Mode(p.Settings & 0x07) }

// SetSettings packs LI/VN/Mode into the Settings byte.
func (p *Packet) SetSettings(li LeapIndicator, vn uint8, mode Mode) {
	p.Settings = (uint8(li) << 6) | ((vn & 0x07) << 3) | (uint8(mode) & 0x07)
}

// ValidSettingsFormat verifies that LI|VN|Mode is a well-formed client
// request: LI must be NoWarning or NotInSync, VN in [1,4], Mode == client.
func (p *Packet) ValidSettingsFormat() bool {
	li := p.LI()
	vn := p.VN()
	mode := p.ModeField()
	if li != LeapNoWarning && li != LeapNotInSync {
		return false
	}
	if vn < 1 || vn > 4 {
		return false
	}
	return mode == ModeClient
}

// Time converts a Unix time to NTP (seconds, fraction) format, ≥1ns
// resolution preserved in the fractional 32 bits (spec.md §3).
func Time(t time.Time) (seconds uint32, fraction uint32) {
	nsec := t.UnixNano()
	sec := nsec / int64(time.Second)
	frac := nsec - sec*int64(time.Second)
	return uint32(sec + NTPEpochOffset), uint32((frac << 32) / int64(time.Second))
}

// Unix converts NTP (seconds, fraction) to a Unix time.Time.
func Unix(seconds, fraction uint32) time.Time {
	secs := int64(seconds) - NTPEpochOffset
	nanos := (int64(fraction) * int64(time.Second)) >> 32
	return time.Unix(secs, nanos)
}

// Nonce64 packs (seconds, fraction) into a single uint64 key suitable for
// the stamp matching queue (spec.md §4.2): request nonces are drawn from the
// client transmit timestamp.
func Nonce64(seconds, fraction uint32) uint64 {
	return uint64(seconds)<<32 | uint64(fraction)
}

// Bytes converts Packet to []bytes.
func (p *Packet) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BytesToPacket converts []bytes to a Packet.
func BytesToPacket(ntpPacketBytes []byte) (*Packet, error) {
	if len(ntpPacketBytes) < PacketSizeBytes {
		return nil, fmt.Errorf("short NTP packet: %d bytes", len(ntpPacketBytes))
	}
	packet := &Packet{}
	reader := bytes.NewReader(ntpPacketBytes[:PacketSizeBytes])
	err := binary.Read(reader, binary.BigEndian, packet)
	return packet, err
}

// MAC computes the symmetric-key SHA1 MAC trailer (keyid + digest) over the
// packet bytes, as referenced by spec.md §6's optional authentication
// fields.
func MAC(keyID uint32, key, packetBytes []byte) []byte {
	out := make([]byte, KeyIDSizeBytes+MACSizeBytes)
	binary.BigEndian.PutUint32(out[:KeyIDSizeBytes], keyID)
	mac := hmac.New(sha1.New, key)
	mac.Write(packetBytes)
	copy(out[KeyIDSizeBytes:], mac.Sum(nil))
	return out
}

// ReadNTPPacket reads an incoming NTP packet from a UDP connection.
func ReadNTPPacket(conn *net.UDPConn) (pkt *Packet, remAddr net.Addr, err error) {
	buf := make([]byte, PacketSizeBytes)
	_, remAddr, err = conn.ReadFromUDP(buf)
	if err != nil {
		return nil, nil, err
	}
	pkt, err = BytesToPacket(buf)
	return pkt, remAddr, err
}

// ReadPacketWithKernelTimestamp reads a packet along with the kernel RX
// timestamp delivered via SO_TIMESTAMPING control messages, falling back
// to time.Now() when none is present. The trigger (spec.md §4.5) and
// UDPSource read packets through it but take Tf from a counter read made
// after it returns; the kernel timestamp is not used for Tf.
func ReadPacketWithKernelTimestamp(conn *net.UDPConn) (pkt *Packet, kernelRxTime time.Time, remAddr net.Addr, err error) {
	buf := make([]byte, PacketSizeBytes)
	oob := make([]byte, ControlHeaderSizeBytes)

	_, oobn, _, sa, err := conn.ReadMsgUDP(buf, oob)
	if err != nil {
		return nil, time.Time{}, nil, err
	}
	if oobn >= syscall.CmsgSpace(0)+int(unsafe.Sizeof(syscall.Timespec{})) {
		ts := (*syscall.Timespec)(unsafe.Pointer(&oob[syscall.CmsgSpace(0)]))
		kernelRxTime = time.Unix(ts.Unix())
	} else {
		kernelRxTime = time.Now()
	}

	pkt, err = BytesToPacket(buf)
	return pkt, kernelRxTime, sa, err
}
