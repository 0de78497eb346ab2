package source

import (
	"fmt"
	"net"

	"github.com/facebook/radclock/counter"
	"github.com/facebook/radclock/protocol/ntp"
	"github.com/facebook/radclock/stamp"
)

// UDPSource is a passive listener for synchronization_type=piggy/vm_udp:
// rather than emitting its own requests (the trigger loop's job), it
// observes NTP traffic already arriving on a shared socket — e.g. a VM
// guest's virtualized NIC, or a downstream responder's own listening
// port — and feeds both request and response halves to the queue exactly
// as the live trigger would.
type UDPSource struct {
	conn   *net.UDPConn
	oracle counter.Oracle
}

// NewUDPSource listens on addr for passive NTP observation.
func NewUDPSource(addr *net.UDPAddr, oracle counter.Oracle) (*UDPSource, error) {
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("source: listening on %s: %w", addr, err)
	}
	return &UDPSource{conn: conn, oracle: oracle}, nil
}

// Close releases the listening socket.
func (u *UDPSource) Close() error { return u.conn.Close() }

// Run reads packets until the socket is closed, classifying each as a
// request or response half by NTP mode field.
func (u *UDPSource) Run(q *stamp.Queue) error {
	for {
		msg, _, _, err := ntp.ReadPacketWithKernelTimestamp(u.conn)
		if err != nil {
			return fmt.Errorf("source: reading packet: %w", err)
		}
		n, err := u.oracle.ReadCounter()
		if err != nil {
			return fmt.Errorf("source: reading counter: %w", err)
		}
		if msg.ModeField() == ntp.ModeClient {
			nonce := ntp.Nonce64(msg.TxTimeSec, msg.TxTimeFrac)
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
}
