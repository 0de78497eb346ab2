// Package stamp implements the bidirectional stamp type and the
// stamp-matching queue (spec.md §3, §4.2) that pairs request and response
// half-stamps by nonce into a complete four-timestamp exchange.
package stamp

import (
	"fmt"

	"github.com/facebook/radclock/protocol/ntp"
)

// Side identifies which half of an exchange a half-stamp carries.
type Side int

// Sides of a bidirectional exchange.
const (
	SideRequest Side = iota
	SideResponse
)

// Stamp is one completed bidirectional request/response pair (spec.md §3).
type Stamp struct {
	Ta uint64 // counter at request departure (client)
	Tb uint64 // server receive timestamp, NTP units
	Te uint64 // server transmit timestamp, NTP units
	Tf uint64 // counter at response arrival (client)

	ServerID string
	Stratum  uint8
	LI       ntp.LeapIndicator
	RefID    uint32
	TTL      uint8
	Nonce    uint64
}

// minRTTFloorCycles is the minimum plausible Tf-Ta span, in counter cycles
// (spec.md §3): anything tighter than this is assumed a measurement glitch
// rather than a genuinely fast round trip.
const minRTTFloorCycles = 120

// Sane validates the invariants spec.md §3 requires of a completed stamp:
// Ta < Tf, Tb <= Te, and Tf-Ta above the RTT floor. prevTa is the Ta of the
// last accepted stamp for the same server, 0 if none yet.
func (s Stamp) Sane(prevTa uint64) error {
	if !(s.Ta < s.Tf) {
		return fmt.Errorf("stamp insane: Ta(%d) not < Tf(%d)", s.Ta, s.Tf)
	}
	if !(s.Tb <= s.Te) {
		return fmt.Errorf("stamp insane: Tb(%d) not <= Te(%d)", s.Tb, s.Te)
	}
	if s.Tf-s.Ta < minRTTFloorCycles {
		return fmt.Errorf("stamp insane: RTT span %d below floor %d", s.Tf-s.Ta, minRTTFloorCycles)
	}
	if prevTa != 0 && !(s.Ta > prevTa) {
		return fmt.Errorf("stamp insane: Ta(%d) not > previous Ta(%d)", s.Ta, prevTa)
	}
	return nil
}

// halfRequest is the client-side half of an exchange: a counter read at
// departure, keyed by the nonce embedded in the outgoing packet.
type halfRequest struct {
	ta    uint64
	nonce uint64
}

// halfResponse is the server-side half, carrying the timestamps and
// metadata the server's packet reported.
type halfResponse struct {
	tb, te   uint64
	tf       uint64
	serverID string
	stratum  uint8
	li       ntp.LeapIndicator
	refID    uint32
	ttl      uint8
	nonce    uint64
}
