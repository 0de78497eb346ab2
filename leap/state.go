package leap

import (
	"time"

	"github.com/facebook/radclock/protocol/ntp"
	"github.com/facebook/radclock/stamp"
)

// postleapFreezeStamps is the number of stamps the offset estimator is
// held steady for immediately after a leap insertion/deletion (spec.md
// §4.4), giving the windowed estimators time to flush pre-leap history.
const postleapFreezeStamps = 1000

// warningCountThreshold and imminentWindow are the leap_imminent gate
// (spec.md §4.4): enough upstream LI warnings, close enough to the table's
// predicted instant.
const (
	warningCountThreshold = 10
	imminentWindow        = 2 * time.Hour
)

// State is one server's leap-second bookkeeping (spec.md §4.4).
type State struct {
	table *Table

	LeapsecTotal    int32
	LeapsecNext     int32 // -1, 0, +1
	LeapsecExpected uint64
	PostleapFreeze  int
	WarningCount    int
	Tleap           float64 // seconds since epoch, 0 if none pending
}

// NewState creates a leap State backed by table.
func NewState(table *Table) *State {
	return &State{table: table}
}

// isLeapZone reports whether t falls on the last day of June or December,
// the only days a leap second may be scheduled.
func isLeapZone(t time.Time) bool {
	t = t.UTC()
	switch t.Month() {
	case time.June:
		return t.Day() == 30
	case time.December:
		return t.Day() == 31
	default:
		return false
	}
}

// Observe folds one stamp's upstream leap indicator into the warning
// counter and, once the table's predicted instant is close enough, arms
// LeapsecNext/Tleap.
func (s *State) Observe(li ntp.LeapIndicator, now time.Time) {
	if li == ntp.LeapAddSecond || li == ntp.LeapDeleteSecond {
		if isLeapZone(now) {
			s.WarningCount++
		}
	}

	if s.LeapsecNext != 0 || s.table == nil {
		return
	}
	if s.WarningCount <= warningCountThreshold {
		return
	}
	sign, imminent := s.table.Imminent(now, imminentWindow)
	if !imminent {
		return
	}
	next, ok := s.table.Next(now)
	if !ok {
		return
	}
	s.LeapsecNext = sign
	s.Tleap = float64(next.At.Unix())
}

// UpdateExpected recomputes leapsec_expected from the current phat
// estimate (spec.md §4.4): the counter tick at which tleap is predicted to
// occur.
func (s *State) UpdateExpected(tfCounts uint64, nowSecs, phat float64) {
	if s.LeapsecNext == 0 || phat <= 0 {
		return
	}
	deltaCounts := (s.Tleap - nowSecs) / phat
	if deltaCounts < 0 {
		deltaCounts = 0
	}
	s.LeapsecExpected = tfCounts + uint64(deltaCounts)
}

// MaybeApply checks whether the leap instant has arrived and, if so,
// atomically folds LeapsecNext into LeapsecTotal and starts the postleap
// freeze window. Returns true if a leap was applied this call.
func (s *State) MaybeApply(tfCounts uint64, nowSecs float64) bool {
	if s.LeapsecNext == 0 {
		return false
	}
	if nowSecs < s.Tleap && (s.LeapsecExpected == 0 || tfCounts < s.LeapsecExpected) {
		return false
	}
	s.LeapsecTotal += s.LeapsecNext
	s.LeapsecNext = 0
	s.LeapsecExpected = 0
	s.Tleap = 0
	s.WarningCount = 0
	s.PostleapFreeze = postleapFreezeStamps
	return true
}

// Tick counts down the postleap freeze window by one processed stamp.
func (s *State) Tick() {
	if s.PostleapFreeze > 0 {
		s.PostleapFreeze--
	}
}

// Frozen reports whether the estimator should hold its offset steady this
// stamp (spec.md §4.4's postleap_freeze window).
func (s *State) Frozen() bool {
	return s.PostleapFreeze > 0
}

// Strip returns st with LeapsecTotal subtracted from Tb/Te, so the algo
// always sees a leap-free stamp (spec.md §4.4).
func (s *State) Strip(st stamp.Stamp) stamp.Stamp {
	if s.LeapsecTotal == 0 {
		return st
	}
	out := st
	out.Tb = subtractSeconds(st.Tb, s.LeapsecTotal)
	out.Te = subtractSeconds(st.Te, s.LeapsecTotal)
	return out
}

// subtractSeconds subtracts n whole seconds from the upper 32 bits of a
// packed 32.32 NTP timestamp, leaving the fractional part untouched.
func subtractSeconds(v uint64, n int32) uint64 {
	sec := int64(v>>32) - int64(n)
	frac := v & 0xFFFFFFFF
	return uint64(uint32(sec))<<32 | frac
}
