// Package preferred implements the preferred-server selector (spec.md
// §4.6): of all currently-tracked servers it elects the one whose
// estimates should be published, preferring trustworthy, low-error
// candidates over raw round-trip time alone.
package preferred

import "math"

// errorBoundCeiling is the trust gate: candidates with a wider error
// bound are excluded from the preferred set even if otherwise trusted
// (spec.md §4.6 step 1).
const errorBoundCeiling = 10e-3 // 10ms, in seconds

// Candidate is one server's current standing, as read from its AlgoState
// snapshot plus its trust bit.
type Candidate struct {
	ServerID   string
	MinRTT     float64 // RTThat*phat, seconds
	ErrorBound float64 // seconds
	Trusted    bool
	HasStamp   bool // at least one stamp processed
}

// Event classifies what changed about the elected server on this update.
type Event int

const (
	// EventNone means the elected server didn't change and the update
	// wasn't for the elected server either.
	EventNone Event = iota
	// EventChanged means a different server was elected than last time.
	EventChanged
	// EventUpdated means the same server is still elected and the
	// triggering stamp belonged to it.
	EventUpdated
)

func (e Event) String() string {
	switch e {
	case EventChanged:
		return "preferred changed"
	case EventUpdated:
		return "preferred updated"
	default:
		return "none"
	}
}

// Selector tracks the currently-elected server across calls to Select.
type Selector struct {
	current string
	elected bool
}

// New returns a Selector with no server elected yet.
func New() *Selector { return &Selector{} }

// Current returns the currently-elected server ID, if any.
func (s *Selector) Current() (string, bool) { return s.current, s.elected }

// Select runs spec.md §4.6's algorithm over candidates and reports the
// elected server plus the event this call produced. updatedServerID is
// the server whose stamp triggered this call (empty if none, e.g. a
// periodic re-evaluation rather than a stamp-driven one).
func (s *Selector) Select(candidates []Candidate, updatedServerID string) (electedID string, ev Event) {
	elected, ok := bestTrusted(candidates)
	if !ok {
		elected, ok = bestAny(candidates)
	}
	if !ok {
		return "", EventNone
	}

	prev, hadPrev := s.current, s.elected
	s.current, s.elected = elected, true

	switch {
	case !hadPrev || prev != elected:
		return elected, EventChanged
	case updatedServerID != "" && updatedServerID == elected:
		return elected, EventUpdated
	default:
		return elected, EventNone
	}
}

// bestTrusted implements step 1-2: argmin MinRTT over the trusted,
// error_bound < 10ms set.
func bestTrusted(candidates []Candidate) (string, bool) {
	best := ""
	bestRTT := math.Inf(1)
	found := false
	for _, c := range candidates {
		if !c.Trusted || c.ErrorBound >= errorBoundCeiling {
			continue
		}
		if c.MinRTT < bestRTT {
			bestRTT = c.MinRTT
			best = c.ServerID
			found = true
		}
	}
	return best, found
}

// bestAny implements step 3: argmin MinRTT over all servers with ≥1
// stamp, used when the trusted set is empty.
func bestAny(candidates []Candidate) (string, bool) {
	best := ""
	bestRTT := math.Inf(1)
	found := false
	for _, c := range candidates {
		if !c.HasStamp {
			continue
		}
		if c.MinRTT < bestRTT {
			bestRTT = c.MinRTT
			best = c.ServerID
			found = true
		}
	}
	return best, found
}
