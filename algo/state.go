// Package algo implements the bidirectional synchronization estimator
// (spec.md §4.3): a stateful, per-server sliding-window filter producing
// phat, plocal, thetahat, RTThat and bounded-error quantities across a
// warmup/steady-state regime.
package algo

import (
	"sync"

	"github.com/eclesh/welford"
	log "github.com/sirupsen/logrus"

	"github.com/facebook/radclock/history"
)

// sample is one stamp's algo-relevant fields, kept in the stamp history
// (spec.md §3's "stamp" history) so warmup/steady estimation can look back
// by global index.
type sample struct {
	Ta  uint64
	Tb  float64 // seconds
	Te  float64 // seconds
	Tf  uint64
	RTT uint64 // counts, max(1, Tf-Ta)
}

// RadData is the per-server published clock data (spec.md §3).
type RadData struct {
	Phat         float64
	PhatErr      float64
	PhatLocal    float64
	PhatLocalErr float64
	Ca           float64 // additive offset, secs
	CaErr        float64
	LastChanged  uint64 // count
	NextExpected uint64 // count

	LeapsecTotal    int32
	LeapsecNext     int32
	LeapsecExpected uint64

	Status Status
}

// RadError is the per-server published error estimate (spec.md §3).
type RadError struct {
	ErrorBound    float64
	ErrorBoundAvg float64
	ErrorBoundStd float64
	MinRTT        float64 // secs
}

// AlgoState is one server's estimator state, created at its first stamp and
// living for the daemon's lifetime (spec.md §3).
type AlgoState struct {
	mu sync.Mutex

	ServerID   string
	Params     Params
	Thresholds Thresholds
	Windows    Windows
	PollPeriod float64

	// period
	Phat       float64
	Perr       float64
	Plocal     float64
	PlocalErr  float64
	plocalProblem bool

	// offset
	K        float64 // secs, continuity-preserving constant
	Thetahat float64
	MinET    float64

	// RTT
	RTThat           uint64
	nextRTThat       uint64
	RTThatShift      uint64
	RTThatShiftThres float64
	topWinHalf       int64
	lastShiftIdx     int64
	sawUpshiftAt     int64

	// reference stamps for steady-state phat
	pstamp         *sample
	pstampPerr     float64
	pstampRTThat   uint64
	nextPstamp     *sample
	nextPstampPerr float64
	nextPstampRTT  uint64
	jsearchOpenAt  int64
	jsearchOpen    bool

	// warmup phat tracking
	warmupFarIdx  int64
	warmupNearIdx int64

	// histories, all indexed by stamp index
	histStamp   *history.History[sample]
	histRTT     *history.History[uint64]
	histRTThat  *history.History[uint64]
	histThnaive *history.History[float64]

	stampIdx         int64
	pollTransitionTh int
	pollRatio        float64
	pollChangedIdx   int64

	// error bound accounting (spec.md §4.3.6)
	errorBoundMinLast float64
	thetaStampIdx     int64
	welfordFull       *welford.Stats
	welfordHalf       *welford.Stats

	lastTa uint64

	status        Status
	lastChangedTf uint64
	nextExpected  uint64

	log *log.Entry
}

// New creates an AlgoState for a server, ready to accept its first stamp.
func New(serverID string, pollPeriod float64, params Params) *AlgoState {
	w := ComputeWindows(pollPeriod, params)
	return &AlgoState{
		ServerID:    serverID,
		Params:      params,
		Thresholds:  ComputeThresholds(params),
		Windows:     w,
		PollPeriod:  pollPeriod,
		Phat:        params.InitPeriodEstimate,
		Plocal:      params.InitPeriodEstimate,
		topWinHalf:  int64(w.TopWin / 2),
		histStamp:   history.New[sample](w.TopWin),
		histRTT:     history.New[uint64](w.TopWin),
		histRTThat:  history.New[uint64](w.TopWin),
		histThnaive: history.New[float64](w.TopWin),
		status:      StatusWarmup | StatusUnsync,
		log:         log.WithField("server", serverID),
	}
}

// Snapshot returns the current rad_data/rad_error pair under lock, matching
// spec.md §5's "per-server rad_data/rad_error updates done under a single
// lock held only for the duration of an assignment" discipline.
func (a *AlgoState) Snapshot() (RadData, RadError) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.radDataLocked(), a.radErrorLocked()
}

func (a *AlgoState) radDataLocked() RadData {
	return RadData{
		Phat:         a.Phat,
		PhatErr:      a.Perr,
		PhatLocal:    a.Plocal,
		PhatLocalErr: a.PlocalErr,
		Ca:           a.K - a.Thetahat,
		CaErr:        a.errorBoundLocked(),
		LastChanged:  a.lastChangedTf,
		NextExpected: a.nextExpected,
		Status:       a.status,
	}
}

func (a *AlgoState) radErrorLocked() RadError {
	eb := a.errorBoundLocked()
	avg, std := 0.0, 0.0
	if a.welfordFull != nil && a.welfordFull.Count() > 0 {
		avg = a.welfordFull.Mean()
		std = a.welfordFull.Stddev()
	}
	return RadError{
		ErrorBound:    eb,
		ErrorBoundAvg: avg,
		ErrorBoundStd: std,
		MinRTT:        float64(a.RTThat) * a.Phat,
	}
}

// tfNow converts the most recent stamp's Tf into a notional "now" in counts,
// used by error-bound aging (spec.md §4.3.6).
func (a *AlgoState) tfNow() uint64 {
	if idx, ok := a.histStamp.Latest(); ok {
		if s, ok := a.histStamp.Find(idx); ok {
			return s.Tf
		}
	}
	return 0
}

func (a *AlgoState) errorBoundLocked() float64 {
	tf := a.tfNow()
	if s, ok := a.histStamp.Find(a.thetaStampIdx); ok {
		return a.errorBoundMinLast + a.Phat*float64(tf-s.Tf)*a.Params.RateErrBound
	}
	return a.errorBoundMinLast
}
