package algo

import (
	"math"

	"github.com/facebook/radclock/rerror"
	"github.com/facebook/radclock/stamp"
)

// ntpSecs converts a packed 32.32 NTP (seconds, fraction) uint64, as carried
// on stamp.Stamp's Tb/Te fields, into a float64 seconds value.
func ntpSecs(v uint64) float64 {
	sec := v >> 32
	frac := v & 0xFFFFFFFF
	return float64(sec) + float64(frac)/4294967296.0
}

// ProcessBidirStamp is the estimator's entry point (spec.md §4.3): on the
// first stamp it initializes state, on subsequent stamps it runs the
// windowed update pipeline in the order §4.3.7 specifies, and returns the
// resulting published clock data and error estimate. qualWarning flags an
// upstream stratum/refid/ttl/LI change on this stamp (§2, §7); frozen holds
// the offset estimator steady during the postleap freeze window (§4.4).
func (a *AlgoState) ProcessBidirStamp(st stamp.Stamp, qualWarning, frozen bool) (RadData, RadError, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := st.Sane(a.lastTa); err != nil {
		return a.radDataLocked(), a.radErrorLocked(), rerror.Wrap(rerror.KindInsaneStamp, err)
	}
	a.lastTa = st.Ta

	s := sample{
		Ta: st.Ta,
		Tb: ntpSecs(st.Tb),
		Te: ntpSecs(st.Te),
		Tf: st.Tf,
	}
	rtt := st.Tf - st.Ta
	if rtt < 1 {
		rtt = 1
	}
	s.RTT = rtt

	a.status = a.status.Clear(StatusPhatUpdated)

	idx := a.histStamp.Add(s)
	a.stampIdx = idx
	a.histRTT.Add(rtt)

	if idx == 0 {
		// init: anchor K to the first stamp so phat*Ta + K tracks server
		// time and the naive offset starts near zero.
		a.K = s.Tb - a.Phat*float64(s.Ta)
	}

	inWarmup := idx < int64(a.Windows.WarmupWin)

	a.updateRTT(idx, s)
	a.updateErrorBoundStats()

	if inWarmup {
		a.updatePhatWarmup(idx)
	} else {
		a.updatePhatSteady(idx, s)
	}

	a.updatePlocal(idx, qualWarning)
	a.updateThetahat(idx, s, inWarmup, qualWarning, frozen)

	if !a.status.Has(StatusOffsetQuality) && !a.status.Has(StatusOffsetSanity) {
		a.status = a.status.Clear(StatusUnsync)
	}

	if idx == int64(a.Windows.WarmupWin)-1 {
		a.endWarmup(idx)
	}

	a.clearUpshiftIfExpired(idx)
	a.updateStarvation(s)

	if a.status.Has(StatusPhatUpdated) {
		a.lastChangedTf = s.Tf
	}
	a.nextExpected = s.Tf + uint64(a.PollPeriod/a.Phat)

	return a.radDataLocked(), a.radErrorLocked(), nil
}

// updateStarvation implements spec.md §7: no accepted update in more than
// ten poll periods means the published estimate is stale.
func (a *AlgoState) updateStarvation(s sample) {
	if a.lastChangedTf == 0 {
		a.lastChangedTf = s.Tf
		return
	}
	elapsed := float64(s.Tf-a.lastChangedTf) * a.Phat
	if elapsed > 10*a.PollPeriod {
		a.status = a.status.Set(StatusStarving)
	} else {
		a.status = a.status.Clear(StatusStarving)
	}
}

// endWarmup runs the warmup->steady transitions spec.md §4.3.7 and
// Scenario F describe: RTThat history is backfilled to the adopted
// RTThat, the shift threshold is set, WARMUP clears, and pstamp/thetastamp
// are seeded for steady-state tracking.
func (a *AlgoState) endWarmup(idx int64) {
	for i := int64(0); i <= idx; i++ {
		a.histRTThat.Set(i, a.RTThat)
	}

	// Open question resolution (see DESIGN.md): thetastamp at warmup end is
	// the argmin of ET over the warmup window, not the most recent stamp.
	bestIdx := idx
	bestET := math.MaxFloat64
	for j := int64(0); j <= idx; j++ {
		sj, ok := a.histStamp.Find(j)
		if !ok {
			continue
		}
		et := a.Phat * (float64(sj.RTT) - float64(a.RTThat))
		if et < 0 {
			et = -et
		}
		if et < bestET {
			bestET = et
			bestIdx = j
		}
	}
	a.thetaStampIdx = bestIdx

	if a.pstamp == nil {
		if sj, ok := a.histStamp.Find(bestIdx); ok {
			cp := sj
			a.pstamp = &cp
			a.pstampRTThat = a.RTThat
			a.pstampPerr = a.Thresholds.Ep
		}
	}

	a.setShiftThreshold()
	a.status = a.status.Clear(StatusWarmup)
}
