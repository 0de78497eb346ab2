package algo

import "math"

// updatePhatWarmup implements spec.md §4.3.3's warmup-regime estimator: a
// far-window and a near-window argmin-RTT stamp, recomputed from both
// whenever either argmin changes.
func (a *AlgoState) updatePhatWarmup(idx int64) {
	half := idx / 2
	less := func(x, y uint64) bool { return x < y }

	_, farIdx, okFar := a.histRTT.Min(0, half, less)
	_, nearIdx, okNear := a.histRTT.Min(half+1, idx, less)
	if !okNear {
		// not enough stamps yet on the near side; fall back to a single
		// split at the midpoint.
		nearIdx = idx
		okNear = true
	}
	if !okFar {
		return
	}

	if farIdx == a.warmupFarIdx && nearIdx == a.warmupNearIdx {
		return
	}
	a.warmupFarIdx = farIdx
	a.warmupNearIdx = nearIdx
	if !okNear || farIdx == nearIdx {
		return
	}

	far, ok1 := a.histStamp.Find(farIdx)
	near, ok2 := a.histStamp.Find(nearIdx)
	if !ok1 || !ok2 {
		return
	}

	phatF := (near.Tb - far.Tb) / float64(near.Ta-far.Ta)
	phatB := (near.Te - far.Te) / float64(near.Tf-far.Tf)
	newPhat := (phatF + phatB) / 2
	if newPhat > 0 {
		a.adoptPhat(newPhat, far.Ta)
	}
}

// updatePhatSteady implements spec.md §4.3.3's post-warmup estimator using
// the (pstamp, current stamp) reference pair.
func (a *AlgoState) updatePhatSteady(idx int64, s sample) {
	if a.pstamp == nil {
		return
	}
	p := a.pstamp
	if s.Tb == p.Tb {
		return
	}

	candidate := (s.Tb - p.Tb) / float64(s.Ta-p.Ta)

	perrI := a.Phat * (float64(s.RTT) - float64(a.RTThat))
	if perrI < 0 {
		perrI = -perrI
	}
	rttDelta := float64(a.RTThat) - float64(a.pstampRTThat)
	if rttDelta < 0 {
		rttDelta = -rttDelta
	}
	perrIJ := (perrI + a.pstampPerr + a.Phat*rttDelta) / (s.Tb - p.Tb)

	if perrI >= a.Thresholds.Ep {
		return
	}
	if !(perrIJ < a.Perr || perrIJ < a.Thresholds.EpQual) {
		return
	}

	delta := math.Abs((candidate - a.Phat) / a.Phat)
	if delta > a.Thresholds.EpSanity {
		a.status = a.status.Set(StatusPhatSanity)
		return
	}
	a.status = a.status.Clear(StatusPhatSanity)
	a.Perr = perrIJ
	a.adoptPhat(candidate, s.Ta)
}

// adoptPhat replaces phat, adjusting K so the reported clock stays
// continuous at taPrev (spec.md §4.3.3, property 5).
func (a *AlgoState) adoptPhat(newPhat float64, taPrev uint64) {
	a.K += float64(taPrev) * (a.Phat - newPhat)
	a.Phat = newPhat
	a.status = a.status.Set(StatusPhatUpdated)
}
