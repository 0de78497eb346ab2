package algo

// updateRTT appends RTT for the new stamp and runs the top-window boundary
// and shift-detection logic of spec.md §4.3.2. Must be called after the
// stamp has been appended to histStamp/histRTT.
func (a *AlgoState) updateRTT(idx int64, s sample) {
	if idx == 0 {
		a.RTThat = s.RTT
		a.nextRTThat = s.RTT
		a.histRTThat.Add(a.RTThat)
		return
	}

	// first-half boundary: open the search for the next half's RTThat and
	// the next pstamp candidate.
	half := int64(a.Windows.TopWin / 2)
	if idx == half {
		a.nextRTThat = s.RTT
		a.jsearchOpen = true
		a.jsearchOpenAt = idx
	} else if a.jsearchOpen && s.RTT < a.nextRTThat {
		a.nextRTThat = s.RTT
	}

	// top_win/2 boundary: adopt the accumulated next_RTThat/next_pstamp and
	// reseed trackers for the following half-window.
	if idx == a.topWinHalf {
		a.RTThat = a.nextRTThat
		if a.nextPstamp != nil {
			a.pstamp = a.nextPstamp
			a.pstampPerr = a.nextPstampPerr
			a.pstampRTThat = a.nextPstampRTT
		}
		a.nextPstamp = nil
		a.nextRTThat = s.RTT
		a.jsearchOpen = true
		a.jsearchOpenAt = idx
		a.topWinHalf += int64(a.Windows.TopWin / 2)
		a.rolloverErrorBoundHalf()
	}

	// automatic downward adjustment: a new minimum always lowers RTThat.
	if s.RTT < a.RTThat {
		a.RTThat = s.RTT
	}

	a.histRTThat.Add(a.RTThat)

	// track a candidate next_pstamp: the argmin RTT stamp within the open
	// jsearch window of width JsearchWin.
	if a.jsearchOpen && idx-a.jsearchOpenAt < int64(a.Windows.JsearchWin) {
		if a.nextPstamp == nil || s.RTT < a.nextPstampRTT {
			cp := s
			a.nextPstamp = &cp
			a.nextPstampRTT = s.RTT
		}
	} else {
		a.jsearchOpen = false
	}

	a.maybeUpshift(idx)
}

// maybeUpshift implements the upward-shift detection of spec.md §4.3.2: if
// the sliding minimum over shift_win rises clear of RTThat by more than the
// shift threshold, a path change is assumed and RTThat jumps up to track it.
func (a *AlgoState) maybeUpshift(idx int64) {
	from := idx - int64(a.Windows.ShiftWin) + 1
	if from < 0 {
		from = 0
	}
	shiftMin, _, ok := a.histRTT.Min(from, idx, func(x, y uint64) bool { return x < y })
	if !ok {
		return
	}
	a.RTThatShift = shiftMin

	if a.RTThatShiftThres <= 0 {
		return
	}
	if float64(a.RTThatShift)-float64(a.RTThat) <= a.RTThatShiftThres/a.Phat {
		return
	}

	a.RTThat = a.RTThatShift
	a.status = a.status.Set(StatusRTTUpshift)
	a.sawUpshiftAt = idx

	rewriteFrom := idx - int64(a.Windows.OffsetWin) + 1
	if a.lastShiftIdx > rewriteFrom {
		rewriteFrom = a.lastShiftIdx
	}
	if rewriteFrom < 0 {
		rewriteFrom = 0
	}
	for i := rewriteFrom; i <= idx; i++ {
		a.histRTThat.Set(i, a.RTThat)
	}
	a.lastShiftIdx = idx
}

// setShiftThreshold derives RTThat_shift_thres after warmup (spec.md
// §4.3.2): close servers (small RTThat) get a tighter bound than far ones.
func (a *AlgoState) setShiftThreshold() {
	minRTTSecs := float64(a.RTThat) * a.Phat
	if minRTTSecs < a.Thresholds.Eshift {
		a.RTThatShiftThres = a.Thresholds.Eshift
	} else {
		a.RTThatShiftThres = 3 * a.Thresholds.Eshift
	}
}

// clearUpshiftIfExpired drops RTT_UPSHIFT once shift_win stamps have
// elapsed since it was raised (spec.md Scenario B).
func (a *AlgoState) clearUpshiftIfExpired(idx int64) {
	if a.status.Has(StatusRTTUpshift) && idx-a.sawUpshiftAt >= int64(a.Windows.ShiftWin) {
		a.status = a.status.Clear(StatusRTTUpshift)
	}
}
