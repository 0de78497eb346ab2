package algo

import "github.com/eclesh/welford"

// updateErrorBoundStats folds the current error_bound into the running
// mean/variance trackers spec.md §4.3.6 describes: one accumulating over
// the full top window, one ("hwin") accumulating for the next half-window,
// swapped in at each half-window rollover.
func (a *AlgoState) updateErrorBoundStats() {
	if a.welfordFull == nil {
		a.welfordFull = welford.New()
		a.welfordHalf = welford.New()
	}
	eb := a.errorBoundLocked()
	a.welfordFull.Add(eb)
	a.welfordHalf.Add(eb)
}

// rolloverErrorBoundHalf replaces the full-window tracker with the
// half-window one and starts a fresh half-window tracker, called at the
// same top_win/2 boundary the RTT tracker rolls over at.
func (a *AlgoState) rolloverErrorBoundHalf() {
	if a.welfordHalf == nil {
		return
	}
	a.welfordFull = a.welfordHalf
	a.welfordHalf = welford.New()
}
