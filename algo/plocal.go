package algo

import "math"

// updatePlocal implements spec.md §4.3.4: a short-lag refinement of phat,
// using the same two-sample formula as steady-state phat but over a much
// shorter separation (plocal_win stamps) so it tracks short-term skew.
func (a *AlgoState) updatePlocal(idx int64, qualWarning bool) {
	lag := int64(a.Windows.PlocalWin)
	if idx < lag {
		a.Plocal = a.Phat
		a.plocalProblem = true
		return
	}

	farIdx := idx - lag
	far, ok1 := a.histStamp.Find(farIdx)
	near, ok2 := a.histStamp.Find(idx)
	if !ok1 || !ok2 {
		a.Plocal = a.Phat
		a.plocalProblem = true
		return
	}
	if a.plocalProblem {
		// enough history has now accumulated; resume tracking from phat.
		a.plocalProblem = false
	}

	candidate := (near.Tb - far.Tb) / float64(near.Ta-far.Ta)

	plocalErr := a.Phat * (float64(near.RTT) - float64(a.RTThat))
	if plocalErr < 0 {
		plocalErr = -plocalErr
	}
	a.PlocalErr = plocalErr

	if plocalErr >= a.Thresholds.EplocalQual {
		a.status = a.status.Set(StatusPlocalQuality)
		return
	}
	a.status = a.status.Clear(StatusPlocalQuality)

	delta := math.Abs((candidate - a.Plocal) / a.Plocal)
	if delta > a.Thresholds.EplocalSanity || qualWarning {
		a.status = a.status.Set(StatusPlocalSanity)
		return
	}
	a.status = a.status.Clear(StatusPlocalSanity)
	a.Plocal = candidate
}
