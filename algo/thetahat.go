package algo

import "math"

// updateThetahat implements spec.md §4.3.5: a naive per-stamp offset
// estimate, weighted over offset_win stamps by a Gaussian kernel of each
// stamp's estimated timestamping error ET_j, with a local-rate correction
// once plocal is trustworthy.
func (a *AlgoState) updateThetahat(idx int64, s sample, inWarmup, qualWarning, frozen bool) {
	thnaive := (a.Phat*(float64(s.Ta)+float64(s.Tf)) + 2*a.K - (s.Tb + s.Te)) / 2
	a.histThnaive.Add(thnaive)

	offsetWin := int64(a.Windows.OffsetWin)
	from := idx - offsetWin + 1
	if from < 0 {
		from = 0
	}

	var sumW, sumWTh, minET float64
	first := true
	for j := from; j <= idx; j++ {
		sj, ok := a.histStamp.Find(j)
		if !ok {
			continue
		}
		thj, ok2 := a.histThnaive.Find(j)
		if !ok2 {
			continue
		}
		rthatj, ok3 := a.histRTThat.Find(j)
		if !ok3 {
			continue
		}

		et := a.Phat*(float64(sj.RTT)-float64(rthatj)) + a.Phat*float64(s.Tf-sj.Tf)*a.Params.BestSKMRate
		w := math.Exp(-(et * et) / (a.Thresholds.Eoffset * a.Thresholds.Eoffset))

		thjc := thj
		if !inWarmup && !a.plocalProblem {
			thjc = thj - (a.Plocal/a.Phat-1)*a.Phat*float64(s.Tf-sj.Tf)
		}

		sumW += w
		sumWTh += w * thjc
		if first || et < minET {
			minET = et
			first = false
		}
	}
	a.MinET = minET

	if sumW == 0 || minET >= a.Thresholds.EoffsetQual {
		a.status = a.status.Set(StatusOffsetQuality)
		return
	}
	a.status = a.status.Clear(StatusOffsetQuality)

	candidate := sumWTh / sumW

	gapsize := 0.0
	if ts, ok := a.histStamp.Find(a.thetaStampIdx); ok {
		gapsize = a.Phat * float64(s.Tf-ts.Tf)
	}
	delta := math.Abs(candidate - a.Thetahat)
	if delta > a.Thresholds.EoffsetSanityMin+a.Thresholds.EoffsetSanityRate*gapsize || qualWarning || frozen {
		a.status = a.status.Set(StatusOffsetSanity)
		return
	}
	a.status = a.status.Clear(StatusOffsetSanity)
	a.Thetahat = candidate
	a.thetaStampIdx = idx
	a.errorBoundMinLast = minET
}
