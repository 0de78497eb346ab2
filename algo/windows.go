package algo

import "math"

// historyScaleSeconds is the 7-day lookback top_win derives from
// (spec.md §4.3.1).
const historyScaleSeconds = 7 * 24 * 3600

// Windows holds the sliding-window widths, in stamp units, spec.md §4.3.1
// derives from poll_period and Params.
type Windows struct {
	TopWin     int
	ShiftWin   int
	OffsetWin  int
	PlocalWin  int
	WarmupWin  int
	JsearchWin int
}

// ComputeWindows derives window widths from poll_period (seconds) and the
// environment meta-parameters, per spec.md §4.3.1.
func ComputeWindows(pollPeriod float64, p Params) Windows {
	if pollPeriod <= 0 {
		pollPeriod = 1
	}
	topWin := int(math.Ceil(historyScaleSeconds / pollPeriod))

	shiftWin := int(math.Ceil(10 * p.TSLIMIT / 1e-7 / pollPeriod))
	if shiftWin < 100 {
		shiftWin = 100
	}

	offsetWin := int(math.Ceil(p.SKMScale / pollPeriod))
	if offsetWin < 2 {
		offsetWin = 2
	}

	plocalWin := 5 * offsetWin
	if plocalWin < 4 {
		plocalWin = 4
	}

	ratio := p.PlocalWinRatio
	if ratio <= 0 {
		ratio = 4
	}
	warmupWin := offsetWin
	if shiftWin > warmupWin {
		warmupWin = shiftWin
	}
	plocalTerm := plocalWin + plocalWin/int(ratio/2)
	if plocalTerm > warmupWin {
		warmupWin = plocalTerm
	}
	warmupWin += 2

	for warmupWin+shiftWin > topWin/2 {
		topWin *= 2
	}

	return Windows{
		TopWin:     topWin,
		ShiftWin:   shiftWin,
		OffsetWin:  offsetWin,
		PlocalWin:  plocalWin,
		WarmupWin:  warmupWin,
		JsearchWin: warmupWin,
	}
}
