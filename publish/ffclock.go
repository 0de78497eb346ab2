package publish

import (
	"math"
	"math/bits"

	"github.com/facebook/radclock/algo"
)

// pow2to64 is 2^64 as a float64, used for the binfrac period encoding.
const pow2to64 = 18446744073709551616.0

// Estimate mirrors the kernel's ffclock_estimate record (spec.md §6):
// period is phat encoded as a 64-bit binary fraction, update_time is a
// bintime (whole seconds + 64-bit fraction), errb_* are in absolute units.
type Estimate struct {
	UpdateTimeSec   uint64
	UpdateTimeFrac  uint64 // 64-bit binary fraction of a second
	UpdateFFCount   uint64
	Period          uint64 // phat * 2^64, rounded
	ErrbAbsNS       uint32
	ErrbRatePS      uint32 // ps/s
	Status          uint32
	SecsToNextUpdate uint32
	LeapsecTotal    int16
	LeapsecNext     int8
	LeapsecExpected uint64
}

// Fill converts rad_data (as of update_ffcount) into the kernel record
// (spec.md §4.7/§6): period = phat·2^64 rounded; update_time = Ca + phat·
// update_ffcount expressed as a bintime. The phat·update_ffcount term is
// computed as an exact 128-bit integer product of period and
// update_ffcount rather than a float64 multiply: at realistic
// update_ffcount magnitudes a float64 product carries only ~100-200ns of
// precision, well short of the bintime's native resolution. d.Ca itself
// is still a float64 (the one remaining, irreducible source of rounding
// here, bounded by float64's ~2^-52 relative precision at d.Ca's
// magnitude), so the round trip through Invert is exact in the
// phat·update_ffcount term and limited only by that single conversion.
func Fill(d algo.RadData, updateFFCount uint64, secsToNextUpdate uint32) Estimate {
	period := uint64(math.Round(d.Phat * pow2to64))
	caSec, caFrac := toBintime(d.Ca)
	periodSec, periodFrac := bits.Mul64(period, updateFFCount)
	sec, frac := addBintime(caSec, caFrac, periodSec, periodFrac)

	return Estimate{
		UpdateTimeSec:    sec,
		UpdateTimeFrac:   frac,
		UpdateFFCount:    updateFFCount,
		Period:           period,
		ErrbAbsNS:        uint32(math.Round(d.CaErr * 1e9)),
		ErrbRatePS:       uint32(math.Round(d.PhatErr * 1e12)),
		Status:           uint32(d.Status),
		SecsToNextUpdate: secsToNextUpdate,
		LeapsecTotal:     int16(d.LeapsecTotal),
		LeapsecNext:      int8(d.LeapsecNext),
		LeapsecExpected:  d.LeapsecExpected,
	}
}

// Invert recovers (phat, ca) from an Estimate, reproducing the values
// Fill was built from to within 1ns (spec.md §8 property 9). It mirrors
// Fill's exact-integer path: the period·update_ffcount bintime term is
// subtracted out with the same 128-bit arithmetic Fill used to add it in,
// leaving ca's float64 conversion as the only rounding step in the round
// trip.
func Invert(e Estimate) (phat, ca float64) {
	phat = float64(e.Period) / pow2to64
	periodSec, periodFrac := bits.Mul64(e.Period, e.UpdateFFCount)
	caSec, caFrac := subBintime(e.UpdateTimeSec, e.UpdateTimeFrac, periodSec, periodFrac)
	ca = fromBintime(caSec, caFrac)
	return phat, ca
}

// addBintime adds two bintimes exactly, carrying the fractional overflow
// into the seconds field.
func addBintime(sec1, frac1, sec2, frac2 uint64) (sec, frac uint64) {
	frac, carry := bits.Add64(frac1, frac2, 0)
	sec, _ = bits.Add64(sec1, sec2, carry)
	return sec, frac
}

// subBintime subtracts (sec2, frac2) from (sec1, frac1) exactly, borrowing
// from the seconds field on fractional underflow.
func subBintime(sec1, frac1, sec2, frac2 uint64) (sec, frac uint64) {
	frac, borrow := bits.Sub64(frac1, frac2, 0)
	sec, _ = bits.Sub64(sec1, sec2, borrow)
	return sec, frac
}

// toBintime splits a float64 seconds value into whole seconds and a
// 64-bit binary fraction, FreeBSD bintime style.
func toBintime(seconds float64) (sec uint64, frac uint64) {
	whole := math.Floor(seconds)
	sec = uint64(whole)
	frac = uint64(math.Round((seconds - whole) * pow2to64))
	return sec, frac
}

func fromBintime(sec, frac uint64) float64 {
	return float64(sec) + float64(frac)/pow2to64
}
