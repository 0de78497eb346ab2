package algo

import (
	"math"
	"testing"

	"github.com/facebook/radclock/protocol/ntp"
	"github.com/facebook/radclock/stamp"
	"github.com/stretchr/testify/require"
)

func packSeconds(t float64) uint64 {
	sec := uint64(t)
	frac := uint64((t - float64(sec)) * 4294967296.0)
	return sec<<32 | frac
}

func TestComputeWindowsEnforcesTopWinBound(t *testing.T) {
	w := ComputeWindows(16, DefaultParams())
	require.GreaterOrEqual(t, w.TopWin/2, w.WarmupWin+w.ShiftWin)
	require.Greater(t, w.WarmupWin, 0)
}

// TestIdealSteadyState is a simplified rendering of spec.md's end-to-end
// Scenario A: a perfectly linear clock with phat_true = 1e-9 s/tick should
// converge phat close to that value and RTThat*phat close to 100us.
func TestIdealSteadyState(t *testing.T) {
	const phatTrue = 1e-9
	params := DefaultParams()
	params.InitPeriodEstimate = phatTrue
	state := New("server-a", 16, params)

	n := state.Windows.WarmupWin + 50
	for i := 0; i < n; i++ {
		ta := uint64(i) * 16_000_000_000
		tf := ta + 100_000
		tb := float64(i) * 16
		te := tb + 50e-6

		st := stamp.Stamp{
			Ta: ta, Tf: tf,
			Tb: packSeconds(tb), Te: packSeconds(te),
			LI: ntp.LeapNoWarning, Stratum: 1,
		}
		_, _, err := state.ProcessBidirStamp(st, false, false)
		require.NoError(t, err)
	}

	data, errEst := state.Snapshot()
	require.InDelta(t, phatTrue, data.Phat, 5e-10)
	require.InDelta(t, 1e-4, errEst.MinRTT, 2e-5)
	require.False(t, data.Status.Has(StatusWarmup))
}

func TestProcessBidirStampRejectsInsaneStamp(t *testing.T) {
	state := New("server-a", 16, DefaultParams())
	st := stamp.Stamp{Ta: 1000, Tf: 999}
	_, _, err := state.ProcessBidirStamp(st, false, false)
	require.Error(t, err)
}

func TestProcessBidirStampRejectsNonMonotoneTa(t *testing.T) {
	state := New("server-a", 16, DefaultParams())
	st1 := stamp.Stamp{Ta: 1000, Tf: 1000 + minRTTFloor(), Tb: packSeconds(1), Te: packSeconds(1.00005)}
	_, _, err := state.ProcessBidirStamp(st1, false, false)
	require.NoError(t, err)

	st2 := stamp.Stamp{Ta: 1000, Tf: 2000 + minRTTFloor(), Tb: packSeconds(2), Te: packSeconds(2.00005)}
	_, _, err = state.ProcessBidirStamp(st2, false, false)
	require.Error(t, err)
}

func minRTTFloor() uint64 { return 200 }

func TestAdoptPhatPreservesContinuity(t *testing.T) {
	state := New("server-a", 16, DefaultParams())
	state.K = 10
	state.Phat = 1e-9
	state.adoptPhat(2e-9, 1000)
	// C(t) = phat*t + K must be unchanged at t = taPrev.
	require.InDelta(t, 1e-9*1000+10, 2e-9*1000+state.K, 1e-12)
	require.True(t, state.status.Has(StatusPhatUpdated))
}

func TestStatusString(t *testing.T) {
	var s Status
	require.Equal(t, "0", s.String())
	s = s.Set(StatusWarmup).Set(StatusStarving)
	require.Contains(t, s.String(), "WARMUP")
	require.Contains(t, s.String(), "STARVING")
}

func TestErrorBoundStatsAccumulate(t *testing.T) {
	state := New("server-a", 16, DefaultParams())
	for i := 0; i < 5; i++ {
		state.histStamp.Add(sample{Ta: uint64(i), Tf: uint64(i) + 1000, RTT: 1000})
		state.updateErrorBoundStats()
	}
	require.NotNil(t, state.welfordFull)
	require.EqualValues(t, 5, state.welfordFull.Count())
	require.False(t, math.IsNaN(state.welfordFull.Mean()))
}
