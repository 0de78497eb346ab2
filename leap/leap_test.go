package leap

import (
	"testing"
	"time"

	"github.com/facebook/radclock/protocol/ntp"
	"github.com/facebook/radclock/stamp"
	"github.com/stretchr/testify/require"
)

func TestBuiltinTableSorted(t *testing.T) {
	tbl := NewBuiltinTable()
	for i := 1; i < len(tbl.entries); i++ {
		require.True(t, tbl.entries[i].At.After(tbl.entries[i-1].At))
	}
}

func TestTableNextAndTotalAt(t *testing.T) {
	tbl := NewBuiltinTable()
	before := time.Date(1971, 1, 1, 0, 0, 0, 0, time.UTC)
	next, ok := tbl.Next(before)
	require.True(t, ok)
	require.Equal(t, int32(10), next.Total)
	require.Equal(t, int32(0), tbl.TotalAt(before))

	after2017 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, int32(37), tbl.TotalAt(after2017))
	_, ok = tbl.Next(after2017)
	require.False(t, ok)
}

func TestLoadSystemTableFallsBackWhenMissing(t *testing.T) {
	tbl := LoadSystemTable("/nonexistent/path/right/UTC")
	require.NotEmpty(t, tbl.entries)
}

func TestImminentRequiresCloseWindow(t *testing.T) {
	tbl := NewBuiltinTable()
	farBefore := time.Date(1971, 1, 1, 0, 0, 0, 0, time.UTC)
	_, imminent := tbl.Imminent(farBefore, 2*time.Hour)
	require.False(t, imminent)

	closeBefore := time.Date(1971, 12, 31, 23, 0, 0, 0, time.UTC)
	sign, imminent := tbl.Imminent(closeBefore, 2*time.Hour)
	require.True(t, imminent)
	require.Equal(t, int32(1), sign)
}

func TestIsLeapZone(t *testing.T) {
	require.True(t, isLeapZone(time.Date(2024, time.June, 30, 12, 0, 0, 0, time.UTC)))
	require.True(t, isLeapZone(time.Date(2024, time.December, 31, 12, 0, 0, 0, time.UTC)))
	require.False(t, isLeapZone(time.Date(2024, time.March, 30, 12, 0, 0, 0, time.UTC)))
}

func TestStateObserveArmsLeapNext(t *testing.T) {
	tbl := NewBuiltinTable()
	s := NewState(tbl)
	now := time.Date(1971, 12, 31, 23, 30, 0, 0, time.UTC)
	for i := 0; i < warningCountThreshold+1; i++ {
		s.Observe(ntp.LeapAddSecond, now)
	}
	require.Equal(t, int32(1), s.LeapsecNext)
	require.NotZero(t, s.Tleap)
}

func TestStateMaybeApplyFoldsTotalAndFreezes(t *testing.T) {
	s := NewState(NewBuiltinTable())
	s.LeapsecNext = 1
	s.Tleap = 1000
	applied := s.MaybeApply(0, 1000)
	require.True(t, applied)
	require.Equal(t, int32(1), s.LeapsecTotal)
	require.Equal(t, int32(0), s.LeapsecNext)
	require.Equal(t, postleapFreezeStamps, s.PostleapFreeze)

	s.Tick()
	require.Equal(t, postleapFreezeStamps-1, s.PostleapFreeze)
	require.True(t, s.Frozen())
}

func TestStateStripSubtractsWholeSeconds(t *testing.T) {
	s := NewState(NewBuiltinTable())
	s.LeapsecTotal = 2
	packed := uint64(100)<<32 | 0x80000000
	require.Equal(t, uint64(98)<<32|0x80000000, subtractSeconds(packed, 2))
	st := s.Strip(stamp.Stamp{Tb: packed, Te: packed})
	require.Equal(t, uint64(98)<<32|0x80000000, st.Tb)
	require.Equal(t, uint64(98)<<32|0x80000000, st.Te)
}
