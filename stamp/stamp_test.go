package stamp

import (
	"testing"

	"github.com/facebook/radclock/protocol/ntp"
	"github.com/stretchr/testify/require"
)

func TestStampSaneAcceptsWellFormed(t *testing.T) {
	s := Stamp{Ta: 1000, Tb: 5, Te: 6, Tf: 1000 + minRTTFloorCycles + 1}
	require.NoError(t, s.Sane(0))
}

func TestStampSaneRejectsTaNotLessThanTf(t *testing.T) {
	s := Stamp{Ta: 1000, Tb: 5, Te: 6, Tf: 1000}
	require.Error(t, s.Sane(0))
}

func TestStampSaneRejectsTbAfterTe(t *testing.T) {
	s := Stamp{Ta: 1000, Tb: 10, Te: 5, Tf: 1000 + minRTTFloorCycles + 1}
	require.Error(t, s.Sane(0))
}

func TestStampSaneRejectsTightRTT(t *testing.T) {
	s := Stamp{Ta: 1000, Tb: 5, Te: 6, Tf: 1000 + minRTTFloorCycles - 1}
	require.Error(t, s.Sane(0))
}

func TestStampSaneRejectsNonMonotoneTa(t *testing.T) {
	s := Stamp{Ta: 1000, Tb: 5, Te: 6, Tf: 1000 + minRTTFloorCycles + 1}
	require.Error(t, s.Sane(1000))
	require.NoError(t, s.Sane(999))
}

func TestQueueMatchesRequestThenResponse(t *testing.T) {
	q := NewQueue(8)
	q.InsertRequestHalf(100, 42)
	_, ok := q.PopFull()
	require.False(t, ok)

	q.InsertResponseHalf(5, 6, 200, "server-a", 1, ntp.LeapNoWarning, 0, 64, 42)
	got, ok := q.PopFull()
	require.True(t, ok)
	require.Equal(t, uint64(100), got.Ta)
	require.Equal(t, uint64(200), got.Tf)
	require.Equal(t, "server-a", got.ServerID)
}

func TestQueueMatchesResponseThenRequest(t *testing.T) {
	q := NewQueue(8)
	q.InsertResponseHalf(5, 6, 200, "server-a", 1, ntp.LeapNoWarning, 0, 64, 7)
	q.InsertRequestHalf(100, 7)
	got, ok := q.PopFull()
	require.True(t, ok)
	require.Equal(t, uint64(100), got.Ta)
}

func TestQueueDropsHeadOnOverflow(t *testing.T) {
	q := NewQueue(2)
	for i := uint64(1); i <= 3; i++ {
		q.InsertRequestHalf(i*10, i)
		q.InsertResponseHalf(1, 2, i*10+5, "s", 1, ntp.LeapNoWarning, 0, 1, i)
	}
	require.Equal(t, 2, q.Len())
	first, ok := q.PopFull()
	require.True(t, ok)
	// the nonce=1 stamp should have been dropped; oldest surviving is nonce=2.
	require.Equal(t, uint64(20), first.Ta)
}

func TestQueueEvictsOldestPendingOnOverflow(t *testing.T) {
	q := NewQueue(8)
	for i := uint64(0); i < maxPendingHalves+10; i++ {
		q.InsertRequestHalf(i, i)
	}
	require.LessOrEqual(t, len(q.pendingByKey), maxPendingHalves)
}
