package counter

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeOracle is a hand-rolled test fake, matching the teacher's
// clock_mock_test.go pattern rather than a generated mock.
type fakeOracle struct {
	counts    []uint64
	i         int
	widthBits uint
	maxCycles uint64
	err       error
}

func (f *fakeOracle) ReadCounter() (uint64, error) {
	if f.err != nil {
		return 0, f.err
	}
	if f.i >= len(f.counts) {
		return f.counts[len(f.counts)-1], nil
	}
	v := f.counts[f.i]
	f.i++
	return v, nil
}

func (f *fakeOracle) WidthBits() uint  { return f.widthBits }
func (f *fakeOracle) MaxCycles() uint64 { return f.maxCycles }

func TestWrapMask(t *testing.T) {
	o32 := &fakeOracle{widthBits: 32}
	require.Equal(t, uint64(0xFFFFFFFF), WrapMask(o32))

	o64 := &fakeOracle{widthBits: 64}
	require.Equal(t, ^uint64(0), WrapMask(o64))
}

func TestBracketStampAcceptsFirstSampleWhenPhatUnknown(t *testing.T) {
	o := &fakeOracle{counts: []uint64{100, 200}}
	b, err := BracketStamp(o, 0, time.Now)
	require.NoError(t, err)
	require.Equal(t, uint64(100), b.Before)
	require.Equal(t, uint64(200), b.After)
}

func TestBracketStampPropagatesReadError(t *testing.T) {
	o := &fakeOracle{err: errors.New("device gone")}
	_, err := BracketStamp(o, 0, time.Now)
	require.Error(t, err)
}

func TestBracketWidth(t *testing.T) {
	b := Bracket{Before: 0, After: 1000}
	// phat in seconds-per-count; 1e-9 s/count over 1000 counts = 1us.
	require.Equal(t, time.Microsecond, b.Width(1e-9))
	require.Equal(t, time.Duration(0), b.Width(0))
}

func TestMonotonicRawReadCounterMonotone(t *testing.T) {
	m := NewMonotonicRaw(0)
	a, err := m.ReadCounter()
	require.NoError(t, err)
	b, err := m.ReadCounter()
	require.NoError(t, err)
	require.GreaterOrEqual(t, b, a)
	require.Equal(t, uint(64), m.WidthBits())
}
