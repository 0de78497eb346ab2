package publish

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/facebook/radclock/algo"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sms")
	w, err := NewWriter(path)
	require.NoError(t, err)
	defer w.Close()

	data := algo.RadData{Phat: 1e-9, Ca: 12.5, LastChanged: 100, Status: algo.StatusSysclock}
	errData := algo.RadError{ErrorBound: 1e-5, MinRTT: 1e-4}
	require.NoError(t, w.Write(data, errData))

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	gotData, gotErr, err := r.Read()
	require.NoError(t, err)
	require.Equal(t, data.Phat, gotData.Phat)
	require.Equal(t, data.Ca, gotData.Ca)
	require.Equal(t, data.LastChanged, gotData.LastChanged)
	require.Equal(t, errData.ErrorBound, gotErr.ErrorBound)
	require.Equal(t, errData.MinRTT, gotErr.MinRTT)
}

func TestWriterReaderSecondGenerationVisible(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sms")
	w, err := NewWriter(path)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Write(algo.RadData{Phat: 1e-9}, algo.RadError{MinRTT: 1e-4}))
	require.NoError(t, w.Write(algo.RadData{Phat: 2e-9}, algo.RadError{MinRTT: 2e-4}))

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	gotData, _, err := r.Read()
	require.NoError(t, err)
	require.Equal(t, 2e-9, gotData.Phat)
}

func TestFillInvertRoundTrip(t *testing.T) {
	d := algo.RadData{Phat: 1.000000001e-9, Ca: 1700000000.123456789, LeapsecTotal: 37}
	est := Fill(d, 123456789, 5)
	phat, ca := Invert(est)

	require.InDelta(t, d.Phat, phat, 1e-18)
	require.InDelta(t, d.Ca, ca, 1e-9)
}

func TestToBintimeFromBintimeRoundTrip(t *testing.T) {
	sec, frac := toBintime(1700000000.5)
	got := fromBintime(sec, frac)
	require.True(t, math.Abs(got-1700000000.5) < 1e-9)
}
