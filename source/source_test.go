package source

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/facebook/radclock/stamp"
)

func TestAsciiSourceSkipsHeaderAndComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.asc")
	sink, err := NewAsciiSink(path)
	require.NoError(t, err)
	require.NoError(t, sink.Write(stamp.Stamp{Ta: 1000, Tb: 2 << 32, Te: 2<<32 | 1, Tf: 2000, Nonce: 42, ServerID: "s1"}))
	require.NoError(t, sink.Close())

	src, err := NewAsciiSource(path)
	require.NoError(t, err)
	defer src.Close()

	q := stamp.NewQueue(4)
	require.NoError(t, src.Run(q))
	require.Equal(t, 1, q.Len())

	got, ok := q.PopFull()
	require.True(t, ok)
	require.Equal(t, uint64(1000), got.Ta)
	require.Equal(t, uint64(2000), got.Tf)
	require.Equal(t, uint64(42), got.Nonce)
}

func TestParseAsciiLineRejectsShortLines(t *testing.T) {
	_, _, _, _, _, err := parseAsciiLine("1 2 3")
	require.Error(t, err)
}

func TestParseNMEATimeParsesGPRMC(t *testing.T) {
	line := "$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A"
	tm, ok := parseNMEATime(line)
	require.True(t, ok)
	require.Equal(t, 1994, tm.Year())
	require.Equal(t, 12, tm.Hour())
	require.Equal(t, 35, tm.Minute())
	require.Equal(t, 19, tm.Second())
}

func TestParseNMEATimeRejectsVoidFix(t *testing.T) {
	line := "$GPRMC,123519,V,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A"
	_, ok := parseNMEATime(line)
	require.False(t, ok)
}

func TestParseNMEATimeRejectsNonRMC(t *testing.T) {
	_, ok := parseNMEATime("$GPGGA,123519,4807.038,N*47")
	require.False(t, ok)
}
