package ntp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSettingsRoundTrip(t *testing.T) {
	p := &Packet{}
	p.SetSettings(LeapNoWarning, 4, ModeClient)
	require.Equal(t, LeapNoWarning, p.LI())
	require.Equal(t, uint8(4), p.VN())
	require.Equal(t, ModeClient, p.ModeField())
	require.True(t, p.ValidSettingsFormat())
}

func TestValidSettingsFormatRejectsBadMode(t *testing.T) {
	p := &Packet{}
	p.SetSettings(LeapNoWarning, 4, ModeServer)
	require.False(t, p.ValidSettingsFormat())
}

func TestTimeRoundTrip(t *testing.T) {
	now := time.Unix(1700000000, 123456789)
	sec, frac := Time(now)
	got := Unix(sec, frac)
	require.WithinDuration(t, now, got, time.Nanosecond*2)
}

func TestBytesRoundTrip(t *testing.T) {
	p := &Packet{Stratum: 1, Poll: 6, Precision: -20}
	p.SetSettings(LeapNoWarning, 4, ModeClient)
	sec, frac := Time(time.Now())
	p.TxTimeSec, p.TxTimeFrac = sec, frac

	b, err := p.Bytes()
	require.NoError(t, err)
	require.Len(t, b, PacketSizeBytes)

	got, err := BytesToPacket(b)
	require.NoError(t, err)
	require.Equal(t, p, got)
}

func TestNonce64Uniqueness(t *testing.T) {
	a := Nonce64(100, 1)
	b := Nonce64(100, 2)
	require.NotEqual(t, a, b)
}

func TestMACLength(t *testing.T) {
	mac := MAC(1, []byte("secret"), []byte("payload"))
	require.Len(t, mac, KeyIDSizeBytes+MACSizeBytes)
}
