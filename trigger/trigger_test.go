package trigger

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/facebook/radclock/protocol/ntp"
	"github.com/facebook/radclock/stamp"
)

type fakeOracle struct{ n uint64 }

func (f *fakeOracle) ReadCounter() (uint64, error) { f.n++; return f.n, nil }
func (f *fakeOracle) WidthBits() uint              { return 64 }
func (f *fakeOracle) MaxCycles() uint64            { return 1 << 40 }

// echoServer answers every NTP request with a well-formed response that
// echoes the request's transmit timestamp as OrigTime, simulating a live
// server closely enough to exercise Trigger's send/receive/match path.
func echoServer(t *testing.T) *net.UDPAddr {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	go func() {
		buf := make([]byte, 128)
		for {
			n, addr, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			req, err := ntp.BytesToPacket(buf[:n])
			if err != nil {
				continue
			}
			resp := &ntp.Packet{}
			resp.SetSettings(ntp.LeapNoWarning, 4, 3)
			resp.Stratum = 1
			resp.OrigTimeSec, resp.OrigTimeFrac = req.TxTimeSec, req.TxTimeFrac
			resp.RxTimeSec, resp.RxTimeFrac = ntp.Time(time.Now())
			resp.TxTimeSec, resp.TxTimeFrac = ntp.Time(time.Now())
			b, err := resp.Bytes()
			if err != nil {
				continue
			}
			_, _ = conn.WriteToUDP(b, addr)
		}
	}()
	return conn.LocalAddr().(*net.UDPAddr)
}

func TestRunOnceMatchesEchoedResponse(t *testing.T) {
	addr := echoServer(t)
	q := stamp.NewQueue(16)
	tr, err := New(Config{
		ServerID:   "test",
		Addr:       addr,
		PollPeriod: time.Second,
	}, q, &fakeOracle{})
	require.NoError(t, err)
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, tr.RunOnce(ctx))
	require.Equal(t, 1, q.Len())
}

func TestRunOnceFailsWithNoServer(t *testing.T) {
	unused, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	addr := unused.LocalAddr().(*net.UDPAddr)
	unused.Close()

	q := stamp.NewQueue(16)
	tr, err := New(Config{
		ServerID:   "dead",
		Addr:       addr,
		PollPeriod: 200 * time.Millisecond,
	}, q, &fakeOracle{})
	require.NoError(t, err)
	defer tr.Close()
	tr.rcvTimeout = 20 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.Error(t, tr.RunOnce(ctx))
}

func TestNextNonceBreaksCollision(t *testing.T) {
	tr := &Trigger{}
	now := time.Now()
	sec1, frac1 := tr.nextNonce(now)
	sec2, frac2 := tr.nextNonce(now)
	require.Equal(t, sec1, sec2)
	require.Equal(t, frac1+1, frac2)
}

func TestMaxAttemptsClampedToRange(t *testing.T) {
	tr := &Trigger{cfg: Config{PollPeriod: time.Second}, rcvTimeout: 10 * time.Millisecond}
	require.Equal(t, 3, tr.maxAttempts())

	tr.rcvTimeout = 2 * time.Second
	require.Equal(t, 1, tr.maxAttempts())
}

func TestAdaptTimeoutClampsToPollFraction(t *testing.T) {
	tr := &Trigger{cfg: Config{PollPeriod: time.Second}}
	tr.adaptTimeout(2 * time.Millisecond)
	require.Equal(t, minRCVTIMEO, tr.rcvTimeout)

	tr.adaptTimeout(2 * time.Second)
	require.Equal(t, time.Duration(float64(time.Second)*maxRCVTIMEOFrac), tr.rcvTimeout)
}
