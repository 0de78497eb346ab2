package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/facebook/radclock/config"
	"github.com/facebook/radclock/protocol/ntp"
	"github.com/facebook/radclock/stamp"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.TimeServers = []string{"127.0.0.1", "127.0.0.2"}
	return cfg
}

func packNTP(sec, frac uint32) uint64 { return uint64(sec)<<32 | uint64(frac) }

func pushStamp(q *stamp.Queue, nonce uint64) {
	ta := nonce * 1000
	q.InsertRequestHalf(ta, nonce)
	q.InsertResponseHalf(packNTP(1700000000, 0), packNTP(1700000000, 0), ta+200, "127.0.0.1", 1, ntp.LeapNoWarning, 0, 64, nonce)
}

func TestNewRejectsEmptyTimeServers(t *testing.T) {
	cfg := testConfig()
	cfg.TimeServers = nil
	_, err := New(cfg, "", "", "")
	require.Error(t, err)
}

func TestNewCreatesOneServerUnitPerTimeServer(t *testing.T) {
	h, err := New(testConfig(), "", "", "")
	require.NoError(t, err)
	defer h.Close()
	require.ElementsMatch(t, []string{"127.0.0.1", "127.0.0.2"}, h.ServerIDs())
}

func TestDrainOnceFeedsStatsAndElectsPreferred(t *testing.T) {
	cfg := testConfig()
	cfg.TimeServers = []string{"127.0.0.1"}
	h, err := New(cfg, "", "", "")
	require.NoError(t, err)
	defer h.Close()

	pushStamp(h.servers[0].queue, 1)
	h.drainOnce()

	snaps := h.stats.Snapshot()
	require.Len(t, snaps, 1)
	require.Equal(t, "127.0.0.1", snaps[0].ServerID)
	require.True(t, snaps[0].Preferred)
}

func TestRehashSkipsReloadWhenContentUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "radclock.conf")
	require.NoError(t, os.WriteFile(path, []byte("hostname = box1\ntime_server = 127.0.0.1\n"), 0644))

	h, err := New(testConfig(), path, "", "")
	require.NoError(t, err)
	defer h.Close()

	h.rehash()
	require.True(t, h.haveHash)
	firstHash := h.lastHash

	h.rehash()
	require.Equal(t, firstHash, h.lastHash)
}

func TestRehashAppliesServerTrustOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "radclock.conf")
	require.NoError(t, os.WriteFile(path, []byte("time_server = 127.0.0.1\ntime_server = 127.0.0.2\n"), 0644))

	h, err := New(testConfig(), path, "", "")
	require.NoError(t, err)
	defer h.Close()
	h.rehash()
	require.True(t, h.servers[0].trusted)

	require.NoError(t, os.WriteFile(path, []byte("time_server = 127.0.0.1\ntime_server = 127.0.0.2\nservertrust = 127.0.0.1=1\n"), 0644))
	h.rehash()
	require.False(t, h.servers[0].trusted)
}

func TestRunOneShotReturnsContextErrorWhenCancelled(t *testing.T) {
	h, err := New(testConfig(), "", "", "")
	require.NoError(t, err)
	defer h.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = h.RunOneShot(ctx)
	require.Error(t, err)
}

func TestNewRejectsSyncInAsciiWithMultipleTimeServers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.ascii")
	require.NoError(t, os.WriteFile(path, []byte("1000 1700000000 1700000000 1200 1\n"), 0644))

	cfg := testConfig()
	cfg.SyncInAscii = path
	_, err := New(cfg, "", "", "")
	require.Error(t, err)
}

func TestNewWiresAsciiSourceForSingleTimeServer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.ascii")
	require.NoError(t, os.WriteFile(path, []byte("1000 1700000000 1700000000 1200 1\n"), 0644))

	cfg := testConfig()
	cfg.TimeServers = []string{"127.0.0.1"}
	cfg.SyncInAscii = path
	h, err := New(cfg, "", "", "")
	require.NoError(t, err)
	defer h.Close()

	require.NotNil(t, h.passiveSource)
	require.Nil(t, h.servers[0].trigger)

	require.NoError(t, h.passiveSource.Run(h.servers[0].queue))
	st, ok := h.servers[0].queue.PopFull()
	require.True(t, ok)
	require.Equal(t, uint64(1), st.Nonce)
}

func TestAlgoTraceWritesOneLinePerStamp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "algo.out")
	at, err := newAlgoTrace(path)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.TimeServers = []string{"127.0.0.1"}
	h, err := New(cfg, "", "", "")
	require.NoError(t, err)
	defer h.Close()
	data, errData := h.servers[0].algo.Snapshot()

	require.NoError(t, at.Write("127.0.0.1", data, errData))
	require.NoError(t, at.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(content), "127.0.0.1")
}
