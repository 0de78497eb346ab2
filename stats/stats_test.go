package stats

import (
	"bytes"
	"strings"
	"testing"

	"github.com/facebook/radclock/algo"
	"github.com/stretchr/testify/require"
)

func TestRegistryUpdateAndSnapshot(t *testing.T) {
	r := NewRegistry()
	r.Update("server-a", algo.RadData{Phat: 1e-9, Status: algo.StatusWarmup}, algo.RadError{ErrorBound: 1e-3})
	r.SetPreferred("server-a")

	snaps := r.Snapshot()
	require.Len(t, snaps, 1)
	require.Equal(t, "server-a", snaps[0].ServerID)
	require.True(t, snaps[0].Preferred)
}

func TestRegistryAllWarmedUp(t *testing.T) {
	r := NewRegistry()
	r.Update("server-a", algo.RadData{Status: algo.StatusWarmup}, algo.RadError{})
	require.False(t, r.AllWarmedUp([]string{"server-a"}))

	r.Update("server-a", algo.RadData{Status: 0}, algo.RadError{})
	require.True(t, r.AllWarmedUp([]string{"server-a"}))
}

func TestRegistryAllWarmedUpEmptyIsFalse(t *testing.T) {
	r := NewRegistry()
	require.False(t, r.AllWarmedUp(nil))
}

func TestWriteTableRendersServerAndStatus(t *testing.T) {
	var buf bytes.Buffer
	WriteTable(&buf, []ServerSnapshot{
		{ServerID: "server-a", Data: algo.RadData{Phat: 1e-9}, Err: algo.RadError{ErrorBound: 2e-3}, Preferred: true},
	})
	out := buf.String()
	require.True(t, strings.Contains(out, "server-a"))
}

func TestFlattenKeyReplacesNonAlnum(t *testing.T) {
	require.Equal(t, "ntp1_example_com", flattenKey("ntp1.example.com"))
}

func TestSysStatsCollectPopulatesRuntimeFields(t *testing.T) {
	s := &SysStats{}
	snap, err := s.Collect()
	require.NoError(t, err)
	require.Greater(t, snap.Goroutines, 0)
}
