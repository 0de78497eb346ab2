package preferred

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSelectPrefersTrustedLowError(t *testing.T) {
	s := New()
	cands := []Candidate{
		{ServerID: "a", MinRTT: 0.01, ErrorBound: 0.001, Trusted: true, HasStamp: true},
		{ServerID: "b", MinRTT: 0.02, ErrorBound: 0.02, Trusted: true, HasStamp: true},
		{ServerID: "c", MinRTT: 0.005, ErrorBound: 0.001, Trusted: false, HasStamp: true},
	}
	id, ev := s.Select(cands, "")
	require.Equal(t, "a", id)
	require.Equal(t, EventChanged, ev)
}

func TestSelectFallsBackWhenNoTrustedCandidate(t *testing.T) {
	s := New()
	cands := []Candidate{
		{ServerID: "a", MinRTT: 0.05, ErrorBound: 0.02, Trusted: true, HasStamp: true},
		{ServerID: "b", MinRTT: 0.01, ErrorBound: 0.02, Trusted: false, HasStamp: true},
	}
	id, ev := s.Select(cands, "")
	require.Equal(t, "b", id)
	require.Equal(t, EventChanged, ev)
}

func TestSelectEmitsUpdatedWhenSameServerStampArrives(t *testing.T) {
	s := New()
	cands := []Candidate{{ServerID: "a", MinRTT: 0.01, ErrorBound: 0.001, Trusted: true, HasStamp: true}}
	_, _ = s.Select(cands, "")

	id, ev := s.Select(cands, "a")
	require.Equal(t, "a", id)
	require.Equal(t, EventUpdated, ev)
}

func TestSelectEmitsNoneForUnrelatedStamp(t *testing.T) {
	s := New()
	cands := []Candidate{
		{ServerID: "a", MinRTT: 0.01, ErrorBound: 0.001, Trusted: true, HasStamp: true},
		{ServerID: "b", MinRTT: 0.5, ErrorBound: 0.001, Trusted: true, HasStamp: true},
	}
	_, _ = s.Select(cands, "")

	id, ev := s.Select(cands, "b")
	require.Equal(t, "a", id)
	require.Equal(t, EventNone, ev)
}

func TestSelectChangesWhenBetterServerAppears(t *testing.T) {
	s := New()
	cands := []Candidate{{ServerID: "a", MinRTT: 0.05, ErrorBound: 0.001, Trusted: true, HasStamp: true}}
	_, _ = s.Select(cands, "")

	cands = append(cands, Candidate{ServerID: "b", MinRTT: 0.01, ErrorBound: 0.001, Trusted: true, HasStamp: true})
	id, ev := s.Select(cands, "")
	require.Equal(t, "b", id)
	require.Equal(t, EventChanged, ev)
}

func TestSelectReturnsNoneWithNoCandidates(t *testing.T) {
	s := New()
	_, ev := s.Select(nil, "")
	require.Equal(t, EventNone, ev)
	_, ok := s.Current()
	require.False(t, ok)
}
