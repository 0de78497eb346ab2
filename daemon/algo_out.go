package daemon

import (
	"fmt"
	"os"

	"github.com/facebook/radclock/algo"
)

// algoTrace is the SUPPLEMENTED -o algo_out ASCII trace: one line per
// processed stamp with the full rad_data/rad_error snapshot, grounded on
// source.AsciiSink's open-append-close shape but with its own column set
// (SPEC_FULL.md's SUPPLEMENTED FEATURES).
type algoTrace struct {
	f *os.File
}

func newAlgoTrace(path string) (*algoTrace, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &algoTrace{f: f}, nil
}

// Write appends one line: server phat phat_err plocal ca ca_err error_bound
// min_rtt status.
func (a *algoTrace) Write(serverID string, d algo.RadData, e algo.RadError) error {
	_, err := fmt.Fprintf(a.f, "%s %.9g %.9g %.9g %.9g %.9g %.9g %.9g %s\n",
		serverID, d.Phat, d.PhatErr, d.PhatLocal, d.Ca, d.CaErr, e.ErrorBound, e.MinRTT, d.Status)
	return err
}

func (a *algoTrace) Close() error { return a.f.Close() }
