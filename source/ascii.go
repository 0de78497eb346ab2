package source

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/facebook/radclock/stamp"
)

// AsciiSource replays a previously recorded ASCII stamp trace (spec.md §6):
// one line per stamp, "Ta Tb Te Tf nonce [sID]", with an optional
// "% BEGIN_HEADER" / "% END_HEADER" block and any other "%"-prefixed
// comment lines skipped.
type AsciiSource struct {
	f *os.File
	r *bufio.Scanner
}

// NewAsciiSource opens path for replay.
func NewAsciiSource(path string) (*AsciiSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source: opening %s: %w", path, err)
	}
	return &AsciiSource{f: f, r: bufio.NewScanner(f)}, nil
}

// Close releases the underlying file.
func (a *AsciiSource) Close() error { return a.f.Close() }

// Run reads every stamp line in the trace and inserts both halves of each
// directly as a completed stamp (there's no live request/response split
// once a stamp has already been recorded).
func (a *AsciiSource) Run(q *stamp.Queue) error {
	for a.r.Scan() {
		line := strings.TrimSpace(a.r.Text())
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}
		ta, tb, te, tf, nonce, err := parseAsciiLine(line)
		if err != nil {
			return fmt.Errorf("source: parsing line %q: %w", line, err)
		}
		q.InsertRequestHalf(ta, nonce)
		q.InsertResponseHalf(tb, te, tf, "", 0, 0, 0, 0, nonce)
	}
	if err := a.r.Err(); err != nil && err != io.EOF {
		return fmt.Errorf("source: reading trace: %w", err)
	}
	return nil
}

func parseAsciiLine(line string) (ta, tb, te, tf, nonce uint64, err error) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return 0, 0, 0, 0, 0, fmt.Errorf("expected at least 5 fields, got %d", len(fields))
	}
	vals := make([]uint64, 5)
	for i := 0; i < 5; i++ {
		vals[i], err = strconv.ParseUint(fields[i], 10, 64)
		if err != nil {
			return 0, 0, 0, 0, 0, err
		}
	}
	return vals[0], vals[1], vals[2], vals[3], vals[4], nil
}

// AsciiSink writes completed stamps out in the same format, for
// sync_out_ascii.
type AsciiSink struct {
	w io.WriteCloser
}

// NewAsciiSink creates (or truncates) path and writes the header block.
func NewAsciiSink(path string) (*AsciiSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("source: creating %s: %w", path, err)
	}
	if _, err := fmt.Fprintln(f, "% BEGIN_HEADER"); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := fmt.Fprintln(f, "% Ta Tb Te Tf nonce sID"); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := fmt.Fprintln(f, "% END_HEADER"); err != nil {
		f.Close()
		return nil, err
	}
	return &AsciiSink{w: f}, nil
}

// Write appends one completed stamp's line.
func (a *AsciiSink) Write(s stamp.Stamp) error {
	_, err := fmt.Fprintf(a.w, "%d %d %d %d %d %s\n", s.Ta, s.Tb, s.Te, s.Tf, s.Nonce, s.ServerID)
	return err
}

// Close closes the underlying writer.
func (a *AsciiSink) Close() error { return a.w.Close() }
