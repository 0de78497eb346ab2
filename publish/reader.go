package publish

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/facebook/radclock/algo"
	"github.com/facebook/radclock/internal/hostendian"
)

// ErrNotReady is returned when gen is 0 (writer mid-update) on every retry
// attempt.
var ErrNotReady = errors.New("publish: segment not ready")

// maxReadRetries bounds the reader protocol's retry loop (spec.md §6):
// a genuinely torn read should resolve within a couple of writer epochs.
const maxReadRetries = 8

// Reader is the client side of the SMS (spec.md §6).
type Reader struct {
	seg *Segment
}

// NewReader opens the segment at path read-only.
func NewReader(path string) (*Reader, error) {
	seg, err := createOrOpen(path, false)
	if err != nil {
		return nil, err
	}
	return &Reader{seg: seg}, nil
}

// Close releases the underlying segment.
func (r *Reader) Close() error { return r.seg.Close() }

// Read implements spec.md §6's reader protocol: read gen, read data,
// read gen again; retry if either gen read was 0 or the two disagree.
func (r *Reader) Read() (algo.RadData, algo.RadError, error) {
	for i := 0; i < maxReadRetries; i++ {
		h1 := r.seg.readHeader()
		if h1.Gen == 0 {
			continue
		}
		data, err := decodeData(r.seg.mem[h1.DataOff : h1.DataOff+wireDataSize])
		if err != nil {
			return algo.RadData{}, algo.RadError{}, fmt.Errorf("publish: decoding data: %w", err)
		}
		errData, err := decodeError(r.seg.mem[h1.ErrorOff : h1.ErrorOff+wireErrorSize])
		if err != nil {
			return algo.RadData{}, algo.RadError{}, fmt.Errorf("publish: decoding error: %w", err)
		}
		h2 := r.seg.readHeader()
		if h2.Gen == 0 || h2.Gen != h1.Gen {
			continue
		}
		return data, errData, nil
	}
	return algo.RadData{}, algo.RadError{}, ErrNotReady
}

func decodeData(src []byte) (algo.RadData, error) {
	var w wireData
	if err := binary.Read(bytes.NewReader(src), hostendian.Order, &w); err != nil {
		return algo.RadData{}, err
	}
	return fromWireData(w), nil
}

func decodeError(src []byte) (algo.RadError, error) {
	var w wireError
	if err := binary.Read(bytes.NewReader(src), hostendian.Order, &w); err != nil {
		return algo.RadError{}, err
	}
	return fromWireError(w), nil
}
