package publish

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/facebook/radclock/algo"
	"github.com/facebook/radclock/internal/hostendian"
)

// Writer is the daemon side of the SMS (spec.md §6): one call to Write per
// preferred-server update.
type Writer struct {
	seg *Segment
}

// NewWriter creates or opens the segment at path for writing, initializing
// a fresh header if the file was just created.
func NewWriter(path string) (*Writer, error) {
	seg, err := createOrOpen(path, true)
	if err != nil {
		return nil, err
	}
	w := &Writer{seg: seg}
	h := seg.readHeader()
	if h.Version != smsVersion {
		h = header{
			Version:     smsVersion,
			Gen:         0,
			DataOff:     dataSlotA,
			DataOffOld:  dataSlotB,
			ErrorOff:    errorSlotA,
			ErrorOffOld: errorSlotB,
		}
		seg.writeHeader(h)
	}
	return w, nil
}

// Close releases the underlying segment.
func (w *Writer) Close() error { return w.seg.Close() }

// Write implements spec.md §6's 4-step writer protocol: write into the old
// slot, zero gen, swap current/old, then publish the new generation
// (skipping 0 on wrap).
func (w *Writer) Write(data algo.RadData, errData algo.RadError) error {
	h := w.seg.readHeader()

	if err := encodeDataInto(w.seg.mem[h.DataOffOld:h.DataOffOld+wireDataSize], data); err != nil {
		return fmt.Errorf("publish: encoding data: %w", err)
	}
	if err := encodeErrorInto(w.seg.mem[h.ErrorOffOld:h.ErrorOffOld+wireErrorSize], errData); err != nil {
		return fmt.Errorf("publish: encoding error: %w", err)
	}

	prevGen := h.Gen
	h.Gen = 0
	w.seg.writeHeader(h)

	h.DataOff, h.DataOffOld = h.DataOffOld, h.DataOff
	h.ErrorOff, h.ErrorOffOld = h.ErrorOffOld, h.ErrorOff

	nextGen := prevGen + 1
	if nextGen == 0 {
		nextGen = 1
	}
	h.Gen = nextGen
	w.seg.writeHeader(h)
	return nil
}

func encodeDataInto(dst []byte, d algo.RadData) error {
	buf := &bytes.Buffer{}
	w := toWireData(d)
	if err := binary.Write(buf, hostendian.Order, &w); err != nil {
		return err
	}
	copy(dst, buf.Bytes())
	return nil
}

func encodeErrorInto(dst []byte, e algo.RadError) error {
	buf := &bytes.Buffer{}
	w := toWireError(e)
	if err := binary.Write(buf, hostendian.Order, &w); err != nil {
		return err
	}
	copy(dst, buf.Bytes())
	return nil
}
