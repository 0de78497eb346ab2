// Package publish implements the shared-memory segment (SMS) the daemon
// exposes to readers (spec.md §6): a fixed-size, lock-free double-buffer
// region carrying the preferred server's rad_data/rad_error, plus the
// fill/inverse conversion to the kernel feed-forward clock record.
package publish

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/facebook/radclock/algo"
	"github.com/facebook/radclock/internal/hostendian"
)

// smsVersion is bumped whenever the on-disk layout changes incompatibly.
const smsVersion = 1

// wireData/wireError are the fixed-width on-disk encodings of
// algo.RadData/algo.RadError (binary.Read/Write need fixed-size fields,
// so Status and the leap fields are widened to plain integers).
type wireData struct {
	Phat, PhatErr, PhatLocal, PhatLocalErr float64
	Ca, CaErr                              float64
	LastChanged, NextExpected              uint64
	LeapsecTotal, LeapsecNext              int32
	LeapsecExpected                        uint64
	Status                                 uint32
}

type wireError struct {
	ErrorBound, ErrorBoundAvg, ErrorBoundStd, MinRTT float64
}

// wireDataSize/wireErrorSize must match the binary.Write size of
// wireData/wireError exactly: 9 float64/uint64 fields + 2 int32 fields +
// 1 uint32 field for wireData, 4 float64 fields for wireError.
const (
	wireDataSize  = 9*8 + 2*4 + 4
	wireErrorSize = 4 * 8
)

// header is the fixed-size region at offset 0 of the segment.
type header struct {
	Version      uint32
	Gen          uint32
	DataOff      uint32
	DataOffOld   uint32
	ErrorOff     uint32
	ErrorOffOld  uint32
}

const headerSize = 4 * 6

// segmentSize is the whole SMS region: header + two data slots + two
// error slots.
const segmentSize = headerSize + 2*wireDataSize + 2*wireErrorSize

func toWireData(d algo.RadData) wireData {
	return wireData{
		Phat: d.Phat, PhatErr: d.PhatErr, PhatLocal: d.PhatLocal, PhatLocalErr: d.PhatLocalErr,
		Ca: d.Ca, CaErr: d.CaErr,
		LastChanged: d.LastChanged, NextExpected: d.NextExpected,
		LeapsecTotal: d.LeapsecTotal, LeapsecNext: d.LeapsecNext, LeapsecExpected: d.LeapsecExpected,
		Status: uint32(d.Status),
	}
}

func fromWireData(w wireData) algo.RadData {
	return algo.RadData{
		Phat: w.Phat, PhatErr: w.PhatErr, PhatLocal: w.PhatLocal, PhatLocalErr: w.PhatLocalErr,
		Ca: w.Ca, CaErr: w.CaErr,
		LastChanged: w.LastChanged, NextExpected: w.NextExpected,
		LeapsecTotal: w.LeapsecTotal, LeapsecNext: w.LeapsecNext, LeapsecExpected: w.LeapsecExpected,
		Status: algo.Status(w.Status),
	}
}

func toWireError(e algo.RadError) wireError {
	return wireError{ErrorBound: e.ErrorBound, ErrorBoundAvg: e.ErrorBoundAvg, ErrorBoundStd: e.ErrorBoundStd, MinRTT: e.MinRTT}
}

func fromWireError(w wireError) algo.RadError {
	return algo.RadError{ErrorBound: w.ErrorBound, ErrorBoundAvg: w.ErrorBoundAvg, ErrorBoundStd: w.ErrorBoundStd, MinRTT: w.MinRTT}
}

// Segment is a memory-mapped SMS region backing either a Writer or a
// Reader, adapted from the teacher's ntp/shm mmap'd-region handling
// (ntp/shm/ntpshm.go) generalized from a fixed ntpd layout to this
// double-generation header.
type Segment struct {
	file *os.File
	mem  []byte
}

// createOrOpen opens path, creating and truncating it to segmentSize if
// it doesn't exist.
func createOrOpen(path string, writable bool) (*Segment, error) {
	flags := os.O_RDONLY
	if writable {
		flags = os.O_RDWR | os.O_CREATE
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("publish: opening %s: %w", path, err)
	}
	if writable {
		if err := f.Truncate(segmentSize); err != nil {
			f.Close()
			return nil, fmt.Errorf("publish: truncating %s: %w", path, err)
		}
	}
	prot := unix.PROT_READ
	if writable {
		prot |= unix.PROT_WRITE
	}
	mem, err := unix.Mmap(int(f.Fd()), 0, segmentSize, prot, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("publish: mmap %s: %w", path, err)
	}
	return &Segment{file: f, mem: mem}, nil
}

// Close unmaps and closes the segment's backing file.
func (s *Segment) Close() error {
	err := unix.Munmap(s.mem)
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	return err
}

func (s *Segment) readHeader() header {
	var h header
	_ = binary.Read(bytes.NewReader(s.mem[:headerSize]), hostendian.Order, &h)
	return h
}

func (s *Segment) writeHeader(h header) {
	buf := &bytes.Buffer{}
	_ = binary.Write(buf, hostendian.Order, &h)
	copy(s.mem[:headerSize], buf.Bytes())
}

// Initial slot layout: two data slots immediately after the header,
// followed by two error slots. data_off/error_off name the *current*
// slot by absolute byte offset, per spec.md §6's header description.
const (
	dataSlotA  = headerSize
	dataSlotB  = headerSize + wireDataSize
	errorSlotA = headerSize + 2*wireDataSize
	errorSlotB = headerSize + 2*wireDataSize + wireErrorSize
)
