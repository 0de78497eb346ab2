package leap

import (
	"encoding/binary"
	"errors"
	"io"
	"time"
)

// systemLeapFile is the TZif "right" zone that encodes true UTC leap
// seconds in its transition table, per spec.md §9's leap-table resolution
// of the "deactivated placeholder" calendar heuristic.
const systemLeapFile = "/usr/share/zoneinfo/right/UTC"

var (
	errMalformedTZif = errors.New("leap: malformed tzif data")
	errTZifVersion   = errors.New("leap: unsupported tzif version")
)

// tzifLeap is one leap-second transition record as encoded in a TZif file:
// Tleap is the POSIX time the transition takes effect, Nleap is the total
// leap-second correction (TAI-UTC at that point) after the transition.
type tzifLeap struct {
	Tleap uint64
	Nleap int32
}

// time returns the UTC instant the leap second inserts at.
func (l tzifLeap) time() time.Time {
	return time.Unix(int64(l.Tleap-uint64(l.Nleap)+1), 0)
}

// parseTZif reads the leap-second table out of a "right/UTC"-style TZif
// stream, adapted from the version-0/2/3 header walk the format requires.
func parseTZif(r io.Reader) ([]tzifLeap, error) {
	var out []tzifLeap
	for pass := byte(0); pass < 2; pass++ {
		magic := make([]byte, 4)
		if _, err := io.ReadFull(r, magic); err != nil || string(magic) != "TZif" {
			return nil, errMalformedTZif
		}

		header := make([]byte, 16)
		if _, err := io.ReadFull(r, header); err != nil {
			return nil, errMalformedTZif
		}
		version := header[0]
		if version != 0 && version != '2' && version != '3' {
			return nil, errTZifVersion
		}
		if pass > version {
			return nil, errMalformedTZif
		}

		const (
			nUTCLocal = iota
			nStdWall
			nLeap
			nTime
			nZone
			nChar
		)
		var counts [6]int32
		if err := binary.Read(r, binary.BigEndian, &counts); err != nil {
			return nil, err
		}

		timeWidth := int64(4)
		if version != 0 {
			timeWidth = 8
		}
		skip := int64(counts[nTime])*timeWidth + int64(counts[nTime]) + int64(counts[nZone])*6 + int64(counts[nChar])
		if pass == 0 && version > 0 {
			skip += int64(counts[nLeap])*8 + int64(counts[nUTCLocal]) + int64(counts[nStdWall])
		}
		if _, err := io.CopyN(io.Discard, r, skip); err != nil {
			return nil, errMalformedTZif
		}

		if pass == 0 && version > 0 {
			continue
		}

		for i := int32(0); i < counts[nLeap]; i++ {
			var l tzifLeap
			if version == 0 {
				var raw [2]uint32
				if err := binary.Read(r, binary.BigEndian, &raw); err != nil {
					return nil, err
				}
				l.Tleap, l.Nleap = uint64(raw[0]), int32(raw[1])
			} else {
				if err := binary.Read(r, binary.BigEndian, &l); err != nil {
					return nil, err
				}
			}
			out = append(out, l)
		}
		return out, nil
	}
	return out, nil
}
