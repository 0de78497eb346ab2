package source

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.bug.st/serial"

	"github.com/facebook/radclock/counter"
	"github.com/facebook/radclock/protocol/ntp"
	"github.com/facebook/radclock/stamp"
)

// nmeaBaud is the typical baud rate for consumer/timing GPS NMEA output.
const nmeaBaud = 4800

// PPSSource is a thin NMEA adapter backing synchronization_type=pps
// (spec.md's Configuration section): it reads $GPRMC/$GNRMC sentences off
// a serial GPS for coarse (1s) time and pairs each with the counter
// reading taken when the sentence was read, which in a full deployment
// would be disciplined by a kernel PPS edge capture (out of scope, ioctl
// glue) rather than the serial read itself.
type PPSSource struct {
	port   serial.Port
	oracle counter.Oracle
	r      *bufio.Scanner
}

// NewPPSSource opens device as a serial NMEA source.
func NewPPSSource(device string, oracle counter.Oracle) (*PPSSource, error) {
	port, err := serial.Open(device, &serial.Mode{BaudRate: nmeaBaud})
	if err != nil {
		return nil, fmt.Errorf("source: opening %s: %w", device, err)
	}
	return &PPSSource{port: port, oracle: oracle, r: bufio.NewScanner(port)}, nil
}

// Close releases the serial port.
func (p *PPSSource) Close() error { return p.port.Close() }

// Run reads NMEA sentences until the port is closed, inserting a
// self-matched "stamp" for each fix: Tb/Te both carry the GPS-reported
// UTC time, Ta/Tf both carry the counter reading taken around the read,
// since there's no request/response round trip for a PPS source.
func (p *PPSSource) Run(q *stamp.Queue) error {
	for p.r.Scan() {
		line := strings.TrimSpace(p.r.Text())
		utc, ok := parseNMEATime(line)
		if !ok {
			continue
		}
		n, err := p.oracle.ReadCounter()
		if err != nil {
			return fmt.Errorf("source: reading counter: %w", err)
		}
		sec, frac := ntp.Time(utc)
		nonce := ntp.Nonce64(sec, frac)
		tbte := ntp.Nonce64(sec, frac)
		q.InsertRequestHalf(n, nonce)
		q.InsertResponseHalf(tbte, tbte, n, "pps", 0, ntp.LeapNoWarning, 0, 0, nonce)
	}
	return p.r.Err()
}

// parseNMEATime extracts a UTC date and time from $GPRMC/$GNRMC sentences
// with an active ('A') fix, taking the date from the ddmmyy field.
// Sentences without a full date, void fixes and other sentence types
// (including $GPZDA) are rejected. Whole seconds only, matching the
// coarse-time role this source plays (the kernel PPS edge gives
// sub-second precision, out of scope here).
func parseNMEATime(line string) (time.Time, bool) {
	if !strings.HasPrefix(line, "$GPRMC") && !strings.HasPrefix(line, "$GNRMC") {
		return time.Time{}, false
	}
	fields := strings.Split(line, ",")
	if len(fields) < 10 || fields[2] != "A" {
		return time.Time{}, false
	}
	hhmmss := fields[1]
	ddmmyy := fields[9]
	if len(hhmmss) < 6 || len(ddmmyy) < 6 {
		return time.Time{}, false
	}
	hh, err1 := strconv.Atoi(hhmmss[0:2])
	mm, err2 := strconv.Atoi(hhmmss[2:4])
	ss, err3 := strconv.Atoi(hhmmss[4:6])
	dd, err4 := strconv.Atoi(ddmmyy[0:2])
	mo, err5 := strconv.Atoi(ddmmyy[2:4])
	yy, err6 := strconv.Atoi(ddmmyy[4:6])
	for _, e := range []error{err1, err2, err3, err4, err5, err6} {
		if e != nil {
			return time.Time{}, false
		}
	}
	return time.Date(2000+yy, time.Month(mo), dd, hh, mm, ss, 0, time.UTC), true
}
