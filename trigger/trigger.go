// Package trigger implements the per-server periodic request/response
// exchange (spec.md §4.5): it emits timestamped requests on a fixed grid,
// matches responses via the stamp queue, and adapts its own receive
// timeout to the measured round trip.
package trigger

import (
	"context"
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/radclock/counter"
	"github.com/facebook/radclock/protocol/ntp"
	"github.com/facebook/radclock/stamp"
)

// Defaults from spec.md §4.5.
const (
	initialRCVTIMEO = 900 * time.Millisecond
	minRCVTIMEO     = 5 * time.Millisecond
	maxRCVTIMEOFrac = 0.7

	defaultBurstCount = 8
	defaultBurstDelay = 2 * time.Second
)

// Config configures one server's Trigger.
type Config struct {
	ServerID   string
	Addr       *net.UDPAddr
	PollPeriod time.Duration
	DSCP       int
	KeyID      uint32
	Key        []byte
	BurstCount int
	BurstDelay time.Duration
}

// Trigger drives one server's periodic exchange.
type Trigger struct {
	cfg     Config
	conn    *net.UDPConn
	queue   *stamp.Queue
	oracle  counter.Oracle
	log     *log.Entry
	lastNonceSec, lastNonceFrac uint32

	rcvTimeout time.Duration
}

// New creates a Trigger bound to a fresh UDP socket toward cfg.Addr.
func New(cfg Config, queue *stamp.Queue, oracle counter.Oracle) (*Trigger, error) {
	if cfg.BurstCount == 0 {
		cfg.BurstCount = defaultBurstCount
	}
	if cfg.BurstDelay == 0 {
		cfg.BurstDelay = defaultBurstDelay
	}
	conn, err := net.DialUDP("udp", nil, cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("trigger: dialing %s: %w", cfg.Addr, err)
	}
	if err := setDSCP(conn, cfg.Addr.IP, cfg.DSCP); err != nil {
		log.WithError(err).WithField("server", cfg.ServerID).Warn("trigger: could not set DSCP, continuing without it")
	}
	return &Trigger{
		cfg:        cfg,
		conn:       conn,
		queue:      queue,
		oracle:     oracle,
		log:        log.WithField("server", cfg.ServerID),
		rcvTimeout: initialRCVTIMEO,
	}, nil
}

// Close releases the trigger's socket.
func (t *Trigger) Close() error { return t.conn.Close() }

// nextNonce builds a unique, monotone nonce from the current wall clock in
// NTP-fraction format, incrementing the fraction on collision with the
// last emitted nonce (spec.md §4.5 step 1).
func (t *Trigger) nextNonce(now time.Time) (sec, frac uint32) {
	sec, frac = ntp.Time(now)
	if sec == t.lastNonceSec && frac == t.lastNonceFrac {
		frac++
	}
	t.lastNonceSec, t.lastNonceFrac = sec, frac
	return sec, frac
}

// maxAttempts implements spec.md §4.5 step 5.
func (t *Trigger) maxAttempts() int {
	if t.rcvTimeout <= 0 {
		return 1
	}
	n := int(t.cfg.PollPeriod/t.rcvTimeout) - 1
	if n > 3 {
		n = 3
	}
	if n < 1 {
		n = 1
	}
	return n
}

// adaptTimeout updates RCVTIMEO from the measured RTT (spec.md §4.5 step
// 3): min(1s, 2*rtt), clamped to [5ms, 0.7*poll_period]. attempt passes
// the RTT of the exchange it has just matched; no running minimum RTT is
// kept.
func (t *Trigger) adaptTimeout(rtt time.Duration) {
	target := 2 * rtt
	if target > time.Second {
		target = time.Second
	}
	upper := time.Duration(float64(t.cfg.PollPeriod) * maxRCVTIMEOFrac)
	if target > upper {
		target = upper
	}
	if target < minRCVTIMEO {
		target = minRCVTIMEO
	}
	t.rcvTimeout = target
}

// RunOnce performs one full request/response attempt cycle, retrying up to
// maxAttempts times, and on success hands the matched stamp to the queue.
func (t *Trigger) RunOnce(ctx context.Context) error {
	attempts := t.maxAttempts()
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := t.attempt()
		if err != nil {
			lastErr = err
			t.log.WithError(err).Debug("trigger: attempt failed")
			continue
		}
		if ok {
			return nil
		}
	}
	if lastErr != nil {
		return fmt.Errorf("trigger: %s: all attempts failed: %w", t.cfg.ServerID, lastErr)
	}
	return fmt.Errorf("trigger: %s: no response after %d attempts", t.cfg.ServerID, attempts)
}

// attempt sends one request and waits for its matching response, reporting
// ok=true on a matched, queued stamp.
func (t *Trigger) attempt() (ok bool, err error) {
	sec, frac := t.nextNonce(time.Now())
	nonce := ntp.Nonce64(sec, frac)

	req := &ntp.Packet{}
	req.SetSettings(ntp.LeapNoWarning, 4, ntp.ModeClient)
	req.TxTimeSec, req.TxTimeFrac = sec, frac

	reqBytes, err := req.Bytes()
	if err != nil {
		return false, fmt.Errorf("encoding request: %w", err)
	}
	if len(t.cfg.Key) > 0 {
		mac := ntp.MAC(t.cfg.KeyID, t.cfg.Key, reqBytes)
		reqBytes = append(reqBytes, mac...)
	}

	ta, err := t.oracle.ReadCounter()
	if err != nil {
		return false, fmt.Errorf("reading counter before send: %w", err)
	}
	if _, err := t.conn.Write(reqBytes); err != nil {
		return false, fmt.Errorf("sending request: %w", err)
	}
	t.queue.InsertRequestHalf(ta, nonce)

	if err := t.conn.SetReadDeadline(time.Now().Add(t.rcvTimeout)); err != nil {
		return false, fmt.Errorf("setting read deadline: %w", err)
	}

	resp, tf, matched, err := t.readMatchingResponse(nonce)
	if err != nil {
		return false, err
	}
	if !matched {
		return false, nil
	}

	respNonce := ntp.Nonce64(resp.OrigTimeSec, resp.OrigTimeFrac)
	t.queue.InsertResponseHalf(
		ntp.Nonce64(resp.RxTimeSec, resp.RxTimeFrac),
		ntp.Nonce64(resp.TxTimeSec, resp.TxTimeFrac),
		tf,
		t.cfg.ServerID,
		resp.Stratum,
		resp.LI(),
		resp.ReferenceID,
		64,
		respNonce,
	)

	// The completed stamp stays in the queue for PROC; the RTT comes from
	// this attempt's own counter reads.
	t.adaptTimeout(time.Duration(tf-ta) * time.Nanosecond)
	return true, nil
}

// readMatchingResponse reads one response, draining a single stale packet
// if its nonce doesn't match (spec.md §4.5 step 4).
func (t *Trigger) readMatchingResponse(nonce uint64) (*ntp.Packet, uint64, bool, error) {
	for i := 0; i < 2; i++ {
		resp, kernelRx, _, err := ntp.ReadPacketWithKernelTimestamp(t.conn)
		if err != nil {
			if isTimeout(err) {
				return nil, 0, false, nil
			}
			return nil, 0, false, fmt.Errorf("reading response: %w", err)
		}
		tf, err := t.oracle.ReadCounter()
		if err != nil {
			return nil, 0, false, fmt.Errorf("reading counter after recv: %w", err)
		}
		_ = kernelRx
		if ntp.Nonce64(resp.OrigTimeSec, resp.OrigTimeFrac) == nonce {
			return resp, tf, true, nil
		}
		// nonce mismatch: drain once more, then give up on this attempt.
	}
	return nil, 0, false, nil
}

func isTimeout(err error) bool {
	var ne net.Error
	if e, ok := err.(net.Error); ok {
		ne = e
		return ne.Timeout()
	}
	return false
}
