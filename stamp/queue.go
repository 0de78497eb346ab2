package stamp

import (
	"sync"

	"github.com/facebook/radclock/protocol/ntp"
)

// maxPendingHalves bounds the pending-match map so a server that never
// responds (half-stamp leaked with no matching half) cannot grow the queue
// without bound; the oldest unmatched half is evicted to make room.
const maxPendingHalves = 256

// pending is one half of an in-flight exchange, keyed by nonce, waiting for
// its counterpart to arrive.
type pending struct {
	req  *halfRequest
	resp *halfResponse
}

// Queue is the multi-producer/single-consumer stamp-matching queue (spec.md
// §4.2): producers call InsertHalf from the trigger's send/receive paths
// (the network write path supplies the request half, the read path the
// response half, possibly from different goroutines), the PROC consumer
// calls PopFull. Full stamps are buffered in FIFO order; on overflow the
// oldest completed stamp is dropped to make room for the newest, matching
// the teacher's mutex-guarded map shape in measurements.go, generalized
// from a uint16 PTP sequence key to a 64-bit nonce.
type Queue struct {
	mu sync.Mutex

	pendingOrder []uint64
	pendingByKey map[uint64]*pending

	full     []Stamp
	capacity int
}

// NewQueue creates a Queue whose completed-stamp buffer holds at most
// capacity entries before dropping the oldest on overflow.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{
		pendingByKey: make(map[uint64]*pending),
		capacity:     capacity,
	}
}

// InsertHalf records one half of an exchange. If its counterpart is already
// pending under the same nonce, the pair is combined into a full Stamp and
// enqueued for PopFull.
func (q *Queue) InsertHalf(side Side, req *halfRequest, resp *halfResponse) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var nonce uint64
	switch side {
	case SideRequest:
		nonce = req.nonce
	case SideResponse:
		nonce = resp.nonce
	}

	p, found := q.pendingByKey[nonce]
	if !found {
		p = &pending{}
		q.pendingByKey[nonce] = p
		q.pendingOrder = append(q.pendingOrder, nonce)
		q.evictOldestPendingIfOverflowLocked()
	}
	switch side {
	case SideRequest:
		p.req = req
	case SideResponse:
		p.resp = resp
	}

	if p.req != nil && p.resp != nil {
		s := Stamp{
			Ta:       p.req.ta,
			Tb:       p.resp.tb,
			Te:       p.resp.te,
			Tf:       p.resp.tf,
			ServerID: p.resp.serverID,
			Stratum:  p.resp.stratum,
			LI:       p.resp.li,
			RefID:    p.resp.refID,
			TTL:      p.resp.ttl,
			Nonce:    nonce,
		}
		delete(q.pendingByKey, nonce)
		q.removePendingOrderLocked(nonce)
		q.pushFullLocked(s)
	}
}

// InsertRequestHalf records a client-side departure half-stamp.
func (q *Queue) InsertRequestHalf(ta, nonce uint64) {
	q.InsertHalf(SideRequest, &halfRequest{ta: ta, nonce: nonce}, nil)
}

// InsertResponseHalf records a server-side arrival half-stamp.
func (q *Queue) InsertResponseHalf(tb, te, tf uint64, serverID string, stratum uint8, li ntp.LeapIndicator, refID uint32, ttl uint8, nonce uint64) {
	q.InsertHalf(SideResponse, nil, &halfResponse{
		tb: tb, te: te, tf: tf,
		serverID: serverID, stratum: stratum, li: li, refID: refID, ttl: ttl, nonce: nonce,
	})
}

// PopFull removes and returns the oldest completed stamp, if any.
func (q *Queue) PopFull() (Stamp, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.full) == 0 {
		return Stamp{}, false
	}
	s := q.full[0]
	q.full = q.full[1:]
	return s, true
}

// Len reports the number of completed stamps currently buffered.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.full)
}

func (q *Queue) pushFullLocked(s Stamp) {
	if len(q.full) >= q.capacity {
		q.full = q.full[1:]
	}
	q.full = append(q.full, s)
}

func (q *Queue) evictOldestPendingIfOverflowLocked() {
	if len(q.pendingOrder) <= maxPendingHalves {
		return
	}
	oldest := q.pendingOrder[0]
	q.pendingOrder = q.pendingOrder[1:]
	delete(q.pendingByKey, oldest)
}

func (q *Queue) removePendingOrderLocked(nonce uint64) {
	for i, k := range q.pendingOrder {
		if k == nonce {
			q.pendingOrder = append(q.pendingOrder[:i], q.pendingOrder[i+1:]...)
			return
		}
	}
}
