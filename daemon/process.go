package daemon

import (
	"context"
	"time"

	"github.com/facebook/radclock/preferred"
)

// runProc drains every server's completed-stamp queue on a fixed tick,
// runs each stamp through its AlgoState, updates the stats registry, and
// re-evaluates the preferred server (spec.md §4.6) after each batch,
// publishing to the SMS (spec.md §6) when the elected server changes or
// is updated. Each stamp is also checked against the server's previous
// stamp for a stratum/refid/ttl/LI change, raising qual_warning (spec.md
// §2, §7) for the algo pipeline, and against the leap state's postleap
// freeze window (§4.4).
func (h *Handle) runProc(ctx context.Context) error {
	ticker := time.NewTicker(processInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			h.drainOnce()
		}
	}
}

func (h *Handle) drainOnce() {
	updatedServerID := ""
	for _, s := range h.servers {
		for {
			st, ok := s.queue.PopFull()
			if !ok {
				break
			}
			if st.ServerID == "" {
				st.ServerID = s.id
			}
			if h.outSink != nil {
				if err := h.outSink.Write(st); err != nil {
					h.logger().WithError(err).Warn("daemon: sync_out_ascii write failed")
				}
			}

			qualWarning := s.havePrev && (st.Stratum != s.prevStratum ||
				st.RefID != s.prevRefID || st.TTL != s.prevTTL || st.LI != s.prevLI)
			s.prevStratum, s.prevRefID, s.prevTTL, s.prevLI = st.Stratum, st.RefID, st.TTL, st.LI
			s.havePrev = true

			frozen := s.leap.Frozen()

			st = s.leap.Strip(st)
			s.leap.Observe(st.LI, time.Now())

			data, errData, err := s.algo.ProcessBidirStamp(st, qualWarning, frozen)
			if err != nil {
				h.logger().WithField("server", s.id).WithError(err).Debug("daemon: stamp rejected")
				continue
			}
			now := ntpSecondsOf(st.Te)
			s.leap.UpdateExpected(st.Tf, now, data.Phat)
			s.leap.MaybeApply(st.Tf, now)
			s.leap.Tick()

			data.LeapsecTotal = s.leap.LeapsecTotal
			data.LeapsecNext = s.leap.LeapsecNext
			data.LeapsecExpected = s.leap.LeapsecExpected

			h.stats.Update(s.id, data, errData)
			if h.algoOut != nil {
				if err := h.algoOut.Write(s.id, data, errData); err != nil {
					h.logger().WithError(err).Warn("daemon: algo_out write failed")
				}
			}
			updatedServerID = s.id
		}
	}

	h.evaluatePreferred(updatedServerID)
}

// ntpSecondsOf converts a packed 32.32 NTP timestamp into float64 seconds,
// used as "now" for leap-table bookkeeping since the daemon has no
// independent wall-clock reading that isn't itself what's being
// disciplined.
func ntpSecondsOf(v uint64) float64 {
	sec := v >> 32
	frac := v & 0xFFFFFFFF
	return float64(sec) + float64(frac)/4294967296.0
}

func (h *Handle) evaluatePreferred(updatedServerID string) {
	candidates := make([]preferred.Candidate, 0, len(h.servers))
	for _, s := range h.servers {
		data, errData := s.algo.Snapshot()
		candidates = append(candidates, preferred.Candidate{
			ServerID:   s.id,
			MinRTT:     errData.MinRTT,
			ErrorBound: errData.ErrorBound,
			Trusted:    s.trusted,
			HasStamp:   data.LastChanged != 0,
		})
	}

	electedID, ev := h.selector.Select(candidates, updatedServerID)
	if ev == preferred.EventNone || electedID == "" {
		return
	}

	h.stats.SetPreferred(electedID)
	if h.publisher == nil {
		return
	}
	for _, s := range h.servers {
		if s.id != electedID {
			continue
		}
		data, errData := s.algo.Snapshot()
		if err := h.publisher.Write(data, errData); err != nil {
			h.logger().WithError(err).Error("daemon: SMS write failed")
		}
		break
	}
}
