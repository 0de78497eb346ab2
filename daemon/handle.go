// Package daemon wires TRIGGER, PROC, the preferred-server selector, and
// the SMS publisher into one running process (spec.md §5), grounded on
// fbclock/daemon's Daemon type: a struct owning per-collaborator state,
// a New constructor that wires everything up, and a Run that drives it
// until ctx is cancelled.
package daemon

import (
	"context"
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/facebook/radclock/algo"
	"github.com/facebook/radclock/config"
	"github.com/facebook/radclock/counter"
	"github.com/facebook/radclock/leap"
	"github.com/facebook/radclock/preferred"
	"github.com/facebook/radclock/protocol/ntp"
	"github.com/facebook/radclock/publish"
	"github.com/facebook/radclock/source"
	"github.com/facebook/radclock/stamp"
	"github.com/facebook/radclock/stats"
	"github.com/facebook/radclock/trigger"
)

// processInterval is how often PROC drains every server's queue and
// re-evaluates the preferred server (spec.md §5: PROC runs independently
// of TRIGGER's per-server cadence).
const processInterval = 50 * time.Millisecond

// serverUnit bundles one time_server's estimator state, trigger loop, and
// stamp queue (spec.md §3's AlgoState is "created at its first stamp and
// living for the daemon's lifetime" — here that lifetime is the serverUnit's).
type serverUnit struct {
	id      string
	queue   *stamp.Queue
	trigger *trigger.Trigger
	algo    *algo.AlgoState
	leap    *leap.State
	trusted bool

	// prevStratum/prevRefID/prevTTL/prevLI are the previous dequeued
	// stamp's upstream-identity fields, tracked so PROC can raise
	// qual_warning the moment any of them changes (spec.md §2/§7: the
	// gate "detects upstream changes" such as a stratum 2→3 jump).
	havePrev    bool
	prevStratum uint8
	prevRefID   uint32
	prevTTL     uint8
	prevLI      ntp.LeapIndicator
}

// Handle is the process-wide owner of every collaborator: one per running
// radclockd. SIGHUP/SIGUSR1/SIGUSR2 handlers and the -x one-shot mode both
// operate through it.
type Handle struct {
	cfg     *config.Config
	cfgPath string
	oracle  counter.Oracle

	servers []*serverUnit
	selector *preferred.Selector
	leapTable *leap.Table

	publisher *publish.Writer
	smsPath   string

	stats *stats.Registry
	sys   *stats.SysStats

	algoOut *algoTrace

	// passiveSource replaces every serverUnit's trigger when sync_in_pcap
	// or sync_in_ascii names a replay/capture source instead of live NTP
	// queries: a single device-level or trace-level reader feeding the
	// one configured server's queue directly (spec.md §6's spy/piggy
	// synchronization_type family, as opposed to "ntp" active mode).
	passiveSource source.StampSource
	outSink       *source.AsciiSink

	logPath string

	lastHash uint64
	haveHash bool
}

// New wires a Handle from cfg: one serverUnit per configured time_server,
// the preferred-server selector, and (if smsPath is non-empty) the SMS
// writer.
func New(cfg *config.Config, cfgPath, smsPath, logPath string) (*Handle, error) {
	if len(cfg.TimeServers) == 0 {
		return nil, fmt.Errorf("daemon: config has no time_server entries")
	}

	h := &Handle{
		cfg:       cfg,
		cfgPath:   cfgPath,
		oracle:    counter.NewMonotonicRaw(0),
		selector:  preferred.New(),
		leapTable: leap.LoadSystemTable(""),
		stats:     stats.NewRegistry(),
		sys:       &stats.SysStats{},
		smsPath:   smsPath,
		logPath:   logPath,
	}

	params := cfg.AlgoParams()
	pollSecs := cfg.PollingPeriod.Seconds()

	passive := cfg.SyncInPcap != "" || cfg.SyncInAscii != ""
	if passive && len(cfg.TimeServers) != 1 {
		return nil, fmt.Errorf("daemon: sync_in_pcap/sync_in_ascii replay one trace into exactly one time_server, got %d", len(cfg.TimeServers))
	}

	for _, addr := range cfg.TimeServers {
		q := stamp.NewQueue(64)
		s := &serverUnit{
			id:      addr,
			queue:   q,
			algo:    algo.New(addr, pollSecs, params),
			leap:    leap.NewState(h.leapTable),
			trusted: !cfg.ServerTrust[addr],
		}

		if !passive {
			udpAddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(addr, "123"))
			if err != nil {
				return nil, fmt.Errorf("daemon: resolving time_server %q: %w", addr, err)
			}
			tr, err := trigger.New(trigger.Config{
				ServerID:   addr,
				Addr:       udpAddr,
				PollPeriod: cfg.PollingPeriod,
			}, q, h.oracle)
			if err != nil {
				return nil, fmt.Errorf("daemon: creating trigger for %q: %w", addr, err)
			}
			s.trigger = tr
		}

		h.servers = append(h.servers, s)
	}

	if passive {
		switch {
		case cfg.SyncInAscii != "":
			src, err := source.NewAsciiSource(cfg.SyncInAscii)
			if err != nil {
				return nil, fmt.Errorf("daemon: opening sync_in_ascii: %w", err)
			}
			h.passiveSource = src
		case cfg.SyncInPcap != "":
			src, err := source.NewPcapSource(cfg.NetworkDevice, h.oracle)
			if err != nil {
				return nil, fmt.Errorf("daemon: opening sync_in_pcap: %w", err)
			}
			h.passiveSource = src
		}
	}

	if cfg.SyncOutAscii != "" {
		sink, err := source.NewAsciiSink(cfg.SyncOutAscii)
		if err != nil {
			return nil, fmt.Errorf("daemon: opening sync_out_ascii: %w", err)
		}
		h.outSink = sink
	}

	if smsPath != "" {
		w, err := publish.NewWriter(smsPath)
		if err != nil {
			return nil, fmt.Errorf("daemon: opening SMS at %q: %w", smsPath, err)
		}
		h.publisher = w
	}

	if cfg.AlgoOut != "" {
		at, err := newAlgoTrace(cfg.AlgoOut)
		if err != nil {
			return nil, fmt.Errorf("daemon: opening algo_out at %q: %w", cfg.AlgoOut, err)
		}
		h.algoOut = at
	}

	return h, nil
}

// Stats returns the registry fed by PROC, read by the Prometheus exporter,
// the SIGUSR2 table dump, and the -x one-shot mode's warmup check.
func (h *Handle) Stats() *stats.Registry { return h.stats }

// ServerIDs returns every configured server's ID, in config order.
func (h *Handle) ServerIDs() []string {
	ids := make([]string, len(h.servers))
	for i, s := range h.servers {
		ids[i] = s.id
	}
	return ids
}

// Close releases the SMS segment and algo_out trace file, if open.
func (h *Handle) Close() error {
	var err error
	if h.publisher != nil {
		err = h.publisher.Close()
	}
	if h.algoOut != nil {
		if cerr := h.algoOut.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if h.passiveSource != nil {
		if cerr := h.passiveSource.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if h.outSink != nil {
		if cerr := h.outSink.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Run starts the stamp ingestion (TRIGGER's live queries, or a passive
// replay/capture source if sync_in_pcap/sync_in_ascii is configured) and
// the PROC consumer, and blocks until ctx is cancelled or ingestion fails
// permanently.
func (h *Handle) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if h.passiveSource != nil {
		g.Go(func() error { return h.passiveSource.Run(h.servers[0].queue) })
	} else {
		triggers := make([]*trigger.Trigger, len(h.servers))
		for i, s := range h.servers {
			triggers[i] = s.trigger
		}
		g.Go(func() error { return trigger.RunAll(ctx, triggers) })
	}

	g.Go(func() error { return h.runProc(ctx) })
	return g.Wait()
}

func (h *Handle) logger() *log.Entry {
	return log.WithField("component", "daemon")
}
