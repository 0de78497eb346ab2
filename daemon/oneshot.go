package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/facebook/radclock/stats"
)

// warmupPollInterval is how often RunOneShot checks whether every server
// has cleared WARMUP.
const warmupPollInterval = 200 * time.Millisecond

// RunOneShot implements the SUPPLEMENTED -x flag (SPEC_FULL.md): it starts
// TRIGGER/PROC, waits until every configured server has cleared WARMUP,
// then returns the preferred server's snapshot without blocking forever
// the way Run does.
func (h *Handle) RunOneShot(ctx context.Context) (stats.ServerSnapshot, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- h.Run(ctx) }()

	ids := h.ServerIDs()
	ticker := time.NewTicker(warmupPollInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-runErr:
			return stats.ServerSnapshot{}, fmt.Errorf("daemon: exited before warmup completed: %w", err)
		case <-ctx.Done():
			return stats.ServerSnapshot{}, ctx.Err()
		case <-ticker.C:
			if !h.stats.AllWarmedUp(ids) {
				continue
			}
			for _, snap := range h.stats.Snapshot() {
				if snap.Preferred {
					return snap, nil
				}
			}
			// no preferred elected yet even though every server warmed up;
			// keep polling rather than returning a zero-value snapshot.
		}
	}
}
