package trigger

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Run drives the trigger forever: a startup stagger to spread load across
// servers, an initial burst of closely-spaced requests to seed the
// estimator quickly, then steady periodic ticking at PollPeriod (spec.md
// §4.5).
func (t *Trigger) Run(ctx context.Context, serverIndex, serverCount int) error {
	if err := t.stagger(ctx, serverIndex, serverCount); err != nil {
		return err
	}
	if err := t.burst(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(t.cfg.PollPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := t.RunOnce(ctx); err != nil {
				t.log.WithError(err).Warn("trigger: RunOnce failed")
			}
		}
	}
}

// stagger sleeps 0.5 + poll_period*serverIndex/(2*serverCount) seconds, so
// N servers' requests don't all land on the wire at once.
func (t *Trigger) stagger(ctx context.Context, serverIndex, serverCount int) error {
	if serverCount <= 0 {
		serverCount = 1
	}
	delay := 500*time.Millisecond + time.Duration(float64(t.cfg.PollPeriod)*float64(serverIndex)/(2*float64(serverCount)))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// burst sends BurstCount closely-spaced requests (BurstDelay apart) at
// startup, so warmup has enough stamps to converge quickly instead of
// waiting BurstCount*PollPeriod.
func (t *Trigger) burst(ctx context.Context) error {
	for i := 0; i < t.cfg.BurstCount; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := t.RunOnce(ctx); err != nil {
			t.log.WithError(err).Debug("trigger: burst attempt failed")
		}
		if i < t.cfg.BurstCount-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(t.cfg.BurstDelay):
			}
		}
	}
	return nil
}

// RunAll starts one Run loop per Trigger and waits for all of them, or the
// first failure, or ctx cancellation — whichever comes first.
func RunAll(ctx context.Context, triggers []*Trigger) error {
	g, ctx := errgroup.WithContext(ctx)
	n := len(triggers)
	for i, tr := range triggers {
		i, tr := i, tr
		g.Go(func() error {
			return tr.Run(ctx, i, n)
		})
	}
	return g.Wait()
}
