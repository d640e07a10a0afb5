package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/samber/oops"
)

// Pruner periodically drops transcript messages older than the retention window.
type Pruner struct {
	store     Transcript
	retention time.Duration
	cron      *cron.Cron
	now       func() time.Time
}

func NewPruner(store Transcript, schedule string, retention time.Duration) (*Pruner, error) {
	p := &Pruner{
		store:     store,
		retention: retention,
		cron:      cron.New(),
		now:       time.Now,
	}
	if _, err := p.cron.AddFunc(schedule, func() {
		if _, err := p.RunOnce(context.Background()); err != nil {
			slog.Error("transcript prune failed", "error", err)
		}
	}); err != nil {
		return nil, oops.In("store").With("schedule", schedule).Wrapf(err, "invalid prune schedule")
	}
	return p, nil
}

// RunOnce prunes immediately.
func (p *Pruner) RunOnce(ctx context.Context) (int, error) {
	cutoff := p.now().Add(-p.retention)
	n, err := p.store.Prune(ctx, cutoff)
	if err != nil {
		return n, err
	}
	if n > 0 {
		slog.Info("pruned transcript messages", "count", n, "before", cutoff)
	}
	return n, nil
}

// Run schedules pruning until ctx is done.
func (p *Pruner) Run(ctx context.Context) error {
	p.cron.Start()
	<-ctx.Done()
	<-p.cron.Stop().Done()
	return nil
}
