package formcache

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fitforge/fitforge-backend/internal/logging"
)

const sweepTimeout = 5 * time.Minute

// Sweepable is a form cache that can drop its expired drafts.
type Sweepable interface {
	CleanExpiredFormData(ctx context.Context) int
}

// SourceFunc lists the caches a sweep should visit, typically one per
// known device.
type SourceFunc func(ctx context.Context) ([]Sweepable, error)

// Scheduler runs the expiry sweep on a cron schedule.
type Scheduler struct {
	cron   *cron.Cron
	source SourceFunc
	logger *zap.Logger
}

// NewScheduler validates spec (standard cron syntax or descriptors such as
// "@hourly").
func NewScheduler(spec string, source SourceFunc, logger *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(),
		source: source,
		logger: logging.OrNop(logger),
	}

	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("failed to schedule form sweep %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.logger.Info("form sweep scheduler started")
	s.cron.Start()
}

// Stop stops the schedule and waits for a running sweep.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Warn("form sweep failed", zap.Error(err))
	}
}

// RunOnce sweeps every cache from the source and returns the total number of
// drafts removed.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	caches, err := s.source(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list form caches: %w", err)
	}

	removed := 0
	for _, c := range caches {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		removed += c.CleanExpiredFormData(ctx)
	}

	s.logger.Info("form sweep completed", zap.Int("caches", len(caches)), zap.Int("removed", removed))
	return removed, nil
}
