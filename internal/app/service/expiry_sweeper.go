package service

import (
	"context"
	"errors"
	"time"

	apprepository "github.com/sifan077/CloudShare/internal/app/repository"
	"github.com/sifan077/CloudShare/internal/app/store"
	appmetrics "github.com/sifan077/CloudShare/internal/infra/prometheus"
	"go.uber.org/zap"
)

// ExpirySweeper periodically deletes records whose expiry has passed. Reads
// still enforce expiry on their own; the sweep only reclaims space for
// records nobody asks for again.
type ExpirySweeper struct {
	logger    *zap.Logger
	store     store.Store
	events    apprepository.AccessEventRepository
	retention time.Duration
	interval  time.Duration
	batch     int
	now       func() time.Time
	stopChan  chan struct{}
	doneChan  chan struct{}
}

// SweeperOptions tunes an ExpirySweeper. Zero values fall back to defaults.
type SweeperOptions struct {
	Interval time.Duration
	// Batch is the page size of each key scan.
	Batch int
	// Events and Retention enable pruning of archived access events.
	Events    apprepository.AccessEventRepository
	Retention time.Duration
	Now       func() time.Time
}

// NewExpirySweeper creates a new expiry sweeper.
func NewExpirySweeper(logger *zap.Logger, st store.Store, opts SweeperOptions) *ExpirySweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Minute
	}
	if opts.Batch <= 0 {
		opts.Batch = 500
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &ExpirySweeper{
		logger:    logger,
		store:     st,
		events:    opts.Events,
		retention: opts.Retention,
		interval:  opts.Interval,
		batch:     opts.Batch,
		now:       opts.Now,
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
	}
}

// Start begins the periodic sweep.
func (s *ExpirySweeper) Start() {
	go s.run()
}

// Stop stops the periodic sweep and waits for a running pass to finish.
func (s *ExpirySweeper) Stop() {
	close(s.stopChan)
	<-s.doneChan
}

func (s *ExpirySweeper) run() {
	defer close(s.doneChan)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.interval)
			s.Sweep(ctx)
			cancel()
		case <-s.stopChan:
			s.logger.Info("expiry sweeper stopped")
			return
		}
	}
}

// Sweep walks every record in pages of the configured batch size and
// returns the number of records deleted.
func (s *ExpirySweeper) Sweep(ctx context.Context) int {
	now := s.now()
	removed := 0
	cursor := ""
	for {
		keys, next, err := s.store.ScanMetaKeys(ctx, cursor, s.batch)
		if err != nil {
			s.logger.Error("failed to list records for sweep", zap.String("cursor", cursor), zap.Error(err))
			break
		}
		removed += s.sweepKeys(ctx, keys, now)
		if next == "" || ctx.Err() != nil {
			break
		}
		cursor = next
	}

	if removed > 0 {
		appmetrics.RecordsSwept.Add(float64(removed))
		s.logger.Info("swept expired records", zap.Int("count", removed))
	}

	s.pruneEvents(ctx, now)
	return removed
}

func (s *ExpirySweeper) sweepKeys(ctx context.Context, keys []string, now time.Time) int {
	removed := 0
	for _, key := range keys {
		id := store.IDFromMetaKey(key)
		rec, err := s.store.GetMeta(ctx, id)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				s.logger.Warn("failed to load record during sweep", zap.String("id", id), zap.Error(err))
			}
			continue
		}
		if !rec.IsExpired(now) {
			continue
		}
		if err := deleteRecord(ctx, s.store, id); err != nil {
			s.logger.Warn("failed to delete expired record", zap.String("id", id), zap.Error(err))
			continue
		}
		removed++
	}
	return removed
}

func (s *ExpirySweeper) pruneEvents(ctx context.Context, now time.Time) {
	if s.events == nil || s.retention <= 0 {
		return
	}
	before := now.Add(-s.retention)
	affected, err := s.events.DeleteBefore(ctx, before)
	if err != nil {
		s.logger.Error("failed to prune access events", zap.Error(err))
		return
	}
	if affected > 0 {
		s.logger.Info("pruned archived access events",
			zap.Int64("count", affected),
			zap.Time("before", before),
		)
	}
}
