package services

import (
	"context"
	"fmt"
	"time"

	"pixstore/internal/events"
	"pixstore/internal/metrics"
	"pixstore/internal/models"
	"pixstore/internal/repositories"

	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
)

const sweepBatchSize = 500

// SweeperConfig sets the ages at which orders are acted on. A zero duration
// disables that half of the sweep.
type SweeperConfig struct {
	PendingTTL   time.Duration
	RedriveAfter time.Duration
	Interval     time.Duration
}

// SweepResult counts what one pass changed.
type SweepResult struct {
	Expired  int `json:"expired"`
	Redriven int `json:"redriven"`
}

// Sweeper expires abandoned pending orders, returning their stock, and
// re-enqueues approved orders whose fulfillment never completed.
type Sweeper struct {
	ledger  repositories.OrderLedger
	queue   FulfillmentQueue
	cfg     SweeperConfig
	events  events.Publisher
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewSweeper creates a new Sweeper. pub and m may be nil.
func NewSweeper(ledger repositories.OrderLedger, queue FulfillmentQueue, cfg SweeperConfig, pub events.Publisher, m *metrics.Metrics) *Sweeper {
	if pub == nil {
		pub = events.NoopPublisher{}
	}
	return &Sweeper{
		ledger:  ledger,
		queue:   queue,
		cfg:     cfg,
		events:  pub,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// RunOnce performs one sweep. Per-order failures are collected and do not stop the pass.
func (s *Sweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	var errs error
	now := s.now()

	if s.cfg.PendingTTL > 0 {
		stale, err := s.ledger.FindStale(ctx, models.StatusPending, now.Add(-s.cfg.PendingTTL), sweepBatchSize)
		if err != nil {
			errs = multierr.Append(errs, err)
		}
		for i := range stale {
			ok, err := s.ledger.Release(ctx, stale[i].ID, models.StatusExpired)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", stale[i].ID, err))
				continue
			}
			if !ok {
				continue
			}
			res.Expired++
			stale[i].Status = models.StatusExpired
			s.metrics.OrderReleased(string(models.StatusExpired))
			publishOrderEvent(ctx, s.events, events.EventOrderExpired, &stale[i])
			log.Info().Str("order_id", stale[i].ID).Int("quantity", stale[i].Quantity).Msg("pending order expired, stock returned")
		}
	}

	if s.cfg.RedriveAfter > 0 && s.queue != nil {
		stuck, err := s.ledger.FindStale(ctx, models.StatusApproved, now.Add(-s.cfg.RedriveAfter), sweepBatchSize)
		if err != nil {
			errs = multierr.Append(errs, err)
		}
		for _, o := range stuck {
			if err := s.queue.Enqueue(ctx, o.ID); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("redrive order %s: %w", o.ID, err))
				continue
			}
			res.Redriven++
			log.Warn().Str("order_id", o.ID).Msg("approved order not fulfilled in time, enqueued again")
		}
	}

	return res, errs
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	interval := s.cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		res, err := s.RunOnce(ctx)
		if err != nil {
			log.Error().Err(err).Msg("sweep finished with errors")
		} else if res.Expired > 0 || res.Redriven > 0 {
			log.Info().Int("expired", res.Expired).Int("redriven", res.Redriven).Msg("sweep finished")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
