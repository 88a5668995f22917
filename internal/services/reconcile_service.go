package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pixstore/internal/events"
	"pixstore/internal/gateway"
	"pixstore/internal/idempotency"
	"pixstore/internal/metrics"
	"pixstore/internal/models"
	"pixstore/internal/repositories"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// TopicPayment is the only notification topic that can approve an order.
const TopicPayment = "payment"

// Notification is a gateway callback. ID names the payment, not the order.
type Notification struct {
	Topic string
	ID    string
}

// Outcome classifies what reconciling one notification did.
type Outcome string

const (
	OutcomeIgnored      Outcome = "ignored"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeNotApproved  Outcome = "not_approved"
	OutcomeUnknownOrder Outcome = "unknown_order"
	OutcomeApproved     Outcome = "approved"
	OutcomeLatePayment  Outcome = "late_payment"
	OutcomeFailed       Outcome = "failed"
)

// PaymentGateway returns the authoritative state of a payment.
type PaymentGateway interface {
	GetPayment(ctx context.Context, id string) (*gateway.Payment, error)
}

// FulfillmentQueue schedules delivery for an approved order.
type FulfillmentQueue interface {
	Enqueue(ctx context.Context, orderID string) error
}

// final reports whether a redelivery of the same notification can be skipped.
func (o Outcome) final() bool {
	switch o {
	case OutcomeApproved, OutcomeDuplicate, OutcomeUnknownOrder, OutcomeLatePayment:
		return true
	}
	return false
}

const defaultDrainTimeout = 30 * time.Second

// ReconcileOptions holds the optional collaborators of ReconcileService.
type ReconcileOptions struct {
	Workers      int
	QueueSize    int
	DrainTimeout time.Duration // bounds reconciling what is still queued at shutdown
	Guard        idempotency.Guard
	Events       events.Publisher
	Metrics      *metrics.Metrics
}

// ReconcileService turns gateway notifications into ledger transitions. The
// ledger's pending -> approved compare-and-swap decides which notification wins;
// only the winner schedules fulfillment.
type ReconcileService struct {
	ledger  repositories.OrderLedger
	gateway PaymentGateway
	queue   FulfillmentQueue
	guard   idempotency.Guard
	events  events.Publisher
	metrics *metrics.Metrics
	jobs    chan Notification
	workers int
	drain   time.Duration
	now     func() time.Time

	mu       sync.RWMutex
	stopped  bool
	overflow sync.WaitGroup
}

// NewReconcileService creates a new ReconcileService.
func NewReconcileService(ledger repositories.OrderLedger, gw PaymentGateway, queue FulfillmentQueue, opts ReconcileOptions) *ReconcileService {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 256
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = defaultDrainTimeout
	}
	if opts.Events == nil {
		opts.Events = events.NoopPublisher{}
	}
	return &ReconcileService{
		ledger:  ledger,
		gateway: gw,
		queue:   queue,
		guard:   opts.Guard,
		events:  opts.Events,
		metrics: opts.Metrics,
		jobs:    make(chan Notification, opts.QueueSize),
		workers: opts.Workers,
		drain:   opts.DrainTimeout,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Submit hands n to the workers without blocking the caller. When the queue is
// full the notification is reconciled on its own goroutine instead of dropped.
// Once Run has returned, n is reconciled before Submit returns.
func (s *ReconcileService) Submit(n Notification) {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		log.Warn().Str("payment_id", n.ID).Msg("reconciler stopped, processing notification synchronously")
		ctx, cancel := context.WithTimeout(context.Background(), s.drain)
		defer cancel()
		s.process(ctx, n)
		return
	}
	defer s.mu.RUnlock()

	select {
	case s.jobs <- n:
	default:
		log.Warn().Str("payment_id", n.ID).Msg("reconcile queue full, processing inline")
		s.overflow.Add(1)
		go func() {
			defer s.overflow.Done()
			s.process(context.Background(), n)
		}()
	}
}

// Run drains submitted notifications until ctx is done. Notifications still
// queued at that point are reconciled under DrainTimeout before Run returns.
func (s *ReconcileService) Run(ctx context.Context) error {
	// A notification taken off the queue is settled even if ctx ends meanwhile.
	work := context.WithoutCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case n := <-s.jobs:
					s.process(work, n)
				}
			}
		})
	}
	err := g.Wait()

	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	drainCtx, cancel := context.WithTimeout(context.Background(), s.drain)
	defer cancel()
	s.drainQueued(drainCtx)
	s.overflow.Wait()
	return err
}

func (s *ReconcileService) drainQueued(ctx context.Context) {
	drained := 0
	for {
		select {
		case n := <-s.jobs:
			s.process(ctx, n)
			drained++
		default:
			if drained > 0 {
				log.Info().Int("count", drained).Msg("reconciled queued notifications on shutdown")
			}
			return
		}
	}
}

func (s *ReconcileService) process(ctx context.Context, n Notification) {
	outcome, err := s.Reconcile(ctx, n)
	s.metrics.Notification(string(outcome))
	ev := log.Info()
	if err != nil {
		ev = log.Error().Err(err)
	}
	ev.Str("topic", n.Topic).Str("payment_id", n.ID).Str("outcome", string(outcome)).Msg("payment notification reconciled")
}

// Reconcile processes one notification. No-ops are reported as outcomes; an
// error means the notification could not be settled and may be retried.
func (s *ReconcileService) Reconcile(ctx context.Context, n Notification) (Outcome, error) {
	if n.Topic != TopicPayment || n.ID == "" {
		return OutcomeIgnored, nil
	}

	if s.guard != nil {
		seen, err := s.guard.Seen(ctx, n.ID)
		if err != nil {
			log.Warn().Err(err).Str("payment_id", n.ID).Msg("idempotency guard unavailable")
		} else if seen {
			return OutcomeDuplicate, nil
		}
	}

	// Concurrent notifications for one payment all reach settle; the ledger's
	// compare-and-swap picks the winner. Only settled ids are marked because the
	// same payment id is notified again when its status changes.
	outcome, err := s.settle(ctx, n.ID)
	if s.guard != nil && err == nil && outcome.final() {
		if merr := s.guard.Mark(ctx, n.ID); merr != nil {
			log.Warn().Err(merr).Str("payment_id", n.ID).Msg("failed to record idempotency mark")
		}
	}
	return outcome, err
}

func (s *ReconcileService) settle(ctx context.Context, paymentID string) (Outcome, error) {
	payment, err := s.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("query payment %s: %w", paymentID, err)
	}
	if !payment.Approved() {
		return OutcomeNotApproved, nil
	}

	orderID := payment.ExternalReference
	if orderID == "" {
		return OutcomeUnknownOrder, nil
	}
	order, err := s.ledger.GetByID(ctx, orderID)
	if errors.Is(err, repositories.ErrOrderNotFound) {
		return OutcomeUnknownOrder, nil
	}
	if err != nil {
		return OutcomeFailed, err
	}

	logger := log.With().Str("order_id", order.ID).Str("payment_id", payment.ID).Logger()
	if paid := payment.AmountCents(); paid != order.TotalAmountCents {
		logger.Warn().Int64("paid_cents", paid).Int64("total_amount_cents", order.TotalAmountCents).Msg("payment amount differs from order total")
	}

	if order.Status == models.StatusPending {
		won, err := s.ledger.Approve(ctx, order.ID, payment.ID, s.now())
		if err != nil {
			return OutcomeFailed, err
		}
		if won {
			s.onApproved(ctx, logger, order.ID)
			return OutcomeApproved, nil
		}
		if order, err = s.ledger.GetByID(ctx, order.ID); err != nil {
			return OutcomeFailed, err
		}
	}

	switch order.Status {
	case models.StatusExpired, models.StatusCancelled:
		logger.Error().Str("status", string(order.Status)).Msg("approved payment for a closed order, refund manually")
		publishOrderEvent(ctx, s.events, events.EventLatePayment, order)
		return OutcomeLatePayment, nil
	default:
		return OutcomeDuplicate, nil
	}
}

func (s *ReconcileService) onApproved(ctx context.Context, logger zerolog.Logger, orderID string) {
	order, err := s.ledger.GetByID(ctx, orderID)
	if err == nil {
		publishOrderEvent(ctx, s.events, events.EventOrderApproved, order)
	}
	if err := s.queue.Enqueue(ctx, orderID); err != nil {
		// The order stays approved; the sweeper enqueues it again.
		logger.Error().Err(err).Msg("failed to enqueue fulfillment")
		return
	}
	logger.Info().Msg("order approved, fulfillment enqueued")
}
