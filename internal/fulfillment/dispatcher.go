package fulfillment

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ErrDispatcherStopped is returned by Enqueue once the dispatcher has stopped.
var ErrDispatcherStopped = errors.New("fulfillment: dispatcher stopped")

// Handler fulfills one order.
type Handler func(ctx context.Context, orderID string) error

// Dispatcher is an in-process fulfillment queue drained by a worker pool.
// Jobs still queued at shutdown are lost; the sweeper redrives their orders.
type Dispatcher struct {
	jobs    chan string
	stopped chan struct{}
}

func NewDispatcher(buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = 128
	}
	return &Dispatcher{
		jobs:    make(chan string, buffer),
		stopped: make(chan struct{}),
	}
}

// Enqueue schedules orderID for fulfillment.
func (d *Dispatcher) Enqueue(ctx context.Context, orderID string) error {
	select {
	case <-d.stopped:
		return ErrDispatcherStopped
	default:
	}
	select {
	case d.jobs <- orderID:
		return nil
	case <-d.stopped:
		return ErrDispatcherStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts workers that call handle for each job until ctx is done.
func (d *Dispatcher) Run(ctx context.Context, workers int, handle Handler) error {
	if workers < 1 {
		workers = 1
	}
	defer close(d.stopped)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case id := <-d.jobs:
					if err := handle(ctx, id); err != nil {
						log.Error().Err(err).Str("order_id", id).Msg("fulfillment failed")
					}
				}
			}
		})
	}
	return g.Wait()
}
