package cli

import (
	"context"
	"time"

	"pixstore/internal/config"
	"pixstore/internal/database"
	"pixstore/internal/events"
	"pixstore/internal/fulfillment"
	"pixstore/internal/gateway"
	"pixstore/internal/handlers"
	"pixstore/internal/idempotency"
	"pixstore/internal/metrics"
	"pixstore/internal/repositories"
	"pixstore/internal/services"
	"pixstore/pkg/rabbitmq"
	"pixstore/pkg/retry"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// application owns every long-lived component built from one Config.
type application struct {
	cfg        config.Config
	db         *gorm.DB
	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	publisher  events.Publisher
	rabbit     *rabbitmq.Client
	dispatcher *fulfillment.Dispatcher
	queue      services.FulfillmentQueue

	products   *services.ProductService
	orders     *services.OrderService
	auth       *services.AuthService
	reconciler *services.ReconcileService
	fulfiller  *services.FulfillmentService
	sweeper    *services.Sweeper

	closers []func() error
}

// newApplication connects to every configured backend. Optional backends fall
// back to in-process implementations: no rabbitmq url uses the dispatcher, no
// kafka brokers drops events, no redis address keeps idempotency marks in memory.
func newApplication(ctx context.Context, cfg config.Config) (_ *application, err error) {
	a := &application{cfg: cfg}
	defer func() {
		if err != nil {
			err = multierr.Append(err, a.Close())
		}
	}()

	if a.db, err = database.Open(ctx, cfg.Database); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error { return database.Close(a.db) })
	if err = database.Migrate(a.db); err != nil {
		return nil, err
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)

	a.publisher = events.NoopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, 1024)
		a.publisher = kp
		a.closers = append(a.closers, kp.Close)
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("publishing order events to kafka")
	}

	var guard idempotency.Guard = idempotency.NewMemoryGuard(cfg.Redis.IdempotencyTTL)
	if cfg.Redis.Addr != "" {
		client, derr := idempotency.Dial(ctx, cfg.Redis)
		if derr != nil {
			return nil, derr
		}
		a.closers = append(a.closers, client.Close)
		if guard, err = idempotency.NewRedisGuard(client, "mercadopago", cfg.Redis.IdempotencyTTL); err != nil {
			return nil, err
		}
	}

	if cfg.RabbitMQ.URL != "" {
		if a.rabbit, err = rabbitmq.NewClient(rabbitmq.Config{
			URL:      cfg.RabbitMQ.URL,
			Queue:    cfg.RabbitMQ.Queue,
			Prefetch: cfg.Fulfillment.Workers,
		}); err != nil {
			return nil, err
		}
		a.closers = append(a.closers, a.rabbit.Close)
		a.queue = a.rabbit
	} else {
		a.dispatcher = fulfillment.NewDispatcher(cfg.Reconciler.QueueSize)
		a.queue = a.dispatcher
	}

	ledger := repositories.NewGORMOrderLedger(a.db)
	a.products = services.NewProductService(repositories.NewGORMProductRepository(a.db))
	a.orders = services.NewOrderService(ledger, services.PixSettings{
		Key:          cfg.Pix.Key,
		MerchantName: cfg.Pix.MerchantName,
		MerchantCity: cfg.Pix.MerchantCity,
	}, a.publisher, a.metrics)
	a.auth = services.NewAuthService(repositories.NewGORMOperatorRepository(a.db), cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	a.reconciler = services.NewReconcileService(ledger, gateway.NewMercadoPago(cfg.Gateway), a.queue, services.ReconcileOptions{
		Workers:      cfg.Reconciler.Workers,
		QueueSize:    cfg.Reconciler.QueueSize,
		DrainTimeout: cfg.Reconciler.DrainTimeout,
		Guard:        guard,
		Events:       a.publisher,
		Metrics:      a.metrics,
	})
	a.fulfiller = services.NewFulfillmentService(ledger, newDeliverer(cfg.Delivery), retry.Policy{
		Attempts: cfg.Delivery.MaxAttempts,
		Base:     cfg.Delivery.Backoff,
		Max:      time.Minute,
	}, a.publisher, a.metrics)
	a.sweeper = services.NewSweeper(ledger, a.queue, services.SweeperConfig{
		PendingTTL:   cfg.Orders.PendingTTL,
		RedriveAfter: cfg.Fulfillment.RedriveAfter,
		Interval:     cfg.Sweeper.Interval,
	}, a.publisher, a.metrics)

	if cfg.Catalog.Seed {
		if _, err = a.products.SeedCatalog(ctx, services.DefaultCatalog); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func newDeliverer(cfg config.DeliveryConfig) fulfillment.Deliverer {
	artifact := fulfillment.Artifact{Path: cfg.ArtifactPath, Filename: cfg.Filename, Caption: cfg.Caption}
	if cfg.URL == "" {
		log.Warn().Msg("delivery.url not set, deliveries are only logged")
		return fulfillment.NewLogDeliverer(artifact)
	}
	return fulfillment.NewHTTPDeliverer(cfg.URL, artifact, cfg.Timeout)
}

// httpApp builds the Fiber application over the wired services.
func (a *application) httpApp() *fiber.App {
	return handlers.NewApp(a.cfg.App.Name, handlers.Dependencies{
		Products:   a.products,
		Orders:     a.orders,
		Auth:       a.auth,
		Reconciler: a.reconciler,
		Sweeper:    a.sweeper,
		Metrics:    a.metrics,
		Gatherer:   a.registry,
	})
}

// runFulfillment consumes fulfillment jobs until ctx is done.
func (a *application) runFulfillment(ctx context.Context) error {
	if a.rabbit == nil {
		return a.dispatcher.Run(ctx, a.cfg.Fulfillment.Workers, a.fulfiller.Fulfill)
	}
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < a.cfg.Fulfillment.Workers; i++ {
		g.Go(func() error { return a.rabbit.ConsumeFulfillment(ctx, a.fulfiller.Fulfill) })
	}
	return g.Wait()
}

// Close releases resources in reverse order of acquisition.
func (a *application) Close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i]())
	}
	a.closers = nil
	return err
}
