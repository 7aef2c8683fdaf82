package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	deliveryservice "fulfillment/contexts/fulfillment/delivery-service"
	deliverygateway "fulfillment/contexts/fulfillment/delivery-service/adapters/gateway"
	deliveryhttpclient "fulfillment/contexts/fulfillment/delivery-service/adapters/httpclient"
	deliverymemory "fulfillment/contexts/fulfillment/delivery-service/adapters/memory"
	deliverypostgres "fulfillment/contexts/fulfillment/delivery-service/adapters/postgres"
	deliveryentities "fulfillment/contexts/fulfillment/delivery-service/domain/entities"
	deliveryerrors "fulfillment/contexts/fulfillment/delivery-service/domain/errors"
	deliveryports "fulfillment/contexts/fulfillment/delivery-service/ports"
	inventoryservice "fulfillment/contexts/fulfillment/inventory-service"
	inventorymemory "fulfillment/contexts/fulfillment/inventory-service/adapters/memory"
	inventorypostgres "fulfillment/contexts/fulfillment/inventory-service/adapters/postgres"
	orderservice "fulfillment/contexts/fulfillment/order-service"
	ordermemory "fulfillment/contexts/fulfillment/order-service/adapters/memory"
	orderpostgres "fulfillment/contexts/fulfillment/order-service/adapters/postgres"
	orderqueries "fulfillment/contexts/fulfillment/order-service/application/queries"
	ordererrors "fulfillment/contexts/fulfillment/order-service/domain/errors"
	paymentservice "fulfillment/contexts/fulfillment/payment-service"
	paymentgateway "fulfillment/contexts/fulfillment/payment-service/adapters/gateway"
	paymentmemory "fulfillment/contexts/fulfillment/payment-service/adapters/memory"
	paymentpostgres "fulfillment/contexts/fulfillment/payment-service/adapters/postgres"
	"fulfillment/internal/platform/config"
	"fulfillment/internal/platform/db"
	"fulfillment/internal/platform/httpserver"
	"fulfillment/internal/platform/messaging"
	"fulfillment/internal/platform/resilience"
	"fulfillment/internal/shared/events"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type consumer interface {
	Start(ctx context.Context) error
}

type outboxRelay interface {
	RunOnce(ctx context.Context) error
}

type APIApp struct {
	server       *httpserver.Server
	postgres     *db.Postgres
	consumers    []consumer
	relays       []outboxRelay
	pollInterval time.Duration
	logger       *slog.Logger
}

type WorkerApp struct {
	postgres     *db.Postgres
	kafka        *messaging.Kafka
	consumers    []consumer
	relays       []outboxRelay
	pollInterval time.Duration
	logger       *slog.Logger
}

// BuildAPI wires the HTTP process. With a Postgres DSN it serves commands and
// queries against the database and leaves event plumbing to the worker
// process; without one it falls back to a self-contained in-memory runtime
// (memory stores, in-process bus, consumers and relays in-process) so the
// whole saga runs inside a single binary.
func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")

	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return buildLocalAPI(cfg, logger)
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	orderRepo := orderpostgres.NewRepository(pg.DB, logger)
	inventoryRepo := inventorypostgres.NewRepository(pg.DB, logger)
	paymentRepo := paymentpostgres.NewRepository(pg.DB, logger)
	deliveryRepo := deliverypostgres.NewRepository(pg.DB, logger)

	paymentPolicy := resilience.New("payment-gateway", gatewayPolicyConfig(cfg), logger)
	psp := paymentgateway.NewResilientGateway(paymentgateway.NewMockPSP(), paymentPolicy)

	orders := orderservice.NewModule(orderservice.Dependencies{
		Orders:      orderRepo,
		Inbox:       orderRepo,
		Outbox:      orderRepo,
		Clock:       orderpostgres.SystemClock{},
		IDGenerator: orderpostgres.UUIDGenerator{},
		BatchSize:   cfg.OutboxBatchSize,
		Logger:      logger,
	})
	inventory := inventoryservice.NewModule(inventoryservice.Dependencies{
		Items:       inventoryRepo,
		Inbox:       inventoryRepo,
		Outbox:      inventoryRepo,
		Clock:       inventorypostgres.SystemClock{},
		IDGenerator: inventorypostgres.UUIDGenerator{},
		BatchSize:   cfg.OutboxBatchSize,
		Logger:      logger,
	})
	payments := paymentservice.NewModule(paymentservice.Dependencies{
		Payments:    paymentRepo,
		Inbox:       paymentRepo,
		Outbox:      paymentRepo,
		Gateway:     psp,
		Clock:       paymentpostgres.SystemClock{},
		IDGenerator: paymentpostgres.UUIDGenerator{},
		BatchSize:   cfg.OutboxBatchSize,
		Logger:      logger,
	})
	delivery := deliveryservice.NewModule(deliveryservice.Dependencies{
		Shipments:   deliveryRepo,
		Inbox:       deliveryRepo,
		Outbox:      deliveryRepo,
		Orders:      localOrderReader{orders: orders.GetOrder},
		Clock:       deliverypostgres.SystemClock{},
		IDGenerator: deliverypostgres.UUIDGenerator{},
		BatchSize:   cfg.OutboxBatchSize,
		Logger:      logger,
	})

	server := httpserver.New(orders, inventory, payments, delivery, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

func buildLocalAPI(cfg config.Config, logger *slog.Logger) (*APIApp, error) {
	bus := messaging.NewBus(messaging.BusConfig{
		Workers:     cfg.ConsumerWorkers,
		MaxAttempts: cfg.ConsumerMaxAttempts,
		BaseBackoff: cfg.ConsumerBaseBackoff,
		DeadLetter:  deadLetterLogger(logger),
	}, logger)

	orderStore := ordermemory.NewStore()
	inventoryStore := inventorymemory.NewStore(nil)
	paymentStore := paymentmemory.NewStore()
	deliveryStore := deliverymemory.NewStore()

	paymentPolicy := resilience.New("payment-gateway", gatewayPolicyConfig(cfg), logger)
	carrierPolicy := resilience.New("carrier", gatewayPolicyConfig(cfg), logger)
	psp := paymentgateway.NewResilientGateway(paymentgateway.NewMockPSP(), paymentPolicy)
	carrier := deliverygateway.NewResilientCarrier(deliverygateway.NewMockCarrier(), carrierPolicy)

	orders := orderservice.NewModule(orderservice.Dependencies{
		Orders:      orderStore,
		Inbox:       orderStore,
		Outbox:      orderStore,
		Publisher:   bus,
		Subscriber:  bus,
		Clock:       orderpostgres.SystemClock{},
		IDGenerator: orderpostgres.UUIDGenerator{},
		BatchSize:   cfg.OutboxBatchSize,
		Logger:      logger,
	})
	inventory := inventoryservice.NewModule(inventoryservice.Dependencies{
		Items:       inventoryStore,
		Inbox:       inventoryStore,
		Outbox:      inventoryStore,
		Publisher:   bus,
		Subscriber:  bus,
		Clock:       inventorypostgres.SystemClock{},
		IDGenerator: inventorypostgres.UUIDGenerator{},
		BatchSize:   cfg.OutboxBatchSize,
		Logger:      logger,
	})
	payments := paymentservice.NewModule(paymentservice.Dependencies{
		Payments:    paymentStore,
		Inbox:       paymentStore,
		Outbox:      paymentStore,
		Gateway:     psp,
		Publisher:   bus,
		Subscriber:  bus,
		Clock:       paymentpostgres.SystemClock{},
		IDGenerator: paymentpostgres.UUIDGenerator{},
		BatchSize:   cfg.OutboxBatchSize,
		Logger:      logger,
	})
	delivery := deliveryservice.NewModule(deliveryservice.Dependencies{
		Shipments:   deliveryStore,
		Inbox:       deliveryStore,
		Outbox:      deliveryStore,
		Orders:      localOrderReader{orders: orders.GetOrder},
		Carrier:     carrier,
		Publisher:   bus,
		Subscriber:  bus,
		Clock:       deliverypostgres.SystemClock{},
		IDGenerator: deliverypostgres.UUIDGenerator{},
		BatchSize:   cfg.OutboxBatchSize,
		Logger:      logger,
	})

	server := httpserver.New(orders, inventory, payments, delivery, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server: server,
		consumers: []consumer{
			orders.Consumer,
			inventory.Consumer,
			payments.Consumer,
			delivery.Consumer,
		},
		relays: []outboxRelay{
			orders.OutboxRelay,
			inventory.OutboxRelay,
			payments.OutboxRelay,
			delivery.OutboxRelay,
		},
		pollInterval: cfg.OutboxPollInterval,
		logger:       logger,
	}, nil
}

// BuildWorker wires the saga process: consumers plus the outbox poll loop.
// It always needs Postgres; the broker is Kafka or the in-process bus
// depending on configuration.
func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")

	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required for the worker process")
	}
	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	var (
		publisher  messaging.Publisher
		subscriber messaging.Subscriber
		kafka      *messaging.Kafka
	)
	if cfg.BrokerMode == "kafka" {
		kafka = messaging.NewKafka(cfg.KafkaBrokers, cfg.ConsumerBaseBackoff, logger)
		publisher, subscriber = kafka, kafka
	} else {
		bus := messaging.NewBus(messaging.BusConfig{
			Workers:     cfg.ConsumerWorkers,
			MaxAttempts: cfg.ConsumerMaxAttempts,
			BaseBackoff: cfg.ConsumerBaseBackoff,
			DeadLetter:  deadLetterLogger(logger),
		}, logger)
		publisher, subscriber = bus, bus
	}

	orderRepo := orderpostgres.NewRepository(pg.DB, logger)
	inventoryRepo := inventorypostgres.NewRepository(pg.DB, logger)
	paymentRepo := paymentpostgres.NewRepository(pg.DB, logger)
	deliveryRepo := deliverypostgres.NewRepository(pg.DB, logger)

	paymentPolicy := resilience.New("payment-gateway", gatewayPolicyConfig(cfg), logger)
	carrierPolicy := resilience.New("carrier", gatewayPolicyConfig(cfg), logger)
	psp := paymentgateway.NewResilientGateway(paymentgateway.NewMockPSP(), paymentPolicy)
	carrier := deliverygateway.NewResilientCarrier(deliverygateway.NewMockCarrier(), carrierPolicy)

	orders := orderservice.NewModule(orderservice.Dependencies{
		Orders:      orderRepo,
		Inbox:       orderRepo,
		Outbox:      orderRepo,
		Publisher:   publisher,
		Subscriber:  subscriber,
		Clock:       orderpostgres.SystemClock{},
		IDGenerator: orderpostgres.UUIDGenerator{},
		BatchSize:   cfg.OutboxBatchSize,
		Logger:      logger,
	})
	inventory := inventoryservice.NewModule(inventoryservice.Dependencies{
		Items:       inventoryRepo,
		Inbox:       inventoryRepo,
		Outbox:      inventoryRepo,
		Publisher:   publisher,
		Subscriber:  subscriber,
		Clock:       inventorypostgres.SystemClock{},
		IDGenerator: inventorypostgres.UUIDGenerator{},
		BatchSize:   cfg.OutboxBatchSize,
		Logger:      logger,
	})
	payments := paymentservice.NewModule(paymentservice.Dependencies{
		Payments:    paymentRepo,
		Inbox:       paymentRepo,
		Outbox:      paymentRepo,
		Gateway:     psp,
		Publisher:   publisher,
		Subscriber:  subscriber,
		Clock:       paymentpostgres.SystemClock{},
		IDGenerator: paymentpostgres.UUIDGenerator{},
		BatchSize:   cfg.OutboxBatchSize,
		Logger:      logger,
	})
	delivery := deliveryservice.NewModule(deliveryservice.Dependencies{
		Shipments:   deliveryRepo,
		Inbox:       deliveryRepo,
		Outbox:      deliveryRepo,
		Orders:      deliveryhttpclient.NewOrderDetailsClient(cfg.OrderAPIBaseURL, nil),
		Carrier:     carrier,
		Publisher:   publisher,
		Subscriber:  subscriber,
		Clock:       deliverypostgres.SystemClock{},
		IDGenerator: deliverypostgres.UUIDGenerator{},
		BatchSize:   cfg.OutboxBatchSize,
		Logger:      logger,
	})

	return &WorkerApp{
		postgres: pg,
		kafka:    kafka,
		consumers: []consumer{
			orders.Consumer,
			inventory.Consumer,
			payments.Consumer,
			delivery.Consumer,
		},
		relays: []outboxRelay{
			orders.OutboxRelay,
			inventory.OutboxRelay,
			payments.OutboxRelay,
			delivery.OutboxRelay,
		},
		pollInterval: cfg.OutboxPollInterval,
		logger:       logger,
	}, nil
}

func (a *APIApp) Run(ctx context.Context) error {
	for _, c := range a.consumers {
		if err := c.Start(ctx); err != nil {
			return err
		}
	}
	if len(a.relays) > 0 {
		go a.runRelays(ctx)
	}

	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"local_runtime", len(a.relays) > 0,
	)
	return a.server.Start()
}

func (a *APIApp) runRelays(ctx context.Context) {
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		for _, relay := range a.relays {
			if err := relay.RunOnce(ctx); err != nil {
				a.logger.Error("outbox relay cycle failed",
					"event", "bootstrap_relay_failed",
					"module", "internal/app/bootstrap",
					"layer", "platform",
					"error", err.Error(),
				)
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	for _, c := range w.consumers {
		if err := c.Start(ctx); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	for {
		for _, relay := range w.relays {
			if err := relay.RunOnce(ctx); err != nil {
				w.logger.Error("outbox relay cycle failed",
					"event", "bootstrap_relay_failed",
					"module", "internal/app/bootstrap",
					"layer", "platform",
					"error", err.Error(),
				)
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	var firstErr error
	if w.kafka != nil {
		firstErr = w.kafka.Close()
	}
	if w.postgres != nil {
		if err := w.postgres.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// localOrderReader serves delivery's order-details read without a network hop
// when the order module lives in the same process.
type localOrderReader struct {
	orders orderqueries.GetOrderUseCase
}

func (r localOrderReader) GetOrderDetails(ctx context.Context, orderID string) (deliveryports.OrderDetails, error) {
	order, err := r.orders.Execute(ctx, orderID)
	if err != nil {
		if errors.Is(err, ordererrors.ErrOrderNotFound) {
			return deliveryports.OrderDetails{}, deliveryerrors.ErrOrderDetailsNotFound
		}
		return deliveryports.OrderDetails{}, err
	}

	items := make([]deliveryentities.ShipmentItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, deliveryentities.ShipmentItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return deliveryports.OrderDetails{
		OrderID:         order.OrderID,
		CustomerID:      order.CustomerID,
		ShippingAddress: order.ShippingAddress,
		Items:           items,
	}, nil
}

func gatewayPolicyConfig(cfg config.Config) resilience.Config {
	policy := resilience.DefaultConfig()
	policy.MaxAttempts = cfg.GatewayMaxAttempts
	policy.BaseDelay = cfg.GatewayBaseDelay
	policy.FailureRatio = cfg.GatewayBreakerRatio
	return policy
}

func deadLetterLogger(logger *slog.Logger) messaging.DeadLetterFunc {
	return func(_ context.Context, topic string, env events.Envelope, err error) {
		logger.Error("message dead-lettered",
			"event", "bus_message_dead_lettered",
			"module", "internal/app/bootstrap",
			"layer", "platform",
			"topic", topic,
			"message_id", env.MessageID,
			"correlation_id", env.CorrelationID,
			"error", err.Error(),
		)
	}
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
