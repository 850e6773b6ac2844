package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iho/bankledger/internal/adapter/http/handler"
	"github.com/iho/bankledger/internal/adapter/idgen"
	memlock "github.com/iho/bankledger/internal/adapter/lock/memory"
	redislock "github.com/iho/bankledger/internal/adapter/lock/redis"
	memstore "github.com/iho/bankledger/internal/adapter/repository/memory"
	pgrepo "github.com/iho/bankledger/internal/adapter/repository/postgres"
	redisrepo "github.com/iho/bankledger/internal/adapter/repository/redis"
	"github.com/iho/bankledger/internal/infrastructure/config"
	"github.com/iho/bankledger/internal/infrastructure/eventchannel"
	"github.com/iho/bankledger/internal/infrastructure/metrics"
	pgstore "github.com/iho/bankledger/internal/infrastructure/postgres"
	redisclient "github.com/iho/bankledger/internal/infrastructure/redis"
	"github.com/iho/bankledger/internal/infrastructure/resilience"
	"github.com/iho/bankledger/internal/usecase"
)

// stores is the set of repositories one backend provides.
type stores struct {
	txManager        usecase.TransactionManager
	accounts         usecase.AccountRepository
	transactions     usecase.TransactionRepository
	accountViews     usecase.AccountViewRepository
	transactionViews usecase.TransactionViewRepository
}

// app is a fully wired ledger.
type app struct {
	cfg        *config.Config
	logger     zerolog.Logger
	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	channel    *eventchannel.Channel
	policy     *resilience.Policy
	engine     *usecase.LedgerEngine
	ledger     usecase.Ledger
	reads      *usecase.ReadUseCase
	reconciler *usecase.ReconciliationUseCase
	deadLetter *redisrepo.DeadLetterStore // nil unless DEAD_LETTER_BACKEND=redis
	redis      *goredis.Client
	checks     []handler.Check
	closers    []func()
}

// newApp connects the configured backends and builds the use cases on top.
// syncEvents makes every command project its events before returning.
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger, syncEvents bool) (*app, error) {
	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(a.registry)

	s, err := a.openStores(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	locks, err := a.openLocks(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	txRunner := usecase.NewTxRunner(s.txManager, cfg.TransactionTimeout)

	var deadLetter eventchannel.DeadLetter
	if cfg.DeadLetterBackend == config.BackendRedis {
		client, err := a.redisClient(ctx)
		if err != nil {
			a.close()
			return nil, err
		}
		a.deadLetter = redisrepo.NewDeadLetterStore(client, logger.With().Str("component", "deadletter").Logger())
		deadLetter = a.deadLetter
	}

	a.channel = eventchannel.New(eventchannel.Config{
		Logger:         logger.With().Str("component", "eventchannel").Logger(),
		Metrics:        a.metrics,
		DeadLetter:     deadLetter,
		Workers:        cfg.EventWorkers,
		QueueSize:      cfg.EventQueueSize,
		MaxAttempts:    cfg.EventMaxAttempts,
		InitialBackoff: cfg.EventInitialBackoff,
		MaxBackoff:     cfg.EventMaxBackoff,
	})
	a.channel.Subscribe(usecase.NewProjectionProcessor(
		txRunner,
		s.accountViews,
		s.transactionViews,
		a.metrics,
		logger.With().Str("component", "projection").Logger(),
	))

	a.engine = usecase.NewLedgerEngine(usecase.EngineConfig{
		TxRunner:        txRunner,
		AccountRepo:     s.accounts,
		TransactionRepo: s.transactions,
		Locks:           locks,
		Events:          a.channel,
		Metrics:         a.metrics,
		IDGen:           idgen.NewULIDGenerator(),
		NumberGen:       idgen.NewAccountNumberGenerator(),
		Logger:          logger.With().Str("component", "engine").Logger(),
		LockWaitTimeout: cfg.LockWaitTimeout,
		LockLeaseTime:   cfg.LockLeaseTime,
		SyncEvents:      syncEvents || cfg.EventSyncDelivery,
	})

	a.policy = resilience.NewPolicy(
		resilience.RetryConfig{MaxAttempts: cfg.RetryMaxAttempts, Delay: cfg.RetryDelay},
		resilience.BreakerConfig{
			Window:              cfg.BreakerWindow,
			MinRequests:         cfg.BreakerMinRequests,
			FailureRatio:        cfg.BreakerFailureRatio,
			OpenTimeout:         cfg.BreakerOpenTimeout,
			HalfOpenMaxRequests: cfg.BreakerHalfOpenMaxRequests,
		},
		logger.With().Str("component", "resilience").Logger(),
	)
	a.ledger = usecase.NewResilientLedger(a.engine, a.policy)

	a.reads = usecase.NewReadUseCase(txRunner, s.accountViews, s.transactionViews)
	a.reconciler = usecase.NewReconciliationUseCase(
		txRunner,
		s.accounts,
		s.accountViews,
		logger.With().Str("component", "reconciliation").Logger(),
	)

	if _, err := a.engine.LoadAccountCount(ctx); err != nil {
		a.close()
		return nil, fmt.Errorf("load account count: %w", err)
	}

	return a, nil
}

func (a *app) openStores(ctx context.Context) (*stores, error) {
	switch a.cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err := pgstore.NewPoolWithConfig(ctx, pgstore.PoolConfig{
			DatabaseURL: a.cfg.DatabaseURL,
			MaxConns:    a.cfg.DatabaseMaxConns,
			MinConns:    a.cfg.DatabaseMinConns,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		a.checks = append(a.checks, handler.Check{Name: "postgres", Probe: pgstore.Probe(pool)})
		a.logger.Info().Msg("connected to PostgreSQL")

		return &stores{
			txManager:        pgrepo.NewTxManager(pool),
			accounts:         pgrepo.NewAccountRepository(),
			transactions:     pgrepo.NewTransactionRepository(),
			accountViews:     pgrepo.NewAccountViewRepository(),
			transactionViews: pgrepo.NewTransactionViewRepository(),
		}, nil
	default:
		store := memstore.NewStore()
		a.logger.Info().Msg("using in-memory store")

		return &stores{
			txManager:        memstore.NewTxManager(store),
			accounts:         memstore.NewAccountRepository(store),
			transactions:     memstore.NewTransactionRepository(store),
			accountViews:     memstore.NewAccountViewRepository(store),
			transactionViews: memstore.NewTransactionViewRepository(store),
		}, nil
	}
}

func (a *app) openLocks(ctx context.Context) (usecase.LockCoordinator, error) {
	switch a.cfg.LockBackend {
	case config.BackendRedis:
		client, err := a.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		return redislock.NewCoordinator(client, a.cfg.LockRetryInterval, a.logger.With().Str("component", "locks").Logger()), nil
	default:
		return memlock.NewCoordinator(), nil
	}
}

// redisClient connects on first use; the lock and the dead letter share it.
func (a *app) redisClient(ctx context.Context) (*goredis.Client, error) {
	if a.redis != nil {
		return a.redis, nil
	}

	client, err := redisclient.NewClient(ctx, a.cfg.RedisURL, a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.redis = client
	a.closers = append(a.closers, func() { _ = client.Close() })
	a.checks = append(a.checks, handler.Check{Name: "redis", Probe: redisclient.Probe(client)})

	return client, nil
}

// close releases connections in reverse order of opening.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
