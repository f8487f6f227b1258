package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"

	api "github.com/Sentinel-Gate/accessgate/internal/adapter/inbound/http"
	"github.com/Sentinel-Gate/accessgate/internal/adapter/outbound/memory"
	"github.com/Sentinel-Gate/accessgate/internal/adapter/outbound/rediscache"
	"github.com/Sentinel-Gate/accessgate/internal/adapter/outbound/sqlstore"
	"github.com/Sentinel-Gate/accessgate/internal/bootstrap"
	"github.com/Sentinel-Gate/accessgate/internal/config"
	"github.com/Sentinel-Gate/accessgate/internal/domain/policy"
	"github.com/Sentinel-Gate/accessgate/internal/domain/session"
	"github.com/Sentinel-Gate/accessgate/internal/domain/tenant"
	"github.com/Sentinel-Gate/accessgate/internal/service"
)

// stores bundles the persistence backends selected by store.driver.
type stores struct {
	policies policy.Store
	tenants  tenant.Store
	records  session.RecordStore
	// ping is nil for the in-memory driver.
	ping  api.Pinger
	close func() error
}

func openStores(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (*stores, error) {
	switch cfg.Driver {
	case config.DriverSQLite, config.DriverPostgres:
		db, err := sqlstore.Open(ctx, sqlstore.Options{
			Dialect:      sqlstore.Dialect(cfg.Driver),
			DSN:          cfg.DSN,
			MaxOpenConns: cfg.MaxOpenConns,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("store opened", "driver", cfg.Driver)
		ps := sqlstore.NewPolicyStore(db)
		return &stores{
			policies: ps,
			tenants:  ps,
			records:  sqlstore.NewRecordStore(db),
			ping:     db,
			close:    db.Close,
		}, nil
	default:
		logger.Warn("using in-memory store, data is lost on restart")
		ps := memory.NewPolicyStore()
		return &stores{
			policies: ps,
			tenants:  ps,
			records:  memory.NewRecordStore(),
			close:    func() error { return nil },
		}, nil
	}
}

// openCache returns the policy cache backend; the Pinger is nil in memory.
func openCache(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) (policy.Cache, api.Pinger, func() error, error) {
	if cfg.Backend != config.CacheRedis {
		return memory.NewPolicyCache(cfg.TTL), nil, func() error { return nil }, nil
	}
	client, err := rediscache.Connect(ctx, rediscache.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	logger.Info("policy cache: redis", "addr", cfg.Redis.Addr, "ttl", cfg.TTL)
	c := rediscache.New(client, cfg.TTL)
	return c, c, client.Close, nil
}

// app holds the wired control plane.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	stores   *stores
	policies *service.PolicyService
	recorder *service.DecisionRecorder
	orgs     *service.OrgService
	queue    *service.RecordingQueue
	handler  http.Handler
	closers  []func() error
}

// newApp wires stores, cache, services and the HTTP API from cfg.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	st, err := openStores(ctx, cfg.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.stores = st
	a.closers = append(a.closers, st.close)

	backend, cachePing, closeCache, err := openCache(ctx, cfg.Cache, logger)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("open cache: %w", err)
	}
	a.closers = append(a.closers, closeCache)

	var metrics *api.Metrics
	reg := prometheus.NewRegistry()
	if cfg.Telemetry.Metrics {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = api.NewMetrics(reg)
	}

	tracer := otel.Tracer("github.com/Sentinel-Gate/accessgate")
	cacheOpts := []service.PolicyCacheOption{service.WithCacheTimeout(cfg.Cache.Timeout)}
	if metrics != nil {
		cacheOpts = append(cacheOpts, service.WithCacheObserver(metrics))
	}
	cache := service.NewPolicyCache(st.policies, backend, logger, cacheOpts...)
	a.policies = service.NewPolicyService(st.policies, cache, logger,
		service.WithEngineTimeout(cfg.Engine.Timeout),
		service.WithPolicyTracer(tracer),
	)
	a.recorder = service.NewDecisionRecorder(st.records, logger,
		service.WithRecorderTimeout(cfg.Recorder.Timeout),
		service.WithRecorderTracer(tracer),
	)
	a.orgs = service.NewOrgService(st.tenants, logger)

	opts := []api.Option{
		api.WithLogger(logger),
		api.WithJWTSecret(cfg.Admin.JWTSecret),
		api.WithKeyCache(cfg.Gateway.KeyCacheSize, cfg.Gateway.KeyCacheTTL),
		api.WithRateLimit(cfg.Gateway.RateLimit.PerSecond, cfg.Gateway.RateLimit.Burst),
	}
	if cfg.Gateway.AutoRecord {
		a.queue = service.NewRecordingQueue(a.recorder, logger,
			service.WithQueueSize(cfg.Recorder.QueueSize),
			service.WithQueueSendTimeout(cfg.Recorder.SendTimeout),
			service.WithQueueWorkers(cfg.Recorder.Workers),
		)
		opts = append(opts, api.WithRecordingQueue(a.queue, true))
		if metrics != nil {
			metrics.RegisterQueue(a.queue)
		}
	}
	if metrics != nil {
		opts = append(opts, api.WithMetrics(metrics, reg))
	}
	opts = append(opts, api.WithHealthChecker(api.NewHealthChecker(st.ping, cachePing, a.queue, Version)))

	a.handler = api.NewAPI(api.Services{
		Policies: a.policies,
		Recorder: a.recorder,
		Orgs:     a.orgs,
		Gateways: service.NewGatewayResolver(st.tenants, logger),
	}, opts...).Handler()
	return a, nil
}

// seed applies the demo seed in dev mode and the configured seed file.
func (a *app) seed(ctx context.Context) error {
	seeder := bootstrap.NewSeeder(a.orgs, a.policies, a.logger)
	if a.cfg.DevMode {
		if _, err := seeder.Apply(ctx, bootstrap.Demo()); err != nil {
			return fmt.Errorf("demo seed: %w", err)
		}
	}
	if a.cfg.Seed.File != "" {
		s, err := bootstrap.LoadFile(a.cfg.Seed.File)
		if err != nil {
			return err
		}
		rep, err := seeder.Apply(ctx, s)
		if err != nil {
			return fmt.Errorf("seed %s: %w", a.cfg.Seed.File, err)
		}
		a.logger.Info("seed applied", "file", a.cfg.Seed.File,
			"organizations", rep.OrganizationsCreated,
			"skipped", rep.OrganizationsSkipped,
			"policies", rep.PoliciesCreated,
			"gateways", rep.GatewaysRegistered,
		)
	}
	return nil
}

// serve runs the HTTP server until ctx is cancelled, then drains the
// recording queue.
func (a *app) serve(ctx context.Context, srv *api.Server) error {
	if a.queue != nil {
		a.queue.Start(ctx)
		defer func() {
			a.queue.Stop()
			a.logger.Info("recording queue drained",
				"recorded", a.queue.Recorded(),
				"failed", a.queue.Failed(),
				"dropped", a.queue.Dropped(),
			)
		}()
	}
	return srv.Start(ctx)
}

// Close releases the store and cache connections.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
