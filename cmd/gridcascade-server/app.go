package main

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dd0wney/gridcascade/pkg/api"
	"github.com/dd0wney/gridcascade/pkg/api/middleware"
	"github.com/dd0wney/gridcascade/pkg/auth"
	"github.com/dd0wney/gridcascade/pkg/cascade"
	"github.com/dd0wney/gridcascade/pkg/centrality"
	"github.com/dd0wney/gridcascade/pkg/config"
	"github.com/dd0wney/gridcascade/pkg/graphql"
	"github.com/dd0wney/gridcascade/pkg/health"
	"github.com/dd0wney/gridcascade/pkg/logging"
	"github.com/dd0wney/gridcascade/pkg/metrics"
	"github.com/dd0wney/gridcascade/pkg/pubsub"
	"github.com/dd0wney/gridcascade/pkg/ranking"
	"github.com/dd0wney/gridcascade/pkg/risk"
	"github.com/dd0wney/gridcascade/pkg/server"
	gridtls "github.com/dd0wney/gridcascade/pkg/tls"
	"github.com/dd0wney/gridcascade/pkg/topology"
)

// systemMetricsInterval is how often uptime and runtime gauges refresh.
const systemMetricsInterval = 15 * time.Second

// run wires every component and blocks until ctx is cancelled or a
// component fails.
func run(ctx context.Context, cfg config.Config, logger logging.Logger) error {
	startedAt := time.Now()
	reg := metrics.DefaultRegistry()
	bus := pubsub.NewPubSub()
	defer bus.Shutdown()

	source, err := topology.OpenSource(ctx, cfg.Topology.SourceOptions())
	if err != nil {
		return fmt.Errorf("open topology source: %w", err)
	}
	defer source.Close()

	syncer := topology.NewSyncer(source,
		topology.WithSyncInterval(cfg.Topology.SyncInterval),
		topology.WithBus(bus),
		topology.WithLogger(logger),
		topology.WithMetrics(reg),
	)

	archive, err := config.OpenArchive(ctx, cfg.Archive)
	if err != nil {
		return err
	}

	store := centrality.NewStore()
	schedOpts := []centrality.SchedulerOption{
		centrality.WithInterval(cfg.Centrality.BatchInterval),
		centrality.WithBus(bus),
		centrality.WithMetrics(reg),
		centrality.WithLogger(logger),
	}
	if archive != nil {
		schedOpts = append(schedOpts, centrality.WithArchive(archive))
	}
	scheduler := centrality.NewScheduler(
		centrality.NewEngine(cfg.Centrality.EngineOptions(), logger),
		store, syncer, schedOpts...,
	)
	if err := scheduler.Restore(ctx); err != nil {
		logger.Warn("starting without archived snapshot", logging.Error(err))
	}

	ranker := ranking.NewRanker(
		ranking.WithMaxSnapshotAge(cfg.Centrality.MaxSnapshotAge),
		ranking.WithMetrics(reg),
	)
	loads, err := cfg.Risk.LoadReader()
	if err != nil {
		return fmt.Errorf("risk load profile: %w", err)
	}

	hc := health.NewHealthChecker()
	hc.RegisterReadinessCheck("topology", health.TopologyCheck(syncer.Current))
	hc.RegisterReadinessCheck("snapshot", health.SnapshotCheck(store, cfg.Centrality.MaxSnapshotAge))
	hc.RegisterCheck("topology", health.TopologyCheck(syncer.Current))
	hc.RegisterCheck("snapshot", health.SnapshotCheck(store, cfg.Centrality.MaxSnapshotAge))
	hc.RegisterCheck("scheduler", health.SchedulerCheck(scheduler.Status))
	hc.RegisterCheck("memory", health.MemoryCheck())

	serverOpts := []server.Option{
		server.WithLogger(logger),
		server.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
	}
	if cfg.Server.TLS.Enabled {
		tc, err := gridtls.ServerConfig(cfg.Server.TLS.Options())
		if err != nil {
			return fmt.Errorf("tls: %w", err)
		}
		info, err := gridtls.Inspect(tc)
		if err != nil {
			return fmt.Errorf("tls: %w", err)
		}
		hc.RegisterCheck("tls_certificate", health.CertificateCheck(info, cfg.Server.TLS.ExpiryWarning))
		serverOpts = append(serverOpts, server.WithTLSConfig(tc))
	}

	schema, err := graphql.GenerateSchema(graphql.Sources{Graphs: syncer, Snapshots: store, Ranker: ranker})
	if err != nil {
		return fmt.Errorf("build graphql schema: %w", err)
	}

	deps := api.Deps{
		Graphs:    syncer,
		Snapshots: store,
		Batch:     scheduler,
		Simulator: cascade.NewSimulator(
			cascade.WithLogger(logger),
			cascade.WithMetrics(reg),
			cascade.WithMaxSnapshotAge(cfg.Centrality.MaxSnapshotAge),
		),
		Ranker:    ranker,
		Assessor:  risk.NewAssessor(loads, loads.Location, reg),
		Health:    hc,
		Metrics:   reg,
		GraphQL:   graphql.NewGraphQLHandler(schema, graphql.DefaultMaxDepth, logger),
	}
	if cfg.Auth.Enabled {
		deps.Tokens, err = auth.NewJWTManager(cfg.Auth.Secret, cfg.Auth.Issuer, 12*time.Hour)
		if err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.Server.CORSOrigins
	apiServer, err := api.NewServer(deps,
		api.WithLogger(logger),
		api.WithRequestTimeout(cfg.Server.RequestTimeout),
		api.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		api.WithCORS(cors),
		api.WithRateLimit(middleware.DefaultRateLimitConfig()),
	)
	if err != nil {
		return err
	}

	serverOpts = append(serverOpts, server.WithReloadFunc(func(ctx context.Context) error {
		changed, err := syncer.Refresh(ctx)
		if err != nil {
			return err
		}
		if !changed {
			// An unchanged topology publishes no event, so recompute here.
			scheduler.Trigger()
		}
		return nil
	}))
	httpServer := server.NewGracefulServer(cfg.Server.Addr, apiServer.Handler(), serverOpts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return syncer.Run(gctx) })
	g.Go(func() error { return scheduler.Run(gctx) })
	g.Go(func() error { return httpServer.Run(gctx) })
	g.Go(func() error {
		ticker := time.NewTicker(systemMetricsInterval)
		defer ticker.Stop()
		for {
			reg.UpdateSystemMetrics(startedAt)
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})
	return g.Wait()
}
