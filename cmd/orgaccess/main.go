package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/platinummonkey/orgaccess/pkg/api"
	"github.com/platinummonkey/orgaccess/pkg/audit"
	"github.com/platinummonkey/orgaccess/pkg/config"
	"github.com/platinummonkey/orgaccess/pkg/db"
	"github.com/platinummonkey/orgaccess/pkg/menus"
	"github.com/platinummonkey/orgaccess/pkg/observability"
	"github.com/platinummonkey/orgaccess/pkg/orgs"
	"github.com/platinummonkey/orgaccess/pkg/permcache"
	"github.com/platinummonkey/orgaccess/pkg/rbac"
	"github.com/platinummonkey/orgaccess/pkg/seed"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

var (
	configPath = flag.String("config", os.Getenv("ORGACCESS_CONFIG"), "Path to a YAML config file")
	migrate    = flag.Bool("migrate", false, "Apply pending database migrations before serving")
	seedFile   = flag.String("seed", "", "Apply a seed file (\"default\" for the built-in catalog) before serving")
	seedOnly   = flag.Bool("seed-only", false, "Exit after migrations and seeding")
	seedWatch  = flag.Bool("seed-watch", false, "Re-apply the -seed file whenever it changes")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "orgaccess: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	log, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat, os.Stdout)
	if err != nil {
		return err
	}

	ctx := context.Background()

	providers, err := observability.InitOTel(ctx, cfg.Observability.OTel, log)
	if err != nil {
		return err
	}

	conn, err := db.Open(ctx, cfg.Database, log)
	if err != nil {
		return err
	}

	if *migrate {
		if err := db.RunMigrations(ctx, conn, log); err != nil {
			conn.Close()
			return err
		}
	}

	cache, err := permcache.New(ctx, cfg.Cache, log)
	if err != nil {
		conn.Close()
		return err
	}

	schema := orgs.NewSchemaCache()
	fields := cfg.Users.Fields
	if cfg.Users.AutoDetect {
		fields, err = orgs.DetectUserFields(ctx, conn)
		if err != nil {
			cache.Close()
			conn.Close()
			return err
		}
	}
	schema.Init(fields)

	orgStore := orgs.NewStore(conn, log.WithField("component", "orgs"), cache, schema)
	menuStore := menus.NewStore(conn, log.WithField("component", "menus"), cache)
	rbacStore := rbac.NewStore(conn, log.WithField("component", "rbac"), cache)
	checker := rbac.NewPermissionChecker(conn, orgStore, menuStore, cache, log.WithField("component", "checker"))

	if *seedFile != "" {
		if err := applySeed(ctx, rbacStore, menuStore, log); err != nil {
			cache.Close()
			conn.Close()
			return err
		}
	}
	if *seedOnly {
		cache.Close()
		return conn.Close()
	}

	optional := map[string]observability.Pinger{}
	if p, ok := cache.(observability.Pinger); ok {
		optional["cache"] = p
	}

	deps := api.Deps{
		Memberships:  orgStore,
		Roles:        rbacStore,
		Menus:        menuStore,
		Permissions:  checker,
		Audit:        audit.NewLogrusLogger(log),
		Health:       observability.NewHealthChecker(conn, optional),
		Log:          log,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	}

	if cfg.Observability.MetricsEnabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		observability.RegisterDBStats(registry, conn)

		metrics := observability.NewMetrics(registry)
		checker.SetRecorder(metrics)
		deps.Metrics = metrics
		deps.MetricsHandler = observability.MetricsHandler(registry)
	}

	srv := api.NewServer(deps)
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// shutdown runs these in reverse order
	shutdown := observability.NewShutdownManager(log, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.Register(func(context.Context) error { return conn.Close() })
	shutdown.Register(func(context.Context) error { return cache.Close() })
	shutdown.Register(func(ctx context.Context) error { return observability.ShutdownOTel(ctx, providers, log) })
	shutdown.Register(srv.Close)

	if cfg.Users.RefreshSchedule != "" {
		scheduler, err := scheduleSchemaRefresh(serveCtx, cfg.Users.RefreshSchedule, schema, conn, log)
		if err != nil {
			// shutdown has not started, so release what it would have
			observability.ShutdownOTel(ctx, providers, log)
			cache.Close()
			conn.Close()
			return err
		}
		shutdown.Register(func(ctx context.Context) error {
			select {
			case <-scheduler.Stop().Done():
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}

	if *seedWatch && *seedFile != "" && *seedFile != "default" {
		watchCtx, stopWatch := context.WithCancel(serveCtx)
		shutdown.Register(func(context.Context) error { stopWatch(); return nil })
		go func() {
			err := seed.Watch(watchCtx, *seedFile, log.WithField("component", "seed"), func(ctx context.Context, f *seed.File) error {
				_, err := seed.Apply(ctx, rbacStore, menuStore, f, log.WithField("component", "seed"))
				return err
			})
			if err != nil {
				log.WithError(err).Error("seed watcher stopped")
			}
		}()
	}

	var serveErr error
	go func() {
		log.WithField("addr", httpServer.Addr).Info("starting orgaccess server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server failed")
			serveErr = err
			cancel()
		}
	}()

	if err := shutdown.WaitForSignal(serveCtx); err != nil {
		return err
	}
	log.Info("server stopped")
	return serveErr
}

func applySeed(ctx context.Context, roles *rbac.Store, menuStore *menus.Store, log logrus.FieldLogger) error {
	var (
		file *seed.File
		err  error
	)
	if *seedFile == "default" {
		file, err = seed.Default()
	} else {
		file, err = seed.Load(*seedFile)
	}
	if err != nil {
		return err
	}

	_, err = seed.Apply(ctx, roles, menuStore, file, log.WithField("component", "seed"))
	return err
}

// scheduleSchemaRefresh re-detects the optional user columns on schedule
func scheduleSchemaRefresh(ctx context.Context, schedule string, schema *orgs.SchemaCache, conn *sql.DB, log logrus.FieldLogger) (*cron.Cron, error) {
	log = log.WithField("component", "schema-refresh")
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		fields, err := schema.Refresh(ctx, conn)
		if err != nil {
			log.WithError(err).Warn("failed to refresh user fields")
			return
		}
		log.WithField("fields", fields).Debug("user fields refreshed")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule user field refresh: %w", err)
	}

	c.Start()
	log.WithField("schedule", schedule).Info("user field refresh scheduled")
	return c, nil
}
