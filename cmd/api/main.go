package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/passbi/passbi_planner/internal/api"
	"github.com/passbi/passbi_planner/internal/cache"
	"github.com/passbi/passbi_planner/internal/config"
	"github.com/passbi/passbi_planner/internal/db"
	"github.com/passbi/passbi_planner/internal/graph"
	"github.com/passbi/passbi_planner/internal/gtfs"
	"github.com/passbi/passbi_planner/internal/logging"
	"github.com/passbi/passbi_planner/internal/metrics"
	"github.com/passbi/passbi_planner/internal/routing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger(os.Stdout, logging.ParseLevel(cfg.LogLevel))
	slog.SetDefault(logger)
	logger.Info("starting PassBi planner")

	collector := metrics.NewCollector()
	builder := graph.NewBuilder(logger, cfg.Planner.WalkSpeed, cfg.Planner.MaxWalkDistance)
	timetable := graph.GetTimetable()

	ctx := context.Background()
	var pool *pgxpool.Pool

	// Load the timetable: a GTFS zip when configured, the database otherwise
	if cfg.GTFSPath != "" {
		feed, err := gtfs.LoadStatic(cfg.GTFSPath, logger)
		if err != nil {
			logging.LogError(logger, "failed to load GTFS feed", err, slog.String("path", cfg.GTFSPath))
			os.Exit(1)
		}
		net, err := builder.Build(feed)
		if err != nil {
			logging.LogError(logger, "failed to build network", err)
			os.Exit(1)
		}
		timetable.Set(net)
	} else {
		p, err := db.GetDB()
		if err != nil {
			logging.LogError(logger, "failed to connect to database", err)
			os.Exit(1)
		}
		defer db.Close()
		pool = p
		if err := timetable.LoadFromDB(ctx, p, builder, logger); err != nil {
			logging.LogError(logger, "failed to load timetable", err)
			os.Exit(1)
		}
	}
	net := timetable.Network()
	collector.SetTimetable(len(net.Stops), net.Data.NumberOfRoutes())

	router := routing.NewRouter(timetable, routing.Options{
		WalkSpeed:    cfg.Planner.WalkSpeed,
		Slack:        cfg.Planner.Slack,
		SearchWindow: cfg.Planner.SearchWindow,
		Timeout:      cfg.Planner.Timeout,
		Costs:        cfg.Planner.Costs,
		Observer:     collector,
	}, logger)

	handler := api.NewHandler(router, timetable, logger).WithMetrics(collector)
	if pool != nil {
		handler.WithDB(pool)
	}

	if cfg.UseCache {
		redisCfg := cache.LoadConfigFromEnv()
		client, err := cache.GetClient()
		if err != nil {
			// Plans are still computed without the cache
			logging.LogError(logger, "redis unavailable, caching disabled", err)
		} else {
			defer cache.Close()
			handler.WithCache(cache.NewStore(client, redisCfg))
			logger.Info("redis connection established")
		}
	}

	var metricsHandler http.Handler = collector.Handler()
	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = collector.Serve(cfg.MetricsAddr, logger)
		metricsHandler = nil
	}

	app := api.NewApp(handler, logger, metricsHandler)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down gracefully")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logging.LogError(logger, "error during shutdown", err)
		}
		if metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}
	}()

	addr := fmt.Sprintf(":%s", cfg.Port)
	logger.Info("server listening",
		slog.String("addr", addr),
		slog.String("plan", fmt.Sprintf("http://localhost%s/v2/plan?from=LAT,LON&to=LAT,LON&time=H:MM", addr)))

	if err := app.Listen(addr); err != nil {
		logging.LogError(logger, "failed to start server", err)
		os.Exit(1)
	}
}
