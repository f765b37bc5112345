package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/passbi/passbi_planner/internal/db"
	"github.com/passbi/passbi_planner/internal/graph"
	"github.com/passbi/passbi_planner/internal/gtfs"
	"github.com/passbi/passbi_planner/internal/logging"
)

func main() {
	agencyID := flag.String("agency-id", "", "Agency ID for this GTFS feed (required)")
	gtfsPath := flag.String("gtfs", "", "Path to GTFS ZIP file (required)")
	check := flag.Bool("check", false, "Build the network from the feed before importing it")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	if *agencyID == "" || *gtfsPath == "" {
		fmt.Println("Usage: passbi-import --agency-id=<id> --gtfs=<path.zip> [--check]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger(os.Stdout, logging.ParseLevel(*logLevel))
	if err := run(context.Background(), *agencyID, *gtfsPath, *check, logger); err != nil {
		logging.LogError(logger, "import failed", err, slog.String("agency_id", *agencyID))
		os.Exit(1)
	}
}

func run(ctx context.Context, agencyID, gtfsPath string, check bool, logger *slog.Logger) error {
	startTime := time.Now()

	feed, err := gtfs.LoadStatic(gtfsPath, logger)
	if err != nil {
		return err
	}

	if check {
		net, err := graph.NewBuilder(logger, 0, 0).Build(feed)
		if err != nil {
			return fmt.Errorf("feed does not build a network: %w", err)
		}
		logging.LogOperation(logger, "network check passed",
			slog.Int("stops", len(net.Stops)),
			slog.Int("patterns", net.Data.NumberOfRoutes()))
	}

	pool, err := db.GetDB()
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		return err
	}
	if _, err := db.ImportFeed(ctx, pool, agencyID, feed, logger); err != nil {
		return err
	}

	logging.LogOperation(logger, "import completed", slog.Duration("duration", time.Since(startTime)))
	return nil
}
