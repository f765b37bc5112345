package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/passbi/passbi_planner/internal/gtfs"
)

const batchSize = 1000

// ImportStats counts the rows written by an import
type ImportStats struct {
	Stops     int
	Routes    int
	Trips     int
	StopTimes int
	Transfers int
}

// ImportFeed writes a parsed feed into the timetable tables. Stops and routes
// are upserted; the agency's trips, stop times and transfers are replaced.
func ImportFeed(ctx context.Context, p *pgxpool.Pool, agencyID string, feed *gtfs.Feed, logger *slog.Logger) (ImportStats, error) {
	startTime := time.Now()
	var stats ImportStats

	tx, err := p.Begin(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := sendBatches(ctx, tx, stopRows(agencyID, feed), `
		INSERT INTO stop (id, name, lat, lon, agency_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    lat = EXCLUDED.lat,
		    lon = EXCLUDED.lon,
		    agency_id = EXCLUDED.agency_id
	`); err != nil {
		return stats, fmt.Errorf("failed to import stops: %w", err)
	}
	stats.Stops = len(feed.Stops)

	if err := sendBatches(ctx, tx, routeRows(agencyID, feed), `
		INSERT INTO route (id, agency_id, short_name, long_name, mode)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET agency_id = EXCLUDED.agency_id,
		    short_name = EXCLUDED.short_name,
		    long_name = EXCLUDED.long_name,
		    mode = EXCLUDED.mode
	`); err != nil {
		return stats, fmt.Errorf("failed to import routes: %w", err)
	}
	stats.Routes = len(feed.Routes)

	for _, table := range []string{"stop_time", "trip", "transfer"} {
		if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE agency_id = $1", table), agencyID); err != nil {
			return stats, fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"trip"},
		[]string{"trip_id", "agency_id", "route_id", "service_id", "headsign"},
		pgx.CopyFromRows(tripRows(agencyID, feed)))
	if err != nil {
		return stats, fmt.Errorf("failed to import trips: %w", err)
	}
	stats.Trips = int(n)

	n, err = tx.CopyFrom(ctx, pgx.Identifier{"stop_time"},
		[]string{"trip_id", "agency_id", "stop_id", "stop_sequence", "arrival_seconds", "departure_seconds"},
		pgx.CopyFromRows(stopTimeRows(agencyID, feed)))
	if err != nil {
		return stats, fmt.Errorf("failed to import stop_times: %w", err)
	}
	stats.StopTimes = int(n)

	n, err = tx.CopyFrom(ctx, pgx.Identifier{"transfer"},
		[]string{"agency_id", "from_stop_id", "to_stop_id", "from_trip_id", "to_trip_id", "transfer_type", "min_transfer_time"},
		pgx.CopyFromRows(transferRows(agencyID, feed)))
	if err != nil {
		return stats, fmt.Errorf("failed to import transfers: %w", err)
	}
	stats.Transfers = int(n)

	if err := tx.Commit(ctx); err != nil {
		return stats, fmt.Errorf("failed to commit import: %w", err)
	}

	logger.Info("feed imported",
		slog.String("agency_id", agencyID),
		slog.Int("stops", stats.Stops),
		slog.Int("routes", stats.Routes),
		slog.Int("trips", stats.Trips),
		slog.Int("stop_times", stats.StopTimes),
		slog.Int("transfers", stats.Transfers),
		slog.Duration("elapsed", time.Since(startTime)))
	return stats, nil
}

// sendBatches queues one statement per row, flushing every batchSize rows
func sendBatches(ctx context.Context, tx pgx.Tx, rows [][]any, sql string) error {
	for start := 0; start < len(rows); start += batchSize {
		end := min(start+batchSize, len(rows))
		batch := &pgx.Batch{}
		for _, row := range rows[start:end] {
			batch.Queue(sql, row...)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("batch at row %d: %w", start, err)
		}
	}
	return nil
}

func stopRows(agencyID string, feed *gtfs.Feed) [][]any {
	rows := make([][]any, 0, len(feed.Stops))
	for _, s := range feed.Stops {
		rows = append(rows, []any{s.StopID, s.StopName, s.Lat, s.Lon, agencyID})
	}
	return rows
}

func routeRows(agencyID string, feed *gtfs.Feed) [][]any {
	rows := make([][]any, 0, len(feed.Routes))
	for _, r := range feed.Routes {
		mode := r.Mode
		if mode == "" {
			mode = gtfs.InferMode(r)
		}
		rows = append(rows, []any{r.RouteID, agencyID, r.ShortName, r.LongName, string(mode)})
	}
	return rows
}

func tripRows(agencyID string, feed *gtfs.Feed) [][]any {
	rows := make([][]any, 0, len(feed.Trips))
	for _, t := range feed.Trips {
		rows = append(rows, []any{t.TripID, agencyID, t.RouteID, t.ServiceID, t.Headsign})
	}
	return rows
}

func stopTimeRows(agencyID string, feed *gtfs.Feed) [][]any {
	rows := make([][]any, 0, len(feed.StopTimes))
	for _, st := range feed.StopTimes {
		rows = append(rows, []any{st.TripID, agencyID, st.StopID, st.StopSequence, st.ArrivalTime, st.DepartureTime})
	}
	return rows
}

func transferRows(agencyID string, feed *gtfs.Feed) [][]any {
	rows := make([][]any, 0, len(feed.Transfers))
	for _, t := range feed.Transfers {
		t := t // per-iteration copy: minTime points into t (go < 1.22 loop semantics)
		var minTime *int
		if t.MinTransferTime > 0 {
			minTime = &t.MinTransferTime
		}
		rows = append(rows, []any{agencyID, t.FromStopID, t.ToStopID,
			nullable(t.FromTripID), nullable(t.ToTripID), t.TransferType, minTime})
	}
	return rows
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
