package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/passbi/passbi_planner/internal/gtfs"
	"github.com/passbi/passbi_planner/internal/models"
)

const (
	massTransitRadius = 2000 // meters
	regularRadius     = 1000 // meters
	maxMassTransit    = 2
	maxRegular        = 3

	undefinedTable = "42P01"
)

// Timetable holds the loaded network in memory. The network is replaced as a whole on
// reload; searches keep using the network they started with.
type Timetable struct {
	mu      sync.RWMutex
	network *Network
	loaded  bool
}

var (
	globalTimetable     *Timetable
	globalTimetableOnce sync.Once
)

// GetTimetable returns the singleton in-memory timetable
func GetTimetable() *Timetable {
	globalTimetableOnce.Do(func() {
		globalTimetable = &Timetable{}
	})
	return globalTimetable
}

// Set swaps in a new network
func (t *Timetable) Set(n *Network) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.network = n
	t.loaded = n != nil
}

// Network returns the current network, nil before the first load
func (t *Timetable) Network() *Network {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.network
}

// IsLoaded returns true if a network has been loaded
func (t *Timetable) IsLoaded() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.loaded
}

// LoadFromDB reads the imported feed tables from PostgreSQL and builds the network.
// The transfer table is optional.
func (t *Timetable) LoadFromDB(ctx context.Context, db *pgxpool.Pool, b *Builder, logger *slog.Logger) error {
	startTime := time.Now()
	logger.Info("loading timetable from database")

	feed, err := loadFeed(ctx, db, logger)
	if err != nil {
		return err
	}

	n, err := b.Build(feed)
	if err != nil {
		return fmt.Errorf("failed to build network: %w", err)
	}
	t.Set(n)

	logger.Info("timetable loaded",
		slog.Duration("elapsed", time.Since(startTime)),
		slog.Int("stops", len(feed.Stops)),
		slog.Int("trips", len(feed.Trips)),
		slog.Int("stop_times", len(feed.StopTimes)))
	return nil
}

func loadFeed(ctx context.Context, db *pgxpool.Pool, logger *slog.Logger) (*gtfs.Feed, error) {
	feed := &gtfs.Feed{}

	stopRows, err := db.Query(ctx, `SELECT id, COALESCE(name, id), lat, lon FROM stop`)
	if err != nil {
		return nil, fmt.Errorf("failed to load stops: %w", err)
	}
	for stopRows.Next() {
		var s models.GTFSStop
		if err := stopRows.Scan(&s.StopID, &s.StopName, &s.Lat, &s.Lon); err != nil {
			logger.Warn("failed to scan stop", slog.Any("error", err))
			continue
		}
		feed.Stops = append(feed.Stops, s)
	}
	stopRows.Close()
	if err := stopRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load stops: %w", err)
	}
	feed.Stops = gtfs.ValidateAndCleanStops(feed.Stops, logger)

	routeRows, err := db.Query(ctx, `
		SELECT id, COALESCE(agency_id, ''), COALESCE(short_name, ''), COALESCE(long_name, ''), mode
		FROM route
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load routes: %w", err)
	}
	for routeRows.Next() {
		var r models.GTFSRoute
		if err := routeRows.Scan(&r.RouteID, &r.AgencyID, &r.ShortName, &r.LongName, &r.Mode); err != nil {
			logger.Warn("failed to scan route", slog.Any("error", err))
			continue
		}
		feed.Routes = append(feed.Routes, r)
	}
	routeRows.Close()
	if err := routeRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load routes: %w", err)
	}

	tripRows, err := db.Query(ctx, `
		SELECT trip_id, route_id, COALESCE(service_id, ''), COALESCE(headsign, '')
		FROM trip
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load trips: %w", err)
	}
	for tripRows.Next() {
		var tr models.GTFSTrip
		if err := tripRows.Scan(&tr.TripID, &tr.RouteID, &tr.ServiceID, &tr.Headsign); err != nil {
			logger.Warn("failed to scan trip", slog.Any("error", err))
			continue
		}
		feed.Trips = append(feed.Trips, tr)
	}
	tripRows.Close()
	if err := tripRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load trips: %w", err)
	}

	stRows, err := db.Query(ctx, `
		SELECT trip_id, stop_id, stop_sequence, arrival_seconds, departure_seconds
		FROM stop_time
		ORDER BY trip_id, stop_sequence
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load stop times: %w", err)
	}
	for stRows.Next() {
		var st models.GTFSStopTime
		if err := stRows.Scan(&st.TripID, &st.StopID, &st.StopSequence, &st.ArrivalTime, &st.DepartureTime); err != nil {
			logger.Warn("failed to scan stop time", slog.Any("error", err))
			continue
		}
		feed.StopTimes = append(feed.StopTimes, st)
	}
	stRows.Close()
	if err := stRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load stop times: %w", err)
	}

	transfers, err := loadTransfers(ctx, db, logger)
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pgErr) && pgErr.Code == undefinedTable:
		logger.Warn("no transfer table, walking transfers will be generated")
	case err != nil:
		return nil, err
	}
	feed.Transfers = transfers

	return feed, nil
}

func loadTransfers(ctx context.Context, db *pgxpool.Pool, logger *slog.Logger) ([]models.GTFSTransfer, error) {
	rows, err := db.Query(ctx, `
		SELECT from_stop_id, to_stop_id, COALESCE(from_trip_id, ''), COALESCE(to_trip_id, ''),
		       transfer_type, COALESCE(min_transfer_time, 0)
		FROM transfer
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load transfers: %w", err)
	}
	defer rows.Close()

	var transfers []models.GTFSTransfer
	for rows.Next() {
		var tr models.GTFSTransfer
		if err := rows.Scan(&tr.FromStopID, &tr.ToStopID, &tr.FromTripID, &tr.ToTripID,
			&tr.TransferType, &tr.MinTransferTime); err != nil {
			logger.Warn("failed to scan transfer", slog.Any("error", err))
			continue
		}
		transfers = append(transfers, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load transfers: %w", err)
	}
	return transfers, nil
}

// NearbyStop is a stop found near a coordinate
type NearbyStop struct {
	Index    int
	Stop     models.Stop
	Distance float64 // meters
}

// FindNearestStops finds the stops to link a coordinate to. BRT/TER stops are searched
// within a wider radius (2km) to prioritize mass transit: up to two of them come first,
// followed by up to three regular stops within 1km.
func (n *Network) FindNearestStops(lat, lon float64, limit int) []NearbyStop {
	var massTransitStops, regularStops []NearbyStop
	for i, s := range n.Stops {
		d := gtfs.HaversineDistance(lat, lon, s.Lat, s.Lon)
		switch {
		case n.massTransit[i] && d <= massTransitRadius:
			massTransitStops = append(massTransitStops, NearbyStop{Index: i, Stop: s, Distance: d})
		case d <= regularRadius:
			regularStops = append(regularStops, NearbyStop{Index: i, Stop: s, Distance: d})
		}
	}

	byDistance := func(stops []NearbyStop) {
		sort.Slice(stops, func(i, j int) bool { return stops[i].Distance < stops[j].Distance })
	}
	byDistance(massTransitStops)
	byDistance(regularStops)

	result := append(massTransitStops[:min(maxMassTransit, len(massTransitStops))],
		regularStops[:min(maxRegular, len(regularStops))]...)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}
