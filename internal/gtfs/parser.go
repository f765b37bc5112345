package gtfs

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jamespfennell/gtfs"
	"github.com/passbi/passbi_planner/internal/models"
)

// Feed holds the parts of a GTFS static feed the planner needs
type Feed struct {
	Stops     []models.GTFSStop
	Routes    []models.GTFSRoute
	Trips     []models.GTFSTrip
	StopTimes []models.GTFSStopTime
	Transfers []models.GTFSTransfer
}

// LoadStatic reads and parses a GTFS zip file
func LoadStatic(path string, logger *slog.Logger) (*Feed, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading local GTFS file: %w", err)
	}
	return ParseStatic(b, logger)
}

// ParseStatic parses the bytes of a GTFS zip file
func ParseStatic(b []byte, logger *slog.Logger) (*Feed, error) {
	static, err := gtfs.ParseStatic(b, gtfs.ParseStaticOptions{})
	if err != nil {
		return nil, fmt.Errorf("error parsing GTFS data: %w", err)
	}
	feed := FromStatic(static)
	feed.Stops = ValidateAndCleanStops(feed.Stops, logger)

	logger.Info("parsed GTFS feed",
		slog.Int("stops", len(feed.Stops)),
		slog.Int("routes", len(feed.Routes)),
		slog.Int("trips", len(feed.Trips)),
		slog.Int("stop_times", len(feed.StopTimes)),
		slog.Int("transfers", len(feed.Transfers)))
	return feed, nil
}

// FromStatic converts a parsed feed. Parent stations are left out since trips never
// stop at them.
func FromStatic(static *gtfs.Static) *Feed {
	feed := &Feed{}

	for _, s := range static.Stops {
		if s.Type == gtfs.StopType_Station || s.Latitude == nil || s.Longitude == nil {
			continue
		}
		feed.Stops = append(feed.Stops, models.GTFSStop{
			StopID:   s.Id,
			StopName: s.Name,
			Lat:      *s.Latitude,
			Lon:      *s.Longitude,
		})
	}

	for _, r := range static.Routes {
		route := models.GTFSRoute{
			RouteID:   r.Id,
			ShortName: r.ShortName,
			LongName:  r.LongName,
			RouteType: int(r.Type),
		}
		if r.Agency != nil {
			route.AgencyID = r.Agency.Id
		}
		route.Mode = InferMode(route)
		feed.Routes = append(feed.Routes, route)
	}

	for _, trip := range static.Trips {
		if trip.Route == nil {
			continue
		}
		t := models.GTFSTrip{
			RouteID:  trip.Route.Id,
			TripID:   trip.ID,
			Headsign: trip.Headsign,
		}
		if trip.Service != nil {
			t.ServiceID = trip.Service.Id
		}
		feed.Trips = append(feed.Trips, t)

		for _, st := range trip.StopTimes {
			if st.Stop == nil {
				continue
			}
			arr, dep := seconds(st.ArrivalTime), seconds(st.DepartureTime)
			if arr == 0 {
				arr = dep
			}
			if dep == 0 {
				dep = arr
			}
			feed.StopTimes = append(feed.StopTimes, models.GTFSStopTime{
				TripID:        trip.ID,
				StopID:        st.Stop.Id,
				StopSequence:  st.StopSequence,
				ArrivalTime:   arr,
				DepartureTime: dep,
			})
		}
	}

	for _, tr := range static.Transfers {
		if tr.From == nil || tr.To == nil {
			continue
		}
		transfer := models.GTFSTransfer{
			FromStopID:   tr.From.Id,
			ToStopID:     tr.To.Id,
			TransferType: int(tr.Type),
		}
		if tr.MinTransferTime != nil {
			transfer.MinTransferTime = int(*tr.MinTransferTime)
		}
		feed.Transfers = append(feed.Transfers, transfer)
	}

	return feed
}

func seconds(d time.Duration) int { return int(d / time.Second) }
