package gtfs

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/passbi/passbi_planner/internal/models"
)

// InferMode determines the transit mode from a GTFS route
// Priority: keyword matching, then route_type field, default to BUS
func InferMode(route models.GTFSRoute) models.TransitMode {
	routeName := strings.ToUpper(route.ShortName + " " + route.LongName)

	if strings.Contains(routeName, "BRT") || strings.Contains(routeName, "RAPID") {
		return models.ModeBRT
	}
	if strings.Contains(routeName, "TER") || strings.Contains(routeName, "TRAIN") || strings.Contains(routeName, "RAIL") {
		return models.ModeTER
	}
	if strings.Contains(routeName, "FERRY") || strings.Contains(routeName, "BOAT") {
		return models.ModeFerry
	}
	if strings.Contains(routeName, "TRAM") {
		return models.ModeTram
	}

	// https://developers.google.com/transit/gtfs/reference#routestxt
	switch route.RouteType {
	case 0, 5, 6, 7: // Tram, cable tram, aerial lift, funicular
		return models.ModeTram
	case 1: // Subway, Metro
		return models.ModeBRT
	case 2: // Rail
		return models.ModeTER
	case 3:
		return models.ModeBus
	case 4:
		return models.ModeFerry
	}

	return models.ModeBus
}

// HaversineDistance calculates the distance between two points in meters
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadius = 6371000 // meters

	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}

// ParseTimeToSeconds converts GTFS time format (HH:MM:SS) to seconds
// Handles times >= 24:00:00 (next day service)
func ParseTimeToSeconds(timeStr string) (int, error) {
	if timeStr == "" {
		return 0, fmt.Errorf("empty time string")
	}

	parts := strings.Split(strings.TrimSpace(timeStr), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid time format: %s", timeStr)
	}

	var values [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid time format: %s", timeStr)
		}
		values[i] = v
	}
	if values[1] > 59 || values[2] > 59 {
		return 0, fmt.Errorf("invalid time format: %s", timeStr)
	}

	return values[0]*3600 + values[1]*60 + values[2], nil
}

// ValidateAndCleanStops removes stops with invalid coordinates
func ValidateAndCleanStops(stops []models.GTFSStop, logger *slog.Logger) []models.GTFSStop {
	cleaned := []models.GTFSStop{}

	for _, stop := range stops {
		switch {
		case stop.Lat < -90 || stop.Lat > 90:
			logger.Warn("invalid latitude", slog.String("stop_id", stop.StopID), slog.Float64("lat", stop.Lat))
			continue
		case stop.Lon < -180 || stop.Lon > 180:
			logger.Warn("invalid longitude", slog.String("stop_id", stop.StopID), slog.Float64("lon", stop.Lon))
			continue
		case stop.Lat == 0 && stop.Lon == 0:
			logger.Warn("stop has null island coordinates, skipping", slog.String("stop_id", stop.StopID))
			continue
		}

		cleaned = append(cleaned, stop)
	}

	if len(cleaned) < len(stops) {
		logger.Info("cleaned stops", slog.Int("removed", len(stops)-len(cleaned)))
	}

	return cleaned
}
