package api

import (
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/passbi/passbi_planner/internal/raptor"
)

const (
	maxNearbyStops = 20
	maxRadius      = 5000
)

// NearbyStopsResponse represents the response for nearby stops
type NearbyStopsResponse struct {
	Stops []NearbyStop `json:"stops"`
}

// NearbyRouteInfo represents a route serving a nearby stop
type NearbyRouteInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Mode string `json:"mode"`
}

// NearbyStop represents a nearby stop with its routes
type NearbyStop struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Lat         float64           `json:"lat"`
	Lon         float64           `json:"lon"`
	DistanceM   int               `json:"distance_meters"`
	Modes       []string          `json:"modes"`
	Routes      []NearbyRouteInfo `json:"routes"`
	RoutesCount int               `json:"routes_count"`
}

// StopsNearby handles the /v2/stops/nearby endpoint
func (h *Handler) StopsNearby(c *fiber.Ctx) error {
	latStr := c.Query("lat")
	lonStr := c.Query("lon")
	if latStr == "" || lonStr == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing required parameters: lat and lon")
	}

	lat, lon, err := parseCoordinates(latStr + "," + lonStr)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	radius, err := strconv.Atoi(c.Query("radius", "500"))
	if err != nil || radius < 0 || radius > maxRadius {
		return fiber.NewError(fiber.StatusBadRequest, "invalid radius (must be between 0 and 5000 meters)")
	}

	net := h.timetable.Network()
	if net == nil {
		return raptor.ErrNoTransitData
	}

	stops := []NearbyStop{}
	for _, ns := range net.StopsWithin(lat, lon, float64(radius), maxNearbyStops) {
		stop := NearbyStop{
			ID:        ns.Stop.ID,
			Name:      ns.Stop.Name,
			Lat:       ns.Stop.Lat,
			Lon:       ns.Stop.Lon,
			DistanceM: int(math.Round(ns.Distance)),
			Modes:     []string{},
			Routes:    []NearbyRouteInfo{},
		}
		seen := make(map[string]bool)
		for _, r := range net.RoutesAt(ns.Index) {
			stop.Routes = append(stop.Routes, NearbyRouteInfo{ID: r.ID, Name: r.Name, Mode: r.Mode})
			if !seen[r.Mode] {
				seen[r.Mode] = true
				stop.Modes = append(stop.Modes, r.Mode)
			}
		}
		stop.RoutesCount = len(stop.Routes)
		stops = append(stops, stop)
	}

	return c.JSON(NearbyStopsResponse{Stops: stops})
}

// RoutesListResponse represents the response for routes list
type RoutesListResponse struct {
	Routes []RouteInfo `json:"routes"`
	Total  int         `json:"total"`
}

// RouteInfo represents route information
type RouteInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Mode       string `json:"mode"`
	StopsCount int    `json:"stops_count"`
}

// RoutesList handles the /v2/routes/list endpoint
func (h *Handler) RoutesList(c *fiber.Ctx) error {
	mode := c.Query("mode") // Optional: filter by mode (BUS, BRT, TER)

	limit := 100
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 {
			limit = min(parsedLimit, 1000)
		}
	}

	net := h.timetable.Network()
	if net == nil {
		return raptor.ErrNoTransitData
	}

	routes := []RouteInfo{}
	for _, r := range net.Routes(mode) {
		if len(routes) == limit {
			break
		}
		routes = append(routes, RouteInfo{ID: r.ID, Name: r.Name, Mode: r.Mode, StopsCount: r.Stops})
	}

	return c.JSON(RoutesListResponse{
		Routes: routes,
		Total:  len(routes),
	})
}

