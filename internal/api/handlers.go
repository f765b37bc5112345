package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/passbi/passbi_planner/internal/cache"
	"github.com/passbi/passbi_planner/internal/db"
	"github.com/passbi/passbi_planner/internal/graph"
	"github.com/passbi/passbi_planner/internal/gtfs"
	"github.com/passbi/passbi_planner/internal/logging"
	"github.com/passbi/passbi_planner/internal/metrics"
	"github.com/passbi/passbi_planner/internal/models"
	"github.com/passbi/passbi_planner/internal/raptor"
	"github.com/passbi/passbi_planner/internal/routing"
)

const (
	lockWait = 3 * time.Second
)

// PlanCache stores computed plans by query. *cache.Store implements it.
type PlanCache interface {
	GetPlans(ctx context.Context, key string) (map[string]*models.Plan, error)
	SetPlans(ctx context.Context, key string, plans map[string]*models.Plan) error
	AcquireLock(ctx context.Context, key string) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
	WaitForPlans(ctx context.Context, key string, maxWait time.Duration) (map[string]*models.Plan, error)
	HealthCheck(ctx context.Context) error
}

// Handler serves the planner endpoints
type Handler struct {
	router    *routing.Router
	timetable *graph.Timetable
	logger    *slog.Logger
	validate  *validator.Validate

	strategies []routing.Strategy

	cache   PlanCache          // nil disables caching
	db      *pgxpool.Pool      // nil when the timetable was loaded from a file
	metrics *metrics.Collector // optional
	now     func() time.Time
}

func NewHandler(router *routing.Router, tt *graph.Timetable, logger *slog.Logger) *Handler {
	return &Handler{
		router:    router,
		timetable: tt,
		logger:    logger,
		validate:  validator.New(),
		now:       time.Now,

		strategies: routing.GetAllStrategies(),
	}
}

// WithStrategies replaces the strategies computed for every plan request.
func (h *Handler) WithStrategies(strategies ...routing.Strategy) *Handler {
	h.strategies = strategies
	return h
}

func (h *Handler) WithCache(c PlanCache) *Handler {
	h.cache = c
	return h
}

func (h *Handler) WithDB(p *pgxpool.Pool) *Handler {
	h.db = p
	return h
}

func (h *Handler) WithMetrics(m *metrics.Collector) *Handler {
	h.metrics = m
	return h
}

// PlanResponse is the API response of /v2/plan
type PlanResponse struct {
	Plans map[string]*models.Plan `json:"plans"`
}

// Plan handles the /v2/plan endpoint. Every strategy is computed and cached
// together; the strategy parameter only narrows the response.
func (h *Handler) Plan(c *fiber.Ctx) error {
	pr, err := h.parsePlanRequest(c)
	if err != nil {
		return err
	}

	strategyName := c.Query("strategy")
	if strategyName != "" && !h.knownStrategy(strategyName) {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("unknown strategy %q", strategyName))
	}

	plans, err := h.computePlans(c.UserContext(), pr)
	if err != nil {
		return err
	}

	if strategyName != "" {
		plan, ok := plans[strategyName]
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no routes found between the specified locations")
		}
		plans = map[string]*models.Plan{strategyName: plan}
	}

	found := false
	for _, p := range plans {
		if len(p.Itineraries) > 0 {
			found = true
			break
		}
	}
	if !found {
		return fiber.NewError(fiber.StatusNotFound, "no routes found between the specified locations")
	}

	return c.JSON(PlanResponse{Plans: plans})
}

// computePlans runs every strategy, going through the cache when one is set
func (h *Handler) computePlans(ctx context.Context, pr routing.PlanRequest) (map[string]*models.Plan, error) {
	logger := logging.FromContext(ctx)
	if h.cache == nil {
		return h.router.PlanAll(ctx, pr, h.strategies)
	}

	key := cache.PlanKey(pr.FromLat, pr.FromLon, pr.ToLat, pr.ToLon, pr.Time, pr.ArriveBy)

	if plans, err := h.cache.GetPlans(ctx, key); err == nil && plans != nil {
		h.cacheHit()
		return plans, nil
	}
	h.cacheMiss()

	acquired, err := h.cache.AcquireLock(ctx, key)
	if err != nil {
		// Continue without lock (degrade gracefully)
		logging.LogError(logger, "failed to acquire plan lock", err)
	} else if !acquired {
		// Another request is computing this plan, wait for it
		if plans, err := h.cache.WaitForPlans(ctx, key, lockWait); err == nil && plans != nil {
			h.cacheHit()
			return plans, nil
		}
	}
	if acquired {
		defer func() {
			if err := h.cache.ReleaseLock(context.WithoutCancel(ctx), key); err != nil {
				logging.LogError(logger, "failed to release plan lock", err)
			}
		}()
	}

	plans, err := h.router.PlanAll(ctx, pr, h.strategies)
	if err != nil {
		return nil, err
	}

	// Partial or incomplete plans would be served for the whole TTL
	if len(plans) == len(h.strategies) && !anyIncomplete(plans) {
		if err := h.cache.SetPlans(ctx, key, plans); err != nil {
			logging.LogError(logger, "failed to cache plans", err)
		}
	}
	return plans, nil
}

// MinDurationResponse is the API response of /v2/plan/min-duration
type MinDurationResponse struct {
	DurationSeconds int `json:"duration_seconds"`
	Transfers       int `json:"transfers"`
}

// MinDuration handles the /v2/plan/min-duration endpoint
func (h *Handler) MinDuration(c *fiber.Ctx) error {
	pr, err := h.parsePlanRequest(c)
	if err != nil {
		return err
	}

	duration, transfers, err := h.router.MinDuration(c.UserContext(), pr)
	if err != nil {
		return err
	}
	if duration == raptor.Unreached {
		return fiber.NewError(fiber.StatusNotFound, "no routes found between the specified locations")
	}
	return c.JSON(MinDurationResponse{DurationSeconds: duration, Transfers: transfers})
}

// Health handles the /health endpoint
func (h *Handler) Health(c *fiber.Ctx) error {
	ctx := c.UserContext()
	checks := fiber.Map{}
	healthy := true

	if h.timetable.IsLoaded() {
		checks["timetable"] = "ok"
	} else {
		checks["timetable"] = "not loaded"
		healthy = false
	}

	if h.db != nil {
		checks["database"] = "ok"
		if err := db.HealthCheck(ctx, h.db); err != nil {
			checks["database"] = err.Error()
			healthy = false
		}
	}

	var poolStats map[string]interface{}
	if h.cache != nil {
		checks["redis"] = "ok"
		if err := h.cache.HealthCheck(ctx); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		}
		if s, ok := h.cache.(interface{ Stats() map[string]interface{} }); ok {
			poolStats = s.Stats()
		}
	}

	status := "healthy"
	httpStatus := fiber.StatusOK
	if !healthy {
		status = "unhealthy"
		httpStatus = fiber.StatusServiceUnavailable
	}

	body := fiber.Map{
		"status": status,
		"checks": checks,
	}
	if poolStats != nil {
		body["redis_pool"] = poolStats
	}
	return c.Status(httpStatus).JSON(body)
}

func (h *Handler) parsePlanRequest(c *fiber.Ctx) (routing.PlanRequest, error) {
	var pr routing.PlanRequest

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return pr, fiber.NewError(fiber.StatusBadRequest, "missing required parameters: from and to")
	}

	var err error
	if pr.FromLat, pr.FromLon, err = parseCoordinates(fromStr); err != nil {
		return pr, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid 'from' coordinates: %v", err))
	}
	if pr.ToLat, pr.ToLon, err = parseCoordinates(toStr); err != nil {
		return pr, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid 'to' coordinates: %v", err))
	}

	if timeStr := c.Query("time"); timeStr != "" {
		if pr.Time, err = parseClock(timeStr); err != nil {
			return pr, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid 'time': %v", err))
		}
	} else {
		now := h.now()
		pr.Time = now.Hour()*3600 + now.Minute()*60 + now.Second()
	}

	if v := c.Query("arrive_by"); v != "" {
		if pr.ArriveBy, err = strconv.ParseBool(v); err != nil {
			return pr, fiber.NewError(fiber.StatusBadRequest, "invalid 'arrive_by': expected true or false")
		}
	}

	if err := h.validate.Struct(pr); err != nil {
		return pr, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return pr, nil
}

// parseCoordinates parses "lat,lon" string into floats
func parseCoordinates(coordStr string) (lat, lon float64, err error) {
	parts := strings.Split(coordStr, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected format: lat,lon")
	}

	lat, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid latitude: %w", err)
	}

	lon, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid longitude: %w", err)
	}

	// Validate ranges
	if lat < -90 || lat > 90 {
		return 0, 0, fmt.Errorf("latitude must be between -90 and 90")
	}
	if lon < -180 || lon > 180 {
		return 0, 0, fmt.Errorf("longitude must be between -180 and 180")
	}

	return lat, lon, nil
}

// parseClock parses "H:MM" or "H:MM:SS" into seconds after midnight
func parseClock(s string) (int, error) {
	if strings.Count(s, ":") == 1 {
		s += ":00"
	}
	return gtfs.ParseTimeToSeconds(s)
}

func (h *Handler) knownStrategy(name string) bool {
	for _, s := range h.strategies {
		if s.Name() == name {
			return true
		}
	}
	return false
}

func anyIncomplete(plans map[string]*models.Plan) bool {
	for _, p := range plans {
		if p.Incomplete {
			return true
		}
	}
	return false
}

func (h *Handler) cacheHit() {
	if h.metrics != nil {
		h.metrics.CacheHits.Inc()
	}
}

func (h *Handler) cacheMiss() {
	if h.metrics != nil {
		h.metrics.CacheMisses.Inc()
	}
}

// statusFor maps planner errors to HTTP status codes
func statusFor(err error) int {
	var fe *fiber.Error
	var verr *raptor.ValidationError
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.As(err, &verr):
		return fiber.StatusBadRequest
	case errors.Is(err, routing.ErrNoOriginStops), errors.Is(err, routing.ErrNoDestinationStops):
		return fiber.StatusNotFound
	case errors.Is(err, raptor.ErrNoTransitData):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}
