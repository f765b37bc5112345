package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/passbi/passbi_planner/internal/logging"
)

// NewApp creates the fiber app serving the planner API. metricsHandler may be nil.
func NewApp(h *Handler, logger *slog.Logger, metricsHandler http.Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "PassBi Planner",
		ReadTimeout:           5 * time.Second,
		WriteTimeout:          15 * time.Second,
		IdleTimeout:           120 * time.Second,
		ErrorHandler:          ErrorHandler,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(RequestLogger(logger))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	app.Get("/health", h.Health)
	app.Get("/v2/plan", h.Plan)
	app.Get("/v2/plan/min-duration", h.MinDuration)
	app.Get("/v2/stops/nearby", h.StopsNearby)
	app.Get("/v2/routes/list", h.RoutesList)
	if metricsHandler != nil {
		app.Get("/metrics", adaptor.HTTPHandler(metricsHandler))
	}

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "endpoint not found")
	})

	return app
}

// RequestLogger logs every request and puts a request scoped logger in the user context
func RequestLogger(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		reqLogger := logger
		if id, ok := c.Locals(requestid.ConfigDefault.ContextKey).(string); ok {
			reqLogger = logger.With(slog.String("request_id", id))
		}
		c.SetUserContext(logging.WithLogger(c.UserContext(), reqLogger))

		err := c.Next()
		if err != nil {
			// Let the error handler set the status before logging it
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		logging.LogHTTPRequest(reqLogger, c.Method(), c.Path(), c.Response().StatusCode(),
			float64(time.Since(start).Microseconds())/1000)
		return nil
	}
}

// ErrorHandler renders handler errors as JSON
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	if code >= fiber.StatusInternalServerError {
		logging.LogError(logging.FromContext(c.UserContext()), "request failed", err,
			slog.String("path", c.Path()))
	}
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
