package routes

import (
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"market-gateway/src/handlers"
	"market-gateway/src/middleware"
)

func SetupRoutes(app *fiber.App, gatewayHandler *handlers.GatewayHandler, availability *middleware.Availability) {
	rateLimitDisabled := os.Getenv("RATE_LIMIT_DISABLED") == "1"

	maxRequests := 100
	if envMax := os.Getenv("RATE_LIMIT_MAX"); envMax != "" {
		if parsed, err := strconv.Atoi(envMax); err == nil && parsed > 0 {
			maxRequests = parsed
		}
	}

	windowDuration := time.Second
	if envWindow := os.Getenv("RATE_LIMIT_WINDOW"); envWindow != "" {
		if parsed, err := time.ParseDuration(envWindow); err == nil && parsed > 0 {
			windowDuration = parsed
		}
	}

	app.Use(availability.Middleware())
	app.Use(middleware.RequestLogger())

	api := app.Group("/api/v1")

	if !rateLimitDisabled {
		rateLimiter := middleware.NewRateLimiter(maxRequests, windowDuration)
		api.Use(rateLimiter.Middleware())
	}

	api.Post("/orders", gatewayHandler.SubmitOrder)
	api.Get("/orderbook", gatewayHandler.GetOrderBook)
	api.Get("/stats", gatewayHandler.Stats)

	app.Get("/health", gatewayHandler.HealthCheck)
}
