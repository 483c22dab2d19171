package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"market-gateway/src/config"
	"market-gateway/src/execution"
	"market-gateway/src/feed"
	"market-gateway/src/handlers"
	"market-gateway/src/latency"
	"market-gateway/src/logger"
	"market-gateway/src/middleware"
	"market-gateway/src/pipeline"
	"market-gateway/src/publish"
	"market-gateway/src/routes"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.InitLogger(cfg.App.LogLevel, cfg.App.LogFile, cfg.App.LogFormat)
	log := logger.GetLogger()

	log.Info().
		Str("symbol", cfg.Feed.Symbol).
		Float64("base_price", cfg.Feed.BasePrice).
		Msg("Initializing Market Data Gateway")

	tracker := latency.NewTracker(cfg.Pipeline.LatencyBuffer)
	engine := execution.NewEngine(cfg.Execution.IdempotencyWindow)
	simFeed := feed.NewSimulated(cfg.Feed.Symbol, cfg.Feed.BasePrice)

	var sink publish.Sink
	if cfg.Kafka.Enabled() {
		sink = publish.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.TickTopic, cfg.Kafka.FillTopic, cfg.Kafka.BatchBytes)
		log.Info().
			Strs("brokers", cfg.Kafka.Brokers).
			Str("tick_topic", cfg.Kafka.TickTopic).
			Str("fill_topic", cfg.Kafka.FillTopic).
			Msg("Kafka sink enabled")
	} else {
		sink = publish.NewLogSink()
		log.Info().Msg("No Kafka brokers configured, using log sink")
	}

	pipe := pipeline.New(pipeline.Config{
		Symbol:             cfg.Feed.Symbol,
		TickInterval:       cfg.Feed.TickInterval,
		TickBuffer:         cfg.Pipeline.TickBuffer,
		FillBuffer:         cfg.Pipeline.FillBuffer,
		OrderBuffer:        cfg.Pipeline.OrderBuffer,
		BookDepth:          cfg.Pipeline.BookDepth,
		ReportInterval:     cfg.Pipeline.ReportInterval,
		HeartbeatInterval:  cfg.Pipeline.HeartbeatInterval,
		StalenessThreshold: cfg.Pipeline.StalenessThreshold,
		DrainTimeout:       cfg.Pipeline.DrainTimeout,
	}, simFeed, sink, tracker, engine)

	pipe.Start(context.Background())

	gatewayHandler := handlers.NewGatewayHandler(pipe, tracker, engine)

	availability := middleware.DefaultAvailability(func() bool {
		for _, state := range pipe.StageStates() {
			if state == "stopped" {
				return false
			}
		}
		return true
	})

	app := fiber.New(fiber.Config{
		AppName: cfg.App.Name,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			log.Error().
				Str("path", c.Path()).
				Str("method", c.Method()).
				Int("status", code).
				Str("error", err.Error()).
				Msg("Request error")

			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(recover.New())
	routes.SetupRoutes(app, gatewayHandler, availability)

	port := fmt.Sprintf(":%d", cfg.App.Port)

	serverError := make(chan error, 1)

	go func() {
		if err := app.Listen(port); err != nil {
			// edge case: ignore shutdown errors, only report real errors
			if err.Error() != "server is shutting down" {
				serverError <- err
			}
		}
	}()

	select {
	case err := <-serverError:
		log.Fatal().
			Err(err).
			Str("port", port).
			Str("hint", "Port may be already in use. Try: APP_PORT=3000 go run main.go").
			Msg("Server failed to start")
	default:
		log.Info().
			Str("port", port).
			Msg("Market Data Gateway started")

		log.Info().
			Strs("endpoints", []string{
				"POST /api/v1/orders",
				"GET  /api/v1/orderbook",
				"GET  /api/v1/stats",
				"GET  /health",
			}).
			Msg("API endpoints registered")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-quit
	log.Info().Msg("Received shutdown signal, draining...")
	availability.SetDraining()

	shutdownTimeout := 10 * time.Second
	if envTimeout := os.Getenv("SHUTDOWN_TIMEOUT"); envTimeout != "" {
		if parsed, err := time.ParseDuration(envTimeout); err == nil && parsed > 0 {
			shutdownTimeout = parsed
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		// edge case: timeout during shutdown is acceptable
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn().
				Dur("timeout", shutdownTimeout).
				Msg("HTTP shutdown timeout exceeded")
		} else {
			log.Error().
				Err(err).
				Msg("Error during HTTP shutdown")
		}
	}

	pipe.Stop()

	if err := sink.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing publish sink")
	}

	log.Info().Msg("Shutdown complete")
	logger.CloseLogger()
}
