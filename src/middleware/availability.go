package middleware

import (
	"os"
	"strconv"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Availability gates the API surface on gateway readiness: a readiness probe
// supplied by the caller, an optional in-flight request cap, and a drain flag
// flipped during shutdown so new requests fail fast while the pipeline
// finishes its queues.
type Availability struct {
	draining    atomic.Bool
	maxInFlight int64
	inFlight    atomic.Int64
	ready       func() bool
}

func NewAvailability(maxInFlight int64, ready func() bool) *Availability {
	return &Availability{
		maxInFlight: maxInFlight,
		ready:       ready,
	}
}

// SetDraining marks the gateway as shutting down. Subsequent requests get an
// immediate 503 instead of racing the pipeline drain.
func (a *Availability) SetDraining() {
	if !a.draining.Swap(true) {
		log.Info().Msg("Gateway draining, rejecting new requests")
	}
}

func (a *Availability) InFlight() int64 {
	return a.inFlight.Load()
}

func (a *Availability) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// edge case: health check always available
		if c.Path() == "/health" {
			return c.Next()
		}

		if a.draining.Load() {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Gateway is shutting down",
			})
		}

		if a.ready != nil && !a.ready() {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Gateway is not ready",
			})
		}

		// edge case: check overload only if a cap is set
		if a.maxInFlight > 0 {
			current := a.inFlight.Load()
			if current >= a.maxInFlight {
				log.Warn().
					Str("path", c.Path()).
					Str("method", c.Method()).
					Int64("in_flight", current).
					Int64("max_in_flight", a.maxInFlight).
					Msg("Request rejected: gateway overloaded")
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"error": "Gateway is overloaded, retry later",
				})
			}
		}

		a.inFlight.Add(1)
		defer a.inFlight.Add(-1)

		return c.Next()
	}
}

// DefaultAvailability reads the in-flight cap from MAX_CONCURRENT_REQUESTS;
// unset or zero disables overload protection.
func DefaultAvailability(ready func() bool) *Availability {
	maxInFlight := int64(0)

	if envMax := os.Getenv("MAX_CONCURRENT_REQUESTS"); envMax != "" {
		if parsed, err := strconv.ParseInt(envMax, 10, 64); err == nil && parsed > 0 {
			maxInFlight = parsed
			log.Info().
				Int64("max_concurrent_requests", maxInFlight).
				Msg("Overload protection enabled")
		}
	}

	return NewAvailability(maxInFlight, ready)
}
