package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"market-gateway/src/execution"
	"market-gateway/src/latency"
	"market-gateway/src/models"
	"market-gateway/src/pipeline"
)

type GatewayHandler struct {
	Pipeline  *pipeline.Pipeline
	Tracker   *latency.Tracker
	Execution *execution.Engine
	StartTime time.Time
}

func NewGatewayHandler(p *pipeline.Pipeline, tracker *latency.Tracker, exec *execution.Engine) *GatewayHandler {
	return &GatewayHandler{
		Pipeline:  p,
		Tracker:   tracker,
		Execution: exec,
		StartTime: time.Now(),
	}
}

func (h *GatewayHandler) SubmitOrder(c *fiber.Ctx) error {
	var req models.SubmitOrderRequest

	if err := c.BodyParser(&req); err != nil {
		log.Warn().
			Err(err).
			Str("ip", c.IP()).
			Str("path", c.Path()).
			Msg("Invalid request: malformed JSON")
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid request: malformed JSON",
		})
	}

	if err := validateSubmitOrderRequest(&req); err != nil {
		log.Warn().
			Err(err).
			Str("symbol", req.Symbol).
			Str("side", req.Side).
			Str("ip", c.IP()).
			Msg("Invalid order request")
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: err.Error(),
		})
	}

	if req.ClientID == "" {
		req.ClientID = uuid.New().String()
	}

	orderReq := &execution.OrderRequest{
		ClientID:       req.ClientID,
		Symbol:         req.Symbol,
		Side:           execution.OrderSide(req.Side),
		Quantity:       req.Quantity,
		Price:          req.Price,
		OrderType:      execution.OrderType(req.Type),
		IdempotencyKey: req.IdempotencyKey,
		TimestampNs:    time.Now().UnixNano(),
	}

	ack, err := h.Pipeline.SubmitOrder(orderReq)
	if err != nil {
		var dup *execution.DuplicateOrderError
		switch {
		case errors.As(err, &dup):
			return c.Status(fiber.StatusConflict).JSON(models.ErrorResponse{
				Error: "Duplicate order: idempotency key " + dup.Key + " already accepted",
			})
		case errors.Is(err, pipeline.ErrOrderQueueFull):
			log.Warn().
				Str("client_id", req.ClientID).
				Msg("Order rejected: queue full")
			return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
				Error: "Order queue full, retry later",
			})
		case errors.Is(err, pipeline.ErrShuttingDown), errors.Is(err, pipeline.ErrNotStarted):
			return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
				Error: "Gateway unavailable",
			})
		default:
			log.Error().
				Err(err).
				Str("client_id", req.ClientID).
				Msg("Error submitting order")
			return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
				Error: "Internal server error",
			})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(models.SubmitOrderResponse{
		ClientID:        ack.ClientID,
		ExchangeOrderID: ack.ExchangeOrderID,
		Status:          ack.Status,
		TimestampNs:     ack.TimestampNs,
		LatencyNs:       ack.LatencyNs,
	})
}

func (h *GatewayHandler) GetOrderBook(c *fiber.Ctx) error {
	view := h.Pipeline.View()
	if view == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
			Error: "Order book not ready",
		})
	}

	bids := make([]models.PriceLevelInfo, 0, len(view.Bids))
	for _, lvl := range view.Bids {
		bids = append(bids, models.PriceLevelInfo{Price: lvl.Price, Quantity: lvl.Quantity})
	}
	asks := make([]models.PriceLevelInfo, 0, len(view.Asks))
	for _, lvl := range view.Asks {
		asks = append(asks, models.PriceLevelInfo{Price: lvl.Price, Quantity: lvl.Quantity})
	}

	return c.JSON(models.OrderBookResponse{
		Symbol:       view.Symbol,
		Bids:         bids,
		Asks:         asks,
		BestBid:      view.BestBid,
		BestAsk:      view.BestAsk,
		MidPrice:     view.MidPrice,
		SpreadBps:    view.SpreadBps,
		LastSeqID:    view.LastSeqID,
		TotalUpdates: view.TotalUpdates,
		GapsDetected: view.GapsDetected,
		TimestampNs:  view.TimestampNs,
	})
}

func (h *GatewayHandler) Stats(c *fiber.Ctx) error {
	submitted, duplicates, fills := h.Execution.Stats()
	pct := h.Tracker.LatestPercentiles()

	return c.JSON(models.StatsResponse{
		TicksProcessed:    h.Tracker.TicksProcessed.Load(),
		GapsDetected:      h.Tracker.GapsDetected.Load(),
		Reconnects:        h.Tracker.Reconnects.Load(),
		MessagesPublished: h.Tracker.MessagesPublished.Load(),
		TicksDropped:      h.Tracker.TicksDropped.Load(),
		OrdersSubmitted:   submitted,
		OrdersDuplicate:   duplicates,
		Fills:             fills,
		IngestionP50Us:    pct.IngestionP50Us,
		IngestionP99Us:    pct.IngestionP99Us,
		ProcessingP50Us:   pct.ProcessingP50Us,
		ProcessingP99Us:   pct.ProcessingP99Us,
		PublishP50Us:      pct.PublishP50Us,
		PublishP99Us:      pct.PublishP99Us,
		Stages:            h.Pipeline.StageStates(),
		UptimeSeconds:     int64(time.Since(h.StartTime).Seconds()),
	})
}

func (h *GatewayHandler) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(models.HealthResponse{
		Status:         "ok",
		UptimeSeconds:  int64(time.Since(h.StartTime).Seconds()),
		TicksProcessed: h.Tracker.TicksProcessed.Load(),
	})
}

func validateSubmitOrderRequest(req *models.SubmitOrderRequest) error {
	if req.Symbol == "" {
		return errors.New("symbol is required")
	}
	if req.Side != "BUY" && req.Side != "SELL" {
		return errors.New("side must be BUY or SELL")
	}
	if req.Type != "LIMIT" && req.Type != "MARKET" {
		return errors.New("type must be LIMIT or MARKET")
	}
	if req.Quantity <= 0 {
		return errors.New("quantity must be positive")
	}
	// edge case: price required for LIMIT, ignored for MARKET
	if req.Type == "LIMIT" && req.Price <= 0 {
		return errors.New("price must be positive for LIMIT orders")
	}
	if req.IdempotencyKey == "" {
		return errors.New("idempotency_key is required")
	}
	return nil
}
