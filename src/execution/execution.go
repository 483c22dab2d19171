package execution

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

type OrderType string

const (
	TypeLimit  OrderType = "LIMIT"
	TypeMarket OrderType = "MARKET"
)

const StatusSubmitted = "SUBMITTED"

// commission charged on fills, in basis points of notional
var commissionRate = decimal.New(4, -4)

type OrderRequest struct {
	ClientID       string    `json:"client_id"`
	Symbol         string    `json:"symbol"`
	Side           OrderSide `json:"side"`
	Quantity       float64   `json:"quantity"`
	Price          float64   `json:"price"`
	OrderType      OrderType `json:"order_type"`
	IdempotencyKey string    `json:"idempotency_key"`
	TimestampNs    int64     `json:"timestamp_ns"`
}

type OrderAck struct {
	ClientID        string `json:"client_id"`
	ExchangeOrderID string `json:"exchange_order_id"`
	Status          string `json:"status"`
	TimestampNs     int64  `json:"timestamp_ns"`
	LatencyNs       int64  `json:"latency_ns"`
}

type FillEvent struct {
	OrderID         string    `json:"order_id"`
	ExchangeOrderID string    `json:"exchange_order_id"`
	Symbol          string    `json:"symbol"`
	Side            OrderSide `json:"side"`
	FilledQty       float64   `json:"filled_qty"`
	FillPrice       float64   `json:"fill_price"`
	Commission      float64   `json:"commission"`
	TimestampNs     int64     `json:"timestamp_ns"`
	SeqID           uint64    `json:"seq_id"`
	LatencyNs       int64     `json:"latency_ns"`
}

type DuplicateOrderError struct {
	Key string
}

func (e *DuplicateOrderError) Error() string {
	return "duplicate order: idempotency key " + e.Key + " already accepted"
}

// Engine is an idempotent order intake: at most one submission is accepted
// per idempotency key while the key remains inside the retention window.
//
// An Engine is owned by exactly one goroutine and does no locking; the
// counters are atomic so other goroutines may read Stats.
type Engine struct {
	window          *keyWindow
	totalSubmitted  atomic.Uint64
	totalDuplicates atomic.Uint64
	totalFills      atomic.Uint64
}

func NewEngine(windowCapacity int) *Engine {
	return &Engine{
		window: newKeyWindow(windowCapacity),
	}
}

// SubmitOrder accepts an order unless its idempotency key was already seen,
// in which case it returns *DuplicateOrderError and mutates nothing beyond
// the duplicate counter.
func (e *Engine) SubmitOrder(req *OrderRequest) (*OrderAck, error) {
	start := time.Now()

	if e.window.Seen(req.IdempotencyKey) {
		e.totalDuplicates.Add(1)
		log.Warn().
			Str("client_id", req.ClientID).
			Str("idempotency_key", req.IdempotencyKey).
			Msg("Duplicate order rejected")
		return nil, &DuplicateOrderError{Key: req.IdempotencyKey}
	}
	e.window.Add(req.IdempotencyKey)

	exchangeID := "EX-" + uuid.New().String()
	latency := time.Since(start).Nanoseconds()
	e.totalSubmitted.Add(1)

	log.Info().
		Str("client_id", req.ClientID).
		Str("exchange_order_id", exchangeID).
		Str("symbol", req.Symbol).
		Str("side", string(req.Side)).
		Float64("quantity", req.Quantity).
		Float64("price", req.Price).
		Int64("latency_ns", latency).
		Msg("Order submitted")

	return &OrderAck{
		ClientID:        req.ClientID,
		ExchangeOrderID: exchangeID,
		Status:          StatusSubmitted,
		TimestampNs:     time.Now().UnixNano(),
		LatencyNs:       latency,
	}, nil
}

// ProcessFill derives a deterministic full fill for an acknowledged order:
// the requested quantity at the requested price, commission at 4 bps of
// notional. It stands in for exchange-reported fills.
func (e *Engine) ProcessFill(ack *OrderAck, req *OrderRequest) *FillEvent {
	start := time.Now()
	seq := e.totalFills.Add(1)

	commission, _ := decimal.NewFromFloat(req.Quantity).
		Mul(decimal.NewFromFloat(req.Price)).
		Mul(commissionRate).
		Float64()

	return &FillEvent{
		OrderID:         req.ClientID,
		ExchangeOrderID: ack.ExchangeOrderID,
		Symbol:          req.Symbol,
		Side:            req.Side,
		FilledQty:       req.Quantity,
		FillPrice:       req.Price,
		Commission:      commission,
		TimestampNs:     time.Now().UnixNano(),
		SeqID:           seq,
		LatencyNs:       time.Since(start).Nanoseconds(),
	}
}

// Stats returns cumulative submitted, duplicate and fill counts.
func (e *Engine) Stats() (submitted, duplicates, fills uint64) {
	return e.totalSubmitted.Load(), e.totalDuplicates.Load(), e.totalFills.Load()
}
