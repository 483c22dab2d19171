package feed

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Tick is one normalized market event. The gateway stamps SeqID and the
// ingestion timestamp; the exchange timestamp comes from the feed. A Tick is
// immutable once created.
type Tick struct {
	Symbol             string  `json:"symbol"`
	BidPrice           float64 `json:"bid_price"`
	AskPrice           float64 `json:"ask_price"`
	BidSize            float64 `json:"bid_size"`
	AskSize            float64 `json:"ask_size"`
	LastPrice          float64 `json:"last_price"`
	Volume             float64 `json:"volume"`
	TimestampNs        int64   `json:"timestamp_ns"`
	SeqID              uint64  `json:"seq_id"`
	ExchangeTsNs       int64   `json:"exchange_ts_ns"`
	IngestionLatencyNs int64   `json:"ingestion_latency_ns"`
}

// Feed produces market events. A live implementation wraps the exchange
// transport; RequestReconnect is the heartbeat stage's staleness hook.
type Feed interface {
	Next(seqID uint64) Tick
	RequestReconnect()
}

// Simulated generates a deterministic random walk around a base price with
// a 1 bps spread and a simulated 0.8 ms exchange-to-gateway delay.
type Simulated struct {
	symbol     string
	basePrice  float64
	reconnects atomic.Uint64
}

func NewSimulated(symbol string, basePrice float64) *Simulated {
	return &Simulated{symbol: symbol, basePrice: basePrice}
}

func (f *Simulated) Next(seqID uint64) Tick {
	now := time.Now().UnixNano()

	jitter := math.Sin(float64(seqID)*7.31) * 50.0 / 100.0
	price := f.basePrice + jitter
	spread := f.basePrice * 0.0001

	const exchangeDelayNs = 800_000

	return Tick{
		Symbol:             f.symbol,
		BidPrice:           price - spread,
		AskPrice:           price + spread,
		BidSize:            1.5 + math.Abs(math.Sin(float64(seqID)*3.14))*5.0,
		AskSize:            1.5 + math.Abs(math.Cos(float64(seqID)*2.72))*5.0,
		LastPrice:          price,
		Volume:             100.0 + math.Abs(math.Sin(float64(seqID)*1.41))*500.0,
		TimestampNs:        now,
		SeqID:              seqID,
		ExchangeTsNs:       now - exchangeDelayNs,
		IngestionLatencyNs: exchangeDelayNs,
	}
}

func (f *Simulated) RequestReconnect() {
	f.reconnects.Add(1)
	log.Warn().
		Str("symbol", f.symbol).
		Uint64("reconnects", f.reconnects.Load()).
		Msg("Feed reconnect requested")
}

func (f *Simulated) Reconnects() uint64 {
	return f.reconnects.Load()
}
