package models

type SubmitOrderRequest struct {
	ClientID       string  `json:"client_id"`
	Symbol         string  `json:"symbol"`
	Side           string  `json:"side"`
	Type           string  `json:"type"`
	Quantity       float64 `json:"quantity"`
	Price          float64 `json:"price"`
	IdempotencyKey string  `json:"idempotency_key"`
}

type SubmitOrderResponse struct {
	ClientID        string `json:"client_id"`
	ExchangeOrderID string `json:"exchange_order_id"`
	Status          string `json:"status"`
	TimestampNs     int64  `json:"timestamp_ns"`
	LatencyNs       int64  `json:"latency_ns"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type PriceLevelInfo struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

type OrderBookResponse struct {
	Symbol       string           `json:"symbol"`
	Bids         []PriceLevelInfo `json:"bids"` // sorted descending (highest first)
	Asks         []PriceLevelInfo `json:"asks"` // sorted ascending (lowest first)
	BestBid      float64          `json:"best_bid"`
	BestAsk      float64          `json:"best_ask"`
	MidPrice     float64          `json:"mid_price"`
	SpreadBps    float64          `json:"spread_bps"`
	LastSeqID    uint64           `json:"last_seq_id"`
	TotalUpdates uint64           `json:"total_updates"`
	GapsDetected uint64           `json:"gaps_detected"`
	TimestampNs  int64            `json:"timestamp_ns"`
}

type StatsResponse struct {
	TicksProcessed    uint64            `json:"ticks_processed"`
	GapsDetected      uint64            `json:"gaps_detected"`
	Reconnects        uint64            `json:"reconnects"`
	MessagesPublished uint64            `json:"messages_published"`
	TicksDropped      uint64            `json:"ticks_dropped"`
	OrdersSubmitted   uint64            `json:"orders_submitted"`
	OrdersDuplicate   uint64            `json:"orders_duplicate"`
	Fills             uint64            `json:"fills"`
	IngestionP50Us    int64             `json:"ingestion_p50_us"`
	IngestionP99Us    int64             `json:"ingestion_p99_us"`
	ProcessingP50Us   int64             `json:"processing_p50_us"`
	ProcessingP99Us   int64             `json:"processing_p99_us"`
	PublishP50Us      int64             `json:"publish_p50_us"`
	PublishP99Us      int64             `json:"publish_p99_us"`
	Stages            map[string]string `json:"stages"`
	UptimeSeconds     int64             `json:"uptime_seconds"`
}

type HealthResponse struct {
	Status         string `json:"status"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
	TicksProcessed uint64 `json:"ticks_processed"`
}
