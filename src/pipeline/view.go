package pipeline

import "market-gateway/src/book"

// BookView is an immutable copy of the book's observable state, published by
// the processing stage for readers in other goroutines. The live book itself
// never leaves its owning stage.
type BookView struct {
	Symbol       string       `json:"symbol"`
	Bids         []book.Level `json:"bids"`
	Asks         []book.Level `json:"asks"`
	LastSeqID    uint64       `json:"last_seq_id"`
	BestBid      float64      `json:"best_bid"`
	BestAsk      float64      `json:"best_ask"`
	MidPrice     float64      `json:"mid_price"`
	SpreadBps    float64      `json:"spread_bps"`
	TotalUpdates uint64       `json:"total_updates"`
	GapsDetected uint64       `json:"gaps_detected"`
	TimestampNs  int64        `json:"timestamp_ns"`
}

func snapshotView(b *book.Book, depth int, nowNs int64) *BookView {
	bids, asks := b.Depth(depth)
	v := &BookView{
		Symbol:       b.Symbol,
		Bids:         bids,
		Asks:         asks,
		LastSeqID:    b.LastSeqID,
		TotalUpdates: b.TotalUpdates,
		GapsDetected: b.GapsDetected,
		TimestampNs:  nowNs,
	}
	v.BestBid, _ = b.BestBid()
	v.BestAsk, _ = b.BestAsk()
	v.MidPrice, _ = b.MidPrice()
	v.SpreadBps, _ = b.SpreadBps()
	return v
}
