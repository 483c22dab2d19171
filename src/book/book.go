package book

import (
	"time"

	"github.com/google/btree"
	"github.com/rs/zerolog/log"
)

type Side string

const (
	SideBid Side = "BID"
	SideAsk Side = "ASK"
)

// Level is one price level as seen at the gateway boundary.
// Quantity <= 0 signifies removal when carried by a delta.
type Level struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// Snapshot is a full replacement of book state at a known sequence id.
type Snapshot struct {
	Symbol string  `json:"symbol"`
	Bids   []Level `json:"bids"`
	Asks   []Level `json:"asks"`
	SeqID  uint64  `json:"seq_id"`
}

type bidLevel struct {
	Key      int64
	Quantity float64
}

// sorted descending (highest first), so Min() is the best bid
func (l *bidLevel) Less(than btree.Item) bool {
	return l.Key > than.(*bidLevel).Key
}

type askLevel struct {
	Key      int64
	Quantity float64
}

// sorted ascending (lowest first), so Min() is the best ask
func (l *askLevel) Less(than btree.Item) bool {
	return l.Key < than.(*askLevel).Key
}

// Book is an L2 order book for a single instrument. It holds at most one
// level per quantized price per side and only advances LastSeqID; a delta
// whose sequence id is not the immediate successor is rejected.
//
// A Book is owned by exactly one goroutine and does no locking.
type Book struct {
	Symbol       string
	bids         *btree.BTree
	asks         *btree.BTree
	LastSeqID    uint64
	TotalUpdates uint64
	GapsDetected uint64
	LastUpdateNs int64
}

func New(symbol string) *Book {
	return &Book{
		Symbol: symbol,
		bids:   btree.New(32),
		asks:   btree.New(32),
	}
}

// ApplySnapshot replaces both sides entirely with the snapshot's levels and
// moves LastSeqID to the snapshot's sequence id. Gap and update counters are
// cumulative diagnostics and are not reset.
func (b *Book) ApplySnapshot(snap *Snapshot) {
	b.bids.Clear(false)
	b.asks.Clear(false)

	for _, lvl := range snap.Bids {
		b.bids.ReplaceOrInsert(&bidLevel{Key: PriceKey(lvl.Price), Quantity: lvl.Quantity})
	}
	for _, lvl := range snap.Asks {
		b.asks.ReplaceOrInsert(&askLevel{Key: PriceKey(lvl.Price), Quantity: lvl.Quantity})
	}

	b.LastSeqID = snap.SeqID
	b.LastUpdateNs = time.Now().UnixNano()
	b.TotalUpdates++

	log.Info().
		Str("symbol", b.Symbol).
		Uint64("seq_id", snap.SeqID).
		Int("bids", b.bids.Len()).
		Int("asks", b.asks.Len()).
		Msg("Snapshot applied")
}

// ApplyDelta applies one incremental level update. It returns false on a
// sequence gap: the delta is discarded, GapsDetected is incremented and the
// caller must resynchronize with a fresh snapshot before further deltas are
// accepted.
func (b *Book) ApplyDelta(price, quantity float64, side Side, seqID uint64) bool {
	// edge case: LastSeqID == 0 means the book was never seeded, so the
	// first delta ever seen is accepted whatever its sequence id
	if b.LastSeqID > 0 && seqID != b.LastSeqID+1 {
		b.GapsDetected++
		log.Warn().
			Str("symbol", b.Symbol).
			Uint64("expected", b.LastSeqID+1).
			Uint64("received", seqID).
			Msg("Sequence gap detected - resync required")
		return false
	}

	key := PriceKey(price)
	if side == SideBid {
		if quantity <= 0 {
			// removing a non-existent level is a no-op
			b.bids.Delete(&bidLevel{Key: key})
		} else {
			b.bids.ReplaceOrInsert(&bidLevel{Key: key, Quantity: quantity})
		}
	} else {
		if quantity <= 0 {
			b.asks.Delete(&askLevel{Key: key})
		} else {
			b.asks.ReplaceOrInsert(&askLevel{Key: key, Quantity: quantity})
		}
	}

	b.LastSeqID = seqID
	b.LastUpdateNs = time.Now().UnixNano()
	b.TotalUpdates++
	return true
}

func (b *Book) BestBid() (float64, bool) {
	item := b.bids.Min()
	if item == nil {
		return 0, false
	}
	return KeyToPrice(item.(*bidLevel).Key), true
}

func (b *Book) BestAsk() (float64, bool) {
	item := b.asks.Min()
	if item == nil {
		return 0, false
	}
	return KeyToPrice(item.(*askLevel).Key), true
}

// MidPrice is defined only when both sides are non-empty.
func (b *Book) MidPrice() (float64, bool) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return 0, false
	}
	return (bid + ask) / 2, true
}

// SpreadBps additionally requires a strictly positive best bid.
func (b *Book) SpreadBps() (float64, bool) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk || bid <= 0 {
		return 0, false
	}
	return (ask - bid) / bid * 10_000, true
}

// Depth returns up to n levels per side, best to worst.
func (b *Book) Depth(n int) (bids []Level, asks []Level) {
	bids = make([]Level, 0, n)
	asks = make([]Level, 0, n)

	b.bids.Ascend(func(item btree.Item) bool {
		if len(bids) >= n {
			return false
		}
		lvl := item.(*bidLevel)
		bids = append(bids, Level{Price: KeyToPrice(lvl.Key), Quantity: lvl.Quantity})
		return true
	})

	b.asks.Ascend(func(item btree.Item) bool {
		if len(asks) >= n {
			return false
		}
		lvl := item.(*askLevel)
		asks = append(asks, Level{Price: KeyToPrice(lvl.Key), Quantity: lvl.Quantity})
		return true
	})

	return bids, asks
}

func (b *Book) BidLevels() int {
	return b.bids.Len()
}

func (b *Book) AskLevels() int {
	return b.asks.Len()
}
