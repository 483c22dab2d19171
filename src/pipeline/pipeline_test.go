package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"market-gateway/src/execution"
	"market-gateway/src/feed"
	"market-gateway/src/latency"
)

// captureSink records everything published to it.
type captureSink struct {
	mu    sync.Mutex
	ticks []feed.Tick
	fills []execution.FillEvent
	delay time.Duration
}

func (s *captureSink) PublishTick(_ context.Context, tick *feed.Tick) error {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks = append(s.ticks, *tick)
	return nil
}

func (s *captureSink) PublishFill(_ context.Context, fill *execution.FillEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fills = append(s.fills, *fill)
	return nil
}

func (s *captureSink) Close() error { return nil }

func (s *captureSink) tickCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ticks)
}

func (s *captureSink) fillCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fills)
}

func testConfig() Config {
	return Config{
		Symbol:             "BTCUSDT",
		TickInterval:       time.Millisecond,
		TickBuffer:         1024,
		FillBuffer:         64,
		OrderBuffer:        16,
		BookDepth:          10,
		ReportInterval:     time.Minute,
		HeartbeatInterval:  time.Minute,
		StalenessThreshold: time.Minute,
		DrainTimeout:       2 * time.Second,
	}
}

func startPipeline(t *testing.T, cfg Config, sink *captureSink) *Pipeline {
	t.Helper()
	tracker := latency.NewTracker(1024)
	exec := execution.NewEngine(1000)
	p := New(cfg, feed.NewSimulated(cfg.Symbol, 67500), sink, tracker, exec)
	p.Start(context.Background())
	return p
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before timeout")
}

// TestPipelineEndToEnd runs the full tick path: feed -> sequencer -> book ->
// sink, then drains and checks every stage reached Stopped.
func TestPipelineEndToEnd(t *testing.T) {
	sink := &captureSink{}
	p := startPipeline(t, testConfig(), sink)

	waitFor(t, 3*time.Second, func() bool {
		return sink.tickCount() >= 20 && p.View() != nil
	})

	view := p.View()
	if view.Symbol != "BTCUSDT" {
		t.Errorf("expected view for BTCUSDT, got: %s", view.Symbol)
	}
	if view.BestBid <= 0 || view.BestAsk <= 0 {
		t.Errorf("expected live best bid/ask, got: %v / %v", view.BestBid, view.BestAsk)
	}
	if view.BestBid >= view.BestAsk {
		t.Errorf("crossed view: bid %v >= ask %v", view.BestBid, view.BestAsk)
	}
	if p.tracker.TicksProcessed.Load() == 0 {
		t.Error("expected processed ticks recorded")
	}
	if p.Sequence() == 0 {
		t.Error("sequencer should have issued ids")
	}

	p.Stop()

	for name, state := range p.StageStates() {
		if state != "stopped" {
			t.Errorf("stage %s should be stopped after drain, got: %s", name, state)
		}
	}
}

// TestSubmitOrderIdempotentThroughPipeline submits the same key twice via the
// execution stage and expects one ack plus one duplicate error, then a single
// published fill.
func TestSubmitOrderIdempotentThroughPipeline(t *testing.T) {
	sink := &captureSink{}
	p := startPipeline(t, testConfig(), sink)
	defer p.Stop()

	req := &execution.OrderRequest{
		ClientID:       "client-1",
		Symbol:         "BTCUSDT",
		Side:           execution.SideBuy,
		Quantity:       1,
		Price:          67500,
		OrderType:      execution.TypeLimit,
		IdempotencyKey: "K1",
	}

	ack, err := p.SubmitOrder(req)
	if err != nil {
		t.Fatalf("first submission failed: %v", err)
	}
	if ack.Status != execution.StatusSubmitted {
		t.Errorf("expected SUBMITTED, got: %s", ack.Status)
	}

	_, err = p.SubmitOrder(req)
	var dup *execution.DuplicateOrderError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateOrderError, got: %v", err)
	}

	waitFor(t, 3*time.Second, func() bool { return sink.fillCount() == 1 })

	sink.mu.Lock()
	fill := sink.fills[0]
	sink.mu.Unlock()
	if fill.ExchangeOrderID != ack.ExchangeOrderID {
		t.Error("published fill must reference the acknowledged order")
	}
}

// TestBackpressureDropsNewestTick saturates the tick channel with a slow sink
// and a tiny buffer; the producer must drop rather than block.
func TestBackpressureDropsNewestTick(t *testing.T) {
	cfg := testConfig()
	cfg.TickBuffer = 1
	sink := &captureSink{delay: 20 * time.Millisecond}
	p := startPipeline(t, cfg, sink)

	waitFor(t, 3*time.Second, func() bool {
		return p.tracker.TicksDropped.Load() > 0
	})
	p.Stop()
}

func TestSubmitBeforeStart(t *testing.T) {
	p := New(testConfig(), feed.NewSimulated("BTCUSDT", 67500), &captureSink{}, latency.NewTracker(16), execution.NewEngine(16))
	if _, err := p.SubmitOrder(&execution.OrderRequest{IdempotencyKey: "K"}); !errors.Is(err, ErrNotStarted) {
		t.Errorf("expected ErrNotStarted, got: %v", err)
	}
}

func TestSubmitAfterStop(t *testing.T) {
	p := startPipeline(t, testConfig(), &captureSink{})
	p.Stop()

	_, err := p.SubmitOrder(&execution.OrderRequest{IdempotencyKey: "K"})
	if !errors.Is(err, ErrShuttingDown) && !errors.Is(err, ErrOrderQueueFull) {
		t.Errorf("expected shutdown or queue-full error, got: %v", err)
	}
}

func TestSequencerMonotonic(t *testing.T) {
	s := NewSequencer(0)
	var wg sync.WaitGroup
	seen := make([]uint64, 0, 1000)
	var mu sync.Mutex

	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				v := s.Next()
				mu.Lock()
				seen = append(seen, v)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	unique := make(map[uint64]struct{}, len(seen))
	for _, v := range seen {
		if _, dup := unique[v]; dup {
			t.Fatalf("sequence id issued twice: %d", v)
		}
		unique[v] = struct{}{}
	}
	if s.Current() != 1000 {
		t.Errorf("expected 1000 ids issued, got: %d", s.Current())
	}
}
