package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"market-gateway/src/book"
	"market-gateway/src/execution"
	"market-gateway/src/feed"
	"market-gateway/src/latency"
	"market-gateway/src/publish"
)

var (
	ErrOrderQueueFull = errors.New("order queue full")
	ErrNotStarted     = errors.New("pipeline not started")
	ErrShuttingDown   = errors.New("pipeline shutting down")
)

// Config carries the pipeline tunables.
type Config struct {
	Symbol             string
	TickInterval       time.Duration
	TickBuffer         int
	FillBuffer         int
	OrderBuffer        int
	BookDepth          int
	ReportInterval     time.Duration
	HeartbeatInterval  time.Duration
	StalenessThreshold time.Duration
	DrainTimeout       time.Duration
}

type submitResult struct {
	ack *execution.OrderAck
	err error
}

type submitRequest struct {
	req   *execution.OrderRequest
	reply chan submitResult
}

// Pipeline wires the gateway stages together: ingestion -> processing ->
// publish on the tick path, and execution -> fill handling -> publish on the
// order path, with a heartbeat monitor alongside. Each mutable engine (the
// book, the execution engine) is owned by exactly one stage; stages share
// nothing but bounded channels and atomic counters.
type Pipeline struct {
	cfg     Config
	feed    feed.Feed
	sink    publish.Sink
	tracker *latency.Tracker
	exec    *execution.Engine
	seq     *Sequencer

	ticks  chan feed.Tick
	fills  chan *execution.FillEvent
	orders chan submitRequest

	view       atomic.Pointer[BookView]
	lastTickNs atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	ingestion *stage
	processor *stage
	executor  *stage
	filler    *stage
	heartbeat *stage
}

func New(cfg Config, fd feed.Feed, sink publish.Sink, tracker *latency.Tracker, exec *execution.Engine) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		feed:      fd,
		sink:      sink,
		tracker:   tracker,
		exec:      exec,
		seq:       NewSequencer(0),
		ticks:     make(chan feed.Tick, cfg.TickBuffer),
		fills:     make(chan *execution.FillEvent, cfg.FillBuffer),
		orders:    make(chan submitRequest, cfg.OrderBuffer),
		ingestion: newStage("ingestion"),
		processor: newStage("processing"),
		executor:  newStage("execution"),
		filler:    newStage("fills"),
		heartbeat: newStage("heartbeat"),
	}
}

// Start launches every stage. The derived context is the broadcast shutdown
// signal each stage races against its normal waits.
func (p *Pipeline) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)

	for _, run := range []struct {
		st *stage
		fn func(context.Context, *stage)
	}{
		{p.ingestion, p.runIngestion},
		{p.processor, p.runProcessing},
		{p.executor, p.runExecution},
		{p.filler, p.runFills},
		{p.heartbeat, p.runHeartbeat},
	} {
		p.wg.Add(1)
		go func(st *stage, fn func(context.Context, *stage)) {
			defer p.wg.Done()
			st.set(StageRunning)
			log.Info().Str("stage", st.name).Msg("Stage started")
			fn(p.ctx, st)
			st.set(StageStopped)
			log.Info().Str("stage", st.name).Msg("Stage stopped")
		}(run.st, run.fn)
	}
}

// Stop broadcasts shutdown and waits up to the drain timeout for every stage
// to stop. Stages still draining when the timeout fires are abandoned; their
// blocking waits are all bounded, so process exit reclaims them safely.
func (p *Pipeline) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("All stages drained")
	case <-time.After(p.cfg.DrainTimeout):
		for _, st := range []*stage{p.ingestion, p.processor, p.executor, p.filler, p.heartbeat} {
			if st.get() != StageStopped {
				log.Warn().Str("stage", st.name).Msg("Stage abandoned after drain timeout")
			}
		}
	}
}

// SubmitOrder hands an order to the execution stage and waits for its
// synchronous acknowledgment. The order queue is bounded and never blocks
// the caller: a full queue fails fast with ErrOrderQueueFull.
func (p *Pipeline) SubmitOrder(req *execution.OrderRequest) (*execution.OrderAck, error) {
	if p.ctx == nil {
		return nil, ErrNotStarted
	}
	if req.TimestampNs == 0 {
		req.TimestampNs = time.Now().UnixNano()
	}

	sub := submitRequest{req: req, reply: make(chan submitResult, 1)}
	select {
	case p.orders <- sub:
	case <-p.ctx.Done():
		return nil, ErrShuttingDown
	default:
		return nil, ErrOrderQueueFull
	}

	select {
	case res := <-sub.reply:
		return res.ack, res.err
	case <-p.ctx.Done():
		return nil, ErrShuttingDown
	}
}

// View returns the most recently published immutable book view, or nil
// before the first tick has been processed.
func (p *Pipeline) View() *BookView {
	return p.view.Load()
}

// StageStates reports the state machine position of every stage.
func (p *Pipeline) StageStates() map[string]string {
	states := make(map[string]string, 5)
	for _, st := range []*stage{p.ingestion, p.processor, p.executor, p.filler, p.heartbeat} {
		states[st.name] = st.get().String()
	}
	return states
}

// Sequence returns the last issued tick sequence id.
func (p *Pipeline) Sequence() uint64 {
	return p.seq.Current()
}

// runIngestion pulls the next event from the feed on a fixed cadence, stamps
// it with the next sequence id and sends it non-blockingly downstream. A full
// tick channel drops the newest event rather than blocking in-flight work.
func (p *Pipeline) runIngestion(ctx context.Context, st *stage) {
	ticker := time.NewTicker(p.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			st.set(StageDraining)
			return
		case <-ticker.C:
			tick := p.feed.Next(p.seq.Next())
			select {
			case p.ticks <- tick:
			default:
				p.tracker.TicksDropped.Add(1)
				log.Debug().
					Uint64("seq_id", tick.SeqID).
					Msg("Tick dropped - channel full")
			}
		}
	}
}

// runProcessing owns the order book. Each tick at sequence n is applied as a
// bid delta at 2n and an ask delta at 2n+1, preserving one total order over
// both sides. A gap (dropped tick upstream) is recovered by re-seeding the
// book from the offending tick.
func (p *Pipeline) runProcessing(ctx context.Context, st *stage) {
	b := book.New(p.cfg.Symbol)
	report := time.NewTicker(p.cfg.ReportInterval)
	defer report.Stop()

	for {
		select {
		case <-ctx.Done():
			st.set(StageDraining)
			log.Info().Str("summary", p.tracker.Summary()).Msg("Final metrics")
			return
		case tick := <-p.ticks:
			p.processTick(b, &tick)
		case <-report.C:
			p.tracker.PublishPercentiles()
			log.Info().Str("summary", p.tracker.Summary()).Msg("Metrics report")
			if mid, ok := b.MidPrice(); ok {
				spread, _ := b.SpreadBps()
				log.Info().
					Str("symbol", b.Symbol).
					Float64("mid", mid).
					Float64("spread_bps", spread).
					Int("bid_levels", b.BidLevels()).
					Int("ask_levels", b.AskLevels()).
					Uint64("updates", b.TotalUpdates).
					Msg("Book state")
			}
		}
	}
}

func (p *Pipeline) processTick(b *book.Book, tick *feed.Tick) {
	procStart := time.Now()

	bidOK := b.ApplyDelta(tick.BidPrice, tick.BidSize, book.SideBid, tick.SeqID*2)
	askOK := b.ApplyDelta(tick.AskPrice, tick.AskSize, book.SideAsk, tick.SeqID*2+1)

	if !bidOK || !askOK {
		p.tracker.GapsDetected.Add(1)
		// resynchronize: rebuild the book from the tick we do have
		b.ApplySnapshot(&book.Snapshot{
			Symbol: tick.Symbol,
			Bids:   []book.Level{{Price: tick.BidPrice, Quantity: tick.BidSize}},
			Asks:   []book.Level{{Price: tick.AskPrice, Quantity: tick.AskSize}},
			SeqID:  tick.SeqID*2 + 1,
		})
	}

	p.tracker.RecordProcessing(time.Since(procStart).Nanoseconds())
	p.tracker.RecordIngestion(tick.IngestionLatencyNs)
	p.lastTickNs.Store(time.Now().UnixNano())

	pubStart := time.Now()
	if err := p.sink.PublishTick(p.ctx, tick); err != nil {
		log.Warn().Err(err).Uint64("seq_id", tick.SeqID).Msg("Tick publish failed")
	} else {
		p.tracker.RecordPublish(time.Since(pubStart).Nanoseconds())
	}

	p.view.Store(snapshotView(b, p.cfg.BookDepth, time.Now().UnixNano()))
}

// runExecution owns the execution engine; order submissions arrive over the
// bounded order queue and are answered on per-request reply channels.
// Accepted orders synthesize a fill that is forwarded without blocking.
func (p *Pipeline) runExecution(ctx context.Context, st *stage) {
	for {
		select {
		case <-ctx.Done():
			st.set(StageDraining)
			return
		case sub := <-p.orders:
			ack, err := p.exec.SubmitOrder(sub.req)
			sub.reply <- submitResult{ack: ack, err: err}

			if err != nil {
				continue
			}
			fill := p.exec.ProcessFill(ack, sub.req)
			select {
			case p.fills <- fill:
			default:
				log.Warn().
					Str("exchange_order_id", fill.ExchangeOrderID).
					Msg("Fill dropped - channel full")
			}
		}
	}
}

// runFills forwards execution outcomes to the publish sink.
func (p *Pipeline) runFills(ctx context.Context, st *stage) {
	for {
		select {
		case <-ctx.Done():
			st.set(StageDraining)
			return
		case fill := <-p.fills:
			if err := p.sink.PublishFill(p.ctx, fill); err != nil {
				log.Warn().
					Err(err).
					Str("exchange_order_id", fill.ExchangeOrderID).
					Msg("Fill publish failed")
				continue
			}
			p.tracker.MessagesPublished.Add(1)
		}
	}
}

// runHeartbeat watches feed liveness: when no tick has arrived within the
// staleness threshold it requests a feed reconnect. It never touches book
// state.
func (p *Pipeline) runHeartbeat(ctx context.Context, st *stage) {
	ticker := time.NewTicker(p.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			st.set(StageDraining)
			return
		case <-ticker.C:
			last := p.lastTickNs.Load()
			if last == 0 {
				continue
			}
			stale := time.Duration(time.Now().UnixNano() - last)
			if stale > p.cfg.StalenessThreshold {
				p.tracker.Reconnects.Add(1)
				p.feed.RequestReconnect()
			}
		}
	}
}
