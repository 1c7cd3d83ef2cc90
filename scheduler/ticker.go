package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/volk7/alerting/logger"
)

// DueHandler is invoked once per processed second that has projections
// due, with that second's whole due set and the time of the tick that
// processed it (caught-up seconds share their tick's time). Handed off by the scheduler to the
// lifecycle controller; the ticker itself knows nothing about alarms,
// only projections and seconds.
type DueHandler func(tickSecond time.Time, due []Projection)

// TickerConfig bounds the tick loop.
type TickerConfig struct {
	Interval time.Duration // default 1 second
}

// DefaultTickerConfig matches the once-per-second cadence.
func DefaultTickerConfig() TickerConfig {
	return TickerConfig{Interval: time.Second}
}

// Ticker drives the Index once per wall-clock second. It never skips a
// second silently: if the underlying time.Ticker stutters and delivers a
// tick more than one interval late, every missed second-of-day is
// processed in order before returning to normal cadence.
type Ticker struct {
	index    *Index
	handler  DueHandler
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	log *zap.SugaredLogger

	mu           sync.Mutex
	lastSecond   int // -1 until the first tick
	ticksHandled int64
	lastTickAt   time.Time
}

// NewTicker constructs a Ticker bound to idx; handler is called
// synchronously on the ticker goroutine, once per distinct second-of-day
// that has projections due (including any caught-up seconds), so callers that want parallel
// dispatch should hand off to a worker pool themselves.
func NewTicker(ctx context.Context, idx *Index, cfg TickerConfig, handler DueHandler, log *zap.SugaredLogger) *Ticker {
	tickerCtx, cancel := context.WithCancel(ctx)
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Second
	}
	return &Ticker{
		index:      idx,
		handler:    handler,
		interval:   interval,
		ctx:        tickerCtx,
		cancel:     cancel,
		log:        log,
		lastSecond: -1,
	}
}

// Start begins the tick loop in a background goroutine.
func (t *Ticker) Start() {
	t.wg.Add(1)
	go t.run()
	logger.SymbolInfow(logger.SymbolTick, "scheduler tick loop started", "interval", t.interval)
}

// Stop cancels the tick loop and waits for it to exit.
func (t *Ticker) Stop() {
	t.cancel()
	t.wg.Wait()
	logger.SymbolInfow(logger.SymbolTick, "scheduler tick loop stopped", "ticks_handled", t.ticksHandled)
}

func (t *Ticker) run() {
	defer t.wg.Done()

	clock := time.NewTicker(t.interval)
	defer clock.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case now := <-clock.C:
			t.onTick(now)
		}
	}
}

func (t *Ticker) onTick(now time.Time) {
	now = now.UTC()
	sec := secondOfDayUTC(now)

	t.mu.Lock()
	prev := t.lastSecond
	t.lastSecond = sec
	t.lastTickAt = now
	t.mu.Unlock()

	if prev == sec {
		// Clock stutter: the ticker fired but the wall clock's
		// second-of-day hasn't advanced. Nothing new is due.
		return
	}

	for _, s := range missedSeconds(prev, sec) {
		t.processSecond(now, s)
	}
}

// missedSeconds returns every second-of-day strictly after prev up to and
// including cur, in order, wrapping at midnight. If prev is -1 (first
// tick since start) only cur is processed: there is nothing to catch up
// on at cold start.
func missedSeconds(prev, cur int) []int {
	if prev < 0 {
		return []int{cur}
	}
	if prev == cur {
		return nil
	}

	gap := cur - prev
	if gap < 0 {
		gap += secondsPerDay
	}
	out := make([]int, 0, gap)
	for i := 1; i <= gap; i++ {
		out = append(out, (prev+i)%secondsPerDay)
	}
	return out
}

func (t *Ticker) processSecond(tickTime time.Time, sec int) {
	due := t.index.Due(sec)

	t.mu.Lock()
	t.ticksHandled++
	t.mu.Unlock()

	if len(due) == 0 {
		return
	}

	if t.log != nil && logger.ShouldShowDueSet(logger.Verbosity()) {
		codeIDs := make([]string, len(due))
		for i, p := range due {
			codeIDs[i] = p.CodeID
		}
		t.log.With(logger.FieldSymbol, logger.SymbolTick).Debugw("due set extracted",
			"second_of_day", sec, "count", len(due), "code_ids", codeIDs)
	}

	if t.handler != nil {
		t.handler(tickTime, due)
	}
}

func secondOfDayUTC(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}

// TickerStats reports the ticker's own liveness counters, independent of the
// index's population stats.
type TickerStats struct {
	TicksHandled int64
	LastTickAt   time.Time
}

// Stats returns a snapshot of the ticker's counters.
func (t *Ticker) Stats() TickerStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return TickerStats{TicksHandled: t.ticksHandled, LastTickAt: t.lastTickAt}
}
