package bus

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/volk7/alerting/logger"
)

// PublishResult classifies the outcome of Publish so callers can decide
// how to react. The Bus itself has already exhausted its retry budget
// by the time it returns ResultTerminalFail.
type PublishResult int

const (
	// ResultOK means every subscriber channel accepted the event.
	ResultOK PublishResult = iota
	// ResultTransientFail is never returned by Publish: there is no
	// best-effort topic mode, and a subscriber that stays full through
	// the retry budget yields ResultTerminalFail.
	ResultTransientFail
	// ResultTerminalFail means the retry budget was exhausted against a
	// saturated subscriber; the caller must treat the event as
	// undelivered to that subscriber.
	ResultTerminalFail
)

func (r PublishResult) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultTransientFail:
		return "transient_fail"
	case ResultTerminalFail:
		return "terminal_fail"
	default:
		return "unknown"
	}
}

// BackoffConfig bounds Publish's retry loop against a saturated
// subscriber channel.
type BackoffConfig struct {
	Base     time.Duration
	Cap      time.Duration
	MaxTries int
}

// DefaultBackoffConfig matches base 100ms, cap 5s, 5 tries.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{Base: 100 * time.Millisecond, Cap: 5 * time.Second, MaxTries: 5}
}

func (c BackoffConfig) delay(attempt int) time.Duration {
	d := c.Base << attempt
	if d > c.Cap || d <= 0 {
		d = c.Cap
	}
	return d
}

// subscription is one registered channel on a topic.
type subscription struct {
	id int64
	ch chan interface{}
}

// Bus is a non-blocking in-process publish-subscribe fanout. Subscriber
// channels are buffered; Publish applies a bounded exponential backoff
// against a full channel before giving up on that subscriber and
// reporting ResultTerminalFail.
type Bus struct {
	mu       sync.RWMutex
	topics   map[Topic][]subscription
	nextSubID int64
	backoff  BackoffConfig
	limiter  *rate.Limiter
	log      *zap.SugaredLogger
}

// Option configures a Bus at construction time.
type Option func(*Bus)

// WithBackoff overrides the default retry schedule.
func WithBackoff(cfg BackoffConfig) Option {
	return func(b *Bus) { b.backoff = cfg }
}

// WithLogger attaches a logger for publish/subscribe diagnostics.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(b *Bus) { b.log = log }
}

// New constructs an empty Bus. The limiter bounds the *rate* of retry
// attempts across all topics so a storm of saturated subscribers can't
// busy-loop the publisher.
func New(opts ...Option) *Bus {
	b := &Bus{
		topics:  make(map[Topic][]subscription),
		backoff: DefaultBackoffConfig(),
		limiter: rate.NewLimiter(rate.Limit(50), 50),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a new channel on topic with the given buffer
// depth and returns it along with an Unsubscribe func. The returned
// channel offers tail-follow, infinite-sequence semantics: it stays
// open until Unsubscribe is called.
func (b *Bus) Subscribe(topic Topic, bufferSize int) (<-chan interface{}, func()) {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	ch := make(chan interface{}, bufferSize)

	b.mu.Lock()
	id := b.nextSubID
	b.nextSubID++
	b.topics[topic] = append(b.topics[topic], subscription{id: id, ch: ch})
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.topics[topic]
		for i, s := range subs {
			if s.id == id {
				b.topics[topic] = append(subs[:i], subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, unsubscribe
}

// Publish fans event out to every subscriber of topic. For each
// subscriber whose channel is full, Publish retries with exponential
// backoff (bounded by the Bus's BackoffConfig) before giving up on that
// one subscriber. Publish returns ResultTerminalFail if any subscriber
// exhausted its retry budget, ResultOK otherwise.
func (b *Bus) Publish(ctx context.Context, topic Topic, event interface{}) PublishResult {
	b.mu.RLock()
	subs := make([]subscription, len(b.topics[topic]))
	copy(subs, b.topics[topic])
	b.mu.RUnlock()

	if len(subs) == 0 {
		return ResultOK
	}

	result := ResultOK
	for _, s := range subs {
		if !b.deliver(ctx, s.ch, event) {
			result = ResultTerminalFail
			if b.log != nil {
				b.log.With(logger.FieldSymbol, logger.SymbolBus).Warnw("publish exhausted retry budget",
					"topic", string(topic))
			}
		}
	}

	if b.log != nil && logger.ShouldShowBusEvents(logger.Verbosity()) {
		b.log.With(logger.FieldSymbol, logger.SymbolBus).Debugw("published event",
			"topic", string(topic), "subscribers", len(subs), "result", result.String())
	}
	return result
}

func (b *Bus) deliver(ctx context.Context, ch chan interface{}, event interface{}) bool {
	select {
	case ch <- event:
		return true
	default:
	}

	for attempt := 0; attempt < b.backoff.MaxTries; attempt++ {
		if err := b.limiter.Wait(ctx); err != nil {
			return false
		}

		timer := time.NewTimer(b.backoff.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}

		select {
		case ch <- event:
			return true
		default:
		}
	}
	return false
}
