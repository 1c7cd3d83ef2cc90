// Package controller binds the Store, Scheduler index, and Bus together.
// It holds no persistent state of its own: every durable fact lives in
// the Store, every in-memory fact lives in the Scheduler index.
package controller

import (
	"context"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/volk7/alerting/alarm"
	"github.com/volk7/alerting/bus"
	"github.com/volk7/alerting/errors"
	"github.com/volk7/alerting/logger"
	"github.com/volk7/alerting/scheduler"
	"github.com/volk7/alerting/store"
	"github.com/volk7/alerting/temporal"
)

// Store is the subset of *store.Store the controller depends on; defined
// as an interface so controller tests can supply a fake instead of a
// sqlmock-backed *sql.DB.
type Store interface {
	Get(ctx context.Context, codeID string) (*alarm.Alarm, error)
	ListAllScheduled(ctx context.Context, status alarm.Status) ([]*alarm.Alarm, error)
	MarkStatus(ctx context.Context, codeID string, newStatus, expectedPrevious alarm.Status) error
	RecordFired(ctx context.Context, codeID string, occurrence time.Time, localDate string, nextUTC *alarm.ClockTime, nextStatus alarm.Status) error
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

var _ Store = (*store.Store)(nil)

// Publisher is the subset of *bus.Bus the controller depends on.
type Publisher interface {
	Publish(ctx context.Context, topic bus.Topic, event interface{}) bus.PublishResult
}

// Config bounds the controller's background loops.
type Config struct {
	Workers           int
	ReconcileInterval time.Duration
	CleanupInterval   time.Duration
	CleanupRetention  time.Duration
}

// DefaultConfig matches the spec's defaults: 8 workers, 10-minute
// reconcile/cleanup cadence, 24h retention for terminal one-shot rows.
func DefaultConfig() Config {
	return Config{
		Workers:           8,
		ReconcileInterval: 10 * time.Minute,
		CleanupInterval:   10 * time.Minute,
		CleanupRetention:  24 * time.Hour,
	}
}

// stalePendingThreshold bounds how long a row may sit in
// StatusTriggeredPending before ColdStart/reconcile treat it as an
// abandoned claim rather than a still-in-flight one. claimOccurrence's own
// publish-and-record sequence completes in milliseconds, never minutes, so
// this comfortably distinguishes "replica crashed mid-claim" from "replica
// is still working on it".
const stalePendingThreshold = 30 * time.Second

// Controller wires the Scheduler's tick output to Store/Bus operations.
type Controller struct {
	store     Store
	index     *scheduler.Index
	publisher Publisher
	cfg       Config
	log       *zap.SugaredLogger

	sem chan struct{} // bounds concurrent tick-handling goroutines

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New constructs a Controller. Call ColdStart before Run to populate the
// index from the store.
func New(ctx context.Context, st Store, idx *scheduler.Index, pub Publisher, cfg Config, log *zap.SugaredLogger) *Controller {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if n := runtime.NumCPU(); cfg.Workers > n {
		cfg.Workers = n
	}
	cctx, cancel := context.WithCancel(ctx)
	return &Controller{
		store:     st,
		index:     idx,
		publisher: pub,
		cfg:       cfg,
		log:       log,
		sem:       make(chan struct{}, cfg.Workers),
		ctx:       cctx,
		cancel:    cancel,
	}
}

// ColdStart recovers any alarm left stuck in StatusTriggeredPending by a
// replica that crashed mid-claim, then enumerates every scheduled alarm,
// recomputes today's UTC occurrence, and adds it to the Scheduler index.
// Call once at startup before the tick loop and reconciliation/cleanup
// loops begin.
func (c *Controller) ColdStart(ctx context.Context) error {
	if err := c.recoverStalePending(ctx); err != nil {
		return errors.Wrap(err, "cold start: recover pending claims")
	}

	alarms, err := c.store.ListAllScheduled(ctx, alarm.StatusScheduled)
	if err != nil {
		return errors.Wrap(err, "cold start: list scheduled alarms")
	}

	now := time.Now().UTC()
	for _, a := range alarms {
		if err := c.indexForToday(a, now); err != nil {
			c.log.With(logger.FieldSymbol, logger.SymbolStore).Warnw("cold start: failed to index alarm",
				logger.FieldCodeID, a.CodeID, "error", err)
			continue
		}
	}

	c.log.With(logger.FieldSymbol, logger.SymbolStore).Infow("cold start complete",
		"alarms_indexed", c.index.Len())
	return nil
}

// indexForToday computes a's UTC second-of-day for today's date and adds
// it to the scheduler index, honoring day-of-week for recurring alarms.
func (c *Controller) indexForToday(a *alarm.Alarm, now time.Time) error {
	onDate := now
	if a.IsRecurring {
		next, err := temporal.NextQualifyingDate(now, a.Timezone, a.DaysOfWeek)
		if err != nil {
			return err
		}
		onDate = next
	}

	utc, _, err := temporal.LocalToUTC(a.LocalTime, a.Timezone, onDate)
	if err != nil {
		return err
	}

	c.index.Add(temporal.SecondOfDay(utc), scheduler.Projection{
		CodeID:      a.CodeID,
		Email:       a.Email,
		IsRecurring: a.IsRecurring,
		DaysOfWeek:  a.DaysOfWeek,
		Status:      a.Status,
	})
	return nil
}

// recoverStalePending finds every alarm stuck in StatusTriggeredPending
// for longer than stalePendingThreshold and recovers it. Safe to call
// repeatedly: once a row is recovered it moves to StatusScheduled or the
// terminal StatusTriggered and no longer matches the scan.
func (c *Controller) recoverStalePending(ctx context.Context) error {
	pending, err := c.store.ListAllScheduled(ctx, alarm.StatusTriggeredPending)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, a := range pending {
		if now.Sub(a.UpdatedAt) < stalePendingThreshold {
			// Still plausibly in-flight on another goroutine/replica.
			continue
		}
		c.recoverPendingClaim(ctx, a, now)
	}
	return nil
}

// recoverPendingClaim finalizes an alarm abandoned mid-claim: the CAS to
// StatusTriggeredPending succeeded but the replica crashed before
// RecordFired ran, per spec scenario "kill replica mid-tick after CAS
// succeeds but before publish". Recurring alarms are re-armed to their
// next qualifying occurrence exactly as advanceOrTerminate would; one-shot
// alarms are finalized to the terminal StatusTriggered so cleanup can
// reclaim them.
func (c *Controller) recoverPendingClaim(ctx context.Context, a *alarm.Alarm, now time.Time) {
	occurrenceLocalDate := now.Format("2006-01-02")
	if loc, err := time.LoadLocation(a.Timezone); err == nil {
		occurrenceLocalDate = now.In(loc).Format("2006-01-02")
	}

	if !a.IsRecurring {
		if err := c.store.RecordFired(ctx, a.CodeID, now, occurrenceLocalDate, nil, alarm.StatusTriggered); err != nil {
			c.reportError(a.CodeID, "recover_pending", err)
			return
		}
		c.index.Remove(a.CodeID)
		c.log.With(logger.FieldSymbol, logger.SymbolFire).Warnw("recovered stale pending claim, finalized",
			logger.FieldCodeID, a.CodeID)
		return
	}

	next, err := temporal.NextQualifyingDate(now.AddDate(0, 0, 1), a.Timezone, a.DaysOfWeek)
	if err != nil {
		c.reportError(a.CodeID, "recover_pending", err)
		return
	}
	nextUTC, _, err := temporal.LocalToUTC(a.LocalTime, a.Timezone, next)
	if err != nil {
		c.reportError(a.CodeID, "recover_pending", err)
		return
	}
	if err := c.store.RecordFired(ctx, a.CodeID, now, occurrenceLocalDate, &nextUTC, alarm.StatusScheduled); err != nil {
		c.reportError(a.CodeID, "recover_pending", err)
		return
	}

	c.index.Remove(a.CodeID)
	c.index.Add(temporal.SecondOfDay(nextUTC), scheduler.Projection{
		CodeID:      a.CodeID,
		Email:       a.Email,
		IsRecurring: a.IsRecurring,
		DaysOfWeek:  a.DaysOfWeek,
		Status:      alarm.StatusScheduled,
	})
	c.log.With(logger.FieldSymbol, logger.SymbolFire).Warnw("recovered stale pending claim, re-armed",
		logger.FieldCodeID, a.CodeID)
}

// ApplyCreateOrUpdate indexes a after a Store create or update, per
// "Store change application": compute the UTC second and add it.
func (c *Controller) ApplyCreateOrUpdate(a *alarm.Alarm) error {
	if a.Status != alarm.StatusScheduled {
		c.index.Remove(a.CodeID)
		return nil
	}
	return c.indexForToday(a, time.Now().UTC())
}

// ApplyCancelOrDelete removes codeID from the index, per "Store change
// application" on cancel/delete.
func (c *Controller) ApplyCancelOrDelete(codeID string) {
	c.index.Remove(codeID)
}

// Run starts the reconciliation and cleanup background loops. The tick
// loop itself is driven externally by a *scheduler.Ticker configured
// with c.HandleDue as its DueHandler.
func (c *Controller) Run() {
	c.wg.Add(2)
	go c.reconcileLoop()
	go c.cleanupLoop()
}

// Stop cancels the background loops and waits for them to exit.
func (c *Controller) Stop() {
	c.cancel()
	c.wg.Wait()
}

// HandleDue is the scheduler.DueHandler: for each projection due at this
// tick, it dispatches claimOccurrence across the bounded worker pool and
// waits for the batch to finish before returning, so the tick loop never
// races ahead of its own fan-out.
func (c *Controller) HandleDue(tickTime time.Time, due []scheduler.Projection) {
	var wg sync.WaitGroup
	for _, proj := range due {
		proj := proj
		wg.Add(1)
		c.sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-c.sem }()
			c.claimOccurrence(proj, tickTime)
		}()
	}
	wg.Wait()
}

// claimOccurrence implements §4.E steps 1-6 for a single due code_id.
func (c *Controller) claimOccurrence(proj scheduler.Projection, tickTime time.Time) {
	ctx := logger.WithJobID(c.ctx, proj.CodeID)
	start := time.Now()
	defer func() {
		durationMS := time.Since(start).Milliseconds()
		if logger.ShouldShowTiming(logger.Verbosity(), durationMS) {
			logger.ChildLogger(c.log, logger.FieldCodeID, proj.CodeID).
				Debugw("claim occurrence timing", logger.FieldDurationMS, durationMS)
		}
	}()

	a, err := c.store.Get(ctx, proj.CodeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.index.Remove(proj.CodeID)
			return
		}
		c.reportError(proj.CodeID, "resolve_alarm", err)
		return
	}

	if a.Status != alarm.StatusScheduled {
		// Already claimed by another replica, canceled, or failed
		// since this tick started; nothing to do.
		return
	}

	weekday, err := temporal.WeekdayInZone(tickTime, a.Timezone)
	if err != nil {
		c.reportError(proj.CodeID, "weekday_check", err)
		return
	}
	if a.IsRecurring && !a.DaysOfWeek.Contains(weekday) {
		// Not a qualifying day; leave indexed for a future occurrence.
		return
	}

	if err := c.store.MarkStatus(ctx, a.CodeID, alarm.StatusTriggeredPending, alarm.StatusScheduled); err != nil {
		if errors.Is(err, store.ErrStaleCAS) {
			// Another replica already claimed this occurrence.
			return
		}
		c.reportError(proj.CodeID, "claim_cas", err)
		return
	}

	occurrenceLocalDate := tickTime.Format("2006-01-02")
	if loc, err := time.LoadLocation(a.Timezone); err == nil {
		occurrenceLocalDate = tickTime.In(loc).Format("2006-01-02")
	}
	event := bus.AlarmTriggered{
		CodeID:              a.CodeID,
		Email:               a.Email,
		FiredAtUTC:          tickTime,
		OccurrenceLocalDate: occurrenceLocalDate,
		Timezone:            a.Timezone,
		LocalTime:           temporal.FormatClockTime(a.LocalTime),
	}

	result := c.publisher.Publish(ctx, bus.TopicAlarmTriggered, event)
	if result == bus.ResultTerminalFail {
		if err := c.store.MarkStatus(ctx, a.CodeID, alarm.StatusFailed, alarm.StatusTriggeredPending); err != nil && !errors.Is(err, store.ErrStaleCAS) {
			c.reportError(proj.CodeID, "mark_failed", err)
		}
		c.index.Remove(a.CodeID)
		c.reportError(proj.CodeID, "publish_exhausted", errors.Newf("bus publish exhausted retry budget for topic %s", bus.TopicAlarmTriggered))
		return
	}

	c.publisher.Publish(ctx, bus.TopicEmailRequest, bus.EmailRequest{
		CodeID:              a.CodeID,
		Email:               a.Email,
		OccurrenceLocalDate: occurrenceLocalDate,
		FiredAtUTC:          tickTime,
	})

	c.advanceOrTerminate(ctx, a, tickTime, occurrenceLocalDate)
}

// advanceOrTerminate implements step 6: recurring alarms are re-armed for
// their next qualifying occurrence and left indexed; one-shot alarms are
// finalized from the pending claim to the terminal triggered status and
// removed from the index.
func (c *Controller) advanceOrTerminate(ctx context.Context, a *alarm.Alarm, tickTime time.Time, occurrenceLocalDate string) {
	if !a.IsRecurring {
		if err := c.store.RecordFired(ctx, a.CodeID, tickTime, occurrenceLocalDate, nil, alarm.StatusTriggered); err != nil {
			c.reportError(a.CodeID, "record_fired", err)
			return
		}
		c.index.Remove(a.CodeID)
		return
	}

	next, err := temporal.NextQualifyingDate(tickTime.AddDate(0, 0, 1), a.Timezone, a.DaysOfWeek)
	if err != nil {
		c.reportError(a.CodeID, "recurrence_advance", err)
		return
	}
	nextUTC, _, err := temporal.LocalToUTC(a.LocalTime, a.Timezone, next)
	if err != nil {
		c.reportError(a.CodeID, "recurrence_advance", err)
		return
	}

	if err := c.store.RecordFired(ctx, a.CodeID, tickTime, occurrenceLocalDate, &nextUTC, alarm.StatusScheduled); err != nil {
		c.reportError(a.CodeID, "record_fired", err)
		return
	}

	c.index.Remove(a.CodeID)
	c.index.Add(temporal.SecondOfDay(nextUTC), scheduler.Projection{
		CodeID:      a.CodeID,
		Email:       a.Email,
		IsRecurring: a.IsRecurring,
		DaysOfWeek:  a.DaysOfWeek,
		Status:      alarm.StatusScheduled,
	})
}

func (c *Controller) reportError(codeID, stage string, err error) {
	c.log.With(logger.FieldSymbol, logger.SymbolFire).Errorw("lifecycle error",
		logger.FieldCodeID, codeID, "stage", stage, "error", err)
	if c.publisher != nil {
		c.publisher.Publish(c.ctx, bus.TopicInternalError, bus.InternalError{
			CodeID:    codeID,
			Stage:     stage,
			Message:   err.Error(),
			Timestamp: time.Now().UTC(),
		})
	}
}

// reconcileLoop periodically compares index membership against the
// store's scheduled set and repairs drift in either direction.
func (c *Controller) reconcileLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.reconcile()
		}
	}
}

func (c *Controller) reconcile() {
	ctx := logger.WithComponent(c.ctx, "reconcile")

	if err := c.recoverStalePending(ctx); err != nil {
		c.log.With(logger.FieldSymbol, logger.SymbolStore).Warnw("reconcile: list pending claims failed", "error", err)
	}

	alarms, err := c.store.ListAllScheduled(ctx, alarm.StatusScheduled)
	if err != nil {
		c.log.With(logger.FieldSymbol, logger.SymbolStore).Warnw("reconcile: list scheduled failed", "error", err)
		return
	}

	inStore := make(map[string]struct{}, len(alarms))
	now := time.Now().UTC()
	for _, a := range alarms {
		inStore[a.CodeID] = struct{}{}
		if !c.index.Contains(a.CodeID) {
			if err := c.indexForToday(a, now); err != nil {
				c.log.With(logger.FieldSymbol, logger.SymbolStore).Warnw("reconcile: failed to re-index alarm",
					logger.FieldCodeID, a.CodeID, "error", err)
			}
		}
	}

	removed := 0
	for _, codeID := range c.index.CodeIDs() {
		if _, ok := inStore[codeID]; !ok {
			c.index.Remove(codeID)
			removed++
		}
	}

	c.log.With(logger.FieldSymbol, logger.SymbolStore).Debugw("reconcile pass complete",
		"store_scheduled", len(alarms), "index_size", c.index.Len(), "orphans_removed", removed)
}

// cleanupLoop periodically purges terminal one-shot rows older than the
// configured retention window.
func (c *Controller) cleanupLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

func (c *Controller) cleanup() {
	ctx := logger.WithComponent(c.ctx, "cleanup")
	cutoff := time.Now().UTC().Add(-c.cfg.CleanupRetention)
	n, err := c.store.DeleteExpired(ctx, cutoff)
	if err != nil {
		c.log.With(logger.FieldSymbol, logger.SymbolStore).Warnw("cleanup: delete_expired failed", "error", err)
		return
	}
	if n > 0 {
		c.log.With(logger.FieldSymbol, logger.SymbolStore).Infow("cleanup: purged expired alarms", "count", n)
	}
}
