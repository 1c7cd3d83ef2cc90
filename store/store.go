package store

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/volk7/alerting/alarm"
	"github.com/volk7/alerting/errors"
	"github.com/volk7/alerting/logger"
)

const pgUniqueViolation = "23505"

// Store handles persistence of alarms. All methods are safe for concurrent
// use; the underlying *sql.DB owns its own connection pool.
type Store struct {
	db  *sql.DB
	log *zap.SugaredLogger
}

// NewStore wraps an already-open, already-migrated pool. log is optional;
// when given, full query text is logged at -vvvv (ShouldShowStoreQueries).
func NewStore(db *sql.DB, log ...*zap.SugaredLogger) *Store {
	s := &Store{db: db}
	if len(log) > 0 {
		s.log = log[0]
	}
	return s
}

func (s *Store) logQuery(query string, args ...interface{}) {
	if s.log == nil || !logger.ShouldShowStoreQueries(logger.Verbosity()) {
		return
	}
	s.log.With(logger.FieldSymbol, logger.SymbolStore).Debugw("executing query", "query", query, "args", args)
}

// Create inserts a new alarm. Returns ErrConflict if code_id already exists.
func (s *Store) Create(ctx context.Context, a *alarm.Alarm) error {
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	const query = `
		INSERT INTO alarms (
			code_id, email,
			local_hour, local_minute, local_second, timezone,
			utc_hour, utc_minute, utc_second,
			is_recurring, days_of_week,
			status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	s.logQuery(query, a.CodeID)
	_, err := s.db.ExecContext(ctx, query,
		a.CodeID, a.Email,
		a.LocalTime.Hour, a.LocalTime.Minute, a.LocalTime.Second, a.Timezone,
		a.UTCTime.Hour, a.UTCTime.Minute, a.UTCTime.Second,
		a.IsRecurring, stringArray(daysToPG(a.DaysOfWeek)),
		string(a.Status), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Wrapf(ErrConflict, "code_id=%s", a.CodeID)
		}
		return errors.Wrapf(err, "create alarm code_id=%s", a.CodeID)
	}
	return nil
}

// Patch describes a partial update to an existing alarm. Nil fields are
// left unchanged.
type Patch struct {
	Email       *string
	LocalTime   *alarm.ClockTime
	Timezone    *string
	UTCTime     *alarm.ClockTime
	IsRecurring *bool
	DaysOfWeek  *alarm.DaysOfWeek
	Status      *alarm.Status
}

// Update applies patch to the alarm identified by codeID.
func (s *Store) Update(ctx context.Context, codeID string, patch Patch) error {
	existing, err := s.Get(ctx, codeID)
	if err != nil {
		return err
	}

	if patch.Email != nil {
		existing.Email = *patch.Email
	}
	if patch.LocalTime != nil {
		existing.LocalTime = *patch.LocalTime
	}
	if patch.Timezone != nil {
		existing.Timezone = *patch.Timezone
	}
	if patch.UTCTime != nil {
		existing.UTCTime = *patch.UTCTime
	}
	if patch.IsRecurring != nil {
		existing.IsRecurring = *patch.IsRecurring
	}
	if patch.DaysOfWeek != nil {
		existing.DaysOfWeek = *patch.DaysOfWeek
	}
	if patch.Status != nil {
		existing.Status = *patch.Status
	}
	existing.UpdatedAt = time.Now().UTC()

	const query = `
		UPDATE alarms SET
			email = $2,
			local_hour = $3, local_minute = $4, local_second = $5, timezone = $6,
			utc_hour = $7, utc_minute = $8, utc_second = $9,
			is_recurring = $10, days_of_week = $11,
			status = $12, updated_at = $13
		WHERE code_id = $1
	`

	res, err := s.db.ExecContext(ctx, query,
		codeID, existing.Email,
		existing.LocalTime.Hour, existing.LocalTime.Minute, existing.LocalTime.Second, existing.Timezone,
		existing.UTCTime.Hour, existing.UTCTime.Minute, existing.UTCTime.Second,
		existing.IsRecurring, stringArray(daysToPG(existing.DaysOfWeek)),
		string(existing.Status), existing.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "update alarm code_id=%s", codeID)
	}
	return requireRowAffected(res, codeID)
}

// Cancel transitions an alarm to StatusCanceled.
func (s *Store) Cancel(ctx context.Context, codeID string) error {
	const query = `
		UPDATE alarms SET status = $2, updated_at = $3
		WHERE code_id = $1 AND status NOT IN ($4, $5)
	`
	res, err := s.db.ExecContext(ctx, query,
		codeID, string(alarm.StatusCanceled), time.Now().UTC(),
		string(alarm.StatusCanceled), string(alarm.StatusFailed),
	)
	if err != nil {
		return errors.Wrapf(err, "cancel alarm code_id=%s", codeID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		// Either the row doesn't exist, or it's already terminal; either
		// way cancel is a no-op from the caller's perspective other than
		// reporting not-found for a genuinely missing row.
		if _, err := s.Get(ctx, codeID); err != nil {
			return err
		}
	}
	return nil
}

// Get retrieves a single alarm by code_id.
func (s *Store) Get(ctx context.Context, codeID string) (*alarm.Alarm, error) {
	const query = `
		SELECT code_id, email,
		       local_hour, local_minute, local_second, timezone,
		       utc_hour, utc_minute, utc_second,
		       is_recurring, days_of_week,
		       status, last_fired_occurrence, last_fired_local_date,
		       created_at, updated_at
		FROM alarms WHERE code_id = $1
	`
	row := s.db.QueryRowContext(ctx, query, codeID)
	a, err := scanAlarm(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(ErrNotFound, "code_id=%s", codeID)
		}
		return nil, errors.Wrapf(err, "get alarm code_id=%s", codeID)
	}
	return a, nil
}

// ListFilter narrows a ListScheduled scan.
type ListFilter struct {
	Email      string // empty means no filter
	Status     alarm.Status
	PageSize   int
	AfterCodeID string // keyset cursor; empty starts from the beginning
}

// ListScheduled returns one page of alarms matching filter, ordered by
// code_id for stable keyset pagination. Callers drive repeated calls with
// AfterCodeID set to the last code_id seen to page through the full
// result; the sequence is finite and not restartable once status changes
// underneath it mid-scan (same consistency model as any live table scan).
func (s *Store) ListScheduled(ctx context.Context, filter ListFilter) ([]*alarm.Alarm, error) {
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 500
	}

	var b strings.Builder
	b.WriteString(`
		SELECT code_id, email,
		       local_hour, local_minute, local_second, timezone,
		       utc_hour, utc_minute, utc_second,
		       is_recurring, days_of_week,
		       status, last_fired_occurrence, last_fired_local_date,
		       created_at, updated_at
		FROM alarms WHERE 1=1
	`)
	args := []interface{}{}
	argN := 1

	status := filter.Status
	if status == "" {
		status = alarm.StatusScheduled
	}
	args = append(args, string(status))
	b.WriteString(" AND status = $" + strconv.Itoa(argN))
	argN++

	if filter.Email != "" {
		args = append(args, filter.Email)
		b.WriteString(" AND email = $" + strconv.Itoa(argN))
		argN++
	}
	if filter.AfterCodeID != "" {
		args = append(args, filter.AfterCodeID)
		b.WriteString(" AND code_id > $" + strconv.Itoa(argN))
		argN++
	}
	args = append(args, pageSize)
	b.WriteString(" ORDER BY code_id LIMIT $" + strconv.Itoa(argN))

	s.logQuery(b.String(), args...)
	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, errors.Wrap(err, "list scheduled alarms")
	}
	defer rows.Close()

	var out []*alarm.Alarm
	for rows.Next() {
		a, err := scanAlarm(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan alarm row")
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate alarm rows")
	}
	return out, nil
}

// ListAllScheduled pages through ListScheduled until exhausted, for
// cold-start index rebuild and full reconciliation scans.
func (s *Store) ListAllScheduled(ctx context.Context, status alarm.Status) ([]*alarm.Alarm, error) {
	var all []*alarm.Alarm
	cursor := ""
	for {
		page, err := s.ListScheduled(ctx, ListFilter{Status: status, AfterCodeID: cursor, PageSize: 500})
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			return all, nil
		}
		all = append(all, page...)
		cursor = page[len(page)-1].CodeID
		if len(page) < 500 {
			return all, nil
		}
	}
}

// MarkStatus performs a compare-and-set on status: the update only takes
// effect if the row's current status equals expectedPrevious. Returns
// ErrStaleCAS if another replica already won the race.
func (s *Store) MarkStatus(ctx context.Context, codeID string, newStatus, expectedPrevious alarm.Status) error {
	const query = `
		UPDATE alarms SET status = $3, updated_at = $4
		WHERE code_id = $1 AND status = $2
	`
	res, err := s.db.ExecContext(ctx, query, codeID, string(expectedPrevious), string(newStatus), time.Now().UTC())
	if err != nil {
		return errors.Wrapf(err, "mark_status code_id=%s", codeID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return errors.Wrapf(ErrStaleCAS, "code_id=%s expected=%s new=%s", codeID, expectedPrevious, newStatus)
	}
	return nil
}

// RecordFired stamps the occurrence just claimed, for reconciliation
// drift checks, and (for recurring alarms) re-arms the row with its next
// occurrence's UTC time and status.
func (s *Store) RecordFired(ctx context.Context, codeID string, occurrence time.Time, localDate string, nextUTC *alarm.ClockTime, nextStatus alarm.Status) error {
	if nextUTC == nil {
		const query = `
			UPDATE alarms SET
				last_fired_occurrence = $2, last_fired_local_date = $3,
				status = $4, updated_at = $5
			WHERE code_id = $1
		`
		_, err := s.db.ExecContext(ctx, query, codeID, occurrence, localDate, string(nextStatus), time.Now().UTC())
		return errors.Wrapf(err, "record fired code_id=%s", codeID)
	}

	const query = `
		UPDATE alarms SET
			last_fired_occurrence = $2, last_fired_local_date = $3,
			utc_hour = $4, utc_minute = $5, utc_second = $6,
			status = $7, updated_at = $8
		WHERE code_id = $1
	`
	_, err := s.db.ExecContext(ctx, query,
		codeID, occurrence, localDate,
		nextUTC.Hour, nextUTC.Minute, nextUTC.Second,
		string(nextStatus), time.Now().UTC(),
	)
	return errors.Wrapf(err, "record fired and re-arm code_id=%s", codeID)
}

// DeleteExpired removes terminal one-shot alarms (triggered or failed)
// whose updated_at is older than cutoff, per the retention window.
func (s *Store) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `
		DELETE FROM alarms
		WHERE is_recurring = false
		  AND status IN ($1, $2)
		  AND updated_at < $3
	`
	res, err := s.db.ExecContext(ctx, query, string(alarm.StatusTriggered), string(alarm.StatusFailed), cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "delete expired alarms")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "rows affected")
	}
	return n, nil
}

func requireRowAffected(res sql.Result, codeID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return errors.Wrapf(ErrNotFound, "code_id=%s", codeID)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

func daysToPG(days alarm.DaysOfWeek) []string {
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = string(d)
	}
	return out
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAlarm(row scanner) (*alarm.Alarm, error) {
	var a alarm.Alarm
	var status string
	var daysRaw stringArray
	var lastFiredOccurrence sql.NullTime
	var lastFiredLocalDate sql.NullString

	err := row.Scan(
		&a.CodeID, &a.Email,
		&a.LocalTime.Hour, &a.LocalTime.Minute, &a.LocalTime.Second, &a.Timezone,
		&a.UTCTime.Hour, &a.UTCTime.Minute, &a.UTCTime.Second,
		&a.IsRecurring, &daysRaw,
		&status, &lastFiredOccurrence, &lastFiredLocalDate,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Status = alarm.Status(status)
	for _, d := range daysRaw {
		a.DaysOfWeek = append(a.DaysOfWeek, alarm.Weekday(d))
	}
	if lastFiredOccurrence.Valid {
		a.LastFiredOccurrence = lastFiredOccurrence.Time
	}
	if lastFiredLocalDate.Valid {
		a.LastFiredLocalDate = lastFiredLocalDate.String
	}

	return &a, nil
}
