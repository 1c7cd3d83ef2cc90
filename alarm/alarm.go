// Package alarm defines the scheduled-alarm domain model.
package alarm

import (
	"time"
)

// Status is the lifecycle state of an Alarm.
type Status string

const (
	StatusScheduled Status = "scheduled"
	// StatusTriggeredPending is the non-terminal claim marker written by the
	// CAS in MarkStatus at the start of a firing: distinct from the terminal
	// StatusTriggered so a replica that crashes between winning the CAS and
	// recording the outcome leaves a row recovery can recognize and re-arm
	// (recurring) or finalize (one-shot), instead of one that looks exactly
	// like a completed firing.
	StatusTriggeredPending Status = "triggered_pending"
	StatusTriggered        Status = "triggered"
	StatusCanceled         Status = "canceled"
	StatusFailed           Status = "failed"
)

// Weekday is a day of week evaluated in an alarm's own timezone, never the
// server's local time.
type Weekday string

const (
	Monday    Weekday = "Mon"
	Tuesday   Weekday = "Tue"
	Wednesday Weekday = "Wed"
	Thursday  Weekday = "Thu"
	Friday    Weekday = "Fri"
	Saturday  Weekday = "Sat"
	Sunday    Weekday = "Sun"
)

// WeekdayFromTime maps a time.Weekday to our three-letter domain Weekday.
func WeekdayFromTime(w time.Weekday) Weekday {
	switch w {
	case time.Monday:
		return Monday
	case time.Tuesday:
		return Tuesday
	case time.Wednesday:
		return Wednesday
	case time.Thursday:
		return Thursday
	case time.Friday:
		return Friday
	case time.Saturday:
		return Saturday
	default:
		return Sunday
	}
}

// DaysOfWeek is a small set of Weekday values. Stored and compared without
// regard to order.
type DaysOfWeek []Weekday

// Contains reports whether d is in the set.
func (w DaysOfWeek) Contains(d Weekday) bool {
	for _, x := range w {
		if x == d {
			return true
		}
	}
	return false
}

// ClockTime is a wall-clock time of day with second precision.
type ClockTime struct {
	Hour   int
	Minute int
	Second int
}

// Alarm is the canonical scheduled unit.
type Alarm struct {
	CodeID string
	Email  string

	LocalTime ClockTime
	Timezone  string

	// UTCTime is derived from LocalTime + Timezone at the date of the
	// alarm's next firing. It is DST-varying and must be recomputed at
	// each occurrence, never frozen at creation time.
	UTCTime ClockTime

	IsRecurring bool
	DaysOfWeek  DaysOfWeek

	Status Status

	// LastFiredOccurrence and LastFiredLocalDate track the most recent
	// occurrence this alarm was claimed for, so a reconciler can detect
	// an index entry that drifted from the store without re-deriving it
	// from first principles.
	LastFiredOccurrence time.Time
	LastFiredLocalDate  string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsOneShot reports whether the alarm fires exactly once.
func (a *Alarm) IsOneShot() bool {
	return !a.IsRecurring
}

// IsTerminal reports whether the alarm's status will never transition again
// without external action (create/update via the Store).
func (a *Alarm) IsTerminal() bool {
	switch a.Status {
	case StatusCanceled, StatusFailed:
		return true
	case StatusTriggered:
		return a.IsOneShot()
	default:
		return false
	}
}
