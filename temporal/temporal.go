// Package temporal is the pure functional surface for alarm clock-time
// conversions. No I/O; every timezone decision a scheduling cycle needs
// lives here, never in the hot tick loop.
package temporal

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/volk7/alerting/alarm"
	"github.com/volk7/alerting/am/geotime"
	"github.com/volk7/alerting/errors"
)

// ParseClockTime accepts "HH:MM" or "HH:MM:SS" and normalizes to a
// alarm.ClockTime. Returns InvalidTime-flavored error for anything out of
// range or malformed.
func ParseClockTime(s string) (alarm.ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return alarm.ClockTime{}, errors.Newf("invalid time format: %q (want HH:MM or HH:MM:SS)", s)
	}

	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return alarm.ClockTime{}, errors.Wrapf(err, "invalid time component %q in %q", p, s)
		}
		nums[i] = n
	}

	ct := alarm.ClockTime{Hour: nums[0], Minute: nums[1]}
	if len(nums) == 3 {
		ct.Second = nums[2]
	}

	if err := validateClockTime(ct); err != nil {
		return alarm.ClockTime{}, err
	}
	return ct, nil
}

func validateClockTime(ct alarm.ClockTime) error {
	if ct.Hour < 0 || ct.Hour > 23 {
		return errors.Newf("invalid hour: %d", ct.Hour)
	}
	if ct.Minute < 0 || ct.Minute > 59 {
		return errors.Newf("invalid minute: %d", ct.Minute)
	}
	if ct.Second < 0 || ct.Second > 59 {
		return errors.Newf("invalid second: %d", ct.Second)
	}
	return nil
}

// FormatClockTime renders a ClockTime as HH:MM:SS.
func FormatClockTime(ct alarm.ClockTime) string {
	return fmt.Sprintf("%02d:%02d:%02d", ct.Hour, ct.Minute, ct.Second)
}

// ValidateZone reports whether zone is a loadable IANA timezone name.
func ValidateZone(zone string) error {
	return geotime.ValidateTimezone(zone)
}

// NormalizeZone canonicalizes a timezone name, e.g. "america/new_york" ->
// "America/New_York".
func NormalizeZone(zone string) (string, error) {
	return geotime.NormalizeTimezone(zone)
}

// LocalToUTC attaches local to onDate in zone and converts to the
// equivalent UTC wall-clock time.
//
// DST policy: if local does not exist on onDate in zone (spring-forward
// gap), the result is advanced by the size of the gap. If local occurs
// twice (fall-back overlap), the earlier (pre-transition) instant is used.
// time.Date alone does not fix either choice, so both are resolved here
// from the offsets in force a day before and a day after. Both choices are
// committed service-wide; do not special-case around them elsewhere.
func LocalToUTC(local alarm.ClockTime, zone string, onDate time.Time) (alarm.ClockTime, time.Time, error) {
	if err := validateClockTime(local); err != nil {
		return alarm.ClockTime{}, time.Time{}, err
	}

	loc, err := time.LoadLocation(zone)
	if err != nil {
		return alarm.ClockTime{}, time.Time{}, errors.Wrapf(err, "invalid zone: %s", zone)
	}

	wall := time.Date(onDate.Year(), onDate.Month(), onDate.Day(), local.Hour, local.Minute, local.Second, 0, time.UTC)
	approx := time.Date(onDate.Year(), onDate.Month(), onDate.Day(), local.Hour, local.Minute, local.Second, 0, loc)
	_, before := approx.Add(-24 * time.Hour).Zone()
	_, after := approx.Add(24 * time.Hour).Zone()
	readsWall := func(t time.Time) bool {
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC).Equal(wall)
	}

	// The pre-transition offset gives the earlier instant of an overlap and
	// lands past a gap by its size; the later offset is used only when it
	// alone reproduces the requested wall clock.
	localInstant := wall.Add(-time.Duration(before) * time.Second).In(loc)
	if !readsWall(localInstant) {
		if alt := wall.Add(-time.Duration(after) * time.Second).In(loc); readsWall(alt) {
			localInstant = alt
		}
	}
	utcInstant := localInstant.UTC()

	return alarm.ClockTime{
		Hour:   utcInstant.Hour(),
		Minute: utcInstant.Minute(),
		Second: utcInstant.Second(),
	}, utcInstant, nil
}

// UTCToLocal is the inverse of LocalToUTC: given a UTC wall-clock time on
// onDate (a UTC calendar date), return the local clock time and date as
// observed in zone.
func UTCToLocal(utc alarm.ClockTime, zone string, onDate time.Time) (alarm.ClockTime, time.Time, error) {
	if err := validateClockTime(utc); err != nil {
		return alarm.ClockTime{}, time.Time{}, err
	}

	loc, err := time.LoadLocation(zone)
	if err != nil {
		return alarm.ClockTime{}, time.Time{}, errors.Wrapf(err, "invalid zone: %s", zone)
	}

	utcInstant := time.Date(
		onDate.Year(), onDate.Month(), onDate.Day(),
		utc.Hour, utc.Minute, utc.Second, 0,
		time.UTC,
	)
	localInstant := utcInstant.In(loc)

	return alarm.ClockTime{
		Hour:   localInstant.Hour(),
		Minute: localInstant.Minute(),
		Second: localInstant.Second(),
	}, localInstant, nil
}

// WeekdayInZone returns the weekday of instant as observed in zone.
func WeekdayInZone(instant time.Time, zone string) (alarm.Weekday, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return "", errors.Wrapf(err, "invalid zone: %s", zone)
	}
	return alarm.WeekdayFromTime(instant.In(loc).Weekday()), nil
}

// SecondOfDay collapses a ClockTime to its 0..86399 offset, the key the
// scheduler index buckets on.
func SecondOfDay(ct alarm.ClockTime) int {
	return ct.Hour*3600 + ct.Minute*60 + ct.Second
}

// ClockTimeFromSecondOfDay is the inverse of SecondOfDay.
func ClockTimeFromSecondOfDay(sec int) alarm.ClockTime {
	sec = ((sec % 86400) + 86400) % 86400
	return alarm.ClockTime{
		Hour:   sec / 3600,
		Minute: (sec % 3600) / 60,
		Second: sec % 60,
	}
}

// NextQualifyingDate finds the earliest date on or after from (a UTC
// calendar date) whose weekday, observed in zone, is in days. Used to
// recompute an alarm's next occurrence after it fires or is updated.
func NextQualifyingDate(from time.Time, zone string, days alarm.DaysOfWeek) (time.Time, error) {
	if len(days) == 0 {
		return from, nil
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "invalid zone: %s", zone)
	}
	for i := 0; i < 8; i++ {
		candidate := from.AddDate(0, 0, i)
		wd := alarm.WeekdayFromTime(candidate.In(loc).Weekday())
		if days.Contains(wd) {
			return candidate, nil
		}
	}
	return time.Time{}, errors.Newf("no qualifying weekday found for days=%v within a week", days)
}
