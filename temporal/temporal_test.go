package temporal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volk7/alerting/alarm"
)

func TestParseClockTime(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    alarm.ClockTime
		wantErr bool
	}{
		{"HH:MM", "09:30", alarm.ClockTime{Hour: 9, Minute: 30}, false},
		{"HH:MM:SS", "09:30:15", alarm.ClockTime{Hour: 9, Minute: 30, Second: 15}, false},
		{"midnight", "00:00", alarm.ClockTime{}, false},
		{"end of day", "23:59:59", alarm.ClockTime{Hour: 23, Minute: 59, Second: 59}, false},
		{"bad hour", "24:00", alarm.ClockTime{}, true},
		{"bad minute", "12:60", alarm.ClockTime{}, true},
		{"garbage", "not-a-time", alarm.ClockTime{}, true},
		{"too many parts", "1:2:3:4", alarm.ClockTime{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseClockTime(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocalToUTCRoundTrip(t *testing.T) {
	onDate := time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC)
	local := alarm.ClockTime{Hour: 9, Minute: 0, Second: 0}

	utc, _, err := LocalToUTC(local, "America/Los_Angeles", onDate)
	require.NoError(t, err)
	// In July, LA is UTC-7 (PDT).
	assert.Equal(t, alarm.ClockTime{Hour: 16, Minute: 0, Second: 0}, utc)

	backLocal, _, err := UTCToLocal(utc, "America/Los_Angeles", onDate)
	require.NoError(t, err)
	assert.Equal(t, local, backLocal)
}

func TestLocalToUTCInvalidZone(t *testing.T) {
	_, _, err := LocalToUTC(alarm.ClockTime{Hour: 9}, "Not/AZone", time.Now())
	assert.Error(t, err)
}

func TestLocalToUTCSpringForwardGap(t *testing.T) {
	// 2023-03-12: America/New_York clocks jump from 02:00 to 03:00.
	// 02:30 does not exist; policy shifts forward by the gap size, landing
	// on 03:30 local, i.e. one hour later than a naive offset would give.
	onDate := time.Date(2023, 3, 12, 0, 0, 0, 0, time.UTC)
	local := alarm.ClockTime{Hour: 2, Minute: 30, Second: 0}

	_, instant, err := LocalToUTC(local, "America/New_York", onDate)
	require.NoError(t, err)

	backLocal, _, err := UTCToLocal(alarm.ClockTime{Hour: instant.Hour(), Minute: instant.Minute(), Second: instant.Second()}, "America/New_York", onDate)
	require.NoError(t, err)
	assert.Equal(t, alarm.ClockTime{Hour: 3, Minute: 30, Second: 0}, backLocal)
}

func TestLocalToUTCFallBackOverlap(t *testing.T) {
	// 2023-11-05: America/New_York clocks fall back from 02:00 to 01:00.
	// 01:30 occurs twice; policy resolves to the earlier (pre-transition,
	// still-EDT) instant.
	onDate := time.Date(2023, 11, 5, 0, 0, 0, 0, time.UTC)
	local := alarm.ClockTime{Hour: 1, Minute: 30, Second: 0}

	_, instant, err := LocalToUTC(local, "America/New_York", onDate)
	require.NoError(t, err)

	// EDT is UTC-4; the earlier occurrence of 01:30 EDT is 05:30 UTC.
	// (The later, EST, occurrence would be 06:30 UTC.)
	assert.Equal(t, 5, instant.UTC().Hour())
	assert.Equal(t, 30, instant.UTC().Minute())
}

func TestWeekdayInZoneCrossesDateBoundary(t *testing.T) {
	// 2026-07-15 02:00 UTC is still 2026-07-14 19:00 in Los Angeles.
	instant := time.Date(2026, 7, 15, 2, 0, 0, 0, time.UTC)

	wd, err := WeekdayInZone(instant, "America/Los_Angeles")
	require.NoError(t, err)
	assert.Equal(t, alarm.Tuesday, wd) // 2026-07-14 is a Tuesday

	wdUTC, err := WeekdayInZone(instant, "UTC")
	require.NoError(t, err)
	assert.Equal(t, alarm.Wednesday, wdUTC)
}

func TestSecondOfDayRoundTrip(t *testing.T) {
	for _, sec := range []int{0, 1, 3599, 3600, 43200, 86399} {
		ct := ClockTimeFromSecondOfDay(sec)
		assert.Equal(t, sec, SecondOfDay(ct))
	}
}

func TestNextQualifyingDate(t *testing.T) {
	from := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC) // Thursday
	days := alarm.DaysOfWeek{alarm.Monday, alarm.Friday}

	next, err := NextQualifyingDate(from, "UTC", days)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC), next) // next Friday
}

func TestNextQualifyingDateNoMatch(t *testing.T) {
	from := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	_, err := NextQualifyingDate(from, "UTC", alarm.DaysOfWeek{})
	require.NoError(t, err) // empty set means "every day"; returns from unchanged
}

func TestNormalizeZone(t *testing.T) {
	got, err := NormalizeZone("america/new_york")
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", got)

	_, err = NormalizeZone("")
	assert.Error(t, err)
}
