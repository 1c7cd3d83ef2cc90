package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMissedSecondsFirstTick(t *testing.T) {
	assert.Equal(t, []int{42}, missedSeconds(-1, 42))
}

func TestMissedSecondsStutter(t *testing.T) {
	assert.Nil(t, missedSeconds(42, 42))
}

func TestMissedSecondsNormalAdvance(t *testing.T) {
	assert.Equal(t, []int{43}, missedSeconds(42, 43))
}

func TestMissedSecondsCatchUp(t *testing.T) {
	assert.Equal(t, []int{43, 44, 45}, missedSeconds(42, 45))
}

func TestMissedSecondsWrapsAtMidnight(t *testing.T) {
	got := missedSeconds(secondsPerDay-2, 1)
	assert.Equal(t, []int{secondsPerDay - 1, 0, 1}, got)
}

func TestTickerProcessSecondInvokesHandlerOnlyWhenDue(t *testing.T) {
	idx := NewIndex()
	idx.Add(10, Projection{CodeID: "a"})

	var calls int
	var lastDue []Projection
	tk := &Ticker{
		index:      idx,
		lastSecond: -1,
		handler: func(_ time.Time, due []Projection) {
			calls++
			lastDue = due
		},
	}

	now := time.Now().UTC()
	tk.processSecond(now, 10)
	tk.processSecond(now, 11)

	require.Equal(t, 1, calls)
	require.Len(t, lastDue, 1)
	assert.Equal(t, "a", lastDue[0].CodeID)
	assert.EqualValues(t, 2, tk.Stats().TicksHandled)
}
