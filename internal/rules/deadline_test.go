package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDaysRemainingIgnoresTimeOfDay(t *testing.T) {
	today := time.Date(2024, time.March, 10, 23, 59, 0, 0, time.UTC)
	deadline := time.Date(2024, time.March, 11, 0, 1, 0, 0, time.UTC)
	assert.Equal(t, 1, DaysRemaining(deadline, today))
	assert.Equal(t, 0, DaysRemaining(today, today.Add(-12*time.Hour)))
}

func TestDaysRemainingUsesLocalCalendarDay(t *testing.T) {
	buenosAires := time.FixedZone("ART", -3*60*60)
	// 22:00 in Buenos Aires is already the next day in UTC.
	today := time.Date(2024, time.March, 9, 22, 0, 0, 0, buenosAires)
	deadline := time.Date(2024, time.March, 11, 8, 0, 0, 0, buenosAires)
	assert.Equal(t, 2, DaysRemaining(deadline, today))
}

func TestDaysRemainingFarApartDates(t *testing.T) {
	assert.Equal(t, 137331, DaysRemaining(day(2400, time.January, 1), day(2024, time.January, 1)))
	assert.Equal(t, -137331, DaysRemaining(day(2024, time.January, 1), day(2400, time.January, 1)))
	assert.Equal(t, UrgencyOnTrack, EvaluateDeadline(day(2400, time.January, 1), day(2024, time.January, 1)).Urgency)
}

func TestEvaluateDeadlineYesterdayIsOverdue(t *testing.T) {
	today := day(2024, time.May, 20)
	status := EvaluateDeadline(today.AddDate(0, 0, -1), today)
	assert.Equal(t, -1, status.DaysRemaining)
	assert.Equal(t, UrgencyOverdue, status.Urgency)
	assert.Equal(t, "red", status.Color)
}

func TestClassifyDaysBoundaries(t *testing.T) {
	cases := map[int]Urgency{
		-30: UrgencyOverdue,
		-1:  UrgencyOverdue,
		0:   UrgencyWarning,
		1:   UrgencyWarning,
		3:   UrgencyWarning,
		4:   UrgencyOnTrack,
		90:  UrgencyOnTrack,
	}
	for days, want := range cases {
		assert.Equal(t, want, ClassifyDays(days), "days=%d", days)
	}
}

func TestEvaluateDeadlineMatchesDateComparison(t *testing.T) {
	today := day(2024, time.December, 29)
	for offset := -10; offset <= 10; offset++ {
		deadline := today.AddDate(0, 0, offset)
		got := EvaluateDeadline(deadline, today).Urgency
		switch {
		case deadline.Before(today):
			assert.Equal(t, UrgencyOverdue, got, "offset=%d", offset)
		case !deadline.After(today.AddDate(0, 0, 3)):
			assert.Equal(t, UrgencyWarning, got, "offset=%d", offset)
		default:
			assert.Equal(t, UrgencyOnTrack, got, "offset=%d", offset)
		}
	}
}

func TestUrgencyWindow(t *testing.T) {
	today := time.Date(2024, time.June, 1, 15, 0, 0, 0, time.UTC)

	from, to := UrgencyWindow(UrgencyOverdue, today)
	assert.Nil(t, from)
	require.NotNil(t, to)
	assert.Equal(t, day(2024, time.May, 31), *to)

	from, to = UrgencyWindow(UrgencyWarning, today)
	require.NotNil(t, from)
	require.NotNil(t, to)
	assert.Equal(t, day(2024, time.June, 1), *from)
	assert.Equal(t, day(2024, time.June, 4), *to)

	from, to = UrgencyWindow(UrgencyOnTrack, today)
	require.NotNil(t, from)
	assert.Nil(t, to)
	assert.Equal(t, day(2024, time.June, 5), *from)

	from, to = UrgencyWindow(Urgency("bogus"), today)
	assert.Nil(t, from)
	assert.Nil(t, to)
}
