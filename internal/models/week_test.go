package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSundayWeekStart(t *testing.T) {
	// 2024-01-07 is a Sunday.
	sunday := date(2024, 1, 7)
	for i := 0; i < 7; i++ {
		day := sunday.AddDate(0, 0, i)
		assert.Equal(t, sunday, SundayWeekStart(day), "day %s", day.Weekday())
	}
	assert.Equal(t, sunday, SundayWeekStart(sunday.Add(15*time.Hour)))
}

func TestMondayWeekStart(t *testing.T) {
	monday := date(2024, 1, 8)
	for i := 0; i < 7; i++ {
		day := monday.AddDate(0, 0, i)
		assert.Equal(t, monday, MondayWeekStart(day), "day %s", day.Weekday())
	}

	// Sunday belongs to the week that started six days earlier.
	assert.Equal(t, date(2024, 1, 1), MondayWeekStart(date(2024, 1, 7)))
}

func TestWeekWindow(t *testing.T) {
	w := NewWeekWindow(time.Date(2024, 2, 26, 13, 0, 0, 0, time.UTC))

	assert.Equal(t, date(2024, 2, 26), w.Start)
	assert.Equal(t, time.Date(2024, 3, 3, 23, 59, 59, 0, time.UTC), w.End)

	dates := w.Dates()
	assert.Equal(t, date(2024, 2, 26), dates[0])
	assert.Equal(t, date(2024, 2, 29), dates[3])
	assert.Equal(t, date(2024, 3, 3), dates[6])

	assert.True(t, w.Contains(date(2024, 3, 3)))
	assert.True(t, w.Contains(date(2024, 2, 26)))
	assert.False(t, w.Contains(date(2024, 3, 4)))
	assert.False(t, w.Contains(date(2024, 2, 25)))
}
