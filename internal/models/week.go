package models

import "time"

// DaysPerWeek is the length of every analysed window
const DaysPerWeek = 7

// DateOf truncates t to midnight UTC of its calendar date
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SundayWeekStart is the consumption-side week key: the Sunday on or before t.
func SundayWeekStart(t time.Time) time.Time {
	d := DateOf(t)
	return d.AddDate(0, 0, -int(d.Weekday()))
}

// MondayWeekStart is the transformer-side week key: t walked back one day at a
// time until it lands on a Monday.
func MondayWeekStart(t time.Time) time.Time {
	d := DateOf(t)
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// WeekWindow is a 7-day span starting at Start. End is the last second of the
// seventh day.
type WeekWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewWeekWindow builds the window beginning on the calendar date of start
func NewWeekWindow(start time.Time) WeekWindow {
	s := DateOf(start)
	return WeekWindow{
		Start: s,
		End:   s.AddDate(0, 0, DaysPerWeek).Add(-time.Second),
	}
}

// Dates returns the seven calendar dates covered by the window, in order
func (w WeekWindow) Dates() [DaysPerWeek]time.Time {
	var dates [DaysPerWeek]time.Time
	for i := range dates {
		dates[i] = w.Start.AddDate(0, 0, i)
	}
	return dates
}

// Contains reports whether t falls inside [Start, End]
func (w WeekWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}
