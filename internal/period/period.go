// Package period turns a (year, granularity, range) request into the
// ordered sequence of processing periods. Planning is pure: no I/O, no
// clock reads, and the result depends only on the arguments.
package period

import (
	"time"

	"vegcover/internal/config"
)

// Period is one contiguous calendar interval of work.
//
// Start/End bound the *output* window (End exclusive): the interval the
// period reports coverage for. QueryEnd bounds the *acquisition* window
// used to search for source imagery; it may extend past End so short
// periods can still find scenes. Periods are immutable once planned.
type Period struct {
	Index    int
	Label    string
	Start    time.Time
	End      time.Time
	QueryEnd time.Time
}

// QueryWindow returns the acquisition interval [Start, QueryEnd).
func (p Period) QueryWindow() (time.Time, time.Time) { return p.Start, p.QueryEnd }

const (
	daysPerPeriod = 15
	lastYearDay   = 365 // day-of-year arithmetic; the final period absorbs day 366
)

// Biweekly plans 2*months fixed 15-day periods, 1-indexed, using
// day-of-year arithmetic from January 1. The last period is clipped to
// day 365. Each period's acquisition window runs acquisitionDays from
// its start, independent of the 15-day output window.
func Biweekly(year, months, acquisitionDays int) ([]Period, error) {
	if months < 1 || months > 12 {
		return nil, &config.ValidationError{Option: "months", Msg: "must be between 1 and 12"}
	}
	if acquisitionDays < 1 {
		return nil, &config.ValidationError{Option: "acquisition-window", Msg: "must be at least 1 day"}
	}

	jan1 := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	total := months * 2
	periods := make([]Period, 0, total)
	for i := 1; i <= total; i++ {
		startDay := (i-1)*daysPerPeriod + 1
		endDay := i * daysPerPeriod
		if endDay > lastYearDay {
			endDay = lastYearDay
		}
		start := jan1.AddDate(0, 0, startDay-1)
		periods = append(periods, Period{
			Index:    i,
			Label:    start.Format("2006-01-02"),
			Start:    start,
			End:      jan1.AddDate(0, 0, endDay),
			QueryEnd: start.AddDate(0, 0, acquisitionDays),
		})
	}
	return periods, nil
}

// Monthly plans one period per calendar month in [startMonth, endMonth],
// indexed by month number. Monthly windows are long enough that the
// acquisition window equals the output window.
func Monthly(year, startMonth, endMonth int) ([]Period, error) {
	if startMonth < 1 || startMonth > 12 {
		return nil, &config.ValidationError{Option: "start-month", Msg: "must be between 1 and 12"}
	}
	if endMonth < 1 || endMonth > 12 {
		return nil, &config.ValidationError{Option: "end-month", Msg: "must be between 1 and 12"}
	}
	if startMonth > endMonth {
		return nil, &config.ValidationError{Option: "start-month", Msg: "must not exceed end-month"}
	}

	periods := make([]Period, 0, endMonth-startMonth+1)
	for m := startMonth; m <= endMonth; m++ {
		start := time.Date(year, time.Month(m), 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 1, 0)
		periods = append(periods, Period{
			Index:    m,
			Label:    start.Format("2006-01"),
			Start:    start,
			End:      end,
			QueryEnd: end,
		})
	}
	return periods, nil
}
