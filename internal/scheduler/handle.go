// Package scheduler arms, disarms, and fires timed callbacks, with
// alignment-aware recurrence and clock-drift compensation.
package scheduler

import (
	"errors"
	"time"

	"github.com/usched-go/usched/internal/errs"
)

var (
	ErrInvalidMonthdayAlign = errs.Wrap(errs.ErrUsage, errors.New("scheduler: MONTHDAY_ALIGN requires step to be a positive integer multiple of 30 days"))
	ErrInvalidYeardayAlign  = errs.Wrap(errs.ErrUsage, errors.New("scheduler: YEARDAY_ALIGN requires step to be a positive integer multiple of 365 days"))
	ErrHandleNotFound       = errs.Wrap(errs.ErrResource, errors.New("scheduler: handle not armed"))
	ErrAlreadyDisarmed      = errs.Wrap(errs.ErrResource, errors.New("scheduler: handle already disarmed"))
)

const (
	monthSeconds = 30 * 86400
	yearSeconds  = 365 * 86400
)

// Align selects the recurrence rule applied to an armed entry's trigger
// after each firing.
type Align int

const (
	AlignNone Align = iota
	AlignMonthday
	AlignYearday
)

// Handle is the opaque identifier returned by Arm, analogous to the
// original's psched_id.
type Handle uint64

// Callback is invoked from a scheduler worker goroutine when an entry's
// trigger fires. data is whatever opaque value was passed to Arm.
type Callback func(data any)

// ValidateAlign checks the step-validity contract from spec.md §9's
// month-alignment Open Question before an entry is ever armed.
func ValidateAlign(align Align, step time.Duration) error {
	switch align {
	case AlignMonthday:
		secs := int64(step / time.Second)
		if secs <= 0 || secs%monthSeconds != 0 {
			return ErrInvalidMonthdayAlign
		}
	case AlignYearday:
		secs := int64(step / time.Second)
		if secs <= 0 || secs%yearSeconds != 0 {
			return ErrInvalidYeardayAlign
		}
	}
	return nil
}

// NextTrigger computes the next trigger time after a firing at `from`,
// applying the configured alignment rule. Callers must have already
// validated align/step with ValidateAlign.
func NextTrigger(from time.Time, step time.Duration, align Align) time.Time {
	if step <= 0 {
		return from
	}
	switch align {
	case AlignMonthday:
		months := int(int64(step/time.Second) / monthSeconds)
		return addCalendarMonths(from, months)
	case AlignYearday:
		years := int(int64(step/time.Second) / yearSeconds)
		return addCalendarYears(from, years)
	default:
		return from.Add(step)
	}
}

// addCalendarMonths advances by n calendar months, preserving day-of-month
// when legal and clamping to the last valid day of the target month
// otherwise (spec.md §4.3).
func addCalendarMonths(from time.Time, n int) time.Time {
	day := from.Day()
	targetMonthStart := time.Date(from.Year(), from.Month(), 1, from.Hour(), from.Minute(), from.Second(), from.Nanosecond(), from.Location())
	targetMonthStart = targetMonthStart.AddDate(0, n, 0)
	lastDay := lastDayOfMonth(targetMonthStart)
	if day > lastDay {
		day = lastDay
	}
	return time.Date(targetMonthStart.Year(), targetMonthStart.Month(), day,
		from.Hour(), from.Minute(), from.Second(), from.Nanosecond(), from.Location())
}

// addCalendarYears advances by n calendar years, preserving day-of-year
// (day 366 of a leap year clamps to Dec 31 on a non-leap target year).
func addCalendarYears(from time.Time, n int) time.Time {
	yday := from.YearDay()
	y := from.Year() + n
	target := time.Date(y, time.January, 1, from.Hour(), from.Minute(), from.Second(), from.Nanosecond(), from.Location()).AddDate(0, 0, yday-1)
	if target.Year() != y {
		// from was day 366 of a leap year; the target year isn't leap.
		target = time.Date(y, time.December, 31, from.Hour(), from.Minute(), from.Second(), from.Nanosecond(), from.Location())
	}
	return target
}

func lastDayOfMonth(t time.Time) int {
	firstOfNext := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, 1, 0)
	return firstOfNext.AddDate(0, 0, -1).Day()
}
