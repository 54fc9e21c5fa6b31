package parser

import (
	"strconv"
	"strings"
	"time"
)

// resolveAbsolute computes the wall time matching the adverb/arg placement,
// per spec.md §4.1's absolute-placement table. seconds, minutes, hours,
// days, weeks, weekdays and time roll forward to the first match strictly
// after now; months yields day 1 of month N, next year when that is not
// after now; years accepts only a year later than now's. date, datetime
// and timestamp are returned as given, even when they lie in the past.
func resolveAbsolute(now time.Time, adv Adverb, arg string) (time.Time, *ParseError) {
	switch adv {
	case AdvSeconds:
		n, err := parseRange(arg, 0, 59)
		if err != nil {
			return time.Time{}, err
		}
		t := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), now.Minute(), n, 0, now.Location())
		if !t.After(now) {
			t = t.Add(time.Minute)
		}
		return t, nil

	case AdvMinutes:
		n, err := parseRange(arg, 0, 59)
		if err != nil {
			return time.Time{}, err
		}
		t := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), n, 0, 0, now.Location())
		if !t.After(now) {
			t = t.Add(time.Hour)
		}
		return t, nil

	case AdvHours:
		n, err := parseRange(arg, 0, 23)
		if err != nil {
			return time.Time{}, err
		}
		t := time.Date(now.Year(), now.Month(), now.Day(), n, 0, 0, 0, now.Location())
		if !t.After(now) {
			t = t.AddDate(0, 0, 1)
		}
		return t, nil

	case AdvDays:
		n, err := parseRange(arg, 1, 31)
		if err != nil {
			return time.Time{}, err
		}
		m := now.Month()
		t := time.Date(now.Year(), m, n, 0, 0, 0, 0, now.Location())
		for !t.After(now) || t.Day() != n {
			m++
			t = time.Date(now.Year(), m, n, 0, 0, 0, 0, now.Location())
		}
		return t, nil

	case AdvWeeks:
		n, err := parseRange(arg, 0, 53)
		if err != nil {
			return time.Time{}, err
		}
		t := now
		for t.YearDay()/7 != n || !t.After(now) {
			t = t.AddDate(0, 0, 1)
			if t.Year() > now.Year()+2 {
				return time.Time{}, usageErr(ErrInvalidArg, arg)
			}
		}
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, now.Location()), nil

	case AdvMonths:
		n, err := parseRange(arg, 1, 12)
		if err != nil {
			return time.Time{}, err
		}
		year := now.Year()
		t := time.Date(year, time.Month(n), 1, 0, 0, 0, 0, now.Location())
		if !t.After(now) {
			t = time.Date(year+1, time.Month(n), 1, 0, 0, 0, 0, now.Location())
		}
		return t, nil

	case AdvYears:
		n, err := strconv.Atoi(arg)
		if err != nil {
			return time.Time{}, usageErr(ErrInvalidArg, arg)
		}
		if n <= now.Year() {
			return time.Time{}, usageErr(ErrInvalidArg, arg)
		}
		return time.Date(n, now.Month(), now.Day(), now.Hour(), now.Minute(), now.Second(), 0, now.Location()), nil

	case AdvWeekdays:
		w, err := parseRange(arg, 1, 7)
		if err != nil {
			return time.Time{}, err
		}
		// Sun=1..Sat=7 maps directly onto time.Weekday's Sunday=0..Saturday=6 plus one.
		target := time.Weekday(w - 1)
		t := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		for {
			if t.Weekday() == target && t.After(now) {
				return t, nil
			}
			t = t.AddDate(0, 0, 1)
		}

	case AdvTime:
		parts := strings.Split(arg, ":")
		if len(parts) != 3 {
			return time.Time{}, usageErr(ErrInvalidArg, arg)
		}
		h, err1 := strconv.Atoi(parts[0])
		m, err2 := strconv.Atoi(parts[1])
		s, err3 := strconv.Atoi(parts[2])
		if err1 != nil || err2 != nil || err3 != nil {
			return time.Time{}, usageErr(ErrInvalidArg, arg)
		}
		t := time.Date(now.Year(), now.Month(), now.Day(), h, m, s, 0, now.Location())
		if !t.After(now) {
			t = t.AddDate(0, 0, 1)
		}
		return t, nil

	case AdvDate:
		t, err := time.ParseInLocation("2006-01-02", arg, now.Location())
		if err != nil {
			return time.Time{}, usageErr(ErrInvalidArg, arg)
		}
		return t, nil

	case AdvDatetime:
		t, err := time.ParseInLocation("2006-01-02 15:04:05", arg, now.Location())
		if err != nil {
			return time.Time{}, usageErr(ErrInvalidArg, arg)
		}
		return t, nil

	case AdvTimestamp:
		n, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return time.Time{}, usageErr(ErrInvalidArg, arg)
		}
		return time.Unix(n, 0).In(now.Location()), nil
	}

	return time.Time{}, usageErr(ErrInvalidAdverb, arg)
}

func parseRange(arg string, lo, hi int) (int, *ParseError) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < lo || n > hi {
		return 0, usageErr(ErrInvalidArg, arg)
	}
	return n, nil
}

// unitDuration returns the duration one unit of adv represents, for
// relative ("in"/"every") clauses. Months and years use fixed 30/365-day
// approximations, matching the MONTHDAY_ALIGN/YEARDAY_ALIGN step
// convention from spec.md §4.3/§9.
func unitDuration(adv Adverb) (time.Duration, bool) {
	switch adv {
	case AdvSeconds:
		return time.Second, true
	case AdvMinutes:
		return time.Minute, true
	case AdvHours:
		return time.Hour, true
	case AdvDays:
		return 24 * time.Hour, true
	case AdvWeeks:
		return 7 * 24 * time.Hour, true
	case AdvMonths:
		return 30 * 24 * time.Hour, true
	case AdvYears:
		return 365 * 24 * time.Hour, true
	default:
		return 0, false
	}
}
