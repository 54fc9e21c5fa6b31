package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestValidateAlign_MonthdayRejectsNonMultiple(t *testing.T) {
	if err := ValidateAlign(AlignMonthday, 40*24*time.Hour); err != ErrInvalidMonthdayAlign {
		t.Fatalf("expected ErrInvalidMonthdayAlign, got %v", err)
	}
	if err := ValidateAlign(AlignMonthday, 30*24*time.Hour); err != nil {
		t.Fatalf("expected 30 days to validate, got %v", err)
	}
	if err := ValidateAlign(AlignMonthday, 60*24*time.Hour); err != nil {
		t.Fatalf("expected 60 days to validate, got %v", err)
	}
}

func TestValidateAlign_YeardayRejectsNonMultiple(t *testing.T) {
	if err := ValidateAlign(AlignYearday, 100*24*time.Hour); err != ErrInvalidYeardayAlign {
		t.Fatalf("expected ErrInvalidYeardayAlign, got %v", err)
	}
	if err := ValidateAlign(AlignYearday, 365*24*time.Hour); err != nil {
		t.Fatalf("expected 365 days to validate, got %v", err)
	}
}

func TestNextTrigger_MonthdayPreservesDayOfMonth(t *testing.T) {
	from := time.Date(2026, time.January, 15, 10, 0, 0, 0, time.UTC)
	next := NextTrigger(from, 30*24*time.Hour, AlignMonthday)
	if next.Month() != time.February || next.Day() != 15 {
		t.Fatalf("expected Feb 15, got %v", next)
	}
}

func TestNextTrigger_MonthdayClampsToLastValidDay(t *testing.T) {
	from := time.Date(2026, time.January, 31, 10, 0, 0, 0, time.UTC)
	next := NextTrigger(from, 30*24*time.Hour, AlignMonthday)
	if next.Month() != time.February || next.Day() != 28 {
		t.Fatalf("expected Feb 28 (2026 not a leap year), got %v", next)
	}
}

func TestNextTrigger_YeardayPreservesDayOfYear(t *testing.T) {
	from := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	next := NextTrigger(from, 365*24*time.Hour, AlignYearday)
	if next.YearDay() != from.YearDay() {
		t.Fatalf("expected same day-of-year, got yday=%d want=%d", next.YearDay(), from.YearDay())
	}
	if next.Year() != 2027 {
		t.Fatalf("expected advance to 2027, got %v", next)
	}
}

func TestNextTrigger_NoAlignIsPlainAdd(t *testing.T) {
	from := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	next := NextTrigger(from, time.Hour, AlignNone)
	if !next.Equal(from.Add(time.Hour)) {
		t.Fatalf("expected plain addition, got %v", next)
	}
}

func TestScheduler_ArmFiresOneShot(t *testing.T) {
	s := New(discardLogger(), WithPollInterval(10*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Start(ctx)

	var fired int32
	done := make(chan struct{})
	_, err := s.Arm(time.Now(), 0, time.Time{}, AlignNone, func(any) {
		atomic.StoreInt32(&fired, 1)
		close(done)
	}, nil)
	if err != nil {
		t.Fatalf("Arm: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("callback never fired")
	}
	if atomic.LoadInt32(&fired) != 1 {
		t.Fatalf("expected callback to have run")
	}
}

func TestScheduler_DisarmPreventsFiring(t *testing.T) {
	s := New(discardLogger(), WithPollInterval(10*time.Millisecond))
	h, err := s.Arm(time.Now().Add(time.Hour), 0, time.Time{}, AlignNone, func(any) {
		t.Fatalf("callback should not have fired after disarm")
	}, nil)
	if err != nil {
		t.Fatalf("Arm: %v", err)
	}
	if err := s.Disarm(h); err != nil {
		t.Fatalf("Disarm: %v", err)
	}
	if _, _, _, err := s.Search(h); err != ErrHandleNotFound {
		t.Fatalf("expected ErrHandleNotFound after disarm, got %v", err)
	}
}

func TestScheduler_RejectsInvalidMonthdayAlignAtArm(t *testing.T) {
	s := New(discardLogger())
	_, err := s.Arm(time.Now(), 40*24*time.Hour, time.Time{}, AlignMonthday, func(any) {}, nil)
	if err != ErrInvalidMonthdayAlign {
		t.Fatalf("expected ErrInvalidMonthdayAlign, got %v", err)
	}
}

func TestCompensateEntry_NegativeDriftShiftsTriggeredAbsolute(t *testing.T) {
	trigger := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	got := CompensateEntry(trigger, -time.Hour, true, false)
	if !got.Equal(trigger.Add(-time.Hour)) {
		t.Fatalf("expected negative drift to shift a triggered absolute entry, got %v", got)
	}
}

func TestCompensateEntry_PositiveDriftLeavesTriggeredAbsoluteAlone(t *testing.T) {
	trigger := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	got := CompensateEntry(trigger, time.Hour, true, false)
	if !got.Equal(trigger) {
		t.Fatalf("expected positive drift to leave triggered absolute entry unchanged, got %v", got)
	}
}

func TestCompensateEntry_UntriggeredAbsoluteNeverShifts(t *testing.T) {
	trigger := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	got := CompensateEntry(trigger, -time.Hour, false, false)
	if !got.Equal(trigger) {
		t.Fatalf("expected untriggered absolute entry to stay put, got %v", got)
	}
}

func TestCompensateEntry_RelativeAlwaysShifts(t *testing.T) {
	trigger := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	got := CompensateEntry(trigger, time.Hour, false, true)
	if !got.Equal(trigger.Add(time.Hour)) {
		t.Fatalf("expected relative entry to always shift, got %v", got)
	}
}
