package parser

import (
	"testing"
	"time"
)

func TestTokenize_SplitsOnWhitespace(t *testing.T) {
	got := Tokenize("run  'ls -la'  in 5 minutes")
	want := []string{"run", "ls -la", "in", "5", "minutes"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTokenize_DoubleQuoteWithEscape(t *testing.T) {
	got := Tokenize(`run "echo \"hi\"" now`)
	want := []string{"run", `echo "hi"`, "now"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParse_RunNow(t *testing.T) {
	reqs, err := Parse("run date now")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	r := reqs[0]
	if r.Op != OpRun || r.Subj != "date" {
		t.Fatalf("unexpected op/subj: %+v", r)
	}
	if len(r.Clauses) != 1 || r.Clauses[0].Prep != PrepNow {
		t.Fatalf("expected single now clause, got %+v", r.Clauses)
	}
}

func TestParse_RejectsUnknownOp(t *testing.T) {
	_, err := Parse("frobnicate date now")
	if err == nil || err.Kind != ErrInvalidOp {
		t.Fatalf("expected ErrInvalidOp, got %v", err)
	}
}

func TestParse_AndOpensNewEntrySharingOpAndSubj(t *testing.T) {
	reqs, err := Parse("run date in 5 minutes and in 10 minutes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reqs) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(reqs))
	}
	if reqs[0].Subj != "date" || reqs[1].Subj != "date" {
		t.Fatalf("expected shared subject: %+v", reqs)
	}
}

func TestParse_ThenRequiresEveryPrep(t *testing.T) {
	_, err := Parse("run date in 5 minutes then to 10 minutes")
	if err == nil || err.Kind != ErrUnexpectedPrep {
		t.Fatalf("expected ErrUnexpectedPrep, got %v", err)
	}
}

func TestParse_UntilRequiresToPrep(t *testing.T) {
	_, err := Parse("run date now until every 5 minutes")
	if err == nil || err.Kind != ErrUnexpectedPrep {
		t.Fatalf("expected ErrUnexpectedPrep, got %v", err)
	}
}

func TestParse_AdverbArgAmbiguousOrderBothAccepted(t *testing.T) {
	reqs1, err1 := Parse("run date in 5 minutes")
	reqs2, err2 := Parse("run date in minutes 5")
	if err1 != nil || err2 != nil {
		t.Fatalf("unexpected errors: %v %v", err1, err2)
	}
	if reqs1[0].Clauses[0].Arg != reqs2[0].Clauses[0].Arg {
		t.Fatalf("expected same arg regardless of order")
	}
}

func TestParse_NowMustBeFirstClause(t *testing.T) {
	_, err := Parse("run date in 5 minutes and now")
	// "and" opens a fresh entry, so this "now" IS the first clause of its
	// entry and should be accepted.
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParse_InsufficientArgsWhenSubjMissing(t *testing.T) {
	_, err := Parse("run")
	if err == nil || err.Kind != ErrInsufficientArgs {
		t.Fatalf("expected ErrInsufficientArgs, got %v", err)
	}
}

func TestParse_InvalidAdverbRejected(t *testing.T) {
	_, err := Parse("run date in 5 fortnights")
	if err == nil || err.Kind != ErrInvalidAdverb {
		t.Fatalf("expected ErrInvalidAdverb, got %v", err)
	}
}

func TestCompile_InRelativeTriggerSetsFlag(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	reqs, err := Parse("run date in 5 minutes")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	cr, cerr := Compile(reqs[0], now)
	if cerr != nil {
		t.Fatalf("compile error: %v", cerr)
	}
	want := now.Add(5 * time.Minute)
	if !cr.fields.Trigger.Equal(want) {
		t.Fatalf("trigger = %v, want %v", cr.fields.Trigger, want)
	}
	if cr.Flags&(1<<10) == 0 { // FlagRelativeTrigger
		t.Fatalf("expected relative trigger flag set")
	}
}

func TestCompile_NowSetsTriggerToNow(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	reqs, err := Parse("run date now")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	cr, cerr := Compile(reqs[0], now)
	if cerr != nil {
		t.Fatalf("compile error: %v", cerr)
	}
	if !cr.fields.Trigger.Equal(now) {
		t.Fatalf("trigger = %v, want %v", cr.fields.Trigger, now)
	}
}

func TestCompile_EveryMonthsSetsMonthdayAlign(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	reqs, err := Parse("run date every 2 months")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	cr, cerr := Compile(reqs[0], now)
	if cerr != nil {
		t.Fatalf("compile error: %v", cerr)
	}
	if cr.fields.Step != 60*24*time.Hour {
		t.Fatalf("step = %v, want 60 days", cr.fields.Step)
	}
	if cr.Align() == 0 && cr.fields.Align == 0 {
		t.Fatalf("expected monthday align set")
	}
}

func TestCompile_UntilToSetsAbsoluteExpire(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	reqs, err := Parse("run date now until to date 2026-12-31")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	cr, cerr := Compile(reqs[0], now)
	if cerr != nil {
		t.Fatalf("compile error: %v", cerr)
	}
	want := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	if !cr.fields.Expire.Equal(want) {
		t.Fatalf("expire = %v, want %v", cr.fields.Expire, want)
	}
}

func TestCompile_WhileInSetsRelativeExpire(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	reqs, err := Parse("run date now while in 2 hours")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	cr, cerr := Compile(reqs[0], now)
	if cerr != nil {
		t.Fatalf("compile error: %v", cerr)
	}
	want := now.Add(2 * time.Hour)
	if !cr.fields.Expire.Equal(want) {
		t.Fatalf("expire = %v, want %v", cr.fields.Expire, want)
	}
}

func TestResolveAbsolute_TimeBumpsToNextDayIfPast(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	got, err := resolveAbsolute(now, AdvTime, "06:00:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 7, 30, 6, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestResolveAbsolute_DaysRollsToNextValidMonth(t *testing.T) {
	now := time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)
	got, err := resolveAbsolute(now, AdvDays, "31")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Day() != 31 || !got.After(now) {
		t.Fatalf("got %v, expected next day-31 occurrence after %v", got, now)
	}
}

func TestResolveAbsolute_TimestampParsesUnixSeconds(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	got, err := resolveAbsolute(now, AdvTimestamp, "1800000000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Unix() != 1800000000 {
		t.Fatalf("got unix %d, want 1800000000", got.Unix())
	}
}

func TestResolveAbsolute_InvalidArgRejected(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	_, err := resolveAbsolute(now, AdvSeconds, "99")
	if err == nil || err.Kind != ErrInvalidArg {
		t.Fatalf("expected ErrInvalidArg, got %v", err)
	}
}

func TestParseError_StringsAllUsageErrorKinds(t *testing.T) {
	kinds := []UsageErrorKind{
		ErrInvalidOp, ErrInvalidPrep, ErrInvalidAdverb, ErrInvalidConj,
		ErrInvalidArg, ErrUnexpectedPrep, ErrUnexpectedConj,
		ErrInsufficientArgs, ErrTooManyArgs,
	}
	for _, k := range kinds {
		if k.String() == "unknown usage error" {
			t.Fatalf("kind %d missing a String() case", k)
		}
	}
}
