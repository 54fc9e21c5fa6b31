package parser

import (
	"time"

	"github.com/usched-go/usched/internal/domain"
	"github.com/usched-go/usched/internal/scheduler"
)

// compiledFields holds the trigger/step/expire/alignment a Request compiles
// to before becoming a domain.Entry.
type compiledFields struct {
	Trigger time.Time
	Step    time.Duration
	Expire  time.Time
	Align   scheduler.Align
}

// Compile performs the semantic compilation spec.md §4.1 describes,
// turning one parsed Request into a CompiledRequest with trigger, step,
// expire, and flags resolved. now is the reference time t_now; production
// callers pass time.Now(), tests pass a fixed instant.
func Compile(req *Request, now time.Time) (*CompiledRequest, *ParseError) {
	out := &CompiledRequest{Op: req.Op, Subj: req.Subj}

	for i, clause := range req.Clauses {
		if i == 0 {
			if err := compilePrimary(out, clause, now); err != nil {
				return nil, err
			}
			continue
		}
		if err := compileSecondary(out, clause, now); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// compilePrimary handles the first clause, which establishes the trigger.
func compilePrimary(out *CompiledRequest, c Clause, now time.Time) *ParseError {
	switch c.Prep {
	case PrepNow:
		out.fields.Trigger = now
		return nil

	case PrepIn:
		d, ok := unitDuration(c.Adverb)
		if !ok {
			return usageErr(ErrInvalidAdverb, c.Arg)
		}
		n, perr := parseRange(c.Arg, 0, 1<<30)
		if perr != nil {
			return perr
		}
		out.fields.Trigger = now.Add(time.Duration(n) * d)
		out.Flags |= domain.FlagRelativeTrigger
		return nil

	case PrepEvery:
		d, ok := unitDuration(c.Adverb)
		if !ok {
			return usageErr(ErrInvalidAdverb, c.Arg)
		}
		n, perr := parseRange(c.Arg, 1, 1<<30)
		if perr != nil {
			return perr
		}
		step := time.Duration(n) * d
		out.fields.Step = step
		out.fields.Trigger = now.Add(step)
		out.Flags |= domain.FlagRelativeTrigger
		applyStepAlignment(out, c.Adverb)
		return nil

	case PrepOn, PrepTo:
		t, perr := resolveAbsolute(now, c.Adverb, c.Arg)
		if perr != nil {
			return perr
		}
		out.fields.Trigger = t
		return nil
	}
	return usageErr(ErrInvalidPrep, "")
}

// compileSecondary handles a clause introduced by a conjunction, which
// modifies step, expire, or opens a new entry (new entries are handled at
// the Parse layer, not here).
func compileSecondary(out *CompiledRequest, c Clause, now time.Time) *ParseError {
	switch c.Conj {
	case ConjThen:
		if c.Prep != PrepEvery {
			return usageErr(ErrUnexpectedPrep, "")
		}
		d, ok := unitDuration(c.Adverb)
		if !ok {
			return usageErr(ErrInvalidAdverb, c.Arg)
		}
		n, perr := parseRange(c.Arg, 1, 1<<30)
		if perr != nil {
			return perr
		}
		out.fields.Step = time.Duration(n) * d
		applyStepAlignment(out, c.Adverb)
		return nil

	case ConjUntil:
		if c.Prep != PrepTo {
			return usageErr(ErrUnexpectedPrep, "")
		}
		t, perr := resolveAbsolute(now, c.Adverb, c.Arg)
		if perr != nil {
			return perr
		}
		out.fields.Expire = t
		return nil

	case ConjWhile:
		if c.Prep != PrepIn {
			return usageErr(ErrUnexpectedPrep, "")
		}
		d, ok := unitDuration(c.Adverb)
		if !ok {
			return usageErr(ErrInvalidAdverb, c.Arg)
		}
		n, perr := parseRange(c.Arg, 0, 1<<30)
		if perr != nil {
			return perr
		}
		out.fields.Expire = now.Add(time.Duration(n) * d)
		out.Flags |= domain.FlagRelativeExpire
		return nil
	}
	return usageErr(ErrInvalidConj, "")
}

// applyStepAlignment sets MONTHDAY_ALIGN/YEARDAY_ALIGN when the step unit
// is months or years, per spec.md §4.1's step-alignment rule. It rejects
// nothing: the validity contract from spec.md §9's Open Question (month
// steps a whole multiple of 30 days; year steps a whole multiple of 365
// days) always holds here, since the step was built from an integer count
// of the unit itself.
func applyStepAlignment(out *CompiledRequest, adv Adverb) {
	switch adv {
	case AdvMonths:
		out.fields.Align = scheduler.AlignMonthday
		out.Flags |= domain.FlagMonthdayAlign
	case AdvYears:
		out.fields.Align = scheduler.AlignYearday
		out.Flags |= domain.FlagYeardayAlign
	}
}

// opcodeFlag maps a request's run/stop/show keyword to the wire opcode bit
// it compiles to.
func opcodeFlag(op Op) domain.Flag {
	switch op {
	case OpStop:
		return domain.FlagDel
	case OpShow:
		return domain.FlagGet
	default:
		return domain.FlagNew
	}
}

// ToEntry builds a domain.Entry from a compiled request, ready for
// admission by internal/lifecycle.
func (c *CompiledRequest) ToEntry(uid, gid uint32) *domain.Entry {
	e := domain.NewEntry(c.Flags | opcodeFlag(c.Op))
	e.UID = uid
	e.GID = gid
	e.Trigger = c.fields.Trigger
	e.Step = c.fields.Step
	e.Expire = c.fields.Expire
	e.Subj = c.Subj
	return e
}

// Align returns the step-alignment rule this request compiled to, for
// passing to scheduler.Arm.
func (c *CompiledRequest) Align() scheduler.Align {
	return c.fields.Align
}
