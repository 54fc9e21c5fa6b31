package parser

import "github.com/usched-go/usched/internal/domain"

// Op is the request's operation keyword.
type Op int

const (
	OpRun Op = iota
	OpStop
	OpShow
)

var opWords = map[string]Op{"run": OpRun, "stop": OpStop, "show": OpShow}

// Prep is a clause preposition.
type Prep int

const (
	PrepIn Prep = iota
	PrepOn
	PrepEvery
	PrepNow
	PrepTo
)

var prepWords = map[string]Prep{"in": PrepIn, "on": PrepOn, "every": PrepEvery, "now": PrepNow, "to": PrepTo}

// Adverb names a time unit or absolute-placement kind.
type Adverb int

const (
	AdvSeconds Adverb = iota
	AdvMinutes
	AdvHours
	AdvDays
	AdvWeeks
	AdvMonths
	AdvYears
	AdvWeekdays
	AdvTime
	AdvDate
	AdvDatetime
	AdvTimestamp
)

var adverbWords = map[string]Adverb{
	"seconds": AdvSeconds, "minutes": AdvMinutes, "hours": AdvHours,
	"days": AdvDays, "weeks": AdvWeeks, "months": AdvMonths, "years": AdvYears,
	"weekdays": AdvWeekdays, "time": AdvTime, "date": AdvDate,
	"datetime": AdvDatetime, "timestamp": AdvTimestamp,
}

// Conj joins clauses within or across request records.
type Conj int

const (
	ConjAnd Conj = iota
	ConjThen
	ConjUntil
	ConjWhile
)

var conjWords = map[string]Conj{"and": ConjAnd, "then": ConjThen, "until": ConjUntil, "while": ConjWhile}

// Clause is one `prep (adverb arg | arg adverb)` unit.
type Clause struct {
	Prep   Prep
	Adverb Adverb
	Arg    string
	Conj   Conj // the conjunction that preceded this clause; ConjAnd for the first
}

// Request is one parsed `op subj [clause (conj clause)*]` record —
// spec.md §4.1's output record, before semantic compilation assigns
// trigger/step/expire.
type Request struct {
	Op      Op
	Subj    string
	Clauses []Clause
}

// CompiledRequest is a Request after semantic compilation: the
// trigger/step/expire/flags spec.md §4.1 describes deriving from the
// clause sequence, ready to become a domain.Entry.
type CompiledRequest struct {
	Op     Op
	Subj   string
	Flags  domain.Flag
	fields compiledFields
}
