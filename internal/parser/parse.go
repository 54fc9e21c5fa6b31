package parser

// parserState holds the token cursor for one Parse call.
type parserState struct {
	tokens []string
	pos    int
}

func (p *parserState) peek() (string, bool) {
	if p.pos >= len(p.tokens) {
		return "", false
	}
	return p.tokens[p.pos], true
}

func (p *parserState) next() (string, bool) {
	tok, ok := p.peek()
	if ok {
		p.pos++
	}
	return tok, ok
}

// Parse compiles raw input into a sequence of Request records, per spec.md
// §4.1's `request := op subj [clause (conj clause)*]` grammar. It never
// panics; any rejection returns a nil slice and a non-nil *ParseError.
func Parse(input string) ([]*Request, *ParseError) {
	tokens := Tokenize(input)
	if len(tokens) == 0 {
		return nil, usageErr(ErrInsufficientArgs, "")
	}
	p := &parserState{tokens: tokens}
	return parseRequests(p)
}

func parseRequests(p *parserState) ([]*Request, *ParseError) {
	opTok, ok := p.next()
	if !ok {
		return nil, usageErr(ErrInsufficientArgs, "")
	}
	op, ok := opWords[opTok]
	if !ok {
		return nil, usageErr(ErrInvalidOp, opTok)
	}

	subj, ok := p.next()
	if !ok {
		return nil, usageErr(ErrInsufficientArgs, opTok)
	}

	var requests []*Request
	cur := &Request{Op: op, Subj: subj}
	requests = append(requests, cur)

	firstClauseOfEntry := true
	for {
		tok, ok := p.peek()
		if !ok {
			break
		}

		if firstClauseOfEntry {
			clause, perr := parseClause(p, ConjAnd)
			if perr != nil {
				return nil, perr
			}
			cur.Clauses = append(cur.Clauses, clause)
			firstClauseOfEntry = false
			continue
		}

		conj, isConj := conjWords[tok]
		if !isConj {
			return nil, usageErr(ErrUnexpectedPrep, tok)
		}
		p.next()

		switch conj {
		case ConjAnd:
			// "and" opens a new entry; subject and opcode are inherited.
			cur = &Request{Op: op, Subj: subj}
			requests = append(requests, cur)
			firstClauseOfEntry = true
		case ConjThen:
			clause, perr := requireClausePrep(p, PrepEvery, conj)
			if perr != nil {
				return nil, perr
			}
			cur.Clauses = append(cur.Clauses, clause)
		case ConjUntil:
			clause, perr := requireClausePrep(p, PrepTo, conj)
			if perr != nil {
				return nil, perr
			}
			cur.Clauses = append(cur.Clauses, clause)
		case ConjWhile:
			clause, perr := requireClausePrep(p, PrepIn, conj)
			if perr != nil {
				return nil, perr
			}
			cur.Clauses = append(cur.Clauses, clause)
		}
	}

	return requests, nil
}

// requireClausePrep parses a clause, rejecting it unless its preposition
// is want — "then" must be followed by "every", "until" by "to", "while"
// by "in" (spec.md §4.1's conjunction composition rules).
func requireClausePrep(p *parserState, want Prep, conj Conj) (Clause, *ParseError) {
	clause, perr := parseClause(p, conj)
	if perr != nil {
		return Clause{}, perr
	}
	if clause.Prep != want {
		return Clause{}, usageErr(ErrUnexpectedPrep, "")
	}
	return clause, nil
}

// parseClause parses one `prep (adverb arg | arg adverb)` unit.
func parseClause(p *parserState, conj Conj) (Clause, *ParseError) {
	prepTok, ok := p.next()
	if !ok {
		return Clause{}, usageErr(ErrInsufficientArgs, "")
	}
	prep, ok := prepWords[prepTok]
	if !ok {
		return Clause{}, usageErr(ErrInvalidPrep, prepTok)
	}

	if prep == PrepNow {
		if conj != ConjAnd {
			return Clause{}, usageErr(ErrInvalidConj, "now")
		}
		return Clause{Prep: prep, Conj: conj}, nil
	}

	a, b, ok := p.next2()
	if !ok {
		return Clause{}, usageErr(ErrInsufficientArgs, prepTok)
	}

	if adv, isAdv := adverbWords[a]; isAdv {
		return Clause{Prep: prep, Adverb: adv, Arg: b, Conj: conj}, nil
	}
	if adv, isAdv := adverbWords[b]; isAdv {
		return Clause{Prep: prep, Adverb: adv, Arg: a, Conj: conj}, nil
	}
	return Clause{}, usageErr(ErrInvalidAdverb, a)
}

// next2 consumes two tokens at once, used by clause parsing's
// `adverb arg | arg adverb` ambiguity.
func (p *parserState) next2() (string, string, bool) {
	a, ok := p.next()
	if !ok {
		return "", "", false
	}
	b, ok := p.next()
	if !ok {
		return a, "", false
	}
	return a, b, true
}
