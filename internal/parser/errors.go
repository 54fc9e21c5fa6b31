package parser

import (
	"fmt"

	"github.com/usched-go/usched/internal/errs"
)

// UsageErrorKind discriminates why a sentence was rejected, per spec.md
// §4.1/§7's usage_error kinds.
type UsageErrorKind int

const (
	ErrInvalidOp UsageErrorKind = iota
	ErrInvalidPrep
	ErrInvalidAdverb
	ErrInvalidConj
	ErrInvalidArg
	ErrUnexpectedPrep
	ErrUnexpectedConj
	ErrInsufficientArgs
	ErrTooManyArgs
)

func (k UsageErrorKind) String() string {
	switch k {
	case ErrInvalidOp:
		return "invalid op"
	case ErrInvalidPrep:
		return "invalid prep"
	case ErrInvalidAdverb:
		return "invalid adverb"
	case ErrInvalidConj:
		return "invalid conj"
	case ErrInvalidArg:
		return "invalid arg"
	case ErrUnexpectedPrep:
		return "unexpected prep"
	case ErrUnexpectedConj:
		return "unexpected conj"
	case ErrInsufficientArgs:
		return "insufficient args"
	case ErrTooManyArgs:
		return "too many args"
	default:
		return "unknown usage error"
	}
}

// ParseError is the sole error type the parser ever returns; it never
// panics.
type ParseError struct {
	Kind  UsageErrorKind
	Token string
}

func (e *ParseError) Error() string {
	if e.Token == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %q", e.Kind, e.Token)
}

// Unwrap makes every ParseError answer true to errors.Is(err, errs.ErrUsage)
// while errors.As(err, &parseErr) still reaches the concrete kind/token.
func (e *ParseError) Unwrap() error { return errs.ErrUsage }

func usageErr(kind UsageErrorKind, token string) *ParseError {
	return &ParseError{Kind: kind, Token: token}
}
