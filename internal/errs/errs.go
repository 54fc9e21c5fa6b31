// Package errs defines the discriminated error kinds every daemon error
// path is classified against, per spec.md §7's error table: usage,
// authentication, protocol, authorization, resource, clock, and
// persistence failures, plus ErrFatal for a recovered panic converted at a
// goroutine boundary. Every kind is a plain sentinel so callers use
// errors.Is(err, errs.ErrResource) the same way they already do against
// package-local sentinels; Wrap lets a concrete error (e.g.
// ipc.ErrMessageTooLarge) answer true to both its own sentinel and its
// kind.
package errs

import "errors"

var (
	ErrUsage         = errors.New("usage error")
	ErrAuth          = errors.New("authentication failed")
	ErrProtocol      = errors.New("protocol violation")
	ErrAuthorization = errors.New("not authorized for this entry")
	ErrResource      = errors.New("resource exhausted")
	ErrClock         = errors.New("clock or drift error")
	ErrPersistence   = errors.New("persistence failure")
	ErrFatal         = errors.New("unrecoverable error")
)

// kindError pairs a classification sentinel with the concrete cause,
// answering true to errors.Is for either.
type kindError struct {
	kind error
	err  error
}

// Wrap classifies err under kind. Returns nil if err is nil, so call sites
// can write `return errs.Wrap(errs.ErrProtocol, decodeErr)` without a
// separate nil check.
func Wrap(kind, err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: err}
}

func (e *kindError) Error() string { return e.err.Error() }

// Unwrap exposes both the kind sentinel and the original cause, so
// errors.Is matches either and errors.As still reaches a concrete type
// like *parser.ParseError underneath.
func (e *kindError) Unwrap() []error { return []error{e.kind, e.err} }
