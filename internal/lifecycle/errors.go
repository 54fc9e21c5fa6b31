// Package lifecycle dispatches an authenticated, decoded request to the
// NEW/DEL/GET handler named by its opcode flag, tying internal/pool and
// internal/scheduler together per spec.md §4.6.
package lifecycle

import (
	"errors"

	"github.com/usched-go/usched/internal/errs"
)

var (
	ErrAmbiguousOpcode = errs.Wrap(errs.ErrUsage, errors.New("lifecycle: request must set exactly one of NEW, DEL, or GET"))
	ErrIDCollision     = errs.Wrap(errs.ErrResource, errors.New("lifecycle: exhausted id generation retries"))
	ErrNotFinished     = errs.Wrap(errs.ErrUsage, errors.New("lifecycle: target entry is not in the FINISH state"))
)
