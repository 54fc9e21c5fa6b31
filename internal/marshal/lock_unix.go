//go:build unix

package marshal

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"

	"github.com/usched-go/usched/internal/errs"
)

// ErrLocked is returned when the marshal file is already locked by another
// process — normally meaning a second daemon instance is trying to start
// against the same base directory.
var ErrLocked = errs.Wrap(errs.ErrPersistence, errors.New("marshal: file already locked by another process"))

func flockExclusiveNonBlocking(f *os.File) error {
	err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err == unix.EWOULDBLOCK {
		return ErrLocked
	}
	return err
}

func flockUnlock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
