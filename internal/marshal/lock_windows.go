//go:build windows

package marshal

import (
	"errors"
	"os"

	"golang.org/x/sys/windows"

	"github.com/usched-go/usched/internal/errs"
)

var ErrLocked = errs.Wrap(errs.ErrPersistence, errors.New("marshal: file already locked by another process"))

func flockExclusiveNonBlocking(f *os.File) error {
	ol := new(windows.Overlapped)
	err := windows.LockFileEx(windows.Handle(f.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		0, 1, 0, ol)
	if err != nil {
		return ErrLocked
	}
	return nil
}

func flockUnlock(f *os.File) error {
	ol := new(windows.Overlapped)
	return windows.UnlockFileEx(windows.Handle(f.Fd()), 0, 1, 0, ol)
}
