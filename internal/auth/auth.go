// Package auth implements the two authentication modes of spec.md §4.5:
// local peer-credential verification over a UNIX socket, and a remote
// password-authenticated key exchange over TCP.
package auth

import (
	"errors"

	"github.com/usched-go/usched/internal/errs"
)

var (
	ErrCredentialMismatch = errs.Wrap(errs.ErrAuth, errors.New("auth: wire-declared uid/gid does not match the OS peer credential"))
	ErrUserNotFound       = errs.Wrap(errs.ErrAuth, errors.New("auth: no such remote user"))
	ErrUnsupportedConn    = errs.Wrap(errs.ErrProtocol, errors.New("auth: connection type does not support peer credentials"))
)

// PasswordLookup resolves a username to its stored PBKDF2 hash and
// identity, consulted during the remote handshake. internal/adminstore
// implements this as UserStore.Lookup over the users category's records.
type PasswordLookup interface {
	Lookup(username string) (uid, gid uint32, passwordHash []byte, err error)
}

// Credential is the OS-reported identity of a connected peer.
type Credential struct {
	UID uint32
	GID uint32
}
