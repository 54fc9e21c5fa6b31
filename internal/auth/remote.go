package auth

import (
	"fmt"

	"github.com/usched-go/usched/internal/crypto"
)

// RemoteSession drives the daemon side of the 4-step remote handshake
// (spec.md §4.5) against a PasswordLookup, producing an agreed session key
// and the authenticated identity on success. Requests arriving before
// authentication completes carry the 0xffffffff sentinel uid/gid (wire's
// RemoteSentinel). After authentication the transport layer ignores any
// uid/gid sent on the wire and overwrites the entry's uid/gid/username with
// the identity from the user record this handshake resolves.
type RemoteSession struct {
	lookup PasswordLookup

	uid, gid uint32
	hs       *crypto.Handshake
}

func NewRemoteSession(lookup PasswordLookup) *RemoteSession {
	return &RemoteSession{lookup: lookup}
}

// Step1 processes the client's hello and returns the server's challenge.
func (s *RemoteSession) Step1(hello crypto.ClientHello) (crypto.ServerChallenge, error) {
	uid, gid, hash, err := s.lookup.Lookup(hello.Username)
	if err != nil {
		return crypto.ServerChallenge{}, fmt.Errorf("%w: %s", ErrUserNotFound, hello.Username)
	}
	hs, challenge, err := crypto.NewServerHandshake(hello, hash)
	if err != nil {
		return crypto.ServerChallenge{}, err
	}
	s.hs = hs
	s.uid, s.gid = uid, gid
	return challenge, nil
}

// Step2 verifies the client's encrypted password response, completing
// authentication and returning the agreed session key.
func (s *RemoteSession) Step2(resp crypto.ClientResponse, nonce uint64) ([32]byte, error) {
	return s.hs.VerifyClientResponse(resp, nonce)
}

// Identity returns the uid/gid resolved from the user record once
// authentication has completed. Callers must not trust any uid/gid carried
// on the wire itself for a remote connection.
func (s *RemoteSession) Identity() (uid, gid uint32) {
	return s.uid, s.gid
}
