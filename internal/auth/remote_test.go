package auth_test

import (
	"testing"

	"github.com/usched-go/usched/internal/auth"
	"github.com/usched-go/usched/internal/crypto"
)

type fakePasswordLookup struct {
	lookup func(username string) (uid, gid uint32, passwordHash []byte, err error)
}

func (f *fakePasswordLookup) Lookup(username string) (uid, gid uint32, passwordHash []byte, err error) {
	return f.lookup(username)
}

func TestRemoteSession_FullHandshakeSucceeds(t *testing.T) {
	const username, password = "alice", "hunter2"
	salt, err := crypto.DeriveSalt(username)
	if err != nil {
		t.Fatalf("DeriveSalt: %v", err)
	}
	storedHash := crypto.HashPassword(password, salt)

	lookup := &fakePasswordLookup{
		lookup: func(u string) (uint32, uint32, []byte, error) {
			if u != username {
				t.Fatalf("unexpected lookup for %q", u)
			}
			return 1000, 1000, storedHash, nil
		},
	}

	server := auth.NewRemoteSession(lookup)
	client, hello, err := crypto.NewClientHello(username, 1)
	if err != nil {
		t.Fatalf("NewClientHello: %v", err)
	}

	challenge, err := server.Step1(hello)
	if err != nil {
		t.Fatalf("Step1: %v", err)
	}

	resp, err := client.ProcessChallenge(challenge, hello.Nonce, storedHash, password)
	if err != nil {
		t.Fatalf("ProcessChallenge: %v", err)
	}

	key, err := server.Step2(resp, hello.Nonce+1)
	if err != nil {
		t.Fatalf("Step2: %v", err)
	}
	if key != client.SessionKey() {
		t.Fatalf("client/server session key mismatch")
	}

	uid, gid := server.Identity()
	if uid != 1000 || gid != 1000 {
		t.Fatalf("expected identity 1000/1000, got %d/%d", uid, gid)
	}
}

func TestRemoteSession_UnknownUserRejected(t *testing.T) {
	lookup := &fakePasswordLookup{
		lookup: func(string) (uint32, uint32, []byte, error) {
			return 0, 0, nil, auth.ErrUserNotFound
		},
	}
	server := auth.NewRemoteSession(lookup)
	_, hello, err := crypto.NewClientHello("ghost", 1)
	if err != nil {
		t.Fatalf("NewClientHello: %v", err)
	}
	if _, err := server.Step1(hello); err == nil {
		t.Fatalf("expected Step1 to reject an unknown user")
	}
}

func TestRemoteSession_WrongPasswordRejected(t *testing.T) {
	const username = "alice"
	salt, _ := crypto.DeriveSalt(username)
	storedHash := crypto.HashPassword("correct", salt)

	lookup := &fakePasswordLookup{
		lookup: func(string) (uint32, uint32, []byte, error) {
			return 1000, 1000, storedHash, nil
		},
	}

	server := auth.NewRemoteSession(lookup)
	client, hello, err := crypto.NewClientHello(username, 1)
	if err != nil {
		t.Fatalf("NewClientHello: %v", err)
	}
	challenge, err := server.Step1(hello)
	if err != nil {
		t.Fatalf("Step1: %v", err)
	}
	resp, err := client.ProcessChallenge(challenge, hello.Nonce, storedHash, "wrong")
	if err != nil {
		t.Fatalf("ProcessChallenge: %v", err)
	}
	if _, err := server.Step2(resp, hello.Nonce+1); err == nil {
		t.Fatalf("expected Step2 to reject a wrong password")
	}
}
