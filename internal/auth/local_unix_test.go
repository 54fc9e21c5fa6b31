//go:build unix

package auth_test

import (
	"net"
	"os"
	"testing"

	"github.com/usched-go/usched/internal/auth"
)

func TestVerifyLocal_MatchesOwnCredential(t *testing.T) {
	sockPath := t.TempDir() + "/usched-test.sock"
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	serverConnCh := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		serverConnCh <- c
	}()

	client, err := net.Dial("unix", sockPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	serverConn := <-serverConnCh
	defer serverConn.Close()

	uid := uint32(os.Getuid())
	gid := uint32(os.Getgid())
	if err := auth.VerifyLocal(serverConn, uid, gid); err != nil {
		t.Fatalf("VerifyLocal: %v", err)
	}

	if err := auth.VerifyLocal(serverConn, uid+1, gid); err != auth.ErrCredentialMismatch {
		t.Fatalf("expected ErrCredentialMismatch for wrong uid, got %v", err)
	}
}
