//go:build unix

package auth

import (
	"net"

	"golang.org/x/sys/unix"
)

// PeerCredential reads the OS-reported uid/gid of the process on the other
// end of a UNIX domain socket connection via SO_PEERCRED, per spec.md
// §4.5's local authentication mode.
func PeerCredential(conn net.Conn) (Credential, error) {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return Credential{}, ErrUnsupportedConn
	}
	raw, err := uc.SyscallConn()
	if err != nil {
		return Credential{}, err
	}

	var cred *unix.Ucred
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		cred, sockErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if err != nil {
		return Credential{}, err
	}
	if sockErr != nil {
		return Credential{}, sockErr
	}
	return Credential{UID: cred.Uid, GID: cred.Gid}, nil
}
