//go:build !unix

package auth

import "net"

// PeerCredential has no portable equivalent outside unix-family systems;
// local (UNIX-socket) authentication is therefore unavailable on these
// platforms and callers must rely on the remote PAKE path instead.
func PeerCredential(conn net.Conn) (Credential, error) {
	return Credential{}, ErrUnsupportedConn
}
