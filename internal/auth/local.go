package auth

import "net"

// VerifyLocal checks that the wire-declared uid/gid on an EntryHeader
// match the OS-reported peer credential of conn, per spec.md §4.5: a
// mismatch is a fatal protocol error for that request.
func VerifyLocal(conn net.Conn, declaredUID, declaredGID uint32) error {
	cred, err := PeerCredential(conn)
	if err != nil {
		return err
	}
	if cred.UID != declaredUID || cred.GID != declaredGID {
		return ErrCredentialMismatch
	}
	return nil
}
