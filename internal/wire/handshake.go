package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/usched-go/usched/internal/crypto"
)

// Wire encodings for the 4-step remote handshake's three messages, each
// carried inside a WriteFrame/ReadFrame envelope so the existing framing
// and max-size guard apply uniformly to handshake and post-handshake
// traffic alike.

// EncodeClientHello packs username(32, NUL-padded) | nonce(8) | public(32).
func EncodeClientHello(h crypto.ClientHello) ([]byte, error) {
	if len(h.Username) > UsernameSize-1 {
		return nil, fmt.Errorf("wire: username exceeds %d bytes", UsernameSize-1)
	}
	buf := make([]byte, UsernameSize+8+32)
	copy(buf[0:UsernameSize], h.Username)
	binary.BigEndian.PutUint64(buf[UsernameSize:UsernameSize+8], h.Nonce)
	copy(buf[UsernameSize+8:], h.Public[:])
	return buf, nil
}

// DecodeClientHello reverses EncodeClientHello.
func DecodeClientHello(buf []byte) (crypto.ClientHello, error) {
	if len(buf) != UsernameSize+8+32 {
		return crypto.ClientHello{}, ErrShortHeader
	}
	var h crypto.ClientHello
	h.Username = usernameFieldString(buf[0:UsernameSize])
	h.Nonce = binary.BigEndian.Uint64(buf[UsernameSize : UsernameSize+8])
	copy(h.Public[:], buf[UsernameSize+8:])
	return h, nil
}

// EncodeServerChallenge packs public(32) | token_len(4) | token.
func EncodeServerChallenge(c crypto.ServerChallenge) []byte {
	buf := make([]byte, 32+4+len(c.EncryptedToken))
	copy(buf[0:32], c.Public[:])
	binary.BigEndian.PutUint32(buf[32:36], uint32(len(c.EncryptedToken)))
	copy(buf[36:], c.EncryptedToken)
	return buf
}

// DecodeServerChallenge reverses EncodeServerChallenge.
func DecodeServerChallenge(buf []byte) (crypto.ServerChallenge, error) {
	if len(buf) < 36 {
		return crypto.ServerChallenge{}, ErrShortHeader
	}
	var c crypto.ServerChallenge
	copy(c.Public[:], buf[0:32])
	n := binary.BigEndian.Uint32(buf[32:36])
	if uint32(len(buf)-36) != n {
		return crypto.ServerChallenge{}, ErrShortHeader
	}
	c.EncryptedToken = append([]byte(nil), buf[36:]...)
	return c, nil
}

// EncodeClientResponse packs password_len(4) | encrypted_password.
func EncodeClientResponse(r crypto.ClientResponse) []byte {
	buf := make([]byte, 4+len(r.EncryptedPassword))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(r.EncryptedPassword)))
	copy(buf[4:], r.EncryptedPassword)
	return buf
}

// DecodeClientResponse reverses EncodeClientResponse.
func DecodeClientResponse(buf []byte) (crypto.ClientResponse, error) {
	if len(buf) < 4 {
		return crypto.ClientResponse{}, ErrShortHeader
	}
	n := binary.BigEndian.Uint32(buf[0:4])
	if uint32(len(buf)-4) != n {
		return crypto.ClientResponse{}, ErrShortHeader
	}
	return crypto.ClientResponse{EncryptedPassword: append([]byte(nil), buf[4:]...)}, nil
}

func usernameFieldString(field []byte) string {
	for i, b := range field {
		if b == 0 {
			return string(field[:i])
		}
	}
	return string(field)
}
