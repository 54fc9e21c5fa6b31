// Package crypto implements the remote-authentication handshake primitives:
// curve25519 Diffie-Hellman, BLAKE2s salt derivation, PBKDF2-SHA512 password
// hashing, and XSalsa20-Poly1305 session encryption.
package crypto

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/binary"
	"errors"

	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// PBKDF2Rounds matches the original daemon's password hashing cost.
	PBKDF2Rounds = 10000
	// PBKDF2KeyLen is the derived key length in bytes.
	PBKDF2KeyLen = 64
	// secretboxKeyLen and secretboxNonceLen are dictated by nacl/secretbox.
	secretboxKeyLen   = 32
	secretboxNonceLen = 24
)

var (
	ErrKeyExchangeFailed = errors.New("crypto: curve25519 scalar multiplication produced a low-order point")
	ErrDecryptionFailed  = errors.New("crypto: secretbox open failed — wrong key, corrupt payload, or replayed nonce")
	ErrShortKey          = errors.New("crypto: agreed key is not 32 bytes")
)

// KeyPair is a curve25519 private/public pair, generated fresh for each
// handshake on either side of a connection.
type KeyPair struct {
	Private [32]byte
	Public  [32]byte
}

// GenerateKeyPair produces a new curve25519 key pair using a CSPRNG seed,
// per the scalar-clamping convention curve25519.X25519 expects.
func GenerateKeyPair() (KeyPair, error) {
	var kp KeyPair
	if _, err := rand.Read(kp.Private[:]); err != nil {
		return KeyPair{}, err
	}
	pub, err := curve25519.X25519(kp.Private[:], curve25519.Basepoint)
	if err != nil {
		return KeyPair{}, err
	}
	copy(kp.Public[:], pub)
	return kp, nil
}

// SharedSecret performs the DH exchange, returning the 32-byte shared point
// that downstream KDF steps turn into the secretbox session key.
func SharedSecret(priv, peerPub [32]byte) ([32]byte, error) {
	var out [32]byte
	shared, err := curve25519.X25519(priv[:], peerPub[:])
	if err != nil {
		return out, ErrKeyExchangeFailed
	}
	copy(out[:], shared)
	return out, nil
}

// DeriveSalt computes salt = BLAKE2s(pad(username)), the per-user salt used
// both to derive the PBKDF2 password hash and, blended with the DH shared
// secret, the final session key.
func DeriveSalt(username string) ([32]byte, error) {
	padded := padUsername(username)
	return blake2s.Sum256(padded), nil
}

// padUsername pads or truncates to the fixed 32-byte wire username field
// before hashing, so the salt is stable regardless of Go string length
// quirks and matches the on-wire representation exactly.
func padUsername(username string) []byte {
	buf := make([]byte, 32)
	copy(buf, username)
	return buf
}

// HashPassword derives the stored PBKDF2-SHA512 password hash for a new or
// changed user record (internal/adminstore's users property).
func HashPassword(password string, salt [32]byte) []byte {
	return pbkdf2.Key([]byte(password), salt[:], PBKDF2Rounds, PBKDF2KeyLen, sha512.New)
}

// DeriveSessionKey folds the DH shared secret and the user's stored
// password hash into the final secretbox key, so that a passive observer of
// the DH exchange alone cannot derive the session key without knowing the
// password hash too.
func DeriveSessionKey(shared [32]byte, passwordHash []byte) [32]byte {
	h := blake2s.Sum256(append(append([]byte{}, shared[:]...), passwordHash...))
	return h
}

// NonceFromCounter zero-extends the header's monotonic 64-bit nonce to the
// 24 bytes secretbox requires. Documented, versioned convention: the high
// 16 bytes are always zero, so nonce uniqueness is guaranteed solely by the
// caller never reusing a counter value for a given session key.
func NonceFromCounter(counter uint64) [secretboxNonceLen]byte {
	var nonce [secretboxNonceLen]byte
	binary.BigEndian.PutUint64(nonce[secretboxNonceLen-8:], counter)
	return nonce
}

// Seal encrypts plaintext under key, using counter as the nonce source.
// Returns nonce-independent ciphertext; the counter itself travels
// separately in the wire header and must never be reused for a given key.
func Seal(key [32]byte, counter uint64, plaintext []byte) []byte {
	nonce := NonceFromCounter(counter)
	return secretbox.Seal(nil, plaintext, &nonce, &key)
}

// Open decrypts ciphertext sealed by Seal with the same key and counter.
func Open(key [32]byte, counter uint64, ciphertext []byte) ([]byte, error) {
	nonce := NonceFromCounter(counter)
	plain, ok := secretbox.Open(nil, ciphertext, &nonce, &key)
	if !ok {
		return nil, ErrDecryptionFailed
	}
	return plain, nil
}

// ConstantTimeCompare wraps crypto/subtle for comparing derived hashes
// without leaking timing information.
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
