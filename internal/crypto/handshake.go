package crypto

import "errors"

// ErrUsernameTooLong rejects anything that would silently truncate in
// padUsername, since that would map two distinct usernames to the same
// salt.
var ErrUsernameTooLong = errors.New("crypto: username exceeds 32 bytes")

// ClientHello is step 1 of the 4-step remote handshake: the client
// announces itself and a fresh nonce before any key material is exchanged.
type ClientHello struct {
	Username string
	Nonce    uint64
	Public   [32]byte
}

// ServerChallenge is step 2: the daemon's public key plus a token encrypted
// under the not-yet-fully-agreed key, proving it holds the matching
// password hash.
type ServerChallenge struct {
	Public         [32]byte
	EncryptedToken []byte
}

// ClientResponse is step 3: the client, having derived the same session
// key, proves knowledge of the password by encrypting it and sending it
// back.
type ClientResponse struct {
	EncryptedPassword []byte
}

// Handshake holds the server-side state threaded across the 4 handshake
// steps for a single connection.
type Handshake struct {
	username     string
	salt         [32]byte
	passwordHash []byte
	serverKeys   KeyPair
	sessionKey   [32]byte
}

// NewServerHandshake begins the daemon side of the exchange. passwordHash
// is the stored PBKDF2 hash looked up for hello.Username.
func NewServerHandshake(hello ClientHello, passwordHash []byte) (*Handshake, ServerChallenge, error) {
	if len(hello.Username) > 32 {
		return nil, ServerChallenge{}, ErrUsernameTooLong
	}
	salt, err := DeriveSalt(hello.Username)
	if err != nil {
		return nil, ServerChallenge{}, err
	}
	keys, err := GenerateKeyPair()
	if err != nil {
		return nil, ServerChallenge{}, err
	}
	shared, err := SharedSecret(keys.Private, hello.Public)
	if err != nil {
		return nil, ServerChallenge{}, err
	}
	sessionKey := DeriveSessionKey(shared, passwordHash)

	token := make([]byte, 16)
	copy(token, salt[:16])
	encToken := Seal(sessionKey, hello.Nonce, token)

	hs := &Handshake{
		username:     hello.Username,
		salt:         salt,
		passwordHash: passwordHash,
		serverKeys:   keys,
		sessionKey:   sessionKey,
	}
	return hs, ServerChallenge{Public: keys.Public, EncryptedToken: encToken}, nil
}

// VerifyClientResponse completes step 4: decrypting the client's password
// payload and comparing it against the stored hash derived with the same
// salt. nonce must be the hello nonce plus one, matching the counter
// ClientHandshake.ProcessChallenge used to seal the response. Returns the
// agreed session key on success, for use by secretbox on every subsequent
// payload.
func (hs *Handshake) VerifyClientResponse(resp ClientResponse, nonce uint64) ([32]byte, error) {
	plain, err := Open(hs.sessionKey, nonce, resp.EncryptedPassword)
	if err != nil {
		return [32]byte{}, err
	}
	candidateHash := HashPassword(string(plain), hs.salt)
	if !ConstantTimeCompare(candidateHash, hs.passwordHash) {
		return [32]byte{}, ErrDecryptionFailed
	}
	return hs.sessionKey, nil
}
