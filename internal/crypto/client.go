package crypto

// ClientHandshake holds client-side state for the same 4-step exchange
// NewServerHandshake drives on the daemon side.
type ClientHandshake struct {
	keys       KeyPair
	sessionKey [32]byte
}

// NewClientHello generates a fresh key pair and nonce-bearing hello for a
// connecting client.
func NewClientHello(username string, nonce uint64) (*ClientHandshake, ClientHello, error) {
	keys, err := GenerateKeyPair()
	if err != nil {
		return nil, ClientHello{}, err
	}
	ch := &ClientHandshake{keys: keys}
	return ch, ClientHello{Username: username, Nonce: nonce, Public: keys.Public}, nil
}

// ProcessChallenge derives the session key from the server's public key and
// password hash, verifies the server's encrypted token decrypts cleanly
// (proving the server holds the same password hash), and returns the
// client's encrypted-password response for step 3.
func (ch *ClientHandshake) ProcessChallenge(challenge ServerChallenge, helloNonce uint64, passwordHash []byte, password string) (ClientResponse, error) {
	shared, err := SharedSecret(ch.keys.Private, challenge.Public)
	if err != nil {
		return ClientResponse{}, err
	}
	ch.sessionKey = DeriveSessionKey(shared, passwordHash)

	if _, err := Open(ch.sessionKey, helloNonce, challenge.EncryptedToken); err != nil {
		return ClientResponse{}, err
	}

	enc := Seal(ch.sessionKey, helloNonce+1, []byte(password))
	return ClientResponse{EncryptedPassword: enc}, nil
}

// SessionKey returns the agreed key once ProcessChallenge has succeeded.
func (ch *ClientHandshake) SessionKey() [32]byte {
	return ch.sessionKey
}
