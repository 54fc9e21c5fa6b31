package adminstore

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/usched-go/usched/internal/crypto"
	"github.com/usched-go/usched/internal/domain"
)

// UserStore holds the "users" category's flat-file records: one file per
// username under baseDir/users/, each holding a binary-encoded
// domain.AdminUser. Grounded on category_users_{add,change,delete,show}
// from original_source/include/category.h; password hashing reuses
// internal/crypto's PBKDF2/BLAKE2s primitives so a stored user can directly
// seed internal/auth.PasswordLookup.
type UserStore struct {
	mu  sync.Mutex
	dir string
}

// NewUserStore opens (creating if needed) the users directory under
// baseDir.
func NewUserStore(baseDir string) (*UserStore, error) {
	dir := filepath.Join(baseDir, string(domain.CategoryUsers))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("adminstore: create users dir: %w", err)
	}
	return &UserStore{dir: dir}, nil
}

func (u *UserStore) path(username string) string {
	return filepath.Join(u.dir, username)
}

// Add creates a new user record, deriving its salt from the username and
// hashing password with it. Returns domain.ErrDuplicateEntry if the
// username already has a record.
func (u *UserStore) Add(username string, uid, gid uint32, password string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if _, err := os.Stat(u.path(username)); err == nil {
		return domain.ErrDuplicateEntry
	}

	salt, err := crypto.DeriveSalt(username)
	if err != nil {
		return fmt.Errorf("adminstore: derive salt: %w", err)
	}
	hash := crypto.HashPassword(password, salt)

	rec := domain.AdminUser{UID: uid, GID: gid, Salt: salt, Hash: hash}
	return u.write(username, rec)
}

// Change updates an existing user's password, re-deriving the hash against
// the same per-username salt.
func (u *UserStore) Change(username, password string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	rec, err := u.readLocked(username)
	if err != nil {
		return err
	}
	rec.Hash = crypto.HashPassword(password, rec.Salt)
	return u.write(username, rec)
}

// Delete removes a user's record.
func (u *UserStore) Delete(username string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := os.Remove(u.path(username)); err != nil {
		if os.IsNotExist(err) {
			return domain.ErrEntryNotFound
		}
		return fmt.Errorf("adminstore: delete user %s: %w", username, err)
	}
	return nil
}

// Show returns a user's stored record.
func (u *UserStore) Show(username string) (domain.AdminUser, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.readLocked(username)
}

// Lookup implements internal/auth.PasswordLookup directly against the
// stored records, so the remote PAKE handshake can authenticate against
// admin-managed users without a separate adapter.
func (u *UserStore) Lookup(username string) (uid, gid uint32, passwordHash []byte, err error) {
	rec, err := u.Show(username)
	if err != nil {
		return 0, 0, nil, err
	}
	return rec.UID, rec.GID, rec.Hash, nil
}

func (u *UserStore) readLocked(username string) (domain.AdminUser, error) {
	data, err := os.ReadFile(u.path(username))
	if os.IsNotExist(err) {
		return domain.AdminUser{}, domain.ErrUserRecordNotFound
	}
	if err != nil {
		return domain.AdminUser{}, fmt.Errorf("adminstore: read user %s: %w", username, err)
	}
	return decodeAdminUser(data)
}

func (u *UserStore) write(username string, rec domain.AdminUser) error {
	data := encodeAdminUser(rec)
	tmp := u.path(username) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("adminstore: write user %s: %w", username, err)
	}
	if err := os.Rename(tmp, u.path(username)); err != nil {
		return fmt.Errorf("adminstore: rename user %s into place: %w", username, err)
	}
	return nil
}

// encodeAdminUser lays out uid(4) | gid(4) | salt(32) | hash_len(4) | hash.
func encodeAdminUser(rec domain.AdminUser) []byte {
	buf := make([]byte, 4+4+32+4+len(rec.Hash))
	binary.BigEndian.PutUint32(buf[0:4], rec.UID)
	binary.BigEndian.PutUint32(buf[4:8], rec.GID)
	copy(buf[8:40], rec.Salt[:])
	binary.BigEndian.PutUint32(buf[40:44], uint32(len(rec.Hash)))
	copy(buf[44:], rec.Hash)
	return buf
}

func decodeAdminUser(data []byte) (domain.AdminUser, error) {
	if len(data) < 44 {
		return domain.AdminUser{}, fmt.Errorf("adminstore: corrupt user record (%d bytes)", len(data))
	}
	var rec domain.AdminUser
	rec.UID = binary.BigEndian.Uint32(data[0:4])
	rec.GID = binary.BigEndian.Uint32(data[4:8])
	copy(rec.Salt[:], data[8:40])
	hashLen := binary.BigEndian.Uint32(data[40:44])
	if uint32(len(data)-44) != hashLen {
		return domain.AdminUser{}, fmt.Errorf("adminstore: corrupt user record: hash length mismatch")
	}
	rec.Hash = append([]byte(nil), data[44:]...)
	return rec, nil
}
