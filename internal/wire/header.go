// Package wire implements the fixed-size EntryHeader codec and the
// length-prefixed response framing of spec.md §6.1.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/usched-go/usched/internal/errs"
)

const (
	// HeaderSize is the fixed on-wire size of an EntryHeader, in bytes:
	// id(8) + flags(4) + uid(4) + gid(4) + trigger(4) + step(4) +
	// expire(4) + psize(4) + nonce(8) + username(32).
	HeaderSize = 8 + 4 + 4 + 4 + 4 + 4 + 4 + 4 + 8 + 32

	// SessionSize is the fixed size of the session field following the
	// header on first contact.
	SessionSize = 64

	// UsernameSize is the fixed width of the NUL-padded username field.
	UsernameSize = 32

	// RemoteSentinel is the uid/gid value a remote client's header carries
	// before authentication assigns its real identity.
	RemoteSentinel = 0xffffffff
)

var (
	ErrShortHeader   = errs.Wrap(errs.ErrProtocol, errors.New("wire: short read decoding EntryHeader"))
	ErrUsernameNUL   = errs.Wrap(errs.ErrProtocol, errors.New("wire: username field is not NUL-terminated within 32 bytes"))
	ErrFrameTooLarge = errs.Wrap(errs.ErrResource, errors.New("wire: response frame exceeds configured maximum"))
)

// EntryHeader is the fixed-size header exchanged at the start of every
// request, per spec.md §6.1. Field order and sizes match the wire layout
// exactly; Go struct field order is independent of encode/decode order,
// which is made explicit in Encode/Decode below.
type EntryHeader struct {
	ID       uint64
	Flags    uint32
	UID      uint32
	GID      uint32
	Trigger  uint32
	Step     uint32
	Expire   uint32
	PSize    uint32
	Nonce    uint64
	Username [UsernameSize]byte
}

// Encode writes h in the exact on-wire byte order into a HeaderSize buffer.
func (h *EntryHeader) Encode() []byte {
	buf := make([]byte, HeaderSize)
	off := 0
	binary.BigEndian.PutUint64(buf[off:], h.ID)
	off += 8
	binary.BigEndian.PutUint32(buf[off:], h.Flags)
	off += 4
	binary.BigEndian.PutUint32(buf[off:], h.UID)
	off += 4
	binary.BigEndian.PutUint32(buf[off:], h.GID)
	off += 4
	binary.BigEndian.PutUint32(buf[off:], h.Trigger)
	off += 4
	binary.BigEndian.PutUint32(buf[off:], h.Step)
	off += 4
	binary.BigEndian.PutUint32(buf[off:], h.Expire)
	off += 4
	binary.BigEndian.PutUint32(buf[off:], h.PSize)
	off += 4
	binary.BigEndian.PutUint64(buf[off:], h.Nonce)
	off += 8
	copy(buf[off:], h.Username[:])
	return buf
}

// DecodeHeader reads exactly HeaderSize bytes from r and parses them into
// an EntryHeader.
func DecodeHeader(r io.Reader) (*EntryHeader, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, err
		}
		return nil, errors.Join(ErrShortHeader, err)
	}

	h := &EntryHeader{}
	off := 0
	h.ID = binary.BigEndian.Uint64(buf[off:])
	off += 8
	h.Flags = binary.BigEndian.Uint32(buf[off:])
	off += 4
	h.UID = binary.BigEndian.Uint32(buf[off:])
	off += 4
	h.GID = binary.BigEndian.Uint32(buf[off:])
	off += 4
	h.Trigger = binary.BigEndian.Uint32(buf[off:])
	off += 4
	h.Step = binary.BigEndian.Uint32(buf[off:])
	off += 4
	h.Expire = binary.BigEndian.Uint32(buf[off:])
	off += 4
	h.PSize = binary.BigEndian.Uint32(buf[off:])
	off += 4
	h.Nonce = binary.BigEndian.Uint64(buf[off:])
	off += 8
	copy(h.Username[:], buf[off:])
	return h, nil
}

// UsernameString returns the username field up to its first NUL byte.
func (h *EntryHeader) UsernameString() string {
	n := bytes.IndexByte(h.Username[:], 0)
	if n < 0 {
		n = UsernameSize
	}
	return string(h.Username[:n])
}

// SetUsername copies name into the fixed field, NUL-padding or truncating
// to fit; byte 31 is always left zero.
func (h *EntryHeader) SetUsername(name string) {
	var buf [UsernameSize]byte
	n := copy(buf[:UsernameSize-1], name)
	_ = n
	h.Username = buf
}
