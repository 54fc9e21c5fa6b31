// Package marshal snapshots the active pool to a single locked file and
// reloads it at startup, compensating reloaded triggers for clock drift and
// dropping lapsed one-shots.
package marshal

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/usched-go/usched/internal/domain"
	"github.com/usched-go/usched/internal/errs"
)

// FormatVersion is the on-disk layout version this package writes. Version
// 2 adds the triggered byte (see spec.md §3/§9's Open Question and
// SPEC_FULL.md §3); version 1 files are still readable, with triggered
// defaulting to false — the only default that can never skip a
// legitimately-due firing.
const FormatVersion = 2

var (
	ErrCorruptRecord  = errs.Wrap(errs.ErrPersistence, errors.New("marshal: truncated or corrupt entry record"))
	ErrUnknownVersion = errs.Wrap(errs.ErrPersistence, errors.New("marshal: unsupported format version"))
)

// PersistedEntry is the subset of domain.Entry written to disk. Session,
// Nonce, AgreedKey, Payload and SchedID are deliberately excluded — they
// are either connection-scoped or re-derived at arm time.
type PersistedEntry struct {
	ID        uint64
	Flags     domain.Flag
	UID       uint32
	GID       uint32
	Trigger   time.Time
	Step      time.Duration
	Expire    time.Time
	Triggered bool
	Subj      string
}

// FromEntry projects the persisted subset out of a live entry.
func FromEntry(e *domain.Entry) PersistedEntry {
	return PersistedEntry{
		ID:        e.ID,
		Flags:     e.Flags.Value(),
		UID:       e.UID,
		GID:       e.GID,
		Trigger:   e.Trigger,
		Step:      e.Step,
		Expire:    e.Expire,
		Triggered: e.Flags.Has(domain.FlagTriggered),
		Subj:      e.Subj,
	}
}

// ToEntry reconstitutes a live entry from its persisted subset. Scheduler
// arming is the caller's responsibility.
func (p PersistedEntry) ToEntry() *domain.Entry {
	e := domain.NewEntry(p.Flags)
	e.ID = p.ID
	e.UID = p.UID
	e.GID = p.GID
	e.Trigger = p.Trigger
	e.Step = p.Step
	e.Expire = p.Expire
	e.Subj = p.Subj
	if p.Triggered {
		e.Flags.Set(domain.FlagTriggered)
	}
	return e
}

// WriteRecord appends one entry's v2 record to w:
//
//	u64 id | u32 flags | u32 uid | u32 gid | u32 trigger | u32 step |
//	u32 expire | u8 triggered | u32 subj_size | subj[subj_size]
func WriteRecord(w io.Writer, p PersistedEntry) error {
	subj := []byte(p.Subj)
	buf := make([]byte, 0, 8+4+4+4+4+4+4+1+4+len(subj))
	b := bytes.NewBuffer(buf)

	_ = binary.Write(b, binary.LittleEndian, p.ID)
	_ = binary.Write(b, binary.LittleEndian, uint32(p.Flags))
	_ = binary.Write(b, binary.LittleEndian, p.UID)
	_ = binary.Write(b, binary.LittleEndian, p.GID)
	_ = binary.Write(b, binary.LittleEndian, uint32(p.Trigger.Unix()))
	_ = binary.Write(b, binary.LittleEndian, uint32(p.Step/time.Second))
	_ = binary.Write(b, binary.LittleEndian, uint32(expireUnix(p.Expire)))

	var triggered uint8
	if p.Triggered {
		triggered = 1
	}
	_ = binary.Write(b, binary.LittleEndian, triggered)
	_ = binary.Write(b, binary.LittleEndian, uint32(len(subj)))
	b.Write(subj)

	_, err := w.Write(b.Bytes())
	return err
}

func expireUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

// ReadRecord reads one record in the given format version. version 1
// records omit the triggered byte; Triggered is left false in that case.
func ReadRecord(r *bufio.Reader, version int) (PersistedEntry, error) {
	var p PersistedEntry

	var id uint64
	if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
		if errors.Is(err, io.EOF) {
			return p, io.EOF
		}
		return p, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}

	var flags, uid, gid, trigger, step, expire uint32
	for _, dst := range []any{&flags, &uid, &gid, &trigger, &step, &expire} {
		if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
			return p, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
		}
	}

	if version >= 2 {
		var triggered uint8
		if err := binary.Read(r, binary.LittleEndian, &triggered); err != nil {
			return p, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
		}
		p.Triggered = triggered != 0
	}

	var subjLen uint32
	if err := binary.Read(r, binary.LittleEndian, &subjLen); err != nil {
		return p, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	subj := make([]byte, subjLen)
	if _, err := io.ReadFull(r, subj); err != nil {
		return p, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}

	p.ID = id
	p.Flags = domain.Flag(flags)
	p.UID = uid
	p.GID = gid
	p.Trigger = time.Unix(int64(trigger), 0)
	p.Step = time.Duration(step) * time.Second
	if expire != 0 {
		p.Expire = time.Unix(int64(expire), 0)
	}
	p.Subj = string(subj)
	return p, nil
}
