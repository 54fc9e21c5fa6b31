// Package domain holds the core scheduling record and its invariants.
package domain

import (
	"sync"
	"time"
)

// Flag is a bit in an Entry's flag set.
type Flag uint32

// Entry flags, per the wire/daemon split: NEW/DEL/GET and the two
// alignment/relative bits are wire-allowed; the rest are daemon-local and
// are stripped from anything received off the wire.
const (
	FlagNew Flag = 1 << iota
	FlagDel
	FlagGet
	FlagPause
	FlagInit
	FlagProgress
	FlagAuthorized
	FlagFinish
	FlagComplete
	FlagTriggered
	FlagRelativeTrigger
	FlagRelativeExpire
	FlagMonthdayAlign
	FlagYeardayAlign
)

// WireAllowedMask is the set of flags a client may legally set on the wire.
const WireAllowedMask = FlagNew | FlagDel | FlagGet | FlagPause |
	FlagRelativeTrigger | FlagRelativeExpire | FlagMonthdayAlign | FlagYeardayAlign

// LocalOnlyMask is the set of flags only the daemon may set.
const LocalOnlyMask = FlagInit | FlagProgress | FlagAuthorized | FlagFinish |
	FlagComplete | FlagTriggered

// FlagSet is a 32-bit bitset with helpers mirroring the original
// entry_has_flag/entry_set_flag/entry_unset_flag trio.
type FlagSet struct {
	mu    sync.Mutex
	value Flag
}

func NewFlagSet(initial Flag) *FlagSet {
	return &FlagSet{value: initial}
}

func (f *FlagSet) Has(flag Flag) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value&flag != 0
}

func (f *FlagSet) Set(flag Flag) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value |= flag
}

func (f *FlagSet) Unset(flag Flag) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value &^= flag
}

// UnsetLocal clears every daemon-local flag — applied to anything freshly
// decoded off the wire, per spec invariant 6 ("local-only flags are never
// visible on the wire").
func (f *FlagSet) UnsetLocal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value &^= LocalOnlyMask
}

// WireValue returns the current bitset value, masked to the wire-allowed bits —
// used when serializing a header back onto the wire.
func (f *FlagSet) WireValue() Flag {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value & WireAllowedMask
}

func (f *FlagSet) Value() Flag {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

func (f *FlagSet) Replace(v Flag) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value = v
}

// ExecStatus is the most recently collected execution outcome for an entry,
// populated by the stat collector (§4.8).
type ExecStatus struct {
	PID        int32
	Status     int32
	ExecTime   time.Duration
	Latency    time.Duration
	OutData    []byte
	NrExec     uint32
	NrOK       uint32
	NrFail     uint32
}

// Entry is the atomic unit of scheduling — the in-memory representation of
// spec §3's central record. Sensitive/ephemeral fields (Session,
// Nonce, AgreedKey, Payload, SchedID) are never persisted; see
// internal/marshal for the on-disk subset.
type Entry struct {
	ID    uint64
	Flags *FlagSet

	UID uint32
	GID uint32

	Trigger time.Time
	Step    time.Duration
	Expire  time.Time

	Username string

	// Session/auth scratch state, valid only while the request is live.
	Session   [64]byte
	Nonce     uint64
	AgreedKey [32]byte

	// Payload carries opcode-specific bytes: the subject text for NEW,
	// or a packed id list for DEL/GET.
	Payload []byte

	// Subj is the persisted subject (shell command) for NEW entries.
	Subj string

	Status ExecStatus

	// SchedID is the opaque scheduler handle; zero means unarmed.
	SchedID uint64

	mu sync.Mutex
}

// NewEntry builds a zero-value entry with an initialized flag set.
func NewEntry(flags Flag) *Entry {
	return &Entry{Flags: NewFlagSet(flags)}
}

// IsOneShot reports whether the entry fires at most once.
func (e *Entry) IsOneShot() bool {
	return e.Step == 0
}

// IsArmed reports whether the entry currently holds a scheduler handle,
// per invariant 3 ("psched_id is non-zero iff the entry is armed").
func (e *Entry) IsArmed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.SchedID != 0
}

func (e *Entry) SetSchedID(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.SchedID = id
}

func (e *Entry) GetSchedID() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.SchedID
}

// ValidateArming checks invariant 4 (expire zero or strictly after trigger)
// at the moment of arming.
func (e *Entry) ValidateArming() error {
	if !e.Expire.IsZero() && !e.Expire.After(e.Trigger) {
		return ErrExpireNotAfterTrigger
	}
	return nil
}

// Clone returns a shallow copy safe to hand to a caller outside the pool
// lock — used by GET replies, which must never leak Session/Payload/SchedID
// (spec invariant 8 / §4.6 GET semantics).
func (e *Entry) Clone() *Entry {
	c := &Entry{
		ID:       e.ID,
		Flags:    NewFlagSet(e.Flags.Value()),
		UID:      e.UID,
		GID:      e.GID,
		Trigger:  e.Trigger,
		Step:     e.Step,
		Expire:   e.Expire,
		Username: e.Username,
		Subj:     e.Subj,
		Status:   e.Status,
	}
	return c
}
