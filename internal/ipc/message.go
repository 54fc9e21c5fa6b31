// Package ipc implements the two fixed-shape message contracts the daemon
// exchanges with helper processes over local datagram sockets: daemon→
// executor dispatch requests, and executor→stat execution reports. Both
// stand in for the original POSIX message-queue contracts (entry.c's
// entry_pmq_dispatch), carried instead over net.UnixConn datagrams — see
// DESIGN.md for why no pack dependency offers mqueue bindings.
package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/usched-go/usched/internal/errs"
)

// DefaultMaxMessageSize bounds a single dispatch/report datagram, matching
// the spirit of the original's CONFIG_USCHED_PMQ_MSG_SIZE (sized generously
// for a uid/gid header plus a shell command line).
const DefaultMaxMessageSize = 4096

var (
	ErrMessageTooLarge = errs.Wrap(errs.ErrResource, errors.New("ipc: message exceeds maximum size"))
	ErrMessageTooShort  = errs.Wrap(errs.ErrProtocol, errors.New("ipc: message shorter than its fixed header"))
)

// DispatchMessage is the daemon→executor request: run Cmd as UID/GID,
// tagged with the owning entry's ID so the executor can report back against
// it. Mirrors entry_pmq_dispatch's uid|gid|cmd layout, extended with the
// entry id the original left implicit in queue ordering.
type DispatchMessage struct {
	EntryID uint64
	UID     uint32
	GID     uint32
	Cmd     string
}

// Encode packs a DispatchMessage as id(8) | uid(4) | gid(4) | cmd.
func (m DispatchMessage) Encode() ([]byte, error) {
	buf := make([]byte, 16+len(m.Cmd))
	binary.BigEndian.PutUint64(buf[0:8], m.EntryID)
	binary.BigEndian.PutUint32(buf[8:12], m.UID)
	binary.BigEndian.PutUint32(buf[12:16], m.GID)
	copy(buf[16:], m.Cmd)
	if len(buf) > DefaultMaxMessageSize {
		return nil, ErrMessageTooLarge
	}
	return buf, nil
}

// DecodeDispatchMessage unpacks the wire form Encode produces.
func DecodeDispatchMessage(buf []byte) (DispatchMessage, error) {
	if len(buf) < 16 {
		return DispatchMessage{}, ErrMessageTooShort
	}
	return DispatchMessage{
		EntryID: binary.BigEndian.Uint64(buf[0:8]),
		UID:     binary.BigEndian.Uint32(buf[8:12]),
		GID:     binary.BigEndian.Uint32(buf[12:16]),
		Cmd:     string(buf[16:]),
	}, nil
}

// StatMessage is the executor→stat report: the outcome of one dispatched
// execution, mirroring original_source/include/stat.h's usched_stat_exec
// (minus the timespecs, carried as unix-nano offsets here).
type StatMessage struct {
	EntryID    uint64
	UID        uint32
	GID        uint32
	PID        int32
	Status     int32
	TriggerUnixNano int64
	StartUnixNano   int64
	EndUnixNano     int64
	OutData    []byte
}

const statMessageHeaderSize = 8 + 4 + 4 + 4 + 4 + 8 + 8 + 8

// Encode packs a StatMessage as a fixed header followed by OutData.
func (m StatMessage) Encode() ([]byte, error) {
	buf := make([]byte, statMessageHeaderSize+len(m.OutData))
	binary.BigEndian.PutUint64(buf[0:8], m.EntryID)
	binary.BigEndian.PutUint32(buf[8:12], m.UID)
	binary.BigEndian.PutUint32(buf[12:16], m.GID)
	binary.BigEndian.PutUint32(buf[16:20], uint32(m.PID))
	binary.BigEndian.PutUint32(buf[20:24], uint32(m.Status))
	binary.BigEndian.PutUint64(buf[24:32], uint64(m.TriggerUnixNano))
	binary.BigEndian.PutUint64(buf[32:40], uint64(m.StartUnixNano))
	binary.BigEndian.PutUint64(buf[40:48], uint64(m.EndUnixNano))
	copy(buf[48:], m.OutData)
	if len(buf) > DefaultMaxMessageSize {
		return nil, ErrMessageTooLarge
	}
	return buf, nil
}

// DecodeStatMessage unpacks the wire form Encode produces.
func DecodeStatMessage(buf []byte) (StatMessage, error) {
	if len(buf) < statMessageHeaderSize {
		return StatMessage{}, ErrMessageTooShort
	}
	m := StatMessage{
		EntryID:         binary.BigEndian.Uint64(buf[0:8]),
		UID:             binary.BigEndian.Uint32(buf[8:12]),
		GID:             binary.BigEndian.Uint32(buf[12:16]),
		PID:             int32(binary.BigEndian.Uint32(buf[16:20])),
		Status:          int32(binary.BigEndian.Uint32(buf[20:24])),
		TriggerUnixNano: int64(binary.BigEndian.Uint64(buf[24:32])),
		StartUnixNano:   int64(binary.BigEndian.Uint64(buf[32:40])),
		EndUnixNano:     int64(binary.BigEndian.Uint64(buf[40:48])),
	}
	if len(buf) > statMessageHeaderSize {
		m.OutData = append([]byte(nil), buf[statMessageHeaderSize:]...)
	}
	return m, nil
}

func (m DispatchMessage) String() string {
	return fmt.Sprintf("dispatch(entry=%d uid=%d gid=%d cmd=%q)", m.EntryID, m.UID, m.GID, m.Cmd)
}
