package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// EncodeNewReply builds the cleartext NEW-opcode reply payload: the
// assigned id as a big-endian u64.
func EncodeNewReply(id uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return buf
}

// DecodeNewReply is the client-side counterpart of EncodeNewReply.
func DecodeNewReply(payload []byte) (uint64, error) {
	if len(payload) != 8 {
		return 0, fmt.Errorf("wire: NEW reply must be 8 bytes, got %d", len(payload))
	}
	return binary.BigEndian.Uint64(payload), nil
}

// EncodeIDList builds a `u32 count ‖ u64 id[count]` payload, used by the
// DEL reply.
func EncodeIDList(ids []uint64) []byte {
	buf := make([]byte, 4+8*len(ids))
	binary.BigEndian.PutUint32(buf, uint32(len(ids)))
	for i, id := range ids {
		binary.BigEndian.PutUint64(buf[4+8*i:], id)
	}
	return buf
}

// DecodeIDList is the inverse of EncodeIDList — used both for DEL's
// reply and DEL/GET's request payload (a packed id list; an empty list
// means "all entries owned by this uid").
func DecodeIDList(payload []byte) ([]uint64, error) {
	if len(payload) < 4 {
		return nil, fmt.Errorf("wire: id list missing count prefix")
	}
	count := binary.BigEndian.Uint32(payload)
	want := 4 + 8*int(count)
	if len(payload) != want {
		return nil, fmt.Errorf("wire: id list declares %d entries but has %d bytes", count, len(payload))
	}
	ids := make([]uint64, count)
	for i := range ids {
		ids[i] = binary.BigEndian.Uint64(payload[4+8*i:])
	}
	return ids, nil
}

// GetRecord is one entry's worth of data in a GET reply: header fields
// through expire, execution-status fields, username, and the subject.
type GetRecord struct {
	ID      uint64
	Flags   uint32
	UID     uint32
	GID     uint32
	Trigger uint32
	Step    uint32
	Expire  uint32

	ExecStatus int32
	NrExec     uint32
	NrOK       uint32
	NrFail     uint32

	Username string
	Subj     string
}

// EncodeGetReply builds the `u32 count ‖ record[count]` GET reply payload.
func EncodeGetReply(records []GetRecord) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(records)))
	for _, r := range records {
		encodeGetRecord(&buf, r)
	}
	return buf.Bytes()
}

func encodeGetRecord(buf *bytes.Buffer, r GetRecord) {
	_ = binary.Write(buf, binary.BigEndian, r.ID)
	_ = binary.Write(buf, binary.BigEndian, r.Flags)
	_ = binary.Write(buf, binary.BigEndian, r.UID)
	_ = binary.Write(buf, binary.BigEndian, r.GID)
	_ = binary.Write(buf, binary.BigEndian, r.Trigger)
	_ = binary.Write(buf, binary.BigEndian, r.Step)
	_ = binary.Write(buf, binary.BigEndian, r.Expire)
	_ = binary.Write(buf, binary.BigEndian, r.ExecStatus)
	_ = binary.Write(buf, binary.BigEndian, r.NrExec)
	_ = binary.Write(buf, binary.BigEndian, r.NrOK)
	_ = binary.Write(buf, binary.BigEndian, r.NrFail)

	var uname [UsernameSize]byte
	copy(uname[:UsernameSize-1], r.Username)
	buf.Write(uname[:])

	subj := []byte(r.Subj)
	_ = binary.Write(buf, binary.BigEndian, uint32(len(subj)))
	buf.Write(subj)
	buf.WriteByte(0)
}

// DecodeGetReply is the client-side counterpart of EncodeGetReply.
func DecodeGetReply(payload []byte) ([]GetRecord, error) {
	r := bytes.NewReader(payload)
	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("wire: GET reply missing count: %w", err)
	}
	out := make([]GetRecord, count)
	for i := range out {
		rec, err := decodeGetRecord(r)
		if err != nil {
			return nil, fmt.Errorf("wire: GET reply record %d: %w", i, err)
		}
		out[i] = rec
	}
	return out, nil
}

func decodeGetRecord(r io.Reader) (GetRecord, error) {
	var rec GetRecord
	fields := []any{
		&rec.ID, &rec.Flags, &rec.UID, &rec.GID, &rec.Trigger, &rec.Step, &rec.Expire,
		&rec.ExecStatus, &rec.NrExec, &rec.NrOK, &rec.NrFail,
	}
	for _, f := range fields {
		if err := binary.Read(r, binary.BigEndian, f); err != nil {
			return rec, err
		}
	}

	var uname [UsernameSize]byte
	if _, err := io.ReadFull(r, uname[:]); err != nil {
		return rec, err
	}
	if n := bytes.IndexByte(uname[:], 0); n >= 0 {
		rec.Username = string(uname[:n])
	} else {
		rec.Username = string(uname[:])
	}

	var subjLen uint32
	if err := binary.Read(r, binary.BigEndian, &subjLen); err != nil {
		return rec, err
	}
	subj := make([]byte, subjLen+1)
	if _, err := io.ReadFull(r, subj); err != nil {
		return rec, err
	}
	rec.Subj = string(subj[:subjLen])
	return rec, nil
}
