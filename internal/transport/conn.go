package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/usched-go/usched/internal/auth"
	"github.com/usched-go/usched/internal/crypto"
	"github.com/usched-go/usched/internal/domain"
	"github.com/usched-go/usched/internal/errs"
	"github.com/usched-go/usched/internal/scheduler"
	"github.com/usched-go/usched/internal/wire"
)

var (
	ErrAuthorizationFailed = errs.Wrap(errs.ErrAuth, errors.New("transport: connection failed authorization"))
	ErrPayloadSizeMismatch = errs.Wrap(errs.ErrProtocol, errors.New("transport: declared payload size does not match header"))
)

// connState tracks the per-connection protocol state across the lifetime
// of one accepted net.Conn — generalizing notify.c's per-fd struct
// async_op/usched_entry pairing into Go fields on a single goroutine's
// stack.
type connState struct {
	id     int
	conn   net.Conn
	server *Server
	logger *slog.Logger

	remote   bool
	uid, gid uint32
	username string

	session      *auth.RemoteSession
	agreedKey    [32]byte
	nonceCounter uint64
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn, connID int) {
	defer conn.Close()

	logger := s.logger.With("conn", connID, "remote_addr", conn.RemoteAddr().String())
	defer func() {
		if r := recover(); r != nil {
			fatal := errs.Wrap(errs.ErrFatal, fmt.Errorf("panic in connection handler: %v", r))
			logger.Error("recovered panic, closing connection", "error", fatal)
		}
	}()
	cs := &connState{
		id:     connID,
		conn:   conn,
		server: s,
		logger: logger,
		remote: s.kind == KindRemote,
	}

	if cs.remote {
		if err := cs.handshake(); err != nil {
			logger.Warn("handshake failed", "error", err)
			return
		}
		logger.Info("remote client authenticated", "username", cs.username, "uid", cs.uid)
	}

	for {
		if ctx.Err() != nil {
			return
		}
		if s.connTimeout > 0 {
			_ = conn.SetDeadline(time.Now().Add(s.connTimeout))
		}
		if err := cs.handleRequest(); err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Debug("connection terminated", "error", err)
			}
			return
		}
	}
}

// handshake drives the daemon side of the 4-step remote handshake (steps 1
// and 2 of internal/auth.RemoteSession; the wire round trip itself is steps
// "client hello" / "server challenge" / "client response").
func (cs *connState) handshake() error {
	raw, err := wire.ReadFrame(cs.conn, wire.DefaultMaxFrameSize)
	if err != nil {
		return fmt.Errorf("read client hello: %w", err)
	}
	hello, err := wire.DecodeClientHello(raw)
	if err != nil {
		return fmt.Errorf("decode client hello: %w", err)
	}

	session := auth.NewRemoteSession(cs.server.lookup)
	challenge, err := session.Step1(hello)
	if err != nil {
		return fmt.Errorf("server challenge: %w", err)
	}
	if err := wire.WriteFrame(cs.conn, wire.EncodeServerChallenge(challenge)); err != nil {
		return fmt.Errorf("write server challenge: %w", err)
	}

	raw, err = wire.ReadFrame(cs.conn, wire.DefaultMaxFrameSize)
	if err != nil {
		return fmt.Errorf("read client response: %w", err)
	}
	resp, err := wire.DecodeClientResponse(raw)
	if err != nil {
		return fmt.Errorf("decode client response: %w", err)
	}

	key, err := session.Step2(resp, hello.Nonce)
	if err != nil {
		return fmt.Errorf("verify client response: %w", err)
	}

	cs.session = session
	cs.agreedKey = key
	cs.nonceCounter = hello.Nonce + 1
	cs.uid, cs.gid = session.Identity()
	cs.username = hello.Username
	return nil
}

// handleRequest processes exactly one EntryHeader + payload + reply cycle.
func (cs *connState) handleRequest() error {
	header, payload, err := cs.readRequest()
	if err != nil {
		return err
	}

	entry := domain.NewEntry(domain.Flag(header.Flags))
	entry.Flags.UnsetLocal()
	entry.Trigger = time.Unix(int64(header.Trigger), 0)
	entry.Step = time.Duration(header.Step) * time.Second
	if header.Expire != 0 {
		entry.Expire = time.Unix(int64(header.Expire), 0)
	}
	entry.Payload = payload

	if cs.remote {
		entry.UID, entry.GID = cs.uid, cs.gid
		entry.Username = cs.username
	} else {
		entry.UID, entry.GID = header.UID, header.GID
		entry.Username = header.UsernameString()
		if err := auth.VerifyLocal(cs.conn, header.UID, header.GID); err != nil {
			return fmt.Errorf("%w: %w", ErrAuthorizationFailed, err)
		}
	}
	entry.Flags.Set(domain.FlagAuthorized)

	switch {
	case entry.Flags.Has(domain.FlagNew):
		return cs.handleNew(entry)
	case entry.Flags.Has(domain.FlagDel):
		return cs.handleDel(entry)
	case entry.Flags.Has(domain.FlagGet):
		return cs.handleGet(entry)
	default:
		return fmt.Errorf("transport: request carries no recognized opcode flag")
	}
}

func (cs *connState) handleNew(entry *domain.Entry) error {
	entry.Subj = string(entry.Payload)
	id, err := cs.server.dispatcher.New1(entry, alignFromFlags(entry.Flags.Value()))
	if err != nil {
		cs.logger.Warn("new entry rejected", "error", err)
		return cs.writeReply(wire.EncodeNewReply(0))
	}
	return cs.writeReply(wire.EncodeNewReply(id))
}

func (cs *connState) handleDel(entry *domain.Entry) error {
	ids, err := wire.DecodeIDList(entry.Payload)
	if err != nil {
		return fmt.Errorf("decode DEL payload: %w", err)
	}
	removed := cs.server.dispatcher.Delete(entry.UID, ids)
	return cs.writeReply(wire.EncodeIDList(removed))
}

func (cs *connState) handleGet(entry *domain.Entry) error {
	ids, err := wire.DecodeIDList(entry.Payload)
	if err != nil {
		return fmt.Errorf("decode GET payload: %w", err)
	}
	entries := cs.server.dispatcher.Get(entry.UID, ids)
	records := make([]wire.GetRecord, len(entries))
	for i, e := range entries {
		records[i] = wire.GetRecord{
			ID:         e.ID,
			Flags:      uint32(e.Flags.WireValue()),
			UID:        e.UID,
			GID:        e.GID,
			Trigger:    uint32(e.Trigger.Unix()),
			Step:       uint32(e.Step / time.Second),
			ExecStatus: e.Status.Status,
			NrExec:     e.Status.NrExec,
			NrOK:       e.Status.NrOK,
			NrFail:     e.Status.NrFail,
			Username:   e.Username,
			Subj:       e.Subj,
		}
		if !e.Expire.IsZero() {
			records[i].Expire = uint32(e.Expire.Unix())
		}
	}
	return cs.writeReply(wire.EncodeGetReply(records))
}

// alignFromFlags recovers the scheduler's step-alignment mode from an
// entry's wire-carried flags, the reverse of internal/parser's
// applyStepAlignment.
func alignFromFlags(flags domain.Flag) scheduler.Align {
	switch {
	case flags&domain.FlagMonthdayAlign != 0:
		return scheduler.AlignMonthday
	case flags&domain.FlagYeardayAlign != 0:
		return scheduler.AlignYearday
	default:
		return scheduler.AlignNone
	}
}

// readRequest reads one header+payload unit, decrypting it first if this
// is a remote (post-handshake) connection.
func (cs *connState) readRequest() (*wire.EntryHeader, []byte, error) {
	if !cs.remote {
		header, err := wire.DecodeHeader(cs.conn)
		if err != nil {
			return nil, nil, err
		}
		payload, err := cs.readPayload(header.PSize)
		if err != nil {
			return nil, nil, err
		}
		return header, payload, nil
	}

	raw, err := wire.ReadFrame(cs.conn, cs.server.maxPayload+wire.HeaderSize+64)
	if err != nil {
		return nil, nil, err
	}
	cs.nonceCounter++
	plain, err := crypto.Open(cs.agreedKey, cs.nonceCounter, raw)
	if err != nil {
		return nil, nil, fmt.Errorf("transport: decrypt request: %w", err)
	}
	if len(plain) < wire.HeaderSize {
		return nil, nil, ErrPayloadSizeMismatch
	}
	header, err := wire.DecodeHeader(bytes.NewReader(plain[:wire.HeaderSize]))
	if err != nil {
		return nil, nil, err
	}
	payload := plain[wire.HeaderSize:]
	if uint32(len(payload)) != header.PSize {
		return nil, nil, ErrPayloadSizeMismatch
	}
	return header, payload, nil
}

func (cs *connState) readPayload(size uint32) ([]byte, error) {
	if size > cs.server.maxPayload {
		return nil, fmt.Errorf("transport: declared payload size %d exceeds maximum %d", size, cs.server.maxPayload)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(cs.conn, buf); err != nil {
		return nil, fmt.Errorf("transport: read payload: %w", err)
	}
	return buf, nil
}

func (cs *connState) writeReply(payload []byte) error {
	if !cs.remote {
		return wire.WriteFrame(cs.conn, payload)
	}
	cs.nonceCounter++
	sealed := crypto.Seal(cs.agreedKey, cs.nonceCounter, payload)
	return wire.WriteFrame(cs.conn, sealed)
}
