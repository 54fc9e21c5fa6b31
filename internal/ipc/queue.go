package ipc

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/usched-go/usched/internal/errs"
)

// DefaultMaxInFlight bounds how many Send calls may be admitted
// concurrently on one Queue before a caller starts waiting, the sender-side
// counterpart to DefaultMaxMessageSize — both are admin-configurable
// (config.Config.IPCMaxInFlight/IPCSendTimeoutSec).
const DefaultMaxInFlight = 64

// DefaultSendTimeout bounds how long Send waits for an admission slot or
// for the write itself before reporting ErrResource.
const DefaultSendTimeout = 5 * time.Second

// Queue wraps a Unix domain datagram socket, giving the connectionless,
// bounded-message semantics POSIX mqueues provide without a mqueue binding.
// Each Queue end is unidirectional by convention: the end opened with Dial
// calls Send, the end bound by Listen at the same path calls Receive.
type Queue struct {
	path  string
	conn  *net.UnixConn
	owner bool // true if this end bound the socket file and must unlink it

	sendTimeout time.Duration
	admission   chan struct{}
}

// Option configures a Queue's admission control at construction time.
type Option func(*Queue)

// WithMaxInFlight caps the number of Send calls admitted concurrently.
func WithMaxInFlight(n int) Option {
	return func(q *Queue) { q.admission = make(chan struct{}, n) }
}

// WithSendTimeout bounds how long Send waits for an admission slot or for
// the underlying write before failing with ErrResource.
func WithSendTimeout(d time.Duration) Option {
	return func(q *Queue) { q.sendTimeout = d }
}

func newQueue(path string, conn *net.UnixConn, owner bool, opts []Option) *Queue {
	q := &Queue{
		path:        path,
		conn:        conn,
		owner:       owner,
		sendTimeout: DefaultSendTimeout,
		admission:   make(chan struct{}, DefaultMaxInFlight),
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Listen binds a new Queue at path, removing any stale socket file left
// behind by a prior, uncleanly-terminated process first.
func Listen(path string, opts ...Option) (*Queue, error) {
	_ = os.Remove(path)
	addr := &net.UnixAddr{Name: path, Net: "unixgram"}
	conn, err := net.ListenUnixgram("unixgram", addr)
	if err != nil {
		return nil, fmt.Errorf("ipc: listen %s: %w", path, err)
	}
	return newQueue(path, conn, true, opts), nil
}

// Dial connects to a Queue already bound by Listen at path.
func Dial(path string, opts ...Option) (*Queue, error) {
	addr := &net.UnixAddr{Name: path, Net: "unixgram"}
	conn, err := net.DialUnix("unixgram", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("ipc: dial %s: %w", path, err)
	}
	return newQueue(path, conn, false, opts), nil
}

// Send writes one datagram; it either transfers whole or fails, matching
// mq_send's atomicity. Admission is capped at the Queue's configured
// in-flight limit: once full, Send blocks the caller up to the configured
// send timeout before reporting ErrResource (the daemon sets both from
// config.Config.IPCMaxInFlight/IPCSendTimeoutSec). A datagram larger than
// the fixed DefaultMaxMessageSize is refused with ErrMessageTooLarge. A write that itself can't complete within that
// timeout (e.g. a wedged executor never draining its socket) reports the
// same ErrResource rather than blocking the caller forever.
func (q *Queue) Send(buf []byte) error {
	if len(buf) > DefaultMaxMessageSize {
		return ErrMessageTooLarge
	}

	select {
	case q.admission <- struct{}{}:
	case <-time.After(q.sendTimeout):
		return errs.Wrap(errs.ErrResource, fmt.Errorf("ipc: send queue at capacity after %s", q.sendTimeout))
	}
	defer func() { <-q.admission }()

	if err := q.conn.SetWriteDeadline(time.Now().Add(q.sendTimeout)); err != nil {
		return fmt.Errorf("ipc: set write deadline: %w", err)
	}
	_, err := q.conn.Write(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return errs.Wrap(errs.ErrResource, fmt.Errorf("ipc: send timed out after %s: %w", q.sendTimeout, err))
		}
		return fmt.Errorf("ipc: send: %w", err)
	}
	return nil
}

// Receive blocks for one datagram, honoring an optional deadline.
func (q *Queue) Receive(timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		if err := q.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return nil, fmt.Errorf("ipc: set read deadline: %w", err)
		}
	}
	buf := make([]byte, DefaultMaxMessageSize)
	n, err := q.conn.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("ipc: receive: %w", err)
	}
	return buf[:n], nil
}

// Close closes the underlying socket; a Listen-side Queue also unlinks the
// socket file.
func (q *Queue) Close() error {
	err := q.conn.Close()
	if q.owner {
		_ = os.Remove(q.path)
	}
	return err
}
