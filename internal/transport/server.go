// Package transport implements the entry socket's per-connection protocol
// state machine of spec.md §4.5/§6: accept, authenticate (local peer
// credentials or the remote handshake), read an EntryHeader and its
// payload, dispatch through internal/lifecycle, and reply — generalizing
// original_source/src/notify.c's single-threaded async-io state machine
// into one goroutine per connection.
package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/usched-go/usched/internal/auth"
	"github.com/usched-go/usched/internal/lifecycle"
	"github.com/usched-go/usched/internal/pool"
)

// Kind distinguishes the two listener types spec.md §4.5 authenticates
// differently: Local sockets trust OS peer credentials, Remote sockets
// require the PAKE handshake.
type Kind int

const (
	KindLocal Kind = iota
	KindRemote
)

// Server owns one listener (local UNIX socket or remote TCP) and the
// shared state every connection handler needs.
type Server struct {
	kind       Kind
	listener   net.Listener
	pools      *pool.Pools
	dispatcher *lifecycle.Dispatcher
	lookup     auth.PasswordLookup
	logger     *slog.Logger

	connTimeout  time.Duration
	maxPayload   uint32
	nextConnID   int
}

// Option configures a Server at construction time.
type Option func(*Server)

// WithConnTimeout bounds how long a connection handler waits for each read.
func WithConnTimeout(d time.Duration) Option {
	return func(s *Server) { s.connTimeout = d }
}

// WithMaxPayload bounds the subject/id-list payload size a single request
// may declare, rejecting anything larger before allocating a buffer for it.
func WithMaxPayload(n uint32) Option {
	return func(s *Server) { s.maxPayload = n }
}

// NewLocal builds a Server bound to a UNIX domain socket, authenticating
// connections via OS peer credentials.
func NewLocal(socketPath string, pools *pool.Pools, dispatcher *lifecycle.Dispatcher, logger *slog.Logger, opts ...Option) (*Server, error) {
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("transport: listen unix %s: %w", socketPath, err)
	}
	return newServer(KindLocal, ln, pools, dispatcher, nil, logger, opts...), nil
}

// NewRemote builds a Server bound to a TCP address, authenticating
// connections via the PAKE handshake against lookup. If tlsConfig is
// non-nil the listener wraps every accepted connection in TLS first.
func NewRemote(addr string, pools *pool.Pools, dispatcher *lifecycle.Dispatcher, lookup auth.PasswordLookup, tlsConfig *tls.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	var ln net.Listener
	var err error
	if tlsConfig != nil {
		ln, err = tls.Listen("tcp", addr, tlsConfig)
	} else {
		ln, err = net.Listen("tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("transport: listen tcp %s: %w", addr, err)
	}
	return newServer(KindRemote, ln, pools, dispatcher, lookup, logger, opts...), nil
}

func newServer(kind Kind, ln net.Listener, pools *pool.Pools, dispatcher *lifecycle.Dispatcher, lookup auth.PasswordLookup, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		kind:        kind,
		listener:    ln,
		pools:       pools,
		dispatcher:  dispatcher,
		lookup:      lookup,
		logger:      logger.With("component", "transport", "kind", kindString(kind)),
		connTimeout: 30 * time.Second,
		maxPayload:  65536,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func kindString(k Kind) string {
	if k == KindLocal {
		return "local"
	}
	return "remote"
}

// Addr returns the listener's bound address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts connections until ctx is cancelled, handing each to its own
// goroutine. It always returns a non-nil error: nil ctx cancellation is
// reported as context.Canceled's wrapping, matching the Runtime.Go contract.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return fmt.Errorf("transport: accept: %w", err)
		}

		s.nextConnID++
		connID := s.nextConnID
		go s.handleConn(ctx, conn, connID)
	}
}

// Close closes the underlying listener directly, for callers outside a
// Runtime-managed Serve loop (e.g. tests).
func (s *Server) Close() error {
	return s.listener.Close()
}
