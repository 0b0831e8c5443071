// Package transport is a request/response server over plain TCP,
// carrying rangesync reconciliation sessions: accept a connection,
// decode rangesync.Messages off it, drive a rangesync.Peer with them,
// and write the replies back until the session converges. Framing,
// rate limiting and in-flight bounding follow the same pattern as a
// libp2p stream server, just against net.Conn instead of a host.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/orbitsync/rangesync/rangesync"
)

// Opt configures a Server.
type Opt func(s *Server)

// WithLogger attaches a *zap.Logger.
func WithLogger(logger *zap.Logger) Opt {
	return func(s *Server) { s.logger = logger }
}

// WithTimeout bounds how long a session may go without making read/write
// progress before it is aborted.
func WithTimeout(timeout time.Duration) Opt {
	return func(s *Server) { s.timeout = timeout }
}

// WithHardTimeout bounds the total wall-clock duration of a session,
// regardless of whether it is still making progress.
func WithHardTimeout(timeout time.Duration) Opt {
	return func(s *Server) { s.hardTimeout = timeout }
}

// WithMaxInFlight bounds the number of concurrently running sessions;
// connections beyond this are dropped immediately rather than queued, the
// way p2p/server.Server sheds load under its semaphore.
func WithMaxInFlight(n int) Opt {
	return func(s *Server) { s.maxInFlight = n }
}

// WithRequestsPerInterval rate-limits how many sessions the server will
// begin per interval.
func WithRequestsPerInterval(n int, interval time.Duration) Opt {
	return func(s *Server) {
		s.requestsPerInterval = n
		s.interval = interval
	}
}

// WithMaxRounds bounds how many message round-trips a single session may
// take before it is treated as a protocol bug and aborted.
func WithMaxRounds(n int) Opt {
	return func(s *Server) { s.maxRounds = n }
}

// WithMetrics enables Prometheus counters/histograms for the server,
// registered against reg (pass prometheus.DefaultRegisterer for the
// global registry, or a fresh prometheus.NewRegistry() in tests).
func WithMetrics(reg prometheus.Registerer) Opt {
	return func(s *Server) { s.mtx = newTracker(reg) }
}

// Store is an alias of rangesync.Store: the single shared store a Server
// hands to a fresh Peer for each inbound session and reconciles against
// every connecting client.
type Store = rangesync.Store

// Server accepts TCP connections and runs the responder side of a
// rangesync reconciliation session against a shared Store on each one.
type Server struct {
	logger              *zap.Logger
	store               Store
	codec               rangesync.EntryCodec
	validate            rangesync.ValidateFunc
	timeout             time.Duration
	hardTimeout         time.Duration
	maxInFlight         int
	requestsPerInterval int
	interval            time.Duration
	maxRounds           int
	peerOpts            []rangesync.PeerOption

	limit *rate.Limiter
	sem   *semaphore.Weighted
	mtx   *tracker
}

// NewServer creates a Server reconciling inbound sessions against store.
func NewServer(store Store, codec rangesync.EntryCodec, opts ...Opt) *Server {
	s := &Server{
		logger:              zap.NewNop(),
		store:               store,
		codec:               codec,
		validate:            rangesync.AcceptAll,
		timeout:             25 * time.Second,
		hardTimeout:         5 * time.Minute,
		maxInFlight:         100,
		requestsPerInterval: 100,
		interval:            time.Second,
		maxRounds:           64,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.limit = rate.NewLimiter(rate.Every(s.interval/time.Duration(s.requestsPerInterval)), s.requestsPerInterval)
	s.sem = semaphore.NewWeighted(int64(s.maxInFlight))
	return s
}

// WithValidate overrides the ValidateFunc applied to inbound entries
// (default rangesync.AcceptAll).
func WithValidate(validate rangesync.ValidateFunc) Opt {
	return func(s *Server) { s.validate = validate }
}

// WithPeerOptions forwards rangesync.PeerOption values (e.g.
// rangesync.WithMaxSetSize) to every per-connection Peer the server
// constructs.
func WithPeerOptions(opts ...rangesync.PeerOption) Opt {
	return func(s *Server) { s.peerOpts = append(s.peerOpts, opts...) }
}

// Serve accepts connections on ln until ctx is canceled, running one
// reconciliation session per connection.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	var eg errgroup.Group
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			eg.Wait()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if !s.sem.TryAcquire(1) {
			if s.mtx != nil {
				s.mtx.dropped.Inc()
			}
			conn.Close()
			continue
		}
		if err := s.limit.Wait(ctx); err != nil {
			s.sem.Release(1)
			conn.Close()
			eg.Wait()
			return nil
		}
		if s.mtx != nil {
			s.mtx.accepted.Inc()
		}
		eg.Go(func() error {
			defer s.sem.Release(1)
			sessCtx, cancel := context.WithTimeout(ctx, s.hardTimeout)
			defer cancel()
			start := time.Now()
			rounds, err := s.serveOne(sessCtx, conn)
			if s.mtx != nil {
				s.mtx.sessionLatency.Observe(time.Since(start).Seconds())
				s.mtx.sessionRounds.Observe(float64(rounds))
				if err != nil {
					s.mtx.failed.Inc()
				} else {
					s.mtx.completed.Inc()
				}
			}
			if err != nil {
				s.logger.Debug("session failed", zap.Stringer("remote", conn.RemoteAddr()), zap.Error(err))
			}
			return nil
		})
	}
}

// serveOne runs the responder side of one session: repeatedly decode a
// message, process it, and write back the reply. Once its own reply is
// empty it writes an empty message, which ends the client's Dial, and
// returns.
func (s *Server) serveOne(ctx context.Context, conn net.Conn) (int, error) {
	defer conn.Close()
	dc := &deadlineConn{Conn: conn, timeout: s.timeout}
	peer := rangesync.NewPeer(s.store, s.peerOpts...)

	rounds := 0
	for {
		if err := ctx.Err(); err != nil {
			return rounds, err
		}
		msg, err := rangesync.DecodeMessage(dc, s.codec)
		if err != nil {
			return rounds, fmt.Errorf("decode message: %w", err)
		}
		reply, err := peer.ProcessMessage(ctx, msg, s.validate)
		if err != nil {
			return rounds, fmt.Errorf("process message: %w", err)
		}
		rounds++
		if reply.IsEmpty() {
			if err := rangesync.EncodeMessage(dc, &rangesync.Message{}, s.codec); err != nil {
				return rounds, fmt.Errorf("encode final reply: %w", err)
			}
			return rounds, nil
		}
		if err := rangesync.EncodeMessage(dc, reply, s.codec); err != nil {
			return rounds, fmt.Errorf("encode reply: %w", err)
		}
		if rounds >= defaultMaxServerRounds(s.maxRounds) {
			return rounds, errors.New("transport: session exceeded max rounds")
		}
	}
}

func defaultMaxServerRounds(n int) int {
	if n <= 0 {
		return 64
	}
	return n
}

// deadlineConn wraps a net.Conn, pushing the read/write deadline forward
// by timeout before every operation — the same "no progress for N
// seconds kills the connection" idea as p2p/server's (unexported)
// deadline adjuster, reimplemented here directly against net.Conn's
// SetDeadline rather than a libp2p stream.
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	if c.timeout > 0 {
		_ = c.Conn.SetReadDeadline(time.Now().Add(c.timeout))
	}
	return c.Conn.Read(p)
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	if c.timeout > 0 {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(c.timeout))
	}
	return c.Conn.Write(p)
}
