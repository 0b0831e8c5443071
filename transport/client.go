package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/orbitsync/rangesync/rangesync"
)

// Client drives the initiator side of a reconciliation session against a
// remote Server.
type Client struct {
	logger      *zap.Logger
	dialer      net.Dialer
	timeout     time.Duration
	hardTimeout time.Duration
	maxRounds   int
	codec       rangesync.EntryCodec
}

// ClientOpt configures a Client.
type ClientOpt func(*Client)

// WithClientLogger attaches a *zap.Logger.
func WithClientLogger(logger *zap.Logger) ClientOpt {
	return func(c *Client) { c.logger = logger }
}

// WithClientTimeout bounds how long the session may go without read/write
// progress.
func WithClientTimeout(timeout time.Duration) ClientOpt {
	return func(c *Client) { c.timeout = timeout }
}

// WithClientHardTimeout bounds the overall duration of Dial.
func WithClientHardTimeout(timeout time.Duration) ClientOpt {
	return func(c *Client) { c.hardTimeout = timeout }
}

// WithClientMaxRounds bounds the number of round-trips Dial will perform
// before giving up.
func WithClientMaxRounds(n int) ClientOpt {
	return func(c *Client) { c.maxRounds = n }
}

// NewClient creates a Client using codec to serialize entries.
func NewClient(codec rangesync.EntryCodec, opts ...ClientOpt) *Client {
	c := &Client{
		logger:      zap.NewNop(),
		timeout:     25 * time.Second,
		hardTimeout: 5 * time.Minute,
		maxRounds:   64,
		codec:       codec,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dial connects to addr and runs a reconciliation session as the
// initiator, merging whatever the remote side has into peer's store.
func (c *Client) Dial(ctx context.Context, addr string, peer *rangesync.Peer, validate rangesync.ValidateFunc) (rangesync.SessionStats, error) {
	ctx, cancel := context.WithTimeout(ctx, c.hardTimeout)
	defer cancel()

	conn, err := c.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return rangesync.SessionStats{}, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()
	dc := &deadlineConn{Conn: conn, timeout: c.timeout}

	msg, err := peer.InitialMessage()
	if err != nil {
		return rangesync.SessionStats{}, fmt.Errorf("initial message: %w", err)
	}

	start := time.Now()
	for round := 0; ; round++ {
		if msg.IsEmpty() {
			c.logger.Debug("session converged",
				zap.String("addr", addr), zap.Int("rounds", round), zap.Duration("duration", time.Since(start)))
			return rangesync.SessionStats{Rounds: round}, nil
		}
		if round >= c.maxRounds {
			return rangesync.SessionStats{Rounds: round}, fmt.Errorf("transport: session with %s did not converge within %d rounds", addr, c.maxRounds)
		}
		if err := rangesync.EncodeMessage(dc, msg, c.codec); err != nil {
			return rangesync.SessionStats{Rounds: round}, fmt.Errorf("encode message: %w", err)
		}
		reply, err := rangesync.DecodeMessage(dc, c.codec)
		if err != nil {
			return rangesync.SessionStats{Rounds: round}, fmt.Errorf("decode reply: %w", err)
		}
		if reply.IsEmpty() {
			return rangesync.SessionStats{Rounds: round + 1}, nil
		}
		msg, err = peer.ProcessMessage(ctx, reply, validate)
		if err != nil {
			return rangesync.SessionStats{Rounds: round + 1}, fmt.Errorf("process reply: %w", err)
		}
	}
}
