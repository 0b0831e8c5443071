package rangesync

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/orbitsync/rangesync/internal/pool"
)

const (
	// DefaultMaxSetSize is the reference max_set_size: ship literals for
	// any range holding at most this many entries.
	DefaultMaxSetSize = 1
	// DefaultSplitFactor is the reference split_factor k: fan-out of the
	// recursive range partition.
	DefaultSplitFactor = 2
)

// PeerOption configures a Peer at construction time.
type PeerOption func(*Peer)

// WithMaxSetSize overrides the default max_set_size.
func WithMaxSetSize(n int) PeerOption {
	return func(p *Peer) {
		if n < 0 {
			panic("rangesync: max set size must be >= 0")
		}
		p.maxSetSize = n
	}
}

// WithSplitFactor overrides the default split_factor.
func WithSplitFactor(k int) PeerOption {
	return func(p *Peer) {
		if k < 2 {
			panic("rangesync: split factor must be >= 2")
		}
		p.splitFactor = k
	}
}

// WithLogger attaches a *zap.Logger, the way p2p/server.WithLog does.
func WithLogger(logger *zap.Logger) PeerOption {
	return func(p *Peer) {
		p.logger = logger
	}
}

// WithMetrics enables Prometheus counters for the peer, registered against
// reg (pass prometheus.DefaultRegisterer for the global registry, or a
// fresh prometheus.NewRegistry() in tests).
func WithMetrics(reg prometheus.Registerer) PeerOption {
	return func(p *Peer) {
		p.metrics = newPeerMetrics(reg)
	}
}

// Peer is the stateful holder of a Store plus the two session tunables
// that implements InitialMessage and ProcessMessage.
// A Peer retains no session state beyond the store between calls; it is
// safe to call InitialMessage and ProcessMessage from a single goroutine
// at a time, since ProcessMessage borrows the store for its whole
// duration.
type Peer struct {
	store       Store
	maxSetSize  int
	splitFactor int
	logger      *zap.Logger
	metrics     *peerMetrics
	bufPool     *pool.Pool[[]Entry]
}

// NewPeer creates a Peer over store with the reference defaults
// (max_set_size=1, split_factor=2), overridable via opts.
func NewPeer(store Store, opts ...PeerOption) *Peer {
	p := &Peer{
		store:       store,
		maxSetSize:  DefaultMaxSetSize,
		splitFactor: DefaultSplitFactor,
		logger:      zap.NewNop(),
		bufPool:     pool.New(func(buf []Entry) []Entry { return buf[:0] }),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// InitialMessage generates the message that begins a session: a single
// RangeFingerprint covering the whole set.
func (p *Peer) InitialMessage() (*Message, error) {
	x, err := p.store.GetFirst()
	if err != nil {
		return nil, fmt.Errorf("get first key: %w", err)
	}
	r := All(x)
	fp, err := p.store.GetFingerprint(r)
	if err != nil {
		return nil, fmt.Errorf("fingerprint whole set: %w", err)
	}
	p.logger.Debug("initial message", zap.Stringer("range", r), zap.Stringer("fingerprint", fp))
	return &Message{Parts: []MessagePart{RangeFingerprintPart(r, fp)}}, nil
}

// ProcessMessage ingests an inbound message and produces a reply, or nil
// once neither phase has anything left to say — the session's
// termination signal.
//
// validate is applied to every candidate entry before it is stored;
// rejected entries are dropped silently.
func (p *Peer) ProcessMessage(ctx context.Context, msg *Message, validate ValidateFunc) (*Message, error) {
	if validate == nil {
		validate = AcceptAll
	}
	if p.metrics != nil {
		p.metrics.messagesIngested.Inc()
	}

	var items []MessagePart
	var fingerprints []MessagePart
	for _, part := range msg.Parts {
		switch part.Type {
		case PartRangeItem:
			items = append(items, part)
		case PartRangeFingerprint:
			fingerprints = append(fingerprints, part)
		default:
			return nil, fmt.Errorf("rangesync: unknown message part type %v", part.Type)
		}
	}

	var out []MessagePart

	// Phase A: ingest RangeItem parts. The diff for
	// each part must be computed against the store before that part's
	// values are inserted, so callers see whatever local-only entries
	// existed prior to the merge.
	for _, part := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		reply, err := p.ingestRangeItem(part, validate)
		if err != nil {
			return nil, fmt.Errorf("ingest range item %s: %w", part.Range, err)
		}
		if reply != nil {
			out = append(out, *reply)
			p.metrics.observePartEmitted(reply.Type)
		}
	}

	// Phase B: respond to RangeFingerprint parts.
	for _, part := range fingerprints {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		parts, err := p.respondToFingerprint(part)
		if err != nil {
			return nil, fmt.Errorf("reconcile range %s: %w", part.Range, err)
		}
		for _, rp := range parts {
			out = append(out, rp)
			p.metrics.observePartEmitted(rp.Type)
		}
	}

	if len(out) == 0 {
		p.logger.Debug("process message: session done")
		return nil, nil
	}
	reply := &Message{Parts: out}
	p.logger.Debug("process message: replying", zap.Stringer("reply", reply))
	return reply, nil
}

// ingestRangeItem implements Phase A for a single RangeItem part.
func (p *Peer) ingestRangeItem(part MessagePart, validate ValidateFunc) (*MessagePart, error) {
	var diff []Entry
	if !part.HaveLocal {
		locals, err := CollectRange(p.store.GetRange(part.Range))
		if err != nil {
			return nil, err
		}
		for _, e := range locals {
			if !containsKey(part.Values, e.Key()) {
				diff = append(diff, e)
			}
		}
	}

	for _, e := range part.Values {
		if p.metrics != nil {
			p.metrics.entriesIngested.Inc()
		}
		if validate(p.store, e) {
			if err := p.store.Put(e); err != nil {
				return nil, err
			}
			if p.metrics != nil {
				p.metrics.entriesValidated.Inc()
			}
		} else if p.metrics != nil {
			p.metrics.entriesRejected.Inc()
		}
	}

	if !part.HaveLocal && len(diff) > 0 {
		reply := RangeItemPart(part.Range, diff, true)
		if p.metrics != nil {
			p.metrics.entriesShipped.Add(float64(len(diff)))
		}
		return &reply, nil
	}
	return nil, nil
}

func containsKey(values []Entry, k Ordered) bool {
	for _, v := range values {
		if keyEqual(v.Key(), k) {
			return true
		}
	}
	return false
}

// respondToFingerprint implements Phase B for a single RangeFingerprint
// part: Case 1 (match), Case 2 (recursion anchor) or Case 3 (recurse).
func (p *Peer) respondToFingerprint(part MessagePart) ([]MessagePart, error) {
	localFP, err := p.store.GetFingerprint(part.Range)
	if err != nil {
		return nil, err
	}

	// Case 1: match, the range is reconciled.
	if localFP == part.Fingerprint {
		if p.metrics != nil {
			p.metrics.fingerprintMatch.Inc()
		}
		return nil, nil
	}

	h, buf := p.bufPool.Get()
	defer func() {
		p.bufPool.Set(h, buf[:0])
		p.bufPool.Release(h)
	}()
	locals, err := collectRangeInto(buf, p.store.GetRange(part.Range))
	if err != nil {
		return nil, err
	}
	buf = locals

	// Case 2: recursion anchor — at most one local entry in the range
	// (independent of maxSetSize), or the remote has nothing in this range
	// to gain from further splitting.
	if len(locals) <= 1 || part.Fingerprint.IsEmpty() {
		values := append([]Entry(nil), locals...)
		if p.metrics != nil {
			p.metrics.entriesShipped.Add(float64(len(values)))
		}
		return []MessagePart{RangeItemPart(part.Range, values, false)}, nil
	}

	// Case 3: recurse. Partition the range using the pivot rule and
	// respond with a fingerprint or literal items per sub-range.
	if p.metrics != nil {
		p.metrics.rangesSplit.Inc()
	}
	subRanges := splitRange(part.Range, locals, p.splitFactor)

	var out []MessagePart
	nonEmpty := 0
	for _, sr := range subRanges {
		chunk, err := CollectRange(p.store.GetRange(sr))
		if err != nil {
			return nil, err
		}
		if len(chunk) > 0 {
			nonEmpty++
		}
		if len(chunk) > p.maxSetSize {
			fp, err := p.store.GetFingerprint(sr)
			if err != nil {
				return nil, err
			}
			out = append(out, RangeFingerprintPart(sr, fp))
		} else {
			out = append(out, RangeItemPart(sr, chunk, false))
			if p.metrics != nil {
				p.metrics.entriesShipped.Add(float64(len(chunk)))
			}
		}
	}
	if nonEmpty < 2 {
		// Progress invariant: at least two sub-ranges must be
		// non-empty. A violation here is a store/pivot bug, not a
		// recoverable protocol error, so we log rather than abort the
		// session.
		p.logger.Warn("range split produced fewer than two non-empty sub-ranges",
			zap.Stringer("range", part.Range), zap.Int("nonEmpty", nonEmpty))
	}
	return out, nil
}

// collectRangeInto appends the contents of it into buf, reusing its
// backing array when possible.
func collectRangeInto(buf []Entry, it EntryIterator, err error) ([]Entry, error) {
	if err != nil {
		return nil, err
	}
	for it.Next() {
		buf = append(buf, it.Entry())
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return buf, nil
}

// Put inserts an entry directly into the underlying store, out-of-band
// from the reconciliation protocol.
func (p *Peer) Put(e Entry) error {
	return p.store.Put(e)
}

// Remove deletes an entry directly from the underlying store.
func (p *Peer) Remove(k Ordered) (Entry, error) {
	return p.store.Remove(k)
}

// All lists every entry currently held by the peer.
func (p *Peer) All() (EntryIterator, error) {
	return p.store.All()
}
