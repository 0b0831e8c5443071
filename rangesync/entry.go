package rangesync

// Entry is an opaque value carrying a key and a fingerprint. Two entries
// with the same key are the same logical item; entries are ordered by key
// order alone. The core never inspects an entry beyond these two methods —
// authorship, signatures and other application-level semantics are the
// caller's business.
type Entry interface {
	Key() Ordered
	Fingerprint() Fingerprint
}

// ValidateFunc is applied to each inbound entry before it is inserted into
// the store during ProcessMessage. It must be a pure predicate over
// (store, candidate); returning false silently drops the entry — there is
// no retry and no surfaced signal to the remote peer.
type ValidateFunc func(store Store, e Entry) bool

// AcceptAll is a ValidateFunc that accepts every candidate entry.
func AcceptAll(Store, Entry) bool { return true }
