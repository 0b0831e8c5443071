// Package memstore provides an in-memory rangesync.Store: a sorted
// slice standing in for a BTreeMap, with a single mutex guarding it.
package memstore

import (
	"sort"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/orbitsync/rangesync/rangesync"
)

// Store is a sorted-slice, in-memory implementation of rangesync.Store.
// It is intended for tests, demos and small working sets; it is not
// optimized for large n (Put and Remove are O(n)).
type Store struct {
	mtx     sync.RWMutex
	entries []rangesync.Entry
}

// New creates an empty Store.
func New() *Store {
	return &Store{}
}

var _ rangesync.Store = (*Store)(nil)

func (s *Store) search(key rangesync.Ordered) (int, bool) {
	idx := sort.Search(len(s.entries), func(i int) bool {
		return s.entries[i].Key().Compare(key) >= 0
	})
	if idx < len(s.entries) && s.entries[idx].Key().Compare(key) == 0 {
		return idx, true
	}
	return idx, false
}

func (s *Store) GetFirst() (rangesync.Ordered, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	if len(s.entries) == 0 {
		return nil, nil
	}
	return s.entries[0].Key(), nil
}

func (s *Store) Get(key rangesync.Ordered) (rangesync.Entry, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	idx, ok := s.search(key)
	if !ok {
		return nil, rangesync.ErrNotFound
	}
	return s.entries[idx], nil
}

func (s *Store) Len() (int, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return len(s.entries), nil
}

func (s *Store) IsEmpty() (bool, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return len(s.entries) == 0, nil
}

func (s *Store) GetFingerprint(r rangesync.Range) (rangesync.Fingerprint, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	fp := rangesync.Empty()
	s.forEachLocked(r, func(e rangesync.Entry) {
		fp = fp.XOR(e.Fingerprint())
	})
	return fp, nil
}

func (s *Store) Put(e rangesync.Entry) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	idx, ok := s.search(e.Key())
	if ok {
		s.entries[idx] = e
		return nil
	}
	s.entries = slices.Insert(s.entries, idx, e)
	return nil
}

func (s *Store) Remove(key rangesync.Ordered) (rangesync.Entry, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	idx, ok := s.search(key)
	if !ok {
		return nil, rangesync.ErrNotFound
	}
	e := s.entries[idx]
	s.entries = slices.Delete(s.entries, idx, idx+1)
	return e, nil
}

func (s *Store) GetRange(r rangesync.Range) (rangesync.EntryIterator, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	var out []rangesync.Entry
	s.forEachLocked(r, func(e rangesync.Entry) {
		out = append(out, e)
	})
	return &sliceIterator{entries: out, pos: -1}, nil
}

func (s *Store) All() (rangesync.EntryIterator, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	out := append([]rangesync.Entry(nil), s.entries...)
	return &sliceIterator{entries: out, pos: -1}, nil
}

// forEachLocked walks the entries contained in r in key order. Callers
// must hold s.mtx.
func (s *Store) forEachLocked(r rangesync.Range, fn func(rangesync.Entry)) {
	if r.IsAll() {
		for _, e := range s.entries {
			fn(e)
		}
		return
	}
	for _, e := range s.entries {
		if r.Contains(e.Key()) {
			fn(e)
		}
	}
}

type sliceIterator struct {
	entries []rangesync.Entry
	pos     int
}

func (it *sliceIterator) Next() bool {
	it.pos++
	return it.pos < len(it.entries)
}

func (it *sliceIterator) Entry() rangesync.Entry {
	return it.entries[it.pos]
}

func (it *sliceIterator) Err() error {
	return nil
}
