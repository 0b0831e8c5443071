package memstore

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/orbitsync/rangesync/rangesync"
)

// StringEntry is the simplest possible rangesync.Entry: a string key
// ordered lexically, fingerprinted over key and value together. It
// mirrors the (String, i32) pairs iroh-sync's ranger tests build
// SimpleStore sets out of.
type StringEntry struct {
	K string
	V string
}

var _ rangesync.Entry = StringEntry{}
var _ rangesync.Ordered = StringKey("")

func NewStringEntry(key, value string) StringEntry {
	return StringEntry{K: key, V: value}
}

func (e StringEntry) Key() rangesync.Ordered { return StringKey(e.K) }

func (e StringEntry) Fingerprint() rangesync.Fingerprint {
	return rangesync.FingerprintOf([]byte(e.K), []byte(e.V))
}

func (e StringEntry) String() string {
	return fmt.Sprintf("%s=%s", e.K, e.V)
}

// StringKey adapts a plain string to rangesync.Ordered.
type StringKey string

func (k StringKey) Compare(other rangesync.Ordered) int {
	return bytes.Compare([]byte(k), []byte(other.(StringKey)))
}

func (k StringKey) String() string { return string(k) }

// MultiKey is a two-part key, (Author, Key), ordered first by Author and
// then by Key — the composite-key shape iroh-sync's test_multikey uses
// to demonstrate that the reconciliation core is agnostic to what a key
// actually is, so long as it is totally ordered.
type MultiKey struct {
	Author [4]byte
	Key    []byte
}

var _ rangesync.Ordered = MultiKey{}

func (k MultiKey) Compare(other rangesync.Ordered) int {
	o := other.(MultiKey)
	if c := bytes.Compare(k.Author[:], o.Author[:]); c != 0 {
		return c
	}
	return bytes.Compare(k.Key, o.Key)
}

func (k MultiKey) String() string {
	return fmt.Sprintf("%s/%s", hex.EncodeToString(k.Author[:]), k.Key)
}

// MultiKeyEntry pairs a MultiKey with an opaque value, fingerprinted over
// both.
type MultiKeyEntry struct {
	MK    MultiKey
	Value int64
}

var _ rangesync.Entry = MultiKeyEntry{}

func NewMultiKeyEntry(author [4]byte, key string, value int64) MultiKeyEntry {
	return MultiKeyEntry{MK: MultiKey{Author: author, Key: []byte(key)}, Value: value}
}

func (e MultiKeyEntry) Key() rangesync.Ordered { return e.MK }

func (e MultiKeyEntry) Fingerprint() rangesync.Fingerprint {
	var buf [8]byte
	for i := range buf {
		buf[i] = byte(e.Value >> (8 * i))
	}
	return rangesync.FingerprintOf(e.MK.Author[:], e.MK.Key, buf[:])
}

func (e MultiKeyEntry) String() string {
	return fmt.Sprintf("%s=%d", e.MK, e.Value)
}
