package memstore

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/orbitsync/rangesync/rangesync"
)

func TestStorePutGetRemove(t *testing.T) {
	s := New()
	require.NoError(t, s.Put(NewStringEntry("b", "2")))
	require.NoError(t, s.Put(NewStringEntry("a", "1")))
	require.NoError(t, s.Put(NewStringEntry("c", "3")))

	n, err := s.Len()
	require.NoError(t, err)
	require.Equal(t, 3, n)

	first, err := s.GetFirst()
	require.NoError(t, err)
	require.Equal(t, StringKey("a"), first)

	e, err := s.Get(StringKey("b"))
	require.NoError(t, err)
	require.Equal(t, "2", e.(StringEntry).V)

	_, err = s.Get(StringKey("zzz"))
	require.ErrorIs(t, err, rangesync.ErrNotFound)

	removed, err := s.Remove(StringKey("b"))
	require.NoError(t, err)
	require.Equal(t, "2", removed.(StringEntry).V)

	n, err = s.Len()
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestStorePutOverwritesExistingKey(t *testing.T) {
	s := New()
	require.NoError(t, s.Put(NewStringEntry("a", "1")))
	require.NoError(t, s.Put(NewStringEntry("a", "2")))

	n, err := s.Len()
	require.NoError(t, err)
	require.Equal(t, 1, n)

	e, err := s.Get(StringKey("a"))
	require.NoError(t, err)
	require.Equal(t, "2", e.(StringEntry).V)
}

func TestStoreGetRangeOrderAndWrapAround(t *testing.T) {
	s := New()
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, s.Put(NewStringEntry(k, k)))
	}

	entries, err := rangesync.CollectRange(s.GetRange(rangesync.NewRange(StringKey("b"), StringKey("d"))))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "b", entries[0].(StringEntry).K)
	require.Equal(t, "c", entries[1].(StringEntry).K)

	wrapped, err := rangesync.CollectRange(s.GetRange(rangesync.NewRange(StringKey("d"), StringKey("b"))))
	require.NoError(t, err)
	keys := make([]string, len(wrapped))
	for i, e := range wrapped {
		keys[i] = e.(StringEntry).K
	}
	// GetRange walks the store in key order and tests containment per
	// entry, so a wrapping range comes back in ascending key order
	// (a, d, e), not rotated to start at the range's low bound.
	if diff := cmp.Diff([]string{"a", "d", "e"}, keys); diff != "" {
		t.Errorf("wrapped range keys mismatch (-want +got):\n%s", diff)
	}
}

func TestStoreGetFingerprintMatchesManualXOR(t *testing.T) {
	s := New()
	entries := []StringEntry{
		NewStringEntry("a", "1"),
		NewStringEntry("b", "2"),
		NewStringEntry("c", "3"),
	}
	for _, e := range entries {
		require.NoError(t, s.Put(e))
	}

	want := rangesync.Empty()
	for _, e := range entries {
		want = want.XOR(e.Fingerprint())
	}
	got, err := s.GetFingerprint(rangesync.All(StringKey("a")))
	require.NoError(t, err)
	require.Equal(t, want, got)
}

// TestStoreFingerprintHomomorphismOverSubRangesIncludingWrap partitions
// a populated store into four sub-ranges, one of which wraps around the
// end of the key space, and checks that XORing their fingerprints
// together recovers the whole-range fingerprint.
func TestStoreFingerprintHomomorphismOverSubRangesIncludingWrap(t *testing.T) {
	s := New()
	for c := byte('a'); c <= byte('t'); c++ {
		k := string(c)
		require.NoError(t, s.Put(NewStringEntry(k, k)))
	}

	whole, err := s.GetFingerprint(rangesync.All(StringKey("a")))
	require.NoError(t, err)

	ranges := []rangesync.Range{
		rangesync.NewRange(StringKey("a"), StringKey("f")),
		rangesync.NewRange(StringKey("f"), StringKey("k")),
		rangesync.NewRange(StringKey("k"), StringKey("p")),
		rangesync.NewRange(StringKey("p"), StringKey("a")), // wraps back to "a"
	}

	xored := rangesync.Empty()
	for _, r := range ranges {
		fp, err := s.GetFingerprint(r)
		require.NoError(t, err)
		xored = xored.XOR(fp)
	}
	require.Equal(t, whole, xored, "XOR of sub-range fingerprints must equal the whole-range fingerprint")
}

func TestStoreEmptyGetFirstReturnsNil(t *testing.T) {
	s := New()
	first, err := s.GetFirst()
	require.NoError(t, err)
	require.Nil(t, first)

	empty, err := s.IsEmpty()
	require.NoError(t, err)
	require.True(t, empty)
}

func TestMultiKeyOrdersByAuthorThenKey(t *testing.T) {
	s := New()
	authorA := [4]byte{1, 1, 1, 1}
	authorB := [4]byte{2, 2, 2, 2}
	require.NoError(t, s.Put(NewMultiKeyEntry(authorB, "bee", 1)))
	require.NoError(t, s.Put(NewMultiKeyEntry(authorA, "doe", 1)))
	require.NoError(t, s.Put(NewMultiKeyEntry(authorA, "ape", 1)))

	all, err := rangesync.CollectRange(s.All())
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "ape", string(all[0].(MultiKeyEntry).MK.Key))
	require.Equal(t, "doe", string(all[1].(MultiKeyEntry).MK.Key))
	require.Equal(t, "bee", string(all[2].(MultiKeyEntry).MK.Key))
}
