package rangesync

import (
	"context"
	"sort"
	"testing"

	"github.com/google/gofuzz"
	"github.com/stretchr/testify/require"
)

// randomEntrySet builds a deduplicated set of n testEntries with keys
// drawn from gofuzz, the same "generate random structured data, assert an
// invariant holds" style the Rust reference suite used proptest/
// test_strategy for (test_prefixes_*, test_multikey's sync harness).
func randomEntrySet(f *fuzz.Fuzzer, n int) []testEntry {
	seen := make(map[int]bool)
	var out []testEntry
	for len(out) < n {
		var k int16
		f.Fuzz(&k)
		ik := int(k)
		if seen[ik] {
			continue
		}
		seen[ik] = true
		var v int
		f.Fuzz(&v)
		out = append(out, testEntry{intKey(ik), v})
	}
	return out
}

func TestPropertyReconciliationConvergesOnRandomDisjointSets(t *testing.T) {
	f := fuzz.NewWithSeed(1)
	for trial := 0; trial < 20; trial++ {
		all := randomEntrySet(f, 60)
		var aliceEntries, bobEntries []testEntry
		for i, e := range all {
			if i%2 == 0 {
				aliceEntries = append(aliceEntries, e)
			} else {
				bobEntries = append(bobEntries, e)
			}
		}
		alice := newTestStore(aliceEntries...)
		bob := newTestStore(bobEntries...)

		_, err := RunSession(context.Background(), NewPeer(alice), NewPeer(bob), AcceptAll, 200)
		require.NoErrorf(t, err, "trial %d failed to converge", trial)

		aliceKeys := keysOf(t, alice)
		bobKeys := keysOf(t, bob)
		require.ElementsMatchf(t, aliceKeys, bobKeys, "trial %d: stores diverged", trial)
		require.Lenf(t, aliceKeys, len(all), "trial %d: lost or duplicated entries", trial)
	}
}

func TestPropertyReconciliationConvergesWithRandomOverlap(t *testing.T) {
	f := fuzz.NewWithSeed(2)
	for trial := 0; trial < 10; trial++ {
		shared := randomEntrySet(f, 20)
		aliceOnly := randomEntrySet(f, 10)
		bobOnly := randomEntrySet(f, 10)

		alice := newTestStore(append(append([]testEntry{}, shared...), aliceOnly...)...)
		bob := newTestStore(append(append([]testEntry{}, shared...), bobOnly...)...)

		_, err := RunSession(context.Background(), NewPeer(alice), NewPeer(bob), AcceptAll, 200)
		require.NoErrorf(t, err, "trial %d failed to converge", trial)
		require.ElementsMatchf(t, keysOf(t, alice), keysOf(t, bob), "trial %d: stores diverged", trial)
	}
}

// assertNoDuplicateValues checks the invariant that no single key appears
// more than once among the Values a peer ships in one message, across
// all of that message's RangeItem parts combined.
func assertNoDuplicateValues(t *testing.T, trial int, msg *Message) {
	t.Helper()
	seen := make(map[int]bool)
	for _, part := range msg.Parts {
		for _, v := range part.Values {
			k := int(v.Key().(intKey))
			require.Falsef(t, seen[k], "trial %d: key %d shipped twice within a single message", trial, k)
			seen[k] = true
		}
	}
}

func TestPropertyNoDuplicateKeysWithinAnyShippedMessage(t *testing.T) {
	f := fuzz.NewWithSeed(4)
	for trial := 0; trial < 20; trial++ {
		all := randomEntrySet(f, 50)
		var aliceEntries, bobEntries []testEntry
		for i, e := range all {
			if i%2 == 0 {
				aliceEntries = append(aliceEntries, e)
			} else {
				bobEntries = append(bobEntries, e)
			}
		}
		alice := newTestStore(aliceEntries...)
		bob := newTestStore(bobEntries...)
		pa := NewPeer(alice, WithMaxSetSize(1))
		pb := NewPeer(bob, WithMaxSetSize(1))

		msg, err := pa.InitialMessage()
		require.NoErrorf(t, err, "trial %d", trial)
		assertNoDuplicateValues(t, trial, msg)

		current := msg
		fromAlice := true
		for round := 0; round < 200 && !current.IsEmpty(); round++ {
			var reply *Message
			if fromAlice {
				reply, err = pb.ProcessMessage(context.Background(), current, AcceptAll)
			} else {
				reply, err = pa.ProcessMessage(context.Background(), current, AcceptAll)
			}
			require.NoErrorf(t, err, "trial %d", trial)
			if reply.IsEmpty() {
				break
			}
			assertNoDuplicateValues(t, trial, reply)
			current = reply
			fromAlice = !fromAlice
		}
	}
}

func TestPropertyGetRangeMatchesNaiveFilterOnRandomRanges(t *testing.T) {
	f := fuzz.NewWithSeed(5)
	for trial := 0; trial < 30; trial++ {
		entries := randomEntrySet(f, 40)
		store := newTestStore(entries...)

		var xRaw, yRaw int16
		f.Fuzz(&xRaw)
		f.Fuzz(&yRaw)
		r := NewRange(intKey(xRaw), intKey(yRaw))

		got, err := CollectRange(store.GetRange(r))
		require.NoErrorf(t, err, "trial %d", trial)

		var want []Entry
		for _, e := range entries {
			if r.Contains(e.Key()) {
				want = append(want, Entry(e))
			}
		}
		sort.Slice(want, func(i, j int) bool {
			return want[i].Key().(intKey) < want[j].Key().(intKey)
		})

		require.Lenf(t, got, len(want), "trial %d: get_range size mismatch", trial)
		for i := range want {
			require.Equalf(t, want[i].Key(), got[i].Key(), "trial %d: get_range order/content mismatch at index %d", trial, i)
		}
	}
}

func TestPropertyFingerprintOfUnpopulatedRangeIsAlwaysEmpty(t *testing.T) {
	f := fuzz.NewWithSeed(3)
	for trial := 0; trial < 10; trial++ {
		entries := randomEntrySet(f, 15)
		store := newTestStore(entries...)

		// A narrow range far outside any generated key is guaranteed
		// empty; its fingerprint must be the XOR identity regardless of
		// what else is in the store.
		r := NewRange(intKey(1<<30), intKey(1<<30)+1)
		empty, err := CollectRange(store.GetRange(r))
		require.NoError(t, err)
		require.Empty(t, empty, "trial %d: range unexpectedly populated", trial)

		fp, err := store.GetFingerprint(r)
		require.NoError(t, err)
		require.Truef(t, fp.IsEmpty(), "trial %d: empty range had non-empty fingerprint", trial)
	}
}
