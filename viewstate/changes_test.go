package viewstate

import (
	"testing"
	"time"

	"github.com/mbtcdash/peerscope/peerdata"
	"github.com/stretchr/testify/require"
)

// recordSet keys records by id the way a poll's analysis does.
func recordSet(recs ...*peerdata.PeerRecord) map[string]*peerdata.PeerRecord {
	set := make(map[string]*peerdata.PeerRecord, len(recs))
	for _, rec := range recs {
		set[rec.ID] = rec
	}

	return set
}

// TestChangeLogObserve tests that diffing consecutive polls logs a
// connect for every new peer and a disconnect for every vanished one,
// with the operator attached when the peer classifies.
func TestChangeLogObserve(t *testing.T) {
	t.Parallel()

	a := testPeer("a", 15169, "Google LLC")
	b := testPeer("b", 0, "")
	d := testPeer("d", 24940, "Hetzner Online GmbH")

	l := newChangeLog(DefaultChangeWindow)
	l.observe(recordSet(a, b), recordSet(b, d), testNow)

	entries := l.snapshot(testNow)
	require.Len(t, entries, 2)

	require.Equal(t, ChangeConnected, entries[0].Kind)
	require.Equal(t, "d", entries[0].PeerID)
	require.Equal(t, d.Addr, entries[0].Addr)
	require.Equal(t, testNow, entries[0].At)

	provider := entries[0].Provider.UnwrapOrFail(t)
	require.EqualValues(t, 24940, provider.ID)

	require.Equal(t, ChangeDisconnected, entries[1].Kind)
	require.Equal(t, "a", entries[1].PeerID)

	// A peer without operator data still logs, just without one.
	l.observe(recordSet(b, d), recordSet(d), testNow.Add(time.Second))

	entries = l.snapshot(testNow.Add(time.Second))
	require.Len(t, entries, 3)
	require.Equal(t, ChangeDisconnected, entries[2].Kind)
	require.Equal(t, "b", entries[2].PeerID)
	require.True(t, entries[2].Provider.IsNone())
}

// TestChangeLogOrder tests that one poll's changes come out connects
// first, each run ordered by peer id.
func TestChangeLogOrder(t *testing.T) {
	t.Parallel()

	prev := recordSet(
		testPeer("x", 1, "Alpha Net"),
		testPeer("y", 1, "Alpha Net"),
	)
	next := recordSet(
		testPeer("n", 2, "Beta Net"),
		testPeer("m", 2, "Beta Net"),
	)

	l := newChangeLog(DefaultChangeWindow)
	l.observe(prev, next, testNow)

	entries := l.snapshot(testNow)
	require.Len(t, entries, 4)

	var got []string
	for _, entry := range entries {
		got = append(got, entry.Kind.String()+":"+entry.PeerID)
	}
	require.Equal(t, []string{
		"connected:m", "connected:n",
		"disconnected:x", "disconnected:y",
	}, got)
}

// TestChangeLogWindow tests that entries expire the moment they age
// past the window, not before.
func TestChangeLogWindow(t *testing.T) {
	t.Parallel()

	a := testPeer("a", 1, "Alpha Net")
	b := testPeer("b", 2, "Beta Net")

	l := newChangeLog(20 * time.Second)
	l.observe(recordSet(), recordSet(a), testNow)
	l.observe(recordSet(a), recordSet(a, b), testNow.Add(10*time.Second))

	require.Len(t, l.snapshot(testNow.Add(10*time.Second)), 2)

	// A hair inside the window both entries remain.
	almost := testNow.Add(20*time.Second - time.Millisecond)
	require.Len(t, l.snapshot(almost), 2)

	// At exactly the window's age the first entry expires.
	entries := l.snapshot(testNow.Add(20 * time.Second))
	require.Len(t, entries, 1)
	require.Equal(t, "b", entries[0].PeerID)

	require.Empty(t, l.snapshot(testNow.Add(time.Minute)))
}

// TestChangeLogDefaultWindow tests that a zero window selects the
// default.
func TestChangeLogDefaultWindow(t *testing.T) {
	t.Parallel()

	require.Equal(t, DefaultChangeWindow, newChangeLog(0).window)
}
