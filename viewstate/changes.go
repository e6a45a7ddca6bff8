package viewstate

import (
	"sort"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/mbtcdash/peerscope/asdiv"
	"github.com/mbtcdash/peerscope/peerdata"
)

// DefaultChangeWindow is how long a connect or disconnect stays in the
// recent changes feed.
const DefaultChangeWindow = 20 * time.Second

// ChangeKind says which way a peer change went.
type ChangeKind uint8

const (
	// ChangeConnected marks a peer seen for the first time.
	ChangeConnected ChangeKind = iota

	// ChangeDisconnected marks a peer gone from the poll.
	ChangeDisconnected
)

// String returns a human readable change kind name.
func (k ChangeKind) String() string {
	if k == ChangeDisconnected {
		return "disconnected"
	}

	return "connected"
}

// PeerChange is one entry of the recent changes feed.
type PeerChange struct {
	// Kind says whether the peer appeared or vanished.
	Kind ChangeKind

	// PeerID and Addr identify the connection.
	PeerID string
	Addr   string

	// Provider is the peer's operator when it classified.
	Provider fn.Option[asdiv.Provider]

	// At is the poll timestamp the change was observed at.
	At time.Time
}

// changeLog tracks the connects and disconnects between consecutive
// polls and expires them once they age past the window. It is owned by
// the event loop and is not safe for concurrent use.
type changeLog struct {
	window  time.Duration
	entries []PeerChange
}

// newChangeLog creates a changeLog, applying the default window to a
// zero one.
func newChangeLog(window time.Duration) *changeLog {
	if window <= 0 {
		window = DefaultChangeWindow
	}

	return &changeLog{window: window}
}

// observe diffs two consecutive record sets: every id new to the poll
// logs a connect, every id gone from it a disconnect. Within one poll
// the connects come first and both runs are ordered by peer id, so the
// feed is deterministic.
func (l *changeLog) observe(prev, next map[string]*peerdata.PeerRecord,
	now time.Time) {

	var connected, disconnected []*peerdata.PeerRecord
	for id, rec := range next {
		if _, ok := prev[id]; !ok {
			connected = append(connected, rec)
		}
	}
	for id, rec := range prev {
		if _, ok := next[id]; !ok {
			disconnected = append(disconnected, rec)
		}
	}

	byID := func(recs []*peerdata.PeerRecord) {
		sort.Slice(recs, func(i, j int) bool {
			return recs[i].ID < recs[j].ID
		})
	}
	byID(connected)
	byID(disconnected)

	for _, rec := range connected {
		l.push(ChangeConnected, rec, now)
	}
	for _, rec := range disconnected {
		l.push(ChangeDisconnected, rec, now)
	}

	l.prune(now)
}

// push appends one change entry.
func (l *changeLog) push(kind ChangeKind, rec *peerdata.PeerRecord,
	now time.Time) {

	change := PeerChange{
		Kind:     kind,
		PeerID:   rec.ID,
		Addr:     rec.Addr,
		Provider: fn.None[asdiv.Provider](),
		At:       now,
	}
	if provider, ok := asdiv.Classify(rec); ok {
		change.Provider = fn.Some(provider)
	}

	l.entries = append(l.entries, change)

	log.Debugf("Peer %v (%v) %v", rec.ID, rec.Addr, kind)
}

// prune drops the entries that aged past the window. Entries are
// append ordered, so expiry only ever eats a prefix.
func (l *changeLog) prune(now time.Time) {
	cutoff := now.Add(-l.window)

	keep := 0
	for keep < len(l.entries) && !l.entries[keep].At.After(cutoff) {
		keep++
	}
	if keep > 0 {
		l.entries = append(l.entries[:0], l.entries[keep:]...)
	}
}

// snapshot returns the entries still inside the window at now, oldest
// first.
func (l *changeLog) snapshot(now time.Time) []PeerChange {
	l.prune(now)

	if len(l.entries) == 0 {
		return nil
	}

	entries := make([]PeerChange, len(l.entries))
	copy(entries, l.entries)

	return entries
}
