// Package viewstate assembles the dashboard's render state. A single
// event loop owns every mutable piece: the per-poll analysis, the
// drill down trail, the expansion animation and the transient bits of
// UI state. Data refreshes, user interactions and animation frames
// are all serialized through that loop, and the only thing leaving it
// is an immutable ViewModel snapshot.
package viewstate

import (
	"sort"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/mbtcdash/peerscope/anim"
	"github.com/mbtcdash/peerscope/asdiv"
	"github.com/mbtcdash/peerscope/nav"
	"github.com/mbtcdash/peerscope/peerdata"
)

// LineOrigin says where a segment's callout line is anchored.
type LineOrigin uint8

const (
	// OriginLegend anchors the callout at the segment's legend row,
	// the resting placement.
	OriginLegend LineOrigin = iota

	// OriginCenter anchors the callout at the center panel. The
	// expanded segment uses it while its detail renders in the
	// middle of the donut.
	OriginCenter
)

// String returns a human readable line origin name.
func (o LineOrigin) String() string {
	if o == OriginCenter {
		return "center"
	}

	return "legend"
}

// LineTarget describes one segment's callout line.
type LineTarget struct {
	// Origin is the anchor the line runs to.
	Origin LineOrigin

	// Angle is the mid arc angle the line departs from, in radians.
	Angle float64
}

// Segment is one render ready donut slice: the operator's aggregate
// numbers joined with the angles the animation currently gives it.
type Segment struct {
	// Provider identifies the operator. The Others bucket carries
	// the zero id and its synthetic name.
	Provider asdiv.Provider

	// Others marks the synthetic fold bucket.
	Others bool

	// Color is the slice and legend color.
	Color string

	// PeerCount and Share are the aggregate's weight.
	PeerCount int
	Share     float64

	// Risk is the concentration tier, with RiskLabel its display
	// text. The label is empty for low risk segments, which render
	// without one.
	Risk      asdiv.RiskTier
	RiskLabel string

	// Start and End bound the rendered arc in radians. A segment
	// that has not been handed an arc yet, mid transition after its
	// operator just entered the data, renders with a zero span.
	Start float64
	End   float64

	// Expanded marks the slice the animation is growing or holding
	// at its expanded size.
	Expanded bool

	// Line is the segment's callout.
	Line LineTarget
}

// NetworkTotals are the poll wide counters of the header bar, summed
// over every valid record, private and unresolved peers included.
type NetworkTotals struct {
	// Peers is the connection count, split below by direction.
	Peers    int
	Inbound  int
	Outbound int

	// Networks counts connections per transport network.
	Networks map[peerdata.NetworkKind]int

	// BytesSent and BytesRecv are lifetime transfer sums over the
	// current connection set.
	BytesSent uint64
	BytesRecv uint64
}

// Panel is the resolved content of the active drill down frame, the
// data the renderer needs beyond the segment list. Exactly one of the
// payload fields is set, selected by Frame.Kind.
type Panel struct {
	// Frame is the trail frame this panel renders.
	Frame nav.Frame

	// Provider is the viewed aggregate for provider detail frames.
	// Operators folded into Others resolve to their pre fold
	// aggregate.
	Provider *asdiv.Aggregate

	// Providers is the operator list for provider list frames: the
	// folded tail when the view folds, the full ranking otherwise.
	Providers []*asdiv.Aggregate

	// Peer is the viewed record for peer detail frames.
	Peer *peerdata.PeerRecord

	// Peers holds the matching records for category filter frames,
	// ordered by peer id.
	Peers []*peerdata.PeerRecord
}

// ViewModel is one immutable snapshot of everything the dashboard
// renders. Snapshots are rebuilt by the event loop and never mutated
// after they leave it.
type ViewModel struct {
	// Seq counts successful polls. It bumps once per refresh, never
	// on user events or animation frames.
	Seq uint64

	// GeneratedAt is when this snapshot was built.
	GeneratedAt time.Time

	// Segments is the donut in display order: the ranked operators
	// and, when the data folds, the Others bucket last.
	Segments []Segment

	// Score is the diversity grade of the poll. It is None when no
	// analyzable peers exist, which renders as "no data" rather
	// than as a zero score.
	Score fn.Option[asdiv.Score]

	// AnalyzableCount, NoASCount and DroppedCount partition the
	// poll's records: carrying operator data, valid without it, and
	// dropped as malformed.
	AnalyzableCount int
	NoASCount       int
	DroppedCount    int

	// Totals are the header bar counters.
	Totals NetworkTotals

	// Recent lists the connect and disconnect events still inside
	// the change window, oldest first.
	Recent []PeerChange

	// Frame is the active drill down frame and Panel its resolved
	// content. Both are None while no panel is open. Depth is the
	// trail length behind the frame.
	Frame fn.Option[nav.Frame]
	Panel fn.Option[Panel]
	Depth int

	// Phase is the expansion animation's state machine position.
	Phase anim.Phase

	// Pinned is the operator whose tooltip the user pinned open,
	// keyed like the arcs: the Others bucket pins under the zero
	// id.
	Pinned fn.Option[asdiv.OperatorID]

	// ScrollOffset is the preserved scroll position of the open
	// panel's peer list.
	ScrollOffset int
}

// buildSegments joins the analysis segments with the arcs the
// animation currently renders them at.
func buildSegments(aggs []*asdiv.Aggregate, state anim.State) []Segment {
	target := state.Target.UnwrapOr(0)

	segments := make([]Segment, 0, len(aggs))
	for _, agg := range aggs {
		arc, _ := state.Geometry.Arc(agg.Provider.ID)
		expanded := state.Target.IsSome() && !agg.Others &&
			agg.Provider.ID == target

		segment := Segment{
			Provider:  agg.Provider,
			Others:    agg.Others,
			Color:     agg.Color,
			PeerCount: agg.PeerCount,
			Share:     agg.Share,
			Risk:      agg.Risk,
			RiskLabel: agg.Risk.Label(),
			Start:     arc.Start,
			End:       arc.End,
			Expanded:  expanded,
			Line: LineTarget{
				Origin: OriginLegend,
				Angle:  (arc.Start + arc.End) / 2,
			},
		}
		if expanded {
			segment.Line.Origin = OriginCenter
		}

		segments = append(segments, segment)
	}

	return segments
}

// resolvePanel looks the active frame's entity up in the current
// analysis. The trail is collapsed against the same analysis before
// any panel resolves, so detail lookups cannot dangle.
func resolvePanel(a *asdiv.Analysis, frame nav.Frame) Panel {
	panel := Panel{Frame: frame}

	switch frame.Kind {
	case nav.FrameProviderList:
		panel.Providers = a.Folded()
		if len(panel.Providers) == 0 {
			panel.Providers = a.Operators
		}

	case nav.FrameProviderDetail:
		agg, _ := a.Operator(frame.Operator)
		panel.Provider = agg

	case nav.FrameCategoryFilter:
		panel.Peers = filterPeers(a, frame.Dimension, frame.Value)

	case nav.FramePeerDetail:
		panel.Peer = a.Records[frame.PeerID]
	}

	return panel
}

// filterPeers returns the poll's records matching one dimension value,
// ordered by peer id.
func filterPeers(a *asdiv.Analysis, dim nav.Dimension,
	value string) []*peerdata.PeerRecord {

	var peers []*peerdata.PeerRecord
	for _, rec := range a.Records {
		if matchesDimension(rec, dim, value) {
			peers = append(peers, rec)
		}
	}
	sort.Slice(peers, func(i, j int) bool {
		return peers[i].ID < peers[j].ID
	})

	return peers
}

// matchesDimension reports whether a record falls under one category
// filter value. Values use the display spellings of the dimension.
func matchesDimension(rec *peerdata.PeerRecord, dim nav.Dimension,
	value string) bool {

	switch dim {
	case nav.DimensionNetwork:
		return rec.Network.String() == value
	case nav.DimensionDirection:
		return rec.Direction.String() == value
	case nav.DimensionConnType:
		return rec.ConnType.String() == value
	case nav.DimensionCountry:
		return rec.Geo.Country == value
	default:
		return false
	}
}

// computeTotals sums the header bar counters over the poll's valid
// records.
func computeTotals(records map[string]*peerdata.PeerRecord) NetworkTotals {
	totals := NetworkTotals{
		Networks: make(map[peerdata.NetworkKind]int),
	}

	for _, rec := range records {
		totals.Peers++
		if rec.Direction == peerdata.DirectionInbound {
			totals.Inbound++
		} else {
			totals.Outbound++
		}

		totals.Networks[rec.Network]++
		totals.BytesSent += rec.BytesSent
		totals.BytesRecv += rec.BytesRecv
	}

	return totals
}
