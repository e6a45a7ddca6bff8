package viewstate

import (
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/mbtcdash/peerscope/asdiv"
	"github.com/mbtcdash/peerscope/nav"
	"github.com/mbtcdash/peerscope/peerdata"
)

// applyRefresh folds one poll's records into the view. The analysis is
// replaced wholesale while the transient state, the drill down trail,
// the running animation, the pinned tooltip and the scroll position,
// is carried over untouched unless the fresh data invalidated the
// entity it points at. Applying the same records twice yields the same
// view.
func (s *Store) applyRefresh(recs []*peerdata.PeerRecord) {
	now := s.cfg.Clock.Now()
	prev := s.analysis

	analysis := s.aggregator.Aggregate(recs)

	s.score = fn.None[asdiv.Score]()
	if score, err := asdiv.ScoreAnalysis(analysis); err == nil {
		s.score = fn.Some(score)
	}

	// The first poll seeds the baseline: the peers present at
	// startup are not "recent" connects.
	if s.seeded {
		s.changes.observe(prev.Records, analysis.Records, now)
	}
	s.seeded = true

	s.totals = computeTotals(analysis.Records)
	s.analysis = analysis
	s.seq++

	s.collapseStale()
	s.syncExpansion()

	// Reshape the resting layout to the fresh shares. A running or
	// held expansion keeps its angles until its next transition.
	s.controller.SyncData(analysis.Segments)
}

// handleEvent applies one user interaction. Selection events referring
// to entities the current poll does not know are ignored rather than
// opening an empty panel. Every event ends with a stale frame sweep
// and an expansion resync, so navigating backwards onto a frame whose
// entity vanished since it was opened collapses it right here instead
// of rendering it dangling.
func (s *Store) handleEvent(event Event) {
	switch event := event.(type) {
	case SelectProviderEvent:
		if !s.analysis.HasOperator(event.Operator) {
			log.Debugf("Ignoring selection of unknown "+
				"operator AS%d", event.Operator)
			return
		}
		s.stack.SelectProvider(event.Operator)

	case SelectOthersEvent:
		s.stack.SelectOthers()

	case SelectPeerEvent:
		if !s.analysis.HasPeer(event.PeerID) {
			log.Debugf("Ignoring selection of unknown peer %v",
				event.PeerID)
			return
		}
		s.stack.SelectPeer(event.PeerID)

	case SelectCategoryEvent:
		s.stack.SelectCategory(event.Dimension, event.Value)

	case BackEvent:
		s.stack.Back()

	case EscapeEvent:
		s.stack.Escape()

	case CloseEvent:
		s.stack.Close()
		s.pinned = fn.None[asdiv.OperatorID]()

	case OutsideClickEvent:
		pinned := s.pinned.IsSome()
		s.pinned = fn.None[asdiv.OperatorID]()
		s.stack.OutsideClick(pinned)

	case PinTooltipEvent:
		if _, ok := segmentFor(s.analysis, event.Operator); !ok {
			log.Debugf("Ignoring tooltip pin on absent "+
				"segment AS%d", event.Operator)
			return
		}
		s.pinned = fn.Some(event.Operator)

	case UnpinTooltipEvent:
		s.pinned = fn.None[asdiv.OperatorID]()

	case ScrollEvent:
		offset := event.Offset
		if offset < 0 {
			offset = 0
		}
		s.scroll = offset

	default:
		log.Warnf("Unhandled view event %T", event)
	}

	s.collapseStale()
	s.syncExpansion()
}

// collapseStale pops trail frames whose entity is gone from the
// current analysis and releases a pinned tooltip whose segment no
// longer exists. Frames without an entity reference never go stale.
func (s *Store) collapseStale() {
	analysis := s.analysis

	dropped := s.stack.CollapseInvalid(func(frame nav.Frame) bool {
		switch frame.Kind {
		case nav.FrameProviderDetail:
			return analysis.HasOperator(frame.Operator)
		case nav.FramePeerDetail:
			return analysis.HasPeer(frame.PeerID)
		default:
			return true
		}
	})
	if dropped > 0 {
		log.Debugf("Collapsed %d stale frames", dropped)
	}

	s.pinned.WhenSome(func(op asdiv.OperatorID) {
		if _, ok := segmentFor(analysis, op); !ok {
			log.Debugf("Releasing tooltip pin on absent "+
				"segment AS%d", op)
			s.pinned = fn.None[asdiv.OperatorID]()
		}
	})
}

// syncExpansion points the animation at the trail. The expansion
// follows the nearest provider detail frame from the top: opening one
// expands its segment, retargeting runs directly between expansions,
// and a trail without one, or whose nearest operator has no segment of
// its own, reverts to the natural layout.
func (s *Store) syncExpansion() {
	segments := s.analysis.Segments

	frames := s.stack.Frames()
	for i := len(frames) - 1; i >= 0; i-- {
		if frames[i].Kind != nav.FrameProviderDetail {
			continue
		}

		op := frames[i].Operator
		if agg, ok := segmentFor(s.analysis, op); ok && !agg.Others {
			s.controller.Select(op, segments)
		} else {
			s.controller.Deselect(segments)
		}

		return
	}

	s.controller.Deselect(segments)
}

// segmentFor finds the displayed segment keyed by an operator id. The
// Others bucket is keyed by the zero id, matching its arc.
func segmentFor(a *asdiv.Analysis,
	op asdiv.OperatorID) (*asdiv.Aggregate, bool) {

	for _, agg := range a.Segments {
		if agg.Provider.ID == op {
			return agg, true
		}
	}

	return nil, false
}
