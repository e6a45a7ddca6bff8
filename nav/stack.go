// Package nav models the drill down state of the dashboard as an
// explicit stack of frames: category filter, provider panel, peer
// panel. The renderer only ever looks at the top frame; the stack
// below it is the trail the user walked to get there.
package nav

import (
	"fmt"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/mbtcdash/peerscope/asdiv"
)

// FrameKind enumerates the drill down levels.
type FrameKind uint8

const (
	// FrameProviderList shows the full ranked operator list. It is
	// also the drill target of the Others segment.
	FrameProviderList FrameKind = iota

	// FrameProviderDetail shows a single operator's panel.
	FrameProviderDetail

	// FrameCategoryFilter shows the peers matching one value of a
	// filter dimension.
	FrameCategoryFilter

	// FramePeerDetail shows a single peer's panel.
	FramePeerDetail
)

// String returns a human readable frame kind name.
func (k FrameKind) String() string {
	switch k {
	case FrameProviderList:
		return "provider-list"
	case FrameProviderDetail:
		return "provider-detail"
	case FrameCategoryFilter:
		return "category-filter"
	case FramePeerDetail:
		return "peer-detail"
	default:
		return "unknown"
	}
}

// Dimension enumerates the category filter dimensions.
type Dimension uint8

const (
	// DimensionNetwork filters by network kind.
	DimensionNetwork Dimension = iota

	// DimensionDirection filters by connection direction.
	DimensionDirection

	// DimensionConnType filters by connection subtype.
	DimensionConnType

	// DimensionCountry filters by resolved country.
	DimensionCountry
)

// String returns a human readable dimension name.
func (d Dimension) String() string {
	switch d {
	case DimensionNetwork:
		return "network"
	case DimensionDirection:
		return "direction"
	case DimensionConnType:
		return "conntype"
	case DimensionCountry:
		return "country"
	default:
		return "unknown"
	}
}

// Frame is one level of the drill down. Frames are small comparable
// values; two frames are the same view exactly when they are equal.
type Frame struct {
	// Kind selects which of the payload fields below applies.
	Kind FrameKind

	// Operator is the viewed operator for provider detail frames.
	Operator asdiv.OperatorID

	// PeerID is the viewed peer for peer detail frames.
	PeerID string

	// Dimension and Value describe category filter frames.
	Dimension Dimension
	Value     string
}

// ProviderListFrame returns the full operator list frame.
func ProviderListFrame() Frame {
	return Frame{Kind: FrameProviderList}
}

// ProviderDetailFrame returns the panel frame of one operator.
func ProviderDetailFrame(op asdiv.OperatorID) Frame {
	return Frame{Kind: FrameProviderDetail, Operator: op}
}

// CategoryFilterFrame returns a filter frame for one dimension value.
func CategoryFilterFrame(dim Dimension, value string) Frame {
	return Frame{Kind: FrameCategoryFilter, Dimension: dim, Value: value}
}

// PeerDetailFrame returns the panel frame of one peer.
func PeerDetailFrame(peerID string) Frame {
	return Frame{Kind: FramePeerDetail, PeerID: peerID}
}

// String returns the frame in "provider-detail(AS15169)" form.
func (f Frame) String() string {
	switch f.Kind {
	case FrameProviderDetail:
		return fmt.Sprintf("%v(AS%d)", f.Kind, f.Operator)
	case FrameCategoryFilter:
		return fmt.Sprintf("%v(%v=%s)", f.Kind, f.Dimension, f.Value)
	case FramePeerDetail:
		return fmt.Sprintf("%v(%s)", f.Kind, f.PeerID)
	default:
		return f.Kind.String()
	}
}

// Stack is the ordered drill down trail. The zero number of frames is
// the closed state: no panel is open and the idle view renders. A
// Stack is owned by the event loop and is not safe for concurrent use.
type Stack struct {
	frames []Frame
}

// NewStack returns an empty, closed stack.
func NewStack() *Stack {
	return &Stack{}
}

// Depth returns the number of open frames.
func (s *Stack) Depth() int {
	return len(s.frames)
}

// IsOpen reports whether any panel is open.
func (s *Stack) IsOpen() bool {
	return len(s.frames) > 0
}

// Current returns the top frame, the view the renderer shows.
func (s *Stack) Current() fn.Option[Frame] {
	if len(s.frames) == 0 {
		return fn.None[Frame]()
	}

	return fn.Some(s.frames[len(s.frames)-1])
}

// Frames returns a copy of the trail, bottom first.
func (s *Stack) Frames() []Frame {
	frames := make([]Frame, len(s.frames))
	copy(frames, s.frames)

	return frames
}

// Push puts a frame on top of the trail. Two shapes are special:
// pushing a peer detail onto a peer detail replaces the top, so peer
// hops never chain and a peer panel always sits directly on the frame
// that spawned it. And pushing the provider detail that is already
// current pops it instead: clicking the selected segment again
// deselects it.
func (s *Stack) Push(frame Frame) {
	if n := len(s.frames); n > 0 {
		top := s.frames[n-1]

		if frame.Kind == FramePeerDetail &&
			top.Kind == FramePeerDetail {

			s.ReplaceTop(frame)
			return
		}

		if frame.Kind == FrameProviderDetail && frame == top {
			log.Debugf("Toggling %v closed", frame)
			s.Pop()
			return
		}
	}

	log.Debugf("Opening %v at depth %d", frame, len(s.frames)+1)
	s.frames = append(s.frames, frame)
}

// Pop removes the top frame and returns it. Popping the last frame
// leaves the closed state, popping a closed stack does nothing.
func (s *Stack) Pop() (Frame, bool) {
	n := len(s.frames)
	if n == 0 {
		return Frame{}, false
	}

	frame := s.frames[n-1]
	s.frames = s.frames[:n-1]

	log.Debugf("Closed %v, depth now %d", frame, len(s.frames))

	return frame, true
}

// ReplaceTop swaps the top frame without growing the trail. On a
// closed stack it opens the frame instead.
func (s *Stack) ReplaceTop(frame Frame) {
	n := len(s.frames)
	if n == 0 {
		s.frames = append(s.frames, frame)
		return
	}

	log.Debugf("Replacing %v with %v", s.frames[n-1], frame)
	s.frames[n-1] = frame
}

// Reset drops every frame, returning to the closed state.
func (s *Stack) Reset() {
	if len(s.frames) == 0 {
		return
	}

	log.Debugf("Closing panel from depth %d", len(s.frames))
	s.frames = s.frames[:0]
}

// SelectCategory opens the filtered peer list of one dimension value.
func (s *Stack) SelectCategory(dim Dimension, value string) {
	s.Push(CategoryFilterFrame(dim, value))
}

// SelectProvider opens an operator's panel, or closes it when it is
// already the current view.
func (s *Stack) SelectProvider(op asdiv.OperatorID) {
	s.Push(ProviderDetailFrame(op))
}

// SelectOthers opens the ranked list of the operators folded into the
// Others bucket.
func (s *Stack) SelectOthers() {
	s.Push(ProviderListFrame())
}

// SelectPeer opens a peer's panel on top of the frame that spawned it.
func (s *Stack) SelectPeer(peerID string) {
	s.Push(PeerDetailFrame(peerID))
}

// Back navigates one level up. On the last frame it closes the panel.
func (s *Stack) Back() {
	s.Pop()
}

// Escape dismisses one level, matching Back. Held panels unwind frame
// by frame instead of vanishing at once.
func (s *Stack) Escape() {
	s.Pop()
}

// Close dismisses the whole panel.
func (s *Stack) Close() {
	s.Reset()
}

// OutsideClick applies the graduated dismissal of clicks outside the
// active region. While nested state exists, a deeper trail or a pinned
// tooltip reported through pinned, the click pops exactly one level.
// At the top level it closes the panel. Callers clear their pinned
// tooltip on every outside click.
func (s *Stack) OutsideClick(pinned bool) {
	if len(s.frames) > 1 || pinned {
		s.Pop()
		return
	}

	s.Reset()
}

// CollapseInvalid pops frames whose referenced entity is gone from the
// current data until the top frame is valid again or the stack is
// empty, and returns the number of frames dropped. Frames without an
// entity reference are always valid.
func (s *Stack) CollapseInvalid(valid func(Frame) bool) int {
	dropped := 0
	for {
		n := len(s.frames)
		if n == 0 {
			break
		}

		top := s.frames[n-1]
		if valid(top) {
			break
		}

		log.Debugf("Collapsing stale %v", top)
		s.frames = s.frames[:n-1]
		dropped++
	}

	return dropped
}
