package viewstate

import (
	"github.com/mbtcdash/peerscope/asdiv"
	"github.com/mbtcdash/peerscope/nav"
)

// Event is one user interaction applied to the view state. Events are
// handed to the store and processed on its event loop, in arrival
// order, each one followed by a stale frame sweep so an interaction
// can never leave a dangling panel behind.
type Event interface {
	// sealed restricts event implementations to this package.
	sealed()
}

// SelectProviderEvent is a click on an operator: its donut segment, or
// its row in the ranked list. It opens the operator's panel, expands
// its segment when it has one, and clicking the operator already
// viewed closes it again.
type SelectProviderEvent struct {
	Operator asdiv.OperatorID
}

// SelectOthersEvent is a click on the Others segment. It opens the
// ranked list of the folded operators instead of a detail panel, and
// never expands the segment.
type SelectOthersEvent struct{}

// SelectPeerEvent is a click on a peer row. It opens the peer's panel
// directly on top of the frame that listed it; hopping between peers
// swaps the panel rather than deepening the trail.
type SelectPeerEvent struct {
	PeerID string
}

// SelectCategoryEvent is a click on a summary category value. It opens
// the list of peers matching that value.
type SelectCategoryEvent struct {
	Dimension nav.Dimension
	Value     string
}

// BackEvent is the panel's back control: one level up, closing the
// panel from its last frame.
type BackEvent struct{}

// EscapeEvent is the Escape key, dismissing one level like Back.
type EscapeEvent struct{}

// CloseEvent is the panel's close control, dismissing the whole trail
// at once.
type CloseEvent struct{}

// OutsideClickEvent is a click outside the active region. Dismissal is
// graduated: nested state peels off one level, a lone panel closes.
// Any pinned tooltip is released by the same click.
type OutsideClickEvent struct{}

// PinTooltipEvent pins a segment's hover tooltip open. The Others
// bucket pins under the zero operator id, matching its arc key.
type PinTooltipEvent struct {
	Operator asdiv.OperatorID
}

// UnpinTooltipEvent releases a pinned tooltip.
type UnpinTooltipEvent struct{}

// ScrollEvent records the open panel's peer list scroll position so a
// refresh can restore it instead of snapping the list to the top.
type ScrollEvent struct {
	Offset int
}

func (SelectProviderEvent) sealed() {}
func (SelectOthersEvent) sealed()   {}
func (SelectPeerEvent) sealed()     {}
func (SelectCategoryEvent) sealed() {}
func (BackEvent) sealed()           {}
func (EscapeEvent) sealed()         {}
func (CloseEvent) sealed()          {}
func (OutsideClickEvent) sealed()   {}
func (PinTooltipEvent) sealed()     {}
func (UnpinTooltipEvent) sealed()   {}
func (ScrollEvent) sealed()         {}
