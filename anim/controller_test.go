package anim

import (
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/mbtcdash/peerscope/asdiv"
	"github.com/stretchr/testify/require"
)

// testNow is the fixed wall clock start of every controller test.
var testNow = time.Unix(1755000000, 0)

// testDuration keeps transition math simple in tests.
const testDuration = 400 * time.Millisecond

// controllerCtx drives a Controller with a synthetic wall clock.
type controllerCtx struct {
	clock    *clock.TestClock
	ctrl     *Controller
	segments []*asdiv.Aggregate
}

func newControllerCtx(t *testing.T) *controllerCtx {
	t.Helper()

	testClock := clock.NewTestClock(testNow)

	ctx := &controllerCtx{
		clock: testClock,
		ctrl: NewController(ControllerConfig{
			Clock:    testClock,
			Duration: testDuration,
		}),
		segments: []*asdiv.Aggregate{
			seg(1, 50), seg(2, 30), others(20),
		},
	}
	ctx.ctrl.SyncData(ctx.segments)

	return ctx
}

// advanceBy moves both the wall clock and the frame clock forward and
// advances the controller.
func (ctx *controllerCtx) advanceBy(d time.Duration) {
	now := ctx.clock.Now().Add(d)
	ctx.clock.SetTime(now)
	ctx.ctrl.Advance(now)
}

// TestControllerLifecycle walks the full select, expand, deselect,
// rest cycle and requires the final state to equal the pre-selection
// snapshot.
func TestControllerLifecycle(t *testing.T) {
	t.Parallel()

	ctx := newControllerCtx(t)
	ctrl := ctx.ctrl

	require.Equal(t, PhaseIdle, ctrl.Phase())
	require.True(t, ctrl.Target().IsNone())
	require.Equal(t, NaturalGeometry(ctx.segments), ctrl.Current())

	before := ctrl.State()

	ctrl.Select(1, ctx.segments)
	require.Equal(t, PhaseAnimating, ctrl.Phase())
	require.Equal(t, asdiv.OperatorID(1), ctrl.Target().UnwrapOrFail(t))

	// Halfway through, the expanding arc sits exactly between its
	// natural and target span because the easing curve crosses one
	// half at its midpoint.
	ctx.advanceBy(testDuration / 2)

	natural, _ := NaturalGeometry(ctx.segments).Arc(1)
	expanded, _ := ExpandedGeometry(ctx.segments, 1).Arc(1)
	halfway, ok := ctrl.Current().Arc(1)
	require.True(t, ok)
	require.InDelta(
		t, (natural.Span()+expanded.Span())/2, halfway.Span(), 1e-9,
	)

	// Completing the transition settles the expansion.
	ctx.advanceBy(testDuration / 2)
	require.Equal(t, PhaseExpanded, ctrl.Phase())
	require.Equal(t, ExpandedGeometry(ctx.segments, 1), ctrl.Current())

	// Settled expansions do not move on further frames.
	require.False(t, ctrl.Advance(ctx.clock.Now().Add(time.Second)))

	ctrl.Deselect(ctx.segments)
	require.Equal(t, PhaseReverting, ctrl.Phase())
	require.True(t, ctrl.Target().IsNone())

	ctx.advanceBy(testDuration)
	require.Equal(t, PhaseIdle, ctrl.Phase())
	require.Equal(t, before, ctrl.State())
}

// TestControllerRetarget tests switching the selection mid flight and
// out of a settled expansion: the new transition starts from the
// currently rendered angles and never passes through the resting
// state.
func TestControllerRetarget(t *testing.T) {
	t.Parallel()

	ctx := newControllerCtx(t)
	ctrl := ctx.ctrl

	ctrl.Select(1, ctx.segments)
	ctx.advanceBy(testDuration / 4)

	// Switch mid flight. The rendered geometry must not move at the
	// moment of the switch.
	midFlight := ctrl.Current()
	ctrl.Select(2, ctx.segments)

	require.Equal(t, PhaseAnimating, ctrl.Phase())
	require.Equal(t, asdiv.OperatorID(2), ctrl.Target().UnwrapOrFail(t))
	require.Equal(t, midFlight, ctrl.Current())

	ctx.advanceBy(testDuration)
	require.Equal(t, PhaseExpanded, ctrl.Phase())
	require.Equal(t, ExpandedGeometry(ctx.segments, 2), ctrl.Current())

	// Switch directly out of the settled expansion.
	settled := ctrl.Current()
	ctrl.Select(1, ctx.segments)

	require.Equal(t, PhaseAnimating, ctrl.Phase())
	require.Equal(t, settled, ctrl.Current())

	ctx.advanceBy(testDuration)
	require.Equal(t, PhaseExpanded, ctrl.Phase())
	require.Equal(t, ExpandedGeometry(ctx.segments, 1), ctrl.Current())
}

// TestControllerWatchdog tests the stuck transition snap: a frame
// clock that stops delivering progress while wall time runs past the
// deadline forces the transition straight to its target.
func TestControllerWatchdog(t *testing.T) {
	t.Parallel()

	ctx := newControllerCtx(t)
	ctrl := ctx.ctrl

	ctrl.Select(1, ctx.segments)

	// The frame clock is frozen at the transition start, so every
	// advance renders zero progress.
	frozen := ctx.clock.Now()
	require.True(t, ctrl.Advance(frozen))
	require.Equal(t, PhaseAnimating, ctrl.Phase())
	require.Equal(t, NaturalGeometry(ctx.segments), ctrl.Current())

	// Short of the deadline the transition keeps waiting.
	deadline := testDuration * DefaultWatchdogFactor
	ctx.clock.SetTime(testNow.Add(deadline - time.Millisecond))
	require.True(t, ctrl.Advance(frozen))
	require.Equal(t, PhaseAnimating, ctrl.Phase())

	// At the deadline it snaps to the settled expansion.
	ctx.clock.SetTime(testNow.Add(deadline))
	require.True(t, ctrl.Advance(frozen))
	require.Equal(t, PhaseExpanded, ctrl.Phase())
	require.Equal(t, ExpandedGeometry(ctx.segments, 1), ctrl.Current())

	// The same guard rescues a stuck revert.
	ctrl.Deselect(ctx.segments)
	ctx.clock.SetTime(ctx.clock.Now().Add(deadline))
	require.True(t, ctrl.Advance(frozen))
	require.Equal(t, PhaseIdle, ctrl.Phase())
	require.Equal(t, NaturalGeometry(ctx.segments), ctrl.Current())
}

// TestControllerSelectNoops tests the selections that must not start
// a transition.
func TestControllerSelectNoops(t *testing.T) {
	t.Parallel()

	ctx := newControllerCtx(t)
	ctrl := ctx.ctrl

	// Operators folded into Others have no segment to expand.
	ctrl.Select(42, ctx.segments)
	require.Equal(t, PhaseIdle, ctrl.Phase())
	require.True(t, ctrl.Target().IsNone())

	// Reselecting the operator already in flight changes nothing.
	ctrl.Select(1, ctx.segments)
	ctx.advanceBy(testDuration / 4)
	state := ctrl.State()

	ctrl.Select(1, ctx.segments)
	require.Equal(t, state, ctrl.State())

	// Same once the expansion settled.
	ctx.advanceBy(testDuration)
	state = ctrl.State()

	ctrl.Select(1, ctx.segments)
	require.Equal(t, state, ctrl.State())
}

// TestControllerDeselectNoops tests that deselection is only
// meaningful with an engaged expansion.
func TestControllerDeselectNoops(t *testing.T) {
	t.Parallel()

	ctx := newControllerCtx(t)
	ctrl := ctx.ctrl

	state := ctrl.State()
	ctrl.Deselect(ctx.segments)
	require.Equal(t, state, ctrl.State())

	// A second deselect while reverting keeps the running revert.
	ctrl.Select(1, ctx.segments)
	ctx.advanceBy(testDuration)
	ctrl.Deselect(ctx.segments)
	state = ctrl.State()

	ctrl.Deselect(ctx.segments)
	require.Equal(t, state, ctrl.State())
}

// TestControllerSyncData tests that refreshes reshape the resting
// layout but never touch an engaged expansion.
func TestControllerSyncData(t *testing.T) {
	t.Parallel()

	ctx := newControllerCtx(t)
	ctrl := ctx.ctrl

	fresh := []*asdiv.Aggregate{seg(1, 40), seg(2, 40), others(20)}

	ctrl.SyncData(fresh)
	require.Equal(t, NaturalGeometry(fresh), ctrl.Current())

	// While expanded, a refresh leaves the animation state alone.
	ctrl.Select(1, fresh)
	ctx.advanceBy(testDuration)
	state := ctrl.State()

	ctrl.SyncData(ctx.segments)
	require.Equal(t, state, ctrl.State())

	// Mid transition as well.
	ctrl.Select(2, fresh)
	ctx.advanceBy(testDuration / 2)
	state = ctrl.State()

	ctrl.SyncData(fresh)
	require.Equal(t, state, ctrl.State())
}

// TestControllerAdvanceAtRest tests that frames at rest report no
// geometry change.
func TestControllerAdvanceAtRest(t *testing.T) {
	t.Parallel()

	ctx := newControllerCtx(t)

	require.False(t, ctx.ctrl.Advance(testNow))
	require.False(t, ctx.ctrl.Advance(testNow.Add(time.Hour)))
}
