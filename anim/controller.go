// Package anim owns the segment expansion state machine of the
// provider donut. Transitions are advanced by elapsed time sampling,
// never by a free running callback loop, so the same logic runs under
// a real frame clock and under synthetic timestamps in tests.
package anim

import (
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/mbtcdash/peerscope/asdiv"
)

const (
	// DefaultDuration is the nominal length of one transition.
	DefaultDuration = 400 * time.Millisecond

	// DefaultWatchdogFactor scales the duration into the wall clock
	// deadline after which a transition that still has not settled
	// is snapped straight to its target.
	DefaultWatchdogFactor = 4
)

// Phase is the expansion state of the donut.
type Phase uint8

const (
	// PhaseIdle is the resting state: nothing is selected, the
	// natural share layout renders and the target operator is none.
	PhaseIdle Phase = iota

	// PhaseAnimating is entered when an operator is selected, from
	// rest or directly out of another expansion. The rendered
	// geometry interpolates from wherever it currently is toward the
	// target operator's expansion.
	PhaseAnimating

	// PhaseExpanded is the settled state of a selection: the target
	// operator holds ExpandedFraction of the circle and nothing
	// moves until the selection changes.
	PhaseExpanded

	// PhaseReverting is entered on deselection. The rendered
	// geometry interpolates back to the natural share layout and the
	// target operator is cleared the moment the revert starts.
	PhaseReverting
)

// String returns a human readable phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAnimating:
		return "animating"
	case PhaseExpanded:
		return "expanded"
	case PhaseReverting:
		return "reverting"
	default:
		return "unknown"
	}
}

// ControllerConfig bundles the dependencies and tuning knobs of a
// Controller.
type ControllerConfig struct {
	// Clock provides transition start times and the wall clock the
	// watchdog measures against.
	Clock clock.Clock

	// Duration is the nominal transition length. Zero selects
	// DefaultDuration.
	Duration time.Duration

	// WatchdogFactor scales Duration into the stuck transition
	// deadline. Zero selects DefaultWatchdogFactor.
	WatchdogFactor int
}

// Controller runs the expansion state machine. It is owned by the
// event loop and is not safe for concurrent use.
type Controller struct {
	cfg ControllerConfig

	phase Phase

	// target is the operator being expanded. It is set exactly in
	// the animating and expanded phases.
	target fn.Option[asdiv.OperatorID]

	// start is when the running transition began, on cfg.Clock.
	start time.Time

	// from and to bound the running transition. Both are nil outside
	// the animating and reverting phases.
	from Geometry
	to   Geometry

	// current is the geometry rendered right now.
	current Geometry
}

// State is a snapshot of the externally visible animation state.
type State struct {
	// Phase is the state machine position.
	Phase Phase

	// Target is the operator being expanded, when there is one.
	Target fn.Option[asdiv.OperatorID]

	// Start is when the running transition began.
	Start time.Time

	// Geometry is the rendered angle set.
	Geometry Geometry
}

// NewController creates a Controller, applying defaults to the zero
// parts of the config.
func NewController(cfg ControllerConfig) *Controller {
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}
	if cfg.Duration <= 0 {
		cfg.Duration = DefaultDuration
	}
	if cfg.WatchdogFactor <= 0 {
		cfg.WatchdogFactor = DefaultWatchdogFactor
	}

	return &Controller{
		cfg:    cfg,
		target: fn.None[asdiv.OperatorID](),
	}
}

// Phase returns the state machine position.
func (c *Controller) Phase() Phase {
	return c.phase
}

// Target returns the operator being expanded, when there is one.
func (c *Controller) Target() fn.Option[asdiv.OperatorID] {
	return c.target
}

// Current returns the geometry rendered right now.
func (c *Controller) Current() Geometry {
	return c.current.Clone()
}

// State returns a snapshot of phase, target, transition start and the
// rendered geometry.
func (c *Controller) State() State {
	return State{
		Phase:    c.phase,
		Target:   c.target,
		Start:    c.start,
		Geometry: c.current.Clone(),
	}
}

// Select starts expanding an operator's segment. Selecting the
// operator that is already expanding or expanded does nothing.
// Selecting while another expansion runs or holds retargets directly:
// the new transition starts from the currently rendered angles, never
// from a completed state, so the switch is visually continuous.
// Operators without a displayed segment, the ones folded into Others,
// get no expansion.
func (c *Controller) Select(op asdiv.OperatorID,
	segments []*asdiv.Aggregate) {

	if !displayed(segments, op) {
		log.Debugf("Operator AS%d has no displayed segment, "+
			"leaving geometry at rest", op)
		return
	}

	engaged := c.phase == PhaseAnimating || c.phase == PhaseExpanded
	if engaged && c.target.UnwrapOr(0) == op {
		return
	}

	log.Debugf("Expanding AS%d from phase %v", op, c.phase)
	c.begin(PhaseAnimating, fn.Some(op), ExpandedGeometry(segments, op))
}

// Deselect reverts a running or settled expansion back to the natural
// layout. At rest or already reverting it does nothing.
func (c *Controller) Deselect(segments []*asdiv.Aggregate) {
	if c.phase == PhaseIdle || c.phase == PhaseReverting {
		return
	}

	log.Debugf("Reverting expansion of AS%d", c.target.UnwrapOr(0))
	c.begin(
		PhaseReverting, fn.None[asdiv.OperatorID](),
		NaturalGeometry(segments),
	)
}

// SyncData reshapes the resting geometry after a data refresh. A
// running or settled expansion is left untouched so a refresh never
// fights the animation; fresh shares take effect on the next
// transition.
func (c *Controller) SyncData(segments []*asdiv.Aggregate) {
	if c.phase != PhaseIdle {
		return
	}

	c.current = NaturalGeometry(segments)
}

// Advance moves a running transition to its position at now and
// reports whether the rendered geometry changed. Progress derives
// from the transition's start time, so skipped frames catch up on the
// next call. A transition that still has not settled after
// WatchdogFactor times its duration of wall clock time, the mark of a
// stalled or rewound frame clock, is snapped straight to its target.
func (c *Controller) Advance(now time.Time) bool {
	if c.phase != PhaseAnimating && c.phase != PhaseReverting {
		return false
	}

	elapsed := now.Sub(c.start)
	if elapsed >= c.cfg.Duration {
		c.finish()
		return true
	}

	deadline := c.cfg.Duration * time.Duration(c.cfg.WatchdogFactor)
	if wall := c.cfg.Clock.Now().Sub(c.start); wall >= deadline {
		log.Warnf("Transition to %v stuck after %v of wall time, "+
			"snapping to target", c.phase, wall)
		c.finish()
		return true
	}

	t := float64(0)
	if elapsed > 0 {
		t = float64(elapsed) / float64(c.cfg.Duration)
	}
	c.current = interpolate(c.from, c.to, t)

	return true
}

// begin starts a transition from the currently rendered geometry.
func (c *Controller) begin(phase Phase, target fn.Option[asdiv.OperatorID],
	to Geometry) {

	c.from = c.current.Clone()
	c.to = to
	c.start = c.cfg.Clock.Now()
	c.phase = phase
	c.target = target
}

// finish settles the running transition on its target state.
func (c *Controller) finish() {
	c.current = c.to
	c.from = nil
	c.to = nil

	if c.phase == PhaseAnimating {
		c.phase = PhaseExpanded
		log.Debugf("Expansion of AS%d settled", c.target.UnwrapOr(0))
		return
	}

	c.phase = PhaseIdle
	c.target = fn.None[asdiv.OperatorID]()
	c.start = time.Time{}
	log.Debugf("Revert settled, geometry at rest")
}

// displayed reports whether the operator has its own segment.
func displayed(segments []*asdiv.Aggregate, op asdiv.OperatorID) bool {
	for _, agg := range segments {
		if !agg.Others && agg.Provider.ID == op {
			return true
		}
	}

	return false
}
