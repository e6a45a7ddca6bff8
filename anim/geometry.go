package anim

import (
	"math"

	"github.com/mbtcdash/peerscope/asdiv"
)

const (
	// StartAngle is where the first segment begins, twelve o'clock
	// on the canvas.
	StartAngle = -math.Pi / 2

	// ExpandedFraction is the share of the circle a selected segment
	// grows to cover. The remaining segments split what is left in
	// proportion to each other.
	ExpandedFraction = 2.0 / 3.0
)

// Arc is one segment's angular span. Angles are radians growing
// clockwise from StartAngle and consecutive arcs are contiguous around
// the circle.
type Arc struct {
	// Operator keys the arc to its displayed aggregate. The Others
	// bucket keys to the zero operator id.
	Operator asdiv.OperatorID

	// Start and End bound the span.
	Start float64
	End   float64
}

// Span returns the angular width of the arc.
func (a Arc) Span() float64 {
	return a.End - a.Start
}

// Geometry is the full set of segment arcs in display order.
type Geometry []Arc

// Arc returns the span of one operator's segment.
func (g Geometry) Arc(op asdiv.OperatorID) (Arc, bool) {
	for _, arc := range g {
		if arc.Operator == op {
			return arc, true
		}
	}

	return Arc{}, false
}

// Clone returns an independent copy of the geometry.
func (g Geometry) Clone() Geometry {
	if g == nil {
		return nil
	}

	out := make(Geometry, len(g))
	copy(out, g)

	return out
}

// NaturalGeometry lays the displayed segments out by share, each arc
// as wide as its aggregate's slice of the analyzable peers.
func NaturalGeometry(segments []*asdiv.Aggregate) Geometry {
	var total float64
	for _, agg := range segments {
		total += agg.Share
	}
	if total <= 0 {
		return nil
	}

	g := make(Geometry, 0, len(segments))
	angle := StartAngle
	for _, agg := range segments {
		span := agg.Share / total * 2 * math.Pi
		g = append(g, Arc{
			Operator: agg.Provider.ID,
			Start:    angle,
			End:      angle + span,
		})
		angle += span
	}

	return g
}

// ExpandedGeometry grows the selected operator's arc to
// ExpandedFraction of the circle and compresses the remaining
// segments into what is left, keeping their proportions relative to
// each other. A selection holding the whole population takes the full
// circle. Selecting an operator that is not displayed leaves the
// natural layout.
func ExpandedGeometry(segments []*asdiv.Aggregate,
	target asdiv.OperatorID) Geometry {

	var rest float64
	found := false
	for _, agg := range segments {
		if !agg.Others && agg.Provider.ID == target {
			found = true
			continue
		}
		rest += agg.Share
	}
	if !found {
		return NaturalGeometry(segments)
	}

	full := 2 * math.Pi
	expanded := full * ExpandedFraction
	if rest <= 0 {
		expanded = full
	}

	g := make(Geometry, 0, len(segments))
	angle := StartAngle
	for _, agg := range segments {
		var span float64
		switch {
		case !agg.Others && agg.Provider.ID == target:
			span = expanded
		case rest > 0:
			span = agg.Share / rest * (full - expanded)
		}

		g = append(g, Arc{
			Operator: agg.Provider.ID,
			Start:    angle,
			End:      angle + span,
		})
		angle += span
	}

	return g
}

// smoothstep is the easing curve applied to transition progress.
func smoothstep(t float64) float64 {
	switch {
	case t <= 0:
		return 0
	case t >= 1:
		return 1
	}

	return t * t * (3 - 2*t)
}

// interpolate blends a transition at progress t between two
// geometries. Arcs are matched by operator; a segment without a
// counterpart in the starting geometry grows out of its own midpoint.
func interpolate(from, to Geometry, t float64) Geometry {
	eased := smoothstep(t)

	out := make(Geometry, len(to))
	for i, arc := range to {
		prev, ok := from.Arc(arc.Operator)
		if !ok {
			mid := (arc.Start + arc.End) / 2
			prev = Arc{Operator: arc.Operator, Start: mid, End: mid}
		}

		out[i] = Arc{
			Operator: arc.Operator,
			Start:    prev.Start + (arc.Start-prev.Start)*eased,
			End:      prev.End + (arc.End-prev.End)*eased,
		}
	}

	return out
}
