package anim

import (
	"math"
	"testing"

	"github.com/mbtcdash/peerscope/asdiv"
	"github.com/stretchr/testify/require"
)

// seg builds a displayed aggregate with the fields geometry cares
// about.
func seg(op asdiv.OperatorID, share float64) *asdiv.Aggregate {
	return &asdiv.Aggregate{
		Provider: asdiv.Provider{ID: op},
		Share:    share,
	}
}

// others builds the synthetic tail bucket.
func others(share float64) *asdiv.Aggregate {
	return &asdiv.Aggregate{
		Provider: asdiv.Provider{Name: asdiv.OthersName},
		Others:   true,
		Share:    share,
	}
}

// requireContiguous asserts the arcs tile the full circle in order.
func requireContiguous(t *testing.T, g Geometry) {
	t.Helper()

	require.NotEmpty(t, g)
	require.InDelta(t, StartAngle, g[0].Start, 1e-9)

	for i := 1; i < len(g); i++ {
		require.InDelta(t, g[i-1].End, g[i].Start, 1e-9)
	}

	last := g[len(g)-1]
	require.InDelta(t, StartAngle+2*math.Pi, last.End, 1e-9)
}

// TestNaturalGeometry tests the share proportional resting layout.
func TestNaturalGeometry(t *testing.T) {
	t.Parallel()

	segments := []*asdiv.Aggregate{
		seg(1, 50), seg(2, 30), others(20),
	}

	g := NaturalGeometry(segments)
	require.Len(t, g, 3)
	requireContiguous(t, g)

	require.InDelta(t, math.Pi, g[0].Span(), 1e-9)
	require.InDelta(t, 0.3*2*math.Pi, g[1].Span(), 1e-9)
	require.InDelta(t, 0.2*2*math.Pi, g[2].Span(), 1e-9)

	arc, ok := g.Arc(2)
	require.True(t, ok)
	require.Equal(t, g[1], arc)

	_, ok = g.Arc(9)
	require.False(t, ok)

	require.Nil(t, NaturalGeometry(nil))
	require.Nil(t, NaturalGeometry([]*asdiv.Aggregate{seg(1, 0)}))
}

// TestExpandedGeometry tests the selected segment growing to its
// fixed fraction while the rest compress proportionally.
func TestExpandedGeometry(t *testing.T) {
	t.Parallel()

	segments := []*asdiv.Aggregate{
		seg(1, 50), seg(2, 30), seg(3, 20),
	}

	g := ExpandedGeometry(segments, 1)
	require.Len(t, g, 3)
	requireContiguous(t, g)

	full := 2 * math.Pi
	require.InDelta(t, full*ExpandedFraction, g[0].Span(), 1e-9)

	// The rest share the remaining third 30:20.
	rest := full * (1 - ExpandedFraction)
	require.InDelta(t, 0.6*rest, g[1].Span(), 1e-9)
	require.InDelta(t, 0.4*rest, g[2].Span(), 1e-9)

	// A middle selection keeps the display order.
	g = ExpandedGeometry(segments, 2)
	require.InDelta(t, full*ExpandedFraction, g[1].Span(), 1e-9)
	requireContiguous(t, g)

	// The only operator takes the whole circle.
	g = ExpandedGeometry([]*asdiv.Aggregate{seg(1, 100)}, 1)
	require.Len(t, g, 1)
	require.InDelta(t, full, g[0].Span(), 1e-9)

	// An operator without a segment leaves the natural layout.
	natural := NaturalGeometry(segments)
	require.Equal(t, natural, ExpandedGeometry(segments, 42))

	// The Others bucket never expands.
	withOthers := []*asdiv.Aggregate{seg(1, 70), others(30)}
	require.Equal(
		t, NaturalGeometry(withOthers),
		ExpandedGeometry(withOthers, 0),
	)
}

// TestSmoothstep tests the easing curve endpoints, clamping and
// midpoint.
func TestSmoothstep(t *testing.T) {
	t.Parallel()

	require.Zero(t, smoothstep(-1))
	require.Zero(t, smoothstep(0))
	require.Equal(t, 1.0, smoothstep(1))
	require.Equal(t, 1.0, smoothstep(2))
	require.InDelta(t, 0.5, smoothstep(0.5), 1e-9)
	require.InDelta(t, 0.15625, smoothstep(0.25), 1e-9)

	// Strictly increasing inside the unit interval.
	prev := 0.0
	for i := 1; i <= 10; i++ {
		v := smoothstep(float64(i) / 10)
		require.Greater(t, v, prev)
		prev = v
	}
}

// TestInterpolate tests arc blending, including a segment that has no
// counterpart in the starting geometry and grows out of its midpoint.
func TestInterpolate(t *testing.T) {
	t.Parallel()

	from := Geometry{
		{Operator: 1, Start: 0, End: 1},
		{Operator: 2, Start: 1, End: 2},
	}
	to := Geometry{
		{Operator: 1, Start: 0, End: 2},
		{Operator: 3, Start: 2, End: 4},
	}

	require.Equal(t, Geometry{
		{Operator: 1, Start: 0, End: 1},
		{Operator: 3, Start: 3, End: 3},
	}, interpolate(from, to, 0))

	require.Equal(t, to, interpolate(from, to, 1))

	mid := interpolate(from, to, 0.5)
	require.InDelta(t, 0.0, mid[0].Start, 1e-9)
	require.InDelta(t, 1.5, mid[0].End, 1e-9)
	require.InDelta(t, 2.5, mid[1].Start, 1e-9)
	require.InDelta(t, 3.5, mid[1].End, 1e-9)
}
