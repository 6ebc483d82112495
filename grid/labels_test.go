package grid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContractedLabels(t *testing.T) {
	for l := 0; l < ContractedLabels; l++ {
		d := DirectionOfLabel(l, None)
		require.Equal(t, l, LabelInDirection(d, None, true))
		require.True(t, IsHeadLabel(l, None))
	}
}

func TestExpandedLabelRoundTrip(t *testing.T) {
	for _, headDir := range Cardinals {
		for l := 0; l < ExpandedLabels; l++ {
			d := DirectionOfLabel(l, headDir)
			fromHead := IsHeadLabel(l, headDir)
			require.Equal(t, l, LabelInDirection(d, headDir, fromHead),
				"headDir %s label %d dir %s", headDir, l, d)
		}
	}
}

func TestExpandedLabelWalkEast(t *testing.T) {
	// Head direction east: labels walk the boundary counter-clockwise
	// starting at the head's east edge.
	wantDirs := []Direction{E, NNE, NNW, NNE, NNW, W, SSW, SSE, SSW, SSE}
	wantHead := []bool{true, true, true, false, false, false, false, false, true, true}
	for l := 0; l < ExpandedLabels; l++ {
		require.Equal(t, wantDirs[l], DirectionOfLabel(l, E), "label %d", l)
		require.Equal(t, wantHead[l], IsHeadLabel(l, E), "label %d", l)
	}
}

func TestLabelsCoverAllBoundaryEdges(t *testing.T) {
	// Every label of an expanded particle addresses a distinct
	// (half, direction) edge, and none points at the partner node.
	for _, headDir := range Cardinals {
		head := Neighbor(Node{0, 0}, headDir, 1)
		tail := Node{0, 0}
		seen := map[Node]int{}
		for l := 0; l < ExpandedLabels; l++ {
			from := tail
			if IsHeadLabel(l, headDir) {
				from = head
			}
			target := Neighbor(from, DirectionOfLabel(l, headDir), 1)
			require.NotEqual(t, head, target, "label %d points at head", l)
			require.NotEqual(t, tail, target, "label %d points at tail", l)
			seen[target]++
		}
		// The union shape has 8 distinct surrounding nodes; the two
		// nodes touching both halves are reached by two labels each.
		require.Len(t, seen, 8, "headDir %s", headDir)
		double := 0
		for _, c := range seen {
			if c == 2 {
				double++
			}
		}
		require.Equal(t, 2, double, "headDir %s", headDir)
	}
}

func TestLabelTowardPartnerPanics(t *testing.T) {
	require.Panics(t, func() { LabelInDirection(W, E, true) })  // head toward tail
	require.Panics(t, func() { LabelInDirection(E, E, false) }) // tail toward head
	require.Panics(t, func() { LabelInDirection(NE, None, true) })
}
