package grid

import "fmt"

// Edge labels number the boundary edges of a particle. A contracted
// particle has labels 0..5, label l being its edge in the l-th cardinal
// direction. An expanded particle has labels 0..9, walking the boundary
// of the two-node shape counter-clockwise starting at the head's edge in
// the expansion direction d: labels 0..2 are the head edges in
// directions d, d+1, d+2, labels 3..7 the tail edges in d+1..d+5, and
// labels 8..9 the head edges in d+4, d+5 (all mod 6). Two particles on
// either side of one geometric edge always resolve it to the same edge:
// the neighbor's label is its label in the opposite direction at the
// half occupying the adjacent node.

// ContractedLabels and ExpandedLabels are the label counts of the two
// expansion states.
const (
	ContractedLabels = 6
	ExpandedLabels   = 10
)

// LabelCount returns the number of edge labels for an expansion state.
func LabelCount(expanded bool) int {
	if expanded {
		return ExpandedLabels
	}
	return ContractedLabels
}

// LabelInDirection returns the label of the edge leaving the given half
// in cardinal direction dir. headDir is the tail-to-head expansion
// direction, or None for a contracted particle (fromHead is then
// ignored). Panics when dir points at the particle's other half.
func LabelInDirection(dir, headDir Direction, fromHead bool) int {
	dir.checkValid("LabelInDirection")
	if !dir.IsCardinal() {
		panic(fmt.Sprintf("grid: label lookup for secondary direction %s", dir))
	}
	if headDir == None {
		return dir.ToInt()
	}
	if !headDir.IsCardinal() {
		panic(fmt.Sprintf("grid: head direction %s is not cardinal", headDir))
	}
	d := headDir.ToInt()
	delta := (dir.ToInt() - d + 6) % 6
	if fromHead {
		switch delta {
		case 0, 1, 2:
			return delta
		case 4, 5:
			return delta + 4
		}
		panic(fmt.Sprintf("grid: head edge %s points at the tail", dir))
	}
	if delta == 0 {
		panic(fmt.Sprintf("grid: tail edge %s points at the head", dir))
	}
	return delta + 2
}

// DirectionOfLabel returns the cardinal direction of the labeled edge,
// leaving from the half reported by IsHeadLabel. headDir is None for a
// contracted particle.
func DirectionOfLabel(label int, headDir Direction) Direction {
	if headDir == None {
		if label < 0 || label >= ContractedLabels {
			panic(fmt.Sprintf("grid: contracted label %d out of range", label))
		}
		return FromInt(label, true)
	}
	if label < 0 || label >= ExpandedLabels {
		panic(fmt.Sprintf("grid: expanded label %d out of range", label))
	}
	d := headDir.ToInt()
	switch {
	case label <= 2:
		return FromInt((d+label)%6, true)
	case label <= 7:
		return FromInt((d+label-2)%6, true)
	default:
		return FromInt((d+label-4)%6, true)
	}
}

// IsHeadLabel reports whether the labeled edge leaves from the head.
// Every label of a contracted particle counts as a head label.
func IsHeadLabel(label int, headDir Direction) bool {
	if headDir == None {
		return true
	}
	return label <= 2 || label >= 8
}
