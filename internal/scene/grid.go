package scene

import (
	"math"
	"sort"

	"github.com/akmonengine/impulse/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// CellKey - cell coordinates in world space
type CellKey struct {
	X, Y, Z int
}

// Cell - body indices stored in a cell
type Cell struct {
	bodyIndices []int
}

// Pair - bodies whose bounds overlap, BodyA has the lowest index
type Pair struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody
}

// SpatialGrid - uniform hashed grid used as broad phase
type SpatialGrid struct {
	cellSize float64
	cells    []Cell
	cellMask int
}

// NewSpatialGrid - numCells is rounded up to a power of two
func NewSpatialGrid(cellSize float64, numCells int) *SpatialGrid {
	numCells = nextPowerOfTwo(numCells)

	cells := make([]Cell, numCells)
	for i := range cells {
		cells[i].bodyIndices = make([]int, 0, 8)
	}

	return &SpatialGrid{
		cellSize: cellSize,
		cells:    cells,
		cellMask: numCells - 1,
	}
}

func nextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n++
	return n
}

// Insert - stores a body in every cell its bounds touch
func (sg *SpatialGrid) Insert(bodyIndex int, bounds AABB) {
	minCell := sg.worldToCell(bounds.Min)
	maxCell := sg.worldToCell(bounds.Max)

	for x := minCell.X; x <= maxCell.X; x++ {
		for y := minCell.Y; y <= maxCell.Y; y++ {
			for z := minCell.Z; z <= maxCell.Z; z++ {
				cellIdx := sg.hashCell(CellKey{x, y, z})
				sg.cells[cellIdx].bodyIndices = append(sg.cells[cellIdx].bodyIndices, bodyIndex)
			}
		}
	}
}

func (sg *SpatialGrid) Clear() {
	for i := range sg.cells {
		sg.cells[i].bodyIndices = sg.cells[i].bodyIndices[:0]
	}
}

// FindPairs returns every overlapping pair once, ordered by body index.
// Pairs of two non-dynamic or two sleeping bodies are skipped.
func (sg *SpatialGrid) FindPairs(bodies []*actor.RigidBody) []Pair {
	sg.Clear()
	bounds := make([]AABB, len(bodies))
	for i, body := range bodies {
		bounds[i] = boundsOf(body)
		sg.Insert(i, bounds[i])
	}

	pairs := make([]Pair, 0, len(bodies)/2)
	seen := make(map[int]bool)

	for bodyIdx, bodyA := range bodies {
		clear(seen)
		minCell := sg.worldToCell(bounds[bodyIdx].Min)
		maxCell := sg.worldToCell(bounds[bodyIdx].Max)

		var candidates []int
		for x := minCell.X; x <= maxCell.X; x++ {
			for y := minCell.Y; y <= maxCell.Y; y++ {
				for z := minCell.Z; z <= maxCell.Z; z++ {
					for _, otherIdx := range sg.cells[sg.hashCell(CellKey{x, y, z})].bodyIndices {
						// Avoids both (A,B) and (B,A), and a body seen in several cells
						if otherIdx <= bodyIdx || seen[otherIdx] {
							continue
						}
						seen[otherIdx] = true
						candidates = append(candidates, otherIdx)
					}
				}
			}
		}
		sort.Ints(candidates)

		for _, otherIdx := range candidates {
			bodyB := bodies[otherIdx]
			if !bodyA.IsDynamic() && !bodyB.IsDynamic() {
				continue
			}
			if bodyA.IsSleeping && bodyB.IsSleeping {
				continue
			}
			if bounds[bodyIdx].Overlaps(bounds[otherIdx]) {
				pairs = append(pairs, Pair{BodyA: bodyA, BodyB: bodyB})
			}
		}
	}

	return pairs
}

// worldToCell - world position to cell coordinates
func (sg *SpatialGrid) worldToCell(pos mgl64.Vec3) CellKey {
	return CellKey{
		X: int(math.Floor(pos.X() / sg.cellSize)),
		Y: int(math.Floor(pos.Y() / sg.cellSize)),
		Z: int(math.Floor(pos.Z() / sg.cellSize)),
	}
}

// hashCell - cell to slot index
func (sg *SpatialGrid) hashCell(key CellKey) int {
	h := (key.X * 73856093) ^ (key.Y * 19349663) ^ (key.Z * 83492791)
	return h & sg.cellMask
}
