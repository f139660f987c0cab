// Package island partitions bodies and constraints into independent groups.
// Two dynamic bodies share an island when an active constraint couples them,
// directly or through other dynamic bodies. Static and kinematic bodies never
// join islands: they only anchor constraints of the island they touch.
package island

import (
	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/constraint"
)

// Island is a set of dynamic bodies solved together, with every active constraint attached to them
type Island struct {
	// Bodies in insertion order, dynamic only
	Bodies []*actor.RigidBody
	// Constraints in input order
	Constraints []constraint.Constraint

	// Sleeping islands are skipped by the solver
	Sleeping bool
	// Woken lists the bodies this build woke up
	Woken []*actor.RigidBody
}

// unionFind over body indices, path compression and union by rank
type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{
		parent: make([]int, n),
		rank:   make([]int, n),
	}
	for i := range uf.parent {
		uf.parent[i] = i
	}

	return uf
}

func (uf *unionFind) find(i int) int {
	root := i
	for uf.parent[root] != root {
		root = uf.parent[root]
	}
	for uf.parent[i] != root {
		i, uf.parent[i] = uf.parent[i], root
	}

	return root
}

// union links both sets; on equal ranks the smaller index becomes the root
func (uf *unionFind) union(a, b int) {
	rootA := uf.find(a)
	rootB := uf.find(b)
	if rootA == rootB {
		return
	}

	switch {
	case uf.rank[rootA] < uf.rank[rootB]:
		uf.parent[rootA] = rootB
	case uf.rank[rootA] > uf.rank[rootB]:
		uf.parent[rootB] = rootA
	default:
		if rootB < rootA {
			rootA, rootB = rootB, rootA
		}
		uf.parent[rootB] = rootA
		uf.rank[rootA]++
	}
}

// Build groups bodies into islands. The result only depends on the order of
// bodies and constraints: islands are sorted by their smallest body index.
// A constraint referencing a body missing from bodies is a contract violation.
func Build(bodies []*actor.RigidBody, constraints []constraint.Constraint) []*Island {
	indices := make(map[*actor.RigidBody]int, len(bodies))
	for i, body := range bodies {
		assert(body != nil, "nil body at index %d", i)
		indices[body] = i
	}

	uf := newUnionFind(len(bodies))

	// Constraints that survive validation, with the index of a dynamic body
	type attached struct {
		constraint constraint.Constraint
		anchor     int
	}
	valid := make([]attached, 0, len(constraints))

	for _, c := range constraints {
		if !c.IsActive() {
			continue
		}

		i1, ok1 := indices[c.Body1()]
		i2, ok2 := indices[c.Body2()]
		if !ok1 || !ok2 {
			assert(false, "%s constraint references a body outside the world", c.Type())
			continue
		}

		dynamic1 := bodies[i1].IsDynamic()
		dynamic2 := bodies[i2].IsDynamic()
		switch {
		case dynamic1 && dynamic2:
			uf.union(i1, i2)
			valid = append(valid, attached{constraint: c, anchor: i1})
		case dynamic1:
			valid = append(valid, attached{constraint: c, anchor: i1})
		case dynamic2:
			valid = append(valid, attached{constraint: c, anchor: i2})
		}
	}

	islands := make([]*Island, 0)
	byRoot := make(map[int]*Island)
	for i, body := range bodies {
		if !body.IsDynamic() {
			continue
		}

		root := uf.find(i)
		isl, ok := byRoot[root]
		if !ok {
			isl = &Island{}
			byRoot[root] = isl
			islands = append(islands, isl)
		}
		isl.Bodies = append(isl.Bodies, body)
	}

	// A moving kinematic body keeps the island it touches awake
	touchesMovingKinematic := make(map[*Island]bool)
	for _, a := range valid {
		isl := byRoot[uf.find(a.anchor)]
		isl.Constraints = append(isl.Constraints, a.constraint)

		for _, body := range [2]*actor.RigidBody{a.constraint.Body1(), a.constraint.Body2()} {
			if body.BodyType == actor.BodyTypeKinematic && isMoving(body) {
				touchesMovingKinematic[isl] = true
			}
		}
	}

	for _, isl := range islands {
		isl.resolveSleep(touchesMovingKinematic[isl])
	}

	return islands
}

// resolveSleep marks a fully sleeping island, or wakes the whole island when it is mixed
func (isl *Island) resolveSleep(forceAwake bool) {
	sleeping := 0
	for _, body := range isl.Bodies {
		if body.IsSleeping {
			sleeping++
		}
	}

	if sleeping == len(isl.Bodies) && !forceAwake {
		isl.Sleeping = true
		return
	}
	if sleeping == 0 {
		return
	}

	for _, body := range isl.Bodies {
		if body.IsSleeping {
			body.Awake()
			isl.Woken = append(isl.Woken, body)
		}
	}
}

func isMoving(body *actor.RigidBody) bool {
	return body.Velocity.LenSqr() > 0 || body.AngularVelocity.LenSqr() > 0
}
