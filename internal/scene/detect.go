package scene

import (
	"math"

	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/constraint"
	"github.com/go-gl/mathgl/mgl64"
)

// Detect is the demo narrow phase: sphere/sphere and sphere/box pairs yield a
// single point manifold, other pairs are ignored. Normals point from Body2 to Body1.
func Detect(pairs []Pair) []constraint.Manifold {
	manifolds := make([]constraint.Manifold, 0, len(pairs))

	for _, pair := range pairs {
		var manifold constraint.Manifold
		var ok bool

		switch {
		case isSphere(pair.BodyA) && isSphere(pair.BodyB):
			manifold, ok = sphereSphere(pair.BodyA, pair.BodyB)
		case isSphere(pair.BodyA) && isBox(pair.BodyB):
			manifold, ok = sphereBox(pair.BodyA, pair.BodyB)
		case isBox(pair.BodyA) && isSphere(pair.BodyB):
			manifold, ok = sphereBox(pair.BodyB, pair.BodyA)
		}

		if ok {
			manifolds = append(manifolds, manifold)
		}
	}

	return manifolds
}

func isSphere(body *actor.RigidBody) bool {
	_, ok := body.Shape.(*actor.Sphere)
	return ok
}

func isBox(body *actor.RigidBody) bool {
	_, ok := body.Shape.(*actor.Box)
	return ok
}

func sphereSphere(a, b *actor.RigidBody) (constraint.Manifold, bool) {
	radiusA := a.Shape.(*actor.Sphere).Radius
	radiusB := b.Shape.(*actor.Sphere).Radius

	delta := a.Transform.Position.Sub(b.Transform.Position)
	distance := delta.Len()
	penetration := radiusA + radiusB - distance
	if penetration <= 0 {
		return constraint.Manifold{}, false
	}

	// Concentric spheres are pushed apart along Y
	normal := mgl64.Vec3{0, 1, 0}
	if distance > 1e-9 {
		normal = delta.Mul(1 / distance)
	}

	point := b.Transform.Position.Add(normal.Mul(radiusB - penetration/2))

	return constraint.Manifold{
		Body1:  a,
		Body2:  b,
		Normal: normal,
		Points: []constraint.ManifoldPoint{{Position: point, Penetration: penetration}},
	}, true
}

func sphereBox(sphere, box *actor.RigidBody) (constraint.Manifold, bool) {
	radius := sphere.Shape.(*actor.Sphere).Radius
	halfExtents := box.Shape.(*actor.Box).HalfExtents

	local := box.WorldToLocal(sphere.Transform.Position)
	closest := mgl64.Vec3{
		clamp(local.X(), -halfExtents.X(), halfExtents.X()),
		clamp(local.Y(), -halfExtents.Y(), halfExtents.Y()),
		clamp(local.Z(), -halfExtents.Z(), halfExtents.Z()),
	}

	var normalLocal mgl64.Vec3
	var penetration float64

	diff := local.Sub(closest)
	if distance := diff.Len(); distance > 1e-9 {
		if distance >= radius {
			return constraint.Manifold{}, false
		}
		normalLocal = diff.Mul(1 / distance)
		penetration = radius - distance
	} else {
		// Center inside the box: leave through the nearest face
		axis := 0
		depth := math.Inf(1)
		for i := range 3 {
			if d := halfExtents[i] - math.Abs(local[i]); d < depth {
				depth = d
				axis = i
			}
		}
		sign := 1.0
		if local[axis] < 0 {
			sign = -1.0
		}
		normalLocal[axis] = sign
		closest[axis] = sign * halfExtents[axis]
		penetration = radius + depth
	}

	normal := box.Transform.Rotation.Rotate(normalLocal)
	boxSurface := box.LocalToWorld(closest)
	sphereDeepest := sphere.Transform.Position.Sub(normal.Mul(radius))

	return constraint.Manifold{
		Body1:  sphere,
		Body2:  box,
		Normal: normal,
		Points: []constraint.ManifoldPoint{{
			Position:    boxSurface.Add(sphereDeepest).Mul(0.5),
			Penetration: penetration,
		}},
	}, true
}

func clamp(value, lower, upper float64) float64 {
	return math.Max(lower, math.Min(value, upper))
}
