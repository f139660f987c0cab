package scene

import (
	"github.com/akmonengine/impulse/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// AABB represents an axis-aligned bounding box
type AABB struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

// Overlaps checks if two AABBs overlap
func (a AABB) Overlaps(other AABB) bool {
	// AABBs overlap if they overlap on all three axes
	return a.Max.X() >= other.Min.X() && a.Min.X() <= other.Max.X() &&
		a.Max.Y() >= other.Min.Y() && a.Min.Y() <= other.Max.Y() &&
		a.Max.Z() >= other.Min.Z() && a.Min.Z() <= other.Max.Z()
}

// boundsOf returns the world AABB of a body. Boxes are bounded by their
// rotated corners, the extents only grow with the rotation.
func boundsOf(body *actor.RigidBody) AABB {
	position := body.Transform.Position

	switch shape := body.Shape.(type) {
	case *actor.Sphere:
		r := mgl64.Vec3{shape.Radius, shape.Radius, shape.Radius}
		return AABB{Min: position.Sub(r), Max: position.Add(r)}
	case *actor.Box:
		R := body.Transform.Rotation.Mat4().Mat3()
		var extents mgl64.Vec3
		for i := range 3 {
			row := R.Row(i)
			extents[i] = abs(row.X())*shape.HalfExtents.X() + abs(row.Y())*shape.HalfExtents.Y() + abs(row.Z())*shape.HalfExtents.Z()
		}
		return AABB{Min: position.Sub(extents), Max: position.Add(extents)}
	default:
		return AABB{Min: position, Max: position}
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
