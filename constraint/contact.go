package constraint

import (
	"math"

	"github.com/akmonengine/impulse/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// Effective masses below this are treated as zero: the constraint becomes a no-op
const minEffectiveMass = 1e-10

// ManifoldPoint is one contact tuple delivered by the narrow phase
type ManifoldPoint struct {
	Position    mgl64.Vec3
	Penetration float64
	// FeatureID identifies the point across steps for warm starting
	FeatureID uint32
}

// Coefficients overrides the combined body materials of a manifold
type Coefficients struct {
	Friction    float64
	Restitution float64
}

// Manifold is the narrow phase output for one body pair.
// Normal points from Body2 to Body1.
type Manifold struct {
	Body1  *actor.RigidBody
	Body2  *actor.RigidBody
	Normal mgl64.Vec3
	Points []ManifoldPoint

	// Coefficients is optional, nil combines the body materials
	Coefficients *Coefficients
}

type ContactPoint struct {
	Position    mgl64.Vec3
	Penetration float64
	FeatureID   uint32

	// Accumulated impulses, seeded by the warm-start cache
	NormalImpulse  float64
	TangentImpulse [2]float64

	localAnchor1 mgl64.Vec3
	localAnchor2 mgl64.Vec3
	r1           mgl64.Vec3
	r2           mgl64.Vec3
	normalMass   float64
	tangentMass  [2]float64
	velocityBias float64
}

// ContactConstraint resolves non-penetration and Coulomb friction between two bodies
type ContactConstraint struct {
	Base

	Normal      mgl64.Vec3
	Tangents    [2]mgl64.Vec3
	Points      []ContactPoint
	Friction    float64
	Restitution float64

	degenerate bool
}

// NewContactConstraint builds a step-local contact from a manifold.
// A near-zero or non-finite normal yields an inert contact, not an error.
func NewContactConstraint(manifold Manifold, rules CombineRules) (*ContactConstraint, error) {
	base, err := NewBase(manifold.Body1, manifold.Body2, true, TypeContact)
	if err != nil {
		return nil, err
	}

	c := &ContactConstraint{
		Base:   base,
		Points: make([]ContactPoint, 0, len(manifold.Points)),
	}

	if manifold.Coefficients != nil {
		c.Friction = manifold.Coefficients.Friction
		c.Restitution = manifold.Coefficients.Restitution
	} else {
		c.Friction = ComputeFriction(rules, manifold.Body1.Material, manifold.Body2.Material)
		c.Restitution = ComputeRestitution(rules, manifold.Body1.Material, manifold.Body2.Material)
	}

	if !isFiniteVec(manifold.Normal) || manifold.Normal.Len() < 1e-9 {
		c.degenerate = true
	} else {
		c.Normal = manifold.Normal.Normalize()
		c.Tangents[0], c.Tangents[1] = tangentBasis(c.Normal)
	}

	for _, point := range manifold.Points {
		// Non-finite points are dropped, they would poison both bodies
		if !isFiniteVec(point.Position) || !isFinite(point.Penetration) {
			continue
		}
		c.Points = append(c.Points, ContactPoint{
			Position:     point.Position,
			Penetration:  point.Penetration,
			FeatureID:    point.FeatureID,
			localAnchor1: manifold.Body1.WorldToLocal(point.Position),
			localAnchor2: manifold.Body2.WorldToLocal(point.Position),
		})
	}

	return c, nil
}

// IsDegenerate reports a contact whose normal could not be normalized
func (c *ContactConstraint) IsDegenerate() bool {
	return c.degenerate
}

// ComputeEffectiveMass precomputes the normal and tangent masses and the restitution bias
func (c *ContactConstraint) ComputeEffectiveMass(step *Step) {
	if c.degenerate {
		return
	}

	body1 := c.body1
	body2 := c.body2
	invMass1 := body1.GetInverseMass()
	invMass2 := body2.GetInverseMass()
	I1 := body1.GetInverseInertiaWorld()
	I2 := body2.GetInverseInertiaWorld()

	for i := range c.Points {
		p := &c.Points[i]
		p.r1 = p.Position.Sub(body1.Transform.Position)
		p.r2 = p.Position.Sub(body2.Transform.Position)

		kNormal := invMass1 + invMass2 + angularMass(I1, p.r1, c.Normal) + angularMass(I2, p.r2, c.Normal)
		p.normalMass = invertScalar(kNormal)

		for j, tangent := range c.Tangents {
			kTangent := invMass1 + invMass2 + angularMass(I1, p.r1, tangent) + angularMass(I2, p.r2, tangent)
			p.tangentMass[j] = invertScalar(kTangent)
		}

		// Restitution target from the approach speed before any impulse of this step
		p.velocityBias = 0
		normalVel := velocityAt(body1, p.r1).Sub(velocityAt(body2, p.r2)).Dot(c.Normal)
		if normalVel < -step.RestitutionThreshold {
			p.velocityBias = -c.Restitution * normalVel
		}
	}
}

// WarmStart reapplies the accumulated impulses, or discards them when warm starting is off
func (c *ContactConstraint) WarmStart(step *Step) {
	if c.degenerate {
		return
	}

	for i := range c.Points {
		p := &c.Points[i]
		if !step.WarmStarting {
			p.NormalImpulse = 0
			p.TangentImpulse = [2]float64{}
			continue
		}

		impulse := c.Normal.Mul(p.NormalImpulse).
			Add(c.Tangents[0].Mul(p.TangentImpulse[0])).
			Add(c.Tangents[1].Mul(p.TangentImpulse[1]))
		c.apply(p, impulse)
	}
}

// SolveVelocity runs one sequential impulse pass: normal impulse clamped to >= 0,
// then box friction clamped to ±friction*normalImpulse on each tangent
func (c *ContactConstraint) SolveVelocity(step *Step) {
	if c.degenerate {
		return
	}

	for i := range c.Points {
		p := &c.Points[i]
		if p.normalMass == 0 {
			continue
		}

		// ========== NORMAL IMPULSE ==========
		normalVel := c.relativeVelocity(p).Dot(c.Normal)
		lambda := p.normalMass * (p.velocityBias - normalVel)

		// Accumulated clamping: the total impulse is never attractive
		newImpulse := math.Max(p.NormalImpulse+lambda, 0)
		lambda = newImpulse - p.NormalImpulse
		p.NormalImpulse = newImpulse
		c.apply(p, c.Normal.Mul(lambda))

		// ========== TANGENTIAL IMPULSE (friction) ==========
		maxFriction := c.Friction * p.NormalImpulse
		for j, tangent := range c.Tangents {
			if p.tangentMass[j] == 0 {
				continue
			}

			tangentVel := c.relativeVelocity(p).Dot(tangent)
			lambda := -tangentVel * p.tangentMass[j]

			newImpulse := clamp(p.TangentImpulse[j]+lambda, -maxFriction, maxFriction)
			lambda = newImpulse - p.TangentImpulse[j]
			p.TangentImpulse[j] = newImpulse
			c.apply(p, tangent.Mul(lambda))
		}
	}
}

// SolvePosition removes a fraction of the penetration beyond the slop by nudging
// positions directly, velocities are left untouched
func (c *ContactConstraint) SolvePosition(step *Step) {
	if c.degenerate {
		return
	}

	body1 := c.body1
	body2 := c.body2
	invMass1 := body1.GetInverseMass()
	invMass2 := body2.GetInverseMass()

	for i := range c.Points {
		p := &c.Points[i]

		// Separation is recomputed from the current transforms (non-linear Gauss-Seidel)
		point1 := body1.LocalToWorld(p.localAnchor1)
		point2 := body2.LocalToWorld(p.localAnchor2)
		separation := point1.Sub(point2).Dot(c.Normal) - p.Penetration

		correction := clamp(step.Beta*(separation+step.Slop), -step.MaxCorrection, 0)
		if correction >= 0 {
			continue
		}

		I1 := body1.GetInverseInertiaWorld()
		I2 := body2.GetInverseInertiaWorld()
		r1 := point1.Sub(body1.Transform.Position)
		r2 := point2.Sub(body2.Transform.Position)

		k := invMass1 + invMass2 + angularMass(I1, r1, c.Normal) + angularMass(I2, r2, c.Normal)
		if k < minEffectiveMass {
			continue
		}

		impulse := c.Normal.Mul(-correction / k)

		body1.Translate(impulse.Mul(invMass1))
		body1.Rotate(I1.Mul3x1(r1.Cross(impulse)))
		body2.Translate(impulse.Mul(-invMass2))
		body2.Rotate(I2.Mul3x1(r2.Cross(impulse.Mul(-1))))
	}
}

// Separation returns the current signed distance of a point along the normal, negative when penetrating
func (c *ContactConstraint) Separation(index int) float64 {
	p := &c.Points[index]
	point1 := c.body1.LocalToWorld(p.localAnchor1)
	point2 := c.body2.LocalToWorld(p.localAnchor2)
	return point1.Sub(point2).Dot(c.Normal) - p.Penetration
}

// TotalNormalImpulse sums the accumulated normal impulse over all points
func (c *ContactConstraint) TotalNormalImpulse() float64 {
	var total float64
	for _, p := range c.Points {
		total += p.NormalImpulse
	}
	return total
}

// relativeVelocity of body1 with respect to body2 at the contact point
func (c *ContactConstraint) relativeVelocity(p *ContactPoint) mgl64.Vec3 {
	return velocityAt(c.body1, p.r1).Sub(velocityAt(c.body2, p.r2))
}

// apply pushes body1 along +impulse and body2 along -impulse
func (c *ContactConstraint) apply(p *ContactPoint, impulse mgl64.Vec3) {
	c.body1.ApplyImpulse(impulse, p.r1)
	c.body2.ApplyImpulse(impulse.Mul(-1), p.r2)
}

func invertScalar(k float64) float64 {
	if k < minEffectiveMass {
		return 0
	}
	return 1.0 / k
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func isFiniteVec(v mgl64.Vec3) bool {
	return isFinite(v.X()) && isFinite(v.Y()) && isFinite(v.Z())
}

func clamp(value, lower, upper float64) float64 {
	return math.Max(lower, math.Min(value, upper))
}
