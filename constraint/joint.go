package constraint

import (
	"math"

	"github.com/akmonengine/impulse/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// BallSocketJoint keeps one anchor per body coincident in world space:
// translation fully locked, rotation free. It is bilateral, persistent, and
// carries its accumulated impulse from step to step.
type BallSocketJoint struct {
	Base

	// Anchors fixed in each body's local frame
	LocalAnchor1 mgl64.Vec3
	LocalAnchor2 mgl64.Vec3

	// Impulse is the accumulated impulse applied to body2 (body1 receives the opposite)
	Impulse mgl64.Vec3

	r1            mgl64.Vec3
	r2            mgl64.Vec3
	effectiveMass mgl64.Mat3
}

// NewBallSocketJoint creates a joint pivoting around a shared world-space anchor
func NewBallSocketJoint(body1, body2 *actor.RigidBody, worldAnchor mgl64.Vec3) (*BallSocketJoint, error) {
	if body1 == nil || body2 == nil {
		return nil, &InvalidConstraintError{Type: TypeBallSocketJoint, Wrapped: ErrNilBody}
	}

	return NewBallSocketJointLocal(body1, body2, body1.WorldToLocal(worldAnchor), body2.WorldToLocal(worldAnchor))
}

// NewBallSocketJointLocal creates a joint from anchors expressed in each body's local frame
func NewBallSocketJointLocal(body1, body2 *actor.RigidBody, localAnchor1, localAnchor2 mgl64.Vec3) (*BallSocketJoint, error) {
	base, err := NewBase(body1, body2, true, TypeBallSocketJoint)
	if err != nil {
		return nil, err
	}

	return &BallSocketJoint{
		Base:         base,
		LocalAnchor1: localAnchor1,
		LocalAnchor2: localAnchor2,
	}, nil
}

// ComputeEffectiveMass builds and inverts the 3x3 mass matrix for the current lever arms
func (j *BallSocketJoint) ComputeEffectiveMass(step *Step) {
	j.r1 = j.body1.Transform.Rotation.Rotate(j.LocalAnchor1)
	j.r2 = j.body2.Transform.Rotation.Rotate(j.LocalAnchor2)
	j.effectiveMass = invertMatrix(j.massMatrix(j.r1, j.r2))
}

func (j *BallSocketJoint) WarmStart(step *Step) {
	if !step.WarmStarting {
		j.Impulse = mgl64.Vec3{}
		return
	}
	j.apply(j.Impulse)
}

// SolveVelocity drives the relative velocity of the anchors to zero, no clamping
func (j *BallSocketJoint) SolveVelocity(step *Step) {
	relativeVel := velocityAt(j.body2, j.r2).Sub(velocityAt(j.body1, j.r1))
	lambda := j.effectiveMass.Mul3x1(relativeVel).Mul(-1)

	j.Impulse = j.Impulse.Add(lambda)
	j.apply(lambda)
}

// SolvePosition removes Beta of the anchor gap, with the mass matrix rebuilt from the current pose
func (j *BallSocketJoint) SolvePosition(step *Step) {
	body1 := j.body1
	body2 := j.body2

	r1 := body1.Transform.Rotation.Rotate(j.LocalAnchor1)
	r2 := body2.Transform.Rotation.Rotate(j.LocalAnchor2)
	positionError := body2.Transform.Position.Add(r2).Sub(body1.Transform.Position.Add(r1))
	if positionError.Len() < 1e-12 {
		return
	}

	mass := invertMatrix(j.massMatrix(r1, r2))
	impulse := mass.Mul3x1(positionError.Mul(-step.Beta))

	I1 := body1.GetInverseInertiaWorld()
	I2 := body2.GetInverseInertiaWorld()

	body1.Translate(impulse.Mul(-body1.GetInverseMass()))
	body1.Rotate(I1.Mul3x1(r1.Cross(impulse.Mul(-1))))
	body2.Translate(impulse.Mul(body2.GetInverseMass()))
	body2.Rotate(I2.Mul3x1(r2.Cross(impulse)))
}

// WorldAnchors returns the anchor of each body in world space
func (j *BallSocketJoint) WorldAnchors() (mgl64.Vec3, mgl64.Vec3) {
	return j.body1.LocalToWorld(j.LocalAnchor1), j.body2.LocalToWorld(j.LocalAnchor2)
}

// AnchorError is the world-space distance between both anchors
func (j *BallSocketJoint) AnchorError() float64 {
	anchor1, anchor2 := j.WorldAnchors()
	return anchor2.Sub(anchor1).Len()
}

// massMatrix K = (m1 + m2) I - [r1]x I1 [r1]x - [r2]x I2 [r2]x
func (j *BallSocketJoint) massMatrix(r1, r2 mgl64.Vec3) mgl64.Mat3 {
	k := mgl64.Ident3().Mul(j.body1.GetInverseMass() + j.body2.GetInverseMass())

	skew1 := skew(r1)
	skew2 := skew(r2)
	k = k.Sub(skew1.Mul3(j.body1.GetInverseInertiaWorld()).Mul3(skew1))
	k = k.Sub(skew2.Mul3(j.body2.GetInverseInertiaWorld()).Mul3(skew2))

	return k
}

func (j *BallSocketJoint) apply(impulse mgl64.Vec3) {
	j.body1.ApplyImpulse(impulse.Mul(-1), j.r1)
	j.body2.ApplyImpulse(impulse, j.r2)
}

// invertMatrix returns the zero matrix for near-singular input: the joint turns into a no-op
func invertMatrix(k mgl64.Mat3) mgl64.Mat3 {
	if math.Abs(k.Det()) < 1e-12 {
		return mgl64.Mat3{}
	}
	return k.Inv()
}
