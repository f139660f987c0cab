package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// BodyType represents the type of rigid body
type BodyType int

const (
	// BodyTypeDynamic bodies are affected by forces, gravity, and constraints
	// They have finite mass and can move freely
	BodyTypeDynamic BodyType = iota

	// BodyTypeStatic bodies are immovable and have infinite mass
	// They are not affected by forces or constraints (e.g., ground, walls)
	BodyTypeStatic

	// BodyTypeKinematic bodies move with their own velocity but have infinite mass:
	// constraints never push them back
	BodyTypeKinematic
)

func (t BodyType) String() string {
	switch t {
	case BodyTypeDynamic:
		return "dynamic"
	case BodyTypeStatic:
		return "static"
	case BodyTypeKinematic:
		return "kinematic"
	default:
		return "unknown"
	}
}

type Material struct {
	Density     float64
	mass        float64
	Restitution float64 // 0= no rebound, 1= perfect restitution
	Friction    float64

	LinearDamping  float64 // 0.0 - 1.0, typical : 0.01
	AngularDamping float64 // 0.0 - 1.0, typical : 0.05
}

func (material Material) GetMass() float64 {
	return material.mass
}

// RigidBody represents a rigid body in the physics simulation
type RigidBody struct {
	// ID is the insertion index assigned by the world. It is the stable key used
	// for deterministic ordering and warm-start lookups.
	ID int

	Transform Transform

	Velocity        mgl64.Vec3 // Linear velocity (m/s)
	AngularVelocity mgl64.Vec3 // rad/s

	InertiaLocal        mgl64.Mat3
	InverseInertiaLocal mgl64.Mat3
	inverseMass         float64

	accumulatedForce  mgl64.Vec3
	accumulatedTorque mgl64.Vec3

	IsSleeping bool
	SleepTimer float64

	Material Material
	BodyType BodyType

	// Shape only provides mass properties, collision lives outside the solver
	Shape ShapeInterface
}

// NewRigidBody creates a new rigid body with the given properties
// density is used to calculate mass for dynamic bodies (ignored for static and kinematic)
func NewRigidBody(transform Transform, shape ShapeInterface, bodyType BodyType, density float64) *RigidBody {
	if transform.Rotation == (mgl64.Quat{}) {
		transform.Rotation = mgl64.QuatIdent()
	}
	transform.InverseRotation = transform.Rotation.Inverse()

	rb := &RigidBody{
		Transform: transform,
		Shape:     shape,
		BodyType:  bodyType,
	}

	if bodyType == BodyTypeDynamic {
		rb.Material.Density = density
		rb.SetMass(shape.ComputeMass(density))
	} else {
		rb.SetMass(math.Inf(1))
	}

	return rb
}

// SetMass changes the body mass and recomputes inertia and every inverse from it.
// A mass of 0 or +Inf, or a non dynamic body type, yields zero inverse mass.
func (rb *RigidBody) SetMass(mass float64) {
	rb.Material.mass = mass

	if rb.BodyType != BodyTypeDynamic || mass <= 0 || math.IsInf(mass, 1) {
		rb.inverseMass = 0
		rb.InertiaLocal = mgl64.Mat3{}
		rb.InverseInertiaLocal = mgl64.Mat3{}
		return
	}

	rb.inverseMass = 1.0 / mass
	if rb.Shape == nil {
		rb.InertiaLocal = mgl64.Ident3().Mul(mass)
	} else {
		rb.InertiaLocal = rb.Shape.ComputeInertia(mass)
	}
	if rb.InertiaLocal.Det() == 0 {
		rb.InverseInertiaLocal = mgl64.Mat3{}
	} else {
		rb.InverseInertiaLocal = rb.InertiaLocal.Inv()
	}
}

// SetBodyType switches the body type and keeps the mass data consistent with it
func (rb *RigidBody) SetBodyType(bodyType BodyType) {
	rb.BodyType = bodyType
	if bodyType == BodyTypeDynamic && rb.Shape != nil {
		rb.SetMass(rb.Shape.ComputeMass(rb.Material.Density))
		return
	}
	rb.SetMass(math.Inf(1))
}

func (rb *RigidBody) GetMass() float64 {
	return rb.Material.mass
}

// GetInverseMass returns 0 for static and kinematic bodies
func (rb *RigidBody) GetInverseMass() float64 {
	return rb.inverseMass
}

func (rb *RigidBody) IsDynamic() bool {
	return rb.BodyType == BodyTypeDynamic
}

// IsStatic reports bodies that constraints can never move: static and kinematic
func (rb *RigidBody) IsStatic() bool {
	return rb.BodyType != BodyTypeDynamic
}

// UpdateSleepTimer accumulates idle time while both velocities stay under their threshold
func (rb *RigidBody) UpdateSleepTimer(dt float64, linearThreshold float64, angularThreshold float64) {
	if rb.Velocity.Len() < linearThreshold && rb.AngularVelocity.Len() < angularThreshold {
		rb.SleepTimer += dt
	} else {
		rb.SleepTimer = 0.0
	}
}

func (rb *RigidBody) Sleep() {
	rb.IsSleeping = true
	rb.SleepTimer = 0.0

	rb.ClearForces()
	rb.Velocity = mgl64.Vec3{}
	rb.AngularVelocity = mgl64.Vec3{}
}

func (rb *RigidBody) Awake() {
	rb.IsSleeping = false
	rb.SleepTimer = 0.0
}

// IntegrateVelocity applies gravity, accumulated forces and damping (first half of semi-implicit Euler)
func (rb *RigidBody) IntegrateVelocity(dt float64, gravity mgl64.Vec3) {
	if rb.BodyType != BodyTypeDynamic || rb.IsSleeping {
		return
	}

	acceleration := gravity.Add(rb.accumulatedForce.Mul(rb.inverseMass))
	rb.Velocity = rb.Velocity.Add(acceleration.Mul(dt))
	rb.Velocity = rb.Velocity.Mul(math.Exp(-rb.Material.LinearDamping * dt))

	angularAccel := rb.GetInverseInertiaWorld().Mul3x1(rb.accumulatedTorque)
	rb.AngularVelocity = rb.AngularVelocity.Add(angularAccel.Mul(dt))
	rb.AngularVelocity = rb.AngularVelocity.Mul(math.Exp(-rb.Material.AngularDamping * dt))

	rb.ClearForces()
}

// IntegratePosition advances the transform from the current velocities (second half of semi-implicit Euler)
func (rb *RigidBody) IntegratePosition(dt float64) {
	if rb.BodyType == BodyTypeStatic || rb.IsSleeping {
		return
	}

	rb.Transform.Position = rb.Transform.Position.Add(rb.Velocity.Mul(dt))

	if rb.AngularVelocity.Len() == 0 {
		return
	}
	omegaQuat := mgl64.Quat{V: rb.AngularVelocity, W: 0}
	qDot := omegaQuat.Mul(rb.Transform.Rotation).Scale(0.5)
	rb.Transform.Rotation = rb.Transform.Rotation.Add(qDot.Scale(dt)).Normalize()
	rb.Transform.InverseRotation = rb.Transform.Rotation.Inverse()
}

// ApplyImpulse changes the velocities by an impulse applied at arm (world offset from the center of mass)
func (rb *RigidBody) ApplyImpulse(impulse mgl64.Vec3, arm mgl64.Vec3) {
	if rb.BodyType != BodyTypeDynamic {
		return
	}
	rb.Velocity = rb.Velocity.Add(impulse.Mul(rb.inverseMass))
	rb.AngularVelocity = rb.AngularVelocity.Add(rb.GetInverseInertiaWorld().Mul3x1(arm.Cross(impulse)))
}

// Translate moves the body directly, used by position correction
func (rb *RigidBody) Translate(delta mgl64.Vec3) {
	if rb.BodyType != BodyTypeDynamic {
		return
	}
	rb.Transform.Position = rb.Transform.Position.Add(delta)
}

// Rotate applies a small rotation vector, used by position correction
// For a small angle δθ, the rotation quaternion is q_delta ≈ [1, δθ/2]
func (rb *RigidBody) Rotate(delta mgl64.Vec3) {
	if rb.BodyType != BodyTypeDynamic || delta.Len() < 1e-12 {
		return
	}
	qDelta := mgl64.Quat{W: 1.0, V: delta.Mul(0.5)}.Normalize()
	rb.Transform.Rotation = qDelta.Mul(rb.Transform.Rotation).Normalize()
	rb.Transform.InverseRotation = rb.Transform.Rotation.Inverse()
}

// AddForce wakes the body, the force is consumed by the next velocity integration
func (rb *RigidBody) AddForce(force mgl64.Vec3) {
	if rb.BodyType == BodyTypeDynamic {
		rb.Awake()

		rb.accumulatedForce = rb.accumulatedForce.Add(force)
	}
}

func (rb *RigidBody) AddTorque(torque mgl64.Vec3) {
	if rb.BodyType == BodyTypeDynamic {
		rb.Awake()

		rb.accumulatedTorque = rb.accumulatedTorque.Add(torque)
	}
}

func (rb *RigidBody) ClearForces() {
	rb.accumulatedForce = mgl64.Vec3{0, 0, 0}
	rb.accumulatedTorque = mgl64.Vec3{0, 0, 0}
}

// LocalToWorld transforms a point from body space to world space
func (rb *RigidBody) LocalToWorld(local mgl64.Vec3) mgl64.Vec3 {
	return rb.Transform.Position.Add(rb.Transform.Rotation.Rotate(local))
}

// WorldToLocal transforms a point from world space to body space
func (rb *RigidBody) WorldToLocal(world mgl64.Vec3) mgl64.Vec3 {
	return rb.Transform.InverseRotation.Rotate(world.Sub(rb.Transform.Position))
}

// Inertie en espace monde
func (rb *RigidBody) GetInertiaWorld() mgl64.Mat3 {
	// I_world = R * I_local * R^T
	R := rb.Transform.Rotation.Mat4().Mat3()
	return R.Mul3(rb.InertiaLocal).Mul3(R.Transpose())
}

// GetInverseInertiaWorld is zero for static and kinematic bodies
func (rb *RigidBody) GetInverseInertiaWorld() mgl64.Mat3 {
	if rb.BodyType != BodyTypeDynamic {
		return mgl64.Mat3{}
	}

	// I_world^(-1) = R * I_local^(-1) * R^T
	R := rb.Transform.Rotation.Mat4().Mat3()
	return R.Mul3(rb.InverseInertiaLocal).Mul3(R.Transpose())
}
