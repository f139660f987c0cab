package impulse

import (
	"github.com/akmonengine/impulse/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// Integrator advances bodies between the solver phases. The world calls
// IntegrateVelocity before the constraints are solved and IntegratePosition
// between the velocity and the position iterations.
type Integrator interface {
	IntegrateVelocity(body *actor.RigidBody, dt float64, gravity mgl64.Vec3)
	IntegratePosition(body *actor.RigidBody, dt float64)
}

// SemiImplicitEuler updates velocities first, then positions from the new velocities
type SemiImplicitEuler struct{}

func (SemiImplicitEuler) IntegrateVelocity(body *actor.RigidBody, dt float64, gravity mgl64.Vec3) {
	body.IntegrateVelocity(dt, gravity)
}

func (SemiImplicitEuler) IntegratePosition(body *actor.RigidBody, dt float64) {
	body.IntegratePosition(dt)
}
