// Package scene builds small demo worlds and feeds them contact manifolds
// from a spatial grid broad phase and a sphere/box narrow phase.
package scene

import (
	"fmt"
	"sort"

	"github.com/akmonengine/impulse"
	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/config"
	"github.com/akmonengine/impulse/constraint"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	gridCellSize = 2.0
	gridCells    = 1024
)

// Scene is a world plus the collision pipeline that drives it
type Scene struct {
	Name  string
	World *impulse.World
	// Tracked is the body reported by the runner
	Tracked *actor.RigidBody

	grid *SpatialGrid
}

// Step detects the contacts of the current poses and advances the world by dt
func (s *Scene) Step(dt float64) error {
	return s.World.Step(dt, s.Manifolds())
}

// Manifolds runs the broad and narrow phases on the current poses
func (s *Scene) Manifolds() []constraint.Manifold {
	return Detect(s.grid.FindPairs(s.World.Bodies))
}

type builder func(s *Scene) error

var scenarios = map[string]builder{
	"drop":     buildDrop,
	"stack":    buildStack,
	"pendulum": buildPendulum,
}

// Names lists the available scenarios
func Names() []string {
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the named scenario in a world configured by cfg
func New(name string, cfg *config.Config) (*Scene, error) {
	build, ok := scenarios[name]
	if !ok {
		return nil, fmt.Errorf("unknown scenario %q (available: %v)", name, Names())
	}

	world, err := impulse.NewWorld(cfg)
	if err != nil {
		return nil, err
	}

	s := &Scene{
		Name:  name,
		World: world,
		grid:  NewSpatialGrid(gridCellSize, gridCells),
	}
	if err := build(s); err != nil {
		return nil, err
	}

	return s, nil
}

func ground() *actor.RigidBody {
	body := actor.NewRigidBody(
		actor.NewTransformAt(mgl64.Vec3{0, -0.5, 0}),
		&actor.Box{HalfExtents: mgl64.Vec3{20, 0.5, 20}},
		actor.BodyTypeStatic,
		0,
	)
	body.Material.Friction = 0.6
	body.Material.Restitution = 0.5

	return body
}

func ball(position mgl64.Vec3, radius float64) *actor.RigidBody {
	body := actor.NewRigidBody(actor.NewTransformAt(position), &actor.Sphere{Radius: radius}, actor.BodyTypeDynamic, 1.0)
	body.Material.Friction = 0.6
	body.Material.AngularDamping = 0.05

	return body
}

// buildDrop - a bouncing ball on the ground
func buildDrop(s *Scene) error {
	s.World.AddBody(ground())

	b := ball(mgl64.Vec3{0, 3, 0}, 0.5)
	b.Material.Restitution = 0.5
	s.World.AddBody(b)
	s.Tracked = b

	return nil
}

// buildStack - a column of touching balls resting on the ground
func buildStack(s *Scene) error {
	s.World.AddBody(ground())

	const radius = 0.5
	for i := range 5 {
		b := ball(mgl64.Vec3{0, radius + float64(i)*2*radius, 0}, radius)
		s.World.AddBody(b)
		s.Tracked = b
	}

	return nil
}

// buildPendulum - a chain of balls hanging from a static pivot, released horizontally
func buildPendulum(s *Scene) error {
	s.World.AddBody(ground())

	pivot := actor.NewRigidBody(actor.NewTransformAt(mgl64.Vec3{0, 6, 0}), &actor.Sphere{Radius: 0.1}, actor.BodyTypeStatic, 0)
	s.World.AddBody(pivot)

	previous := pivot
	for i := 1; i <= 3; i++ {
		link := ball(mgl64.Vec3{float64(i), 6, 0}, 0.25)
		s.World.AddBody(link)

		anchor := previous.Transform.Position.Add(link.Transform.Position).Mul(0.5)
		if previous == pivot {
			anchor = pivot.Transform.Position
		}
		joint, err := constraint.NewBallSocketJoint(previous, link, anchor)
		if err != nil {
			return err
		}
		if err := s.World.AddJoint(joint); err != nil {
			return err
		}

		previous = link
		s.Tracked = link
	}

	return nil
}
