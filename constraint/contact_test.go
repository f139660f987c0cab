package constraint

import (
	"errors"
	"math"
	"testing"

	"github.com/akmonengine/impulse/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// Helper function to create a dynamic unit sphere (radius 0.5) with the given mass
func createDynamicBody(position mgl64.Vec3, velocity mgl64.Vec3, mass float64) *actor.RigidBody {
	rb := actor.NewRigidBody(
		actor.NewTransformAt(position),
		&actor.Sphere{Radius: 0.5},
		actor.BodyTypeDynamic,
		1.0,
	)
	rb.SetMass(mass)
	rb.Velocity = velocity

	return rb
}

// Helper function to create a static rigid body
func createStaticBody(position mgl64.Vec3) *actor.RigidBody {
	return actor.NewRigidBody(
		actor.NewTransformAt(position),
		&actor.Sphere{Radius: 0.5},
		actor.BodyTypeStatic,
		0.0,
	)
}

func defaultStep() *Step {
	return &Step{
		Dt:                   1.0 / 60.0,
		Beta:                 0.2,
		Slop:                 0.005,
		MaxCorrection:        0.2,
		RestitutionThreshold: 1.0,
		WarmStarting:         true,
	}
}

func solve(c Constraint, step *Step, velocityIterations, positionIterations int) {
	c.ComputeEffectiveMass(step)
	c.WarmStart(step)
	for range velocityIterations {
		c.SolveVelocity(step)
	}
	for range positionIterations {
		c.SolvePosition(step)
	}
}

// sphereContact builds a manifold between a falling sphere (body1) resting on
// another body (body2) below it
func sphereContact(upper, lower *actor.RigidBody, penetration float64, coefficients *Coefficients) Manifold {
	point := upper.Transform.Position.Sub(mgl64.Vec3{0, 0.5 - penetration/2, 0})
	return Manifold{
		Body1:        upper,
		Body2:        lower,
		Normal:       mgl64.Vec3{0, 1, 0},
		Points:       []ManifoldPoint{{Position: point, Penetration: penetration}},
		Coefficients: coefficients,
	}
}

func TestContactConstraint_TwoSpheres(t *testing.T) {
	// Body A static at origin, body B falling onto A with 0.05 penetration
	bodyA := createStaticBody(mgl64.Vec3{0, 0, 0})
	bodyB := createDynamicBody(mgl64.Vec3{0, 0.95, 0}, mgl64.Vec3{0, -1, 0}, 1.0)

	c, err := NewContactConstraint(sphereContact(bodyB, bodyA, 0.05, &Coefficients{}), DefaultCombineRules)
	if err != nil {
		t.Fatal(err)
	}

	step := defaultStep()
	solve(c, step, 4, 0)

	if bodyB.Velocity.Y() < -1e-12 {
		t.Errorf("Velocity.Y = %v, want >= 0 (no further approach)", bodyB.Velocity.Y())
	}

	before := bodyB.Transform.Position.Y()
	c.SolvePosition(step)
	raised := bodyB.Transform.Position.Y() - before

	want := step.Beta * (0.05 - step.Slop)
	if !almostEqual(raised, want, 1e-9) {
		t.Errorf("position raised by %v, want beta*(penetration-slop) = %v", raised, want)
	}
	if bodyA.Transform.Position != (mgl64.Vec3{}) || bodyA.Velocity != (mgl64.Vec3{}) {
		t.Error("static body A was moved")
	}
}

func TestContactConstraint_StaticPairIsNoOp(t *testing.T) {
	bodyA := createStaticBody(mgl64.Vec3{0, 0, 0})
	bodyB := actor.NewRigidBody(actor.NewTransformAt(mgl64.Vec3{0, 0.9, 0}), &actor.Sphere{Radius: 0.5}, actor.BodyTypeKinematic, 0)
	bodyB.Velocity = mgl64.Vec3{0, -3, 0}

	c, err := NewContactConstraint(sphereContact(bodyB, bodyA, 0.1, nil), DefaultCombineRules)
	if err != nil {
		t.Fatal(err)
	}

	solve(c, defaultStep(), 10, 4)

	if bodyB.Velocity != (mgl64.Vec3{0, -3, 0}) {
		t.Errorf("kinematic Velocity = %v, want unchanged", bodyB.Velocity)
	}
	if bodyB.Transform.Position != (mgl64.Vec3{0, 0.9, 0}) {
		t.Errorf("kinematic Position = %v, want unchanged", bodyB.Transform.Position)
	}
	if c.TotalNormalImpulse() != 0 {
		t.Errorf("TotalNormalImpulse() = %v, want 0", c.TotalNormalImpulse())
	}
}

func TestContactConstraint_BelowSlopNoCorrection(t *testing.T) {
	bodyA := createStaticBody(mgl64.Vec3{0, 0, 0})
	bodyB := createDynamicBody(mgl64.Vec3{0, 0.997, 0}, mgl64.Vec3{}, 1.0)

	c, _ := NewContactConstraint(sphereContact(bodyB, bodyA, 0.003, nil), DefaultCombineRules)

	before := bodyB.Transform
	solve(c, defaultStep(), 0, 4)

	if bodyB.Transform.Position != before.Position {
		t.Errorf("Position = %v, want unchanged below slop", bodyB.Transform.Position)
	}
}

func TestContactConstraint_PositionCorrectionClamped(t *testing.T) {
	bodyA := createStaticBody(mgl64.Vec3{0, 0, 0})
	bodyB := createDynamicBody(mgl64.Vec3{0, 0.5, 0}, mgl64.Vec3{}, 1.0)

	c, _ := NewContactConstraint(sphereContact(bodyB, bodyA, 5.0, nil), DefaultCombineRules)

	step := defaultStep()
	before := bodyB.Transform.Position.Y()
	c.SolvePosition(step)

	if raised := bodyB.Transform.Position.Y() - before; !almostEqual(raised, step.MaxCorrection, 1e-9) {
		t.Errorf("raised = %v, want MaxCorrection %v", raised, step.MaxCorrection)
	}
}

func TestContactConstraint_SeparatingNoImpulse(t *testing.T) {
	bodyA := createStaticBody(mgl64.Vec3{0, 0, 0})
	bodyB := createDynamicBody(mgl64.Vec3{0, 0.95, 0}, mgl64.Vec3{0, 1, 0}, 1.0)

	c, _ := NewContactConstraint(sphereContact(bodyB, bodyA, 0.05, nil), DefaultCombineRules)
	solve(c, defaultStep(), 8, 0)

	if !vec3AlmostEqual(bodyB.Velocity, mgl64.Vec3{0, 1, 0}, 1e-12) {
		t.Errorf("Velocity = %v, separating contact must not pull", bodyB.Velocity)
	}
	if c.Points[0].NormalImpulse != 0 {
		t.Errorf("NormalImpulse = %v, want 0", c.Points[0].NormalImpulse)
	}
}

func TestContactConstraint_Restitution(t *testing.T) {
	tests := []struct {
		name      string
		approach  float64
		wantAfter float64
	}{
		{"bounces above threshold", -2.0, 2.0},
		{"rests below threshold", -0.5, 0.0},
		{"no restitution at zero velocity", 0.0, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bodyA := createStaticBody(mgl64.Vec3{0, 0, 0})
			bodyB := createDynamicBody(mgl64.Vec3{0, 1, 0}, mgl64.Vec3{0, tt.approach, 0}, 1.0)

			c, _ := NewContactConstraint(sphereContact(bodyB, bodyA, 0.0, &Coefficients{Restitution: 1.0}), DefaultCombineRules)
			solve(c, defaultStep(), 8, 0)

			if !almostEqual(bodyB.Velocity.Y(), tt.wantAfter, 1e-9) {
				t.Errorf("Velocity.Y = %v, want %v", bodyB.Velocity.Y(), tt.wantAfter)
			}
		})
	}
}

func TestContactConstraint_FrictionClampedByNormalImpulse(t *testing.T) {
	bodyA := createStaticBody(mgl64.Vec3{0, 0, 0})
	bodyB := createDynamicBody(mgl64.Vec3{0, 1, 0}, mgl64.Vec3{1, -1, 0}, 1.0)

	c, _ := NewContactConstraint(sphereContact(bodyB, bodyA, 0.0, &Coefficients{Friction: 0.1}), DefaultCombineRules)
	solve(c, defaultStep(), 4, 0)

	p := c.Points[0]
	if !almostEqual(p.NormalImpulse, 1.0, 1e-9) {
		t.Errorf("NormalImpulse = %v, want 1", p.NormalImpulse)
	}
	if !almostEqual(p.TangentImpulse[0], -0.1, 1e-9) {
		t.Errorf("TangentImpulse[0] = %v, want -friction*normal = -0.1", p.TangentImpulse[0])
	}
	if math.Abs(p.TangentImpulse[1]) > 1e-9 {
		t.Errorf("TangentImpulse[1] = %v, want 0", p.TangentImpulse[1])
	}
	if !almostEqual(bodyB.Velocity.X(), 0.9, 1e-9) {
		t.Errorf("Velocity.X = %v, want 0.9", bodyB.Velocity.X())
	}
	// The friction impulse spins the sphere
	if bodyB.AngularVelocity.Z() >= 0 {
		t.Errorf("AngularVelocity = %v, want negative spin around Z", bodyB.AngularVelocity)
	}
}

func TestContactConstraint_FrictionlessKeepsTangentVelocity(t *testing.T) {
	bodyA := createStaticBody(mgl64.Vec3{0, 0, 0})
	bodyB := createDynamicBody(mgl64.Vec3{0, 1, 0}, mgl64.Vec3{2, -1, 0.5}, 1.0)

	c, _ := NewContactConstraint(sphereContact(bodyB, bodyA, 0.0, &Coefficients{}), DefaultCombineRules)
	solve(c, defaultStep(), 4, 0)

	if !vec3AlmostEqual(bodyB.Velocity, mgl64.Vec3{2, 0, 0.5}, 1e-9) {
		t.Errorf("Velocity = %v, want {2, 0, 0.5}", bodyB.Velocity)
	}
}

func TestContactConstraint_WarmStartConverges(t *testing.T) {
	gravityStep := mgl64.Vec3{0, -9.81 / 60.0, 0}

	bodyA := createStaticBody(mgl64.Vec3{0, 0, 0})
	bodyA.ID = 0
	bodyB := createDynamicBody(mgl64.Vec3{0, 1, 0}, gravityStep, 1.0)
	bodyB.ID = 1

	cache := NewContactCache()
	step := defaultStep()

	correction := func() float64 {
		c, err := NewContactConstraint(sphereContact(bodyB, bodyA, 0.0, nil), DefaultCombineRules)
		if err != nil {
			t.Fatal(err)
		}
		cache.Lookup(c)
		c.ComputeEffectiveMass(step)
		c.WarmStart(step)

		before := bodyB.Velocity
		for range 4 {
			c.SolveVelocity(step)
		}
		cache.Store([]*ContactConstraint{c})

		return bodyB.Velocity.Sub(before).Len()
	}

	first := correction()
	bodyB.Velocity = bodyB.Velocity.Add(gravityStep)
	second := correction()

	if first <= 0 {
		t.Fatalf("first correction = %v, want > 0", first)
	}
	if second > first {
		t.Errorf("second correction %v > first %v, warm starting must not slow convergence", second, first)
	}
	if second > 1e-9 {
		t.Errorf("second correction = %v, want ~0 for an unchanged resting contact", second)
	}
}

func TestContactConstraint_WarmStartDisabled(t *testing.T) {
	bodyA := createStaticBody(mgl64.Vec3{0, 0, 0})
	bodyB := createDynamicBody(mgl64.Vec3{0, 1, 0}, mgl64.Vec3{}, 1.0)

	c, _ := NewContactConstraint(sphereContact(bodyB, bodyA, 0.0, nil), DefaultCombineRules)
	c.Points[0].NormalImpulse = 5
	c.Points[0].TangentImpulse = [2]float64{1, 1}

	step := defaultStep()
	step.WarmStarting = false
	c.ComputeEffectiveMass(step)
	c.WarmStart(step)

	if c.Points[0].NormalImpulse != 0 || c.Points[0].TangentImpulse != [2]float64{} {
		t.Errorf("impulses = %v %v, want reset", c.Points[0].NormalImpulse, c.Points[0].TangentImpulse)
	}
	if bodyB.Velocity != (mgl64.Vec3{}) {
		t.Errorf("Velocity = %v, want untouched", bodyB.Velocity)
	}
}

func TestContactConstraint_DegenerateNormal(t *testing.T) {
	bodyA := createStaticBody(mgl64.Vec3{0, 0, 0})
	bodyB := createDynamicBody(mgl64.Vec3{0, 0.9, 0}, mgl64.Vec3{0, -1, 0}, 1.0)

	manifold := sphereContact(bodyB, bodyA, 0.1, nil)
	manifold.Normal = mgl64.Vec3{1e-12, 0, 0}

	c, err := NewContactConstraint(manifold, DefaultCombineRules)
	if err != nil {
		t.Fatalf("degenerate normal must not be an error: %v", err)
	}
	if !c.IsDegenerate() {
		t.Fatal("IsDegenerate() = false")
	}

	solve(c, defaultStep(), 4, 4)

	if bodyB.Velocity != (mgl64.Vec3{0, -1, 0}) || bodyB.Transform.Position != (mgl64.Vec3{0, 0.9, 0}) {
		t.Error("degenerate contact modified the body")
	}
}

func TestContactConstraint_NonFiniteNormal(t *testing.T) {
	tests := []struct {
		name   string
		normal mgl64.Vec3
	}{
		{"NaN component", mgl64.Vec3{math.NaN(), 1, 0}},
		{"all NaN", mgl64.Vec3{math.NaN(), math.NaN(), math.NaN()}},
		{"positive infinity", mgl64.Vec3{0, math.Inf(1), 0}},
		{"negative infinity", mgl64.Vec3{math.Inf(-1), 1, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bodyA := createStaticBody(mgl64.Vec3{0, 0, 0})
			bodyB := createDynamicBody(mgl64.Vec3{0, 0.9, 0}, mgl64.Vec3{0, -1, 0}, 1.0)

			manifold := sphereContact(bodyB, bodyA, 0.1, nil)
			manifold.Normal = tt.normal

			c, err := NewContactConstraint(manifold, DefaultCombineRules)
			if err != nil {
				t.Fatalf("non-finite normal must not be an error: %v", err)
			}
			if !c.IsDegenerate() {
				t.Fatal("IsDegenerate() = false")
			}

			solve(c, defaultStep(), 4, 2)

			if bodyB.Velocity != (mgl64.Vec3{0, -1, 0}) || bodyB.Transform.Position != (mgl64.Vec3{0, 0.9, 0}) {
				t.Errorf("body modified: vel %v pos %v", bodyB.Velocity, bodyB.Transform.Position)
			}
		})
	}
}

func TestContactConstraint_NonFinitePointsDropped(t *testing.T) {
	bodyA := createStaticBody(mgl64.Vec3{0, 0, 0})
	bodyB := createDynamicBody(mgl64.Vec3{0, 0.9, 0}, mgl64.Vec3{0, -1, 0}, 1.0)

	manifold := Manifold{
		Body1:  bodyB,
		Body2:  bodyA,
		Normal: mgl64.Vec3{0, 1, 0},
		Points: []ManifoldPoint{
			{Position: mgl64.Vec3{0, 0.45, 0}, Penetration: math.NaN(), FeatureID: 0},
			{Position: mgl64.Vec3{math.Inf(1), 0.45, 0}, Penetration: 0.1, FeatureID: 1},
			{Position: mgl64.Vec3{0, 0.45, 0}, Penetration: 0.1, FeatureID: 2},
		},
	}

	c, err := NewContactConstraint(manifold, DefaultCombineRules)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Points) != 1 || c.Points[0].FeatureID != 2 {
		t.Fatalf("kept points = %+v, want only feature 2", c.Points)
	}

	solve(c, defaultStep(), 8, 2)

	if !isFiniteVec(bodyB.Velocity) || !isFiniteVec(bodyB.Transform.Position) {
		t.Fatalf("body poisoned: vel %v pos %v", bodyB.Velocity, bodyB.Transform.Position)
	}
	if bodyB.Velocity.Y() < -1e-6 {
		t.Errorf("Velocity.Y() = %v, the finite point did not stop the approach", bodyB.Velocity.Y())
	}
}

func TestContactConstraint_MultiplePointsEqualAndOpposite(t *testing.T) {
	bodyA := createDynamicBody(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 1, 0}, 2.0)
	bodyB := createDynamicBody(mgl64.Vec3{0, 0.9, 0}, mgl64.Vec3{0, -1, 0}, 1.0)

	manifold := Manifold{
		Body1:  bodyB,
		Body2:  bodyA,
		Normal: mgl64.Vec3{0, 1, 0},
		Points: []ManifoldPoint{
			{Position: mgl64.Vec3{0.1, 0.45, 0}, Penetration: 0.1, FeatureID: 0},
			{Position: mgl64.Vec3{-0.1, 0.45, 0}, Penetration: 0.1, FeatureID: 1},
		},
		Coefficients: &Coefficients{},
	}
	c, _ := NewContactConstraint(manifold, DefaultCombineRules)

	momentumBefore := bodyA.Velocity.Mul(bodyA.GetMass()).Add(bodyB.Velocity.Mul(bodyB.GetMass()))
	solve(c, defaultStep(), 30, 0)
	momentumAfter := bodyA.Velocity.Mul(bodyA.GetMass()).Add(bodyB.Velocity.Mul(bodyB.GetMass()))

	if !vec3AlmostEqual(momentumBefore, momentumAfter, 1e-9) {
		t.Errorf("linear momentum %v -> %v, impulses are not equal and opposite", momentumBefore, momentumAfter)
	}
	relative := bodyB.Velocity.Sub(bodyA.Velocity).Y()
	if relative < -1e-3 {
		t.Errorf("relative normal velocity = %v, want >= 0", relative)
	}
}

func TestNewContactConstraint_Errors(t *testing.T) {
	body := createDynamicBody(mgl64.Vec3{}, mgl64.Vec3{}, 1)

	_, err := NewContactConstraint(Manifold{Body1: body, Body2: body, Normal: mgl64.Vec3{0, 1, 0}}, DefaultCombineRules)
	if !errors.Is(err, ErrSameBody) {
		t.Errorf("error = %v, want ErrSameBody", err)
	}

	_, err = NewContactConstraint(Manifold{Body1: body, Normal: mgl64.Vec3{0, 1, 0}}, DefaultCombineRules)
	if !errors.Is(err, ErrNilBody) {
		t.Errorf("error = %v, want ErrNilBody", err)
	}
}

func TestNewContactConstraint_CombinesMaterials(t *testing.T) {
	bodyA := createStaticBody(mgl64.Vec3{0, 0, 0})
	bodyA.Material.Friction = 0.25
	bodyA.Material.Restitution = 0.2
	bodyB := createDynamicBody(mgl64.Vec3{0, 1, 0}, mgl64.Vec3{}, 1)
	bodyB.Material.Friction = 1.0
	bodyB.Material.Restitution = 0.6

	c, _ := NewContactConstraint(sphereContact(bodyB, bodyA, 0, nil), DefaultCombineRules)
	if !almostEqual(c.Friction, 0.5, 1e-12) || !almostEqual(c.Restitution, 0.4, 1e-12) {
		t.Errorf("Friction = %v, Restitution = %v, want 0.5, 0.4", c.Friction, c.Restitution)
	}

	c, _ = NewContactConstraint(sphereContact(bodyB, bodyA, 0, &Coefficients{Friction: 0.7, Restitution: 0.1}), DefaultCombineRules)
	if c.Friction != 0.7 || c.Restitution != 0.1 {
		t.Errorf("override ignored: Friction = %v, Restitution = %v", c.Friction, c.Restitution)
	}
}

// Helper function to compare floats with epsilon tolerance
func almostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}

func vec3AlmostEqual(a, b mgl64.Vec3, epsilon float64) bool {
	return almostEqual(a.X(), b.X(), epsilon) &&
		almostEqual(a.Y(), b.Y(), epsilon) &&
		almostEqual(a.Z(), b.Z(), epsilon)
}
