package impulse

import (
	"math"

	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/config"
	"github.com/akmonengine/impulse/constraint"
	"github.com/akmonengine/impulse/island"
)

type World struct {
	// List of all rigid bodies in the world, in insertion order
	Bodies []*actor.RigidBody
	// Persistent constraints (joints), solved every step until removed
	Joints []constraint.Constraint

	Config     *config.Config
	Integrator Integrator

	Events Events

	members map[*actor.RigidBody]struct{}
	nextID  int
	rules   constraint.CombineRules
	cache   *constraint.ContactCache

	islands []*island.Island
	stats   Stats
}

// Stats describes the last step
type Stats struct {
	Bodies          int
	SleepingBodies  int
	Islands         int
	SleepingIslands int
	Contacts        int
	ContactPoints   int
	WarmStarted     int
	Joints          int
}

// NewWorld creates an empty world, a nil cfg uses config.DefaultConfig
func NewWorld(cfg *config.Config) (*World, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rules, err := cfg.CombineRules()
	if err != nil {
		return nil, err
	}

	return &World{
		Config:     cfg,
		Integrator: SemiImplicitEuler{},
		Events:     NewEvents(),
		members:    make(map[*actor.RigidBody]struct{}),
		rules:      rules,
		cache:      constraint.NewContactCache(),
	}, nil
}

// AddBody adds a rigid body to the world and assigns its ID
func (w *World) AddBody(body *actor.RigidBody) {
	if _, ok := w.members[body]; ok {
		return
	}

	body.ID = w.nextID
	w.nextID++
	w.Bodies = append(w.Bodies, body)
	w.members[body] = struct{}{}
}

// RemoveBody removes a rigid body from the world, with the joints, cached
// impulses and event states referencing it
func (w *World) RemoveBody(body *actor.RigidBody) {
	k := -1
	for i, b := range w.Bodies {
		if b == body {
			k = i
			break
		}
	}

	if k == -1 {
		return
	}
	w.Bodies = append(w.Bodies[:k], w.Bodies[k+1:]...)
	delete(w.members, body)

	n := 0
	for _, j := range w.Joints {
		if j.Body1() != body && j.Body2() != body {
			w.Joints[n] = j
			n++
		}
	}
	clear(w.Joints[n:])
	w.Joints = w.Joints[:n]

	w.cache.Forget(body)
	w.Events.forget(body)
}

// AddJoint registers a persistent constraint and wakes both bodies
func (w *World) AddJoint(joint constraint.Constraint) error {
	for _, body := range []*actor.RigidBody{joint.Body1(), joint.Body2()} {
		if _, ok := w.members[body]; !ok {
			return ErrUnknownBody
		}
	}

	w.Joints = append(w.Joints, joint)
	joint.Body1().Awake()
	joint.Body2().Awake()

	return nil
}

func (w *World) RemoveJoint(joint constraint.Constraint) {
	for i, j := range w.Joints {
		if j == joint {
			w.Joints = append(w.Joints[:i], w.Joints[i+1:]...)
			return
		}
	}
}

// Islands returns the islands built by the last step
func (w *World) Islands() []*island.Island {
	return w.islands
}

func (w *World) Stats() Stats {
	return w.stats
}

// Step advances the world by dt. manifolds are the narrow phase output for
// this step, they are turned into contact constraints and discarded after.
// An invalid manifold aborts the step before any body is modified.
func (w *World) Step(dt float64, manifolds []constraint.Manifold) error {
	if dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return ErrInvalidTimeStep
	}

	// Phase 1: Contacts, validated before anything moves
	contacts, err := w.buildContacts(manifolds)
	if err != nil {
		return err
	}

	// Phase 2: Warm start seeds from the previous step
	warmStarted := 0
	if w.Config.WarmStarting {
		for _, c := range contacts {
			warmStarted += w.cache.Lookup(c)
		}
	}

	// Phase 3: Islands, built before integration so bodies woken by a mixed
	// island receive this step's gravity and forces
	constraints := make([]constraint.Constraint, 0, len(w.Joints)+len(contacts))
	constraints = append(constraints, w.Joints...)
	for _, c := range contacts {
		constraints = append(constraints, c)
	}
	w.islands = island.Build(w.Bodies, constraints)

	// Phase 4: Velocities from gravity, forces and damping
	w.integrateVelocities(dt)

	// Phase 5: Solver, islands are independent
	step := w.Config.Step(dt)
	task(w.Config.Workers, w.islands, func(isl *island.Island) {
		if isl.Sleeping {
			return
		}
		w.solveIsland(isl, step)
	})

	// Phase 6: Kinematic bodies follow their own velocity, after the solver read them
	for _, body := range w.Bodies {
		if body.BodyType == actor.BodyTypeKinematic {
			w.Integrator.IntegratePosition(body, dt)
		}
	}

	// Phase 7: Keep the impulses for the next step
	if w.Config.WarmStarting {
		w.cache.Store(contacts)
	} else {
		w.cache.Clear()
	}

	w.updateStats(contacts, warmStarted)

	w.Events.recordContacts(contacts)
	w.Events.processSleepEvents(w.Bodies)
	w.Events.flush()

	return nil
}

func (w *World) buildContacts(manifolds []constraint.Manifold) ([]*constraint.ContactConstraint, error) {
	contacts := make([]*constraint.ContactConstraint, 0, len(manifolds))
	for i, manifold := range manifolds {
		c, err := constraint.NewContactConstraint(manifold, w.rules)
		if err != nil {
			return nil, &ManifoldError{Index: i, Wrapped: err}
		}
		if _, ok := w.members[manifold.Body1]; !ok {
			return nil, &ManifoldError{Index: i, Wrapped: ErrUnknownBody}
		}
		if _, ok := w.members[manifold.Body2]; !ok {
			return nil, &ManifoldError{Index: i, Wrapped: ErrUnknownBody}
		}
		contacts = append(contacts, c)
	}

	return contacts, nil
}

func (w *World) integrateVelocities(dt float64) {
	gravity := w.Config.GravityVec()
	task(w.Config.Workers, w.Bodies, func(body *actor.RigidBody) {
		w.Integrator.IntegrateVelocity(body, dt, gravity)
	})
}

// solveIsland runs the sequential impulse solver on a single island
func (w *World) solveIsland(isl *island.Island, step *constraint.Step) {
	for _, c := range isl.Constraints {
		c.ComputeEffectiveMass(step)
	}
	for _, c := range isl.Constraints {
		c.WarmStart(step)
	}

	for range w.Config.VelocityIterations {
		for _, c := range isl.Constraints {
			c.SolveVelocity(step)
		}
	}

	for _, body := range isl.Bodies {
		w.Integrator.IntegratePosition(body, step.Dt)
	}

	for range w.Config.PositionIterations {
		for _, c := range isl.Constraints {
			c.SolvePosition(step)
		}
	}

	if w.Config.AllowSleep {
		w.trySleep(isl, step.Dt)
	}
}

// trySleep puts the whole island to sleep once every body stayed under the
// velocity thresholds for SleepTime
func (w *World) trySleep(isl *island.Island, dt float64) {
	canSleep := true
	for _, body := range isl.Bodies {
		body.UpdateSleepTimer(dt, w.Config.SleepLinearVelocity, w.Config.SleepAngularVelocity)
		if body.SleepTimer < w.Config.SleepTime {
			canSleep = false
		}
	}

	if !canSleep {
		return
	}
	for _, body := range isl.Bodies {
		body.Sleep()
	}
}

func (w *World) updateStats(contacts []*constraint.ContactConstraint, warmStarted int) {
	stats := Stats{
		Bodies:      len(w.Bodies),
		Islands:     len(w.islands),
		Contacts:    len(contacts),
		WarmStarted: warmStarted,
		Joints:      len(w.Joints),
	}
	for _, body := range w.Bodies {
		if body.IsSleeping {
			stats.SleepingBodies++
		}
	}
	for _, isl := range w.islands {
		if isl.Sleeping {
			stats.SleepingIslands++
		}
	}
	for _, c := range contacts {
		stats.ContactPoints += len(c.Points)
	}

	w.stats = stats
}
