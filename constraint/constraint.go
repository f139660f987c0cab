package constraint

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/akmonengine/impulse/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// Type tags the family a constraint belongs to
type Type int

const (
	TypeContact Type = iota
	TypeBallSocketJoint
)

func (t Type) String() string {
	switch t {
	case TypeContact:
		return "CONTACT"
	case TypeBallSocketJoint:
		return "BALL_SOCKET_JOINT"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

var (
	// ErrNilBody indicates a constraint built with a missing body reference.
	ErrNilBody = errors.New("constraint: nil body")

	// ErrSameBody indicates a constraint coupling a body with itself.
	ErrSameBody = errors.New("constraint: body1 and body2 are the same body")

	// ErrUnknownCombineRule indicates an unrecognized combination rule name.
	ErrUnknownCombineRule = errors.New("constraint: unknown combine rule")
)

// InvalidConstraintError reports a structurally invalid constraint construction.
type InvalidConstraintError struct {
	Type    Type
	Wrapped error
}

func (e *InvalidConstraintError) Error() string {
	return fmt.Sprintf("invalid %s constraint: %v", e.Type, e.Wrapped)
}

func (e *InvalidConstraintError) Unwrap() error {
	return e.Wrapped
}

// Constraint is the capability set the solver runs against. The solver never
// inspects the concrete type.
type Constraint interface {
	Body1() *actor.RigidBody
	Body2() *actor.RigidBody
	IsActive() bool
	Type() Type

	// ComputeEffectiveMass precomputes lever arms, effective masses and biases for this step
	ComputeEffectiveMass(step *Step)
	// WarmStart reapplies the accumulated impulses of the previous step
	WarmStart(step *Step)
	// SolveVelocity runs one velocity iteration
	SolveVelocity(step *Step)
	// SolvePosition runs one position correction iteration
	SolvePosition(step *Step)
}

// Base holds the record shared by every constraint. Bodies are non-owning
// references, the world manages their lifetime.
type Base struct {
	body1  *actor.RigidBody
	body2  *actor.RigidBody
	active bool
	kind   Type
}

func NewBase(body1, body2 *actor.RigidBody, active bool, kind Type) (Base, error) {
	if body1 == nil || body2 == nil {
		return Base{}, &InvalidConstraintError{Type: kind, Wrapped: ErrNilBody}
	}
	if body1 == body2 {
		return Base{}, &InvalidConstraintError{Type: kind, Wrapped: ErrSameBody}
	}

	return Base{body1: body1, body2: body2, active: active, kind: kind}, nil
}

func (b *Base) Body1() *actor.RigidBody {
	return b.body1
}

func (b *Base) Body2() *actor.RigidBody {
	return b.body2
}

func (b *Base) IsActive() bool {
	return b.active
}

// SetActive toggles whether the solver visits this constraint, it is the only mutable field
func (b *Base) SetActive(active bool) {
	b.active = active
}

func (b *Base) Type() Type {
	return b.kind
}

// Step carries the per-step tuning shared by every constraint of an island
type Step struct {
	Dt float64
	// Beta is the fraction of the position error removed per position iteration
	Beta float64
	// Slop is the penetration allowed without correction
	Slop float64
	// MaxCorrection caps the positional nudge of a single iteration
	MaxCorrection float64
	// RestitutionThreshold is the approach speed below which contacts do not bounce
	RestitutionThreshold float64
	WarmStarting         bool
}

// CombineRule merges the coefficients of both bodies into the one used by a contact
type CombineRule int

const (
	CombineGeometricMean CombineRule = iota
	CombineAverage
	CombineMinimum
	CombineMaximum
	CombineMultiply
)

var combineRuleNames = map[CombineRule]string{
	CombineGeometricMean: "geometric",
	CombineAverage:       "average",
	CombineMinimum:       "minimum",
	CombineMaximum:       "maximum",
	CombineMultiply:      "multiply",
}

func (r CombineRule) String() string {
	if name, ok := combineRuleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("CombineRule(%d)", int(r))
}

// ParseCombineRule accepts the names returned by CombineRule.String, case-insensitive
func ParseCombineRule(name string) (CombineRule, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for rule, ruleName := range combineRuleNames {
		if ruleName == name {
			return rule, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCombineRule, name)
}

func (r CombineRule) Combine(a, b float64) float64 {
	switch r {
	case CombineAverage:
		return (a + b) / 2.0
	case CombineMinimum:
		return math.Min(a, b)
	case CombineMaximum:
		return math.Max(a, b)
	case CombineMultiply:
		return a * b
	default:
		return math.Sqrt(a * b)
	}
}

// CombineRules selects how friction and restitution are merged
type CombineRules struct {
	Friction    CombineRule
	Restitution CombineRule
}

// DefaultCombineRules is geometric mean for friction, average for restitution
var DefaultCombineRules = CombineRules{
	Friction:    CombineGeometricMean,
	Restitution: CombineAverage,
}

func ComputeRestitution(rules CombineRules, matA, matB actor.Material) float64 {
	return rules.Restitution.Combine(matA.Restitution, matB.Restitution)
}

func ComputeFriction(rules CombineRules, matA, matB actor.Material) float64 {
	return rules.Friction.Combine(matA.Friction, matB.Friction)
}

// skew returns the matrix [v]x such that [v]x * w = v x w
func skew(v mgl64.Vec3) mgl64.Mat3 {
	// column-major
	return mgl64.Mat3{
		0, v.Z(), -v.Y(),
		-v.Z(), 0, v.X(),
		v.Y(), -v.X(), 0,
	}
}

// angularMass returns (I_inv (r x d)) . (r x d), the angular share of an effective mass along d
func angularMass(inverseInertia mgl64.Mat3, r, d mgl64.Vec3) float64 {
	rxd := r.Cross(d)
	return inverseInertia.Mul3x1(rxd).Dot(rxd)
}

func velocityAt(rb *actor.RigidBody, r mgl64.Vec3) mgl64.Vec3 {
	return rb.Velocity.Add(rb.AngularVelocity.Cross(r))
}

// tangentBasis returns two unit vectors orthogonal to normal and to each other
func tangentBasis(normal mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	var tangent1 mgl64.Vec3
	if math.Abs(normal.X()) > 0.9 {
		tangent1 = mgl64.Vec3{0, 1, 0}
	} else {
		tangent1 = mgl64.Vec3{1, 0, 0}
	}

	tangent1 = tangent1.Sub(normal.Mul(tangent1.Dot(normal))).Normalize()
	tangent2 := normal.Cross(tangent1).Normalize()

	return tangent1, tangent2
}
