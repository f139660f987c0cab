package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/akmonengine/impulse/constraint"
	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"
)

const (
	DefaultVelocityIterations   = 8
	DefaultPositionIterations   = 3
	DefaultBeta                 = 0.2
	DefaultSlop                 = 0.005
	DefaultMaxCorrection        = 0.2
	DefaultRestitutionThreshold = 1.0
	DefaultSleepLinearVelocity  = 0.05
	DefaultSleepAngularVelocity = 0.05
	DefaultSleepTime            = 0.5
	DefaultWorkers              = 1
)

// ErrInvalidConfig is wrapped by every Validate failure
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config holds the solver tuning of a world
type Config struct {
	VelocityIterations   int     `yaml:"velocity_iterations"`
	PositionIterations   int     `yaml:"position_iterations"`
	Beta                 float64 `yaml:"beta"`
	Slop                 float64 `yaml:"slop"`
	MaxCorrection        float64 `yaml:"max_correction"`
	RestitutionThreshold float64 `yaml:"restitution_threshold"`
	WarmStarting         bool    `yaml:"warm_starting"`

	AllowSleep           bool    `yaml:"allow_sleep"`
	SleepLinearVelocity  float64 `yaml:"sleep_linear_velocity"`
	SleepAngularVelocity float64 `yaml:"sleep_angular_velocity"`
	SleepTime            float64 `yaml:"sleep_time"`

	FrictionCombine    string `yaml:"friction_combine"`
	RestitutionCombine string `yaml:"restitution_combine"`

	Workers int        `yaml:"workers"`
	Gravity [3]float64 `yaml:"gravity,flow"`
}

func DefaultConfig() *Config {
	return &Config{
		VelocityIterations:   DefaultVelocityIterations,
		PositionIterations:   DefaultPositionIterations,
		Beta:                 DefaultBeta,
		Slop:                 DefaultSlop,
		MaxCorrection:        DefaultMaxCorrection,
		RestitutionThreshold: DefaultRestitutionThreshold,
		WarmStarting:         true,
		AllowSleep:           true,
		SleepLinearVelocity:  DefaultSleepLinearVelocity,
		SleepAngularVelocity: DefaultSleepAngularVelocity,
		SleepTime:            DefaultSleepTime,
		FrictionCombine:      constraint.CombineGeometricMean.String(),
		RestitutionCombine:   constraint.CombineAverage.String(),
		Workers:              DefaultWorkers,
		Gravity:              [3]float64{0, -9.81, 0},
	}
}

// Load reads a YAML file on top of the defaults: missing keys keep their default value
func Load(path string) (*Config, error) {
	return LoadOnto(path, DefaultConfig())
}

// LoadOnto reads path over a copy of base, keys missing from the file keep
// the base values. base is left untouched.
func LoadOnto(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := *base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate reports the first out of range value
func (c *Config) Validate() error {
	switch {
	case c.VelocityIterations < 1:
		return fmt.Errorf("%w: velocity_iterations must be >= 1, got %d", ErrInvalidConfig, c.VelocityIterations)
	case c.PositionIterations < 0:
		return fmt.Errorf("%w: position_iterations must be >= 0, got %d", ErrInvalidConfig, c.PositionIterations)
	case !(c.Beta >= 0 && c.Beta <= 1):
		return fmt.Errorf("%w: beta must be within [0, 1], got %v", ErrInvalidConfig, c.Beta)
	case !nonNegative(c.Slop):
		return fmt.Errorf("%w: slop must be >= 0, got %v", ErrInvalidConfig, c.Slop)
	case !(c.MaxCorrection > 0) || math.IsInf(c.MaxCorrection, 1):
		return fmt.Errorf("%w: max_correction must be > 0, got %v", ErrInvalidConfig, c.MaxCorrection)
	case !nonNegative(c.RestitutionThreshold):
		return fmt.Errorf("%w: restitution_threshold must be >= 0, got %v", ErrInvalidConfig, c.RestitutionThreshold)
	case !nonNegative(c.SleepLinearVelocity) || !nonNegative(c.SleepAngularVelocity) || !nonNegative(c.SleepTime):
		return fmt.Errorf("%w: sleep thresholds must be >= 0", ErrInvalidConfig)
	case !finiteGravity(c.Gravity):
		return fmt.Errorf("%w: gravity must be finite, got %v", ErrInvalidConfig, c.Gravity)
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be >= 1, got %d", ErrInvalidConfig, c.Workers)
	}

	if _, err := c.CombineRules(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return nil
}

// nonNegative is false for NaN and +Inf
func nonNegative(v float64) bool {
	return v >= 0 && !math.IsInf(v, 1)
}

func finiteGravity(g [3]float64) bool {
	for _, v := range g {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// CombineRules parses the friction and restitution combination rules
func (c *Config) CombineRules() (constraint.CombineRules, error) {
	friction, err := constraint.ParseCombineRule(c.FrictionCombine)
	if err != nil {
		return constraint.CombineRules{}, fmt.Errorf("friction_combine: %w", err)
	}
	restitution, err := constraint.ParseCombineRule(c.RestitutionCombine)
	if err != nil {
		return constraint.CombineRules{}, fmt.Errorf("restitution_combine: %w", err)
	}

	return constraint.CombineRules{Friction: friction, Restitution: restitution}, nil
}

func (c *Config) GravityVec() mgl64.Vec3 {
	return mgl64.Vec3(c.Gravity)
}

// Step returns the per-step constraint tuning for a time step of dt
func (c *Config) Step(dt float64) *constraint.Step {
	return &constraint.Step{
		Dt:                   dt,
		Beta:                 c.Beta,
		Slop:                 c.Slop,
		MaxCorrection:        c.MaxCorrection,
		RestitutionThreshold: c.RestitutionThreshold,
		WarmStarting:         c.WarmStarting,
	}
}
