package actor

import (
	"github.com/go-gl/mathgl/mgl64"
)

// State holds the kinematic state of a floe: position and orientation,
// linear velocity and angular (rotational) velocity.
type State struct {
	Pos   mgl64.Vec2
	Theta float64
	// Linear velocity (m/s)
	Speed mgl64.Vec2
	// Angular velocity (rad/s)
	Rot float64
}

// Floe represents one rigid ice floe in the simulation.
// The collision engine reads and writes velocities; it never owns floes.
type Floe struct {
	State State

	// Physical properties
	Mass   float64
	Moment float64 // moment of inertia around the center of mass

	// Outline is the boundary polygon in body-local coordinates,
	// relative to the center of mass.
	Outline []mgl64.Vec2

	impulse float64
}

// NewFloe creates a floe with the given outline, mass and moment of inertia.
func NewFloe(outline []mgl64.Vec2, mass, moment float64) *Floe {
	return &Floe{
		Outline: outline,
		Mass:    mass,
		Moment:  moment,
	}
}

// AddImpulse accumulates the scalar contact impulse received during one
// resolution pass. The total is kept for diagnostics and coupling.
func (f *Floe) AddImpulse(impulse float64) {
	f.impulse += impulse
}

// ResetImpulse clears the accumulated impulse, typically once per timestep.
func (f *Floe) ResetImpulse() {
	f.impulse = 0
}

// Impulse returns the accumulated contact impulse.
func (f *Floe) Impulse() float64 {
	return f.impulse
}

// KineticEnergy returns the total kinetic energy of the floe.
func (f *Floe) KineticEnergy() float64 {
	v2 := f.State.Speed.Dot(f.State.Speed)
	return 0.5 * (f.Mass*v2 + f.Moment*f.State.Rot*f.State.Rot)
}

// Integrate advances position and orientation with the current velocities.
// Velocities themselves are only changed by the collision engine.
func (f *Floe) Integrate(dt float64) {
	f.State.Pos = f.State.Pos.Add(f.State.Speed.Mul(dt))
	f.State.Theta += f.State.Rot * dt
}

// WorldOutline returns the boundary polygon in world coordinates for the
// current position and orientation.
func (f *Floe) WorldOutline() []mgl64.Vec2 {
	out := make([]mgl64.Vec2, len(f.Outline))
	rot := mgl64.Rotate2D(f.State.Theta)
	for i, p := range f.Outline {
		out[i] = f.State.Pos.Add(rot.Mul2x1(p))
	}
	return out
}
