package icefloe

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/polarsim/icefloe/actor"
	"github.com/polarsim/icefloe/collision"
	"github.com/polarsim/icefloe/lcp"
)

// applyState writes a solved group's velocity corrections and impulse
// contributions back onto the floes, following the group's body
// enumeration: block 3i holds the linear velocity, 3i+2 the angular one.
// This is the only place the engine mutates floe kinematic state.
func applyState(floes []*actor.Floe, group *collision.Group, res lcp.Result) {
	for i, sceneIdx := range group.Floes {
		f := floes[sceneIdx]
		f.State.Speed = mgl64.Vec2{res.Velocities.AtVec(3 * i), res.Velocities.AtVec(3*i + 1)}
		f.State.Rot = res.Velocities.AtVec(3*i + 2)
		f.AddImpulse(res.Impulses[i])
	}
}
