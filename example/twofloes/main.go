// Two square floes on a head-on collision course, resolved by the LCP
// engine and recorded to a state file.
package main

import (
	"fmt"
	"log"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/polarsim/icefloe"
	"github.com/polarsim/icefloe/actor"
	"github.com/polarsim/icefloe/collision"
	"github.com/polarsim/icefloe/store"
)

// gapDetector is a minimal stand-in for the geometric detection stage: it
// reports one contact between floes 0 and 1 whenever their facing edges
// come close enough.
type gapDetector struct {
	halfWidth float64
}

func (d gapDetector) DetectCollisions(floes []*actor.Floe) *collision.Graph {
	graph := &collision.Graph{NumFloes: len(floes)}
	f1, f2 := floes[0], floes[1]
	gap := f2.State.Pos.X() - f1.State.Pos.X() - 2*d.halfWidth
	if gap > 0.5 {
		return graph
	}
	if gap < 0 {
		gap = 0
	}
	mid := mgl64.Vec2{f1.State.Pos.X() + d.halfWidth + gap/2, 0}
	graph.Edges = append(graph.Edges, collision.NewContact(0, 1, []collision.ContactPoint{{
		Pos:     mid,
		Normal:  mgl64.Vec2{1, 0},
		Tangent: mgl64.Vec2{0, 1},
		Dist:    gap,
	}}))
	return graph
}

func square(half float64) []mgl64.Vec2 {
	return []mgl64.Vec2{{-half, -half}, {half, -half}, {half, half}, {-half, half}}
}

func main() {
	const dt = 0.01

	left := actor.NewFloe(square(1), 1000, 600)
	left.State.Pos = mgl64.Vec2{-2, 0}
	left.State.Speed = mgl64.Vec2{1, 0}

	right := actor.NewFloe(square(1), 1000, 600)
	right.State.Pos = mgl64.Vec2{2, 0}
	right.State.Speed = mgl64.Vec2{-1, 0}

	rec, err := store.Create("twofloes.ifs")
	if err != nil {
		log.Fatal(err)
	}

	manager := icefloe.NewManager(0, 0.7, dt)
	manager.Workers = 4

	world := &icefloe.World{
		DT:       dt,
		Workers:  4,
		Detector: gapDetector{halfWidth: 1},
		Manager:  manager,
		Recorder: rec,
	}
	world.AddFloe(left)
	world.AddFloe(right)

	for i := 0; i < 400; i++ {
		if err := world.Step(); err != nil {
			log.Fatal(err)
		}
	}
	if err := rec.Close(); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("t=%.2f left v=%.3f right v=%.3f\n",
		world.Time(), left.State.Speed.X(), right.State.Speed.X())
	fmt.Println(manager.Stats())
}
