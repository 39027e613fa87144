package icefloe

import (
	"github.com/polarsim/icefloe/actor"
	"github.com/polarsim/icefloe/collision"
)

// Detector produces the contact graph for the current floe state. The
// geometric detection stage (broad phase, narrow phase, gap measurement)
// lives behind this interface.
type Detector interface {
	DetectCollisions(floes []*actor.Floe) *collision.Graph
}

// Recorder persists simulation state out of band. Failures are surfaced
// by Step but never interrupt collision resolution.
type Recorder interface {
	SaveStep(time float64, floes []*actor.Floe) error
}

// World drives the simulation: detect contacts, resolve them, advance the
// floes, record the step.
type World struct {
	Floes []*actor.Floe
	// DT is the timestep (s)
	DT       float64
	Workers  int
	Detector Detector
	Manager  *Manager
	// Recorder is optional; nil disables persistence.
	Recorder Recorder

	time float64
}

// AddFloe adds a floe to the world.
func (w *World) AddFloe(f *actor.Floe) {
	w.Floes = append(w.Floes, f)
}

// Time returns the accumulated simulation time.
func (w *World) Time() float64 {
	return w.time
}

// Step advances the simulation by one timestep. The returned error only
// ever comes from the Recorder; resolution itself never fails a step.
func (w *World) Step() error {
	w.Workers = max(DEFAULT_WORKERS, w.Workers)

	if w.Detector != nil && w.Manager != nil {
		graph := w.Detector.DetectCollisions(w.Floes)
		w.Manager.SolveContacts(w.Floes, graph)
	}

	parallel(w.Workers, len(w.Floes), func(i int) {
		w.Floes[i].Integrate(w.DT)
	})
	w.time += w.DT

	if w.Recorder != nil {
		return w.Recorder.SaveStep(w.time, w.Floes)
	}
	return nil
}
