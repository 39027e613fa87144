package icefloe

import (
	"math"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/polarsim/icefloe/actor"
	"github.com/polarsim/icefloe/collision"
)

// createHeadOn builds two equal floes closing at 2 m/s with one contact
// point between them.
func createHeadOn() ([]*actor.Floe, *collision.Graph) {
	f1 := actor.NewFloe(nil, 1000, 600)
	f1.State.Pos = mgl64.Vec2{-1, 0}
	f1.State.Speed = mgl64.Vec2{1, 0}
	f2 := actor.NewFloe(nil, 1000, 600)
	f2.State.Pos = mgl64.Vec2{1, 0}
	f2.State.Speed = mgl64.Vec2{-1, 0}

	c := collision.NewContact(0, 1, []collision.ContactPoint{{
		Pos:     mgl64.Vec2{0, 0},
		Normal:  mgl64.Vec2{1, 0},
		Tangent: mgl64.Vec2{0, 1},
		Dist:    0.1,
	}})
	graph := &collision.Graph{NumFloes: 2, Edges: []*collision.Contact{c}}
	return []*actor.Floe{f1, f2}, graph
}

func TestManager_SolveContacts(t *testing.T) {
	floes, graph := createHeadOn()
	m := NewManager(0, 0, 0.01)

	solved := m.SolveContacts(floes, graph)
	if solved != 1 {
		t.Fatalf("solved %d groups, want 1", solved)
	}
	for i, f := range floes {
		if math.Abs(f.State.Speed.X()) > 1e-9 {
			t.Errorf("floe %d speed.x = %v, want 0", i, f.State.Speed.X())
		}
	}
	if !graph.Edges[0].Solved() {
		t.Error("contact not marked solved")
	}

	stats := m.Stats()
	if stats.Attempted != 1 || stats.Succeeded != 1 {
		t.Errorf("stats = %+v, want 1 attempted, 1 succeeded", stats)
	}
	if stats.UnresolvedClusters != 0 {
		t.Errorf("unresolved clusters = %d, want 0", stats.UnresolvedClusters)
	}
}

func TestManager_SeparatingContactUntouched(t *testing.T) {
	floes, graph := createHeadOn()
	floes[0].State.Speed = mgl64.Vec2{-1, 0}
	floes[1].State.Speed = mgl64.Vec2{1, 0}
	m := NewManager(0, 0, 0.01)

	if solved := m.SolveContacts(floes, graph); solved != 0 {
		t.Fatalf("solved %d groups for a separating contact, want 0", solved)
	}
	if floes[0].State.Speed.X() != -1 || floes[1].State.Speed.X() != 1 {
		t.Error("inactive contact must leave velocities untouched")
	}
	if stats := m.Stats(); stats.Attempted != 0 {
		t.Errorf("attempted = %d, want 0", stats.Attempted)
	}
}

func TestManager_IndependentClustersAllSolved(t *testing.T) {
	f1, g1 := createHeadOn()
	f2, g2 := createHeadOn()

	// Two body-disjoint head-on pairs in one graph.
	c := g2.Edges[0]
	shifted := collision.NewContact(c.N1+2, c.N2+2, c.Points)
	floes := append(f1, f2...)
	graph := &collision.Graph{NumFloes: 4, Edges: []*collision.Contact{g1.Edges[0], shifted}}

	m := NewManager(0, 0, 0.01)
	m.Workers = 4
	if solved := m.SolveContacts(floes, graph); solved != 2 {
		t.Fatalf("solved %d groups, want 2", solved)
	}
	for i, f := range floes {
		if math.Abs(f.State.Speed.X()) > 1e-9 {
			t.Errorf("floe %d speed.x = %v, want 0", i, f.State.Speed.X())
		}
	}
}

func TestDefaultSplit(t *testing.T) {
	points := make([]collision.ContactPoint, 120)
	for i := range points {
		points[i] = collision.ContactPoint{Normal: mgl64.Vec2{1, 0}, Tangent: mgl64.Vec2{0, 1}, Dist: 0.1}
	}
	c := collision.NewContact(0, 1, points)
	group := &collision.Group{Floes: []int{0, 1}, Edges: []*collision.Contact{c}}

	pieces := DefaultSplit(group)
	if len(pieces) == 0 {
		t.Fatal("no pieces")
	}
	total := 0
	for i, p := range pieces {
		if n := p.NumPoints(); n > maxGroupPoints {
			t.Errorf("piece %d has %d points, over the limit", i, n)
		}
		total += p.NumPoints()
		if len(p.Floes) != 2 || p.Floes[0] != 0 || p.Floes[1] != 1 {
			t.Errorf("piece %d floes = %v, want [0 1]", i, p.Floes)
		}
	}
	if total != 120 {
		t.Errorf("pieces carry %d points, want all 120", total)
	}

	// All pieces alias the parent contact's solved flag.
	pieces[0].Edges[0].MarkSolved(false)
	if c.Solved() {
		t.Error("marking a piece must reach the parent contact")
	}
}

func TestManager_CustomSplit(t *testing.T) {
	floes, graph := createHeadOn()

	// 51 points on a single contact forces the split path; single-point
	// pieces must still resolve the impact.
	points := make([]collision.ContactPoint, 51)
	for i := range points {
		points[i] = graph.Edges[0].Points[0]
	}
	graph.Edges[0] = collision.NewContact(0, 1, points)

	calls := 0
	m := NewManager(0, 0, 0.01)
	m.Split = func(g *collision.Group) []*collision.Group {
		calls++
		var pieces []*collision.Group
		for _, c := range g.Edges {
			for _, part := range c.Chunks(1) {
				pieces = append(pieces, &collision.Group{
					Floes: []int{part.N1, part.N2},
					Edges: []*collision.Contact{part},
				})
			}
		}
		return pieces
	}

	m.SolveContacts(floes, graph)
	if calls == 0 {
		t.Fatal("oversized group never split")
	}
	for i, f := range floes {
		if math.Abs(f.State.Speed.X()) > 1e-6 {
			t.Errorf("floe %d speed.x = %v, want 0", i, f.State.Speed.X())
		}
	}
}

func TestManager_UnsolvableGroup(t *testing.T) {
	floes, graph := createHeadOn()
	// A zero-mass body poisons the complementarity matrices: the solver
	// exhausts its table on every pass and the cluster gives up after one
	// zero-progress loop.
	floes[0].Mass = 0
	m := NewManager(0, 0, 0.01)

	if solved := m.SolveContacts(floes, graph); solved != 0 {
		t.Fatalf("solved %d groups, want 0", solved)
	}
	if graph.Edges[0].Solved() {
		t.Error("failed contact must be marked unsolved")
	}
	if floes[0].State.Speed.X() != 1 || floes[1].State.Speed.X() != -1 {
		t.Error("failed solve must leave velocities untouched")
	}

	stats := m.Stats()
	if stats.Succeeded != 0 {
		t.Errorf("succeeded = %d, want 0", stats.Succeeded)
	}
	// One attempt from the group solve, one from the leftover-active tally.
	if stats.Attempted != 2 {
		t.Errorf("attempted = %d, want 2", stats.Attempted)
	}
	// The pair is still closing, so the failure lands in the compression
	// bucket.
	if stats.FailedCompression != 1 || stats.FailedDecompress != 0 {
		t.Errorf("failure buckets = %d/%d, want 1/0", stats.FailedCompression, stats.FailedDecompress)
	}
	if stats.UnresolvedClusters != 1 {
		t.Errorf("unresolved clusters = %d, want 1", stats.UnresolvedClusters)
	}
}

func TestStats(t *testing.T) {
	s := Stats{Attempted: 4, Succeeded: 3, FailedCompression: 1}
	if got := s.SuccessRatio(); got != 75 {
		t.Errorf("SuccessRatio = %v, want 75", got)
	}
	if got := (Stats{}).SuccessRatio(); got != 100 {
		t.Errorf("empty SuccessRatio = %v, want 100", got)
	}
	if !strings.Contains(s.String(), "3/4") {
		t.Errorf("String() = %q, want the solve counts in it", s.String())
	}
}

type stubDetector struct {
	graph *collision.Graph
}

func (d stubDetector) DetectCollisions([]*actor.Floe) *collision.Graph { return d.graph }

type countRecorder struct {
	steps int
	last  float64
}

func (r *countRecorder) SaveStep(time float64, _ []*actor.Floe) error {
	r.steps++
	r.last = time
	return nil
}

func TestWorld_Step(t *testing.T) {
	floes, graph := createHeadOn()
	rec := &countRecorder{}
	w := &World{
		Floes:    floes,
		DT:       0.01,
		Detector: stubDetector{graph},
		Manager:  NewManager(0, 0, 0.01),
		Recorder: rec,
	}

	if err := w.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if math.Abs(w.Time()-0.01) > 1e-15 {
		t.Errorf("time = %v, want 0.01", w.Time())
	}
	if rec.steps != 1 || rec.last != w.Time() {
		t.Errorf("recorder saw %d steps at t=%v, want 1 at %v", rec.steps, rec.last, w.Time())
	}
	// The impact stops both floes, so integration must not move them.
	if math.Abs(floes[0].State.Pos.X()+1) > 1e-9 || math.Abs(floes[1].State.Pos.X()-1) > 1e-9 {
		t.Errorf("positions moved: %v, %v", floes[0].State.Pos, floes[1].State.Pos)
	}
}
