package collision

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/polarsim/icefloe/actor"
)

func createFloe(pos, speed mgl64.Vec2) *actor.Floe {
	f := actor.NewFloe(nil, 1000, 600)
	f.State.Pos = pos
	f.State.Speed = speed
	return f
}

func headOnContact(n1, n2 int) *Contact {
	return NewContact(n1, n2, []ContactPoint{{
		Pos:     mgl64.Vec2{0, 0},
		Normal:  mgl64.Vec2{1, 0},
		Tangent: mgl64.Vec2{0, 1},
		Dist:    0.1,
	}})
}

func TestGraph_ClustersPartition(t *testing.T) {
	graph := &Graph{
		NumFloes: 6,
		Edges: []*Contact{
			headOnContact(0, 1),
			headOnContact(1, 2),
			headOnContact(3, 4),
		},
	}

	clusters := graph.Clusters()
	if len(clusters) != 3 {
		t.Fatalf("got %d clusters, want 3", len(clusters))
	}

	seenFloes := make(map[int]int)
	seenEdges := make(map[*Contact]int)
	for _, c := range clusters {
		for _, f := range c.Floes {
			seenFloes[f]++
		}
		for _, e := range c.Edges {
			seenEdges[e]++
		}
	}
	for i := 0; i < graph.NumFloes; i++ {
		if seenFloes[i] != 1 {
			t.Errorf("floe %d appears in %d clusters, want 1", i, seenFloes[i])
		}
	}
	for _, e := range graph.Edges {
		if seenEdges[e] != 1 {
			t.Errorf("edge (%d,%d) appears in %d clusters, want 1", e.N1, e.N2, seenEdges[e])
		}
	}

	// Deterministic ordering: by smallest floe index.
	if got := clusters[0].Floes; len(got) != 3 || got[0] != 0 || got[1] != 1 || got[2] != 2 {
		t.Errorf("first cluster floes = %v, want [0 1 2]", got)
	}
	if got := clusters[1].Floes; len(got) != 2 || got[0] != 3 {
		t.Errorf("second cluster floes = %v, want [3 4]", got)
	}
	if got := clusters[2]; len(got.Floes) != 1 || got.Floes[0] != 5 || len(got.Edges) != 0 {
		t.Errorf("isolated floe should form an edge-less singleton, got %v", got)
	}
}

func TestRelativeNormalVelocity(t *testing.T) {
	f1 := createFloe(mgl64.Vec2{-1, 0}, mgl64.Vec2{1, 0})
	f2 := createFloe(mgl64.Vec2{1, 0}, mgl64.Vec2{-1, 0})
	pt := headOnContact(0, 1).Points[0]

	v := RelativeNormalVelocity(pt, f1, f2)
	if math.Abs(v-(-2)) > 1e-12 {
		t.Errorf("head-on relative normal velocity = %v, want -2", v)
	}

	// Rotation contributes through the lever arm: spin of the first floe
	// moves the contact point sideways, not along the x normal.
	f1.State.Rot = 3
	v = RelativeNormalVelocity(pt, f1, f2)
	if math.Abs(v-(-2)) > 1e-12 {
		t.Errorf("pure spin should not change the x-normal velocity, got %v", v)
	}
}

func TestContact_IsActive(t *testing.T) {
	const dt = 0.01
	floes := []*actor.Floe{
		createFloe(mgl64.Vec2{-1, 0}, mgl64.Vec2{1, 0}),
		createFloe(mgl64.Vec2{1, 0}, mgl64.Vec2{-1, 0}),
	}
	c := headOnContact(0, 1)

	// Approach of 2 m/s over dt=0.01 covers 0.02 > 0.1/50.
	if !c.IsActive(floes, dt) {
		t.Error("closing contact should be active")
	}

	// Separating floes are never active.
	floes[0].State.Speed = mgl64.Vec2{-1, 0}
	floes[1].State.Speed = mgl64.Vec2{1, 0}
	if c.IsActive(floes, dt) {
		t.Error("separating contact should not be active")
	}

	// Approaching slower than the gap-scaled threshold stays inactive.
	floes[0].State.Speed = mgl64.Vec2{0.05, 0}
	floes[1].State.Speed = mgl64.Vec2{-0.05, 0}
	if c.IsActive(floes, dt) {
		t.Error("slow approach below Dist/50 per step should not be active")
	}
}

func TestActiveGroups(t *testing.T) {
	const dt = 0.01
	floes := []*actor.Floe{
		createFloe(mgl64.Vec2{-1, 0}, mgl64.Vec2{1, 0}),
		createFloe(mgl64.Vec2{1, 0}, mgl64.Vec2{-1, 0}),
		createFloe(mgl64.Vec2{3, 0}, mgl64.Vec2{1, 0}),
	}
	c01 := headOnContact(0, 1)
	// Floe 2 runs away from floe 1: inactive edge.
	c12 := headOnContact(1, 2)
	cluster := &Group{Floes: []int{0, 1, 2}, Edges: []*Contact{c01, c12}}

	groups := ActiveGroups(cluster, floes, dt)
	if len(groups) != 1 {
		t.Fatalf("got %d active groups, want 1", len(groups))
	}
	if len(groups[0].Edges) != 1 || groups[0].Edges[0] != c01 {
		t.Errorf("active group should hold exactly the closing contact")
	}
	if len(groups[0].Floes) != 2 {
		t.Errorf("active group floes = %v, want the two closing floes", groups[0].Floes)
	}

	// Once nothing approaches, extraction is empty: convergence signal.
	floes[0].State.Speed = mgl64.Vec2{}
	floes[1].State.Speed = mgl64.Vec2{}
	if groups = ActiveGroups(cluster, floes, dt); len(groups) != 0 {
		t.Errorf("quiet cluster should have no active groups, got %d", len(groups))
	}
}

func TestActiveGroups_DisjointComponents(t *testing.T) {
	const dt = 0.01
	floes := []*actor.Floe{
		createFloe(mgl64.Vec2{-1, 0}, mgl64.Vec2{1, 0}),
		createFloe(mgl64.Vec2{1, 0}, mgl64.Vec2{-1, 0}),
		createFloe(mgl64.Vec2{5, 0}, mgl64.Vec2{1, 0}),
		createFloe(mgl64.Vec2{7, 0}, mgl64.Vec2{-1, 0}),
	}
	cluster := &Group{
		Floes: []int{0, 1, 2, 3},
		Edges: []*Contact{headOnContact(0, 1), headOnContact(2, 3)},
	}

	groups := ActiveGroups(cluster, floes, dt)
	if len(groups) != 2 {
		t.Fatalf("got %d active groups, want 2", len(groups))
	}
	seen := make(map[int]int)
	for _, g := range groups {
		for _, f := range g.Floes {
			seen[f]++
		}
	}
	for f, n := range seen {
		if n != 1 {
			t.Errorf("floe %d appears in %d groups, want 1: groups must be body-disjoint", f, n)
		}
	}
}
