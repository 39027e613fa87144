package collision

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/polarsim/icefloe/actor"
)

// GapFraction scales the activity and admissibility thresholds: a contact
// counts as closing when one step of its approach speed would consume more
// than this fraction of the recorded gap.
const GapFraction = 50.0

// Group is a view over a connected subset of the contact graph: the sorted
// floe indices it couples and the contacts between them. Contacts are
// aliased, not copied, so solved flags stay shared with the full graph.
type Group struct {
	Floes []int
	Edges []*Contact
}

// NumPoints returns the total number of contact points in the group.
func (g *Group) NumPoints() int {
	n := 0
	for _, c := range g.Edges {
		n += len(c.Points)
	}
	return n
}

// Clusters partitions the graph into its connected components. Every floe
// index and every contact belongs to exactly one cluster; floes without any
// contact become edge-less singleton clusters. The result is deterministic:
// clusters are ordered by their smallest floe index, floe lists sorted
// ascending, edges in graph order.
func (g *Graph) Clusters() []*Group {
	parent := make([]int, g.NumFloes)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}
	for _, c := range g.Edges {
		union(c.N1, c.N2)
	}

	groups := make(map[int]*Group)
	order := make([]int, 0)
	for i := 0; i < g.NumFloes; i++ {
		root := find(i)
		grp, ok := groups[root]
		if !ok {
			grp = &Group{}
			groups[root] = grp
			order = append(order, root)
		}
		grp.Floes = append(grp.Floes, i)
	}
	for _, c := range g.Edges {
		grp := groups[find(c.N1)]
		grp.Edges = append(grp.Edges, c)
	}

	sort.Ints(order)
	clusters := make([]*Group, 0, len(order))
	for _, root := range order {
		clusters = append(clusters, groups[root])
	}
	return clusters
}

// RelativeNormalVelocity returns the velocity of the contact point along
// its normal: negative when the two floes are approaching.
func RelativeNormalVelocity(pt ContactPoint, f1, f2 *actor.Floe) float64 {
	r1 := pt.Pos.Sub(f1.State.Pos)
	r2 := pt.Pos.Sub(f2.State.Pos)
	v1 := f1.State.Speed.Add(perp(r1).Mul(f1.State.Rot))
	v2 := f2.State.Speed.Add(perp(r2).Mul(f2.State.Rot))
	return v2.Sub(v1).Dot(pt.Normal)
}

// IsActive reports whether the contact is currently closing: some point
// approaches fast enough that one timestep would consume more than
// 1/GapFraction of its recorded gap.
func (c *Contact) IsActive(floes []*actor.Floe, dt float64) bool {
	f1, f2 := floes[c.N1], floes[c.N2]
	for _, pt := range c.Points {
		v := RelativeNormalVelocity(pt, f1, f2)
		if v < 0 && -v*dt > pt.Dist/GapFraction {
			return true
		}
	}
	return false
}

// ActiveGroups extracts the contacts of the cluster that are currently
// closing and regroups them into connected components. It is recomputed
// from scratch after every velocity update, since solving one contact
// changes the relative velocities of every contact touching the same
// floes. An empty result is the convergence signal for the cluster.
//
// Because the groups are connected components of the active edge set, no
// two groups of one extraction share a floe.
func ActiveGroups(cluster *Group, floes []*actor.Floe, dt float64) []*Group {
	active := make([]*Contact, 0, len(cluster.Edges))
	for _, c := range cluster.Edges {
		if c.IsActive(floes, dt) {
			active = append(active, c)
		}
	}
	if len(active) == 0 {
		return nil
	}
	sub := &Graph{NumFloes: maxVertex(active) + 1, Edges: active}
	groups := make([]*Group, 0)
	for _, grp := range sub.Clusters() {
		// Vertices untouched by any active edge come back as edge-less
		// singletons; only real components matter here.
		if len(grp.Edges) == 0 {
			continue
		}
		groups = append(groups, grp)
	}
	return groups
}

func maxVertex(edges []*Contact) int {
	m := 0
	for _, c := range edges {
		if c.N1 > m {
			m = c.N1
		}
		if c.N2 > m {
			m = c.N2
		}
	}
	return m
}

// perp returns v rotated by +90 degrees; omega*perp(r) is the velocity a
// point at offset r gains from angular velocity omega.
func perp(v mgl64.Vec2) mgl64.Vec2 {
	return mgl64.Vec2{-v.Y(), v.X()}
}
