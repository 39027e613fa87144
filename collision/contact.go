package collision

import (
	"github.com/go-gl/mathgl/mgl64"
)

// ContactPoint is one geometric contact between two floes, produced by the
// detection stage and read-only for the resolution engine.
type ContactPoint struct {
	// Pos is the contact position in world coordinates.
	Pos mgl64.Vec2
	// Normal is the unit contact normal, pointing from the first floe
	// toward the second.
	Normal mgl64.Vec2
	// Tangent is the unit friction direction, perpendicular to Normal.
	Tangent mgl64.Vec2
	// Dist is the non-negative separation gap recorded at detection time.
	Dist float64
}

// Contact is an edge of the contact graph: the ordered pair of floe indices
// (N1, N2) and the contact points between exactly that pair.
//
// The solved flag is shared state: copying a Contact into a cluster or
// active-subset view aliases the same flag, so marking a filtered view
// solved is visible to the full graph and to every other view of the same
// physical contact.
type Contact struct {
	N1, N2 int
	Points []ContactPoint

	solved *bool
}

// NewContact creates a contact between floes n1 and n2. New contacts start
// marked solved; resolution clears the flag only when a solve fails.
func NewContact(n1, n2 int, points []ContactPoint) *Contact {
	solved := true
	return &Contact{N1: n1, N2: n2, Points: points, solved: &solved}
}

// MarkSolved sets the shared solved flag, visible through every view.
func (c *Contact) MarkSolved(solved bool) {
	*c.solved = solved
}

// Solved reports the shared solved flag.
func (c *Contact) Solved() bool {
	return *c.solved
}

// Chunks splits the contact into views of at most maxPoints points each.
// The views alias the receiver's solved flag, so marking any of them
// solved marks the original. A contact already small enough is returned
// as-is.
func (c *Contact) Chunks(maxPoints int) []*Contact {
	if len(c.Points) <= maxPoints {
		return []*Contact{c}
	}
	var out []*Contact
	for start := 0; start < len(c.Points); start += maxPoints {
		end := min(start+maxPoints, len(c.Points))
		out = append(out, &Contact{
			N1:     c.N1,
			N2:     c.N2,
			Points: c.Points[start:end],
			solved: c.solved,
		})
	}
	return out
}

// Graph is the contact graph for one timestep: vertices are the floe
// indices 0..NumFloes-1, edges are the contacts. It is built by the
// detection stage; the engine never mutates its structure.
type Graph struct {
	NumFloes int
	Edges    []*Contact
}
