package lcp

import (
	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/mat"

	"github.com/polarsim/icefloe/actor"
	"github.com/polarsim/icefloe/collision"
)

// GraphLCP maps one active contact group onto a complementarity problem.
//
// The enumeration is fixed once per solve attempt and threaded through the
// whole pipeline: body i of the group's sorted floe list owns the velocity
// block [3i, 3i+3), contact point k follows edge order then point order
// within the edge. Matrices (gonum/mat):
//
//	M, InvM  3n x 3n   block diagonal mass/mass/moment per body
//	J        3n x m    normal constraint Jacobian
//	D        3n x 2m   tangential Jacobian, +/- tangent pair per point
//	W        3n        free velocities the bodies have absent contact forces
type GraphLCP struct {
	Group *collision.Group

	M    *mat.Dense
	InvM *mat.Dense
	J    *mat.Dense
	D    *mat.Dense
	W    *mat.VecDense

	// Dists holds the recorded gap of each contact point, in enumeration
	// order, for the post-solve admissibility test.
	Dists []float64

	// Mu is the friction coefficient, Eps the restitution entering q.
	Mu  float64
	Eps float64

	n int // bodies
	m int // contact points

	index map[int]int // scene floe index -> local body index
}

// NewGraphLCP builds the matrices for the given group against the current
// body state. The mapping is deterministic: identical state and geometry
// produce identical matrices.
func NewGraphLCP(group *collision.Group, floes []*actor.Floe, mu, eps float64) *GraphLCP {
	n := len(group.Floes)
	m := group.NumPoints()

	g := &GraphLCP{
		Group: group,
		M:     mat.NewDense(3*n, 3*n, nil),
		InvM:  mat.NewDense(3*n, 3*n, nil),
		J:     mat.NewDense(3*n, m, nil),
		D:     mat.NewDense(3*n, 2*m, nil),
		W:     mat.NewVecDense(3*n, nil),
		Dists: make([]float64, 0, m),
		Mu:    mu,
		Eps:   eps,
		n:     n,
		m:     m,
		index: make(map[int]int, n),
	}

	for i, sceneIdx := range group.Floes {
		g.index[sceneIdx] = i
		f := floes[sceneIdx]
		g.M.Set(3*i, 3*i, f.Mass)
		g.M.Set(3*i+1, 3*i+1, f.Mass)
		g.M.Set(3*i+2, 3*i+2, f.Moment)
		g.InvM.Set(3*i, 3*i, 1/f.Mass)
		g.InvM.Set(3*i+1, 3*i+1, 1/f.Mass)
		g.InvM.Set(3*i+2, 3*i+2, 1/f.Moment)
		g.W.SetVec(3*i, f.State.Speed.X())
		g.W.SetVec(3*i+1, f.State.Speed.Y())
		g.W.SetVec(3*i+2, f.State.Rot)
	}

	k := 0
	for _, c := range group.Edges {
		i1, i2 := g.index[c.N1], g.index[c.N2]
		f1, f2 := floes[c.N1], floes[c.N2]
		for _, pt := range c.Points {
			r1 := pt.Pos.Sub(f1.State.Pos)
			r2 := pt.Pos.Sub(f2.State.Pos)

			// Normal direction: body 1 recedes along -n, body 2 along +n,
			// so that (J^T v)_k is the relative normal velocity.
			g.J.Set(3*i1, k, -pt.Normal.X())
			g.J.Set(3*i1+1, k, -pt.Normal.Y())
			g.J.Set(3*i1+2, k, -cross2(r1, pt.Normal))
			g.J.Set(3*i2, k, pt.Normal.X())
			g.J.Set(3*i2+1, k, pt.Normal.Y())
			g.J.Set(3*i2+2, k, cross2(r2, pt.Normal))

			for s, sign := range []float64{1, -1} {
				col := 2*k + s
				g.D.Set(3*i1, col, -sign*pt.Tangent.X())
				g.D.Set(3*i1+1, col, -sign*pt.Tangent.Y())
				g.D.Set(3*i1+2, col, -sign*cross2(r1, pt.Tangent))
				g.D.Set(3*i2, col, sign*pt.Tangent.X())
				g.D.Set(3*i2+1, col, sign*pt.Tangent.Y())
				g.D.Set(3*i2+2, col, sign*cross2(r2, pt.Tangent))
			}

			g.Dists = append(g.Dists, pt.Dist)
			k++
		}
	}

	return g
}

// NumBodies returns the number of bodies in the group enumeration.
func (g *GraphLCP) NumBodies() int { return g.n }

// NumPoints returns the number of contact points in the enumeration.
func (g *GraphLCP) NumPoints() int { return g.m }

// LCP assembles the mixed friction complementarity problem of dimension 4m:
// m normal impulses, 2m tangential impulses, m friction-cone multipliers.
func (g *GraphLCP) LCP() *LCP {
	m := g.m
	p := New(4 * m)

	var jmj, jmd, dmj, dmd mat.Dense
	var minvJ, minvD mat.Dense
	minvJ.Mul(g.InvM, g.J) // 3n x m
	minvD.Mul(g.InvM, g.D) // 3n x 2m
	jmj.Mul(g.J.T(), &minvJ)
	dmj.Mul(g.D.T(), &minvJ)
	jmd.Mul(g.J.T(), &minvD)
	dmd.Mul(g.D.T(), &minvD)

	for i := 0; i < m; i++ {
		for j := 0; j < m; j++ {
			p.A.Set(i, j, jmj.At(i, j))
		}
		for j := 0; j < 2*m; j++ {
			p.A.Set(i, m+j, jmd.At(i, j))
		}
	}
	for i := 0; i < 2*m; i++ {
		for j := 0; j < m; j++ {
			p.A.Set(m+i, j, dmj.At(i, j))
		}
		for j := 0; j < 2*m; j++ {
			p.A.Set(m+i, m+j, dmd.At(i, j))
		}
	}
	for k := 0; k < m; k++ {
		// Friction cone coupling: E ties the two tangential directions of
		// point k to its cone multiplier.
		p.A.Set(m+2*k, 3*m+k, 1)
		p.A.Set(m+2*k+1, 3*m+k, 1)
		p.A.Set(3*m+k, k, g.Mu)
		p.A.Set(3*m+k, m+2*k, -1)
		p.A.Set(3*m+k, m+2*k+1, -1)
	}

	var jw, dw mat.VecDense
	jw.MulVec(g.J.T(), g.W)
	dw.MulVec(g.D.T(), g.W)
	for k := 0; k < m; k++ {
		p.Q.SetVec(k, (1+g.Eps)*jw.AtVec(k))
	}
	for k := 0; k < 2*m; k++ {
		p.Q.SetVec(m+k, dw.AtVec(k))
	}

	return p
}

// Solution derives the post-impact velocity vector from an impulse vector
// z: Sol = W + InvM * (J z_n + D z_t).
func (g *GraphLCP) Solution(z *mat.VecDense) *mat.VecDense {
	m := g.m
	zn := z.SliceVec(0, m)
	zt := z.SliceVec(m, 3*m)

	var jz, dz, sum, sol mat.VecDense
	jz.MulVec(g.J, zn)
	dz.MulVec(g.D, zt)
	sum.AddVec(&jz, &dz)
	sol.MulVec(g.InvM, &sum)
	sol.AddVec(g.W, &sol)
	return &sol
}

// Impulses sums the normal impulse received by each body of the group, in
// body enumeration order.
func (g *GraphLCP) Impulses(z *mat.VecDense) []float64 {
	imp := make([]float64, g.n)
	k := 0
	for _, c := range g.Group.Edges {
		i1, i2 := g.index[c.N1], g.index[c.N2]
		for range c.Points {
			imp[i1] += z.AtVec(k)
			imp[i2] += z.AtVec(k)
			k++
		}
	}
	return imp
}

// EnergyRatio compares the kinetic energy of the candidate velocities
// against the free-velocity energy: (Sol·M·Sol)/(W·M·W). A physically
// admissible impact keeps it at or below one.
func (g *GraphLCP) EnergyRatio(sol *mat.VecDense) float64 {
	num := quadForm(g.M, sol)
	den := quadForm(g.M, g.W)
	if den == 0 {
		if num == 0 {
			return 1
		}
		return num / den // +Inf, rejected by every tier
	}
	return num / den
}

// NormalVelocities returns J^T v: the relative normal velocity of every
// contact point under the velocity vector v, in point enumeration order.
func (g *GraphLCP) NormalVelocities(v *mat.VecDense) []float64 {
	var jv mat.VecDense
	jv.MulVec(g.J.T(), v)
	out := make([]float64, g.m)
	for k := 0; k < g.m; k++ {
		out[k] = jv.AtVec(k)
	}
	return out
}

// FreeVelocities returns a copy of W, the pre-collision velocities.
func (g *GraphLCP) FreeVelocities() *mat.VecDense {
	return mat.VecDenseCopyOf(g.W)
}

func quadForm(m *mat.Dense, v *mat.VecDense) float64 {
	var mv mat.VecDense
	mv.MulVec(m, v)
	return mat.Dot(v, &mv)
}

// cross2 is the scalar 2D cross product.
func cross2(a, b mgl64.Vec2) float64 {
	return a.X()*b.Y() - a.Y()*b.X()
}
