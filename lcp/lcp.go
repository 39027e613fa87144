// Package lcp formulates and solves the linear complementarity problems
// behind floe collision resolution: find z >= 0 with w = Az + q >= 0 and
// z·w = 0 componentwise.
package lcp

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// LCP is one complementarity problem (A, q) together with the candidate
// solution z of the latest solve attempt.
type LCP struct {
	N int
	A *mat.Dense
	Q *mat.VecDense
	Z *mat.VecDense
}

// New creates a problem of dimension n with zeroed matrices.
func New(n int) *LCP {
	return &LCP{
		N: n,
		A: mat.NewDense(n, n, nil),
		Q: mat.NewVecDense(n, nil),
		Z: mat.NewVecDense(n, nil),
	}
}

// Copy returns an independent copy of the problem.
func (p *LCP) Copy() *LCP {
	return &LCP{
		N: p.N,
		A: mat.DenseCopyOf(p.A),
		Q: mat.VecDenseCopyOf(p.Q),
		Z: mat.VecDenseCopyOf(p.Z),
	}
}

// SetZ overwrites the candidate solution.
func (p *LCP) SetZ(z *mat.VecDense) {
	p.Z.CopyVec(z)
}

// W returns w = Az + q for the current candidate.
func (p *LCP) W() *mat.VecDense {
	w := mat.NewVecDense(p.N, nil)
	w.MulVec(p.A, p.Z)
	w.AddVec(w, p.Q)
	return w
}

// Residual measures how far the current candidate is from a valid
// complementarity solution: |z·w| plus every negative component of z and w.
// Zero means exact.
func (p *LCP) Residual() float64 {
	w := p.W()
	err := math.Abs(mat.Dot(p.Z, w))
	for i := 0; i < p.N; i++ {
		if zi := p.Z.AtVec(i); zi < 0 {
			err -= zi
		}
		if wi := w.AtVec(i); wi < 0 {
			err -= wi
		}
	}
	return err
}

// Perturb adds bounded uniform noise to every non-zero entry of A. It is
// used to break degenerate pivot sequences, never to redefine the problem:
// solution quality is always scored against the unperturbed original.
func (p *LCP) Perturb(rng *rand.Rand, max float64) {
	raw := p.A.RawMatrix()
	for i := range raw.Data {
		if raw.Data[i] != 0 {
			raw.Data[i] += (rng.Float64() - 0.5) * max
		}
	}
}

// IsFinite reports whether the candidate solution has no NaN or Inf
// component.
func (p *LCP) IsFinite() bool {
	return isFiniteVec(p.Z)
}

func isFiniteVec(v *mat.VecDense) bool {
	for i := 0; i < v.Len(); i++ {
		x := v.AtVec(i)
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
