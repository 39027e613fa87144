package lcp

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/polarsim/icefloe/collision"
)

// Strategy is one fallback step of the escalation table.
type Strategy int

const (
	// StrategyPerturb nudges the working problem with bounded noise to
	// break a degenerate pivot sequence. Not a solve step itself.
	StrategyPerturb Strategy = iota
	// StrategyLemke is the primary pivoting algorithm.
	StrategyLemke
	// StrategyLexicoLemke is the lexicographic tie-breaking fallback.
	StrategyLexicoLemke
	// StrategyRefine is a reserved slot for an iterative refinement pass
	// seeded from the best solution so far. Currently a no-op.
	StrategyRefine
)

// perturbMax bounds the magnitude of the perturbation noise.
const perturbMax = 1e-10

// Acceptance bounds per tier. Tier 3 ignores the residual and only keeps
// the energy in check.
const (
	energyTolStrict  = 1e-4
	energyTolRelaxed = 1e-2
	residualTier1    = 1e-11
	residualTier2    = 1e-8
)

type escalationStep struct {
	strategy Strategy
	tier     int
}

// escalation is the fixed fallback table: walked in order, one entry per
// outer iteration, until a candidate is accepted or the table runs out.
var escalation = []escalationStep{
	{StrategyLemke, 1}, {StrategyLexicoLemke, 1}, {StrategyRefine, 1},
	{StrategyPerturb, 1}, {StrategyLemke, 1}, {StrategyLexicoLemke, 1}, {StrategyRefine, 1},
	{StrategyPerturb, 1}, {StrategyLemke, 1}, {StrategyLexicoLemke, 1}, {StrategyRefine, 1},
	{StrategyPerturb, 2}, {StrategyLemke, 2}, {StrategyLexicoLemke, 2}, {StrategyRefine, 2},
	{StrategyPerturb, 2}, {StrategyLemke, 2}, {StrategyLexicoLemke, 2}, {StrategyRefine, 2},
	{StrategyPerturb, 3}, {StrategyLemke, 3}, {StrategyLexicoLemke, 3}, {StrategyRefine, 3},
}

// Result is the physical outcome of one group solve: post-impact
// velocities (3 components per body, in group enumeration order), the
// normal impulse accumulated per body, and the acceptance tier that let
// the candidate through (0 when the solve failed).
type Result struct {
	Velocities *mat.VecDense
	Impulses   []float64
	Tier       int
}

// Solver solves one contact group at a time by walking the escalation
// table. It is not safe for concurrent use: each cluster worker owns its
// own Solver so the perturbation stream stays reproducible.
type Solver struct {
	// Eps is the restitution entering the problem's q vector.
	Eps float64
	// Mu is the friction coefficient.
	Mu float64
	// DT is the timestep used by the gap-scaled admissibility test.
	DT float64

	rng *rand.Rand
}

// NewSolver creates a solver with the given restitution, friction,
// timestep and perturbation seed. Identical inputs and seed reproduce the
// exact sequence of attempts and the final outcome.
func NewSolver(eps, mu, dt float64, seed int64) *Solver {
	return &Solver{Eps: eps, Mu: mu, DT: dt, rng: rand.New(rand.NewSource(seed))}
}

// Solve builds the complementarity problem for the group and attempts the
// escalating strategies against copies of it. On failure the returned
// velocities are the free velocities, unchanged, and ok is false.
func (s *Solver) Solve(g *GraphLCP) (Result, bool) {
	orig := g.LCP()
	work := orig.Copy()

	bestErr := math.Inf(1)
	var bestZ *mat.VecDense

	for _, step := range escalation {
		var ok bool
		switch step.strategy {
		case StrategyPerturb:
			work.Perturb(s.rng, perturbMax)
			continue
		case StrategyLemke:
			ok = Lemke(work)
		case StrategyLexicoLemke:
			ok = LexicoLemke(work)
		case StrategyRefine:
			continue
		}
		if !ok || !work.IsFinite() {
			continue
		}

		// Score against the original, unperturbed problem; keep the best
		// candidate seen so far and always test that one. The first
		// candidate is kept unconditionally: a NaN residual (degenerate
		// input) compares false and must not leave bestZ empty.
		orig.SetZ(work.Z)
		if err := orig.Residual(); bestZ == nil || err < bestErr {
			bestErr = err
			bestZ = mat.VecDenseCopyOf(work.Z)
		}
		orig.SetZ(bestZ)

		sol := g.Solution(bestZ)
		if !isFiniteVec(sol) {
			continue
		}

		ec := g.EnergyRatio(sol)
		if s.accept(step.tier, ec, bestErr, s.admissible(g, sol)) {
			return Result{
				Velocities: sol,
				Impulses:   g.Impulses(bestZ),
				Tier:       step.tier,
			}, true
		}
	}

	return Result{Velocities: g.FreeVelocities()}, false
}

// accept applies the tier acceptance test: energy bound, residual bound
// and the normal-velocity admissibility flag.
func (s *Solver) accept(tier int, energyRatio, err float64, admissible bool) bool {
	if !admissible {
		return false
	}
	switch tier {
	case 1:
		return energyRatio <= 1+energyTolStrict && math.Abs(err) <= residualTier1
	case 2:
		return energyRatio <= 1+energyTolStrict && math.Abs(err) <= residualTier2
	case 3:
		return energyRatio <= 1+energyTolRelaxed
	}
	return false
}

// admissible rejects candidates that leave a contact point closing fast
// enough to consume more than 1/GapFraction of its recorded gap in one
// timestep. Same threshold as the active-subset extraction.
func (s *Solver) admissible(g *GraphLCP, sol *mat.VecDense) bool {
	for k, v := range g.NormalVelocities(sol) {
		if v < 0 && -v*s.DT > g.Dists[k]/collision.GapFraction {
			return false
		}
	}
	return true
}

// Compression reports whether the group is in its approach phase: some
// contact point still closing under the free velocities. Used to classify
// failed solves.
func Compression(g *GraphLCP) bool {
	for _, v := range g.NormalVelocities(g.W) {
		if v < 0 {
			return true
		}
	}
	return false
}
