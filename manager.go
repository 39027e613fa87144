// Package icefloe resolves collisions between rigid ice floes. Each
// timestep's contact graph is partitioned into independent clusters,
// solved in parallel as linear complementarity problems, and the
// resulting velocity corrections are written back onto the floes.
package icefloe

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/polarsim/icefloe/actor"
	"github.com/polarsim/icefloe/collision"
	"github.com/polarsim/icefloe/lcp"
)

const DEFAULT_WORKERS = 1

const (
	// maxGroupPoints is the contact-point count above which an active
	// group is split before solving.
	maxGroupPoints = 50
	// loopsPerContact and maxClusterLoops bound the per-cluster
	// resolution loop: min(loopsPerContact * contacts, maxClusterLoops).
	loopsPerContact = 60
	maxClusterLoops = 1000
)

// SplitFunc breaks an oversized active contact group into smaller,
// independently solvable sub-views. The geometric quad-cut of the
// detection stage satisfies this contract; DefaultSplit is a
// non-geometric fallback.
type SplitFunc func(*collision.Group) []*collision.Group

// Manager orchestrates collision resolution over a contact graph. Its
// statistics are process-lifetime state, reset only by NewManager.
type Manager struct {
	// Eps is the restitution, Mu the friction coefficient, DT the
	// simulation timestep the gap thresholds are scaled by.
	Eps float64
	Mu  float64
	DT  float64
	// Workers is the number of goroutines clusters are spread over.
	Workers int
	// Seed drives the solver perturbation streams; a fixed seed makes
	// the whole resolution reproducible.
	Seed int64
	// Split handles oversized groups. Nil means DefaultSplit.
	Split SplitFunc

	attempted          atomic.Int64
	succeeded          atomic.Int64
	failedCompression  atomic.Int64
	failedDecompress   atomic.Int64
	energyRelaxed      atomic.Int64
	unresolvedClusters atomic.Int64
}

// NewManager creates a Manager with zeroed statistics.
func NewManager(eps, mu, dt float64) *Manager {
	return &Manager{Eps: eps, Mu: mu, DT: dt, Workers: DEFAULT_WORKERS}
}

// SolveContacts resolves every collision in the contact graph and returns
// the number of successfully solved contact groups.
//
// Clusters share no floes, so they are dispatched in parallel. Inside a
// cluster the pass loop is inherently sequential: each pass's velocity
// updates feed the next pass's active-subset extraction.
func (m *Manager) SolveContacts(floes []*actor.Floe, graph *collision.Graph) int {
	clusters := graph.Clusters()
	workers := max(DEFAULT_WORKERS, m.Workers)

	var solved atomic.Int64
	parallel(workers, len(clusters), func(i int) {
		cluster := clusters[i]
		if len(cluster.Edges) == 0 {
			return
		}
		solver := lcp.NewSolver(m.Eps, m.Mu, m.DT, m.Seed+int64(i))
		solved.Add(int64(m.solveCluster(solver, floes, cluster)))
	})
	return int(solved.Load())
}

// solveCluster runs the active-subset loop for one cluster: solve every
// active group, apply its solution, re-extract the active subset, and
// repeat until it empties, the iteration cap is hit, or a whole pass makes
// no progress. Leftover active contacts are marked unsolved; this is a
// reported partial failure, never fatal.
func (m *Manager) solveCluster(solver *lcp.Solver, floes []*actor.Floe, cluster *collision.Group) int {
	split := m.Split
	if split == nil {
		split = DefaultSplit
	}

	loopCap := min(loopsPerContact*len(cluster.Edges), maxClusterLoops)
	total := 0
	passSolved := -1

	active := collision.ActiveGroups(cluster, floes, m.DT)
	for loop := 0; len(active) != 0 && loop < loopCap && passSolved != 0; loop++ {
		passSolved = 0
		for _, group := range active {
			if group.NumPoints() > maxGroupPoints {
				// Split pieces may share floes, so they are solved and
				// applied strictly one after another.
				for _, piece := range split(group) {
					if m.solveGroup(solver, floes, piece) {
						passSolved++
					}
				}
			} else if m.solveGroup(solver, floes, group) {
				passSolved++
			}
		}
		total += passSolved
		active = collision.ActiveGroups(cluster, floes, m.DT)
	}

	if len(active) != 0 {
		for _, group := range active {
			m.attempted.Add(1)
			for _, c := range group.Edges {
				c.MarkSolved(false)
			}
		}
		m.unresolvedClusters.Add(1)
	}
	return total
}

// solveGroup formulates and solves one contact group, applies the solution
// on success and updates the statistics either way.
func (m *Manager) solveGroup(solver *lcp.Solver, floes []*actor.Floe, group *collision.Group) bool {
	m.attempted.Add(1)

	graphLCP := lcp.NewGraphLCP(group, floes, m.Mu, m.Eps)
	res, ok := solver.Solve(graphLCP)
	for _, c := range group.Edges {
		c.MarkSolved(ok)
	}
	if !ok {
		if lcp.Compression(graphLCP) {
			m.failedCompression.Add(1)
		} else {
			m.failedDecompress.Add(1)
		}
		return false
	}
	if res.Tier == 3 {
		m.energyRelaxed.Add(1)
	}
	applyState(floes, group, res)
	m.succeeded.Add(1)
	return true
}

// DefaultSplit chunks an oversized group into pieces of at most
// maxGroupPoints contact points. Oversized contacts are sliced into
// sub-views that alias the parent's solved flag. Deterministic, follows
// the group's edge enumeration, no geometric insight.
func DefaultSplit(group *collision.Group) []*collision.Group {
	var pieces []*collision.Group
	current := &collision.Group{}
	points := 0

	flush := func() {
		if len(current.Edges) > 0 {
			current.Floes = groupFloes(current.Edges)
			pieces = append(pieces, current)
			current = &collision.Group{}
			points = 0
		}
	}

	for _, c := range group.Edges {
		for _, part := range c.Chunks(maxGroupPoints) {
			if points+len(part.Points) > maxGroupPoints {
				flush()
			}
			current.Edges = append(current.Edges, part)
			points += len(part.Points)
		}
	}
	flush()
	return pieces
}

// groupFloes collects the sorted floe indices touched by edges.
func groupFloes(edges []*collision.Contact) []int {
	seen := make(map[int]bool, 2*len(edges))
	floes := make([]int, 0, 2*len(edges))
	for _, c := range edges {
		if !seen[c.N1] {
			seen[c.N1] = true
			floes = append(floes, c.N1)
		}
		if !seen[c.N2] {
			seen[c.N2] = true
			floes = append(floes, c.N2)
		}
	}
	sort.Ints(floes)
	return floes
}

// Stats is a snapshot of the Manager's aggregate counters.
type Stats struct {
	Attempted          int64
	Succeeded          int64
	FailedCompression  int64
	FailedDecompress   int64
	EnergyRelaxed      int64
	UnresolvedClusters int64
}

// Stats returns the current aggregate counters.
func (m *Manager) Stats() Stats {
	return Stats{
		Attempted:          m.attempted.Load(),
		Succeeded:          m.succeeded.Load(),
		FailedCompression:  m.failedCompression.Load(),
		FailedDecompress:   m.failedDecompress.Load(),
		EnergyRelaxed:      m.energyRelaxed.Load(),
		UnresolvedClusters: m.unresolvedClusters.Load(),
	}
}

// SuccessRatio returns the percentage of attempted groups solved.
func (s Stats) SuccessRatio() float64 {
	if s.Attempted == 0 {
		return 100
	}
	return 100 * float64(s.Succeeded) / float64(s.Attempted)
}

func (s Stats) String() string {
	return fmt.Sprintf("LCP solve: %d/%d (%.1f%%), failed compression: %d, failed decompression: %d, solved keeping kinetic energy: %d",
		s.Succeeded, s.Attempted, s.SuccessRatio(), s.FailedCompression, s.FailedDecompress, s.EnergyRelaxed)
}
