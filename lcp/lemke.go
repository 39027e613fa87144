package lcp

import (
	"gonum.org/v1/gonum/mat"
)

const (
	// pivotEps is the smallest tableau entry accepted as a pivot.
	pivotEps = 1e-12
)

// Lemke runs the classic covering-vector pivoting algorithm on p. On
// success the solution is stored in p.Z and true is returned. Failure
// (secondary ray or iteration cap, typical of degenerate problems) leaves
// p.Z untouched and returns false; the caller escalates to another
// strategy.
func Lemke(p *LCP) bool {
	t := newTableau(p)
	if t == nil {
		// q >= 0: z = 0 is the trivial solution.
		p.Z.Zero()
		return true
	}
	return t.run(p, false)
}

// tableau is the dense pivoting state shared by Lemke and LexicoLemke.
// Columns: [0,n) the w variables, [n,2n) the z variables, 2n the auxiliary
// z0, 2n+1 the transformed q. After any number of pivots the w-columns
// hold the inverse of the current basis, which is what the lexicographic
// ratio test orders by.
type tableau struct {
	n     int
	rows  [][]float64
	basis []int
}

// newTableau builds the initial tableau and performs the entry pivot that
// drives z0 into the basis. It returns nil when q >= 0 and no pivoting is
// needed.
func newTableau(p *LCP) *tableau {
	n := p.N
	r, minQ := -1, 0.0
	for i := 0; i < n; i++ {
		if qi := p.Q.AtVec(i); qi < minQ {
			minQ, r = qi, i
		}
	}
	if r < 0 {
		return nil
	}

	t := &tableau{n: n, rows: make([][]float64, n), basis: make([]int, n)}
	for i := 0; i < n; i++ {
		row := make([]float64, 2*n+2)
		row[i] = 1
		for j := 0; j < n; j++ {
			row[n+j] = -p.A.At(i, j)
		}
		row[2*n] = -1
		row[2*n+1] = p.Q.AtVec(i)
		t.rows[i] = row
		t.basis[i] = i
	}
	t.pivot(r, 2*n)
	t.basis[r] = 2 * n
	return t
}

// run drives the complementary pivot loop. The first entering variable is
// the complement of the w that left when z0 entered.
func (t *tableau) run(p *LCP, lexicographic bool) bool {
	n := t.n
	entering := -1
	for i, b := range t.basis {
		if b == 2*n {
			// z0 sits in row i, which previously held w_i: z_i enters.
			entering = n + i
		}
	}

	maxIter := 100*n + 50
	for iter := 0; iter < maxIter; iter++ {
		r := t.ratioTest(entering, lexicographic)
		if r < 0 {
			return false // unbounded ray, no solution on this path
		}
		leaving := t.basis[r]
		t.pivot(r, entering)
		t.basis[r] = entering

		if leaving == 2*n {
			t.extract(p)
			return true
		}
		if leaving < n {
			entering = n + leaving
		} else {
			entering = leaving - n
		}
	}
	return false
}

// ratioTest picks the blocking row for the entering column by the minimum
// ratio rule. Rows holding z0 win ties so the algorithm can terminate; in
// lexicographic mode remaining ties are broken by comparing the basis
// inverse rows, which provably prevents cycling.
func (t *tableau) ratioTest(entering int, lexicographic bool) int {
	n := t.n
	best := -1
	for i := 0; i < n; i++ {
		d := t.rows[i][entering]
		if d <= pivotEps {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		switch t.compareRows(i, best, entering, lexicographic) {
		case -1:
			best = i
		case 0:
			if t.basis[i] == 2*n {
				best = i
			}
		}
	}
	return best
}

// compareRows orders rows a and b by q/d ratio; on a tie in lexicographic
// mode it walks the basis-inverse columns until one ratio differs.
func (t *tableau) compareRows(a, b, entering int, lexicographic bool) int {
	n := t.n
	da, db := t.rows[a][entering], t.rows[b][entering]
	cols := []int{2*n + 1}
	if lexicographic {
		for j := 0; j < n; j++ {
			cols = append(cols, j)
		}
	}
	for _, c := range cols {
		ra, rb := t.rows[a][c]/da, t.rows[b][c]/db
		if ra < rb-pivotEps {
			return -1
		}
		if ra > rb+pivotEps {
			return 1
		}
	}
	return 0
}

func (t *tableau) pivot(r, c int) {
	piv := t.rows[r][c]
	row := t.rows[r]
	for j := range row {
		row[j] /= piv
	}
	for i := range t.rows {
		if i == r {
			continue
		}
		f := t.rows[i][c]
		if f == 0 {
			continue
		}
		for j := range t.rows[i] {
			t.rows[i][j] -= f * row[j]
		}
	}
}

// extract reads the basic z values out of the tableau into p.Z.
func (t *tableau) extract(p *LCP) {
	n := t.n
	z := mat.NewVecDense(n, nil)
	for i, b := range t.basis {
		if b >= n && b < 2*n {
			v := t.rows[i][2*n+1]
			if v < 0 {
				v = 0 // roundoff guard, basic values are non-negative
			}
			z.SetVec(b-n, v)
		}
	}
	p.SetZ(z)
}
