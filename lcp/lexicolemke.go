package lcp

// LexicoLemke is the secondary pivoting strategy: the same complementary
// pivot walk as Lemke, with a lexicographic minimum-ratio test. Degenerate
// problems that make the plain rule cycle between bases terminate under
// the lexicographic ordering.
func LexicoLemke(p *LCP) bool {
	t := newTableau(p)
	if t == nil {
		p.Z.Zero()
		return true
	}
	return t.run(p, true)
}
