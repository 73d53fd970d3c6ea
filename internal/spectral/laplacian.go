package spectral

import (
	"gonum.org/v1/gonum/mat"
)

// Laplacian returns L = D - A, with D the weighted-degree diagonal.
func (g *Graph) Laplacian() *mat.SymDense {
	l := mat.NewSymDense(g.nodeCount, nil)
	for _, e := range g.edges {
		l.SetSym(e.U, e.V, -e.Weight)
		l.SetSym(e.U, e.U, l.At(e.U, e.U)+e.Weight)
		l.SetSym(e.V, e.V, l.At(e.V, e.V)+e.Weight)
	}
	return l
}

// Spectrum returns the Laplacian eigenvalues in ascending order.
func (g *Graph) Spectrum() ([]float64, error) {
	var eig mat.EigenSym
	if ok := eig.Factorize(g.Laplacian(), false); !ok {
		return nil, ErrEigenFailed
	}
	return eig.Values(nil), nil
}

// FiedlerValue returns the second-smallest Laplacian eigenvalue (the
// algebraic connectivity). It is strictly positive for every connected
// graph, and bounds the consensus convergence rate from below.
func (g *Graph) FiedlerValue() (float64, error) {
	vals, err := g.Spectrum()
	if err != nil {
		return 0, err
	}
	if len(vals) < 2 {
		return 0, nil
	}
	return vals[1], nil
}

// SpectralGap is an alias for the Fiedler value on connected graphs.
func (g *Graph) SpectralGap() (float64, error) {
	return g.FiedlerValue()
}

// MaxLaplacianEigenvalue returns lambda_max(L), the stability bound used by
// the Laplacian mixing method.
func (g *Graph) MaxLaplacianEigenvalue() (float64, error) {
	vals, err := g.Spectrum()
	if err != nil {
		return 0, err
	}
	return vals[len(vals)-1], nil
}
