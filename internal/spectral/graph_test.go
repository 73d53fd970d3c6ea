package spectral_test

import (
	"testing"

	"github.com/IteraLabs/convective/internal/spectral"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ringEdges(n int) []spectral.Edge {
	edges := make([]spectral.Edge, n)
	for i := 0; i < n; i++ {
		edges[i] = spectral.Edge{U: i, V: (i + 1) % n}
	}
	return edges
}

func TestNewGraph_Valid(t *testing.T) {
	g, err := spectral.NewGraph(5, ringEdges(5))
	require.NoError(t, err)
	assert.Equal(t, 5, g.NodeCount())
	assert.Equal(t, 2, g.Degree(0))
	assert.ElementsMatch(t, []int{1, 4}, g.Neighbors(0))

	w, ok := g.EdgeWeight(0, 1)
	require.True(t, ok)
	assert.Equal(t, 1.0, w) // zero weight defaults to 1

	_, ok = g.EdgeWeight(0, 2)
	assert.False(t, ok)
}

func TestNewGraph_Disconnected(t *testing.T) {
	// Two isolated components: {0,1} and {2,3}.
	_, err := spectral.NewGraph(4, []spectral.Edge{
		{U: 0, V: 1},
		{U: 2, V: 3},
	})
	require.ErrorIs(t, err, spectral.ErrInvalidTopology)
}

func TestNewGraph_Invalid(t *testing.T) {
	cases := []struct {
		name  string
		nodes int
		edges []spectral.Edge
	}{
		{"zero nodes", 0, nil},
		{"self loop", 2, []spectral.Edge{{U: 0, V: 0}, {U: 0, V: 1}}},
		{"duplicate edge", 2, []spectral.Edge{{U: 0, V: 1}, {U: 1, V: 0}}},
		{"endpoint out of range", 2, []spectral.Edge{{U: 0, V: 2}}},
		{"negative weight", 2, []spectral.Edge{{U: 0, V: 1, Weight: -1}}},
		{"isolated node", 3, []spectral.Edge{{U: 0, V: 1}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := spectral.NewGraph(tc.nodes, tc.edges)
			require.ErrorIs(t, err, spectral.ErrInvalidTopology)
		})
	}
}

func TestNewGraph_SingleNode(t *testing.T) {
	g, err := spectral.NewGraph(1, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, g.Degree(0))
}

func TestLaplacian_PathGraph(t *testing.T) {
	// Path 0-1-2: L = [[1,-1,0],[-1,2,-1],[0,-1,1]].
	g, err := spectral.NewGraph(3, []spectral.Edge{{U: 0, V: 1}, {U: 1, V: 2}})
	require.NoError(t, err)

	l := g.Laplacian()
	assert.Equal(t, 1.0, l.At(0, 0))
	assert.Equal(t, 2.0, l.At(1, 1))
	assert.Equal(t, 1.0, l.At(2, 2))
	assert.Equal(t, -1.0, l.At(0, 1))
	assert.Equal(t, 0.0, l.At(0, 2))

	// Row sums of a Laplacian are zero.
	for i := 0; i < 3; i++ {
		sum := 0.0
		for j := 0; j < 3; j++ {
			sum += l.At(i, j)
		}
		assert.InDelta(t, 0.0, sum, 1e-12)
	}
}

func TestSpectrum_CompleteGraph(t *testing.T) {
	// K3 has Laplacian eigenvalues {0, 3, 3}.
	g, err := spectral.NewGraph(3, []spectral.Edge{{U: 0, V: 1}, {U: 1, V: 2}, {U: 0, V: 2}})
	require.NoError(t, err)

	vals, err := g.Spectrum()
	require.NoError(t, err)
	require.Len(t, vals, 3)
	assert.InDelta(t, 0.0, vals[0], 1e-9)
	assert.InDelta(t, 3.0, vals[1], 1e-9)
	assert.InDelta(t, 3.0, vals[2], 1e-9)
}

func TestFiedlerValue_PositiveForConnected(t *testing.T) {
	g, err := spectral.NewGraph(6, ringEdges(6))
	require.NoError(t, err)

	fiedler, err := g.FiedlerValue()
	require.NoError(t, err)
	assert.Greater(t, fiedler, 0.0)

	gap, err := g.SpectralGap()
	require.NoError(t, err)
	assert.Equal(t, fiedler, gap)
}
