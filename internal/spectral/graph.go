// Package spectral holds the worker topology as an immutable undirected
// weighted graph, plus the spectral machinery (Laplacian, eigenvalues,
// mixing matrices) that the consensus optimizer derives its averaging
// weights from.
package spectral

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Edge is an undirected weighted edge between nodes U and V.
type Edge struct {
	U      int
	V      int
	Weight float64
}

// Graph is the worker topology. Nodes are identified by indices 0..N-1 and
// neighbors are stored as an index-based adjacency list. A Graph is immutable
// after construction and safe for concurrent reads.
type Graph struct {
	nodeCount int
	edges     []Edge
	adjacency [][]int
	weights   []map[int]float64
}

// NewGraph validates the topology and builds the adjacency structure.
// It returns ErrInvalidTopology if nodeCount is non-positive, an edge
// endpoint is out of range, a self-loop or duplicate edge is present, an
// edge weight is non-positive or non-finite, or the graph is disconnected.
func NewGraph(nodeCount int, edges []Edge) (*Graph, error) {
	if nodeCount <= 0 {
		return nil, fmt.Errorf("node count %d: %w", nodeCount, ErrInvalidTopology)
	}

	g := &Graph{
		nodeCount: nodeCount,
		edges:     make([]Edge, 0, len(edges)),
		adjacency: make([][]int, nodeCount),
		weights:   make([]map[int]float64, nodeCount),
	}
	for i := 0; i < nodeCount; i++ {
		g.weights[i] = make(map[int]float64)
	}

	for _, e := range edges {
		if e.U < 0 || e.U >= nodeCount || e.V < 0 || e.V >= nodeCount {
			return nil, fmt.Errorf("edge (%d,%d) out of range: %w", e.U, e.V, ErrInvalidTopology)
		}
		if e.U == e.V {
			return nil, fmt.Errorf("self-loop at node %d: %w", e.U, ErrInvalidTopology)
		}
		if _, exists := g.weights[e.U][e.V]; exists {
			return nil, fmt.Errorf("duplicate edge (%d,%d): %w", e.U, e.V, ErrInvalidTopology)
		}
		w := e.Weight
		if w == 0 {
			w = 1.0
		}
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("edge (%d,%d) weight %v: %w", e.U, e.V, e.Weight, ErrInvalidTopology)
		}

		g.edges = append(g.edges, Edge{U: e.U, V: e.V, Weight: w})
		g.adjacency[e.U] = append(g.adjacency[e.U], e.V)
		g.adjacency[e.V] = append(g.adjacency[e.V], e.U)
		g.weights[e.U][e.V] = w
		g.weights[e.V][e.U] = w
	}

	if !g.connected() {
		return nil, fmt.Errorf("graph is disconnected: %w", ErrInvalidTopology)
	}

	return g, nil
}

// connected runs a BFS from node 0 over the adjacency list.
func (g *Graph) connected() bool {
	visited := make([]bool, g.nodeCount)
	queue := []int{0}
	visited[0] = true
	seen := 1

	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, v := range g.adjacency[u] {
			if !visited[v] {
				visited[v] = true
				seen++
				queue = append(queue, v)
			}
		}
	}

	return seen == g.nodeCount
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return g.nodeCount
}

// Edges returns a copy of the edge list.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Degree returns the number of neighbors of node i.
func (g *Graph) Degree(i int) int {
	return len(g.adjacency[i])
}

// Neighbors returns a copy of node i's neighbor list.
func (g *Graph) Neighbors(i int) []int {
	out := make([]int, len(g.adjacency[i]))
	copy(out, g.adjacency[i])
	return out
}

// EdgeWeight returns the weight of edge (i,j) and whether the edge exists.
func (g *Graph) EdgeWeight(i, j int) (float64, bool) {
	w, ok := g.weights[i][j]
	return w, ok
}

// Adjacency returns the symmetric weighted adjacency matrix A.
func (g *Graph) Adjacency() *mat.SymDense {
	a := mat.NewSymDense(g.nodeCount, nil)
	for _, e := range g.edges {
		a.SetSym(e.U, e.V, e.Weight)
	}
	return a
}
