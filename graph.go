package apsp

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/graph"

	"github.com/LynnColeArt/apsp/gpu"
)

// Edge is an undirected, unweighted edge between vertices U and V.
type Edge struct {
	U, V int
}

// Graph is an undirected, unweighted graph over vertex ids 0..N-1.
// Duplicate edges and self loops are allowed and have no effect on
// distances.
type Graph struct {
	N     int
	Edges []Edge
}

// Validate reports the first edge naming a vertex outside 0..N-1.
func (g Graph) Validate() error {
	if g.N < 0 {
		return &gpu.Error{
			Type:    gpu.ErrTypeValidation,
			Op:      "Graph",
			Message: ErrNegativeVertexCount.Message,
			Err:     fmt.Errorf("n=%d", g.N),
		}
	}
	for _, e := range g.Edges {
		if e.U < 0 || e.U >= g.N || e.V < 0 || e.V >= g.N {
			return vertexError(e, g.N)
		}
	}
	return nil
}

// PathGraph returns the path 0-1-...-(n-1).
func PathGraph(n int) Graph {
	g := Graph{N: n}
	for i := 1; i < n; i++ {
		g.Edges = append(g.Edges, Edge{U: i - 1, V: i})
	}
	return g
}

// CycleGraph returns the cycle on n vertices.
func CycleGraph(n int) Graph {
	g := PathGraph(n)
	if n > 2 {
		g.Edges = append(g.Edges, Edge{U: n - 1, V: 0})
	}
	return g
}

// GridGraph returns the rows×cols 4-neighbour grid. Vertex (r, c) has id
// r*cols+c.
func GridGraph(rows, cols int) Graph {
	g := Graph{N: rows * cols}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			id := r*cols + c
			if c+1 < cols {
				g.Edges = append(g.Edges, Edge{U: id, V: id + 1})
			}
			if r+1 < rows {
				g.Edges = append(g.Edges, Edge{U: id, V: id + cols})
			}
		}
	}
	return g
}

// RandomGraph returns a G(n, p) random graph. The same seed yields the
// same graph.
func RandomGraph(n int, p float64, seed uint64) Graph {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	g := Graph{N: n}
	for u := 0; u < n; u++ {
		for v := u + 1; v < n; v++ {
			if rng.Float64() < p {
				g.Edges = append(g.Edges, Edge{U: u, V: v})
			}
		}
	}
	return g
}

// FromGonum converts a gonum undirected graph. Node ids are compacted in
// ascending order; ids[i] is the gonum id of vertex i. Edge weights are
// ignored.
func FromGonum(g graph.Undirected) (Graph, []int64) {
	nodes := graph.NodesOf(g.Nodes())
	ids := make([]int64, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID()
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })

	index := make(map[int64]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}

	out := Graph{N: len(ids)}
	for u, uid := range ids {
		to := g.From(uid)
		for to.Next() {
			v := index[to.Node().ID()]
			if u < v {
				out.Edges = append(out.Edges, Edge{U: u, V: v})
			}
		}
	}
	return out, ids
}
