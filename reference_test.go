package apsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// gonumDistances solves g with gonum's Floyd–Warshall.
func gonumDistances(t *testing.T, g Graph) func(i, j int) float64 {
	ug := simple.NewUndirectedGraph()
	for v := 0; v < g.N; v++ {
		ug.AddNode(simple.Node(v))
	}
	for _, e := range g.Edges {
		if e.U != e.V {
			ug.SetEdge(ug.NewEdge(simple.Node(e.U), simple.Node(e.V)))
		}
	}
	paths, ok := path.FloydWarshall(ug)
	require.True(t, ok)
	return func(i, j int) float64 {
		return paths.Weight(int64(i), int64(j))
	}
}

func TestHostReferencesAgainstGonum(t *testing.T) {
	graphs := map[string]Graph{
		"path":   PathGraph(30),
		"cycle":  CycleGraph(17),
		"grid":   GridGraph(5, 7),
		"sparse": RandomGraph(40, 0.04, 5),
		"dense":  RandomGraph(25, 0.4, 6),
	}
	for name, g := range graphs {
		t.Run(name, func(t *testing.T) {
			want := gonumDistances(t, g)
			fw := FloydWarshallHost(g)
			tr, rounds := TropicalHost(g)
			assert.Equal(t, Rounds(g.N), rounds)
			for i := 0; i < g.N; i++ {
				for j := 0; j < g.N; j++ {
					w := want(i, j)
					require.Equal(t, w, float64(fw.At(i, j)), "floyd-warshall (%d,%d)", i, j)
					require.Equal(t, w, float64(tr.At(i, j)), "tropical (%d,%d)", i, j)
				}
			}
		})
	}
}

func TestHostReferenceShapes(t *testing.T) {
	fw := FloydWarshallHost(GridGraph(4, 4))
	assert.Equal(t, float32(6), fw.At(0, 15))
	assert.Equal(t, 6, fw.Diameter())
	assert.Equal(t, 3, RoundsForDiameter(fw.Diameter()))

	cyc := FloydWarshallHost(CycleGraph(10))
	assert.Equal(t, float32(5), cyc.At(0, 5))
	assert.Equal(t, float32(1), cyc.At(0, 9))

	empty := FloydWarshallHost(Graph{N: 3})
	assert.True(t, math.IsInf(float64(empty.At(0, 2)), 1))
	assert.Zero(t, empty.Diameter())

	dense := FloydWarshallHost(GridGraph(2, 3)).Dense()
	assert.Len(t, dense, 36)
}

func TestDistanceMatrix(t *testing.T) {
	l := Layout{N: 2, Stride: 3, Rows: 3}
	_, err := NewDistanceMatrix(l, make([]float32, 8))
	assert.ErrorIs(t, err, ErrLayoutMismatch)

	m, err := NewDistanceMatrix(l, []float32{0, 1, -1, 1, 0, -1, -1, -1, -1})
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 1, 0}, m.Dense())

	o := FloydWarshallHost(PathGraph(2))
	assert.True(t, m.Equal(o), "padding and stride are ignored")

	o.Data[1] = 5
	i, j, ok := m.Diff(o)
	assert.False(t, ok)
	assert.Equal(t, [2]int{0, 1}, [2]int{i, j})
	assert.False(t, m.Equal(FloydWarshallHost(PathGraph(3))))
	assert.Equal(t, "DistanceMatrix(n=2, stride=3, rows=3)", m.String())
}
