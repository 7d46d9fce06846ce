package apsp

import (
	"fmt"
	"math"

	"github.com/LynnColeArt/apsp/gpu"
)

// DistanceMatrix is a converged distance matrix in its device layout.
// Padding cells are carried along but never read through At.
type DistanceMatrix struct {
	Layout
	Data []float32
}

// NewDistanceMatrix wraps data laid out as l. It fails if data is shorter
// than the layout's capacity.
func NewDistanceMatrix(l Layout, data []float32) (*DistanceMatrix, error) {
	if len(data) < l.Cells() {
		return nil, gpu.NewCapacityError("NewDistanceMatrix", 4*len(data), l.Bytes())
	}
	return &DistanceMatrix{Layout: l, Data: data}, nil
}

// At returns the distance from i to j, +Inf if j is unreachable from i.
func (m *DistanceMatrix) At(i, j int) float32 {
	return m.Data[m.Index(i, j)]
}

// Reachable reports whether j can be reached from i.
func (m *DistanceMatrix) Reachable(i, j int) bool {
	return !math.IsInf(float64(m.At(i, j)), 1)
}

// Dense returns the logical n×n matrix with row stride n.
func (m *DistanceMatrix) Dense() []float32 {
	out := make([]float32, m.N*m.N)
	for i := 0; i < m.N; i++ {
		copy(out[i*m.N:(i+1)*m.N], m.Data[m.Index(i, 0):m.Index(i, m.N)])
	}
	return out
}

// Diameter returns the largest finite distance.
func (m *DistanceMatrix) Diameter() int {
	d := 0
	for i := 0; i < m.N; i++ {
		for j := 0; j < m.N; j++ {
			if v := m.At(i, j); !math.IsInf(float64(v), 1) && int(v) > d {
				d = int(v)
			}
		}
	}
	return d
}

// Diff returns the first logical entry where m and o disagree, or ok if
// they agree everywhere. Strides may differ.
func (m *DistanceMatrix) Diff(o *DistanceMatrix) (i, j int, ok bool) {
	if m.N != o.N {
		return -1, -1, false
	}
	for i = 0; i < m.N; i++ {
		for j = 0; j < m.N; j++ {
			if m.At(i, j) != o.At(i, j) {
				return i, j, false
			}
		}
	}
	return 0, 0, true
}

// Equal reports whether m and o hold the same logical distances.
func (m *DistanceMatrix) Equal(o *DistanceMatrix) bool {
	_, _, ok := m.Diff(o)
	return ok
}

func (m *DistanceMatrix) String() string {
	return fmt.Sprintf("DistanceMatrix(n=%d, stride=%d, rows=%d)", m.N, m.Stride, m.Rows)
}
