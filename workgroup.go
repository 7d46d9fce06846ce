package apsp

import (
	"fmt"

	"github.com/LynnColeArt/apsp/gpu"
)

// Workgroup is the fixed per-kernel workgroup extent along x (columns) and
// y (rows).
type Workgroup struct {
	X, Y int
}

// Workgroup shapes used by the built-in kernels.
var (
	// Naive gives one invocation per workgroup and no data reuse.
	Naive = Workgroup{X: 1, Y: 1}
	// Blocked enables shared-memory tiling.
	Blocked = Workgroup{X: DefaultTile, Y: DefaultTile}
)

// Validate rejects empty extents.
func (w Workgroup) Validate() error {
	if w.X <= 0 || w.Y <= 0 {
		return gpu.NewInvalidArgError("Workgroup", fmt.Sprintf("extent %dx%d must be positive", w.X, w.Y))
	}
	return nil
}

// Count returns the number of workgroups needed along each axis to cover
// an n×n grid: ceil(n / W).
func (w Workgroup) Count(n int) (x, y int) {
	return (n + w.X - 1) / w.X, (n + w.Y - 1) / w.Y
}

// PaddedX returns n rounded up to a multiple of the x extent.
func (w Workgroup) PaddedX(n int) int {
	x, _ := w.Count(n)
	return x * w.X
}

// PaddedY returns n rounded up to a multiple of the y extent.
func (w Workgroup) PaddedY(n int) int {
	_, y := w.Count(n)
	return y * w.Y
}

// Grid returns the dispatch grid for an n×n problem.
func (w Workgroup) Grid(n int) gpu.Dim3 {
	x, y := w.Count(n)
	return gpu.Dim3{X: x, Y: y, Z: 1}
}

// Layout returns the buffer layout for an n×n problem. The row stride is
// always padded; rows are padded too when padRows is set.
func (w Workgroup) Layout(n int, padRows bool) Layout {
	rows := n
	if padRows {
		rows = w.PaddedY(n)
	}
	return Layout{N: n, Stride: w.PaddedX(n), Rows: rows}
}

func (w Workgroup) String() string {
	return fmt.Sprintf("%dx%d", w.X, w.Y)
}

// Layout describes how a logical n×n distance matrix sits in a flat
// buffer. Every size computation and every host-side index of one kernel
// variant goes through the same Layout.
type Layout struct {
	N      int // vertices
	Stride int // row stride in elements, >= N
	Rows   int // allocated rows, >= N
}

// Cells returns the buffer capacity in elements.
func (l Layout) Cells() int {
	return l.Stride * l.Rows
}

// Bytes returns the buffer capacity in bytes.
func (l Layout) Bytes() int {
	return 4 * l.Cells()
}

// Index returns the flat index of entry (i, j).
func (l Layout) Index(i, j int) int {
	return i*l.Stride + j
}
