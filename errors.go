package apsp

import (
	"fmt"

	"github.com/LynnColeArt/apsp/gpu"
)

// Domain errors. All are *gpu.Error values and match with errors.Is; the
// gpu kind sentinels (gpu.ErrValidation, gpu.ErrCapacity, ...) match them
// as well.
var (
	// ErrVertexOutOfRange is returned when an edge names a vertex id >= n.
	ErrVertexOutOfRange = &gpu.Error{Type: gpu.ErrTypeValidation, Op: "Graph", Message: "vertex id out of range"}

	// ErrNegativeVertexCount is returned for graphs with n < 0.
	ErrNegativeVertexCount = &gpu.Error{Type: gpu.ErrTypeValidation, Op: "Graph", Message: "negative vertex count"}

	// ErrLayoutMismatch is returned when a buffer's capacity differs from the
	// layout it is staged or dispatched with.
	ErrLayoutMismatch = gpu.ErrCapacity
)

func vertexError(e Edge, n int) error {
	return &gpu.Error{
		Type:    gpu.ErrTypeValidation,
		Op:      "Graph",
		Message: ErrVertexOutOfRange.Message,
		Err:     fmt.Errorf("edge (%d,%d) with n=%d", e.U, e.V, n),
	}
}

func checkCapacity(op string, b gpu.Buffer, l Layout) error {
	if b == nil {
		return gpu.NewInvalidArgError(op, "nil buffer")
	}
	if b.Size() != l.Bytes() {
		return gpu.NewCapacityError(op, b.Size(), l.Bytes())
	}
	return nil
}
