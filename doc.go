// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package apsp computes all-pairs shortest paths of unweighted, undirected
// graphs on a compute device.
//
// A graph is staged into a device buffer as an n×n distance matrix: zero on
// the diagonal, one for every edge and +Inf elsewhere. Two engines then
// close the matrix:
//
//   - FloydWarshall issues n ordered relaxation dispatches, one per pivot.
//   - TropicalMatmul squares the matrix in the (min, +) semiring until
//     paths of length up to n-1 are covered, ceil(log2 n) rounds. It comes
//     in a naive variant, one invocation per cell, and a blocked variant
//     that stages tiles in workgroup memory.
//
// Both engines read from and write to device buffers supplied by the
// caller; Readback copies a result to the host. Solve wires the whole
// pipeline together:
//
//	dev, err := gpu.Open(ctx, "cpu")
//	if err != nil { ... }
//	defer dev.Destroy()
//	dm, _, err := apsp.Solve(ctx, dev, apsp.PathGraph(100), apsp.MethodBlocked)
//	fmt.Println(dm.At(0, 99)) // 99
//
// Matrix rows may be padded to a multiple of the workgroup size; padding
// cells are never part of a result. Unreachable pairs read back as +Inf.
package apsp
