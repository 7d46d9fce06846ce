package kernels

import (
	"math"
	"sync"

	"github.com/LynnColeArt/apsp/gpu"
)

// relax is the host form of floyd_warshall.wgsl. Row and column k are
// never written during pivot k because d[k][k] is 0, so invocations of
// one dispatch never observe each other's updates.
func relax(wg gpu.Workgroup, b []gpu.Buffer) {
	dist := gpu.HostFloat32(b[0])
	p := DecodeParams(b[1])
	n, stride, k := int(p.N), int(p.Stride), int(p.K)

	for ly := 0; ly < wg.Size.Y; ly++ {
		i := wg.GlobalY(ly)
		if i >= n {
			return
		}
		ik := dist[i*stride+k]
		row := dist[i*stride : i*stride+n]
		pivot := dist[k*stride : k*stride+n]
		for lx := 0; lx < wg.Size.X; lx++ {
			j := wg.GlobalX(lx)
			if j >= n {
				break
			}
			if cand := ik + pivot[j]; cand < row[j] {
				row[j] = cand
			}
		}
	}
}

// minPlusNaive is the host form of tropical_matmul.wgsl.
func minPlusNaive(wg gpu.Workgroup, b []gpu.Buffer) {
	a := gpu.HostFloat32(b[0])
	out := gpu.HostFloat32(b[1])
	p := DecodeParams(b[2])
	n, stride := int(p.N), int(p.Stride)

	for ly := 0; ly < wg.Size.Y; ly++ {
		i := wg.GlobalY(ly)
		if i >= n {
			return
		}
		for lx := 0; lx < wg.Size.X; lx++ {
			j := wg.GlobalX(lx)
			if j >= n {
				break
			}
			best := a[i*stride+j]
			for m := 0; m < n; m++ {
				if c := a[i*stride+m] + a[m*stride+j]; c < best {
					best = c
				}
			}
			out[i*stride+j] = best
		}
	}
}

// tileScratch is the per-workgroup shared memory of the blocked kernel.
type tileScratch struct {
	a, b, best []float32
}

// minPlusBlocked returns the host form of tropical_matmul_block.wgsl. The
// two tiles play the role of workgroup shared memory; staging a whole tile
// before accumulating stands in for the barriers. Scratch tiles are pooled
// per kernel and reused across workgroups and dispatches.
func minPlusBlocked(tile int) gpu.HostKernel {
	scratch := sync.Pool{New: func() any {
		return &tileScratch{
			a:    make([]float32, tile*tile),
			b:    make([]float32, tile*tile),
			best: make([]float32, tile*tile),
		}
	}}
	return func(wg gpu.Workgroup, b []gpu.Buffer) {
		a := gpu.HostFloat32(b[0])
		out := gpu.HostFloat32(b[1])
		p := DecodeParams(b[2])
		n, stride := int(p.N), int(p.Stride)
		inf := math.Float32frombits(p.Inf)

		row0 := wg.ID.Y * tile
		col0 := wg.ID.X * tile
		s := scratch.Get().(*tileScratch)
		defer scratch.Put(s)
		tileA, tileB, best := s.a, s.b, s.best
		for idx := range best {
			best[idx] = inf
		}

		for t := 0; t < n; t += tile {
			for li := 0; li < tile; li++ {
				for lj := 0; lj < tile; lj++ {
					i, col := row0+li, t+lj
					if i < n && col < n {
						tileA[li*tile+lj] = a[i*stride+col]
					} else {
						tileA[li*tile+lj] = inf
					}
					row, j := t+li, col0+lj
					if row < n && j < n {
						tileB[li*tile+lj] = a[row*stride+j]
					} else {
						tileB[li*tile+lj] = inf
					}
				}
			}
			for li := 0; li < tile; li++ {
				acc := best[li*tile : li*tile+tile]
				for m := 0; m < tile; m++ {
					am := tileA[li*tile+m]
					bm := tileB[m*tile : m*tile+tile]
					for lj := range acc {
						if c := am + bm[lj]; c < acc[lj] {
							acc[lj] = c
						}
					}
				}
			}
		}

		for li := 0; li < tile; li++ {
			i := row0 + li
			if i >= n {
				break
			}
			for lj := 0; lj < tile; lj++ {
				j := col0 + lj
				if j >= n {
					break
				}
				out[i*stride+j] = best[li*tile+lj]
			}
		}
	}
}
