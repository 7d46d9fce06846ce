package apsp

import (
	"math"

	"k8s.io/klog/v2"

	"github.com/LynnColeArt/apsp/gpu"
)

// Seed builds the host-side seed matrix of g in layout l: +Inf everywhere,
// 0 on the diagonal, 1 for both directions of every edge. g must be valid
// for l.N vertices.
func Seed(g Graph, l Layout) []float32 {
	distance := make([]float32, l.Cells())
	inf := float32(math.Inf(1))
	for i := range distance {
		distance[i] = inf
	}
	for i := 0; i < l.N; i++ {
		distance[l.Index(i, i)] = 0
	}
	for _, e := range g.Edges {
		if e.U == e.V {
			continue
		}
		distance[l.Index(e.U, e.V)] = 1
		distance[l.Index(e.V, e.U)] = 1
	}
	return distance
}

// Stage validates g, builds its seed matrix in layout l and uploads it to
// dst as one full-buffer write in a single submission. dst must hold
// exactly l.Bytes() bytes; nothing is written otherwise.
func Stage(dev gpu.Device, g Graph, l Layout, dst gpu.Buffer) error {
	if g.N != l.N {
		return gpu.NewInvalidArgError("Stage", "graph and layout vertex counts differ")
	}
	if err := g.Validate(); err != nil {
		return err
	}
	if err := checkCapacity("Stage", dst, l); err != nil {
		return err
	}

	distance := Seed(g, l)
	enc := dev.CreateEncoder()
	enc.WriteBuffer(dst, 0, gpu.Float32Bytes(distance))
	if err := dev.Submit(enc.Finish()); err != nil {
		return err
	}
	klog.V(2).Infof("apsp: staged n=%d stride=%d rows=%d edges=%d into %q",
		l.N, l.Stride, l.Rows, len(g.Edges), dst.Label())
	return nil
}
