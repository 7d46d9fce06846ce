package apsp

import (
	"k8s.io/klog/v2"

	"github.com/LynnColeArt/apsp/gpu"
	"github.com/LynnColeArt/apsp/kernels"
)

// FloydWarshall drives the O(n³) relaxation: n sequential dispatches, one
// per pivot k, each relaxing every pair (i, j) through k in place.
//
// Each pivot is its own submission, so all writes of pivot k are visible
// before pivot k+1 starts. A run cannot be interrupted once issued, and it
// always issues n dispatches whatever the graph's diameter.
//
// A FloydWarshall may run many times, but not concurrently with itself.
type FloydWarshall struct {
	engine
}

// NewFloydWarshall compiles the relaxation kernel on dev. The workgroup
// shape defaults to 16×16 and can be changed with WithWorkgroup.
func NewFloydWarshall(dev gpu.Device, opts ...Option) (*FloydWarshall, error) {
	o, err := gatherOptions(opts)
	if err != nil {
		return nil, err
	}
	prog, err := kernels.FloydWarshall(o.workgroup.X, o.workgroup.Y)
	if err != nil {
		return nil, err
	}
	e, err := newEngine(dev, prog, o.workgroup, false, o)
	if err != nil {
		return nil, err
	}
	return &FloydWarshall{engine: e}, nil
}

// Run copies the staged matrix in into out and relaxes out through every
// pivot. The result is in out once the device is idle.
func (fw *FloydWarshall) Run(in, out gpu.Buffer, n int) (Stats, error) {
	l, err := fw.check("FloydWarshall.Run", in, out, n)
	if err != nil {
		return Stats{}, err
	}
	params, err := fw.newParams()
	if err != nil {
		return Stats{}, err
	}
	defer params.Release()

	bg, err := fw.dev.CreateBindGroup(fw.pipeline, out, params)
	if err != nil {
		return Stats{}, err
	}
	defer bg.Release()

	stats := Stats{Output: out}
	enc := fw.dev.CreateEncoder()
	enc.CopyBuffer(in, out, l.Bytes())
	if err := fw.dev.Submit(enc.Finish()); err != nil {
		return stats, err
	}
	stats.Copies++

	grid := fw.shape.Grid(n)
	for k := 0; k < n; k++ {
		enc := fw.dev.CreateEncoder()
		enc.WriteBuffer(params, 0, kernels.NewParams(n, l.Stride, k).Bytes())
		enc.Dispatch(bg, grid)
		if err := fw.dev.Submit(enc.Finish()); err != nil {
			return stats, err
		}
		stats.Dispatches++
		if klog.V(3).Enabled() {
			klog.Infof("apsp: floyd-warshall pivot %d/%d grid %v", k+1, n, grid)
		}
	}
	klog.V(1).Infof("apsp: floyd-warshall n=%d stride=%d workgroup=%v dispatches=%d",
		n, l.Stride, fw.shape, stats.Dispatches)
	return stats, nil
}
