package apsp

import (
	"fmt"
	"math/bits"

	"k8s.io/klog/v2"

	"github.com/LynnColeArt/apsp/gpu"
	"github.com/LynnColeArt/apsp/kernels"
)

// Variant is one min-plus kernel: its workgroup shape, how its buffers are
// laid out, and how it binds and dispatches. Naive and Blocked are the
// built-in variants; both produce identical products.
type Variant struct {
	Name      string
	Workgroup Workgroup
	// PadRows pads the row count as well as the stride, giving a
	// stride×stride buffer.
	PadRows bool
	program func() (gpu.Program, error)
}

// NaiveVariant computes one output cell per 1×1 workgroup, scanning the
// whole contraction range in global memory.
func NaiveVariant() Variant {
	return NaiveVariantShape(Naive)
}

// NaiveVariantShape is the naive kernel with a different workgroup shape.
// The shape changes only the padding and dispatch grid.
func NaiveVariantShape(w Workgroup) Variant {
	return Variant{
		Name:      "naive",
		Workgroup: w,
		PadRows:   true,
		program:   func() (gpu.Program, error) { return kernels.TropicalNaive(w.X, w.Y) },
	}
}

// BlockedVariant stages 16×16 tiles of both operands in workgroup shared
// memory.
func BlockedVariant() Variant {
	return BlockedVariantTile(DefaultTile)
}

// BlockedVariantTile is the blocked kernel with tile×tile workgroups.
func BlockedVariantTile(tile int) Variant {
	return Variant{
		Name:      "blocked",
		Workgroup: Workgroup{X: tile, Y: tile},
		PadRows:   true,
		program:   func() (gpu.Program, error) { return kernels.TropicalBlocked(tile) },
	}
}

// Layout returns the variant's buffer layout for n vertices.
func (v Variant) Layout(n int) Layout {
	return v.Workgroup.Layout(n, v.PadRows)
}

// BufferSize returns the variant's buffer capacity in bytes.
func (v Variant) BufferSize(n int) int {
	return v.Layout(n).Bytes()
}

// Bind binds src as the operand, dst as the product and the params uniform.
func (v Variant) Bind(dev gpu.Device, p gpu.Pipeline, src, dst, params gpu.Buffer) (gpu.BindGroup, error) {
	return dev.CreateBindGroup(p, src, dst, params)
}

// Dispatch records one product over the n×n grid.
func (v Variant) Dispatch(enc gpu.Encoder, bg gpu.BindGroup, n int) {
	enc.Dispatch(bg, v.Workgroup.Grid(n))
}

func (v Variant) String() string {
	return fmt.Sprintf("%s(%v)", v.Name, v.Workgroup)
}

// Rounds returns the number of squaring rounds for n vertices,
// ceil(log2 n), which bounds ceil(log2 diameter).
func Rounds(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

// TropicalMatmul computes APSP by repeated min-plus squaring of the seed
// matrix: after the round with doubling counter k, entries hold shortest
// distances over paths of up to 2k edges.
//
// A TropicalMatmul may run many times, but not concurrently with itself.
type TropicalMatmul struct {
	engine
	variant Variant
}

// NewTropicalMatmul compiles v's kernel on dev.
func NewTropicalMatmul(dev gpu.Device, v Variant, opts ...Option) (*TropicalMatmul, error) {
	if v.program == nil {
		return nil, gpu.NewInvalidArgError("NewTropicalMatmul", "zero Variant")
	}
	if err := v.Workgroup.Validate(); err != nil {
		return nil, err
	}
	o, err := gatherOptions(opts)
	if err != nil {
		return nil, err
	}
	prog, err := v.program()
	if err != nil {
		return nil, err
	}
	e, err := newEngine(dev, prog, v.Workgroup, v.PadRows, o)
	if err != nil {
		return nil, err
	}
	return &TropicalMatmul{engine: e, variant: v}, nil
}

// Variant returns the engine's kernel variant.
func (t *TropicalMatmul) Variant() Variant {
	return t.variant
}

// Run squares the staged matrix in until paths of every length up to n-1
// are covered. With PingPongCopy the result is in out; with PingPongSwap
// it is in Stats.Output. For n = 1 no round is needed and out receives a
// copy of in.
func (t *TropicalMatmul) Run(in, out gpu.Buffer, n int) (Stats, error) {
	l, err := t.check("TropicalMatmul.Run", in, out, n)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{Output: out}

	if n == 1 {
		enc := t.dev.CreateEncoder()
		enc.CopyBuffer(in, out, l.Bytes())
		if err := t.dev.Submit(enc.Finish()); err != nil {
			return stats, err
		}
		stats.Copies++
		return stats, nil
	}

	params, err := t.newParams()
	if err != nil {
		return stats, err
	}
	defer params.Release()

	forward, err := t.variant.Bind(t.dev, t.pipeline, in, out, params)
	if err != nil {
		return stats, err
	}
	defer forward.Release()

	var backward gpu.BindGroup
	if t.opts.pingPong == PingPongSwap {
		if backward, err = t.variant.Bind(t.dev, t.pipeline, out, in, params); err != nil {
			return stats, err
		}
		defer backward.Release()
	}

	dst := out
	round := 0
	for k := 1; k < n; k *= 2 {
		enc := t.dev.CreateEncoder()
		bg := forward
		if round == 0 {
			enc.WriteBuffer(params, 0, kernels.NewParams(n, l.Stride, 0).Bytes())
		} else if t.opts.pingPong == PingPongCopy {
			enc.CopyBuffer(out, in, l.Bytes())
			stats.Copies++
		} else if round%2 == 1 {
			bg, dst = backward, in
		} else {
			dst = out
		}
		t.variant.Dispatch(enc, bg, n)
		if err := t.dev.Submit(enc.Finish()); err != nil {
			return stats, err
		}
		stats.Dispatches++
		round++
		klog.V(2).Infof("apsp: %v round %d covers paths up to %d edges", t.variant, round, 2*k)
	}
	stats.Output = dst

	klog.V(1).Infof("apsp: tropical %v n=%d stride=%d rows=%d rounds=%d copies=%d ping-pong=%v",
		t.variant, n, l.Stride, l.Rows, stats.Dispatches, stats.Copies, t.opts.pingPong)
	return stats, nil
}
