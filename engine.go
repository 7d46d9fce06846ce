package apsp

import (
	"fmt"

	"github.com/LynnColeArt/apsp/gpu"
)

// Stats describes one engine run.
type Stats struct {
	Dispatches int        // kernel dispatches issued
	Copies     int        // device-side buffer copies issued
	Output     gpu.Buffer // buffer holding the result
}

// engine is the plumbing shared by both engines: one compiled pipeline,
// the layout rule of its kernel, and buffer bookkeeping.
type engine struct {
	dev      gpu.Device
	pipeline gpu.Pipeline
	shape    Workgroup
	padRows  bool
	opts     options
}

func newEngine(dev gpu.Device, prog gpu.Program, shape Workgroup, padRows bool, opts options) (engine, error) {
	if dev == nil {
		return engine{}, gpu.NewDeviceError("NewEngine", "no device", nil)
	}
	p, err := dev.CreatePipeline(prog)
	if err != nil {
		return engine{}, fmt.Errorf("apsp: compile %s: %w", prog.Name, err)
	}
	return engine{dev: dev, pipeline: p, shape: shape, padRows: padRows, opts: opts}, nil
}

// Layout returns the buffer layout this engine uses for n vertices.
func (e *engine) Layout(n int) Layout {
	return e.shape.Layout(n, e.padRows)
}

// BufferSize returns the byte capacity of each of the engine's buffers.
func (e *engine) BufferSize(n int) int {
	return e.Layout(n).Bytes()
}

// Workgroup returns the dispatch workgroup shape.
func (e *engine) Workgroup() Workgroup {
	return e.shape
}

// CreateBuffers allocates the in/out pair for an n-vertex run.
func (e *engine) CreateBuffers(n int) (in, out gpu.Buffer, err error) {
	if n < 1 {
		return nil, nil, gpu.NewInvalidArgError("CreateBuffers", fmt.Sprintf("n=%d must be positive", n))
	}
	size := e.BufferSize(n)
	in, err = e.dev.CreateBuffer(gpu.BufferDescriptor{Label: e.opts.label + "/in", Size: size, Usage: usageMatrix})
	if err != nil {
		return nil, nil, err
	}
	out, err = e.dev.CreateBuffer(gpu.BufferDescriptor{Label: e.opts.label + "/out", Size: size, Usage: usageMatrix})
	if err != nil {
		in.Release()
		return nil, nil, err
	}
	return in, out, nil
}

// Stage uploads the seed matrix of g into dst using this engine's layout.
func (e *engine) Stage(g Graph, dst gpu.Buffer) error {
	return Stage(e.dev, g, e.Layout(g.N), dst)
}

// check validates a run's buffers against the layout for n.
func (e *engine) check(op string, in, out gpu.Buffer, n int) (Layout, error) {
	if n < 1 {
		return Layout{}, gpu.NewInvalidArgError(op, fmt.Sprintf("n=%d must be positive", n))
	}
	if in == out {
		return Layout{}, gpu.NewInvalidArgError(op, "in and out must be distinct buffers")
	}
	l := e.Layout(n)
	if err := checkCapacity(op, in, l); err != nil {
		return l, err
	}
	if err := checkCapacity(op, out, l); err != nil {
		return l, err
	}
	return l, nil
}

// newParams allocates the params uniform of one run.
func (e *engine) newParams() (gpu.Buffer, error) {
	return e.dev.CreateBuffer(gpu.BufferDescriptor{
		Label: e.opts.label + "/params",
		Size:  ParamsSize,
		Usage: usageParams,
	})
}

// Release frees the compiled pipeline.
func (e *engine) Release() {
	if e.pipeline != nil {
		e.pipeline.Release()
		e.pipeline = nil
	}
}
