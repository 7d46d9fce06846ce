// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cpu provides a compute device that executes kernels on the host.
// Workgroups of a dispatch are spread over a fixed set of goroutines; each
// goroutine runs whole workgroups, so a host kernel may keep its workgroup
// shared memory on its own stack. Submitted work runs on one in-order
// stream, which gives the same ordering guarantees as a hardware queue.
//
// The backend registers itself as "cpu".
package cpu

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"k8s.io/klog/v2"

	"github.com/LynnColeArt/apsp/gpu"
)

// Device parameters
const (
	// Queue depth of the device stream
	DefaultQueueDepth = 1024

	// Memory alignment for allocations (cache line size)
	MemoryAlignment = 64
)

func init() {
	gpu.Register("cpu", func(ctx context.Context) (gpu.Device, error) {
		return New(), nil
	})
}

// Option configures a Device.
type Option func(*Device)

// WithWorkers sets the number of goroutines a dispatch is spread over.
// Values below 1 select runtime.NumCPU.
func WithWorkers(n int) Option {
	return func(d *Device) {
		if n < 1 {
			n = runtime.NumCPU()
		}
		d.workers = n
	}
}

// WithQueueDepth sets how many submissions may be pending before Submit
// blocks.
func WithQueueDepth(n int) Option {
	return func(d *Device) {
		if n < 1 {
			n = 1
		}
		d.queueDepth = n
	}
}

// Device executes gpu programs on the host.
type Device struct {
	workers    int
	queueDepth int
	stream     *Stream
	memory     *MemoryPool
	lost       atomic.Bool
}

var _ gpu.Device = (*Device)(nil)

// New creates a CPU device.
func New(opts ...Option) *Device {
	d := &Device{
		workers:    runtime.NumCPU(),
		queueDepth: DefaultQueueDepth,
		memory:     NewMemoryPool(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.stream = NewStream(d.queueDepth)
	klog.V(1).Infof("cpu: device up, %d workers, %s", d.workers, CPUInfo())
	return d
}

// Info describes the device.
func (d *Device) Info() gpu.Info {
	return gpu.Info{
		Backend:  "cpu",
		Name:     fmt.Sprintf("CPU (%s/%s)", runtime.GOOS, runtime.GOARCH),
		Features: Features(),
		Workers:  d.workers,
	}
}

// MemoryStats returns the bytes currently allocated and the peak.
func (d *Device) MemoryStats() (allocated, peak int64) {
	return d.memory.Stats()
}

// CreateBuffer allocates a zeroed buffer.
func (d *Device) CreateBuffer(desc gpu.BufferDescriptor) (gpu.Buffer, error) {
	if d.lost.Load() {
		return nil, gpu.ErrDeviceLost
	}
	if desc.Size <= 0 {
		return nil, gpu.NewInvalidArgError("CreateBuffer", fmt.Sprintf("size must be positive, got %d", desc.Size))
	}
	return &buffer{
		label: desc.Label,
		size:  desc.Size,
		usage: desc.Usage,
		alloc: d.memory.Allocate(desc.Size),
		pool:  d.memory,
		dev:   d,
	}, nil
}

type pipeline struct {
	prog gpu.Program
}

func (p *pipeline) Program() *gpu.Program { return &p.prog }
func (p *pipeline) Release()              {}

// CreatePipeline resolves the host form of a program.
func (d *Device) CreatePipeline(p gpu.Program) (gpu.Pipeline, error) {
	if d.lost.Load() {
		return nil, gpu.ErrDeviceLost
	}
	if p.Host == nil {
		return nil, gpu.NewInvalidArgError("CreatePipeline", fmt.Sprintf("program %q has no host kernel", p.Name))
	}
	if p.Workgroup.Size() <= 0 {
		return nil, gpu.NewInvalidArgError("CreatePipeline", fmt.Sprintf("program %q has empty workgroup %v", p.Name, p.Workgroup))
	}
	return &pipeline{prog: p}, nil
}

type bindGroup struct {
	pipeline *pipeline
	buffers  []gpu.Buffer
}

func (bg *bindGroup) Pipeline() gpu.Pipeline { return bg.pipeline }
func (bg *bindGroup) Release()               {}

// CreateBindGroup binds buffers to the pipeline's slots in order.
func (d *Device) CreateBindGroup(p gpu.Pipeline, buffers ...gpu.Buffer) (gpu.BindGroup, error) {
	pl, ok := p.(*pipeline)
	if !ok {
		return nil, gpu.NewInvalidArgError("CreateBindGroup", fmt.Sprintf("foreign pipeline %T", p))
	}
	slots := pl.prog.Bindings
	if len(buffers) != len(slots) {
		return nil, gpu.NewInvalidArgError("CreateBindGroup",
			fmt.Sprintf("program %q takes %d bindings, got %d", pl.prog.Name, len(slots), len(buffers)))
	}
	for i, b := range buffers {
		if _, ok := b.(*buffer); !ok {
			return nil, gpu.NewInvalidArgError("CreateBindGroup", fmt.Sprintf("binding %d: foreign buffer %T", i, b))
		}
		want := gpu.UsageStorage
		if slots[i] == gpu.BindingUniform {
			want = gpu.UsageUniform
		}
		if !b.Usage().Has(want) {
			return nil, gpu.NewInvalidArgError("CreateBindGroup",
				fmt.Sprintf("binding %d: buffer %q lacks usage %#x", i, b.Label(), want))
		}
	}
	return &bindGroup{pipeline: pl, buffers: buffers}, nil
}

// CreateEncoder starts a new command recording.
func (d *Device) CreateEncoder() gpu.Encoder {
	return &encoder{}
}

// Submit enqueues command buffers on the device stream.
func (d *Device) Submit(cmds ...gpu.CommandBuffer) error {
	if d.lost.Load() {
		return gpu.ErrDeviceLost
	}
	for _, c := range cmds {
		cb, ok := c.(*commandBuffer)
		if !ok {
			return gpu.NewInvalidArgError("Submit", fmt.Sprintf("foreign command buffer %T", c))
		}
		if cb.err != nil {
			return cb.err
		}
		if !d.stream.Submit(func() { d.execute(cb) }) {
			return gpu.ErrDeviceLost
		}
	}
	return nil
}

// execute runs one command buffer on the stream goroutine.
func (d *Device) execute(cb *commandBuffer) {
	for _, c := range cb.cmds {
		if d.lost.Load() {
			return
		}
		switch c.kind {
		case cmdWrite:
			copy(c.dst.(*buffer).Bytes()[c.offset:], c.data)
		case cmdCopy:
			copy(c.dst.(*buffer).Bytes()[:c.size], c.src.(*buffer).Bytes()[:c.size])
		case cmdDispatch:
			if err := d.launch(c.bg, c.grid); err != nil {
				klog.Warningf("cpu: %v; device lost", err)
				d.lost.Store(true)
				return
			}
		}
	}
}

// WaitIdle blocks until all submitted work has completed.
func (d *Device) WaitIdle(ctx context.Context) error {
	if err := d.stream.Synchronize(ctx); err != nil {
		return err
	}
	if d.lost.Load() {
		return gpu.ErrDeviceLost
	}
	return nil
}

// MapRead copies buf to the host once all previously submitted work has
// completed.
func (d *Device) MapRead(buf gpu.Buffer, fn func([]byte, error)) {
	b, ok := buf.(*buffer)
	if !ok {
		go fn(nil, gpu.NewReadbackError("MapRead", fmt.Sprintf("foreign buffer %T", buf), nil))
		return
	}
	if !b.usage.Has(gpu.UsageCopySrc) {
		go fn(nil, gpu.NewReadbackError("MapRead", fmt.Sprintf("buffer %q lacks copy-src usage", b.label), nil))
		return
	}
	read := func() {
		if d.lost.Load() {
			fn(nil, gpu.NewReadbackError("MapRead", "no data", gpu.ErrDeviceLost))
			return
		}
		out := make([]byte, b.size)
		copy(out, b.Bytes())
		fn(out, nil)
	}
	if !d.stream.Submit(read) {
		go fn(nil, gpu.NewReadbackError("MapRead", "no data", gpu.ErrDeviceLost))
	}
}

// Destroy marks the device lost and stops its stream. Work still queued is
// dropped.
func (d *Device) Destroy() {
	if d.lost.Swap(true) {
		return
	}
	d.stream.Close()
	klog.V(1).Info("cpu: device destroyed")
}
