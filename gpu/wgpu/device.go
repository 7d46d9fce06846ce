//go:build gpu

// Package wgpu runs gpu programs on a WebGPU adapter. It is built only with
// the "gpu" tag; without it the "wgpu" backend reports itself unavailable.
package wgpu

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/openfluke/webgpu/wgpu"
	"k8s.io/klog/v2"

	"github.com/LynnColeArt/apsp/gpu"
)

// maxPolls bounds the busy wait for a buffer mapping.
const maxPolls = 1 << 20

func init() {
	gpu.Register("wgpu", func(ctx context.Context) (gpu.Device, error) {
		d, err := New(ctx)
		if err != nil {
			return nil, err
		}
		return d, nil
	})
}

// Device is a WebGPU adapter and its single queue. Calls into the native
// library are serialized by mu.
type Device struct {
	mu       sync.Mutex
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	dev      *wgpu.Device
	queue    *wgpu.Queue
	lost     atomic.Bool
}

var _ gpu.Device = (*Device)(nil)

// New acquires the default high-performance adapter.
func New(ctx context.Context) (*Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, gpu.NewDeviceError("New", "context done", err)
	}
	instance := wgpu.CreateInstance(nil)
	if instance == nil {
		return nil, gpu.NewDeviceError("New", "no WebGPU instance", nil)
	}
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		instance.Release()
		return nil, gpu.NewDeviceError("New", "no adapter", err)
	}
	dev, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, gpu.NewDeviceError("New", "no device", err)
	}
	klog.V(1).Info("wgpu: device up")
	return &Device{
		instance: instance,
		adapter:  adapter,
		dev:      dev,
		queue:    dev.GetQueue(),
	}, nil
}

// Info describes the device.
func (d *Device) Info() gpu.Info {
	return gpu.Info{Backend: "wgpu", Name: "WebGPU", Workers: 1}
}

type buffer struct {
	label string
	size  int
	usage gpu.Usage
	buf   *wgpu.Buffer
	once  sync.Once
}

func (b *buffer) Label() string    { return b.label }
func (b *buffer) Size() int        { return b.size }
func (b *buffer) Usage() gpu.Usage { return b.usage }

// Release frees the native buffer. WebGPU keeps it alive until work that
// references it has finished.
func (b *buffer) Release() {
	b.once.Do(b.buf.Release)
}

func bufferUsage(u gpu.Usage) wgpu.BufferUsage {
	var out wgpu.BufferUsage
	if u.Has(gpu.UsageStorage) {
		out |= wgpu.BufferUsageStorage
	}
	if u.Has(gpu.UsageUniform) {
		out |= wgpu.BufferUsageUniform
	}
	if u.Has(gpu.UsageCopySrc) {
		out |= wgpu.BufferUsageCopySrc
	}
	if u.Has(gpu.UsageCopyDst) {
		out |= wgpu.BufferUsageCopyDst
	}
	if u.Has(gpu.UsageMapRead) {
		out |= wgpu.BufferUsageMapRead
	}
	return out
}

// CreateBuffer allocates a zeroed buffer. Sizes are rounded up to a
// multiple of four bytes.
func (d *Device) CreateBuffer(desc gpu.BufferDescriptor) (gpu.Buffer, error) {
	if d.lost.Load() {
		return nil, gpu.ErrDeviceLost
	}
	if desc.Size <= 0 {
		return nil, gpu.NewInvalidArgError("CreateBuffer", fmt.Sprintf("size must be positive, got %d", desc.Size))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, err := d.dev.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label,
		Size:  uint64((desc.Size + 3) &^ 3),
		Usage: bufferUsage(desc.Usage),
	})
	if err != nil {
		return nil, gpu.NewDeviceError("CreateBuffer", desc.Label, err)
	}
	return &buffer{label: desc.Label, size: desc.Size, usage: desc.Usage, buf: buf}, nil
}

type pipeline struct {
	prog     gpu.Program
	layout   *wgpu.BindGroupLayout
	pipeline *wgpu.ComputePipeline
}

func (p *pipeline) Program() *gpu.Program { return &p.prog }

func (p *pipeline) Release() {
	p.pipeline.Release()
	p.layout.Release()
}

func bindingType(t gpu.BindingType) wgpu.BufferBindingType {
	switch t {
	case gpu.BindingReadOnlyStorage:
		return wgpu.BufferBindingTypeReadOnlyStorage
	case gpu.BindingUniform:
		return wgpu.BufferBindingTypeUniform
	default:
		return wgpu.BufferBindingTypeStorage
	}
}

// CreatePipeline compiles the WGSL source of p.
func (d *Device) CreatePipeline(p gpu.Program) (gpu.Pipeline, error) {
	if d.lost.Load() {
		return nil, gpu.ErrDeviceLost
	}
	if p.Source == "" {
		return nil, gpu.NewInvalidArgError("CreatePipeline", fmt.Sprintf("program %q has no WGSL source", p.Name))
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	module, err := d.dev.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          p.Name,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: p.Source},
	})
	if err != nil {
		return nil, gpu.NewValidationError("CreatePipeline", fmt.Sprintf("%s: %v", p.Name, err))
	}
	defer module.Release()

	entries := make([]wgpu.BindGroupLayoutEntry, len(p.Bindings))
	for i, t := range p.Bindings {
		entries[i] = wgpu.BindGroupLayoutEntry{
			Binding:    uint32(i),
			Visibility: wgpu.ShaderStageCompute,
			Buffer:     wgpu.BufferBindingLayout{Type: bindingType(t)},
		}
	}
	bgl, err := d.dev.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   p.Name + "_bgl",
		Entries: entries,
	})
	if err != nil {
		return nil, gpu.NewDeviceError("CreatePipeline", p.Name, err)
	}
	pl, err := d.dev.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.Name + "_pl",
		BindGroupLayouts: []*wgpu.BindGroupLayout{bgl},
	})
	if err != nil {
		bgl.Release()
		return nil, gpu.NewDeviceError("CreatePipeline", p.Name, err)
	}
	defer pl.Release()

	cp, err := d.dev.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  p.Name,
		Layout: pl,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: p.Entry,
		},
	})
	if err != nil {
		bgl.Release()
		return nil, gpu.NewValidationError("CreatePipeline", fmt.Sprintf("%s: %v", p.Name, err))
	}
	return &pipeline{prog: p, layout: bgl, pipeline: cp}, nil
}

type bindGroup struct {
	pipeline *pipeline
	bg       *wgpu.BindGroup
}

func (bg *bindGroup) Pipeline() gpu.Pipeline { return bg.pipeline }
func (bg *bindGroup) Release()               { bg.bg.Release() }

// CreateBindGroup binds buffers to the pipeline's slots in order.
func (d *Device) CreateBindGroup(p gpu.Pipeline, buffers ...gpu.Buffer) (gpu.BindGroup, error) {
	pl, ok := p.(*pipeline)
	if !ok {
		return nil, gpu.NewInvalidArgError("CreateBindGroup", fmt.Sprintf("foreign pipeline %T", p))
	}
	if len(buffers) != len(pl.prog.Bindings) {
		return nil, gpu.NewInvalidArgError("CreateBindGroup",
			fmt.Sprintf("program %q takes %d bindings, got %d", pl.prog.Name, len(pl.prog.Bindings), len(buffers)))
	}
	entries := make([]wgpu.BindGroupEntry, len(buffers))
	for i, b := range buffers {
		wb, ok := b.(*buffer)
		if !ok {
			return nil, gpu.NewInvalidArgError("CreateBindGroup", fmt.Sprintf("binding %d: foreign buffer %T", i, b))
		}
		entries[i] = wgpu.BindGroupEntry{Binding: uint32(i), Buffer: wb.buf, Offset: 0, Size: wb.buf.GetSize()}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	bg, err := d.dev.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   pl.prog.Name + "_bg",
		Layout:  pl.layout,
		Entries: entries,
	})
	if err != nil {
		return nil, gpu.NewValidationError("CreateBindGroup", err.Error())
	}
	return &bindGroup{pipeline: pl, bg: bg}, nil
}

// CreateEncoder starts a new command recording.
func (d *Device) CreateEncoder() gpu.Encoder {
	return &encoder{}
}

// Submit replays recorded commands onto the queue. Host writes go through
// queue.WriteBuffer, so the commands recorded before a write are submitted
// first to keep recording order.
func (d *Device) Submit(cmds ...gpu.CommandBuffer) error {
	if d.lost.Load() {
		return gpu.ErrDeviceLost
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range cmds {
		cb, ok := c.(*commandBuffer)
		if !ok {
			return gpu.NewInvalidArgError("Submit", fmt.Sprintf("foreign command buffer %T", c))
		}
		if cb.err != nil {
			return cb.err
		}
		if err := d.replay(cb); err != nil {
			return err
		}
	}
	return nil
}

func (d *Device) replay(cb *commandBuffer) error {
	var enc *wgpu.CommandEncoder
	flush := func() error {
		if enc == nil {
			return nil
		}
		fin, err := enc.Finish(nil)
		enc.Release()
		enc = nil
		if err != nil {
			return gpu.NewExecutionError("Submit", "finish command encoder", err)
		}
		d.queue.Submit(fin)
		fin.Release()
		return nil
	}
	for _, c := range cb.cmds {
		if c.kind == cmdWrite {
			if err := flush(); err != nil {
				return err
			}
			d.queue.WriteBuffer(c.dst.(*buffer).buf, uint64(c.offset), c.data)
			continue
		}
		if enc == nil {
			var err error
			if enc, err = d.dev.CreateCommandEncoder(nil); err != nil {
				return gpu.NewExecutionError("Submit", "create command encoder", err)
			}
		}
		switch c.kind {
		case cmdCopy:
			enc.CopyBufferToBuffer(c.src.(*buffer).buf, 0, c.dst.(*buffer).buf, 0, uint64(c.size))
		case cmdDispatch:
			pass := enc.BeginComputePass(nil)
			pass.SetPipeline(c.bg.pipeline.pipeline)
			pass.SetBindGroup(0, c.bg.bg, nil)
			pass.DispatchWorkgroups(uint32(c.grid.X), uint32(c.grid.Y), uint32(c.grid.Z))
			pass.End()
		}
	}
	return flush()
}

// WaitIdle polls the device until the queue is drained.
func (d *Device) WaitIdle(ctx context.Context) error {
	if d.lost.Load() {
		return gpu.ErrDeviceLost
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dev.Poll(true, nil)
	return nil
}

// MapRead copies buf through a mappable staging buffer. fn runs on a new
// goroutine.
func (d *Device) MapRead(buf gpu.Buffer, fn func([]byte, error)) {
	b, ok := buf.(*buffer)
	if !ok {
		go fn(nil, gpu.NewReadbackError("MapRead", fmt.Sprintf("foreign buffer %T", buf), nil))
		return
	}
	go func() {
		data, err := d.mapRead(b)
		fn(data, err)
	}()
}

func (d *Device) mapRead(b *buffer) ([]byte, error) {
	if d.lost.Load() {
		return nil, gpu.NewReadbackError("MapRead", "no data", gpu.ErrDeviceLost)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	size := b.buf.GetSize()
	staging, err := d.dev.CreateBuffer(&wgpu.BufferDescriptor{
		Label: b.label + "/readback",
		Size:  size,
		Usage: wgpu.BufferUsageCopyDst | wgpu.BufferUsageMapRead,
	})
	if err != nil {
		return nil, gpu.NewReadbackError("MapRead", "staging buffer", err)
	}
	defer staging.Release()

	enc, err := d.dev.CreateCommandEncoder(nil)
	if err != nil {
		return nil, gpu.NewReadbackError("MapRead", "command encoder", err)
	}
	enc.CopyBufferToBuffer(b.buf, 0, staging, 0, size)
	cb, err := enc.Finish(nil)
	enc.Release()
	if err != nil {
		return nil, gpu.NewReadbackError("MapRead", "finish command encoder", err)
	}
	d.queue.Submit(cb)
	cb.Release()

	var (
		done   bool
		status wgpu.BufferMapAsyncStatus
	)
	staging.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
		done = true
	})
	for i := 0; i < maxPolls && !done; i++ {
		d.dev.Poll(true, nil)
	}
	if !done || status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, gpu.NewReadbackError("MapRead", fmt.Sprintf("map status %v", status), nil)
	}
	mapped := staging.GetMappedRange(0, uint(size))
	if mapped == nil {
		return nil, gpu.NewReadbackError("MapRead", "no data", nil)
	}
	out := make([]byte, b.size)
	copy(out, mapped)
	staging.Unmap()
	return out, nil
}

// Destroy releases the adapter. Further work reports ErrDeviceLost.
func (d *Device) Destroy() {
	if d.lost.Swap(true) {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue.Release()
	d.dev.Release()
	d.adapter.Release()
	d.instance.Release()
	klog.V(1).Info("wgpu: device destroyed")
}
