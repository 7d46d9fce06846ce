// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gpu defines the compute-context contract the APSP engines
// dispatch against. A Device hands out buffers, compiles kernel programs
// into pipelines, binds buffers to them, and executes recorded command
// streams on a single in-order queue.
//
// Two backends implement it: gpu/cpu, which runs host kernels on a pool of
// goroutines, and gpu/wgpu, which drives a WebGPU adapter when built with
// the "gpu" tag.
//
// Example usage:
//
//	dev, err := gpu.Open(ctx, "cpu")
//	if err != nil {
//		return err
//	}
//	defer dev.Destroy()
//
//	buf, _ := dev.CreateBuffer(gpu.BufferDescriptor{Size: n * 4, Usage: gpu.UsageStorage | gpu.UsageCopyDst})
//	enc := dev.CreateEncoder()
//	enc.WriteBuffer(buf, 0, gpu.Float32Bytes(host))
//	dev.Submit(enc.Finish())
package gpu

import (
	"context"
	"fmt"
)

// Dim3 represents 3D dimensions for dispatch grids and workgroups.
type Dim3 struct {
	X, Y, Z int
}

// Size returns the total number of elements
func (d Dim3) Size() int {
	return d.X * d.Y * d.Z
}

func (d Dim3) String() string {
	return fmt.Sprintf("(%d,%d,%d)", d.X, d.Y, d.Z)
}

// Usage is a bit set describing how a buffer may be used.
type Usage uint32

const (
	UsageStorage Usage = 1 << iota // bound as a storage buffer
	UsageUniform                   // bound as a uniform buffer
	UsageCopySrc                   // source of copies and readback
	UsageCopyDst                   // destination of copies and host writes
	UsageMapRead                   // host-mappable for reading
)

// Has reports whether all bits of f are set.
func (u Usage) Has(f Usage) bool {
	return u&f == f
}

// BufferDescriptor describes a buffer allocation.
type BufferDescriptor struct {
	Label string
	Size  int // bytes
	Usage Usage
}

// Buffer is a fixed-capacity region of device memory.
type Buffer interface {
	Label() string
	Size() int
	Usage() Usage
	Release()
}

// BindingType describes how a kernel parameter slot is bound.
type BindingType int

const (
	BindingReadOnlyStorage BindingType = iota
	BindingStorage
	BindingUniform
)

// Workgroup is the identity of one workgroup within a dispatch, handed to
// host kernels. Host kernels process every invocation of their workgroup.
type Workgroup struct {
	ID   Dim3 // workgroup index within the grid
	Size Dim3 // invocations per workgroup
	Grid Dim3 // workgroups in the dispatch
}

// GlobalX returns the global invocation X index of local invocation lx.
func (w Workgroup) GlobalX(lx int) int {
	return w.ID.X*w.Size.X + lx
}

// GlobalY returns the global invocation Y index of local invocation ly.
func (w Workgroup) GlobalY(ly int) int {
	return w.ID.Y*w.Size.Y + ly
}

// HostKernel executes one workgroup on the host. bindings are in the order
// declared by Program.Bindings.
type HostKernel func(wg Workgroup, bindings []Buffer)

// Program is a compiled-on-demand kernel artifact. Source is opaque text
// for shader-based backends; Host is the equivalent kernel for the CPU
// backend. A backend uses whichever form it understands.
type Program struct {
	Name      string
	Entry     string
	Source    string
	Workgroup Dim3
	Bindings  []BindingType
	Host      HostKernel
}

// Pipeline is a program compiled for a particular device.
type Pipeline interface {
	Program() *Program
	Release()
}

// BindGroup associates concrete buffers with a pipeline's binding slots.
type BindGroup interface {
	Pipeline() Pipeline
	Release()
}

// CommandBuffer is a finished, immutable command stream.
type CommandBuffer interface {
	Len() int
}

// Encoder records commands. Commands execute in recording order once the
// finished CommandBuffer is submitted.
type Encoder interface {
	// WriteBuffer uploads host bytes into dst at offset.
	WriteBuffer(dst Buffer, offset int, data []byte)
	// CopyBuffer copies size bytes from the start of src to the start of dst.
	CopyBuffer(src, dst Buffer, size int)
	// Dispatch runs the bound pipeline over grid workgroups.
	Dispatch(bg BindGroup, grid Dim3)
	Finish() CommandBuffer
}

// Info describes a device.
type Info struct {
	Backend  string
	Name     string
	Features []string
	Workers  int
}

// Device is the compute-context collaborator.
type Device interface {
	Info() Info
	CreateBuffer(desc BufferDescriptor) (Buffer, error)
	CreatePipeline(p Program) (Pipeline, error)
	CreateBindGroup(p Pipeline, buffers ...Buffer) (BindGroup, error)
	CreateEncoder() Encoder
	// Submit enqueues command buffers. The device executes queued work in
	// submission order.
	Submit(cmds ...CommandBuffer) error
	// WaitIdle blocks until all submitted work has completed.
	WaitIdle(ctx context.Context) error
	// MapRead asynchronously copies buf back to the host. fn is invoked
	// exactly once, from any goroutine, with the buffer contents or with a
	// nil slice and an error if the device has no data to report.
	MapRead(buf Buffer, fn func(data []byte, err error))
	// Destroy releases the device. Further work reports ErrDeviceLost.
	Destroy()
}
