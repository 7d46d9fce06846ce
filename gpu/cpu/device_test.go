package cpu

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LynnColeArt/apsp/gpu"
)

const rw = gpu.UsageStorage | gpu.UsageCopySrc | gpu.UsageCopyDst

func readback(t *testing.T, d *Device, b gpu.Buffer) ([]byte, error) {
	t.Helper()
	type result struct {
		data []byte
		err  error
	}
	ch := make(chan result, 1)
	d.MapRead(b, func(data []byte, err error) { ch <- result{data, err} })
	select {
	case r := <-ch:
		return r.data, r.err
	case <-time.After(10 * time.Second):
		t.Fatal("MapRead callback never ran")
		return nil, nil
	}
}

// addOne adds 1 to every element covered by the dispatch.
var addOne = gpu.Program{
	Name:      "add_one",
	Workgroup: gpu.Dim3{X: 4, Y: 1, Z: 1},
	Bindings:  []gpu.BindingType{gpu.BindingStorage},
	Host: func(wg gpu.Workgroup, b []gpu.Buffer) {
		data := gpu.HostFloat32(b[0])
		for lx := 0; lx < wg.Size.X; lx++ {
			if i := wg.GlobalX(lx); i < len(data) {
				data[i]++
			}
		}
	},
}

func TestDeviceWriteCopyRead(t *testing.T) {
	d := New(WithWorkers(2))
	defer d.Destroy()

	src, err := d.CreateBuffer(gpu.BufferDescriptor{Label: "src", Size: 16, Usage: rw})
	require.NoError(t, err)
	dst, err := d.CreateBuffer(gpu.BufferDescriptor{Label: "dst", Size: 16, Usage: rw})
	require.NoError(t, err)

	enc := d.CreateEncoder()
	enc.WriteBuffer(src, 0, gpu.Float32Bytes([]float32{1, 2, 3, 4}))
	enc.CopyBuffer(src, dst, 16)
	cb := enc.Finish()
	assert.Equal(t, 2, cb.Len())
	require.NoError(t, d.Submit(cb))

	data, err := readback(t, d, dst)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4}, gpu.BytesFloat32(data))
}

func TestDeviceDispatchOrdering(t *testing.T) {
	d := New(WithWorkers(3))
	defer d.Destroy()

	const n = 37
	buf, err := d.CreateBuffer(gpu.BufferDescriptor{Size: n * 4, Usage: rw})
	require.NoError(t, err)
	p, err := d.CreatePipeline(addOne)
	require.NoError(t, err)
	bg, err := d.CreateBindGroup(p, buf)
	require.NoError(t, err)

	grid := gpu.Dim3{X: (n + 3) / 4, Y: 1, Z: 1}
	for i := 0; i < 5; i++ {
		enc := d.CreateEncoder()
		enc.Dispatch(bg, grid)
		require.NoError(t, d.Submit(enc.Finish()))
	}
	require.NoError(t, d.WaitIdle(context.Background()))

	data, err := readback(t, d, buf)
	require.NoError(t, err)
	for i, v := range gpu.BytesFloat32(data) {
		assert.Equal(t, float32(5), v, "element %d", i)
	}
}

func TestDeviceReleaseAfterSubmit(t *testing.T) {
	d := New()
	defer d.Destroy()

	buf, err := d.CreateBuffer(gpu.BufferDescriptor{Size: 64, Usage: rw})
	require.NoError(t, err)
	p, err := d.CreatePipeline(addOne)
	require.NoError(t, err)
	bg, err := d.CreateBindGroup(p, buf)
	require.NoError(t, err)

	enc := d.CreateEncoder()
	enc.Dispatch(bg, gpu.Dim3{X: 4, Y: 1, Z: 1})
	require.NoError(t, d.Submit(enc.Finish()))
	buf.Release()
	buf.Release()
	require.NoError(t, d.WaitIdle(context.Background()))

	allocated, peak := d.MemoryStats()
	assert.Zero(t, allocated)
	assert.Equal(t, int64(64), peak)
}

func TestDeviceValidation(t *testing.T) {
	d := New()
	defer d.Destroy()

	_, err := d.CreateBuffer(gpu.BufferDescriptor{Size: 0})
	assert.ErrorIs(t, err, gpu.ErrInvalidArg)

	_, err = d.CreatePipeline(gpu.Program{Name: "wgsl-only", Workgroup: gpu.Dim3{X: 1, Y: 1, Z: 1}})
	assert.ErrorIs(t, err, gpu.ErrInvalidArg)

	p, err := d.CreatePipeline(addOne)
	require.NoError(t, err)
	_, err = d.CreateBindGroup(p)
	assert.ErrorIs(t, err, gpu.ErrInvalidArg, "binding count")

	uniform, err := d.CreateBuffer(gpu.BufferDescriptor{Size: 16, Usage: gpu.UsageUniform | gpu.UsageCopyDst})
	require.NoError(t, err)
	_, err = d.CreateBindGroup(p, uniform)
	assert.ErrorIs(t, err, gpu.ErrInvalidArg, "storage slot needs storage usage")

	small, err := d.CreateBuffer(gpu.BufferDescriptor{Size: 8, Usage: rw})
	require.NoError(t, err)
	enc := d.CreateEncoder()
	enc.WriteBuffer(small, 0, make([]byte, 16))
	enc.WriteBuffer(small, 0, make([]byte, 4))
	err = d.Submit(enc.Finish())
	assert.ErrorIs(t, err, gpu.ErrCapacity, "first error poisons the recording")

	enc = d.CreateEncoder()
	enc.WriteBuffer(uniform, 0, make([]byte, 4))
	enc.CopyBuffer(uniform, small, 4)
	assert.ErrorIs(t, d.Submit(enc.Finish()), gpu.ErrInvalidArg, "uniform lacks copy-src")
}

func TestDeviceKernelFault(t *testing.T) {
	d := New(WithWorkers(2))
	defer d.Destroy()

	faulty := gpu.Program{
		Name:      "faulty",
		Workgroup: gpu.Dim3{X: 1, Y: 1, Z: 1},
		Bindings:  []gpu.BindingType{gpu.BindingStorage},
		Host: func(wg gpu.Workgroup, b []gpu.Buffer) {
			data := gpu.HostFloat32(b[0])
			data[len(data)+wg.ID.X] = 1
		},
	}
	buf, err := d.CreateBuffer(gpu.BufferDescriptor{Size: 4, Usage: rw})
	require.NoError(t, err)
	p, err := d.CreatePipeline(faulty)
	require.NoError(t, err)
	bg, err := d.CreateBindGroup(p, buf)
	require.NoError(t, err)

	enc := d.CreateEncoder()
	enc.Dispatch(bg, gpu.Dim3{X: 2, Y: 1, Z: 1})
	require.NoError(t, d.Submit(enc.Finish()))

	assert.ErrorIs(t, d.WaitIdle(context.Background()), gpu.ErrDeviceLost)
	assert.ErrorIs(t, d.Submit(d.CreateEncoder().Finish()), gpu.ErrDeviceLost)

	data, err := readback(t, d, buf)
	assert.Nil(t, data)
	assert.ErrorIs(t, err, gpu.ErrNoData)
}

func TestDeviceDestroy(t *testing.T) {
	d := New()
	buf, err := d.CreateBuffer(gpu.BufferDescriptor{Size: 16, Usage: rw})
	require.NoError(t, err)

	d.Destroy()
	d.Destroy()

	data, err := readback(t, d, buf)
	assert.Nil(t, data)
	assert.ErrorIs(t, err, gpu.ErrNoData)
	assert.ErrorIs(t, err, gpu.ErrDeviceLost)

	_, err = d.CreateBuffer(gpu.BufferDescriptor{Size: 16, Usage: rw})
	assert.ErrorIs(t, err, gpu.ErrDeviceLost)
	buf.Release()
}

func TestDeviceRegistered(t *testing.T) {
	dev, err := gpu.Open(context.Background(), "cpu")
	require.NoError(t, err)
	defer dev.Destroy()
	info := dev.Info()
	assert.Equal(t, "cpu", info.Backend)
	assert.Positive(t, info.Workers)
}

func TestLinearTo3D(t *testing.T) {
	dim := gpu.Dim3{X: 3, Y: 2, Z: 2}
	assert.Equal(t, gpu.Dim3{X: 0, Y: 0, Z: 0}, linearTo3D(0, dim))
	assert.Equal(t, gpu.Dim3{X: 2, Y: 1, Z: 0}, linearTo3D(5, dim))
	assert.Equal(t, gpu.Dim3{X: 1, Y: 0, Z: 1}, linearTo3D(7, dim))
}
