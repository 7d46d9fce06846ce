package apsp

import (
	"context"

	"k8s.io/klog/v2"

	"github.com/LynnColeArt/apsp/gpu"
)

// Readback copies buf back to the host once all previously submitted work
// on dev has completed. The calling goroutine waits on a channel, not on
// the device.
//
// If the device reports no data, for instance because it was lost, the
// result is nil and an error matching gpu.ErrNoData; a zeroed matrix is
// never returned. If ctx ends first, ctx.Err() is returned.
func Readback(ctx context.Context, dev gpu.Device, buf gpu.Buffer) ([]float32, error) {
	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	dev.MapRead(buf, func(data []byte, err error) {
		done <- result{data: data, err: err}
	})

	select {
	case r := <-done:
		if r.err != nil {
			klog.Warningf("apsp: readback of %q failed: %v", buf.Label(), r.err)
			return nil, gpu.NewReadbackError("Readback", "device reported no data", r.err)
		}
		if r.data == nil {
			return nil, gpu.NewReadbackError("Readback", "device reported no data", nil)
		}
		return gpu.BytesFloat32(r.data), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ReadMatrix reads buf back and interprets it with layout l.
func ReadMatrix(ctx context.Context, dev gpu.Device, buf gpu.Buffer, l Layout) (*DistanceMatrix, error) {
	data, err := Readback(ctx, dev, buf)
	if err != nil {
		return nil, err
	}
	return NewDistanceMatrix(l, data)
}
