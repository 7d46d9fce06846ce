//go:build !gpu

// Package wgpu runs gpu programs on a WebGPU adapter. This build was made
// without the "gpu" tag, so the backend is registered but always reports
// the device as unavailable.
package wgpu

import (
	"context"

	"github.com/LynnColeArt/apsp/gpu"
)

func init() {
	gpu.Register("wgpu", func(ctx context.Context) (gpu.Device, error) {
		return New(ctx)
	})
}

// New always fails; rebuild with -tags gpu for WebGPU support.
func New(ctx context.Context) (gpu.Device, error) {
	return nil, gpu.NewDeviceError("New", "built without the gpu tag", nil)
}
