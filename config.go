// Package apsp configuration constants
package apsp

import (
	"github.com/LynnColeArt/apsp/gpu"
	"github.com/LynnColeArt/apsp/kernels"
)

const (
	// Tile edge of the blocked min-plus kernel
	DefaultTile = 16

	// Byte size of the per-dispatch params uniform
	ParamsSize = kernels.ParamsSize
)

// Usages of engine-owned buffers. Both matrix buffers can be staged into,
// copied either way, and read back, so either may hold the result.
const (
	usageMatrix = gpu.UsageStorage | gpu.UsageCopyDst | gpu.UsageCopySrc
	usageParams = gpu.UsageUniform | gpu.UsageCopyDst
)
