package cpu

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/LynnColeArt/apsp/gpu"
)

// launch implements the core kernel execution logic. Workgroups are split
// into contiguous ranges, one per worker; each worker runs its workgroups
// sequentially, which keeps a workgroup's shared tiles in one goroutine.
func (d *Device) launch(bg *bindGroup, grid gpu.Dim3) error {
	prog := &bg.pipeline.prog
	gridSize := grid.Size()
	if gridSize == 0 {
		return nil
	}

	numWorkers := min(d.workers, gridSize)
	groupsPerWorker := (gridSize + numWorkers - 1) / numWorkers

	var g errgroup.Group
	for start := 0; start < gridSize; start += groupsPerWorker {
		end := min(start+groupsPerWorker, gridSize)
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = gpu.NewExecutionError("Dispatch",
						fmt.Sprintf("kernel %s faulted in workgroups [%d,%d)", prog.Name, start, end),
						fmt.Errorf("%v", r))
				}
			}()
			for id := start; id < end; id++ {
				prog.Host(gpu.Workgroup{
					ID:   linearTo3D(id, grid),
					Size: prog.Workgroup,
					Grid: grid,
				}, bg.buffers)
			}
			return nil
		})
	}
	return g.Wait()
}

// linearTo3D converts a linear index to 3D coordinates
func linearTo3D(linear int, dim gpu.Dim3) gpu.Dim3 {
	z := linear / (dim.X * dim.Y)
	y := (linear % (dim.X * dim.Y)) / dim.X
	x := linear % dim.X
	return gpu.Dim3{X: x, Y: y, Z: z}
}
