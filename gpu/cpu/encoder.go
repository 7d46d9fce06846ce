package cpu

import (
	"fmt"

	"github.com/LynnColeArt/apsp/gpu"
)

type cmdKind int

const (
	cmdWrite cmdKind = iota
	cmdCopy
	cmdDispatch
)

type command struct {
	kind   cmdKind
	dst    gpu.Buffer
	src    gpu.Buffer
	offset int
	size   int
	data   []byte
	bg     *bindGroup
	grid   gpu.Dim3
}

// encoder records commands. The first invalid command poisons the
// recording; the error surfaces from Submit.
type encoder struct {
	cmds []command
	err  error
}

type commandBuffer struct {
	cmds []command
	err  error
}

func (c *commandBuffer) Len() int { return len(c.cmds) }

func (e *encoder) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

func (e *encoder) WriteBuffer(dst gpu.Buffer, offset int, data []byte) {
	b, ok := dst.(*buffer)
	if !ok {
		e.fail(gpu.NewInvalidArgError("WriteBuffer", fmt.Sprintf("foreign buffer %T", dst)))
		return
	}
	if !b.usage.Has(gpu.UsageCopyDst) {
		e.fail(gpu.NewInvalidArgError("WriteBuffer", fmt.Sprintf("buffer %q lacks copy-dst usage", b.label)))
		return
	}
	if offset < 0 || offset+len(data) > b.size {
		e.fail(gpu.NewCapacityError("WriteBuffer", b.size, offset+len(data)))
		return
	}
	// Host data is captured at record time.
	data = append([]byte(nil), data...)
	e.cmds = append(e.cmds, command{kind: cmdWrite, dst: dst, offset: offset, data: data})
}

func (e *encoder) CopyBuffer(src, dst gpu.Buffer, size int) {
	s, ok1 := src.(*buffer)
	d, ok2 := dst.(*buffer)
	if !ok1 || !ok2 {
		e.fail(gpu.NewInvalidArgError("CopyBuffer", "foreign buffer"))
		return
	}
	if !s.usage.Has(gpu.UsageCopySrc) || !d.usage.Has(gpu.UsageCopyDst) {
		e.fail(gpu.NewInvalidArgError("CopyBuffer",
			fmt.Sprintf("copy %q -> %q needs copy-src and copy-dst usage", s.label, d.label)))
		return
	}
	if size > s.size || size > d.size {
		e.fail(gpu.NewCapacityError("CopyBuffer", min(s.size, d.size), size))
		return
	}
	e.cmds = append(e.cmds, command{kind: cmdCopy, src: src, dst: dst, size: size})
}

func (e *encoder) Dispatch(bg gpu.BindGroup, grid gpu.Dim3) {
	g, ok := bg.(*bindGroup)
	if !ok {
		e.fail(gpu.NewInvalidArgError("Dispatch", fmt.Sprintf("foreign bind group %T", bg)))
		return
	}
	if grid.X < 0 || grid.Y < 0 || grid.Z < 0 {
		e.fail(gpu.NewInvalidArgError("Dispatch", fmt.Sprintf("negative grid %v", grid)))
		return
	}
	e.cmds = append(e.cmds, command{kind: cmdDispatch, bg: g, grid: grid})
}

func (e *encoder) Finish() gpu.CommandBuffer {
	cb := &commandBuffer{cmds: e.cmds, err: e.err}
	e.cmds = nil
	return cb
}
