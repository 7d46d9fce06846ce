package cpu

import (
	"sync"

	"k8s.io/klog/v2"

	"github.com/LynnColeArt/apsp/gpu"
)

// MemoryPool manages device memory allocation with efficient reuse.
// It maintains a free list of previously allocated blocks to reduce
// allocation overhead and memory fragmentation.
type MemoryPool struct {
	mu         sync.Mutex
	freeList   []*allocation
	totalAlloc int64
	peakAlloc  int64
}

type allocation struct {
	buf  []byte
	used bool
}

// NewMemoryPool creates a new memory pool for efficient memory management.
// The pool tracks allocations and provides statistics on memory usage.
func NewMemoryPool() *MemoryPool {
	return &MemoryPool{}
}

// Allocate returns a zeroed block of at least size bytes.
func (mp *MemoryPool) Allocate(size int) *allocation {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	alignedSize := (size + MemoryAlignment - 1) &^ (MemoryAlignment - 1)

	// Try to reuse from free list
	for i, alloc := range mp.freeList {
		if cap(alloc.buf) >= alignedSize {
			mp.freeList = append(mp.freeList[:i], mp.freeList[i+1:]...)
			alloc.used = true
			alloc.buf = alloc.buf[:cap(alloc.buf)]
			clear(alloc.buf)
			mp.track(int64(cap(alloc.buf)))
			return alloc
		}
	}

	alloc := &allocation{
		buf:  make([]byte, alignedSize),
		used: true,
	}
	mp.track(int64(alignedSize))
	return alloc
}

func (mp *MemoryPool) track(n int64) {
	mp.totalAlloc += n
	if mp.totalAlloc > mp.peakAlloc {
		mp.peakAlloc = mp.totalAlloc
	}
}

// Free returns memory to the pool
func (mp *MemoryPool) Free(alloc *allocation) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if !alloc.used {
		klog.Warningf("cpu: double free of %d byte block ignored", cap(alloc.buf))
		return
	}
	alloc.used = false
	mp.freeList = append(mp.freeList, alloc)
	mp.totalAlloc -= int64(cap(alloc.buf))
}

// Stats returns memory pool statistics
func (mp *MemoryPool) Stats() (allocated, peak int64) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.totalAlloc, mp.peakAlloc
}

// buffer is a device buffer backed by pool memory.
type buffer struct {
	label string
	size  int
	usage gpu.Usage
	alloc *allocation
	pool  *MemoryPool
	dev   *Device
	once  sync.Once
}

var _ gpu.HostMemory = (*buffer)(nil)

func (b *buffer) Label() string    { return b.label }
func (b *buffer) Size() int        { return b.size }
func (b *buffer) Usage() gpu.Usage { return b.usage }

// Bytes returns the buffer contents. Only kernels and the device's own
// queue may touch them while work is in flight.
func (b *buffer) Bytes() []byte {
	return b.alloc.buf[:b.size]
}

// Release returns the memory to the pool once all work submitted before
// the call has completed. Releasing twice is a no-op.
func (b *buffer) Release() {
	b.once.Do(func() {
		free := func() { b.pool.Free(b.alloc) }
		if b.dev == nil || !b.dev.stream.Submit(free) {
			free()
		}
	})
}
