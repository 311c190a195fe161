package cccl

import (
	"sync/atomic"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Fixed-size test closures. The pointer field plus padding pins each type's
// byte size on 64-bit platforms, asserted in TestClosureFixtureSizes.

type tinyClosure struct {
	hits *atomic.Int64
	pad  [56]byte
} // 64 bytes

func (c tinyClosure) Execute(ThreadID) {
	if c.hits != nil {
		c.hits.Add(1)
	}
}

type thresholdClosure struct {
	hits *atomic.Int64
	pad  [248]byte
} // exactly ByValueThresholdBytes

func (c thresholdClosure) Execute(ThreadID) {
	if c.hits != nil {
		c.hits.Add(1)
	}
}

type oversizeClosure struct {
	hits *atomic.Int64
	pad  [504]byte
} // 512 bytes

func (c oversizeClosure) Execute(ThreadID) {
	if c.hits != nil {
		c.hits.Add(1)
	}
}

type faultyOversizeClosure struct {
	pad [512]byte
}

func (faultyOversizeClosure) Execute(ThreadID) {
	panic("illegal memory access")
}

type faultyTinyClosure struct{}

func (faultyTinyClosure) Execute(ThreadID) {
	panic("illegal memory access")
}

// countingAllocator wraps an Allocator and counts traffic
type countingAllocator struct {
	inner  Allocator
	allocs atomic.Int64
	frees  atomic.Int64
}

func (a *countingAllocator) Allocate(size int) (DevicePtr, error) {
	a.allocs.Add(1)
	return a.inner.Allocate(size)
}

func (a *countingAllocator) Free(ptr DevicePtr) error {
	a.frees.Add(1)
	return a.inner.Free(ptr)
}

// failingAllocator refuses every allocation
type failingAllocator struct{}

func (failingAllocator) Allocate(int) (DevicePtr, error) {
	return DevicePtr{}, ErrOutOfMemory
}

func (failingAllocator) Free(DevicePtr) error {
	return nil
}

func TestClosureFixtureSizes(t *testing.T) {
	require.Equal(t, uintptr(64), unsafe.Sizeof(tinyClosure{}))
	require.Equal(t, uintptr(ByValueThresholdBytes), unsafe.Sizeof(thresholdClosure{}))
	require.Equal(t, uintptr(512), unsafe.Sizeof(oversizeClosure{}))
}

func TestTransportThreshold(t *testing.T) {
	tests := []struct {
		size int
		want Transport
	}{
		{1, TransportByValue},
		{64, TransportByValue},
		{ByValueThresholdBytes - 1, TransportByValue},
		{ByValueThresholdBytes, TransportByValue}, // boundary stays by value
		{ByValueThresholdBytes + 1, TransportByPointer},
		{512, TransportByPointer},
		{1 << 20, TransportByPointer},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, transportForSize(tt.size), "size %d", tt.size)
	}
}

func TestEntryPointPerClosureType(t *testing.T) {
	tiny := entryPointFor[tinyClosure]()
	assert.Equal(t, TransportByValue, tiny.Transport())
	assert.Equal(t, 64, tiny.ClosureSize())

	boundary := entryPointFor[thresholdClosure]()
	assert.Equal(t, TransportByValue, boundary.Transport())

	oversize := entryPointFor[oversizeClosure]()
	assert.Equal(t, TransportByPointer, oversize.Transport())
	assert.Equal(t, 512, oversize.ClosureSize())

	// the entry point is a stable identity: it keys the attributes cache
	assert.Equal(t, tiny, entryPointFor[tinyClosure]())
	assert.NotEqual(t, tiny, oversize)
	assert.Contains(t, oversize.Name(), "by-pointer")
}

func TestByValueLaunchDoesNotAllocate(t *testing.T) {
	counting := &countingAllocator{inner: NewMemoryPool()}
	ctx := NewContext(WithAllocator(counting))
	defer ctx.Destroy()

	var hits atomic.Int64
	l := NewLauncher[tinyClosure](ctx)
	require.Equal(t, TransportByValue, l.Transport())

	err := l.LaunchGeometry(tinyClosure{hits: &hits}, Geometry{GridSize: 4, BlockSize: 16})
	require.NoError(t, err)
	require.NoError(t, ctx.Synchronize())

	assert.Equal(t, int64(64), hits.Load(), "one invocation per lane")
	assert.Zero(t, counting.allocs.Load(), "by-value transport must not touch the allocator")
}

func TestThresholdSizedClosureGoesByValue(t *testing.T) {
	counting := &countingAllocator{inner: NewMemoryPool()}
	ctx := NewContext(WithAllocator(counting))
	defer ctx.Destroy()

	var hits atomic.Int64
	l := NewLauncher[thresholdClosure](ctx)
	require.Equal(t, TransportByValue, l.Transport())

	err := l.LaunchGeometry(thresholdClosure{hits: &hits}, Geometry{GridSize: 2, BlockSize: 32})
	require.NoError(t, err)
	require.NoError(t, ctx.Synchronize())

	assert.Equal(t, int64(64), hits.Load())
	assert.Zero(t, counting.allocs.Load())
}

func TestByReferenceLaunchStagesExactlyOnce(t *testing.T) {
	counting := &countingAllocator{inner: NewMemoryPool()}
	ctx := NewContext(WithAllocator(counting))
	defer ctx.Destroy()

	var hits atomic.Int64
	l := NewLauncher[oversizeClosure](ctx)
	require.Equal(t, TransportByPointer, l.Transport())

	const launches = 3
	for i := 0; i < launches; i++ {
		err := l.LaunchGeometry(oversizeClosure{hits: &hits}, Geometry{GridSize: 4, BlockSize: 16})
		require.NoError(t, err)
	}
	require.NoError(t, ctx.Synchronize())

	assert.Equal(t, int64(launches*64), hits.Load())
	assert.Equal(t, int64(launches), counting.allocs.Load(), "one allocation per launch")
	assert.Equal(t, int64(launches), counting.frees.Load(), "one release per launch")
}

func TestStagingReleasedWhenKernelFaults(t *testing.T) {
	counting := &countingAllocator{inner: NewMemoryPool()}
	ctx := NewContext(WithAllocator(counting))
	defer ctx.Destroy()

	l := NewLauncher[faultyOversizeClosure](ctx)
	require.Equal(t, TransportByPointer, l.Transport())

	err := l.LaunchGeometry(faultyOversizeClosure{}, Geometry{GridSize: 1, BlockSize: 32})
	require.NoError(t, err, "faults are deferred, not reported by the launch")

	err = ctx.Synchronize()
	require.Error(t, err)
	assert.True(t, IsKernelError(err))

	assert.Equal(t, int64(1), counting.allocs.Load())
	assert.Equal(t, int64(1), counting.frees.Load(), "staging must be released on the fault path")

	allocated, _ := counting.inner.(*MemoryPool).GetStats()
	assert.Zero(t, allocated, "pool should hold no live staging bytes")
}

func TestAllocationFailureAbortsLaunch(t *testing.T) {
	ctx := NewContext(WithAllocator(failingAllocator{}))
	defer ctx.Destroy()

	var hits atomic.Int64
	l := NewLauncher[oversizeClosure](ctx)

	err := l.LaunchGeometry(oversizeClosure{hits: &hits}, Geometry{GridSize: 4, BlockSize: 16})
	require.Error(t, err)
	assert.True(t, IsAllocationError(err), "allocation failure must surface synchronously")

	require.NoError(t, ctx.Synchronize())
	assert.Zero(t, hits.Load(), "no invocation may be enqueued after a staging failure")
}
