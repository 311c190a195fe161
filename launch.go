package cccl

import (
	"runtime"
	"unsafe"

	"github.com/google/uuid"
)

// LaunchID tags a single kernel invocation. Kernel faults are asynchronous,
// so the ID is what ties an error observed at a synchronization point back
// to the launch that caused it.
type LaunchID uuid.UUID

func newLaunchID() LaunchID {
	return LaunchID(uuid.New())
}

// String returns the canonical UUID form
func (id LaunchID) String() string {
	return uuid.UUID(id).String()
}

// Geometry is a caller-supplied launch configuration. When a Geometry is
// given the launcher uses it as-is and performs no occupancy computation.
type Geometry struct {
	GridSize       int
	BlockSize      int
	SharedMemBytes int // dynamic shared memory per block
}

// Launcher launches closures of one concrete type F. The transport strategy
// and kernel entry point are fixed at construction from F's byte size, so
// every launch through one Launcher takes the same path.
//
// A Launcher is safe for concurrent use; launches issued to the same stream
// execute in issue order.
type Launcher[F Closure] struct {
	ctx   *Context
	entry EntryPoint
	size  int
}

// NewLauncher creates a launcher for closure type F on the given context
func NewLauncher[F Closure](ctx *Context) *Launcher[F] {
	var zero F
	return &Launcher[F]{
		ctx:   ctx,
		entry: entryPointFor[F](),
		size:  int(unsafe.Sizeof(zero)),
	}
}

// EntryPoint returns the kernel entry point launches dispatch through
func (l *Launcher[F]) EntryPoint() EntryPoint {
	return l.entry
}

// Transport returns the strategy selected for F
func (l *Launcher[F]) Transport() Transport {
	return l.entry.Transport()
}

// snapshot returns the capability pair the occupancy solver needs
func (l *Launcher[F]) snapshot() (DeviceProperties, FuncAttributes, error) {
	attrs, err := l.ctx.FuncAttributes(l.entry)
	if err != nil {
		return DeviceProperties{}, FuncAttributes{}, err
	}
	return l.ctx.Properties(), attrs, nil
}

// BlockSizeForMaxOccupancy solves for the occupancy-maximizing block size of
// this launcher's entry point, given a per-thread dynamic shared-memory
// requirement in bytes.
func (l *Launcher[F]) BlockSizeForMaxOccupancy(dynamicSMemBytesPerThread int) (int, error) {
	props, attrs, err := l.snapshot()
	if err != nil {
		return 0, err
	}
	return BlockSizeForMaxOccupancy(props, attrs, dynamicSMemBytesPerThread)
}

// GridSizeForProblem returns ceil(n/blockSize) clamped to this entry point's
// maximum resident block count.
func (l *Launcher[F]) GridSizeForProblem(n, blockSize, dynamicSMemBytes int) (int, error) {
	props, attrs, err := l.snapshot()
	if err != nil {
		return 0, err
	}
	return GridSizeForProblem(n, blockSize, props, attrs, dynamicSMemBytes)
}

// ConfigurationFor composes the two solvers for a bare problem size
func (l *Launcher[F]) ConfigurationFor(n int) (gridSize, blockSize int, err error) {
	props, attrs, err := l.snapshot()
	if err != nil {
		return 0, 0, err
	}
	return ConfigurationFor(n, props, attrs)
}

// Launch executes f once per logical lane for a problem of n elements on
// the default stream, with geometry solved for maximal occupancy.
// Configuration and staging failures are returned here, before anything is
// enqueued; kernel faults surface at the next Synchronize.
func (l *Launcher[F]) Launch(f F, n int) error {
	return l.LaunchOn(l.ctx.DefaultStream(), f, n)
}

// LaunchOn is Launch onto a specific stream
func (l *Launcher[F]) LaunchOn(stream *Stream, f F, n int) error {
	if n < 0 {
		return NewInvalidArgError("Launch", "problem size must be non-negative")
	}
	if n == 0 {
		return nil
	}
	gridSize, blockSize, err := l.ConfigurationFor(n)
	if err != nil {
		return err
	}
	return l.launch(stream, f, Geometry{GridSize: gridSize, BlockSize: blockSize})
}

// LaunchGeometry executes f with caller-overridden geometry on the default
// stream. No occupancy computation is performed.
func (l *Launcher[F]) LaunchGeometry(f F, geom Geometry) error {
	return l.LaunchGeometryOn(l.ctx.DefaultStream(), f, geom)
}

// LaunchGeometryOn is LaunchGeometry onto a specific stream
func (l *Launcher[F]) LaunchGeometryOn(stream *Stream, f F, geom Geometry) error {
	return l.launch(stream, f, geom)
}

// launch stages the closure if the transport demands it, enqueues the kernel
// invocation, and schedules release of any staged memory behind it on the
// same stream, so the staging allocation is freed on every path including a
// faulting kernel.
func (l *Launcher[F]) launch(stream *Stream, f F, geom Geometry) error {
	if geom.GridSize <= 0 || geom.BlockSize <= 0 || geom.SharedMemBytes < 0 {
		return ErrInvalidGeometry
	}

	id := newLaunchID()
	grid := Dim3{X: geom.GridSize, Y: 1, Z: 1}
	block := Dim3{X: geom.BlockSize, Y: 1, Z: 1}

	switch l.entry.Transport() {
	case TransportByValue:
		l.ctx.enqueueKernel(stream, id, grid, block, func(tid ThreadID) {
			launchClosureByValue(f, tid)
		})

	case TransportByPointer:
		staged, err := l.stage(&f)
		if err != nil {
			return err
		}
		p := (*F)(staged.ptr)
		l.ctx.enqueueKernel(stream, id, grid, block, func(tid ThreadID) {
			launchClosureByPointer(p, tid)
		})
		stream.Submit(func() {
			// the staged bytes are opaque to the garbage collector; the host
			// copy keeps anything the closure points at reachable until the
			// kernel task ahead of this one has run
			runtime.KeepAlive(f)
			if err := l.ctx.alloc.Free(staged); err != nil {
				stream.recordError(NewKernelError(id, "staged closure not released", err))
			}
		})
	}

	return l.ctx.synchronizeIfEnabled(stream)
}

// stage copies the closure's bytes into a fresh device allocation
func (l *Launcher[F]) stage(f *F) (DevicePtr, error) {
	staged, err := l.ctx.alloc.Allocate(l.size)
	if err != nil {
		return DevicePtr{}, NewAllocationError("Launch", "cannot stage closure", err)
	}
	copy(staged.Byte(), closureBytes(f))
	return staged, nil
}

// LaunchClosure executes f once per lane for n elements on the default
// context, mirroring the package-level convenience of the Context API.
func LaunchClosure[F Closure](f F, n int) error {
	return NewLauncher[F](Default()).Launch(f, n)
}
