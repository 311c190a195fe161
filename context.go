package cccl

import (
	"sync"
)

// Context represents an execution context for launch operations. It owns the
// staging allocator, the capability provider and its per-entry-point cache,
// and the set of execution streams. A Context must be created before any
// launches and destroyed when no longer needed.
type Context struct {
	device *Device
	alloc  Allocator
	caps   CapabilityProvider
	attrs  *attributesCache

	mu            sync.Mutex
	streams       map[int]*Stream
	nextStreamID  int
	defaultStream *Stream

	debugSync bool
}

// Option configures a Context at construction time
type Option func(*Context)

// WithAllocator replaces the default pool allocator used for closure staging
func WithAllocator(a Allocator) Option {
	return func(ctx *Context) { ctx.alloc = a }
}

// WithCapabilityProvider replaces the default simulated capability provider.
// Tests use this to model arbitrary hardware without real devices.
func WithCapabilityProvider(p CapabilityProvider) Option {
	return func(ctx *Context) { ctx.caps = p }
}

// WithDeviceProperties overrides the simulated device's hardware limits
// while keeping the default attribute model.
func WithDeviceProperties(props DeviceProperties) Option {
	return func(ctx *Context) {
		ctx.device.Props = props
		ctx.caps = &simulatedProvider{props: props}
	}
}

// WithDebugSync enables a synchronization point after every launch, so
// asynchronous kernel faults surface from Launch itself at a deterministic
// point instead of at the caller's next Synchronize. Diagnostic mode only:
// it serializes the stream.
func WithDebugSync(enabled bool) Option {
	return func(ctx *Context) { ctx.debugSync = enabled }
}

// NewContext creates an execution context with a simulated device, a pool
// allocator, and one default stream.
func NewContext(opts ...Option) *Context {
	device := newDefaultDevice()
	ctx := &Context{
		device:  device,
		alloc:   NewMemoryPool(),
		caps:    &simulatedProvider{props: device.Props},
		attrs:   newAttributesCache(),
		streams: make(map[int]*Stream),
	}
	for _, opt := range opts {
		opt(ctx)
	}
	ctx.defaultStream = ctx.CreateStream()
	return ctx
}

// Device returns the context's device
func (ctx *Context) Device() *Device {
	return ctx.device
}

// CreateStream creates a new execution stream
func (ctx *Context) CreateStream() *Stream {
	ctx.mu.Lock()
	ctx.nextStreamID++
	id := ctx.nextStreamID
	stream := newStream(id)
	ctx.streams[id] = stream
	ctx.mu.Unlock()
	return stream
}

// DefaultStream returns the stream launches go to when none is specified
func (ctx *Context) DefaultStream() *Stream {
	return ctx.defaultStream
}

// Malloc allocates device memory from the context's allocator
func (ctx *Context) Malloc(size int) (DevicePtr, error) {
	return ctx.alloc.Allocate(size)
}

// Free releases device memory allocated by Malloc
func (ctx *Context) Free(ptr DevicePtr) error {
	return ctx.alloc.Free(ptr)
}

// Synchronize waits for all streams to complete and returns the first
// deferred kernel error found, if any.
func (ctx *Context) Synchronize() error {
	ctx.mu.Lock()
	streams := make([]*Stream, 0, len(ctx.streams))
	for _, s := range ctx.streams {
		streams = append(streams, s)
	}
	ctx.mu.Unlock()

	var first error
	for _, s := range streams {
		if err := s.Synchronize(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Destroy drains and shuts down all streams. The context must not be used
// afterwards.
func (ctx *Context) Destroy() {
	ctx.mu.Lock()
	streams := ctx.streams
	ctx.streams = make(map[int]*Stream)
	ctx.mu.Unlock()

	for _, s := range streams {
		s.close()
	}
}

// synchronizeIfEnabled is the post-launch diagnostic checkpoint
func (ctx *Context) synchronizeIfEnabled(stream *Stream) error {
	if !ctx.debugSync {
		return nil
	}
	return stream.Synchronize()
}

// Global default context, for the package-level convenience API

var (
	defaultCtx  *Context
	defaultOnce sync.Once
)

// Default returns the lazily created process-wide context
func Default() *Context {
	defaultOnce.Do(func() {
		defaultCtx = NewContext()
	})
	return defaultCtx
}

// Malloc allocates device memory from the default context
func Malloc(size int) (DevicePtr, error) {
	return Default().Malloc(size)
}

// Free releases device memory allocated from the default context
func Free(ptr DevicePtr) error {
	return Default().Free(ptr)
}

// Synchronize waits for all work on the default context
func Synchronize() error {
	return Default().Synchronize()
}
