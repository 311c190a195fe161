package cccl

import (
	"sync"
)

// FuncAttributes is the per-kernel half of a capability snapshot: the
// resource footprint of one compiled entry point, as reported by the
// capability provider.
type FuncAttributes struct {
	MaxThreadsPerBlock int // largest block the kernel can be launched with
	NumRegs            int // registers per thread
	SharedSizeBytes    int // static shared memory per block
	LocalSizeBytes     int // local (spill) memory per thread
}

// CapabilityProvider answers capability queries for compiled kernel entry
// points. Queries must be deterministic: the same entry point always yields
// the same attributes for a given provider. The provider may be expensive;
// the Context caches its answers per entry point.
//
// Tests inject fake providers to exercise the occupancy solver against
// arbitrary hardware models without real hardware.
type CapabilityProvider interface {
	Properties() DeviceProperties
	FuncAttributes(entry EntryPoint) (FuncAttributes, error)
}

// simulatedProvider derives kernel attributes from the closure type behind
// each entry point. The register model is crude but deterministic: a fixed
// base cost plus one register per closure word, which is what makes large
// closures depress occupancy in the simulation just as they do on hardware.
type simulatedProvider struct {
	props DeviceProperties
}

const (
	baseKernelRegisters = 16
	maxModeledRegisters = 255
)

func (p *simulatedProvider) Properties() DeviceProperties {
	return p.props
}

func (p *simulatedProvider) FuncAttributes(entry EntryPoint) (FuncAttributes, error) {
	size := entry.ClosureSize()

	words := (size + 3) / 4
	regs := baseKernelRegisters + words
	local := 0
	if entry.Transport() == TransportByPointer {
		// the by-pointer entry copies the staged closure to fast storage,
		// spilling what does not fit in registers
		regs = baseKernelRegisters + 8
		local = size
	}
	if regs > maxModeledRegisters {
		local += (regs - maxModeledRegisters) * 4
		regs = maxModeledRegisters
	}

	return FuncAttributes{
		MaxThreadsPerBlock: p.props.MaxThreadsPerBlock,
		NumRegs:            regs,
		SharedSizeBytes:    0,
		LocalSizeBytes:     local,
	}, nil
}

// attributesCache memoizes capability queries per entry point. Lookup is
// read-mostly; population happens under the write lock so a given entry
// point queries the underlying provider at most once.
type attributesCache struct {
	mu      sync.RWMutex
	entries map[EntryPoint]FuncAttributes
}

func newAttributesCache() *attributesCache {
	return &attributesCache{
		entries: make(map[EntryPoint]FuncAttributes),
	}
}

func (c *attributesCache) get(entry EntryPoint, query func(EntryPoint) (FuncAttributes, error)) (FuncAttributes, error) {
	c.mu.RLock()
	attrs, ok := c.entries[entry]
	c.mu.RUnlock()
	if ok {
		return attrs, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if attrs, ok := c.entries[entry]; ok {
		return attrs, nil
	}
	attrs, err := query(entry)
	if err != nil {
		return FuncAttributes{}, err
	}
	c.entries[entry] = attrs
	return attrs, nil
}

// FuncAttributes returns the cached capability snapshot for an entry point,
// querying the provider on first use. Repeated calls for the same entry
// point return identical attributes without touching the provider again.
func (ctx *Context) FuncAttributes(entry EntryPoint) (FuncAttributes, error) {
	return ctx.attrs.get(entry, ctx.caps.FuncAttributes)
}

// Properties returns the device-wide capability snapshot
func (ctx *Context) Properties() DeviceProperties {
	return ctx.caps.Properties()
}
