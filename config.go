// Package cccl configuration constants
package cccl

// Closure transport parameters
const (
	// Largest closure (in bytes) still passed by value into the kernel
	// argument area. Larger closures are staged in device memory and passed
	// by reference. The decision is made once per closure type.
	ByValueThresholdBytes = 256
)

// Thread and block dimensions
const (
	// Scheduling granularity: candidate block sizes are multiples of this
	WarpSize = 32

	// Default block size when occupancy solving is bypassed
	DefaultBlockSize = 256

	// Maximum threads per block (CUDA compatibility)
	MaxThreadsPerBlock = 1024
)

// Simulated multiprocessor resources, modeled on a mid-range discrete part
const (
	DefaultMaxThreadsPerMultiprocessor = 2048
	DefaultMaxBlocksPerMultiprocessor  = 32
	DefaultRegistersPerMultiprocessor  = 65536
	DefaultSharedMemPerMultiprocessor  = 96 * 1024
)

// Memory pool parameters
const (
	// Memory alignment for staging allocations
	MemoryAlignment = 64

	// Minimum allocation size to prevent fragmentation
	MinAllocationSize = 64
)
