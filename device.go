package cccl

import (
	"runtime"

	"golang.org/x/sys/cpu"
)

// DeviceProperties is the hardware-wide half of a capability snapshot: the
// per-multiprocessor resource limits that bound how many blocks of a given
// kernel can be resident at once. The per-kernel half is FuncAttributes.
type DeviceProperties struct {
	Name string

	WarpSize           int // scheduling granularity in lanes
	MaxThreadsPerBlock int // hardware per-block lane limit

	MaxThreadsPerMultiprocessor int
	MaxBlocksPerMultiprocessor  int
	RegistersPerMultiprocessor  int
	SharedMemPerMultiprocessor  int // bytes
	MultiprocessorCount         int
}

// Device represents the simulated compute device backing kernel execution.
// Lanes map to CPU threads; the occupancy model is a fixed hardware profile
// so launch configuration behaves like it would against a real part.
type Device struct {
	ID    int
	Props DeviceProperties
}

// newDefaultDevice builds the simulated device from the host CPU. The
// occupancy-relevant limits come from the default profile; detection only
// affects the advertised name and multiprocessor count.
func newDefaultDevice() *Device {
	return &Device{
		ID: 0,
		Props: DeviceProperties{
			Name:                        "Simulated CPU Device (" + cpuFeatureName() + ")",
			WarpSize:                    WarpSize,
			MaxThreadsPerBlock:          MaxThreadsPerBlock,
			MaxThreadsPerMultiprocessor: DefaultMaxThreadsPerMultiprocessor,
			MaxBlocksPerMultiprocessor:  DefaultMaxBlocksPerMultiprocessor,
			RegistersPerMultiprocessor:  DefaultRegistersPerMultiprocessor,
			SharedMemPerMultiprocessor:  DefaultSharedMemPerMultiprocessor,
			MultiprocessorCount:         runtime.NumCPU(),
		},
	}
}

// cpuFeatureName reports the widest SIMD extension the host supports
func cpuFeatureName() string {
	switch {
	case cpu.X86.HasAVX512F:
		return "AVX512"
	case cpu.X86.HasAVX2 && cpu.X86.HasFMA:
		return "AVX2"
	case cpu.X86.HasSSE41 || cpu.X86.HasSSE42:
		return "SSE4"
	case cpu.ARM64.HasASIMD:
		return "NEON"
	default:
		return "scalar"
	}
}
