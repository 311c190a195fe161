// Package cccl provides a CUDA-style parallel closure launcher with
// occupancy-driven launch configuration, executed on a simulated device.
//
// A closure is a zero-argument unit of work invoked exactly once per logical
// lane of a kernel launch. For each closure type the launcher decides whether
// the closure travels into the kernel by value or via a staged device-memory
// copy, and — when the caller supplies only a problem size — solves for the
// block size that maximizes resident-thread occupancy and the minimum grid
// size that covers the problem.
//
// Example usage:
//
//	ctx := cccl.NewContext()
//	defer ctx.Destroy()
//
//	l := cccl.NewLauncher[AxpyClosure](ctx)
//	if err := l.Launch(AxpyClosure{A: 2, X: x, Y: y, N: n}, n); err != nil {
//	    log.Fatal(err)
//	}
//	if err := ctx.Synchronize(); err != nil {
//	    log.Fatal(err) // kernel faults surface here, not at Launch
//	}
package cccl
