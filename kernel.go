package cccl

// Dim3 represents 3D dimensions for grid and block configurations.
// This matches CUDA's dim3 structure for kernel launch parameters.
type Dim3 struct {
	X, Y, Z int
}

// Size returns the total number of elements
func (d Dim3) Size() int {
	return d.X * d.Y * d.Z
}

// ThreadID identifies a lane's position within the execution hierarchy.
// It provides the same indexing semantics as CUDA's built-in variables:
// blockIdx, threadIdx, blockDim, and gridDim.
type ThreadID struct {
	BlockIdx  Dim3 // Block index within the grid
	ThreadIdx Dim3 // Thread index within the block
	BlockDim  Dim3 // Dimensions of the block
	GridDim   Dim3 // Dimensions of the grid
}

// Global returns the global thread index
func (tid ThreadID) Global() int {
	return tid.BlockIdx.X*tid.BlockDim.X + tid.ThreadIdx.X
}

// GridStride returns the total number of lanes in the launch. Kernels that
// process more elements than lanes advance their index by this stride until
// the problem is covered; the launcher relies on this when it clamps the grid
// below the naive coverage requirement.
func (tid ThreadID) GridStride() int {
	return tid.GridDim.Size() * tid.BlockDim.Size()
}

// Closure is a zero-argument unit of work executed exactly once per logical
// lane of a kernel launch. Implementations must be plain value types: the
// launcher copies a closure by its in-memory bytes when it is too large to
// pass by value, so any state the closure needs must live inside it.
//
// Execute is called concurrently from many lanes and must be safe for that.
type Closure interface {
	Execute(tid ThreadID)
}

// ClosureFunc adapts a bare function to the Closure interface. Note that a
// ClosureFunc is a single pointer-sized word, so it always travels by value;
// closures with captured state beyond the threshold must be structs.
type ClosureFunc func(tid ThreadID)

// Execute implements Closure
func (fn ClosureFunc) Execute(tid ThreadID) {
	fn(tid)
}
