package cccl

import (
	"fmt"
	"runtime"
	"sync"
)

// enqueueKernel submits one kernel invocation to a stream. The invocation
// runs the entry function once per logical lane, spreading blocks across a
// pool of CPU workers; blocks are independent and lanes within a block run
// sequentially on one worker for cache locality.
//
// A panic in the kernel body is the simulated equivalent of a device-side
// fault: it is recorded on the stream against the launch ID and surfaces at
// the next synchronization point, never here.
func (ctx *Context) enqueueKernel(stream *Stream, id LaunchID, grid, block Dim3, invoke func(ThreadID)) {
	gridSize := grid.Size()
	blockSize := block.Size()

	if gridSize == 0 || blockSize == 0 {
		// submit an empty task to maintain stream ordering
		stream.Submit(func() {})
		return
	}

	stream.Submit(func() {
		numWorkers := runtime.NumCPU()
		if gridSize < numWorkers {
			numWorkers = gridSize
		}
		blocksPerWorker := (gridSize + numWorkers - 1) / numWorkers

		var wg sync.WaitGroup
		var faultOnce sync.Once
		wg.Add(numWorkers)

		for workerID := 0; workerID < numWorkers; workerID++ {
			startBlock := workerID * blocksPerWorker
			endBlock := startBlock + blocksPerWorker
			if endBlock > gridSize {
				endBlock = gridSize
			}

			go func() {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						faultOnce.Do(func() {
							stream.recordError(NewKernelError(id,
								fmt.Sprintf("fault in kernel body: %v", r), nil))
						})
					}
				}()

				for blockID := startBlock; blockID < endBlock; blockID++ {
					blockIdx := linearTo3D(blockID, grid)
					for threadID := 0; threadID < blockSize; threadID++ {
						invoke(ThreadID{
							BlockIdx:  blockIdx,
							ThreadIdx: linearTo3D(threadID, block),
							BlockDim:  block,
							GridDim:   grid,
						})
					}
				}
			}()
		}

		wg.Wait()
	})
}

// linearTo3D converts a linear index to 3D coordinates
func linearTo3D(linear int, dim Dim3) Dim3 {
	z := linear / (dim.X * dim.Y)
	y := (linear % (dim.X * dim.Y)) / dim.X
	x := linear % dim.X
	return Dim3{X: x, Y: y, Z: z}
}
