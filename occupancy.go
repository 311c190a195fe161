package cccl

// Occupancy solver: picks launch geometry from a capability snapshot.
//
// The solver is pure arithmetic over DeviceProperties and FuncAttributes so
// it can be driven by the real provider, a profile loaded from disk, or a
// test fake, and always produces the same answer for the same snapshot.

// maxActiveBlocksPerMultiprocessor computes how many blocks of the given
// size can be concurrently resident on one multiprocessor, under thread,
// block-slot, register, and shared-memory pressure. Zero means the kernel
// cannot run at this block size at all.
func maxActiveBlocksPerMultiprocessor(props DeviceProperties, attrs FuncAttributes, blockSize, dynamicSMemBytes int) int {
	if blockSize <= 0 {
		return 0
	}
	maxBlockSize := attrs.MaxThreadsPerBlock
	if props.MaxThreadsPerBlock < maxBlockSize {
		maxBlockSize = props.MaxThreadsPerBlock
	}
	if blockSize > maxBlockSize {
		return 0
	}

	blocks := props.MaxThreadsPerMultiprocessor / blockSize

	if limit := props.MaxBlocksPerMultiprocessor; limit > 0 && limit < blocks {
		blocks = limit
	}

	if attrs.NumRegs > 0 {
		regsPerBlock := attrs.NumRegs * blockSize
		if regsPerBlock > props.RegistersPerMultiprocessor {
			return 0
		}
		if limit := props.RegistersPerMultiprocessor / regsPerBlock; limit < blocks {
			blocks = limit
		}
	}

	if smemPerBlock := attrs.SharedSizeBytes + dynamicSMemBytes; smemPerBlock > 0 {
		if smemPerBlock > props.SharedMemPerMultiprocessor {
			return 0
		}
		if limit := props.SharedMemPerMultiprocessor / smemPerBlock; limit < blocks {
			blocks = limit
		}
	}

	return blocks
}

// MaxActiveBlocks returns the device-wide count of concurrently resident
// blocks for a kernel at the given block size and per-block dynamic shared
// memory. This is the bound the grid size is clamped to.
func MaxActiveBlocks(props DeviceProperties, attrs FuncAttributes, blockSize, dynamicSMemBytes int) int {
	return props.MultiprocessorCount * maxActiveBlocksPerMultiprocessor(props, attrs, blockSize, dynamicSMemBytes)
}

// BlockSizeForMaxOccupancy enumerates candidate block sizes in warp
// multiples up to the kernel's limit and returns the one maximizing total
// resident threads per multiprocessor. Ties go to the larger block size:
// fewer blocks cover the same lanes with less per-block overhead.
//
// dynamicSMemBytesPerThread is the caller's dynamic shared-memory
// requirement, scaled by each candidate's block size.
//
// Returns ErrNoFeasibleConfiguration when no candidate can be resident,
// i.e. the kernel's per-thread footprint alone exceeds hardware capacity.
func BlockSizeForMaxOccupancy(props DeviceProperties, attrs FuncAttributes, dynamicSMemBytesPerThread int) (int, error) {
	granularity := props.WarpSize
	if granularity <= 0 {
		granularity = WarpSize
	}
	maxBlockSize := attrs.MaxThreadsPerBlock
	if props.MaxThreadsPerBlock < maxBlockSize {
		maxBlockSize = props.MaxThreadsPerBlock
	}

	bestBlockSize := 0
	bestResident := 0
	consider := func(blockSize int) {
		blocks := maxActiveBlocksPerMultiprocessor(props, attrs, blockSize, dynamicSMemBytesPerThread*blockSize)
		resident := blocks * blockSize
		// ascending candidates with >= keeps the largest block on a tie
		if resident > 0 && resident >= bestResident {
			bestResident = resident
			bestBlockSize = blockSize
		}
	}

	for blockSize := granularity; blockSize <= maxBlockSize; blockSize += granularity {
		consider(blockSize)
	}
	// a kernel capped below one warp still gets its limit as a candidate
	if maxBlockSize > 0 && maxBlockSize < granularity {
		consider(maxBlockSize)
	}

	if bestBlockSize == 0 {
		return 0, ErrNoFeasibleConfiguration
	}
	return bestBlockSize, nil
}

// GridSizeForProblem returns the number of blocks to launch for a problem of
// n elements at the given block size: the coverage requirement ceil(n /
// blockSize), clamped to the kernel's maximum resident block count. When the
// clamp applies, the kernel body is expected to stride the grid so each lane
// processes multiple elements.
//
// Intermediate arithmetic is 64-bit regardless of platform int width, so a
// problem size near the top of the int range does not overflow the rounding
// term.
func GridSizeForProblem(n, blockSize int, props DeviceProperties, attrs FuncAttributes, dynamicSMemBytes int) (int, error) {
	if n < 0 {
		return 0, NewInvalidArgError("GridSizeForProblem", "problem size must be non-negative")
	}
	if blockSize <= 0 {
		return 0, ErrInvalidGeometry
	}
	if n == 0 {
		return 0, nil
	}

	maxBlocks := MaxActiveBlocks(props, attrs, blockSize, dynamicSMemBytes)
	if maxBlocks == 0 {
		return 0, ErrNoFeasibleConfiguration
	}

	block := uint64(blockSize)
	grid := (uint64(n) + block - 1) / block
	if grid > uint64(maxBlocks) {
		grid = uint64(maxBlocks)
	}
	return int(grid), nil
}

// ConfigurationFor composes the block-size and grid-size solvers: the
// default entry point when the caller supplies only a problem size.
func ConfigurationFor(n int, props DeviceProperties, attrs FuncAttributes) (gridSize, blockSize int, err error) {
	blockSize, err = BlockSizeForMaxOccupancy(props, attrs, 0)
	if err != nil {
		return 0, 0, err
	}
	gridSize, err = GridSizeForProblem(n, blockSize, props, attrs, 0)
	if err != nil {
		return 0, 0, err
	}
	return gridSize, blockSize, nil
}

// OccupancyPoint describes solver output for one candidate block size.
// Used by diagnostic tooling to render occupancy tables.
type OccupancyPoint struct {
	BlockSize               int     `json:"block_size"`
	BlocksPerMultiprocessor int     `json:"blocks_per_multiprocessor"`
	ResidentThreads         int     `json:"resident_threads"`
	Occupancy               float64 `json:"occupancy"`
}

// OccupancyTable evaluates every candidate block size the solver would
// consider and reports the resulting residency, including infeasible
// candidates (zero blocks).
func OccupancyTable(props DeviceProperties, attrs FuncAttributes, dynamicSMemBytesPerThread int) []OccupancyPoint {
	granularity := props.WarpSize
	if granularity <= 0 {
		granularity = WarpSize
	}
	maxBlockSize := attrs.MaxThreadsPerBlock
	if props.MaxThreadsPerBlock < maxBlockSize {
		maxBlockSize = props.MaxThreadsPerBlock
	}

	var table []OccupancyPoint
	for blockSize := granularity; blockSize <= maxBlockSize; blockSize += granularity {
		blocks := maxActiveBlocksPerMultiprocessor(props, attrs, blockSize, dynamicSMemBytesPerThread*blockSize)
		point := OccupancyPoint{
			BlockSize:               blockSize,
			BlocksPerMultiprocessor: blocks,
			ResidentThreads:         blocks * blockSize,
		}
		if props.MaxThreadsPerMultiprocessor > 0 {
			point.Occupancy = float64(point.ResidentThreads) / float64(props.MaxThreadsPerMultiprocessor)
		}
		table = append(table, point)
	}
	return table
}
