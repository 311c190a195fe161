// Command occview renders occupancy tables for a kernel resource footprint
// against a device profile, and reports the launch configuration the solver
// would pick for a given problem size.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/MARD1NO/cccl"
)

type report struct {
	Device        string                `json:"device"`
	Attributes    cccl.FuncAttributes   `json:"attributes"`
	Table         []cccl.OccupancyPoint `json:"table"`
	BestBlockSize int                   `json:"best_block_size,omitempty"`
	GridSize      int                   `json:"grid_size,omitempty"`
	ProblemSize   int                   `json:"problem_size,omitempty"`
	Infeasible    bool                  `json:"infeasible"`
}

func main() {
	var (
		profilePath string
		deviceName  string
		numRegs     int64
		staticSMem  int64
		dynSMem     int64
		maxThreads  int64
		problemSize int64
		jsonOut     bool
	)

	cmd := &cli.Command{
		Name:  "occview",
		Usage: "Occupancy inspector for kernel launch configurations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "profile",
				Usage:       "path to a YAML device profile catalog",
				Destination: &profilePath,
			},
			&cli.StringFlag{
				Name:        "device",
				Usage:       "profile name to use from the catalog",
				Destination: &deviceName,
			},
			&cli.IntFlag{
				Name:        "regs",
				Usage:       "registers per thread",
				Value:       32,
				Destination: &numRegs,
			},
			&cli.IntFlag{
				Name:        "static-smem",
				Usage:       "static shared memory per block, bytes",
				Destination: &staticSMem,
			},
			&cli.IntFlag{
				Name:        "dyn-smem-per-thread",
				Usage:       "dynamic shared memory per thread, bytes",
				Destination: &dynSMem,
			},
			&cli.IntFlag{
				Name:        "max-threads",
				Usage:       "kernel's maximum threads per block",
				Value:       cccl.MaxThreadsPerBlock,
				Destination: &maxThreads,
			},
			&cli.IntFlag{
				Name:        "n",
				Usage:       "problem size to solve a full configuration for",
				Destination: &problemSize,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "emit the report as JSON",
				Destination: &jsonOut,
			},
		},
		Action: func(_ context.Context, _ *cli.Command) error {
			props, err := resolveDevice(profilePath, deviceName)
			if err != nil {
				return err
			}

			attrs := cccl.FuncAttributes{
				MaxThreadsPerBlock: int(maxThreads),
				NumRegs:            int(numRegs),
				SharedSizeBytes:    int(staticSMem),
			}

			rep := report{
				Device:     props.Name,
				Attributes: attrs,
				Table:      cccl.OccupancyTable(props, attrs, int(dynSMem)),
			}

			best, err := cccl.BlockSizeForMaxOccupancy(props, attrs, int(dynSMem))
			switch {
			case cccl.IsConfigurationError(err):
				rep.Infeasible = true
			case err != nil:
				return err
			default:
				rep.BestBlockSize = best
				if problemSize > 0 {
					grid, err := cccl.GridSizeForProblem(int(problemSize), best, props, attrs, int(dynSMem)*best)
					if err != nil {
						return err
					}
					rep.GridSize = grid
					rep.ProblemSize = int(problemSize)
				}
			}

			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			printReport(rep)
			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

// resolveDevice picks a capability snapshot: a named profile from the
// catalog, or the built-in simulated device when no catalog is given.
func resolveDevice(path, name string) (cccl.DeviceProperties, error) {
	if path == "" {
		ctx := cccl.NewContext()
		defer ctx.Destroy()
		return ctx.Properties(), nil
	}

	profiles, err := cccl.LoadDeviceProfilesFile(path)
	if err != nil {
		return cccl.DeviceProperties{}, err
	}
	if name == "" && len(profiles) == 1 {
		for n := range profiles {
			name = n
		}
	}
	profile, ok := profiles[name]
	if !ok {
		return cccl.DeviceProperties{}, fmt.Errorf("profile %q not found in %s", name, path)
	}
	return profile.Properties(), nil
}

func printReport(rep report) {
	fmt.Printf("Device: %s\n", rep.Device)
	fmt.Printf("Kernel: %d regs/thread, %d B static smem, max block %d\n\n",
		rep.Attributes.NumRegs, rep.Attributes.SharedSizeBytes, rep.Attributes.MaxThreadsPerBlock)

	fmt.Printf("%10s %10s %12s %10s\n", "block", "blocks/MP", "resident", "occupancy")
	for _, p := range rep.Table {
		fmt.Printf("%10d %10d %12d %9.1f%%\n",
			p.BlockSize, p.BlocksPerMultiprocessor, p.ResidentThreads, p.Occupancy*100)
	}

	fmt.Println()
	if rep.Infeasible {
		fmt.Println("No feasible configuration: the kernel's footprint exceeds hardware capacity.")
		return
	}
	fmt.Printf("Best block size: %d\n", rep.BestBlockSize)
	if rep.ProblemSize > 0 {
		fmt.Printf("Configuration for n=%d: grid %d x block %d\n",
			rep.ProblemSize, rep.GridSize, rep.BestBlockSize)
	}
}
