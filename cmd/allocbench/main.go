// Command allocbench drives each allocator engine through a configurable
// malloc/free workload and reports basic throughput and utilization
// figures.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	alloc "github.com/micro-gl/micro-alloc"
)

func main() {
	var (
		engineName = pflag.StringP("engine", "e", "dynamic", "engine to benchmark: linear, stack, pool, dynamic")
		regionSize = pflag.IntP("size", "s", 1<<20, "backing region size in bytes")
		blockSize  = pflag.IntP("block", "b", 64, "allocation size in bytes (pool: slot size)")
		alignment  = pflag.IntP("alignment", "a", 16, "alignment in bytes, must be a power of two")
		iterations = pflag.IntP("iterations", "n", 100000, "number of malloc/free cycles to run")
		verbose    = pflag.BoolP("verbose", "v", false, "enable structured debug logging")
	)
	pflag.Parse()

	logger := zap.NewNop()
	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintln(os.Stderr, "allocbench: failed to build logger:", err)
			os.Exit(1)
		}
		logger = l
	}
	defer logger.Sync()

	buf := make([]byte, *regionSize)
	resource, err := buildEngine(*engineName, buf, uintptr(*blockSize), uintptr(*alignment))
	if err != nil {
		logger.Error("failed to build engine", zap.Error(err))
		os.Exit(1)
	}
	if !resource.IsValid() {
		logger.Error("engine construction reported invalid", zap.String("engine", *engineName))
		os.Exit(1)
	}

	start := time.Now()
	succeeded, failed := runWorkload(resource, uintptr(*blockSize), *iterations)
	elapsed := time.Since(start)

	logger.Info("workload complete",
		zap.String("engine", *engineName),
		zap.Int("iterations", *iterations),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failed),
		zap.Duration("elapsed", elapsed),
		zap.Uintptr("available_bytes", resource.AvailableSize()),
	)

	fmt.Printf("engine=%s iterations=%d succeeded=%d failed=%d elapsed=%s available=%d\n",
		*engineName, *iterations, succeeded, failed, elapsed, resource.AvailableSize())
}

func buildEngine(name string, buf []byte, blockSize, alignment uintptr) (alloc.Resource, error) {
	switch name {
	case "linear":
		return alloc.NewLinearEngine(buf, alignment), nil
	case "stack":
		return alloc.NewStackEngine(buf, alignment), nil
	case "pool":
		return alloc.NewPoolEngine(buf, blockSize, alignment, false), nil
	case "dynamic":
		return alloc.NewDynamicEngine(buf, alignment), nil
	default:
		return nil, fmt.Errorf("unknown engine %q (want linear, stack, pool, or dynamic)", name)
	}
}

// runWorkload allocates and immediately frees blockSize bytes, iterations
// times, resetting a linear engine every 1000 iterations since it cannot
// free individually.
func runWorkload(resource alloc.Resource, blockSize uintptr, iterations int) (succeeded, failed int) {
	linear, isLinear := resource.(*alloc.LinearEngine)

	for i := 0; i < iterations; i++ {
		p := resource.Malloc(blockSize)
		if p == nil {
			failed++
			if isLinear {
				linear.Reset()
			}
			continue
		}
		succeeded++
		if !isLinear {
			resource.Free(p)
		}
		if isLinear && i%1000 == 999 {
			linear.Reset()
		}
	}
	return succeeded, failed
}
