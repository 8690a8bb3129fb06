package main

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
	"unsafe"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/shenjiangwei/slaballoc/internal/buddy"
	"github.com/shenjiangwei/slaballoc/slab"
)

// newBenchCmd is the generalization of the teacher's runTest concurrent
// stress loop: a fixed number of worker goroutines each repeatedly pick
// between allocating a random-sized object (70% of the time) and freeing
// one already outstanding (30%), until a total operation budget is spent.
func newBenchCmd() *cobra.Command {
	var (
		workers   int
		totalOps  int
		minSize   int
		maxSize   int
		maxOrder  int
		allocProb float64
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run a concurrent allocate/free stress test",
		RunE: func(cmd *cobra.Command, args []string) error {
			directory, err := slab.NewDirectory(buddy.New(maxOrder))
			if err != nil {
				return fmt.Errorf("create directory: %w", err)
			}
			defer directory.Release()

			registry := prometheus.NewRegistry()
			for _, c := range directory.Collectors() {
				registry.MustRegister(c)
			}

			var (
				mu      sync.Mutex
				live    []unsafe.Pointer
				ops     int
				writes  int
				frees   int
				oomHits int
			)
			start := time.Now()

			var wg sync.WaitGroup
			for w := 0; w < workers; w++ {
				wg.Add(1)
				go func(seed int64) {
					defer wg.Done()
					rnd := rand.New(rand.NewSource(seed))
					// directory itself carries no internal locking (it's the
					// single-threaded core the rest of the stack builds on),
					// so every call into it — not just the live-set
					// bookkeeping — has to happen under mu.
					for {
						mu.Lock()
						if ops >= totalOps {
							mu.Unlock()
							return
						}
						ops++

						if rnd.Float64() < allocProb || len(live) == 0 {
							size := uintptr(minSize + rnd.Intn(maxSize-minSize+1))
							p, err := directory.Alloc(size)
							if err != nil {
								oomHits++
							} else {
								live = append(live, p)
								writes++
							}
						} else {
							idx := rnd.Intn(len(live))
							p := live[idx]
							live[idx] = live[len(live)-1]
							live = live[:len(live)-1]

							if err := directory.Free(p); err != nil {
								fmt.Printf("free error: %v\n", err)
							} else {
								frees++
							}
						}
						mu.Unlock()
					}
				}(int64(w) + 1)
			}
			wg.Wait()

			elapsed := time.Since(start)
			fmt.Printf("workers=%d ops=%d writes=%d frees=%d oom=%d outstanding=%d duration=%v\n",
				workers, ops, writes, frees, oomHits, len(live), elapsed.Round(time.Millisecond))

			for _, p := range live {
				_ = directory.Free(p)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 8, "number of concurrent goroutines")
	cmd.Flags().IntVar(&totalOps, "ops", 200000, "total allocate+free operations across all workers")
	cmd.Flags().IntVar(&minSize, "min-size", 16, "smallest object size in bytes")
	cmd.Flags().IntVar(&maxSize, "max-size", 4096, "largest object size in bytes")
	cmd.Flags().IntVar(&maxOrder, "max-order", defaultMaxOrder, "largest buddy order the backing arena may split to")
	cmd.Flags().Float64Var(&allocProb, "alloc-prob", 0.7, "probability a step allocates rather than frees")
	return cmd
}
