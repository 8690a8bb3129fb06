package main

import (
	"fmt"
	"unsafe"

	"github.com/spf13/cobra"

	"github.com/shenjiangwei/slaballoc/internal/buddy"
	"github.com/shenjiangwei/slaballoc/slab"
)

type ptrRecord struct {
	size uintptr
	ptr  unsafe.Pointer
}

// newDemoCmd walks through the teacher's runBasicTest() shape: allocate a
// handful of objects across a few size classes, free them back, and report
// the directory's end state. Good for a first sanity check of a build.
func newDemoCmd() *cobra.Command {
	var maxOrder int

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a small allocate/free walkthrough and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			directory, err := slab.NewDirectory(buddy.New(maxOrder))
			if err != nil {
				return fmt.Errorf("create directory: %w", err)
			}
			defer directory.Release()

			sizes := []uintptr{16, 32, 64, 128, 256, 512}
			var ptrs []ptrRecord
			for _, size := range sizes {
				for i := 0; i < 4; i++ {
					p, err := directory.Alloc(size)
					if err != nil {
						return fmt.Errorf("alloc %d bytes: %w", size, err)
					}
					ptrs = append(ptrs, ptrRecord{size: size, ptr: p})
				}
			}
			fmt.Printf("allocated %d objects across %d size classes\n", len(ptrs), len(sizes))

			freed := 0
			for _, rec := range ptrs {
				if err := directory.Free(rec.ptr); err != nil {
					return fmt.Errorf("free %d-byte object: %w", rec.size, err)
				}
				freed++
			}
			fmt.Printf("freed %d objects\n", freed)

			directory.Shrink()
			fmt.Println("demo complete: all size-class slabs released back to the buddy allocator")
			return nil
		},
	}
	cmd.Flags().IntVar(&maxOrder, "max-order", defaultMaxOrder, "largest buddy order the backing arena may split to")
	return cmd
}
