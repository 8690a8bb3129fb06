// Command slabbench is a cobra-based CLI replacing the teacher repo's
// flag-based "-mode basic|stress10t|stress100t" main.go. Its three
// subcommands (demo, bench, serve) cover the same ground: a small
// correctness walkthrough, a concurrent stress run, and standing up the
// rpc server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shenjiangwei/slaballoc/internal/xlog"
)

var verbose bool

// defaultMaxOrder caps the backing arena at Page<<6 * 8 == 2MiB of root
// blocks by default (buddy.MaxOrder's 4GiB roots are a ceiling for callers
// that ask for it explicitly, not a sane default to allocate on every run).
const defaultMaxOrder = 6

func main() {
	root := &cobra.Command{
		Use:   "slabbench",
		Short: "Exercise the slab allocator from the command line",
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	cobra.OnInitialize(func() {
		if verbose {
			xlog.SetLevel(xlog.LevelDebug)
		}
	})

	root.AddCommand(newDemoCmd())
	root.AddCommand(newBenchCmd())
	root.AddCommand(newServeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
