// Command spryte is a thin CLI over the spryte encoder core: encode a PNG
// into a .spryte bitstream, pack several .spryte files into one
// zstd-compressed archive, or bench spryte's ratio against QOI on the same
// input. It is explicitly out of the encoder core's scope (spec.md §1/§6)
// and exists only to exercise the library end to end.
//
// Grounded on jpfielding-dicos.go/cmd/ctl's cobra command tree.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logFile string
	var debug bool

	root := &cobra.Command{
		Use:   "spryte",
		Short: "Lossless RGBA sprite codec",
	}
	root.PersistentFlags().StringVar(&logFile, "log-file", "", "rotate logs through this file instead of stderr")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug-level logging")

	root.AddCommand(newEncodeCmd(&logFile, &debug))
	root.AddCommand(newPackCmd(&logFile, &debug))
	root.AddCommand(newBenchCmd(&logFile, &debug))
	return root
}
