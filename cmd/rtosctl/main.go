// rtosctl is a small command-line front end for the Kernel facade: run
// task bodies against the scheduler, or inspect what the Transformer
// produces from a body without running it. It generalizes the teacher's
// cmd/ticksched, which loads a config and hand-builds a single task, into
// a real command tree.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:     "rtosctl",
		Short:   "Drive the cooperative task scheduler from the command line",
		Version: version,
	}
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(inspectCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
