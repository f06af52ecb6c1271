// Command sampler-sim runs a synthetic, class imbalanced dataset through
// the adaptive samplers with a nearest-centroid learner, and inspects the
// checkpoints it writes.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:          "sampler-sim",
		Short:        "simulate adaptive sample selection on synthetic data",
		SilenceUsage: true,
	}
	root.AddCommand(simulateCmd(), inspectCmd(), configCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
