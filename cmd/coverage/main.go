// Command coverage runs the pivot coverage service and its offline tools.
//
// Usage:
//
//	coverage serve
//	coverage extract farm.kmz
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "coverage",
		Short:        "RF coverage studies for center-pivot farms",
		SilenceUsage: true,
	}
	root.AddCommand(serveCommand(), extractCommand())
	return root
}
