// Command trader runs one intraday session of the bracket-order
// execution engine against the brokerage gateway for a selected venue.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	venueFlag  string
	configFlag string
	portFlag   int
)

func main() {
	root := &cobra.Command{
		Use:           "trader",
		Short:         "Intraday bracket-order execution engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}

	root.Flags().StringVarP(&venueFlag, "venue", "v", "NY", "venue code (NY, JP, DE)")
	root.Flags().StringVarP(&configFlag, "config", "c", "", "path to configuration file")
	root.Flags().IntVarP(&portFlag, "port", "p", 0, "gateway port override")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
