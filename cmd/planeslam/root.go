package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "planeslam",
		Short: "Plane-based RGB-D SLAM mapping engine",
	}
	root.AddCommand(newMappingCmd())
	return root
}
