package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is stamped at build time via -ldflags; "dev" otherwise, matching
// the teacher's bd-style unstamped-default convention.
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the usched version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("usched version %s\n", Version)
	},
}
