package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is stamped by the build; the default marks local builds.
var Version = "2.0.0-dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the client version.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pangguai %s\n", Version)
	},
}
