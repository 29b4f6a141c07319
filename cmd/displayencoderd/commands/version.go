package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is set via -ldflags "-X ...commands.version=..." at release
// build time; the zero value marks a development build.
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the displayencoderd version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
