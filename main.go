package main

import (
	"os"

	"github.com/rill-lang/rill/cmd"
	"github.com/spf13/cobra"
)

func main() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "rill [subcommand]",
	Short:        "rill type-checking core\n checks capability bounds, regions and const generics of declaration manifests",
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(cmd.CheckCmd)
}
