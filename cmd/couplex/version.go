package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "prints the couplex version",
	Run:   cmdVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func cmdVersion(cmd *cobra.Command, args []string) {
	fmt.Println(buildString())
}
