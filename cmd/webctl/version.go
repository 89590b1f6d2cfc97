package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/humanbrowse"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of webctl",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("webctl version %s\n", humanbrowse.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
