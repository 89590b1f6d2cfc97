package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the server is up",
	Run: func(cmd *cobra.Command, args []string) {
		client := newAPIClient(cmd)
		var body map[string]string
		if err := client.get("/health", &body); err != nil {
			fail(err)
		}
		fmt.Printf("Server %s: %s\n", client.base, body["status"])
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
