package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "webctl",
	Short: "webctl drives a visible browser through recorded step runs",
	Long: `webctl is the control surface for a single-session browser automation
service. The serve command attaches to a running Chromium and exposes the
JSON API; the other commands talk to that API.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to the settings file (default: $HUMANBROWSE_CONFIG)")
	rootCmd.PersistentFlags().String("server", "http://localhost:8080", "Base URL of a running webctl serve instance")
}
