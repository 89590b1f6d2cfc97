package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/humanbrowse/pkg/domain"
)

var sessionCmd = &cobra.Command{
	Use:   "session <session-id>",
	Short: "Show the current state of a session",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := newAPIClient(cmd)
		var info domain.SessionInfo
		if err := client.get("/v1/session_status?session_id="+args[0], &info); err != nil {
			fail(err)
		}
		fmt.Printf("Session %s: %s\n", info.SessionID, colorize(string(info.State)))
		if info.LastRunID != "" {
			fmt.Printf("  Last run: %s\n", info.LastRunID)
		}
		if info.ManualAssist != nil {
			fmt.Printf("  Waiting on human: %s\n", info.ManualAssist.Message)
			if info.ManualAssist.Screenshot != "" {
				fmt.Printf("  Evidence: %s/v1/runs/%s/artifacts/%s\n",
					client.base, info.ManualAssist.RunID, info.ManualAssist.Screenshot)
			}
		}
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <session-id>",
	Short: "Clear a manual-assist pause after finishing the challenge in the browser",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := newAPIClient(cmd)
		if err := client.post("/v1/resume", map[string]string{"session_id": args[0]}, nil); err != nil {
			fail(err)
		}
		fmt.Printf("Session %s resumed. Submit the remaining steps as a new run.\n", args[0])
	},
}

var closeCmd = &cobra.Command{
	Use:   "close <session-id>",
	Short: "Close the browser session (run history is kept)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := newAPIClient(cmd)
		if err := client.post("/v1/close_session", map[string]string{"session_id": args[0]}, nil); err != nil {
			fail(err)
		}
		fmt.Printf("Session %s closed.\n", args[0])
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(closeCmd)
}
