package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/humanbrowse/pkg/domain"
)

var runCmd = &cobra.Command{
	Use:   "run [steps-json]",
	Short: "Execute a step sequence against the server",
	Long: `Submits a JSON array of steps to the server and prints the run result.
Steps come from --file, or from the first argument as inline JSON.

Example:
  webctl run --new '[{"type":"goto","url":"https://example.com"},{"type":"extract_readable"}]'`,
	Run: func(cmd *cobra.Command, args []string) {
		file, _ := cmd.Flags().GetString("file")
		sessionID, _ := cmd.Flags().GetString("session")
		fresh, _ := cmd.Flags().GetBool("new")

		var raw []byte
		switch {
		case file != "":
			data, err := os.ReadFile(file)
			if err != nil {
				fail(fmt.Errorf("failed to read steps file: %w", err))
			}
			raw = data
		case len(args) > 0:
			raw = []byte(args[0])
		default:
			fail(fmt.Errorf("steps are required: pass inline JSON or --file"))
		}

		var steps []domain.Step
		if err := json.Unmarshal(raw, &steps); err != nil {
			fail(fmt.Errorf("steps must be a JSON array: %w", err))
		}

		client := newAPIClient(cmd)
		var result domain.RunResult
		err := client.post("/v1/run_steps", domain.RunRequest{
			SessionID:  sessionID,
			NewSession: fresh,
			Steps:      steps,
		}, &result)
		if err != nil {
			fail(err)
		}

		fmt.Printf("Run %s on session %s: %s\n", result.RunID, result.SessionID, colorize(string(result.Status)))
		if result.Message != "" {
			fmt.Printf("  %s\n", result.Message)
		}
		if result.Screenshot != "" {
			fmt.Printf("  Evidence: %s/v1/runs/%s/artifacts/%s\n", client.base, result.RunID, result.Screenshot)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("file", "f", "", "File containing the JSON step array")
	runCmd.Flags().StringP("session", "s", "", "Session to reuse")
	runCmd.Flags().BoolP("new", "n", false, "Open a fresh browser session")
}
