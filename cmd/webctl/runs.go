package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/humanbrowse/pkg/domain"
)

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List recorded runs, or show one run in full",
	Run: func(cmd *cobra.Command, args []string) {
		client := newAPIClient(cmd)

		if len(args) > 0 {
			var detail domain.RunDetail
			if err := client.get("/v1/runs/"+args[0], &detail); err != nil {
				fail(err)
			}
			printJSON(detail)
			return
		}

		var listing struct {
			Runs []domain.Run `json:"runs"`
		}
		if err := client.get("/v1/runs", &listing); err != nil {
			fail(err)
		}
		if len(listing.Runs) == 0 {
			fmt.Println("No runs recorded.")
			return
		}
		for _, run := range listing.Runs {
			finished := "-"
			if run.FinishedAt != nil {
				finished = run.FinishedAt.Format("15:04:05")
			}
			fmt.Printf("%s  %-20s  started %s  finished %s  session %s\n",
				run.RunID,
				colorize(string(run.Status)),
				run.StartedAt.Format("2006-01-02 15:04:05"),
				finished,
				run.SessionID)
		}
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
}
