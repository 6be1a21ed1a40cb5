package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ev-go/internal/app"
	"ev-go/internal/ev"
)

// log command
var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View the audit ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		after, _ := cmd.Flags().GetInt64("after")
		limit, _ := cmd.Flags().GetInt("limit")

		return withVault("ListEvents", func(a *app.EVApp) error {
			events, err := a.ListEvents(after, limit)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Println("No events.")
				return nil
			}
			for _, e := range events {
				fmt.Printf("#%-5d  %s  %-24s  %-20s  %s\n",
					e.Seq,
					e.OccurredAt,
					e.EventType,
					e.Actor,
					e.PayloadJSON,
				)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(logCmd)
	logCmd.Flags().Int64("after", 0, "Show events after this sequence number")
	logCmd.Flags().IntP("limit", "n", ev.DefaultEventPage, "Maximum number of events to show")
}
