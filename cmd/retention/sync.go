package main

import (
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Scan all sources and update the topic catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		reports, err := a.syncer.Run(cmd.Context())
		if err != nil {
			return err
		}

		var errCount int
		for _, r := range reports {
			printf(cmd, "%s: %d topics, %d new, %d removed, %d errors\n",
				r.Path, r.Parsed, r.Inserted, r.Removed, len(r.Errors))
			for _, e := range r.Errors {
				printf(cmd, "  - %s\n", e)
			}
			errCount += len(r.Errors)
		}
		printf(cmd, "Synced %d sources, %d errors.\n", len(reports), errCount)
		return nil
	},
}
