package main

import (
	"github.com/spf13/cobra"
)

var dueCmd = &cobra.Command{
	Use:   "due <learner>",
	Short: "List topics due for review, then unseen topics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		if limit <= 0 {
			limit = a.cfg.Review.DueLimit
		}

		q, err := a.reviews.Queue(cmd.Context(), args[0], limit)
		if err != nil {
			return err
		}

		for _, c := range q.Due {
			printf(cmd, "due\t%s\t%s\t%s\n", c.TopicID, c.Phase, c.Question)
		}
		for _, t := range q.Unseen {
			printf(cmd, "new\t%s\t-\t%s\n", t.Hash, t.Question)
		}
		printf(cmd, "%d due, %d new.\n", len(q.Due), len(q.Unseen))
		return nil
	},
}

func init() {
	dueCmd.Flags().Int("limit", 0, "Maximum number of topics to list (defaults to review.due-limit)")
}
