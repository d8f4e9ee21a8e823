package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/conorfennell/retention/internal/review"
)

var reviewCmd = &cobra.Command{
	Use:   "review <learner> <topic> <quality>",
	Short: "Record a review with a 0-5 quality score",
	Long: "Record a review with a 0-5 quality score. Scores outside the range are " +
		"rounded and clamped; 3 or more counts as a successful recall.",
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		quality, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return fmt.Errorf("quality must be a number: %w", err)
		}

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		out, err := a.reviews.Submit(cmd.Context(), review.Submission{
			LearnerID: args[0],
			TopicID:   args[1],
			Quality:   quality,
		})
		if err != nil {
			return err
		}

		result := "forgotten"
		if out.WasSuccessful {
			result = "recalled"
		}
		printf(cmd, "%s (%s to %s): ease %.2f, %d repetitions, next review in %d days on %s\n",
			result, out.PreviousPhase, out.Phase, out.Card.EaseFactor, out.Card.Repetitions,
			out.Card.IntervalDays, out.Card.NextReviewAt.Local().Format("2006-01-02"))
		return nil
	},
}
