// ABOUTME: CLI command to record a card review
// ABOUTME: Applies the spaced-repetition schedule and prints the next review day
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/muleta/internal/core"
)

var (
	reviewQuality int
	reviewTime    float64
	reviewShow    bool
)

// NewReviewCmd creates the review command
func NewReviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review <card-id>",
		Short: "Record a review of a card",
		Long: `Record how well you recalled a card and schedule its next review.

Quality: 1 forgot, 2 wrong but familiar, 3 hard, 4 good, 5 perfect.
Quality 3 or more passes and climbs the interval ladder (1, 3, 7, 15,
30, 60 days); a failure resets the card to tomorrow.

Examples:
  muleta review card_1a2b --show
  muleta review card_1a2b --quality 4 --time 6.5`,
		Args: cobra.ExactArgs(1),
		RunE: runReview,
	}

	cmd.Flags().IntVar(&reviewQuality, "quality", 0, "Recall quality from 1 to 5")
	cmd.Flags().Float64Var(&reviewTime, "time", 0, "Seconds taken to answer")
	cmd.Flags().BoolVar(&reviewShow, "show", false, "Show the card instead of recording a review")

	return cmd
}

func runReview(cmd *cobra.Command, args []string) error {
	if !reviewShow && !cmd.Flags().Changed("quality") {
		return fmt.Errorf("--quality is required (or use --show to see the card)")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	out := cmd.OutOrStdout()

	if reviewShow {
		card, err := a.Store.GetCard(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("loading card: %w", err)
		}
		if structured() {
			return printStructured(out, card)
		}
		_, _ = fmt.Fprintf(out, "Q: %s\n\nA: %s\n", card.Question, card.Answer)
		return nil
	}

	outcome, err := a.Scheduler.Review(cmd.Context(), args[0], core.ReviewInput{
		Quality:      reviewQuality,
		ResponseTime: reviewTime,
	})
	if err != nil {
		return fmt.Errorf("reviewing card: %w", err)
	}
	if structured() {
		return printStructured(out, outcome)
	}

	c := outcome.Card
	_, _ = fmt.Fprintf(out, "%s: %s -> %s\n", c.ID, outcome.PreviousState, c.State)
	_, _ = fmt.Fprintf(out, "Next review: %s (in %d day(s))\n", formatDay(c.NextReview), c.IntervalDays)
	if !quiet {
		_, _ = fmt.Fprintf(out, "Ease: %.2f  Success rate: %.0f%%  Reviews: %d\n", c.EaseFactor, c.SuccessRate*100, c.ReviewCount)
	}
	return nil
}
