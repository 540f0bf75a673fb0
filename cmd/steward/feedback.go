package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	feedbackHelpful    bool
	feedbackNotHelpful bool
	feedbackComment    string
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback [decision-id]",
	Short: "Rate an executed decision",
	Long: `Record an explicit rating for a decision that already executed.
Ratings weigh more than approve/reject behavior when learning patterns.`,
	Args: cobra.ExactArgs(1),
	RunE: runFeedback,
}

func init() {
	feedbackCmd.Flags().BoolVar(&feedbackHelpful, "helpful", false, "the action was helpful")
	feedbackCmd.Flags().BoolVar(&feedbackNotHelpful, "not-helpful", false, "the action was not helpful")
	feedbackCmd.Flags().StringVar(&feedbackComment, "comment", "", "free-form comment")
}

func runFeedback(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid decision id: %w", err)
	}
	if feedbackHelpful == feedbackNotHelpful {
		return fmt.Errorf("pass exactly one of --helpful or --not-helpful")
	}

	orch, log, patterns, err := buildOrchestrator(ctx)
	if err != nil {
		return err
	}
	defer log.Close()
	defer patterns.Close()

	if err := orch.ProvideExplicitFeedback(ctx, id, feedbackHelpful, feedbackComment); err != nil {
		return err
	}

	fmt.Printf("✅ Feedback recorded for %s\n", id)
	return nil
}
