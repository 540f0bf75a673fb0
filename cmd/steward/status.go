package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stewardlabs/steward/internal/learner"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show autonomy settings, queue depth and learning insights",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	orch, log, patterns, err := buildOrchestrator(ctx)
	if err != nil {
		return err
	}
	defer log.Close()
	defer patterns.Close()

	fmt.Printf("Autonomy level: %s\n", cfg.Autonomy.Level)
	fmt.Printf("Learning mode:  %s (base weight %.2f)\n", cfg.Learning.Mode, cfg.Learning.BaseWeight)
	fmt.Printf("Storage:        %s\n", cfg.Storage.Type)

	pending := orch.PendingDecisions()
	fmt.Printf("\nPending review: %d\n", len(pending))

	today, err := log.TodaysDecisions(ctx)
	if err != nil {
		return fmt.Errorf("load today's decisions: %w", err)
	}
	var executed, rejected int
	for _, e := range today {
		switch {
		case e.Rejection != nil:
			rejected++
		case e.Execution != nil:
			executed++
		}
	}
	fmt.Printf("Today:          %d decisions, %d executed, %d rejected\n", len(today), executed, rejected)

	lrn := learner.New(patterns, learner.LearningMode(cfg.Learning.Mode), cfg.Learning.BaseWeight, logger)
	insights, err := lrn.Insights()
	if err != nil {
		return fmt.Errorf("load learning insights: %w", err)
	}

	fmt.Printf("\nLearned patterns: %d (%d reliable, %d feedback events)\n",
		insights.TotalPatterns, insights.ReliablePatterns, insights.TotalFeedback)
	if insights.MostTrusted != nil {
		fmt.Printf("Most trusted:     %s (%.0f%%)\n",
			insights.MostTrusted.Key.String(), insights.MostTrusted.ConfidenceEstimate*100)
	}
	if insights.LeastTrusted != nil {
		fmt.Printf("Least trusted:    %s (%.0f%%)\n",
			insights.LeastTrusted.Key.String(), insights.LeastTrusted.ConfidenceEstimate*100)
	}
	return nil
}
