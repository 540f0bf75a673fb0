package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stewardlabs/steward/internal/consolidate"
)

var consolidateWatch bool

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Promote well-evidenced patterns into memory notes",
	Long: `Run one consolidation pass: patterns with enough feedback and high
confidence are written to per-producer memory notes. With --watch the pass
repeats on the configured interval.`,
	RunE: runConsolidate,
}

func init() {
	consolidateCmd.Flags().BoolVar(&consolidateWatch, "watch", false, "keep running on the configured interval")
}

func runConsolidate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	patterns, _, err := openLearner()
	if err != nil {
		return err
	}
	defer patterns.Close()

	c := consolidate.New(patterns, consolidate.Config{
		NotesDir:      cfg.Storage.NotesDir,
		MinConfidence: cfg.Consolidation.MinConfidence,
		MinFeedback:   cfg.Consolidation.MinFeedback,
		MaxPerRun:     cfg.Consolidation.MaxPerRun,
	}, logger)

	count, err := c.Run(ctx)
	if err != nil {
		return fmt.Errorf("consolidation: %w", err)
	}
	fmt.Printf("✅ %d pattern(s) consolidated to %s\n", count, cfg.Storage.NotesDir)

	if consolidateWatch {
		fmt.Printf("Watching every %s (ctrl-c to stop)\n", cfg.Consolidation.Interval)
		c.RunPeriodically(ctx, cfg.Consolidation.Interval)
	}
	return nil
}
