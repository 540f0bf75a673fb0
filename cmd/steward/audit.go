package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stewardlabs/steward/internal/models"
)

var (
	auditSince    time.Duration
	auditProducer string
	auditLimit    int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show the decision audit trail",
	Long: `Show decisions with their execution or rejection records.
Defaults to today's decisions; use --since to widen the window.`,
	RunE: runAudit,
}

func init() {
	auditCmd.Flags().DurationVar(&auditSince, "since", 0, "look back this far (e.g. 72h); default is since midnight")
	auditCmd.Flags().StringVar(&auditProducer, "producer", "", "filter by producer kind (communication, task, calendar, followup)")
	auditCmd.Flags().IntVar(&auditLimit, "limit", 0, "maximum number of entries")
}

func runAudit(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	log, err := openDecisionLog()
	if err != nil {
		return err
	}
	defer log.Close()

	var entries []models.AuditEntry
	switch {
	case auditProducer != "":
		producer := models.ProducerKind(auditProducer)
		if !producer.Validate() {
			return fmt.Errorf("invalid producer kind: %s", auditProducer)
		}
		entries, err = log.EntriesSinceByProducer(ctx, sinceTime(), producer, auditLimit)
	case auditSince > 0:
		entries, err = log.EntriesSince(ctx, sinceTime(), auditLimit)
	default:
		entries, err = log.TodaysDecisions(ctx)
	}
	if err != nil {
		return fmt.Errorf("load audit entries: %w", err)
	}

	if len(entries) == 0 {
		fmt.Println("No decisions in the selected window.")
		return nil
	}

	for _, e := range entries {
		printAuditEntry(e)
	}
	fmt.Printf("\n%d entries\n", len(entries))
	return nil
}

func sinceTime() time.Time {
	if auditSince > 0 {
		return time.Now().Add(-auditSince)
	}
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

func printAuditEntry(e models.AuditEntry) {
	d := e.Decision
	fmt.Printf("%s  %s  [%s] %s (%.0f%%)\n",
		d.CreatedAt.Format("15:04:05"), d.ID, d.ProducerKind, d.Action.Kind(), d.Confidence*100)

	switch {
	case e.Rejection != nil:
		fmt.Printf("   🚫 rejected at %s", e.Rejection.RejectedAt.Format("15:04:05"))
		if e.Rejection.Reason != "" {
			fmt.Printf(": %s", e.Rejection.Reason)
		}
		fmt.Println()
	case e.Execution != nil:
		fmt.Printf("   ✅ %s (%s) at %s\n",
			e.Execution.Outcome.Status, e.Execution.Type, e.Execution.ExecutedAt.Format("15:04:05"))
		if e.Execution.Outcome.Details != "" {
			fmt.Printf("      %s\n", e.Execution.Outcome.Details)
		}
	default:
		fmt.Println("   ⏳ awaiting review")
	}
}
