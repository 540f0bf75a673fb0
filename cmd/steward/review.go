package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/stewardlabs/steward/internal/models"
)

var (
	rejectReason     string
	modifyActionJSON string
	modifyReasoning  string
	modifyNote       string
)

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List decisions awaiting review",
	RunE:  runPending,
}

var approveCmd = &cobra.Command{
	Use:   "approve [decision-id]",
	Short: "Approve and execute a pending decision",
	Args:  cobra.ExactArgs(1),
	RunE:  runApprove,
}

var rejectCmd = &cobra.Command{
	Use:   "reject [decision-id]",
	Short: "Reject a pending decision without executing it",
	Args:  cobra.ExactArgs(1),
	RunE:  runReject,
}

var modifyCmd = &cobra.Command{
	Use:   "modify [decision-id]",
	Short: "Approve a pending decision with overrides",
	Long: `Approve a pending decision after overriding its action or reasoning.
The override action is passed as a JSON envelope, e.g.
  --action '{"kind":"draft_response","payload":{"recipient":"sam","content":"..."}}'`,
	Args: cobra.ExactArgs(1),
	RunE: runModify,
}

func init() {
	rejectCmd.Flags().StringVar(&rejectReason, "reason", "", "why the decision was rejected")

	modifyCmd.Flags().StringVar(&modifyActionJSON, "action", "", "replacement action as a JSON envelope")
	modifyCmd.Flags().StringVar(&modifyReasoning, "reasoning", "", "replacement reasoning")
	modifyCmd.Flags().StringVar(&modifyNote, "note", "", "note explaining the modification")
}

func runPending(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	orch, log, patterns, err := buildOrchestrator(ctx)
	if err != nil {
		return err
	}
	defer log.Close()
	defer patterns.Close()

	pending := orch.PendingDecisions()
	if len(pending) == 0 {
		fmt.Println("No decisions awaiting review.")
		return nil
	}

	fmt.Printf("%d decision(s) awaiting review:\n\n", len(pending))
	for _, d := range pending {
		printDecision(d)
	}
	return nil
}

func runApprove(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid decision id: %w", err)
	}

	orch, log, patterns, err := buildOrchestrator(ctx)
	if err != nil {
		return err
	}
	defer log.Close()
	defer patterns.Close()

	entry, err := orch.Approve(ctx, id)
	if err != nil {
		return err
	}

	fmt.Printf("✅ Approved %s\n", id)
	printOutcome(entry)
	return nil
}

func runReject(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid decision id: %w", err)
	}

	orch, log, patterns, err := buildOrchestrator(ctx)
	if err != nil {
		return err
	}
	defer log.Close()
	defer patterns.Close()

	if err := orch.Reject(ctx, id, rejectReason); err != nil {
		return err
	}

	fmt.Printf("🚫 Rejected %s\n", id)
	if rejectReason != "" {
		fmt.Printf("   Reason: %s\n", rejectReason)
	}
	return nil
}

func runModify(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid decision id: %w", err)
	}

	mod := models.Modification{
		Reasoning: modifyReasoning,
		Note:      modifyNote,
	}
	if modifyActionJSON != "" {
		action, err := models.UnmarshalAction([]byte(modifyActionJSON))
		if err != nil {
			return fmt.Errorf("parse replacement action: %w", err)
		}
		mod.Action = action
	}
	if mod.Action == nil && mod.Reasoning == "" {
		return fmt.Errorf("nothing to modify: pass --action or --reasoning")
	}

	orch, log, patterns, err := buildOrchestrator(ctx)
	if err != nil {
		return err
	}
	defer log.Close()
	defer patterns.Close()

	entry, err := orch.ModifyAndApprove(ctx, id, mod)
	if err != nil {
		return err
	}

	fmt.Printf("✅ Approved %s with modifications\n", id)
	printOutcome(entry)
	return nil
}

func printOutcome(entry *models.AuditEntry) {
	if entry == nil || entry.Execution == nil {
		return
	}
	out := entry.Execution.Outcome
	fmt.Printf("   Outcome: %s\n", out.Status)
	if out.Details != "" {
		fmt.Printf("   Details: %s\n", out.Details)
	}
	if out.Error != "" {
		fmt.Printf("   Error: %s\n", out.Error)
	}
}
