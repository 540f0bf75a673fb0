package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/stewardlabs/steward/internal/models"
)

var proposeCmd = &cobra.Command{
	Use:   "propose [file]",
	Short: "Submit a batch of proposed decisions",
	Long: `Submit proposed decisions as a JSON array, from a file or stdin.
High-confidence low-risk decisions execute immediately; the rest are queued
for review.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPropose,
}

func runPropose(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	var in io.Reader = os.Stdin
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open proposals file: %w", err)
		}
		defer f.Close()
		in = f
	}

	var decisions []models.Decision
	if err := json.NewDecoder(in).Decode(&decisions); err != nil {
		return fmt.Errorf("decode proposals: %w", err)
	}
	if len(decisions) == 0 {
		fmt.Println("No proposals submitted.")
		return nil
	}

	for i := range decisions {
		if !decisions[i].ProducerKind.Validate() {
			return fmt.Errorf("proposal %d: invalid producer kind %q", i, decisions[i].ProducerKind)
		}
		if decisions[i].Confidence < 0 || decisions[i].Confidence > 1 {
			return fmt.Errorf("proposal %d: confidence %.2f out of range", i, decisions[i].Confidence)
		}
	}

	orch, log, patterns, err := buildOrchestrator(ctx)
	if err != nil {
		return err
	}
	defer log.Close()
	defer patterns.Close()

	evaluated, err := orch.Evaluate(ctx, decisions)
	if err != nil {
		return fmt.Errorf("evaluate proposals: %w", err)
	}

	var queued, executed int
	for _, d := range evaluated {
		if d.RequiresApproval {
			queued++
		} else {
			executed++
		}
		printDecision(d)
	}

	fmt.Printf("\n✅ %d executed automatically, %d queued for review\n", executed, queued)
	return nil
}
