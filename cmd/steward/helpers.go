package main

import (
	"context"
	"fmt"
	"time"

	"github.com/stewardlabs/steward/internal/decisionlog"
	"github.com/stewardlabs/steward/internal/executor"
	"github.com/stewardlabs/steward/internal/learner"
	"github.com/stewardlabs/steward/internal/models"
	"github.com/stewardlabs/steward/internal/orchestrator"
	"github.com/stewardlabs/steward/internal/policy"
	"github.com/stewardlabs/steward/internal/sharedctx"
)

// executedHorizon bounds how far back executed decisions are reloaded so
// late explicit feedback still finds them.
const executedHorizon = 7 * 24 * time.Hour

// openDecisionLog opens the configured decision log backend.
func openDecisionLog() (decisionlog.Store, error) {
	switch cfg.Storage.Type {
	case "postgres":
		return decisionlog.NewPostgresStore(cfg.Storage.PostgresDSN, logger)
	case "sqlite", "":
		return decisionlog.NewSQLiteStore(cfg.Storage.SQLitePath, logger)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Storage.Type)
	}
}

// openLearner opens the pattern store and wraps it in a learner.
func openLearner() (*learner.PatternStore, *learner.Learner, error) {
	store, err := learner.OpenPatternStore(cfg.Storage.PatternsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open pattern store: %w", err)
	}
	lrn := learner.New(store, learner.LearningMode(cfg.Learning.Mode), cfg.Learning.BaseWeight, logger)
	return store, lrn, nil
}

// newExecutor builds the action executor. Actions are carried out locally
// and rate limited; a draft is rendered, never sent.
func newExecutor() executor.Executor {
	perform := executor.Func(func(ctx context.Context, d models.Decision) (models.ExecutionOutcome, error) {
		switch a := d.Action.(type) {
		case models.DraftResponse:
			return models.Success(fmt.Sprintf("drafted %s reply to %s (%d chars)", a.Platform, a.Recipient, len(a.Content))), nil
		case models.AdjustPriority:
			return models.Success(fmt.Sprintf("task %q moved %s -> %s", a.Title, a.From, a.To)), nil
		case models.ScheduleMeetingPrep:
			return models.Success(fmt.Sprintf("prep block scheduled for %q", a.Title)), nil
		case models.CreateFollowup:
			return models.Success(fmt.Sprintf("follow-up created: %s", a.Action)), nil
		case models.NoAction:
			return models.Skipped(), nil
		default:
			return models.Failure(fmt.Sprintf("unsupported action kind: %s", d.Action.Kind())), nil
		}
	})
	return executor.NewRateLimited(perform, float64(cfg.Executor.RateLimit))
}

// buildOrchestrator wires the full decision pipeline and rebuilds its
// in-memory state from the log. The caller owns closing the returned stores.
func buildOrchestrator(ctx context.Context) (*orchestrator.Orchestrator, decisionlog.Store, *learner.PatternStore, error) {
	log, err := openDecisionLog()
	if err != nil {
		return nil, nil, nil, err
	}

	patterns, lrn, err := openLearner()
	if err != nil {
		log.Close()
		return nil, nil, nil, err
	}

	shared := sharedctx.New(cfg.SharedContext.SweepInterval, logger)
	shared.Start(ctx)

	orch := orchestrator.New(
		policy.AutonomyLevel(cfg.Autonomy.Level),
		newExecutor(),
		log,
		lrn,
		shared,
		logger,
	)
	if err := orch.Rehydrate(ctx, log, time.Now().Add(-executedHorizon)); err != nil {
		patterns.Close()
		log.Close()
		return nil, nil, nil, err
	}
	return orch, log, patterns, nil
}

// printDecision renders one decision for terminal output.
func printDecision(d models.Decision) {
	gate := "auto"
	if d.RequiresApproval {
		gate = "needs approval"
	}
	fmt.Printf("%s  [%s] %s (%.0f%% confident, %s)\n", d.ID, d.ProducerKind, d.Action.Kind(), d.Confidence*100, gate)
	if d.Reasoning != "" {
		fmt.Printf("   Reasoning: %s\n", d.Reasoning)
	}
	for _, r := range d.Risks {
		fmt.Printf("   Risk: %s\n", r)
	}
}
