package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stewardlabs/steward/internal/decisionlog"
	stewarderr "github.com/stewardlabs/steward/internal/errors"
	"github.com/stewardlabs/steward/internal/executor"
	"github.com/stewardlabs/steward/internal/learner"
	"github.com/stewardlabs/steward/internal/models"
	"github.com/stewardlabs/steward/internal/policy"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

// countingExecutor records how often each decision was executed.
type countingExecutor struct {
	calls atomic.Int64
}

func (c *countingExecutor) Execute(_ context.Context, d models.Decision) (models.ExecutionOutcome, error) {
	c.calls.Add(1)
	return models.Success("executed " + string(d.Action.Kind())), nil
}

type fixture struct {
	orch     *Orchestrator
	log      *decisionlog.SQLiteStore
	patterns *learner.PatternStore
	lrn      *learner.Learner
	exec     *countingExecutor
}

func setup(t *testing.T, level policy.AutonomyLevel) *fixture {
	logger := testLogger()

	log, err := decisionlog.NewSQLiteStoreInMemory(logger)
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	patterns, err := learner.OpenPatternStore(filepath.Join(t.TempDir(), "patterns.db"))
	require.NoError(t, err)
	t.Cleanup(func() { patterns.Close() })

	lrn := learner.New(patterns, learner.Hybrid, learner.DefaultBaseWeight, logger)
	exec := &countingExecutor{}

	return &fixture{
		orch:     New(level, exec, log, lrn, nil, logger),
		log:      log,
		patterns: patterns,
		lrn:      lrn,
		exec:     exec,
	}
}

func proposal(producer models.ProducerKind, action models.Action, confidence float64) models.Decision {
	return models.NewDecision(producer, action, "proposed in test", confidence, "thread:standup")
}

func TestEvaluateSplitsBatch(t *testing.T) {
	f := setup(t, policy.Moderate)
	ctx := context.Background()

	auto := proposal(models.ProducerTask, models.AdjustPriority{Title: "renew certs", From: models.PriorityLow, To: models.PriorityHigh}, 0.9)
	queued := proposal(models.ProducerTask, models.AdjustPriority{Title: "tidy backlog", From: models.PriorityLow, To: models.PriorityMedium}, 0.5)

	out, err := f.orch.Evaluate(ctx, []models.Decision{queued, auto})
	require.NoError(t, err)
	require.Len(t, out, 2)

	// Confidence-descending processing order.
	assert.Equal(t, auto.ID, out[0].ID)
	assert.False(t, out[0].RequiresApproval)
	assert.True(t, out[1].RequiresApproval)

	pending := f.orch.PendingDecisions()
	require.Len(t, pending, 1)
	assert.Equal(t, queued.ID, pending[0].ID)

	executed := f.orch.ExecutedDecisions()
	require.Len(t, executed, 1)
	assert.Equal(t, auto.ID, executed[0].ID)

	// Auto execution is durably recorded.
	rec, err := f.log.OutcomeByDecision(ctx, auto.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionAuto, rec.Type)
	assert.True(t, rec.Outcome.Succeeded())

	// The queued decision has no execution yet.
	_, err = f.log.OutcomeByDecision(ctx, queued.ID)
	assert.ErrorIs(t, err, decisionlog.ErrNotFound)
}

func TestEvaluateAssignsIdentity(t *testing.T) {
	f := setup(t, policy.Moderate)

	d := models.Decision{
		ProducerKind: models.ProducerTask,
		Action:       models.NoAction{Reason: "nothing to do"},
		Confidence:   0.9,
	}
	out, err := f.orch.Evaluate(context.Background(), []models.Decision{d})
	require.NoError(t, err)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", out[0].ID.String())
	assert.False(t, out[0].CreatedAt.IsZero())
}

func TestEvaluateEmitsImplicitFeedback(t *testing.T) {
	f := setup(t, policy.Aggressive)
	ctx := context.Background()

	d := proposal(models.ProducerTask, models.AdjustPriority{Title: "renew certs", From: models.PriorityLow, To: models.PriorityHigh}, 0.9)
	_, err := f.orch.Evaluate(ctx, []models.Decision{d})
	require.NoError(t, err)

	stats, err := f.patterns.Get(d.PatternKey())
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.Approvals)
	assert.Equal(t, 0, stats.Rejections)
}

func TestApprovePendingDecision(t *testing.T) {
	f := setup(t, policy.Conservative)
	ctx := context.Background()

	d := proposal(models.ProducerTask, models.AdjustPriority{Title: "tidy backlog", From: models.PriorityLow, To: models.PriorityMedium}, 0.9)
	_, err := f.orch.Evaluate(ctx, []models.Decision{d})
	require.NoError(t, err)
	require.Len(t, f.orch.PendingDecisions(), 1)

	entry, err := f.orch.Approve(ctx, d.ID)
	require.NoError(t, err)
	require.NotNil(t, entry.Execution)
	assert.Equal(t, models.ExecutionManual, entry.Execution.Type)
	assert.True(t, entry.Execution.Outcome.Succeeded())

	assert.Empty(t, f.orch.PendingDecisions())
	require.Len(t, f.orch.ExecutedDecisions(), 1)

	// Approval lands as positive implicit feedback.
	stats, err := f.patterns.Get(d.PatternKey())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Approvals)
}

func TestApproveUnknownDecision(t *testing.T) {
	f := setup(t, policy.Conservative)

	d := proposal(models.ProducerTask, models.NoAction{}, 0.9)
	_, err := f.orch.Approve(context.Background(), d.ID)
	require.Error(t, err)
	assert.True(t, stewarderr.IsNotFound(err))
}

func TestApproveTwiceFails(t *testing.T) {
	f := setup(t, policy.Conservative)
	ctx := context.Background()

	d := proposal(models.ProducerTask, models.AdjustPriority{Title: "x", From: models.PriorityLow, To: models.PriorityMedium}, 0.9)
	_, err := f.orch.Evaluate(ctx, []models.Decision{d})
	require.NoError(t, err)

	_, err = f.orch.Approve(ctx, d.ID)
	require.NoError(t, err)

	_, err = f.orch.Approve(ctx, d.ID)
	assert.True(t, stewarderr.IsNotFound(err))
}

func TestRejectRecordsWithoutExecuting(t *testing.T) {
	f := setup(t, policy.Conservative)
	ctx := context.Background()

	d := proposal(models.ProducerCommunication, models.DraftResponse{Recipient: "sam", Content: "draft"}, 0.4)
	_, err := f.orch.Evaluate(ctx, []models.Decision{d})
	require.NoError(t, err)

	// The draft was materialized at evaluate time; rejection must not add a
	// second execution.
	callsBefore := f.exec.calls.Load()

	require.NoError(t, f.orch.Reject(ctx, d.ID, "wrong recipient"))
	assert.Equal(t, callsBefore, f.exec.calls.Load())
	assert.Empty(t, f.orch.PendingDecisions())
	assert.Empty(t, f.orch.ExecutedDecisions())

	// Rejection lands as negative implicit feedback.
	stats, err := f.patterns.Get(d.PatternKey())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Rejections)

	entries, err := f.log.EntriesSince(ctx, time.Now().Add(-time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].Rejection)
	assert.Equal(t, "wrong recipient", entries[0].Rejection.Reason)
}

func TestDraftMaterializedExactlyOnce(t *testing.T) {
	f := setup(t, policy.Conservative)
	ctx := context.Background()

	d := proposal(models.ProducerCommunication, models.DraftResponse{Recipient: "sam", Content: "draft"}, 0.95)
	_, err := f.orch.Evaluate(ctx, []models.Decision{d})
	require.NoError(t, err)

	// Materialized during evaluation even though it is queued.
	assert.Equal(t, int64(1), f.exec.calls.Load())

	entry, err := f.orch.Approve(ctx, d.ID)
	require.NoError(t, err)

	// Approval reuses the materialized outcome.
	assert.Equal(t, int64(1), f.exec.calls.Load())
	assert.True(t, entry.Execution.Outcome.Succeeded())
}

func TestModifyAndApproveReplacesAction(t *testing.T) {
	f := setup(t, policy.Conservative)
	ctx := context.Background()

	d := proposal(models.ProducerCommunication, models.DraftResponse{Recipient: "sam", Content: "original"}, 0.9)
	_, err := f.orch.Evaluate(ctx, []models.Decision{d})
	require.NoError(t, err)
	require.Equal(t, int64(1), f.exec.calls.Load())

	replacement := models.DraftResponse{Recipient: "sam", Content: "rewritten"}
	entry, err := f.orch.ModifyAndApprove(ctx, d.ID, models.Modification{
		Action: replacement,
		Note:   "softer wording",
	})
	require.NoError(t, err)

	// A modified draft is re-materialized.
	assert.Equal(t, int64(2), f.exec.calls.Load())
	assert.Equal(t, models.ExecutionModified, entry.Execution.Type)
	assert.Equal(t, "softer wording", entry.Execution.Note)
	assert.Equal(t, replacement, entry.Decision.Action)

	// The log holds the modified action under the original id.
	stored, err := f.log.GetDecision(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, replacement, stored.Action)
}

func TestModifyReasoningOnlyReusesDraft(t *testing.T) {
	f := setup(t, policy.Conservative)
	ctx := context.Background()

	d := proposal(models.ProducerCommunication, models.DraftResponse{Recipient: "sam", Content: "original"}, 0.9)
	_, err := f.orch.Evaluate(ctx, []models.Decision{d})
	require.NoError(t, err)

	entry, err := f.orch.ModifyAndApprove(ctx, d.ID, models.Modification{Reasoning: "better framing"})
	require.NoError(t, err)

	// No action override: the evaluate-time materialization stands.
	assert.Equal(t, int64(1), f.exec.calls.Load())
	assert.Equal(t, "better framing", entry.Decision.Reasoning)
}

func TestExplicitFeedbackRequiresExecution(t *testing.T) {
	f := setup(t, policy.Conservative)
	ctx := context.Background()

	d := proposal(models.ProducerTask, models.AdjustPriority{Title: "x", From: models.PriorityLow, To: models.PriorityMedium}, 0.9)
	_, err := f.orch.Evaluate(ctx, []models.Decision{d})
	require.NoError(t, err)

	// Still pending: rating is premature.
	err = f.orch.ProvideExplicitFeedback(ctx, d.ID, true, "")
	assert.True(t, stewarderr.IsNotFound(err))

	_, err = f.orch.Approve(ctx, d.ID)
	require.NoError(t, err)

	require.NoError(t, f.orch.ProvideExplicitFeedback(ctx, d.ID, true, "exactly right"))

	stats, err := f.patterns.Get(d.PatternKey())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Successes)
	assert.Equal(t, 0, stats.Failures)
	// The approval itself contributed the implicit side.
	assert.Equal(t, 1, stats.Approvals)
}

// failingLog fails SaveDecision for one marked context key and delegates the
// rest.
type failingLog struct {
	inner   Log
	failKey string
}

func (f *failingLog) SaveDecision(ctx context.Context, d models.Decision) error {
	if d.ContextKey == f.failKey {
		return fmt.Errorf("disk full")
	}
	return f.inner.SaveDecision(ctx, d)
}

func (f *failingLog) RecordExecution(ctx context.Context, rec models.ExecutionRecord) error {
	return f.inner.RecordExecution(ctx, rec)
}

func (f *failingLog) RecordRejection(ctx context.Context, rec models.RejectionRecord) error {
	return f.inner.RecordRejection(ctx, rec)
}

func TestEvaluateIsolatesFailures(t *testing.T) {
	logger := testLogger()
	log, err := decisionlog.NewSQLiteStoreInMemory(logger)
	require.NoError(t, err)
	defer log.Close()

	patterns, err := learner.OpenPatternStore(filepath.Join(t.TempDir(), "patterns.db"))
	require.NoError(t, err)
	defer patterns.Close()

	lrn := learner.New(patterns, learner.Hybrid, learner.DefaultBaseWeight, logger)
	orch := New(policy.Moderate, &countingExecutor{}, &failingLog{inner: log, failKey: "poison"}, lrn, nil, logger)
	ctx := context.Background()

	bad := models.NewDecision(models.ProducerTask, models.NoAction{}, "", 0.95, "poison")
	good := models.NewDecision(models.ProducerTask, models.AdjustPriority{Title: "ok", From: models.PriorityLow, To: models.PriorityMedium}, "", 0.9, "fine")

	_, err = orch.Evaluate(ctx, []models.Decision{bad, good})
	require.NoError(t, err)

	// The unloggable decision is neither queued nor executed; its sibling
	// proceeds.
	assert.Empty(t, orch.PendingDecisions())
	require.Len(t, orch.ExecutedDecisions(), 1)
	assert.Equal(t, good.ID, orch.ExecutedDecisions()[0].ID)
}

func TestRehydrateRestoresPendingQueue(t *testing.T) {
	logger := testLogger()
	log, err := decisionlog.NewSQLiteStoreInMemory(logger)
	require.NoError(t, err)
	defer log.Close()

	patterns, err := learner.OpenPatternStore(filepath.Join(t.TempDir(), "patterns.db"))
	require.NoError(t, err)
	defer patterns.Close()
	lrn := learner.New(patterns, learner.Hybrid, learner.DefaultBaseWeight, logger)

	ctx := context.Background()

	first := New(policy.Conservative, &countingExecutor{}, log, lrn, nil, logger)
	d := proposal(models.ProducerTask, models.AdjustPriority{Title: "x", From: models.PriorityLow, To: models.PriorityMedium}, 0.9)
	_, err = first.Evaluate(ctx, []models.Decision{d})
	require.NoError(t, err)
	require.Len(t, first.PendingDecisions(), 1)

	// A fresh orchestrator over the same log picks the queue back up.
	second := New(policy.Conservative, &countingExecutor{}, log, lrn, nil, logger)
	require.NoError(t, second.Rehydrate(ctx, log, time.Now().Add(-time.Hour)))
	require.Len(t, second.PendingDecisions(), 1)

	entry, err := second.Approve(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionManual, entry.Execution.Type)
}

func TestExecutorErrorBecomesFailureOutcome(t *testing.T) {
	logger := testLogger()
	log, err := decisionlog.NewSQLiteStoreInMemory(logger)
	require.NoError(t, err)
	defer log.Close()

	patterns, err := learner.OpenPatternStore(filepath.Join(t.TempDir(), "patterns.db"))
	require.NoError(t, err)
	defer patterns.Close()
	lrn := learner.New(patterns, learner.Hybrid, learner.DefaultBaseWeight, logger)

	raising := executor.Func(func(context.Context, models.Decision) (models.ExecutionOutcome, error) {
		return models.ExecutionOutcome{}, fmt.Errorf("workspace API unavailable")
	})
	orch := New(policy.Moderate, raising, log, lrn, nil, logger)
	ctx := context.Background()

	d := proposal(models.ProducerTask, models.AdjustPriority{Title: "x", From: models.PriorityLow, To: models.PriorityHigh}, 0.95)
	_, err = orch.Evaluate(ctx, []models.Decision{d})
	require.NoError(t, err)

	rec, err := log.OutcomeByDecision(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeFailure, rec.Outcome.Status)
	assert.Contains(t, rec.Outcome.Error, "workspace API unavailable")

	// Executed but unsuccessful: counts as approved, not successful.
	stats, err := patterns.Get(d.PatternKey())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Approvals)
}
