// Package orchestrator owns the decision lifecycle: it gates proposed
// decisions through the autonomy policy, drives auto-execution, manages the
// human-review queue and turns every outcome into feedback.
package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	stewarderr "github.com/stewardlabs/steward/internal/errors"
	"github.com/stewardlabs/steward/internal/executor"
	"github.com/stewardlabs/steward/internal/learner"
	"github.com/stewardlabs/steward/internal/models"
	"github.com/stewardlabs/steward/internal/policy"
	"github.com/stewardlabs/steward/internal/sharedctx"
)

// Log is the slice of the decision log the orchestrator writes through.
type Log interface {
	SaveDecision(ctx context.Context, d models.Decision) error
	RecordExecution(ctx context.Context, rec models.ExecutionRecord) error
	RecordRejection(ctx context.Context, rec models.RejectionRecord) error
}

// pendingEntry holds a queued decision plus, for drafts, the outcome of the
// materialization that already happened at evaluate time.
type pendingEntry struct {
	decision     models.Decision
	materialized *models.ExecutionOutcome
}

// Orchestrator is the proposal-submission and review façade. A single
// orchestrator instance exclusively owns the pending queue; concurrent
// orchestrators over the same persisted state are out of scope.
type Orchestrator struct {
	level   policy.AutonomyLevel
	exec    executor.Executor
	log     Log
	learner *learner.Learner
	shared  *sharedctx.Service
	logger  *logrus.Logger

	// mu guards the pending and executed sets. Review actions and batch
	// evaluation arrive on separate call paths.
	mu       sync.Mutex
	pending  map[uuid.UUID]*pendingEntry
	executed map[uuid.UUID]models.Decision
}

// New wires an orchestrator. shared may be nil when no coordination bus is
// configured.
func New(level policy.AutonomyLevel, exec executor.Executor, log Log, lrn *learner.Learner, shared *sharedctx.Service, logger *logrus.Logger) *Orchestrator {
	if !level.Validate() {
		level = policy.Conservative
	}
	return &Orchestrator{
		level:    level,
		exec:     exec,
		log:      log,
		learner:  lrn,
		shared:   shared,
		logger:   logger,
		pending:  make(map[uuid.UUID]*pendingEntry),
		executed: make(map[uuid.UUID]models.Decision),
	}
}

// RehydrateSource is the slice of the decision log used to rebuild
// in-memory state after a restart.
type RehydrateSource interface {
	OpenDecisions(ctx context.Context) ([]models.Decision, error)
	ExecutedDecisions(ctx context.Context, since time.Time) ([]models.Decision, error)
}

// Rehydrate rebuilds the pending queue and executed set from the decision
// log. Materialized draft outcomes do not survive a restart; an approved
// draft is re-executed instead. Executed decisions are loaded back to the
// given horizon so late explicit feedback still finds them.
func (o *Orchestrator) Rehydrate(ctx context.Context, src RehydrateSource, executedSince time.Time) error {
	open, err := src.OpenDecisions(ctx)
	if err != nil {
		return err
	}
	done, err := src.ExecutedDecisions(ctx, executedSince)
	if err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	for _, d := range open {
		o.pending[d.ID] = &pendingEntry{decision: d}
	}
	for _, d := range done {
		o.executed[d.ID] = d
	}

	o.logger.WithFields(logrus.Fields{
		"pending":  len(open),
		"executed": len(done),
	}).Debug("orchestrator state rehydrated")
	return nil
}

// Evaluate gates a batch of proposed decisions.
//
// The batch is processed in confidence-descending order (stable on
// submission order). The autonomy policy overwrites RequiresApproval on
// every decision. Drafts are materialized immediately regardless of the
// gate; all other actions defer their side effect until the gate passes.
// One decision's failure never aborts the rest of the batch.
func (o *Orchestrator) Evaluate(ctx context.Context, decisions []models.Decision) ([]models.Decision, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	sort.SliceStable(decisions, func(i, j int) bool {
		return decisions[i].Confidence > decisions[j].Confidence
	})
	decisions = policy.Apply(decisions, o.level)

	for i := range decisions {
		d := &decisions[i]
		if d.ID == uuid.Nil {
			d.ID = uuid.New()
		}
		if d.CreatedAt.IsZero() {
			d.CreatedAt = time.Now()
		}

		if err := o.log.SaveDecision(ctx, *d); err != nil {
			// Not queued and not executed: a decision we cannot record
			// durably is not acted on.
			o.logger.WithError(err).WithField("decision_id", d.ID).Error("decision log write failed")
			continue
		}

		if o.shared != nil {
			// Off the critical path.
			go o.shared.RecordDecision(*d)
		}

		var materialized *models.ExecutionOutcome
		if _, isDraft := d.Action.(models.DraftResponse); isDraft {
			outcome := o.execute(ctx, *d)
			materialized = &outcome
		}

		if d.RequiresApproval {
			o.pending[d.ID] = &pendingEntry{decision: *d, materialized: materialized}
			o.logger.WithFields(logrus.Fields{
				"decision_id": d.ID,
				"action":      d.Action.Kind(),
				"confidence":  d.Confidence,
			}).Info("decision queued for approval")
			continue
		}

		outcome := models.ExecutionOutcome{}
		if materialized != nil {
			outcome = *materialized
		} else {
			outcome = o.execute(ctx, *d)
		}

		if err := o.recordExecution(ctx, *d, models.ExecutionAuto, outcome, ""); err != nil {
			o.logger.WithError(err).WithField("decision_id", d.ID).Error("auto-execution log write failed")
			continue
		}
		o.executed[d.ID] = *d
		o.emitImplicitFeedback(*d, true, outcome.Succeeded(), "")
	}

	return decisions, nil
}

// Approve executes a pending decision and moves it to the executed set.
// Returns DecisionNotFound when the id is not pending; a second approval of
// the same id therefore fails.
func (o *Orchestrator) Approve(ctx context.Context, id uuid.UUID) (*models.AuditEntry, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	entry, ok := o.pending[id]
	if !ok {
		return nil, stewarderr.DecisionNotFound(id.String())
	}
	delete(o.pending, id)

	d := entry.decision

	// Drafts were materialized at evaluate time and are not re-executed.
	var outcome models.ExecutionOutcome
	if entry.materialized != nil {
		outcome = *entry.materialized
	} else {
		outcome = o.execute(ctx, d)
	}

	rec := models.ExecutionRecord{
		DecisionID: d.ID,
		Type:       models.ExecutionManual,
		Outcome:    outcome,
		ExecutedAt: time.Now(),
	}

	// Fire-once: the decision is terminal whether or not the log write
	// succeeds, but a write failure is surfaced as an inconsistency.
	o.executed[id] = d
	o.emitImplicitFeedback(d, true, outcome.Succeeded(), "")

	if err := o.log.RecordExecution(ctx, rec); err != nil {
		return nil, stewarderr.LogWriteFailed(err, "record manual approval")
	}

	audit := models.AuditEntry{Decision: d, Execution: &rec}
	return &audit, nil
}

// Reject removes a pending decision without executing it and records the
// rejection with its reason.
func (o *Orchestrator) Reject(ctx context.Context, id uuid.UUID, reason string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	entry, ok := o.pending[id]
	if !ok {
		return stewarderr.DecisionNotFound(id.String())
	}
	delete(o.pending, id)

	d := entry.decision
	rec := models.RejectionRecord{
		DecisionID: d.ID,
		Reason:     reason,
		RejectedAt: time.Now(),
	}

	o.emitImplicitFeedback(d, false, false, reason)

	if err := o.log.RecordRejection(ctx, rec); err != nil {
		return stewarderr.LogWriteFailed(err, "record rejection")
	}

	o.logger.WithFields(logrus.Fields{
		"decision_id": id,
		"reason":      reason,
	}).Info("decision rejected")
	return nil
}

// ModifyAndApprove approves a pending decision with overrides. The override
// action and reasoning replace the originals for execution and logging; the
// decision's identity, confidence, risks and alternatives are preserved for
// audit continuity.
func (o *Orchestrator) ModifyAndApprove(ctx context.Context, id uuid.UUID, mod models.Modification) (*models.AuditEntry, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	entry, ok := o.pending[id]
	if !ok {
		return nil, stewarderr.DecisionNotFound(id.String())
	}
	delete(o.pending, id)

	d := entry.decision
	if mod.Action != nil {
		d.Action = mod.Action
	}
	if mod.Reasoning != "" {
		d.Reasoning = mod.Reasoning
	}

	// Re-log the modified decision; the log upserts by id.
	if err := o.log.SaveDecision(ctx, d); err != nil {
		// Restore the queue entry: nothing executed yet.
		o.pending[id] = entry
		return nil, stewarderr.LogWriteFailed(err, "re-log modified decision")
	}

	// A modified draft has new content and must be re-materialized; an
	// unmodified one reuses the evaluate-time outcome.
	var outcome models.ExecutionOutcome
	if entry.materialized != nil && mod.Action == nil {
		outcome = *entry.materialized
	} else {
		outcome = o.execute(ctx, d)
	}

	rec := models.ExecutionRecord{
		DecisionID: d.ID,
		Type:       models.ExecutionModified,
		Outcome:    outcome,
		Note:       mod.Note,
		ExecutedAt: time.Now(),
	}

	o.executed[id] = d
	o.emitImplicitFeedback(d, true, outcome.Succeeded(), mod.Note)

	if err := o.log.RecordExecution(ctx, rec); err != nil {
		return nil, stewarderr.LogWriteFailed(err, "record modified approval")
	}

	audit := models.AuditEntry{Decision: d, Execution: &rec}
	return &audit, nil
}

// ProvideExplicitFeedback records a user rating for an already-executed
// decision and refreshes the aggregate learning insights.
func (o *Orchestrator) ProvideExplicitFeedback(ctx context.Context, id uuid.UUID, wasHelpful bool, comment string) error {
	o.mu.Lock()
	d, ok := o.executed[id]
	o.mu.Unlock()
	if !ok {
		return stewarderr.DecisionNotFound(id.String())
	}

	fb := models.Feedback{
		DecisionID:    d.ID,
		Kind:          models.FeedbackExplicit,
		WasApproved:   true,
		WasSuccessful: wasHelpful,
		Comment:       comment,
		ContextKey:    d.ContextKey,
		Producer:      d.ProducerKind,
		ActionKind:    d.Action.Kind(),
		Timestamp:     time.Now(),
	}
	if err := o.learner.RecordFeedback(fb); err != nil {
		return stewarderr.LearningRecordFailed(err)
	}

	insights, err := o.learner.Insights()
	if err != nil {
		o.logger.WithError(err).Warn("insight refresh failed")
		return nil
	}
	o.logger.WithFields(logrus.Fields{
		"patterns": insights.TotalPatterns,
		"reliable": insights.ReliablePatterns,
	}).Info("learning insights refreshed")
	return nil
}

// PendingDecisions lists the decisions awaiting review.
func (o *Orchestrator) PendingDecisions() []models.Decision {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]models.Decision, 0, len(o.pending))
	for _, entry := range o.pending {
		out = append(out, entry.decision)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

// ExecutedDecisions lists decisions that reached a terminal executed state
// during this process lifetime.
func (o *Orchestrator) ExecutedDecisions() []models.Decision {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]models.Decision, 0, len(o.executed))
	for _, d := range o.executed {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// execute calls the executor, converting an exceptional error into a
// Failure outcome so one decision's failure stays local to it.
func (o *Orchestrator) execute(ctx context.Context, d models.Decision) models.ExecutionOutcome {
	outcome, err := o.exec.Execute(ctx, d)
	if err != nil {
		o.logger.WithError(err).WithField("decision_id", d.ID).Warn("executor raised")
		return models.Failure(err.Error())
	}
	return outcome
}

func (o *Orchestrator) recordExecution(ctx context.Context, d models.Decision, typ models.ExecutionType, outcome models.ExecutionOutcome, note string) error {
	return o.log.RecordExecution(ctx, models.ExecutionRecord{
		DecisionID: d.ID,
		Type:       typ,
		Outcome:    outcome,
		Note:       note,
		ExecutedAt: time.Now(),
	})
}

// emitImplicitFeedback derives a feedback event from an outcome. A learning
// failure never rolls back the committed decision state.
func (o *Orchestrator) emitImplicitFeedback(d models.Decision, approved, successful bool, comment string) {
	fb := models.Feedback{
		DecisionID:    d.ID,
		Kind:          models.FeedbackImplicit,
		WasApproved:   approved,
		WasSuccessful: successful,
		Comment:       comment,
		ContextKey:    d.ContextKey,
		Producer:      d.ProducerKind,
		ActionKind:    d.Action.Kind(),
		Timestamp:     time.Now(),
	}
	if err := o.learner.RecordFeedback(fb); err != nil {
		o.logger.WithError(err).WithField("decision_id", d.ID).Warn("feedback recording failed")
	}
}
