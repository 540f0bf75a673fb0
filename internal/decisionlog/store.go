// Package decisionlog is the durable, queryable record of every decision,
// execution attempt and rejection. It is the single writer of audit records;
// no other component touches the underlying tables.
package decisionlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stewardlabs/steward/internal/models"
)

// Common errors
var (
	ErrNotFound = errors.New("not found")
)

// Store defines the decision log interface.
//
// Decisions are upserted by id: a later save replaces the prior row, which
// supports re-logging on modification. Executions and rejections are
// append-only and foreign-keyed to a decision id.
type Store interface {
	// Decision operations
	SaveDecision(ctx context.Context, d models.Decision) error
	GetDecision(ctx context.Context, id uuid.UUID) (*models.Decision, error)

	// Execution operations
	RecordExecution(ctx context.Context, rec models.ExecutionRecord) error
	OutcomeByDecision(ctx context.Context, id uuid.UUID) (*models.ExecutionRecord, error)

	// Rejection operations
	RecordRejection(ctx context.Context, rec models.RejectionRecord) error

	// Lifecycle queries for rebuilding in-memory state after restart
	OpenDecisions(ctx context.Context) ([]models.Decision, error)
	ExecutedDecisions(ctx context.Context, since time.Time) ([]models.Decision, error)

	// Audit queries
	EntriesSince(ctx context.Context, since time.Time, limit int) ([]models.AuditEntry, error)
	EntriesSinceByProducer(ctx context.Context, since time.Time, producer models.ProducerKind, limit int) ([]models.AuditEntry, error)
	TodaysDecisions(ctx context.Context) ([]models.AuditEntry, error)

	// Close connection
	Close() error
}

// DefaultPageSize bounds audit query results when the caller passes no limit.
const DefaultPageSize = 100

// decisionRow is the flat table form of a decision.
type decisionRow struct {
	ID               string    `db:"id"`
	ProducerKind     string    `db:"producer_kind"`
	Action           []byte    `db:"action"`
	Reasoning        string    `db:"reasoning"`
	Confidence       float64   `db:"confidence"`
	ContextKey       string    `db:"context_key"`
	Risks            []byte    `db:"risks"`
	Alternatives     []byte    `db:"alternatives"`
	RequiresApproval bool      `db:"requires_approval"`
	CreatedAt        time.Time `db:"created_at"`
}

func toDecisionRow(d models.Decision) (*decisionRow, error) {
	action, err := models.MarshalAction(d.Action)
	if err != nil {
		return nil, fmt.Errorf("encode action: %w", err)
	}
	risks, err := json.Marshal(d.Risks)
	if err != nil {
		return nil, fmt.Errorf("encode risks: %w", err)
	}
	alternatives, err := json.Marshal(d.Alternatives)
	if err != nil {
		return nil, fmt.Errorf("encode alternatives: %w", err)
	}
	return &decisionRow{
		ID:               d.ID.String(),
		ProducerKind:     string(d.ProducerKind),
		Action:           action,
		Reasoning:        d.Reasoning,
		Confidence:       d.Confidence,
		ContextKey:       d.ContextKey,
		Risks:            risks,
		Alternatives:     alternatives,
		RequiresApproval: d.RequiresApproval,
		CreatedAt:        d.CreatedAt,
	}, nil
}

func (r *decisionRow) toModel() (models.Decision, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return models.Decision{}, fmt.Errorf("parse decision id: %w", err)
	}
	action, err := models.UnmarshalAction(r.Action)
	if err != nil {
		return models.Decision{}, fmt.Errorf("decode action: %w", err)
	}
	var risks, alternatives []string
	if len(r.Risks) > 0 {
		if err := json.Unmarshal(r.Risks, &risks); err != nil {
			return models.Decision{}, fmt.Errorf("decode risks: %w", err)
		}
	}
	if len(r.Alternatives) > 0 {
		if err := json.Unmarshal(r.Alternatives, &alternatives); err != nil {
			return models.Decision{}, fmt.Errorf("decode alternatives: %w", err)
		}
	}
	return models.Decision{
		ID:               id,
		ProducerKind:     models.ProducerKind(r.ProducerKind),
		Action:           action,
		Reasoning:        r.Reasoning,
		Confidence:       r.Confidence,
		ContextKey:       r.ContextKey,
		Risks:            risks,
		Alternatives:     alternatives,
		RequiresApproval: r.RequiresApproval,
		CreatedAt:        r.CreatedAt,
	}, nil
}

func rowsToDecisions(rows []decisionRow) ([]models.Decision, error) {
	out := make([]models.Decision, 0, len(rows))
	for i := range rows {
		d, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// executionRow is the flat table form of an execution record.
type executionRow struct {
	DecisionID string    `db:"decision_id"`
	Type       string    `db:"type"`
	Status     string    `db:"status"`
	Details    string    `db:"details"`
	Error      string    `db:"error"`
	Note       string    `db:"note"`
	ExecutedAt time.Time `db:"executed_at"`
}

func toExecutionRow(rec models.ExecutionRecord) executionRow {
	return executionRow{
		DecisionID: rec.DecisionID.String(),
		Type:       string(rec.Type),
		Status:     string(rec.Outcome.Status),
		Details:    rec.Outcome.Details,
		Error:      rec.Outcome.Error,
		Note:       rec.Note,
		ExecutedAt: rec.ExecutedAt,
	}
}

func (r *executionRow) toModel() (models.ExecutionRecord, error) {
	id, err := uuid.Parse(r.DecisionID)
	if err != nil {
		return models.ExecutionRecord{}, fmt.Errorf("parse decision id: %w", err)
	}
	return models.ExecutionRecord{
		DecisionID: id,
		Type:       models.ExecutionType(r.Type),
		Outcome: models.ExecutionOutcome{
			Status:  models.OutcomeStatus(r.Status),
			Details: r.Details,
			Error:   r.Error,
		},
		Note:       r.Note,
		ExecutedAt: r.ExecutedAt,
	}, nil
}

// rejectionRow is the flat table form of a rejection record.
type rejectionRow struct {
	DecisionID string    `db:"decision_id"`
	Reason     string    `db:"reason"`
	RejectedAt time.Time `db:"rejected_at"`
}

func (r *rejectionRow) toModel() (models.RejectionRecord, error) {
	id, err := uuid.Parse(r.DecisionID)
	if err != nil {
		return models.RejectionRecord{}, fmt.Errorf("parse decision id: %w", err)
	}
	return models.RejectionRecord{
		DecisionID: id,
		Reason:     r.Reason,
		RejectedAt: r.RejectedAt,
	}, nil
}

// buildEntry joins one decision with its latest execution and rejection into
// the audit read model. Implicit feedback is derived, not stored: a rejection
// reads as not-approved, an execution as approved with the outcome's success.
func buildEntry(d models.Decision, exec *models.ExecutionRecord, rej *models.RejectionRecord) models.AuditEntry {
	entry := models.AuditEntry{Decision: d, Execution: exec, Rejection: rej}

	switch {
	case rej != nil:
		entry.Feedback = &models.Feedback{
			DecisionID:  d.ID,
			Kind:        models.FeedbackImplicit,
			WasApproved: false,
			Comment:     rej.Reason,
			ContextKey:  d.ContextKey,
			Producer:    d.ProducerKind,
			ActionKind:  d.Action.Kind(),
			Timestamp:   rej.RejectedAt,
		}
	case exec != nil:
		entry.Feedback = &models.Feedback{
			DecisionID:    d.ID,
			Kind:          models.FeedbackImplicit,
			WasApproved:   true,
			WasSuccessful: exec.Outcome.Succeeded(),
			ContextKey:    d.ContextKey,
			Producer:      d.ProducerKind,
			ActionKind:    d.Action.Kind(),
			Timestamp:     exec.ExecutedAt,
		}
	}
	return entry
}
