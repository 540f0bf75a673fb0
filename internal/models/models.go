package models

import (
	"time"

	"github.com/google/uuid"
)

// ProducerKind identifies which proposal producer generated a decision.
type ProducerKind string

const (
	ProducerCommunication ProducerKind = "communication"
	ProducerTask          ProducerKind = "task"
	ProducerCalendar      ProducerKind = "calendar"
	ProducerFollowup      ProducerKind = "followup"
)

// Validate checks if the producer kind is a known value.
func (p ProducerKind) Validate() bool {
	switch p {
	case ProducerCommunication, ProducerTask, ProducerCalendar, ProducerFollowup:
		return true
	}
	return false
}

// Priority represents a task priority level.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Validate checks if the priority is a known value.
func (p Priority) Validate() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Decision is a proposed action awaiting the autonomy gate.
//
// RequiresApproval is always overwritten by the autonomy policy before the
// decision is stored or acted on; producers must not rely on their own guess.
type Decision struct {
	ID               uuid.UUID    `json:"id" db:"id"`
	ProducerKind     ProducerKind `json:"producer_kind" db:"producer_kind"`
	Action           Action       `json:"action"`
	Reasoning        string       `json:"reasoning" db:"reasoning"`
	Confidence       float64      `json:"confidence" db:"confidence"`
	ContextKey       string       `json:"context_key" db:"context_key"`
	Risks            []string     `json:"risks"`
	Alternatives     []string     `json:"alternatives"`
	RequiresApproval bool         `json:"requires_approval" db:"requires_approval"`
	CreatedAt        time.Time    `json:"created_at" db:"created_at"`
}

// NewDecision builds a decision with a fresh id and timestamp.
func NewDecision(producer ProducerKind, action Action, reasoning string, confidence float64, contextKey string) Decision {
	return Decision{
		ID:           uuid.New(),
		ProducerKind: producer,
		Action:       action,
		Reasoning:    reasoning,
		Confidence:   confidence,
		ContextKey:   contextKey,
		CreatedAt:    time.Now(),
	}
}

// PatternKey buckets similar decisions for learning.
func (d Decision) PatternKey() PatternKey {
	return PatternKey{
		Producer:   d.ProducerKind,
		ActionKind: d.Action.Kind(),
		ContextKey: d.ContextKey,
	}
}

// OutcomeStatus tags an execution outcome variant.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailure OutcomeStatus = "failure"
	OutcomeSkipped OutcomeStatus = "skipped"
)

// ExecutionOutcome is the immutable result of one execution attempt.
type ExecutionOutcome struct {
	Status  OutcomeStatus `json:"status"`
	Details string        `json:"details,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// Succeeded reports whether the attempt completed its side effect.
func (o ExecutionOutcome) Succeeded() bool {
	return o.Status == OutcomeSuccess
}

// Success builds a successful outcome with optional details.
func Success(details string) ExecutionOutcome {
	return ExecutionOutcome{Status: OutcomeSuccess, Details: details}
}

// Failure builds a failed outcome carrying the error text.
func Failure(err string) ExecutionOutcome {
	return ExecutionOutcome{Status: OutcomeFailure, Error: err}
}

// Skipped builds an outcome for an attempt that performed no side effect.
func Skipped() ExecutionOutcome {
	return ExecutionOutcome{Status: OutcomeSkipped}
}

// ExecutionType distinguishes how an execution was authorized.
type ExecutionType string

const (
	ExecutionAuto     ExecutionType = "auto_execution"
	ExecutionManual   ExecutionType = "manual_approval"
	ExecutionModified ExecutionType = "modified_approval"
)

// FeedbackKind distinguishes explicit user ratings from feedback inferred
// from approve/reject/auto-execute actions.
type FeedbackKind string

const (
	FeedbackExplicit FeedbackKind = "explicit"
	FeedbackImplicit FeedbackKind = "implicit"
)

// Feedback is one immutable feedback event for a decision. Created on every
// approval, rejection, modification and auto-execution.
type Feedback struct {
	DecisionID    uuid.UUID    `json:"decision_id" db:"decision_id"`
	Kind          FeedbackKind `json:"kind" db:"kind"`
	WasApproved   bool         `json:"was_approved" db:"was_approved"`
	WasSuccessful bool         `json:"was_successful" db:"was_successful"`
	Comment       string       `json:"comment,omitempty" db:"comment"`
	ContextKey    string       `json:"context_key" db:"context_key"`
	Producer      ProducerKind `json:"producer_kind" db:"producer_kind"`
	ActionKind    ActionKind   `json:"action_kind" db:"action_kind"`
	Timestamp     time.Time    `json:"timestamp" db:"timestamp"`
}

// Modification is an optional override applied at approval time. It applies
// to exactly one pending decision and is recorded alongside the execution it
// produced.
type Modification struct {
	Action    Action `json:"action,omitempty"`
	Reasoning string `json:"reasoning,omitempty"`
	Note      string `json:"note,omitempty"`
}

// PatternKey is the (producer, action kind, context key) tuple that buckets
// similar decisions for learning.
type PatternKey struct {
	Producer   ProducerKind `json:"producer_kind"`
	ActionKind ActionKind   `json:"action_kind"`
	ContextKey string       `json:"context_key"`
}

// String renders the key in its stable storage form.
func (k PatternKey) String() string {
	return string(k.Producer) + "|" + string(k.ActionKind) + "|" + k.ContextKey
}

// PatternStats accumulates feedback for one pattern key. Counts never
// decrease.
type PatternStats struct {
	Key                PatternKey `json:"key"`
	Approvals          int        `json:"approvals"`
	Rejections         int        `json:"rejections"`
	Successes          int        `json:"successes"`
	Failures           int        `json:"failures"`
	ConfidenceEstimate float64    `json:"confidence_estimate"`
	LastUpdated        time.Time  `json:"last_updated"`
}

// TotalFeedback is the approve/reject evidence volume for the pattern.
func (s PatternStats) TotalFeedback() int {
	return s.Approvals + s.Rejections
}

// ApprovalRate is approvals over total approve/reject feedback, 0 with no
// evidence.
func (s PatternStats) ApprovalRate() float64 {
	total := s.Approvals + s.Rejections
	if total == 0 {
		return 0
	}
	return float64(s.Approvals) / float64(total)
}

// AuditEntry is a read-model join of a decision, its latest execution
// outcome and its latest feedback. Reporting only, never the system of
// record.
type AuditEntry struct {
	Decision  Decision         `json:"decision"`
	Execution *ExecutionRecord `json:"execution,omitempty"`
	Rejection *RejectionRecord `json:"rejection,omitempty"`
	Feedback  *Feedback        `json:"feedback,omitempty"`
}

// ExecutionRecord is one logged execution attempt for a decision.
type ExecutionRecord struct {
	DecisionID uuid.UUID        `json:"decision_id" db:"decision_id"`
	Type       ExecutionType    `json:"type" db:"type"`
	Outcome    ExecutionOutcome `json:"outcome"`
	Note       string           `json:"note,omitempty" db:"note"`
	ExecutedAt time.Time        `json:"executed_at" db:"executed_at"`
}

// RejectionRecord is one logged rejection for a decision.
type RejectionRecord struct {
	DecisionID uuid.UUID `json:"decision_id" db:"decision_id"`
	Reason     string    `json:"reason" db:"reason"`
	RejectedAt time.Time `json:"rejected_at" db:"rejected_at"`
}
