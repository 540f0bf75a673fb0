package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ActionKind tags the concrete variant of an Action.
type ActionKind string

const (
	ActionDraftResponse       ActionKind = "draft_response"
	ActionAdjustPriority      ActionKind = "adjust_priority"
	ActionScheduleMeetingPrep ActionKind = "schedule_meeting_prep"
	ActionCreateFollowup      ActionKind = "create_followup"
	ActionNoAction            ActionKind = "no_action"
)

// Action is the closed set of things a producer can propose. Every consumer
// (policy, executor, log, shared context) switches exhaustively on the
// concrete type; adding a variant must touch each of them.
type Action interface {
	Kind() ActionKind
	isAction()
}

// DraftResponse proposes drafting a reply on a messaging platform. Drafts
// are non-destructive: they produce reviewable content, never an externally
// visible side effect.
type DraftResponse struct {
	Recipient string `json:"recipient"`
	Platform  string `json:"platform"`
	Content   string `json:"content"`
	Tone      string `json:"tone,omitempty"`
}

func (DraftResponse) Kind() ActionKind { return ActionDraftResponse }
func (DraftResponse) isAction()        {}

// AdjustPriority proposes moving a task between priority levels.
type AdjustPriority struct {
	TaskID string   `json:"task_id"`
	Title  string   `json:"title"`
	From   Priority `json:"from"`
	To     Priority `json:"to"`
	Reason string   `json:"reason,omitempty"`
}

func (AdjustPriority) Kind() ActionKind { return ActionAdjustPriority }
func (AdjustPriority) isAction()        {}

// ScheduleMeetingPrep proposes a preparation block before a meeting.
type ScheduleMeetingPrep struct {
	MeetingID string        `json:"meeting_id"`
	Title     string        `json:"title"`
	Actions   []string      `json:"actions"`
	When      time.Time     `json:"when"`
	Duration  time.Duration `json:"duration"`
}

func (ScheduleMeetingPrep) Kind() ActionKind { return ActionScheduleMeetingPrep }
func (ScheduleMeetingPrep) isAction()        {}

// CreateFollowup proposes a follow-up reminder for something left open.
type CreateFollowup struct {
	Context  string    `json:"context"`
	Action   string    `json:"action"`
	When     time.Time `json:"when"`
	Priority Priority  `json:"priority"`
}

func (CreateFollowup) Kind() ActionKind { return ActionCreateFollowup }
func (CreateFollowup) isAction()        {}

// NoAction records that a producer considered acting and declined.
type NoAction struct {
	Reason string `json:"reason"`
}

func (NoAction) Kind() ActionKind { return ActionNoAction }
func (NoAction) isAction()        {}

// actionEnvelope is the wire form of an Action: the variant payload plus a
// kind discriminator.
type actionEnvelope struct {
	Kind    ActionKind      `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalAction encodes an action as a tagged envelope.
func MarshalAction(a Action) ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("action cannot be nil")
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", a.Kind(), err)
	}
	return json.Marshal(actionEnvelope{Kind: a.Kind(), Payload: payload})
}

// UnmarshalAction decodes a tagged envelope back to its concrete variant.
func UnmarshalAction(data []byte) (Action, error) {
	var env actionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode action envelope: %w", err)
	}

	decode := func(v Action) error {
		if err := json.Unmarshal(env.Payload, v); err != nil {
			return fmt.Errorf("decode %s payload: %w", env.Kind, err)
		}
		return nil
	}

	switch env.Kind {
	case ActionDraftResponse:
		v := &DraftResponse{}
		if err := decode(v); err != nil {
			return nil, err
		}
		return *v, nil
	case ActionAdjustPriority:
		v := &AdjustPriority{}
		if err := decode(v); err != nil {
			return nil, err
		}
		return *v, nil
	case ActionScheduleMeetingPrep:
		v := &ScheduleMeetingPrep{}
		if err := decode(v); err != nil {
			return nil, err
		}
		return *v, nil
	case ActionCreateFollowup:
		v := &CreateFollowup{}
		if err := decode(v); err != nil {
			return nil, err
		}
		return *v, nil
	case ActionNoAction:
		v := &NoAction{}
		if err := decode(v); err != nil {
			return nil, err
		}
		return *v, nil
	default:
		return nil, fmt.Errorf("unknown action kind: %q", env.Kind)
	}
}

// decisionJSON mirrors Decision with the action held as an envelope so the
// sum type survives serialization.
type decisionJSON struct {
	ID               string          `json:"id"`
	ProducerKind     ProducerKind    `json:"producer_kind"`
	Action           json.RawMessage `json:"action"`
	Reasoning        string          `json:"reasoning"`
	Confidence       float64         `json:"confidence"`
	ContextKey       string          `json:"context_key"`
	Risks            []string        `json:"risks,omitempty"`
	Alternatives     []string        `json:"alternatives,omitempty"`
	RequiresApproval bool            `json:"requires_approval"`
	CreatedAt        time.Time       `json:"created_at"`
}

// MarshalJSON implements json.Marshaler for Decision.
func (d Decision) MarshalJSON() ([]byte, error) {
	action, err := MarshalAction(d.Action)
	if err != nil {
		return nil, err
	}
	return json.Marshal(decisionJSON{
		ID:               d.ID.String(),
		ProducerKind:     d.ProducerKind,
		Action:           action,
		Reasoning:        d.Reasoning,
		Confidence:       d.Confidence,
		ContextKey:       d.ContextKey,
		Risks:            d.Risks,
		Alternatives:     d.Alternatives,
		RequiresApproval: d.RequiresApproval,
		CreatedAt:        d.CreatedAt,
	})
}

// UnmarshalJSON implements json.Unmarshaler for Decision.
func (d *Decision) UnmarshalJSON(data []byte) error {
	var raw decisionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	action, err := UnmarshalAction(raw.Action)
	if err != nil {
		return err
	}

	var id uuid.UUID
	if raw.ID != "" {
		id, err = uuid.Parse(raw.ID)
		if err != nil {
			return fmt.Errorf("parse decision id: %w", err)
		}
	}

	*d = Decision{
		ID:               id,
		ProducerKind:     raw.ProducerKind,
		Action:           action,
		Reasoning:        raw.Reasoning,
		Confidence:       raw.Confidence,
		ContextKey:       raw.ContextKey,
		Risks:            raw.Risks,
		Alternatives:     raw.Alternatives,
		RequiresApproval: raw.RequiresApproval,
		CreatedAt:        raw.CreatedAt,
	}
	return nil
}

// modificationJSON mirrors Modification with an envelope-encoded action.
type modificationJSON struct {
	Action    json.RawMessage `json:"action,omitempty"`
	Reasoning string          `json:"reasoning,omitempty"`
	Note      string          `json:"note,omitempty"`
}

// MarshalJSON implements json.Marshaler for Modification.
func (m Modification) MarshalJSON() ([]byte, error) {
	raw := modificationJSON{Reasoning: m.Reasoning, Note: m.Note}
	if m.Action != nil {
		action, err := MarshalAction(m.Action)
		if err != nil {
			return nil, err
		}
		raw.Action = action
	}
	return json.Marshal(raw)
}

// UnmarshalJSON implements json.Unmarshaler for Modification.
func (m *Modification) UnmarshalJSON(data []byte) error {
	var raw modificationJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Modification{Reasoning: raw.Reasoning, Note: raw.Note}
	if len(raw.Action) > 0 {
		action, err := UnmarshalAction(raw.Action)
		if err != nil {
			return err
		}
		m.Action = action
	}
	return nil
}
