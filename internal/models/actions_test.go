package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionEnvelopeRoundTrip(t *testing.T) {
	when := time.Date(2026, 8, 25, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name   string
		action Action
	}{
		{
			name:   "draft response",
			action: DraftResponse{Recipient: "sam", Platform: "slack", Content: "looks good, shipping Friday", Tone: "casual"},
		},
		{
			name:   "adjust priority",
			action: AdjustPriority{TaskID: "T-42", Title: "renew certificates", From: PriorityLow, To: PriorityHigh, Reason: "expires this week"},
		},
		{
			name:   "schedule meeting prep",
			action: ScheduleMeetingPrep{MeetingID: "M-7", Title: "Q3 planning", Actions: []string{"review roadmap", "pull metrics"}, When: when, Duration: 30 * time.Minute},
		},
		{
			name:   "create followup",
			action: CreateFollowup{Context: "contract thread", Action: "ping legal", When: when, Priority: PriorityMedium},
		},
		{
			name:   "no action",
			action: NoAction{Reason: "thread already answered"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := MarshalAction(tt.action)
			require.NoError(t, err)

			got, err := UnmarshalAction(data)
			require.NoError(t, err)
			assert.Equal(t, tt.action, got)
			assert.Equal(t, tt.action.Kind(), got.Kind())
		})
	}
}

func TestUnmarshalActionUnknownKind(t *testing.T) {
	_, err := UnmarshalAction([]byte(`{"kind":"send_email","payload":{}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown action kind")
}

func TestMarshalActionNil(t *testing.T) {
	_, err := MarshalAction(nil)
	require.Error(t, err)
}

func TestDecisionJSONRoundTrip(t *testing.T) {
	d := NewDecision(
		ProducerCommunication,
		DraftResponse{Recipient: "sam", Platform: "slack", Content: "on it"},
		"sender expects a quick ack",
		0.82,
		"thread:standup",
	)
	d.Risks = []string{"tone unclear"}
	d.Alternatives = []string{"wait for more context"}
	d.RequiresApproval = true

	data, err := json.Marshal(d)
	require.NoError(t, err)

	var got Decision
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, d.ID, got.ID)
	assert.Equal(t, d.ProducerKind, got.ProducerKind)
	assert.Equal(t, d.Action, got.Action)
	assert.Equal(t, d.Confidence, got.Confidence)
	assert.Equal(t, d.Risks, got.Risks)
	assert.True(t, got.RequiresApproval)
	assert.True(t, d.CreatedAt.Equal(got.CreatedAt))
}

func TestModificationJSONOmitsNilAction(t *testing.T) {
	data, err := json.Marshal(Modification{Reasoning: "softer wording", Note: "tone"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"action"`)

	var got Modification
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Nil(t, got.Action)
	assert.Equal(t, "softer wording", got.Reasoning)
}

func TestPatternKeyString(t *testing.T) {
	d := Decision{
		ProducerKind: ProducerTask,
		Action:       AdjustPriority{From: PriorityLow, To: PriorityHigh},
		ContextKey:   "project:atlas",
	}
	assert.Equal(t, "task|adjust_priority|project:atlas", d.PatternKey().String())
}

func TestExecutionOutcomeHelpers(t *testing.T) {
	assert.True(t, Success("done").Succeeded())
	assert.False(t, Failure("boom").Succeeded())
	assert.False(t, Skipped().Succeeded())
	assert.Equal(t, "boom", Failure("boom").Error)
}
