package sharedctx

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stewardlabs/steward/internal/models"
)

func testService() *Service {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return New(10*time.Millisecond, logger)
}

func TestDraftAfterMeetingPrepSuggestsWaiting(t *testing.T) {
	s := testService()

	prep := models.NewDecision(
		models.ProducerCalendar,
		models.ScheduleMeetingPrep{Title: "1:1 with Sam", Actions: []string{"review notes"}},
		"", 0.9, "calendar:today",
	)
	draft := models.NewDecision(
		models.ProducerCommunication,
		models.DraftResponse{Recipient: "sam", Content: "quick answer"},
		"", 0.8, "thread:standup",
	)

	s.RecordDecision(prep)
	s.RecordDecision(draft)

	suggestions := s.TakeSuggestions()
	require.Len(t, suggestions, 1)
	assert.Equal(t, draft.ID, suggestions[0].DecisionID)
	assert.Contains(t, suggestions[0].Message, "1:1 with Sam")

	// Drained: a second read is empty.
	assert.Empty(t, s.TakeSuggestions())
}

func TestDraftWithoutMatchingPrepSuggestsNothing(t *testing.T) {
	s := testService()

	prep := models.NewDecision(
		models.ProducerCalendar,
		models.ScheduleMeetingPrep{Title: "Q3 planning"},
		"", 0.9, "calendar:today",
	)
	draft := models.NewDecision(
		models.ProducerCommunication,
		models.DraftResponse{Recipient: "sam", Content: "quick answer"},
		"", 0.8, "thread:standup",
	)

	s.RecordDecision(prep)
	s.RecordDecision(draft)

	assert.Empty(t, s.TakeSuggestions())
}

func TestPriorityRaiseVisibleToFollowupAndCalendar(t *testing.T) {
	s := testService()

	raise := models.NewDecision(
		models.ProducerTask,
		models.AdjustPriority{Title: "renew certs", From: models.PriorityLow, To: models.PriorityCritical},
		"", 0.9, "project:atlas",
	)
	s.RecordDecision(raise)

	for _, kind := range []models.ProducerKind{models.ProducerFollowup, models.ProducerCalendar} {
		summary := s.SummaryFor(kind)
		require.Len(t, summary.Insights, 1, "kind %s", kind)
		assert.Contains(t, summary.Insights[0].Message, "renew certs")
	}

	// Not visible to the other producers.
	assert.Empty(t, s.SummaryFor(models.ProducerCommunication).Insights)
	assert.Empty(t, s.SummaryFor(models.ProducerTask).Insights)
}

func TestPriorityLowerEmitsNoInsight(t *testing.T) {
	s := testService()

	lower := models.NewDecision(
		models.ProducerTask,
		models.AdjustPriority{Title: "tidy backlog", From: models.PriorityHigh, To: models.PriorityLow},
		"", 0.9, "project:atlas",
	)
	s.RecordDecision(lower)

	assert.Empty(t, s.SummaryFor(models.ProducerFollowup).Insights)
}

func TestFollowupVisibleToCommunication(t *testing.T) {
	s := testService()

	followup := models.NewDecision(
		models.ProducerFollowup,
		models.CreateFollowup{Action: "ping legal about the contract"},
		"", 0.9, "thread:contract",
	)
	s.RecordDecision(followup)

	summary := s.SummaryFor(models.ProducerCommunication)
	require.Len(t, summary.Insights, 1)
	assert.Contains(t, summary.Insights[0].Message, "ping legal")
	assert.Empty(t, s.SummaryFor(models.ProducerCalendar).Insights)
}

func TestAlertVisibleToAllUntilExpiry(t *testing.T) {
	s := testService()

	s.AddAlert("user is in a meeting until 15:00", 50*time.Millisecond)

	for _, kind := range []models.ProducerKind{
		models.ProducerCommunication, models.ProducerTask,
		models.ProducerCalendar, models.ProducerFollowup,
	} {
		require.Len(t, s.SummaryFor(kind).Alerts, 1, "kind %s", kind)
	}

	// Expired alerts are filtered from summaries even before a sweep runs.
	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, s.SummaryFor(models.ProducerCommunication).Alerts)
}

func TestSweepEvictsExpiredAlerts(t *testing.T) {
	s := testService()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	s.AddAlert("focus block", 20*time.Millisecond)
	s.AddAlert("travel day", time.Hour)

	assert.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.alerts) == 1
	}, time.Second, 10*time.Millisecond)

	summary := s.SummaryFor(models.ProducerTask)
	require.Len(t, summary.Alerts, 1)
	assert.Equal(t, "travel day", summary.Alerts[0].Message)
}

func TestRecentDecisionsWindowPrunes(t *testing.T) {
	s := testService()

	stale := models.NewDecision(models.ProducerTask, models.NoAction{}, "", 0.5, "old")
	stale.CreatedAt = time.Now().Add(-2 * time.Hour)
	fresh := models.NewDecision(models.ProducerTask, models.NoAction{}, "", 0.5, "new")

	s.RecordDecision(stale)
	s.RecordDecision(fresh)

	recent := s.RecentDecisions()
	require.Len(t, recent, 1)
	assert.Equal(t, fresh.ID, recent[0].ID)
}
