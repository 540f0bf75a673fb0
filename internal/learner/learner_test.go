package learner

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stewardlabs/steward/internal/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func setupLearner(t *testing.T, mode LearningMode) (*Learner, *PatternStore) {
	store, err := OpenPatternStore(filepath.Join(t.TempDir(), "patterns.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return New(store, mode, DefaultBaseWeight, testLogger()), store
}

func testKey() models.PatternKey {
	return models.PatternKey{
		Producer:   models.ProducerCommunication,
		ActionKind: models.ActionDraftResponse,
		ContextKey: "thread:standup",
	}
}

func feedbackFor(key models.PatternKey, kind models.FeedbackKind, approved, successful bool) models.Feedback {
	return models.Feedback{
		Kind:          kind,
		WasApproved:   approved,
		WasSuccessful: successful,
		Producer:      key.Producer,
		ActionKind:    key.ActionKind,
		ContextKey:    key.ContextKey,
		Timestamp:     time.Now(),
	}
}

func TestPatternConfidenceNeutralWithoutFeedback(t *testing.T) {
	lrn, _ := setupLearner(t, Hybrid)
	assert.Equal(t, NeutralConfidence, lrn.PatternConfidence(testKey()))
}

func TestImplicitFeedbackDrivesApprovalCounters(t *testing.T) {
	lrn, store := setupLearner(t, Hybrid)
	key := testKey()

	require.NoError(t, lrn.RecordFeedback(feedbackFor(key, models.FeedbackImplicit, true, true)))
	require.NoError(t, lrn.RecordFeedback(feedbackFor(key, models.FeedbackImplicit, false, false)))

	stats, err := store.Get(key)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Approvals)
	assert.Equal(t, 1, stats.Rejections)
	assert.Equal(t, 0, stats.Successes)
	assert.Equal(t, 0, stats.Failures)
}

func TestExplicitFeedbackDrivesSuccessCounters(t *testing.T) {
	lrn, store := setupLearner(t, Hybrid)
	key := testKey()

	require.NoError(t, lrn.RecordFeedback(feedbackFor(key, models.FeedbackExplicit, true, true)))
	require.NoError(t, lrn.RecordFeedback(feedbackFor(key, models.FeedbackExplicit, true, false)))

	stats, err := store.Get(key)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Approvals)
	assert.Equal(t, 0, stats.Rejections)
	assert.Equal(t, 1, stats.Successes)
	assert.Equal(t, 1, stats.Failures)
}

func TestEstimateHybridBlend(t *testing.T) {
	lrn, _ := setupLearner(t, Hybrid)
	key := testKey()

	// 3 approvals, 1 rejection; 2 successes, 0 failures.
	for i := 0; i < 3; i++ {
		require.NoError(t, lrn.RecordFeedback(feedbackFor(key, models.FeedbackImplicit, true, true)))
	}
	require.NoError(t, lrn.RecordFeedback(feedbackFor(key, models.FeedbackImplicit, false, false)))
	for i := 0; i < 2; i++ {
		require.NoError(t, lrn.RecordFeedback(feedbackFor(key, models.FeedbackExplicit, true, true)))
	}

	// 0.4*(3/4) + 0.6*(2/2)
	assert.InDelta(t, 0.9, lrn.PatternConfidence(key), 1e-9)
}

func TestEstimateImplicitEvidenceOnlyUnderHybrid(t *testing.T) {
	lrn, _ := setupLearner(t, Hybrid)
	key := testKey()

	// All feedback implicit: the explicit channel contributes zero, not the
	// neutral default.
	for i := 0; i < 5; i++ {
		require.NoError(t, lrn.RecordFeedback(feedbackFor(key, models.FeedbackImplicit, true, true)))
	}
	require.NoError(t, lrn.RecordFeedback(feedbackFor(key, models.FeedbackImplicit, false, false)))

	// 0.4*(5/6) + 0.6*0
	assert.InDelta(t, 0.3333, lrn.PatternConfidence(key), 1e-3)
}

func TestEstimateModeWeights(t *testing.T) {
	record := func(lrn *Learner, key models.PatternKey) {
		// 4 approvals / 4 implicit; 1 success, 1 failure explicit.
		for i := 0; i < 4; i++ {
			require.NoError(t, lrn.RecordFeedback(feedbackFor(key, models.FeedbackImplicit, true, true)))
		}
		require.NoError(t, lrn.RecordFeedback(feedbackFor(key, models.FeedbackExplicit, true, true)))
		require.NoError(t, lrn.RecordFeedback(feedbackFor(key, models.FeedbackExplicit, true, false)))
	}

	tests := []struct {
		mode LearningMode
		want float64
	}{
		{ExplicitOnly, 0.5},         // 1.0*(1/2)
		{ImplicitOnly, 1.0},         // 1.0*(4/4)
		{Hybrid, 0.4*1.0 + 0.6*0.5}, // 0.7
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			lrn, _ := setupLearner(t, tt.mode)
			key := testKey()
			record(lrn, key)
			assert.InDelta(t, tt.want, lrn.PatternConfidence(key), 1e-9)
		})
	}
}

func TestConfidenceRisesAndFalls(t *testing.T) {
	lrn, _ := setupLearner(t, ImplicitOnly)
	key := testKey()

	require.NoError(t, lrn.RecordFeedback(feedbackFor(key, models.FeedbackImplicit, true, true)))
	high := lrn.PatternConfidence(key)

	require.NoError(t, lrn.RecordFeedback(feedbackFor(key, models.FeedbackImplicit, false, false)))
	lower := lrn.PatternConfidence(key)

	assert.Greater(t, high, lower)
	assert.GreaterOrEqual(t, lower, 0.0)
	assert.LessOrEqual(t, high, 1.0)
}

func TestStatsPersistAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.db")
	key := testKey()

	store, err := OpenPatternStore(path)
	require.NoError(t, err)
	lrn := New(store, Hybrid, DefaultBaseWeight, testLogger())
	require.NoError(t, lrn.RecordFeedback(feedbackFor(key, models.FeedbackImplicit, true, true)))
	before := lrn.PatternConfidence(key)
	require.NoError(t, store.Close())

	store, err = OpenPatternStore(path)
	require.NoError(t, err)
	defer store.Close()
	lrn = New(store, Hybrid, DefaultBaseWeight, testLogger())
	assert.Equal(t, before, lrn.PatternConfidence(key))

	stats, err := store.Get(key)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Approvals)
}

func TestBlend(t *testing.T) {
	lrn, _ := setupLearner(t, Hybrid)
	// 0.7*0.9 + 0.3*0.5
	assert.InDelta(t, 0.78, lrn.Blend(0.9, 0.5), 1e-9)
}

func TestInvalidModeFallsBackToHybrid(t *testing.T) {
	store, err := OpenPatternStore(filepath.Join(t.TempDir(), "patterns.db"))
	require.NoError(t, err)
	defer store.Close()

	lrn := New(store, LearningMode("psychic"), 2.5, testLogger())
	assert.Equal(t, Hybrid, lrn.mode)
	assert.Equal(t, DefaultBaseWeight, lrn.baseWeight)
}

func TestInsights(t *testing.T) {
	lrn, _ := setupLearner(t, ImplicitOnly)

	strong := testKey()
	weak := models.PatternKey{
		Producer:   models.ProducerTask,
		ActionKind: models.ActionAdjustPriority,
		ContextKey: "project:atlas",
	}

	for i := 0; i < 4; i++ {
		require.NoError(t, lrn.RecordFeedback(feedbackFor(strong, models.FeedbackImplicit, true, true)))
	}
	require.NoError(t, lrn.RecordFeedback(feedbackFor(weak, models.FeedbackImplicit, false, false)))

	insights, err := lrn.Insights()
	require.NoError(t, err)
	assert.Equal(t, 2, insights.TotalPatterns)
	assert.Equal(t, 1, insights.ReliablePatterns)
	assert.Equal(t, 5, insights.TotalFeedback)
	require.NotNil(t, insights.MostTrusted)
	require.NotNil(t, insights.LeastTrusted)
	assert.Equal(t, strong, insights.MostTrusted.Key)
	assert.Equal(t, weak, insights.LeastTrusted.Key)
}

func TestInsightsEmptyStore(t *testing.T) {
	lrn, _ := setupLearner(t, Hybrid)

	insights, err := lrn.Insights()
	require.NoError(t, err)
	assert.Equal(t, 0, insights.TotalPatterns)
	assert.Nil(t, insights.MostTrusted)
}
