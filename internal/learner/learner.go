// Package learner converts feedback events into per-pattern confidence
// estimates. Producers consult it before proposing; the orchestrator feeds
// it with every outcome.
package learner

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/stewardlabs/steward/internal/models"
)

// LearningMode selects how explicit and implicit evidence are blended.
type LearningMode string

const (
	// ExplicitOnly trusts user ratings exclusively.
	ExplicitOnly LearningMode = "explicit_only"
	// ImplicitOnly trusts approve/reject behavior exclusively.
	ImplicitOnly LearningMode = "implicit_only"
	// Hybrid weighs explicit 0.6 / implicit 0.4.
	Hybrid LearningMode = "hybrid"
)

// Validate checks if the learning mode is a known value.
func (m LearningMode) Validate() bool {
	switch m {
	case ExplicitOnly, ImplicitOnly, Hybrid:
		return true
	}
	return false
}

// weights returns (explicit, implicit) blend weights for the mode.
func (m LearningMode) weights() (float64, float64) {
	switch m {
	case ExplicitOnly:
		return 1.0, 0.0
	case ImplicitOnly:
		return 0.0, 1.0
	default:
		return 0.6, 0.4
	}
}

// NeutralConfidence is returned for patterns with zero accumulated feedback.
const NeutralConfidence = 0.5

// DefaultBaseWeight is the share of a producer's own heuristic signal when
// blending with the learned estimate.
const DefaultBaseWeight = 0.7

// Learner owns PatternStats. It is the only writer of the pattern store.
type Learner struct {
	store      *PatternStore
	mode       LearningMode
	baseWeight float64
	logger     *logrus.Logger
}

// New creates a learner over the given store. baseWeight <= 0 falls back to
// DefaultBaseWeight.
func New(store *PatternStore, mode LearningMode, baseWeight float64, logger *logrus.Logger) *Learner {
	if !mode.Validate() {
		mode = Hybrid
	}
	if baseWeight <= 0 || baseWeight > 1 {
		baseWeight = DefaultBaseWeight
	}
	return &Learner{store: store, mode: mode, baseWeight: baseWeight, logger: logger}
}

// RecordFeedback folds one feedback event into the pattern's stats and
// recomputes its confidence estimate. Counts only ever increase.
//
// Implicit feedback (approve/reject/auto-execute) drives the approval
// counters; explicit user ratings drive the success counters. This keeps the
// two evidence channels of the estimate formula independent.
func (l *Learner) RecordFeedback(fb models.Feedback) error {
	key := models.PatternKey{
		Producer:   fb.Producer,
		ActionKind: fb.ActionKind,
		ContextKey: fb.ContextKey,
	}

	stats, err := l.store.Update(key, func(s *models.PatternStats) {
		switch fb.Kind {
		case models.FeedbackExplicit:
			if fb.WasSuccessful {
				s.Successes++
			} else {
				s.Failures++
			}
		default:
			if fb.WasApproved {
				s.Approvals++
			} else {
				s.Rejections++
			}
		}
		s.ConfidenceEstimate = l.estimate(*s)
		s.LastUpdated = fb.Timestamp
	})
	if err != nil {
		return err
	}

	l.logger.WithFields(logrus.Fields{
		"pattern":    key.String(),
		"confidence": stats.ConfidenceEstimate,
		"feedback":   stats.TotalFeedback(),
	}).Debug("feedback recorded")
	return nil
}

// estimate computes the weighted blend of the two evidence channels. Each
// channel uses a max(1, n) floor, so a channel with zero evidence
// contributes zero rather than the neutral default.
func (l *Learner) estimate(s models.PatternStats) float64 {
	if s.Approvals+s.Rejections+s.Successes+s.Failures == 0 {
		return NeutralConfidence
	}

	explicitW, implicitW := l.mode.weights()

	approvalTotal := s.Approvals + s.Rejections
	if approvalTotal < 1 {
		approvalTotal = 1
	}
	successTotal := s.Successes + s.Failures
	if successTotal < 1 {
		successTotal = 1
	}

	confidence := implicitW*(float64(s.Approvals)/float64(approvalTotal)) +
		explicitW*(float64(s.Successes)/float64(successTotal))

	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}

// PatternConfidence returns the learned estimate for a pattern key, or the
// neutral default when the pattern has no feedback yet. Advisory input to
// the producer's own confidence calculation, never enforced by the core.
func (l *Learner) PatternConfidence(key models.PatternKey) float64 {
	stats, err := l.store.Get(key)
	if err != nil {
		l.logger.WithError(err).WithField("pattern", key.String()).Warn("pattern lookup failed")
		return NeutralConfidence
	}
	if stats == nil {
		return NeutralConfidence
	}
	return stats.ConfidenceEstimate
}

// Blend combines a producer's base signal with the learned estimate using
// the configured base weight.
func (l *Learner) Blend(base, learned float64) float64 {
	return l.baseWeight*base + (1-l.baseWeight)*learned
}

// Stats exposes one pattern's raw stats, nil if untracked.
func (l *Learner) Stats(key models.PatternKey) (*models.PatternStats, error) {
	return l.store.Get(key)
}

// Insights is an aggregate view over all tracked patterns.
type Insights struct {
	TotalPatterns    int                  `json:"total_patterns"`
	ReliablePatterns int                  `json:"reliable_patterns"`
	TotalFeedback    int                  `json:"total_feedback"`
	MostTrusted      *models.PatternStats `json:"most_trusted,omitempty"`
	LeastTrusted     *models.PatternStats `json:"least_trusted,omitempty"`
}

// reliableConfidence is the estimate above which a pattern counts as
// reliable in aggregate insights.
const reliableConfidence = 0.7

// Insights recomputes the aggregate view. Called when explicit feedback
// arrives and from status reporting.
func (l *Learner) Insights() (*Insights, error) {
	all, err := l.store.All()
	if err != nil {
		return nil, err
	}

	insights := &Insights{TotalPatterns: len(all)}
	if len(all) == 0 {
		return insights, nil
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].ConfidenceEstimate > all[j].ConfidenceEstimate
	})

	for i := range all {
		insights.TotalFeedback += all[i].TotalFeedback()
		if all[i].ConfidenceEstimate >= reliableConfidence {
			insights.ReliablePatterns++
		}
	}
	insights.MostTrusted = &all[0]
	insights.LeastTrusted = &all[len(all)-1]
	return insights, nil
}
