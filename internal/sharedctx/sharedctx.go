// Package sharedctx is the in-memory coordination bus between proposal
// producers: recent decisions, time-limited alerts, cross-producer insights
// and coordination suggestions. A single lock guards everything; volumes are
// dozens of decisions per hour, so simplicity wins over throughput.
package sharedctx

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stewardlabs/steward/internal/models"
)

const (
	// decisionWindow bounds the rolling window of recent decisions.
	decisionWindow = time.Hour
	// insightWindow bounds how long cross-producer insights stay visible.
	insightWindow = 24 * time.Hour
	// DefaultSweepInterval is how often expired alerts are evicted.
	DefaultSweepInterval = 2 * time.Second
)

// Alert is a time-limited notice visible to all producers.
type Alert struct {
	ID        uuid.UUID `json:"id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Insight is a cross-producer observation visible to selected producer
// kinds.
type Insight struct {
	ID        uuid.UUID             `json:"id"`
	Source    models.ProducerKind   `json:"source"`
	Message   string                `json:"message"`
	VisibleTo []models.ProducerKind `json:"visible_to"`
	CreatedAt time.Time             `json:"created_at"`
}

// Suggestion is a pending cross-producer coordination hint.
type Suggestion struct {
	ID         uuid.UUID `json:"id"`
	DecisionID uuid.UUID `json:"decision_id"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

// Summary is the view handed to one producer kind.
type Summary struct {
	Alerts      []Alert      `json:"alerts"`
	Insights    []Insight    `json:"insights"`
	Suggestions []Suggestion `json:"suggestions"`
}

// Service holds the shared state. All reads and writes are mutually
// exclusive under one mutex.
type Service struct {
	mu          sync.Mutex
	decisions   []models.Decision
	alerts      []Alert
	insights    []Insight
	suggestions []Suggestion

	sweepInterval time.Duration
	logger        *logrus.Logger
}

// New creates the service. sweepInterval <= 0 uses DefaultSweepInterval.
func New(sweepInterval time.Duration, logger *logrus.Logger) *Service {
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	return &Service{sweepInterval: sweepInterval, logger: logger}
}

// Start runs the periodic alert-expiry sweep until ctx is canceled. One
// sweep loop serves every alert; there is no per-alert timer.
func (s *Service) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(time.Now())
			}
		}
	}()
}

func (s *Service) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.alerts[:0]
	for _, a := range s.alerts {
		if a.ExpiresAt.After(now) {
			kept = append(kept, a)
		}
	}
	if len(kept) < len(s.alerts) {
		s.logger.WithField("evicted", len(s.alerts)-len(kept)).Debug("expired alerts evicted")
	}
	s.alerts = kept

	keptInsights := s.insights[:0]
	for _, in := range s.insights {
		if now.Sub(in.CreatedAt) < insightWindow {
			keptInsights = append(keptInsights, in)
		}
	}
	s.insights = keptInsights
}

// RecordDecision adds a decision to the rolling window, prunes entries older
// than an hour, and runs the coordination rules. Called off the
// orchestrator's critical path.
func (s *Service) RecordDecision(d models.Decision) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	kept := s.decisions[:0]
	for _, prev := range s.decisions {
		if now.Sub(prev.CreatedAt) < decisionWindow {
			kept = append(kept, prev)
		}
	}
	s.decisions = append(kept, d)

	s.coordinate(d, now)
}

// coordinate applies the fixed coordination rules for a new decision.
// Callers hold the lock.
func (s *Service) coordinate(d models.Decision, now time.Time) {
	switch action := d.Action.(type) {
	case models.DraftResponse:
		// A reply to someone we are about to meet can usually wait for
		// the meeting itself.
		for _, prev := range s.decisions {
			prep, ok := prev.Action.(models.ScheduleMeetingPrep)
			if !ok || prev.ID == d.ID {
				continue
			}
			if action.Recipient != "" && strings.Contains(strings.ToLower(prep.Title), strings.ToLower(action.Recipient)) {
				s.suggestions = append(s.suggestions, Suggestion{
					ID:         uuid.New(),
					DecisionID: d.ID,
					Message:    "Consider waiting until after \"" + prep.Title + "\" before responding to " + action.Recipient,
					CreatedAt:  now,
				})
				break
			}
		}
	case models.AdjustPriority:
		if action.To == models.PriorityHigh || action.To == models.PriorityCritical {
			s.insights = append(s.insights, Insight{
				ID:        uuid.New(),
				Source:    d.ProducerKind,
				Message:   "Task \"" + action.Title + "\" was raised to " + string(action.To) + " priority",
				VisibleTo: []models.ProducerKind{models.ProducerFollowup, models.ProducerCalendar},
				CreatedAt: now,
			})
		}
	case models.CreateFollowup:
		s.insights = append(s.insights, Insight{
			ID:        uuid.New(),
			Source:    d.ProducerKind,
			Message:   "Follow-up created: " + action.Action,
			VisibleTo: []models.ProducerKind{models.ProducerCommunication},
			CreatedAt: now,
		})
	case models.ScheduleMeetingPrep, models.NoAction:
		// No coordination rule fires for these.
	}
}

// AddAlert publishes a time-limited alert visible to every producer.
func (s *Service) AddAlert(message string, ttl time.Duration) Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	alert := Alert{
		ID:        uuid.New(),
		Message:   message,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	s.alerts = append(s.alerts, alert)
	return alert
}

// RecentDecisions returns a copy of the rolling decision window.
func (s *Service) RecentDecisions() []models.Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Decision, len(s.decisions))
	copy(out, s.decisions)
	return out
}

// SummaryFor returns the alerts, insights and suggestions visible to one
// producer kind. Expired alerts are filtered even if the sweep has not run
// yet.
func (s *Service) SummaryFor(kind models.ProducerKind) Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	summary := Summary{}

	for _, a := range s.alerts {
		if a.ExpiresAt.After(now) {
			summary.Alerts = append(summary.Alerts, a)
		}
	}

	for _, in := range s.insights {
		if now.Sub(in.CreatedAt) >= insightWindow {
			continue
		}
		for _, visible := range in.VisibleTo {
			if visible == kind {
				summary.Insights = append(summary.Insights, in)
				break
			}
		}
	}

	summary.Suggestions = append(summary.Suggestions, s.suggestions...)
	return summary
}

// TakeSuggestions drains the pending suggestion list, returning what was
// queued. Producers call this when they begin a new proposal cycle.
func (s *Service) TakeSuggestions() []Suggestion {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.suggestions
	s.suggestions = nil
	return out
}
