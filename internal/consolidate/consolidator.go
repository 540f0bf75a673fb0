// Package consolidate is the periodic batch job that promotes
// well-evidenced, high-confidence patterns from the learner's store into
// durable, human-readable memory notes, one file per producer kind.
package consolidate

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/stewardlabs/steward/internal/learner"
	"github.com/stewardlabs/steward/internal/models"
)

// Defaults for candidate selection.
const (
	DefaultMinConfidence = 0.7
	DefaultMinFeedback   = 5
	DefaultMaxPerRun     = 20
)

// Config tunes candidate selection.
type Config struct {
	NotesDir      string
	MinConfidence float64
	MinFeedback   int
	MaxPerRun     int
}

// Consolidator runs out-of-band against the pattern store and the memory
// notes. It never touches the decision log or the pending queue.
type Consolidator struct {
	store  *learner.PatternStore
	cfg    Config
	logger *logrus.Logger
}

// New creates a consolidator. Zero config fields fall back to defaults.
func New(store *learner.PatternStore, cfg Config, logger *logrus.Logger) *Consolidator {
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = DefaultMinConfidence
	}
	if cfg.MinFeedback <= 0 {
		cfg.MinFeedback = DefaultMinFeedback
	}
	if cfg.MaxPerRun <= 0 {
		cfg.MaxPerRun = DefaultMaxPerRun
	}
	return &Consolidator{store: store, cfg: cfg, logger: logger}
}

// Run performs one consolidation pass and returns how many patterns were
// promoted.
//
// A pattern qualifies when its estimate and feedback volume clear the
// thresholds and it has received feedback since its last consolidation; the
// marker prevents the same evidence being re-appended on every run.
// Candidates are ordered confidence-descending, then by feedback volume,
// capped per run.
func (c *Consolidator) Run(ctx context.Context) (int, error) {
	all, err := c.store.All()
	if err != nil {
		return 0, err
	}

	now := time.Now()
	var candidates []models.PatternStats
	for _, s := range all {
		if s.ConfidenceEstimate < c.cfg.MinConfidence || s.TotalFeedback() < c.cfg.MinFeedback {
			continue
		}
		last, err := c.store.LastConsolidated(s.Key)
		if err != nil {
			return 0, err
		}
		if !last.IsZero() && !s.LastUpdated.After(last) {
			continue
		}
		candidates = append(candidates, s)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].ConfidenceEstimate != candidates[j].ConfidenceEstimate {
			return candidates[i].ConfidenceEstimate > candidates[j].ConfidenceEstimate
		}
		return candidates[i].TotalFeedback() > candidates[j].TotalFeedback()
	})
	if len(candidates) > c.cfg.MaxPerRun {
		candidates = candidates[:c.cfg.MaxPerRun]
	}

	if len(candidates) == 0 {
		c.logger.Debug("no patterns ready for consolidation")
		return 0, nil
	}

	// Notes files are per-producer and independent of each other.
	byProducer := make(map[models.ProducerKind][]models.PatternStats)
	for _, s := range candidates {
		byProducer[s.Key.Producer] = append(byProducer[s.Key.Producer], s)
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for producer, group := range byProducer {
		producer, group := producer, group
		g.Go(func() error {
			lines := make([]string, 0, len(group))
			for _, s := range group {
				lines = append(lines, describe(s))
			}
			return appendLearnings(c.cfg.NotesDir, producer, lines, now)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	// Markers are stamped only after the notes landed.
	for _, s := range candidates {
		if err := c.store.MarkConsolidated(s.Key, now); err != nil {
			return 0, err
		}
	}

	c.logger.WithField("patterns", len(candidates)).Info("patterns consolidated to memory")
	return len(candidates), nil
}

// RunPeriodically runs consolidation on the given interval until ctx is
// canceled.
func (c *Consolidator) RunPeriodically(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.Run(ctx); err != nil {
				c.logger.WithError(err).Warn("consolidation run failed")
			}
		}
	}
}
