package consolidate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/stewardlabs/steward/internal/models"
)

const learnedPatternsHeading = "## Learned Patterns"

// notePath returns the durable memory note file for one producer kind.
func notePath(dir string, producer models.ProducerKind) string {
	return filepath.Join(dir, string(producer)+".md")
}

// appendLearnings appends learning lines to a producer's memory note,
// creating the file with its header and "Learned Patterns" section on first
// write.
func appendLearnings(dir string, producer models.ProducerKind, lines []string, now time.Time) error {
	if len(lines) == 0 {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create notes directory: %w", err)
	}

	path := notePath(dir, producer)
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read memory note: %w", err)
	}

	var b strings.Builder
	if len(existing) == 0 {
		b.WriteString("# Memory: ")
		b.WriteString(string(producer))
		b.WriteString(" producer\n\n")
		b.WriteString(learnedPatternsHeading)
		b.WriteString("\n")
	} else if !strings.Contains(string(existing), learnedPatternsHeading) {
		b.WriteString("\n")
		b.WriteString(learnedPatternsHeading)
		b.WriteString("\n")
	}

	stamp := now.Format("2006-01-02")
	for _, line := range lines {
		b.WriteString("- [")
		b.WriteString(stamp)
		b.WriteString("] ")
		b.WriteString(line)
		b.WriteString("\n")
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open memory note: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("write memory note: %w", err)
	}
	return nil
}

// describe renders one pattern as a single human-readable learning line.
func describe(s models.PatternStats) string {
	rate := int(s.ApprovalRate() * 100)
	ctx := s.Key.ContextKey
	if len(ctx) > 40 {
		ctx = ctx[:40] + "…"
	}

	switch s.Key.ActionKind {
	case models.ActionDraftResponse:
		return fmt.Sprintf("High success rate for drafting responses in context: %s (%d%% approved)", ctx, rate)
	case models.ActionAdjustPriority:
		return fmt.Sprintf("Priority adjustments in context %s are usually accepted (%d%% approved)", ctx, rate)
	case models.ActionScheduleMeetingPrep:
		return fmt.Sprintf("Meeting prep blocks in context %s are well received (%d%% approved)", ctx, rate)
	case models.ActionCreateFollowup:
		return fmt.Sprintf("Follow-ups in context %s land reliably (%d%% approved)", ctx, rate)
	default:
		return fmt.Sprintf("Pattern %s holds at %d%% approval", ctx, rate)
	}
}
