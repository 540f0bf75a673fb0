// Package policy decides whether a proposed decision may execute without a
// human in the loop. Evaluation is pure: no I/O, no clock, no state.
package policy

import (
	"github.com/stewardlabs/steward/internal/models"
)

// AutonomyLevel is the configured strictness of the gate.
type AutonomyLevel string

const (
	// Conservative never auto-executes.
	Conservative AutonomyLevel = "conservative"
	// Moderate auto-executes risk-free decisions at confidence >= 0.8.
	Moderate AutonomyLevel = "moderate"
	// Aggressive auto-executes risk-free decisions at confidence >= 0.65.
	Aggressive AutonomyLevel = "aggressive"
)

// Validate checks if the autonomy level is a known value.
func (l AutonomyLevel) Validate() bool {
	switch l {
	case Conservative, Moderate, Aggressive:
		return true
	}
	return false
}

// Threshold returns the minimum confidence for auto-execution at this level.
func (l AutonomyLevel) Threshold() float64 {
	switch l {
	case Conservative:
		return 1.0
	case Moderate:
		return 0.8
	case Aggressive:
		return 0.65
	default:
		return 1.0
	}
}

// Per-action confidence floors applied after the fast path fails.
const (
	draftResponseFloor  = 0.7
	createFollowupFloor = 0.6
)

// RequiresApproval computes the approval gate for one decision.
//
// The critical-priority guard runs before the fast path: a critical-priority
// task is never auto-changed, even with zero risks and full confidence. The
// fast path then admits risk-free decisions at or above the level threshold;
// everything else goes through the action-specific overrides, first match
// wins, falling back to a plain threshold comparison.
func RequiresApproval(d models.Decision, level AutonomyLevel) bool {
	if adj, ok := d.Action.(models.AdjustPriority); ok && adj.From == models.PriorityCritical {
		return true
	}

	threshold := level.Threshold()
	if d.Confidence >= threshold && len(d.Risks) == 0 {
		return false
	}

	switch d.Action.(type) {
	case models.DraftResponse:
		if d.Confidence < draftResponseFloor {
			return true
		}
	case models.AdjustPriority:
		// Non-critical adjustments fall through to the threshold rule.
	case models.CreateFollowup:
		if d.Confidence < createFollowupFloor {
			return true
		}
	case models.ScheduleMeetingPrep:
		return d.Confidence < threshold
	case models.NoAction:
		// Nothing to execute; the threshold rule still decides queueing.
	}

	return d.Confidence < threshold
}

// Apply overwrites RequiresApproval on every decision in the batch. The
// producer-supplied value is never trusted.
func Apply(decisions []models.Decision, level AutonomyLevel) []models.Decision {
	for i := range decisions {
		decisions[i].RequiresApproval = RequiresApproval(decisions[i], level)
	}
	return decisions
}
