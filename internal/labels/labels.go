// Package labels reconciles the bot-owned triage labels on a pull
// request. The bot owns exactly three labels; anything else on the PR
// is never touched.
package labels

import (
	"context"
	"fmt"

	"github.com/prtriage/prtriage/internal/detect"
	"github.com/prtriage/prtriage/internal/gh"
	"github.com/prtriage/prtriage/internal/scoring"
)

// Labels owned by the bot.
const (
	// LabelPossibleDuplicate marks a PR with at least one duplicate match.
	LabelPossibleDuplicate = "possible-duplicate"
	// LabelPossibleRevert marks a PR whose diff inverts an earlier one.
	LabelPossibleRevert = "possible-revert"
	// LabelLowQuality marks a PR scoring at or under the quality threshold.
	LabelLowQuality = "low-quality"
)

// owned is the full set of labels reconciliation may add or remove.
var owned = map[string]struct{}{
	LabelPossibleDuplicate: {},
	LabelPossibleRevert:    {},
	LabelLowQuality:        {},
}

// Labeler is the subset of the GitHub client reconciliation needs.
type Labeler interface {
	ListLabels(ctx context.Context, owner, repo string, number int) ([]gh.Label, error)
	AddLabels(ctx context.Context, owner, repo string, number int, labels []string) error
	RemoveLabel(ctx context.Context, owner, repo string, number int, label string) error
}

// Desired computes the bot-owned labels a report calls for.
func Desired(score scoring.Score, detection *detect.Result, thresholds scoring.Thresholds) []string {
	var want []string
	if detection.Flagged() {
		want = append(want, LabelPossibleDuplicate)
	}
	if detection != nil && len(detection.Reverts) > 0 {
		want = append(want, LabelPossibleRevert)
	}
	if score.LowQuality(thresholds) {
		want = append(want, LabelLowQuality)
	}
	return want
}

// Sync reconciles the PR's labels against the desired bot-owned set:
// missing ones are added, stale bot-owned ones are removed. Labels the
// bot does not own pass through untouched.
func Sync(ctx context.Context, client Labeler, owner, repo string, number int, desired []string) error {
	current, err := client.ListLabels(ctx, owner, repo, number)
	if err != nil {
		return fmt.Errorf("failed to list labels on #%d: %w", number, err)
	}

	have := make(map[string]struct{}, len(current))
	for _, l := range current {
		have[l.Name] = struct{}{}
	}
	want := make(map[string]struct{}, len(desired))
	for _, name := range desired {
		want[name] = struct{}{}
	}

	var toAdd []string
	for _, name := range desired {
		if _, ok := have[name]; !ok {
			toAdd = append(toAdd, name)
		}
	}
	if len(toAdd) > 0 {
		if err := client.AddLabels(ctx, owner, repo, number, toAdd); err != nil {
			return fmt.Errorf("failed to add labels %v on #%d: %w", toAdd, number, err)
		}
	}

	for _, l := range current {
		if _, ours := owned[l.Name]; !ours {
			continue
		}
		if _, keep := want[l.Name]; keep {
			continue
		}
		if err := client.RemoveLabel(ctx, owner, repo, number, l.Name); err != nil {
			return fmt.Errorf("failed to remove label %s from #%d: %w", l.Name, number, err)
		}
	}
	return nil
}
