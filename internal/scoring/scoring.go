// Package scoring grades a pull request's submission quality with a flat
// rule table. Every rule that fires subtracts points from a perfect 100;
// the result is clamped at zero. Scoring looks only at metadata and the
// changed-file listing, never at repository contents.
package scoring

import (
	"regexp"
	"strings"

	"github.com/prtriage/prtriage/internal/types"
)

// Rule identifiers reported alongside the score so downstream surfaces
// can itemize what fired.
const (
	RuleEmptyBody        = "empty-body"
	RuleShortBody        = "short-body"
	RuleTemplateBody     = "template-untouched"
	RuleWIPTitle         = "wip-title"
	RuleTrivialDiff      = "trivial-diff"
	RuleWhitespaceOnly   = "whitespace-only"
	RuleGeneratedOnly    = "generated-files-only"
	RuleShotgunDiff      = "shotgun-diff"
	RuleNoIssueReference = "no-issue-reference"
)

// Thresholds are the tunable limits for the rule table. Zero-valued
// fields fall back to defaults via Normalized.
type Thresholds struct {
	// MinBodyChars is the body length below which RuleShortBody fires.
	MinBodyChars int

	// TrivialLineCount is the total added+removed line count at or
	// under which RuleTrivialDiff fires.
	TrivialLineCount int

	// ShotgunFileCount is the changed-file count above which
	// RuleShotgunDiff fires.
	ShotgunFileCount int

	// LowQuality is the score at or under which a report is considered
	// low quality for labeling purposes.
	LowQuality int
}

// DefaultThresholds returns the default rule limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinBodyChars:     40,
		TrivialLineCount: 3,
		ShotgunFileCount: 60,
		LowQuality:       50,
	}
}

// Normalized returns a copy with non-positive fields replaced by
// defaults. Bad limits degrade to defaults, matching the rest of the
// configuration surface.
func (t Thresholds) Normalized() Thresholds {
	d := DefaultThresholds()
	if t.MinBodyChars <= 0 {
		t.MinBodyChars = d.MinBodyChars
	}
	if t.TrivialLineCount <= 0 {
		t.TrivialLineCount = d.TrivialLineCount
	}
	if t.ShotgunFileCount <= 0 {
		t.ShotgunFileCount = d.ShotgunFileCount
	}
	if t.LowQuality <= 0 {
		t.LowQuality = d.LowQuality
	}
	return t
}

// Finding is one fired rule with its deduction.
type Finding struct {
	Rule    string `json:"rule"`
	Points  int    `json:"points"`
	Message string `json:"message"`
}

// Score is the result of grading one pull request.
type Score struct {
	Value    int       `json:"value"`
	Findings []Finding `json:"findings,omitempty"`
}

// LowQuality reports whether the score falls at or under the low
// quality threshold.
func (s Score) LowQuality(t Thresholds) bool {
	return s.Value <= t.Normalized().LowQuality
}

var (
	wipTitleRe    = regexp.MustCompile(`(?i)\b(wip|do.?not.?merge|dnm|draft)\b|^\[?wip\]?`)
	issueRefRe    = regexp.MustCompile(`(?i)(#\d+|\b(close[sd]?|fix(es|ed)?|resolve[sd]?)\b|https?://\S+/issues/\d+)`)
	templateRe    = regexp.MustCompile(`(?i)(<!--.*?-->|\[ \]|\bplease describe\b|\bdescription of changes\b)`)
	generatedPath = regexp.MustCompile(`(?i)(^|/)(package-lock\.json|yarn\.lock|pnpm-lock\.yaml|go\.sum|cargo\.lock|gemfile\.lock|poetry\.lock)$|\.(pb\.go|gen\.go|min\.js|min\.css)$|(^|/)(vendor|node_modules|dist|build)/`)
)

// Evaluate grades a pull request against the rule table. It is a pure
// function of the PR metadata and its changed files.
func Evaluate(pr types.PullRequest, files []types.ChangedFile, t Thresholds) Score {
	t = t.Normalized()
	score := Score{Value: 100}

	body := strings.TrimSpace(pr.Body)
	switch {
	case body == "":
		score.deduct(RuleEmptyBody, 25, "description is empty")
	case len(body) < t.MinBodyChars:
		score.deduct(RuleShortBody, 15, "description is too short to review against")
	case templateRe.MatchString(body) && !issueRefRe.MatchString(body):
		score.deduct(RuleTemplateBody, 15, "description still contains template boilerplate")
	}

	if wipTitleRe.MatchString(pr.Title) || pr.Draft {
		score.deduct(RuleWIPTitle, 10, "title or draft state marks this as work in progress")
	}

	if !issueRefRe.MatchString(pr.Title + " " + pr.Body) {
		score.deduct(RuleNoIssueReference, 10, "no linked issue or fix reference")
	}

	applyDiffRules(&score, files, t)
	if score.Value < 0 {
		score.Value = 0
	}
	return score
}

func applyDiffRules(score *Score, files []types.ChangedFile, t Thresholds) {
	if len(files) == 0 {
		return
	}

	total := 0
	substantive := 0
	generated := 0
	for _, f := range files {
		total += f.Additions + f.Deletions
		if generatedPath.MatchString(f.Filename) {
			generated++
		}
		if patchHasSubstance(f.Patch) {
			substantive++
		}
	}

	switch {
	case total <= t.TrivialLineCount:
		score.deduct(RuleTrivialDiff, 10, "diff changes almost nothing")
	case substantive == 0:
		score.deduct(RuleWhitespaceOnly, 20, "diff is whitespace-only")
	}

	if generated == len(files) {
		score.deduct(RuleGeneratedOnly, 20, "only generated or lock files changed")
	}
	if len(files) > t.ShotgunFileCount {
		score.deduct(RuleShotgunDiff, 15, "diff fans out across too many files to review")
	}
}

// patchHasSubstance reports whether any added or removed line carries
// non-whitespace content.
func patchHasSubstance(patch string) bool {
	for _, line := range strings.Split(patch, "\n") {
		if len(line) < 2 {
			continue
		}
		marker := line[0]
		if marker != '+' && marker != '-' {
			continue
		}
		if strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---") {
			continue
		}
		if strings.TrimSpace(line[1:]) != "" {
			return true
		}
	}
	return false
}

func (s *Score) deduct(rule string, points int, message string) {
	s.Value -= points
	s.Findings = append(s.Findings, Finding{Rule: rule, Points: points, Message: message})
}
