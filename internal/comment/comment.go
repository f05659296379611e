// Package comment renders the triage report to Markdown and keeps a
// single sticky comment per pull request up to date. The rendered body
// carries a fixed HTML marker; Upsert edits the marked comment in place
// and only creates a new one on the first run.
package comment

import (
	"context"
	"fmt"
	"strings"

	"github.com/prtriage/prtriage/internal/detect"
	"github.com/prtriage/prtriage/internal/gh"
	"github.com/prtriage/prtriage/internal/scoring"
)

// Marker identifies the bot's sticky comment. It must never change:
// old comments are found by this exact string.
const Marker = "<!-- prtriage-report -->"

// Report is the renderable outcome of one triage run.
type Report struct {
	Owner  string
	Repo   string
	Number int
	RunID  string

	Score     scoring.Score
	Detection *detect.Result
}

// Commenter is the subset of the GitHub client the upsert needs.
type Commenter interface {
	ListIssueComments(ctx context.Context, owner, repo string, number int) ([]gh.Comment, error)
	CreateComment(ctx context.Context, owner, repo string, number int, body string) (*gh.Comment, error)
	UpdateComment(ctx context.Context, owner, repo string, commentID int64, body string) (*gh.Comment, error)
}

// Render produces the Markdown body for a report.
func Render(r Report) string {
	var b strings.Builder
	b.WriteString(Marker)
	b.WriteString("\n## Triage report\n\n")
	fmt.Fprintf(&b, "**Quality score: %d/100**\n\n", r.Score.Value)

	if len(r.Score.Findings) > 0 {
		b.WriteString("| Rule | Points | Note |\n|---|---|---|\n")
		for _, f := range r.Score.Findings {
			fmt.Fprintf(&b, "| `%s` | -%d | %s |\n", f.Rule, f.Points, f.Message)
		}
		b.WriteString("\n")
	}

	renderDetection(&b, r.Detection)

	if r.RunID != "" {
		fmt.Fprintf(&b, "\n<sub>run `%s`</sub>\n", r.RunID)
	}
	return b.String()
}

func renderDetection(b *strings.Builder, res *detect.Result) {
	switch {
	case res == nil:
		b.WriteString("Duplicate detection did not run.\n")
		return
	case !res.Executed:
		fmt.Fprintf(b, "Duplicate detection skipped (%s).\n", res.SkipReason)
		return
	}

	if len(res.Matches) == 0 && len(res.Reverts) == 0 {
		fmt.Fprintf(b, "No similar pull requests found among %d candidates.\n", res.CandidateCount)
		return
	}

	if len(res.Matches) > 0 {
		b.WriteString("### Possible duplicates\n\n")
		for _, m := range res.Matches {
			fmt.Fprintf(b, "- #%d %s (%s, confidence %.2f, file overlap %.2f)\n",
				m.Number, m.Title, m.State, m.Similarity.Confidence, m.Similarity.FileOverlap)
		}
		b.WriteString("\n")
	}
	if len(res.Reverts) > 0 {
		b.WriteString("### Possible reverts\n\n")
		for _, m := range res.Reverts {
			fmt.Fprintf(b, "- #%d %s (%s)\n", m.Number, m.Title, m.State)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(b, "<sub>compared %d of %d candidates; thresholds: file %.2f, structural %.2f, metadata %.2f</sub>\n",
		res.ComparedCount, res.CandidateCount,
		res.Thresholds.FileOverlapThreshold,
		res.Thresholds.StructuralThreshold,
		res.Thresholds.MetadataThreshold)
}

// Upsert writes the report to the pull request's sticky comment:
// update when a marked comment exists, create otherwise.
func Upsert(ctx context.Context, client Commenter, r Report) error {
	body := Render(r)

	existing, err := client.ListIssueComments(ctx, r.Owner, r.Repo, r.Number)
	if err != nil {
		return fmt.Errorf("failed to list comments on #%d: %w", r.Number, err)
	}

	for _, c := range existing {
		if !strings.Contains(c.Body, Marker) {
			continue
		}
		if c.Body == body {
			return nil // already current
		}
		if _, err := client.UpdateComment(ctx, r.Owner, r.Repo, c.ID, body); err != nil {
			return fmt.Errorf("failed to update comment %d: %w", c.ID, err)
		}
		return nil
	}

	if _, err := client.CreateComment(ctx, r.Owner, r.Repo, r.Number, body); err != nil {
		return fmt.Errorf("failed to create comment on #%d: %w", r.Number, err)
	}
	return nil
}
