// Package triage runs the full pipeline for one pull request: quality
// scoring, duplicate detection, the sticky report comment, label
// reconciliation, and run history. Both the webhook server and the CLI
// enter through Service.Run.
package triage

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/prtriage/prtriage/internal/comment"
	"github.com/prtriage/prtriage/internal/detect"
	"github.com/prtriage/prtriage/internal/history"
	"github.com/prtriage/prtriage/internal/labels"
	"github.com/prtriage/prtriage/internal/scoring"
	"github.com/prtriage/prtriage/internal/types"
)

// Client is the remote surface the pipeline needs. *gh.Client satisfies
// it; the detector additionally type-asserts for listing capability.
type Client interface {
	detect.FileLister
	comment.Commenter
	labels.Labeler
}

// Recorder persists finished runs. *history.Store satisfies it.
type Recorder interface {
	Record(ctx context.Context, run history.Run) error
}

// Options configures a Service.
type Options struct {
	// DryRun skips every write: no comment, no labels, no history.
	DryRun bool

	// Scoring holds the quality rule thresholds.
	Scoring scoring.Thresholds
}

// Report is the outcome of one triage run.
type Report struct {
	RunID     string         `json:"run_id"`
	Owner     string         `json:"owner"`
	Repo      string         `json:"repo"`
	Number    int            `json:"number"`
	Score     scoring.Score  `json:"score"`
	Detection *detect.Result `json:"detection,omitempty"`
	Duration  time.Duration  `json:"duration"`
}

// Service wires the triage pipeline together.
type Service struct {
	client   Client
	detector *detect.Detector
	recorder Recorder
	opts     Options
}

// NewService creates the pipeline. recorder may be nil when history is
// not configured.
func NewService(client Client, detector *detect.Detector, recorder Recorder, opts Options) *Service {
	opts.Scoring = opts.Scoring.Normalized()
	return &Service{
		client:   client,
		detector: detector,
		recorder: recorder,
		opts:     opts,
	}
}

// Run triages one pull request. action is the platform event action that
// triggered the run. A detection failure degrades to a report without
// detection; failures on the write surfaces fail the run.
func (s *Service) Run(ctx context.Context, owner, repo string, pr types.PullRequest, action string) (*Report, error) {
	if err := pr.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pull request: %w", err)
	}

	start := time.Now()
	report := &Report{
		RunID:  uuid.NewString(),
		Owner:  owner,
		Repo:   repo,
		Number: pr.Number,
	}
	log.Printf("[TRIAGE] run %s: %s/%s#%d action=%s", report.RunID, owner, repo, pr.Number, action)

	files, err := s.client.ListFiles(ctx, owner, repo, pr.Number)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch changed files for #%d: %w", pr.Number, err)
	}

	report.Score = scoring.Evaluate(pr, files, s.opts.Scoring)

	detection, err := s.detector.Detect(ctx, owner, repo, pr, files, action)
	if err != nil {
		// Detection is best-effort: a remote hiccup must not block the
		// quality report.
		log.Printf("[TRIAGE] run %s: detection failed: %v", report.RunID, err)
	} else {
		report.Detection = detection
	}

	if s.opts.DryRun {
		report.Duration = time.Since(start)
		log.Printf("[TRIAGE] run %s: dry run, skipping writes", report.RunID)
		return report, nil
	}

	if err := comment.Upsert(ctx, s.client, comment.Report{
		Owner:     owner,
		Repo:      repo,
		Number:    pr.Number,
		RunID:     report.RunID,
		Score:     report.Score,
		Detection: report.Detection,
	}); err != nil {
		return nil, fmt.Errorf("failed to upsert report comment: %w", err)
	}

	desired := labels.Desired(report.Score, report.Detection, s.opts.Scoring)
	if err := labels.Sync(ctx, s.client, owner, repo, pr.Number, desired); err != nil {
		return nil, fmt.Errorf("failed to sync labels: %w", err)
	}

	if s.recorder != nil {
		run := history.Run{
			RunID:     report.RunID,
			Owner:     owner,
			Repo:      repo,
			Number:    pr.Number,
			HeadSHA:   pr.Head.SHA,
			Score:     report.Score.Value,
			Flagged:   report.Detection.Flagged(),
			Detection: report.Detection,
		}
		if report.Detection != nil {
			run.MatchCount = len(report.Detection.Matches)
		}
		if err := s.recorder.Record(ctx, run); err != nil {
			// History is an audit trail, not a gate.
			log.Printf("[TRIAGE] run %s: failed to record history: %v", report.RunID, err)
		}
	}

	report.Duration = time.Since(start)
	log.Printf("[TRIAGE] run %s: done in %s (score=%d matches=%d)",
		report.RunID, report.Duration.Round(time.Millisecond), report.Score.Value, len(report.DetectionMatches()))
	return report, nil
}

// DetectionMatches returns the duplicate matches, empty when detection
// did not run.
func (r *Report) DetectionMatches() []detect.Match {
	if r.Detection == nil {
		return nil
	}
	return r.Detection.Matches
}
