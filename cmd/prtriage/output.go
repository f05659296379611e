package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"

	"github.com/prtriage/prtriage/internal/triage"
)

func printReport(runID, title string, report *triage.Report) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	fmt.Printf("\n%s %s/%s#%d %s\n", cyan("▶"), report.Owner, report.Repo, report.Number, title)
	fmt.Printf("  run %s (%s)\n\n", runID, report.Duration.Round(time.Millisecond))

	scoreColor := green
	switch {
	case report.Score.Value < 50:
		scoreColor = red
	case report.Score.Value < 80:
		scoreColor = yellow
	}
	fmt.Printf("  Quality score: %s\n", scoreColor(fmt.Sprintf("%d/100", report.Score.Value)))
	for _, f := range report.Score.Findings {
		fmt.Printf("    %s %s (-%d): %s\n", yellow("•"), f.Rule, f.Points, f.Message)
	}

	fmt.Println()
	switch {
	case report.Detection == nil:
		fmt.Printf("  %s duplicate detection did not run\n", yellow("!"))
	case !report.Detection.Executed:
		fmt.Printf("  %s duplicate detection skipped (%s)\n", yellow("!"), report.Detection.SkipReason)
	case len(report.Detection.Matches) == 0 && len(report.Detection.Reverts) == 0:
		fmt.Printf("  %s no similar pull requests among %d candidates\n",
			green("✓"), report.Detection.CandidateCount)
	default:
		for _, m := range report.Detection.Matches {
			fmt.Printf("  %s possible duplicate of #%d %s (confidence %.2f)\n",
				red("✗"), m.Number, m.Title, m.Similarity.Confidence)
		}
		for _, m := range report.Detection.Reverts {
			fmt.Printf("  %s possible revert of #%d %s\n", red("✗"), m.Number, m.Title)
		}
	}
	fmt.Println()
}
