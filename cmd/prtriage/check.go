package main

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/prtriage/prtriage/internal/config"
	"github.com/prtriage/prtriage/internal/detect"
)

var checkDryRun bool

// prRefRe parses "owner/repo#number".
var prRefRe = regexp.MustCompile(`^([^/\s]+)/([^#\s]+)#(\d+)$`)

var checkCmd = &cobra.Command{
	Use:   "check owner/repo#number",
	Short: "Triage one pull request from the terminal",
	Long: `Run the full triage pipeline against a single pull request and print
the result.

Examples:
  prtriage check acme/widgets#123
  prtriage check acme/widgets#123 --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, repo, number, err := parsePRRef(args[0])
		if err != nil {
			return err
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.GitHubToken == "" {
			return fmt.Errorf("no GitHub token configured (set PRTRIAGE_GITHUB_TOKEN)")
		}

		svc, client, store, err := buildService(cfg, checkDryRun)
		if err != nil {
			return err
		}
		if store != nil {
			defer store.Close()
		}

		ctx := context.Background()
		pr, err := client.GetPullRequest(ctx, owner, repo, number)
		if err != nil {
			return err
		}

		report, err := svc.Run(ctx, owner, repo, *pr, detect.ActionOpened)
		if err != nil {
			return err
		}

		printReport(report.RunID, pr.Title, report)
		return nil
	},
}

func parsePRRef(ref string) (owner, repo string, number int, err error) {
	m := prRefRe.FindStringSubmatch(ref)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid pull request reference %q (expected owner/repo#number)", ref)
	}
	number, err = strconv.Atoi(m[3])
	if err != nil || number <= 0 {
		return "", "", 0, fmt.Errorf("invalid pull request number in %q", ref)
	}
	return m[1], m[2], number, nil
}

func init() {
	checkCmd.Flags().BoolVar(&checkDryRun, "dry-run", false, "score and detect without writing comments or labels")
	rootCmd.AddCommand(checkCmd)
}
