package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/prtriage/prtriage/internal/config"
	"github.com/prtriage/prtriage/internal/history"
)

var (
	historyLimit int
	historyRepo  string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent triage runs",
	Long: `Print the most recent triage runs from the local history database.

Examples:
  prtriage history
  prtriage history --repo acme/widgets --limit 50`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.HistoryPath == "" {
			return fmt.Errorf("history is disabled (PRTRIAGE_HISTORY_PATH is empty)")
		}

		var owner, repo string
		if historyRepo != "" {
			parts := strings.SplitN(historyRepo, "/", 2)
			if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
				return fmt.Errorf("invalid repository %q (expected owner/repo)", historyRepo)
			}
			owner, repo = parts[0], parts[1]
		}

		store, err := history.Open(cfg.HistoryPath)
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.ListRecent(context.Background(), owner, repo, historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No triage runs recorded yet.")
			return nil
		}

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()

		for _, run := range runs {
			flag := green("clean")
			if run.Flagged {
				flag = red(fmt.Sprintf("%d match(es)", run.MatchCount))
			}
			fmt.Printf("%s  %s/%s#%d  score %3d  %s  %s\n",
				run.CreatedAt.Format("2006-01-02 15:04:05"),
				run.Owner, run.Repo, run.Number, run.Score, flag, run.RunID)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum runs to show")
	historyCmd.Flags().StringVar(&historyRepo, "repo", "", "filter to one repository (owner/repo)")
	rootCmd.AddCommand(historyCmd)
}
