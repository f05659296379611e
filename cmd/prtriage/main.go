// prtriage triages pull requests: quality scoring, near-duplicate
// detection, a sticky report comment, and triage labels.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "prtriage",
	Short: "Pull request triage bot",
	Long: `prtriage scores pull request submission quality and flags likely
duplicates and reverts among open and recently merged pull requests.

Run it as a webhook server (prtriage serve) or one-shot from the
terminal (prtriage check owner/repo#123).`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
