package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/prtriage/prtriage/internal/config"
	"github.com/prtriage/prtriage/internal/detect"
	"github.com/prtriage/prtriage/internal/gh"
	"github.com/prtriage/prtriage/internal/history"
	"github.com/prtriage/prtriage/internal/server"
	"github.com/prtriage/prtriage/internal/triage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook server",
	Long: `Start the HTTP server that receives GitHub pull_request webhooks
and triages each submission asynchronously.

Requires PRTRIAGE_GITHUB_TOKEN; set PRTRIAGE_WEBHOOK_SECRET so payload
signatures are verified.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.GitHubToken == "" {
			return fmt.Errorf("no GitHub token configured (set PRTRIAGE_GITHUB_TOKEN)")
		}
		if cfg.WebhookSecret == "" {
			log.Printf("[SERVE] warning: no webhook secret configured, signature verification disabled")
		}

		svc, _, store, err := buildService(cfg, false)
		if err != nil {
			return err
		}
		if store != nil {
			defer store.Close()
		}

		srv := server.New(svc, server.Config{
			Addr:          cfg.ListenAddr,
			WebhookSecret: cfg.WebhookSecret,
		})

		errCh := make(chan error, 1)
		go func() {
			log.Printf("[SERVE] listening on %s", cfg.ListenAddr)
			errCh <- srv.Listen()
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-sigCh:
			log.Printf("[SERVE] received %s, shutting down", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		}
	},
}

// buildService wires the triage pipeline from configuration. The
// returned store is nil when history is disabled.
func buildService(cfg config.Config, dryRun bool) (*triage.Service, *gh.Client, *history.Store, error) {
	client := gh.New(cfg.GitHubToken)
	detector := detect.NewDetector(client, detect.NewCache(cfg.Detect.CacheSize), cfg.Detect)

	var (
		store    *history.Store
		recorder triage.Recorder
	)
	if cfg.HistoryPath != "" && !dryRun {
		var err error
		store, err = history.Open(cfg.HistoryPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open history store: %w", err)
		}
		recorder = store
	}

	svc := triage.NewService(client, detector, recorder, triage.Options{
		DryRun:  dryRun,
		Scoring: cfg.Scoring,
	})
	return svc, client, store, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
