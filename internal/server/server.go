// Package server exposes the webhook surface: GitHub pull_request
// events come in, triage runs go out. Signature verification happens
// before anything touches the payload.
package server

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/prtriage/prtriage/internal/triage"
	"github.com/prtriage/prtriage/internal/types"
)

// acceptedActions are the pull_request actions that trigger triage.
// Whether non-opened actions actually run is the detector's decision.
var acceptedActions = map[string]struct{}{
	"opened":           {},
	"synchronize":      {},
	"reopened":         {},
	"ready_for_review": {},
}

// runTimeout bounds one asynchronous triage run.
const runTimeout = 5 * time.Minute

// Runner triages one pull request. *triage.Service satisfies it.
type Runner interface {
	Run(ctx context.Context, owner, repo string, pr types.PullRequest, action string) (*triage.Report, error)
}

// Config holds the server settings.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// WebhookSecret is the shared HMAC secret. Empty disables
	// verification, which is only acceptable in local development.
	WebhookSecret string

	// Sync runs triage before responding instead of in the background.
	// Used by tests; production stays asynchronous.
	Sync bool
}

// Server is the webhook HTTP server.
type Server struct {
	app    *fiber.App
	runner Runner
	cfg    Config
}

// webhookPayload is the subset of the pull_request event the server
// reads. The embedded PullRequest follows the REST wire format.
type webhookPayload struct {
	Action     string `json:"action"`
	Repository struct {
		Name  string `json:"name"`
		Owner struct {
			Login string `json:"login"`
		} `json:"owner"`
	} `json:"repository"`
	PullRequest types.PullRequest `json:"pull_request"`
}

// New builds the server and its routes.
func New(runner Runner, cfg Config) *Server {
	s := &Server{
		app: fiber.New(fiber.Config{
			AppName:      "prtriage",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		}),
		runner: runner,
		cfg:    cfg,
	}

	s.app.Use(recover.New())
	s.app.Use(fiberlogger.New())

	s.app.Get("/healthz", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.app.Post("/webhook", s.handleWebhook)

	return s
}

// Listen blocks serving HTTP on the configured address.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Addr)
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleWebhook(c fiber.Ctx) error {
	body := c.Body()

	if !s.verifySignature(c.Get("X-Hub-Signature-256"), body) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid signature"})
	}

	if event := c.Get("X-GitHub-Event"); event != "pull_request" {
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "ignored", "event": event})
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed payload"})
	}
	if _, ok := acceptedActions[payload.Action]; !ok {
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "ignored", "action": payload.Action})
	}

	owner := payload.Repository.Owner.Login
	repo := payload.Repository.Name
	if owner == "" || repo == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing repository"})
	}
	if err := payload.PullRequest.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	pr := payload.PullRequest
	action := payload.Action
	run := func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		if _, err := s.runner.Run(ctx, owner, repo, pr, action); err != nil {
			log.Printf("[SERVER] triage %s/%s#%d failed: %v", owner, repo, pr.Number, err)
		}
	}
	if s.cfg.Sync {
		run()
	} else {
		go run()
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status": "queued",
		"number": pr.Number,
	})
}

// verifySignature checks the X-Hub-Signature-256 header against the raw
// body. Constant-time compare; an empty configured secret disables
// verification.
func (s *Server) verifySignature(header string, body []byte) bool {
	if s.cfg.WebhookSecret == "" {
		return true
	}
	const prefix = "sha256="
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return false
	}
	mac := hmac.New(sha256.New, []byte(s.cfg.WebhookSecret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(header[len(prefix):]), []byte(want))
}

// Test injects a request directly into the router. Exposed for tests.
func (s *Server) Test(req *http.Request) (*http.Response, error) {
	return s.app.Test(req)
}
