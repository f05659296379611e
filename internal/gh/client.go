// Package gh is a minimal GitHub REST v3 client covering the endpoints
// the triage flow needs: pull request listings, changed-file listings,
// issue comments, and labels. It is not a general-purpose SDK.
package gh

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/prtriage/prtriage/internal/types"
)

const defaultBaseURL = "https://api.github.com"

// ErrRateLimited is returned when GitHub rejects a request with a
// primary or secondary rate limit response (403/429).
var ErrRateLimited = errors.New("github: rate limited")

// HTTPError is returned for non-2xx responses other than rate limits.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("github: unexpected status %d: %s", e.StatusCode, e.Message)
}

// Client talks to the GitHub REST API with token auth and client-side
// rate limiting. The zero value is not usable; construct with New.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	limiter    *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL (used by tests and GitHub
// Enterprise installs).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithRateLimit sets the client-side request rate in requests/second.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// New creates a GitHub client. The token may be empty for unauthenticated
// reads against public repositories, at a much lower rate limit.
func New(token string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		token:      token,
		// GitHub allows 5000 authenticated requests/hour; default well under.
		limiter: rate.NewLimiter(rate.Limit(1), 5),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetPullRequest fetches one pull request by number.
func (c *Client) GetPullRequest(ctx context.Context, owner, repo string, number int) (*types.PullRequest, error) {
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d", owner, repo, number)

	var pr types.PullRequest
	if err := c.get(ctx, path, &pr); err != nil {
		return nil, fmt.Errorf("github: get pull %s/%s#%d: %w", owner, repo, number, err)
	}
	return &pr, nil
}

// ListPullRequests returns one page of pull requests for the repository,
// sorted by most-recently-updated first. A page shorter than perPage
// signals the end of the listing.
func (c *Client) ListPullRequests(ctx context.Context, owner, repo string, state types.State, page, perPage int) ([]types.PullRequest, error) {
	q := url.Values{
		"state":     {string(state)},
		"sort":      {"updated"},
		"direction": {"desc"},
		"page":      {fmt.Sprint(page)},
		"per_page":  {fmt.Sprint(perPage)},
	}
	path := fmt.Sprintf("/repos/%s/%s/pulls?%s", owner, repo, q.Encode())

	var prs []types.PullRequest
	if err := c.get(ctx, path, &prs); err != nil {
		return nil, fmt.Errorf("github: list pulls %s/%s: %w", owner, repo, err)
	}
	return prs, nil
}

// filesPageSize is the maximum per_page GitHub accepts for PR file listings.
const filesPageSize = 100

// ListFiles returns the full changed-file list for a pull request,
// paginating transparently until a short page is returned.
func (c *Client) ListFiles(ctx context.Context, owner, repo string, number int) ([]types.ChangedFile, error) {
	var all []types.ChangedFile
	for page := 1; ; page++ {
		path := fmt.Sprintf("/repos/%s/%s/pulls/%d/files?page=%d&per_page=%d",
			owner, repo, number, page, filesPageSize)

		var files []types.ChangedFile
		if err := c.get(ctx, path, &files); err != nil {
			return nil, fmt.Errorf("github: list files %s/%s#%d: %w", owner, repo, number, err)
		}
		all = append(all, files...)
		if len(files) < filesPageSize {
			return all, nil
		}
	}
}

// Comment is an issue comment on a pull request.
type Comment struct {
	ID   int64      `json:"id"`
	Body string     `json:"body"`
	User types.User `json:"user"`
}

// ListIssueComments returns the issue comments on a pull request.
func (c *Client) ListIssueComments(ctx context.Context, owner, repo string, number int) ([]Comment, error) {
	var all []Comment
	for page := 1; ; page++ {
		path := fmt.Sprintf("/repos/%s/%s/issues/%d/comments?page=%d&per_page=%d",
			owner, repo, number, page, filesPageSize)

		var comments []Comment
		if err := c.get(ctx, path, &comments); err != nil {
			return nil, fmt.Errorf("github: list comments %s/%s#%d: %w", owner, repo, number, err)
		}
		all = append(all, comments...)
		if len(comments) < filesPageSize {
			return all, nil
		}
	}
}

// CreateComment posts a new issue comment on a pull request.
func (c *Client) CreateComment(ctx context.Context, owner, repo string, number int, body string) (*Comment, error) {
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/comments", owner, repo, number)
	var out Comment
	if err := c.send(ctx, http.MethodPost, path, map[string]string{"body": body}, &out); err != nil {
		return nil, fmt.Errorf("github: create comment %s/%s#%d: %w", owner, repo, number, err)
	}
	return &out, nil
}

// UpdateComment edits an existing issue comment in place.
func (c *Client) UpdateComment(ctx context.Context, owner, repo string, commentID int64, body string) (*Comment, error) {
	path := fmt.Sprintf("/repos/%s/%s/issues/comments/%d", owner, repo, commentID)
	var out Comment
	if err := c.send(ctx, http.MethodPatch, path, map[string]string{"body": body}, &out); err != nil {
		return nil, fmt.Errorf("github: update comment %d: %w", commentID, err)
	}
	return &out, nil
}

// Label is a repository label attached to an issue or pull request.
type Label struct {
	Name string `json:"name"`
}

// ListLabels returns the labels currently on a pull request.
func (c *Client) ListLabels(ctx context.Context, owner, repo string, number int) ([]Label, error) {
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/labels", owner, repo, number)
	var labels []Label
	if err := c.get(ctx, path, &labels); err != nil {
		return nil, fmt.Errorf("github: list labels %s/%s#%d: %w", owner, repo, number, err)
	}
	return labels, nil
}

// AddLabels attaches labels to a pull request (existing labels are kept).
func (c *Client) AddLabels(ctx context.Context, owner, repo string, number int, labels []string) error {
	if len(labels) == 0 {
		return nil
	}
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/labels", owner, repo, number)
	if err := c.send(ctx, http.MethodPost, path, map[string][]string{"labels": labels}, nil); err != nil {
		return fmt.Errorf("github: add labels %s/%s#%d: %w", owner, repo, number, err)
	}
	return nil
}

// RemoveLabel removes a single label from a pull request. A 404 (label
// not present) is not an error; label sync must be idempotent.
func (c *Client) RemoveLabel(ctx context.Context, owner, repo string, number int, label string) error {
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/labels/%s", owner, repo, number, url.PathEscape(label))
	err := c.send(ctx, http.MethodDelete, path, nil, nil)
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("github: remove label %q from %s/%s#%d: %w", label, owner, repo, number, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.send(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) send(ctx context.Context, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return ErrRateLimited
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &HTTPError{StatusCode: resp.StatusCode, Message: string(bytes.TrimSpace(msg))}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
