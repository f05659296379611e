package types

import (
	"fmt"
	"time"
)

// PullRequest represents a change submission on the hosting platform.
// JSON tags follow the GitHub REST wire format so listing responses
// unmarshal directly.
type PullRequest struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	State     State      `json:"state"`
	Draft     bool       `json:"draft"`
	User      User       `json:"user"`
	Base      Branch     `json:"base"`
	Head      Branch     `json:"head"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	MergedAt  *time.Time `json:"merged_at,omitempty"`

	// Size counters. The listing endpoint omits these (they come back as
	// zero); only detail and file fetches populate them reliably.
	Additions    int `json:"additions"`
	Deletions    int `json:"deletions"`
	ChangedFiles int `json:"changed_files"`
}

// Merged reports whether the pull request was merged (as opposed to
// closed without merging).
func (p *PullRequest) Merged() bool {
	return p.MergedAt != nil
}

// Validate checks if the pull request has valid field values
func (p *PullRequest) Validate() error {
	if p.Number <= 0 {
		return fmt.Errorf("number must be positive (got %d)", p.Number)
	}
	if !p.State.IsValid() {
		return fmt.Errorf("invalid state: %s", p.State)
	}
	if p.Base.Ref == "" {
		return fmt.Errorf("base ref is required")
	}
	return nil
}

// User is the submission author.
type User struct {
	Login string `json:"login"`
	Type  string `json:"type,omitempty"`
}

// Bot reports whether the author is a bot account.
func (u User) Bot() bool {
	return u.Type == "Bot"
}

// Branch identifies one side of a pull request.
type Branch struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

// State represents the lifecycle state of a pull request
type State string

const (
	StateOpen   State = "open"
	StateClosed State = "closed"
)

// IsValid checks if the state value is valid
func (s State) IsValid() bool {
	switch s {
	case StateOpen, StateClosed:
		return true
	}
	return false
}

// ChangedFile is one file touched by a pull request, including its
// unified-diff patch text when the platform provides it (binary and very
// large files come back without a patch).
type ChangedFile struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Patch     string `json:"patch,omitempty"`
}
