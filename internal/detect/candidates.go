package detect

import (
	"context"
	"time"

	"github.com/prtriage/prtriage/internal/types"
)

// FileLister is the minimum client surface the detector needs to build a
// candidate's representation.
type FileLister interface {
	ListFiles(ctx context.Context, owner, repo string, number int) ([]types.ChangedFile, error)
}

// PullLister is the listing capability candidate retrieval requires. A
// client that only implements FileLister short-circuits detection to a
// "skipped: unsupported" result instead of failing.
type PullLister interface {
	FileLister
	ListPullRequests(ctx context.Context, owner, repo string, state types.State, page, perPage int) ([]types.PullRequest, error)
}

const (
	listPageSize = 50

	// maxListPages guards against an unbounded loop if the remote
	// misreports page length.
	maxListPages = 20
)

// fetchCandidates pages through the repository's pull request listing
// (most-recently-updated first) and returns up to limit candidates in
// the requested lifecycle state. For closed listings, never-merged pull
// requests and merges older than the lookback window are skipped. Reads
// only; never mutates remote state.
func fetchCandidates(ctx context.Context, lister PullLister, owner, repo string, state types.State, limit int, lookback time.Duration, now time.Time) ([]types.PullRequest, error) {
	if limit <= 0 {
		return nil, nil
	}
	cutoff := now.Add(-lookback)

	var out []types.PullRequest
	for page := 1; page <= maxListPages; page++ {
		prs, err := lister.ListPullRequests(ctx, owner, repo, state, page, listPageSize)
		if err != nil {
			return nil, err
		}

		for _, pr := range prs {
			if state == types.StateClosed {
				if !pr.Merged() || pr.MergedAt.Before(cutoff) {
					continue
				}
			}
			out = append(out, pr)
			if len(out) >= limit {
				return out, nil
			}
		}

		// A short page signals the end of the listing.
		if len(prs) < listPageSize {
			return out, nil
		}
	}
	return out, nil
}
