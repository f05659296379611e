// Package detect implements near-duplicate and revert detection for
// pull requests. It fingerprints a submission's diff, retrieves a
// bounded pool of open and recently-merged candidates from the same base
// branch, scores each candidate under several independent similarity
// metrics, and reports ranked matches with a confidence score.
//
// Detection is a best-effort, bounded-cost heuristic search: it never
// fetches or executes submitted code, never inspects anything beyond
// metadata, file paths, and textual diff content, and does not guarantee
// finding every duplicate.
package detect

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/prtriage/prtriage/internal/types"
)

// SkipReason explains why a detection run did not execute.
type SkipReason string

const (
	// SkipDisabled: detection is turned off in configuration.
	SkipDisabled SkipReason = "disabled"

	// SkipNotInitial: configured to run only on the initial submission
	// event and this event is something else.
	SkipNotInitial SkipReason = "not-initial-submission"

	// SkipUnsupportedClient: the remote client lacks the listing
	// capability candidate retrieval requires.
	SkipUnsupportedClient SkipReason = "unsupported-client"
)

// ActionOpened is the platform event action for an initial submission.
const ActionOpened = "opened"

// Match is one candidate that classified as a duplicate or revert.
type Match struct {
	Number     int         `json:"number"`
	Title      string      `json:"title"`
	State      types.State `json:"state"`
	Similarity Similarity  `json:"similarity"`
}

// Result is the output of one detection run. The threshold snapshot is
// included so a rendered report is self-explanatory and reproducible
// from the record alone.
type Result struct {
	Executed   bool       `json:"executed"`
	SkipReason SkipReason `json:"skip_reason,omitempty"`

	Matches []Match `json:"matches"`
	Reverts []Match `json:"reverts"`

	CandidateCount int `json:"candidate_count"`
	ComparedCount  int `json:"compared_count"`

	Thresholds Config `json:"thresholds"`
}

// Flagged reports whether any duplicate match survived.
func (r *Result) Flagged() bool {
	return r != nil && len(r.Matches) > 0
}

// Detector runs duplicate detection against a remote client, sharing
// one representation cache across runs.
type Detector struct {
	client FileLister
	cache  *Cache
	cfg    Config

	// now is swappable for tests.
	now func() time.Time
}

// NewDetector creates a detector. The config is normalized once here;
// a nil cache gets a fresh one sized from the config.
func NewDetector(client FileLister, cache *Cache, cfg Config) *Detector {
	cfg = cfg.Normalized()
	if cache == nil {
		cache = NewCache(cfg.CacheSize)
	}
	return &Detector{
		client: client,
		cache:  cache,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Detect runs duplicate detection for one pull request whose changed
// files have already been fetched. action is the platform event action
// that triggered triage ("opened", "synchronize", ...).
//
// A remote-data failure propagates out of the run; callers treat the
// whole detection as failed-but-skippable. Skip states return a
// non-executed Result, not an error.
func (d *Detector) Detect(ctx context.Context, owner, repo string, pr types.PullRequest, files []types.ChangedFile, action string) (*Result, error) {
	result := &Result{Thresholds: d.cfg}

	if !d.cfg.Enabled {
		result.SkipReason = SkipDisabled
		return result, nil
	}
	if d.cfg.OnlyOnOpen && action != ActionOpened {
		result.SkipReason = SkipNotInitial
		return result, nil
	}
	lister, ok := d.client.(PullLister)
	if !ok {
		result.SkipReason = SkipUnsupportedClient
		return result, nil
	}

	current := BuildRepresentation(pr, files, d.cfg)
	d.cache.Put(Key(owner, repo, pr, d.cfg), current)

	pool, err := d.assemblePool(ctx, lister, owner, repo, pr)
	if err != nil {
		return nil, err
	}
	result.CandidateCount = len(pool)
	if len(pool) > d.cfg.MaxComparisons {
		pool = pool[:d.cfg.MaxComparisons]
	}

	evaluated, compared, err := d.evaluatePool(ctx, lister, owner, repo, current, pool)
	if err != nil {
		return nil, err
	}
	result.ComparedCount = compared

	for _, e := range evaluated {
		if e.Similarity.IsDuplicate {
			result.Matches = append(result.Matches, e)
		}
		if e.Similarity.IsRevert {
			result.Reverts = append(result.Reverts, e)
		}
	}
	rankMatches(result.Matches)
	rankMatches(result.Reverts)
	result.Matches = truncate(result.Matches, d.cfg.MaxReportedMatches)
	result.Reverts = truncate(result.Reverts, d.cfg.MaxReportedMatches)

	result.Executed = true
	return result, nil
}

// assemblePool fetches the open and recently-merged candidate pools
// concurrently, then merges them: dedupe by number, drop the submission
// itself and candidates on a different base branch, order open-first
// then by recency. Open candidates are deliberately privileged when the
// comparison cap later truncates the pool.
func (d *Detector) assemblePool(ctx context.Context, lister PullLister, owner, repo string, pr types.PullRequest) ([]types.PullRequest, error) {
	lookback := time.Duration(d.cfg.MergedLookbackDays) * 24 * time.Hour
	now := d.now()

	var open, merged []types.PullRequest
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		open, err = fetchCandidates(gctx, lister, owner, repo, types.StateOpen, d.cfg.MaxOpenCandidates, 0, now)
		return err
	})
	g.Go(func() error {
		var err error
		merged, err = fetchCandidates(gctx, lister, owner, repo, types.StateClosed, d.cfg.MaxMergedCandidates, lookback, now)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[int]struct{})
	var pool []types.PullRequest
	for _, c := range append(open, merged...) {
		if c.Number == pr.Number {
			continue
		}
		if c.Base.Ref != pr.Base.Ref {
			continue
		}
		if _, dup := seen[c.Number]; dup {
			continue
		}
		seen[c.Number] = struct{}{}
		pool = append(pool, c)
	}

	sort.SliceStable(pool, func(i, j int) bool {
		if (pool[i].State == types.StateOpen) != (pool[j].State == types.StateOpen) {
			return pool[i].State == types.StateOpen
		}
		return pool[i].UpdatedAt.After(pool[j].UpdatedAt)
	})
	return pool, nil
}

// evaluatePool scores each candidate through a bounded worker pool. Each
// worker handles one candidate fully: the cheap file-count early skip,
// cache lookup-or-build (fetching the candidate's file list only on a
// miss), similarity evaluation, and the candidate pre-filter. The first
// worker error cancels the remaining work and propagates.
func (d *Detector) evaluatePool(ctx context.Context, lister PullLister, owner, repo string, current *Representation, pool []types.PullRequest) ([]Match, int, error) {
	var (
		mu        sync.Mutex
		evaluated []Match
		compared  int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.FetchConcurrency)

	for _, candidate := range pool {
		g.Go(func() error {
			// The listing's reported file count can rule a candidate
			// out before any network fetch. Zero means the listing
			// omitted the counter, so nothing can be concluded.
			if candidate.ChangedFiles > 0 &&
				absInt(candidate.ChangedFiles-len(current.FileSet)) > d.cfg.FileCountDeltaThreshold {
				return nil
			}

			key := Key(owner, repo, candidate, d.cfg)
			rep, hit := d.cache.Get(key)
			if !hit {
				files, err := lister.ListFiles(gctx, owner, repo, candidate.Number)
				if err != nil {
					return err
				}
				rep = BuildRepresentation(candidate, files, d.cfg)
				d.cache.Put(key, rep)
			}

			sim := Evaluate(current, rep, d.cfg)

			mu.Lock()
			defer mu.Unlock()
			compared++
			if sim.PassesCandidateFilter {
				evaluated = append(evaluated, Match{
					Number:     candidate.Number,
					Title:      candidate.Title,
					State:      candidate.State,
					Similarity: sim,
				})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return evaluated, compared, nil
}

// rankMatches orders by confidence descending. Number ascending breaks
// ties so ranking is independent of worker completion order.
func rankMatches(matches []Match) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity.Confidence != matches[j].Similarity.Confidence {
			return matches[i].Similarity.Confidence > matches[j].Similarity.Confidence
		}
		return matches[i].Number < matches[j].Number
	})
}

func truncate(matches []Match, limit int) []Match {
	if len(matches) > limit {
		return matches[:limit]
	}
	return matches
}
