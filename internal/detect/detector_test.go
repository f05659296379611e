package detect

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prtriage/prtriage/internal/types"
)

func TestDetectSkipStates(t *testing.T) {
	pr := testPR(1, "current")

	t.Run("disabled", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Enabled = false
		d := NewDetector(newFakeClient(), nil, cfg)

		res, err := d.Detect(context.Background(), "acme", "widgets", pr, nil, ActionOpened)
		require.NoError(t, err)
		assert.False(t, res.Executed)
		assert.Equal(t, SkipDisabled, res.SkipReason)
	})

	t.Run("not initial submission", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.OnlyOnOpen = true
		d := NewDetector(newFakeClient(), nil, cfg)

		res, err := d.Detect(context.Background(), "acme", "widgets", pr, nil, "synchronize")
		require.NoError(t, err)
		assert.False(t, res.Executed)
		assert.Equal(t, SkipNotInitial, res.SkipReason)
	})

	t.Run("client without listing capability", func(t *testing.T) {
		d := NewDetector(filesOnlyClient{}, nil, DefaultConfig())

		res, err := d.Detect(context.Background(), "acme", "widgets", pr, nil, ActionOpened)
		require.NoError(t, err)
		assert.False(t, res.Executed)
		assert.Equal(t, SkipUnsupportedClient, res.SkipReason)
	})
}

// End-to-end duplicate scenario: same files, same added line modulo
// whitespace, same base branch.
func TestDetectFindsWhitespaceInsensitiveDuplicate(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	current := testPR(100, "Add math helpers")
	currentFiles := []types.ChangedFile{
		{Filename: "a.ts", Patch: "@@\n+export function add(x,y){return x+y}"},
		{Filename: "b.ts", Patch: ""},
	}

	client := newFakeClient()
	candidate := candidatePR(42, types.StateOpen, "main", now, nil)
	candidate.Title = "Add math helpers"
	client.open = []types.PullRequest{candidate}
	client.files[42] = []types.ChangedFile{
		{Filename: "a.ts", Patch: "@@\n+export   function add(x,y){return x+y}"},
		{Filename: "b.ts", Patch: ""},
	}

	d := NewDetector(client, nil, DefaultConfig())
	res, err := d.Detect(context.Background(), "acme", "widgets", current, currentFiles, ActionOpened)
	require.NoError(t, err)

	require.True(t, res.Executed)
	assert.Equal(t, 1, res.CandidateCount)
	assert.Equal(t, 1, res.ComparedCount)
	require.Len(t, res.Matches, 1)

	match := res.Matches[0]
	assert.Equal(t, 42, match.Number)
	assert.Equal(t, 1.0, match.Similarity.FileOverlap)
	assert.True(t, match.Similarity.NormalizedDiffHashMatch)
	assert.True(t, match.Similarity.IsDuplicate)
	assert.Equal(t, 1.0, match.Similarity.Confidence)
	assert.True(t, res.Flagged())
}

func TestDetectExcludesOtherBaseBranch(t *testing.T) {
	current := testPR(100, "Release fix")

	client := newFakeClient()
	// Identical content, but targeting a release branch.
	other := candidatePR(7, types.StateOpen, "release-1.2", time.Now(), nil)
	client.open = []types.PullRequest{other}
	client.files[7] = []types.ChangedFile{{Filename: "x.go", Patch: "@@\n+same line"}}

	d := NewDetector(client, nil, DefaultConfig())
	res, err := d.Detect(context.Background(), "acme", "widgets", current,
		[]types.ChangedFile{{Filename: "x.go", Patch: "@@\n+same line"}}, ActionOpened)
	require.NoError(t, err)

	assert.Equal(t, 0, res.CandidateCount)
	assert.Empty(t, res.Matches)
	assert.Zero(t, client.fileFetches[7], "different-base candidate must not be fetched at all")
}

func TestDetectEarlyFileCountSkip(t *testing.T) {
	current := testPR(100, "Small fix")
	currentFiles := []types.ChangedFile{{Filename: "a.go", Patch: "@@\n+one line"}}

	client := newFakeClient()
	huge := candidatePR(8, types.StateOpen, "main", time.Now(), nil)
	huge.ChangedFiles = 500 // listing already rules this one out
	client.open = []types.PullRequest{huge}

	d := NewDetector(client, nil, DefaultConfig())
	res, err := d.Detect(context.Background(), "acme", "widgets", current, currentFiles, ActionOpened)
	require.NoError(t, err)

	assert.Equal(t, 1, res.CandidateCount)
	assert.Equal(t, 0, res.ComparedCount)
	assert.Zero(t, client.fileFetches[8], "early skip must avoid the network fetch")
}

func TestDetectReusesCachedRepresentations(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	current := testPR(100, "First run")
	files := []types.ChangedFile{{Filename: "a.go", Patch: "@@\n+alpha"}}

	client := newFakeClient()
	candidate := candidatePR(5, types.StateOpen, "main", now, nil)
	client.open = []types.PullRequest{candidate}
	client.files[5] = []types.ChangedFile{{Filename: "a.go", Patch: "@@\n+alpha"}}

	cache := NewCache(100)
	d := NewDetector(client, cache, DefaultConfig())

	_, err := d.Detect(context.Background(), "acme", "widgets", current, files, ActionOpened)
	require.NoError(t, err)
	_, err = d.Detect(context.Background(), "acme", "widgets", current, files, ActionOpened)
	require.NoError(t, err)

	assert.Equal(t, 1, client.fileFetches[5],
		"second run must hit the cache instead of refetching the candidate")
}

func TestDetectPropagatesRemoteErrors(t *testing.T) {
	remoteErr := errors.New("listing blew up")

	client := newFakeClient()
	client.listErr = remoteErr

	d := NewDetector(client, nil, DefaultConfig())
	_, err := d.Detect(context.Background(), "acme", "widgets", testPR(1, "x"), nil, ActionOpened)
	require.Error(t, err)
	assert.True(t, errors.Is(err, remoteErr))
}

func TestDetectRanksByConfidenceAndPrivilegesOpen(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	merged := now.Add(-2 * 24 * time.Hour)

	current := testPR(100, "Fix cache eviction in store")
	currentFiles := []types.ChangedFile{
		{Filename: "store/cache.go", Patch: "@@\n+evict oldest entry when full\n+update recency on read"},
	}

	client := newFakeClient()

	exact := candidatePR(20, types.StateOpen, "main", now, nil)
	exact.Title = "Fix cache eviction in store"
	client.files[20] = currentFiles

	near := candidatePR(30, types.StateClosed, "main", now.Add(-time.Hour), &merged)
	near.Title = "Fix cache eviction in store"
	client.files[30] = []types.ChangedFile{
		{Filename: "store/cache.go", Patch: "@@\n+evict oldest entry when full\n+update read recency"},
	}

	client.open = []types.PullRequest{exact}
	client.closed = []types.PullRequest{near}

	cfg := DefaultConfig()
	cfg.StructuralThreshold = 0.3
	cfg.MetadataThreshold = 0.3
	d := NewDetector(client, nil, cfg)

	res, err := d.Detect(context.Background(), "acme", "widgets", current, currentFiles, ActionOpened)
	require.NoError(t, err)

	require.Len(t, res.Matches, 2)
	assert.Equal(t, 20, res.Matches[0].Number, "exact match must rank first")
	assert.Equal(t, 1.0, res.Matches[0].Similarity.Confidence)
	assert.Less(t, res.Matches[1].Similarity.Confidence, 1.0)
}

func TestDetectComparisonCapPrivilegesOpen(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	merged := now.Add(-24 * time.Hour)

	client := newFakeClient()
	for i := 1; i <= 3; i++ {
		client.open = append(client.open, candidatePR(i, types.StateOpen, "main", now, nil))
	}
	for i := 10; i < 20; i++ {
		client.closed = append(client.closed, candidatePR(i, types.StateClosed, "main", now, &merged))
	}

	cfg := DefaultConfig()
	cfg.MaxComparisons = 3
	d := NewDetector(client, nil, cfg)

	res, err := d.Detect(context.Background(), "acme", "widgets", testPR(100, "x"),
		[]types.ChangedFile{{Filename: "a.go", Patch: "@@\n+line"}}, ActionOpened)
	require.NoError(t, err)

	// Pool had 13 candidates; only the 3 open ones fit under the cap.
	assert.Equal(t, 13, res.CandidateCount)
	assert.Equal(t, 3, res.ComparedCount)
	for i := 1; i <= 3; i++ {
		assert.Positive(t, client.fileFetches[i], "open candidate %d should have been compared", i)
	}
	for i := 10; i < 20; i++ {
		assert.Zero(t, client.fileFetches[i], "merged candidate %d should have been truncated", i)
	}
}
