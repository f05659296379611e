package history

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prtriage/prtriage/internal/detect"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndListRecent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	detection := &detect.Result{
		Executed: true,
		Matches: []detect.Match{
			{Number: 17, Title: "Cap retry shift", Similarity: detect.Similarity{Confidence: 0.91}},
		},
		CandidateCount: 4,
		ComparedCount:  4,
	}

	require.NoError(t, store.Record(ctx, Run{
		RunID: "run-1", Owner: "acme", Repo: "widgets", Number: 42,
		HeadSHA: "abc123", Score: 75, Flagged: true, MatchCount: 1,
		Detection: detection,
	}))
	require.NoError(t, store.Record(ctx, Run{
		RunID: "run-2", Owner: "acme", Repo: "gadgets", Number: 7,
		HeadSHA: "def456", Score: 100,
	}))

	runs, err := store.ListRecent(ctx, "", "", 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	var got Run
	for _, r := range runs {
		if r.RunID == "run-1" {
			got = r
		}
	}
	require.Equal(t, "run-1", got.RunID)
	assert.Equal(t, 42, got.Number)
	assert.Equal(t, 75, got.Score)
	assert.True(t, got.Flagged)
	require.NotNil(t, got.Detection)
	require.Len(t, got.Detection.Matches, 1)
	assert.Equal(t, 17, got.Detection.Matches[0].Number)
	assert.InDelta(t, 0.91, got.Detection.Matches[0].Similarity.Confidence, 1e-9)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestListRecentFiltersByRepo(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, Run{RunID: "a", Owner: "acme", Repo: "widgets", Number: 1, HeadSHA: "x", Score: 90}))
	require.NoError(t, store.Record(ctx, Run{RunID: "b", Owner: "acme", Repo: "gadgets", Number: 2, HeadSHA: "y", Score: 80}))

	runs, err := store.ListRecent(ctx, "acme", "widgets", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "a", runs[0].RunID)
}

func TestListRecentHonorsLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Record(ctx, Run{
			RunID: string(rune('a' + i)), Owner: "acme", Repo: "widgets",
			Number: i, HeadSHA: "sha", Score: 100,
		}))
	}

	runs, err := store.ListRecent(ctx, "", "", 3)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestRecordWithoutDetection(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, Run{RunID: "r", Owner: "o", Repo: "p", Number: 1, HeadSHA: "s", Score: 50}))

	runs, err := store.ListRecent(ctx, "", "", 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Nil(t, runs[0].Detection)
}
