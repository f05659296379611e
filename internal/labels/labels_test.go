package labels

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prtriage/prtriage/internal/detect"
	"github.com/prtriage/prtriage/internal/gh"
	"github.com/prtriage/prtriage/internal/scoring"
)

type fakeLabeler struct {
	labels  []gh.Label
	listErr error

	added   []string
	removed []string
}

func (f *fakeLabeler) ListLabels(context.Context, string, string, int) ([]gh.Label, error) {
	return f.labels, f.listErr
}

func (f *fakeLabeler) AddLabels(_ context.Context, _, _ string, _ int, labels []string) error {
	f.added = append(f.added, labels...)
	return nil
}

func (f *fakeLabeler) RemoveLabel(_ context.Context, _, _ string, _ int, label string) error {
	f.removed = append(f.removed, label)
	return nil
}

func TestDesired(t *testing.T) {
	dup := detect.Match{Number: 5}

	tests := []struct {
		name      string
		score     scoring.Score
		detection *detect.Result
		want      []string
	}{
		{
			name:      "clean report",
			score:     scoring.Score{Value: 90},
			detection: &detect.Result{Executed: true},
			want:      nil,
		},
		{
			name:      "duplicate match",
			score:     scoring.Score{Value: 90},
			detection: &detect.Result{Executed: true, Matches: []detect.Match{dup}},
			want:      []string{LabelPossibleDuplicate},
		},
		{
			name:      "revert match",
			score:     scoring.Score{Value: 90},
			detection: &detect.Result{Executed: true, Reverts: []detect.Match{dup}},
			want:      []string{LabelPossibleRevert},
		},
		{
			name:      "low quality",
			score:     scoring.Score{Value: 30},
			detection: &detect.Result{Executed: true},
			want:      []string{LabelLowQuality},
		},
		{
			name:      "nil detection still scores",
			score:     scoring.Score{Value: 10},
			detection: nil,
			want:      []string{LabelLowQuality},
		},
		{
			name:  "everything at once",
			score: scoring.Score{Value: 0},
			detection: &detect.Result{
				Executed: true,
				Matches:  []detect.Match{dup},
				Reverts:  []detect.Match{dup},
			},
			want: []string{LabelPossibleDuplicate, LabelPossibleRevert, LabelLowQuality},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Desired(tt.score, tt.detection, scoring.DefaultThresholds())
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSyncAddsMissingAndRemovesStale(t *testing.T) {
	client := &fakeLabeler{labels: []gh.Label{
		{Name: "enhancement"}, // not ours, must survive
		{Name: LabelLowQuality},
	}}

	err := Sync(context.Background(), client, "acme", "widgets", 42,
		[]string{LabelPossibleDuplicate})
	require.NoError(t, err)

	assert.Equal(t, []string{LabelPossibleDuplicate}, client.added)
	assert.Equal(t, []string{LabelLowQuality}, client.removed)
}

func TestSyncIsIdempotent(t *testing.T) {
	client := &fakeLabeler{labels: []gh.Label{{Name: LabelPossibleDuplicate}}}

	err := Sync(context.Background(), client, "acme", "widgets", 42,
		[]string{LabelPossibleDuplicate})
	require.NoError(t, err)

	assert.Empty(t, client.added)
	assert.Empty(t, client.removed)
}

func TestSyncNeverTouchesForeignLabels(t *testing.T) {
	client := &fakeLabeler{labels: []gh.Label{
		{Name: "bug"}, {Name: "needs-review"},
	}}

	require.NoError(t, Sync(context.Background(), client, "acme", "widgets", 42, nil))
	assert.Empty(t, client.added)
	assert.Empty(t, client.removed)
}

func TestSyncPropagatesListError(t *testing.T) {
	client := &fakeLabeler{listErr: errors.New("boom")}

	err := Sync(context.Background(), client, "acme", "widgets", 42, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, client.listErr))
}
