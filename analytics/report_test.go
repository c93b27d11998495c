package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecorder(t *testing.T, now time.Time) *Recorder {
	t.Helper()
	r, err := NewRecorder(context.Background(), nil,
		WithClock(func() time.Time { return now }),
		WithSession(&Session{ID: "test-session", StartedAt: now.Add(-30 * time.Minute)}),
	)
	require.NoError(t, err)
	return r
}

func TestBuildReportAggregates(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := newTestRecorder(t, now)

	r.RecordView(ctx, "art-1", "First", "tech")
	r.RecordView(ctx, "art-2", "Second", "tech")
	r.RecordView(ctx, "art-1", "First", "tech")
	r.RecordSearch(ctx, "golang", 5)
	r.RecordSearch(ctx, "golang", 2)
	r.RecordSearch(ctx, "caching", 1)
	r.RecordGeneration(ctx, "generics", 800, true)
	r.RecordGeneration(ctx, "channels", 500, false)
	r.RecordGeneration(ctx, "slices", 600, true)

	report := r.BuildReport()

	assert.Equal(t, 9, report.TotalEvents)
	assert.Equal(t, 2, report.GenerationSuccesses)
	assert.Equal(t, 1, report.GenerationFailures)
	assert.InDelta(t, 30.0, report.SessionMinutes, 0.01)

	wantContent := []ContentViews{
		{ContentID: "art-1", Title: "First", Views: 2},
		{ContentID: "art-2", Title: "Second", Views: 1},
	}
	assert.Empty(t, cmp.Diff(wantContent, report.TopContent))

	wantQueries := []QueryCount{
		{Query: "golang", Count: 2},
		{Query: "caching", Count: 1},
	}
	assert.Empty(t, cmp.Diff(wantQueries, report.TopQueries))
}

func TestBuildReportWindowFilters(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := newTestRecorder(t, now)

	// One event well outside the default window, one inside.
	r.Record(ctx, Event{
		Kind:      EventView,
		Timestamp: now.Add(-48 * time.Hour),
		View:      &ViewEvent{ContentID: "old", Title: "Old"},
	})
	r.Record(ctx, Event{
		Kind:      EventView,
		Timestamp: now.Add(-time.Hour),
		View:      &ViewEvent{ContentID: "recent", Title: "Recent"},
	})

	report := r.BuildReport()
	assert.Equal(t, 1, report.TotalEvents)
	require.Len(t, report.TopContent, 1)
	assert.Equal(t, "recent", report.TopContent[0].ContentID)

	// A wider window picks both up.
	report = r.BuildReportWindow(72 * time.Hour)
	assert.Equal(t, 2, report.TotalEvents)
}

func TestTopNKeepsFirstEncounteredOrderOnTies(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := newTestRecorder(t, now)

	// Six distinct queries, all with one hit: the ranking keeps the
	// first five in the order they were first seen.
	for _, q := range []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta"} {
		r.RecordSearch(ctx, q, 1)
	}

	report := r.BuildReport()
	require.Len(t, report.TopQueries, TopN)
	got := make([]string, 0, TopN)
	for _, q := range report.TopQueries {
		got = append(got, q.Query)
	}
	assert.Equal(t, []string{"alpha", "beta", "gamma", "delta", "epsilon"}, got)
}

func TestBuildReportIsPure(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := newTestRecorder(t, now)

	r.RecordView(ctx, "art-1", "First", "")
	r.RecordSearch(ctx, "golang", 5)

	sizeBefore := r.Size()
	first := r.BuildReport()
	second := r.BuildReport()

	assert.Empty(t, cmp.Diff(first, second))
	assert.Equal(t, sizeBefore, r.Size())
}

func TestReportIgnoresPerformanceInRankings(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := newTestRecorder(t, now)

	r.RecordPerformance(ctx, "content", 42, false)

	report := r.BuildReport()
	assert.Equal(t, 1, report.TotalEvents)
	assert.Empty(t, report.TopContent)
	assert.Empty(t, report.TopQueries)
}
