package analytics

import (
	"sort"
	"time"
)

// DefaultReportWindow is the default look-back for BuildReport.
const DefaultReportWindow = 24 * time.Hour

// TopN is how many entries the per-content and per-query rankings keep.
const TopN = 5

// ContentViews is one row of the most-viewed ranking.
type ContentViews struct {
	ContentID string `json:"contentId"`
	Title     string `json:"title"`
	Views     int    `json:"views"`
}

// QueryCount is one row of the most-frequent-query ranking.
type QueryCount struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}

// Report is an aggregate view over the event log within a time window.
type Report struct {
	GeneratedAt         time.Time      `json:"generatedAt"`
	Window              time.Duration  `json:"window"`
	TotalEvents         int            `json:"totalEvents"`
	TopContent          []ContentViews `json:"topContent"`
	TopQueries          []QueryCount   `json:"topQueries"`
	GenerationSuccesses int            `json:"generationSuccesses"`
	GenerationFailures  int            `json:"generationFailures"`
	SessionMinutes      float64        `json:"sessionMinutes"`
}

// BuildReport aggregates events from the last 24 hours.
func (r *Recorder) BuildReport() Report {
	return r.BuildReportWindow(DefaultReportWindow)
}

// BuildReportWindow aggregates events whose timestamp falls within the
// given window of now. It is a pure read over the log: the buffer is
// never mutated, so repeated calls with no intervening records return
// identical results.
func (r *Recorder) BuildReportWindow(window time.Duration) Report {
	now := r.now()
	cutoff := now.Add(-window)

	r.mu.Lock()
	events := r.buf.Snapshot()
	r.mu.Unlock()

	report := Report{
		GeneratedAt:    now,
		Window:         window,
		SessionMinutes: r.session.Minutes(now),
	}

	// Aggregation preserves first-encountered order so that ties in the
	// rankings keep a stable, documented order.
	viewIdx := make(map[string]int)
	var views []ContentViews
	queryIdx := make(map[string]int)
	var queries []QueryCount

	for _, e := range events {
		if e.Timestamp.Before(cutoff) || e.Timestamp.After(now) {
			continue
		}
		report.TotalEvents++

		switch e.Kind {
		case EventView:
			if e.View == nil {
				continue
			}
			i, ok := viewIdx[e.View.ContentID]
			if !ok {
				i = len(views)
				viewIdx[e.View.ContentID] = i
				views = append(views, ContentViews{ContentID: e.View.ContentID, Title: e.View.Title})
			}
			views[i].Views++
		case EventSearch:
			if e.Search == nil {
				continue
			}
			i, ok := queryIdx[e.Search.Query]
			if !ok {
				i = len(queries)
				queryIdx[e.Search.Query] = i
				queries = append(queries, QueryCount{Query: e.Search.Query})
			}
			queries[i].Count++
		case EventGeneration:
			if e.Generation == nil {
				continue
			}
			if e.Generation.Success {
				report.GenerationSuccesses++
			} else {
				report.GenerationFailures++
			}
		}
	}

	sort.SliceStable(views, func(a, b int) bool { return views[a].Views > views[b].Views })
	sort.SliceStable(queries, func(a, b int) bool { return queries[a].Count > queries[b].Count })

	report.TopContent = topContent(views)
	report.TopQueries = topQueries(queries)
	return report
}

func topContent(views []ContentViews) []ContentViews {
	if len(views) > TopN {
		views = views[:TopN]
	}
	return views
}

func topQueries(queries []QueryCount) []QueryCount {
	if len(queries) > TopN {
		queries = queries[:TopN]
	}
	return queries
}
