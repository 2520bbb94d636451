package http

import (
	"html/template"
	"net/http"
	"sort"

	"golang.org/x/sync/errgroup"

	"spendview/internal/api"
	"spendview/internal/core"
	"spendview/internal/log"
)

type analyticsPage struct {
	basePage
	HasData      bool
	TopCats      []categoryRow
	CategoryJSON template.JS
	TimelineJSON template.JS
}

type categoryRow struct {
	Category core.Category
	Total    core.Money
	Percent  float64
}

type timelineSlice struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// handleAnalytics fetches both server-side aggregates concurrently
// and renders the category and timeline charts.
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	var (
		buckets  []api.CategoryBucket
		timeline []api.TimelinePoint
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		buckets, err = s.backend.ExpensesByCategory(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		timeline, err = s.backend.Timeline(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Analytics fetch failed",
			log.FieldOperation, log.OpList,
			log.FieldError, err)
		s.renderError(w, r, http.StatusBadGateway,
			api.Message(err, "Could not load analytics. Please try again."))
		return
	}

	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Total.Cents > buckets[j].Total.Cents
	})

	var grand int64
	for _, b := range buckets {
		grand += b.Total.Cents
	}

	catSlices := make([]spendingSlice, 0, len(buckets))
	rows := make([]categoryRow, 0, len(buckets))
	for _, b := range buckets {
		catSlices = append(catSlices, spendingSlice{
			Label: b.Category.Title(),
			Value: b.Total.Float64(),
		})
		row := categoryRow{Category: b.Category, Total: b.Total}
		if grand > 0 {
			row.Percent = float64(b.Total.Cents) * 100 / float64(grand)
		}
		rows = append(rows, row)
	}

	// Top five categories by amount
	if len(rows) > 5 {
		rows = rows[:5]
	}

	timeSlices := make([]timelineSlice, 0, len(timeline))
	for _, p := range timeline {
		timeSlices = append(timeSlices, timelineSlice{
			Label: p.Month.Format("Jan 2006"),
			Value: p.Total.Float64(),
		})
	}

	s.render(w, r, http.StatusOK, "analytics.html", analyticsPage{
		basePage:     s.page(r, "Analytics", "analytics"),
		HasData:      len(buckets) > 0 || len(timeline) > 0,
		TopCats:      rows,
		CategoryJSON: chartJSON(catSlices),
		TimelineJSON: chartJSON(timeSlices),
	})
}
