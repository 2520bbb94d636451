package http

import (
	"html/template"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"spendview/internal/api"
	"spendview/internal/core"
	"spendview/internal/log"
	"spendview/internal/stats"
)

// statsPageLimit is how much of the ledger the dashboard summarizes.
// Matches what one page of the backend's listing can return at most.
const statsPageLimit = 1000

type dashboardPage struct {
	basePage
	Stats        stats.Summary
	Recent       []core.Expense
	HasExpenses  bool
	SpendingJSON template.JS
}

type spendingSlice struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// handleDashboard fetches the summary set and the recent list
// concurrently; either failure fails the page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	var (
		all    api.Page
		recent api.Page
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		all, err = s.backend.Expenses(ctx, 1, statsPageLimit)
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = s.backend.Expenses(ctx, 1, 5)
		return err
	})
	if err := g.Wait(); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Dashboard fetch failed",
			log.FieldOperation, log.OpList,
			log.FieldError, err)
		s.renderError(w, r, http.StatusBadGateway,
			api.Message(err, "Could not load your dashboard. Please try again."))
		return
	}

	summary := stats.Summarize(all.Expenses, time.Now())
	byCategory := stats.ByCategory(all.Expenses)

	slices := make([]spendingSlice, 0, len(byCategory))
	for _, ct := range byCategory {
		slices = append(slices, spendingSlice{
			Label: ct.Category.Title(),
			Value: ct.Total.Float64(),
		})
	}

	s.render(w, r, http.StatusOK, "dashboard.html", dashboardPage{
		basePage:     s.page(r, "Dashboard", "dashboard"),
		Stats:        summary,
		Recent:       recent.Expenses,
		HasExpenses:  summary.Count > 0,
		SpendingJSON: chartJSON(slices),
	})
}
