// Package stats derives presentation-ready aggregates from a fetched
// page of expenses. Everything here is pure and recomputed per fetch;
// nothing is persisted.
package stats

import (
	"sort"
	"strings"
	"time"

	"spendview/internal/core"
)

// Summary is the dashboard stat block over a loaded set of expenses.
type Summary struct {
	Total      core.Money
	MonthTotal core.Money
	Average    core.Money
	Count      int
}

// CategoryTotal is an amount aggregated by category.
type CategoryTotal struct {
	Category core.Category
	Total    core.Money
	Count    int
	Percent  float64 // share of the grand total, 0-100
}

// Summarize computes total, current-calendar-month total, average and
// count for the loaded set. The month boundary is taken from now.
func Summarize(expenses []core.Expense, now time.Time) Summary {
	var s Summary
	year, month := now.Year(), now.Month()
	for _, e := range expenses {
		s.Total.Cents += e.Amount.Cents
		s.Count++
		if e.Date.Year() == year && e.Date.Month() == month {
			s.MonthTotal.Cents += e.Amount.Cents
		}
	}
	if s.Count > 0 {
		s.Average.Cents = s.Total.Cents / int64(s.Count)
	}
	return s
}

// ByCategory groups the loaded set into per-category totals, sorted by
// total descending. Percent is each category's share of the grand total.
func ByCategory(expenses []core.Expense) []CategoryTotal {
	byCat := make(map[core.Category]*CategoryTotal)
	var grand int64
	for _, e := range expenses {
		cat := e.Category
		if !cat.Valid() {
			cat = core.CategoryOthers
		}
		ct, ok := byCat[cat]
		if !ok {
			ct = &CategoryTotal{Category: cat}
			byCat[cat] = ct
		}
		ct.Total.Cents += e.Amount.Cents
		ct.Count++
		grand += e.Amount.Cents
	}

	totals := make([]CategoryTotal, 0, len(byCat))
	for _, ct := range byCat {
		if grand > 0 {
			ct.Percent = float64(ct.Total.Cents) * 100 / float64(grand)
		}
		totals = append(totals, *ct)
	}
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].Total.Cents != totals[j].Total.Cents {
			return totals[i].Total.Cents > totals[j].Total.Cents
		}
		return totals[i].Category < totals[j].Category
	})
	return totals
}

// Filter narrows the currently loaded page. A category other than the
// "all" sentinel must match exactly; a non-empty query matches
// case-insensitively against the expense name or its category.
func Filter(expenses []core.Expense, query string, category core.Category) []core.Expense {
	query = strings.ToLower(strings.TrimSpace(query))
	filtered := make([]core.Expense, 0, len(expenses))
	for _, e := range expenses {
		if category != core.CategoryAll && e.Category != category {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(e.Name), query) &&
			!strings.Contains(strings.ToLower(string(e.Category)), query) {
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered
}

// ClampPage bounds a requested page to [1, totalPages]. A totalPages
// of zero (empty result set) clamps to 1.
func ClampPage(page, totalPages int) int {
	if totalPages < 1 {
		return 1
	}
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}
