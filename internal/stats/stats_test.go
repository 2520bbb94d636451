package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"spendview/internal/core"
)

func expense(name string, cents int64, cat core.Category, date time.Time) core.Expense {
	return core.Expense{
		ID:       name,
		Name:     name,
		Amount:   core.Money{Cents: cents},
		Category: cat,
		Date:     date,
	}
}

func TestSummarize(t *testing.T) {
	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	lastMonth := now.AddDate(0, -1, 0)
	lastYear := now.AddDate(-1, 0, 0)

	expenses := []core.Expense{
		expense("rent", 120000, core.CategoryHousing, now),
		expense("milk", 350, core.CategoryGroceries, now.AddDate(0, 0, -3)),
		expense("old rent", 120000, core.CategoryHousing, lastMonth),
		expense("same month last year", 999, core.CategoryOthers, lastYear),
	}

	s := Summarize(expenses, now)
	assert.Equal(t, int64(241349), s.Total.Cents)
	assert.Equal(t, int64(120350), s.MonthTotal.Cents, "only current calendar month counts")
	assert.Equal(t, 4, s.Count)
	assert.Equal(t, int64(241349/4), s.Average.Cents)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, time.Now())
	assert.Equal(t, Summary{}, s)
	assert.Equal(t, int64(0), s.Average.Cents, "average is zero, not a division error")
}

func TestByCategory(t *testing.T) {
	now := time.Now()
	expenses := []core.Expense{
		expense("rent", 7500, core.CategoryHousing, now),
		expense("milk", 1500, core.CategoryGroceries, now),
		expense("bread", 1000, core.CategoryGroceries, now),
	}

	totals := ByCategory(expenses)
	assert.Len(t, totals, 2)

	assert.Equal(t, core.CategoryHousing, totals[0].Category)
	assert.Equal(t, int64(7500), totals[0].Total.Cents)
	assert.Equal(t, 1, totals[0].Count)
	assert.InDelta(t, 75.0, totals[0].Percent, 1e-9)

	assert.Equal(t, core.CategoryGroceries, totals[1].Category)
	assert.Equal(t, int64(2500), totals[1].Total.Cents)
	assert.Equal(t, 2, totals[1].Count)
	assert.InDelta(t, 25.0, totals[1].Percent, 1e-9)
}

func TestByCategoryUnknownFallsBackToOthers(t *testing.T) {
	totals := ByCategory([]core.Expense{
		expense("mystery", 100, core.Category("vacations"), time.Now()),
	})
	assert.Len(t, totals, 1)
	assert.Equal(t, core.CategoryOthers, totals[0].Category)
}

func TestFilter(t *testing.T) {
	now := time.Now()
	page := []core.Expense{
		expense("Milk", 350, core.CategoryGroceries, now),
		expense("Almond milk", 520, core.CategoryGroceries, now),
		expense("Milk frother", 2999, core.CategoryShopping, now),
		expense("Rent", 120000, core.CategoryHousing, now),
	}

	tests := []struct {
		name     string
		query    string
		category core.Category
		wantIDs  []string
	}{
		{"no filter", "", core.CategoryAll, []string{"Milk", "Almond milk", "Milk frother", "Rent"}},
		{"category only", "", core.CategoryGroceries, []string{"Milk", "Almond milk"}},
		{"query only is case-insensitive", "MILK", core.CategoryAll, []string{"Milk", "Almond milk", "Milk frother"}},
		{"category and query combine", "milk", core.CategoryGroceries, []string{"Milk", "Almond milk"}},
		{"query matches category text", "hous", core.CategoryAll, []string{"Rent"}},
		{"no match", "pizza", core.CategoryAll, []string{}},
		{"query is trimmed", "  rent  ", core.CategoryAll, []string{"Rent"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(page, tt.query, tt.category)
			ids := make([]string, 0, len(got))
			for _, e := range got {
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestClampPage(t *testing.T) {
	tests := []struct {
		page, totalPages, want int
	}{
		{1, 5, 1},
		{5, 5, 5},
		{6, 5, 5},
		{0, 5, 1},
		{-3, 5, 1},
		{2, 0, 1},
		{1, 0, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampPage(tt.page, tt.totalPages),
			"ClampPage(%d, %d)", tt.page, tt.totalPages)
	}
}
