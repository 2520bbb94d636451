package core

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExpenseValidate(t *testing.T) {
	valid := Expense{
		Name:     "Grocery shopping",
		Amount:   Money{Cents: 4250},
		Category: CategoryGroceries,
		Date:     time.Now(),
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name    string
		mutate  func(e *Expense)
		wantErr error
	}{
		{"empty name", func(e *Expense) { e.Name = "   " }, ErrEmptyName},
		{"name too long", func(e *Expense) { e.Name = strings.Repeat("x", 201) }, ErrNameTooLong},
		{"negative amount", func(e *Expense) { e.Amount = Money{Cents: -5} }, ErrInvalidAmount},
		{"unknown category", func(e *Expense) { e.Category = "vacations" }, ErrInvalidCategory},
		{"all sentinel is not storable", func(e *Expense) { e.Category = CategoryAll }, ErrInvalidCategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid
			tt.mutate(&e)
			assert.ErrorIs(t, e.Validate(), tt.wantErr)
		})
	}
}

func TestCategorySets(t *testing.T) {
	assert.Len(t, Categories(), 6)
	for _, c := range Categories() {
		assert.True(t, c.Valid(), "category %q should be valid", c)
	}

	filters := FilterCategories()
	assert.Equal(t, CategoryAll, filters[0])
	assert.Len(t, filters, 7)
	assert.False(t, CategoryAll.Valid())
}

func TestCategoryTitle(t *testing.T) {
	assert.Equal(t, "Groceries", CategoryGroceries.Title())
	assert.Equal(t, "All", CategoryAll.Title())
	assert.Equal(t, "", Category("").Title())
}
