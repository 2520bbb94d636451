package core

import (
	"errors"
	"strings"
	"time"
)

const (
	CategoryIncome        Category = "income"
	CategoryHousing       Category = "housing"
	CategoryGroceries     Category = "groceries"
	CategoryShopping      Category = "shopping"
	CategoryEntertainment Category = "entertainment"
	CategoryOthers        Category = "others"

	// CategoryAll is a filter sentinel used only by list views.
	// It is never a stored value and never sent to the API.
	CategoryAll Category = "all"
)

type (
	Category string

	// User is the client's copy of the authenticated identity.
	// Identity is the email; the client never mutates it.
	User struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	}

	// Expense is a remotely owned expense record. The ID is always
	// server-assigned; the client only ever round-trips it.
	Expense struct {
		ID       string
		Name     string
		Amount   Money
		Category Category
		Date     time.Time
	}
)

var (
	ErrEmptyName       = errors.New("empty expense name")
	ErrNameTooLong     = errors.New("expense name too long (max 200 characters)")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidCategory = errors.New("invalid category")
)

// Categories returns the closed set of storable categories.
func Categories() []Category {
	return []Category{
		CategoryIncome,
		CategoryHousing,
		CategoryGroceries,
		CategoryShopping,
		CategoryEntertainment,
		CategoryOthers,
	}
}

// FilterCategories returns the category choices for list filters,
// with the "all" sentinel first.
func FilterCategories() []Category {
	return append([]Category{CategoryAll}, Categories()...)
}

func (c Category) Valid() bool {
	switch c {
	case CategoryIncome, CategoryHousing, CategoryGroceries,
		CategoryShopping, CategoryEntertainment, CategoryOthers:
		return true
	}
	return false
}

// Title returns the category name with the first letter upper-cased.
func (c Category) Title() string {
	s := string(c)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Validate checks the fields the client is responsible for before a
// create or update call. Server-side rules still apply on top.
func (e Expense) Validate() error {
	name := strings.TrimSpace(e.Name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > 200 {
		return ErrNameTooLong
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if !e.Category.Valid() {
		return ErrInvalidCategory
	}
	return nil
}
