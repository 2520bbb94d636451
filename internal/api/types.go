package api

import (
	"time"

	"spendview/internal/core"
)

// The backend wraps every successful payload in a data envelope and
// reports expenses with Mongo-style field names. These wire types stay
// private to this package; callers only ever see core types.

type envelope[T any] struct {
	Data T `json:"data"`
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

type credentials struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authData struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type profileUpdate struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

type wireExpense struct {
	ID       string  `json:"_id"`
	Name     string  `json:"expenseName"`
	Amount   float64 `json:"amount"`
	Category string  `json:"category"`
	Date     string  `json:"date"`
}

type expensePayload struct {
	Name     string  `json:"expenseName"`
	Amount   float64 `json:"amount"`
	Category string  `json:"category"`
}

type pageData struct {
	Expenses   []wireExpense `json:"expenses"`
	TotalPages int           `json:"totalPages"`
}

type categoryData struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
}

type timelineData struct {
	Month string  `json:"month"`
	Total float64 `json:"total"`
}

// AuthResult is a successful login: the bearer token plus the profile
// the server echoed back.
type AuthResult struct {
	Token string
	User  core.User
}

// Page is one page of the paginated expense listing.
type Page struct {
	Expenses   []core.Expense
	TotalPages int
}

// CategoryBucket is a server-side per-category aggregate.
type CategoryBucket struct {
	Category core.Category
	Total    core.Money
}

// TimelinePoint is a server-side per-month aggregate. Month is the
// first day of the month.
type TimelinePoint struct {
	Month time.Time
	Total core.Money
}

func (w wireExpense) toDomain() core.Expense {
	date, err := time.Parse(time.RFC3339, w.Date)
	if err != nil {
		// Some records carry a date-only string.
		date, _ = time.Parse("2006-01-02", w.Date)
	}
	return core.Expense{
		ID:       w.ID,
		Name:     w.Name,
		Amount:   core.MoneyFromFloat(w.Amount),
		Category: core.Category(w.Category),
		Date:     date,
	}
}

func toDomainExpenses(wire []wireExpense) []core.Expense {
	expenses := make([]core.Expense, 0, len(wire))
	for _, w := range wire {
		expenses = append(expenses, w.toDomain())
	}
	return expenses
}
