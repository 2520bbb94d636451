package http

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"spendview/internal/api"
	"spendview/internal/core"
	"spendview/internal/log"
	"spendview/internal/stats"
)

const expensesPerPage = 10

type expensesPage struct {
	basePage
	Expenses   []core.Expense
	Query      string
	Category   core.Category
	Filters    []core.Category
	Page       int
	TotalPages int
	PrevURL    string
	NextURL    string
	Filtered   bool
}

// handleExpenses renders one fetched page, narrowed by the category
// and search filters. A page number past the end is clamped and
// refetched so deleting the last item of the last page still shows
// something.
func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	category := core.CategoryAll
	if c := core.Category(r.URL.Query().Get("category")); c.Valid() {
		category = c
	}
	pageNum := 1
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			pageNum = n
		}
	}
	if pageNum < 1 {
		pageNum = 1
	}

	page, err := s.backend.Expenses(r.Context(), pageNum, expensesPerPage)
	if err != nil {
		s.renderListError(w, r, err)
		return
	}
	if clamped := stats.ClampPage(pageNum, page.TotalPages); clamped != pageNum {
		pageNum = clamped
		page, err = s.backend.Expenses(r.Context(), pageNum, expensesPerPage)
		if err != nil {
			s.renderListError(w, r, err)
			return
		}
	}

	filtered := stats.Filter(page.Expenses, q, category)

	data := expensesPage{
		basePage:   s.page(r, "Expenses", "expenses"),
		Expenses:   filtered,
		Query:      q,
		Category:   category,
		Filters:    core.FilterCategories(),
		Page:       pageNum,
		TotalPages: page.TotalPages,
		Filtered:   q != "" || category != core.CategoryAll,
	}
	if pageNum > 1 {
		data.PrevURL = listURL(q, category, pageNum-1)
	}
	if pageNum < page.TotalPages {
		data.NextURL = listURL(q, category, pageNum+1)
	}
	s.render(w, r, http.StatusOK, "expenses.html", data)
}

func (s *Server) renderListError(w http.ResponseWriter, r *http.Request, err error) {
	log.FromContext(r.Context()).ErrorContext(r.Context(), "Expense list fetch failed",
		log.FieldOperation, log.OpList,
		log.FieldError, err)
	s.renderError(w, r, http.StatusBadGateway,
		api.Message(err, "Could not load your expenses. Please try again."))
}

func listURL(q string, category core.Category, page int) string {
	v := url.Values{}
	if q != "" {
		v.Set("q", q)
	}
	if category != core.CategoryAll {
		v.Set("category", string(category))
	}
	if page > 1 {
		v.Set("page", strconv.Itoa(page))
	}
	if len(v) == 0 {
		return "/expenses"
	}
	return "/expenses?" + v.Encode()
}

type expenseFormPage struct {
	basePage
	Heading    string
	Action     string
	Name       string
	Amount     string
	Category   core.Category
	Categories []core.Category
	Editing    bool
}

func (s *Server) handleExpenseNew(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "expense_form.html", expenseFormPage{
		basePage:   s.page(r, "New expense", "expenses"),
		Heading:    "Add expense",
		Action:     "/expenses",
		Categories: core.Categories(),
	})
}

func (s *Server) handleExpenseCreate(w http.ResponseWriter, r *http.Request) {
	form, expense, formErr := s.parseExpenseForm(r)
	form.basePage = s.page(r, "New expense", "expenses")
	form.Heading = "Add expense"
	form.Action = "/expenses"
	if formErr != "" {
		form.Error = formErr
		s.render(w, r, http.StatusUnprocessableEntity, "expense_form.html", form)
		return
	}

	created, err := s.backend.CreateExpense(r.Context(), expense)
	if err != nil {
		form.Error = api.Message(err, "Could not save the expense. Please try again.")
		s.render(w, r, http.StatusUnprocessableEntity, "expense_form.html", form)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Expense created",
		log.FieldOperation, log.OpCreate,
		log.FieldExpenseID, created.ID,
		log.FieldCategory, string(created.Category))
	http.Redirect(w, r, "/expenses", http.StatusFound)
}

func (s *Server) handleExpenseEdit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	expense, err := s.backend.Expense(r.Context(), id)
	if err != nil {
		s.renderError(w, r, expenseErrorStatus(err),
			api.Message(err, "Could not load the expense."))
		return
	}

	s.render(w, r, http.StatusOK, "expense_form.html", expenseFormPage{
		basePage:   s.page(r, "Edit expense", "expenses"),
		Heading:    "Edit expense",
		Action:     "/expenses/" + url.PathEscape(id),
		Name:       expense.Name,
		Amount:     strconv.FormatFloat(expense.Amount.Float64(), 'f', 2, 64),
		Category:   expense.Category,
		Categories: core.Categories(),
		Editing:    true,
	})
}

func (s *Server) handleExpenseUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	form, expense, formErr := s.parseExpenseForm(r)
	form.basePage = s.page(r, "Edit expense", "expenses")
	form.Heading = "Edit expense"
	form.Action = "/expenses/" + url.PathEscape(id)
	form.Editing = true
	if formErr != "" {
		form.Error = formErr
		s.render(w, r, http.StatusUnprocessableEntity, "expense_form.html", form)
		return
	}

	expense.ID = id
	updated, err := s.backend.UpdateExpense(r.Context(), expense)
	if err != nil {
		form.Error = api.Message(err, "Could not update the expense. Please try again.")
		s.render(w, r, http.StatusUnprocessableEntity, "expense_form.html", form)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Expense updated",
		log.FieldOperation, log.OpUpdate,
		log.FieldExpenseID, updated.ID)
	http.Redirect(w, r, "/expenses", http.StatusFound)
}

func (s *Server) handleExpenseDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.backend.DeleteExpense(r.Context(), id); err != nil {
		s.renderError(w, r, expenseErrorStatus(err),
			api.Message(err, "Could not delete the expense. Please try again."))
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Expense deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldExpenseID, id)
	http.Redirect(w, r, "/expenses", http.StatusFound)
}

// parseExpenseForm reads and validates the shared create/edit form.
// The returned page echoes the raw input so the user can correct it.
func (s *Server) parseExpenseForm(r *http.Request) (expenseFormPage, core.Expense, string) {
	form := expenseFormPage{Categories: core.Categories()}
	if err := r.ParseForm(); err != nil {
		return form, core.Expense{}, "Invalid form submission"
	}

	form.Name = strings.TrimSpace(r.Form.Get("name"))
	form.Amount = strings.TrimSpace(r.Form.Get("amount"))
	form.Category = core.Category(r.Form.Get("category"))

	cents, err := core.ParseDecimalToCents(form.Amount)
	if err != nil {
		return form, core.Expense{}, "Enter a valid amount, like 12.50"
	}

	expense := core.Expense{
		Name:     form.Name,
		Amount:   core.Money{Cents: cents},
		Category: form.Category,
	}
	if err := expense.Validate(); err != nil {
		return form, core.Expense{}, expenseValidationMessage(err)
	}
	return form, expense, ""
}

func expenseValidationMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrEmptyName):
		return "Give the expense a name"
	case errors.Is(err, core.ErrNameTooLong):
		return "The expense name is too long (max 200 characters)"
	case errors.Is(err, core.ErrInvalidCategory):
		return "Pick a category from the list"
	default:
		return "Enter a valid amount, like 12.50"
	}
}

func expenseErrorStatus(err error) int {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}
