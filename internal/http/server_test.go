package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendview/internal/api"
	"spendview/internal/core"
	"spendview/internal/log"
	"spendview/internal/session"
	"spendview/internal/storage"
)

type fakeBackend struct {
	mu sync.Mutex

	expenses   []core.Expense
	totalPages int
	pagesSeen  []int
	limitsSeen []int
	listErr    error

	created  []core.Expense
	updated  []core.Expense
	deleted  []string
	writeErr error

	buckets  []api.CategoryBucket
	timeline []api.TimelinePoint

	profile    core.User
	profileErr error
	passwords  []string
	deletedAcc bool
}

func (f *fakeBackend) Expenses(ctx context.Context, page, limit int) (api.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pagesSeen = append(f.pagesSeen, page)
	f.limitsSeen = append(f.limitsSeen, limit)
	if f.listErr != nil {
		return api.Page{}, f.listErr
	}
	expenses := f.expenses
	if limit < len(expenses) {
		expenses = expenses[:limit]
	}
	return api.Page{Expenses: expenses, TotalPages: f.totalPages}, nil
}

func (f *fakeBackend) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return core.Expense{}, f.writeErr
	}
	e.ID = "created-1"
	f.created = append(f.created, e)
	return e, nil
}

func (f *fakeBackend) Expense(ctx context.Context, id string) (core.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.expenses {
		if e.ID == id {
			return e, nil
		}
	}
	return core.Expense{}, &api.Error{Status: http.StatusNotFound, Message: "Expense not found"}
}

func (f *fakeBackend) UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return core.Expense{}, f.writeErr
	}
	f.updated = append(f.updated, e)
	return e, nil
}

func (f *fakeBackend) DeleteExpense(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeBackend) ExpensesByCategory(ctx context.Context) ([]api.CategoryBucket, error) {
	return f.buckets, nil
}

func (f *fakeBackend) Timeline(ctx context.Context) ([]api.TimelinePoint, error) {
	return f.timeline, nil
}

func (f *fakeBackend) UpdateProfile(ctx context.Context, username, password string) (core.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profileErr != nil {
		return core.User{}, f.profileErr
	}
	if username != "" {
		f.profile.Username = username
	}
	if password != "" {
		f.passwords = append(f.passwords, password)
	}
	return f.profile, nil
}

func (f *fakeBackend) DeleteAccount(ctx context.Context) error {
	f.deletedAcc = true
	return nil
}

// fakeAuth implements session.API for login/signup/me.
type fakeAuth struct {
	result  api.AuthResult
	authErr error
	me      core.User
	calls   []string
}

func (f *fakeAuth) Login(ctx context.Context, email, password string) (api.AuthResult, error) {
	f.calls = append(f.calls, "login")
	return f.result, f.authErr
}

func (f *fakeAuth) Signup(ctx context.Context, username, email, password string) error {
	f.calls = append(f.calls, "signup")
	return f.authErr
}

func (f *fakeAuth) Me(ctx context.Context) (core.User, error) {
	return f.me, nil
}

type memRepo struct {
	mu   sync.Mutex
	rows map[string]storage.Session
}

func newMemRepo() *memRepo { return &memRepo{rows: make(map[string]storage.Session)} }

func (m *memRepo) Save(ctx context.Context, s storage.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[s.ID] = s
	return nil
}

func (m *memRepo) Get(ctx context.Context, id string) (storage.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok {
		return storage.Session{}, storage.ErrSessionNotFound
	}
	return s, nil
}

func (m *memRepo) Touch(ctx context.Context, id string) error { return nil }

func (m *memRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

type fixture struct {
	server  *Server
	backend *fakeBackend
	auth    *fakeAuth
	repo    *memRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	backend := &fakeBackend{totalPages: 1, profile: core.User{Username: "ada", Email: "ada@example.com"}}
	auth := &fakeAuth{
		result: api.AuthResult{Token: "tok-1", User: core.User{Username: "ada", Email: "ada@example.com"}},
		me:     core.User{Username: "ada", Email: "ada@example.com"},
	}
	repo := newMemRepo()
	sessions := session.NewStore(repo, auth, time.Minute, logger)
	t.Cleanup(sessions.Close)

	srv, err := NewServer(Config{
		Addr:      ":0",
		Backend:   backend,
		Sessions:  sessions,
		Logger:    logger,
		RateLimit: 10000,
	})
	require.NoError(t, err)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	return &fixture{server: srv, backend: backend, auth: auth, repo: repo}
}

func (f *fixture) loggedInCookie(t *testing.T) *http.Cookie {
	t.Helper()
	require.NoError(t, f.repo.Save(context.Background(), storage.Session{ID: "sid", Token: "tok-1"}))
	return &http.Cookie{Name: session.CookieName, Value: "sid"}
}

func (f *fixture) get(path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	f.server.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) post(path string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	f.server.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	return nil
}

func TestLoginRedirectsToDashboard(t *testing.T) {
	f := newFixture(t)

	rec := f.post("/login", url.Values{
		"email":    {"ada@example.com"},
		"password": {"s3cret"},
	}, nil)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))

	cookie := sessionCookie(rec)
	require.NotNil(t, cookie, "session cookie is set")
	assert.True(t, cookie.HttpOnly)
	assert.NotEmpty(t, cookie.Value)
}

func TestLoginRejectedShowsServerMessage(t *testing.T) {
	f := newFixture(t)
	f.auth.authErr = &api.Error{Status: http.StatusUnauthorized, Message: "Invalid credentials"}

	rec := f.post("/login", url.Values{
		"email":    {"ada@example.com"},
		"password": {"wrong"},
	}, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid credentials")
	assert.Nil(t, sessionCookie(rec), "no cookie on failed login")
}

func TestSignupValidatesPasswordLength(t *testing.T) {
	f := newFixture(t)

	rec := f.post("/signup", url.Values{
		"username": {"ada"},
		"email":    {"ada@example.com"},
		"password": {"short"},
	}, nil)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "at least 8 characters")
}

func TestSignupRegistersThenLogsIn(t *testing.T) {
	f := newFixture(t)

	rec := f.post("/signup", url.Values{
		"username": {"ada"},
		"email":    {"ada@example.com"},
		"password": {"s3cret-pw"},
	}, nil)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
	assert.Equal(t, []string{"signup", "login"}, f.auth.calls,
		"signup endpoint first, then a regular login for the token")
	require.NotNil(t, sessionCookie(rec))
}

func TestGuardRedirectsAnonymous(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/dashboard", "/expenses", "/analytics", "/settings"} {
		rec := f.get(path, nil)
		assert.Equal(t, http.StatusFound, rec.Code, path)
		assert.Equal(t, "/login", rec.Header().Get("Location"), path)
	}
}

func TestLoginPageBouncesAuthenticated(t *testing.T) {
	f := newFixture(t)
	cookie := f.loggedInCookie(t)

	rec := f.get("/login", cookie)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
}

func TestDashboardRendersStats(t *testing.T) {
	f := newFixture(t)
	cookie := f.loggedInCookie(t)
	now := time.Now()
	f.backend.expenses = []core.Expense{
		{ID: "1", Name: "Rent", Amount: core.Money{Cents: 120000}, Category: core.CategoryHousing, Date: now},
		{ID: "2", Name: "Milk", Amount: core.Money{Cents: 350}, Category: core.CategoryGroceries, Date: now},
	}

	rec := f.get("/dashboard", cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "$1203.50", "total spending")
	assert.Contains(t, body, "Rent")
	assert.Contains(t, body, "spending-data")

	// One fetch for the summary set, one for the recent list
	assert.ElementsMatch(t, []int{1000, 5}, f.backend.limitsSeen)
}

func TestExpensesFilterNarrowsCurrentPage(t *testing.T) {
	f := newFixture(t)
	cookie := f.loggedInCookie(t)
	now := time.Now()
	f.backend.expenses = []core.Expense{
		{ID: "1", Name: "Milk", Amount: core.Money{Cents: 350}, Category: core.CategoryGroceries, Date: now},
		{ID: "2", Name: "Milk frother", Amount: core.Money{Cents: 2999}, Category: core.CategoryShopping, Date: now},
		{ID: "3", Name: "Rent", Amount: core.Money{Cents: 120000}, Category: core.CategoryHousing, Date: now},
	}

	rec := f.get("/expenses?q=milk&category=groceries", cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "Milk")
	assert.NotContains(t, body, "Milk frother")
	assert.NotContains(t, body, "Rent")
}

func TestExpensesPageClampRefetches(t *testing.T) {
	f := newFixture(t)
	cookie := f.loggedInCookie(t)
	f.backend.totalPages = 2

	rec := f.get("/expenses?page=9", cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []int{9, 2}, f.backend.pagesSeen, "out-of-range page refetched at the last page")
	assert.Contains(t, rec.Body.String(), "Page 2 of 2")
}

func TestExpenseCreate(t *testing.T) {
	f := newFixture(t)
	cookie := f.loggedInCookie(t)

	rec := f.post("/expenses", url.Values{
		"name":     {"Groceries run"},
		"amount":   {"42,50"},
		"category": {"groceries"},
	}, cookie)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/expenses", rec.Header().Get("Location"))

	require.Len(t, f.backend.created, 1)
	created := f.backend.created[0]
	assert.Equal(t, "Groceries run", created.Name)
	assert.Equal(t, int64(4250), created.Amount.Cents)
	assert.Equal(t, core.CategoryGroceries, created.Category)
}

func TestExpenseCreateInvalidAmount(t *testing.T) {
	f := newFixture(t)
	cookie := f.loggedInCookie(t)

	rec := f.post("/expenses", url.Values{
		"name":     {"Groceries run"},
		"amount":   {"-5"},
		"category": {"groceries"},
	}, cookie)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "valid amount")
	assert.Empty(t, f.backend.created)
}

func TestExpenseCreateKeepsInput(t *testing.T) {
	f := newFixture(t)
	cookie := f.loggedInCookie(t)

	rec := f.post("/expenses", url.Values{
		"name":     {"Mystery"},
		"amount":   {"10.00"},
		"category": {"vacations"},
	}, cookie)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Pick a category")
	assert.Contains(t, body, `value="Mystery"`, "entered name survives the error")
}

func TestExpenseUpdate(t *testing.T) {
	f := newFixture(t)
	cookie := f.loggedInCookie(t)

	rec := f.post("/expenses/abc", url.Values{
		"name":     {"Rent"},
		"amount":   {"1250"},
		"category": {"housing"},
	}, cookie)

	assert.Equal(t, http.StatusFound, rec.Code)
	require.Len(t, f.backend.updated, 1)
	assert.Equal(t, "abc", f.backend.updated[0].ID)
	assert.Equal(t, int64(125000), f.backend.updated[0].Amount.Cents)
}

func TestExpenseDelete(t *testing.T) {
	f := newFixture(t)
	cookie := f.loggedInCookie(t)

	rec := f.post("/expenses/abc/delete", nil, cookie)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, []string{"abc"}, f.backend.deleted)
}

func TestExpenseDeleteMissingShowsError(t *testing.T) {
	f := newFixture(t)
	cookie := f.loggedInCookie(t)
	f.backend.writeErr = &api.Error{Status: http.StatusNotFound, Message: "Expense not found"}

	rec := f.post("/expenses/nope/delete", nil, cookie)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Expense not found")
}

func TestAnalyticsRendersTopCategories(t *testing.T) {
	f := newFixture(t)
	cookie := f.loggedInCookie(t)
	f.backend.buckets = []api.CategoryBucket{
		{Category: core.CategoryGroceries, Total: core.Money{Cents: 2500}},
		{Category: core.CategoryHousing, Total: core.Money{Cents: 7500}},
	}
	f.backend.timeline = []api.TimelinePoint{
		{Month: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), Total: core.Money{Cents: 41025}},
	}

	rec := f.get("/analytics", cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "75.0%")
	assert.Contains(t, body, "25.0%")
	assert.Contains(t, body, "timeline-data")
}

func TestSettingsEmailIsReadOnly(t *testing.T) {
	f := newFixture(t)
	cookie := f.loggedInCookie(t)

	rec := f.get("/settings", cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "Email cannot be changed")
	assert.NotContains(t, body, `name="email"`, "email is never submitted")
}

func TestSettingsNoChanges(t *testing.T) {
	f := newFixture(t)
	cookie := f.loggedInCookie(t)

	rec := f.post("/settings", url.Values{
		"username": {"ada"},
	}, cookie)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No changes to update")
	assert.Equal(t, "ada", f.backend.profile.Username)
}

func TestSettingsUsernameUpdate(t *testing.T) {
	f := newFixture(t)
	cookie := f.loggedInCookie(t)

	rec := f.post("/settings", url.Values{
		"username": {"ada-lovelace"},
	}, cookie)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Profile updated")
	assert.Equal(t, "ada-lovelace", f.backend.profile.Username)
	assert.Empty(t, f.backend.passwords, "no password sent when only the username changed")
}

func TestSettingsPasswordChange(t *testing.T) {
	f := newFixture(t)
	cookie := f.loggedInCookie(t)

	rec := f.post("/settings", url.Values{
		"username": {"ada"},
		"password": {"n3w-s3cret-pw"},
	}, cookie)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Profile updated")
	assert.Equal(t, []string{"n3w-s3cret-pw"}, f.backend.passwords)
	assert.Equal(t, "ada", f.backend.profile.Username, "unchanged username not resent")
}

func TestSettingsShortPasswordRejected(t *testing.T) {
	f := newFixture(t)
	cookie := f.loggedInCookie(t)

	rec := f.post("/settings", url.Values{
		"password": {"short"},
	}, cookie)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "at least 8 characters")
	assert.Empty(t, f.backend.passwords)
}

func TestAccountDeleteEndsSession(t *testing.T) {
	f := newFixture(t)
	cookie := f.loggedInCookie(t)

	rec := f.post("/settings/delete", nil, cookie)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.True(t, f.backend.deletedAcc)
	assert.Empty(t, f.repo.rows, "session removed")
}

func TestLogoutAlwaysLandsOnLogin(t *testing.T) {
	f := newFixture(t)
	cookie := f.loggedInCookie(t)

	rec := f.post("/logout", nil, cookie)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.Empty(t, f.repo.rows)

	// Without a cookie the outcome is the same.
	rec = f.post("/logout", nil, nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestHealthEndpoints(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusOK, f.get("/healthz", nil).Code)
	assert.Equal(t, http.StatusOK, f.get("/readyz", nil).Code)
}
