// Package api is the typed client for the expense backend's REST API.
//
// Every call takes a context and is cancelled with it; the client
// holds no per-user state. The bearer token is resolved per call via
// TokenFunc so one client instance serves all sessions.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"spendview/internal/core"
)

// TokenFunc resolves the bearer token for an outgoing request. An
// empty return means the call goes out unauthenticated.
type TokenFunc func(ctx context.Context) string

type Client struct {
	baseURL string
	httpc   *http.Client
	token   TokenFunc
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client, mainly for
// tests and custom transports.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) { c.httpc = httpc }
}

// WithTokenFunc sets the per-request token resolver.
func WithTokenFunc(fn TokenFunc) Option {
	return func(c *Client) { c.token = fn }
}

// NewClient builds a client for the backend at baseURL, for example
// "https://api.example.com". The /api/v1 prefix is added here.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 15 * time.Second},
		token:   func(context.Context) string { return "" },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Signup registers a new account. The endpoint returns no token; the
// caller logs in afterwards to open a session.
func (c *Client) Signup(ctx context.Context, username, email, password string) error {
	body := credentials{Username: username, Email: email, Password: password}
	return c.do(ctx, http.MethodPost, "/user/signup", body, nil)
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, email, password string) (AuthResult, error) {
	body := credentials{Email: email, Password: password}
	var out envelope[authData]
	if err := c.do(ctx, http.MethodPost, "/user/login", body, &out); err != nil {
		return AuthResult{}, err
	}
	return authResult(out.Data), nil
}

// Me fetches the profile behind the current token.
func (c *Client) Me(ctx context.Context) (core.User, error) {
	var out envelope[core.User]
	if err := c.do(ctx, http.MethodGet, "/user/me", nil, &out); err != nil {
		return core.User{}, err
	}
	return out.Data, nil
}

// UpdateProfile changes username and/or password. Email is immutable
// server-side; empty fields are left untouched.
func (c *Client) UpdateProfile(ctx context.Context, username, password string) (core.User, error) {
	body := profileUpdate{Username: username, Password: password}
	var out envelope[core.User]
	if err := c.do(ctx, http.MethodPatch, "/user/me/update", body, &out); err != nil {
		return core.User{}, err
	}
	return out.Data, nil
}

// DeleteAccount removes the account behind the current token.
func (c *Client) DeleteAccount(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/user/me/delete", nil, nil)
}

// CreateExpense stores a new expense and returns the server's copy.
func (c *Client) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	var out envelope[wireExpense]
	if err := c.do(ctx, http.MethodPost, "/expense/create", expenseBody(e), &out); err != nil {
		return core.Expense{}, err
	}
	return out.Data.toDomain(), nil
}

// Expense fetches a single expense by its server-assigned id.
func (c *Client) Expense(ctx context.Context, id string) (core.Expense, error) {
	var out envelope[wireExpense]
	if err := c.do(ctx, http.MethodGet, "/expense/"+url.PathEscape(id), nil, &out); err != nil {
		return core.Expense{}, err
	}
	return out.Data.toDomain(), nil
}

// UpdateExpense overwrites an expense's editable fields.
func (c *Client) UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	var out envelope[wireExpense]
	path := "/expense/" + url.PathEscape(e.ID)
	if err := c.do(ctx, http.MethodPatch, path, expenseBody(e), &out); err != nil {
		return core.Expense{}, err
	}
	return out.Data.toDomain(), nil
}

// DeleteExpense removes an expense by id.
func (c *Client) DeleteExpense(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/expense/"+url.PathEscape(id), nil, nil)
}

// Expenses fetches one page of the caller's expenses.
func (c *Client) Expenses(ctx context.Context, page, limit int) (Page, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	var out envelope[pageData]
	if err := c.do(ctx, http.MethodGet, "/expenses/all?"+q.Encode(), nil, &out); err != nil {
		return Page{}, err
	}
	return Page{
		Expenses:   toDomainExpenses(out.Data.Expenses),
		TotalPages: out.Data.TotalPages,
	}, nil
}

// ExpensesInCategory fetches every expense in one category, without
// pagination.
func (c *Client) ExpensesInCategory(ctx context.Context, category string) ([]core.Expense, error) {
	q := url.Values{}
	q.Set("category", category)
	var out envelope[[]wireExpense]
	if err := c.do(ctx, http.MethodGet, "/expenses?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return toDomainExpenses(out.Data), nil
}

// ExpensesByCategory fetches the per-category aggregates.
func (c *Client) ExpensesByCategory(ctx context.Context) ([]CategoryBucket, error) {
	var out envelope[[]categoryData]
	if err := c.do(ctx, http.MethodGet, "/expenses/by-category", nil, &out); err != nil {
		return nil, err
	}
	buckets := make([]CategoryBucket, 0, len(out.Data))
	for _, d := range out.Data {
		buckets = append(buckets, CategoryBucket{
			Category: core.Category(d.Category),
			Total:    core.MoneyFromFloat(d.Total),
		})
	}
	return buckets, nil
}

// Timeline fetches the per-month spending aggregates.
func (c *Client) Timeline(ctx context.Context) ([]TimelinePoint, error) {
	var out envelope[[]timelineData]
	if err := c.do(ctx, http.MethodGet, "/expenses/timeline", nil, &out); err != nil {
		return nil, err
	}
	points := make([]TimelinePoint, 0, len(out.Data))
	for _, d := range out.Data {
		month, err := time.Parse("2006-01", d.Month)
		if err != nil {
			return nil, fmt.Errorf("parse timeline month %q: %w", d.Month, err)
		}
		points = append(points, TimelinePoint{
			Month: month,
			Total: core.MoneyFromFloat(d.Total),
		})
	}
	return points, nil
}

// Ping checks that the backend is reachable. Any HTTP response counts
// as reachable, including 401; only transport failures are errors.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/user/me", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("backend unreachable: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/api/v1"+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.token(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &Error{Status: resp.StatusCode}
	// Up to 8KB of body is enough for any server message.
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	if err == nil {
		var body errorBody
		if json.Unmarshal(raw, &body) == nil {
			if body.Message != "" {
				apiErr.Message = body.Message
			} else {
				apiErr.Message = body.Error
			}
		}
	}
	return apiErr
}

func authResult(d authData) AuthResult {
	return AuthResult{
		Token: d.Token,
		User:  core.User{Username: d.Username, Email: d.Email},
	}
}

func expenseBody(e core.Expense) expensePayload {
	return expensePayload{
		Name:     strings.TrimSpace(e.Name),
		Amount:   e.Amount.Float64(),
		Category: string(e.Category),
	}
}
