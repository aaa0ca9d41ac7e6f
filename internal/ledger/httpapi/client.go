// Package httpapi implements the ledger ports against the REST ledger API.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"spendtrack/internal/core"
	"spendtrack/internal/ledger"
)

// maxErrorBody bounds how much of an error response is kept for messages.
const maxErrorBody = 512

type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// Ensure interface conformance
var _ ledger.Client = (*Client)(nil)

// Config holds the HTTP client settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client
}

func New(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errors.New("missing ledger base URL")
	}
	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse ledger base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid ledger URL scheme %q: must be http or https", u.Scheme)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{baseURL: u, http: hc}, nil
}

// ListExpenses implements ledger.ExpenseLedger
func (c *Client) ListExpenses(ctx context.Context, userID string) ([]core.Expense, error) {
	var records []expenseRecord
	if err := c.do(ctx, http.MethodGet, userPath("expenses", userID), nil, &records); err != nil {
		return nil, ledger.Unavailable("list expenses", err)
	}
	out := make([]core.Expense, 0, len(records))
	for _, r := range records {
		e, err := r.toCore()
		if err != nil {
			slog.WarnContext(ctx, "Skipping malformed expense record", "error", err)
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// CreateExpense implements ledger.ExpenseLedger
func (c *Client) CreateExpense(ctx context.Context, userID string, e core.Expense) (core.Expense, error) {
	var created expenseRecord
	if err := c.do(ctx, http.MethodPost, userPath("expenses", userID), toExpenseRecord(e), &created); err != nil {
		return core.Expense{}, ledger.Unavailable("create expense", err)
	}
	out, err := created.toCore()
	if err != nil {
		return core.Expense{}, ledger.Unavailable("create expense", err)
	}
	return out, nil
}

// ListIncomes implements ledger.IncomeLedger
func (c *Client) ListIncomes(ctx context.Context, userID string) ([]core.Income, error) {
	var records []incomeRecord
	if err := c.do(ctx, http.MethodGet, userPath("incomes", userID), nil, &records); err != nil {
		return nil, ledger.Unavailable("list incomes", err)
	}
	out := make([]core.Income, 0, len(records))
	for _, r := range records {
		in, err := r.toCore()
		if err != nil {
			slog.WarnContext(ctx, "Skipping malformed income record", "error", err)
			continue
		}
		out = append(out, in)
	}
	return out, nil
}

// AddOrUpdateIncome implements ledger.IncomeLedger
func (c *Client) AddOrUpdateIncome(ctx context.Context, userID string, in core.Income) (core.Income, error) {
	var saved incomeRecord
	if err := c.do(ctx, http.MethodPost, userPath("incomes", userID), toIncomeRecord(in), &saved); err != nil {
		return core.Income{}, ledger.Unavailable("add or update income", err)
	}
	out, err := saved.toCore()
	if err != nil {
		return core.Income{}, ledger.Unavailable("add or update income", err)
	}
	return out, nil
}

// ListBudgets implements ledger.BudgetLedger
func (c *Client) ListBudgets(ctx context.Context, userID string) ([]core.Budget, error) {
	var records []budgetRecord
	if err := c.do(ctx, http.MethodGet, userPath("budgets", userID), nil, &records); err != nil {
		return nil, ledger.Unavailable("list budgets", err)
	}
	out := make([]core.Budget, 0, len(records))
	for _, r := range records {
		b, err := r.toCore()
		if err != nil {
			slog.WarnContext(ctx, "Skipping malformed budget record", "error", err)
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// SetBudget implements ledger.BudgetLedger
func (c *Client) SetBudget(ctx context.Context, userID string, b core.Budget) (core.Budget, error) {
	body := budgetRecord{CategoryID: b.CategoryID, Amount: b.Amount.Float()}
	var saved budgetRecord
	if err := c.do(ctx, http.MethodPut, userPath("budgets", userID), body, &saved); err != nil {
		return core.Budget{}, ledger.Unavailable("set budget", err)
	}
	out, err := saved.toCore()
	if err != nil {
		return core.Budget{}, ledger.Unavailable("set budget", err)
	}
	return out, nil
}

// ListCategories implements ledger.CategoryLedger
func (c *Client) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	var records []categoryRecord
	if err := c.do(ctx, http.MethodGet, userPath("categories", userID), nil, &records); err != nil {
		return nil, ledger.Unavailable("list categories", err)
	}
	out := make([]core.Category, 0, len(records))
	for _, r := range records {
		out = append(out, r.toCore())
	}
	return out, nil
}

// CreateCategory implements ledger.CategoryLedger
func (c *Client) CreateCategory(ctx context.Context, userID string, cat core.Category) (core.Category, error) {
	var created categoryRecord
	if err := c.do(ctx, http.MethodPost, userPath("categories", userID), toCategoryRecord(cat), &created); err != nil {
		return core.Category{}, ledger.Unavailable("create category", err)
	}
	return created.toCore(), nil
}

// UpdateCategory implements ledger.CategoryLedger
func (c *Client) UpdateCategory(ctx context.Context, userID string, cat core.Category) (core.Category, error) {
	path := userPath("categories", userID) + "/" + strconv.FormatInt(cat.ID, 10)
	var updated categoryRecord
	if err := c.do(ctx, http.MethodPut, path, toCategoryRecord(cat), &updated); err != nil {
		return core.Category{}, ledger.Unavailable("update category", err)
	}
	return updated.toCore(), nil
}

// DeleteCategory implements ledger.CategoryLedger
func (c *Client) DeleteCategory(ctx context.Context, userID string, id int64) error {
	path := userPath("categories", userID) + "/" + strconv.FormatInt(id, 10)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return ledger.Unavailable("delete category", err)
	}
	return nil
}

func userPath(resource, userID string) string {
	return "/" + resource + "/user/" + url.PathEscape(userID)
}

// do sends body as JSON and decodes the response into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ledger.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	slog.DebugContext(ctx, "Ledger call completed",
		"method", method,
		"path", path,
		"status_code", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := &ledger.StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%w: %w", ledger.ErrNotFound, statusErr)
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusRequestTimeout:
			return fmt.Errorf("%w: %w", ledger.ErrRemoteUnavailable, statusErr)
		default:
			return fmt.Errorf("%w: %w", ledger.ErrRemoteRejected, statusErr)
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %w", ledger.ErrRemoteUnavailable, err)
	}
	return nil
}
