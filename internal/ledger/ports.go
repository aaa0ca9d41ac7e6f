// Package ledger defines the outbound ports to the remote ledger, the
// service of record for expenses, incomes, budgets and custom categories.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"spendtrack/internal/core"
)

// Ports for outbound adapters. Every call is keyed by the user identifier.
type (
	ExpenseLedger interface {
		ListExpenses(ctx context.Context, userID string) ([]core.Expense, error)
		// CreateExpense returns the server copy with its assigned id.
		CreateExpense(ctx context.Context, userID string, e core.Expense) (core.Expense, error)
	}

	IncomeLedger interface {
		ListIncomes(ctx context.Context, userID string) ([]core.Income, error)
		// AddOrUpdateIncome lets the server decide whether the income is new
		// or replaces an existing one.
		AddOrUpdateIncome(ctx context.Context, userID string, in core.Income) (core.Income, error)
	}

	BudgetLedger interface {
		ListBudgets(ctx context.Context, userID string) ([]core.Budget, error)
		SetBudget(ctx context.Context, userID string, b core.Budget) (core.Budget, error)
	}

	CategoryLedger interface {
		ListCategories(ctx context.Context, userID string) ([]core.Category, error)
		CreateCategory(ctx context.Context, userID string, c core.Category) (core.Category, error)
		UpdateCategory(ctx context.Context, userID string, c core.Category) (core.Category, error)
		DeleteCategory(ctx context.Context, userID string, id int64) error
	}

	// Client is the full remote ledger surface.
	Client interface {
		ExpenseLedger
		IncomeLedger
		BudgetLedger
		CategoryLedger
	}
)

var (
	ErrRemoteUnavailable = errors.New("remote ledger unavailable")
	ErrRemoteRejected    = errors.New("remote ledger rejected request")
	ErrNotFound          = errors.New("remote record not found")
)

// StatusError carries the HTTP status of a failed ledger call.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("ledger status %d", e.StatusCode)
	}
	return fmt.Sprintf("ledger status %d: %s", e.StatusCode, e.Body)
}

// Unavailable wraps err so that errors.Is(err, ErrRemoteUnavailable) holds,
// unless it already carries one of the ledger sentinels.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrRemoteUnavailable) || errors.Is(err, ErrRemoteRejected) || errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrRemoteUnavailable, err)
}
