package services

import (
	"context"
	"fmt"

	"spendtrack/internal/core"
	"spendtrack/internal/identity"
	"spendtrack/internal/ledger"
	"spendtrack/internal/registry"
)

// ledgerMirror forwards registry mutations to the ledger for the session
// pinned in the context. Anonymous changes stay local.
type ledgerMirror struct {
	ledger   ledger.CategoryLedger
	budgets  ledger.BudgetLedger
	sessions identity.Resolver
}

// Ensure interface conformance
var _ registry.Mirror = (*ledgerMirror)(nil)

func (m *ledgerMirror) user(ctx context.Context) (string, error) {
	sess, err := m.sessions.Resolve(ctx)
	if err != nil {
		return "", err
	}
	return sess.UserID, nil
}

func (m *ledgerMirror) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	userID, err := m.user(ctx)
	if err != nil || userID == "" {
		return c, err
	}
	confirmed, err := m.ledger.CreateCategory(ctx, userID, c)
	if err != nil {
		return core.Category{}, ledger.Unavailable("create category", err)
	}
	if confirmed.ID == 0 {
		return core.Category{}, fmt.Errorf("create category: %w: no id assigned", ledger.ErrRemoteRejected)
	}
	return confirmed, nil
}

func (m *ledgerMirror) UpdateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	userID, err := m.user(ctx)
	if err != nil || userID == "" {
		return c, err
	}
	confirmed, err := m.ledger.UpdateCategory(ctx, userID, c)
	return confirmed, ledger.Unavailable("update category", err)
}

func (m *ledgerMirror) DeleteCategory(ctx context.Context, id int64) error {
	userID, err := m.user(ctx)
	if err != nil || userID == "" {
		return err
	}
	return ledger.Unavailable("delete category", m.ledger.DeleteCategory(ctx, userID, id))
}

func (m *ledgerMirror) SetBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	userID, err := m.user(ctx)
	if err != nil || userID == "" {
		return b, err
	}
	confirmed, err := m.budgets.SetBudget(ctx, userID, b)
	return confirmed, ledger.Unavailable("set budget", err)
}
