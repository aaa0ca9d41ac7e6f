// Package memory is an in-process ledger. It backs the "memory" ledger
// backend and stands in for the remote API in tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"spendtrack/internal/core"
	"spendtrack/internal/ledger"
)

type account struct {
	expenses   []core.Expense
	incomes    []core.Income
	budgets    map[int64]core.Money
	categories []core.Category
}

type Store struct {
	mu       sync.Mutex
	nextID   int64
	accounts map[string]*account
	fail     error
	now      func() time.Time
}

// Ensure interface conformance
var _ ledger.Client = (*Store)(nil)

func New() *Store {
	return &Store{
		nextID:   1000,
		accounts: make(map[string]*account),
		now:      time.Now,
	}
}

// SetFailure makes every following call fail with err wrapped in
// ledger.ErrRemoteUnavailable. Pass nil to recover.
func (s *Store) SetFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

func (s *Store) check(op string) error {
	if s.fail != nil {
		return ledger.Unavailable(op, s.fail)
	}
	return nil
}

func (s *Store) account(userID string) *account {
	a, ok := s.accounts[userID]
	if !ok {
		a = &account{budgets: make(map[int64]core.Money)}
		s.accounts[userID] = a
	}
	return a
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// ListExpenses implements ledger.ExpenseLedger
func (s *Store) ListExpenses(_ context.Context, userID string) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("list expenses"); err != nil {
		return nil, err
	}
	return append([]core.Expense(nil), s.account(userID).expenses...), nil
}

// CreateExpense stores the expense with a fresh id. Like the real API it
// keeps only the category id and stamps today's date when none is given.
func (s *Store) CreateExpense(_ context.Context, userID string, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("create expense"); err != nil {
		return core.Expense{}, err
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w: %w", ledger.ErrRemoteRejected, err)
	}
	e.ID = s.id()
	e.CategoryName = ""
	e.Type = core.TypeExpense
	e.Date = s.normalize(e.Date)
	a := s.account(userID)
	a.expenses = append(a.expenses, e)
	return e, nil
}

// ListIncomes implements ledger.IncomeLedger
func (s *Store) ListIncomes(_ context.Context, userID string) ([]core.Income, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("list incomes"); err != nil {
		return nil, err
	}
	return append([]core.Income(nil), s.account(userID).incomes...), nil
}

// AddOrUpdateIncome replaces the income with the same id when one exists,
// otherwise it appends a new one.
func (s *Store) AddOrUpdateIncome(_ context.Context, userID string, in core.Income) (core.Income, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("add or update income"); err != nil {
		return core.Income{}, err
	}
	if err := in.Validate(); err != nil {
		return core.Income{}, fmt.Errorf("add or update income: %w: %w", ledger.ErrRemoteRejected, err)
	}
	in.Date = s.normalize(in.Date)
	a := s.account(userID)
	if in.ID != 0 {
		for i := range a.incomes {
			if a.incomes[i].ID == in.ID {
				a.incomes[i] = in
				return in, nil
			}
		}
	}
	in.ID = s.id()
	a.incomes = append(a.incomes, in)
	return in, nil
}

// ListBudgets implements ledger.BudgetLedger
func (s *Store) ListBudgets(_ context.Context, userID string) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("list budgets"); err != nil {
		return nil, err
	}
	a := s.account(userID)
	out := make([]core.Budget, 0, len(a.budgets))
	for id, amount := range a.budgets {
		out = append(out, core.Budget{CategoryID: id, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CategoryID < out[j].CategoryID })
	return out, nil
}

// SetBudget implements ledger.BudgetLedger
func (s *Store) SetBudget(_ context.Context, userID string, b core.Budget) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("set budget"); err != nil {
		return core.Budget{}, err
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, fmt.Errorf("set budget: %w: %w", ledger.ErrRemoteRejected, err)
	}
	s.account(userID).budgets[b.CategoryID] = b.Amount
	return b, nil
}

// ListCategories implements ledger.CategoryLedger
func (s *Store) ListCategories(_ context.Context, userID string) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("list categories"); err != nil {
		return nil, err
	}
	return append([]core.Category(nil), s.account(userID).categories...), nil
}

// CreateCategory implements ledger.CategoryLedger
func (s *Store) CreateCategory(_ context.Context, userID string, c core.Category) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("create category"); err != nil {
		return core.Category{}, err
	}
	c.ID = s.id()
	c.IsDefault = false
	c.Budget = nil
	a := s.account(userID)
	a.categories = append(a.categories, c)
	return c, nil
}

// UpdateCategory implements ledger.CategoryLedger
func (s *Store) UpdateCategory(_ context.Context, userID string, c core.Category) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("update category"); err != nil {
		return core.Category{}, err
	}
	a := s.account(userID)
	for i := range a.categories {
		if a.categories[i].ID == c.ID {
			c.IsDefault = false
			c.Budget = nil
			a.categories[i] = c
			return c, nil
		}
	}
	return core.Category{}, fmt.Errorf("update category %d: %w", c.ID, ledger.ErrNotFound)
}

// DeleteCategory implements ledger.CategoryLedger. Expenses keep their
// category id.
func (s *Store) DeleteCategory(_ context.Context, userID string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("delete category"); err != nil {
		return err
	}
	a := s.account(userID)
	for i := range a.categories {
		if a.categories[i].ID == id {
			a.categories = append(a.categories[:i], a.categories[i+1:]...)
			delete(a.budgets, id)
			return nil
		}
	}
	return nil
}

func (s *Store) normalize(d time.Time) time.Time {
	if d.IsZero() {
		d = s.now()
	}
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}
