package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"spendtrack/internal/aggregator"
	"spendtrack/internal/core"
	"spendtrack/internal/identity"
	"spendtrack/internal/ledger"
	"spendtrack/internal/registry"
)

var (
	ErrEmptyUserID     = errors.New("empty user id")
	ErrInvalidCurrency = errors.New("invalid currency code")
	ErrInvalidDate     = errors.New("invalid date, expected YYYY-MM-DD")
)

// Notifier publishes committed changes. Publishing is best effort.
type Notifier interface {
	PublishChange(ctx context.Context, ev core.ChangeEvent) error
}

// Options configures a LedgerService.
type Options struct {
	Ledger   ledger.Client
	Identity identity.Store
	Notifier Notifier // optional
	// Remote marks Ledger as a remote service of record. Category and
	// budget changes then require a logged-in user.
	Remote          bool
	DefaultCurrency string
	SummaryCache    aggregator.SummaryCache // optional
}

// LedgerService composes the category registry, the expense and income
// books and the summary aggregator behind one session-aware API.
type LedgerService struct {
	ledger   ledger.Client
	store    identity.Store
	sessions identity.StoreResolver
	notifier Notifier
	remote   bool

	registry *registry.Registry
	expenses *aggregator.ExpenseBook
	incomes  *aggregator.IncomeBook
	agg      *aggregator.Aggregator

	closeOnce sync.Once
	now       func() time.Time
}

func NewLedgerService(opts Options) (*LedgerService, error) {
	if opts.Ledger == nil {
		return nil, fmt.Errorf("ledger client is required")
	}
	if opts.Identity == nil {
		return nil, fmt.Errorf("identity store is required")
	}
	currency := strings.ToUpper(strings.TrimSpace(opts.DefaultCurrency))
	if currency == "" {
		currency = identity.DefaultCurrency
	}

	s := &LedgerService{
		ledger:   opts.Ledger,
		store:    opts.Identity,
		sessions: identity.StoreResolver{Store: opts.Identity, FallbackCurrency: currency},
		notifier: opts.Notifier,
		remote:   opts.Remote,
		now:      time.Now,
	}
	s.registry = registry.New(registry.WithMirror(&ledgerMirror{ledger: opts.Ledger, budgets: opts.Ledger, sessions: s.sessions}))
	s.expenses = aggregator.NewExpenseBook(opts.Ledger, s.sessions)
	s.incomes = aggregator.NewIncomeBook(opts.Ledger, s.sessions)
	s.agg = aggregator.New(s.registry, s.expenses, s.incomes, opts.SummaryCache)
	return s, nil
}

// Session reads the current identity.
func (s *LedgerService) Session(ctx context.Context) (identity.Session, error) {
	return s.sessions.Resolve(ctx)
}

// pin resolves the session once and pins it in ctx for the operation.
func (s *LedgerService) pin(ctx context.Context) (context.Context, identity.Session, error) {
	sess, err := s.sessions.Resolve(ctx)
	if err != nil {
		return ctx, identity.Session{}, fmt.Errorf("resolve session: %w", err)
	}
	return identity.WithSession(ctx, sess), sess, nil
}

// Login stores userID. Callers follow with Load to fetch the user's data.
func (s *LedgerService) Login(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrEmptyUserID
	}
	if err := s.store.SetItem(ctx, identity.KeyUserID, userID); err != nil {
		return fmt.Errorf("store user id: %w", err)
	}
	slog.InfoContext(ctx, "User logged in", "user_id", userID)
	return nil
}

// Logout forgets the user and drops their remote data from memory. Local
// anonymous categories are dropped as well.
func (s *LedgerService) Logout(ctx context.Context) error {
	if err := s.store.RemoveItem(ctx, identity.KeyUserID); err != nil {
		return fmt.Errorf("remove user id: %w", err)
	}
	s.registry.ReplaceCustom(nil, s.registry.Writes())
	s.registry.ReplaceBudgets(nil, s.registry.Writes())
	ctx = identity.WithSession(ctx, identity.Session{})
	s.expenses.Refresh(ctx)
	s.incomes.Refresh(ctx)
	slog.InfoContext(ctx, "User logged out")
	return nil
}

// SetCurrency stores the display currency, a three-letter code.
func (s *LedgerService) SetCurrency(ctx context.Context, code string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 || strings.IndexFunc(code, func(r rune) bool { return r < 'A' || r > 'Z' }) >= 0 {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	if err := s.store.SetItem(ctx, identity.KeyCurrency, code); err != nil {
		return fmt.Errorf("store currency: %w", err)
	}
	return nil
}

// Load fetches custom categories, budgets, expenses and incomes in
// parallel. Every part degrades to empty on failure; the failures are
// joined into the returned error, which callers may treat as a warning.
func (s *LedgerService) Load(ctx context.Context) error {
	ctx, sess, err := s.pin(ctx)
	if err != nil {
		return err
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	record := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		errs = append(errs, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if sess.Authenticated() {
		since := s.registry.Writes()
		g.Go(func() error {
			cats, err := s.ledger.ListCategories(gctx, sess.UserID)
			if err != nil && canceled(gctx, err) {
				record(fmt.Errorf("load categories: %w", err))
				return nil
			}
			if err != nil {
				slog.WarnContext(gctx, "Failed to load custom categories", "error", err)
				record(ledger.Unavailable("load categories", err))
				cats = nil
			}
			if !s.registry.ReplaceCustom(cats, since) {
				slog.DebugContext(gctx, "Discarding stale category load")
			}
			return nil
		})
		g.Go(func() error {
			budgets, err := s.ledger.ListBudgets(gctx, sess.UserID)
			if err != nil && canceled(gctx, err) {
				record(fmt.Errorf("load budgets: %w", err))
				return nil
			}
			if err != nil {
				slog.WarnContext(gctx, "Failed to load budgets", "error", err)
				record(ledger.Unavailable("load budgets", err))
				budgets = nil
			}
			if !s.registry.ReplaceBudgets(budgets, since) {
				slog.DebugContext(gctx, "Discarding stale budget load")
			}
			return nil
		})
	}
	g.Go(func() error {
		s.expenses.Refresh(gctx)
		if err := s.expenses.Status().Err; err != nil {
			record(err)
		}
		return nil
	})
	g.Go(func() error {
		s.incomes.Refresh(gctx)
		if err := s.incomes.Status().Err; err != nil {
			record(err)
		}
		return nil
	})
	_ = g.Wait()

	slog.InfoContext(ctx, "Ledger loaded",
		"authenticated", sess.Authenticated(),
		"categories", len(s.registry.List()),
		"failures", len(errs))
	return errors.Join(errs...)
}

// canceled reports whether a failed call ended because ctx did, in which
// case its result says nothing about the ledger and is dropped.
func canceled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}

// Categories returns defaults followed by customs, with budgets.
func (s *LedgerService) Categories() []core.Category {
	return s.registry.List()
}

// CategoryDraft is the user input for a new custom category.
type CategoryDraft struct {
	Name  string
	Icon  string
	Color string
}

func (s *LedgerService) AddCategory(ctx context.Context, d CategoryDraft) (core.Category, error) {
	ctx, sess, err := s.pinForRegistry(ctx)
	if err != nil {
		return core.Category{}, err
	}
	c, err := s.registry.AddCustom(ctx, core.Category{Name: d.Name, Icon: d.Icon, Color: d.Color})
	if err != nil {
		return core.Category{}, err
	}
	s.publish(ctx, sess, core.ChangeCategoryCreated, c.ID)
	return c, nil
}

func (s *LedgerService) UpdateCategory(ctx context.Context, id int64, u core.CategoryUpdate) (core.Category, error) {
	ctx, sess, err := s.pinForRegistry(ctx)
	if err != nil {
		return core.Category{}, err
	}
	c, err := s.registry.UpdateCustom(ctx, id, u)
	if err != nil {
		return core.Category{}, err
	}
	s.publish(ctx, sess, core.ChangeCategoryUpdated, c.ID)
	return c, nil
}

// DeleteCategory removes a custom category. Expenses recorded against it
// are kept and still count in the overview.
func (s *LedgerService) DeleteCategory(ctx context.Context, id int64) error {
	ctx, sess, err := s.pinForRegistry(ctx)
	if err != nil {
		return err
	}
	_, existed := s.registry.Lookup(id)
	if err := s.registry.DeleteCustom(ctx, id); err != nil {
		return err
	}
	if _, still := s.registry.Lookup(id); existed && !still {
		s.publish(ctx, sess, core.ChangeCategoryDeleted, id)
	}
	return nil
}

// SetBudget sets the budget of a category. Negative or non-finite amounts
// are rejected and the previous budget is kept.
func (s *LedgerService) SetBudget(ctx context.Context, id int64, amount float64) error {
	ctx, sess, err := s.pinForRegistry(ctx)
	if err != nil {
		return err
	}
	if err := s.registry.SetBudget(ctx, id, amount); err != nil {
		return err
	}
	s.publish(ctx, sess, core.ChangeBudgetSet, id)
	return nil
}

func (s *LedgerService) pinForRegistry(ctx context.Context) (context.Context, identity.Session, error) {
	ctx, sess, err := s.pin(ctx)
	if err != nil {
		return ctx, sess, err
	}
	if s.remote && !sess.Authenticated() {
		return ctx, sess, core.ErrNotAuthenticated
	}
	return ctx, sess, nil
}

// ExpenseDraft is the user input for a new expense.
type ExpenseDraft struct {
	Amount     string
	CategoryID int64
	Note       string
	Date       string // YYYY-MM-DD, empty for today
}

// AddExpense parses the draft, records it with the ledger and merges the
// confirmed expense.
func (s *LedgerService) AddExpense(ctx context.Context, d ExpenseDraft) (core.Expense, error) {
	ctx, sess, err := s.pin(ctx)
	if err != nil {
		return core.Expense{}, err
	}
	amount, err := core.ParseAmount(d.Amount)
	if err != nil {
		return core.Expense{}, err
	}
	if d.CategoryID == 0 {
		return core.Expense{}, core.ErrMissingCategory
	}
	cat, ok := s.registry.Lookup(d.CategoryID)
	if !ok {
		return core.Expense{}, fmt.Errorf("expense category %d: %w", d.CategoryID, core.ErrCategoryNotFound)
	}
	date, err := parseDate(d.Date)
	if err != nil {
		return core.Expense{}, err
	}

	e, err := s.expenses.Add(ctx, core.Expense{
		Amount:       amount,
		CategoryID:   cat.ID,
		CategoryName: cat.Name,
		Note:         strings.TrimSpace(d.Note),
		Date:         date,
	})
	if err != nil {
		return core.Expense{}, err
	}
	s.publish(ctx, sess, core.ChangeExpenseCreated, e.ID)
	return e, nil
}

// IncomeDraft is the user input for a new or edited income. A non-zero ID
// asks the ledger to replace that income.
type IncomeDraft struct {
	ID         int64
	Amount     string
	CategoryID *int64
	Note       string
	Date       string
	Currency   string
}

func (s *LedgerService) AddIncome(ctx context.Context, d IncomeDraft) (core.Income, error) {
	ctx, sess, err := s.pin(ctx)
	if err != nil {
		return core.Income{}, err
	}
	amount, err := core.ParseAmount(d.Amount)
	if err != nil {
		return core.Income{}, err
	}
	if d.CategoryID != nil {
		if _, ok := s.registry.Lookup(*d.CategoryID); !ok {
			return core.Income{}, fmt.Errorf("income category %d: %w", *d.CategoryID, core.ErrCategoryNotFound)
		}
	}
	date, err := parseDate(d.Date)
	if err != nil {
		return core.Income{}, err
	}

	in, err := s.incomes.Add(ctx, core.Income{
		ID:         d.ID,
		Amount:     amount,
		CategoryID: d.CategoryID,
		Note:       strings.TrimSpace(d.Note),
		Date:       date,
		Currency:   strings.ToUpper(strings.TrimSpace(d.Currency)),
	})
	if err != nil {
		return core.Income{}, err
	}
	s.publish(ctx, sess, core.ChangeIncomeSaved, in.ID)
	return in, nil
}

// Expenses returns the current expense collection.
func (s *LedgerService) Expenses() []core.Expense {
	items, _ := s.expenses.Snapshot()
	return items
}

// Incomes returns the current income collection.
func (s *LedgerService) Incomes() []core.Income {
	items, _ := s.incomes.Snapshot()
	return items
}

// Close stops accepting results from calls still in flight.
func (s *LedgerService) Close() error {
	s.closeOnce.Do(func() {
		s.expenses.Close()
		s.incomes.Close()
	})
	return nil
}

func (s *LedgerService) publish(ctx context.Context, sess identity.Session, kind core.ChangeKind, id int64) {
	if s.notifier == nil || !sess.Authenticated() {
		return
	}
	ev := core.ChangeEvent{Kind: kind, UserID: sess.UserID, EntityID: id, OccurredAt: s.now()}
	if err := s.notifier.PublishChange(ctx, ev); err != nil {
		// The ledger already committed the change.
		slog.ErrorContext(ctx, "Failed to publish change event",
			"kind", kind, "entity_id", id, "error", err)
	}
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}
