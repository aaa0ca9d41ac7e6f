package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"spendtrack/internal/cache"
	"spendtrack/internal/core"
	"spendtrack/internal/identity"
	"spendtrack/internal/ledger"
	"spendtrack/internal/ledger/memory"
	"spendtrack/internal/registry"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []core.ChangeEvent
	err    error
}

func (n *recordingNotifier) PublishChange(_ context.Context, ev core.ChangeEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

func (n *recordingNotifier) kinds() []core.ChangeKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]core.ChangeKind, len(n.events))
	for i, ev := range n.events {
		out[i] = ev.Kind
	}
	return out
}

type fixture struct {
	svc      *LedgerService
	ledger   *memory.Store
	store    *identity.MemoryStore
	notifier *recordingNotifier
}

func newFixture(t *testing.T, remote bool) fixture {
	t.Helper()
	f := fixture{
		ledger:   memory.New(),
		store:    identity.NewMemoryStore(),
		notifier: &recordingNotifier{},
	}
	svc, err := NewLedgerService(Options{
		Ledger:          f.ledger,
		Identity:        f.store,
		Notifier:        f.notifier,
		Remote:          remote,
		DefaultCurrency: "usd",
		SummaryCache:    cache.NewLRUCache[[]core.CategorySummary](8, time.Minute),
	})
	if err != nil {
		t.Fatalf("NewLedgerService: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	f.svc = svc
	return f
}

func TestNewLedgerServiceRequiresAdapters(t *testing.T) {
	if _, err := NewLedgerService(Options{Identity: identity.NewMemoryStore()}); err == nil {
		t.Fatal("expected error without ledger")
	}
	if _, err := NewLedgerService(Options{Ledger: memory.New()}); err == nil {
		t.Fatal("expected error without identity store")
	}
}

func TestLoginLoadsRemoteData(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	pets, _ := f.ledger.CreateCategory(ctx, "u1", core.Category{Name: "Pets"})
	_, _ = f.ledger.SetBudget(ctx, "u1", core.Budget{CategoryID: 1, Amount: core.Money{Cents: 10000}})
	_, _ = f.ledger.CreateExpense(ctx, "u1", core.Expense{Amount: core.Money{Cents: 2500}, CategoryID: 1})
	_, _ = f.ledger.AddOrUpdateIncome(ctx, "u1", core.Income{Amount: core.Money{Cents: 90000}})
	_, _ = f.ledger.CreateExpense(ctx, "someone-else", core.Expense{Amount: core.Money{Cents: 1}, CategoryID: 1})

	if err := f.svc.Login(ctx, "  u1 "); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := f.svc.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	sess, _ := f.svc.Session(ctx)
	if sess.UserID != "u1" || sess.Currency != "USD" {
		t.Fatalf("unexpected session %+v", sess)
	}

	cats := f.svc.Categories()
	if len(cats) != 11 || cats[10].ID != pets.ID {
		t.Fatalf("custom category not loaded: %+v", cats)
	}
	if len(f.svc.Expenses()) != 1 || len(f.svc.Incomes()) != 1 {
		t.Fatalf("unexpected records %+v %+v", f.svc.Expenses(), f.svc.Incomes())
	}

	view, err := f.svc.Summaries(ctx)
	if err != nil {
		t.Fatalf("Summaries: %v", err)
	}
	food := view.Categories[0]
	if food.TotalExpenses != "$25.00" || food.Budget != "$100.00" || food.BudgetRemaining != "$75.00" || food.OverBudget {
		t.Fatalf("unexpected food view %+v", food)
	}
	if view.Overview.Balance != "$875.00" {
		t.Fatalf("unexpected overview %+v", view.Overview)
	}

	if err := f.svc.Login(ctx, " "); !errors.Is(err, ErrEmptyUserID) {
		t.Fatalf("expected ErrEmptyUserID, got %v", err)
	}
}

func TestLoadDegradesToEmpty(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	_ = f.store.SetItem(ctx, identity.KeyUserID, "u1")
	_, _ = f.ledger.CreateExpense(ctx, "u1", core.Expense{Amount: core.Money{Cents: 100}, CategoryID: 2})

	f.ledger.SetFailure(errors.New("503"))
	err := f.svc.Load(ctx)
	if !errors.Is(err, ledger.ErrRemoteUnavailable) {
		t.Fatalf("expected remote error, got %v", err)
	}
	if len(f.svc.Expenses()) != 0 || len(f.svc.Categories()) != 10 {
		t.Fatalf("expected empty state after failure")
	}
	view, _ := f.svc.Summaries(ctx)
	if len(view.Errors) != 2 || view.Loading {
		t.Fatalf("expected two refresh errors, got %+v", view)
	}

	f.ledger.SetFailure(nil)
	if err := f.svc.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(f.svc.Expenses()) != 1 {
		t.Fatalf("expected recovery")
	}
}

func TestCanceledLoadKeepsState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	_, _ = f.ledger.CreateCategory(ctx, "u1", core.Category{Name: "Pets"})
	_, _ = f.ledger.SetBudget(ctx, "u1", core.Budget{CategoryID: 1, Amount: core.Money{Cents: 5000}})
	_, _ = f.ledger.CreateExpense(ctx, "u1", core.Expense{Amount: core.Money{Cents: 100}, CategoryID: 1})
	if err := f.svc.Login(ctx, "u1"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := f.svc.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	f.ledger.SetFailure(context.Canceled)
	if err := f.svc.Load(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation to be reported, got %v", err)
	}
	cats := f.svc.Categories()
	if len(cats) != 11 {
		t.Fatalf("canceled load dropped custom categories: %+v", cats)
	}
	if cats[0].Budget == nil || cats[0].Budget.Cents != 5000 {
		t.Fatalf("canceled load dropped budgets: %+v", cats[0])
	}
	if len(f.svc.Expenses()) != 1 {
		t.Fatalf("canceled load dropped expenses: %+v", f.svc.Expenses())
	}

	canceledCtx, cancel := context.WithCancel(ctx)
	cancel()
	f.ledger.SetFailure(nil)
	_ = f.svc.Load(canceledCtx)
	if len(f.svc.Categories()) != 11 || len(f.svc.Expenses()) != 1 {
		t.Fatalf("load with a canceled context changed state")
	}
}

func TestAddExpenseDraft(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	if _, err := f.svc.AddExpense(ctx, ExpenseDraft{Amount: "12.50", CategoryID: 1}); !errors.Is(err, core.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	_ = f.svc.Login(ctx, "u1")

	tests := []struct {
		name  string
		draft ExpenseDraft
		want  error
	}{
		{"bad amount", ExpenseDraft{Amount: "abc", CategoryID: 1}, core.ErrInvalidAmount},
		{"negative amount", ExpenseDraft{Amount: "-4", CategoryID: 1}, core.ErrInvalidAmount},
		{"missing category", ExpenseDraft{Amount: "4"}, core.ErrMissingCategory},
		{"unknown category", ExpenseDraft{Amount: "4", CategoryID: 999}, core.ErrCategoryNotFound},
		{"bad date", ExpenseDraft{Amount: "4", CategoryID: 1, Date: "03/04/2024"}, ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.AddExpense(ctx, tt.draft); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if len(f.svc.Expenses()) != 0 || len(f.notifier.kinds()) != 0 {
		t.Fatalf("rejected drafts changed state")
	}

	e, err := f.svc.AddExpense(ctx, ExpenseDraft{Amount: "12,345", CategoryID: 3, Note: " shoes ", Date: "2024-03-04"})
	if err != nil {
		t.Fatalf("AddExpense: %v", err)
	}
	if e.Amount.Cents != 1235 || e.CategoryName != "Shopping" || e.Note != "shoes" || e.Date.Format("2006-01-02") != "2024-03-04" {
		t.Fatalf("unexpected expense %+v", e)
	}

	f.svc.Load(ctx)
	f.svc.Load(ctx)
	if got := f.svc.Expenses(); len(got) != 1 {
		t.Fatalf("expected exactly one expense after refreshes, got %d", len(got))
	}
	if kinds := f.notifier.kinds(); len(kinds) != 1 || kinds[0] != core.ChangeExpenseCreated {
		t.Fatalf("unexpected events %v", kinds)
	}
}

func TestAddIncomeDraft(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	_ = f.svc.Login(ctx, "u1")
	_ = f.svc.SetCurrency(ctx, "eur")

	incomeID := registry.IncomeCategoryID
	in, err := f.svc.AddIncome(ctx, IncomeDraft{Amount: "1500", CategoryID: &incomeID})
	if err != nil {
		t.Fatalf("AddIncome: %v", err)
	}
	if in.Currency != "EUR" {
		t.Fatalf("expected session currency, got %q", in.Currency)
	}

	if _, err := f.svc.AddIncome(ctx, IncomeDraft{ID: in.ID, Amount: "1600", CategoryID: &incomeID}); err != nil {
		t.Fatalf("AddIncome update: %v", err)
	}
	if got := f.svc.Incomes(); len(got) != 1 || got[0].Amount.Cents != 160000 {
		t.Fatalf("expected one updated income, got %+v", got)
	}

	view, _ := f.svc.Summaries(ctx)
	if view.Currency != "EUR" || view.Overview.TotalIncome != "€1600.00" {
		t.Fatalf("unexpected view %+v", view.Overview)
	}
	if len(view.Overview.ForeignCurrencies) != 0 {
		t.Fatalf("unexpected foreign currencies %v", view.Overview.ForeignCurrencies)
	}

	for _, code := range []string{"usd", "XAF", "USD"} {
		if _, err := f.svc.AddIncome(ctx, IncomeDraft{Amount: "10", Currency: code}); err != nil {
			t.Fatalf("AddIncome %s: %v", code, err)
		}
	}
	view, _ = f.svc.Summaries(ctx)
	if got := view.Overview.ForeignCurrencies; len(got) != 2 || got[0] != "USD" || got[1] != "XAF" {
		t.Fatalf("foreign currencies = %v", got)
	}

	missing := int64(4242)
	if _, err := f.svc.AddIncome(ctx, IncomeDraft{Amount: "1", CategoryID: &missing}); !errors.Is(err, core.ErrCategoryNotFound) {
		t.Fatalf("expected ErrCategoryNotFound, got %v", err)
	}
}

func TestCategoryLifecycleIsMirrored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	if _, err := f.svc.AddCategory(ctx, CategoryDraft{Name: "Pets"}); !errors.Is(err, core.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	_ = f.svc.Login(ctx, "u1")

	pets, err := f.svc.AddCategory(ctx, CategoryDraft{Name: "Pets", Icon: "paw"})
	if err != nil {
		t.Fatalf("AddCategory: %v", err)
	}
	remote, _ := f.ledger.ListCategories(ctx, "u1")
	if len(remote) != 1 || remote[0].ID != pets.ID {
		t.Fatalf("category not mirrored with server id: %+v vs %+v", remote, pets)
	}

	name := "Pet care"
	if _, err := f.svc.UpdateCategory(ctx, pets.ID, core.CategoryUpdate{Name: &name}); err != nil {
		t.Fatalf("UpdateCategory: %v", err)
	}
	if err := f.svc.SetBudget(ctx, pets.ID, 40); err != nil {
		t.Fatalf("SetBudget: %v", err)
	}
	if _, err := f.svc.AddExpense(ctx, ExpenseDraft{Amount: "15", CategoryID: pets.ID}); err != nil {
		t.Fatalf("AddExpense: %v", err)
	}
	if err := f.svc.SetBudget(ctx, pets.ID, -1); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if b := f.svc.Categories()[10].Budget; b == nil || b.Cents != 4000 {
		t.Fatalf("negative budget changed state: %+v", b)
	}

	if err := f.svc.DeleteCategory(ctx, pets.ID); err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}
	if err := f.svc.DeleteCategory(ctx, 1); err != nil {
		t.Fatalf("deleting a default should be a no-op, got %v", err)
	}
	f.svc.Load(ctx)
	if len(f.svc.Categories()) != 10 {
		t.Fatalf("category not deleted remotely")
	}
	if len(f.svc.Expenses()) != 1 {
		t.Fatalf("expense of deleted category lost")
	}

	want := []core.ChangeKind{
		core.ChangeCategoryCreated,
		core.ChangeCategoryUpdated,
		core.ChangeBudgetSet,
		core.ChangeExpenseCreated,
		core.ChangeCategoryDeleted,
	}
	got := f.notifier.kinds()
	if len(got) != len(want) {
		t.Fatalf("unexpected events %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestMirrorFailureLeavesRegistryUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	_ = f.svc.Login(ctx, "u1")

	f.ledger.SetFailure(errors.New("timeout"))
	if _, err := f.svc.AddCategory(ctx, CategoryDraft{Name: "Pets"}); !errors.Is(err, ledger.ErrRemoteUnavailable) {
		t.Fatalf("expected ErrRemoteUnavailable, got %v", err)
	}
	if err := f.svc.SetBudget(ctx, 1, 10); !errors.Is(err, ledger.ErrRemoteUnavailable) {
		t.Fatalf("expected ErrRemoteUnavailable, got %v", err)
	}
	if cats := f.svc.Categories(); len(cats) != 10 || cats[0].Budget != nil {
		t.Fatalf("failed mirror changed registry")
	}
}

// idlessLedger confirms new categories without assigning an id.
type idlessLedger struct{ *memory.Store }

func (idlessLedger) CreateCategory(_ context.Context, _ string, c core.Category) (core.Category, error) {
	c.ID = 0
	return c, nil
}

func TestCategoryWithoutLedgerIDIsRejected(t *testing.T) {
	ctx := context.Background()
	svc, err := NewLedgerService(Options{
		Ledger:          idlessLedger{memory.New()},
		Identity:        identity.NewMemoryStore(),
		Remote:          true,
		DefaultCurrency: "USD",
	})
	if err != nil {
		t.Fatalf("NewLedgerService: %v", err)
	}
	defer svc.Close()
	if err := svc.Login(ctx, "u1"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	if _, err := svc.AddCategory(ctx, CategoryDraft{Name: "Pets"}); !errors.Is(err, ledger.ErrRemoteRejected) {
		t.Fatalf("expected ErrRemoteRejected, got %v", err)
	}
	if n := len(svc.Categories()); n != 10 {
		t.Fatalf("category kept under a local id: %d categories", n)
	}
}

func TestAnonymousLocalCategories(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	c, err := f.svc.AddCategory(ctx, CategoryDraft{Name: "Garden"})
	if err != nil {
		t.Fatalf("AddCategory: %v", err)
	}
	if c.ID <= registry.IncomeCategoryID {
		t.Fatalf("expected a local id, got %d", c.ID)
	}
	if err := f.svc.SetBudget(ctx, c.ID, 12.5); err != nil {
		t.Fatalf("SetBudget: %v", err)
	}
	if len(f.notifier.kinds()) != 0 {
		t.Fatalf("anonymous changes must not be published")
	}
}

func TestLogoutClearsUserData(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	_, _ = f.ledger.CreateCategory(ctx, "u1", core.Category{Name: "Pets"})
	_, _ = f.ledger.CreateExpense(ctx, "u1", core.Expense{Amount: core.Money{Cents: 5}, CategoryID: 1})
	_ = f.svc.Login(ctx, "u1")
	_ = f.svc.Load(ctx)
	if len(f.svc.Categories()) != 11 || len(f.svc.Expenses()) != 1 {
		t.Fatalf("user data not loaded")
	}

	if err := f.svc.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	sess, _ := f.svc.Session(ctx)
	if sess.Authenticated() {
		t.Fatalf("still authenticated")
	}
	if len(f.svc.Categories()) != 10 || len(f.svc.Expenses()) != 0 {
		t.Fatalf("user data kept after logout")
	}
}

func TestSetCurrency(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	for _, code := range []string{"", "EURO", "E1R"} {
		if err := f.svc.SetCurrency(ctx, code); !errors.Is(err, ErrInvalidCurrency) {
			t.Fatalf("SetCurrency(%q) expected ErrInvalidCurrency, got %v", code, err)
		}
	}
	if err := f.svc.SetCurrency(ctx, "xaf"); err != nil {
		t.Fatalf("SetCurrency: %v", err)
	}
	_, _ = f.svc.AddCategory(ctx, CategoryDraft{Name: "Market"})
	view, _ := f.svc.Summaries(ctx)
	if view.Currency != "XAF" || view.Overview.Balance != "0.00 FCFA" {
		t.Fatalf("unexpected view %+v", view.Overview)
	}
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.notifier.err = errors.New("broker down")
	_ = f.svc.Login(ctx, "u1")

	if _, err := f.svc.AddExpense(ctx, ExpenseDraft{Amount: "1", CategoryID: 1}); err != nil {
		t.Fatalf("AddExpense should succeed when publishing fails, got %v", err)
	}
}
