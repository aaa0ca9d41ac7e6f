package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"spendtrack/internal/core"
	"spendtrack/internal/identity"
	"spendtrack/internal/ledger"
)

// Status describes the last refresh of a book.
type Status struct {
	Loading bool
	// Err is the error absorbed by the last refresh, if any. While Err is
	// set the collection holds only writes committed during that refresh.
	Err error
}

// refreshTimeout bounds a shared fetch, which no single caller can cancel.
const refreshTimeout = 30 * time.Second

type journalEntry[T any] struct {
	gen uint64
	rec T
}

// book is a collection of ledger records owned by one provider. It is
// replaced wholesale on refresh and merged record by record on writes.
type book[T any] struct {
	kind     string
	sessions identity.Resolver
	fetch    func(ctx context.Context, userID string) ([]T, error)
	idOf     func(T) int64

	mu       sync.Mutex
	items    []T
	version  uint64
	writes   uint64 // committed writes, used to spot stale fetches
	started  uint64 // fetch sequence
	applied  uint64 // sequence of the fetch reflected in items
	inflight int
	lastErr  error
	closed   bool
	// journal holds records merged while a fetch was in flight, tagged
	// with their write generation.
	journal []journalEntry[T]

	group singleflight.Group
}

// snapshot returns a copy of the collection and its version.
func (b *book[T]) snapshot() ([]T, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]T(nil), b.items...), b.version
}

func (b *book[T]) status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Status{Loading: b.inflight > 0, Err: b.lastErr}
}

func (b *book[T]) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}

// merge stores a server-confirmed record, replacing one with the same id.
func (b *book[T]) merge(rec T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.items = b.upsert(b.items, rec)
	b.writes++
	b.version++
	if b.inflight > 0 {
		b.journal = append(b.journal, journalEntry[T]{gen: b.writes, rec: rec})
	}
}

func (b *book[T]) upsert(items []T, rec T) []T {
	id := b.idOf(rec)
	for i := range items {
		if b.idOf(items[i]) == id {
			items[i] = rec
			return items
		}
	}
	return append(items, rec)
}

// refresh reloads the collection for the current user. Callers arriving
// while a fetch for the same user and write generation is running share it.
// The fetch is detached from ctx: a caller whose ctx ends gets the current
// snapshot back while the fetch keeps running for the others. Remote errors
// are absorbed: the collection is emptied and the error recorded.
func (b *book[T]) refresh(ctx context.Context) []T {
	sess, err := b.sessions.Resolve(ctx)
	if err != nil {
		if ctx.Err() != nil {
			items, _ := b.snapshot()
			return items
		}
		slog.WarnContext(ctx, "Identity unavailable, showing empty ledger", "kind", b.kind, "error", err)
		err = fmt.Errorf("resolve session: %w", err)
	}

	b.mu.Lock()
	key := strconv.FormatUint(b.writes, 10) + "/" + sess.UserID
	b.mu.Unlock()

	detached := context.WithoutCancel(ctx)
	ch := b.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(detached, refreshTimeout)
		defer cancel()
		b.load(fetchCtx, sess, err)
		return nil, nil
	})
	select {
	case <-ch:
	case <-ctx.Done():
	}
	items, _ := b.snapshot()
	return items
}

func (b *book[T]) load(ctx context.Context, sess identity.Session, resolveErr error) {
	b.mu.Lock()
	b.started++
	seq, writes := b.started, b.writes
	b.inflight++
	b.mu.Unlock()

	var (
		items    []T
		err      = resolveErr
		canceled bool
	)
	if err == nil && sess.Authenticated() {
		items, err = b.fetch(ctx, sess.UserID)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled):
			canceled = true
		default:
			slog.WarnContext(ctx, "Refresh failed, showing empty ledger", "kind", b.kind, "error", err)
			items, err = nil, ledger.Unavailable("refresh "+b.kind, err)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.inflight--
	journal := b.journal
	if b.inflight == 0 {
		b.journal = nil
	}
	switch {
	case b.closed:
		return
	case canceled:
		slog.DebugContext(ctx, "Discarding canceled refresh", "kind", b.kind, "seq", seq)
		return
	case seq < b.applied:
		// A newer fetch already landed.
		return
	}
	if b.writes != writes {
		// The fetch may predate writes committed meanwhile; replay them.
		for _, e := range journal {
			if e.gen > writes {
				items = b.upsert(items, e.rec)
			}
		}
	}
	b.applied = seq
	b.lastErr = err
	b.items = items
	b.version++
}

// session resolves the identity for a write and rejects anonymous users.
func (b *book[T]) session(ctx context.Context) (identity.Session, error) {
	sess, err := b.sessions.Resolve(ctx)
	if err != nil {
		return identity.Session{}, fmt.Errorf("resolve session: %w", err)
	}
	if !sess.Authenticated() {
		return identity.Session{}, core.ErrNotAuthenticated
	}
	return sess, nil
}

// ExpenseBook owns the expense collection.
type ExpenseBook struct {
	ledger ledger.ExpenseLedger
	book   book[core.Expense]
}

func NewExpenseBook(l ledger.ExpenseLedger, sessions identity.Resolver) *ExpenseBook {
	return &ExpenseBook{
		ledger: l,
		book: book[core.Expense]{
			kind:     "expenses",
			sessions: sessions,
			fetch:    l.ListExpenses,
			idOf:     func(e core.Expense) int64 { return e.ID },
		},
	}
}

// Add sends e to the ledger and merges the confirmed record. Nothing is
// inserted locally before the ledger confirms.
func (b *ExpenseBook) Add(ctx context.Context, e core.Expense) (core.Expense, error) {
	sess, err := b.book.session(ctx)
	if err != nil {
		return core.Expense{}, err
	}
	e.Type = core.TypeExpense
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	committed, err := b.ledger.CreateExpense(ctx, sess.UserID, e)
	if err != nil {
		return core.Expense{}, ledger.Unavailable("add expense", err)
	}
	// The ledger only keeps the category id.
	if committed.CategoryID == 0 {
		committed.CategoryID = e.CategoryID
	}
	if committed.CategoryName == "" && committed.CategoryID == e.CategoryID {
		committed.CategoryName = e.CategoryName
	}
	committed.Type = core.TypeExpense
	b.book.merge(committed)

	slog.InfoContext(ctx, "Expense committed",
		"id", committed.ID,
		"amount_cents", committed.Amount.Cents,
		"category_id", committed.CategoryID)
	return committed, nil
}

// Refresh replaces the collection with the ledger's current set. It never
// fails; see Status for the outcome.
func (b *ExpenseBook) Refresh(ctx context.Context) []core.Expense {
	return b.book.refresh(ctx)
}

// Snapshot returns a copy of the collection and its version.
func (b *ExpenseBook) Snapshot() ([]core.Expense, uint64) { return b.book.snapshot() }

func (b *ExpenseBook) Status() Status { return b.book.status() }

// Close makes the book drop results of calls still in flight.
func (b *ExpenseBook) Close() { b.book.close() }

// IncomeBook owns the income collection.
type IncomeBook struct {
	ledger ledger.IncomeLedger
	book   book[core.Income]
}

func NewIncomeBook(l ledger.IncomeLedger, sessions identity.Resolver) *IncomeBook {
	return &IncomeBook{
		ledger: l,
		book: book[core.Income]{
			kind:     "incomes",
			sessions: sessions,
			fetch:    l.ListIncomes,
			idOf:     func(in core.Income) int64 { return in.ID },
		},
	}
}

// Add sends in to the ledger, which creates or updates it, and merges the
// confirmed record.
func (b *IncomeBook) Add(ctx context.Context, in core.Income) (core.Income, error) {
	sess, err := b.book.session(ctx)
	if err != nil {
		return core.Income{}, err
	}
	if err := in.Validate(); err != nil {
		return core.Income{}, err
	}
	if in.Currency == "" {
		in.Currency = sess.Currency
	}

	committed, err := b.ledger.AddOrUpdateIncome(ctx, sess.UserID, in)
	if err != nil {
		return core.Income{}, ledger.Unavailable("add income", err)
	}
	b.book.merge(committed)

	slog.InfoContext(ctx, "Income committed",
		"id", committed.ID,
		"amount_cents", committed.Amount.Cents)
	return committed, nil
}

// Refresh replaces the collection with the ledger's current set. It never
// fails; see Status for the outcome.
func (b *IncomeBook) Refresh(ctx context.Context) []core.Income {
	return b.book.refresh(ctx)
}

// Snapshot returns a copy of the collection and its version.
func (b *IncomeBook) Snapshot() ([]core.Income, uint64) { return b.book.snapshot() }

func (b *IncomeBook) Status() Status { return b.book.status() }

// Close makes the book drop results of calls still in flight.
func (b *IncomeBook) Close() { b.book.close() }
