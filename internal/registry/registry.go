// Package registry owns the category collection: the built-in defaults, the
// user's custom categories and the per-category budgets.
//
// Mutations are pessimistic. When a Mirror is configured the change is sent
// to it first and applied locally only after it succeeds, using the
// confirmed record (server ids for new categories). A failed mirror call
// leaves the registry untouched.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"spendtrack/internal/core"
	"spendtrack/internal/ledger"
)

// Mirror pushes registry mutations to the remote ledger. A created category
// confirmed with id 0 was kept local and gets a local id.
type Mirror interface {
	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	UpdateCategory(ctx context.Context, c core.Category) (core.Category, error)
	DeleteCategory(ctx context.Context, id int64) error
	SetBudget(ctx context.Context, b core.Budget) (core.Budget, error)
}

type Registry struct {
	// writeMu serializes mutations across the mirror round trip; mu guards
	// the state and is never held during a remote call.
	writeMu sync.Mutex
	mu      sync.RWMutex

	customs []core.Category
	budgets map[int64]core.Money
	version uint64
	writes  uint64 // local mutations, see Writes
	lastID  int64

	mirror Mirror
	now    func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithMirror sends every mutation to m before applying it.
func WithMirror(m Mirror) Option {
	return func(r *Registry) { r.mirror = m }
}

func New(opts ...Option) *Registry {
	r := &Registry{
		budgets: make(map[int64]core.Money),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// List returns the defaults followed by the custom categories in creation
// order, each carrying its budget when one is set.
func (r *Registry) List() []core.Category {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]core.Category, 0, len(defaultCategories)+len(r.customs))
	out = append(out, defaultCategories...)
	out = append(out, r.customs...)
	for i := range out {
		out[i].Budget = nil
		if b, ok := r.budgets[out[i].ID]; ok {
			out[i].Budget = &b
		}
	}
	return out
}

// Lookup finds a default or custom category by id.
func (r *Registry) Lookup(id int64) (core.Category, bool) {
	for _, c := range r.List() {
		if c.ID == id {
			return c, true
		}
	}
	return core.Category{}, false
}

// Budgets returns a copy of the budget map keyed by category id.
func (r *Registry) Budgets() map[int64]core.Money {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[int64]core.Money, len(r.budgets))
	for id, b := range r.budgets {
		out[id] = b
	}
	return out
}

// Version increases on every change to categories or budgets.
func (r *Registry) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Writes counts committed mutations. A loader reads it before fetching and
// passes it to ReplaceCustom or ReplaceBudgets, which then refuse to
// overwrite a mutation made while the fetch was in flight.
func (r *Registry) Writes() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.writes
}

// AddCustom validates and appends a custom category. IsDefault is always
// forced to false.
func (r *Registry) AddCustom(ctx context.Context, c core.Category) (core.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.IsDefault = false
	c.Budget = nil
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if r.nameTaken(c.Name, 0) {
		return core.Category{}, fmt.Errorf("%w: %q", core.ErrDuplicateName, c.Name)
	}

	if r.mirror != nil {
		confirmed, err := r.mirror.CreateCategory(ctx, c)
		if err != nil {
			return core.Category{}, fmt.Errorf("create category: %w", err)
		}
		if _, taken := r.custom(confirmed.ID); taken || isDefaultID(confirmed.ID) || confirmed.ID < 0 {
			return core.Category{}, fmt.Errorf("create category: %w: id %d already in use", ledger.ErrRemoteRejected, confirmed.ID)
		}
		c.ID = confirmed.ID
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == 0 {
		c.ID = r.localID()
	}
	if c.ID > r.lastID {
		r.lastID = c.ID
	}
	r.customs = append(r.customs, c)
	r.version++
	r.writes++

	slog.InfoContext(ctx, "Custom category added", "category_id", c.ID, "name", c.Name)
	return c, nil
}

// UpdateCustom merges u into the custom category id. Default categories and
// unknown ids return core.ErrCategoryNotFound.
func (r *Registry) UpdateCustom(ctx context.Context, id int64, u core.CategoryUpdate) (core.Category, error) {
	if err := u.Validate(); err != nil {
		return core.Category{}, err
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	current, ok := r.custom(id)
	if !ok {
		return core.Category{}, fmt.Errorf("update category %d: %w", id, core.ErrCategoryNotFound)
	}
	merged := u.Apply(current)
	if r.nameTaken(merged.Name, id) {
		return core.Category{}, fmt.Errorf("%w: %q", core.ErrDuplicateName, merged.Name)
	}

	if r.mirror != nil {
		if _, err := r.mirror.UpdateCategory(ctx, merged); err != nil {
			return core.Category{}, fmt.Errorf("update category %d: %w", id, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.customs {
		if r.customs[i].ID == id {
			r.customs[i] = merged
			break
		}
	}
	r.version++
	r.writes++
	return merged, nil
}

// DeleteCustom removes a custom category and its budget. Default and unknown
// ids are ignored. Recorded expenses keep their category reference.
func (r *Registry) DeleteCustom(ctx context.Context, id int64) error {
	if isDefaultID(id) {
		return nil
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if _, ok := r.custom(id); !ok {
		return nil
	}

	if r.mirror != nil {
		if err := r.mirror.DeleteCategory(ctx, id); err != nil {
			return fmt.Errorf("delete category %d: %w", id, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.customs {
		if r.customs[i].ID == id {
			r.customs = append(r.customs[:i:i], r.customs[i+1:]...)
			break
		}
	}
	delete(r.budgets, id)
	r.version++
	r.writes++

	slog.InfoContext(ctx, "Custom category deleted", "category_id", id)
	return nil
}

// SetBudget sets or overwrites the budget of a default or custom category.
// amount must be finite and not negative; otherwise core.ErrInvalidAmount is
// returned and the previous budget is kept.
func (r *Registry) SetBudget(ctx context.Context, id int64, amount float64) error {
	m, err := core.MoneyFromFloat(amount)
	if err != nil {
		return fmt.Errorf("set budget %v: %w", amount, err)
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if _, ok := r.Lookup(id); !ok {
		return fmt.Errorf("set budget for category %d: %w", id, core.ErrCategoryNotFound)
	}

	if r.mirror != nil {
		confirmed, err := r.mirror.SetBudget(ctx, core.Budget{CategoryID: id, Amount: m})
		if err != nil {
			return fmt.Errorf("set budget for category %d: %w", id, err)
		}
		if confirmed.CategoryID == id {
			m = confirmed.Amount
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.budgets[id] = m
	r.version++
	r.writes++
	return nil
}

// ReplaceCustom swaps in the custom categories loaded from the ledger. It
// returns false and changes nothing when a mutation was committed after
// since was read from Writes.
func (r *Registry) ReplaceCustom(cats []core.Category, since uint64) bool {
	customs := make([]core.Category, 0, len(cats))
	for _, c := range cats {
		if isDefaultID(c.ID) || strings.TrimSpace(c.Name) == "" {
			continue
		}
		c.IsDefault = false
		c.Budget = nil
		customs = append(customs, c)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writes != since {
		return false
	}
	r.customs = customs
	for _, c := range customs {
		if c.ID > r.lastID {
			r.lastID = c.ID
		}
	}
	r.version++
	return true
}

// ReplaceBudgets swaps in the budgets loaded from the ledger, with the same
// staleness rule as ReplaceCustom.
func (r *Registry) ReplaceBudgets(budgets []core.Budget, since uint64) bool {
	m := make(map[int64]core.Money, len(budgets))
	for _, b := range budgets {
		if b.Validate() != nil {
			continue
		}
		m[b.CategoryID] = b.Amount
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writes != since {
		return false
	}
	r.budgets = m
	r.version++
	return true
}

func (r *Registry) custom(id int64) (core.Category, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.customs {
		if c.ID == id {
			return c, true
		}
	}
	return core.Category{}, false
}

// nameTaken reports whether name is used by a category other than exceptID.
func (r *Registry) nameTaken(name string, exceptID int64) bool {
	for _, c := range r.List() {
		if c.ID != exceptID && strings.EqualFold(c.Name, name) {
			return true
		}
	}
	return false
}

// localID returns a timestamp id that is strictly increasing. Callers hold mu.
func (r *Registry) localID() int64 {
	id := r.now().UnixMilli()
	if id <= r.lastID {
		id = r.lastID + 1
	}
	return id
}
