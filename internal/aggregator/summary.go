// Package aggregator owns the expense and income collections and derives
// per-category summaries from them and from the category registry.
package aggregator

import (
	"fmt"

	"spendtrack/internal/core"
)

// ComputeCategorySummaries totals expenses and incomes per category and
// compares spending with the category budget. It is pure: equal inputs give
// equal outputs, in the order of categories.
//
// Expenses whose category is not in categories are ignored here; Overview
// still counts them.
func ComputeCategorySummaries(
	categories []core.Category,
	expenses []core.Expense,
	incomes []core.Income,
	budgets map[int64]core.Money,
) []core.CategorySummary {
	spent := make(map[int64]int64, len(categories))
	for _, e := range expenses {
		spent[e.CategoryID] += e.Amount.Cents
	}
	received := make(map[int64]int64, len(categories))
	for _, in := range incomes {
		if in.CategoryID == nil {
			continue
		}
		received[*in.CategoryID] += in.Amount.Cents
	}

	out := make([]core.CategorySummary, 0, len(categories))
	for _, c := range categories {
		s := core.CategorySummary{
			CategoryID:    c.ID,
			Name:          c.Name,
			TotalExpenses: core.Money{Cents: spent[c.ID]},
			TotalIncome:   core.Money{Cents: received[c.ID]},
		}
		if b, ok := budgets[c.ID]; ok {
			s.Budget = &core.Money{Cents: b.Cents}
			if b.Cents > 0 {
				s.BudgetRemaining = &core.Money{Cents: b.Cents - s.TotalExpenses.Cents}
			}
		}
		out = append(out, s)
	}
	return out
}

// ComputeOverview totals every record regardless of category.
func ComputeOverview(expenses []core.Expense, incomes []core.Income) core.Overview {
	var o core.Overview
	for _, e := range expenses {
		o.TotalExpenses = o.TotalExpenses.Add(e.Amount)
	}
	for _, in := range incomes {
		o.TotalIncome = o.TotalIncome.Add(in.Amount)
	}
	o.Balance = o.TotalIncome.Sub(o.TotalExpenses)
	return o
}

// Categories is the read-only view of the registry the aggregator needs.
type Categories interface {
	List() []core.Category
	Budgets() map[int64]core.Money
	Version() uint64
}

// SummaryCache memoizes computed summaries by source versions.
type SummaryCache interface {
	Get(key string) ([]core.CategorySummary, bool)
	Set(key string, data []core.CategorySummary)
}

// Aggregator recomputes summaries from borrowed views of the registry and
// the two books. A result is reused only while all three source versions
// are unchanged.
type Aggregator struct {
	categories Categories
	expenses   *ExpenseBook
	incomes    *IncomeBook
	cache      SummaryCache
}

func New(categories Categories, expenses *ExpenseBook, incomes *IncomeBook, cache SummaryCache) *Aggregator {
	return &Aggregator{
		categories: categories,
		expenses:   expenses,
		incomes:    incomes,
		cache:      cache,
	}
}

// Summaries returns the per-category summaries for the current state.
func (a *Aggregator) Summaries() []core.CategorySummary {
	// Versions are read before the data, so a concurrent change can only
	// make the key older than the data, never newer.
	catVersion := a.categories.Version()
	expenses, expVersion := a.expenses.Snapshot()
	incomes, incVersion := a.incomes.Snapshot()
	key := fmt.Sprintf("%d/%d/%d", catVersion, expVersion, incVersion)

	if a.cache != nil {
		if cached, ok := a.cache.Get(key); ok {
			return cloneSummaries(cached)
		}
	}

	out := ComputeCategorySummaries(a.categories.List(), expenses, incomes, a.categories.Budgets())
	if a.cache != nil {
		a.cache.Set(key, cloneSummaries(out))
	}
	return out
}

// Overview returns grand totals for the current state.
func (a *Aggregator) Overview() core.Overview {
	expenses, _ := a.expenses.Snapshot()
	incomes, _ := a.incomes.Snapshot()
	return ComputeOverview(expenses, incomes)
}

func cloneSummaries(in []core.CategorySummary) []core.CategorySummary {
	out := make([]core.CategorySummary, len(in))
	for i, s := range in {
		if s.Budget != nil {
			b := *s.Budget
			s.Budget = &b
		}
		if s.BudgetRemaining != nil {
			r := *s.BudgetRemaining
			s.BudgetRemaining = &r
		}
		out[i] = s
	}
	return out
}
