package services

import (
	"context"
	"sort"
	"strings"

	"spendtrack/internal/aggregator"
	"spendtrack/internal/core"
	"spendtrack/internal/currency"
)

// CategoryView is a category with its totals formatted for display.
type CategoryView struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Icon            string `json:"icon,omitempty"`
	Color           string `json:"color,omitempty"`
	IsDefault       bool   `json:"isDefault"`
	TotalExpenses   string `json:"totalExpenses"`
	TotalIncome     string `json:"totalIncome"`
	Budget          string `json:"budget,omitempty"`
	BudgetRemaining string `json:"budgetRemaining,omitempty"`
	OverBudget      bool   `json:"overBudget"`
}

// OverviewView holds the formatted grand totals.
type OverviewView struct {
	TotalExpenses string `json:"totalExpenses"`
	TotalIncome   string `json:"totalIncome"`
	Balance       string `json:"balance"`
	// ForeignCurrencies lists income currencies other than the session
	// currency. Those incomes are counted at face value.
	ForeignCurrencies []string `json:"foreignCurrencies,omitempty"`
}

// SummaryView is what the rendering surface shows on the main screen.
type SummaryView struct {
	UserID     string         `json:"userId,omitempty"`
	Currency   string         `json:"currency"`
	Categories []CategoryView `json:"categories"`
	Overview   OverviewView   `json:"overview"`
	Loading    bool           `json:"loading"`
	Errors     []string       `json:"errors,omitempty"`
}

// Summaries formats the current per-category summaries and totals in the
// session currency.
func (s *LedgerService) Summaries(ctx context.Context) (SummaryView, error) {
	sess, err := s.sessions.Resolve(ctx)
	if err != nil {
		return SummaryView{}, err
	}
	code := sess.Currency

	cats := s.registry.List()
	meta := make(map[int64]core.Category, len(cats))
	for _, c := range cats {
		meta[c.ID] = c
	}

	summaries := s.agg.Summaries()
	views := make([]CategoryView, 0, len(summaries))
	for _, sum := range summaries {
		c := meta[sum.CategoryID]
		v := CategoryView{
			ID:            sum.CategoryID,
			Name:          sum.Name,
			Icon:          c.Icon,
			Color:         c.Color,
			IsDefault:     c.IsDefault,
			TotalExpenses: currency.FormatMoney(sum.TotalExpenses, code),
			TotalIncome:   currency.FormatMoney(sum.TotalIncome, code),
		}
		if sum.Budget != nil {
			v.Budget = currency.FormatMoney(*sum.Budget, code)
		}
		if sum.BudgetRemaining != nil {
			v.BudgetRemaining = currency.FormatMoney(*sum.BudgetRemaining, code)
			v.OverBudget = sum.BudgetRemaining.Cents < 0
		}
		views = append(views, v)
	}

	o := s.agg.Overview()
	view := SummaryView{
		UserID:     sess.UserID,
		Currency:   code,
		Categories: views,
		Overview: OverviewView{
			TotalExpenses: currency.FormatMoney(o.TotalExpenses, code),
			TotalIncome:   currency.FormatMoney(o.TotalIncome, code),
			Balance:       currency.FormatMoney(o.Balance, code),
		},
	}
	view.Overview.ForeignCurrencies = foreignCurrencies(s.Incomes(), code)
	for _, st := range []aggregator.Status{s.expenses.Status(), s.incomes.Status()} {
		view.Loading = view.Loading || st.Loading
		if st.Err != nil {
			view.Errors = append(view.Errors, st.Err.Error())
		}
	}
	return view, nil
}

// foreignCurrencies returns the sorted distinct income currencies that differ
// from code.
func foreignCurrencies(incomes []core.Income, code string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, in := range incomes {
		c := strings.ToUpper(in.Currency)
		if c == "" || c == code || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
