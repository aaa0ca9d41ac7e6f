package httpapi

import (
	"fmt"
	"strings"
	"time"

	"spendtrack/internal/core"
)

const dateLayout = "2006-01-02"

// JSON records as exchanged with the ledger API.
type (
	expenseRecord struct {
		ID         int64   `json:"id,omitempty"`
		Amount     float64 `json:"amount"`
		CategoryID int64   `json:"categoryId"`
		Note       string  `json:"note,omitempty"`
		Date       string  `json:"date,omitempty"`
		Type       string  `json:"type,omitempty"`
	}

	incomeRecord struct {
		ID         int64   `json:"id,omitempty"`
		Amount     float64 `json:"amount"`
		CategoryID *int64  `json:"categoryId"`
		Note       string  `json:"note,omitempty"`
		Date       string  `json:"date,omitempty"`
		Currency   string  `json:"currency,omitempty"`
	}

	budgetRecord struct {
		CategoryID int64   `json:"categoryId"`
		Amount     float64 `json:"amount"`
	}

	categoryRecord struct {
		ID    int64  `json:"id,omitempty"`
		Name  string `json:"name"`
		Icon  string `json:"icon,omitempty"`
		Color string `json:"color,omitempty"`
	}
)

func encodeDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

// decodeDate accepts RFC3339 timestamps and plain dates. Anything else is
// reported so the caller can decide whether to drop the value.
func decodeDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func toExpenseRecord(e core.Expense) expenseRecord {
	return expenseRecord{
		ID:         e.ID,
		Amount:     e.Amount.Float(),
		CategoryID: e.CategoryID,
		Note:       e.Note,
		Date:       encodeDate(e.Date),
	}
}

func (r expenseRecord) toCore() (core.Expense, error) {
	amount, err := core.MoneyFromFloat(r.Amount)
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense %d: %w", r.ID, err)
	}
	date, err := decodeDate(r.Date)
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense %d: %w", r.ID, err)
	}
	return core.Expense{
		ID:         r.ID,
		Amount:     amount,
		CategoryID: r.CategoryID,
		Note:       r.Note,
		Type:       core.TypeExpense,
		Date:       date,
	}, nil
}

func toIncomeRecord(in core.Income) incomeRecord {
	return incomeRecord{
		ID:         in.ID,
		Amount:     in.Amount.Float(),
		CategoryID: in.CategoryID,
		Note:       in.Note,
		Date:       encodeDate(in.Date),
		Currency:   in.Currency,
	}
}

func (r incomeRecord) toCore() (core.Income, error) {
	amount, err := core.MoneyFromFloat(r.Amount)
	if err != nil {
		return core.Income{}, fmt.Errorf("income %d: %w", r.ID, err)
	}
	date, err := decodeDate(r.Date)
	if err != nil {
		return core.Income{}, fmt.Errorf("income %d: %w", r.ID, err)
	}
	return core.Income{
		ID:         r.ID,
		Amount:     amount,
		CategoryID: r.CategoryID,
		Note:       r.Note,
		Date:       date,
		Currency:   r.Currency,
	}, nil
}

func (r budgetRecord) toCore() (core.Budget, error) {
	amount, err := core.MoneyFromFloat(r.Amount)
	if err != nil {
		return core.Budget{}, fmt.Errorf("budget for category %d: %w", r.CategoryID, err)
	}
	return core.Budget{CategoryID: r.CategoryID, Amount: amount}, nil
}

func toCategoryRecord(c core.Category) categoryRecord {
	return categoryRecord{ID: c.ID, Name: c.Name, Icon: c.Icon, Color: c.Color}
}

func (r categoryRecord) toCore() core.Category {
	return core.Category{ID: r.ID, Name: r.Name, Icon: r.Icon, Color: r.Color}
}
