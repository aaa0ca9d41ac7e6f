package core

// CategorySummary is the per-category aggregate shown next to each category.
// It is derived from the source collections and never persisted.
type CategorySummary struct {
	CategoryID    int64
	Name          string
	TotalExpenses Money
	TotalIncome   Money
	Budget        *Money
	// BudgetRemaining is set only when a budget greater than zero exists.
	// It may be negative when spending exceeds the budget.
	BudgetRemaining *Money
}

// Overview is the grand total across all records, including expenses whose
// category no longer exists and incomes without a category.
type Overview struct {
	TotalExpenses Money
	TotalIncome   Money
	Balance       Money
}
