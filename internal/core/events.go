package core

import "time"

// ChangeKind names a committed mutation.
type ChangeKind string

const (
	ChangeExpenseCreated  ChangeKind = "expense.created"
	ChangeIncomeSaved     ChangeKind = "income.saved"
	ChangeCategoryCreated ChangeKind = "category.created"
	ChangeCategoryUpdated ChangeKind = "category.updated"
	ChangeCategoryDeleted ChangeKind = "category.deleted"
	ChangeBudgetSet       ChangeKind = "budget.set"
)

// ChangeEvent announces a mutation after the ledger confirmed it.
type ChangeEvent struct {
	Kind       ChangeKind
	UserID     string
	EntityID   int64
	OccurredAt time.Time
}
