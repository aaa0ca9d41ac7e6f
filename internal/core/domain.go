package core

import (
	"errors"
	"strings"
	"time"
)

const (
	TypeExpense TransactionType = "expense"
	TypeIncome  TransactionType = "income"
)

type (
	TransactionType string

	Money struct {
		Cents int64
	}

	Category struct {
		ID        int64
		Name      string
		Icon      string
		Color     string
		IsDefault bool
		Budget    *Money // nil means no budget set
	}

	// CategoryUpdate carries the editable fields of a custom category.
	// Nil fields are left untouched.
	CategoryUpdate struct {
		Name  *string
		Icon  *string
		Color *string
	}

	Expense struct {
		ID           int64
		Amount       Money
		CategoryID   int64
		CategoryName string // display only, never sent to the ledger
		Note         string
		Type         TransactionType
		Date         time.Time // zero when unset
	}

	Income struct {
		ID         int64
		Amount     Money
		CategoryID *int64 // nil when the income is not tied to a category
		Note       string
		Date       time.Time
		Currency   string // optional override of the session currency
	}

	Budget struct {
		CategoryID int64
		Amount     Money
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyName        = errors.New("empty category name")
	ErrDuplicateName    = errors.New("category name already in use")
	ErrMissingCategory  = errors.New("missing category")
	ErrCategoryNotFound = errors.New("category not found")
	ErrNotAuthenticated = errors.New("not authenticated")
)

// IsValidation reports whether err is bad user input that was rejected
// before any remote call.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrEmptyName) ||
		errors.Is(err, ErrDuplicateName) ||
		errors.Is(err, ErrMissingCategory)
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

// Validate checks that the update does not blank the name.
func (u CategoryUpdate) Validate() error {
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

// Apply merges the update into c. ID and IsDefault are never changed.
func (u CategoryUpdate) Apply(c Category) Category {
	if u.Name != nil {
		c.Name = strings.TrimSpace(*u.Name)
	}
	if u.Icon != nil {
		c.Icon = *u.Icon
	}
	if u.Color != nil {
		c.Color = *u.Color
	}
	return c
}

func (e Expense) Validate() error {
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if e.CategoryID == 0 {
		return ErrMissingCategory
	}
	if e.Type != "" && e.Type != TypeExpense {
		return errors.New("expense type must be \"expense\"")
	}
	return nil
}

func (i Income) Validate() error {
	return i.Amount.Validate()
}

func (b Budget) Validate() error {
	return b.Amount.Validate()
}
