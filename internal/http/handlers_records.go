package http

import (
	"net/http"
	"time"

	"spendtrack/internal/core"
	"spendtrack/internal/services"
)

const dateLayout = "2006-01-02"

type expenseJSON struct {
	ID           int64   `json:"id"`
	Amount       float64 `json:"amount"`
	CategoryID   int64   `json:"categoryId"`
	CategoryName string  `json:"categoryName,omitempty"`
	Note         string  `json:"note,omitempty"`
	Date         string  `json:"date,omitempty"`
}

func toExpenseJSON(e core.Expense) expenseJSON {
	return expenseJSON{
		ID:           e.ID,
		Amount:       e.Amount.Float(),
		CategoryID:   e.CategoryID,
		CategoryName: e.CategoryName,
		Note:         e.Note,
		Date:         formatDate(e.Date),
	}
}

type incomeJSON struct {
	ID         int64   `json:"id"`
	Amount     float64 `json:"amount"`
	CategoryID *int64  `json:"categoryId,omitempty"`
	Note       string  `json:"note,omitempty"`
	Date       string  `json:"date,omitempty"`
	Currency   string  `json:"currency,omitempty"`
}

func toIncomeJSON(in core.Income) incomeJSON {
	return incomeJSON{
		ID:         in.ID,
		Amount:     in.Amount.Float(),
		CategoryID: in.CategoryID,
		Note:       in.Note,
		Date:       formatDate(in.Date),
		Currency:   in.Currency,
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	items := s.ledger.Expenses()
	out := make([]expenseJSON, 0, len(items))
	for _, e := range items {
		out = append(out, toExpenseJSON(e))
	}
	NewJSONResponse().JSON(out).Write(w)
}

type createExpenseRequest struct {
	Amount     amountField `json:"amount"`
	CategoryID int64       `json:"categoryId"`
	Note       string      `json:"note"`
	Date       string      `json:"date"`
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.ledger.AddExpense(r.Context(), services.ExpenseDraft{
		Amount:     string(req.Amount),
		CategoryID: req.CategoryID,
		Note:       sanitizeInput(req.Note),
		Date:       sanitizeInput(req.Date),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).JSON(toExpenseJSON(e)).Write(w)
}

func (s *Server) handleListIncomes(w http.ResponseWriter, r *http.Request) {
	items := s.ledger.Incomes()
	out := make([]incomeJSON, 0, len(items))
	for _, in := range items {
		out = append(out, toIncomeJSON(in))
	}
	NewJSONResponse().JSON(out).Write(w)
}

type saveIncomeRequest struct {
	ID         int64       `json:"id"`
	Amount     amountField `json:"amount"`
	CategoryID *int64      `json:"categoryId"`
	Note       string      `json:"note"`
	Date       string      `json:"date"`
	Currency   string      `json:"currency"`
}

// handleSaveIncome creates an income, or replaces one when the body carries
// an id.
func (s *Server) handleSaveIncome(w http.ResponseWriter, r *http.Request) {
	var req saveIncomeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := s.ledger.AddIncome(r.Context(), services.IncomeDraft{
		ID:         req.ID,
		Amount:     string(req.Amount),
		CategoryID: req.CategoryID,
		Note:       sanitizeInput(req.Note),
		Date:       sanitizeInput(req.Date),
		Currency:   sanitizeInput(req.Currency),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusCreated
	if req.ID != 0 {
		status = http.StatusOK
	}
	NewJSONResponse().Status(status).JSON(toIncomeJSON(in)).Write(w)
}

type loadResponse struct {
	Summary  services.SummaryView `json:"summary"`
	Warnings []string             `json:"warnings,omitempty"`
}

// handleRefresh reloads categories, budgets and records. Partial failures
// come back as warnings next to the degraded summary.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.respondLoaded(w, r, http.StatusOK)
}

func (s *Server) respondLoaded(w http.ResponseWriter, r *http.Request, status int) {
	loadErr := s.ledger.Load(r.Context())
	view, err := s.ledger.Summaries(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := loadResponse{Summary: view, Warnings: warnings(loadErr)}
	NewJSONResponse().Status(status).JSON(resp).Write(w)
}

func (s *Server) handleSummaries(w http.ResponseWriter, r *http.Request) {
	view, err := s.ledger.Summaries(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().JSON(view).Write(w)
}

// warnings flattens a joined load error.
func warnings(err error) []string {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}
