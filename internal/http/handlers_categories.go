package http

import (
	"net/http"

	"spendtrack/internal/core"
	"spendtrack/internal/services"
)

type categoryJSON struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	Icon      string   `json:"icon,omitempty"`
	Color     string   `json:"color,omitempty"`
	IsDefault bool     `json:"isDefault"`
	Budget    *float64 `json:"budget,omitempty"`
}

func toCategoryJSON(c core.Category) categoryJSON {
	out := categoryJSON{ID: c.ID, Name: c.Name, Icon: c.Icon, Color: c.Color, IsDefault: c.IsDefault}
	if c.Budget != nil {
		b := c.Budget.Float()
		out.Budget = &b
	}
	return out
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats := s.ledger.Categories()
	out := make([]categoryJSON, 0, len(cats))
	for _, c := range cats {
		out = append(out, toCategoryJSON(c))
	}
	NewJSONResponse().JSON(out).Write(w)
}

type createCategoryRequest struct {
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.ledger.AddCategory(r.Context(), services.CategoryDraft{
		Name:  sanitizeInput(req.Name),
		Icon:  sanitizeInput(req.Icon),
		Color: sanitizeInput(req.Color),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).JSON(toCategoryJSON(c)).Write(w)
}

type updateCategoryRequest struct {
	Name  *string `json:"name"`
	Icon  *string `json:"icon"`
	Color *string `json:"color"`
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.ledger.UpdateCategory(r.Context(), id, core.CategoryUpdate{
		Name:  sanitizePtr(req.Name),
		Icon:  sanitizePtr(req.Icon),
		Color: sanitizePtr(req.Color),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().JSON(toCategoryJSON(c)).Write(w)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.DeleteCategory(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

type budgetRequest struct {
	Amount float64 `json:"amount"`
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.SetBudget(r.Context(), id, req.Amount); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func sanitizePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := sanitizeInput(*s)
	return &v
}
