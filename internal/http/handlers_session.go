package http

import (
	"net/http"
)

type sessionJSON struct {
	UserID        string `json:"userId,omitempty"`
	Currency      string `json:"currency"`
	Authenticated bool   `json:"authenticated"`
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.ledger.Session(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().JSON(sessionJSON{
		UserID:        sess.UserID,
		Currency:      sess.Currency,
		Authenticated: sess.Authenticated(),
	}).Write(w)
}

type loginRequest struct {
	UserID string `json:"userId"`
}

// handleLogin stores the user id and loads their data. Load failures do not
// fail the login.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.Login(r.Context(), sanitizeInput(req.UserID)); err != nil {
		writeError(w, r, err)
		return
	}
	s.respondLoaded(w, r, http.StatusOK)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.Logout(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

type currencyRequest struct {
	Currency string `json:"currency"`
}

func (s *Server) handleSetCurrency(w http.ResponseWriter, r *http.Request) {
	var req currencyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.SetCurrency(r.Context(), req.Currency); err != nil {
		writeError(w, r, err)
		return
	}
	s.handleGetSession(w, r)
}
