// Package http serves the ledger view model as JSON for a rendering
// surface.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"spendtrack/internal/core"
	"spendtrack/internal/identity"
	applog "spendtrack/internal/log"
	"spendtrack/internal/services"
)

const requestIDHeader = "X-Request-ID"

// LedgerAPI is the part of the ledger service the server exposes.
type LedgerAPI interface {
	Session(ctx context.Context) (identity.Session, error)
	Login(ctx context.Context, userID string) error
	Logout(ctx context.Context) error
	SetCurrency(ctx context.Context, code string) error
	Load(ctx context.Context) error

	Categories() []core.Category
	AddCategory(ctx context.Context, d services.CategoryDraft) (core.Category, error)
	UpdateCategory(ctx context.Context, id int64, u core.CategoryUpdate) (core.Category, error)
	DeleteCategory(ctx context.Context, id int64) error
	SetBudget(ctx context.Context, id int64, amount float64) error

	AddExpense(ctx context.Context, d services.ExpenseDraft) (core.Expense, error)
	AddIncome(ctx context.Context, d services.IncomeDraft) (core.Income, error)
	Expenses() []core.Expense
	Incomes() []core.Income
	Summaries(ctx context.Context) (services.SummaryView, error)
}

var _ LedgerAPI = (*services.LedgerService)(nil)

// Server wraps http.Server with the ledger routes.
type Server struct {
	http.Server
	ledger       LedgerAPI
	logger       *applog.Logger
	rateLimiter  *rateLimiter
	security     *securityMetrics
	shutdownOnce sync.Once
}

// Options configures NewServer. Zero values select defaults.
type Options struct {
	Addr           string
	Logger         *applog.Logger
	RateLimit      int // mutating requests per client per minute
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxHeaderBytes int
}

// NewServer configures the routes, returning a ready-to-run server.
func NewServer(ledger LedgerAPI, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 60
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 15 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 30 * time.Second
	}
	if opts.MaxHeaderBytes <= 0 {
		opts.MaxHeaderBytes = 1 << 20
	}

	s := &Server{
		ledger:      ledger,
		logger:      opts.Logger.WithComponent(applog.ComponentHTTP),
		rateLimiter: newRateLimiter(opts.RateLimit),
		security:    &securityMetrics{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("PATCH /api/categories/{id}", s.handleUpdateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)
	mux.HandleFunc("PUT /api/categories/{id}/budget", s.handleSetBudget)

	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	mux.HandleFunc("GET /api/incomes", s.handleListIncomes)
	mux.HandleFunc("POST /api/incomes", s.handleSaveIncome)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/summaries", s.handleSummaries)

	mux.HandleFunc("GET /api/session", s.handleGetSession)
	mux.HandleFunc("POST /api/session", s.handleLogin)
	mux.HandleFunc("DELETE /api/session", s.handleLogout)
	mux.HandleFunc("PUT /api/session/currency", s.handleSetCurrency)

	logged := applog.Middleware(opts.Logger, func(r *http.Request) string {
		return r.Header.Get(requestIDHeader)
	})(mux)

	s.Server = http.Server{
		Addr:           opts.Addr,
		Handler:        s.withSecurity(logged),
		ReadTimeout:    opts.ReadTimeout,
		WriteTimeout:   opts.WriteTimeout,
		MaxHeaderBytes: opts.MaxHeaderBytes,
	}
	return s
}

// withSecurity assigns a request ID, sets security headers and rate limits
// mutating requests per client IP.
func (s *Server) withSecurity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" || len(requestID) > 64 {
			requestID = generateRequestID()
			r.Header.Set(requestIDHeader, requestID)
		}
		w.Header().Set(requestIDHeader, requestID)
		setSecurityHeaders(w.Header())

		clientIP := extractClientIP(r)
		if detectSuspiciousRequest(r, s.security) {
			s.logger.WarnContext(r.Context(), "Suspicious request",
				applog.FieldRequestID, requestID,
				applog.FieldClientIP, clientIP,
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path)
		}

		if isMutating(r.Method) && !s.rateLimiter.allow(clientIP, s.security) {
			s.logger.WarnContext(r.Context(), "Rate limit exceeded",
				applog.FieldRequestID, requestID,
				applog.FieldClientIP, clientIP,
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path)
			NewJSONResponse().
				Status(http.StatusTooManyRequests).
				Header("Retry-After", "60").
				JSON(errorBody{Error: "rate limit exceeded", Code: "rate_limited"}).
				Write(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// Shutdown stops the rate limiter and gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		err = s.Server.Shutdown(ctx)
		slog.InfoContext(ctx, "HTTP server stopped",
			"rate_limit_hits", atomic.LoadInt64(&s.security.rateLimitHits),
			"suspicious_requests", atomic.LoadInt64(&s.security.suspiciousRequests))
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().JSON(map[string]string{"status": "ok"}).Write(w)
}
