package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"spendtrack/internal/cache"
	"spendtrack/internal/core"
	"spendtrack/internal/identity"
	"spendtrack/internal/ledger/memory"
	"spendtrack/internal/services"
)

type testServer struct {
	srv    *Server
	ledger *memory.Store
}

func newTestServer(t *testing.T, remote bool) testServer {
	t.Helper()
	store := memory.New()
	svc, err := services.NewLedgerService(services.Options{
		Ledger:          store,
		Identity:        identity.NewMemoryStore(),
		Remote:          remote,
		DefaultCurrency: "USD",
		SummaryCache:    cache.NewLRUCache[[]core.CategorySummary](8, time.Minute),
	})
	if err != nil {
		t.Fatalf("NewLedgerService: %v", err)
	}
	srv := NewServer(svc, Options{RateLimit: 1000})
	t.Cleanup(func() {
		srv.rateLimiter.stop()
		svc.Close()
	})
	return testServer{srv: srv, ledger: store}
}

func (ts testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, true)
	rec := ts.do(t, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing security headers")
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("missing request id")
	}
}

func TestListCategoriesReturnsDefaults(t *testing.T) {
	ts := newTestServer(t, true)
	rec := ts.do(t, http.MethodGet, "/api/categories", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	cats := decode[[]categoryJSON](t, rec)
	if len(cats) == 0 || cats[0].Name != "Food" || !cats[0].IsDefault {
		t.Fatalf("unexpected categories: %+v", cats)
	}
}

func TestLoginThenRecordExpense(t *testing.T) {
	ts := newTestServer(t, true)

	rec := ts.do(t, http.MethodPost, "/api/session", `{"userId":"u1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d body=%s", rec.Code, rec.Body)
	}
	loaded := decode[loadResponse](t, rec)
	if loaded.Summary.UserID != "u1" || len(loaded.Warnings) != 0 {
		t.Fatalf("unexpected login response: %+v", loaded)
	}

	rec = ts.do(t, http.MethodPost, "/api/expenses", `{"amount":"12,50","categoryId":1,"note":"lunch","date":"2024-03-01"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body=%s", rec.Code, rec.Body)
	}
	e := decode[expenseJSON](t, rec)
	if e.Amount != 12.5 || e.CategoryName != "Food" || e.Date != "2024-03-01" {
		t.Fatalf("unexpected expense: %+v", e)
	}

	rec = ts.do(t, http.MethodPost, "/api/expenses", `{"amount":7.25,"categoryId":1}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("numeric amount status = %d body=%s", rec.Code, rec.Body)
	}

	rec = ts.do(t, http.MethodGet, "/api/expenses", "")
	if got := decode[[]expenseJSON](t, rec); len(got) != 2 {
		t.Fatalf("expenses = %+v", got)
	}

	rec = ts.do(t, http.MethodGet, "/api/summaries", "")
	view := decode[services.SummaryView](t, rec)
	if view.Overview.TotalExpenses != "$19.75" {
		t.Fatalf("total = %q", view.Overview.TotalExpenses)
	}
	if view.Categories[0].TotalExpenses != "$19.75" {
		t.Fatalf("food total = %q", view.Categories[0].TotalExpenses)
	}
}

func TestExpenseRequiresSession(t *testing.T) {
	ts := newTestServer(t, true)
	rec := ts.do(t, http.MethodPost, "/api/expenses", `{"amount":"5","categoryId":1}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode[errorBody](t, rec)
	if body.Code != "not_authenticated" {
		t.Fatalf("code = %q", body.Code)
	}
}

func TestExpenseValidation(t *testing.T) {
	ts := newTestServer(t, true)
	ts.do(t, http.MethodPost, "/api/session", `{"userId":"u1"}`)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"negative amount", `{"amount":"-3","categoryId":1}`, http.StatusUnprocessableEntity},
		{"garbage amount", `{"amount":"abc","categoryId":1}`, http.StatusUnprocessableEntity},
		{"missing category", `{"amount":"3"}`, http.StatusUnprocessableEntity},
		{"unknown category", `{"amount":"3","categoryId":999}`, http.StatusNotFound},
		{"bad date", `{"amount":"3","categoryId":1,"date":"01/03/2024"}`, http.StatusUnprocessableEntity},
		{"unknown field", `{"amount":"3","categoryId":1,"extra":true}`, http.StatusBadRequest},
		{"not json", `amount=3`, http.StatusBadRequest},
		{"amount object", `{"amount":{},"categoryId":1}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/expenses", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body=%s)", rec.Code, tt.status, rec.Body)
			}
		})
	}
	if n := len(ts.srv.ledger.Expenses()); n != 0 {
		t.Fatalf("rejected drafts must not be recorded, got %d", n)
	}
}

func TestCategoryLifecycle(t *testing.T) {
	ts := newTestServer(t, true)
	ts.do(t, http.MethodPost, "/api/session", `{"userId":"u1"}`)

	rec := ts.do(t, http.MethodPost, "/api/categories", `{"name":"Pets","icon":"paw","color":"#123456"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body=%s", rec.Code, rec.Body)
	}
	c := decode[categoryJSON](t, rec)
	if c.IsDefault || c.Name != "Pets" {
		t.Fatalf("unexpected category: %+v", c)
	}
	path := "/api/categories/" + itoa(c.ID)

	rec = ts.do(t, http.MethodPost, "/api/categories", `{"name":"pets"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("duplicate status = %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPatch, path, `{"name":"Animals"}`)
	if rec.Code != http.StatusOK || decode[categoryJSON](t, rec).Name != "Animals" {
		t.Fatalf("update status = %d body=%s", rec.Code, rec.Body)
	}

	rec = ts.do(t, http.MethodPut, path+"/budget", `{"amount":150}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("budget status = %d body=%s", rec.Code, rec.Body)
	}
	rec = ts.do(t, http.MethodPut, path+"/budget", `{"amount":-1}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("negative budget status = %d", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/api/categories", "")
	var found bool
	for _, got := range decode[[]categoryJSON](t, rec) {
		if got.ID == c.ID {
			found = true
			if got.Budget == nil || *got.Budget != 150 {
				t.Fatalf("budget = %v", got.Budget)
			}
		}
	}
	if !found {
		t.Fatal("category missing from list")
	}

	rec = ts.do(t, http.MethodDelete, path, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = ts.do(t, http.MethodPatch, path, `{"name":"Gone"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("update after delete status = %d", rec.Code)
	}
	rec = ts.do(t, http.MethodDelete, "/api/categories/abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id status = %d", rec.Code)
	}
}

func TestCategoryMutationRequiresSessionWhenRemote(t *testing.T) {
	ts := newTestServer(t, true)
	rec := ts.do(t, http.MethodPost, "/api/categories", `{"name":"Pets"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestIncomeCreateAndReplace(t *testing.T) {
	ts := newTestServer(t, true)
	ts.do(t, http.MethodPost, "/api/session", `{"userId":"u1"}`)

	rec := ts.do(t, http.MethodPost, "/api/incomes", `{"amount":"1000","note":"salary"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body=%s", rec.Code, rec.Body)
	}
	in := decode[incomeJSON](t, rec)

	body := `{"id":` + itoa(in.ID) + `,"amount":"1200","note":"salary"}`
	rec = ts.do(t, http.MethodPost, "/api/incomes", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("replace status = %d body=%s", rec.Code, rec.Body)
	}

	rec = ts.do(t, http.MethodGet, "/api/incomes", "")
	got := decode[[]incomeJSON](t, rec)
	if len(got) != 1 || got[0].Amount != 1200 {
		t.Fatalf("incomes = %+v", got)
	}
}

func TestRefreshReportsWarnings(t *testing.T) {
	ts := newTestServer(t, true)
	ts.do(t, http.MethodPost, "/api/session", `{"userId":"u1"}`)
	ts.do(t, http.MethodPost, "/api/expenses", `{"amount":"5","categoryId":1}`)

	ts.ledger.SetFailure(errors.New("connection refused"))
	rec := ts.do(t, http.MethodPost, "/api/refresh", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[loadResponse](t, rec)
	if len(resp.Warnings) == 0 {
		t.Fatal("expected warnings")
	}
	if resp.Summary.Overview.TotalExpenses != "$0.00" {
		t.Fatalf("failed load must degrade to empty, got %q", resp.Summary.Overview.TotalExpenses)
	}
	if len(resp.Summary.Errors) == 0 {
		t.Fatal("summary must carry the refresh error")
	}
}

func TestRemoteFailureMapsToBadGateway(t *testing.T) {
	ts := newTestServer(t, true)
	ts.do(t, http.MethodPost, "/api/session", `{"userId":"u1"}`)
	ts.ledger.SetFailure(errors.New("down"))

	rec := ts.do(t, http.MethodPost, "/api/expenses", `{"amount":"5","categoryId":1}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t, true)

	rec := ts.do(t, http.MethodPost, "/api/session", `{"userId":"  "}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty user status = %d", rec.Code)
	}

	ts.do(t, http.MethodPost, "/api/session", `{"userId":"u1"}`)
	rec = ts.do(t, http.MethodPut, "/api/session/currency", `{"currency":"eur"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("currency status = %d body=%s", rec.Code, rec.Body)
	}
	sess := decode[sessionJSON](t, rec)
	if sess.Currency != "EUR" || !sess.Authenticated {
		t.Fatalf("session = %+v", sess)
	}

	rec = ts.do(t, http.MethodPut, "/api/session/currency", `{"currency":"euro"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad currency status = %d", rec.Code)
	}

	rec = ts.do(t, http.MethodDelete, "/api/session", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout status = %d", rec.Code)
	}
	rec = ts.do(t, http.MethodGet, "/api/session", "")
	if decode[sessionJSON](t, rec).Authenticated {
		t.Fatal("still authenticated after logout")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, true)
	rec := ts.do(t, http.MethodDelete, "/api/expenses", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRateLimitAppliesToMutations(t *testing.T) {
	ts := newTestServer(t, false)
	ts.srv.rateLimiter.limit = 2

	for i := 0; i < 2; i++ {
		if rec := ts.do(t, http.MethodPost, "/api/categories", `{"name":"C`+itoa(int64(i))+`"}`); rec.Code != http.StatusCreated {
			t.Fatalf("request %d status = %d body=%s", i, rec.Code, rec.Body)
		}
	}
	rec := ts.do(t, http.MethodPost, "/api/categories", `{"name":"C9"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Fatal("missing Retry-After")
	}
	if rec := ts.do(t, http.MethodGet, "/api/categories", ""); rec.Code != http.StatusOK {
		t.Fatalf("reads must not be limited, got %d", rec.Code)
	}
}

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
