package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensebot/internal/core"
	"expensebot/internal/report"
	"expensebot/internal/services"
	"expensebot/internal/storage"
)

type fakeNLU struct {
	intents map[string]core.Intent
}

func (f *fakeNLU) Interpret(_ context.Context, text string) (core.Intent, error) {
	if in, ok := f.intents[text]; ok {
		return in, nil
	}
	return core.Intent{Kind: core.IntentUnknown}, nil
}

type fakeReceipts struct {
	result core.ExtractedExpense
	err    error
}

func (f *fakeReceipts) ReadReceipt(context.Context, []byte, string) (core.ExtractedExpense, error) {
	return f.result, f.err
}

type stubSweeper struct {
	stats core.SweepStats
	err   error
	calls int
}

func (s *stubSweeper) Sweep(context.Context) (core.SweepStats, error) {
	s.calls++
	return s.stats, s.err
}

type stubPublisher struct {
	reasons []string
	err     error
}

func (p *stubPublisher) PublishSweepRequest(_ context.Context, reason string) error {
	p.reasons = append(p.reasons, reason)
	return p.err
}

type stubSheets struct {
	title string
	rows  [][]any
	err   error
}

func (s *stubSheets) ReplaceSheet(_ context.Context, title string, rows [][]any) (string, error) {
	s.title, s.rows = title, rows
	return "'" + title + "'!A1", s.err
}

type testEnv struct {
	srv       *Server
	repo      *storage.SQLiteRepository
	sweeper   *stubSweeper
	publisher *stubPublisher
	receipts  *fakeReceipts
	sheets    *stubSheets
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "expenses.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	amount := decimal.RequireFromString("12.50")
	nlu := &fakeNLU{intents: map[string]core.Intent{
		"I spent 12.50 at Chipotle": {
			Kind:    core.IntentRecordExpense,
			Expense: core.ExtractedExpense{Amount: &amount, Vendor: "Chipotle", Category: "Food"},
		},
	}}

	env := &testEnv{
		repo:      repo,
		sweeper:   &stubSweeper{stats: core.SweepStats{EmailsChecked: 3, ExpensesFound: 2, ExpensesSaved: 1}},
		publisher: &stubPublisher{},
		receipts:  &fakeReceipts{},
		sheets:    &stubSheets{},
	}

	agg := services.NewAggregationEngine(repo)
	expenses := services.NewExpenseService(repo, agg, env.receipts)
	composer := report.NewComposer(agg, repo)
	assistant := services.NewAssistant(expenses, nlu, env.sweeper, composer)

	env.srv = NewServer(":0", Deps{
		Expenses:  expenses,
		Assistant: assistant,
		Reporter:  composer,
		Sweeper:   env.sweeper,
		Publisher: env.publisher,
		Sheets:    env.sheets,
		Store:     repo,
	}, nil)
	t.Cleanup(func() { _ = env.srv.Shutdown(context.Background()) })
	return env
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]any](t, rec)["status"])

	rec = env.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, "ok", body["checks"].(map[string]any)["store"])

	require.NoError(t, env.repo.Close())
	rec = env.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRecordAndQueryFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/expenses", `{"amount": 12.50, "vendor": "Chipotle", "category": "Food"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	saved := decode[services.RecordResult](t, rec)
	assert.Equal(t, "saved", saved.Status)
	assert.Equal(t, 12.5, saved.Expense.Amount)
	assert.Equal(t, core.Today().String(), saved.Expense.Date)

	rec = env.do(t, http.MethodGet, "/api/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[services.SummaryView](t, rec)
	assert.Equal(t, 12.5, summary.TotalSpent)
	require.Len(t, summary.ByCategory, 1)
	assert.Equal(t, "Food", summary.ByCategory[0].Category)

	rec = env.do(t, http.MethodGet, "/api/expenses/recent?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	recent := decode[map[string][]services.ExpenseView](t, rec)
	require.Len(t, recent["expenses"], 1)
	assert.Equal(t, "Chipotle", recent["expenses"][0].Vendor)

	rec = env.do(t, http.MethodGet, "/api/categories/food/spending", "")
	require.Equal(t, http.StatusOK, rec.Code)
	spending := decode[services.CategorySpendingView](t, rec)
	assert.Equal(t, 12.5, spending.Total)
	assert.Equal(t, 1, spending.TransactionCount)

	rec = env.do(t, http.MethodGet, "/api/categories", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Food"}, decode[services.CategoriesView](t, rec).Categories)
}

func TestBudgetFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPut, "/api/budgets/Food", `{"amount": "300"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, services.BudgetView{Category: "Food", Amount: 300, Period: "monthly"}, decode[services.BudgetView](t, rec))

	for _, body := range []string{`{"amount": 200, "category": "Food"}`, `{"amount": 150, "category": "Food"}`} {
		rec = env.do(t, http.MethodPost, "/api/expenses", body)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/budgets/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[map[string][]services.BudgetStatusView](t, rec)["budgets"]
	require.Len(t, status, 1)
	assert.Equal(t, 350.0, status[0].Spent)
	require.NotNil(t, status[0].Remaining)
	assert.Equal(t, -50.0, *status[0].Remaining)
	assert.True(t, status[0].OverBudget)

	rec = env.do(t, http.MethodGet, "/api/budgets", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[map[string][]services.BudgetView](t, rec)["budgets"], 1)

	rec = env.do(t, http.MethodPut, "/api/budgets/Food", `{"amount": "-5"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	errBody := decode[ErrorBody](t, rec)
	assert.Contains(t, errBody.Hint, "/set_budget Food 300")
}

func TestReassignCategory(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/expenses", `{"amount": 4.20, "vendor": "Blue Bottle"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	saved := decode[services.RecordResult](t, rec)
	assert.Equal(t, core.DefaultCategory, saved.Expense.Category)

	target := "/api/expenses/" + jsonNumber(saved.Expense.ID) + "/category"
	rec = env.do(t, http.MethodPatch, target, `{"category": "Coffee"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Coffee", decode[services.ExpenseView](t, rec).Category)

	rec = env.do(t, http.MethodPatch, "/api/expenses/9999/category", `{"category": "Coffee"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPatch, "/api/expenses/abc/category", `{"category": "Coffee"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func jsonNumber(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}

func TestRecordExpenseValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing amount", `{"vendor": "Chipotle"}`, "amount"},
		{"bad date", `{"amount": 5, "date": "15/03/2024"}`, "date"},
		{"unknown field", `{"amount": 5, "price": 3}`, "body"},
		{"not json", `amount=5`, "body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/expenses", tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Equal(t, tt.field, decode[ErrorBody](t, rec).Field)
		})
	}
}

func TestMessageEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/messages", `{"text": "I spent 12.50 at Chipotle"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	reply := decode[map[string]any](t, rec)
	assert.Contains(t, reply["text"], "Saved 12.50")

	rec = env.do(t, http.MethodPost, "/api/messages", `{"text": "/help"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode[map[string]any](t, rec)["text"], "/set_budget")

	rec = env.do(t, http.MethodPost, "/api/messages", `{"text": "   "}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestReportEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/report?month=2024-03", "")
	require.Equal(t, http.StatusOK, rec.Code)
	empty := decode[report.View](t, rec)
	assert.Equal(t, "2024-03", empty.Period)
	assert.Nil(t, empty.Weekly)
	assert.Nil(t, empty.Vendors)

	rec = env.do(t, http.MethodPost, "/api/expenses", `{"amount": 9, "vendor": "Chipotle", "date": "2024-03-13"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/report?month=2024-03", "")
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[report.View](t, rec)
	require.NotNil(t, view.Weekly)
	assert.Equal(t, []report.WeekPoint{{WeekStart: "2024-03-11", Amount: 9}}, view.Weekly.Weekly)
	require.NotNil(t, view.Vendors)
	assert.Equal(t, "Chipotle", view.Vendors.Vendors[0].Vendor)
	assert.Contains(t, view.Text, "Total spent: 9.00")

	rec = env.do(t, http.MethodGet, "/api/report?month=March", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSweepEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/email/sweep", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, core.SweepStats{EmailsChecked: 3, ExpensesFound: 2, ExpensesSaved: 1}, decode[core.SweepStats](t, rec))

	rec = env.do(t, http.MethodPost, "/api/email/sweep?async=1", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{sweepReasonAPI}, env.publisher.reasons)

	env.publisher.err = errors.New("circuit breaker is open")
	rec = env.do(t, http.MethodPost, "/api/email/sweep?async=1", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	env.sweeper.err = &core.CollaboratorError{Collaborator: "gmail", Err: core.ErrMissingCredentials}
	rec = env.do(t, http.MethodPost, "/api/email/sweep", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, decode[ErrorBody](t, rec).Hint, "oauth-init")

	env.sweeper.err = &core.CollaboratorError{Collaborator: "gmail", Err: errors.New("quota")}
	rec = env.do(t, http.MethodPost, "/api/email/sweep", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "quota")
}

func TestReceiptEndpoint(t *testing.T) {
	env := newTestEnv(t)
	amount := decimal.RequireFromString("23.40")
	env.receipts.result = core.ExtractedExpense{Amount: &amount, Vendor: "Trader Joe's", Category: "Groceries"}

	req := httptest.NewRequest(http.MethodPost, "/api/receipts", bytes.NewReader([]byte{0xff, 0xd8, 0xff}))
	req.Header.Set("Content-Type", "image/jpeg")
	rec := httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[services.RecordResult](t, rec)
	assert.Equal(t, "receipt", res.Expense.Source)
	assert.Equal(t, 23.4, res.Expense.Amount)

	req = httptest.NewRequest(http.MethodPost, "/api/receipts", strings.NewReader("hello"))
	req.Header.Set("Content-Type", "text/plain")
	rec = httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	env.receipts.result = core.ExtractedExpense{}
	req = httptest.NewRequest(http.MethodPost, "/api/receipts", bytes.NewReader([]byte{0xff}))
	req.Header.Set("Content-Type", "image/png")
	rec = httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "No amount found on the receipt.", decode[ErrorBody](t, rec).Hint)
}

func TestMiddlewareChain(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/summary", "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = env.do(t, http.MethodGet, "/.env", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	for _, want := range []string{"http_requests_total", "suspicious_requests_total 1", "blocked_requests_total 1"} {
		assert.Contains(t, rec.Body.String(), want)
	}
}

func TestRateLimitOnWrites(t *testing.T) {
	env := newTestEnv(t)

	var last int
	for i := 0; i < 61; i++ {
		last = env.do(t, http.MethodPut, "/api/budgets/Food", `{"amount": 100}`).Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)

	// Reads are not throttled.
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/budgets", "").Code)
}

func TestExportEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/expenses", `{"amount": 20, "vendor": "Shop", "category": "Home", "date": "2024-03-02"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = env.do(t, http.MethodPost, "/api/expenses", `{"amount": 5.25, "vendor": "Cafe", "date": "2024-03-01"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/export?month=2024-03", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[services.ExportResult](t, rec)
	assert.Equal(t, "2024-03 Expenses", res.Sheet)
	assert.Equal(t, 2, res.Expenses)
	assert.Equal(t, 25.25, res.Total)

	require.Len(t, env.sheets.rows, 5)
	assert.Equal(t, "Date", env.sheets.rows[0][0])
	assert.Equal(t, "Cafe", env.sheets.rows[1][1], "rows are oldest first")
	assert.Equal(t, []any{"Total", "", 25.25}, env.sheets.rows[4])

	env.sheets.err = &core.CollaboratorError{Collaborator: "sheets", Err: errors.New("quota")}
	rec = env.do(t, http.MethodPost, "/api/export?month=2024-03", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/export?month=2024-13", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	env.srv.deps.Sheets = nil
	rec = env.do(t, http.MethodPost, "/api/export", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
