package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"expensebot/internal/core"
	applog "expensebot/internal/log"
	"expensebot/internal/services"
)

type (
	reassignCategoryRequest struct {
		Category string `json:"category"`
	}

	setBudgetRequest struct {
		Amount json.Number `json:"amount"`
	}
)

func (s *Server) handleRecordExpense(w http.ResponseWriter, r *http.Request) {
	var req services.RecordExpenseRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpRecord, err)
		return
	}
	req.Vendor = sanitizeInput(req.Vendor)
	req.Category = sanitizeInput(req.Category)
	req.Notes = sanitizeInput(req.Notes)

	res, err := s.deps.Expenses.RecordExpense(r.Context(), req)
	if err != nil {
		writeError(w, r, applog.OpRecord, err)
		return
	}
	s.appMetrics.totalExpenses.Add(1)

	applog.FromContext(r.Context()).Info("Expense recorded",
		applog.NewFields().WithOperation(applog.OpRecord).
			WithExpense(res.Expense.ID, strconv.FormatFloat(res.Expense.Amount, 'f', 2, 64), res.Expense.Category, res.Expense.Vendor, res.Expense.Source).
			ToSlice()...)
	NewJSONResponse().Status(http.StatusCreated).Body(res).Write(w)
}

func (s *Server) handleRecentExpenses(w http.ResponseWriter, r *http.Request) {
	limit, err := ParseLimit(r.URL.Query())
	if err != nil {
		writeError(w, r, applog.OpQuery, err)
		return
	}
	expenses, err := s.deps.Expenses.RecentExpenses(r.Context(), limit)
	if err != nil {
		writeError(w, r, applog.OpQuery, err)
		return
	}
	NewJSONResponse().Body(map[string]any{"expenses": expenses}).Write(w)
}

func (s *Server) handleReassignCategory(w http.ResponseWriter, r *http.Request) {
	id, err := ParseIDPathValue(r, "id")
	if err != nil {
		writeError(w, r, applog.OpReassign, err)
		return
	}
	var req reassignCategoryRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpReassign, err)
		return
	}
	category := sanitizeInput(req.Category)
	if category == "" {
		writeError(w, r, applog.OpReassign, core.NewValidationError("category", "category is required", `Send {"category": "Food"}`))
		return
	}

	view, err := s.deps.Expenses.ReassignCategory(r.Context(), id, category)
	if err != nil {
		writeError(w, r, applog.OpReassign, err)
		return
	}
	applog.FromContext(r.Context()).Info("Expense recategorized",
		applog.FieldExpenseID, id, applog.FieldCategory, category)
	NewJSONResponse().Body(view).Write(w)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	p, err := ParseMonthParams(r.URL.Query())
	if err != nil {
		writeError(w, r, applog.OpQuery, err)
		return
	}
	summary, err := s.deps.Expenses.MonthlySummary(r.Context(), p.Year, p.Month)
	if err != nil {
		writeError(w, r, applog.OpQuery, err)
		return
	}
	NewJSONResponse().Body(summary).Write(w)
}

// handleComparison serves month-over-month (default) or, with
// period=week, week-over-week totals.
func (s *Server) handleComparison(w http.ResponseWriter, r *http.Request) {
	var (
		view services.ComparisonView
		err  error
	)
	switch period := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("period"))); period {
	case "", "month":
		var p MonthParams
		if p, err = ParseMonthParams(r.URL.Query()); err == nil {
			view, err = s.deps.Expenses.MonthOverMonth(r.Context(), p.Year, p.Month)
		}
	case "week":
		view, err = s.deps.Expenses.WeekOverWeek(r.Context())
	default:
		err = core.NewValidationError("period", "unknown period "+period, "Use period=month or period=week")
	}
	if err != nil {
		writeError(w, r, applog.OpQuery, err)
		return
	}
	NewJSONResponse().Body(view).Write(w)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.deps.Expenses.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, applog.OpQuery, err)
		return
	}
	NewJSONResponse().Body(cats).Write(w)
}

func (s *Server) handleCategorySpending(w http.ResponseWriter, r *http.Request) {
	category := sanitizeInput(r.PathValue("name"))
	p, err := ParseMonthParams(r.URL.Query())
	if err != nil {
		writeError(w, r, applog.OpQuery, err)
		return
	}
	view, err := s.deps.Expenses.CategorySpending(r.Context(), category, p.Year, p.Month)
	if err != nil {
		writeError(w, r, applog.OpQuery, err)
		return
	}
	NewJSONResponse().Body(view).Write(w)
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := s.deps.Expenses.ListBudgets(r.Context())
	if err != nil {
		writeError(w, r, applog.OpBudget, err)
		return
	}
	NewJSONResponse().Body(map[string]any{"budgets": budgets}).Write(w)
}

func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	p, err := ParseMonthParams(r.URL.Query())
	if err != nil {
		writeError(w, r, applog.OpBudget, err)
		return
	}
	lines, err := s.deps.Expenses.BudgetStatus(r.Context(), p.Year, p.Month)
	if err != nil {
		writeError(w, r, applog.OpBudget, err)
		return
	}
	NewJSONResponse().Body(map[string]any{"budgets": lines}).Write(w)
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	var req setBudgetRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpBudget, err)
		return
	}
	view, err := s.deps.Expenses.SetBudget(r.Context(), sanitizeInput(r.PathValue("category")), req.Amount.String())
	if err != nil {
		writeError(w, r, applog.OpBudget, err)
		return
	}
	NewJSONResponse().Body(view).Write(w)
}

// handleExport writes month=YYYY-MM (default: current month) to the
// configured spreadsheet.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sheets == nil {
		ErrorResponse(http.StatusServiceUnavailable, "spreadsheet export is not configured", "Set GOOGLE_SPREADSHEET_ID and service account credentials").Write(w)
		return
	}
	p, err := ParseMonthParams(r.URL.Query())
	if err != nil {
		writeError(w, r, applog.OpExport, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), collaboratorTimeout)
	defer cancel()

	res, err := s.deps.Expenses.ExportMonth(ctx, s.deps.Sheets, p.Year, p.Month)
	if err != nil {
		writeError(w, r, applog.OpExport, err)
		return
	}
	NewJSONResponse().Body(res).Write(w)
}
