package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"expensebot/internal/core"
	applog "expensebot/internal/log"
)

const sweepReasonAPI = "api"

type messageRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpChat, err)
		return
	}
	text := sanitizeInput(req.Text)
	if text == "" {
		writeError(w, r, applog.OpChat, core.NewValidationError("text", "text is required", `Send {"text": "I spent 12.50 at Chipotle"}`))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), collaboratorTimeout)
	defer cancel()

	s.appMetrics.chatMessages.Add(1)
	reply, err := s.deps.Assistant.Handle(ctx, text)
	if err != nil {
		// The reply already carries user-facing text for every failure.
		applog.FromContext(r.Context()).LogError(r.Context(), "Chat message failed", err, applog.OpChat, nil)
	}
	NewJSONResponse().Body(reply).Write(w)
}

// handleReport serves the text summary plus the weekly and vendor series
// of month=YYYY-MM (default: current month).
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Reporter == nil {
		ErrorResponse(http.StatusServiceUnavailable, "reports are not configured", "").Write(w)
		return
	}
	p, err := ParseMonthParams(r.URL.Query())
	if err != nil {
		writeError(w, r, applog.OpReport, err)
		return
	}
	year, month := p.Year, p.Month
	cy, cm := core.CurrentYearMonth()
	if year == 0 {
		year = cy
	}
	if month == 0 {
		month = cm
	}

	rep, err := s.deps.Reporter.Compose(r.Context(), year, month)
	if err != nil {
		writeError(w, r, applog.OpReport, err)
		return
	}
	NewJSONResponse().Body(rep.View()).Write(w)
}

// handleSweep runs an inbox sweep inline, or queues one for the worker
// when async=1.
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	logger := applog.FromContext(r.Context())

	if async := r.URL.Query().Get("async"); async == "1" || strings.EqualFold(async, "true") {
		if s.deps.Publisher == nil {
			ErrorResponse(http.StatusServiceUnavailable, "sweep queue is not configured", "Set AMQP_URL or call without async").Write(w)
			return
		}
		if err := s.deps.Publisher.PublishSweepRequest(r.Context(), sweepReasonAPI); err != nil {
			logger.Warn("Failed to queue sweep", applog.FieldOperation, applog.OpSweep, applog.FieldError, err.Error())
			ErrorResponse(http.StatusServiceUnavailable, "sweep queue is unavailable, please try again later", "").Write(w)
			return
		}
		s.appMetrics.sweeps.Add(1)
		NewJSONResponse().Status(http.StatusAccepted).Body(map[string]string{"status": "queued"}).Write(w)
		return
	}

	if s.deps.Sweeper == nil {
		ErrorResponse(http.StatusServiceUnavailable, "email sweep is not configured", "Set EMAIL_SOURCE to gmail or memory").Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), collaboratorTimeout)
	defer cancel()

	stats, err := s.deps.Sweeper.Sweep(ctx)
	if err != nil {
		writeError(w, r, applog.OpSweep, err)
		return
	}
	s.appMetrics.sweeps.Add(1)
	logger.Info("Sweep finished via API",
		"emails_checked", stats.EmailsChecked,
		"expenses_found", stats.ExpensesFound,
		"expenses_saved", stats.ExpensesSaved)
	NewJSONResponse().Body(stats).Write(w)
}

// handleReceipt takes the raw image as the request body.
func (s *Server) handleReceipt(w http.ResponseWriter, r *http.Request) {
	mimeType := r.Header.Get("Content-Type")
	if mimeType == "" || !strings.HasPrefix(mimeType, "image/") {
		writeError(w, r, applog.OpReceipt, core.NewValidationError("content_type", "receipt must be an image", "Send the photo with Content-Type image/jpeg or image/png"))
		return
	}

	image, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxReceiptBody))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, r, applog.OpReceipt, core.NewValidationError("image", "image too large", "Send a photo smaller than 10 MB"))
			return
		}
		writeError(w, r, applog.OpReceipt, core.NewValidationError("image", "could not read image", ""))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), collaboratorTimeout)
	defer cancel()

	res, err := s.deps.Expenses.ScanReceipt(ctx, image, mimeType)
	if err != nil {
		writeError(w, r, applog.OpReceipt, err)
		return
	}
	s.appMetrics.totalExpenses.Add(1)
	NewJSONResponse().Status(http.StatusCreated).Body(res).Write(w)
}
