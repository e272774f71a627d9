package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"expensebot/internal/cache"
	applog "expensebot/internal/log"
	"expensebot/internal/middleware/ratelimit"
	"expensebot/internal/middleware/security"
	"expensebot/internal/middleware/trace"
	"expensebot/internal/services"
)

const (
	// maxJSONBody bounds JSON request bodies.
	maxJSONBody = 64 << 10
	// maxReceiptBody bounds receipt image uploads.
	maxReceiptBody = 10 << 20
	// collaboratorTimeout bounds handlers that call the LLM or the inbox.
	collaboratorTimeout = 60 * time.Second
)

// SweepPublisher queues an inbox sweep for the worker process.
type SweepPublisher interface {
	PublishSweepRequest(ctx context.Context, reason string) error
}

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the API is served from. Sweeper, Publisher,
// Sheets and ClassificationCache may be nil.
type Deps struct {
	Expenses            *services.ExpenseService
	Assistant           *services.Assistant
	Reporter            services.Reporter
	Sweeper             services.Sweeper
	Publisher           SweepPublisher
	Sheets              services.SheetWriter
	Store               Pinger
	ClassificationCache interface{ Stats() cache.Stats }
}

// Server is the JSON API in front of the expense service.
type Server struct {
	http.Server

	deps Deps

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps, logger *applog.Logger) *Server {
	detector := security.NewDetector()

	s := &Server{
		deps:             deps,
		rateLimiter:      ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP),
		appMetrics:       newAppMetrics(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("POST /api/expenses", s.handleRecordExpense)
	mux.HandleFunc("GET /api/expenses/recent", s.handleRecentExpenses)
	mux.HandleFunc("PATCH /api/expenses/{id}/category", s.handleReassignCategory)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/comparison", s.handleComparison)
	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("GET /api/categories/{name}/spending", s.handleCategorySpending)
	mux.HandleFunc("GET /api/budgets", s.handleListBudgets)
	mux.HandleFunc("GET /api/budgets/status", s.handleBudgetStatus)
	mux.HandleFunc("PUT /api/budgets/{category}", s.handleSetBudget)
	mux.HandleFunc("POST /api/messages", s.handleMessage)
	mux.HandleFunc("GET /api/report", s.handleReport)
	mux.HandleFunc("POST /api/email/sweep", s.handleSweep)
	mux.HandleFunc("POST /api/receipts", s.handleReceipt)
	mux.HandleFunc("POST /api/export", s.handleExport)

	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		applog.FromContext(r.Context()).Warn("Rate limit exceeded",
			applog.FieldComponent, applog.ComponentRateLimit,
			applog.FieldClientIP, detector.ExtractClientIP(r),
			applog.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later", "").Write(w)
	})(handler)
	handler = detector.Middleware(true)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)
	if logger != nil {
		handler = applog.Middleware(logger.WithComponent(applog.ComponentHTTP))(handler)
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * collaboratorTimeout,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown stops background goroutines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	if err != nil {
		slog.WarnContext(ctx, "HTTP server shutdown incomplete", "error", err)
	}
	return err
}
