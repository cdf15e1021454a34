// Package api wires the HTTP handlers into a router.
package api

import (
	"net/http"
	"time"

	"github.com/dvloznov/spendquest/internal/api/handlers"
	"github.com/dvloznov/spendquest/internal/api/middleware"
)

// Handlers groups the endpoint handlers served by the router.
type Handlers struct {
	Dashboard    *handlers.DashboardHandler
	Transactions *handlers.TransactionsHandler
	Drafts       *handlers.DraftsHandler
	Jobs         *handlers.JobsHandler

	// Metrics serves /metrics when set.
	Metrics http.Handler
}

// NewRouter registers every endpoint on a new ServeMux.
func NewRouter(h Handlers) *http.ServeMux {
	mux := http.NewServeMux()

	// Dashboard
	mux.HandleFunc("GET /api/dashboard", h.Dashboard.GetDashboard)

	// Transactions endpoints
	mux.HandleFunc("GET /api/transactions", h.Transactions.ListTransactions)
	mux.HandleFunc("GET /api/transactions/export", h.Transactions.ExportTransactions)
	mux.HandleFunc("POST /api/transactions/publish", h.Transactions.PublishTransactions)

	// Draft endpoints
	mux.HandleFunc("POST /api/drafts", h.Drafts.CreateDraft)
	mux.HandleFunc("GET /api/drafts/{id}", h.Drafts.GetDraft)
	mux.HandleFunc("PATCH /api/drafts/{id}", h.Drafts.UpdateDraft)
	mux.HandleFunc("DELETE /api/drafts/{id}", h.Drafts.DiscardDraft)
	mux.HandleFunc("POST /api/drafts/{id}/receipt", h.Drafts.UploadReceipt)
	mux.HandleFunc("POST /api/drafts/{id}/submit", h.Drafts.SubmitDraft)

	// Jobs endpoints
	mux.HandleFunc("GET /api/jobs", h.Jobs.ListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", h.Jobs.GetJob)

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics)
	}

	return mux
}
