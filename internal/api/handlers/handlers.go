package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dvloznov/spendquest/internal/api/middleware"
	"github.com/dvloznov/spendquest/internal/domain"
	"github.com/dvloznov/spendquest/internal/export"
	"github.com/dvloznov/spendquest/internal/jobs"
	"github.com/rs/zerolog"
)

// LedgerSource is the authoritative ledger the API reads from and writes to.
type LedgerSource interface {
	Snapshot(ctx context.Context) (domain.Snapshot, error)
	CreateTransaction(ctx context.Context, tx domain.NewTransaction) error
}

// BudgetLister is implemented by ledger sources that also keep budgets.
type BudgetLister interface {
	ListBudgets(ctx context.Context) ([]domain.Budget, error)
}

// ExportArchiver stores exported documents.
type ExportArchiver interface {
	Archive(ctx context.Context, doc export.Document, now time.Time) (string, error)
}

// ExportPublisher publishes records to an external workspace.
type ExportPublisher interface {
	Publish(ctx context.Context, transactions []domain.TransactionRecord, dryRun bool) (export.PublishResult, error)
}

// Recorder receives export and draft metrics.
type Recorder interface {
	RecordExport(format string, err error)
	RecordPublish(created, skipped, failed int)
	SetActiveDrafts(n int)
}

type noopRecorder struct{}

func (noopRecorder) RecordExport(string, error)  {}
func (noopRecorder) RecordPublish(int, int, int) {}
func (noopRecorder) SetActiveDrafts(int)         {}

func recorderOrNoop(r Recorder) Recorder {
	if r == nil {
		return noopRecorder{}
	}
	return r
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := r.PathValue("id")

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Parse query parameters
	query := r.URL.Query()
	filter := jobs.JobFilter{
		SessionID: query.Get("session_id"),
		Status:    jobs.JobStatus(query.Get("status")),
		Limit:     queryInt(r, "limit", 0),
		Offset:    queryInt(r, "offset", 0),
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}
	if jobsList == nil {
		jobsList = []*jobs.ExtractReceiptJob{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func queryBool(r *http.Request, key string) bool {
	b, err := strconv.ParseBool(r.URL.Query().Get(key))
	return err == nil && b
}
