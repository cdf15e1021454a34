package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dvloznov/spendquest/internal/api/middleware"
	"github.com/dvloznov/spendquest/internal/domain"
	"github.com/dvloznov/spendquest/internal/drafts"
	"github.com/dvloznov/spendquest/internal/jobs"
	"github.com/dvloznov/spendquest/internal/logger"
	"github.com/dvloznov/spendquest/internal/receipt"
	"github.com/shopspring/decimal"
)

// DraftsHandler handles draft sessions, receipt uploads and submission.
type DraftsHandler struct {
	store     *drafts.Store
	ledger    LedgerSource
	publisher jobs.Publisher
	metrics   Recorder
}

// NewDraftsHandler creates a new drafts handler. A nil publisher disables
// receipt uploads.
func NewDraftsHandler(store *drafts.Store, ledger LedgerSource, publisher jobs.Publisher, metrics Recorder) *DraftsHandler {
	return &DraftsHandler{
		store:     store,
		ledger:    ledger,
		publisher: publisher,
		metrics:   recorderOrNoop(metrics),
	}
}

// CreateDraft handles POST /api/drafts
func (h *DraftsHandler) CreateDraft(w http.ResponseWriter, r *http.Request) {
	sess := h.store.Create()
	h.metrics.SetActiveDrafts(h.store.Count())

	log := logger.FromContext(r.Context())
	log.Debug().Str("session_id", sess.ID).Msg("Draft session created")
	middleware.WriteJSON(w, http.StatusCreated, sess)
}

// GetDraft handles GET /api/drafts/{id}
func (h *DraftsHandler) GetDraft(w http.ResponseWriter, r *http.Request) {
	sess, err := h.store.Get(r.PathValue("id"))
	if err != nil {
		writeDraftError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, sess)
}

// UpdateDraft handles PATCH /api/drafts/{id}. Fields present in the body
// replace the draft's fields; absent or null fields are kept.
func (h *DraftsHandler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	var patch domain.DraftTransaction
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if patch.Amount != nil && patch.Amount.LessThan(decimal.Zero) {
		middleware.WriteError(w, http.StatusBadRequest, "Amount must not be negative")
		return
	}
	if patch.Direction != nil && *patch.Direction != domain.Credit && *patch.Direction != domain.Debit {
		middleware.WriteError(w, http.StatusBadRequest, "Direction must be credit or debit")
		return
	}

	sess, err := h.store.Update(r.PathValue("id"), patch)
	if err != nil {
		writeDraftError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, sess)
}

// DiscardDraft handles DELETE /api/drafts/{id}
func (h *DraftsHandler) DiscardDraft(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Discard(r.PathValue("id")); err != nil {
		writeDraftError(w, r, err)
		return
	}
	h.metrics.SetActiveDrafts(h.store.Count())
	w.WriteHeader(http.StatusNoContent)
}

// UploadReceipt handles POST /api/drafts/{id}/receipt. The body is the raw
// image and Content-Type its media type. Extraction runs on the job queue.
func (h *DraftsHandler) UploadReceipt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	sessionID := r.PathValue("id")

	if h.publisher == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Receipt extraction is not configured")
		return
	}

	if _, err := h.store.Get(sessionID); err != nil {
		writeDraftError(w, r, err)
		return
	}

	// One byte over the limit is enough for validation to reject the upload.
	image, err := io.ReadAll(io.LimitReader(r.Body, receipt.MaxImageBytes+1))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read upload")
		return
	}

	mimeType := r.Header.Get("Content-Type")
	if _, err := receipt.ValidateImage(image, mimeType); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ticket, err := h.store.BeginExtraction(sessionID)
	if err != nil {
		writeDraftError(w, r, err)
		return
	}

	job := &jobs.ExtractReceiptJob{
		SessionID:  ticket.SessionID,
		Generation: ticket.Generation,
		MIMEType:   mimeType,
		Image:      image,
	}
	if err := h.publisher.PublishExtractReceipt(ctx, job); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to enqueue extraction job")
		if _, ferr := h.store.FailExtraction(ticket); ferr != nil {
			log.Debug().Err(ferr).Msg("Extraction already superseded")
		}
		middleware.WriteError(w, http.StatusServiceUnavailable, "Failed to enqueue extraction")
		return
	}

	log.Info().
		Str("job_id", job.JobID).
		Str("session_id", sessionID).
		Uint64("generation", ticket.Generation).
		Msg("Extraction job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":     job.JobID,
		"session_id": sessionID,
		"generation": ticket.Generation,
		"status":     string(job.Status),
	})
}

type submittedTransaction struct {
	Amount      decimal.Decimal  `json:"amount"`
	Direction   domain.Direction `json:"direction"`
	Date        string           `json:"date,omitempty"`
	Description string           `json:"description"`
	Category    string           `json:"category,omitempty"`
}

// SubmitDraft handles POST /api/drafts/{id}/submit
func (h *DraftsHandler) SubmitDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	sessionID := r.PathValue("id")

	tx, err := h.store.Submit(ctx, sessionID, h.ledger.CreateTransaction)
	if err != nil {
		switch {
		case errors.Is(err, drafts.ErrSessionNotFound):
			middleware.WriteError(w, http.StatusNotFound, "Draft not found")
		case errors.Is(err, drafts.ErrSubmitInProgress):
			middleware.WriteError(w, http.StatusConflict, "Draft is already being submitted")
		case errors.Is(err, domain.ErrIncompleteDraft):
			middleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to record transaction")
			middleware.WriteError(w, http.StatusBadGateway, "Failed to record transaction")
		}
		return
	}
	h.metrics.SetActiveDrafts(h.store.Count())

	resp := submittedTransaction{
		Amount:      tx.Amount,
		Direction:   tx.Direction,
		Description: tx.Description,
		Category:    tx.Category,
	}
	if tx.Date != nil {
		resp.Date = tx.Date.Format(domain.DateLayout)
	}

	log.Info().
		Str("session_id", sessionID).
		Str("direction", string(tx.Direction)).
		Msg("Draft submitted")

	middleware.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"status":       "recorded",
		"transaction":  resp,
		"submitted_at": time.Now().UTC(),
	})
}

func writeDraftError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, drafts.ErrSessionNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Draft not found")
		return
	}
	if errors.Is(err, drafts.ErrSubmitInProgress) {
		middleware.WriteError(w, http.StatusConflict, "Draft is already being submitted")
		return
	}
	log := logger.FromContext(r.Context())
	log.Error().Err(err).Msg("Draft operation failed")
	middleware.WriteError(w, http.StatusInternalServerError, "Draft operation failed")
}
