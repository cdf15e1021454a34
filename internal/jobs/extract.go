package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/spendquest/internal/domain"
	"github.com/dvloznov/spendquest/internal/drafts"
	"github.com/dvloznov/spendquest/internal/logger"
	"github.com/dvloznov/spendquest/internal/receipt"
	"github.com/rs/zerolog"
)

// Extraction outcomes reported to the observer.
const (
	OutcomeSuccess    = "success"
	OutcomeRejected   = "rejected"
	OutcomeFailed     = "failed"
	OutcomeSuperseded = "superseded"
)

// DraftStore is the part of drafts.Store the extraction handler needs.
type DraftStore interface {
	ExtractionContext(parent context.Context, t drafts.Ticket) (context.Context, context.CancelFunc, error)
	CompleteExtraction(t drafts.Ticket, draft domain.DraftTransaction) (drafts.Session, error)
	FailExtraction(t drafts.Ticket) (drafts.Session, error)
}

// Extractor reads a draft from an image.
type Extractor interface {
	Extract(ctx context.Context, image []byte, mimeType string) (*domain.DraftTransaction, error)
}

// ExtractionObserver records extraction outcomes, e.g. as metrics.
type ExtractionObserver interface {
	ObserveExtraction(outcome string, elapsed time.Duration)
}

type noopObserver struct{}

func (noopObserver) ObserveExtraction(string, time.Duration) {}

// NewExtractReceiptHandler returns a JobHandler that runs receipt extraction
// for a draft session and applies the result only if the job's ticket is
// still the latest one.
func NewExtractReceiptHandler(store DraftStore, extractor Extractor, observer ExtractionObserver) JobHandler {
	if observer == nil {
		observer = noopObserver{}
	}

	return func(ctx context.Context, job Job) error {
		extractJob, ok := job.(*ExtractReceiptJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		ticket := drafts.Ticket{SessionID: extractJob.SessionID, Generation: extractJob.Generation}
		log := logger.FromContext(ctx).With().
			Str("job_id", extractJob.JobID).
			Str("session_id", ticket.SessionID).
			Uint64("generation", ticket.Generation).
			Logger()

		extractCtx, cancel, err := store.ExtractionContext(ctx, ticket)
		if err != nil {
			return superseded(log.Info(), observer, 0, err)
		}
		defer cancel()

		start := time.Now()
		draft, extractErr := extractor.Extract(logger.WithContext(extractCtx, log), extractJob.Image, extractJob.MIMEType)
		elapsed := time.Since(start)

		if extractErr != nil {
			if _, err := store.FailExtraction(ticket); err != nil {
				return superseded(log.Info(), observer, elapsed, err)
			}

			outcome := OutcomeFailed
			if errors.Is(extractErr, receipt.ErrInvalidImage) {
				outcome = OutcomeRejected
			}
			observer.ObserveExtraction(outcome, elapsed)
			log.Warn().Err(extractErr).Str("outcome", outcome).Dur("elapsed", elapsed).Msg("Receipt extraction failed")
			return extractErr
		}

		if _, err := store.CompleteExtraction(ticket, *draft); err != nil {
			return superseded(log.Info(), observer, elapsed, err)
		}

		observer.ObserveExtraction(OutcomeSuccess, elapsed)
		log.Info().Str("outcome", OutcomeSuccess).Dur("elapsed", elapsed).Msg("Receipt extraction applied to draft")
		return nil
	}
}

// NewDropHandler returns a DropHandler that puts the draft of a dropped job
// back into editing with the manual-entry notice.
func NewDropHandler(store DraftStore) DropHandler {
	return func(ctx context.Context, job *ExtractReceiptJob) {
		ticket := drafts.Ticket{SessionID: job.SessionID, Generation: job.Generation}
		log := logger.FromContext(ctx)
		if _, err := store.FailExtraction(ticket); err != nil {
			log.Debug().Err(err).Str("job_id", job.JobID).Msg("Dropped job was already stale")
			return
		}
		log.Warn().
			Str("job_id", job.JobID).
			Str("session_id", job.SessionID).
			Msg("Extraction job dropped at shutdown")
	}
}

// superseded records a result that was dropped because the session moved on.
func superseded(ev *zerolog.Event, observer ExtractionObserver, elapsed time.Duration, cause error) error {
	observer.ObserveExtraction(OutcomeSuperseded, elapsed)
	ev.Err(cause).Str("outcome", OutcomeSuperseded).Msg("Receipt extraction result dropped")
	return fmt.Errorf("%w: %w", ErrSuperseded, cause)
}
