package jobs

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dvloznov/spendquest/internal/domain"
	"github.com/dvloznov/spendquest/internal/drafts"
	"github.com/dvloznov/spendquest/internal/receipt"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockExtractor is a mock implementation of Extractor for testing.
type MockExtractor struct {
	ExtractFunc func(ctx context.Context, image []byte, mimeType string) (*domain.DraftTransaction, error)
}

func (m *MockExtractor) Extract(ctx context.Context, image []byte, mimeType string) (*domain.DraftTransaction, error) {
	return m.ExtractFunc(ctx, image, mimeType)
}

type recordingObserver struct {
	outcomes []string
}

func (r *recordingObserver) ObserveExtraction(outcome string, elapsed time.Duration) {
	r.outcomes = append(r.outcomes, outcome)
}

func extractedDraft(amount string) *domain.DraftTransaction {
	a := decimal.RequireFromString(amount)
	d := domain.Debit
	return &domain.DraftTransaction{Amount: &a, Direction: &d}
}

func newJob(t *testing.T, store *drafts.Store, sessionID string) *ExtractReceiptJob {
	t.Helper()
	ticket, err := store.BeginExtraction(sessionID)
	require.NoError(t, err)
	return &ExtractReceiptJob{
		JobID:      fmt.Sprintf("job-%d", ticket.Generation),
		SessionID:  ticket.SessionID,
		Generation: ticket.Generation,
		MIMEType:   "image/png",
		Image:      []byte{1, 2, 3},
	}
}

func TestExtractReceiptHandler_AppliesResult(t *testing.T) {
	store := drafts.NewStore()
	sess := store.Create()
	observer := &recordingObserver{}
	handler := NewExtractReceiptHandler(store, &MockExtractor{
		ExtractFunc: func(ctx context.Context, image []byte, mimeType string) (*domain.DraftTransaction, error) {
			assert.Equal(t, "image/png", mimeType)
			return extractedDraft("9.99"), nil
		},
	}, observer)

	err := handler(context.Background(), newJob(t, store, sess.ID))
	require.NoError(t, err)

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "9.99", got.Draft.Amount.String())
	assert.Equal(t, drafts.StatusEditing, got.Status)
	assert.Equal(t, []string{OutcomeSuccess}, observer.outcomes)
}

func TestExtractReceiptHandler_Failure(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantOutcome string
	}{
		{"service failure", fmt.Errorf("Extract: %w", receipt.ErrExtractionFailed), OutcomeFailed},
		{"rejected image", receipt.ErrImageTooLarge, OutcomeRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := drafts.NewStore()
			sess := store.Create()
			observer := &recordingObserver{}
			handler := NewExtractReceiptHandler(store, &MockExtractor{
				ExtractFunc: func(ctx context.Context, image []byte, mimeType string) (*domain.DraftTransaction, error) {
					return nil, tt.err
				},
			}, observer)

			err := handler(context.Background(), newJob(t, store, sess.ID))
			assert.ErrorIs(t, err, tt.err)
			assert.False(t, errors.Is(err, ErrSuperseded))

			got, err := store.Get(sess.ID)
			require.NoError(t, err)
			assert.Equal(t, drafts.ExtractionFailedNotice, got.Notice)
			assert.True(t, got.Draft.IsEmpty())
			assert.Equal(t, []string{tt.wantOutcome}, observer.outcomes)
		})
	}
}

func TestExtractReceiptHandler_NewerRequestWins(t *testing.T) {
	store := drafts.NewStore()
	sess := store.Create()
	observer := &recordingObserver{}

	first := newJob(t, store, sess.ID)
	var second *ExtractReceiptJob

	handler := NewExtractReceiptHandler(store, &MockExtractor{
		ExtractFunc: func(ctx context.Context, image []byte, mimeType string) (*domain.DraftTransaction, error) {
			if second == nil {
				// A newer upload arrives while the first call is in flight.
				second = newJob(t, store, sess.ID)
				<-ctx.Done()
				return nil, ctx.Err()
			}
			return extractedDraft("42"), nil
		},
	}, observer)

	err := handler(context.Background(), first)
	assert.ErrorIs(t, err, ErrSuperseded)

	require.NotNil(t, second)
	require.NoError(t, handler(context.Background(), second))

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "42", got.Draft.Amount.String())
	assert.Empty(t, got.Notice)
	assert.Equal(t, []string{OutcomeSuperseded, OutcomeSuccess}, observer.outcomes)
}

func TestExtractReceiptHandler_StaleJobSkipsExtraction(t *testing.T) {
	store := drafts.NewStore()
	sess := store.Create()
	stale := newJob(t, store, sess.ID)
	_ = newJob(t, store, sess.ID)

	handler := NewExtractReceiptHandler(store, &MockExtractor{
		ExtractFunc: func(ctx context.Context, image []byte, mimeType string) (*domain.DraftTransaction, error) {
			t.Fatal("stale jobs must not call the extractor")
			return nil, nil
		},
	}, nil)

	assert.ErrorIs(t, handler(context.Background(), stale), ErrSuperseded)
}

func TestExtractReceiptHandler_DiscardedSession(t *testing.T) {
	store := drafts.NewStore()
	sess := store.Create()
	job := newJob(t, store, sess.ID)
	require.NoError(t, store.Discard(sess.ID))

	handler := NewExtractReceiptHandler(store, &MockExtractor{}, nil)

	err := handler(context.Background(), job)
	assert.ErrorIs(t, err, ErrSuperseded)
	assert.ErrorIs(t, err, drafts.ErrSessionNotFound)
}

func TestDropHandler_FailsDraft(t *testing.T) {
	store := drafts.NewStore()
	sess := store.Create()
	job := newJob(t, store, sess.ID)

	NewDropHandler(store)(context.Background(), job)

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, drafts.StatusEditing, got.Status)
	assert.Equal(t, drafts.ExtractionFailedNotice, got.Notice)
}

func TestDropHandler_StaleJobLeavesDraft(t *testing.T) {
	store := drafts.NewStore()
	sess := store.Create()
	stale := newJob(t, store, sess.ID)
	newJob(t, store, sess.ID)

	NewDropHandler(store)(context.Background(), stale)

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, drafts.StatusExtracting, got.Status)
	assert.Empty(t, got.Notice)
}
