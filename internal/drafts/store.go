// Package drafts keeps editable draft transactions between the moment a user
// starts entering one and the moment it is submitted to the ledger.
//
// Receipt extraction runs asynchronously. Every extraction request takes a
// generation ticket; a newer request cancels the older one and only the
// result carrying the current ticket is applied to the draft.
package drafts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/spendquest/internal/domain"
	"github.com/google/uuid"
)

// ExtractionFailedNotice is shown on a draft whose latest extraction failed.
const ExtractionFailedNotice = "Extraction failed, please enter the details manually."

var (
	ErrSessionNotFound = errors.New("draft session not found")
	// ErrSuperseded means a newer extraction was requested for the session.
	ErrSuperseded = errors.New("extraction superseded by a newer request")
	// ErrSubmitInProgress means the draft is already being written to the ledger.
	ErrSubmitInProgress = errors.New("draft submission already in progress")
)

// Status is the extraction state of a draft session.
type Status string

const (
	StatusEditing    Status = "editing"
	StatusExtracting Status = "extracting"
	StatusSubmitting Status = "submitting"
)

// Session is a snapshot of one draft.
type Session struct {
	ID         string                  `json:"id"`
	Draft      domain.DraftTransaction `json:"draft"`
	Status     Status                  `json:"status"`
	Generation uint64                  `json:"generation"`
	Notice     string                  `json:"notice,omitempty"`
	CreatedAt  time.Time               `json:"created_at"`
	UpdatedAt  time.Time               `json:"updated_at"`
}

// Ticket identifies one extraction request for a session.
type Ticket struct {
	SessionID  string `json:"session_id"`
	Generation uint64 `json:"generation"`
}

type entry struct {
	session Session
	cancel  context.CancelFunc

	// resume is the status restored when a submission fails.
	resume Status
}

func (e *entry) submitting() bool {
	return e.session.Status == StatusSubmitting
}

// setStatus changes the visible status, or the one to resume to while a
// submission holds the session.
func (e *entry) setStatus(st Status) {
	if e.submitting() {
		e.resume = st
		return
	}
	e.session.Status = st
}

// Store is an in-memory draft session store safe for concurrent use.
// It hands out copies; callers never share drafts with the store.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	now      func() time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*entry),
		now:      time.Now,
	}
}

// Create starts a new empty draft session.
func (s *Store) Create() Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess := Session{
		ID:        uuid.NewString(),
		Status:    StatusEditing,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[sess.ID] = &entry{session: sess}
	return copySession(sess)
}

// Get returns the session with the given id.
func (s *Store) Get(id string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return copySession(e.session), nil
}

// Count returns the number of open sessions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Update merges a manual edit into the draft. Only non-nil fields of patch change.
func (s *Store) Update(id string, patch domain.DraftTransaction) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if e.submitting() {
		return Session{}, fmt.Errorf("%w: %s", ErrSubmitInProgress, id)
	}
	e.session.Draft = copyDraft(e.session.Draft.Merge(patch))
	e.session.UpdatedAt = s.now()
	return copySession(e.session), nil
}

// Discard removes the session and cancels any extraction in flight.
func (s *Store) Discard(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if e.cancel != nil {
		e.cancel()
	}
	delete(s.sessions, id)
	return nil
}

// BeginExtraction registers a new extraction request and cancels the
// previous one, if any.
func (s *Store) BeginExtraction(id string) (Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok {
		return Ticket{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if e.submitting() {
		return Ticket{}, fmt.Errorf("%w: %s", ErrSubmitInProgress, id)
	}
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}

	e.session.Generation++
	e.session.Status = StatusExtracting
	e.session.Notice = ""
	e.session.UpdatedAt = s.now()

	return Ticket{SessionID: id, Generation: e.session.Generation}, nil
}

// ExtractionContext derives the context an extraction runs under. The
// context is cancelled when a newer extraction begins or the session is
// discarded. Stale tickets get ErrSuperseded.
func (s *Store) ExtractionContext(parent context.Context, t Ticket) (context.Context, context.CancelFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.current(t)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithCancel(parent)
	if e.cancel != nil {
		e.cancel()
	}
	e.cancel = cancel
	return ctx, cancel, nil
}

// CompleteExtraction replaces the draft with the extracted one if t is
// still the latest ticket. Otherwise the result is dropped and
// ErrSuperseded is returned.
func (s *Store) CompleteExtraction(t Ticket, draft domain.DraftTransaction) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.current(t)
	if err != nil {
		return Session{}, err
	}

	e.session.Draft = copyDraft(draft)
	e.setStatus(StatusEditing)
	e.session.Notice = ""
	e.session.UpdatedAt = s.now()
	e.cancel = nil
	return copySession(e.session), nil
}

// FailExtraction leaves the draft untouched and records the manual-entry
// notice if t is still the latest ticket.
func (s *Store) FailExtraction(t Ticket) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.current(t)
	if err != nil {
		return Session{}, err
	}

	e.setStatus(StatusEditing)
	e.session.Notice = ExtractionFailedNotice
	e.session.UpdatedAt = s.now()
	e.cancel = nil
	return copySession(e.session), nil
}

// Submit converts the draft into a ledger transaction and hands it to
// commit. While commit runs the session is marked submitting and a second
// Submit fails with ErrSubmitInProgress. The session is removed only when
// commit succeeds; otherwise its previous status is restored.
func (s *Store) Submit(ctx context.Context, id string, commit func(context.Context, domain.NewTransaction) error) (domain.NewTransaction, error) {
	tx, err := s.beginSubmit(id)
	if err != nil {
		return domain.NewTransaction{}, err
	}

	if err := commit(ctx, tx); err != nil {
		s.mu.Lock()
		if e, ok := s.sessions[id]; ok && e.submitting() {
			e.session.Status = e.resume
			e.session.UpdatedAt = s.now()
		}
		s.mu.Unlock()
		return domain.NewTransaction{}, fmt.Errorf("Submit: commit: %w", err)
	}

	s.mu.Lock()
	if e, ok := s.sessions[id]; ok {
		if e.cancel != nil {
			e.cancel()
		}
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	return tx, nil
}

func (s *Store) beginSubmit(id string) (domain.NewTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok {
		return domain.NewTransaction{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if e.submitting() {
		return domain.NewTransaction{}, fmt.Errorf("%w: %s", ErrSubmitInProgress, id)
	}

	tx, err := e.session.Draft.ToNewTransaction()
	if err != nil {
		return domain.NewTransaction{}, err
	}

	e.resume = e.session.Status
	e.session.Status = StatusSubmitting
	e.session.UpdatedAt = s.now()
	return tx, nil
}

// current returns the entry for t if t is the session's latest ticket.
// The caller must hold s.mu.
func (s *Store) current(t Ticket) (*entry, error) {
	e, ok := s.sessions[t.SessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, t.SessionID)
	}
	if e.session.Generation != t.Generation {
		return nil, fmt.Errorf("%w: generation %d, latest %d", ErrSuperseded, t.Generation, e.session.Generation)
	}
	return e, nil
}

func copySession(sess Session) Session {
	sess.Draft = copyDraft(sess.Draft)
	return sess
}

// copyDraft duplicates the pointed-to values so the store and its callers
// never alias draft fields.
func copyDraft(d domain.DraftTransaction) domain.DraftTransaction {
	var out domain.DraftTransaction
	if d.Amount != nil {
		v := *d.Amount
		out.Amount = &v
	}
	if d.Direction != nil {
		v := *d.Direction
		out.Direction = &v
	}
	if d.Date != nil {
		v := *d.Date
		out.Date = &v
	}
	if d.Description != nil {
		v := *d.Description
		out.Description = &v
	}
	if d.Category != nil {
		v := *d.Category
		out.Category = &v
	}
	return out
}
