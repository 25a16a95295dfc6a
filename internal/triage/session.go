package triage

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Phase is the visible state of a controller.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseLoading    Phase = "loading"
	PhaseLoaded     Phase = "loaded"
	PhaseUpdating   Phase = "updating"
	PhaseSubmitting Phase = "submitting"
	PhaseLoadError  Phase = "load_error"
)

// Operation names the mutations a session can have in flight.
type Operation string

const (
	OpStatusUpdate  Operation = "status-update"
	OpCommentSubmit Operation = "comment-submit"
)

// ErrStale is returned when a call completed after the session was closed or
// reloaded. Its result has been dropped.
var ErrStale = errors.New("triage: result discarded for stale session")

// SessionSnapshot is a copy of a session's state at one point in time.
type SessionSnapshot struct {
	Phase       Phase
	RequestedID string
	// Record is nil until the first successful load.
	Record *TicketRecord
	// Err is the last recoverable failure; the record stays usable.
	Err error
	// LoadErr is set only in PhaseLoadError.
	LoadErr error
	// Draft is the pending comment text.
	Draft         string
	InFlight      map[Operation]bool
	PendingStatus string
}

// Busy reports whether op is in flight.
func (s SessionSnapshot) Busy(op Operation) bool {
	return s.InFlight[op]
}

// Session owns the local copy of one ticket and drives its mutations.
type Session struct {
	tracker Tracker
	logger  *zap.Logger

	mu            sync.Mutex
	gen           uint64
	closed        bool
	phase         Phase
	id            string
	record        *TicketRecord
	err           error
	loadErr       error
	draft         string
	updating      bool
	pendingStatus string
	submitting    bool
	// statusSeq counts adopted status updates for the loaded record.
	statusSeq uint64
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionLogger sets the logger used for session transitions.
func WithSessionLogger(logger *zap.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSession creates an idle session.
func NewSession(tracker Tracker, opts ...SessionOption) *Session {
	s := &Session{
		tracker: tracker,
		logger:  zap.NewNop(),
		phase:   PhaseIdle,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Load fetches the ticket identified by id (local id or external key) and
// replaces whatever the session held. Any call still in flight from before is
// discarded when it returns.
func (s *Session) Load(ctx context.Context, id string) error {
	const op = "load"
	id = strings.TrimSpace(id)
	if id == "" {
		return preconditionf(op, "ticket id is required")
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return preconditionf(op, "session is closed")
	}
	s.gen++
	gen := s.gen
	s.phase = PhaseLoading
	s.id = id
	s.record = nil
	s.err = nil
	s.loadErr = nil
	s.updating = false
	s.pendingStatus = ""
	s.submitting = false
	s.mu.Unlock()

	s.logger.Debug("loading ticket", zap.String("ticket", id))
	rec, err := s.tracker.GetTicket(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stale(gen) {
		return ErrStale
	}
	if err != nil {
		s.phase = PhaseLoadError
		s.loadErr = err
		s.logger.Warn("ticket load failed", zap.String("ticket", id), zap.Error(err))
		return err
	}
	r := rec.Clone()
	s.record = &r
	s.phase = PhaseLoaded
	return nil
}

// ChangeStatus asks the tracker to move the ticket to newStatus and adopts the
// returned record. On failure the prior record is kept and the error is
// recorded on the session.
func (s *Session) ChangeStatus(ctx context.Context, newStatus string) error {
	const op = "change status"

	s.mu.Lock()
	if err := s.checkLoaded(op); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.updating {
		s.mu.Unlock()
		return preconditionf(op, "a status update is already in progress")
	}
	if s.record.LocalID == "" {
		s.mu.Unlock()
		return preconditionf(op, "ticket identity is missing")
	}
	if strings.TrimSpace(newStatus) == "" {
		s.mu.Unlock()
		return preconditionf(op, "status is required")
	}
	if newStatus == s.record.Status {
		s.mu.Unlock()
		return preconditionf(op, "ticket already has status %q", newStatus)
	}
	gen := s.gen
	id := s.record.LocalID
	s.updating = true
	s.pendingStatus = newStatus
	s.err = nil
	s.mu.Unlock()

	s.logger.Debug("updating ticket status", zap.String("ticket", id), zap.String("status", newStatus))
	updated, err := s.tracker.SetTicketStatus(ctx, id, newStatus)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stale(gen) {
		return ErrStale
	}
	s.updating = false
	s.pendingStatus = ""
	if err != nil {
		s.err = err
		s.logger.Warn("status update failed", zap.String("ticket", id), zap.Error(err))
		return err
	}
	r := updated.Clone()
	s.record = &r
	s.statusSeq++
	return nil
}

// SetDraft stores the pending comment text.
func (s *Session) SetDraft(text string) {
	s.mu.Lock()
	s.draft = text
	s.mu.Unlock()
}

// SubmitDraft submits the current draft as a comment.
func (s *Session) SubmitDraft(ctx context.Context) error {
	s.mu.Lock()
	body := s.draft
	s.mu.Unlock()
	return s.AddComment(ctx, body)
}

// AddComment creates a comment and then re-fetches the ticket so the thread
// is the tracker's. If a status update is adopted while the re-fetch is out,
// only the re-fetched comments are taken. The draft is cleared only when it was the submitted text
// and the comment was created; on failure it is left untouched.
func (s *Session) AddComment(ctx context.Context, body string) error {
	const op = "add comment"

	s.mu.Lock()
	if err := s.checkLoaded(op); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.submitting {
		s.mu.Unlock()
		return preconditionf(op, "a comment is already being submitted")
	}
	if strings.TrimSpace(body) == "" {
		s.mu.Unlock()
		return preconditionf(op, "comment body is empty")
	}
	if s.record.LocalID == "" {
		s.mu.Unlock()
		return preconditionf(op, "ticket identity is missing")
	}
	gen := s.gen
	id := s.record.LocalID
	s.submitting = true
	s.err = nil
	s.mu.Unlock()

	s.logger.Debug("submitting comment", zap.String("ticket", id))
	if _, err := s.tracker.AddComment(ctx, id, body); err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.stale(gen) {
			return ErrStale
		}
		s.submitting = false
		s.err = err
		s.logger.Warn("comment submit failed", zap.String("ticket", id), zap.Error(err))
		return err
	}

	s.mu.Lock()
	seq := s.statusSeq
	s.mu.Unlock()
	refreshed, err := s.tracker.GetTicket(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stale(gen) {
		return ErrStale
	}
	s.submitting = false
	if s.draft == body {
		s.draft = ""
	}
	if err != nil {
		s.err = err
		s.logger.Warn("ticket refresh after comment failed", zap.String("ticket", id), zap.Error(err))
		return err
	}
	r := refreshed.Clone()
	if s.statusSeq != seq {
		// A status update landed after the refetch was sent; keep its
		// record and take only the thread.
		merged := s.record.Clone()
		merged.Comments = r.Comments
		r = merged
	}
	s.record = &r
	return nil
}

// Close discards the session. Calls still in flight drop their results.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.gen++
	s.mu.Unlock()
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := SessionSnapshot{
		Phase:       s.phase,
		RequestedID: s.id,
		Err:         s.err,
		LoadErr:     s.loadErr,
		Draft:       s.draft,
		InFlight: map[Operation]bool{
			OpStatusUpdate:  s.updating,
			OpCommentSubmit: s.submitting,
		},
		PendingStatus: s.pendingStatus,
	}
	if s.record != nil {
		r := s.record.Clone()
		snap.Record = &r
	}
	if s.phase == PhaseLoaded {
		switch {
		case s.updating:
			snap.Phase = PhaseUpdating
		case s.submitting:
			snap.Phase = PhaseSubmitting
		}
	}
	return snap
}

func (s *Session) checkLoaded(op string) error {
	if s.closed {
		return preconditionf(op, "session is closed")
	}
	if s.phase != PhaseLoaded || s.record == nil {
		return preconditionf(op, "ticket is not loaded")
	}
	return nil
}

func (s *Session) stale(gen uint64) bool {
	return s.closed || gen != s.gen
}
