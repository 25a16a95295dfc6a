package triage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadedSession(t *testing.T, tracker *fakeTracker, id string) *Session {
	t.Helper()
	s := NewSession(tracker)
	require.NoError(t, s.Load(context.Background(), id))
	require.Equal(t, PhaseLoaded, s.Snapshot().Phase)
	return s
}

func TestSession_LoadByEitherKey(t *testing.T) {
	tracker := newFakeTracker(sampleTicket("1", "JIRA-101", "Open"))

	s := NewSession(tracker)
	assert.Equal(t, PhaseIdle, s.Snapshot().Phase)

	require.NoError(t, s.Load(context.Background(), "JIRA-101"))
	snap := s.Snapshot()
	require.NotNil(t, snap.Record)
	assert.Equal(t, "1", snap.Record.LocalID)
	assert.Equal(t, "JIRA-101", snap.RequestedID)

	require.NoError(t, s.Load(context.Background(), "1"))
	assert.Equal(t, "JIRA-101", s.Snapshot().Record.ExternalKey)
}

func TestSession_LoadErrorIsTerminalUntilReload(t *testing.T) {
	tracker := newFakeTracker(sampleTicket("1", "JIRA-101", "Open"))
	s := NewSession(tracker)

	err := s.Load(context.Background(), "NOPE-1")
	require.ErrorIs(t, err, ErrNotFound)
	snap := s.Snapshot()
	assert.Equal(t, PhaseLoadError, snap.Phase)
	assert.Nil(t, snap.Record)
	assert.ErrorIs(t, snap.LoadErr, ErrNotFound)

	err = s.ChangeStatus(context.Background(), "Done")
	require.True(t, IsPrecondition(err))
	err = s.AddComment(context.Background(), "hello")
	require.True(t, IsPrecondition(err))

	require.NoError(t, s.Load(context.Background(), "JIRA-101"))
	assert.Equal(t, PhaseLoaded, s.Snapshot().Phase)
	assert.Nil(t, s.Snapshot().LoadErr)
}

func TestSession_LoadRequiresID(t *testing.T) {
	s := NewSession(newFakeTracker())
	require.True(t, IsPrecondition(s.Load(context.Background(), "  ")))
	assert.Equal(t, PhaseIdle, s.Snapshot().Phase)
}

func TestSession_ChangeStatusAdoptsServiceRecord(t *testing.T) {
	tracker := newFakeTracker(sampleTicket("1", "JIRA-101", "Open"))
	s := loadedSession(t, tracker, "JIRA-101")
	before := s.Snapshot().Record.UpdatedAt

	require.NoError(t, s.ChangeStatus(context.Background(), "In Progress"))

	snap := s.Snapshot()
	assert.Equal(t, PhaseLoaded, snap.Phase)
	assert.Equal(t, "In Progress", snap.Record.Status)
	assert.True(t, snap.Record.UpdatedAt.After(before), "record should come from the tracker")
	assert.NoError(t, snap.Err)
}

func TestSession_ChangeStatusSameStatusMakesNoCall(t *testing.T) {
	tracker := newFakeTracker(sampleTicket("1", "JIRA-101", "Open"))
	s := loadedSession(t, tracker, "1")

	err := s.ChangeStatus(context.Background(), "Open")
	require.True(t, IsPrecondition(err))
	_, _, set, _ := tracker.calls()
	assert.Equal(t, 0, set)
}

func TestSession_ChangeStatusMissingIdentity(t *testing.T) {
	rec := sampleTicket("", "JIRA-101", "Open")
	tracker := newFakeTracker(rec)
	s := loadedSession(t, tracker, "JIRA-101")

	require.True(t, IsPrecondition(s.ChangeStatus(context.Background(), "Done")))
	require.True(t, IsPrecondition(s.AddComment(context.Background(), "hi")))
	_, _, set, comment := tracker.calls()
	assert.Zero(t, set)
	assert.Zero(t, comment)
}

func TestSession_ChangeStatusFailureKeepsPriorRecord(t *testing.T) {
	tracker := newFakeTracker(sampleTicket("1", "JIRA-101", "Open"))
	s := loadedSession(t, tracker, "1")
	tracker.setErr = NewError(KindValidation, "set status", "bad status", nil)

	err := s.ChangeStatus(context.Background(), "Bogus")
	require.ErrorIs(t, err, ErrValidation)

	snap := s.Snapshot()
	assert.Equal(t, PhaseLoaded, snap.Phase)
	assert.Equal(t, "Open", snap.Record.Status)
	assert.ErrorIs(t, snap.Err, ErrValidation)
	assert.False(t, snap.Busy(OpStatusUpdate))

	tracker.setErr = nil
	require.NoError(t, s.ChangeStatus(context.Background(), "Done"))
	assert.NoError(t, s.Snapshot().Err)
}

func TestSession_SecondStatusUpdateRejectedWhilePending(t *testing.T) {
	tracker := newFakeTracker(sampleTicket("1", "JIRA-101", "Open"))
	s := loadedSession(t, tracker, "1")
	release := make(chan struct{})
	tracker.blockSet = release

	done := make(chan error, 1)
	go func() { done <- s.ChangeStatus(context.Background(), "Done") }()
	<-tracker.entered

	snap := s.Snapshot()
	assert.Equal(t, PhaseUpdating, snap.Phase)
	assert.True(t, snap.Busy(OpStatusUpdate))
	assert.Equal(t, "Done", snap.PendingStatus)
	assert.Equal(t, "Open", snap.Record.Status, "no optimistic write")

	err := s.ChangeStatus(context.Background(), "Closed")
	require.True(t, IsPrecondition(err))

	close(release)
	require.NoError(t, <-done)
	_, _, set, _ := tracker.calls()
	assert.Equal(t, 1, set)
	assert.Equal(t, "Done", s.Snapshot().Record.Status)
}

func TestSession_AddCommentRefetchesThread(t *testing.T) {
	tracker := newFakeTracker(sampleTicket("1", "JIRA-101", "Open"))
	s := loadedSession(t, tracker, "JIRA-101")
	s.SetDraft("Looks good to me")

	require.NoError(t, s.SubmitDraft(context.Background()))

	snap := s.Snapshot()
	require.Len(t, snap.Record.Comments, 1)
	assert.Equal(t, "Looks good to me", snap.Record.Comments[0].Body)
	assert.Empty(t, snap.Draft)
	_, get, _, _ := tracker.calls()
	assert.Equal(t, 2, get, "load plus refresh")
}

func TestSession_AddCommentIncreasesThreadByOne(t *testing.T) {
	rec := sampleTicket("1", "JIRA-101", "Open")
	rec.Comments = []Comment{{ID: "c0", Body: "first"}}
	tracker := newFakeTracker(rec)
	s := loadedSession(t, tracker, "1")

	require.NoError(t, s.AddComment(context.Background(), "second"))
	comments := s.Snapshot().Record.Comments
	require.Len(t, comments, 2)
	assert.Equal(t, "second", comments[len(comments)-1].Body)
}

func TestSession_AddCommentRejectsBlankBody(t *testing.T) {
	tracker := newFakeTracker(sampleTicket("1", "JIRA-101", "Open"))
	s := loadedSession(t, tracker, "1")

	require.True(t, IsPrecondition(s.AddComment(context.Background(), " \n\t ")))
	_, _, _, comment := tracker.calls()
	assert.Zero(t, comment)
}

func TestSession_AddCommentFailurePreservesDraft(t *testing.T) {
	tracker := newFakeTracker(sampleTicket("1", "JIRA-101", "Open"))
	s := loadedSession(t, tracker, "1")
	tracker.commentErr = NewError(KindNetwork, "add comment", "", errors.New("connection reset"))

	s.SetDraft("please keep me")
	err := s.SubmitDraft(context.Background())
	require.ErrorIs(t, err, ErrNetwork)

	snap := s.Snapshot()
	assert.Equal(t, "please keep me", snap.Draft)
	assert.Equal(t, PhaseLoaded, snap.Phase)
	assert.Empty(t, snap.Record.Comments)
	assert.ErrorIs(t, snap.Err, ErrNetwork)
}

func TestSession_AddCommentRefreshFailureKeepsRecord(t *testing.T) {
	tracker := newFakeTracker(sampleTicket("1", "JIRA-101", "Open"))
	s := loadedSession(t, tracker, "1")
	tracker.getErr = NewError(KindNetwork, "get ticket", "", nil)

	s.SetDraft("created but not refreshed")
	err := s.SubmitDraft(context.Background())
	require.ErrorIs(t, err, ErrNetwork)

	snap := s.Snapshot()
	assert.Equal(t, PhaseLoaded, snap.Phase)
	assert.Empty(t, snap.Record.Comments)
	assert.Empty(t, snap.Draft, "comment was created, draft is consumed")
}

func TestSession_AddCommentWhileStatusUpdating(t *testing.T) {
	tracker := newFakeTracker(sampleTicket("1", "JIRA-101", "Open"))
	s := loadedSession(t, tracker, "1")
	release := make(chan struct{})
	tracker.blockSet = release

	done := make(chan error, 1)
	go func() { done <- s.ChangeStatus(context.Background(), "Done") }()
	<-tracker.entered

	require.NoError(t, s.AddComment(context.Background(), "while updating"))
	close(release)
	require.NoError(t, <-done)

	snap := s.Snapshot()
	assert.Equal(t, "Done", snap.Record.Status)
	require.Len(t, snap.Record.Comments, 1)
}

func TestSession_SecondCommentRejectedWhileSubmitting(t *testing.T) {
	tracker := newFakeTracker(sampleTicket("1", "JIRA-101", "Open"))
	s := loadedSession(t, tracker, "1")
	release := make(chan struct{})
	tracker.blockComment = release

	done := make(chan error, 1)
	go func() { done <- s.AddComment(context.Background(), "one") }()
	<-tracker.entered

	assert.Equal(t, PhaseSubmitting, s.Snapshot().Phase)
	require.True(t, IsPrecondition(s.AddComment(context.Background(), "two")))

	close(release)
	require.NoError(t, <-done)
	_, _, _, comment := tracker.calls()
	assert.Equal(t, 1, comment)
}

func TestSession_ResultDiscardedAfterClose(t *testing.T) {
	tracker := newFakeTracker(sampleTicket("1", "JIRA-101", "Open"))
	s := loadedSession(t, tracker, "1")
	release := make(chan struct{})
	tracker.blockSet = release

	done := make(chan error, 1)
	go func() { done <- s.ChangeStatus(context.Background(), "Done") }()
	<-tracker.entered

	s.Close()
	close(release)
	require.ErrorIs(t, <-done, ErrStale)
	assert.Equal(t, "Open", s.Snapshot().Record.Status)
	require.True(t, IsPrecondition(s.Load(context.Background(), "1")))
}

func TestSession_ResultDiscardedAfterReload(t *testing.T) {
	tracker := newFakeTracker(sampleTicket("1", "JIRA-101", "Open"), sampleTicket("2", "JIRA-102", "Waiting"))
	s := loadedSession(t, tracker, "1")
	release := make(chan struct{})
	tracker.blockSet = release

	done := make(chan error, 1)
	go func() { done <- s.ChangeStatus(context.Background(), "Done") }()
	<-tracker.entered

	require.NoError(t, s.Load(context.Background(), "JIRA-102"))
	close(release)
	require.ErrorIs(t, <-done, ErrStale)

	snap := s.Snapshot()
	assert.Equal(t, "2", snap.Record.LocalID)
	assert.Equal(t, "Waiting", snap.Record.Status)
	assert.False(t, snap.Busy(OpStatusUpdate))
}

func TestSession_SnapshotIsCopy(t *testing.T) {
	tracker := newFakeTracker(sampleTicket("1", "JIRA-101", "Open"))
	s := loadedSession(t, tracker, "1")

	snap := s.Snapshot()
	snap.Record.Status = "Hacked"
	snap.InFlight[OpStatusUpdate] = true

	again := s.Snapshot()
	assert.Equal(t, "Open", again.Record.Status)
	assert.False(t, again.Busy(OpStatusUpdate))
}

func TestSession_CommentRefetchDoesNotUndoStatusUpdate(t *testing.T) {
	tracker := newFakeTracker(sampleTicket("1", "JIRA-101", "Open"))
	s := loadedSession(t, tracker, "1")
	release := make(chan struct{})
	tracker.blockGet = release

	done := make(chan error, 1)
	go func() { done <- s.AddComment(context.Background(), "looking into it") }()
	require.Equal(t, "get", <-tracker.entered)

	require.NoError(t, s.ChangeStatus(context.Background(), "Done"))
	close(release)
	require.NoError(t, <-done)

	snap := s.Snapshot()
	assert.Equal(t, "Done", snap.Record.Status)
	require.Len(t, snap.Record.Comments, 1)
	assert.Equal(t, "looking into it", snap.Record.Comments[0].Body)
	assert.False(t, snap.Busy(OpCommentSubmit))
}

func TestSession_CommentRefetchAdoptedWithoutConcurrentUpdate(t *testing.T) {
	tracker := newFakeTracker(sampleTicket("1", "JIRA-101", "Open"))
	s := loadedSession(t, tracker, "1")

	require.NoError(t, s.AddComment(context.Background(), "first"))
	snap := s.Snapshot()
	assert.Equal(t, "Open", snap.Record.Status)
	require.Len(t, snap.Record.Comments, 1)
}
