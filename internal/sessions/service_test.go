package sessions_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbazhin/studyhub/internal/domain"
	"github.com/pbazhin/studyhub/internal/sessions"
	"github.com/pbazhin/studyhub/internal/store"
)

type emitted struct {
	room   string
	event  string
	global bool
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []emitted
}

func (f *fakeEmitter) Emit(room, event string, v any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emitted{room: room, event: event})
}

func (f *fakeEmitter) EmitAll(event string, v any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emitted{event: event, global: true})
}

func (f *fakeEmitter) all() []emitted {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]emitted, len(f.events))
	copy(out, f.events)
	return out
}

func newTestService(t *testing.T) (*sessions.Service, *fakeEmitter) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "svc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	em := &fakeEmitter{}
	return sessions.NewService(db, em), em
}

func TestCreateValidatesInput(t *testing.T) {
	svc, em := newTestService(t)
	ctx := context.Background()
	creator := domain.NewObjectID()

	cases := []struct {
		name      string
		session   string
		creatorID string
	}{
		{name: "short name", session: "ab", creatorID: creator},
		{name: "long name", session: strings.Repeat("x", 51), creatorID: creator},
		{name: "bad creator id", session: "Calc Study", creatorID: "not-hex"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.session, tc.creatorID)
			var verr *domain.ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
	assert.Empty(t, em.all(), "failed create must not broadcast")
}

func TestCreateEmitsNewSessionGlobally(t *testing.T) {
	svc, em := newTestService(t)

	sess, err := svc.Create(context.Background(), "  Calc Study  ", domain.NewObjectID())
	require.NoError(t, err)
	assert.Equal(t, "Calc Study", sess.Name)
	assert.True(t, sess.Active)
	assert.True(t, sess.MicOnly)
	assert.Equal(t, []string{}, sess.Participants)
	assert.Equal(t, []string{}, sess.RaisedHands)
	assert.True(t, domain.IsValidID(sess.ID))

	events := em.all()
	require.Len(t, events, 1)
	assert.Equal(t, "newSession", events[0].event)
	assert.True(t, events[0].global)
}

func TestJoinLifecycle(t *testing.T) {
	svc, em := newTestService(t)
	ctx := context.Background()
	sess, err := svc.Create(ctx, "Calc Study", domain.NewObjectID())
	require.NoError(t, err)
	user := domain.NewObjectID()

	updated, err := svc.Join(ctx, sess.ID, user)
	require.NoError(t, err)
	assert.Equal(t, []string{user}, updated.Participants)

	_, err = svc.Join(ctx, sess.ID, user)
	assert.ErrorIs(t, err, domain.ErrAlreadyJoined)

	again, err := svc.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{user}, again.Participants, "failed join must not duplicate the entry")

	events := em.all()
	joins := 0
	for _, e := range events {
		if e.event == "updateParticipants" {
			joins++
			assert.Equal(t, sess.ID, e.room)
		}
	}
	assert.Equal(t, 1, joins, "only the successful join broadcasts")
}

func TestJoinErrors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Join(ctx, "nope", domain.NewObjectID())
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	_, err = svc.Join(ctx, domain.NewObjectID(), domain.NewObjectID())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLeaveLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sess, err := svc.Create(ctx, "Calc Study", domain.NewObjectID())
	require.NoError(t, err)
	user := domain.NewObjectID()

	_, err = svc.Leave(ctx, sess.ID, user)
	assert.ErrorIs(t, err, domain.ErrNotInSession)

	_, err = svc.Join(ctx, sess.ID, user)
	require.NoError(t, err)

	updated, err := svc.Leave(ctx, sess.ID, user)
	require.NoError(t, err)
	assert.Empty(t, updated.Participants)

	_, err = svc.Leave(ctx, domain.NewObjectID(), user)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRaiseHandIdempotent(t *testing.T) {
	svc, em := newTestService(t)
	ctx := context.Background()
	sess, err := svc.Create(ctx, "Calc Study", domain.NewObjectID())
	require.NoError(t, err)
	user := domain.NewObjectID()

	raised, err := svc.RaiseHand(ctx, sess.ID, user)
	require.NoError(t, err)
	assert.Equal(t, []string{user}, raised)

	raised, err = svc.RaiseHand(ctx, sess.ID, user)
	require.NoError(t, err)
	assert.Equal(t, []string{user}, raised, "re-raising must leave the set unchanged")

	hands := 0
	for _, e := range em.all() {
		if e.event == "raisedHand" {
			hands++
		}
	}
	assert.Equal(t, 2, hands)
}

func TestUpdateEmptyPatchLeavesRecordUntouched(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sess, err := svc.Create(ctx, "Calc Study", domain.NewObjectID())
	require.NoError(t, err)

	_, err = svc.Update(ctx, sess.ID, domain.SessionPatch{})
	assert.ErrorIs(t, err, domain.ErrNoFields)

	got, err := svc.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.Equal(sess.UpdatedAt), "empty patch must not bump updatedAt")
}

func TestUpdateAppliesPatch(t *testing.T) {
	svc, em := newTestService(t)
	ctx := context.Background()
	sess, err := svc.Create(ctx, "Calc Study", domain.NewObjectID())
	require.NoError(t, err)

	title := "Linear Algebra"
	updated, err := svc.Update(ctx, sess.ID, domain.SessionPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Linear Algebra", updated.Name)

	last := em.all()[len(em.all())-1]
	assert.Equal(t, "sessionUpdated", last.event)
	assert.Equal(t, sess.ID, last.room)
}

// failingStore errors on every mutation so we can assert that broadcasts
// are aborted when persistence fails.
type failingStore struct {
	sessions.Store
}

var errBoom = errors.New("storage down")

func (f failingStore) CreateSession(ctx context.Context, sess *domain.Session) error {
	return errBoom
}

func TestStorageFailureAbortsBroadcast(t *testing.T) {
	em := &fakeEmitter{}
	svc := sessions.NewService(failingStore{}, em)

	_, err := svc.Create(context.Background(), "Calc Study", domain.NewObjectID())
	assert.ErrorIs(t, err, errBoom)
	assert.Empty(t, em.all(), "partial state must never be announced")
}
