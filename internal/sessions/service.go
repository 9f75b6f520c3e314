// Package sessions implements the authoritative lifecycle of study sessions:
// the persisted record is the source of truth for participation, while live
// presence stays with the room registry.
package sessions

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pbazhin/studyhub/internal/core"
	"github.com/pbazhin/studyhub/internal/domain"
)

// Store is the persistence surface the service needs. Every mutation must be
// an atomic conditional update keyed by session id.
type Store interface {
	CreateSession(ctx context.Context, sess *domain.Session) error
	SessionByID(ctx context.Context, id string) (*domain.Session, error)
	Sessions(ctx context.Context, filter domain.SessionFilter) ([]domain.Session, error)
	HasActiveJoin(ctx context.Context, sessionID, userID string) (bool, error)
	RecordJoin(ctx context.Context, sessionID, userID string) error
	RemoveParticipant(ctx context.Context, sessionID, userID string) error
	MarkLeft(ctx context.Context, sessionID, userID string) (bool, error)
	AddRaisedHand(ctx context.Context, sessionID, userID string) error
	UpdateSession(ctx context.Context, id string, patch domain.SessionPatch) error
}

type Service struct {
	Store   Store
	Emitter core.Emitter
}

func NewService(store Store, emitter core.Emitter) *Service {
	return &Service{Store: store, Emitter: emitter}
}

// Create validates and persists a new session with empty membership sets,
// then announces it to every connected client.
func (s *Service) Create(ctx context.Context, name, creatorID string) (*domain.Session, error) {
	trimmed, err := domain.ValidateSessionName(name)
	if err != nil {
		return nil, err
	}
	if !domain.IsValidID(creatorID) {
		return nil, &domain.ValidationError{Field: "creatorId", Reason: "invalid creator ID"}
	}

	now := time.Now().UTC()
	sess := &domain.Session{
		ID:           domain.NewObjectID(),
		Name:         trimmed,
		CreatorID:    creatorID,
		Active:       true,
		MicOnly:      true,
		Participants: []string{},
		RaisedHands:  []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}

	s.Emitter.EmitAll(core.EvtNewSession, sess)
	log.Info().Str("module", "sessions").Str("session", sess.ID).Str("creator", creatorID).Msg("session created")
	return sess, nil
}

// List returns sessions matching the filter.
func (s *Service) List(ctx context.Context, filter domain.SessionFilter) ([]domain.Session, error) {
	return s.Store.Sessions(ctx, filter)
}

// Get returns a single session.
func (s *Service) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	if !domain.IsValidID(sessionID) {
		return nil, domain.ErrInvalidID
	}
	return s.Store.SessionByID(ctx, sessionID)
}

// Join adds the user to the session's persisted participant set. A second
// join while an active join record exists fails with ErrAlreadyJoined and
// does not duplicate the participant entry.
func (s *Service) Join(ctx context.Context, sessionID, userID string) (*domain.Session, error) {
	if !domain.IsValidID(sessionID) || !domain.IsValidID(userID) {
		return nil, domain.ErrInvalidID
	}

	if _, err := s.Store.SessionByID(ctx, sessionID); err != nil {
		return nil, err
	}
	joined, err := s.Store.HasActiveJoin(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if joined {
		return nil, domain.ErrAlreadyJoined
	}
	if err := s.Store.RecordJoin(ctx, sessionID, userID); err != nil {
		return nil, err
	}

	sess, err := s.Store.SessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	// The persisted participant list, not live presence: the user may not
	// have an open connection yet.
	s.Emitter.Emit(sessionID, core.EvtUpdateParticipants, core.ParticipantsPayload{
		SessionID:    sessionID,
		Participants: sess.Participants,
	})
	log.Info().Str("module", "sessions").Str("session", sessionID).Str("user", userID).Msg("user joined")
	return sess, nil
}

// Leave pulls the user from the participant set, then flips the active join
// record. A missing record fails with ErrNotInSession; the pull stands.
func (s *Service) Leave(ctx context.Context, sessionID, userID string) (*domain.Session, error) {
	if !domain.IsValidID(sessionID) || !domain.IsValidID(userID) {
		return nil, domain.ErrInvalidID
	}

	if err := s.Store.RemoveParticipant(ctx, sessionID, userID); err != nil {
		return nil, err
	}
	ok, err := s.Store.MarkLeft(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrNotInSession
	}

	sess, err := s.Store.SessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	s.Emitter.Emit(sessionID, core.EvtUpdateParticipants, core.ParticipantsPayload{
		SessionID:    sessionID,
		Participants: sess.Participants,
	})
	log.Info().Str("module", "sessions").Str("session", sessionID).Str("user", userID).Msg("user left")
	return sess, nil
}

// RaiseHand adds the user to the session's raised-hand set. Re-raising is
// idempotent. Hands stay raised for the life of the session; no lower-hand
// operation exists.
func (s *Service) RaiseHand(ctx context.Context, sessionID, userID string) ([]string, error) {
	if !domain.IsValidID(sessionID) || !domain.IsValidID(userID) {
		return nil, domain.ErrInvalidID
	}

	if err := s.Store.AddRaisedHand(ctx, sessionID, userID); err != nil {
		return nil, err
	}
	sess, err := s.Store.SessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	s.Emitter.Emit(sessionID, core.EvtRaisedHand, core.RaisedHandPayload{UserID: userID})
	log.Info().Str("module", "sessions").Str("session", sessionID).Str("user", userID).Msg("hand raised")
	return sess.RaisedHands, nil
}

// Update applies a patch limited to title and description and announces the
// updated record to the session's room. An empty patch fails before any
// storage call, leaving updated_at untouched.
func (s *Service) Update(ctx context.Context, sessionID string, patch domain.SessionPatch) (*domain.Session, error) {
	if !domain.IsValidID(sessionID) {
		return nil, domain.ErrInvalidID
	}
	if patch.Empty() {
		return nil, domain.ErrNoFields
	}
	if patch.Title != nil {
		trimmed, err := domain.ValidateSessionName(*patch.Title)
		if err != nil {
			return nil, err
		}
		patch.Title = &trimmed
	}

	if err := s.Store.UpdateSession(ctx, sessionID, patch); err != nil {
		return nil, err
	}
	sess, err := s.Store.SessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	s.Emitter.Emit(sessionID, core.EvtSessionUpdated, sess)
	log.Info().Str("module", "sessions").Str("session", sessionID).Msg("session updated")
	return sess, nil
}
