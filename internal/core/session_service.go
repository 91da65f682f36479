package core

import (
	"context"

	"go.uber.org/zap"
	"lawly.io/sow-wizard/internal/store"
)

const (
	DefaultPageLimit = 10
	MinPageLimit     = 1
	MaxPageLimit     = 50
)

// Catalog reads the ordered question catalog.
type Catalog interface {
	ListQuestions(ctx context.Context) ([]store.Question, error)
}

// SessionStore persists completed sessions. Reads are always filtered by owner.
type SessionStore interface {
	CreateSession(ctx context.Context, userID string, answers []store.AnswerItem, fragments []string) (*store.Session, error)
	GetSessionByID(ctx context.Context, id, userID string) (*store.Session, error)
	ListSessions(ctx context.Context, userID string, limit, offset int) ([]store.SessionSummary, int, error)
}

type SessionService struct {
	catalog  Catalog
	sessions SessionStore
	logger   *zap.Logger
}

func NewSessionService(catalog Catalog, sessions SessionStore, logger *zap.Logger) *SessionService {
	return &SessionService{
		catalog:  catalog,
		sessions: sessions,
		logger:   logger,
	}
}

func (s *SessionService) ListQuestions(ctx context.Context) ([]store.Question, error) {
	questions, err := s.catalog.ListQuestions(ctx)
	if err != nil {
		return nil, storeError("list questions", err)
	}
	return questions, nil
}

// Submit turns a candidate answer set into a stored session: it re-reads the
// catalog, validates against it, generates fragments and persists the result.
// Once started it is not cancelled with ctx. Nothing is retried or deduplicated;
// submitting the same answers twice stores two sessions.
func (s *SessionService) Submit(ctx context.Context, owner string, answers []store.AnswerItem) (*store.Session, error) {
	if owner == "" {
		return nil, ErrUnauthorized
	}
	ctx = context.WithoutCancel(ctx)

	catalog, err := s.ListQuestions(ctx)
	if err != nil {
		return nil, err
	}
	if len(catalog) == 0 {
		return nil, &ValidationError{Reason: "no questions available"}
	}

	if err := Validate(answers, catalog); err != nil {
		return nil, err
	}

	fragments, err := GenerateFragments(answers, catalog)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.CreateSession(ctx, owner, answers, fragments)
	if err != nil {
		return nil, storeError("create session", err)
	}
	s.logger.Debug("Session created",
		zap.String("session_id", session.ID),
		zap.String("user_id", owner),
		zap.Int("fragments", len(session.Fragments)))
	return session, nil
}

// GetSession returns ErrNotFound for unknown ids and for sessions of other users alike.
func (s *SessionService) GetSession(ctx context.Context, id, owner string) (*store.Session, error) {
	if owner == "" {
		return nil, ErrUnauthorized
	}
	session, err := s.sessions.GetSessionByID(ctx, id, owner)
	if err != nil {
		return nil, storeError("get session", err)
	}
	if session == nil {
		return nil, ErrNotFound
	}
	return session, nil
}

func (s *SessionService) ListSessions(ctx context.Context, owner string, limit, offset int) ([]store.SessionSummary, int, error) {
	if owner == "" {
		return nil, 0, ErrUnauthorized
	}
	if limit < MinPageLimit || limit > MaxPageLimit {
		return nil, 0, &ValidationError{Reason: "Invalid limit parameter"}
	}
	if offset < 0 {
		return nil, 0, &ValidationError{Reason: "Invalid offset parameter"}
	}
	sessions, total, err := s.sessions.ListSessions(ctx, owner, limit, offset)
	if err != nil {
		return nil, 0, storeError("list sessions", err)
	}
	return sessions, total, nil
}
