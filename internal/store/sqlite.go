package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite serializes writers anyway, and ":memory:" databases
	// are per-connection.
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    PRAGMA foreign_keys = ON;

    CREATE TABLE IF NOT EXISTS users (
        id TEXT PRIMARY KEY, -- UUID
        external_user_id TEXT UNIQUE NOT NULL,
        email TEXT NOT NULL DEFAULT '',
        created_at DATETIME NOT NULL
    );

    CREATE TABLE IF NOT EXISTS auth_sessions (
        id TEXT PRIMARY KEY, -- UUID, carried as the token jti
        user_id TEXT NOT NULL,
        created_at DATETIME NOT NULL,
        expires_at DATETIME NOT NULL,
        revoked_at DATETIME,
        FOREIGN KEY (user_id) REFERENCES users (id)
    );

    CREATE TABLE IF NOT EXISTS profiles (
        id TEXT PRIMARY KEY, -- users.id
        has_seen_welcome BOOLEAN NOT NULL DEFAULT FALSE,
        created_at DATETIME NOT NULL,
        FOREIGN KEY (id) REFERENCES users (id)
    );

    CREATE TABLE IF NOT EXISTS questions (
        id TEXT PRIMARY KEY,
        question_order INTEGER UNIQUE NOT NULL CHECK (question_order > 0),
        question_text TEXT NOT NULL,
        options_json TEXT NOT NULL -- JSON array of AnswerOption
    );

    CREATE TABLE IF NOT EXISTS sessions (
        id TEXT PRIMARY KEY, -- UUID
        user_id TEXT NOT NULL,
        created_at DATETIME NOT NULL,
        completed_at DATETIME NOT NULL,
        answers_json TEXT NOT NULL,
        fragments_json TEXT NOT NULL,
        FOREIGN KEY (user_id) REFERENCES users (id)
    );

    CREATE INDEX IF NOT EXISTS idx_sessions_user_completed ON sessions (user_id, completed_at DESC);
    `
	_, err := s.db.Exec(schema)
	return err
}

// User methods

func (s *SQLiteStore) GetUserByExternalID(ctx context.Context, externalUserID string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, "SELECT id, external_user_id, email, created_at FROM users WHERE external_user_id = ?", externalUserID))
}

func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, "SELECT id, external_user_id, email, created_at FROM users WHERE id = ?", id))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*User, error) {
	var user User
	err := row.Scan(&user.ID, &user.ExternalUserID, &user.Email, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

// GetOrCreateUser returns the user for externalUserID, creating it on first sight.
// A non-empty email replaces the stored one.
func (s *SQLiteStore) GetOrCreateUser(ctx context.Context, externalUserID, email string) (*User, error) {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO users (id, external_user_id, email, created_at) VALUES (?, ?, ?, ?)
        ON CONFLICT (external_user_id) DO UPDATE SET email = CASE WHEN excluded.email = '' THEN users.email ELSE excluded.email END`,
		uuid.NewString(), externalUserID, email, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	user, err := s.GetUserByExternalID(ctx, externalUserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %s missing after upsert", externalUserID)
	}
	return user, nil
}

// AuthSession methods

func (s *SQLiteStore) CreateAuthSession(ctx context.Context, userID string, ttl time.Duration) (*AuthSession, error) {
	now := s.now()
	as := &AuthSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	_, err := s.db.ExecContext(ctx, "INSERT INTO auth_sessions (id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)",
		as.ID, as.UserID, as.CreatedAt, as.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert auth session: %w", err)
	}
	return as, nil
}

func (s *SQLiteStore) GetAuthSession(ctx context.Context, id string) (*AuthSession, error) {
	var as AuthSession
	var revoked sql.NullTime
	err := s.db.QueryRowContext(ctx, "SELECT id, user_id, created_at, expires_at, revoked_at FROM auth_sessions WHERE id = ?", id).
		Scan(&as.ID, &as.UserID, &as.CreatedAt, &as.ExpiresAt, &revoked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get auth session: %w", err)
	}
	if revoked.Valid {
		as.RevokedAt = &revoked.Time
	}
	return &as, nil
}

// RevokeAuthSession marks the auth session revoked. Revoking an unknown or already
// revoked session is not an error.
func (s *SQLiteStore) RevokeAuthSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE auth_sessions SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL", s.now(), id)
	if err != nil {
		return fmt.Errorf("failed to revoke auth session: %w", err)
	}
	return nil
}

// Question methods

// ListQuestions returns the catalog ordered by question_order ascending.
func (s *SQLiteStore) ListQuestions(ctx context.Context) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, question_order, question_text, options_json FROM questions ORDER BY question_order ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}
	defer rows.Close()

	questions := []Question{}
	for rows.Next() {
		var q Question
		var optionsJSON string
		if err := rows.Scan(&q.ID, &q.Order, &q.Text, &optionsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan question row: %w", err)
		}
		if err := json.Unmarshal([]byte(optionsJSON), &q.Options); err != nil {
			return nil, fmt.Errorf("failed to decode options for question %s: %w", q.ID, err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate questions: %w", err)
	}
	return questions, nil
}

// ReplaceQuestions swaps the whole catalog in a single transaction.
func (s *SQLiteStore) ReplaceQuestions(ctx context.Context, questions []Question) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin catalog transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM questions"); err != nil {
		return fmt.Errorf("failed to clear questions: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO questions (id, question_order, question_text, options_json) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare question insert: %w", err)
	}
	defer stmt.Close()

	for _, q := range questions {
		optionsJSON, err := json.Marshal(q.Options)
		if err != nil {
			return fmt.Errorf("failed to encode options for question %s: %w", q.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, q.ID, q.Order, q.Text, string(optionsJSON)); err != nil {
			return fmt.Errorf("failed to insert question %s: %w", q.ID, err)
		}
	}
	return tx.Commit()
}

// Session methods

// CreateSession inserts an already-completed session; created_at and completed_at
// are both the insertion time.
func (s *SQLiteStore) CreateSession(ctx context.Context, userID string, answers []AnswerItem, fragments []string) (*Session, error) {
	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return nil, fmt.Errorf("failed to encode answers: %w", err)
	}
	fragmentsJSON, err := json.Marshal(fragments)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fragments: %w", err)
	}

	now := s.now()
	session := &Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		CreatedAt:   now,
		CompletedAt: now,
		Answers:     append([]AnswerItem(nil), answers...),
		Fragments:   append([]string(nil), fragments...),
	}

	stmt, err := s.db.PrepareContext(ctx, "INSERT INTO sessions (id, user_id, created_at, completed_at, answers_json, fragments_json) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare session insert: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, session.ID, session.UserID, session.CreatedAt, session.CompletedAt, string(answersJSON), string(fragmentsJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to execute session insert: %w", err)
	}
	return session, nil
}

// GetSessionByID returns (nil, nil) when the session does not exist or belongs to
// another user; callers cannot tell the two apart.
func (s *SQLiteStore) GetSessionByID(ctx context.Context, id, userID string) (*Session, error) {
	var session Session
	var answersJSON, fragmentsJSON string
	err := s.db.QueryRowContext(ctx, "SELECT id, user_id, created_at, completed_at, answers_json, fragments_json FROM sessions WHERE id = ? AND user_id = ?", id, userID).
		Scan(&session.ID, &session.UserID, &session.CreatedAt, &session.CompletedAt, &answersJSON, &fragmentsJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if err := json.Unmarshal([]byte(answersJSON), &session.Answers); err != nil {
		return nil, fmt.Errorf("failed to decode answers for session %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(fragmentsJSON), &session.Fragments); err != nil {
		return nil, fmt.Errorf("failed to decode fragments for session %s: %w", id, err)
	}
	return &session, nil
}

// ListSessions returns one page of the user's sessions, most recently completed
// first, and the user's total session count.
func (s *SQLiteStore) ListSessions(ctx context.Context, userID string, limit, offset int) ([]SessionSummary, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions WHERE user_id = ?", userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count sessions: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
        SELECT id, created_at, completed_at
        FROM sessions
        WHERE user_id = ?
        ORDER BY completed_at DESC, rowid DESC
        LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []SessionSummary{}
	for rows.Next() {
		var summary SessionSummary
		if err := rows.Scan(&summary.ID, &summary.CreatedAt, &summary.CompletedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan session row: %w", err)
		}
		sessions = append(sessions, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return sessions, total, nil
}

// Profile methods

func (s *SQLiteStore) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	var profile Profile
	err := s.db.QueryRowContext(ctx, "SELECT id, has_seen_welcome, created_at FROM profiles WHERE id = ?", userID).
		Scan(&profile.ID, &profile.HasSeenWelcome, &profile.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &profile, nil
}

// EnsureProfile creates the user's profile with the welcome flag unset if it does
// not exist yet.
func (s *SQLiteStore) EnsureProfile(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, "INSERT OR IGNORE INTO profiles (id, has_seen_welcome, created_at) VALUES (?, FALSE, ?)", userID, s.now())
	if err != nil {
		return fmt.Errorf("failed to ensure profile: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SetWelcomeSeen(ctx context.Context, userID string) (*Profile, error) {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO profiles (id, has_seen_welcome, created_at) VALUES (?, TRUE, ?)
        ON CONFLICT (id) DO UPDATE SET has_seen_welcome = TRUE`, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, fmt.Errorf("profile %s missing after update", userID)
	}
	return profile, nil
}
