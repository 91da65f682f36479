package store

import "time"

type User struct {
	ID             string    `json:"id"`               // UUID, used as the owner of sessions and profiles
	ExternalUserID string    `json:"external_user_id"` // e.g. "google:<sub>"
	Email          string    `json:"email,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// AuthSession is the server-side half of a sign-in. Tokens reference it by ID.
type AuthSession struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// Active reports whether the auth session can still authenticate requests at now.
func (a *AuthSession) Active(now time.Time) bool {
	return a.RevokedAt == nil && now.Before(a.ExpiresAt)
}

type AnswerOption struct {
	ID       string `json:"id" yaml:"id"`
	Text     string `json:"text" yaml:"text"`
	Fragment string `json:"sow_fragment" yaml:"fragment"`
}

type Question struct {
	ID      string         `json:"id"`
	Order   int            `json:"question_order"`
	Text    string         `json:"question_text"`
	Options []AnswerOption `json:"options"`
}

// Option returns the option with the given id, or nil.
func (q *Question) Option(id string) *AnswerOption {
	for i := range q.Options {
		if q.Options[i].ID == id {
			return &q.Options[i]
		}
	}
	return nil
}

type AnswerItem struct {
	QuestionID string `json:"question_id"`
	AnswerID   string `json:"answer_id"`
}

type Session struct {
	ID          string       `json:"id"`
	UserID      string       `json:"user_id"`
	CreatedAt   time.Time    `json:"created_at"`
	CompletedAt time.Time    `json:"completed_at"`
	Answers     []AnswerItem `json:"answers"`
	Fragments   []string     `json:"generated_fragments"`
}

type SessionSummary struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	CompletedAt time.Time `json:"completed_at"`
}

type Profile struct {
	ID             string    `json:"id"` // same as the owning user's ID
	HasSeenWelcome bool      `json:"has_seen_welcome"`
	CreatedAt      time.Time `json:"created_at"`
}
