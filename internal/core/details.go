package core

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"lawly.io/sow-wizard/internal/store"
)

// FragmentSeparator separates fragments in the copyable document text.
const FragmentSeparator = "\n\n"

// QAItem pairs one answered question with the text of the chosen option.
type QAItem struct {
	QuestionNumber int    `json:"question_number"`
	QuestionID     string `json:"question_id"`
	QuestionText   string `json:"question_text"`
	AnswerText     string `json:"answer_text"`
}

type SessionDetails struct {
	ID          string    `json:"id"`
	CompletedAt time.Time `json:"completed_at"`
	Items       []QAItem  `json:"qa_items"`
	Fragments   []string  `json:"fragments"`
	CopyText    string    `json:"copy_text"`
}

// CopyText joins fragments into the document text users paste elsewhere.
func CopyText(fragments []string) string {
	return strings.Join(fragments, FragmentSeparator)
}

// BuildDetails joins a session's answers with the catalog. Answers whose question
// or option has since left the catalog are dropped from the Q&A list; the stored
// fragments are kept as they are.
func BuildDetails(session *store.Session, catalog []store.Question) (*SessionDetails, []store.AnswerItem) {
	questions := indexCatalog(catalog)

	var stale []store.AnswerItem
	items := make([]QAItem, 0, len(session.Answers))
	for _, a := range session.Answers {
		q, ok := questions[a.QuestionID]
		if !ok {
			stale = append(stale, a)
			continue
		}
		opt := q.Option(a.AnswerID)
		if opt == nil {
			stale = append(stale, a)
			continue
		}
		items = append(items, QAItem{
			QuestionNumber: q.Order,
			QuestionID:     q.ID,
			QuestionText:   q.Text,
			AnswerText:     opt.Text,
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].QuestionNumber < items[j].QuestionNumber
	})

	fragments := session.Fragments
	if fragments == nil {
		fragments = []string{}
	}
	return &SessionDetails{
		ID:          session.ID,
		CompletedAt: session.CompletedAt,
		Items:       items,
		Fragments:   fragments,
		CopyText:    CopyText(fragments),
	}, stale
}

// GetSessionDetails fetches the session and the current catalog concurrently and
// joins them.
func (s *SessionService) GetSessionDetails(ctx context.Context, id, owner string) (*SessionDetails, error) {
	if owner == "" {
		return nil, ErrUnauthorized
	}

	var (
		session *store.Session
		catalog []store.Question
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		session, err = s.GetSession(gctx, id, owner)
		return err
	})
	g.Go(func() error {
		var err error
		catalog, err = s.ListQuestions(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	details, stale := BuildDetails(session, catalog)
	for _, a := range stale {
		s.logger.Warn("Session answer no longer in catalog",
			zap.String("session_id", session.ID),
			zap.String("question_id", a.QuestionID),
			zap.String("answer_id", a.AnswerID))
	}
	return details, nil
}
