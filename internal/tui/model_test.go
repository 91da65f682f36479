package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"lawly.io/sow-wizard/internal/store"
	"lawly.io/sow-wizard/internal/wizard"
)

type fakeAPI struct {
	questions []store.Question
	submitErr error
	seen      bool
	marked    int
}

func (f *fakeAPI) ListQuestions(ctx context.Context) ([]store.Question, error) {
	return f.questions, nil
}

func (f *fakeAPI) Submit(ctx context.Context, answers []store.AnswerItem) (*store.Session, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	fragments := make([]string, 0, len(answers))
	for _, a := range answers {
		fragments = append(fragments, a.QuestionID+"="+a.AnswerID)
	}
	return &store.Session{ID: "s1", Answers: answers, Fragments: fragments}, nil
}

func (f *fakeAPI) GetProfile(ctx context.Context) (*store.Profile, error) {
	return &store.Profile{ID: "u1", HasSeenWelcome: f.seen}, nil
}

func (f *fakeAPI) MarkWelcomeSeen(ctx context.Context) (*store.Profile, error) {
	f.marked++
	f.seen = true
	return &store.Profile{ID: "u1", HasSeenWelcome: true}, nil
}

func twoQuestions() []store.Question {
	opts := []store.AnswerOption{{ID: "a1", Text: "Yes"}, {ID: "a2", Text: "No"}}
	return []store.Question{
		{ID: "q1", Order: 1, Text: "First?", Options: opts},
		{ID: "q2", Order: 2, Text: "Second?", Options: opts},
	}
}

// send applies msg and runs any resulting wizard command synchronously.
func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	for cmd != nil {
		out := cmd()
		switch out := out.(type) {
		case stateMsg, profileMsg:
			next, cmd = m.Update(out)
			m = next.(Model)
		case tea.BatchMsg:
			cmd = nil
			for _, c := range out {
				if c == nil {
					continue
				}
				if res := c(); res != nil {
					if _, ok := res.(stateMsg); ok {
						next, _ = m.Update(res)
						m = next.(Model)
					}
				}
			}
		default:
			cmd = nil
		}
	}
	return m
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func loadedModel(t *testing.T, api *fakeAPI) Model {
	t.Helper()
	wiz := wizard.New(api)
	m := New(wiz, api, zap.NewNop())
	st, err := wiz.Load(context.Background())
	require.NoError(t, err)
	return send(t, m, stateMsg{state: st})
}

func TestWalkThroughWizard(t *testing.T) {
	api := &fakeAPI{questions: twoQuestions(), seen: true}
	m := loadedModel(t, api)
	assert.Contains(t, m.View(), "Question 1 of 2")

	m = send(t, m, key("down"))
	m = send(t, m, key("enter"))
	assert.Contains(t, m.View(), "Question 2 of 2")
	assert.Contains(t, m.View(), "submit")

	m = send(t, m, key("1"))
	assert.Equal(t, "a1", m.state.CurrentAnswerID())
	m = send(t, m, key("enter"))

	require.Equal(t, wizard.Completed, m.state.Phase)
	assert.Equal(t, "q1=a2\n\nq2=a1", m.CopyText())
	assert.Contains(t, m.View(), "2 clauses generated")
}

func TestFailureAndRetry(t *testing.T) {
	api := &fakeAPI{questions: twoQuestions()[:1], seen: true, submitErr: errors.New("wrong answer count")}
	m := loadedModel(t, api)

	m = send(t, m, key("enter"))
	require.Equal(t, wizard.Failed, m.state.Phase)
	assert.Contains(t, m.View(), "wrong answer count")
	assert.Empty(t, m.CopyText())

	api.submitErr = nil
	m = send(t, m, key("r"))
	assert.Equal(t, wizard.Completed, m.state.Phase)
	assert.Equal(t, "q1=a1", m.CopyText())
}

func TestWelcomeShownOnce(t *testing.T) {
	api := &fakeAPI{questions: twoQuestions()}
	m := loadedModel(t, api)

	m = send(t, m, profileMsg{profile: &store.Profile{HasSeenWelcome: false}})
	assert.Contains(t, m.View(), "enter: start")

	m = send(t, m, key("enter"))
	assert.False(t, m.welcome)
	assert.Equal(t, 1, api.marked)
	assert.Contains(t, m.View(), "Question 1 of 2")
	assert.Zero(t, m.state.Position, "dismissing the welcome screen does not answer anything")
}
