package wizard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"lawly.io/sow-wizard/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClient struct {
	mu        sync.Mutex
	questions []store.Question
	listErr   error
	submitErr error
	lists     int
	submitted [][]store.AnswerItem

	// gate, when set, blocks Submit until it is closed.
	gate    chan struct{}
	entered chan struct{}
}

func (c *fakeClient) ListQuestions(ctx context.Context) ([]store.Question, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lists++
	if c.listErr != nil {
		return nil, c.listErr
	}
	return c.questions, nil
}

func (c *fakeClient) Submit(ctx context.Context, answers []store.AnswerItem) (*store.Session, error) {
	if c.entered != nil {
		close(c.entered)
	}
	if c.gate != nil {
		<-c.gate
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitted = append(c.submitted, answers)
	if c.submitErr != nil {
		return nil, c.submitErr
	}
	return &store.Session{ID: fmt.Sprintf("session-%d", len(c.submitted)), Answers: answers}, nil
}

func threeQuestions() []store.Question {
	qs := make([]store.Question, 0, 3)
	for i := 3; i >= 1; i-- { // deliberately out of order
		qs = append(qs, store.Question{
			ID:    fmt.Sprintf("q%d", i),
			Order: i,
			Text:  fmt.Sprintf("Question %d", i),
			Options: []store.AnswerOption{
				{ID: "a1", Text: "Yes", Fragment: "yes"},
				{ID: "a2", Text: "No", Fragment: "no"},
			},
		})
	}
	return qs
}

func loaded(t *testing.T, c *fakeClient) *Wizard {
	t.Helper()
	w := New(c)
	st, err := w.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, Ready, st.Phase)
	return w
}

func TestInitialState(t *testing.T) {
	st := New(&fakeClient{}).State()
	assert.Equal(t, AwaitingQuestions, st.Phase)
	assert.Nil(t, st.CurrentQuestion())
	assert.Zero(t, st.TotalQuestions())
	assert.False(t, st.IsLastQuestion())
	assert.False(t, st.CanAdvance())
	assert.Empty(t, st.CurrentAnswerID())
}

func TestLoadOrdersQuestions(t *testing.T) {
	w := loaded(t, &fakeClient{questions: threeQuestions()})
	st := w.State()
	assert.Equal(t, 3, st.TotalQuestions())
	assert.Equal(t, "q1", st.CurrentQuestion().ID)
	assert.False(t, st.CanAdvance())
}

func TestSelectReplacesAndKeepsSnapshots(t *testing.T) {
	w := loaded(t, &fakeClient{questions: threeQuestions()})

	first := w.SelectAnswer("a1")
	second := w.SelectAnswer("a2")

	assert.Equal(t, "a1", first.CurrentAnswerID(), "earlier snapshots are not mutated")
	assert.Equal(t, "a2", second.CurrentAnswerID())
	assert.Len(t, second.Answers, 1)
}

func TestAdvanceRequiresAnswer(t *testing.T) {
	w := loaded(t, &fakeClient{questions: threeQuestions()})

	st, err := w.Advance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, st.Position, "unanswered questions cannot be skipped")

	w.SelectAnswer("a1")
	st, err = w.Advance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, st.Position)
	assert.False(t, st.CanAdvance())
}

func TestCompleteRun(t *testing.T) {
	c := &fakeClient{questions: threeQuestions()}
	w := loaded(t, c)
	ctx := context.Background()

	for _, aid := range []string{"a2", "a1", "a2"} {
		w.SelectAnswer(aid)
		_, err := w.Advance(ctx)
		require.NoError(t, err)
	}

	st := w.State()
	require.Equal(t, Completed, st.Phase)
	assert.Equal(t, "session-1", st.Session.ID)
	require.Len(t, c.submitted, 1)
	assert.Equal(t, []store.AnswerItem{
		{QuestionID: "q1", AnswerID: "a2"},
		{QuestionID: "q2", AnswerID: "a1"},
		{QuestionID: "q3", AnswerID: "a2"},
	}, c.submitted[0])

	st = w.SelectAnswer("a1")
	assert.Equal(t, Completed, st.Phase, "selection is ignored once completed")
}

func TestSubmitFailureThenRetry(t *testing.T) {
	c := &fakeClient{questions: threeQuestions(), submitErr: errors.New("wrong answer count")}
	w := loaded(t, c)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		w.SelectAnswer("a1")
		_, err := w.Advance(ctx)
		require.NoError(t, err)
	}

	st := w.State()
	require.Equal(t, Failed, st.Phase)
	assert.Equal(t, StageSubmit, st.FailedAt)
	assert.EqualError(t, st.Err, "wrong answer count")
	assert.Equal(t, 2, st.Position, "position survives a failed submission")
	assert.Len(t, st.Answers, 3)

	c.mu.Lock()
	c.submitErr = nil
	c.mu.Unlock()

	st, err := w.Retry(ctx)
	require.NoError(t, err)
	assert.Equal(t, Completed, st.Phase)
	assert.Nil(t, st.Err)
	assert.Len(t, c.submitted, 2)
	assert.Equal(t, c.submitted[0], c.submitted[1], "retry resends the same answers")
	assert.Equal(t, 1, c.lists, "retrying a submission does not refetch questions")
}

func TestLoadFailureThenRetry(t *testing.T) {
	c := &fakeClient{listErr: errors.New("connection refused")}
	w := New(c)
	ctx := context.Background()

	st, err := w.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, Failed, st.Phase)
	assert.Equal(t, StageLoad, st.FailedAt)

	c.listErr = nil
	c.questions = threeQuestions()
	st, err = w.Retry(ctx)
	require.NoError(t, err)
	assert.Equal(t, Ready, st.Phase)
	assert.Equal(t, 2, c.lists)
}

func TestLoadEmptyCatalog(t *testing.T) {
	w := New(&fakeClient{})
	st, err := w.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Failed, st.Phase)
	assert.ErrorIs(t, st.Err, ErrNoQuestions)
}

func TestLoadOnlyOnce(t *testing.T) {
	c := &fakeClient{questions: threeQuestions()}
	w := loaded(t, c)
	w.SelectAnswer("a1")

	st, err := w.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a1", st.CurrentAnswerID(), "a second load leaves progress alone")
	assert.Equal(t, 1, c.lists)
}

func TestRetryOutsideFailedIsNoop(t *testing.T) {
	c := &fakeClient{questions: threeQuestions()}
	w := loaded(t, c)

	st, err := w.Retry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Ready, st.Phase)
	assert.Empty(t, c.submitted)
}

func TestSingleFlightSubmission(t *testing.T) {
	c := &fakeClient{
		questions: threeQuestions()[:1],
		gate:      make(chan struct{}),
		entered:   make(chan struct{}),
	}
	w := loaded(t, c)
	w.SelectAnswer("a1")

	done := make(chan State)
	go func() {
		st, _ := w.Advance(context.Background())
		done <- st
	}()
	<-c.entered

	assert.Equal(t, Submitting, w.State().Phase)
	_, err := w.Advance(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	_, err = w.Retry(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	_, err = w.Load(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	close(c.gate)
	st := <-done
	assert.Equal(t, Completed, st.Phase)
	assert.Len(t, c.submitted, 1)
}
