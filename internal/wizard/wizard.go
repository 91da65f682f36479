// Package wizard holds the client-side answer accumulator that walks a user
// through the question catalog one question at a time and submits the result.
package wizard

import (
	"context"
	"errors"
	"sort"
	"sync"

	"lawly.io/sow-wizard/internal/store"
)

var (
	// ErrBusy is returned when a load or submission is already in flight.
	ErrBusy = errors.New("wizard: operation in progress")
	// ErrNoQuestions is recorded as a load failure when the catalog is empty.
	ErrNoQuestions = errors.New("wizard: no questions available")
)

type Phase int

const (
	AwaitingQuestions Phase = iota
	Ready
	Submitting
	Completed
	Failed
)

func (p Phase) String() string {
	switch p {
	case AwaitingQuestions:
		return "awaiting_questions"
	case Ready:
		return "ready"
	case Submitting:
		return "submitting"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Stage says which step a Failed wizard failed at, and therefore what Retry redoes.
type Stage int

const (
	StageLoad Stage = iota
	StageSubmit
)

// Client is the slice of the API the wizard needs.
type Client interface {
	ListQuestions(ctx context.Context) ([]store.Question, error)
	Submit(ctx context.Context, answers []store.AnswerItem) (*store.Session, error)
}

// State is an immutable snapshot. Answers is never written after the snapshot is
// taken; every selection produces a new map.
type State struct {
	Phase     Phase
	Questions []store.Question
	Position  int
	Answers   map[string]string
	Session   *store.Session
	Err       error
	FailedAt  Stage
}

func (s State) CurrentQuestion() *store.Question {
	if s.Position < 0 || s.Position >= len(s.Questions) {
		return nil
	}
	return &s.Questions[s.Position]
}

func (s State) TotalQuestions() int {
	return len(s.Questions)
}

// CurrentAnswerID returns the selection for the current question, or "" if none.
func (s State) CurrentAnswerID() string {
	q := s.CurrentQuestion()
	if q == nil {
		return ""
	}
	return s.Answers[q.ID]
}

func (s State) IsLastQuestion() bool {
	return len(s.Questions) > 0 && s.Position == len(s.Questions)-1
}

func (s State) CanAdvance() bool {
	return s.CurrentAnswerID() != ""
}

// AnswerItems lists the accumulated answers in question order.
func (s State) AnswerItems() []store.AnswerItem {
	order := make(map[string]int, len(s.Questions))
	for _, q := range s.Questions {
		order[q.ID] = q.Order
	}
	items := make([]store.AnswerItem, 0, len(s.Answers))
	for qid, aid := range s.Answers {
		items = append(items, store.AnswerItem{QuestionID: qid, AnswerID: aid})
	}
	sort.Slice(items, func(i, j int) bool {
		oi, oj := order[items[i].QuestionID], order[items[j].QuestionID]
		if oi != oj {
			return oi < oj
		}
		return items[i].QuestionID < items[j].QuestionID
	})
	return items
}

// Wizard serializes state transitions. Network calls run without the lock held;
// while one is in flight Load, Advance and Retry return ErrBusy.
type Wizard struct {
	client Client

	mu      sync.Mutex
	state   State
	loading bool
}

func New(client Client) *Wizard {
	return &Wizard{
		client: client,
		state:  State{Phase: AwaitingQuestions, Answers: map[string]string{}},
	}
}

func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Wizard) busy() bool {
	return w.loading || w.state.Phase == Submitting
}

// Load fetches the catalog. It only applies before questions have been loaded or
// after a failed load.
func (w *Wizard) Load(ctx context.Context) (State, error) {
	w.mu.Lock()
	if w.busy() {
		w.mu.Unlock()
		return State{}, ErrBusy
	}
	if !w.canLoad() {
		st := w.state
		w.mu.Unlock()
		return st, nil
	}
	return w.load(ctx)
}

func (w *Wizard) canLoad() bool {
	switch w.state.Phase {
	case AwaitingQuestions:
		return true
	case Failed:
		return w.state.FailedAt == StageLoad
	}
	return false
}

// load runs with w.mu held and releases it.
func (w *Wizard) load(ctx context.Context) (State, error) {
	w.loading = true
	w.mu.Unlock()

	questions, err := w.client.ListQuestions(ctx)
	if err == nil && len(questions) == 0 {
		err = ErrNoQuestions
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.loading = false
	if err != nil {
		w.state = State{Phase: Failed, Answers: map[string]string{}, Err: err, FailedAt: StageLoad}
		return w.state, nil
	}
	sorted := append([]store.Question(nil), questions...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })
	w.state = State{Phase: Ready, Questions: sorted, Answers: map[string]string{}}
	return w.state, nil
}

// SelectAnswer records answerID for the current question, replacing any earlier
// choice. Outside Ready it does nothing.
func (w *Wizard) SelectAnswer(answerID string) State {
	w.mu.Lock()
	defer w.mu.Unlock()

	q := w.state.CurrentQuestion()
	if w.state.Phase != Ready || q == nil || answerID == "" {
		return w.state
	}
	answers := make(map[string]string, len(w.state.Answers)+1)
	for k, v := range w.state.Answers {
		answers[k] = v
	}
	answers[q.ID] = answerID

	next := w.state
	next.Answers = answers
	w.state = next
	return w.state
}

// Advance moves to the next question, or submits on the last one. It does nothing
// unless the current question is answered. A failed submission is reported through
// the returned state, not the error.
func (w *Wizard) Advance(ctx context.Context) (State, error) {
	w.mu.Lock()
	if w.busy() {
		w.mu.Unlock()
		return State{}, ErrBusy
	}
	if w.state.Phase != Ready || !w.state.CanAdvance() {
		st := w.state
		w.mu.Unlock()
		return st, nil
	}
	if !w.state.IsLastQuestion() {
		next := w.state
		next.Position++
		w.state = next
		st := w.state
		w.mu.Unlock()
		return st, nil
	}
	return w.submit(ctx)
}

// Retry repeats whatever failed: the catalog fetch, or the submission with the
// answers already collected.
func (w *Wizard) Retry(ctx context.Context) (State, error) {
	w.mu.Lock()
	if w.busy() {
		w.mu.Unlock()
		return State{}, ErrBusy
	}
	if w.state.Phase != Failed {
		st := w.state
		w.mu.Unlock()
		return st, nil
	}
	if w.state.FailedAt == StageLoad {
		return w.load(ctx)
	}
	return w.submit(ctx)
}

// submit runs with w.mu held and releases it. Position and answers survive a
// failure so Retry can resend them.
func (w *Wizard) submit(ctx context.Context) (State, error) {
	next := w.state
	next.Phase = Submitting
	next.Err = nil
	w.state = next
	answers := next.AnswerItems()
	w.mu.Unlock()

	session, err := w.client.Submit(ctx, answers)

	w.mu.Lock()
	defer w.mu.Unlock()
	next = w.state
	if err != nil {
		next.Phase = Failed
		next.Err = err
		next.FailedAt = StageSubmit
	} else {
		next.Phase = Completed
		next.Session = session
	}
	w.state = next
	return w.state, nil
}
