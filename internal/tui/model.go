// Package tui renders the wizard in a terminal.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"lawly.io/sow-wizard/internal/client"
	"lawly.io/sow-wizard/internal/core"
	"lawly.io/sow-wizard/internal/store"
	"lawly.io/sow-wizard/internal/wizard"
)

// Profiles is the part of the API client that drives the welcome screen.
type Profiles interface {
	GetProfile(ctx context.Context) (*store.Profile, error)
	MarkWelcomeSeen(ctx context.Context) (*store.Profile, error)
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7c3aed"))
	progressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#22c55e")).Bold(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444"))
	fragmentStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7c3aed")).
			Padding(0, 1)
	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3af")).Italic(true)
)

type stateMsg struct {
	state wizard.State
	err   error
}

type profileMsg struct {
	profile *store.Profile
	err     error
}

type Model struct {
	wiz      *wizard.Wizard
	profiles Profiles
	logger   *zap.Logger

	state   wizard.State
	cursor  int
	spinner spinner.Model
	welcome bool
	working bool
}

func New(wiz *wizard.Wizard, profiles Profiles, logger *zap.Logger) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = cursorStyle
	return Model{
		wiz:      wiz,
		profiles: profiles,
		logger:   logger,
		state:    wiz.State(),
		spinner:  sp,
		working:  true,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadCmd(), m.profileCmd())
}

func (m Model) loadCmd() tea.Cmd {
	return func() tea.Msg {
		st, err := m.wiz.Load(context.Background())
		return stateMsg{state: st, err: err}
	}
}

func (m Model) advanceCmd() tea.Cmd {
	return func() tea.Msg {
		st, err := m.wiz.Advance(context.Background())
		return stateMsg{state: st, err: err}
	}
}

func (m Model) retryCmd() tea.Cmd {
	return func() tea.Msg {
		st, err := m.wiz.Retry(context.Background())
		return stateMsg{state: st, err: err}
	}
}

func (m Model) profileCmd() tea.Cmd {
	return func() tea.Msg {
		p, err := m.profiles.GetProfile(context.Background())
		return profileMsg{profile: p, err: err}
	}
}

func (m Model) markSeenCmd() tea.Cmd {
	return func() tea.Msg {
		p, err := m.profiles.MarkWelcomeSeen(context.Background())
		return profileMsg{profile: p, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case stateMsg:
		if errors.Is(msg.err, wizard.ErrBusy) {
			return m, nil
		}
		m.working = false
		if msg.state.Position != m.state.Position || msg.state.Phase != m.state.Phase {
			m.cursor = selectedIndex(msg.state)
		}
		m.state = msg.state
		if m.state.Phase == wizard.Failed {
			m.logger.Warn("Wizard step failed", zap.Stringer("phase", m.state.Phase), zap.Error(m.state.Err))
		}
		return m, nil

	case profileMsg:
		if msg.err != nil {
			// The welcome screen is optional; a missing profile must not block the wizard.
			m.logger.Warn("Failed to read profile", zap.Error(msg.err))
			return m, nil
		}
		m.welcome = !msg.profile.HasSeenWelcome
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" || key == "q" || key == "esc" {
		return m, tea.Quit
	}

	if m.welcome {
		if key == "enter" {
			m.welcome = false
			return m, m.markSeenCmd()
		}
		return m, nil
	}

	switch m.state.Phase {
	case wizard.Ready:
		q := m.state.CurrentQuestion()
		if q == nil || m.working {
			return m, nil
		}
		switch key {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(q.Options)-1 {
				m.cursor++
			}
		case "enter", " ":
			m.state = m.wiz.SelectAnswer(q.Options[m.cursor].ID)
			if key == "enter" {
				m.working = m.state.IsLastQuestion()
				return m, tea.Batch(m.advanceCmd(), m.spinner.Tick)
			}
		default:
			if n := digit(key); n > 0 && n <= len(q.Options) {
				m.cursor = n - 1
				m.state = m.wiz.SelectAnswer(q.Options[m.cursor].ID)
			}
		}

	case wizard.Failed:
		if key == "r" {
			m.working = true
			return m, tea.Batch(m.retryCmd(), m.spinner.Tick)
		}

	case wizard.Completed:
		if key == "enter" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Statement of Work wizard"))
	b.WriteString("\n\n")

	if m.welcome {
		b.WriteString("Answer a few questions and get ready-to-paste SOW clauses.\n")
		b.WriteString("Each question has one answer; you move forward only.\n\n")
		b.WriteString(helpStyle.Render("enter: start  q: quit"))
		return b.String()
	}

	if m.working {
		switch m.state.Phase {
		case wizard.Ready:
			b.WriteString(m.spinner.View() + " Generating your SOW...")
			return b.String()
		case wizard.Failed:
			b.WriteString(m.spinner.View() + " Retrying...")
			return b.String()
		}
	}

	switch m.state.Phase {
	case wizard.AwaitingQuestions:
		b.WriteString(m.spinner.View() + " Loading questions...")

	case wizard.Ready:
		q := m.state.CurrentQuestion()
		b.WriteString(progressStyle.Render(fmt.Sprintf("Question %d of %d", m.state.Position+1, m.state.TotalQuestions())))
		b.WriteString("\n\n" + q.Text + "\n\n")
		selected := m.state.CurrentAnswerID()
		for i, opt := range q.Options {
			pointer := "  "
			if i == m.cursor {
				pointer = cursorStyle.Render("> ")
			}
			mark := "( )"
			if opt.ID == selected {
				mark = "(•)"
			}
			fmt.Fprintf(&b, "%s%s %d. %s\n", pointer, mark, i+1, opt.Text)
		}
		b.WriteString("\n")
		action := "next"
		if m.state.IsLastQuestion() {
			action = "submit"
		}
		b.WriteString(helpStyle.Render("↑/↓: move  enter: choose and " + action + "  q: quit"))

	case wizard.Submitting:
		b.WriteString(m.spinner.View() + " Generating your SOW...")

	case wizard.Failed:
		b.WriteString(errorStyle.Render(failureText(m.state)))
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("r: retry  q: quit"))

	case wizard.Completed:
		fragments := m.state.Session.Fragments
		b.WriteString(fmt.Sprintf("Done. %d clauses generated:\n\n", len(fragments)))
		b.WriteString(fragmentStyle.Render(core.CopyText(fragments)))
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter: exit"))
	}
	return b.String()
}

// CopyText is the generated document once the wizard has completed.
func (m Model) CopyText() string {
	if m.state.Phase != wizard.Completed || m.state.Session == nil {
		return ""
	}
	return core.CopyText(m.state.Session.Fragments)
}

func failureText(st wizard.State) string {
	if errors.Is(st.Err, client.ErrUnauthorized) {
		return "Your session has expired. Issue a new token and start again."
	}
	if st.FailedAt == wizard.StageLoad {
		return "Could not load questions: " + st.Err.Error()
	}
	return "Could not save your answers: " + st.Err.Error()
}

func selectedIndex(st wizard.State) int {
	q := st.CurrentQuestion()
	if q == nil {
		return 0
	}
	selected := st.CurrentAnswerID()
	for i, opt := range q.Options {
		if opt.ID == selected {
			return i
		}
	}
	return 0
}

func digit(key string) int {
	if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
		return int(key[0] - '0')
	}
	return 0
}
