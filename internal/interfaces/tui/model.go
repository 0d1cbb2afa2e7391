package tui

import (
	"context"
	"log"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"todoapp/internal/domain/todo"
)

// SessionResolver reports the signed-in identity, or "" when there is none.
type SessionResolver func(ctx context.Context) (string, error)

type focus int

const (
	focusInput focus = iota
	focusList
)

// sessionMsg carries the outcome of a session resolution.
type sessionMsg struct {
	identity string
	err      error
}

// resultMsg carries a finished controller Op back onto the event loop.
type resultMsg struct {
	result todo.Result
}

// Model renders a todo.Controller. Bubble Tea delivers messages one at a
// time, which is the single event loop the controller requires.
type Model struct {
	ctx     context.Context
	ctrl    *todo.Controller
	resolve SessionResolver

	input  textinput.Model
	help   help.Model
	keys   keyMap
	focus  focus
	cursor int

	resolving  bool
	sessionErr string
	width      int
}

func New(ctx context.Context, ctrl *todo.Controller, resolve SessionResolver) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "What needs to be done?"
	ti.CharLimit = 500
	ti.Focus()

	ctrl.Mount()

	return Model{
		ctx:       ctx,
		ctrl:      ctrl,
		resolve:   resolve,
		input:     ti,
		help:      help.New(),
		keys:      defaultKeyMap(),
		resolving: true,
	}
}

// Run starts the interactive list and blocks until the user quits.
func Run(ctx context.Context, ctrl *todo.Controller, resolve SessionResolver) error {
	p := tea.NewProgram(New(ctx, ctrl, resolve), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.resolveSession())
}

func (m Model) resolveSession() tea.Cmd {
	resolve, ctx := m.resolve, m.ctx
	return func() tea.Msg {
		identity, err := resolve(ctx)
		return sessionMsg{identity: identity, err: err}
	}
}

// runOp executes op off the event loop; nil ops produce no command.
func (m Model) runOp(op todo.Op) tea.Cmd {
	if op == nil {
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		return resultMsg{result: op(ctx)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case sessionMsg:
		m.resolving = false
		m.sessionErr = ""
		identity := msg.identity
		if msg.err != nil {
			log.Printf("Error resolving session: %v", msg.err)
			m.sessionErr = msg.err.Error()
			identity = ""
		}
		return m, m.runOp(m.ctrl.ObserveSession(identity, false))

	case resultMsg:
		op := m.ctrl.Apply(msg.result)
		if v := m.ctrl.Input(); v != m.input.Value() {
			m.input.SetValue(v)
		}
		m.clampCursor()
		return m, m.runOp(op)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}

	// The status screen hides the input and the list; only reload applies.
	if m.status() != "" {
		if key.Matches(msg, m.keys.Reload) {
			return m.reload()
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Focus):
		if m.focus == focusInput {
			m.focus = focusList
			m.input.Blur()
			return m, nil
		}
		m.focus = focusInput
		return m, m.input.Focus()
	}

	if m.focus == focusInput {
		if key.Matches(msg, m.keys.Submit) {
			return m, m.runOp(m.ctrl.AddTodo(m.input.Value()))
		}
		var cmd tea.Cmd
		before := m.input.Value()
		m.input, cmd = m.input.Update(msg)
		if after := m.input.Value(); after != before {
			m.ctrl.SetInput(after)
		}
		return m, cmd
	}

	todos := m.ctrl.Todos()
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(todos)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Toggle):
		if m.cursor < len(todos) {
			return m, m.runOp(m.ctrl.ToggleTodo(todos[m.cursor].ID))
		}
	case key.Matches(msg, m.keys.Delete):
		if m.cursor < len(todos) {
			return m, m.runOp(m.ctrl.DeleteTodo(todos[m.cursor].ID))
		}
	case key.Matches(msg, m.keys.Reload):
		return m.reload()
	}
	return m, nil
}

func (m Model) reload() (tea.Model, tea.Cmd) {
	m.resolving = true
	return m, m.resolveSession()
}

func (m *Model) clampCursor() {
	n := len(m.ctrl.Todos())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}
