package tui

import (
	"fmt"
	"strings"

	"todoapp/internal/domain/todo"
)

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.header())
	b.WriteString("\n\n")

	if status := m.status(); status != "" {
		b.WriteString(status)
		b.WriteString("\n")
		b.WriteString(m.help.View(m.keys))
		return panelStyle.Render(b.String())
	}

	b.WriteString(m.input.View())
	b.WriteString("\n")

	if errText := m.ctrl.ErrorText(); errText != "" {
		b.WriteString(bannerStyle.Render(errorStyle.Render(errText)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	todos := m.ctrl.Todos()
	if len(todos) == 0 {
		b.WriteString(mutedStyle.Render("Nothing to do."))
		b.WriteString("\n")
	}
	for i, t := range todos {
		b.WriteString(m.row(i, t))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return panelStyle.Render(b.String())
}

func (m Model) header() string {
	title := titleStyle.Render("Todo List")
	if id := m.ctrl.Identity(); id != "" {
		title += "  " + accentStyle.Render(id)
	}

	var done int
	todos := m.ctrl.Todos()
	for _, t := range todos {
		if t.IsComplete {
			done++
		}
	}
	if len(todos) > 0 {
		title += mutedStyle.Render(fmt.Sprintf("  %d/%d done", done, len(todos)))
	}

	switch m.ctrl.State() {
	case todo.StateListing:
		title += mutedStyle.Render("  loading…")
	case todo.StateMutating:
		title += mutedStyle.Render("  saving…")
	}
	return title
}

// status replaces the list while there is nothing to show yet.
func (m Model) status() string {
	switch {
	case m.resolving:
		return mutedStyle.Render("Resolving session…")
	case m.sessionErr != "":
		return errorStyle.Render("Session invalid: "+m.sessionErr) + "\n" +
			mutedStyle.Render("Run `todo login <session-token>` and press r.")
	}

	switch m.ctrl.State() {
	case todo.StateAwaitingIdentity:
		return mutedStyle.Render("Not signed in. Run `todo login <session-token>` and press r.")
	case todo.StateMintingToken:
		return mutedStyle.Render("Preparing data access…")
	case todo.StateError:
		return errorStyle.Render("Data access unavailable. See the log for details.")
	}
	return ""
}

func (m Model) row(i int, t todo.Todo) string {
	box := mutedStyle.Render(boxUnchecked)
	text := t.Task
	if t.IsComplete {
		box = successStyle.Render(boxChecked)
		text = doneStyle.Render(text)
	}

	prefix := "  "
	if m.focus == focusList && i == m.cursor {
		prefix = selectedStyle.Render(">") + " "
	}
	return prefix + box + " " + text
}
