package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"

	"github.com/vovakirdan/roomchat/internal/view"
)

const (
	roomHeaderLines   = 2
	roomComposerLines = 4
	roomFooterLines   = 1
)

type roomWidgets struct {
	list     viewport.Model
	composer textinput.Model
}

func newRoomWidgets() roomWidgets {
	list := viewport.New(80, 10)
	list.KeyMap = viewport.KeyMap{
		PageUp:   keys.PageUp,
		PageDown: keys.PageDown,
		Up:       keys.LineUp,
		Down:     keys.LineDown,
	}

	composer := textinput.New()
	composer.Placeholder = "Type a message"
	composer.CharLimit = 2000

	return roomWidgets{list: list, composer: composer}
}

func (w *roomWidgets) reset(m *Model) {
	w.composer.SetValue("")
	w.list.SetContent("")
	w.list.GotoTop()
	w.resize(m)
}

func (w *roomWidgets) resize(m *Model) {
	w.list.Width = m.width
	w.list.Height = max(m.height-roomHeaderLines-roomComposerLines-roomFooterLines, 1)
	w.composer.Width = max(m.width-6, 10)
}

// sync renders the latest snapshot and keeps the composer in step with the
// view model. Scroll position is reported back after every change.
func (w *roomWidgets) sync(m *Model) {
	r := m.room
	if r == nil {
		return
	}

	if w.composer.Value() != r.Text {
		w.composer.SetValue(r.Text)
		w.composer.CursorEnd()
	}
	if r.ComposerEnabled() {
		w.composer.Placeholder = "Type a message"
	} else {
		w.composer.Placeholder = "Connecting..."
	}

	w.list.SetContent(m.renderMessages(r))
	if r.ScrollToBottom {
		w.list.GotoBottom()
		r.ScrollToBottom = false
	}
	r.Scroll.Observe(w.list.YOffset, w.list.Height, w.list.TotalLineCount())
}

func (m *Model) roomUpdate(msg tea.Msg) tea.Cmd {
	r, w := m.room, &m.roomUI
	if r == nil {
		return nil
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, keys.Back):
			r.Leave()
			return nil
		case key.Matches(msg, keys.Retry):
			r.Retry(m.ctx)
			return nil
		case key.Matches(msg, keys.Send):
			r.Send(m.ctx)
			return nil
		case key.Matches(msg, keys.PageUp, keys.PageDown, keys.LineUp, keys.LineDown):
			var cmd tea.Cmd
			w.list, cmd = w.list.Update(msg)
			return cmd
		}

		if !r.ComposerEnabled() {
			return nil
		}
		var cmd tea.Cmd
		w.composer, cmd = w.composer.Update(msg)
		if w.composer.Value() != r.Text {
			r.SetText(w.composer.Value())
		}
		return cmd
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	w.list, cmd = w.list.Update(msg)
	cmds = append(cmds, cmd)
	w.composer, cmd = w.composer.Update(msg)
	cmds = append(cmds, cmd)
	return tea.Batch(cmds...)
}

func (m *Model) renderMessages(r *view.Room) string {
	t := m.theme
	wrap := max(m.width-4, 10)

	var b strings.Builder
	for i, group := range view.GroupMessages(r.Messages, m.loc) {
		if i > 0 {
			b.WriteString("\n")
		}
		sender := t.sender
		if group.Sender == r.Name {
			sender = t.self
		}
		b.WriteString(sender.Render(group.Sender))
		if group.Time != "" {
			b.WriteString(" " + t.timestamp.Render(group.Time))
		}
		b.WriteString("\n")
		for _, msg := range group.Messages {
			b.WriteString(t.base.Render(indent.String(wordwrap.String(msg.Text, wrap), 2)))
			b.WriteString("\n")
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (m *Model) roomView() string {
	r, w, t := m.room, &m.roomUI, m.theme

	header := lipgloss.JoinHorizontal(lipgloss.Top,
		t.brand.Render("Room "+r.Code),
		t.muted.Render(fmt.Sprintf("  you are %s", r.Name)),
	)
	header = lipgloss.NewStyle().Height(roomHeaderLines).Render(header)

	var body string
	switch r.Status {
	case view.StatusLoading:
		body = t.muted.Render("Loading messages...")
	case view.StatusEmpty:
		body = t.muted.Render("No messages yet. Say hi!")
	case view.StatusError:
		lines := []string{t.error.Render("⚠ " + r.ErrorMessage())}
		if r.CanRetry() {
			lines = append(lines, t.muted.Render("ctrl+r to retry"))
		}
		lines = append(lines, t.muted.Render("esc to go back to the lobby"))
		body = lipgloss.JoinVertical(lipgloss.Left, lines...)
	default:
		body = w.list.View()
	}
	body = lipgloss.NewStyle().Height(w.list.Height).MaxHeight(w.list.Height).Render(body)

	composerStyle := t.input
	if r.ComposerEnabled() {
		composerStyle = t.focused
	}
	composer := composerStyle.Width(max(m.width-2, 10)).Render(w.composer.View())
	status := ""
	switch {
	case r.SendError != "":
		status = t.error.Render("⚠ " + r.SendError)
	case r.Sending:
		status = t.muted.Render("Sending...")
	}
	composer = lipgloss.JoinVertical(lipgloss.Left, composer, status)

	footer := t.muted.Render("enter send • pgup/pgdown scroll • esc leave • ctrl+c quit")

	return lipgloss.JoinVertical(lipgloss.Left, header, body, composer, footer)
}
