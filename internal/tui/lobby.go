package tui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/roomchat/internal/roomchat"
	"github.com/vovakirdan/roomchat/internal/view"
)

type lobbyField int

const (
	fieldName lobbyField = iota
	fieldCode
)

type lobbyWidgets struct {
	name  textinput.Model
	code  textinput.Model
	field lobbyField
}

func newLobbyWidgets() lobbyWidgets {
	name := textinput.New()
	name.Placeholder = "Your name"
	name.CharLimit = 40
	name.Width = 30

	code := textinput.New()
	code.Placeholder = "ABC123"
	code.CharLimit = roomchat.RoomCodeLength
	code.Width = roomchat.RoomCodeLength + 1

	return lobbyWidgets{name: name, code: code}
}

// reset loads the inputs from a freshly mounted lobby.
func (w *lobbyWidgets) reset(l *view.Lobby) {
	w.name.SetValue(l.Name)
	w.code.SetValue(l.Code)
	w.field = fieldName
	if roomchat.IsValidName(l.Name) {
		w.field = fieldCode
	}
}

func (w *lobbyWidgets) focus() tea.Cmd {
	if w.field == fieldCode {
		w.name.Blur()
		return w.code.Focus()
	}
	w.code.Blur()
	return w.name.Focus()
}

// sync copies view model state back into the inputs. The code input shows
// the normalized code.
func (w *lobbyWidgets) sync(l *view.Lobby) {
	if l == nil {
		return
	}
	if w.code.Value() != l.Code {
		w.code.SetValue(l.Code)
		w.code.CursorEnd()
	}
}

func (m *Model) lobbyUpdate(msg tea.Msg) tea.Cmd {
	l, w := m.lobby, &m.lobbyUI
	if l == nil {
		return nil
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, keys.Tab):
			if w.field == fieldName {
				w.field = fieldCode
			} else {
				w.field = fieldName
			}
			return w.focus()
		case key.Matches(msg, keys.Create):
			l.Create(m.ctx)
			return nil
		case key.Matches(msg, keys.Join):
			if w.field == fieldName && l.Code == "" {
				w.field = fieldCode
				return w.focus()
			}
			l.Join(m.ctx)
			return nil
		}
	}

	var cmd tea.Cmd
	switch w.field {
	case fieldName:
		w.name, cmd = w.name.Update(msg)
		if w.name.Value() != l.Name {
			l.SetName(w.name.Value())
		}
	case fieldCode:
		w.code, cmd = w.code.Update(msg)
		if w.code.Value() != l.Code {
			l.SetCode(w.code.Value())
		}
	}
	return cmd
}

func (m *Model) lobbyView() string {
	l, w, t := m.lobby, &m.lobbyUI, m.theme
	if l == nil {
		return ""
	}

	box := func(in textinput.Model, focused bool) string {
		if focused {
			return t.focused.Render(in.View())
		}
		return t.input.Render(in.View())
	}

	sections := []string{
		t.brand.Render("roomchat"),
		t.base.Render("Pick a name, then create a room or join one by code."),
		"",
		t.accent.Render("Name"),
		box(w.name, w.field == fieldName),
		t.accent.Render("Room code"),
		box(w.code, w.field == fieldCode),
	}

	switch {
	case l.Error != "":
		sections = append(sections, "", t.error.Render("⚠ "+l.Error))
	case l.Busy:
		sections = append(sections, "", t.accent.Render("Working..."))
	}

	sections = append(sections, "", t.muted.Render("enter join • ctrl+n create room • tab next field • ctrl+c quit"))

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}
