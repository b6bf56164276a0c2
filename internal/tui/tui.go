// Package tui is the terminal front end. It renders the lobby and room view
// models and feeds them keystrokes; all view model state changes happen inside
// Update.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/router"
	"github.com/vovakirdan/roomchat/internal/session"
	"github.com/vovakirdan/roomchat/internal/view"
)

// Options configures the front end.
type Options struct {
	Rooms    view.Rooms
	Session  session.Storage
	Timeout  time.Duration
	Logger   *zerolog.Logger
	Location *time.Location
	// StartPath is the first route, "/" when empty.
	StartPath string
}

// dispatchMsg carries a view model mutation onto the Update loop.
type dispatchMsg func()

// Model is the root bubbletea model.
type Model struct {
	ctx   context.Context
	deps  view.Deps
	loc   *time.Location
	log   *zerolog.Logger
	theme theme
	start string

	page    router.Page
	history []string

	lobby *view.Lobby
	room  *view.Room

	lobbyUI lobbyWidgets
	roomUI  roomWidgets

	width  int
	height int
}

// New builds the root model. dispatch must deliver its argument to Update as
// a message, see Run.
func New(ctx context.Context, opts Options, dispatch view.Dispatch) *Model {
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	start := opts.StartPath
	if start == "" {
		start = router.LobbyPath
	}

	m := &Model{
		ctx:    ctx,
		loc:    opts.Location,
		log:    logger,
		theme:  newTheme(lipgloss.DefaultRenderer()),
		start:  start,
		width:  80,
		height: 24,
	}
	m.deps = view.Deps{
		Rooms:    opts.Rooms,
		Session:  opts.Session,
		Nav:      m,
		Dispatch: dispatch,
		Timeout:  opts.Timeout,
		Logger:   logger,
	}
	m.lobbyUI = newLobbyWidgets()
	m.roomUI = newRoomWidgets()
	return m
}

// Run starts the program and blocks until the user quits or ctx ends.
func Run(ctx context.Context, opts Options) error {
	var program *tea.Program
	m := New(ctx, opts, func(fn func()) {
		program.Send(dispatchMsg(fn))
	})
	program = tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)

	_, err := program.Run()
	m.Close()
	return err
}

// Close stops the active room subscription.
func (m *Model) Close() {
	if m.room != nil {
		m.room.Unmount()
	}
}

// Path returns the current route path.
func (m *Model) Path() string {
	if len(m.history) == 0 {
		return ""
	}
	return m.history[len(m.history)-1]
}

// Navigate implements view.Navigator. It may be called re-entrantly by the
// page it mounts; the innermost call wins.
func (m *Model) Navigate(path string, replace bool) {
	route := router.Resolve(path)
	if route.Redirect {
		m.log.Debug().Str("path", path).Msg("unknown route, redirecting to lobby")
		replace = true
	}
	if replace && len(m.history) > 0 {
		m.history[len(m.history)-1] = route.Path
	} else {
		m.history = append(m.history, route.Path)
	}

	if m.room != nil {
		m.room.Unmount()
		m.room = nil
	}

	switch route.Page {
	case router.PageRoom:
		room := view.NewRoom(m.deps)
		m.page = router.PageRoom
		m.room = room
		m.lobby = nil
		m.roomUI.reset(m)
		room.Mount(m.ctx, route.Code)
	default:
		lobby := view.NewLobby(m.deps)
		m.page = router.PageLobby
		m.lobby = lobby
		m.lobbyUI.reset(lobby)
		lobby.Reconnect()
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	m.Navigate(m.start, true)
	return m.focusCmd()
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	prevPage, prevRoom := m.page, m.room

	switch msg := msg.(type) {
	case dispatchMsg:
		msg()
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.roomUI.resize(m)
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.Close()
			return m, tea.Quit
		}
		switch m.page {
		case router.PageRoom:
			cmds = append(cmds, m.roomUpdate(msg))
		default:
			cmds = append(cmds, m.lobbyUpdate(msg))
		}
	default:
		if m.page == router.PageRoom {
			cmds = append(cmds, m.roomUpdate(msg))
		} else {
			cmds = append(cmds, m.lobbyUpdate(msg))
		}
	}

	if m.page != prevPage || m.room != prevRoom {
		cmds = append(cmds, m.focusCmd())
	}
	if m.page == router.PageRoom {
		m.roomUI.sync(m)
	} else {
		m.lobbyUI.sync(m.lobby)
	}
	return m, tea.Batch(cmds...)
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.page == router.PageRoom && m.room != nil {
		return m.roomView()
	}
	return m.lobbyView()
}

func (m *Model) focusCmd() tea.Cmd {
	if m.page == router.PageRoom {
		return m.roomUI.composer.Focus()
	}
	return m.lobbyUI.focus()
}
