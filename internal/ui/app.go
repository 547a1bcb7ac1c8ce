package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jscyril/lightshow_player/api"
	"github.com/jscyril/lightshow_player/internal/lights"
	"github.com/jscyril/lightshow_player/internal/ui/views"
)

// ViewType represents the current active view
type ViewType int

const (
	ViewPlayer ViewType = iota
	ViewSongs
	ViewLights
)

// Controller is the transport the UI drives. *player.Jukebox implements it.
type Controller interface {
	Pause() error
	Resume() error
	Stop() error
	Rewind() error
	Skip() error
	Shuffle() error
	SetLooping(looping bool)
	SetVolume(level float64) error
	SongOverride(song *api.Song) error
	State() api.PlaybackState
	Songs() []*api.Song
}

// Grid is satisfied by *lights.Grid
type Grid interface {
	Snapshot() [lights.Slots]lights.Box
}

// refreshInterval keeps the light blinks visible
const refreshInterval = 50 * time.Millisecond

// Model is the main bubbletea model
type Model struct {
	width  int
	height int

	activeView ViewType

	playerView views.PlayerView
	songsView  views.SongsView
	lightsView views.LightsView

	ctrl   Controller
	grid   Grid
	events <-chan api.AudioEvent

	ctx    context.Context
	cancel context.CancelFunc
	err    error

	tabStyle       lipgloss.Style
	activeTabStyle lipgloss.Style
	errorStyle     lipgloss.Style
}

// TickMsg is sent periodically to update the UI
type TickMsg time.Time

// EventMsg carries a bus event to Update
type EventMsg api.AudioEvent

// NewModel creates the application model. events may be nil.
func NewModel(ctrl Controller, grid Grid, events <-chan api.AudioEvent) Model {
	ctx, cancel := context.WithCancel(context.Background())

	m := Model{
		width:      80,
		height:     24,
		activeView: ViewPlayer,
		ctrl:       ctrl,
		grid:       grid,
		events:     events,
		ctx:        ctx,
		cancel:     cancel,
		tabStyle: lipgloss.NewStyle().
			Padding(0, 2).
			Foreground(lipgloss.Color("240")),
		activeTabStyle: lipgloss.NewStyle().
			Padding(0, 2).
			Bold(true).
			Foreground(lipgloss.Color("212")).
			Background(lipgloss.Color("236")),
		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),
	}

	m.playerView = views.NewPlayerView(m.width)
	m.songsView = views.NewSongsView(m.width, m.height-8)
	m.lightsView = views.NewLightsView(m.width)
	m.refresh()

	return m
}

// Init starts the refresh tick and the event listener
func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), m.listenForEvents())
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// listenForEvents waits for the next bus event
func (m Model) listenForEvents() tea.Cmd {
	if m.events == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case event, ok := <-m.events:
			if !ok {
				return nil
			}
			return EventMsg(event)
		case <-m.ctx.Done():
			return nil
		}
	}
}

// refresh pulls state from the jukebox and the grid
func (m *Model) refresh() {
	state := m.ctrl.State()
	m.playerView.SetState(state)
	m.songsView.SetSongs(m.ctrl.Songs(), state.Index)
	if m.grid != nil {
		m.lightsView.SetBoxes(m.grid.Snapshot())
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.playerView.SetWidth(m.width)
		m.songsView.SetSize(m.width, m.height-8)
		m.lightsView.Width = m.width

	case TickMsg:
		m.refresh()
		cmds = append(cmds, tickCmd())

	case EventMsg:
		switch msg.Type {
		case api.EventError:
			if err, ok := msg.Payload.(error); ok {
				m.err = err
			}
		case api.EventTrackStarted:
			m.err = nil
		}
		m.refresh()
		cmds = append(cmds, m.listenForEvents())

	case views.PlaySongMsg:
		m.setErr(m.ctrl.SongOverride(msg.Song))
		m.refresh()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.cancel()
			return m, tea.Quit

		case "1":
			m.activeView = ViewPlayer
		case "2":
			m.activeView = ViewSongs
		case "3":
			m.activeView = ViewLights
		case "tab":
			m.activeView = (m.activeView + 1) % 3

		case " ":
			if m.ctrl.State().Status == api.StatusPlaying {
				m.setErr(m.ctrl.Pause())
			} else {
				m.setErr(m.ctrl.Resume())
			}
		case "s":
			m.setErr(m.ctrl.Stop())
		case "n":
			m.setErr(m.ctrl.Skip())
		case "r":
			m.setErr(m.ctrl.Rewind())
		case "l":
			m.ctrl.SetLooping(!m.ctrl.State().Looping)
		case "S":
			m.setErr(m.ctrl.Shuffle())

		case "+", "=":
			m.setErr(m.ctrl.SetVolume(clampVolume(m.ctrl.State().Volume + 0.1)))
		case "-":
			m.setErr(m.ctrl.SetVolume(clampVolume(m.ctrl.State().Volume - 0.1)))

		default:
			if m.activeView == ViewSongs {
				var cmd tea.Cmd
				m.songsView, cmd = m.songsView.Update(msg)
				cmds = append(cmds, cmd)
			}
		}
		m.refresh()
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) setErr(err error) {
	if err != nil {
		m.err = err
	}
}

func clampVolume(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// View renders the UI
func (m Model) View() string {
	var sb string

	sb += m.renderTabs()
	sb += "\n"
	sb += m.playerView.View()
	sb += "\n"

	switch m.activeView {
	case ViewSongs:
		sb += m.songsView.View()
	case ViewLights:
		sb += m.lightsView.View()
	}

	if m.err != nil {
		sb += "\n" + m.errorStyle.Render(fmt.Sprintf("Error: %v", m.err))
	}

	return sb
}

func (m Model) renderTabs() string {
	tabs := []string{"[1] Player", "[2] Songs", "[3] Lights"}

	var rendered []string
	for i, tab := range tabs {
		if ViewType(i) == m.activeView {
			rendered = append(rendered, m.activeTabStyle.Render(tab))
		} else {
			rendered = append(rendered, m.tabStyle.Render(tab))
		}
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

// Run starts the bubbletea program and blocks until the user quits or ctx
// ends.
func Run(ctx context.Context, ctrl Controller, grid Grid, events <-chan api.AudioEvent) error {
	model := NewModel(ctrl, grid, events)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
