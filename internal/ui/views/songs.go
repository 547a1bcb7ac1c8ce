package views

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jscyril/lightshow_player/api"
	"github.com/jscyril/lightshow_player/internal/ui/components"
)

// PlaySongMsg asks the app to play a song picked from the list
type PlaySongMsg struct {
	Song *api.Song
}

// SongsView lists the play queue
type SongsView struct {
	Width       int
	Height      int
	List        components.SongList
	BorderStyle lipgloss.Style
	TitleStyle  lipgloss.Style
	HelpStyle   lipgloss.Style
}

// NewSongsView creates a new songs view
func NewSongsView(width, height int) SongsView {
	return SongsView{
		Width:  width,
		Height: height,
		List:   components.NewSongList(height-6, width-6),
		BorderStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 2),
		TitleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")),
		HelpStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// SetSongs refreshes the list and the playing marker
func (v *SongsView) SetSongs(songs []*api.Song, playing int) {
	v.List.SetItems(songs)
	v.List.Playing = playing
}

// SetSize resizes the view
func (v *SongsView) SetSize(width, height int) {
	v.Width, v.Height = width, height
	v.List.Width = width - 6
	v.List.Height = height - 6
}

// Update moves the selection; enter asks to play the selected song
func (v SongsView) Update(msg tea.Msg) (SongsView, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		song := v.List.SelectedItem()
		if song == nil {
			return v, nil
		}
		return v, func() tea.Msg { return PlaySongMsg{Song: song} }
	}

	var cmd tea.Cmd
	v.List, cmd = v.List.Update(msg)
	return v, cmd
}

// View renders the songs view
func (v SongsView) View() string {
	var sb strings.Builder
	sb.WriteString(v.TitleStyle.Render("🎵 Songs"))
	sb.WriteString("\n\n")
	sb.WriteString(v.List.View())
	sb.WriteString("\n\n")
	sb.WriteString(v.HelpStyle.Render("[Enter] Play  [↑↓] Navigate"))
	return v.BorderStyle.Width(v.Width - 4).Render(sb.String())
}
