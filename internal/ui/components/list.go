package components

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jscyril/lightshow_player/api"
)

// SongList is a scrollable list of songs that marks the one playing
type SongList struct {
	Items         []*api.Song
	Selected      int
	Playing       int
	Height        int
	Width         int
	Offset        int
	SelectedStyle lipgloss.Style
	PlayingStyle  lipgloss.Style
	NormalStyle   lipgloss.Style
}

// NewSongList creates an empty list
func NewSongList(height, width int) SongList {
	return SongList{
		Playing: -1,
		Height:  height,
		Width:   width,
		SelectedStyle: lipgloss.NewStyle().
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("230")).
			Bold(true).
			Padding(0, 1),
		PlayingStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")).
			Padding(0, 1),
		NormalStyle: lipgloss.NewStyle().
			Padding(0, 1),
	}
}

// SetItems replaces the songs, keeping the selection in range
func (l *SongList) SetItems(items []*api.Song) {
	l.Items = items
	if l.Selected >= len(items) {
		l.Selected = len(items) - 1
	}
	if l.Selected < 0 {
		l.Selected = 0
	}
	l.ensureVisible()
}

// Update moves the selection
func (l SongList) Update(msg tea.Msg) (SongList, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			l.move(-1)
		case "down", "j":
			l.move(1)
		case "pgup":
			l.move(-l.visible())
		case "pgdown":
			l.move(l.visible())
		case "home":
			l.move(-len(l.Items))
		case "end":
			l.move(len(l.Items))
		}
	}
	return l, nil
}

func (l *SongList) move(delta int) {
	l.Selected += delta
	if l.Selected >= len(l.Items) {
		l.Selected = len(l.Items) - 1
	}
	if l.Selected < 0 {
		l.Selected = 0
	}
	l.ensureVisible()
}

func (l SongList) visible() int {
	if l.Height < 2 {
		return 1
	}
	return l.Height - 1
}

func (l *SongList) ensureVisible() {
	if l.Selected < l.Offset {
		l.Offset = l.Selected
	} else if l.Selected >= l.Offset+l.visible() {
		l.Offset = l.Selected - l.visible() + 1
	}
}

// SelectedItem returns the highlighted song
func (l SongList) SelectedItem() *api.Song {
	if l.Selected >= 0 && l.Selected < len(l.Items) {
		return l.Items[l.Selected]
	}
	return nil
}

// View renders the visible window of the list
func (l SongList) View() string {
	if len(l.Items) == 0 {
		return l.NormalStyle.Render("No songs")
	}

	end := l.Offset + l.visible()
	if end > len(l.Items) {
		end = len(l.Items)
	}

	lines := make([]string, 0, end-l.Offset+1)
	for i := l.Offset; i < end; i++ {
		song := l.Items[i]
		marker := " "
		if i == l.Playing {
			marker = "♪"
		}
		line := fmt.Sprintf("%s %3d. %s", marker, i+1, truncate(song.Title, 40))
		if song.Artist != "" {
			line += " - " + truncate(song.Artist, 24)
		}
		if l.Width > 8 && len(line) > l.Width-2 {
			line = line[:l.Width-5] + "..."
		}

		switch {
		case i == l.Selected:
			lines = append(lines, l.SelectedStyle.Render(line))
		case i == l.Playing:
			lines = append(lines, l.PlayingStyle.Render(line))
		default:
			lines = append(lines, l.NormalStyle.Render(line))
		}
	}

	if len(l.Items) > l.visible() {
		lines = append(lines, l.NormalStyle.Render(fmt.Sprintf("  [%d/%d]", l.Selected+1, len(l.Items))))
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
