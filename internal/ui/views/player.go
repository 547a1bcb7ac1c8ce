package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jscyril/lightshow_player/api"
	"github.com/jscyril/lightshow_player/internal/ui/components"
)

// PlayerView displays the current playback state
type PlayerView struct {
	Width       int
	State       api.PlaybackState
	ProgressBar components.ProgressBar

	TitleStyle    lipgloss.Style
	ArtistStyle   lipgloss.Style
	StatusStyle   lipgloss.Style
	ModeStyle     lipgloss.Style
	ControlsStyle lipgloss.Style
	BorderStyle   lipgloss.Style
}

// NewPlayerView creates a new player view
func NewPlayerView(width int) PlayerView {
	return PlayerView{
		Width:       width,
		ProgressBar: components.NewProgressBar(width - 12),
		TitleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")),
		ArtistStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")),
		StatusStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true),
		ModeStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")),
		ControlsStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
		BorderStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 2),
	}
}

// SetState updates the playback state
func (v *PlayerView) SetState(state api.PlaybackState) {
	v.State = state
	v.ProgressBar.SetProgress(state.Position, state.Duration)
}

// SetWidth resizes the view
func (v *PlayerView) SetWidth(width int) {
	v.Width = width
	v.ProgressBar.Width = width - 12
}

// View renders the player view
func (v PlayerView) View() string {
	var sb strings.Builder

	song := v.State.CurrentSong
	if song == nil {
		sb.WriteString(v.TitleStyle.Render("♪ Nothing playing"))
		sb.WriteString("\n")
		sb.WriteString(v.ControlsStyle.Render("Press Space to start the queue"))
	} else {
		var statusIcon string
		switch v.State.Status {
		case api.StatusPlaying:
			statusIcon = "▶"
		case api.StatusPaused:
			statusIcon = "⏸"
		default:
			statusIcon = "⏹"
		}

		sb.WriteString(v.StatusStyle.Render(statusIcon + " "))
		sb.WriteString(v.TitleStyle.Render(song.Title))
		if song.Artist != "" {
			sb.WriteString("  ")
			sb.WriteString(v.ArtistStyle.Render(song.Artist))
		}
		sb.WriteString("\n")
		sb.WriteString(v.ProgressBar.View())
	}

	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Volume: %s %d%%", renderVolumeBar(v.State.Volume), int(v.State.Volume*100+0.5)))

	var modes []string
	if v.State.Looping {
		modes = append(modes, "🔂 Loop")
	}
	if v.State.Shuffle {
		modes = append(modes, "🔀 Shuffle")
	}
	if len(modes) > 0 {
		sb.WriteString("  ")
		sb.WriteString(v.ModeStyle.Render(strings.Join(modes, " | ")))
	}

	sb.WriteString("\n")
	sb.WriteString(v.ControlsStyle.Render(
		"[Space] Play/Pause  [s] Stop  [n] Skip  [r] Rewind  [l] Loop  [S] Shuffle  [+/-] Volume  [q] Quit",
	))

	return v.BorderStyle.Width(v.Width - 4).Render(sb.String())
}

func renderVolumeBar(volume float64) string {
	filled := int(volume*10 + 0.5)
	if filled > 10 {
		filled = 10
	}
	if filled < 0 {
		filled = 0
	}

	filledStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	return filledStyle.Render(strings.Repeat("●", filled)) + emptyStyle.Render(strings.Repeat("○", 10-filled))
}
