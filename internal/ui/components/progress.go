package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// ProgressBar shows the position in the current song as a bar and mm:ss
type ProgressBar struct {
	Width       int
	Current     time.Duration
	Total       time.Duration
	FilledStyle lipgloss.Style
	EmptyStyle  lipgloss.Style
}

// NewProgressBar creates a bar of the given total width
func NewProgressBar(width int) ProgressBar {
	return ProgressBar{
		Width:       width,
		FilledStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("212")),
		EmptyStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// SetProgress sets the current position
func (p *ProgressBar) SetProgress(current, total time.Duration) {
	p.Current = current
	p.Total = total
}

// View renders the bar followed by the elapsed and total time
func (p ProgressBar) View() string {
	clock := FormatDuration(p.Current) + "/" + FormatDuration(p.Total)

	barWidth := p.Width - len(clock) - 1
	if barWidth < 10 {
		barWidth = 10
	}

	filled := 0
	if p.Total > 0 {
		filled = int(int64(barWidth) * int64(p.Current) / int64(p.Total))
	}
	if filled > barWidth {
		filled = barWidth
	}
	if filled < 0 {
		filled = 0
	}

	return p.FilledStyle.Render(strings.Repeat("█", filled)) +
		p.EmptyStyle.Render(strings.Repeat("░", barWidth-filled)) +
		" " + clock
}

// FormatDuration formats a duration as MM:SS
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%02d:%02d", d/time.Minute, (d%time.Minute)/time.Second)
}
