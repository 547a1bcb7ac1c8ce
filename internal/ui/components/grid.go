package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jscyril/lightshow_player/internal/lights"
)

const gridColumns = 4

// LightGrid renders the sixteen light boxes as a 4x4 grid
type LightGrid struct {
	Boxes    [lights.Slots]lights.Box
	OnStyle  lipgloss.Style
	OffStyle lipgloss.Style
}

// NewLightGrid creates a grid with every box off
func NewLightGrid() LightGrid {
	box := lipgloss.NewStyle().
		Width(12).
		Height(3).
		Align(lipgloss.Center, lipgloss.Center).
		Border(lipgloss.RoundedBorder())
	return LightGrid{
		OnStyle: box.
			Background(lipgloss.Color("226")).
			Foreground(lipgloss.Color("0")).
			BorderForeground(lipgloss.Color("226")),
		OffStyle: box.
			Foreground(lipgloss.Color("244")).
			BorderForeground(lipgloss.Color("238")),
	}
}

// View renders the rows of boxes
func (g LightGrid) View() string {
	rows := make([]string, 0, lights.Slots/gridColumns)
	for r := 0; r < lights.Slots/gridColumns; r++ {
		cells := make([]string, gridColumns)
		for c := range cells {
			b := g.Boxes[r*gridColumns+c]
			label := fmt.Sprintf("%d", b.Slot)
			if b.Channel != "" {
				label = truncate(b.Channel, 10) + "\n" + fmt.Sprintf("×%d", b.Fired)
			}
			if b.Lit {
				cells[c] = g.OnStyle.Render(label)
			} else {
				cells[c] = g.OffStyle.Render(label)
			}
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return strings.Join(rows, "\n")
}
