package views

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jscyril/lightshow_player/internal/lights"
	"github.com/jscyril/lightshow_player/internal/ui/components"
)

// LightsView shows which light channels are firing
type LightsView struct {
	Width       int
	Grid        components.LightGrid
	BorderStyle lipgloss.Style
	TitleStyle  lipgloss.Style
}

// NewLightsView creates a new lights view
func NewLightsView(width int) LightsView {
	return LightsView{
		Width: width,
		Grid:  components.NewLightGrid(),
		BorderStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 2),
		TitleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")),
	}
}

// SetBoxes updates the grid
func (v *LightsView) SetBoxes(boxes [lights.Slots]lights.Box) {
	v.Grid.Boxes = boxes
}

// View renders the lights view
func (v LightsView) View() string {
	var sb strings.Builder
	sb.WriteString(v.TitleStyle.Render("💡 Lights"))
	sb.WriteString("\n\n")
	sb.WriteString(v.Grid.View())
	return v.BorderStyle.Width(v.Width - 4).Render(sb.String())
}
