package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#15202b")).
			Background(lipgloss.Color("#f56a96")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f56a96")).
			Padding(0, 1)

	statusMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.AdaptiveColor{Light: "#f56a96", Dark: "#f23a74"}).
				Render

	completeMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#56FF4E")).
				Render

	errorMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FF5F5F")).
				Render

	warningMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FFB86C")).
				Render

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#626262", Dark: "#A49FA5"})

	boxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#f56a96")).
			Padding(1, 1)
)
var docStyle = lipgloss.NewStyle().Margin(1, 2)
