package tui

import (
	"fmt"
	"os"
	"strings"

	"github.com/brizzai/zeroinbox/internal/config"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"gopkg.in/yaml.v3"
)

// ConfigView shows the effective configuration with secrets masked and can
// export it to a YAML file
type ConfigView struct {
	cfg          *config.Config
	textInput    textinput.Model
	width        int
	height       int
	exportStatus string
}

// BackToMainMsg signals to go back to the main page
type BackToMainMsg struct{}

// NewConfigView creates a config view
func NewConfigView(cfg *config.Config) ConfigView {
	ti := textinput.New()
	ti.Placeholder = "config.yaml"
	ti.Focus()
	ti.Width = 40

	return ConfigView{
		cfg:       cfg,
		textInput: ti,
	}
}

// Init initializes the config view
func (m ConfigView) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the config view
func (m ConfigView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			return m, func() tea.Msg { return BackToMainMsg{} }
		case "enter":
			if m.textInput.Value() == "" {
				m.exportStatus = "Please enter a filename"
				return m, nil
			}

			filename := m.textInput.Value()
			if !strings.HasSuffix(filename, ".yaml") && !strings.HasSuffix(filename, ".yml") {
				filename += ".yaml"
			}

			if err := ExportConfigToYamlFile(m.cfg, filename); err != nil {
				m.exportStatus = errorMessageStyle(fmt.Sprintf("Error exporting: %v", err))
				return m, nil
			}
			m.exportStatus = completeMessageStyle(fmt.Sprintf("Successfully exported to %s", filename))
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}

	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

// View renders the config view
func (m ConfigView) View() string {
	var sb strings.Builder

	sb.WriteString(centerText(titleStyle.Render("Configuration"), m.width))
	sb.WriteString("\n\n")

	data, err := MarshalConfig(m.cfg)
	if err != nil {
		sb.WriteString(errorMessageStyle(err.Error()))
	} else {
		sb.WriteString(boxStyle.Render(strings.TrimRight(string(data), "\n")))
	}
	sb.WriteString("\n\n")

	sb.WriteString("Export to file: ")
	sb.WriteString(m.textInput.View())
	sb.WriteString("\n\n")

	if m.exportStatus != "" {
		sb.WriteString(m.exportStatus)
		sb.WriteString("\n\n")
	}

	sb.WriteString(helpStyle.Render("(esc) Back to main | (enter) Export"))

	return docStyle.Render(sb.String())
}

// MarshalConfig renders cfg as YAML with secret values masked
func MarshalConfig(cfg *config.Config) ([]byte, error) {
	return yaml.Marshal(cfg.Redacted())
}

// ExportConfigToYamlFile writes the masked configuration to filename
func ExportConfigToYamlFile(cfg *config.Config, filename string) error {
	data, err := MarshalConfig(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0o600)
}

// Helper function to center text horizontally
func centerText(text string, width int) string {
	if width <= len(text) {
		return text
	}

	padding := (width - len(text)) / 2
	return strings.Repeat(" ", padding) + text
}
