package tui

import (
	"context"

	"github.com/brizzai/zeroinbox/internal/config"
	"github.com/brizzai/zeroinbox/internal/models"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// AppModel is the main application model that manages page switching
type AppModel struct {
	mainPage   MainPageModel
	configView ConfigView
	cfg        *config.Config
	page       string // "main" or "config"
}

// NewAppModel creates the application model. ctx bounds every sign-in and
// fetch started from the screen.
func NewAppModel(ctx context.Context, driver Driver, bridge *Bridge, cfg *config.Config) AppModel {
	return AppModel{
		mainPage:   NewMainPageModel(ctx, driver, bridge, cfg),
		configView: NewConfigView(cfg),
		cfg:        cfg,
		page:       "main",
	}
}

// Init initializes the AppModel
func (m AppModel) Init() tea.Cmd {
	return m.mainPage.Init()
}

// Update handles app-level messages and delegates to the appropriate page model
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd
	var tempModel tea.Model

	switch msg := msg.(type) {
	case OpenConfigMsg:
		m.page = "config"
		m.configView = NewConfigView(m.cfg)
		m.configView.width = m.mainPage.width
		m.configView.height = m.mainPage.height
		return m, m.configView.Init()

	case BackToMainMsg:
		m.page = "main"
		return m, nil

	// Flow messages always reach the main page, whichever page is showing
	case StatusMsg, OutputMsg, doneMsg, pastedMsg, spinner.TickMsg:
		tempModel, cmd = m.mainPage.Update(msg)
		m.mainPage = tempModel.(MainPageModel)
		return m, cmd

	case tea.WindowSizeMsg:
		tempModel, cmd = m.mainPage.Update(msg)
		m.mainPage = tempModel.(MainPageModel)
		cmds = append(cmds, cmd)

		tempModel, cmd = m.configView.Update(msg)
		m.configView = tempModel.(ConfigView)
		cmds = append(cmds, cmd)

		return m, tea.Batch(cmds...)
	}

	switch m.page {
	case "main":
		tempModel, cmd = m.mainPage.Update(msg)
		m.mainPage = tempModel.(MainPageModel)
	case "config":
		tempModel, cmd = m.configView.Update(msg)
		m.configView = tempModel.(ConfigView)
	}

	return m, cmd
}

// View renders the active page
func (m AppModel) View() string {
	if m.page == "config" {
		return m.configView.View()
	}
	return m.mainPage.View()
}

// Status returns the last status the screen showed
func (m AppModel) Status() models.Status {
	return m.mainPage.Status()
}
