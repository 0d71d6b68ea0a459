package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/brizzai/zeroinbox/internal/config"
	"github.com/brizzai/zeroinbox/internal/models"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// maxOutputLines bounds the launcher output kept on screen
const maxOutputLines = 8

// Driver runs sign-in and unread fetches
type Driver interface {
	Ready() bool
	SignIn(ctx context.Context) models.Status
	FetchUnread(ctx context.Context, limit int) models.Status
}

// MainPageKeyMap holds key bindings for the main page actions
type MainPageKeyMap struct {
	signIn  key.Binding
	unread  key.Binding
	config  key.Binding
	abandon key.Binding
	paste   key.Binding
	quit    key.Binding
}

func newMainPageKeyMap() *MainPageKeyMap {
	return &MainPageKeyMap{
		signIn: key.NewBinding(
			key.WithKeys("enter", "s"),
			key.WithHelp("enter/s", "Sign in with Google"),
		),
		unread: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "Fetch unread"),
		),
		config: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "Show config"),
		),
		abandon: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Cancel sign-in"),
		),
		paste: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Submit redirect URL"),
		),
		quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("ctrl+c/q", "Quit"),
		),
	}
}

// doneMsg is sent when a sign-in or unread fetch returns
type doneMsg struct {
	status models.Status
}

// pastedMsg is sent once the launcher has taken the pasted line
type pastedMsg struct {
	err error
}

// OpenConfigMsg asks the app to show the config page
type OpenConfigMsg struct{}

// MainPageModel is the sign-in screen
type MainPageModel struct {
	ctx      context.Context
	keys     *MainPageKeyMap
	driver   Driver
	bridge   *Bridge
	cfg      *config.Config
	spinner  spinner.Model
	input    textinput.Model
	status   models.Status
	warnings []string
	output   []string
	busy     bool
	pasting  bool
	cancel   context.CancelFunc
	width    int
	height   int
}

// NewMainPageModel creates the sign-in screen
func NewMainPageModel(ctx context.Context, driver Driver, bridge *Bridge, cfg *config.Config) MainPageModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = headerStyle

	ti := textinput.New()
	ti.Placeholder = "paste the redirect URL here"
	ti.Width = 60

	return MainPageModel{
		ctx:      ctx,
		keys:     newMainPageKeyMap(),
		driver:   driver,
		bridge:   bridge,
		cfg:      cfg,
		spinner:  s,
		input:    ti,
		status:   models.IdleStatus(),
		warnings: cfg.Warnings(),
	}
}

// Init initializes the model
func (m MainPageModel) Init() tea.Cmd {
	return nil
}

// Update handles messages for the main page
func (m MainPageModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.pasting {
			return m.updatePasting(msg)
		}
		switch {
		case key.Matches(msg, m.keys.quit):
			m.stop()
			return m, tea.Quit
		case key.Matches(msg, m.keys.abandon):
			m.stop()
			return m, nil
		case key.Matches(msg, m.keys.signIn):
			return m.startSignIn()
		case key.Matches(msg, m.keys.unread):
			return m.startUnread()
		case key.Matches(msg, m.keys.config):
			if m.busy {
				return m, nil
			}
			return m, func() tea.Msg { return OpenConfigMsg{} }
		}

	case StatusMsg:
		m.status = msg.Status

	case OutputMsg:
		m.output = append(m.output, strings.Split(msg.Text, "\n")...)
		if len(m.output) > maxOutputLines {
			m.output = m.output[len(m.output)-maxOutputLines:]
		}
		if m.busy && m.cfg.OAuth.Platform != config.PlatformDesktop && !m.pasting {
			m.pasting = true
			m.input.SetValue("")
			return m, m.input.Focus()
		}

	case pastedMsg:
		if msg.err != nil {
			m.output = append(m.output, fmt.Sprintf("could not submit: %v", msg.err))
		}

	case doneMsg:
		m.busy = false
		m.pasting = false
		m.input.Blur()
		m.output = nil
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		m.status = msg.status

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}

	if m.pasting {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m MainPageModel) updatePasting(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		m.stop()
		return m, tea.Quit
	case key.Matches(msg, m.keys.abandon):
		m.stop()
		return m, nil
	case key.Matches(msg, m.keys.paste):
		line := m.input.Value()
		m.pasting = false
		m.input.Blur()
		bridge := m.bridge
		return m, func() tea.Msg {
			return pastedMsg{err: bridge.Paste(line)}
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m MainPageModel) startSignIn() (tea.Model, tea.Cmd) {
	if m.busy || !m.driver.Ready() {
		return m, nil
	}

	ctx, cancel := context.WithCancel(m.ctx)
	m.busy = true
	m.cancel = cancel
	m.output = nil
	driver := m.driver
	return m, tea.Batch(
		m.spinner.Tick,
		func() tea.Msg { return doneMsg{status: driver.SignIn(ctx)} },
	)
}

func (m MainPageModel) startUnread() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}

	ctx, cancel := context.WithCancel(m.ctx)
	m.busy = true
	m.cancel = cancel
	driver := m.driver
	return m, tea.Batch(
		m.spinner.Tick,
		func() tea.Msg { return doneMsg{status: driver.FetchUnread(ctx, 0)} },
	)
}

// stop cancels the running sign-in or fetch, if any. The flow reports the
// outcome through doneMsg.
func (m MainPageModel) stop() {
	if m.cancel != nil {
		m.cancel()
	}
}

// Status returns the last status shown
func (m MainPageModel) Status() models.Status {
	return m.status
}

// View renders the main page
func (m MainPageModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := titleStyle.Render("ZeroInbox")

	center := lipgloss.NewStyle().
		Padding(1, 0).
		Width(m.width - 4).
		Align(lipgloss.Center)

	description := center.Render(
		"Link your Google account to the ZeroInbox backend.\n" +
			fmt.Sprintf("Platform: %s · PKCE: %s", m.cfg.OAuth.Platform, onOff(m.cfg.OAuth.UsePKCE)),
	)

	var body strings.Builder
	if m.busy {
		body.WriteString(m.spinner.View() + " ")
	}
	body.WriteString(renderStatus(m.status))
	if m.status.Phase == models.PhaseUnreadFetched {
		body.WriteString("\n\n" + completeMessageStyle(pluralize(m.status.Unread, "unread message")))
	}
	for _, w := range m.warnings {
		body.WriteString("\n" + warningMessageStyle("! "+w))
	}
	if len(m.output) > 0 {
		body.WriteString("\n\n" + strings.Join(m.output, "\n"))
	}
	if m.pasting {
		body.WriteString("\n\n" + m.input.View())
	}

	box := boxStyle.Width(m.width - 10).Render(body.String())

	help := helpStyle.
		Width(m.width - 4).
		Align(lipgloss.Center).
		Render(m.helpText())

	content := lipgloss.JoinVertical(
		lipgloss.Center,
		"",
		title,
		"",
		description,
		"",
		box,
		"",
		help,
	)

	return docStyle.Render(content)
}

func (m MainPageModel) helpText() string {
	switch {
	case m.pasting:
		return "(enter) Submit · (esc) Cancel sign-in · (ctrl+c) Quit"
	case m.busy:
		return "(esc) Cancel · (q) Quit"
	case !m.driver.Ready():
		return "Sign-in unavailable until the warnings are fixed · (u) Fetch unread · (c) Config · (q) Quit"
	default:
		return "(enter) Sign in · (u) Fetch unread · (c) Config · (q) Quit"
	}
}

func renderStatus(s models.Status) string {
	switch {
	case s.Phase.Failed():
		return errorMessageStyle(s.Message)
	case s.Phase == models.PhaseExchangeSucceeded, s.Phase == models.PhaseUnreadFetched:
		return completeMessageStyle(s.Message)
	case s.Phase.Busy():
		return statusMessageStyle(s.Message)
	default:
		return s.Message
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// pluralize returns count followed by the noun, pluralized when needed
func pluralize(count int, singular string) string {
	if count == 1 {
		return "1 " + singular
	}
	return fmt.Sprintf("%d %ss", count, singular)
}
