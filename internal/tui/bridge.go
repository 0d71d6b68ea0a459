package tui

import (
	"io"
	"strings"
	"sync"

	"github.com/brizzai/zeroinbox/internal/models"
	tea "github.com/charmbracelet/bubbletea"
)

// StatusMsg carries a status change published by the reporter
type StatusMsg struct {
	Status models.Status
}

// OutputMsg carries text the launcher printed for the user
type OutputMsg struct {
	Text string
}

// Bridge connects components that run outside the bubbletea loop to the
// program: status changes and launcher output become messages, and URLs the
// user pastes into the screen are fed to the launcher's input.
type Bridge struct {
	mu       sync.Mutex
	deliver  func(tea.Msg)
	pending  []tea.Msg
	flushing bool

	pasteR *io.PipeReader
	pasteW *io.PipeWriter
}

// NewBridge creates an unattached bridge
func NewBridge() *Bridge {
	r, w := io.Pipe()
	return &Bridge{pasteR: r, pasteW: w}
}

// Attach starts delivering to p. Messages that arrived before are sent first
// and later ones queue behind them until the backlog drains.
func (b *Bridge) Attach(p *tea.Program) {
	b.attach(p.Send)
}

func (b *Bridge) attach(deliver func(tea.Msg)) {
	b.mu.Lock()
	b.deliver = deliver
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}
	b.flushing = true
	b.mu.Unlock()

	// Send blocks until the program runs
	go b.flush()
}

func (b *Bridge) flush() {
	for {
		b.mu.Lock()
		if len(b.pending) == 0 {
			b.flushing = false
			b.mu.Unlock()
			return
		}
		msg := b.pending[0]
		b.pending = b.pending[1:]
		deliver := b.deliver
		b.mu.Unlock()

		deliver(msg)
	}
}

func (b *Bridge) send(msg tea.Msg) {
	b.mu.Lock()
	if b.deliver == nil || b.flushing {
		b.pending = append(b.pending, msg)
		b.mu.Unlock()
		return
	}
	deliver := b.deliver
	b.mu.Unlock()

	deliver(msg)
}

// Notify is a status observer
func (b *Bridge) Notify(s models.Status) {
	b.send(StatusMsg{Status: s})
}

// Write implements io.Writer for launcher output
func (b *Bridge) Write(p []byte) (int, error) {
	if text := strings.TrimSpace(string(p)); text != "" {
		b.send(OutputMsg{Text: text})
	}
	return len(p), nil
}

// Input is read by the paste launcher
func (b *Bridge) Input() io.Reader {
	return b.pasteR
}

// Paste hands a line typed in the screen to the launcher waiting on Input.
// It blocks until the launcher reads it, so call it from a tea.Cmd.
func (b *Bridge) Paste(line string) error {
	_, err := io.WriteString(b.pasteW, strings.TrimSpace(line)+"\n")
	return err
}

// Close ends the paste input; a waiting launcher sees end of input
func (b *Bridge) Close() error {
	return b.pasteW.Close()
}
