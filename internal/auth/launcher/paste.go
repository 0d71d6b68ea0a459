package launcher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/brizzai/zeroinbox/internal/auth/request"
	"github.com/brizzai/zeroinbox/internal/models"
)

// Paste is used when the redirect URI is an app scheme the terminal cannot
// receive: the user completes consent elsewhere and pastes the final URL.
type Paste struct {
	out io.Writer
	in  *bufio.Reader

	mu      sync.Mutex
	pending chan line
}

// NewPaste creates a paste launcher
func NewPaste(out io.Writer, in io.Reader) *Paste {
	return &Paste{out: out, in: bufio.NewReader(in)}
}

type line struct {
	text string
	err  error
}

// Launch prints the consent URL and reads one line. An empty line is a
// dismiss, end of input or context cancellation a cancel.
func (p *Paste) Launch(ctx context.Context, req *request.AuthorizationRequest) (models.AuthorizationResponse, error) {
	fmt.Fprintf(p.out, "Open this URL to sign in with Google:\n%s\n\nPaste the URL you were redirected to (empty to give up): ", req.AuthURL)

	select {
	case <-ctx.Done():
		return models.Cancelled(), nil
	case l := <-p.next():
		p.mu.Lock()
		p.pending = nil
		p.mu.Unlock()

		text := strings.TrimSpace(l.text)
		if l.err != nil && !errors.Is(l.err, io.EOF) {
			return models.AuthorizationResponse{}, fmt.Errorf("failed to read redirect url: %w", l.err)
		}
		if text == "" {
			if l.err != nil {
				return models.Cancelled(), nil
			}
			return models.Dismissed(), nil
		}
		return models.ParseRedirectURL(text)
	}
}

// next returns the channel of the outstanding read, starting one if needed.
// A read abandoned by a cancelled attempt is handed to the next attempt.
func (p *Paste) next() <-chan line {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending == nil {
		ch := make(chan line, 1)
		p.pending = ch
		go func() {
			text, err := p.in.ReadString('\n')
			ch <- line{text: text, err: err}
		}()
	}
	return p.pending
}
