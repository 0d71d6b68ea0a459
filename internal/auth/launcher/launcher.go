// Package launcher presents an authorization request to the user and waits
// for the provider's answer.
package launcher

import (
	"context"
	"io"
	"os"

	"github.com/brizzai/zeroinbox/internal/auth/request"
	"github.com/brizzai/zeroinbox/internal/config"
	"github.com/brizzai/zeroinbox/internal/models"
	"go.uber.org/fx"
)

// Launcher opens the consent screen for req and blocks until exactly one
// response is available. An error means the consent screen could not be shown
// at all; user-side outcomes are always reported as a response variant.
type Launcher interface {
	Launch(ctx context.Context, req *request.AuthorizationRequest) (models.AuthorizationResponse, error)
}

// Params holds what ForPlatform needs
type Params struct {
	fx.In

	Config *config.Config
	Out    io.Writer `name:"launcher_out" optional:"true"`
	Input  io.Reader `name:"launcher_in" optional:"true"`
}

// ForPlatform picks the loopback launcher for desktop clients, whose redirect
// lands on a local port, and the paste launcher for app-scheme redirects.
func ForPlatform(params Params) Launcher {
	out := params.Out
	if out == nil {
		out = os.Stderr
	}
	in := params.Input
	if in == nil {
		in = os.Stdin
	}

	if params.Config.OAuth.Platform == config.PlatformDesktop {
		return NewLoopback(params.Config, out)
	}
	return NewPaste(out, in)
}

// Module provides the launcher for the configured platform
var Module = fx.Module("launcher",
	fx.Provide(ForPlatform),
)
