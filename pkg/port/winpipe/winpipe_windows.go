//go:build windows

// Package winpipe implements ports over Windows named pipes (go-winio),
// reusing the conn framing. Pipe names look like \\.\pipe\boltbridge.
package winpipe

import (
	"context"

	"github.com/Microsoft/go-winio"

	"github.com/mamertofabian/bolt-to-github-sub003/pkg/port"
	"github.com/mamertofabian/bolt-to-github-sub003/pkg/port/conn"
)

// Dialer connects to a named pipe.
type Dialer struct {
	Pipe string
	Opts conn.Options
}

func (d Dialer) Kind() port.Kind { return port.KindWinPipe }

func (d Dialer) Dial(ctx context.Context) (port.Port, error) {
	c, err := winio.DialPipeContext(ctx, d.Pipe)
	if err != nil {
		return nil, err
	}
	return conn.New(c, d.Opts), nil
}

// Listen serves framed ports on a named pipe.
func Listen(pipe string, opts conn.Options) (port.Listener, error) {
	l, err := winio.ListenPipe(pipe, nil)
	if err != nil {
		return nil, err
	}
	return conn.Wrap(l, opts), nil
}
