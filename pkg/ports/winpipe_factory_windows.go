//go:build windows

package ports

import (
	"github.com/mamertofabian/bolt-to-github-sub003/pkg/port"
	"github.com/mamertofabian/bolt-to-github-sub003/pkg/port/conn"
	"github.com/mamertofabian/bolt-to-github-sub003/pkg/port/winpipe"
)

func newWinPipeDialer(pipe string, opts conn.Options) (port.Dialer, error) {
	return winpipe.Dialer{Pipe: pipe, Opts: opts}, nil
}

func newWinPipeListener(pipe string, opts conn.Options) (port.Listener, error) {
	return winpipe.Listen(pipe, opts)
}
