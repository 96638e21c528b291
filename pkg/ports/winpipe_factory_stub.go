//go:build !windows

package ports

import (
	"errors"

	"github.com/mamertofabian/bolt-to-github-sub003/pkg/port"
	"github.com/mamertofabian/bolt-to-github-sub003/pkg/port/conn"
)

var errNoWinPipe = errors.New("winpipe ports are not supported on this platform")

func newWinPipeDialer(string, conn.Options) (port.Dialer, error) {
	return nil, errNoWinPipe
}

func newWinPipeListener(string, conn.Options) (port.Listener, error) {
	return nil, errNoWinPipe
}
