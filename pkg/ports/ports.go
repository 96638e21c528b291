// Package ports builds dialers and listeners from configuration, keyed
// by the endpoint kind.
package ports

import (
	"fmt"
	"strings"

	"github.com/mamertofabian/bolt-to-github-sub003/pkg/config"
	"github.com/mamertofabian/bolt-to-github-sub003/pkg/port"
	"github.com/mamertofabian/bolt-to-github-sub003/pkg/port/conn"
	"github.com/mamertofabian/bolt-to-github-sub003/pkg/port/mem"
	"github.com/mamertofabian/bolt-to-github-sub003/pkg/port/quic"
	"github.com/mamertofabian/bolt-to-github-sub003/pkg/port/ws"
	"github.com/mamertofabian/bolt-to-github-sub003/pkg/protocol/codec"
)

// ErrUnknownKind reports an unrecognized endpoint kind.
type ErrUnknownKind string

func (e ErrUnknownKind) Error() string { return "unknown port kind: " + string(e) }

// NewDialer builds the dialer described by cfg.
func NewDialer(cfg config.PortConfig) (port.Dialer, error) {
	opts, err := frameOptions(cfg)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(cfg.Kind) {
	case "mem", "inproc":
		return mem.Default.Dialer(cfg.Address), nil
	case "tcp":
		return conn.Dialer{Network: "tcp", Address: cfg.Address, Opts: opts}, nil
	case "unix":
		return conn.Dialer{Network: "unix", Address: cfg.Address, Opts: opts}, nil
	case "ws", "websocket":
		return ws.Dialer{URL: wsURL(cfg), Opts: wsOptions(opts)}, nil
	case "quic", "h3", "http3":
		return quic.Dialer{Address: cfg.Address, Opts: quic.Options{Conn: opts}}, nil
	case "winpipe", "pipe":
		return newWinPipeDialer(cfg.Address, opts)
	default:
		return nil, ErrUnknownKind(cfg.Kind)
	}
}

// NewListener opens the listener described by cfg.
func NewListener(cfg config.PortConfig) (port.Listener, error) {
	opts, err := frameOptions(cfg)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(cfg.Kind) {
	case "mem", "inproc":
		return mem.Default.Listen(cfg.Address)
	case "tcp":
		return conn.Listen("tcp", cfg.Address, opts)
	case "unix":
		return conn.Listen("unix", cfg.Address, opts)
	case "ws", "websocket":
		return ws.Listen(cfg.Address, wsPath(cfg), wsOptions(opts))
	case "quic", "h3", "http3":
		return quic.Listen(cfg.Address, quic.Options{Conn: opts})
	case "winpipe", "pipe":
		return newWinPipeListener(cfg.Address, opts)
	default:
		return nil, ErrUnknownKind(cfg.Kind)
	}
}

func frameOptions(cfg config.PortConfig) (conn.Options, error) {
	c := codec.Get(cfg.Codec)
	if c == nil {
		return conn.Options{}, fmt.Errorf("unknown codec %q", cfg.Codec)
	}
	opts := conn.Options{Codec: c}
	if cfg.MaxFrameMB > 0 {
		opts.MaxFrame = uint32(cfg.MaxFrameMB) << 20
	}
	return opts, nil
}

func wsOptions(opts conn.Options) ws.Options {
	return ws.Options{Codec: opts.Codec, MaxMessage: int64(opts.MaxFrame)}
}

func wsURL(cfg config.PortConfig) string {
	if strings.Contains(cfg.Address, "://") {
		return cfg.Address
	}
	return "ws://" + cfg.Address + wsPath(cfg)
}

func wsPath(cfg config.PortConfig) string {
	switch {
	case cfg.Path == "":
		return "/"
	case !strings.HasPrefix(cfg.Path, "/"):
		return "/" + cfg.Path
	default:
		return cfg.Path
	}
}
