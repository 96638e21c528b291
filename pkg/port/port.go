package port

import (
	"context"
	"errors"
	"net"

	"github.com/mamertofabian/bolt-to-github-sub003/pkg/protocol"
)

// ErrClosed is returned for operations on a port whose channel is already dead.
var ErrClosed = errors.New("port: closed")

// Kind identifies the underlying channel flavor.
type Kind int

const (
	KindUnknown Kind = iota
	KindMem
	KindTCP
	KindUnix
	KindWS
	KindQUIC
	KindWinPipe
)

func (k Kind) String() string {
	switch k {
	case KindMem:
		return "mem"
	case KindTCP:
		return "tcp"
	case KindUnix:
		return "unix"
	case KindWS:
		return "ws"
	case KindQUIC:
		return "quic"
	case KindWinPipe:
		return "winpipe"
	default:
		return "unknown"
	}
}

// Port is one live host channel between the two bridge contexts.
//
// Semantics every implementation must honor:
//   - Send completes or fails synchronously. It can fail with ErrClosed or a
//     transport error while no disconnect callback has fired yet; callers must
//     treat that exactly like "not connected".
//   - OnMessage and OnDisconnect append handlers; registering on an
//     already-dead port returns ErrClosed. Inbound messages that arrive before
//     the first message handler is registered are held and replayed in order.
//   - Disconnect handlers fire at most once per port, and only for remote or
//     transport death. A local Close never fires the port's own handlers; only
//     the peer observes it.
//   - Handlers are invoked one at a time, in registration order, with no
//     implementation lock held.
type Port interface {
	Send(m protocol.Message) error
	OnMessage(fn func(protocol.Message)) error
	OnDisconnect(fn func()) error
	// ID is a stable identifier for log correlation.
	ID() string
	Close() error
}

// Dialer establishes fresh ports to a fixed peer endpoint.
type Dialer interface {
	Kind() Kind
	Dial(ctx context.Context) (Port, error)
}

// Listener accepts inbound ports.
type Listener interface {
	// Accept blocks until an inbound port is available or ctx is done.
	Accept(ctx context.Context) (Port, error)
	// Addr returns the local listening address.
	Addr() net.Addr
	// Close stops the listener and unblocks Accept.
	Close() error
}
