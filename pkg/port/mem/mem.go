// Package mem provides in-process ports: a cross-linked Pair for tests and a
// named Hub for dial/listen rendezvous without touching the network. Messages
// pass as structured values; nothing is serialized.
package mem

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/mamertofabian/bolt-to-github-sub003/pkg/port"
	"github.com/mamertofabian/bolt-to-github-sub003/pkg/protocol"
)

// Port is one end of an in-process pair. Delivery to the peer is asynchronous
// and ordered: a pump goroutine per port hands inbound messages to handlers
// one at a time, then fires disconnect handlers after the final message once
// the peer is gone.
type Port struct {
	id   string
	peer *Port

	mu      sync.Mutex
	inbox   []protocol.Message
	msgFns  []func(protocol.Message)
	downFns []func()
	dead    bool // no new sends or registrations
	notify  bool // peer death pending; pump fires downFns after draining
	local   bool // closed from this side; own downFns stay silent

	wake chan struct{}
}

// Pair returns two connected ports. Closing either side kills the channel and
// fires the other side's disconnect handlers.
func Pair() (*Port, *Port) {
	a := newPort()
	b := newPort()
	a.peer, b.peer = b, a
	go a.pump()
	go b.pump()
	return a, b
}

func newPort() *Port {
	return &Port{
		id:   uuid.NewString(),
		wake: make(chan struct{}, 1),
	}
}

func (p *Port) ID() string { return p.id }

// Send hands the message to the peer. It fails with ErrClosed once this side
// has observed death; a message accepted just before the peer closed may
// still be lost, which callers must tolerate.
func (p *Port) Send(m protocol.Message) error {
	p.mu.Lock()
	if p.dead {
		p.mu.Unlock()
		return port.ErrClosed
	}
	p.mu.Unlock()

	peer := p.peer
	peer.mu.Lock()
	peer.inbox = append(peer.inbox, m)
	peer.mu.Unlock()
	peer.signal()
	return nil
}

// OnMessage registers an inbound handler. Messages received before the first
// handler was registered are replayed to it in order.
func (p *Port) OnMessage(fn func(protocol.Message)) error {
	p.mu.Lock()
	if p.dead {
		p.mu.Unlock()
		return port.ErrClosed
	}
	p.msgFns = append(p.msgFns, fn)
	p.mu.Unlock()
	p.signal()
	return nil
}

// OnDisconnect registers a handler fired once the peer side is gone.
func (p *Port) OnDisconnect(fn func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dead {
		return port.ErrClosed
	}
	p.downFns = append(p.downFns, fn)
	return nil
}

// Close marks this end dead and notifies the peer. The closing side's own
// disconnect handlers do not run. Idempotent.
func (p *Port) Close() error {
	p.mu.Lock()
	if p.dead {
		p.mu.Unlock()
		return nil
	}
	p.dead = true
	p.local = true
	p.mu.Unlock()
	p.signal()
	p.peer.killed()
	return nil
}

// killed marks the channel dead as observed from this side. The pump drains
// messages that were already in flight, then fires the disconnect handlers.
func (p *Port) killed() {
	p.mu.Lock()
	if p.dead {
		p.mu.Unlock()
		return
	}
	p.dead = true
	p.notify = true
	p.mu.Unlock()
	p.signal()
}

func (p *Port) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Port) pump() {
	for range p.wake {
		for {
			p.mu.Lock()
			if p.local {
				p.mu.Unlock()
				return
			}
			if len(p.inbox) > 0 && len(p.msgFns) > 0 {
				m := p.inbox[0]
				p.inbox[0] = protocol.Message{}
				p.inbox = p.inbox[1:]
				fns := p.msgFns
				p.mu.Unlock()
				for _, fn := range fns {
					fn(m)
				}
				continue
			}
			if p.notify {
				fns := p.downFns
				p.mu.Unlock()
				for _, fn := range fns {
					fn()
				}
				return
			}
			p.mu.Unlock()
			break
		}
	}
}

// Addr names a hub listener.
type Addr string

func (a Addr) Network() string { return "mem" }
func (a Addr) String() string  { return string(a) }

// Hub is a named rendezvous for in-process dial/listen.
type Hub struct {
	mu        sync.Mutex
	listeners map[string]*listener
}

func NewHub() *Hub { return &Hub{listeners: make(map[string]*listener)} }

// Default is the process-wide hub the ports factory hands out.
var Default = NewHub()

// Listen claims a name on the hub. The name frees up again on Close.
func (h *Hub) Listen(name string) (port.Listener, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.listeners[name]; ok {
		return nil, errors.New("mem: listener already exists")
	}
	l := &listener{hub: h, name: name, newCh: make(chan *Port, 8), closeCh: make(chan struct{})}
	h.listeners[name] = l
	return l, nil
}

// Dialer returns a dialer connecting to the named listener.
func (h *Hub) Dialer(name string) port.Dialer { return dialer{hub: h, name: name} }

func (h *Hub) dial(name string) (*Port, error) {
	h.mu.Lock()
	l := h.listeners[name]
	h.mu.Unlock()
	if l == nil {
		return nil, errors.New("mem: no such listener")
	}
	near, far := Pair()
	select {
	case l.newCh <- far:
		return near, nil
	case <-l.closeCh:
		_ = near.Close()
		return nil, errors.New("mem: listener closed")
	}
}

type dialer struct {
	hub  *Hub
	name string
}

func (d dialer) Kind() port.Kind { return port.KindMem }

func (d dialer) Dial(ctx context.Context) (port.Port, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.hub.dial(d.name)
}

type listener struct {
	hub       *Hub
	name      string
	newCh     chan *Port
	closeCh   chan struct{}
	closeOnce sync.Once
}

func (l *listener) Addr() net.Addr { return Addr(l.name) }

func (l *listener) Accept(ctx context.Context) (port.Port, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.closeCh:
		return nil, errors.New("mem: listener closed")
	case p := <-l.newCh:
		return p, nil
	}
}

func (l *listener) Close() error {
	l.closeOnce.Do(func() {
		close(l.closeCh)
		l.hub.mu.Lock()
		delete(l.hub.listeners, l.name)
		l.hub.mu.Unlock()
	})
	return nil
}
