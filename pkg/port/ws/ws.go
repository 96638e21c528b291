// Package ws implements WebSocket ports (gorilla/websocket): one message per
// WebSocket frame, text frames for the JSON codec, binary frames otherwise.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mamertofabian/bolt-to-github-sub003/pkg/port"
	"github.com/mamertofabian/bolt-to-github-sub003/pkg/protocol"
	"github.com/mamertofabian/bolt-to-github-sub003/pkg/protocol/codec"
)

// DefaultMaxMessage caps one inbound WebSocket message.
const DefaultMaxMessage = 16 << 20

// Options tune a WebSocket port.
type Options struct {
	// Codec encodes message bodies. Defaults to the built-in JSON codec.
	Codec codec.Codec
	// MaxMessage is handed to SetReadLimit. Defaults to DefaultMaxMessage.
	MaxMessage int64
}

func (o Options) withDefaults() Options {
	if o.Codec == nil {
		o.Codec = codec.JSON()
	}
	if o.MaxMessage == 0 {
		o.MaxMessage = DefaultMaxMessage
	}
	return o
}

// Port wraps one WebSocket connection. Writes are serialized (the library
// allows a single concurrent writer); inbound frames flow through a pump
// goroutine one handler call at a time.
type Port struct {
	id   string
	c    *websocket.Conn
	opts Options
	text bool

	wmu sync.Mutex

	mu      sync.Mutex
	inbox   []protocol.Message
	msgFns  []func(protocol.Message)
	downFns []func()
	dead    bool
	notify  bool
	local   bool

	wake chan struct{}
}

func newPort(c *websocket.Conn, opts Options) *Port {
	opts = opts.withDefaults()
	p := &Port{
		id:   uuid.NewString(),
		c:    c,
		opts: opts,
		text: opts.Codec.Name() == "json",
		wake: make(chan struct{}, 1),
	}
	c.SetReadLimit(opts.MaxMessage)
	go p.pump()
	go p.readLoop()
	return p
}

func (p *Port) ID() string { return p.id }

func (p *Port) Send(m protocol.Message) error {
	p.mu.Lock()
	if p.dead {
		p.mu.Unlock()
		return port.ErrClosed
	}
	p.mu.Unlock()

	buf, err := p.opts.Codec.Marshal(m)
	if err != nil {
		return fmt.Errorf("ws: encode: %w", err)
	}
	mt := websocket.BinaryMessage
	if p.text {
		mt = websocket.TextMessage
	}
	p.wmu.Lock()
	defer p.wmu.Unlock()
	return p.c.WriteMessage(mt, buf)
}

// OnMessage registers an inbound handler. Frames decoded before the first
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

func (p *Port) OnDisconnect(fn func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dead {
		return port.ErrClosed
	}
	p.downFns = append(p.downFns, fn)
	return nil
}

// Close sends a best-effort close frame and tears the connection down without
// firing this side's disconnect handlers. Idempotent.
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

	p.wmu.Lock()
	_ = p.c.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(100*time.Millisecond))
	p.wmu.Unlock()
	return p.c.Close()
}

func (p *Port) readLoop() {
	for {
		_, data, err := p.c.ReadMessage()
		if err != nil {
			p.killed(err)
			return
		}
		var m protocol.Message
		if err := p.opts.Codec.Unmarshal(data, &m); err != nil {
			p.killed(fmt.Errorf("ws: decode: %w", err))
			return
		}
		p.mu.Lock()
		p.inbox = append(p.inbox, m)
		p.mu.Unlock()
		p.signal()
	}
}

func (p *Port) killed(err error) {
	p.mu.Lock()
	if p.dead {
		p.mu.Unlock()
		return
	}
	p.dead = true
	p.notify = true
	p.mu.Unlock()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		zap.L().Debug("ws port read failed", zap.String("port", p.id), zap.Error(err))
	}
	p.signal()
	_ = p.c.Close()
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

// Dialer connects to a WebSocket endpoint, e.g. ws://127.0.0.1:8787/bridge.
type Dialer struct {
	URL  string
	Opts Options
}

func (d Dialer) Kind() port.Kind { return port.KindWS }

func (d Dialer) Dial(ctx context.Context) (port.Port, error) {
	c, _, err := websocket.DefaultDialer.DialContext(ctx, d.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("ws: dial %s: %w", d.URL, err)
	}
	return newPort(c, d.Opts), nil
}

// Listen serves a WebSocket upgrade endpoint and yields accepted ports.
func Listen(addr, path string, opts Options) (port.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	if path == "" {
		path = "/"
	}
	l := &listener{
		ln:      ln,
		opts:    opts.withDefaults(),
		newCh:   make(chan *Port, 8),
		closeCh: make(chan struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, l.serve)
	l.srv = &http.Server{Handler: mux}
	go func() {
		if err := l.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Debug("ws listener stopped", zap.Error(err))
		}
	}()
	return l, nil
}

type listener struct {
	ln        net.Listener
	srv       *http.Server
	opts      Options
	upgrader  websocket.Upgrader
	newCh     chan *Port
	closeCh   chan struct{}
	closeOnce sync.Once
}

func (l *listener) serve(w http.ResponseWriter, r *http.Request) {
	c, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Debug("ws upgrade failed", zap.Error(err))
		return
	}
	p := newPort(c, l.opts)
	select {
	case l.newCh <- p:
	case <-l.closeCh:
		_ = p.Close()
	}
}

func (l *listener) Addr() net.Addr { return l.ln.Addr() }

func (l *listener) Accept(ctx context.Context) (port.Port, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.closeCh:
		return nil, errors.New("ws: listener closed")
	case p := <-l.newCh:
		return p, nil
	}
}

func (l *listener) Close() error {
	l.closeOnce.Do(func() { close(l.closeCh) })
	return l.srv.Close()
}
