// Package conn implements ports over byte streams: length-prefixed (u32 LE)
// frames carrying codec-encoded messages. TCP and unix sockets use it
// directly; the quic and winpipe ports reuse its framing over their streams.
package conn

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamertofabian/bolt-to-github-sub003/pkg/port"
	"github.com/mamertofabian/bolt-to-github-sub003/pkg/protocol"
	"github.com/mamertofabian/bolt-to-github-sub003/pkg/protocol/codec"
)

// DefaultMaxFrame bounds a single encoded message, length prefix excluded.
const DefaultMaxFrame = 16 << 20

// Options tune a framed port.
type Options struct {
	// Codec encodes message bodies. Defaults to the built-in JSON codec.
	Codec codec.Codec
	// MaxFrame rejects frames larger than this many bytes. Defaults to DefaultMaxFrame.
	MaxFrame uint32
}

func (o Options) withDefaults() Options {
	if o.Codec == nil {
		o.Codec = codec.JSON()
	}
	if o.MaxFrame == 0 {
		o.MaxFrame = DefaultMaxFrame
	}
	return o
}

// Port frames codec-encoded messages over a byte stream. A read goroutine
// decodes inbound frames and a pump goroutine hands them to handlers one at a
// time, firing disconnect handlers after the final frame when the stream dies.
type Port struct {
	id   string
	c    io.ReadWriteCloser
	opts Options
	br   *bufio.Reader

	wmu sync.Mutex
	bw  *bufio.Writer

	mu      sync.Mutex
	inbox   []protocol.Message
	msgFns  []func(protocol.Message)
	downFns []func()
	dead    bool
	notify  bool
	local   bool

	wake chan struct{}
}

// New wraps a byte stream in a framed port and starts its read pump.
func New(c io.ReadWriteCloser, opts Options) *Port {
	p := &Port{
		id:   uuid.NewString(),
		c:    c,
		opts: opts.withDefaults(),
		br:   bufio.NewReader(c),
		bw:   bufio.NewWriter(c),
		wake: make(chan struct{}, 1),
	}
	go p.pump()
	go p.readLoop()
	return p
}

func (p *Port) ID() string { return p.id }

// Send encodes and writes one frame. Write errors are returned synchronously;
// the disconnect handlers fire separately once the read side notices death.
func (p *Port) Send(m protocol.Message) error {
	p.mu.Lock()
	if p.dead {
		p.mu.Unlock()
		return port.ErrClosed
	}
	p.mu.Unlock()

	buf, err := p.opts.Codec.Marshal(m)
	if err != nil {
		return fmt.Errorf("conn: encode: %w", err)
	}
	if len(buf) > int(p.opts.MaxFrame) {
		return fmt.Errorf("conn: frame of %d bytes exceeds limit %d", len(buf), p.opts.MaxFrame)
	}

	p.wmu.Lock()
	defer p.wmu.Unlock()
	var lenbuf [4]byte
	binary.LittleEndian.PutUint32(lenbuf[:], uint32(len(buf)))
	if _, err := p.bw.Write(lenbuf[:]); err != nil {
		return err
	}
	if _, err := p.bw.Write(buf); err != nil {
		return err
	}
	return p.bw.Flush()
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

// OnDisconnect registers a handler fired once when the stream dies remotely.
func (p *Port) OnDisconnect(fn func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dead {
		return port.ErrClosed
	}
	p.downFns = append(p.downFns, fn)
	return nil
}

// Close tears the port down without firing its own disconnect handlers.
// Idempotent.
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
	return p.c.Close()
}

func (p *Port) readLoop() {
	for {
		m, err := p.readFrame()
		if err != nil {
			p.killed(err)
			return
		}
		p.mu.Lock()
		p.inbox = append(p.inbox, m)
		p.mu.Unlock()
		p.signal()
	}
}

func (p *Port) readFrame() (protocol.Message, error) {
	var m protocol.Message
	var lenbuf [4]byte
	if _, err := io.ReadFull(p.br, lenbuf[:]); err != nil {
		return m, err
	}
	n := binary.LittleEndian.Uint32(lenbuf[:])
	if n > p.opts.MaxFrame {
		return m, fmt.Errorf("conn: frame of %d bytes exceeds limit %d", n, p.opts.MaxFrame)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(p.br, buf); err != nil {
		return m, err
	}
	if err := p.opts.Codec.Unmarshal(buf, &m); err != nil {
		return m, fmt.Errorf("conn: decode: %w", err)
	}
	return m, nil
}

// killed marks the port dead after a read failure. A local Close has already
// marked it, so reaching here means remote or transport death: the pump fires
// the disconnect handlers after draining already-decoded frames.
func (p *Port) killed(err error) {
	p.mu.Lock()
	if p.dead {
		p.mu.Unlock()
		return
	}
	p.dead = true
	p.notify = true
	p.mu.Unlock()
	if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
		zap.L().Debug("port read failed", zap.String("port", p.id), zap.Error(err))
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

// Dialer opens framed ports over stream sockets ("tcp" or "unix").
type Dialer struct {
	Network string
	Address string
	Opts    Options
}

func (d Dialer) Kind() port.Kind {
	if d.Network == "unix" {
		return port.KindUnix
	}
	return port.KindTCP
}

func (d Dialer) Dial(ctx context.Context) (port.Port, error) {
	var nd net.Dialer
	c, err := nd.DialContext(ctx, d.Network, d.Address)
	if err != nil {
		return nil, err
	}
	return New(c, d.Opts), nil
}

// Listen starts a stream listener producing framed ports.
func Listen(network, address string, opts Options) (port.Listener, error) {
	l, err := net.Listen(network, address)
	if err != nil {
		return nil, err
	}
	return Wrap(l, opts), nil
}

// Wrap adapts an existing net.Listener (named pipes, tls, ...) into a port
// listener.
func Wrap(l net.Listener, opts Options) port.Listener {
	cl := &connListener{l: l, opts: opts, newCh: make(chan *Port, 8), closeCh: make(chan struct{})}
	go cl.acceptLoop()
	return cl
}

type connListener struct {
	l         net.Listener
	opts      Options
	newCh     chan *Port
	closeCh   chan struct{}
	closeOnce sync.Once
}

func (l *connListener) Addr() net.Addr { return l.l.Addr() }

func (l *connListener) Accept(ctx context.Context) (port.Port, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.closeCh:
		return nil, errors.New("conn: listener closed")
	case p := <-l.newCh:
		return p, nil
	}
}

func (l *connListener) Close() error {
	l.closeOnce.Do(func() { close(l.closeCh) })
	return l.l.Close()
}

func (l *connListener) acceptLoop() {
	for {
		c, err := l.l.Accept()
		if err != nil {
			return
		}
		p := New(c, l.opts)
		select {
		case l.newCh <- p:
		default:
			_ = p.Close()
		}
	}
}
