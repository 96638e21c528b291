package relay

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mamertofabian/bolt-to-github-sub003/pkg/port"
	"github.com/mamertofabian/bolt-to-github-sub003/pkg/protocol"
)

// Options configures a Messenger.
type Options struct {
	// Port, when non-nil, is adopted at construction exactly as if
	// UpdatePort had been called with it.
	Port port.Port

	// QueueLimit caps the outbound queue; once full the oldest queued
	// message is dropped to admit a new one. 0 means unbounded, which
	// is the default: dropping application data silently is worse than
	// growing until the operator clears the queue.
	QueueLimit int
}

// Messenger is the resilient channel application code talks to. It owns
// the current port, queues outbound messages while no port is live, and
// flushes the queue in FIFO order after every UpdatePort.
//
// All methods are safe for concurrent use. One mutex serializes state
// transitions, so the component behaves like the single event loop that
// hosts the extension contexts: callbacks and calls interleave, they do
// not race.
type Messenger struct {
	mu       sync.Mutex
	cur      *handle
	gen      uint64 // bumped by every UpdatePort; tags flushes
	draining uint64 // generation that owns the active flush, 0 when idle
	q        sendQueue
	limit    int
	onMsg    []func(protocol.Message)

	sent        atomic.Uint64
	flushed     atomic.Uint64
	queued      atomic.Uint64
	dropped     atomic.Uint64
	cleared     atomic.Uint64
	failed      atomic.Uint64
	received    atomic.Uint64
	disconnects atomic.Uint64
	binds       atomic.Uint64
	rebinds     atomic.Uint64
}

// New returns a Messenger, disconnected unless opts.Port is set.
func New(opts Options) *Messenger {
	m := &Messenger{limit: opts.QueueLimit}
	if opts.Port != nil {
		m.UpdatePort(opts.Port)
	}
	return m
}

// OnMessage registers fn for every inbound message from the current
// port. Handlers accumulate and survive port replacement.
func (m *Messenger) OnMessage(fn func(protocol.Message)) {
	m.mu.Lock()
	m.onMsg = append(m.onMsg, fn)
	m.mu.Unlock()
}

// SendMessage delivers a message of the given type, or queues it when no
// port is live, a flush is in progress, or earlier messages are still
// queued. Failures never surface to the caller; they show up only in
// Status and Metrics.
func (m *Messenger) SendMessage(t protocol.Type, payload any) {
	msg := protocol.Message{Type: t, Payload: payload}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Direct send only when nothing could be overtaken: port live, no
	// flush running, queue empty.
	if m.cur != nil && m.draining == 0 && m.q.len() == 0 {
		if err := m.cur.p.Send(msg); err == nil {
			m.sent.Add(1)
			return
		}
		// Dead port that has not fired its disconnect yet. Queue the
		// message and leave the state flip to the disconnect callback.
		m.failed.Add(1)
		zap.L().Debug("send failed, queueing", zap.String("type", string(t)))
	}
	m.enqueueLocked(msg)
}

// UpdatePort replaces the current channel with p. The generation
// advances, the previous handle is detached before the new one is
// bound, and any queued messages are flushed through p asynchronously
// in FIFO order. Replacing a live port is legal; the superseded port is
// dropped, not closed, and stays the caller's to dispose of.
//
// If p is already dead when we attach, the messenger just stays
// disconnected; the queue keeps waiting for the next port.
func (m *Messenger) UpdatePort(p port.Port) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cur != nil {
		m.cur.detach()
		m.cur = nil
		m.rebinds.Add(1)
	}
	m.gen++
	m.draining = 0

	h := &handle{p: p, gen: m.gen}
	if err := m.bind(h); err != nil {
		zap.L().Warn("bind to dead port",
			zap.String("port", p.ID()),
			zap.Uint64("generation", m.gen),
			zap.Error(err))
		return
	}
	m.cur = h
	m.binds.Add(1)

	if m.q.len() > 0 {
		m.draining = m.gen
		go m.drain(m.gen)
	}
}

// ClearQueue drops every queued message without delivering it.
// Idempotent; messages already handed to a port are unaffected.
func (m *Messenger) ClearQueue() {
	m.mu.Lock()
	n := m.q.clear()
	m.mu.Unlock()
	if n > 0 {
		m.cleared.Add(uint64(n))
		zap.L().Debug("queue cleared", zap.Int("messages", n))
	}
}

// Status reports the live connection state. Never cached: the queue
// length is read fresh so it cannot drift from reality.
func (m *Messenger) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		Connected:      m.cur != nil,
		QueuedMessages: m.q.len(),
		Generation:     m.gen,
	}
}

// Close detaches and closes the current port, aborting any flush in
// progress. Queued messages are kept; the messenger stays usable and
// reconnects on the next UpdatePort.
func (m *Messenger) Close() error {
	m.mu.Lock()
	h := m.cur
	if h != nil {
		h.detach()
		m.cur = nil
	}
	m.gen++
	m.draining = 0
	m.mu.Unlock()

	if h == nil {
		return nil
	}
	return h.p.Close()
}

// enqueueLocked appends msg under m.mu, evicting the oldest entries when
// a queue limit is set.
func (m *Messenger) enqueueLocked(msg protocol.Message) {
	msg.EnqueuedAt = time.Now()
	evicted := m.q.push(msg, m.limit)
	m.queued.Add(1)
	if evicted > 0 {
		m.dropped.Add(uint64(evicted))
		zap.L().Warn("queue full, dropped oldest",
			zap.Int("evicted", evicted),
			zap.Int("limit", m.limit))
	}
}

// drain flushes the queue through the current port, front to back, one
// message at a time. Each iteration revalidates under the lock that
// generation g still owns the flush and that a port is live; a stale or
// orphaned flush stops without sending. Messages are popped before
// delivery, so a failed send is not retried; the flush carries on with
// the rest and the disconnect callback settles the state.
func (m *Messenger) drain(g uint64) {
	for {
		m.mu.Lock()
		if m.gen != g || m.draining != g {
			m.mu.Unlock()
			zap.L().Debug("flush superseded", zap.Uint64("generation", g))
			return
		}
		if m.cur == nil {
			m.draining = 0
			m.mu.Unlock()
			return
		}
		msg, ok := m.q.pop()
		if !ok {
			m.draining = 0
			m.mu.Unlock()
			return
		}
		p := m.cur.p
		m.mu.Unlock()

		if err := p.Send(msg); err != nil {
			m.failed.Add(1)
			zap.L().Debug("flush send failed",
				zap.String("type", string(msg.Type)),
				zap.Uint64("generation", g))
			continue
		}
		m.flushed.Add(1)
	}
}
