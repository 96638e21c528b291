package relay

import (
	"go.uber.org/zap"

	"github.com/mamertofabian/bolt-to-github-sub003/pkg/protocol"
)

// bind hooks the messenger's inbound and disconnect callbacks to h.
// Callers hold m.mu; the previous handle must already be detached so
// there is never a window with two live subscriptions. A bind error
// means the port died before we could attach, which callers treat the
// same as an immediate disconnect.
func (m *Messenger) bind(h *handle) error {
	if err := h.p.OnMessage(func(msg protocol.Message) {
		m.dispatch(h, msg)
	}); err != nil {
		return err
	}
	return h.p.OnDisconnect(func() {
		m.portDown(h)
	})
}

// dispatch forwards an inbound message to the application handlers,
// dropping it when h has been superseded. Handlers run without the
// messenger lock held.
func (m *Messenger) dispatch(h *handle, msg protocol.Message) {
	if h.detached.Load() {
		return
	}
	m.mu.Lock()
	if m.cur != h {
		m.mu.Unlock()
		return
	}
	fns := append(([]func(protocol.Message))(nil), m.onMsg...)
	m.mu.Unlock()

	m.received.Add(1)
	for _, fn := range fns {
		fn(msg)
	}
}

// portDown marks the channel dead. Only the current handle may flip the
// state; disconnects from superseded ports and repeat firings from the
// same port are ignored.
func (m *Messenger) portDown(h *handle) {
	h.downOnce.Do(func() {
		m.mu.Lock()
		if m.cur != h {
			m.mu.Unlock()
			return
		}
		m.cur = nil
		m.mu.Unlock()

		m.disconnects.Add(1)
		zap.L().Debug("port disconnected",
			zap.String("port", h.p.ID()),
			zap.Uint64("generation", h.gen))
	})
}
