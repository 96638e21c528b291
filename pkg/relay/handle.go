package relay

import (
	"sync"
	"sync/atomic"

	"github.com/mamertofabian/bolt-to-github-sub003/pkg/port"
)

// handle pairs one port with the generation that made it current.
//
// At most one handle is current at a time. A superseded handle is
// detached rather than unhooked: ports expose no listener removal, so
// the callbacks bound to an old handle stay registered on the old port
// but drop everything they see once detached. downOnce absorbs hosts
// that fire the disconnect event more than once per port.
type handle struct {
	p        port.Port
	gen      uint64
	detached atomic.Bool
	downOnce sync.Once
}

func (h *handle) detach() { h.detached.Store(true) }
