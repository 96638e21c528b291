// Package reconnect keeps a messenger fed with live ports: it dials an
// endpoint until a connection sticks, hands the fresh port to the
// messenger (which flushes its backlog), and goes back to dialing when
// the port dies.
package reconnect

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mamertofabian/bolt-to-github-sub003/pkg/port"
	"github.com/mamertofabian/bolt-to-github-sub003/pkg/relay"
)

// Options tunes the retry loop.
type Options struct {
	// Backoff is the delay before the first retry; it doubles after
	// every failed dial. Default 500ms.
	Backoff time.Duration
	// MaxBackoff caps the doubling. Default 30s.
	MaxBackoff time.Duration
	// Jitter adds up to this much extra delay per retry so restarting
	// fleets do not stampede the listener. Default 200ms.
	Jitter time.Duration
	// OnConnect runs after the messenger has adopted a fresh port,
	// e.g. to announce readiness to the peer.
	OnConnect func(p port.Port)
}

func (o Options) withDefaults() Options {
	if o.Backoff <= 0 {
		o.Backoff = 500 * time.Millisecond
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 30 * time.Second
	}
	if o.Jitter <= 0 {
		o.Jitter = 200 * time.Millisecond
	}
	return o
}

// Redialer owns the dial-bind-redial cycle for one messenger.
type Redialer struct {
	m    *relay.Messenger
	d    port.Dialer
	opts Options
}

func New(m *relay.Messenger, d port.Dialer, opts Options) *Redialer {
	return &Redialer{m: m, d: d, opts: opts.withDefaults()}
}

// Run dials, binds, and redials until ctx is cancelled, then returns
// ctx.Err(). Dial failures are logged and retried; they never surface
// to the messenger's callers, who just see a growing queue until a
// port sticks.
func (r *Redialer) Run(ctx context.Context) error {
	backoff := r.opts.Backoff
	for {
		p, down, err := r.attach(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			zap.L().Warn("dial failed",
				zap.String("kind", r.d.Kind().String()),
				zap.Duration("retry_in", backoff),
				zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(withJitter(backoff, r.opts.Jitter)):
			}
			backoff *= 2
			if backoff > r.opts.MaxBackoff {
				backoff = r.opts.MaxBackoff
			}
			continue
		}

		r.m.UpdatePort(p)
		if r.opts.OnConnect != nil {
			r.opts.OnConnect(p)
		}
		backoff = r.opts.Backoff
		zap.L().Info("port connected",
			zap.String("port", p.ID()),
			zap.String("kind", r.d.Kind().String()))

		select {
		case <-ctx.Done():
			_ = p.Close()
			return ctx.Err()
		case <-down:
			zap.L().Warn("port lost, redialing", zap.String("port", p.ID()))
		}
	}
}

// attach dials once and arms the disconnect trigger before the
// messenger can adopt the port, so a drop during the handoff is never
// missed. A port that dies before the trigger is armed counts as a
// failed dial.
func (r *Redialer) attach(ctx context.Context) (port.Port, chan struct{}, error) {
	p, err := r.d.Dial(ctx)
	if err != nil {
		return nil, nil, err
	}
	down := make(chan struct{})
	var once sync.Once
	if err := p.OnDisconnect(func() {
		once.Do(func() { close(down) })
	}); err != nil {
		_ = p.Close()
		return nil, nil, err
	}
	return p, down, nil
}

func withJitter(d, jitter time.Duration) time.Duration {
	if jitter <= 0 {
		return d
	}
	return d + time.Duration(time.Now().UnixNano()%int64(jitter))
}
