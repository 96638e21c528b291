// boltbridge-soak drives disconnect → enqueue → replace cycles against
// an in-process port pair and verifies the queue always drains, in
// order, and per-port subscriptions never pile up. Exits non-zero on
// any stall, loss, or reordering.
package main

import (
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mamertofabian/bolt-to-github-sub003/pkg/port"
	"github.com/mamertofabian/bolt-to-github-sub003/pkg/port/mem"
	"github.com/mamertofabian/bolt-to-github-sub003/pkg/protocol"
	"github.com/mamertofabian/bolt-to-github-sub003/pkg/relay"
)

// probe travels through the mem ports by value, so the sequence number
// survives without serialization.
type probe struct {
	seq  int
	fill []byte
}

func main() {
	cycles := flag.Int("cycles", 100, "replacement cycles")
	batch := flag.Int("batch", 50, "messages enqueued per cycle")
	payloadKB := flag.Int("payload-kb", 1, "payload size per message in KB")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	zap.ReplaceGlobals(logger)
	defer logger.Sync()

	m := relay.New(relay.Options{})
	start := time.Now()

	seq := 0
	for c := 0; c < *cycles; c++ {
		first := seq
		for i := 0; i < *batch; i++ {
			m.SendMessage(protocol.TypeZipData, probe{seq: seq, fill: make([]byte, *payloadKB<<10)})
			seq++
		}

		near, far := mem.Pair()
		s := newSink(far, first)
		m.UpdatePort(near)
		if !s.waitFor(*batch, 5*time.Second) {
			fatalf("cycle %d: flush stalled at %d of %d, status %+v",
				c, s.count(), *batch, m.Status())
		}
		if err := s.orderErr(); err != nil {
			fatalf("cycle %d: %v", c, err)
		}

		// peer death; the next cycle recovers from it
		_ = far.Close()
		waitDisconnected(m)
	}

	st := m.Status()
	if st.QueuedMessages != 0 {
		fatalf("queue not empty after final cycle: %+v", st)
	}
	want := uint64(*cycles) * uint64(*batch)
	stats := m.Metrics()
	if stats.Flushed != want {
		fatalf("delivered %d of %d", stats.Flushed, want)
	}
	if stats.Disconnects != uint64(*cycles) {
		fatalf("saw %d disconnects, want %d", stats.Disconnects, *cycles)
	}
	fmt.Printf("ok: %d cycles, %d messages, %s\n",
		*cycles, want, time.Since(start).Round(time.Millisecond))
}

// sink counts deliveries on the far side of a pair and checks they
// arrive as one consecutive run starting at next.
type sink struct {
	mu     sync.Mutex
	n      int
	next   int
	broken error
}

func newSink(p port.Port, next int) *sink {
	s := &sink{next: next}
	_ = p.OnMessage(func(m protocol.Message) {
		pr, ok := m.Payload.(probe)
		s.mu.Lock()
		defer s.mu.Unlock()
		s.n++
		if s.broken != nil {
			return
		}
		switch {
		case !ok:
			s.broken = fmt.Errorf("payload %T is not a probe", m.Payload)
		case pr.seq != s.next:
			s.broken = fmt.Errorf("got seq %d, want %d", pr.seq, s.next)
		default:
			s.next++
		}
	})
	return s
}

func (s *sink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

func (s *sink) orderErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.broken
}

func (s *sink) waitFor(n int, d time.Duration) bool {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if s.count() >= n {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

func waitDisconnected(m *relay.Messenger) {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if !m.Status().Connected {
			return
		}
		time.Sleep(time.Millisecond)
	}
	fatalf("disconnect never observed: %+v", m.Status())
}

func fatalf(format string, a ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
