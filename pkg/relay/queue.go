package relay

import (
	"github.com/mamertofabian/bolt-to-github-sub003/pkg/protocol"
)

// sendQueue is an ordered buffer of not-yet-delivered outbound messages.
// It is not safe for concurrent use; the Messenger guards it with its own
// mutex. Popped and cleared slots are released immediately so large
// payloads do not linger behind the backing array.
type sendQueue struct {
	items []protocol.Message
	head  int
}

func (q *sendQueue) len() int { return len(q.items) - q.head }

// push appends m. When limit > 0 and the queue would exceed it, the
// oldest entries are evicted first; the number evicted is returned.
func (q *sendQueue) push(m protocol.Message, limit int) (evicted int) {
	q.items = append(q.items, m)
	if limit > 0 {
		for q.len() > limit {
			q.items[q.head] = protocol.Message{}
			q.head++
			evicted++
		}
		q.compact()
	}
	return evicted
}

// pop removes and returns the front message. The vacated slot is zeroed
// so the payload is reclaimable even if delivery stalls.
func (q *sendQueue) pop() (protocol.Message, bool) {
	if q.len() == 0 {
		return protocol.Message{}, false
	}
	m := q.items[q.head]
	q.items[q.head] = protocol.Message{}
	q.head++
	q.compact()
	return m, true
}

// clear drops every queued message without delivering it and returns how
// many were dropped. The backing array is released wholesale.
func (q *sendQueue) clear() int {
	n := q.len()
	q.items = nil
	q.head = 0
	return n
}

// compact slides the live region back to the start once the dead prefix
// dominates, keeping memory proportional to the live length.
func (q *sendQueue) compact() {
	if q.head <= 32 || q.head*2 < len(q.items) {
		return
	}
	n := copy(q.items, q.items[q.head:])
	clear(q.items[n:])
	q.items = q.items[:n]
	q.head = 0
}
