package relay

// Status is a point-in-time snapshot of the connection, computed on
// demand by Messenger.Status.
type Status struct {
	Connected      bool   `json:"connected"`
	QueuedMessages int    `json:"queuedMessages"`
	Generation     uint64 `json:"generation"`
}

// Stats holds cumulative counters since the Messenger was created.
type Stats struct {
	Sent        uint64 // delivered directly, bypassing the queue
	Flushed     uint64 // delivered by a queue flush
	Queued      uint64 // enqueued (includes later flushed, dropped, cleared)
	Dropped     uint64 // evicted by the queue limit
	Cleared     uint64 // removed by ClearQueue
	Failed      uint64 // sends that errored
	Received    uint64 // inbound messages dispatched to handlers
	Disconnects uint64 // current-port disconnect events
	Binds       uint64 // successful port attachments
	Rebinds     uint64 // attachments that replaced a live port
}

// Metrics returns a snapshot of the counters.
func (m *Messenger) Metrics() Stats {
	return Stats{
		Sent:        m.sent.Load(),
		Flushed:     m.flushed.Load(),
		Queued:      m.queued.Load(),
		Dropped:     m.dropped.Load(),
		Cleared:     m.cleared.Load(),
		Failed:      m.failed.Load(),
		Received:    m.received.Load(),
		Disconnects: m.disconnects.Load(),
		Binds:       m.binds.Load(),
		Rebinds:     m.rebinds.Load(),
	}
}
