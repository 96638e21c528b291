// Package relay implements the resilient message channel that sits
// between application code and a host-supplied port:
//
//   - Messenger is the facade: SendMessage, UpdatePort, ClearQueue,
//     Status. Sends never fail from the caller's point of view; when
//     the port is down the message waits in an ordered queue.
//   - UpdatePort swaps in a fresh port, detaches the superseded one,
//     and flushes the queue through the new port in FIFO order.
//   - Every replacement advances a generation counter. A flush tagged
//     with an old generation aborts before its next send, so a port
//     that was itself replaced mid-flush never delivers stale traffic.
//   - Disconnects are edge events: each port flips the state at most
//     once, no matter how often the host repeats the notification.
//
// Delivery is at-least-once per reconnect: a message is popped from the
// queue before the send, so a send that fails in the window before the
// disconnect callback lands is not retried.
package relay
