// Package port defines the channel abstraction between the foreground agent
// and the background coordinator, plus the dial/listen plumbing around it.
//
// Key concepts:
// - Port: one live bidirectional channel; it dies permanently and is never reused
// - Dialer: produces fresh ports to a fixed endpoint (mem/tcp/unix/ws/quic/winpipe)
// - Listener: accepts inbound ports
//
// Subpackages implement the kinds. The relay consumes only the Port interface
// and never sees framing or codecs; serialization is a port concern.
package port
