// Package protocol defines the message vocabulary exchanged between the
// foreground agent and the background coordinator.
package protocol

import "time"

// Type identifies the kind of application message crossing the bridge.
// The vocabulary mirrors the upload workflow: project archives travel as
// ZIP_DATA, progress flows back as UPLOAD_STATUS, the rest is control chatter.
type Type string

const (
	TypeZipData       Type = "ZIP_DATA"
	TypeUploadStatus  Type = "UPLOAD_STATUS"
	TypeCommitMessage Type = "SET_COMMIT_MESSAGE"
	TypeOpenSettings  Type = "OPEN_SETTINGS"
	TypeContentReady  Type = "CONTENT_SCRIPT_READY"
	TypeDebug         Type = "DEBUG"
	TypeHeartbeat     Type = "HEARTBEAT"
)

// Message is one application message. Payload stays opaque to the bridge:
// ports serialize it with whatever codec they are configured with, the relay
// never inspects it. EnqueuedAt is stamped when the message enters the
// outbound queue and is zero for messages delivered straight through.
type Message struct {
	Type       Type      `json:"type"`
	Payload    any       `json:"payload,omitempty"`
	EnqueuedAt time.Time `json:"enqueuedAt,omitzero"`
}
