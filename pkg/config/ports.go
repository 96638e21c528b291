package config

// PortConfig describes one channel endpoint.
// Example YAML:
// port:
//
//	kind: ws
//	address: "127.0.0.1:8787"
//	path: "/bridge"
//	codec: json
//	max_frame_mb: 16
//
// Kinds: mem, tcp, unix, ws, quic, winpipe. For winpipe the address is a
// pipe name like \\.\pipe\boltbridge; for mem it is a hub endpoint name.
type PortConfig struct {
	Kind    string `mapstructure:"kind"`
	Address string `mapstructure:"address"`
	// Path is the HTTP path for ws endpoints.
	Path string `mapstructure:"path"`
	// Codec selects the frame encoding: json, cbor, or proto.
	Codec string `mapstructure:"codec"`
	// MaxFrameMB bounds a single encoded message.
	MaxFrameMB int `mapstructure:"max_frame_mb"`
}
