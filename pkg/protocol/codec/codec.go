// Package codec provides the serializers port implementations use to put
// messages on the wire. The relay core never touches codecs; framing and
// serialization are strictly a port concern.
package codec

// Codec serializes message bodies for transmission between bridge contexts.
// Implementations must be safe for concurrent use.
type Codec interface {
	// Name is the short identifier used in configuration: "json", "cbor", "proto".
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Registry maps codec names to implementations.
type Registry struct{ byName map[string]Codec }

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Codec)}
}

// Builtin returns a registry preloaded with the built-in codecs.
func Builtin() *Registry {
	r := NewRegistry()
	r.Register(JSON())
	r.Register(CBOR())
	r.Register(Proto())
	return r
}

// Register adds a codec, replacing any previous entry with the same name.
func (r *Registry) Register(c Codec) { r.byName[c.Name()] = c }

// Get returns a codec by name, or nil.
func (r *Registry) Get(name string) Codec { return r.byName[name] }

var builtin = Builtin()

// Get looks up a built-in codec by name, or nil.
func Get(name string) Codec { return builtin.Get(name) }
