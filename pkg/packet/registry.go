package packet

import (
	"sort"
	"sync"

	"firestige.xyz/netcodec/pkg/buffer"
)

// DecodeFunc wraps the readable bytes of buf as one header. d is the
// decoder the header resolves its successors through.
type DecodeFunc func(buf *buffer.Buffer, d *Decoder) (Packet, error)

// Registry maps protocol codes of one layer to header factories. It is
// safe for concurrent use; lookups take the read lock only.
type Registry struct {
	layer Layer

	mu       sync.RWMutex
	decoders map[uint32]DecodeFunc
}

// NewRegistry returns an empty registry for layer.
func NewRegistry(layer Layer) *Registry {
	return &Registry{
		layer:    layer,
		decoders: make(map[uint32]DecodeFunc),
	}
}

// Layer reports the layer the registry serves.
func (r *Registry) Layer() Layer { return r.layer }

// Register binds code to fn. A later registration for the same code wins.
func (r *Registry) Register(code uint32, fn DecodeFunc) {
	if fn == nil {
		panic("packet: nil DecodeFunc registered for " + r.layer.String())
	}
	r.mu.Lock()
	r.decoders[code] = fn
	r.mu.Unlock()
}

// Unregister removes code. Lookups for it then miss.
func (r *Registry) Unregister(code uint32) {
	r.mu.Lock()
	delete(r.decoders, code)
	r.mu.Unlock()
}

// Lookup returns the factory bound to code.
func (r *Registry) Lookup(code uint32) (DecodeFunc, bool) {
	r.mu.RLock()
	fn, ok := r.decoders[code]
	r.mu.RUnlock()
	return fn, ok
}

// Resolve returns the factory bound to code, or DecodeOpaque.
func (r *Registry) Resolve(code uint32) DecodeFunc {
	if fn, ok := r.Lookup(code); ok {
		return fn
	}
	return DecodeOpaque
}

// Decode wraps buf with the factory Resolve returns for code.
func (r *Registry) Decode(code uint32, buf *buffer.Buffer, d *Decoder) (Packet, error) {
	return r.Resolve(code)(buf, d)
}

// Codes returns the registered codes in ascending order.
func (r *Registry) Codes() []uint32 {
	r.mu.RLock()
	codes := make([]uint32, 0, len(r.decoders))
	for code := range r.decoders {
		codes = append(codes, code)
	}
	r.mu.RUnlock()
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}
