package packet

import (
	"fmt"

	"firestige.xyz/netcodec/pkg/buffer"
)

// Opaque terminates a chain. Its payload is every remaining byte.
type Opaque struct {
	base
}

// DecodeOpaque wraps buf as uninterpreted bytes. It never fails on a live
// buffer.
func DecodeOpaque(buf *buffer.Buffer, d *Decoder) (Packet, error) {
	v, err := view(buf)
	if err != nil {
		return nil, err
	}
	p := &Opaque{}
	if err := p.init(p, d, v, 0, v.Capacity()); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Opaque) Type() Type                       { return TypeOpaque }
func (p *Opaque) Layer() Layer                     { return LayerNone }
func (p *Opaque) NextLayer() (Layer, uint32, bool) { return LayerNone, 0, false }

// Next always reports the end of the chain.
func (p *Opaque) Next() (Packet, error) { return nil, nil }

// Data returns the payload bytes without copying.
func (p *Opaque) Data() []byte { return p.bytes(0, p.payload.Capacity()) }

func (p *Opaque) String() string {
	return fmt.Sprintf("Opaque[%d bytes]", p.payload.Capacity())
}
