// Package packet decodes captured frames into typed, mutable header views.
//
// A header never copies the frame: it overlays a view of the frame buffer and
// reads or writes its fields in place. Decoding is lazy and top-down. Wrapping
// the root decodes one header; Next resolves the following layer through the
// Decoder's registries on demand, so a consumer stops paying as soon as it
// stops asking. All headers of one frame share the frame's reference count:
// releasing the frame buffer invalidates the whole chain.
package packet

import (
	"encoding/binary"
	"errors"
	"fmt"

	"firestige.xyz/netcodec/pkg/buffer"
)

// Packet is one decoded header together with the bytes it encapsulates.
type Packet interface {
	// Type is the static tag handlers dispatch on.
	Type() Type
	// Layer is the registry layer the header belongs to.
	Layer() Layer
	// Buffer is the view over header and payload, starting at the header.
	Buffer() *buffer.Buffer
	// HeaderLength is the number of bytes this header occupies.
	HeaderLength() int
	// Length is HeaderLength plus the payload length.
	Length() int
	// Header returns the raw header bytes without copying.
	Header() []byte
	// Payload is a zero-copy view over the bytes after the header.
	Payload() *buffer.Buffer
	// NextLayer names the registry and code that decode the payload. ok is
	// false when the payload has no typed successor.
	NextLayer() (layer Layer, code uint32, ok bool)
	// Next decodes the following header once and caches the result. It
	// returns nil when the payload is empty.
	Next() (Packet, error)
	// Parent is the enclosing header, nil for the root.
	Parent() Packet
	String() string
}

// base carries the state shared by every header implementation.
type base struct {
	self    Packet
	dec     *Decoder
	buf     *buffer.Buffer
	payload *buffer.Buffer
	hdrLen  int
	parent  Packet

	// lenient headers degrade decode failures below them into Opaque. It is
	// set under ICMP error messages, which quote truncated datagrams.
	lenient bool

	next    Packet
	nextErr error
	decoded bool
}

// view returns a big-endian view over the readable bytes of buf.
func view(buf *buffer.Buffer) (*buffer.Buffer, error) {
	v, err := buf.ReadableView()
	if err != nil {
		return nil, err
	}
	v.SetOrder(binary.BigEndian)
	return v, nil
}

func (b *base) init(self Packet, d *Decoder, v *buffer.Buffer, hdrLen, payloadLen int) error {
	p, err := v.View(hdrLen, payloadLen)
	if err != nil {
		return err
	}
	if d == nil {
		d = Default
	}
	b.self, b.dec, b.buf, b.payload, b.hdrLen = self, d, v, p, hdrLen
	return nil
}

func (b *base) Buffer() *buffer.Buffer  { return b.buf }
func (b *base) HeaderLength() int       { return b.hdrLen }
func (b *base) Length() int             { return b.hdrLen + b.payload.Capacity() }
func (b *base) Payload() *buffer.Buffer { return b.payload }
func (b *base) Parent() Packet          { return b.parent }
func (b *base) Header() []byte          { return b.bytes(0, b.hdrLen) }

func (b *base) setParent(p Packet, lenient bool) {
	b.parent = p
	b.lenient = b.lenient || lenient
}

func (b *base) setLenient() { b.lenient = true }

type linkable interface {
	setParent(p Packet, lenient bool)
}

func (b *base) Next() (Packet, error) {
	if b.decoded {
		return b.next, b.nextErr
	}
	if b.buf.RefCnt() == 0 {
		return nil, fmt.Errorf("decode after %s: %w", b.self.Type(), buffer.ErrUseAfterRelease)
	}
	b.decoded = true
	if b.payload.Capacity() == 0 {
		return nil, nil
	}

	var (
		p   Packet
		err error
	)
	layer, code, ok := b.self.NextLayer()
	if ok {
		p, err = b.dec.decodeLayer(layer, code, b.payload)
	} else {
		p, err = DecodeOpaque(b.payload, b.dec)
	}
	if err != nil && b.lenient && !errors.Is(err, buffer.ErrUseAfterRelease) {
		p, err = DecodeOpaque(b.payload, b.dec)
	}
	if err != nil {
		b.nextErr = fmt.Errorf("decode after %s: %w", b.self.Type(), err)
		return nil, b.nextErr
	}
	if l, ok := p.(linkable); ok {
		l.setParent(b.self, b.lenient)
	}
	b.next = p
	return p, nil
}

// Field access. The header length was validated when the header was
// wrapped, so these only fail on a released frame, which is a programming
// error and panics.

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func (b *base) u8(off int) uint8 {
	v, err := b.buf.GetUint8(off)
	must(err)
	return v
}

func (b *base) u16(off int) uint16 {
	v, err := b.buf.GetUint16(off)
	must(err)
	return v
}

func (b *base) u24(off int) uint32 {
	v, err := b.buf.GetUint24(off)
	must(err)
	return v
}

func (b *base) u32(off int) uint32 {
	v, err := b.buf.GetUint32(off)
	must(err)
	return v
}

func (b *base) setU8(off int, v uint8)   { must(b.buf.SetUint8(off, v)) }
func (b *base) setU16(off int, v uint16) { must(b.buf.SetUint16(off, v)) }
func (b *base) setU24(off int, v uint32) { must(b.buf.SetUint24(off, v)) }
func (b *base) setU32(off int, v uint32) { must(b.buf.SetUint32(off, v)) }

// setBits8 replaces the bits selected by mask in the byte at off.
func (b *base) setBits8(off int, mask, v uint8) {
	b.setU8(off, b.u8(off)&^mask|v&mask)
}

// setBits16 replaces the bits selected by mask in the 16-bit word at off.
func (b *base) setBits16(off int, mask, v uint16) {
	b.setU16(off, b.u16(off)&^mask|v&mask)
}

// bytes returns [off, off+n) of the header view without copying.
func (b *base) bytes(off, n int) []byte {
	data := b.buf.Bytes()
	if data == nil {
		panic(buffer.ErrUseAfterRelease)
	}
	return data[off : off+n : off+n]
}

func (b *base) setBytes(off int, src []byte) { must(b.buf.SetBytes(off, src)) }

// Chain walks root and every following header until the payload runs out.
// On a decode error it returns the headers decoded so far with the error.
func Chain(root Packet) ([]Packet, error) {
	chain := make([]Packet, 0, 8)
	for p := root; p != nil; {
		chain = append(chain, p)
		next, err := p.Next()
		if err != nil {
			return chain, err
		}
		p = next
	}
	return chain, nil
}

// Find returns the first header of type t in the chain starting at root.
func Find(root Packet, t Type) Packet {
	for p := root; p != nil; {
		if p.Type() == t {
			return p
		}
		next, err := p.Next()
		if err != nil {
			return nil
		}
		p = next
	}
	return nil
}
