package packet

import (
	"fmt"

	"firestige.xyz/netcodec/pkg/buffer"
)

const (
	greMinHeaderLen    = 4
	vxlanHeaderLen     = 8
	geneveMinHeaderLen = 8
	geneveOptionLen    = 4
)

// GRE flag bits in the first header word.
const (
	GREChecksumPresent uint16 = 0x8000
	GREKeyPresent      uint16 = 0x2000
	GRESeqPresent      uint16 = 0x1000
)

// GRE is a GRE header with its optional checksum, key and sequence words.
type GRE struct {
	base
}

// DecodeGRE wraps buf as a GRE header.
func DecodeGRE(buf *buffer.Buffer, d *Decoder) (Packet, error) {
	v, err := wrapFixed(buf, TypeGRE, greMinHeaderLen)
	if err != nil {
		return nil, err
	}
	flags, _ := v.GetUint16(0)
	hdrLen := greMinHeaderLen
	for _, bit := range []uint16{GREChecksumPresent, GREKeyPresent, GRESeqPresent} {
		if flags&bit != 0 {
			hdrLen += 4
		}
	}
	if v.Capacity() < hdrLen {
		return nil, insufficient(TypeGRE, hdrLen, v.Capacity())
	}
	p := &GRE{}
	if err := p.init(p, d, v, hdrLen, v.Capacity()-hdrLen); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *GRE) Type() Type   { return TypeGRE }
func (p *GRE) Layer() Layer { return LayerTransport }

func (p *GRE) Flags() uint16         { return p.u16(0) }
func (p *GRE) Version() uint8        { return uint8(p.u16(0) & 0x7) }
func (p *GRE) Protocol() uint16      { return p.u16(2) }
func (p *GRE) SetProtocol(v uint16)  { p.setU16(2, v) }
func (p *GRE) ChecksumPresent() bool { return p.Flags()&GREChecksumPresent != 0 }
func (p *GRE) KeyPresent() bool      { return p.Flags()&GREKeyPresent != 0 }
func (p *GRE) SeqPresent() bool      { return p.Flags()&GRESeqPresent != 0 }

// Checksum returns the checksum word, if present.
func (p *GRE) Checksum() (uint16, bool) {
	if !p.ChecksumPresent() {
		return 0, false
	}
	return p.u16(4), true
}

// Key returns the key word, if present.
func (p *GRE) Key() (uint32, bool) {
	if !p.KeyPresent() {
		return 0, false
	}
	off := 4
	if p.ChecksumPresent() {
		off += 4
	}
	return p.u32(off), true
}

// Seq returns the sequence number, if present.
func (p *GRE) Seq() (uint32, bool) {
	if !p.SeqPresent() {
		return 0, false
	}
	off := 4
	if p.ChecksumPresent() {
		off += 4
	}
	if p.KeyPresent() {
		off += 4
	}
	return p.u32(off), true
}

func (p *GRE) NextLayer() (Layer, uint32, bool) { return LayerNetwork, uint32(p.Protocol()), true }

func (p *GRE) String() string {
	key, _ := p.Key()
	return fmt.Sprintf("GRE[proto 0x%04x, key %d]", p.Protocol(), key)
}

// VXLAN is a VXLAN header. An Ethernet frame follows.
type VXLAN struct {
	base
}

// DecodeVXLAN wraps buf as a VXLAN header.
func DecodeVXLAN(buf *buffer.Buffer, d *Decoder) (Packet, error) {
	v, err := wrapFixed(buf, TypeVXLAN, vxlanHeaderLen)
	if err != nil {
		return nil, err
	}
	p := &VXLAN{}
	if err := p.init(p, d, v, vxlanHeaderLen, v.Capacity()-vxlanHeaderLen); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *VXLAN) Type() Type   { return TypeVXLAN }
func (p *VXLAN) Layer() Layer { return LayerApplication }

func (p *VXLAN) Flags() uint8        { return p.u8(0) }
func (p *VXLAN) SetFlags(v uint8)    { p.setU8(0, v) }
func (p *VXLAN) ValidVNI() bool      { return p.u8(0)&0x08 != 0 }
func (p *VXLAN) SetValidVNI(on bool) { p.setBits8(0, 0x08, boolBit8(on, 0x08)) }
func (p *VXLAN) VNI() uint32         { return p.u24(4) }
func (p *VXLAN) SetVNI(v uint32)     { p.setU24(4, v) }

// NextLayer reports no successor unless the I flag marks a valid VNI.
func (p *VXLAN) NextLayer() (Layer, uint32, bool) {
	if !p.ValidVNI() {
		return LayerNone, 0, false
	}
	return LayerLink, LinkTypeEthernet, true
}

func (p *VXLAN) String() string { return fmt.Sprintf("VXLAN[vni %d]", p.VNI()) }

// GeneveOption is one Geneve tunnel option. Data aliases the frame bytes.
type GeneveOption struct {
	Class    uint16
	Type     uint8
	Critical bool
	Data     []byte
}

// Geneve is a Geneve header including options.
type Geneve struct {
	base
}

// DecodeGeneve wraps buf as a Geneve header, options included.
func DecodeGeneve(buf *buffer.Buffer, d *Decoder) (Packet, error) {
	v, err := wrapFixed(buf, TypeGeneve, geneveMinHeaderLen)
	if err != nil {
		return nil, err
	}
	first, _ := v.GetUint8(0)
	if version := first >> 6; version != 0 {
		return nil, fmt.Errorf("%w: Geneve version %d", ErrInvalidVersion, version)
	}
	hdrLen := geneveMinHeaderLen + int(first&0x3f)*4
	if v.Capacity() < hdrLen {
		return nil, insufficient(TypeGeneve, hdrLen, v.Capacity())
	}
	p := &Geneve{}
	if err := p.init(p, d, v, hdrLen, v.Capacity()-hdrLen); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Geneve) Type() Type   { return TypeGeneve }
func (p *Geneve) Layer() Layer { return LayerApplication }

func (p *Geneve) Version() uint8 { return p.u8(0) >> 6 }

// OptionsLength is the option area length in bytes.
func (p *Geneve) OptionsLength() int    { return int(p.u8(0)&0x3f) * 4 }
func (p *Geneve) OAM() bool             { return p.u8(1)&0x80 != 0 }
func (p *Geneve) SetOAM(on bool)        { p.setBits8(1, 0x80, boolBit8(on, 0x80)) }
func (p *Geneve) CriticalOptions() bool { return p.u8(1)&0x40 != 0 }
func (p *Geneve) Protocol() uint16      { return p.u16(2) }
func (p *Geneve) SetProtocol(v uint16)  { p.setU16(2, v) }
func (p *Geneve) VNI() uint32           { return p.u24(4) }
func (p *Geneve) SetVNI(v uint32)       { p.setU24(4, v) }

// Options walks the option area. Each option is a 4-byte header followed
// by Length 4-byte words of data.
func (p *Geneve) Options() ([]GeneveOption, error) {
	data := p.bytes(geneveMinHeaderLen, p.OptionsLength())
	var opts []GeneveOption
	for i := 0; i < len(data); {
		if i+geneveOptionLen > len(data) {
			return opts, fmt.Errorf("%w: geneve option truncated at offset %d", ErrMalformedOption, i)
		}
		typ := data[i+2]
		n := int(data[i+3]&0x1f) * 4
		end := i + geneveOptionLen + n
		if end > len(data) {
			return opts, fmt.Errorf("%w: geneve option 0x%02x overruns header", ErrMalformedOption, typ)
		}
		opts = append(opts, GeneveOption{
			Class:    uint16(data[i])<<8 | uint16(data[i+1]),
			Type:     typ,
			Critical: typ&0x80 != 0,
			Data:     data[i+geneveOptionLen : end : end],
		})
		i = end
	}
	return opts, nil
}

func (p *Geneve) NextLayer() (Layer, uint32, bool) { return LayerNetwork, uint32(p.Protocol()), true }

func (p *Geneve) String() string {
	return fmt.Sprintf("Geneve[vni %d, proto 0x%04x, opts %d bytes]", p.VNI(), p.Protocol(), p.OptionsLength())
}
