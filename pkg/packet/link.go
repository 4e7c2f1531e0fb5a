package packet

import (
	"fmt"
	"net"

	"firestige.xyz/netcodec/pkg/buffer"
)

const (
	loopbackHeaderLen = 4
	linuxSLLHeaderLen = 16
)

// Loopback is the BSD null/loopback encapsulation: a 4-byte address family
// in the byte order of the capturing host.
type Loopback struct {
	base
	reversed bool
}

// DecodeLoopback wraps buf as a BSD loopback header.
func DecodeLoopback(buf *buffer.Buffer, d *Decoder) (Packet, error) {
	v, err := wrapFixed(buf, TypeLoopback, loopbackHeaderLen)
	if err != nil {
		return nil, err
	}
	p := &Loopback{}
	if err := p.init(p, d, v, loopbackHeaderLen, v.Capacity()-loopbackHeaderLen); err != nil {
		return nil, err
	}
	// Families are small; a big-endian value beyond 16 bits was written
	// little-endian.
	p.reversed = p.u32(0) > 0xffff
	return p, nil
}

func (p *Loopback) Type() Type   { return TypeLoopback }
func (p *Loopback) Layer() Layer { return LayerLink }

// Family is the address family in host interpretation.
func (p *Loopback) Family() uint32 {
	if p.reversed {
		v, err := p.buf.GetUint32RE(0)
		must(err)
		return v
	}
	return p.u32(0)
}

// SetFamily writes v in the byte order the frame was captured with.
func (p *Loopback) SetFamily(v uint32) {
	if p.reversed {
		must(p.buf.SetUint32RE(0, v))
		return
	}
	p.setU32(0, v)
}

func (p *Loopback) NextLayer() (Layer, uint32, bool) {
	switch p.Family() {
	case 2:
		return LayerNetwork, EtherTypeIPv4, true
	case 10, 24, 28, 30:
		// AF_INET6 differs between Linux, the BSDs and Darwin.
		return LayerNetwork, EtherTypeIPv6, true
	}
	return LayerNone, 0, false
}

func (p *Loopback) String() string { return fmt.Sprintf("Loopback[family %d]", p.Family()) }

// LinuxSLL is the Linux cooked capture header.
type LinuxSLL struct {
	base
}

// DecodeLinuxSLL wraps buf as a Linux cooked capture header.
func DecodeLinuxSLL(buf *buffer.Buffer, d *Decoder) (Packet, error) {
	v, err := wrapFixed(buf, TypeLinuxSLL, linuxSLLHeaderLen)
	if err != nil {
		return nil, err
	}
	p := &LinuxSLL{}
	if err := p.init(p, d, v, linuxSLLHeaderLen, v.Capacity()-linuxSLLHeaderLen); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *LinuxSLL) Type() Type   { return TypeLinuxSLL }
func (p *LinuxSLL) Layer() Layer { return LayerLink }

func (p *LinuxSLL) PacketType() uint16     { return p.u16(0) }
func (p *LinuxSLL) SetPacketType(v uint16) { p.setU16(0, v) }
func (p *LinuxSLL) ARPHRDType() uint16     { return p.u16(2) }
func (p *LinuxSLL) AddrLength() int        { return int(p.u16(4)) }
func (p *LinuxSLL) Protocol() uint16       { return p.u16(14) }
func (p *LinuxSLL) SetProtocol(v uint16)   { p.setU16(14, v) }

// Addr returns the link-layer source address, at most 8 bytes.
func (p *LinuxSLL) Addr() net.HardwareAddr {
	n := p.AddrLength()
	if n > 8 {
		n = 8
	}
	return p.bytes(6, n)
}

func (p *LinuxSLL) NextLayer() (Layer, uint32, bool) { return etherTypeNext(p.Protocol()) }

func (p *LinuxSLL) String() string {
	return fmt.Sprintf("LinuxSLL[type %d, addr %s, proto 0x%04x]", p.PacketType(), p.Addr(), p.Protocol())
}

// DecodeRaw decodes a link-less IP packet by its version nibble. Anything
// other than version 4 or 6 is Opaque.
func DecodeRaw(buf *buffer.Buffer, d *Decoder) (Packet, error) {
	v, err := wrapFixed(buf, TypeIPv4, 1)
	if err != nil {
		return nil, err
	}
	first, err := v.GetUint8(0)
	if err != nil {
		return nil, err
	}
	switch first >> 4 {
	case 4:
		return DecodeIPv4(v, d)
	case 6:
		return DecodeIPv6(v, d)
	}
	return DecodeOpaque(v, d)
}
