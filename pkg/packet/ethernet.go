package packet

import (
	"fmt"
	"net"

	"firestige.xyz/netcodec/pkg/buffer"
)

const (
	ethernetHeaderLen = 14
	dot1QHeaderLen    = 4
	arpFixedLen       = 8
)

// wrapFixed takes a big-endian view of buf and checks it holds at least n
// bytes for a header of type t.
func wrapFixed(buf *buffer.Buffer, t Type, n int) (*buffer.Buffer, error) {
	v, err := view(buf)
	if err != nil {
		return nil, err
	}
	if v.Capacity() < n {
		return nil, insufficient(t, n, v.Capacity())
	}
	return v, nil
}

func setHardwareAddr(b *base, off int, addr net.HardwareAddr, n int) error {
	if len(addr) != n {
		return fmt.Errorf("packet: hardware address length %d, want %d", len(addr), n)
	}
	b.setBytes(off, addr)
	return nil
}

// etherTypeNext maps an EtherType field to the network registry. Values up
// to 1500 are 802.3 lengths and have no typed successor.
func etherTypeNext(et uint16) (Layer, uint32, bool) {
	if et <= maxEthernetPayloadLength {
		return LayerNone, 0, false
	}
	return LayerNetwork, uint32(et), true
}

// Ethernet is an Ethernet II header.
type Ethernet struct {
	base
}

// DecodeEthernet wraps buf as an Ethernet II header.
func DecodeEthernet(buf *buffer.Buffer, d *Decoder) (Packet, error) {
	v, err := wrapFixed(buf, TypeEthernet, ethernetHeaderLen)
	if err != nil {
		return nil, err
	}
	p := &Ethernet{}
	if err := p.init(p, d, v, ethernetHeaderLen, v.Capacity()-ethernetHeaderLen); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Ethernet) Type() Type   { return TypeEthernet }
func (p *Ethernet) Layer() Layer { return LayerLink }

// DstMAC aliases the frame bytes.
func (p *Ethernet) DstMAC() net.HardwareAddr { return p.bytes(0, 6) }

// SrcMAC aliases the frame bytes.
func (p *Ethernet) SrcMAC() net.HardwareAddr { return p.bytes(6, 6) }

func (p *Ethernet) SetDstMAC(mac net.HardwareAddr) error { return setHardwareAddr(&p.base, 0, mac, 6) }
func (p *Ethernet) SetSrcMAC(mac net.HardwareAddr) error { return setHardwareAddr(&p.base, 6, mac, 6) }

func (p *Ethernet) EtherType() uint16     { return p.u16(12) }
func (p *Ethernet) SetEtherType(v uint16) { p.setU16(12, v) }

func (p *Ethernet) NextLayer() (Layer, uint32, bool) { return etherTypeNext(p.EtherType()) }

func (p *Ethernet) String() string {
	return fmt.Sprintf("Ethernet[%s > %s, type 0x%04x]", p.SrcMAC(), p.DstMAC(), p.EtherType())
}

// Dot1Q is an 802.1Q or 802.1ad tag. Its fields follow the EtherType that
// introduced it.
type Dot1Q struct {
	base
}

// DecodeDot1Q wraps buf as one 802.1Q or 802.1ad tag.
func DecodeDot1Q(buf *buffer.Buffer, d *Decoder) (Packet, error) {
	v, err := wrapFixed(buf, TypeDot1Q, dot1QHeaderLen)
	if err != nil {
		return nil, err
	}
	p := &Dot1Q{}
	if err := p.init(p, d, v, dot1QHeaderLen, v.Capacity()-dot1QHeaderLen); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Dot1Q) Type() Type   { return TypeDot1Q }
func (p *Dot1Q) Layer() Layer { return LayerNetwork }

// TCI is the raw tag control information word.
func (p *Dot1Q) TCI() uint16 { return p.u16(0) }

func (p *Dot1Q) Priority() uint8         { return uint8(p.u16(0) >> 13) }
func (p *Dot1Q) SetPriority(v uint8)     { p.setBits16(0, 0xe000, uint16(v)<<13) }
func (p *Dot1Q) DropEligible() bool      { return p.u16(0)&0x1000 != 0 }
func (p *Dot1Q) VLANID() uint16          { return p.u16(0) & 0x0fff }
func (p *Dot1Q) SetVLANID(v uint16)      { p.setBits16(0, 0x0fff, v) }
func (p *Dot1Q) EtherType() uint16       { return p.u16(2) }
func (p *Dot1Q) SetEtherType(v uint16)   { p.setU16(2, v) }
func (p *Dot1Q) SetDropEligible(on bool) { p.setBits16(0, 0x1000, boolBit16(on, 0x1000)) }

func (p *Dot1Q) NextLayer() (Layer, uint32, bool) { return etherTypeNext(p.EtherType()) }

func (p *Dot1Q) String() string {
	return fmt.Sprintf("Dot1Q[vlan %d, pcp %d, dei %t, type 0x%04x]",
		p.VLANID(), p.Priority(), p.DropEligible(), p.EtherType())
}

func boolBit16(on bool, bit uint16) uint16 {
	if on {
		return bit
	}
	return 0
}

func boolBit8(on bool, bit uint8) uint8 {
	if on {
		return bit
	}
	return 0
}

// ARP operations.
const (
	ARPRequest uint16 = 1
	ARPReply   uint16 = 2
)

// ARP is an address resolution message of any hardware and protocol
// address size.
type ARP struct {
	base
}

// DecodeARP wraps buf as an ARP message.
func DecodeARP(buf *buffer.Buffer, d *Decoder) (Packet, error) {
	v, err := wrapFixed(buf, TypeARP, arpFixedLen)
	if err != nil {
		return nil, err
	}
	hlen, _ := v.GetUint8(4)
	plen, _ := v.GetUint8(5)
	n := arpFixedLen + 2*int(hlen) + 2*int(plen)
	if v.Capacity() < n {
		return nil, insufficient(TypeARP, n, v.Capacity())
	}
	p := &ARP{}
	if err := p.init(p, d, v, n, v.Capacity()-n); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *ARP) Type() Type   { return TypeARP }
func (p *ARP) Layer() Layer { return LayerNetwork }

func (p *ARP) HardwareType() uint16       { return p.u16(0) }
func (p *ARP) SetHardwareType(v uint16)   { p.setU16(0, v) }
func (p *ARP) ProtocolType() uint16       { return p.u16(2) }
func (p *ARP) SetProtocolType(v uint16)   { p.setU16(2, v) }
func (p *ARP) HardwareAddrLength() int    { return int(p.u8(4)) }
func (p *ARP) ProtocolAddrLength() int    { return int(p.u8(5)) }
func (p *ARP) Operation() uint16          { return p.u16(6) }
func (p *ARP) SetOperation(v uint16)      { p.setU16(6, v) }
func (p *ARP) SenderHardwareAddr() []byte { return p.bytes(arpFixedLen, p.HardwareAddrLength()) }
func (p *ARP) SenderProtocolAddr() []byte { return p.bytes(p.spaOffset(), p.ProtocolAddrLength()) }
func (p *ARP) TargetHardwareAddr() []byte { return p.bytes(p.thaOffset(), p.HardwareAddrLength()) }
func (p *ARP) TargetProtocolAddr() []byte { return p.bytes(p.tpaOffset(), p.ProtocolAddrLength()) }

func (p *ARP) spaOffset() int { return arpFixedLen + p.HardwareAddrLength() }
func (p *ARP) thaOffset() int { return p.spaOffset() + p.ProtocolAddrLength() }
func (p *ARP) tpaOffset() int { return p.thaOffset() + p.HardwareAddrLength() }

func (p *ARP) SetSenderHardwareAddr(a []byte) error {
	return setHardwareAddr(&p.base, arpFixedLen, a, p.HardwareAddrLength())
}

func (p *ARP) SetSenderProtocolAddr(a []byte) error {
	return setHardwareAddr(&p.base, p.spaOffset(), a, p.ProtocolAddrLength())
}

func (p *ARP) SetTargetHardwareAddr(a []byte) error {
	return setHardwareAddr(&p.base, p.thaOffset(), a, p.HardwareAddrLength())
}

func (p *ARP) SetTargetProtocolAddr(a []byte) error {
	return setHardwareAddr(&p.base, p.tpaOffset(), a, p.ProtocolAddrLength())
}

// NextLayer reports no successor; trailing bytes are Ethernet padding.
func (p *ARP) NextLayer() (Layer, uint32, bool) { return LayerNone, 0, false }

func (p *ARP) String() string {
	return fmt.Sprintf("ARP[op %d, %x > %x]", p.Operation(), p.SenderProtocolAddr(), p.TargetProtocolAddr())
}
