package packet

import (
	"fmt"
	"net"

	"firestige.xyz/netcodec/pkg/buffer"
)

const (
	tcpMinHeaderLen   = 20
	tcpChecksumOffset = 16
	udpHeaderLen      = 8
	udpChecksumOffset = 6
)

// TCP flag bits as returned by Flags.
const (
	TCPFlagFIN uint16 = 1 << iota
	TCPFlagSYN
	TCPFlagRST
	TCPFlagPSH
	TCPFlagACK
	TCPFlagURG
	TCPFlagECE
	TCPFlagCWR
	TCPFlagNS
)

// TCP option kinds with special encoding.
const (
	TCPOptionEndOfList uint8 = 0
	TCPOptionNOP       uint8 = 1
	TCPOptionMSS       uint8 = 2
	TCPOptionWScale    uint8 = 3
	TCPOptionSACKOK    uint8 = 4
	TCPOptionSACK      uint8 = 5
	TCPOptionTimestamp uint8 = 8
)

// NetworkHeader returns the nearest *IPv4 or *IPv6 enclosing p, or nil.
func NetworkHeader(p Packet) Packet {
	for q := p.Parent(); q != nil; q = q.Parent() {
		switch q.(type) {
		case *IPv4, *IPv6:
			return q
		}
	}
	return nil
}

// NetworkAddrs returns the addresses of the nearest IPv4 or IPv6 header
// enclosing p.
func NetworkAddrs(p Packet) (src, dst net.IP, ok bool) {
	switch ip := NetworkHeader(p).(type) {
	case *IPv4:
		return ip.SrcIP(), ip.DstIP(), true
	case *IPv6:
		return ip.SrcIP(), ip.DstIP(), true
	}
	return nil, nil, false
}

// pseudoAddrs normalizes src and dst to the same address family.
func pseudoAddrs(src, dst net.IP) ([]byte, []byte, error) {
	if s4, d4 := src.To4(), dst.To4(); s4 != nil && d4 != nil {
		return s4, d4, nil
	}
	s16, d16 := src.To16(), dst.To16()
	if s16 == nil || d16 == nil {
		return nil, nil, fmt.Errorf("packet: invalid pseudo-header addresses %v, %v", src, dst)
	}
	return s16, d16, nil
}

// portNext selects the application decoder registered for the destination
// port, then the source port.
func portNext(d *Decoder, src, dst uint16) (Layer, uint32, bool) {
	if _, ok := d.Application.Lookup(uint32(dst)); ok {
		return LayerApplication, uint32(dst), true
	}
	if _, ok := d.Application.Lookup(uint32(src)); ok {
		return LayerApplication, uint32(src), true
	}
	return LayerNone, 0, false
}

// TCP is a TCP header including options.
type TCP struct {
	base
}

// DecodeTCP wraps buf as a TCP header, options included.
func DecodeTCP(buf *buffer.Buffer, d *Decoder) (Packet, error) {
	v, err := wrapFixed(buf, TypeTCP, tcpMinHeaderLen)
	if err != nil {
		return nil, err
	}
	off, _ := v.GetUint8(12)
	hdrLen := int(off>>4) * 4
	if hdrLen < tcpMinHeaderLen {
		return nil, invalidHeaderLength(TypeTCP, hdrLen, tcpMinHeaderLen)
	}
	if v.Capacity() < hdrLen {
		return nil, insufficient(TypeTCP, hdrLen, v.Capacity())
	}
	p := &TCP{}
	if err := p.init(p, d, v, hdrLen, v.Capacity()-hdrLen); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *TCP) Type() Type   { return TypeTCP }
func (p *TCP) Layer() Layer { return LayerTransport }

func (p *TCP) SrcPort() uint16       { return p.u16(0) }
func (p *TCP) SetSrcPort(v uint16)   { p.setU16(0, v) }
func (p *TCP) DstPort() uint16       { return p.u16(2) }
func (p *TCP) SetDstPort(v uint16)   { p.setU16(2, v) }
func (p *TCP) Seq() uint32           { return p.u32(4) }
func (p *TCP) SetSeq(v uint32)       { p.setU32(4, v) }
func (p *TCP) Ack() uint32           { return p.u32(8) }
func (p *TCP) SetAck(v uint32)       { p.setU32(8, v) }
func (p *TCP) Window() uint16        { return p.u16(14) }
func (p *TCP) SetWindow(v uint16)    { p.setU16(14, v) }
func (p *TCP) Checksum() uint16      { return p.u16(tcpChecksumOffset) }
func (p *TCP) SetChecksum(v uint16)  { p.setU16(tcpChecksumOffset, v) }
func (p *TCP) Urgent() uint16        { return p.u16(18) }
func (p *TCP) SetUrgent(v uint16)    { p.setU16(18, v) }
func (p *TCP) DataOffset() uint8     { return p.u8(12) >> 4 }
func (p *TCP) SetDataOffset(v uint8) { p.setBits8(12, 0xf0, v<<4) }

// Flags returns the nine flag bits, NS highest.
func (p *TCP) Flags() uint16 { return p.u16(12) & 0x01ff }

// SetFlags replaces the nine flag bits, leaving the data offset and the
// reserved bits alone.
func (p *TCP) SetFlags(v uint16) { p.setBits16(12, 0x01ff, v) }

func (p *TCP) HasFlags(mask uint16) bool { return p.Flags()&mask == mask }
func (p *TCP) FIN() bool                 { return p.HasFlags(TCPFlagFIN) }
func (p *TCP) SYN() bool                 { return p.HasFlags(TCPFlagSYN) }
func (p *TCP) RST() bool                 { return p.HasFlags(TCPFlagRST) }
func (p *TCP) PSH() bool                 { return p.HasFlags(TCPFlagPSH) }
func (p *TCP) ACK() bool                 { return p.HasFlags(TCPFlagACK) }
func (p *TCP) URG() bool                 { return p.HasFlags(TCPFlagURG) }
func (p *TCP) ECE() bool                 { return p.HasFlags(TCPFlagECE) }
func (p *TCP) CWR() bool                 { return p.HasFlags(TCPFlagCWR) }
func (p *TCP) NS() bool                  { return p.HasFlags(TCPFlagNS) }

// RawOptions returns the option bytes without copying.
func (p *TCP) RawOptions() []byte { return p.bytes(tcpMinHeaderLen, p.hdrLen-tcpMinHeaderLen) }

// Options parses the option area up to End of Option List.
func (p *TCP) Options() ([]Option, error) {
	return parseTLV(p.RawOptions(), true,
		func(k uint8) bool { return k == TCPOptionNOP },
		func(k uint8) bool { return k == TCPOptionEndOfList })
}

// CalculateChecksum computes the checksum over the pseudo-header of src and
// dst and the whole segment, with the stored checksum treated as zero.
func (p *TCP) CalculateChecksum(src, dst net.IP) (uint16, error) {
	s, d, err := pseudoAddrs(src, dst)
	if err != nil {
		return 0, err
	}
	return transportChecksum(s, d, uint8(IPProtocolTCP), p.bytes(0, p.Length()), tcpChecksumOffset), nil
}

func (p *TCP) IsValidChecksum(src, dst net.IP) bool {
	sum, err := p.CalculateChecksum(src, dst)
	return err == nil && sum == p.Checksum()
}

func (p *TCP) NextLayer() (Layer, uint32, bool) { return portNext(p.dec, p.SrcPort(), p.DstPort()) }

func (p *TCP) String() string {
	return fmt.Sprintf("TCP[%d > %d, seq %d, ack %d, flags 0x%03x, win %d]",
		p.SrcPort(), p.DstPort(), p.Seq(), p.Ack(), p.Flags(), p.Window())
}

// UDP is a UDP header. The payload ends at Length when that fits the
// captured bytes.
type UDP struct {
	base
}

// DecodeUDP wraps buf as a UDP header.
func DecodeUDP(buf *buffer.Buffer, d *Decoder) (Packet, error) {
	v, err := wrapFixed(buf, TypeUDP, udpHeaderLen)
	if err != nil {
		return nil, err
	}
	payloadLen := v.Capacity() - udpHeaderLen
	if n, _ := v.GetUint16(4); int(n) >= udpHeaderLen && int(n) <= v.Capacity() {
		payloadLen = int(n) - udpHeaderLen
	}
	p := &UDP{}
	if err := p.init(p, d, v, udpHeaderLen, payloadLen); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *UDP) Type() Type   { return TypeUDP }
func (p *UDP) Layer() Layer { return LayerTransport }

func (p *UDP) SrcPort() uint16      { return p.u16(0) }
func (p *UDP) SetSrcPort(v uint16)  { p.setU16(0, v) }
func (p *UDP) DstPort() uint16      { return p.u16(2) }
func (p *UDP) SetDstPort(v uint16)  { p.setU16(2, v) }
func (p *UDP) LengthField() uint16  { return p.u16(4) }
func (p *UDP) SetLength(v uint16)   { p.setU16(4, v) }
func (p *UDP) Checksum() uint16     { return p.u16(udpChecksumOffset) }
func (p *UDP) SetChecksum(v uint16) { p.setU16(udpChecksumOffset, v) }

// CalculateChecksum computes the checksum over the pseudo-header of src and
// dst and the datagram. A computed zero is transmitted as 0xffff.
func (p *UDP) CalculateChecksum(src, dst net.IP) (uint16, error) {
	s, d, err := pseudoAddrs(src, dst)
	if err != nil {
		return 0, err
	}
	sum := transportChecksum(s, d, uint8(IPProtocolUDP), p.bytes(0, p.Length()), udpChecksumOffset)
	if sum == 0 {
		sum = 0xffff
	}
	return sum, nil
}

// IsValidChecksum compares the stored checksum with the calculated one. A
// stored zero means no checksum was sent; acceptZero decides whether that
// counts as valid, which it does over IPv4 only.
func (p *UDP) IsValidChecksum(src, dst net.IP, acceptZero bool) bool {
	if p.Checksum() == 0 {
		return acceptZero
	}
	sum, err := p.CalculateChecksum(src, dst)
	return err == nil && sum == p.Checksum()
}

func (p *UDP) NextLayer() (Layer, uint32, bool) { return portNext(p.dec, p.SrcPort(), p.DstPort()) }

func (p *UDP) String() string {
	return fmt.Sprintf("UDP[%d > %d, len %d]", p.SrcPort(), p.DstPort(), p.LengthField())
}
