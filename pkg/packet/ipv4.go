package packet

import (
	"fmt"
	"net"

	"firestige.xyz/netcodec/pkg/buffer"
)

const (
	ipv4MinHeaderLen   = 20
	ipv4ChecksumOffset = 10
)

// IPv4 flag bits as returned by Flags.
const (
	IPv4Reserved      uint8 = 0x4
	IPv4DontFragment  uint8 = 0x2
	IPv4MoreFragments uint8 = 0x1
)

// IPv4 is an IPv4 header including options.
type IPv4 struct {
	base
}

// DecodeIPv4 wraps buf as an IPv4 header. The payload ends at TotalLength
// when that fits the captured bytes, and runs to the end otherwise.
func DecodeIPv4(buf *buffer.Buffer, d *Decoder) (Packet, error) {
	v, err := wrapFixed(buf, TypeIPv4, ipv4MinHeaderLen)
	if err != nil {
		return nil, err
	}
	first, _ := v.GetUint8(0)
	if version := first >> 4; version != 4 {
		return nil, fmt.Errorf("%w: IPv4 header with version %d", ErrInvalidVersion, version)
	}
	hdrLen := int(first&0x0f) * 4
	if hdrLen < ipv4MinHeaderLen {
		return nil, invalidHeaderLength(TypeIPv4, hdrLen, ipv4MinHeaderLen)
	}
	if v.Capacity() < hdrLen {
		return nil, insufficient(TypeIPv4, hdrLen, v.Capacity())
	}
	payloadLen := v.Capacity() - hdrLen
	total, _ := v.GetUint16(2)
	if int(total) >= hdrLen && int(total) <= v.Capacity() {
		payloadLen = int(total) - hdrLen
	}
	p := &IPv4{}
	if err := p.init(p, d, v, hdrLen, payloadLen); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *IPv4) Type() Type   { return TypeIPv4 }
func (p *IPv4) Layer() Layer { return LayerNetwork }

func (p *IPv4) Version() uint8 { return p.u8(0) >> 4 }

// IHL is the header length in 32-bit words.
func (p *IPv4) IHL() uint8 { return p.u8(0) & 0x0f }

// SetIHL rewrites the length nibble only. The decoded view keeps its
// original bounds.
func (p *IPv4) SetIHL(v uint8) { p.setBits8(0, 0x0f, v) }

func (p *IPv4) TOS() uint8          { return p.u8(1) }
func (p *IPv4) SetTOS(v uint8)      { p.setU8(1, v) }
func (p *IPv4) DSCP() uint8         { return p.u8(1) >> 2 }
func (p *IPv4) SetDSCP(v uint8)     { p.setBits8(1, 0xfc, v<<2) }
func (p *IPv4) ECN() uint8          { return p.u8(1) & 0x03 }
func (p *IPv4) SetECN(v uint8)      { p.setBits8(1, 0x03, v) }
func (p *IPv4) TotalLength() uint16 { return p.u16(2) }

func (p *IPv4) SetTotalLength(v uint16) { p.setU16(2, v) }
func (p *IPv4) ID() uint16              { return p.u16(4) }
func (p *IPv4) SetID(v uint16)          { p.setU16(4, v) }

// Flags returns the three flag bits, reserved bit first.
func (p *IPv4) Flags() uint8     { return uint8(p.u16(6) >> 13) }
func (p *IPv4) SetFlags(v uint8) { p.setBits16(6, 0xe000, uint16(v)<<13) }

func (p *IPv4) DontFragment() bool  { return p.Flags()&IPv4DontFragment != 0 }
func (p *IPv4) MoreFragments() bool { return p.Flags()&IPv4MoreFragments != 0 }

// FragmentOffset is in 8-byte units.
func (p *IPv4) FragmentOffset() uint16     { return p.u16(6) & 0x1fff }
func (p *IPv4) SetFragmentOffset(v uint16) { p.setBits16(6, 0x1fff, v) }

func (p *IPv4) TTL() uint8               { return p.u8(8) }
func (p *IPv4) SetTTL(v uint8)           { p.setU8(8, v) }
func (p *IPv4) Protocol() uint8          { return p.u8(9) }
func (p *IPv4) SetProtocol(v uint8)      { p.setU8(9, v) }
func (p *IPv4) Checksum() uint16         { return p.u16(ipv4ChecksumOffset) }
func (p *IPv4) SetChecksum(v uint16)     { p.setU16(ipv4ChecksumOffset, v) }
func (p *IPv4) SrcIP() net.IP            { return p.bytes(12, net.IPv4len) }
func (p *IPv4) DstIP() net.IP            { return p.bytes(16, net.IPv4len) }
func (p *IPv4) SetSrcIP(ip net.IP) error { return setIP(&p.base, 12, ip.To4(), net.IPv4len) }
func (p *IPv4) SetDstIP(ip net.IP) error { return setIP(&p.base, 16, ip.To4(), net.IPv4len) }

// Options returns the raw option bytes after the fixed header.
func (p *IPv4) Options() []byte { return p.bytes(ipv4MinHeaderLen, p.hdrLen-ipv4MinHeaderLen) }

// CalculateChecksum computes the header checksum with the stored checksum
// treated as zero. The frame is not modified.
func (p *IPv4) CalculateChecksum() uint16 {
	return Checksum(p.Header(), ipv4ChecksumOffset)
}

func (p *IPv4) IsValidChecksum() bool { return p.CalculateChecksum() == p.Checksum() }

// UpdateChecksum stores the calculated checksum.
func (p *IPv4) UpdateChecksum() { p.SetChecksum(p.CalculateChecksum()) }

// NextLayer stops at non-first fragments, whose payload does not start
// with a transport header.
func (p *IPv4) NextLayer() (Layer, uint32, bool) {
	if p.FragmentOffset() != 0 {
		return LayerNone, 0, false
	}
	return LayerTransport, uint32(p.Protocol()), true
}

func (p *IPv4) String() string {
	return fmt.Sprintf("IPv4[%s > %s, proto %d, ttl %d, len %d]",
		p.SrcIP(), p.DstIP(), p.Protocol(), p.TTL(), p.TotalLength())
}

func setIP(b *base, off int, ip net.IP, n int) error {
	if len(ip) != n {
		return fmt.Errorf("packet: address %v is not %d bytes", ip, n)
	}
	b.setBytes(off, ip)
	return nil
}
