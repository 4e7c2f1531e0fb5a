package packet

import (
	"fmt"

	"firestige.xyz/netcodec/pkg/buffer"
)

// Decoder owns one registry per layer. Headers decoded through a Decoder
// resolve their successors through the same Decoder.
type Decoder struct {
	Link        *Registry
	Network     *Registry
	Transport   *Registry
	Application *Registry

	// ICMP message bodies keyed by ICMPKey, falling back to ICMPTypeKey.
	ICMPv4Messages *Registry
	ICMPv6Messages *Registry
}

// Default is the process-wide decoder holding the built-in protocols.
// Register custom protocols on it before decoding starts.
var Default *Decoder

func init() {
	Default = NewDecoder()
}

// NewEmptyDecoder returns a decoder with no registrations.
func NewEmptyDecoder() *Decoder {
	return &Decoder{
		Link:           NewRegistry(LayerLink),
		Network:        NewRegistry(LayerNetwork),
		Transport:      NewRegistry(LayerTransport),
		Application:    NewRegistry(LayerApplication),
		ICMPv4Messages: NewRegistry(LayerICMPv4),
		ICMPv6Messages: NewRegistry(LayerICMPv6),
	}
}

// NewDecoder returns a decoder with the built-in protocols registered.
func NewDecoder() *Decoder {
	d := NewEmptyDecoder()
	d.registerBuiltins()
	return d
}

func (d *Decoder) registerBuiltins() {
	d.Link.Register(LinkTypeNull, DecodeLoopback)
	d.Link.Register(LinkTypeLoop, DecodeLoopback)
	d.Link.Register(LinkTypeEthernet, DecodeEthernet)
	d.Link.Register(LinkTypeRaw, DecodeRaw)
	d.Link.Register(LinkTypeRawAlt1, DecodeRaw)
	d.Link.Register(LinkTypeRawAlt2, DecodeRaw)
	d.Link.Register(LinkTypeLinuxSLL, DecodeLinuxSLL)

	d.Network.Register(EtherTypeIPv4, DecodeIPv4)
	d.Network.Register(EtherTypeARP, DecodeARP)
	d.Network.Register(EtherTypeDot1Q, DecodeDot1Q)
	d.Network.Register(EtherTypeQinQ, DecodeDot1Q)
	d.Network.Register(EtherTypeDot1QDoubleTag, DecodeDot1Q)
	d.Network.Register(EtherTypeIPv6, DecodeIPv6)
	d.Network.Register(EtherTypeTransparentEth, DecodeEthernet)

	d.Transport.Register(IPProtocolHopByHop, DecodeIPv6HopByHop)
	d.Transport.Register(IPProtocolICMPv4, DecodeICMPv4)
	d.Transport.Register(IPProtocolIPIP, DecodeIPv4)
	d.Transport.Register(IPProtocolTCP, DecodeTCP)
	d.Transport.Register(IPProtocolUDP, DecodeUDP)
	d.Transport.Register(IPProtocolIPv6, DecodeIPv6)
	d.Transport.Register(IPProtocolRouting, DecodeIPv6Routing)
	d.Transport.Register(IPProtocolFragment, DecodeIPv6Fragment)
	d.Transport.Register(IPProtocolGRE, DecodeGRE)
	d.Transport.Register(IPProtocolAH, DecodeIPv6Authentication)
	d.Transport.Register(IPProtocolICMPv6, DecodeICMPv6)
	d.Transport.Register(IPProtocolDestinationOpt, DecodeIPv6DestinationOptions)

	d.Application.Register(PortVXLAN, DecodeVXLAN)
	d.Application.Register(PortGeneve, DecodeGeneve)

	d.ICMPv4Messages.Register(ICMPTypeKey(ICMPv4TypeEchoReply), DecodeICMPv4Echo)
	d.ICMPv4Messages.Register(ICMPTypeKey(ICMPv4TypeEchoRequest), DecodeICMPv4Echo)
	d.ICMPv4Messages.Register(ICMPTypeKey(ICMPv4TypeDestinationUnreachable), DecodeICMPv4DestinationUnreachable)
	d.ICMPv4Messages.Register(ICMPTypeKey(ICMPv4TypeRedirect), DecodeICMPv4Redirect)
	d.ICMPv4Messages.Register(ICMPTypeKey(ICMPv4TypeTimeExceeded), DecodeICMPv4TimeExceeded)
	d.ICMPv4Messages.Register(ICMPTypeKey(ICMPv4TypeParameterProblem), DecodeICMPv4ParameterProblem)
	d.ICMPv4Messages.Register(ICMPTypeKey(ICMPv4TypeTimestampRequest), DecodeICMPv4Timestamp)
	d.ICMPv4Messages.Register(ICMPTypeKey(ICMPv4TypeTimestampReply), DecodeICMPv4Timestamp)

	d.ICMPv6Messages.Register(ICMPTypeKey(ICMPv6TypeDestinationUnreachable), DecodeICMPv6DestinationUnreachable)
	d.ICMPv6Messages.Register(ICMPTypeKey(ICMPv6TypePacketTooBig), DecodeICMPv6PacketTooBig)
	d.ICMPv6Messages.Register(ICMPTypeKey(ICMPv6TypeTimeExceeded), DecodeICMPv6TimeExceeded)
	d.ICMPv6Messages.Register(ICMPTypeKey(ICMPv6TypeParameterProblem), DecodeICMPv6ParameterProblem)
	d.ICMPv6Messages.Register(ICMPTypeKey(ICMPv6TypeEchoRequest), DecodeICMPv6Echo)
	d.ICMPv6Messages.Register(ICMPTypeKey(ICMPv6TypeEchoReply), DecodeICMPv6Echo)
	d.ICMPv6Messages.Register(ICMPTypeKey(ICMPv6TypeRouterSolicitation), DecodeICMPv6RouterSolicitation)
	d.ICMPv6Messages.Register(ICMPTypeKey(ICMPv6TypeRouterAdvertisement), DecodeICMPv6RouterAdvertisement)
	d.ICMPv6Messages.Register(ICMPTypeKey(ICMPv6TypeNeighborSolicitation), DecodeICMPv6NeighborSolicitation)
	d.ICMPv6Messages.Register(ICMPTypeKey(ICMPv6TypeNeighborAdvertisement), DecodeICMPv6NeighborAdvertisement)
}

// ICMPKey is the message registry code for an exact (type, code) pair.
func ICMPKey(typ, code uint8) uint32 { return uint32(typ)<<8 | uint32(code) }

// ICMPTypeKey is the message registry code matching every code of typ.
func ICMPTypeKey(typ uint8) uint32 { return 1<<16 | uint32(typ)<<8 }

// Registry returns the table for layer l, nil if l is not a known layer.
func (d *Decoder) Registry(l Layer) *Registry {
	switch l {
	case LayerLink:
		return d.Link
	case LayerNetwork:
		return d.Network
	case LayerTransport:
		return d.Transport
	case LayerApplication:
		return d.Application
	case LayerICMPv4:
		return d.ICMPv4Messages
	case LayerICMPv6:
		return d.ICMPv6Messages
	}
	return nil
}

// Decode wraps the readable bytes of buf as the link header named by
// linkType. Only the root header is decoded; call Next to go deeper.
func (d *Decoder) Decode(linkType uint32, buf *buffer.Buffer) (Packet, error) {
	return d.decodeLayer(LayerLink, linkType, buf)
}

func (d *Decoder) decodeLayer(l Layer, code uint32, buf *buffer.Buffer) (Packet, error) {
	r := d.Registry(l)
	if r == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLayerType, l)
	}
	if l == LayerICMPv4 || l == LayerICMPv6 {
		if fn, ok := r.Lookup(code); ok {
			return fn(buf, d)
		}
		return r.Decode(ICMPTypeKey(uint8(code>>8)), buf, d)
	}
	return r.Decode(code, buf, d)
}

// Decode decodes buf with the Default decoder.
func Decode(linkType uint32, buf *buffer.Buffer) (Packet, error) {
	return Default.Decode(linkType, buf)
}

// Register binds code in layer l of the Default decoder.
func Register(l Layer, code uint32, fn DecodeFunc) error {
	r := Default.Registry(l)
	if r == nil {
		return fmt.Errorf("%w: %s", ErrUnsupportedLayerType, l)
	}
	r.Register(code, fn)
	return nil
}
