package packet

import "fmt"

// Layer identifies one registry of a Decoder.
type Layer uint8

const (
	LayerNone Layer = iota
	LayerLink
	LayerNetwork
	LayerTransport
	LayerApplication
	// ICMP message tables, keyed by ICMPKey / ICMPTypeKey.
	LayerICMPv4
	LayerICMPv6
)

var layerNames = [...]string{
	LayerNone:        "none",
	LayerLink:        "link",
	LayerNetwork:     "network",
	LayerTransport:   "transport",
	LayerApplication: "application",
	LayerICMPv4:      "icmpv4",
	LayerICMPv6:      "icmpv6",
}

func (l Layer) String() string {
	if int(l) < len(layerNames) {
		return layerNames[l]
	}
	return fmt.Sprintf("layer(%d)", uint8(l))
}

// Type is the static tag of a header implementation.
type Type uint16

const (
	// TypeAny matches every header in handler dispatch. No header reports it.
	TypeAny Type = iota
	TypeOpaque

	TypeLoopback
	TypeLinuxSLL
	TypeEthernet
	TypeDot1Q
	TypeARP

	TypeIPv4
	TypeIPv6
	TypeIPv6HopByHop
	TypeIPv6Routing
	TypeIPv6Fragment
	TypeIPv6DestinationOptions
	TypeIPv6Authentication

	TypeTCP
	TypeUDP
	TypeGRE

	TypeICMPv4
	TypeICMPv4Echo
	TypeICMPv4DestinationUnreachable
	TypeICMPv4TimeExceeded
	TypeICMPv4Redirect
	TypeICMPv4ParameterProblem
	TypeICMPv4Timestamp

	TypeICMPv6
	TypeICMPv6Echo
	TypeICMPv6DestinationUnreachable
	TypeICMPv6PacketTooBig
	TypeICMPv6TimeExceeded
	TypeICMPv6ParameterProblem
	TypeICMPv6RouterSolicitation
	TypeICMPv6RouterAdvertisement
	TypeICMPv6NeighborSolicitation
	TypeICMPv6NeighborAdvertisement

	TypeVXLAN
	TypeGeneve

	typeCount
)

var typeNames = [...]string{
	TypeAny:                          "Any",
	TypeOpaque:                       "Opaque",
	TypeLoopback:                     "Loopback",
	TypeLinuxSLL:                     "LinuxSLL",
	TypeEthernet:                     "Ethernet",
	TypeDot1Q:                        "Dot1Q",
	TypeARP:                          "ARP",
	TypeIPv4:                         "IPv4",
	TypeIPv6:                         "IPv6",
	TypeIPv6HopByHop:                 "IPv6HopByHop",
	TypeIPv6Routing:                  "IPv6Routing",
	TypeIPv6Fragment:                 "IPv6Fragment",
	TypeIPv6DestinationOptions:       "IPv6DestinationOptions",
	TypeIPv6Authentication:           "IPv6Authentication",
	TypeTCP:                          "TCP",
	TypeUDP:                          "UDP",
	TypeGRE:                          "GRE",
	TypeICMPv4:                       "ICMPv4",
	TypeICMPv4Echo:                   "ICMPv4Echo",
	TypeICMPv4DestinationUnreachable: "ICMPv4DestinationUnreachable",
	TypeICMPv4TimeExceeded:           "ICMPv4TimeExceeded",
	TypeICMPv4Redirect:               "ICMPv4Redirect",
	TypeICMPv4ParameterProblem:       "ICMPv4ParameterProblem",
	TypeICMPv4Timestamp:              "ICMPv4Timestamp",
	TypeICMPv6:                       "ICMPv6",
	TypeICMPv6Echo:                   "ICMPv6Echo",
	TypeICMPv6DestinationUnreachable: "ICMPv6DestinationUnreachable",
	TypeICMPv6PacketTooBig:           "ICMPv6PacketTooBig",
	TypeICMPv6TimeExceeded:           "ICMPv6TimeExceeded",
	TypeICMPv6ParameterProblem:       "ICMPv6ParameterProblem",
	TypeICMPv6RouterSolicitation:     "ICMPv6RouterSolicitation",
	TypeICMPv6RouterAdvertisement:    "ICMPv6RouterAdvertisement",
	TypeICMPv6NeighborSolicitation:   "ICMPv6NeighborSolicitation",
	TypeICMPv6NeighborAdvertisement:  "ICMPv6NeighborAdvertisement",
	TypeVXLAN:                        "VXLAN",
	TypeGeneve:                       "Geneve",
}

func (t Type) String() string {
	if t < typeCount {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", uint16(t))
}

// ParseType returns the Type whose String matches name.
func ParseType(name string) (Type, bool) {
	for t := TypeAny; t < typeCount; t++ {
		if typeNames[t] == name {
			return t, true
		}
	}
	return 0, false
}

// Link types (pcap DLT values).
const (
	LinkTypeNull     uint32 = 0
	LinkTypeEthernet uint32 = 1
	LinkTypeRawAlt1  uint32 = 12
	LinkTypeRawAlt2  uint32 = 14
	LinkTypeRaw      uint32 = 101
	LinkTypeLoop     uint32 = 108
	LinkTypeLinuxSLL uint32 = 113
)

// EtherTypes.
const (
	EtherTypeIPv4            uint32 = 0x0800
	EtherTypeARP             uint32 = 0x0806
	EtherTypeTransparentEth  uint32 = 0x6558
	EtherTypeDot1Q           uint32 = 0x8100
	EtherTypeIPv6            uint32 = 0x86DD
	EtherTypeQinQ            uint32 = 0x88A8
	EtherTypeDot1QDoubleTag  uint32 = 0x9100
	maxEthernetPayloadLength        = 1500
)

// IP protocol numbers, shared with IPv6 next-header values.
const (
	IPProtocolHopByHop       uint32 = 0
	IPProtocolICMPv4         uint32 = 1
	IPProtocolIPIP           uint32 = 4
	IPProtocolTCP            uint32 = 6
	IPProtocolUDP            uint32 = 17
	IPProtocolIPv6           uint32 = 41
	IPProtocolRouting        uint32 = 43
	IPProtocolFragment       uint32 = 44
	IPProtocolGRE            uint32 = 47
	IPProtocolESP            uint32 = 50
	IPProtocolAH             uint32 = 51
	IPProtocolICMPv6         uint32 = 58
	IPProtocolNoNextHeader   uint32 = 59
	IPProtocolDestinationOpt uint32 = 60
)

// Well-known ports with built-in application decoders.
const (
	PortVXLAN  uint32 = 4789
	PortGeneve uint32 = 6081
)
