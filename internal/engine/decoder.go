package engine

import (
	"firestige.xyz/netcodec/internal/config"
	"firestige.xyz/netcodec/pkg/buffer"
	"firestige.xyz/netcodec/pkg/packet"
)

// NewDecoder returns a decoder with the built-in protocols minus the tunnels
// disabled in t. A disabled tunnel leaves its payload opaque.
func NewDecoder(t config.TunnelConfig) *packet.Decoder {
	d := packet.NewDecoder()
	if !t.VXLAN {
		d.Application.Unregister(packet.PortVXLAN)
	}
	if !t.Geneve {
		d.Application.Unregister(packet.PortGeneve)
	}
	if !t.GRE {
		d.Transport.Unregister(packet.IPProtocolGRE)
	}
	if !t.IPIP {
		d.Transport.Unregister(packet.IPProtocolIPIP)
		d.Transport.Unregister(packet.IPProtocolIPv6)
	}
	return d
}

// NewPool builds the frame pool from c.
func NewPool(c config.PoolConfig) (*buffer.Pool, error) {
	return buffer.NewPool(buffer.Options(c))
}
