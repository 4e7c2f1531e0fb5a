package handlers

import (
	"sync"

	"firestige.xyz/netcodec/pkg/handler"
	"firestige.xyz/netcodec/pkg/packet"
)

const VLANName = "vlan"

// VLAN counts frames per VLAN id. Every tag of a stacked frame counts.
type VLAN struct {
	mu  sync.Mutex
	ids map[uint16]uint64
}

func NewVLAN() *VLAN { return &VLAN{ids: make(map[uint16]uint64)} }

func newVLAN(options map[string]interface{}) (handler.Handler, error) {
	if err := decodeOptions(options, &struct{}{}); err != nil {
		return nil, err
	}
	return NewVLAN(), nil
}

func (v *VLAN) Type() packet.Type { return packet.TypeDot1Q }

func (v *VLAN) Handle(p packet.Packet) error {
	id := p.(*packet.Dot1Q).VLANID()
	v.mu.Lock()
	v.ids[id]++
	v.mu.Unlock()
	return nil
}

func (v *VLAN) Counts() map[uint16]uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make(map[uint16]uint64, len(v.ids))
	for id, n := range v.ids {
		out[id] = n
	}
	return out
}
