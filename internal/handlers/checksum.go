package handlers

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/atomic"

	"firestige.xyz/netcodec/internal/core"
	"firestige.xyz/netcodec/internal/log"
	"firestige.xyz/netcodec/pkg/handler"
	"firestige.xyz/netcodec/pkg/packet"
)

const ChecksumName = "checksum"

var ErrChecksumMismatch = errors.New("handlers: checksum mismatch")

var checksumProtocols = map[string]packet.Type{
	"ipv4":   packet.TypeIPv4,
	"icmpv4": packet.TypeICMPv4,
	"icmpv6": packet.TypeICMPv6,
	"tcp":    packet.TypeTCP,
	"udp":    packet.TypeUDP,
}

type checksumOptions struct {
	Protocol string `mapstructure:"protocol"`
	// Strict reports a mismatch as a handler error instead of only
	// counting it.
	Strict bool `mapstructure:"strict"`
}

// Checksum verifies the checksum of one protocol. Transport checksums are
// computed over the pseudo-header of the nearest enclosing IP header.
// Headers quoted inside ICMP error messages are skipped since the quote is
// usually truncated.
type Checksum struct {
	typ    packet.Type
	strict bool
	logger log.Logger

	checked    atomic.Uint64
	mismatched atomic.Uint64
}

func NewChecksum(t packet.Type, strict bool) (*Checksum, error) {
	switch t {
	case packet.TypeIPv4, packet.TypeICMPv4, packet.TypeICMPv6, packet.TypeTCP, packet.TypeUDP:
	default:
		return nil, fmt.Errorf("%w: no checksum on %s", core.ErrConfigInvalid, t)
	}
	return &Checksum{
		typ:    t,
		strict: strict,
		logger: log.GetLogger().WithField("handler", ChecksumName),
	}, nil
}

func newChecksum(options map[string]interface{}) (handler.Handler, error) {
	opts := checksumOptions{Protocol: "ipv4"}
	if err := decodeOptions(options, &opts); err != nil {
		return nil, err
	}
	t, ok := checksumProtocols[strings.ToLower(opts.Protocol)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown checksum protocol %q", core.ErrConfigInvalid, opts.Protocol)
	}
	return NewChecksum(t, opts.Strict)
}

func (c *Checksum) Type() packet.Type { return c.typ }
func (c *Checksum) Sharable() bool    { return true }

func (c *Checksum) Handle(p packet.Packet) error {
	if quoted(p) {
		return nil
	}
	valid, ok := verify(p)
	if !ok {
		return nil
	}
	c.checked.Inc()
	if valid {
		return nil
	}
	c.mismatched.Inc()
	if c.logger.IsDebugEnabled() {
		c.logger.WithField("header", p.String()).Debug("checksum mismatch")
	}
	if c.strict {
		return fmt.Errorf("%w: %s", ErrChecksumMismatch, p.Type())
	}
	return nil
}

// Checked and Mismatched report the headers verified so far.
func (c *Checksum) Checked() uint64    { return c.checked.Load() }
func (c *Checksum) Mismatched() uint64 { return c.mismatched.Load() }

// verify reports whether p carries a valid checksum. ok is false when p
// cannot be verified, as for a transport header with no IP parent.
func verify(p packet.Packet) (valid, ok bool) {
	switch h := p.(type) {
	case *packet.IPv4:
		return h.IsValidChecksum(), true
	case *packet.ICMPv4:
		return h.IsValidChecksum(), true
	}

	src, dst, ok := packet.NetworkAddrs(p)
	if !ok {
		return false, false
	}
	switch h := p.(type) {
	case *packet.UDP:
		// A zero UDP checksum means "none sent" over IPv4 only.
		_, overIPv4 := packet.NetworkHeader(p).(*packet.IPv4)
		return h.IsValidChecksum(src, dst, overIPv4), true
	case *packet.TCP:
		return h.IsValidChecksum(src, dst), true
	case *packet.ICMPv6:
		return h.IsValidChecksum(src, dst), true
	}
	return false, false
}

func quoted(p packet.Packet) bool {
	for q := p.Parent(); q != nil; q = q.Parent() {
		if t := q.Type(); t == packet.TypeICMPv4 || t == packet.TypeICMPv6 {
			return true
		}
	}
	return false
}
