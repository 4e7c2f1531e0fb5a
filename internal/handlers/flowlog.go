package handlers

import (
	"fmt"
	"net"
	"strings"

	"go.uber.org/atomic"

	"firestige.xyz/netcodec/internal/core"
	"firestige.xyz/netcodec/internal/log"
	"firestige.xyz/netcodec/pkg/handler"
	"firestige.xyz/netcodec/pkg/packet"
)

const FlowLogName = "flowlog"

type flowLogOptions struct {
	Level string `mapstructure:"level"`
	// Sample logs one segment in every Sample.
	Sample int `mapstructure:"sample"`
}

// FlowLog logs the 5-tuple of TCP and UDP segments.
type FlowLog struct {
	emit   func(log.Logger, string)
	sample uint64
	logger log.Logger

	seen atomic.Uint64
}

func NewFlowLog(level string, sample int) (*FlowLog, error) {
	var emit func(log.Logger, string)
	switch strings.ToLower(level) {
	case "trace":
		emit = func(l log.Logger, msg string) { l.Trace(msg) }
	case "debug":
		emit = func(l log.Logger, msg string) { l.Debug(msg) }
	case "", "info":
		emit = func(l log.Logger, msg string) { l.Info(msg) }
	case "warn", "warning":
		emit = func(l log.Logger, msg string) { l.Warn(msg) }
	default:
		return nil, fmt.Errorf("%w: flow log level %q", core.ErrConfigInvalid, level)
	}
	if sample < 1 {
		return nil, fmt.Errorf("%w: flow log sample %d", core.ErrConfigInvalid, sample)
	}
	return &FlowLog{
		emit:   emit,
		sample: uint64(sample),
		logger: log.GetLogger().WithField("handler", FlowLogName),
	}, nil
}

func newFlowLog(options map[string]interface{}) (handler.Handler, error) {
	opts := flowLogOptions{Level: "info", Sample: 1}
	if err := decodeOptions(options, &opts); err != nil {
		return nil, err
	}
	return NewFlowLog(opts.Level, opts.Sample)
}

func (f *FlowLog) Type() packet.Type { return packet.TypeAny }

func (f *FlowLog) Handle(p packet.Packet) error {
	var (
		proto            string
		srcPort, dstPort uint16
	)
	switch h := p.(type) {
	case *packet.TCP:
		proto, srcPort, dstPort = "tcp", h.SrcPort(), h.DstPort()
	case *packet.UDP:
		proto, srcPort, dstPort = "udp", h.SrcPort(), h.DstPort()
	default:
		return nil
	}
	if (f.seen.Inc()-1)%f.sample != 0 {
		return nil
	}
	src, dst, _ := packet.NetworkAddrs(p)
	f.emit(f.logger.WithFields(map[string]interface{}{
		"proto":  proto,
		"src":    hostPort(src, srcPort),
		"dst":    hostPort(dst, dstPort),
		"length": p.Length(),
	}), "flow")
	return nil
}

// Seen is the number of TCP and UDP headers observed, logged or not.
func (f *FlowLog) Seen() uint64 { return f.seen.Load() }

func hostPort(ip net.IP, port uint16) string {
	host := "?"
	if ip != nil {
		host = ip.String()
	}
	return net.JoinHostPort(host, fmt.Sprint(port))
}
