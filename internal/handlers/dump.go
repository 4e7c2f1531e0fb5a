package handlers

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"firestige.xyz/netcodec/pkg/handler"
	"firestige.xyz/netcodec/pkg/packet"
)

const DumpName = "dump"

// Dump writes one line per frame listing its decoded headers.
type Dump struct {
	mu sync.Mutex
	w  io.Writer
}

func NewDump(w io.Writer) *Dump { return &Dump{w: w} }

func newDump(options map[string]interface{}) (handler.Handler, error) {
	if err := decodeOptions(options, &struct{}{}); err != nil {
		return nil, err
	}
	return NewDump(os.Stdout), nil
}

func (d *Dump) Type() packet.Type { return packet.TypeAny }

// Handle prints on the root header only; the chain below it is cached by
// the time the pipeline dispatches.
func (d *Dump) Handle(p packet.Packet) error {
	if p.Parent() != nil {
		return nil
	}
	chain, err := packet.Chain(p)
	parts := make([]string, len(chain))
	for i, h := range chain {
		parts[i] = h.String()
	}
	line := strings.Join(parts, " / ")
	if err != nil {
		line += " ! " + err.Error()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	_, werr := fmt.Fprintln(d.w, line)
	return werr
}
