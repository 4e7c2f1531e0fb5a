// Package handlers holds the built-in pipeline handlers and the factory
// registry that builds them from configuration.
package handlers

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mitchellh/mapstructure"

	"firestige.xyz/netcodec/internal/config"
	"firestige.xyz/netcodec/internal/core"
	"firestige.xyz/netcodec/pkg/handler"
)

// Factory builds a handler from its raw options.
type Factory func(options map[string]interface{}) (handler.Handler, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

func init() {
	Register(StatsName, newStats)
	Register(ChecksumName, newChecksum)
	Register(FlowLogName, newFlowLog)
	Register(VLANName, newVLAN)
	Register(DumpName, newDump)
}

// Register binds name to f. It panics on an empty name, a nil factory or a
// name registered twice.
func Register(name string, f Factory) {
	if name == "" {
		panic("handlers: empty factory name")
	}
	if f == nil {
		panic("handlers: nil factory for " + name)
	}
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[name]; exists {
		panic("handlers: factory " + name + " registered twice")
	}
	factories[name] = f
}

// New builds the handler registered as name.
func New(name string, options map[string]interface{}) (handler.Handler, error) {
	mu.RLock()
	f, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrHandlerUnknown, name)
	}
	h, err := f(options)
	if err != nil {
		return nil, fmt.Errorf("handler %q: %w", name, err)
	}
	return h, nil
}

// Names lists the registered factories, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build creates a pipeline holding one handler per entry, in order.
func Build(cfgs []config.HandlerConfig) (*handler.Pipeline, error) {
	p := handler.NewPipeline()
	for _, c := range cfgs {
		typ := c.Type
		if typ == "" {
			typ = c.Name
		}
		h, err := New(typ, c.Options)
		if err != nil {
			return nil, err
		}
		if err := p.AddLast(c.Name, h); err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrConfigInvalid, err)
		}
	}
	return p, nil
}

// decodeOptions fills out from raw. Unknown keys are rejected.
func decodeOptions(raw map[string]interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("%w: %w", core.ErrConfigInvalid, err)
	}
	return nil
}
